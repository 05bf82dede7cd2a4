package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/inventory"
	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/qualify"
	"github.com/sells-group/solar-router/internal/resilience"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20

	codeSessionNotFound = "session_not_found"
	codeBadRequest      = "bad_request"
	codeInternal        = "internal"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversational qualification API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Engine, env.Store, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer serves qualification sessions over HTTP. Sessions live in
// memory for the life of the process.
type apiServer struct {
	engine   *qualify.Engine
	store    inventory.Store
	sessions sync.Map // id -> *qualify.Session
}

// buildRouter wires middleware and routes. It is separate from serveCmd so
// tests can drive it with httptest.
func buildRouter(engine *qualify.Engine, st inventory.Store, sc config.ServerConfig) http.Handler {
	s := &apiServer{engine: engine, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	if sc.RequestsPerSecond > 0 {
		r.Use(newIPRateLimiter(rate.Limit(sc.RequestsPerSecond), burstFor(sc.RequestsPerSecond)).Middleware)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/qualify", s.handleQualify)
		r.Get("/markets/{zip}", s.handleMarket)
		r.Get("/platforms", s.handlePlatforms)
		r.Get("/stats", s.handleStats)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Patch("/profile", s.handleUpdateProfile)
			r.Get("/recommendation", s.handleRecommendation)
			r.Get("/score", s.handleScore)
			r.Post("/route", s.handleRoute)
		})
	})

	return r
}

type sessionResponse struct {
	SessionID string                `json:"session_id"`
	Profile   model.CustomerProfile `json:"profile"`
}

type routeResponse struct {
	Score   model.LeadScore        `json:"score"`
	Routing *model.RoutingDecision `json:"routing,omitempty"`
}

type errorResponse struct {
	Error          string                      `json:"error"`
	Code           string                      `json:"code"`
	Missing        []string                    `json:"missing_fields,omitempty"`
	Recommendation *model.SystemRecommendation `json:"recommendation,omitempty"`
	Score          *model.LeadScore            `json:"score,omitempty"`
	Routing        *model.RoutingDecision      `json:"routing,omitempty"`
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleQualify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadID  string                `json:"lead_id"`
		Profile model.CustomerProfile `json:"profile"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.LeadID == "" {
		req.LeadID = uuid.NewString()
	}

	out := s.engine.Qualify(r.Context(), req.LeadID, req.Profile)
	if out.Err != nil {
		writeJSON(w, statusFor(out.Err), out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Resolve(chi.URLParam(r, "zip"))
	if err != nil {
		writeError(w, err, errorResponse{})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *apiServer) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeError(w, err, errorResponse{})
		return
	}
	writeJSON(w, http.StatusOK, platforms)
}

func (s *apiServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	hits, misses, size := s.engine.CacheStats()
	var sessions int
	s.sessions.Range(func(_, _ any) bool {
		sessions++
		return true
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"cache_hits":    hits,
		"cache_misses":  misses,
		"cache_entries": size,
		"sessions":      sessions,
	})
}

func (s *apiServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var u model.ProfileUpdate
	if r.ContentLength != 0 && !decodeBody(w, r, &u) {
		return
	}

	sess := s.engine.NewSession(uuid.NewString())
	profile, err := sess.UpdateProfile(u)
	if err != nil {
		writeError(w, err, errorResponse{})
		return
	}
	s.sessions.Store(sess.ID(), sess)

	zap.L().Debug("session created", zap.String("session_id", sess.ID()))
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID(), Profile: profile})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID(), Profile: sess.Profile()})
}

func (s *apiServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var u model.ProfileUpdate
	if !decodeBody(w, r, &u) {
		return
	}

	profile, err := sess.UpdateProfile(u)
	if err != nil {
		writeError(w, err, errorResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID(), Profile: profile})
}

func (s *apiServer) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	rec, err := sess.ComputeRecommendation(r.Context())
	if err != nil {
		writeError(w, err, errorResponse{Recommendation: rec})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleScore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	score, err := sess.ComputeScore()
	if err != nil {
		writeError(w, err, errorResponse{})
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *apiServer) handleRoute(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	score, dec, err := sess.RouteLead(r.Context())
	if err != nil {
		extra := errorResponse{Routing: dec}
		if score.QualityTier != "" {
			extra.Score = &score
		}
		writeError(w, err, extra)
		return
	}
	writeJSON(w, http.StatusOK, routeResponse{Score: score, Routing: dec})
}

// session looks up the {id} session, writing a 404 when it does not exist.
func (s *apiServer) session(w http.ResponseWriter, r *http.Request) (*qualify.Session, bool) {
	id := chi.URLParam(r, "id")
	v, ok := s.sessions.Load(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("session %s not found", id),
			Code:  codeSessionNotFound,
		})
		return nil, false
	}
	return v.(*qualify.Session), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  codeBadRequest,
		})
		return false
	}
	return true
}

// statusFor maps the qualification error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrIncompleteProfile):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrOutOfServiceArea), errors.Is(err, model.ErrUnknownPlatform):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNonViableRecommendation), errors.Is(err, model.ErrNoEligiblePlatform):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrCapacityExhausted):
		return http.StatusConflict
	case errors.Is(err, resilience.ErrCircuitOpen), resilience.IsTransient(err),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its status and code. Partial results in extra
// are included in the body.
func writeError(w http.ResponseWriter, err error, extra errorResponse) {
	status := statusFor(err)
	extra.Code = qualify.ErrorCode(err)
	extra.Error = err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		extra.Code = codeInternal
	}

	var inc *model.IncompleteProfileError
	if errors.As(err, &inc) {
		extra.Missing = inc.Missing
	}
	writeJSON(w, status, extra)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	limiters sync.Map // ip -> *rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{limit: limit, burst: burst}
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	if v, ok := l.limiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(ip, rate.NewLimiter(l.limit, l.burst))
	return v.(*rate.Limiter)
}

// Middleware rejects requests over the per-IP rate with 429.
func (l *ipRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.limiter(ip).Allow() {
			zap.L().Debug("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func burstFor(rps float64) int {
	return max(1, int(rps))
}
