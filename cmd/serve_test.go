package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/resilience"
)

func testRouter(t *testing.T) (http.Handler, *engineEnv) {
	t.Helper()
	env := testEnv(t)
	return buildRouter(env.Engine, env.Store, testConfig().Server), env
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler, body any) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[sessionResponse](t, rr).SessionID
}

func TestServer_Health(t *testing.T) {
	h, _ := testRouter(t)

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestServer_ConversationFlow(t *testing.T) {
	h, env := testRouter(t)
	id := createSession(t, h, nil)
	base := "/api/v1/sessions/" + id

	// Nothing collected yet.
	rr := do(t, h, http.MethodGet, base+"/recommendation", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decode[errorResponse](t, rr)
	assert.Equal(t, "incomplete_profile", errBody.Code)
	assert.ElementsMatch(t, []string{"zip_code", "monthly_bill", "shading_factor"}, errBody.Missing)

	rr = do(t, h, http.MethodPatch, base+"/profile", map[string]any{"zip_code": "11215", "monthly_bill": 380})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPatch, base+"/profile", map[string]any{
		"homeownership_status": "own",
		"roof_type":            "asphalt_shingle",
		"roof_age":             8,
		"shading_factor":       0.85,
		"timeline_urgency":     "immediately",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "11215", decode[sessionResponse](t, rr).Profile.ZipCode)

	rr = do(t, h, http.MethodGet, base+"/recommendation", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decode[model.SystemRecommendation](t, rr)
	assert.Equal(t, "11215", rec.ZipCode)
	assert.True(t, rec.Viable)
	assert.Greater(t, rec.SystemSizeKW, 0.0)

	rr = do(t, h, http.MethodGet, base+"/score", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	score := decode[model.LeadScore](t, rr)
	assert.Equal(t, 100, score.NumericScore)
	assert.Equal(t, model.TierPremium, score.QualityTier)

	rr = do(t, h, http.MethodPost, base+"/route", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	routed := decode[routeResponse](t, rr)
	require.NotNil(t, routed.Routing)
	require.NotNil(t, routed.Routing.ChosenPlatform)
	assert.Equal(t, "sunrun", *routed.Routing.ChosenPlatform)
	assert.InDelta(t, 222.75, routed.Routing.ExpectedRevenue, 1e-9)

	p, err := env.Store.Get(context.Background(), "sunrun")
	require.NoError(t, err)
	assert.Equal(t, 49, p.CapacityRemaining)
}

func TestServer_CreateSessionWithProfile(t *testing.T) {
	h, _ := testRouter(t)
	id := createSession(t, h, map[string]any{"zip_code": "10025", "monthly_bill": 250})

	rr := do(t, h, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[sessionResponse](t, rr)
	assert.Equal(t, id, got.SessionID)
	assert.Equal(t, "10025", got.Profile.ZipCode)
	assert.InDelta(t, 250, got.Profile.MonthlyBill, 1e-9)
}

func TestServer_InvalidUpdateIsRejected(t *testing.T) {
	h, _ := testRouter(t)
	id := createSession(t, h, map[string]any{"zip_code": "11215"})
	base := "/api/v1/sessions/" + id

	tests := []struct {
		name string
		body any
	}{
		{"negative bill", map[string]any{"monthly_bill": -10}},
		{"shading above one", map[string]any{"shading_factor": 1.5}},
		{"bad timeline", map[string]any{"timeline_urgency": "someday"}},
		{"bad zip", map[string]any{"zip_code": "ABCDE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPatch, base+"/profile", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "invalid_input", decode[errorResponse](t, rr).Code)
		})
	}

	rr := do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, "11215", decode[sessionResponse](t, rr).Profile.ZipCode)
}

func TestServer_MalformedBody(t *testing.T) {
	h, _ := testRouter(t)
	id := createSession(t, h, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/"+id+"/profile", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, codeBadRequest, decode[errorResponse](t, rr).Code)
}

func TestServer_UnknownSession(t *testing.T) {
	h, _ := testRouter(t)

	for _, path := range []string{
		"/api/v1/sessions/nope",
		"/api/v1/sessions/nope/recommendation",
		"/api/v1/sessions/nope/score",
	} {
		rr := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Equal(t, codeSessionNotFound, decode[errorResponse](t, rr).Code)
	}
}

func TestServer_DeleteSession(t *testing.T) {
	h, _ := testRouter(t)
	id := createSession(t, h, nil)

	rr := do(t, h, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_RouteRenterIsUnprocessable(t *testing.T) {
	h, _ := testRouter(t)
	id := createSession(t, h, map[string]any{"homeownership_status": "rent"})

	rr := do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/route", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[errorResponse](t, rr)
	assert.Equal(t, "no_eligible_platform", body.Code)
	require.NotNil(t, body.Score)
	assert.Equal(t, model.TierUnqualified, body.Score.QualityTier)
	require.NotNil(t, body.Routing)
	assert.Nil(t, body.Routing.ChosenPlatform)
}

func TestServer_OutOfServiceArea(t *testing.T) {
	h, _ := testRouter(t)
	id := createSession(t, h, map[string]any{"zip_code": "90210", "monthly_bill": 300, "shading_factor": 0.9})

	rr := do(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/recommendation", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "out_of_service_area", decode[errorResponse](t, rr).Code)
}

func TestServer_Qualify(t *testing.T) {
	h, _ := testRouter(t)

	rr := do(t, h, http.MethodPost, "/api/v1/qualify", map[string]any{
		"lead_id": "L-1",
		"profile": map[string]any{
			"zip_code":             "11215",
			"monthly_bill":         380,
			"homeownership_status": "own",
			"roof_type":            "asphalt_shingle",
			"roof_age":             8,
			"shading_factor":       0.85,
			"timeline_urgency":     "immediately",
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[map[string]any](t, rr)
	assert.Equal(t, "L-1", out["lead_id"])
	assert.Contains(t, out, "recommendation")
	assert.Contains(t, out, "routing")

	rr = do(t, h, http.MethodPost, "/api/v1/qualify", map[string]any{
		"profile": map[string]any{"zip_code": "90210", "monthly_bill": 300, "homeownership_status": "own"},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	out = decode[map[string]any](t, rr)
	assert.Equal(t, "out_of_service_area", out["error_code"])
	assert.NotEmpty(t, out["lead_id"])
}

func TestServer_MarketsAndPlatforms(t *testing.T) {
	h, _ := testRouter(t)

	rr := do(t, h, http.MethodGet, "/api/v1/markets/11215", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Brooklyn", decode[model.ZipMarketProfile](t, rr).Borough)

	rr = do(t, h, http.MethodGet, "/api/v1/markets/1121", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/platforms", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.PlatformState](t, rr), 3)

	rr = do(t, h, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode[map[string]any](t, rr), "cache_hits")
}

func TestServer_RateLimit(t *testing.T) {
	env := testEnv(t)
	sc := config.ServerConfig{RequestsPerSecond: 1, AllowedOrigins: []string{"*"}}
	h := buildRouter(env.Engine, env.Store, sc)

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	h, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", eris.Wrap(model.ErrInvalidInput, "x"), http.StatusBadRequest},
		{"incomplete", &model.IncompleteProfileError{Operation: "op", Missing: []string{"zip_code"}}, http.StatusBadRequest},
		{"out of area", eris.Wrap(model.ErrOutOfServiceArea, "x"), http.StatusNotFound},
		{"unknown platform", model.ErrUnknownPlatform, http.StatusNotFound},
		{"non viable", model.ErrNonViableRecommendation, http.StatusUnprocessableEntity},
		{"no eligible", model.ErrNoEligiblePlatform, http.StatusUnprocessableEntity},
		{"exhausted", model.ErrCapacityExhausted, http.StatusConflict},
		{"circuit open", resilience.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"transient", resilience.NewTransientError("redis", errors.New("conn reset")), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
