// Package qualify ties market resolution, sizing, costing, scoring and
// routing together behind per-lead sessions.
package qualify

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/cost"
	"github.com/sells-group/solar-router/internal/financing"
	"github.com/sells-group/solar-router/internal/geo"
	"github.com/sells-group/solar-router/internal/inventory"
	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/routing"
	"github.com/sells-group/solar-router/internal/scorer"
	"github.com/sells-group/solar-router/internal/sizing"
)

// Operation names reported in IncompleteProfileError.
const (
	OpRecommendation = "compute_recommendation"
	OpScore          = "compute_score"
	OpRoute          = "route_lead"
)

var (
	recommendationFields = []string{model.FieldZipCode, model.FieldMonthlyBill, model.FieldShading}
	ownerScoreFields     = []string{model.FieldZipCode, model.FieldMonthlyBill, model.FieldTimeline, model.FieldRoofType, model.FieldShading}
)

// Deps are the collaborators an Engine is assembled from.
type Deps struct {
	Resolver  *geo.Resolver
	Sizer     *sizing.Sizer
	Costs     *cost.Calculator
	Financing *financing.Generator
	Scorer    *scorer.LeadScorer
	Router    *routing.Router
	// CacheSize bounds the recommendation cache. 0 disables caching.
	CacheSize int
}

// Engine answers qualification queries for complete or partial profiles.
// It is safe for concurrent use.
type Engine struct {
	resolver  *geo.Resolver
	sizer     *sizing.Sizer
	costs     *cost.Calculator
	financing *financing.Generator
	scorer    *scorer.LeadScorer
	router    *routing.Router

	cache     *recommendationCache
	validator *profileValidator
}

// NewEngine checks that every collaborator is present.
func NewEngine(d Deps) (*Engine, error) {
	switch {
	case d.Resolver == nil:
		return nil, eris.New("qualify: resolver is required")
	case d.Sizer == nil:
		return nil, eris.New("qualify: sizer is required")
	case d.Costs == nil:
		return nil, eris.New("qualify: cost calculator is required")
	case d.Financing == nil:
		return nil, eris.New("qualify: financing generator is required")
	case d.Scorer == nil:
		return nil, eris.New("qualify: scorer is required")
	case d.Router == nil:
		return nil, eris.New("qualify: router is required")
	}
	return &Engine{
		resolver:  d.Resolver,
		sizer:     d.Sizer,
		costs:     d.Costs,
		financing: d.Financing,
		scorer:    d.Scorer,
		router:    d.Router,
		cache:     newRecommendationCache(d.CacheSize),
		validator: newProfileValidator(),
	}, nil
}

// Build assembles an Engine from configuration, reading the market reference
// from cfg.Reference.MarketsPath and reserving capacity in store.
func Build(cfg *config.Config, store inventory.Store) (*Engine, error) {
	ref, err := geo.LoadReference(cfg.Reference.MarketsPath)
	if err != nil {
		return nil, err
	}
	resolver, err := geo.NewResolver(ref, cfg.Incentives)
	if err != nil {
		return nil, err
	}
	sc, err := scorer.New(cfg.Scorer)
	if err != nil {
		return nil, err
	}
	return NewEngine(Deps{
		Resolver:  resolver,
		Sizer:     sizing.New(cfg.Solar),
		Costs:     cost.NewCalculator(cfg.Cost),
		Financing: financing.NewGenerator(cfg.Financing.LoanTerms),
		Scorer:    sc,
		Router:    routing.New(store, cfg.Routing),
		CacheSize: cfg.Cache.MaxEntries,
	})
}

// Validate checks a profile's field constraints.
func (e *Engine) Validate(p model.CustomerProfile) error {
	return e.validator.Profile(p)
}

// Resolve returns the market for a ZIP code.
func (e *Engine) Resolve(zip string) (model.ZipMarketProfile, error) {
	return e.resolver.Resolve(zip)
}

// Recommend sizes and prices a system for p. It needs zip_code, monthly_bill
// and shading_factor. A recommendation that saves nothing is returned
// together with model.ErrNonViableRecommendation.
func (e *Engine) Recommend(_ context.Context, p model.CustomerProfile) (*model.SystemRecommendation, error) {
	if err := model.RequireFields(OpRecommendation, p, recommendationFields...); err != nil {
		return nil, err
	}
	if err := e.Validate(p); err != nil {
		return nil, err
	}

	rec, err := e.cache.get(cacheKey(p), func() (*model.SystemRecommendation, error) {
		return e.recommend(p)
	})
	if err != nil {
		return nil, err
	}
	if !rec.Viable {
		return rec, eris.Wrapf(model.ErrNonViableRecommendation, "qualify: zip %s bill %.2f", rec.ZipCode, p.MonthlyBill)
	}
	return rec, nil
}

func (e *Engine) recommend(p model.CustomerProfile) (*model.SystemRecommendation, error) {
	market, err := e.resolver.Resolve(p.ZipCode)
	if err != nil {
		return nil, err
	}
	sz, err := e.sizer.Size(p.MonthlyBill, market, p.Shading())
	if err != nil {
		return nil, err
	}
	costs, err := e.costs.Calculate(sz, p.MonthlyBill, market)
	if err != nil {
		return nil, err
	}
	offers, err := e.financing.Generate(costs.NetCost)
	if err != nil {
		return nil, err
	}

	rec := &model.SystemRecommendation{
		ZipCode:             market.ZipCode,
		SystemSizeKW:        sz.SystemSizeKW,
		PanelCount:          sz.PanelCount,
		AnnualProductionKWh: sz.AnnualProductionKWh,
		AnnualUsageKWh:      math.Round(sz.AnnualUsageKWh*100) / 100,
		GrossCost:           costs.GrossCost,
		IncentivesApplied:   costs.Incentives,
		NetCost:             costs.NetCost,
		MonthlySavings:      costs.MonthlySavings,
		PaybackYears:        costs.PaybackYears,
		LifetimeSavings25yr: costs.LifetimeSavings,
		ConfidenceScore:     e.confidence(sz.Confidence, p.RoofType),
		SizeCapped:          sz.Capped,
		Viable:              costs.Viable,
		Financing:           offers,
	}
	if rec.IncentivesApplied == nil {
		rec.IncentivesApplied = []model.Incentive{}
	}

	zap.L().Debug("qualify: recommendation computed",
		zap.String("zip", rec.ZipCode),
		zap.Float64("system_size_kw", rec.SystemSizeKW),
		zap.Float64("net_cost", rec.NetCost),
		zap.Bool("viable", rec.Viable),
	)
	return rec, nil
}

// confidence discounts the sizing confidence by how well the roof suits
// panels.
func (e *Engine) confidence(sizing float64, roofType string) float64 {
	c := sizing * e.scorer.RoofConfidence(roofType)
	return math.Round(c*100) / 100
}

// Score scores p. Every profile needs homeownership_status; owners also need
// zip_code, monthly_bill, timeline_urgency, roof_type and shading_factor.
func (e *Engine) Score(p model.CustomerProfile) (model.LeadScore, error) {
	if err := model.RequireFields(OpScore, p, model.FieldHomeownership); err != nil {
		return model.LeadScore{}, err
	}
	if err := e.Validate(p); err != nil {
		return model.LeadScore{}, err
	}
	if p.Homeownership != model.HomeownershipOwn {
		return e.scorer.Score(p, model.ZipMarketProfile{})
	}

	if err := model.RequireFields(OpScore, p, ownerScoreFields...); err != nil {
		return model.LeadScore{}, err
	}
	market, err := e.resolver.Resolve(p.ZipCode)
	if err != nil {
		return model.LeadScore{}, err
	}
	return e.scorer.Score(p, market)
}

// Route scores p and commits it to the best platform in the current
// inventory. The score is returned even when routing fails; the decision is
// returned whenever routing was attempted.
func (e *Engine) Route(ctx context.Context, p model.CustomerProfile) (model.LeadScore, *model.RoutingDecision, error) {
	score, err := e.Score(p)
	if err != nil {
		var inc *model.IncompleteProfileError
		if errors.As(err, &inc) {
			inc.Operation = OpRoute
		}
		return score, nil, err
	}

	dec, err := e.router.RouteCurrent(ctx, score.QualityTier)
	return score, dec, err
}

// CacheStats reports recommendation cache hits, misses and size.
func (e *Engine) CacheStats() (hits, misses int64, size int) {
	return e.cache.stats()
}

// NewSession starts a session for one lead.
func (e *Engine) NewSession(id string) *Session {
	return &Session{id: id, engine: e}
}
