// Package routing picks the buyer platform for a qualified lead and reserves
// its capacity.
package routing

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/inventory"
	"github.com/sells-group/solar-router/internal/model"
)

const defaultRetryBound = 3

// Router ranks platforms by expected revenue and commits a lead to the best
// one that still has capacity.
type Router struct {
	store      inventory.Store
	retryBound int
	now        func() time.Time
}

// New creates a Router that reserves capacity in store. A non-positive
// retry bound falls back to the default of 3.
func New(store inventory.Store, cfg config.RoutingConfig) *Router {
	bound := cfg.RetryBound
	if bound <= 0 {
		bound = defaultRetryBound
	}
	return &Router{store: store, retryBound: bound, now: time.Now}
}

// ExpectedRevenue is price x acceptance x (1 - commission).
func ExpectedRevenue(price, acceptance, commission float64) float64 {
	return price * acceptance * (1 - commission)
}

// Rank returns the platforms that can take a lead of tier, best first.
// Ordering is by expected revenue, then acceptance rate, then platform code,
// so equal inputs always rank the same way.
func Rank(tier model.Tier, platforms []model.PlatformState) []model.Candidate {
	out := []model.Candidate{}
	if !tier.Qualified() {
		return out
	}
	// Ranking uses the unrounded revenue; only the reported value is rounded.
	raw := map[string]float64{}
	for _, p := range platforms {
		if !p.Available() || !p.Eligible(tier) {
			continue
		}
		price, ok := p.PriceByTier[tier]
		if !ok {
			continue
		}
		rev := ExpectedRevenue(price, p.AcceptanceRate, p.CommissionRate)
		raw[p.PlatformCode] = rev
		out = append(out, model.Candidate{
			PlatformCode:    p.PlatformCode,
			OfferPrice:      price,
			AcceptanceRate:  p.AcceptanceRate,
			ExpectedRevenue: round2(rev),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := raw[a.PlatformCode], raw[b.PlatformCode]; ra != rb {
			return ra > rb
		}
		if a.AcceptanceRate != b.AcceptanceRate {
			return a.AcceptanceRate > b.AcceptanceRate
		}
		return a.PlatformCode < b.PlatformCode
	})
	return out
}

// Route commits a lead of tier to the best ranked platform in platforms.
// A reservation lost to a concurrent decision moves on to the next candidate,
// at most retryBound times. The returned decision is non-nil whenever the
// error is model.ErrNoEligiblePlatform or model.ErrCapacityExhausted.
func (r *Router) Route(ctx context.Context, tier model.Tier, platforms []model.PlatformState) (*model.RoutingDecision, error) {
	ranked := Rank(tier, platforms)
	dec := &model.RoutingDecision{
		DecisionID:         uuid.NewString(),
		Tier:               tier,
		FallbackCandidates: ranked,
		DecidedAt:          r.now().UTC(),
	}
	log := zap.L().With(zap.String("decision_id", dec.DecisionID), zap.String("tier", string(tier)))

	if len(ranked) == 0 {
		log.Info("routing: no eligible platform", zap.Int("platforms", len(platforms)))
		return dec, eris.Wrapf(model.ErrNoEligiblePlatform, "routing: tier %s", tier)
	}

	maxAttempts := r.retryBound + 1
	for i, c := range ranked {
		if dec.Attempts == maxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return dec, eris.Wrap(err, "routing: route")
		}
		dec.Attempts++

		left, err := r.store.Reserve(ctx, c.PlatformCode)
		switch {
		case err == nil:
			code := c.PlatformCode
			dec.ChosenPlatform = &code
			dec.OfferPrice = c.OfferPrice
			dec.ExpectedRevenue = c.ExpectedRevenue
			dec.FallbackCandidates = ranked[i+1:]
			log.Info("routing: lead routed",
				zap.String("platform", code),
				zap.Float64("offer_price", c.OfferPrice),
				zap.Float64("expected_revenue", c.ExpectedRevenue),
				zap.Int("capacity_remaining", left),
				zap.Int("attempts", dec.Attempts),
			)
			return dec, nil
		case errors.Is(err, model.ErrCapacityExhausted), errors.Is(err, model.ErrUnknownPlatform):
			log.Debug("routing: reservation lost", zap.String("platform", c.PlatformCode), zap.Error(err))
		default:
			return dec, eris.Wrapf(err, "routing: reserve %s", c.PlatformCode)
		}
	}

	log.Warn("routing: capacity exhausted", zap.Int("attempts", dec.Attempts), zap.Int("candidates", len(ranked)))
	return dec, eris.Wrapf(model.ErrCapacityExhausted, "routing: tier %s after %d attempts", tier, dec.Attempts)
}

// RouteCurrent routes against the store's current inventory.
func (r *Router) RouteCurrent(ctx context.Context, tier model.Tier) (*model.RoutingDecision, error) {
	if !tier.Qualified() {
		return r.Route(ctx, tier, nil)
	}
	platforms, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "routing: snapshot inventory")
	}
	return r.Route(ctx, tier, platforms)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
