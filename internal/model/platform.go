package model

import "time"

// PlatformState is a buyer platform's pricing and live inventory.
type PlatformState struct {
	PlatformCode      string           `json:"platform_code" yaml:"platform_code"`
	PriceByTier       map[Tier]float64 `json:"price_by_tier" yaml:"price_by_tier"`
	CommissionRate    float64          `json:"commission_rate" yaml:"commission_rate"`
	AcceptanceRate    float64          `json:"acceptance_rate" yaml:"acceptance_rate"`
	CapacityRemaining int              `json:"capacity_remaining" yaml:"capacity_remaining"`
	AcceptingLeads    bool             `json:"accepting_leads" yaml:"accepting_leads"`
	TierEligibility   []Tier           `json:"tier_eligibility" yaml:"tier_eligibility"`
}

// Eligible reports whether the platform buys leads of the given tier.
func (p PlatformState) Eligible(tier Tier) bool {
	for _, t := range p.TierEligibility {
		if t == tier {
			return true
		}
	}
	return false
}

// Available reports whether the platform can take a lead right now.
func (p PlatformState) Available() bool {
	return p.AcceptingLeads && p.CapacityRemaining > 0
}

// Candidate is a ranked routing option.
type Candidate struct {
	PlatformCode    string  `json:"platform_code"`
	OfferPrice      float64 `json:"offer_price"`
	AcceptanceRate  float64 `json:"acceptance_rate"`
	ExpectedRevenue float64 `json:"expected_revenue"`
}

// RoutingDecision records which platform received a lead. ChosenPlatform is
// nil when no platform could take it.
type RoutingDecision struct {
	DecisionID         string      `json:"decision_id"`
	Tier               Tier        `json:"tier"`
	ChosenPlatform     *string     `json:"chosen_platform"`
	OfferPrice         float64     `json:"offer_price"`
	ExpectedRevenue    float64     `json:"expected_revenue"`
	FallbackCandidates []Candidate `json:"fallback_candidates"`
	Attempts           int         `json:"attempts"`
	DecidedAt          time.Time   `json:"decided_at"`
}
