// Package scorer turns a customer profile and its market into a lead score
// and quality tier.
package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/config"
)

// Factor names used as weight keys and in the score breakdown.
const (
	FactorBillAmount         = "bill_amount"
	FactorMarketDesirability = "market_desirability"
	FactorTimelineUrgency    = "timeline_urgency"
	FactorRoofQuality        = "roof_quality"

	// GateOwnership is the only breakdown entry for a profile that fails the
	// homeownership gate.
	GateOwnership = "ownership_gate"
)

// Factors lists the weighted factors in evaluation order.
var Factors = []string{
	FactorBillAmount,
	FactorMarketDesirability,
	FactorTimelineUrgency,
	FactorRoofQuality,
}

// DefaultScorerConfig returns a config.ScorerConfig with sensible defaults.
// Weights sum to 1.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		Weights: map[string]float64{
			FactorBillAmount:         0.35,
			FactorMarketDesirability: 0.15,
			FactorTimelineUrgency:    0.25,
			FactorRoofQuality:        0.25,
		},
		TierThresholds: config.TierThresholds{
			Premium:  80,
			Standard: 60,
			Basic:    40,
		},

		// A $300 bill or an 85 solar potential already earns full marks.
		BillReferenceCeiling:   300,
		MarketPotentialCeiling: 85,

		TimelineFactors: map[string]float64{
			"immediately": 1.0,
			"3_months":    0.7,
			"6_months":    0.4,
			"researching": 0.1,
		},
		RoofTypeSuitability: map[string]float64{
			"asphalt_shingle": 1.0,
			"flat":            0.9,
			"metal":           0.9,
			"tile":            0.7,
			"slate":           0.4,
			"wood_shake":      0.3,
		},
		ShadingReference: 0.8,
		MaxRoofAge:       25,
		RoofAgePenalty:   0.7,

		UnknownFactor:               0.5,
		SuitabilityConfidenceWeight: 0.5,
		UnknownRoofConfidence:       0.85,
	}
}

// WeightSum returns the sum of the factor weights.
func WeightSum(c config.ScorerConfig) float64 {
	var sum float64
	for _, f := range Factors {
		sum += c.Weights[f]
	}
	return sum
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	known := make(map[string]bool, len(Factors))
	for _, f := range Factors {
		known[f] = true
	}
	var unknown []string
	for name, w := range c.Weights {
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", name))
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, fmt.Sprintf("weights.%s is not a known factor", name))
	}

	if WeightSum(c) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	// Thresholds must be monotonic within [0, 100].
	th := c.TierThresholds
	if th.Basic < 0 || th.Premium > 100 {
		errs = append(errs, "tier_thresholds must be between 0 and 100")
	}
	if th.Basic > th.Standard || th.Standard > th.Premium {
		errs = append(errs, "tier_thresholds must satisfy basic <= standard <= premium")
	}

	if c.BillReferenceCeiling <= 0 {
		errs = append(errs, "bill_reference_ceiling must be > 0")
	}
	if c.MarketPotentialCeiling <= 0 {
		errs = append(errs, "market_potential_ceiling must be > 0")
	}
	if c.ShadingReference <= 0 || c.ShadingReference > 1 {
		errs = append(errs, "shading_reference must be in (0, 1]")
	}
	if c.MaxRoofAge < 0 {
		errs = append(errs, "max_roof_age must be >= 0")
	}
	if c.RoofAgePenalty < 0 || c.RoofAgePenalty > 1 {
		errs = append(errs, "roof_age_penalty must be between 0 and 1")
	}

	units := []struct {
		name string
		v    float64
	}{
		{"unknown_factor", c.UnknownFactor},
		{"suitability_confidence_weight", c.SuitabilityConfidenceWeight},
		{"unknown_roof_confidence", c.UnknownRoofConfidence},
	}
	for _, u := range units {
		if u.v < 0 || u.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", u.name))
		}
	}

	errs = append(errs, checkUnitTable("timeline_factors", c.TimelineFactors)...)
	errs = append(errs, checkUnitTable("roof_type_suitability", c.RoofTypeSuitability)...)

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// checkUnitTable reports entries of a lookup table that fall outside [0, 1].
func checkUnitTable(name string, table map[string]float64) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []string
	for _, k := range keys {
		if v := table[k]; v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s.%s must be between 0 and 1", name, k))
		}
	}
	return errs
}
