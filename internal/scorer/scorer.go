package scorer

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
)

// LeadScorer scores customer profiles. It holds no mutable state and is safe
// for concurrent use.
type LeadScorer struct {
	cfg       config.ScorerConfig
	weightSum float64
}

// New validates cfg and creates a LeadScorer.
func New(cfg config.ScorerConfig) (*LeadScorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &LeadScorer{cfg: cfg, weightSum: WeightSum(cfg)}, nil
}

// Score computes the lead score for a profile in its market. Profiles whose
// homeownership is anything but "own" score 0 without evaluating any factor.
func (s *LeadScorer) Score(p model.CustomerProfile, market model.ZipMarketProfile) (model.LeadScore, error) {
	if p.Homeownership != model.HomeownershipOwn {
		return model.LeadScore{
			NumericScore:    0,
			QualityTier:     model.TierUnqualified,
			FactorBreakdown: map[string]float64{GateOwnership: 0},
		}, nil
	}

	if p.MonthlyBill < 0 {
		return model.LeadScore{}, eris.Wrapf(model.ErrInvalidInput, "scorer: monthly_bill must be >= 0 (got %.2f)", p.MonthlyBill)
	}
	if sh := p.ShadingFactor; sh != nil && (*sh < 0 || *sh > 1) {
		return model.LeadScore{}, eris.Wrapf(model.ErrInvalidInput, "scorer: shading_factor must be in [0, 1] (got %.2f)", *sh)
	}

	factors := map[string]float64{
		FactorBillAmount:         s.billFactor(p.MonthlyBill),
		FactorMarketDesirability: s.marketFactor(market.SolarPotentialScore),
		FactorTimelineUrgency:    s.cfg.TimelineFactors[string(p.Timeline)],
		FactorRoofQuality:        s.roofFactor(p),
	}

	var weighted float64
	breakdown := make(map[string]float64, len(Factors))
	for _, name := range Factors {
		contrib := s.cfg.Weights[name] * factors[name]
		weighted += contrib
		breakdown[name] = math.Round(100*contrib/s.weightSum*100) / 100
	}

	score := int(math.Round(100 * weighted / s.weightSum))
	score = max(0, min(100, score))

	return model.LeadScore{
		NumericScore:    score,
		QualityTier:     s.Tier(score),
		FactorBreakdown: breakdown,
	}, nil
}

// Tier maps a numeric score onto the configured thresholds.
func (s *LeadScorer) Tier(score int) model.Tier {
	th := s.cfg.TierThresholds
	switch {
	case score >= th.Premium:
		return model.TierPremium
	case score >= th.Standard:
		return model.TierStandard
	case score >= th.Basic:
		return model.TierBasic
	default:
		return model.TierUnqualified
	}
}

// RoofSuitability returns the configured suitability of a roof type and
// whether the type was recognized.
func (s *LeadScorer) RoofSuitability(roofType string) (float64, bool) {
	v, ok := s.cfg.RoofTypeSuitability[NormalizeRoofType(roofType)]
	return v, ok
}

// RoofConfidence returns the multiplier applied to sizing confidence for a
// roof type.
func (s *LeadScorer) RoofConfidence(roofType string) float64 {
	suit, ok := s.RoofSuitability(roofType)
	if !ok {
		return s.cfg.UnknownRoofConfidence
	}
	w := s.cfg.SuitabilityConfidenceWeight
	return 1 - w + w*suit
}

// NormalizeRoofType lowercases a roof type and joins words with underscores,
// so "Asphalt Shingle" and "asphalt-shingle" match asphalt_shingle.
func NormalizeRoofType(roofType string) string {
	r := strings.ToLower(strings.TrimSpace(roofType))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(r)
}

func (s *LeadScorer) billFactor(bill float64) float64 {
	return math.Min(bill/s.cfg.BillReferenceCeiling, 1)
}

func (s *LeadScorer) marketFactor(potential float64) float64 {
	return math.Max(0, math.Min(potential/s.cfg.MarketPotentialCeiling, 1))
}

// roofFactor combines roof-type suitability, shading and roof age.
func (s *LeadScorer) roofFactor(p model.CustomerProfile) float64 {
	suitability, ok := s.RoofSuitability(p.RoofType)
	if !ok {
		suitability = s.cfg.UnknownFactor
	}

	shading := s.cfg.UnknownFactor
	if p.ShadingFactor != nil {
		shading = math.Min(*p.ShadingFactor/s.cfg.ShadingReference, 1)
	}

	age := 1.0
	if p.RoofAge != nil && s.cfg.MaxRoofAge > 0 && *p.RoofAge > s.cfg.MaxRoofAge {
		age = s.cfg.RoofAgePenalty
	}

	return suitability * shading * age
}
