package scorer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-router/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

func newTestScorer(t *testing.T) *LeadScorer {
	t.Helper()
	s, err := New(DefaultScorerConfig())
	require.NoError(t, err)
	return s
}

func parkSlope() model.ZipMarketProfile {
	return model.ZipMarketProfile{
		ZipCode:             "11215",
		Borough:             "Brooklyn",
		Neighborhood:        "Park Slope",
		SolarPotentialScore: 88,
	}
}

func ownerProfile() model.CustomerProfile {
	return model.CustomerProfile{
		ZipCode:       "11215",
		MonthlyBill:   380,
		Homeownership: model.HomeownershipOwn,
		RoofType:      "asphalt_shingle",
		RoofAge:       ptrInt(8),
		ShadingFactor: ptrFloat64(0.85),
		Timeline:      model.TimelineImmediately,
	}
}

func TestScore_PremiumOwner(t *testing.T) {
	s := newTestScorer(t)

	got, err := s.Score(ownerProfile(), parkSlope())
	require.NoError(t, err)

	assert.Equal(t, 100, got.NumericScore)
	assert.Equal(t, model.TierPremium, got.QualityTier)
	assert.InDelta(t, 35, got.FactorBreakdown[FactorBillAmount], 0.001)
	assert.InDelta(t, 15, got.FactorBreakdown[FactorMarketDesirability], 0.001)
	assert.InDelta(t, 25, got.FactorBreakdown[FactorTimelineUrgency], 0.001)
	assert.InDelta(t, 25, got.FactorBreakdown[FactorRoofQuality], 0.001)
}

func TestScore_RenterGate(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name   string
		status model.Homeownership
	}{
		{"rent", model.HomeownershipRent},
		{"unknown", model.HomeownershipUnknown},
		{"not collected", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ownerProfile()
			p.Homeownership = tt.status
			p.MonthlyBill = 500

			got, err := s.Score(p, parkSlope())
			require.NoError(t, err)
			assert.Equal(t, 0, got.NumericScore)
			assert.Equal(t, model.TierUnqualified, got.QualityTier)
			assert.Equal(t, map[string]float64{GateOwnership: 0}, got.FactorBreakdown)
		})
	}
}

func TestScore_GateSkipsFactorValidation(t *testing.T) {
	s := newTestScorer(t)

	// A renter with otherwise invalid fields is still just unqualified.
	p := model.CustomerProfile{Homeownership: model.HomeownershipRent, MonthlyBill: -5}
	got, err := s.Score(p, model.ZipMarketProfile{})
	require.NoError(t, err)
	assert.Equal(t, model.TierUnqualified, got.QualityTier)
}

func TestScore_Idempotent(t *testing.T) {
	s := newTestScorer(t)
	p := ownerProfile()
	p.MonthlyBill = 150
	p.Timeline = model.Timeline6Months

	first, err := s.Score(p, parkSlope())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Score(p, parkSlope())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_Factors(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name   string
		mutate func(p *model.CustomerProfile, m *model.ZipMarketProfile)
		want   int
		tier   model.Tier
	}{
		{
			// 0.35*0.5 + 0.15*(55/85) + 0.25*0.7 + 0.25*(0.7*0.75) = 0.5783
			name: "mid-range owner",
			mutate: func(p *model.CustomerProfile, m *model.ZipMarketProfile) {
				p.MonthlyBill = 150
				m.SolarPotentialScore = 55
				p.Timeline = model.Timeline3Months
				p.RoofType = "tile"
				p.ShadingFactor = ptrFloat64(0.6)
			},
			want: 58,
			tier: model.TierBasic,
		},
		{
			// 0.35 + 0.15 + 0.25*0.1 + 0.25*0.7 = 0.70
			name: "researching with old roof",
			mutate: func(p *model.CustomerProfile, m *model.ZipMarketProfile) {
				p.Timeline = model.TimelineResearching
				p.RoofAge = ptrInt(30)
			},
			want: 70,
			tier: model.TierStandard,
		},
		{
			name: "no timeline contributes nothing",
			mutate: func(p *model.CustomerProfile, m *model.ZipMarketProfile) {
				p.Timeline = ""
			},
			want: 75,
			tier: model.TierStandard,
		},
		{
			name: "zero everything",
			mutate: func(p *model.CustomerProfile, m *model.ZipMarketProfile) {
				p.MonthlyBill = 0
				m.SolarPotentialScore = 0
				p.Timeline = ""
				p.ShadingFactor = ptrFloat64(0)
			},
			want: 0,
			tier: model.TierUnqualified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, m := ownerProfile(), parkSlope()
			tt.mutate(&p, &m)

			got, err := s.Score(p, m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.NumericScore)
			assert.Equal(t, tt.tier, got.QualityTier)

			var sum float64
			for _, v := range got.FactorBreakdown {
				sum += v
			}
			assert.InDelta(t, float64(got.NumericScore), sum, 0.6)
		})
	}
}

func TestScore_UnknownRoofAndShading(t *testing.T) {
	s := newTestScorer(t)

	p := ownerProfile()
	p.RoofType = "thatch"
	got, err := s.Score(p, parkSlope())
	require.NoError(t, err)
	assert.InDelta(t, 12.5, got.FactorBreakdown[FactorRoofQuality], 0.001)

	p = ownerProfile()
	p.ShadingFactor = nil
	got, err = s.Score(p, parkSlope())
	require.NoError(t, err)
	assert.InDelta(t, 12.5, got.FactorBreakdown[FactorRoofQuality], 0.001)
}

func TestScore_UnknownFactorConfigured(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.UnknownFactor = 0.2
	s, err := New(cfg)
	require.NoError(t, err)

	p := ownerProfile()
	p.RoofType = "thatch"
	got, err := s.Score(p, parkSlope())
	require.NoError(t, err)
	assert.InDelta(t, 5, got.FactorBreakdown[FactorRoofQuality], 0.001)
}

func TestRoofConfidence(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		roof string
		want float64
	}{
		{"asphalt_shingle", 1.0},
		{"tile", 0.85},
		{"wood_shake", 0.65},
		{"thatch", 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.roof, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.RoofConfidence(tt.roof), 1e-9)
		})
	}

	cfg := DefaultScorerConfig()
	cfg.SuitabilityConfidenceWeight = 1
	cfg.UnknownRoofConfidence = 0.6
	tuned, err := New(cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, tuned.RoofConfidence("tile"), 1e-9)
	assert.InDelta(t, 0.6, tuned.RoofConfidence("thatch"), 1e-9)
}

func TestScore_RoofTypeNormalized(t *testing.T) {
	s := newTestScorer(t)

	for _, roof := range []string{"Asphalt Shingle", "asphalt-shingle", " ASPHALT_SHINGLE "} {
		p := ownerProfile()
		p.RoofType = roof
		got, err := s.Score(p, parkSlope())
		require.NoError(t, err)
		assert.Equal(t, 100, got.NumericScore, roof)
	}
}

func TestScore_InvalidInput(t *testing.T) {
	s := newTestScorer(t)

	p := ownerProfile()
	p.MonthlyBill = -1
	_, err := s.Score(p, parkSlope())
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	p = ownerProfile()
	p.ShadingFactor = ptrFloat64(1.5)
	_, err = s.Score(p, parkSlope())
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestTier_Monotonic(t *testing.T) {
	s := newTestScorer(t)

	rank := map[model.Tier]int{
		model.TierUnqualified: 0,
		model.TierBasic:       1,
		model.TierStandard:    2,
		model.TierPremium:     3,
	}

	prev := -1
	for score := 0; score <= 100; score++ {
		r := rank[s.Tier(score)]
		assert.GreaterOrEqual(t, r, prev, "score %d", score)
		prev = r
	}

	assert.Equal(t, model.TierPremium, s.Tier(80))
	assert.Equal(t, model.TierStandard, s.Tier(79))
	assert.Equal(t, model.TierStandard, s.Tier(60))
	assert.Equal(t, model.TierBasic, s.Tier(40))
	assert.Equal(t, model.TierUnqualified, s.Tier(39))
}

func TestRoofSuitability(t *testing.T) {
	s := newTestScorer(t)

	v, ok := s.RoofSuitability("Metal")
	assert.True(t, ok)
	assert.InDelta(t, 0.9, v, 1e-9)

	_, ok = s.RoofSuitability("straw")
	assert.False(t, ok)
}
