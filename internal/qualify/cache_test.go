package qualify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-router/internal/model"
)

func TestCacheKey(t *testing.T) {
	withBill := func(bill float64) model.CustomerProfile {
		p := scenarioA()
		p.MonthlyBill = bill
		return p
	}
	withShading := func(s float64) model.CustomerProfile {
		p := scenarioA()
		p.ShadingFactor = ptr(s)
		return p
	}

	tests := []struct {
		name string
		a, b model.CustomerProfile
		same bool
	}{
		{"sub-cent bills differ", withBill(100.004), withBill(100.001), false},
		{"fine shading differs", withShading(0.85), withShading(0.85004), false},
		{"identical inputs", scenarioA(), scenarioA(), true},
		{"roof type normalized", scenarioA(), func() model.CustomerProfile {
			p := scenarioA()
			p.RoofType = " Asphalt_Shingle "
			return p
		}(), true},
		{"zip trimmed", scenarioA(), func() model.CustomerProfile {
			p := scenarioA()
			p.ZipCode = " 11215 "
			return p
		}(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, cacheKey(tt.a), cacheKey(tt.b))
			} else {
				assert.NotEqual(t, cacheKey(tt.a), cacheKey(tt.b))
			}
		})
	}
}

func TestEngine_RecommendCacheFullPrecision(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	p := scenarioA()
	p.ShadingFactor = ptr(0.85)
	_, err := e.Recommend(ctx, p)
	require.NoError(t, err)

	p.ShadingFactor = ptr(0.85004)
	_, err = e.Recommend(ctx, p)
	require.NoError(t, err)

	hits, misses, size := e.CacheStats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 2, size)
}
