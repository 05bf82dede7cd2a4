package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testPlatforms() []model.PlatformState {
	return []model.PlatformState{
		{
			PlatformCode:      "sunrun",
			PriceByTier:       map[model.Tier]float64{model.TierPremium: 275, model.TierStandard: 180},
			CommissionRate:    0.10,
			AcceptanceRate:    0.90,
			CapacityRemaining: 5,
			AcceptingLeads:    true,
			TierEligibility:   []model.Tier{model.TierPremium, model.TierStandard},
		},
		{
			PlatformCode:      "energysage",
			PriceByTier:       map[model.Tier]float64{model.TierPremium: 300},
			CommissionRate:    0.10,
			AcceptanceRate:    0.50,
			CapacityRemaining: 1,
			AcceptingLeads:    true,
			TierEligibility:   []model.Tier{model.TierPremium},
		},
	}
}

// storeContract exercises the behavior every Store must share.
func storeContract(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, testPlatforms()...))

	t.Run("snapshot ordered by code", func(t *testing.T) {
		snap, err := st.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, snap, 2)
		assert.Equal(t, "energysage", snap[0].PlatformCode)
		assert.Equal(t, "sunrun", snap[1].PlatformCode)
		assert.InDelta(t, 275, snap[1].PriceByTier[model.TierPremium], 1e-9)
		assert.Equal(t, []model.Tier{model.TierPremium, model.TierStandard}, snap[1].TierEligibility)
		assert.InDelta(t, 0.9, snap[1].AcceptanceRate, 1e-9)
		assert.True(t, snap[1].AcceptingLeads)
	})

	t.Run("reserve decrements", func(t *testing.T) {
		left, err := st.Reserve(ctx, "sunrun")
		require.NoError(t, err)
		assert.Equal(t, 4, left)

		got, err := st.Get(ctx, "sunrun")
		require.NoError(t, err)
		assert.Equal(t, 4, got.CapacityRemaining)
	})

	t.Run("reserve refuses at zero", func(t *testing.T) {
		left, err := st.Reserve(ctx, "energysage")
		require.NoError(t, err)
		assert.Equal(t, 0, left)

		_, err = st.Reserve(ctx, "energysage")
		assert.True(t, errors.Is(err, model.ErrCapacityExhausted), "got %v", err)

		got, err := st.Get(ctx, "energysage")
		require.NoError(t, err)
		assert.Equal(t, 0, got.CapacityRemaining)
	})

	t.Run("release restores", func(t *testing.T) {
		left, err := st.Release(ctx, "energysage")
		require.NoError(t, err)
		assert.Equal(t, 1, left)
	})

	t.Run("not accepting refuses", func(t *testing.T) {
		require.NoError(t, st.SetAccepting(ctx, "sunrun", false))
		_, err := st.Reserve(ctx, "sunrun")
		assert.True(t, errors.Is(err, model.ErrCapacityExhausted))

		got, err := st.Get(ctx, "sunrun")
		require.NoError(t, err)
		assert.False(t, got.AcceptingLeads)
		assert.Equal(t, 4, got.CapacityRemaining)

		require.NoError(t, st.SetAccepting(ctx, "sunrun", true))
		_, err = st.Reserve(ctx, "sunrun")
		assert.NoError(t, err)
	})

	t.Run("unknown platform", func(t *testing.T) {
		_, err := st.Get(ctx, "nope")
		assert.True(t, errors.Is(err, model.ErrUnknownPlatform), "got %v", err)
		_, err = st.Reserve(ctx, "nope")
		assert.True(t, errors.Is(err, model.ErrUnknownPlatform), "got %v", err)
		_, err = st.Release(ctx, "nope")
		assert.True(t, errors.Is(err, model.ErrUnknownPlatform), "got %v", err)
		assert.True(t, errors.Is(st.SetAccepting(ctx, "nope", true), model.ErrUnknownPlatform))
	})

	t.Run("upsert replaces definition", func(t *testing.T) {
		p := testPlatforms()[1]
		p.PriceByTier[model.TierPremium] = 320
		p.CapacityRemaining = 10
		require.NoError(t, st.Upsert(ctx, p))

		got, err := st.Get(ctx, "energysage")
		require.NoError(t, err)
		assert.InDelta(t, 320, got.PriceByTier[model.TierPremium], 1e-9)
		assert.Equal(t, 10, got.CapacityRemaining)
	})

	t.Run("upsert rejects invalid", func(t *testing.T) {
		bad := testPlatforms()[0]
		bad.AcceptanceRate = 2
		err := st.Upsert(ctx, bad)
		assert.True(t, errors.Is(err, model.ErrInvalidInput))
	})
}

// reserveConcurrently fires workers*perWorker reservations at one platform
// and returns how many succeeded.
func reserveConcurrently(t *testing.T, st Store, code string, workers, perWorker int) int64 {
	t.Helper()
	var ok atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := st.Reserve(context.Background(), code)
				if err == nil {
					ok.Add(1)
					continue
				}
				assert.True(t, errors.Is(err, model.ErrCapacityExhausted), "got %v", err)
			}
		}()
	}
	wg.Wait()
	return ok.Load()
}
