package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
)

func TestLoadPlatforms(t *testing.T) {
	platforms, err := LoadPlatforms("testdata/platforms.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, platforms)

	sunrun := platforms[0]
	assert.Equal(t, "sunrun", sunrun.PlatformCode)
	assert.InDelta(t, 275, sunrun.PriceByTier[model.TierPremium], 1e-9)
	assert.True(t, sunrun.Eligible(model.TierBasic))
	assert.True(t, sunrun.Available())
}

func TestParsePlatforms_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "platforms: []", "no platforms"},
		{"malformed", "platforms: [nope", "parse platforms"},
		{
			"duplicate",
			`
platforms:
  - {platform_code: a, acceptance_rate: 0.5}
  - {platform_code: a, acceptance_rate: 0.5}`,
			"duplicate platform a",
		},
		{
			"missing price",
			`
platforms:
  - {platform_code: a, acceptance_rate: 0.5, tier_eligibility: [premium]}`,
			"missing price for premium",
		},
		{
			"unsellable tier",
			`
platforms:
  - {platform_code: a, acceptance_rate: 0.5, tier_eligibility: [unqualified], price_by_tier: {unqualified: 1}}`,
			"not a sellable tier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlatforms([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := testPlatforms()[0]
	require.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		mutate func(p *model.PlatformState)
	}{
		{"blank code", func(p *model.PlatformState) { p.PlatformCode = " " }},
		{"commission above one", func(p *model.PlatformState) { p.CommissionRate = 1.5 }},
		{"negative acceptance", func(p *model.PlatformState) { p.AcceptanceRate = -0.1 }},
		{"negative capacity", func(p *model.PlatformState) { p.CapacityRemaining = -1 }},
		{"negative price", func(p *model.PlatformState) { p.PriceByTier[model.TierPremium] = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlatforms()[0]
			tt.mutate(&p)
			err := Validate(p)
			assert.True(t, errors.Is(err, model.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestSeed(t *testing.T) {
	st := NewMemoryStore()
	n, err := Seed(context.Background(), st, "testdata/platforms.yaml")
	require.NoError(t, err)

	snap, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap, n)

	_, err = Seed(context.Background(), st, "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.InventoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = Open(ctx, config.InventoryConfig{Driver: "SQLite", URL: t.TempDir() + "/open.db"})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	rs, ok := st.(*ResilientStore)
	require.True(t, ok)
	assert.IsType(t, &SQLiteStore{}, rs.Unwrap())

	_, err = Open(ctx, config.InventoryConfig{Driver: "cassandra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
