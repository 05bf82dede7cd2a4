package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/scorer"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testConfig() *config.Config {
	return &config.Config{
		Solar:      config.SolarConfig{TargetOffset: 0.85, PanelWattage: 400, MaxSystemSizeKW: 20},
		Incentives: config.IncentiveConfig{FederalITCRate: 0.30},
		Cost:       config.CostConfig{AnalysisYears: 25},
		Financing: config.FinancingConfig{LoanTerms: []config.LoanTerm{
			{Years: 10, APR: 0.0699}, {Years: 20, APR: 0.0799},
		}},
		Scorer:    scorer.DefaultScorerConfig(),
		Routing:   config.RoutingConfig{RetryBound: 3},
		Inventory: config.InventoryConfig{Driver: "memory"},
		Reference: config.ReferenceConfig{MarketsPath: "testdata/markets.yaml", PlatformsPath: "testdata/platforms.yaml"},
		Cache:     config.CacheConfig{MaxEntries: 100},
		Batch:     config.BatchConfig{MaxConcurrentLeads: 4},
		Server:    config.ServerConfig{Port: 8080, RequestsPerSecond: 1000, AllowedOrigins: []string{"*"}},
	}
}

func testEnv(t *testing.T) *engineEnv {
	t.Helper()
	env, err := initEngine(context.Background(), testConfig(), "serve")
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}
