package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Solar      SolarConfig      `yaml:"solar" mapstructure:"solar"`
	Incentives IncentiveConfig  `yaml:"incentives" mapstructure:"incentives"`
	Cost       CostConfig       `yaml:"cost" mapstructure:"cost"`
	Financing  FinancingConfig  `yaml:"financing" mapstructure:"financing"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Inventory  InventoryConfig  `yaml:"inventory" mapstructure:"inventory"`
	Reference  ReferenceConfig  `yaml:"reference" mapstructure:"reference"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SolarConfig configures system sizing.
type SolarConfig struct {
	TargetOffset    float64 `yaml:"target_offset" mapstructure:"target_offset"`
	PanelWattage    float64 `yaml:"panel_wattage" mapstructure:"panel_wattage"`
	MaxSystemSizeKW float64 `yaml:"max_system_size_kw" mapstructure:"max_system_size_kw"`
}

// IncentiveConfig holds the incentive table applied to markets whose
// reference rows leave a field unset.
type IncentiveConfig struct {
	FederalITCRate      float64 `yaml:"federal_itc_rate" mapstructure:"federal_itc_rate"`
	StateRebatePerKW    float64 `yaml:"state_rebate_per_kw" mapstructure:"state_rebate_per_kw"`
	StateRebateCap      float64 `yaml:"state_rebate_cap" mapstructure:"state_rebate_cap"`
	LocalAbatementRate  float64 `yaml:"local_abatement_rate" mapstructure:"local_abatement_rate"`
	LocalAbatementYears int     `yaml:"local_abatement_years" mapstructure:"local_abatement_years"`
}

// CostConfig configures savings and payback modeling.
type CostConfig struct {
	// ExportCreditRate is the fraction of the retail rate credited for excess
	// production. 0 disables net metering.
	ExportCreditRate float64 `yaml:"export_credit_rate" mapstructure:"export_credit_rate"`
	// DegradationRate is the annual production loss used for lifetime savings.
	DegradationRate float64 `yaml:"degradation_rate" mapstructure:"degradation_rate"`
	AnalysisYears   int     `yaml:"analysis_years" mapstructure:"analysis_years"`
}

// LoanTerm is a single financing product.
type LoanTerm struct {
	Years int     `yaml:"years" mapstructure:"years"`
	APR   float64 `yaml:"apr" mapstructure:"apr"`
}

// FinancingConfig lists the loan products offered with a recommendation.
type FinancingConfig struct {
	LoanTerms []LoanTerm `yaml:"loan_terms" mapstructure:"loan_terms"`
}

// TierThresholds are the minimum scores for each tier.
type TierThresholds struct {
	Premium  int `yaml:"premium" mapstructure:"premium"`
	Standard int `yaml:"standard" mapstructure:"standard"`
	Basic    int `yaml:"basic" mapstructure:"basic"`
}

// ScorerConfig holds lead scoring weights, lookup tables and tier thresholds.
type ScorerConfig struct {
	Weights                map[string]float64 `yaml:"weights" mapstructure:"weights"`
	TierThresholds         TierThresholds     `yaml:"tier_thresholds" mapstructure:"tier_thresholds"`
	BillReferenceCeiling   float64            `yaml:"bill_reference_ceiling" mapstructure:"bill_reference_ceiling"`
	MarketPotentialCeiling float64            `yaml:"market_potential_ceiling" mapstructure:"market_potential_ceiling"`
	TimelineFactors        map[string]float64 `yaml:"timeline_factors" mapstructure:"timeline_factors"`
	RoofTypeSuitability    map[string]float64 `yaml:"roof_type_suitability" mapstructure:"roof_type_suitability"`
	ShadingReference       float64            `yaml:"shading_reference" mapstructure:"shading_reference"`
	MaxRoofAge             int                `yaml:"max_roof_age" mapstructure:"max_roof_age"`
	RoofAgePenalty         float64            `yaml:"roof_age_penalty" mapstructure:"roof_age_penalty"`

	// UnknownFactor stands in for an unrecognized roof type or a shading
	// factor that was never collected.
	UnknownFactor float64 `yaml:"unknown_factor" mapstructure:"unknown_factor"`
	// Recommendation confidence is scaled by
	// (1 - SuitabilityConfidenceWeight) + SuitabilityConfidenceWeight*suitability,
	// or by UnknownRoofConfidence when the roof type is not recognized.
	SuitabilityConfidenceWeight float64 `yaml:"suitability_confidence_weight" mapstructure:"suitability_confidence_weight"`
	UnknownRoofConfidence       float64 `yaml:"unknown_roof_confidence" mapstructure:"unknown_roof_confidence"`
}

// RoutingConfig configures lead routing.
type RoutingConfig struct {
	RetryBound int `yaml:"retry_bound" mapstructure:"retry_bound"`
}

// InventoryConfig selects the platform inventory backend.
type InventoryConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, redis, postgres, sqlite
	URL    string `yaml:"url" mapstructure:"url"`

	RetryAttempts        int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInitialMs       int `yaml:"retry_initial_ms" mapstructure:"retry_initial_ms"`
	BreakerThreshold     int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetTimeSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ReferenceConfig points at the reference data files injected at startup.
type ReferenceConfig struct {
	MarketsPath   string `yaml:"markets_path" mapstructure:"markets_path"`
	PlatformsPath string `yaml:"platforms_path" mapstructure:"platforms_path"`
}

// CacheConfig bounds the recommendation cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// BatchConfig configures batch qualification.
type BatchConfig struct {
	MaxConcurrentLeads int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solar.target_offset", 0.85)
	v.SetDefault("solar.panel_wattage", 400)
	v.SetDefault("solar.max_system_size_kw", 20)

	v.SetDefault("incentives.federal_itc_rate", 0.30)
	v.SetDefault("incentives.state_rebate_per_kw", 0)
	v.SetDefault("incentives.state_rebate_cap", 0)
	v.SetDefault("incentives.local_abatement_rate", 0)
	v.SetDefault("incentives.local_abatement_years", 0)

	v.SetDefault("cost.export_credit_rate", 0)
	v.SetDefault("cost.degradation_rate", 0)
	v.SetDefault("cost.analysis_years", 25)

	v.SetDefault("financing.loan_terms", []map[string]any{
		{"years": 10, "apr": 0.0699},
		{"years": 15, "apr": 0.0749},
		{"years": 20, "apr": 0.0799},
	})

	v.SetDefault("scorer.weights", map[string]float64{
		"bill_amount":         0.35,
		"market_desirability": 0.15,
		"timeline_urgency":    0.25,
		"roof_quality":        0.25,
	})
	v.SetDefault("scorer.tier_thresholds.premium", 80)
	v.SetDefault("scorer.tier_thresholds.standard", 60)
	v.SetDefault("scorer.tier_thresholds.basic", 40)
	v.SetDefault("scorer.bill_reference_ceiling", 300)
	v.SetDefault("scorer.market_potential_ceiling", 85)
	v.SetDefault("scorer.timeline_factors", map[string]float64{
		"immediately": 1.0,
		"3_months":    0.7,
		"6_months":    0.4,
		"researching": 0.1,
	})
	v.SetDefault("scorer.roof_type_suitability", map[string]float64{
		"asphalt_shingle": 1.0,
		"flat":            0.9,
		"metal":           0.9,
		"tile":            0.7,
		"slate":           0.4,
		"wood_shake":      0.3,
	})
	v.SetDefault("scorer.shading_reference", 0.8)
	v.SetDefault("scorer.max_roof_age", 25)
	v.SetDefault("scorer.roof_age_penalty", 0.7)
	v.SetDefault("scorer.unknown_factor", 0.5)
	v.SetDefault("scorer.suitability_confidence_weight", 0.5)
	v.SetDefault("scorer.unknown_roof_confidence", 0.85)

	v.SetDefault("routing.retry_bound", 3)

	v.SetDefault("inventory.driver", "memory")
	v.SetDefault("inventory.retry_attempts", 3)
	v.SetDefault("inventory.retry_initial_ms", 50)
	v.SetDefault("inventory.breaker_threshold", 5)
	v.SetDefault("inventory.breaker_reset_secs", 30)

	v.SetDefault("reference.markets_path", "configs/markets.yaml")
	v.SetDefault("reference.platforms_path", "configs/platforms.yaml")

	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("batch.max_concurrent_leads", 8)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 50)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
