package resilience

import (
	"time"

	"github.com/sells-group/solar-router/internal/config"
)

// FromInventoryConfig builds the retry and breaker settings for an inventory
// backend. Zero values fall back to the package defaults.
func FromInventoryConfig(cfg config.InventoryConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryInitialMs > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryInitialMs) * time.Millisecond
	}

	breaker := DefaultCircuitBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerResetTimeSecs > 0 {
		breaker.ResetTimeout = time.Duration(cfg.BreakerResetTimeSecs) * time.Second
	}
	return retry, breaker
}
