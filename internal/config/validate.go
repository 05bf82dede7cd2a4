package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var inventoryDrivers = map[string]bool{
	"memory":   true,
	"redis":    true,
	"postgres": true,
	"sqlite":   true,
}

// Validate checks the sections required by the given command mode
// ("qualify", "batch", "serve" or "inventory"). Scorer settings are validated
// by the scorer package.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "qualify", "inventory":
	case "batch":
		if c.Batch.MaxConcurrentLeads < 1 || c.Batch.MaxConcurrentLeads > 64 {
			errs = append(errs, "batch.max_concurrent_leads must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RequestsPerSecond <= 0 {
			errs = append(errs, "server.requests_per_second must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Solar.TargetOffset <= 0 || c.Solar.TargetOffset > 1.5 {
		errs = append(errs, "solar.target_offset must be in (0, 1.5]")
	}
	if c.Solar.PanelWattage <= 0 {
		errs = append(errs, "solar.panel_wattage must be > 0")
	}
	if c.Solar.MaxSystemSizeKW <= 0 {
		errs = append(errs, "solar.max_system_size_kw must be > 0")
	}

	if c.Incentives.FederalITCRate < 0 || c.Incentives.FederalITCRate > 1 {
		errs = append(errs, "incentives.federal_itc_rate must be in [0, 1]")
	}
	if c.Incentives.StateRebatePerKW < 0 || c.Incentives.StateRebateCap < 0 {
		errs = append(errs, "incentives.state_rebate_* must be >= 0")
	}

	if c.Cost.ExportCreditRate < 0 || c.Cost.ExportCreditRate > 1 {
		errs = append(errs, "cost.export_credit_rate must be in [0, 1]")
	}
	if c.Cost.DegradationRate < 0 || c.Cost.DegradationRate >= 1 {
		errs = append(errs, "cost.degradation_rate must be in [0, 1)")
	}

	for i, t := range c.Financing.LoanTerms {
		if t.Years <= 0 {
			errs = append(errs, fmt.Sprintf("financing.loan_terms[%d].years must be > 0", i))
		}
		if t.APR < 0 {
			errs = append(errs, fmt.Sprintf("financing.loan_terms[%d].apr must be >= 0", i))
		}
	}

	if c.Routing.RetryBound < 0 {
		errs = append(errs, "routing.retry_bound must be >= 0")
	}
	if !inventoryDrivers[c.Inventory.Driver] {
		errs = append(errs, fmt.Sprintf("inventory.driver %q is not supported", c.Inventory.Driver))
	}
	if c.Inventory.Driver != "memory" && c.Inventory.URL == "" {
		errs = append(errs, "inventory.url is required for the "+c.Inventory.Driver+" driver")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
