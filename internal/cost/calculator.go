// Package cost prices a sized solar system and works out incentives,
// savings and payback.
package cost

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
	"github.com/sells-group/solar-router/internal/sizing"
)

// Incentive names, in the order they are applied.
const (
	IncentiveFederalITC     = "federal_itc"
	IncentiveStateRebate    = "state_rebate"
	IncentiveLocalAbatement = "local_abatement"
)

const defaultAnalysisYears = 25

// Result holds the cost and savings side of a recommendation.
type Result struct {
	GrossCost           float64           `json:"gross_cost"`
	Incentives          []model.Incentive `json:"incentives_applied"`
	NetCost             float64           `json:"net_cost"`
	ResidualMonthlyBill float64           `json:"residual_monthly_bill"`
	MonthlySavings      float64           `json:"monthly_savings"`
	PaybackYears        *float64          `json:"payback_years"`
	LifetimeSavings     float64           `json:"lifetime_savings_25yr"`
	Viable              bool              `json:"viable"`
}

// Calculator computes costs for sized systems.
type Calculator struct {
	cfg config.CostConfig
}

// NewCalculator creates a Calculator with the given config.
func NewCalculator(cfg config.CostConfig) *Calculator {
	if cfg.AnalysisYears <= 0 {
		cfg.AnalysisYears = defaultAnalysisYears
	}
	return &Calculator{cfg: cfg}
}

// Calculate prices the sized system for the market. A result with
// Viable=false and nil PaybackYears is returned when the system saves nothing;
// callers report that as model.ErrNonViableRecommendation.
func (c *Calculator) Calculate(sz *sizing.Result, monthlyBill float64, market model.ZipMarketProfile) (*Result, error) {
	if sz == nil {
		return nil, eris.Wrap(model.ErrInvalidInput, "cost: nil sizing")
	}
	if sz.SystemSizeKW < 0 || monthlyBill <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidInput, "cost: size %.2f kW, bill %.2f", sz.SystemSizeKW, monthlyBill)
	}
	if market.ElectricRatePerKWh <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidInput, "cost: electric rate must be > 0 for zip %s", market.ZipCode)
	}

	inc := market.Incentives
	gross := cents(sz.SystemSizeKW * 1000 * market.InstalledCostPerWatt())

	itc := cents(gross * inc.FederalITCRate)
	rebate := cents(math.Min(sz.SystemSizeKW*inc.StateRebatePerKW, inc.StateRebateCap))
	net := cents(math.Max(0, gross-itc-rebate))

	res := &Result{GrossCost: gross, NetCost: net}
	if itc > 0 {
		res.Incentives = append(res.Incentives, model.Incentive{
			Name: IncentiveFederalITC, Amount: itc, Type: model.IncentiveTaxCredit, ReducesNetCost: true,
		})
	}
	if rebate > 0 {
		res.Incentives = append(res.Incentives, model.Incentive{
			Name: IncentiveStateRebate, Amount: rebate, Type: model.IncentiveRebate, ReducesNetCost: true,
		})
	}
	// Local abatement is paid out over several years and is reported as its
	// own line; it never reduces net cost.
	if abatement := cents(gross * inc.LocalAbatementRate * float64(inc.LocalAbatementYears)); abatement > 0 {
		res.Incentives = append(res.Incentives, model.Incentive{
			Name: IncentiveLocalAbatement, Amount: abatement, Type: model.IncentiveOngoingCredit,
			Years: inc.LocalAbatementYears,
		})
	}

	rate := market.ElectricRatePerKWh
	residualKWh := math.Max(0, sz.AnnualUsageKWh-sz.AnnualProductionKWh)
	res.ResidualMonthlyBill = cents(residualKWh * rate / 12)

	savings := math.Max(0, monthlyBill-res.ResidualMonthlyBill)
	if c.cfg.ExportCreditRate > 0 {
		excessKWh := math.Max(0, sz.AnnualProductionKWh-sz.AnnualUsageKWh)
		savings += excessKWh * rate * c.cfg.ExportCreditRate / 12
	}
	res.MonthlySavings = cents(savings)

	if res.MonthlySavings > 0 {
		payback := round(res.NetCost/(res.MonthlySavings*12), 2)
		res.PaybackYears = &payback
		res.Viable = true
	}

	res.LifetimeSavings = cents(c.lifetimeSavings(res.MonthlySavings) - res.NetCost)
	return res, nil
}

// lifetimeSavings sums annual savings over the analysis period, reducing each
// year by the configured degradation rate.
func (c *Calculator) lifetimeSavings(monthly float64) float64 {
	annual := monthly * 12
	if c.cfg.DegradationRate <= 0 {
		return annual * float64(c.cfg.AnalysisYears)
	}
	var total float64
	for y := 0; y < c.cfg.AnalysisYears; y++ {
		total += annual * math.Pow(1-c.cfg.DegradationRate, float64(y))
	}
	return total
}

func cents(v float64) float64 {
	return round(v, 2)
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
