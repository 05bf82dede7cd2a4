// Package sizing converts an electric bill into a solar system size.
package sizing

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
)

// minConfidence is the floor applied when the size cap binds.
const minConfidence = 0.1

// Result is the physical sizing of a system.
type Result struct {
	SystemSizeKW        float64 `json:"system_size_kw"`
	PanelCount          int     `json:"panel_count"`
	AnnualProductionKWh float64 `json:"annual_production_kwh"`
	AnnualUsageKWh      float64 `json:"annual_usage_kwh"`
	// UncappedSizeKW is the size the offset target called for before the cap.
	UncappedSizeKW float64 `json:"uncapped_size_kw"`
	Capped         bool    `json:"capped"`
	Confidence     float64 `json:"confidence"`
}

// Sizer sizes systems with the configured offset, panel wattage and cap.
type Sizer struct {
	cfg config.SolarConfig
}

// New creates a Sizer.
func New(cfg config.SolarConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size sizes a system using the configured target offset and panel wattage.
func (s *Sizer) Size(monthlyBill float64, market model.ZipMarketProfile, shadingFactor float64) (*Result, error) {
	return s.SizeWith(monthlyBill, market, shadingFactor, s.cfg.TargetOffset, s.cfg.PanelWattage)
}

// SizeWith sizes a system for an explicit target offset and panel wattage.
// The result is non-decreasing in monthlyBill and non-increasing in the
// market's electric rate.
func (s *Sizer) SizeWith(monthlyBill float64, market model.ZipMarketProfile, shadingFactor, targetOffset, panelWattage float64) (*Result, error) {
	irradiance := market.EffectiveIrradiance()

	switch {
	case monthlyBill <= 0:
		return nil, eris.Wrapf(model.ErrInvalidInput, "sizing: monthly_bill must be > 0 (got %.2f)", monthlyBill)
	case market.ElectricRatePerKWh <= 0:
		return nil, eris.Wrapf(model.ErrInvalidInput, "sizing: electric rate must be > 0 for zip %s", market.ZipCode)
	case irradiance <= 0:
		return nil, eris.Wrapf(model.ErrInvalidInput, "sizing: irradiance must be > 0 for zip %s", market.ZipCode)
	case shadingFactor <= 0 || shadingFactor > 1:
		return nil, eris.Wrapf(model.ErrInvalidInput, "sizing: shading_factor must be in (0, 1] (got %.2f)", shadingFactor)
	case targetOffset <= 0 || targetOffset > 1.5:
		return nil, eris.Wrapf(model.ErrInvalidInput, "sizing: target_offset must be in (0, 1.5] (got %.2f)", targetOffset)
	case panelWattage <= 0:
		return nil, eris.Wrapf(model.ErrInvalidInput, "sizing: panel_wattage must be > 0 (got %.0f)", panelWattage)
	}

	annualUsage := (monthlyBill / market.ElectricRatePerKWh) * 12
	requiredProduction := annualUsage * targetOffset
	yieldPerKW := irradiance * shadingFactor
	rawSizeKW := requiredProduction / yieldPerKW

	panels := int(math.Ceil(rawSizeKW * 1000 / panelWattage))
	uncapped := float64(panels) * panelWattage / 1000

	res := &Result{
		AnnualUsageKWh: annualUsage,
		UncappedSizeKW: uncapped,
		Confidence:     1.0,
	}

	if s.cfg.MaxSystemSizeKW > 0 && uncapped > s.cfg.MaxSystemSizeKW {
		panels = int(math.Floor(s.cfg.MaxSystemSizeKW * 1000 / panelWattage))
		res.Capped = true
	}

	res.PanelCount = panels
	res.SystemSizeKW = float64(panels) * panelWattage / 1000
	res.AnnualProductionKWh = round2(res.SystemSizeKW * yieldPerKW)

	if res.Capped {
		// Share of the offset target the capped system still covers.
		res.Confidence = math.Max(minConfidence, round2(res.SystemSizeKW/rawSizeKW))
	}

	return res, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
