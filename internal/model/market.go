// Package model defines the records exchanged between the qualification
// components and their collaborators.
package model

// IncentiveTable holds the incentive policy that applies to a market.
type IncentiveTable struct {
	FederalITCRate      float64 `json:"federal_itc_rate" yaml:"federal_itc_rate"`
	StateRebatePerKW    float64 `json:"state_rebate_per_kw" yaml:"state_rebate_per_kw"`
	StateRebateCap      float64 `json:"state_rebate_cap" yaml:"state_rebate_cap"`
	LocalAbatementRate  float64 `json:"local_abatement_rate" yaml:"local_abatement_rate"`
	LocalAbatementYears int     `json:"local_abatement_years" yaml:"local_abatement_years"`
}

// ZipMarketProfile is the resolved market for a single ZIP code. Values are
// read-only once produced by the resolver.
type ZipMarketProfile struct {
	ZipCode                     string         `json:"zip_code"`
	Borough                     string         `json:"borough"`
	Neighborhood                string         `json:"neighborhood,omitempty"`
	UtilityCode                 string         `json:"utility_code"`
	ElectricRatePerKWh          float64        `json:"electric_rate_per_kwh"`
	SolarIrradianceKWhPerKW     float64        `json:"solar_irradiance_kwh_per_kw"`
	CostPerWattBase             float64        `json:"cost_per_watt_base"`
	BoroughCostMultiplier       float64        `json:"borough_cost_multiplier"`
	BoroughIrradianceMultiplier float64        `json:"borough_irradiance_multiplier"`
	SolarPotentialScore         float64        `json:"solar_potential_score"`
	Incentives                  IncentiveTable `json:"incentive_table"`
}

// EffectiveIrradiance returns annual kWh produced per installed kW after the
// borough adjustment.
func (m ZipMarketProfile) EffectiveIrradiance() float64 {
	return m.SolarIrradianceKWhPerKW * m.BoroughIrradianceMultiplier
}

// InstalledCostPerWatt returns the borough-adjusted installed cost per watt.
func (m ZipMarketProfile) InstalledCostPerWatt() float64 {
	return m.CostPerWattBase * m.BoroughCostMultiplier
}
