// Package geo resolves ZIP codes to solar market profiles.
package geo

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Utility is a utility territory and its retail electric rate.
type Utility struct {
	Code               string  `yaml:"code"`
	Name               string  `yaml:"name"`
	ElectricRatePerKWh float64 `yaml:"electric_rate_per_kwh"`
}

// Borough carries the cost and irradiance adjustments for a borough.
type Borough struct {
	Name                 string  `yaml:"name"`
	CostMultiplier       float64 `yaml:"cost_multiplier"`
	IrradianceMultiplier float64 `yaml:"irradiance_multiplier"`
}

// IncentiveRow is an incentive table in which any field may be left unset.
type IncentiveRow struct {
	FederalITCRate      *float64 `yaml:"federal_itc_rate"`
	StateRebatePerKW    *float64 `yaml:"state_rebate_per_kw"`
	StateRebateCap      *float64 `yaml:"state_rebate_cap"`
	LocalAbatementRate  *float64 `yaml:"local_abatement_rate"`
	LocalAbatementYears *int     `yaml:"local_abatement_years"`
}

// ZipRow is one ZIP code in the reference table.
type ZipRow struct {
	ZipCode                 string  `yaml:"zip_code"`
	Borough                 string  `yaml:"borough"`
	Neighborhood            string  `yaml:"neighborhood"`
	UtilityCode             string  `yaml:"utility_code"`
	SolarIrradianceKWhPerKW float64 `yaml:"solar_irradiance_kwh_per_kw"`
	CostPerWattBase         float64 `yaml:"cost_per_watt_base"`
	SolarPotentialScore     float64 `yaml:"solar_potential_score"`

	// ElectricRatePerKWh overrides the utility rate when non-zero.
	ElectricRatePerKWh float64       `yaml:"electric_rate_per_kwh"`
	Incentives         *IncentiveRow `yaml:"incentives"`
}

// Reference is the static market reference table supplied by the data
// collaborator.
type Reference struct {
	Utilities  []Utility    `yaml:"utilities"`
	Boroughs   []Borough    `yaml:"boroughs"`
	Incentives IncentiveRow `yaml:"incentives"`
	Zips       []ZipRow     `yaml:"zips"`
}

// LoadReference reads a YAML reference table from path.
func LoadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read reference %s", path)
	}
	return ParseReference(data)
}

// ParseReference decodes a YAML reference table.
func ParseReference(data []byte) (*Reference, error) {
	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, eris.Wrap(err, "geo: parse reference")
	}
	if len(ref.Zips) == 0 {
		return nil, eris.New("geo: reference has no zip rows")
	}
	return &ref, nil
}
