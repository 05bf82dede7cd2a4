package geo

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
)

// Resolver maps ZIP codes to market profiles. The index is built once and
// never mutated, so Resolve is safe for concurrent use without locking.
type Resolver struct {
	markets map[string]model.ZipMarketProfile
}

// NewResolver joins each ZIP row with its utility and borough. Incentive
// fields are taken from the ZIP row, then the reference table, then defaults.
func NewResolver(ref *Reference, defaults config.IncentiveConfig) (*Resolver, error) {
	if ref == nil {
		return nil, eris.New("geo: nil reference")
	}

	utilities := make(map[string]Utility, len(ref.Utilities))
	for _, u := range ref.Utilities {
		utilities[u.Code] = u
	}
	boroughs := make(map[string]Borough, len(ref.Boroughs))
	for _, b := range ref.Boroughs {
		boroughs[b.Name] = b
	}

	base := applyIncentives(fromConfig(defaults), ref.Incentives)

	markets := make(map[string]model.ZipMarketProfile, len(ref.Zips))
	for _, row := range ref.Zips {
		zip := strings.TrimSpace(row.ZipCode)
		if !validZip(zip) {
			return nil, eris.Errorf("geo: malformed zip code %q in reference", row.ZipCode)
		}
		if _, dup := markets[zip]; dup {
			return nil, eris.Errorf("geo: duplicate zip code %s in reference", zip)
		}

		util, ok := utilities[row.UtilityCode]
		if !ok {
			return nil, eris.Errorf("geo: zip %s references unknown utility %q", zip, row.UtilityCode)
		}
		borough, ok := boroughs[row.Borough]
		if !ok {
			return nil, eris.Errorf("geo: zip %s references unknown borough %q", zip, row.Borough)
		}

		rate := util.ElectricRatePerKWh
		if row.ElectricRatePerKWh > 0 {
			rate = row.ElectricRatePerKWh
		}

		incentives := base
		if row.Incentives != nil {
			incentives = applyIncentives(base, *row.Incentives)
		}

		markets[zip] = model.ZipMarketProfile{
			ZipCode:                     zip,
			Borough:                     borough.Name,
			Neighborhood:                row.Neighborhood,
			UtilityCode:                 util.Code,
			ElectricRatePerKWh:          rate,
			SolarIrradianceKWhPerKW:     row.SolarIrradianceKWhPerKW,
			CostPerWattBase:             row.CostPerWattBase,
			BoroughCostMultiplier:       multiplierOrOne(borough.CostMultiplier),
			BoroughIrradianceMultiplier: multiplierOrOne(borough.IrradianceMultiplier),
			SolarPotentialScore:         row.SolarPotentialScore,
			Incentives:                  incentives,
		}
	}

	zap.L().Debug("geo: resolver built",
		zap.Int("zips", len(markets)),
		zap.Int("utilities", len(utilities)),
		zap.Int("boroughs", len(boroughs)),
	)

	return &Resolver{markets: markets}, nil
}

// Resolve returns the market profile for a ZIP code.
func (r *Resolver) Resolve(zip string) (model.ZipMarketProfile, error) {
	zip = strings.TrimSpace(zip)
	if !validZip(zip) {
		return model.ZipMarketProfile{}, eris.Wrapf(model.ErrInvalidInput, "geo: malformed zip code %q", zip)
	}
	m, ok := r.markets[zip]
	if !ok {
		return model.ZipMarketProfile{}, eris.Wrapf(model.ErrOutOfServiceArea, "geo: zip %s", zip)
	}
	return m, nil
}

// Len returns the number of ZIP codes served.
func (r *Resolver) Len() int {
	return len(r.markets)
}

// ZipCodes returns the served ZIP codes in ascending order.
func (r *Resolver) ZipCodes() []string {
	zips := make([]string, 0, len(r.markets))
	for z := range r.markets {
		zips = append(zips, z)
	}
	sort.Strings(zips)
	return zips
}

func validZip(zip string) bool {
	if len(zip) != 5 {
		return false
	}
	for _, c := range zip {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

func multiplierOrOne(m float64) float64 {
	if m <= 0 {
		return 1
	}
	return m
}

func fromConfig(c config.IncentiveConfig) model.IncentiveTable {
	return model.IncentiveTable{
		FederalITCRate:      c.FederalITCRate,
		StateRebatePerKW:    c.StateRebatePerKW,
		StateRebateCap:      c.StateRebateCap,
		LocalAbatementRate:  c.LocalAbatementRate,
		LocalAbatementYears: c.LocalAbatementYears,
	}
}

// applyIncentives overlays the fields set in row onto t.
func applyIncentives(t model.IncentiveTable, row IncentiveRow) model.IncentiveTable {
	if row.FederalITCRate != nil {
		t.FederalITCRate = *row.FederalITCRate
	}
	if row.StateRebatePerKW != nil {
		t.StateRebatePerKW = *row.StateRebatePerKW
	}
	if row.StateRebateCap != nil {
		t.StateRebateCap = *row.StateRebateCap
	}
	if row.LocalAbatementRate != nil {
		t.LocalAbatementRate = *row.LocalAbatementRate
	}
	if row.LocalAbatementYears != nil {
		t.LocalAbatementYears = *row.LocalAbatementYears
	}
	return t
}
