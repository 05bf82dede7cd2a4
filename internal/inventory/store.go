// Package inventory holds the live buyer platform state that routing reads
// and reserves capacity against.
package inventory

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/model"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the shared platform inventory. Capacity is only ever changed
// through Reserve and Release, which are atomic per platform.
type Store interface {
	// Snapshot returns every platform ordered by platform code.
	Snapshot(ctx context.Context) ([]model.PlatformState, error)
	Get(ctx context.Context, code string) (model.PlatformState, error)

	// Reserve takes one unit of capacity if the platform is accepting leads
	// and has capacity left, returning what remains. Otherwise it fails
	// with model.ErrCapacityExhausted and leaves the platform unchanged.
	Reserve(ctx context.Context, code string) (int, error)

	// Release returns one unit of capacity, e.g. after a buyer rejects a lead.
	Release(ctx context.Context, code string) (int, error)

	SetAccepting(ctx context.Context, code string, accepting bool) error

	// Upsert inserts or replaces platform definitions.
	Upsert(ctx context.Context, states ...model.PlatformState) error

	Close() error
}

// Open connects the store selected by cfg.Driver. Remote drivers are wrapped
// with retries and a circuit breaker.
func Open(ctx context.Context, cfg config.InventoryConfig) (Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	var (
		st  Store
		err error
	)
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		st, err = NewRedis(ctx, cfg.URL)
	case DriverPostgres:
		st, err = NewPostgres(ctx, cfg.URL)
	case DriverSQLite:
		st, err = NewSQLite(ctx, cfg.URL)
	default:
		return nil, eris.Errorf("inventory: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("inventory: store opened", zap.String("driver", driver))
	return NewResilient(st, driver, cfg), nil
}

// PlatformFile is the YAML document of platform definitions.
type PlatformFile struct {
	Platforms []model.PlatformState `yaml:"platforms"`
}

// LoadPlatforms reads and validates platform definitions from a YAML file.
func LoadPlatforms(path string) ([]model.PlatformState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "inventory: read %s", path)
	}
	return ParsePlatforms(data)
}

// ParsePlatforms decodes and validates platform definitions.
func ParsePlatforms(data []byte) ([]model.PlatformState, error) {
	var f PlatformFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "inventory: parse platforms")
	}
	if len(f.Platforms) == 0 {
		return nil, eris.New("inventory: no platforms defined")
	}

	seen := make(map[string]bool, len(f.Platforms))
	for _, p := range f.Platforms {
		if err := Validate(p); err != nil {
			return nil, err
		}
		if seen[p.PlatformCode] {
			return nil, eris.Errorf("inventory: duplicate platform %s", p.PlatformCode)
		}
		seen[p.PlatformCode] = true
	}
	return f.Platforms, nil
}

// Seed loads the platform file at path into st and returns how many
// platforms were written.
func Seed(ctx context.Context, st Store, path string) (int, error) {
	platforms, err := LoadPlatforms(path)
	if err != nil {
		return 0, err
	}
	if err := st.Upsert(ctx, platforms...); err != nil {
		return 0, eris.Wrap(err, "inventory: seed")
	}
	zap.L().Info("inventory: seeded platforms", zap.Int("count", len(platforms)), zap.String("path", path))
	return len(platforms), nil
}

// Validate checks a platform definition.
func Validate(p model.PlatformState) error {
	var errs []string

	if strings.TrimSpace(p.PlatformCode) == "" {
		errs = append(errs, "platform_code is required")
	}
	if p.CommissionRate < 0 || p.CommissionRate > 1 {
		errs = append(errs, "commission_rate must be between 0 and 1")
	}
	if p.AcceptanceRate < 0 || p.AcceptanceRate > 1 {
		errs = append(errs, "acceptance_rate must be between 0 and 1")
	}
	if p.CapacityRemaining < 0 {
		errs = append(errs, "capacity_remaining must be >= 0")
	}
	for _, t := range p.TierEligibility {
		if !t.Qualified() {
			errs = append(errs, "tier_eligibility: "+string(t)+" is not a sellable tier")
			continue
		}
		price, ok := p.PriceByTier[t]
		if !ok {
			errs = append(errs, "price_by_tier: missing price for "+string(t))
		} else if price < 0 {
			errs = append(errs, "price_by_tier: "+string(t)+" must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Wrapf(model.ErrInvalidInput, "inventory: platform %q: %s", p.PlatformCode, strings.Join(errs, "; "))
	}
	return nil
}

func sortByCode(states []model.PlatformState) {
	sort.Slice(states, func(i, j int) bool { return states[i].PlatformCode < states[j].PlatformCode })
}

func unknownPlatform(code string) error {
	return eris.Wrapf(model.ErrUnknownPlatform, "inventory: platform %s", code)
}

func capacityExhausted(code string) error {
	return eris.Wrapf(model.ErrCapacityExhausted, "inventory: platform %s", code)
}
