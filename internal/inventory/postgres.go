package inventory

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/db"
	"github.com/sells-group/solar-router/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const platformColumns = `platform_code, price_by_tier, commission_rate, acceptance_rate, capacity_remaining, accepting_leads, tier_eligibility`

// PostgresStore keeps inventory in the platform_inventory table. Reservations
// are a single conditional UPDATE, so Postgres row locking serializes them
// per platform.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to Postgres at url.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, url, 10)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates or updates the inventory schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, s.pool, migrationFS, "migrations")
}

// Snapshot implements Store.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]model.PlatformState, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+platformColumns+` FROM platform_inventory ORDER BY platform_code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: snapshot")
	}
	defer rows.Close()

	var out []model.PlatformState
	for rows.Next() {
		st, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: snapshot rows")
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, code string) (model.PlatformState, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+platformColumns+` FROM platform_inventory WHERE platform_code = $1`, code)
	st, err := scanPlatform(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlatformState{}, unknownPlatform(code)
	}
	return st, err
}

// Reserve implements Store.
func (s *PostgresStore) Reserve(ctx context.Context, code string) (int, error) {
	var left int
	err := s.pool.QueryRow(ctx,
		`UPDATE platform_inventory
		    SET capacity_remaining = capacity_remaining - 1, updated_at = now()
		  WHERE platform_code = $1 AND accepting_leads AND capacity_remaining > 0
		  RETURNING capacity_remaining`,
		code,
	).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "postgres: reserve %s", code)
	}
	return 0, s.refusal(ctx, code)
}

// refusal tells an unknown platform apart from an unavailable one after a
// reservation matched no row.
func (s *PostgresStore) refusal(ctx context.Context, code string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM platform_inventory WHERE platform_code = $1)`, code,
	).Scan(&exists); err != nil {
		return eris.Wrapf(err, "postgres: check %s", code)
	}
	if !exists {
		return unknownPlatform(code)
	}
	return capacityExhausted(code)
}

// Release implements Store.
func (s *PostgresStore) Release(ctx context.Context, code string) (int, error) {
	var left int
	err := s.pool.QueryRow(ctx,
		`UPDATE platform_inventory
		    SET capacity_remaining = capacity_remaining + 1, updated_at = now()
		  WHERE platform_code = $1
		  RETURNING capacity_remaining`,
		code,
	).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, unknownPlatform(code)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: release %s", code)
	}
	return left, nil
}

// SetAccepting implements Store.
func (s *PostgresStore) SetAccepting(ctx context.Context, code string, accepting bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE platform_inventory SET accepting_leads = $1, updated_at = now() WHERE platform_code = $2`,
		accepting, code,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set accepting %s", code)
	}
	if tag.RowsAffected() == 0 {
		return unknownPlatform(code)
	}
	return nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, states ...model.PlatformState) error {
	rows, err := platformRows(states)
	if err != nil {
		return err
	}
	_, err = db.Upsert(ctx, s.pool, db.UpsertConfig{
		Table:        "platform_inventory",
		Columns:      []string{"platform_code", "price_by_tier", "commission_rate", "acceptance_rate", "capacity_remaining", "accepting_leads", "tier_eligibility"},
		ConflictKeys: []string{"platform_code"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert platforms")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// platformRows validates states and flattens them in platformColumns order.
func platformRows(states []model.PlatformState) ([][]any, error) {
	rows := make([][]any, 0, len(states))
	for _, st := range states {
		if err := Validate(st); err != nil {
			return nil, err
		}
		prices, err := encodePrices(st.PriceByTier)
		if err != nil {
			return nil, err
		}
		tiers, err := encodeTiers(st.TierEligibility)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{
			st.PlatformCode, prices, st.CommissionRate, st.AcceptanceRate,
			st.CapacityRemaining, st.AcceptingLeads, tiers,
		})
	}
	return rows, nil
}

// scanner is satisfied by pgx.Row, pgx.Rows and *sql.Row(s).
type scanner interface {
	Scan(dest ...any) error
}

func scanPlatform(row scanner) (model.PlatformState, error) {
	var (
		st            model.PlatformState
		prices, tiers string
	)
	if err := row.Scan(
		&st.PlatformCode, &prices, &st.CommissionRate, &st.AcceptanceRate,
		&st.CapacityRemaining, &st.AcceptingLeads, &tiers,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return st, err
		}
		return st, eris.Wrap(err, "inventory: scan platform")
	}

	var err error
	if st.PriceByTier, err = decodePrices(prices); err != nil {
		return st, err
	}
	if st.TierEligibility, err = decodeTiers(tiers); err != nil {
		return st, err
	}
	return st, nil
}
