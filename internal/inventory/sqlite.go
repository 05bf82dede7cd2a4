package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/solar-router/internal/model"
)

// SQLiteStore keeps inventory in a local SQLite file. All access goes
// through one connection, so reservations are serialized.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens the database at dsn, configures WAL mode and creates the
// schema if needed.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "inventory.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS platform_inventory (
	platform_code      TEXT PRIMARY KEY,
	price_by_tier      TEXT NOT NULL DEFAULT '{}',
	commission_rate    REAL NOT NULL,
	acceptance_rate    REAL NOT NULL,
	capacity_remaining INTEGER NOT NULL CHECK (capacity_remaining >= 0),
	accepting_leads    BOOLEAN NOT NULL DEFAULT 1,
	tier_eligibility   TEXT NOT NULL DEFAULT '[]',
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the inventory schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]model.PlatformState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+platformColumns+` FROM platform_inventory ORDER BY platform_code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: snapshot")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PlatformState
	for rows.Next() {
		st, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: snapshot rows")
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, code string) (model.PlatformState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+platformColumns+` FROM platform_inventory WHERE platform_code = ?`, code)
	st, err := scanPlatform(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlatformState{}, unknownPlatform(code)
	}
	return st, err
}

// Reserve implements Store.
func (s *SQLiteStore) Reserve(ctx context.Context, code string) (int, error) {
	var left int
	err := s.db.QueryRowContext(ctx,
		`UPDATE platform_inventory
		    SET capacity_remaining = capacity_remaining - 1, updated_at = datetime('now')
		  WHERE platform_code = ? AND accepting_leads AND capacity_remaining > 0
		  RETURNING capacity_remaining`,
		code,
	).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, eris.Wrapf(err, "sqlite: reserve %s", code)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM platform_inventory WHERE platform_code = ?)`, code,
	).Scan(&exists); err != nil {
		return 0, eris.Wrapf(err, "sqlite: check %s", code)
	}
	if !exists {
		return 0, unknownPlatform(code)
	}
	return 0, capacityExhausted(code)
}

// Release implements Store.
func (s *SQLiteStore) Release(ctx context.Context, code string) (int, error) {
	var left int
	err := s.db.QueryRowContext(ctx,
		`UPDATE platform_inventory
		    SET capacity_remaining = capacity_remaining + 1, updated_at = datetime('now')
		  WHERE platform_code = ?
		  RETURNING capacity_remaining`,
		code,
	).Scan(&left)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, unknownPlatform(code)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: release %s", code)
	}
	return left, nil
}

// SetAccepting implements Store.
func (s *SQLiteStore) SetAccepting(ctx context.Context, code string, accepting bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE platform_inventory SET accepting_leads = ?, updated_at = datetime('now') WHERE platform_code = ?`,
		accepting, code,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set accepting %s", code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return unknownPlatform(code)
	}
	return nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, states ...model.PlatformState) error {
	rows, err := platformRows(states)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO platform_inventory (`+platformColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (platform_code) DO UPDATE SET
			   price_by_tier = excluded.price_by_tier,
			   commission_rate = excluded.commission_rate,
			   acceptance_rate = excluded.acceptance_rate,
			   capacity_remaining = excluded.capacity_remaining,
			   accepting_leads = excluded.accepting_leads,
			   tier_eligibility = excluded.tier_eligibility,
			   updated_at = datetime('now')`,
			row...,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert %v", row[0])
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
