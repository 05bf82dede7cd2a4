package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inventoryUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "platform_inventory",
		Columns:      []string{"platform_code", "capacity_remaining", "accepting_leads"},
		ConflictKeys: []string{"platform_code"},
	}
}

func TestBuildUpsert(t *testing.T) {
	query, args, err := BuildUpsert(inventoryUpsert(), [][]any{
		{"sunrun", 50, true},
		{"energysage", 25, false},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "platform_inventory" ("platform_code", "capacity_remaining", "accepting_leads") `+
			`VALUES ($1, $2, $3), ($4, $5, $6) ON CONFLICT ("platform_code") `+
			`DO UPDATE SET "capacity_remaining" = EXCLUDED."capacity_remaining", "accepting_leads" = EXCLUDED."accepting_leads"`,
		query)
	assert.Equal(t, []any{"sunrun", 50, true, "energysage", 25, false}, args)
}

func TestBuildUpsert_ExplicitUpdateCols(t *testing.T) {
	cfg := inventoryUpsert()
	cfg.UpdateCols = []string{"accepting_leads"}

	query, _, err := BuildUpsert(cfg, [][]any{{"sunrun", 50, true}})
	require.NoError(t, err)
	assert.Contains(t, query, `DO UPDATE SET "accepting_leads" = EXCLUDED."accepting_leads"`)
	assert.NotContains(t, query, `"capacity_remaining" = EXCLUDED`)
}

func TestBuildUpsert_KeysOnlyDoesNothing(t *testing.T) {
	query, _, err := BuildUpsert(UpsertConfig{
		Table:        "ops.platforms",
		Columns:      []string{"platform_code"},
		ConflictKeys: []string{"platform_code"},
	}, [][]any{{"sunrun"}})
	require.NoError(t, err)
	assert.Contains(t, query, `INSERT INTO "ops"."platforms"`)
	assert.Contains(t, query, "ON CONFLICT (\"platform_code\") DO NOTHING")
}

func TestBuildUpsert_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     UpsertConfig
		rows    [][]any
		wantErr string
	}{
		{"no table", UpsertConfig{Columns: []string{"a"}, ConflictKeys: []string{"a"}}, [][]any{{1}}, "no table specified"},
		{"no columns", UpsertConfig{Table: "t", ConflictKeys: []string{"a"}}, [][]any{{1}}, "no columns specified"},
		{"no conflict keys", UpsertConfig{Table: "t", Columns: []string{"a"}}, [][]any{{1}}, "no conflict keys specified"},
		{"short row", inventoryUpsert(), [][]any{{"sunrun", 1}}, "row 0 has 2 values, want 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildUpsert(tt.cfg, tt.rows)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpsert_EmptyRows(t *testing.T) {
	n, err := Upsert(context.Background(), nil, inventoryUpsert(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsert_Exec(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "platform_inventory"`).
		WithArgs("sunrun", 50, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := Upsert(context.Background(), mock, inventoryUpsert(), [][]any{{"sunrun", 50, true}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "platform_inventory"`).
		WillReturnError(errors.New("relation does not exist"))

	_, err = Upsert(context.Background(), mock, inventoryUpsert(), [][]any{{"sunrun", 50, true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: upsert into platform_inventory")
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"platform_inventory"`, sanitizeTable("platform_inventory"))
	assert.Equal(t, `"ops"."platform_inventory"`, sanitizeTable("ops.platform_inventory"))
}
