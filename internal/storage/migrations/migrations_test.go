package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	scripts []string
	failOn  string
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	r.scripts = append(r.scripts, sql)
	return pgconn.CommandTag{}, nil
}

type recordingCH struct {
	stmts []string
}

func (r *recordingCH) Exec(_ context.Context, query string, _ ...any) error {
	r.stmts = append(r.stmts, query)
	return nil
}

func TestRunPostgresMigrations_Order(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, RunPostgresMigrations(context.Background(), db))

	require.Len(t, db.scripts, 4)
	assert.Contains(t, db.scripts[0], "CREATE TABLE IF NOT EXISTS backtest_results")
	assert.Contains(t, db.scripts[1], "CREATE TABLE IF NOT EXISTS strategy_candidates")
	assert.Contains(t, db.scripts[2], "CREATE TABLE IF NOT EXISTS live_config")
	assert.Contains(t, db.scripts[3], "CREATE TABLE IF NOT EXISTS paper_snapshots")
}

func TestRunPostgresMigrations_Error(t *testing.T) {
	db := &recordingExecer{failOn: "live_config"}
	err := RunPostgresMigrations(context.Background(), db)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_live_config.sql")
	assert.Len(t, db.scripts, 2)
}

func TestApplyClickhouseMigrations(t *testing.T) {
	conn := &recordingCH{}
	require.NoError(t, ApplyClickhouseMigrations(context.Background(), conn))

	require.Len(t, conn.stmts, 1)
	assert.True(t, strings.HasPrefix(conn.stmts[0], "CREATE TABLE IF NOT EXISTS candles"))
	assert.NotContains(t, conn.stmts[0], ";")
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- comment; with semicolon
CREATE TABLE a (x Int8);

CREATE TABLE b (y String);
`
	assert.Equal(t, []string{"CREATE TABLE a (x Int8)", "CREATE TABLE b (y String)"}, splitStatements(sql))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b';"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/lab")
	require.NoError(t, err)
	assert.Equal(t, "lab", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
