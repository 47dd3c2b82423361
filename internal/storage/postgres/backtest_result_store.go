package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BacktestResultStore implements storage.BacktestResultStore using PostgreSQL.
// Nested values are stored as JSONB; combined_score is also kept as a
// DOUBLE PRECISION column.
type BacktestResultStore struct {
	pool *Pool
}

// NewBacktestResultStore creates a new BacktestResultStore.
func NewBacktestResultStore(pool *Pool) *BacktestResultStore {
	return &BacktestResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)

const backtestColumns = `run_id, started_at, completed_at, status, error_message,
	config, strategy_params, trades, snapshots, metrics`

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestResultStore) Insert(ctx context.Context, r *domain.BacktestResult) (err error) {
	defer observe("backtest_results_insert")(&err)

	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	blobs, err := marshalAll(r.Config, r.StrategyParams, nonNil(r.Trades), nonNil(r.Snapshots), r.Metrics)
	if err != nil {
		return fmt.Errorf("encode backtest result %s: %w", r.RunID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_results (`+backtestColumns+`, combined_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		r.RunID,
		r.StartedAt,
		r.CompletedAt,
		string(r.Status),
		r.ErrorMessage,
		blobs[0], blobs[1], blobs[2], blobs[3], blobs[4],
		r.Metrics.CombinedScore,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest result: %w", err)
	}
	return nil
}

// GetByID retrieves a result by run id. Returns ErrNotFound if not exists.
func (s *BacktestResultStore) GetByID(ctx context.Context, runID string) (r *domain.BacktestResult, err error) {
	defer observe("backtest_results_get")(&err)

	row := s.pool.QueryRow(ctx, `SELECT `+backtestColumns+` FROM backtest_results WHERE run_id = $1`, runID)
	r, err = scanBacktestResult(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest result by id: %w", err)
	}
	return r, nil
}

// ListRecent returns up to limit results ordered by started_at DESC, run_id ASC.
// A non-positive limit returns every result.
func (s *BacktestResultStore) ListRecent(ctx context.Context, limit int) (out []*domain.BacktestResult, err error) {
	defer observe("backtest_results_list")(&err)

	query := `SELECT ` + backtestColumns + ` FROM backtest_results ORDER BY started_at DESC, run_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backtest results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanBacktestResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest results: %w", err)
	}
	return out, nil
}

func scanBacktestResult(row pgx.Row) (*domain.BacktestResult, error) {
	var (
		r                                      domain.BacktestResult
		status                                 string
		config, params, trades, snaps, metrics []byte
	)
	err := row.Scan(
		&r.RunID,
		&r.StartedAt,
		&r.CompletedAt,
		&status,
		&r.ErrorMessage,
		&config, &params, &trades, &snaps, &metrics,
	)
	if err != nil {
		return nil, err
	}

	r.Status = domain.RunStatus(status)
	r.StartedAt = r.StartedAt.UTC()
	r.CompletedAt = r.CompletedAt.UTC()

	if err := unmarshalAll(
		[][]byte{config, params, trades, snaps, metrics},
		&r.Config, &r.StrategyParams, &r.Trades, &r.Snapshots, &r.Metrics,
	); err != nil {
		return nil, fmt.Errorf("decode backtest result %s: %w", r.RunID, err)
	}
	if len(r.Trades) == 0 {
		r.Trades = nil
	}
	if len(r.Snapshots) == 0 {
		r.Snapshots = nil
	}
	return &r, nil
}

func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalAll(blobs [][]byte, targets ...any) error {
	for i, b := range blobs {
		if err := json.Unmarshal(b, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// nonNil stores empty slices as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
