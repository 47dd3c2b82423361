package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// PaperHistoryStore implements storage.PaperHistoryStore using PostgreSQL.
type PaperHistoryStore struct {
	pool *Pool
}

// NewPaperHistoryStore creates a new PaperHistoryStore.
func NewPaperHistoryStore(pool *Pool) *PaperHistoryStore {
	return &PaperHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PaperHistoryStore = (*PaperHistoryStore)(nil)

// AppendSnapshots adds snapshots for a strategy in one batch.
func (s *PaperHistoryStore) AppendSnapshots(ctx context.Context, strategyID string, snapshots []domain.PortfolioSnapshot) (err error) {
	defer observe("paper_snapshots_append")(&err)

	if strategyID == "" {
		return storage.ErrInvalidInput
	}
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		blobs, err := marshalAll(snap.Balances, snap.Weights)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", snap.Timestamp, err)
		}
		batch.Queue(`
			INSERT INTO paper_snapshots (strategy_id, ts, total_value_eur, balances, weights)
			VALUES ($1, $2, $3, $4, $5)
		`, strategyID, snap.Timestamp, snap.TotalValueEur, blobs[0], blobs[1])
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append paper snapshots: %w", err)
	}
	return nil
}

// AppendTrades adds trades for a strategy in one batch.
func (s *PaperHistoryStore) AppendTrades(ctx context.Context, strategyID string, trades []domain.SimulatedTrade) (err error) {
	defer observe("paper_trades_append")(&err)

	if strategyID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO paper_trades (strategy_id, ts, pair, side, amount_eur, price, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, strategyID, t.Timestamp, t.Pair, string(t.Side), t.AmountEur, t.Price, t.Reason)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append paper trades: %w", err)
	}
	return nil
}

// GetSnapshots retrieves all snapshots of a strategy ordered by timestamp ASC.
func (s *PaperHistoryStore) GetSnapshots(ctx context.Context, strategyID string) (out []domain.PortfolioSnapshot, err error) {
	defer observe("paper_snapshots_get")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT ts, total_value_eur, balances, weights
		FROM paper_snapshots
		WHERE strategy_id = $1
		ORDER BY ts ASC, seq ASC
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get paper snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap              domain.PortfolioSnapshot
			balances, weights []byte
		)
		if err := rows.Scan(&snap.Timestamp, &snap.TotalValueEur, &balances, &weights); err != nil {
			return nil, fmt.Errorf("scan paper snapshot: %w", err)
		}
		if err := unmarshalAll([][]byte{balances, weights}, &snap.Balances, &snap.Weights); err != nil {
			return nil, fmt.Errorf("decode paper snapshot %d: %w", snap.Timestamp, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paper snapshots: %w", err)
	}
	return out, nil
}

// GetTrades retrieves all trades of a strategy ordered by timestamp ASC.
func (s *PaperHistoryStore) GetTrades(ctx context.Context, strategyID string) (out []domain.SimulatedTrade, err error) {
	defer observe("paper_trades_get")(&err)

	rows, err := s.pool.Query(ctx, `
		SELECT ts, pair, side, amount_eur, price, reason
		FROM paper_trades
		WHERE strategy_id = $1
		ORDER BY ts ASC, seq ASC
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get paper trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    domain.SimulatedTrade
			side string
		)
		if err := rows.Scan(&t.Timestamp, &t.Pair, &side, &t.AmountEur, &t.Price, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan paper trade: %w", err)
		}
		t.Side = domain.Side(side)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paper trades: %w", err)
	}
	return out, nil
}
