package clickhouse

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// Re-inserted candles replace older versions at merge time; reads use FINAL.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk upserts candles for (pair, granularity).
func (s *CandleStore) InsertBulk(ctx context.Context, pair string, granularity int64, candles []domain.Candle) (err error) {
	if len(candles) == 0 {
		return nil
	}
	if pair == "" || granularity <= 0 {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "candles_insert", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			pair, granularity, start, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			pair, uint32(granularity), c.Start,
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves candles with start within [start, end], ordered by start ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, pair string, granularity int64, start, end int64) (out []domain.Candle, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "candles_range", time.Since(began).Seconds(), err)
	}()

	rows, err := s.conn.Query(ctx, `
		SELECT start, open, high, low, close, volume
		FROM candles FINAL
		WHERE pair = ? AND granularity = ? AND start >= ? AND start <= ?
		ORDER BY start ASC
	`, pair, uint32(granularity), start, end)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Start, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}

	return out, nil
}
