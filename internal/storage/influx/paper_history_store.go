package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

const (
	snapshotMeasurement = "paper_snapshots"
	tradeMeasurement    = "paper_trades"
)

// PaperHistoryStore implements storage.PaperHistoryStore using InfluxDB.
//
// Snapshots are one point per (strategy, timestamp); writing the same timestamp
// again replaces it. Trades are tagged by pair, side and a time-ordered batch
// id unique to each AppendTrades call, so repeated appends never overwrite
// each other. The leg field keeps execution order within a batch.
type PaperHistoryStore struct {
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

// NewPaperHistoryStore creates a store writing to bucket in org.
func NewPaperHistoryStore(client influxdb2.Client, org, bucket string) *PaperHistoryStore {
	return &PaperHistoryStore{
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
		bucket:   bucket,
	}
}

// Compile-time interface check.
var _ storage.PaperHistoryStore = (*PaperHistoryStore)(nil)

// AppendSnapshots writes snapshots for a strategy.
func (s *PaperHistoryStore) AppendSnapshots(ctx context.Context, strategyID string, snapshots []domain.PortfolioSnapshot) (err error) {
	defer observe("paper_snapshots_append")(&err)

	if strategyID == "" {
		return storage.ErrInvalidInput
	}
	if len(snapshots) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(snapshots))
	for _, snap := range snapshots {
		balances, err := json.Marshal(nonNilMap(snap.Balances))
		if err != nil {
			return fmt.Errorf("encode balances %d: %w", snap.Timestamp, err)
		}
		weights, err := json.Marshal(nonNilMap(snap.Weights))
		if err != nil {
			return fmt.Errorf("encode weights %d: %w", snap.Timestamp, err)
		}
		points = append(points, influxdb2.NewPoint(
			snapshotMeasurement,
			map[string]string{"strategy_id": strategyID},
			map[string]interface{}{
				"total_value_eur": snap.TotalValueEur,
				"balances":        string(balances),
				"weights":         string(weights),
			},
			time.Unix(snap.Timestamp, 0),
		))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write paper snapshots: %w", err)
	}
	return nil
}

// AppendTrades writes trades for a strategy.
func (s *PaperHistoryStore) AppendTrades(ctx context.Context, strategyID string, trades []domain.SimulatedTrade) (err error) {
	defer observe("paper_trades_append")(&err)

	if strategyID == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	batch, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("new trade batch id: %w", err)
	}

	points := make([]*write.Point, 0, len(trades))
	for i, t := range trades {
		points = append(points, influxdb2.NewPoint(
			tradeMeasurement,
			map[string]string{
				"strategy_id": strategyID,
				"pair":        t.Pair,
				"side":        string(t.Side),
				"batch":       batch.String(),
			},
			map[string]interface{}{
				"amount_eur": t.AmountEur,
				"price":      t.Price,
				"reason":     t.Reason,
				"leg":        int64(i),
			},
			time.Unix(t.Timestamp, 0),
		))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write paper trades: %w", err)
	}
	return nil
}

// GetSnapshots retrieves all snapshots of a strategy ordered by timestamp ASC.
func (s *PaperHistoryStore) GetSnapshots(ctx context.Context, strategyID string) (out []domain.PortfolioSnapshot, err error) {
	defer observe("paper_snapshots_get")(&err)

	result, err := s.queryAPI.Query(ctx, s.historyQuery(snapshotMeasurement, strategyID, `"_time"`))
	if err != nil {
		return nil, fmt.Errorf("query paper snapshots: %w", err)
	}
	defer result.Close()

	for result.Next() {
		record := result.Record()

		snap := domain.PortfolioSnapshot{Timestamp: record.Time().Unix()}
		snap.TotalValueEur, _ = record.ValueByKey("total_value_eur").(float64)
		balances, _ := record.ValueByKey("balances").(string)
		weights, _ := record.ValueByKey("weights").(string)

		if err := json.Unmarshal([]byte(balances), &snap.Balances); err != nil {
			return nil, fmt.Errorf("decode balances %d: %w", snap.Timestamp, err)
		}
		if err := json.Unmarshal([]byte(weights), &snap.Weights); err != nil {
			return nil, fmt.Errorf("decode weights %d: %w", snap.Timestamp, err)
		}
		out = append(out, snap)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("iterate paper snapshots: %w", result.Err())
	}
	return out, nil
}

// GetTrades retrieves all trades of a strategy ordered by timestamp ASC, then
// by append order.
func (s *PaperHistoryStore) GetTrades(ctx context.Context, strategyID string) (out []domain.SimulatedTrade, err error) {
	defer observe("paper_trades_get")(&err)

	result, err := s.queryAPI.Query(ctx, s.historyQuery(tradeMeasurement, strategyID, `"_time", "batch", "leg"`))
	if err != nil {
		return nil, fmt.Errorf("query paper trades: %w", err)
	}
	defer result.Close()

	for result.Next() {
		record := result.Record()

		t := domain.SimulatedTrade{Timestamp: record.Time().Unix()}
		t.Pair, _ = record.ValueByKey("pair").(string)
		side, _ := record.ValueByKey("side").(string)
		t.Side = domain.Side(side)
		t.AmountEur, _ = record.ValueByKey("amount_eur").(float64)
		t.Price, _ = record.ValueByKey("price").(float64)
		t.Reason, _ = record.ValueByKey("reason").(string)
		out = append(out, t)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("iterate paper trades: %w", result.Err())
	}
	return out, nil
}

func (s *PaperHistoryStore) historyQuery(measurement, strategyID, sortColumns string) string {
	return fmt.Sprintf(`
		from(bucket: %s)
			|> range(start: 0)
			|> filter(fn: (r) => r._measurement == %s)
			|> filter(fn: (r) => r.strategy_id == %s)
			|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> group()
			|> sort(columns: [%s])
	`, fluxString(s.bucket), fluxString(measurement), fluxString(strategyID), sortColumns)
}

func nonNilMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
