package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/models"
)

// ClickHouseHistoryArchive is an append-only analytical archive of
// impression outcomes. Unlike HistoryStore it is never read back by
// the agent; it feeds offline analysis of bidding performance across
// many runs.
type ClickHouseHistoryArchive struct {
	conn driver.Conn
	log  *zap.Logger
}

func NewClickHouseHistoryArchive(conn driver.Conn, log *zap.Logger) *ClickHouseHistoryArchive {
	return &ClickHouseHistoryArchive{conn: conn, log: log}
}

// Migrate creates the archive table if it does not exist.
func (a *ClickHouseHistoryArchive) Migrate(ctx context.Context) error {
	err := a.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS impression_history (
			run_id        String,
			day           Int32,
			campaign_id   Int32,
			ad_type       LowCardinality(String),
			device        LowCardinality(String),
			publisher     LowCardinality(String),
			gender        LowCardinality(String),
			income        LowCardinality(String),
			age           LowCardinality(String),
			bid_count     Int32,
			win_count     Int32,
			total_cost    Float64,
			cost_per_imp  Float64,
			lost_count    Int32
		) ENGINE = MergeTree()
		ORDER BY (run_id, day, campaign_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate impression_history: %w", err)
	}
	return nil
}

// Archive writes one game's impression records in a single batch.
func (a *ClickHouseHistoryArchive) Archive(ctx context.Context, records []models.ImpressionRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := a.conn.PrepareBatch(ctx, "INSERT INTO impression_history")
	if err != nil {
		return fmt.Errorf("prepare archive batch: %w", err)
	}
	for _, r := range records {
		err := batch.Append(
			r.RunID,
			int32(r.Day),
			int32(r.CampaignID),
			string(r.AdType),
			string(r.Device),
			r.Publisher,
			string(r.Gender),
			string(r.Income),
			string(r.Age),
			int32(r.BidCount),
			int32(r.WinCount),
			r.TotalCost,
			r.CostPerImp,
			int32(r.LostCount),
		)
		if err != nil {
			return fmt.Errorf("append archive row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send archive batch: %w", err)
	}
	a.log.Info("archived impression records", zap.Int("count", len(records)))
	return nil
}
