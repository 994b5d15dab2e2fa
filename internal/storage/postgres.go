package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manullamas/adx-agent/internal/models"
)

// PostgresCampaignLog implements CampaignLog using PostgreSQL.
type PostgresCampaignLog struct {
	pool *pgxpool.Pool
}

func NewPostgresCampaignLog(pool *pgxpool.Pool) *PostgresCampaignLog {
	return &PostgresCampaignLog{pool: pool}
}

// Migrate creates the campaign log table if it does not exist.
func (l *PostgresCampaignLog) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS campaign_log (
			id                          INT NOT NULL,
			day_start                   INT NOT NULL,
			day_end                     INT NOT NULL,
			reach_imps                  BIGINT NOT NULL,
			target_segment              TEXT NOT NULL,
			video_coef                  DOUBLE PRECISION NOT NULL,
			mobile_coef                 DOUBLE PRECISION NOT NULL,
			adx_cost                    DOUBLE PRECISION NOT NULL,
			targeted_imps               DOUBLE PRECISION NOT NULL,
			untargeted_imps             DOUBLE PRECISION NOT NULL,
			budget                      DOUBLE PRECISION NOT NULL,
			revenue                     DOUBLE PRECISION NOT NULL,
			profit_estimate             DOUBLE PRECISION NOT NULL,
			cmp_bid                     DOUBLE PRECISION NOT NULL,
			impression_target           BIGINT NOT NULL,
			uncorrected_profit_estimate DOUBLE PRECISION NOT NULL,
			cost_estimate               DOUBLE PRECISION NOT NULL,
			est_imp_cost                DOUBLE PRECISION NOT NULL,
			est_ucs_cost                DOUBLE PRECISION NOT NULL,
			quality_change              DOUBLE PRECISION NOT NULL,
			est_quality_change          DOUBLE PRECISION NOT NULL,
			ucs_cost                    DOUBLE PRECISION NOT NULL,
			est_cost_acc                DOUBLE PRECISION NOT NULL,
			est_profit_acc              DOUBLE PRECISION NOT NULL,
			uncorrected_profit_acc      DOUBLE PRECISION NOT NULL,
			est_quality_change_acc      DOUBLE PRECISION NOT NULL,
			imp_target_fulfillment      DOUBLE PRECISION NOT NULL,
			bid_vs_2nd_ratio            DOUBLE PRECISION NOT NULL,
			profit                      DOUBLE PRECISION NOT NULL,
			profit_per_impression       DOUBLE PRECISION NOT NULL,
			reach_fulfillment           DOUBLE PRECISION NOT NULL,
			est_ucs_cost_acc            DOUBLE PRECISION NOT NULL,
			logged_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate campaign_log: %w", err)
	}
	return nil
}

func (l *PostgresCampaignLog) Load(ctx context.Context) ([]models.Campaign, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, day_start, day_end, reach_imps, target_segment, video_coef, mobile_coef,
		       adx_cost, targeted_imps, untargeted_imps, budget, revenue, profit_estimate,
		       cmp_bid, impression_target, uncorrected_profit_estimate, cost_estimate,
		       est_imp_cost, est_ucs_cost, quality_change, est_quality_change, ucs_cost,
		       est_cost_acc, est_profit_acc, uncorrected_profit_acc, est_quality_change_acc,
		       imp_target_fulfillment, bid_vs_2nd_ratio, profit, profit_per_impression,
		       reach_fulfillment, est_ucs_cost_acc
		FROM campaign_log ORDER BY logged_at
	`)
	if err != nil {
		return nil, fmt.Errorf("load campaign log: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var segment string
		if err := rows.Scan(
			&c.ID, &c.DayStart, &c.DayEnd, &c.ReachImps, &segment, &c.VideoCoef, &c.MobileCoef,
			&c.Stats.Cost, &c.Stats.TargetedImps, &c.Stats.OtherImps, &c.Budget, &c.Revenue,
			&c.ProfitEstimate, &c.Bid, &c.ImpressionTarget, &c.UncorrectedProfitEstimate,
			&c.CostEstimate, &c.EstImpressionCost, &c.EstUCSCost, &c.QualityChange,
			&c.EstQualityChange, &c.UCSCost, &c.EstCostAcc, &c.EstProfitAcc,
			&c.UncorrectedProfitAcc, &c.EstQualityChangeAcc, &c.TargetFulfillment,
			&c.BidVsClearingRatio, &c.Profit, &c.ProfitPerImpression,
			&c.ReachFulfillment, &c.EstUCSCostAcc,
		); err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		c.TargetSegment = models.ParseSegmentSet(segment)
		c.Finalized = true
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (l *PostgresCampaignLog) Append(ctx context.Context, campaigns []models.Campaign) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range campaigns {
		c := &campaigns[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO campaign_log (
				id, day_start, day_end, reach_imps, target_segment, video_coef, mobile_coef,
				adx_cost, targeted_imps, untargeted_imps, budget, revenue, profit_estimate,
				cmp_bid, impression_target, uncorrected_profit_estimate, cost_estimate,
				est_imp_cost, est_ucs_cost, quality_change, est_quality_change, ucs_cost,
				est_cost_acc, est_profit_acc, uncorrected_profit_acc, est_quality_change_acc,
				imp_target_fulfillment, bid_vs_2nd_ratio, profit, profit_per_impression,
				reach_fulfillment, est_ucs_cost_acc
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
				$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32
			)
		`,
			c.ID, c.DayStart, c.DayEnd, c.ReachImps, c.TargetSegment.Key(), c.VideoCoef,
			c.MobileCoef, c.Stats.Cost, c.Stats.TargetedImps, c.Stats.OtherImps, c.Budget,
			c.Revenue, c.ProfitEstimate, c.Bid, c.ImpressionTarget,
			c.UncorrectedProfitEstimate, c.CostEstimate, c.EstImpressionCost, c.EstUCSCost,
			c.QualityChange, c.EstQualityChange, c.UCSCost, c.EstCostAcc, c.EstProfitAcc,
			c.UncorrectedProfitAcc, c.EstQualityChangeAcc, c.TargetFulfillment,
			c.BidVsClearingRatio, c.Profit, c.ProfitPerImpression, c.ReachFulfillment,
			c.EstUCSCostAcc,
		)
		if err != nil {
			return fmt.Errorf("failed to insert campaign %d: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}
