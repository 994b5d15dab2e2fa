package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/models"
)

func testConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestDeliveryFractionShape(t *testing.T) {
	require := require.New(t)

	for _, reach := range []int64{100, 1000, 50000} {
		// Near zero at zero delivery.
		require.InDelta(0, DeliveryFraction(0, reach), 0.02)

		// Approaches the asymptotic maximum at twice the reach.
		max := (2 / errCurveA) * (math.Pi/2 + math.Atan(errCurveB))
		got := DeliveryFraction(2*reach, reach)
		require.Less(got, max)
		require.Greater(got, 0.9*max)

		// Monotone non-decreasing in delivered impressions.
		prev := math.Inf(-1)
		for target := int64(0); target <= 2*reach; target += reach / 20 {
			f := DeliveryFraction(target, reach)
			require.GreaterOrEqual(f, prev)
			prev = f
		}
	}

	require.Zero(DeliveryFraction(100, 0))
}

func TestCampaignCostEndedReturnsRealized(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)

	c := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 3, DayEnd: 7,
	})
	c.Stats.Cost = 123.5

	require.Equal(123.5, e.CampaignCost(c, 8, 1000, false))
}

func TestCampaignCostSavesEstimatesOnEve(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)

	c := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 3, DayEnd: 7,
	})

	// One day before the start: five remaining days at the flat rates.
	total := e.CampaignCost(c, 2, 1000, true)
	wantImps := cfg.Estimator.ImpressionCostRate * 1000
	wantUCS := 5 * cfg.Estimator.UCSDailyCost
	require.InDelta(wantImps, c.EstImpressionCost, 1e-12)
	require.InDelta(wantUCS, c.EstUCSCost, 1e-12)
	require.InDelta(wantImps+wantUCS, total, 1e-12)

	// Any other day leaves the saved estimates alone.
	c.EstImpressionCost, c.EstUCSCost = 0, 0
	e.CampaignCost(c, 4, 1000, true)
	require.Zero(c.EstImpressionCost)
	require.Zero(c.EstUCSCost)
}

func TestChooseImpressionTargetBounds(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)
	ledger := NewLedger()

	for _, reach := range []int64{500, 1000, 20000} {
		c := models.CampaignFromOpportunity(models.CampaignTerms{
			ID: 1, ReachImps: reach, DayStart: 3, DayEnd: 7,
		})
		c.Budget = float64(reach) / 1000

		e.ChooseImpressionTarget(ledger, c, 1, 1.0)

		require.GreaterOrEqual(c.ImpressionTarget, int64(float64(reach)*cfg.Strategy.GridMin))
		require.LessOrEqual(c.ImpressionTarget, int64(float64(reach)*cfg.Strategy.GridMax))
	}
}

// TestChooseImpressionTargetArgmax reimplements the grid scan without
// the estimator machinery and checks the same candidate wins.
func TestChooseImpressionTargetArgmax(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)
	ledger := NewLedger()

	c := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 3, DayEnd: 7,
	})
	c.Budget = 2.5

	e.ChooseImpressionTarget(ledger, c, 1, 1.0)

	// Independent scan over the same grid.
	lr := cfg.Strategy.QualityLearningRate
	bestTarget := int64(0)
	bestProfit := math.Inf(-1)
	for m := cfg.Strategy.GridMin; m <= cfg.Strategy.GridMax+cfg.Strategy.GridStep/2; m += cfg.Strategy.GridStep {
		target := int64(1000 * m)
		frac := DeliveryFraction(target, 1000)
		estQuality := (1-lr)*1.0 + lr*frac

		cost := 0.0
		for d := 3; d <= 7; d++ {
			cost += cfg.Estimator.ImpressionCostRate * float64(target) / 5
			cost += cfg.Estimator.UCSDailyCost
		}

		daysRemaining := float64(cfg.Agent.GameHorizonDays - 7)
		horizonFrac := daysRemaining / float64(cfg.Agent.GameHorizonDays)
		revenueRemaining := horizonFrac*daysRemaining*cfg.Estimator.HistoricDailyIncome +
			(1-horizonFrac)*daysRemaining*0
		qualityEffect := (estQuality - 1.0) * revenueRemaining

		profit := 2.5*frac + qualityEffect - cost
		if profit > bestProfit {
			bestProfit = profit
			bestTarget = target
		}
	}

	require.Equal(bestTarget, c.ImpressionTarget)
}

func TestProfitEstimateBiasCorrection(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)

	// A finalized campaign that realized half its uncorrected estimate.
	ledger := NewLedger()
	done := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 1, DayEnd: 2,
	})
	done.Finalized = true
	done.Profit = 5
	done.UncorrectedProfitEstimate = 10
	ledger.Add(done)

	c := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 2, ReachImps: 1000, DayStart: 10, DayEnd: 14,
	})
	c.Budget = 2.5
	e.ChooseImpressionTarget(ledger, c, 8, 1.0)

	require.InDelta(c.UncorrectedProfitEstimate*0.5, c.ProfitEstimate, 1e-12)
}

func TestQualityEffectHeldCampaignNeverSubtractsIncome(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)

	pending := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 6, DayEnd: 10,
	})

	base := e.QualityEffect(NewLedger(), pending, 5, 1.2, 1.0)
	require.Greater(base, 0.0)

	// A held campaign with an optimizer target above its contracted
	// reach and nothing delivered yet contributes no income, and in
	// particular must not contribute negative income.
	held := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 2, ReachImps: 1000, DayStart: 3, DayEnd: 9,
	})
	held.ImpressionTarget = 2000
	held.Budget = 100
	ledger := NewLedger()
	ledger.Add(held)
	require.Equal(base, e.QualityEffect(ledger, pending, 5, 1.2, 1.0))

	// Partial delivery counts its completeness fraction of the budget.
	held.Stats.TargetedImps = 500
	require.Greater(e.QualityEffect(ledger, pending, 5, 1.2, 1.0), base)
}

func TestProfitEstimateSeededBias(t *testing.T) {
	require := require.New(t)
	cfg := testConfig()
	e := NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays)

	// Earlier games realized half their uncorrected estimates; the
	// correction applies before anything finalizes in this game.
	e.SeedBias(50, 100)

	c := models.CampaignFromOpportunity(models.CampaignTerms{
		ID: 1, ReachImps: 1000, DayStart: 10, DayEnd: 14,
	})
	c.Budget = 2.5
	e.ChooseImpressionTarget(NewLedger(), c, 8, 1.0)

	require.InDelta(c.UncorrectedProfitEstimate*0.5, c.ProfitEstimate, 1e-12)
}
