package agent

import (
	"math"

	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/models"
)

// Constants of the delivery-fraction S-curve, chosen so the curve is
// near zero at zero delivery and saturates close to one as delivery
// approaches twice the contracted reach.
const (
	errCurveA = 4.08577
	errCurveB = 3.08577
)

// DeliveryFraction models the fraction of a campaign's contracted
// value realized when target impressions are delivered against the
// contracted reach: a smooth, monotone saturating curve of the
// delivered fraction f = target/reach.
func DeliveryFraction(target, reach int64) float64 {
	if reach <= 0 {
		return 0
	}
	f := float64(target) / float64(reach)
	return (2 / errCurveA) * (math.Atan(errCurveA*f-errCurveB) - math.Atan(-errCurveB))
}

// Estimator computes campaign cost and profit projections. The
// per-day economic sub-models are deliberately simplistic placeholders
// and are exposed as replaceable functions.
type Estimator struct {
	cfg         config.EstimatorConfig
	horizonDays int
	grid        config.StrategyConfig

	// Bias-correction priors carried over from earlier games.
	priorProfit   float64
	priorEstimate float64

	// DayImpressionCost estimates the cost of buying the given number
	// of impressions on one day at the given classification tier.
	DayImpressionCost func(imps float64, day, tier int) float64
	// DayUCSCost estimates one day of classification service at the
	// given tier.
	DayUCSCost func(tier int) float64
	// BestUCSTier picks the cheapest classification tier able to
	// support the given impression target.
	BestUCSTier func(target int64) int
}

// NewEstimator builds an estimator with the placeholder cost models:
// a flat per-impression rate, a flat daily classification cost, and
// the top classification tier regardless of target.
func NewEstimator(cfg config.EstimatorConfig, strategy config.StrategyConfig, horizonDays int) *Estimator {
	e := &Estimator{
		cfg:         cfg,
		horizonDays: horizonDays,
		grid:        strategy,
	}
	e.DayImpressionCost = func(imps float64, day, tier int) float64 {
		return cfg.ImpressionCostRate * imps
	}
	e.DayUCSCost = func(tier int) float64 { return cfg.UCSDailyCost }
	e.BestUCSTier = func(target int64) int { return 1 }
	return e
}

// SeedBias primes the profit bias correction with realized outcomes
// from earlier games, so the first estimates of a run are corrected
// by history instead of taken at face value.
func (e *Estimator) SeedBias(profit, uncorrectedEstimate float64) {
	e.priorProfit = profit
	e.priorEstimate = uncorrectedEstimate
}

// CampaignCost estimates the total cost of delivering target
// impressions over the campaign's remaining days, as seen from the
// given day. For an ended campaign the realized cost is returned.
// When save is set and the call happens exactly one day before the
// campaign starts, the impression and classification components are
// persisted on the campaign for later accuracy comparison.
func (e *Estimator) CampaignCost(c *models.Campaign, day int, target int64, save bool) float64 {
	if c.EndedBy(day) {
		return c.Stats.Cost
	}

	total := 0.0
	if day > c.DayStart {
		// Reports are cumulative, so the realized cost so far is one number.
		total = c.Stats.Cost
	}

	duration := c.Duration()
	perDay := float64(target) / float64(duration)
	tier := e.BestUCSTier(target)

	impressionCost := 0.0
	ucsCost := 0.0
	from := c.DayStart
	if day > from {
		from = day
	}
	for d := from; d <= c.DayEnd; d++ {
		impressionCost += e.DayImpressionCost(perDay, d, tier)
		ucsCost += e.DayUCSCost(tier)
	}

	if save && day == c.DayStart-1 {
		c.EstImpressionCost = impressionCost
		c.EstUCSCost = ucsCost
	}
	return total + impressionCost + ucsCost
}

// QualityEffect estimates the revenue impact, over the game days left
// after the campaign ends, of the projected quality score. Early in
// the game the estimate leans on a flat historical daily income; as
// the game progresses it shifts linearly toward the agent's own
// realized and in-progress income.
func (e *Estimator) QualityEffect(ledger *Ledger, c *models.Campaign, day int, estQuality, currentQuality float64) float64 {
	daysRemaining := float64(e.horizonDays - c.DayEnd)
	if daysRemaining <= 0 {
		return 0
	}

	pastIncome := 0.0
	for _, other := range ledger.All() {
		if other.EndedBy(day) {
			pastIncome += other.Revenue
		} else if other.ReachImps > 0 {
			// Approximate in-progress campaigns by their fractional
			// completeness against the contracted budget.
			frac := 1 - float64(other.ImpsToGo())/float64(other.ReachImps)
			pastIncome += other.Budget * frac
		}
	}
	pastDailyIncome := 0.0
	if day > 0 {
		pastDailyIncome = pastIncome / float64(day)
	}

	horizonFrac := daysRemaining / float64(e.horizonDays)
	revenueRemaining := horizonFrac*daysRemaining*e.cfg.HistoricDailyIncome +
		(1-horizonFrac)*daysRemaining*pastDailyIncome

	return (estQuality - currentQuality) * revenueRemaining
}

// ChooseImpressionTarget grid-searches impression targets as multiples
// of the contracted reach, keeping the candidate with the highest
// estimated profit (first candidate wins ties). It stores the chosen
// target and cost estimate on the campaign, along with a profit
// estimate bias-corrected by the agent's realized-vs-estimated profit
// ratio over already finalized campaigns.
func (e *Estimator) ChooseImpressionTarget(ledger *Ledger, c *models.Campaign, day int, quality float64) {
	var (
		bestTarget  = c.ReachImps
		bestProfit  = math.Inf(-1)
		bestCost    = 0.0
		bestQuality = quality
	)

	lr := e.grid.QualityLearningRate
	for m := e.grid.GridMin; m <= e.grid.GridMax+e.grid.GridStep/2; m += e.grid.GridStep {
		target := int64(float64(c.ReachImps) * m)

		frac := DeliveryFraction(target, c.ReachImps)
		estQuality := (1-lr)*quality + lr*frac
		cost := e.CampaignCost(c, day, target, false)
		profit := c.Budget*frac + e.QualityEffect(ledger, c, day, estQuality, quality) - cost

		if profit > bestProfit {
			bestTarget = target
			bestProfit = profit
			bestCost = cost
			bestQuality = estQuality
		}
	}

	// Persist the component estimates when called on the eve of the
	// campaign's start.
	e.CampaignCost(c, day, bestTarget, true)
	c.EstQualityChange = bestQuality - quality

	// Bias-correct against realized outcomes, this game's finalized
	// campaigns on top of any prior seeded from the campaign log.
	// Skipped while the cumulative uncorrected estimate is zero.
	cumProfit, cumEstimate := e.priorProfit, e.priorEstimate
	for _, other := range ledger.All() {
		if other.Finalized {
			cumProfit += other.Profit
			cumEstimate += other.UncorrectedProfitEstimate
		}
	}
	profitError := 1.0
	if cumEstimate != 0 {
		profitError = cumProfit / cumEstimate
	}

	c.UncorrectedProfitEstimate = bestProfit - e.QualityEffect(ledger, c, day, bestQuality, quality)
	c.ProfitEstimate = c.UncorrectedProfitEstimate * profitError
	c.ImpressionTarget = bestTarget
	c.CostEstimate = bestCost
}
