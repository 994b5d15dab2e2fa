package agent

import (
	"errors"

	"github.com/manullamas/adx-agent/internal/models"
)

// ErrUnknownCampaign is returned when an event references a campaign
// id the ledger has never seen. The triggering event is abandoned;
// ledger state is untouched.
var ErrUnknownCampaign = errors.New("unknown campaign id")

// Ledger is the record of every campaign the agent holds, keyed by
// campaign id. Entries are added on win (or initial assignment) and
// never removed for the lifetime of one game.
type Ledger struct {
	campaigns map[int]*models.Campaign
	order     []int

	perf PerformanceSummary
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{campaigns: make(map[int]*models.Campaign)}
}

// Add inserts a campaign. An existing entry with the same id is
// replaced in place, keeping its position.
func (l *Ledger) Add(c *models.Campaign) {
	if _, ok := l.campaigns[c.ID]; !ok {
		l.order = append(l.order, c.ID)
	}
	l.campaigns[c.ID] = c
}

// Get returns the campaign with the given id.
func (l *Ledger) Get(id int) (*models.Campaign, error) {
	c, ok := l.campaigns[id]
	if !ok {
		return nil, ErrUnknownCampaign
	}
	return c, nil
}

// Len returns the number of campaigns held.
func (l *Ledger) Len() int { return len(l.campaigns) }

// All returns every campaign in insertion order.
func (l *Ledger) All() []*models.Campaign {
	res := make([]*models.Campaign, 0, len(l.order))
	for _, id := range l.order {
		res = append(res, l.campaigns[id])
	}
	return res
}

// ActiveOn returns the campaigns whose day window covers the given day.
func (l *Ledger) ActiveOn(day int) []*models.Campaign {
	var res []*models.Campaign
	for _, c := range l.All() {
		if c.ActiveOn(day) {
			res = append(res, c)
		}
	}
	return res
}

// RecordDelivery overwrites a campaign's cumulative delivery snapshot
// with the latest report. Reports are cumulative since day 1, not
// deltas, so the previous snapshot is simply replaced.
func (l *Ledger) RecordDelivery(id int, stats models.CampaignStats) error {
	c, ok := l.campaigns[id]
	if !ok {
		return ErrUnknownCampaign
	}
	c.Stats = stats
	return nil
}

// SplitUCSCost attributes one day of classification-service cost
// evenly across the campaigns active on the given day. With no active
// campaign the cost is dropped rather than divided by zero.
func (l *Ledger) SplitUCSCost(day int, price float64) {
	active := l.ActiveOn(day)
	if len(active) == 0 {
		return
	}
	share := price / float64(len(active))
	for _, c := range active {
		c.UCSCost += share
	}
}

// FinalizeEnded finalizes every campaign that ended yesterday and has
// not been finalized yet: realized revenue from the delivery-fraction
// curve, profit, and the estimate-accuracy ratios. The day's quality
// score change is split evenly among the campaigns that ended
// yesterday. Calling it again on the same day is a no-op, so the
// quality delta is never attributed twice.
//
// quality is the current quality score, qualityDelta its change since
// the previous notification. The finalized campaigns are returned for
// logging and persistence.
func (l *Ledger) FinalizeEnded(day int, quality, qualityDelta float64) []*models.Campaign {
	endedYesterday := 0
	for _, c := range l.All() {
		if c.DayEnd == day-1 {
			endedYesterday++
		}
	}

	var finalized []*models.Campaign
	for _, c := range l.All() {
		if c.DayEnd != day-1 || c.Finalized {
			continue
		}

		imps := c.Stats.TotalImps()
		c.Revenue = c.Budget * DeliveryFraction(int64(imps), c.ReachImps)
		c.Profit = c.Revenue - c.Stats.Cost

		c.QualityChange = qualityDelta / float64(endedYesterday)

		c.EstCostAcc = ratio(c.EstImpressionCost, c.Stats.Cost)
		c.EstProfitAcc = ratio(c.ProfitEstimate, c.Profit)
		c.UncorrectedProfitAcc = ratio(c.UncorrectedProfitEstimate, c.Profit)
		c.EstQualityChangeAcc = ratio(c.EstQualityChange, c.QualityChange)
		c.EstUCSCostAcc = ratio(c.EstUCSCost, c.UCSCost)

		c.TargetFulfillment = ratio(imps, float64(c.ImpressionTarget))
		c.ReachFulfillment = ratio(imps, float64(c.ReachImps))
		c.ProfitPerImpression = ratio(c.Profit, imps)
		c.BidVsClearingRatio = ratio(c.Bid*quality, c.Budget)

		c.Finalized = true
		l.perf.Update(c)
		finalized = append(finalized, c)
	}
	return finalized
}

// Performance returns the rolling summary over finalized campaigns.
func (l *Ledger) Performance() PerformanceSummary { return l.perf }

// ratio returns num/den, or zero for a zero denominator. Accuracy
// ratios degrade to zero rather than propagating NaN or Inf into
// later bid computations.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// PerformanceSummary tracks the agent's prediction accuracy and
// realized results across the campaigns finalized so far. Averages
// are running means over finalized campaigns; Revenue and Profit are
// running totals.
type PerformanceSummary struct {
	NumCampaigns int

	Revenue float64
	Profit  float64

	AvgProfitPerImpression  float64
	AvgEstCostAcc           float64
	AvgEstProfitAcc         float64
	AvgUncorrectedProfitAcc float64
	AvgEstUCSCostAcc        float64
	AvgTargetFulfillment    float64
	AvgReachFulfillment     float64
	AvgBidVsClearingRatio   float64
}

// Update folds one newly finalized campaign into the summary.
func (p *PerformanceSummary) Update(c *models.Campaign) {
	p.NumCampaigns++
	n := float64(p.NumCampaigns)

	p.Revenue += c.Revenue
	p.Profit += c.Profit

	roll := func(avg, v float64) float64 { return (avg*(n-1) + v) / n }
	p.AvgProfitPerImpression = roll(p.AvgProfitPerImpression, c.ProfitPerImpression)
	p.AvgEstCostAcc = roll(p.AvgEstCostAcc, c.EstCostAcc)
	p.AvgEstProfitAcc = roll(p.AvgEstProfitAcc, c.EstProfitAcc)
	p.AvgUncorrectedProfitAcc = roll(p.AvgUncorrectedProfitAcc, c.UncorrectedProfitAcc)
	p.AvgEstUCSCostAcc = roll(p.AvgEstUCSCostAcc, c.EstUCSCostAcc)
	p.AvgTargetFulfillment = roll(p.AvgTargetFulfillment, c.TargetFulfillment)
	p.AvgReachFulfillment = roll(p.AvgReachFulfillment, c.ReachFulfillment)
	p.AvgBidVsClearingRatio = roll(p.AvgBidVsClearingRatio, c.BidVsClearingRatio)
}
