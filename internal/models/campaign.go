package models

import (
	"fmt"
	"strconv"
)

// CampaignStats is the cumulative delivery snapshot for a campaign as
// reported by the exchange: impressions delivered inside the target
// segment, impressions delivered outside it, and the total price paid.
// Reports are cumulative since day 1, not deltas.
type CampaignStats struct {
	TargetedImps float64 `json:"targeted_imps"`
	OtherImps    float64 `json:"other_imps"`
	Cost         float64 `json:"cost"`
}

// TotalImps returns targeted plus untargeted impressions.
func (s CampaignStats) TotalImps() float64 { return s.TargetedImps + s.OtherImps }

// CampaignTerms are the contracted terms of a campaign as announced by
// the demand server, identical for the initial assignment and for
// later opportunities.
type CampaignTerms struct {
	ID            int        `json:"id"`
	ReachImps     int64      `json:"reach_imps"`
	DayStart      int        `json:"day_start"`
	DayEnd        int        `json:"day_end"`
	TargetSegment SegmentSet `json:"target_segment"`
	VideoCoef     float64    `json:"video_coef"`
	MobileCoef    float64    `json:"mobile_coef"`
}

// Campaign is the ledger record of one campaign the agent has seen:
// contracted terms, the bids and budget attached to it, cumulative
// delivery, the impression target chosen by the optimizer, every cost
// and profit estimate made before the campaign ran, and the realized
// outcome plus estimate-accuracy ratios filled in at finalization.
type Campaign struct {
	CampaignTerms

	// Matching auction queries, regenerated whenever the campaign is
	// (re)activated against the current publisher catalog.
	Queries []Query `json:"-"`

	// Reported state.
	Stats  CampaignStats `json:"stats"`
	Budget float64       `json:"budget"`
	Bid    float64       `json:"bid"`

	// Optimizer output.
	ImpressionTarget int64 `json:"impression_target"`

	// Estimates, made while the campaign was pending or starting.
	ProfitEstimate            float64 `json:"profit_estimate"`
	UncorrectedProfitEstimate float64 `json:"uncorrected_profit_estimate"`
	CostEstimate              float64 `json:"cost_estimate"`
	EstImpressionCost         float64 `json:"est_impression_cost"`
	EstUCSCost                float64 `json:"est_ucs_cost"`
	EstQualityChange          float64 `json:"est_quality_change"`

	// Realized outcome.
	Revenue       float64 `json:"revenue"`
	Profit        float64 `json:"profit"`
	QualityChange float64 `json:"quality_change"`
	UCSCost       float64 `json:"ucs_cost"`

	// Accuracy ratios (estimate / realized), set at finalization.
	EstCostAcc           float64 `json:"est_cost_acc"`
	EstProfitAcc         float64 `json:"est_profit_acc"`
	UncorrectedProfitAcc float64 `json:"uncorrected_profit_acc"`
	EstQualityChangeAcc  float64 `json:"est_quality_change_acc"`
	EstUCSCostAcc        float64 `json:"est_ucs_cost_acc"`

	// Fulfillment metrics, set at finalization.
	TargetFulfillment   float64 `json:"target_fulfillment"`
	ReachFulfillment    float64 `json:"reach_fulfillment"`
	BidVsClearingRatio  float64 `json:"bid_vs_clearing_ratio"`
	ProfitPerImpression float64 `json:"profit_per_impression"`

	Finalized bool `json:"finalized"`
}

// CampaignFromOpportunity builds a zeroed campaign from an announced
// opportunity. The impression target defaults to the contracted reach
// until the optimizer picks a better one.
func CampaignFromOpportunity(terms CampaignTerms) *Campaign {
	return &Campaign{
		CampaignTerms:    terms,
		ImpressionTarget: terms.ReachImps,
	}
}

// CampaignFromInitialAssignment builds the day-0 campaign that is
// allocated to the agent without an auction. It carries its budget
// from the start; all derived fields are zeroed exactly as for an
// opportunity campaign.
func CampaignFromInitialAssignment(terms CampaignTerms, budget float64) *Campaign {
	c := CampaignFromOpportunity(terms)
	c.Budget = budget
	return c
}

// Duration returns the number of days the campaign runs, inclusive.
func (c *Campaign) Duration() int { return c.DayEnd - c.DayStart + 1 }

// ActiveOn reports whether the campaign window covers the given day.
func (c *Campaign) ActiveOn(day int) bool {
	return day >= c.DayStart && day <= c.DayEnd
}

// EndedBy reports whether the campaign window closed before the given day.
func (c *Campaign) EndedBy(day int) bool { return c.DayEnd < day }

// ImpsToGo returns the impressions still needed to satisfy the
// contracted reach, never negative. Over-delivery reads as zero.
func (c *Campaign) ImpsToGo() int64 {
	togo := c.ReachImps - int64(c.Stats.TargetedImps)
	if togo < 0 {
		return 0
	}
	return togo
}

// TargetToGo returns the impressions still needed to hit the
// optimizer's impression target, never negative. The target can sit
// above or below the contracted reach.
func (c *Campaign) TargetToGo() int64 {
	togo := c.ImpressionTarget - int64(c.Stats.TargetedImps)
	if togo < 0 {
		return 0
	}
	return togo
}

func (c *Campaign) String() string {
	return fmt.Sprintf("campaign %d: day %d to %d, segment %q, reach %d (v=%.2f, m=%.2f)",
		c.ID, c.DayStart, c.DayEnd, c.TargetSegment.Key(), c.ReachImps, c.VideoCoef, c.MobileCoef)
}

// CampaignRecordHeader is the column order of a persisted campaign
// row. Kept stable for round-trip compatibility with earlier runs.
var CampaignRecordHeader = []string{
	"id", "dayStart", "dayEnd", "reachImps", "targetSegment", "videoCoef", "mobileCoef",
	"adxCost", "targetedImps", "untargetedImps", "budget", "revenue", "profitEstimate",
	"cmpBid", "impressionTarget", "uncorrectedProfitEstimate", "costEstimate",
	"estImpCost", "estUcsCost", "qualityChange", "estQualityChange", "ucsCost",
	"estCostAcc", "estProfitAcc", "uncorrectedProfitAcc", "estQualityChangeAcc",
	"impTargetFulfillment", "bidVs2ndRatio", "profit", "profitPerImpression",
	"reachFulfillment", "estUcsCostAcc",
}

// MarshalRecord renders the campaign as one persisted row, columns in
// CampaignRecordHeader order.
func (c *Campaign) MarshalRecord() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(c.ID),
		strconv.Itoa(c.DayStart),
		strconv.Itoa(c.DayEnd),
		strconv.FormatInt(c.ReachImps, 10),
		c.TargetSegment.Key(),
		f(c.VideoCoef),
		f(c.MobileCoef),
		f(c.Stats.Cost),
		f(c.Stats.TargetedImps),
		f(c.Stats.OtherImps),
		f(c.Budget),
		f(c.Revenue),
		f(c.ProfitEstimate),
		f(c.Bid),
		strconv.FormatInt(c.ImpressionTarget, 10),
		f(c.UncorrectedProfitEstimate),
		f(c.CostEstimate),
		f(c.EstImpressionCost),
		f(c.EstUCSCost),
		f(c.QualityChange),
		f(c.EstQualityChange),
		f(c.UCSCost),
		f(c.EstCostAcc),
		f(c.EstProfitAcc),
		f(c.UncorrectedProfitAcc),
		f(c.EstQualityChangeAcc),
		f(c.TargetFulfillment),
		f(c.BidVsClearingRatio),
		f(c.Profit),
		f(c.ProfitPerImpression),
		f(c.ReachFulfillment),
		f(c.EstUCSCostAcc),
	}
}

// UnmarshalCampaignRecord parses one persisted campaign row.
func UnmarshalCampaignRecord(row []string) (*Campaign, error) {
	if len(row) != len(CampaignRecordHeader) {
		return nil, fmt.Errorf("campaign record: want %d columns, got %d", len(CampaignRecordHeader), len(row))
	}
	var err error
	pf := func(s string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(s, 64)
		return v
	}
	pi := func(s string) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = strconv.ParseInt(s, 10, 64)
		return v
	}

	c := &Campaign{Finalized: true}
	c.ID = int(pi(row[0]))
	c.DayStart = int(pi(row[1]))
	c.DayEnd = int(pi(row[2]))
	c.ReachImps = pi(row[3])
	c.TargetSegment = ParseSegmentSet(row[4])
	c.VideoCoef = pf(row[5])
	c.MobileCoef = pf(row[6])
	c.Stats.Cost = pf(row[7])
	c.Stats.TargetedImps = pf(row[8])
	c.Stats.OtherImps = pf(row[9])
	c.Budget = pf(row[10])
	c.Revenue = pf(row[11])
	c.ProfitEstimate = pf(row[12])
	c.Bid = pf(row[13])
	c.ImpressionTarget = pi(row[14])
	c.UncorrectedProfitEstimate = pf(row[15])
	c.CostEstimate = pf(row[16])
	c.EstImpressionCost = pf(row[17])
	c.EstUCSCost = pf(row[18])
	c.QualityChange = pf(row[19])
	c.EstQualityChange = pf(row[20])
	c.UCSCost = pf(row[21])
	c.EstCostAcc = pf(row[22])
	c.EstProfitAcc = pf(row[23])
	c.UncorrectedProfitAcc = pf(row[24])
	c.EstQualityChangeAcc = pf(row[25])
	c.TargetFulfillment = pf(row[26])
	c.BidVsClearingRatio = pf(row[27])
	c.Profit = pf(row[28])
	c.ProfitPerImpression = pf(row[29])
	c.ReachFulfillment = pf(row[30])
	c.EstUCSCostAcc = pf(row[31])
	if err != nil {
		return nil, fmt.Errorf("campaign record %s: %w", row[0], err)
	}
	return c, nil
}
