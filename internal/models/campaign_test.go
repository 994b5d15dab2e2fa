package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCampaignWindow(t *testing.T) {
	require := require.New(t)

	c := CampaignFromOpportunity(CampaignTerms{ID: 1, ReachImps: 1000, DayStart: 3, DayEnd: 7})
	require.Equal(5, c.Duration())
	require.False(c.ActiveOn(2))
	require.True(c.ActiveOn(3))
	require.True(c.ActiveOn(7))
	require.False(c.ActiveOn(8))
	require.False(c.EndedBy(7))
	require.True(c.EndedBy(8))
}

func TestImpsToGo(t *testing.T) {
	require := require.New(t)

	c := CampaignFromOpportunity(CampaignTerms{ID: 1, ReachImps: 1000})
	require.Equal(int64(1000), c.ImpsToGo())

	// The contracted reach drives ImpsToGo regardless of the target
	// the optimizer picked.
	c.ImpressionTarget = 2000
	c.Stats.TargetedImps = 400
	require.Equal(int64(600), c.ImpsToGo())

	// Untargeted impressions do not count toward the reach.
	c.Stats.OtherImps = 500
	require.Equal(int64(600), c.ImpsToGo())

	c.Stats.TargetedImps = 1500
	require.Zero(c.ImpsToGo(), "over-delivery clamps to zero")
}

func TestTargetToGo(t *testing.T) {
	require := require.New(t)

	c := CampaignFromOpportunity(CampaignTerms{ID: 1, ReachImps: 1000})
	require.Equal(int64(1000), c.TargetToGo(), "target defaults to reach")

	c.ImpressionTarget = 1200
	c.Stats.TargetedImps = 400
	require.Equal(int64(800), c.TargetToGo())
	require.Equal(int64(600), c.ImpsToGo(), "reach remainder unaffected by target")

	c.Stats.TargetedImps = 1500
	require.Zero(c.TargetToGo(), "over-delivery clamps to zero")
}

func TestCampaignRecordRoundTrip(t *testing.T) {
	require := require.New(t)

	c := CampaignFromOpportunity(CampaignTerms{
		ID: 17, ReachImps: 1500, DayStart: 3, DayEnd: 9,
		TargetSegment: NewSegmentSet(SegmentMale, SegmentHighIncome),
		VideoCoef:     1.4, MobileCoef: 1.9,
	})
	c.Stats = CampaignStats{TargetedImps: 1200, OtherImps: 80, Cost: 1.25}
	c.Budget = 1.5
	c.Bid = 1.3
	c.ImpressionTarget = 1800
	c.ProfitEstimate = 0.42
	c.UncorrectedProfitEstimate = 0.5
	c.CostEstimate = 1.1
	c.EstImpressionCost = 0.9
	c.EstUCSCost = 0.2
	c.EstQualityChange = 0.03
	c.Revenue = 1.45
	c.Profit = 0.2
	c.QualityChange = 0.01
	c.UCSCost = 0.25
	c.EstCostAcc = 0.72
	c.EstProfitAcc = 2.1
	c.UncorrectedProfitAcc = 2.5
	c.EstQualityChangeAcc = 3
	c.EstUCSCostAcc = 0.8
	c.TargetFulfillment = 0.71
	c.ReachFulfillment = 0.85
	c.BidVsClearingRatio = 0.87
	c.ProfitPerImpression = 0.00015625

	row := c.MarshalRecord()
	require.Len(row, len(CampaignRecordHeader))

	got, err := UnmarshalCampaignRecord(row)
	require.NoError(err)
	got.Finalized = c.Finalized
	require.Equal(c, got)
}

func TestUnmarshalCampaignRecordRejectsBadRows(t *testing.T) {
	require := require.New(t)

	_, err := UnmarshalCampaignRecord([]string{"1", "2"})
	require.Error(err)

	row := CampaignFromOpportunity(CampaignTerms{ID: 1, ReachImps: 100}).MarshalRecord()
	row[3] = "not-a-number"
	_, err = UnmarshalCampaignRecord(row)
	require.Error(err)
}

func TestImpressionRecordDerivedFields(t *testing.T) {
	require := require.New(t)

	r := NewImpressionRecord("run-1", 4, 9, AdTypeVideo, DeviceMobile, "cnn",
		GenderFemale, IncomeVeryHigh, Age35To44, 20, 8, 16)
	require.Equal(SegmentFemale, r.GenderSegment)
	require.Equal(SegmentHighIncome, r.IncomeSegment)
	require.Equal(SegmentYoung, r.AgeSegment)
	require.InDelta(0.016, r.TotalCost, 1e-12)
	require.InDelta(0.002, r.CostPerImp, 1e-12)
	require.Equal(12, r.LostCount)

	// No wins: cost per impression stays zero instead of dividing.
	r = NewImpressionRecord("run-1", 4, 9, AdTypeText, DevicePC, "cnn",
		GenderMale, IncomeLow, Age65Plus, 20, 0, 0)
	require.Zero(r.CostPerImp)
}

func TestImpressionRecordRoundTrip(t *testing.T) {
	require := require.New(t)

	r := NewImpressionRecord("run-1", 4, 9, AdTypeVideo, DeviceMobile, "cnn",
		GenderFemale, IncomeVeryHigh, Age35To44, 20, 8, 16)

	row := r.MarshalRecord()
	require.Len(row, len(ImpressionRecordHeader))

	got, err := UnmarshalImpressionRecord(row)
	require.NoError(err)
	require.Equal(r, got)
}
