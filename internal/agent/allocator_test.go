package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/models"
)

func testCampaign(reach int64) *models.Campaign {
	c := models.CampaignFromOpportunity(models.CampaignTerms{
		ID:            9,
		ReachImps:     reach,
		DayStart:      3,
		DayEnd:        7,
		TargetSegment: models.NewSegmentSet(models.SegmentMale, models.SegmentYoung),
		VideoCoef:     1.5,
		MobileCoef:    1.2,
	})
	c.Budget = 4
	c.Queries = models.CampaignQueries([]string{"yahoo", "cnn"}, c.TargetSegment)
	return c
}

func TestEquivalentUnits(t *testing.T) {
	require := require.New(t)
	c := testCampaign(1000)

	q := models.Query{Device: models.DevicePC, AdType: models.AdTypeText}
	require.Equal(1.0, equivalentUnits(q, c))

	q = models.Query{Device: models.DevicePC, AdType: models.AdTypeVideo}
	require.Equal(1.5, equivalentUnits(q, c))

	q = models.Query{Device: models.DeviceMobile, AdType: models.AdTypeText}
	require.Equal(1.2, equivalentUnits(q, c))

	q = models.Query{Device: models.DeviceMobile, AdType: models.AdTypeVideo}
	require.InDelta(2.7, equivalentUnits(q, c), 1e-12)
}

func TestAllocateSkipsInactiveOrDelivered(t *testing.T) {
	require := require.New(t)
	a := NewAllocator(zap.NewNop())
	h := NewHistory(testFallbackCPI)

	require.Nil(a.Allocate(3, nil, h))

	c := testCampaign(1000)
	require.Nil(a.Allocate(2, c, h), "before the window")
	require.Nil(a.Allocate(8, c, h), "after the window")

	c.Stats.TargetedImps = 1000
	require.Nil(a.Allocate(5, c, h), "reach already satisfied")

	// A target above the reach does not keep the campaign bidding
	// once the contracted reach is delivered.
	c.ImpressionTarget = 2000
	require.Nil(a.Allocate(5, c, h))

	// Conversely a satisfied below-reach target leaves nothing to ask
	// for even though the reach is short.
	c = testCampaign(1000)
	c.ImpressionTarget = 600
	c.Stats.TargetedImps = 600
	require.Nil(a.Allocate(5, c, h))
}

func TestAllocateBundle(t *testing.T) {
	require := require.New(t)
	a := NewAllocator(zap.NewNop())
	h := NewHistory(testFallbackCPI)

	c := testCampaign(1000)
	bundle := a.Allocate(3, c, h)
	require.NotNil(bundle)

	// Plenty of impressions remain, so every matching query gets an
	// entry: 2 publishers x 2 devices x 2 ad types.
	require.Len(bundle.Entries, 8)
	for _, entry := range bundle.Entries {
		require.Equal(9, entry.CampaignID)
		require.Equal(1.0, entry.Weight)
		// With an empty history the price comes from the fallback CPI.
		units := equivalentUnits(entry.Query, c)
		require.InDelta(testFallbackCPI*units*1000, entry.Price, 1e-12)
	}

	require.Len(bundle.Limits, 1)
	require.Equal(int64(1000), bundle.Limits[0].ImpressionLimit)
	require.Equal(4.0, bundle.Limits[0].BudgetLimit)
}

func TestAllocateStopsAtRemainingTarget(t *testing.T) {
	require := require.New(t)
	a := NewAllocator(zap.NewNop())
	h := NewHistory(testFallbackCPI)

	// Only 3 equivalent impressions remain; the query walk must stop
	// before the equivalent count passes it.
	c := testCampaign(1000)
	c.ImpressionTarget = 1000
	c.Stats.TargetedImps = 997

	bundle := a.Allocate(3, c, h)
	require.NotNil(bundle)
	require.NotEmpty(bundle.Entries)
	require.Less(len(bundle.Entries), len(c.Queries))

	// Entries before the last never cover the remaining target.
	running := 0.0
	for i, entry := range bundle.Entries {
		if i < len(bundle.Entries)-1 {
			require.Less(running, 3.0)
		}
		running += equivalentUnits(entry.Query, c)
	}
	require.GreaterOrEqual(running, 3.0)
}
