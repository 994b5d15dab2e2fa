package agent

import (
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/models"
)

// Allocator turns the running campaign's remaining impression target
// into the next day's query-level bid set.
type Allocator struct {
	log *zap.Logger
}

func NewAllocator(log *zap.Logger) *Allocator {
	return &Allocator{log: log}
}

// equivalentUnits weighs one impression of the query against the
// campaign's contracted reach: video and mobile impressions count
// with the campaign's coefficients, both together count with their
// sum.
func equivalentUnits(q models.Query, c *models.Campaign) float64 {
	units := 0.0
	if q.Device == models.DevicePC {
		units = 1
		if q.AdType == models.AdTypeVideo {
			units = c.VideoCoef
		}
	} else {
		units = c.MobileCoef
		if q.AdType == models.AdTypeVideo {
			units = c.VideoCoef + c.MobileCoef
		}
	}
	return units
}

// Allocate builds the bid bundle for dayBiddingFor. Each of the
// campaign's matching queries is priced off the most specific
// historical mean cost per impression for its cell, scaled by the
// query's incremental equivalent-impression share and converted to
// millis. The contracted reach decides whether the campaign still
// bids at all; the optimizer's impression target decides how much
// the bundle asks for. Queries stop being added once the running
// equivalent count covers the remaining target. Returns nil when the
// campaign is outside its window or already delivered.
func (a *Allocator) Allocate(dayBiddingFor int, c *models.Campaign, history *History) *models.BidBundle {
	if c == nil || !c.ActiveOn(dayBiddingFor) || c.ImpsToGo() <= 0 || c.TargetToGo() <= 0 {
		return nil
	}

	remaining := float64(c.TargetToGo())
	bundle := &models.BidBundle{}
	running := 0.0
	for _, q := range c.Queries {
		if remaining-running <= 0 {
			break
		}
		units := equivalentUnits(q, c)
		stats := history.StatsForQuery(q)
		price := stats.Mean * units * 1000
		bundle.Entries = append(bundle.Entries, models.BidEntry{
			Query:      q,
			Price:      price,
			CampaignID: c.ID,
			Weight:     1,
		})
		running += units
	}

	bundle.Limits = append(bundle.Limits, models.DailyLimit{
		CampaignID:      c.ID,
		ImpressionLimit: c.TargetToGo(),
		BudgetLimit:     c.Budget,
	})

	a.log.Debug("bid bundle built",
		zap.Int("campaign_id", c.ID),
		zap.Int("day", dayBiddingFor),
		zap.Int("entries", len(bundle.Entries)),
		zap.Int64("impression_limit", c.TargetToGo()))
	return bundle
}
