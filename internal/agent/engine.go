package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/metrics"
	"github.com/manullamas/adx-agent/internal/models"
	"github.com/manullamas/adx-agent/internal/storage"
)

// Archiver receives a completed game's impression records for offline
// analysis. Optional; a nil archiver disables archiving.
type Archiver interface {
	Archive(ctx context.Context, records []models.ImpressionRecord) error
}

// Engine holds all per-game mutable state and processes one inbound
// event at a time to completion. It is not safe for concurrent use;
// one engine owns one game.
type Engine struct {
	cfg *config.Config
	log *zap.Logger
	met *metrics.Metrics
	rng *rand.Rand

	historyStore storage.HistoryStore
	campaignLog  storage.CampaignLog
	archive      Archiver

	runID string
	day   int

	quality     float64
	prevQuality float64
	notified    bool

	ucsBid float64
	cmpBid float64

	demandAddress   string
	exchangeAddress string
	publishers      []string
	querySpace      []models.Query

	ledger    *Ledger
	history   *History
	selector  *Selector
	estimator *Estimator
	allocator *Allocator

	// pending is the campaign bid on but not yet allocated; current is
	// the most recently won campaign, the one bundles are built for.
	pending *models.Campaign
	current *models.Campaign

	// status is a copy of the externally visible state, refreshed after
	// every event. Everything else on the engine is single-goroutine.
	statusMu sync.RWMutex
	status   Status
}

// Status is a point-in-time snapshot of engine state, safe to read
// while the event loop runs.
type Status struct {
	RunID       string             `json:"run_id"`
	Day         int                `json:"day"`
	Quality     float64            `json:"quality"`
	UCSBid      float64            `json:"ucs_bid"`
	QuerySpace  int                `json:"query_space"`
	HistoryLen  int                `json:"history_records"`
	Campaigns   []models.Campaign  `json:"campaigns"`
	Performance PerformanceSummary `json:"performance"`
}

// NewEngine builds an engine ready for one game. The random source is
// injected so runs are reproducible under a fixed seed.
func NewEngine(cfg *config.Config, hs storage.HistoryStore, cl storage.CampaignLog,
	archive Archiver, met *metrics.Metrics, log *zap.Logger, rng *rand.Rand) *Engine {

	return &Engine{
		cfg:          cfg,
		log:          log,
		met:          met,
		rng:          rng,
		historyStore: hs,
		campaignLog:  cl,
		archive:      archive,
		runID:        uuid.NewString(),
		quality:      1,
		prevQuality:  1,
		ucsBid:       cfg.Strategy.UCSInitialBid,
		ledger:       NewLedger(),
		history:      NewHistory(cfg.Estimator.FallbackCPI),
		selector:     NewSelector(cfg.Strategy, rng, log),
		estimator:    NewEstimator(cfg.Estimator, cfg.Strategy, cfg.Agent.GameHorizonDays),
		allocator:    NewAllocator(log),
	}
}

// RunID identifies this game in persisted impression records.
func (e *Engine) RunID() string { return e.runID }

// Day returns the current simulation day.
func (e *Engine) Day() int { return e.day }

// Quality returns the last reported quality score.
func (e *Engine) Quality() float64 { return e.quality }

// Ledger exposes the campaign ledger, mainly for tests and end-of-game
// reporting.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// History exposes the impression history.
func (e *Engine) History() *History { return e.history }

// Start loads the persisted impression history. Called once before the
// first event.
func (e *Engine) Start(ctx context.Context) error {
	records, err := e.historyStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("load impression history: %w", err)
	}
	e.history.AddAll(records)

	// Past games seed the profit bias correction. Best effort: a
	// missing or unreadable log just means uncorrected first estimates.
	past, err := e.campaignLog.Load(ctx)
	if err != nil {
		e.log.Warn("load campaign log", zap.Error(err))
	} else {
		profit, estimate := 0.0, 0.0
		for _, c := range past {
			profit += c.Profit
			estimate += c.UncorrectedProfitEstimate
		}
		e.estimator.SeedBias(profit, estimate)
	}

	e.publishStatus()
	e.log.Info("game starting",
		zap.String("run_id", e.runID),
		zap.Int("history_records", e.history.Len()),
		zap.Int("past_campaigns", len(past)))
	return nil
}

// Snapshot returns the status published after the most recent event.
func (e *Engine) Snapshot() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) publishStatus() {
	campaigns := make([]models.Campaign, 0, e.ledger.Len())
	for _, c := range e.ledger.All() {
		campaigns = append(campaigns, *c)
	}

	e.statusMu.Lock()
	e.status = Status{
		RunID:       e.runID,
		Day:         e.day,
		Quality:     e.quality,
		UCSBid:      e.ucsBid,
		QuerySpace:  len(e.querySpace),
		HistoryLen:  e.history.Len(),
		Campaigns:   campaigns,
		Performance: e.ledger.Performance(),
	}
	e.statusMu.Unlock()
}

// Finish persists the impression history and the finalized campaigns.
// Called once after the last event.
func (e *Engine) Finish(ctx context.Context) error {
	if err := e.historyStore.Save(ctx, e.history.Records()); err != nil {
		return fmt.Errorf("save impression history: %w", err)
	}

	var finalized []models.Campaign
	for _, c := range e.ledger.All() {
		if c.Finalized {
			finalized = append(finalized, *c)
		}
	}
	if len(finalized) > 0 {
		if err := e.campaignLog.Append(ctx, finalized); err != nil {
			return fmt.Errorf("append campaign log: %w", err)
		}
	}

	if e.archive != nil {
		if err := e.archive.Archive(ctx, e.history.Records()); err != nil {
			// Archiving is best effort; the primary stores are written.
			e.log.Warn("archive impression history", zap.Error(err))
		}
	}

	perf := e.ledger.Performance()
	e.log.Info("game finished",
		zap.String("run_id", e.runID),
		zap.Int("campaigns_finalized", perf.NumCampaigns),
		zap.Float64("revenue", perf.Revenue),
		zap.Float64("profit", perf.Profit))
	return nil
}

// HandleEvent processes one inbound event and returns the messages to
// send back. A missing-reference error abandons the triggering event
// and leaves the rest of the ledger untouched; the engine stays usable
// for subsequent events.
func (e *Engine) HandleEvent(ev models.Event) ([]models.Outbound, error) {
	e.met.RecordEvent(eventName(ev))

	var out []models.Outbound
	var err error
	switch ev := ev.(type) {
	case models.InitialAssignment:
		e.handleInitialAssignment(ev)
	case models.CatalogAnnouncement:
		e.handleCatalog(ev)
	case models.OpportunityAnnouncement:
		out = e.handleOpportunity(ev)
	case models.AllocationNotification:
		e.handleAllocation(ev)
	case models.DeliveryReport:
		err = e.handleDelivery(ev)
	case models.DailyTick:
		out = e.handleDailyTick()
	case models.HistoricalOutcomeReport:
		e.handleOutcomeReport(ev)
	default:
		err = fmt.Errorf("unknown event %T", ev)
	}

	e.met.UpdateGameState(e.day, e.quality, len(e.ledger.ActiveOn(e.day)), e.history.Len())
	e.publishStatus()
	return out, err
}

// handleInitialAssignment creates the day-0 campaign allocated without
// an auction and records the server addresses.
func (e *Engine) handleInitialAssignment(ev models.InitialAssignment) {
	e.day = 0
	e.demandAddress = ev.DemandAddress
	e.exchangeAddress = ev.ExchangeAddress

	c := models.CampaignFromInitialAssignment(ev.Terms, float64(ev.BudgetMillis)/1000)
	c.Queries = models.CampaignQueries(e.publishers, c.TargetSegment)
	e.ledger.Add(c)
	e.current = c

	e.log.Info("initial campaign assigned",
		zap.Int("campaign_id", c.ID),
		zap.Int("day_start", c.DayStart),
		zap.Int("day_end", c.DayEnd),
		zap.Int64("reach", c.ReachImps),
		zap.Float64("budget", c.Budget))
}

// handleCatalog derives the static query space from the publisher
// catalog and refreshes the queries of any campaign created before the
// catalog arrived.
func (e *Engine) handleCatalog(ev models.CatalogAnnouncement) {
	e.publishers = ev.Publishers
	e.querySpace = models.QuerySpace(e.publishers)
	for _, c := range e.ledger.All() {
		c.Queries = models.CampaignQueries(e.publishers, c.TargetSegment)
	}
	e.log.Info("publisher catalog received",
		zap.Int("publishers", len(e.publishers)),
		zap.Int("query_space", len(e.querySpace)))
}

// handleOpportunity finalizes campaigns that ended yesterday, then
// bids on the announced campaign.
func (e *Engine) handleOpportunity(ev models.OpportunityAnnouncement) []models.Outbound {
	e.day = ev.Day

	finalized := e.ledger.FinalizeEnded(e.day, e.quality, e.quality-e.prevQuality)
	if len(finalized) > 0 {
		perf := e.ledger.Performance()
		e.met.RecordFinalized(len(finalized), perf.Revenue, perf.Profit)
		for _, c := range finalized {
			e.log.Info("campaign finalized",
				zap.Int("campaign_id", c.ID),
				zap.Float64("revenue", c.Revenue),
				zap.Float64("profit", c.Profit),
				zap.Float64("reach_fulfillment", c.ReachFulfillment),
				zap.Float64("quality_change", c.QualityChange))
		}
	}

	e.pending = models.CampaignFromOpportunity(ev.Terms)
	e.cmpBid = e.selector.SelectBid(e.day, e.pending, e.quality, e.ledger)

	strategy := "profit"
	switch {
	case e.day <= e.cfg.Strategy.StartupWindowDays:
		strategy = "starting"
	case e.quality < 1:
		strategy = "quality_recovery"
	}
	e.met.RecordCampaignBid(strategy, e.cmpBid)

	// The classification bid rides along with every campaign bid.
	if e.notified {
		e.ucsBid = 0.1 + e.rng.Float64()/10
	}

	e.log.Info("campaign opportunity",
		zap.Int("campaign_id", e.pending.ID),
		zap.Int("day", e.day),
		zap.Int64("reach", e.pending.ReachImps),
		zap.String("strategy", strategy),
		zap.Int64("bid_millis", int64(e.cmpBid*1000)),
		zap.Float64("ucs_bid", e.ucsBid))

	return []models.Outbound{models.CampaignBid{
		CampaignID:   e.pending.ID,
		BudgetMillis: int64(e.cmpBid * 1000),
		UCSBid:       e.ucsBid,
	}}
}

// handleAllocation ingests yesterday's auction results: quality score,
// the campaign allocation, and the classification cost split.
func (e *Engine) handleAllocation(ev models.AllocationNotification) {
	e.prevQuality = e.quality
	e.quality = ev.QualityScore
	e.notified = true

	won := e.pending != nil && e.pending.ID == ev.CampaignID && ev.CostMillis != 0
	if won {
		c := e.pending
		c.Budget = float64(ev.CostMillis) / 1000
		c.Bid = e.cmpBid
		c.Queries = models.CampaignQueries(e.publishers, c.TargetSegment)
		e.estimator.ChooseImpressionTarget(e.ledger, c, e.day, e.quality)
		e.ledger.Add(c)
		e.current = c
		e.pending = nil

		e.log.Info("campaign won",
			zap.Int("campaign_id", c.ID),
			zap.Float64("budget", c.Budget),
			zap.Float64("bid", c.Bid),
			zap.Int64("impression_target", c.ImpressionTarget))
	} else {
		e.log.Info("campaign allocated elsewhere",
			zap.Int("campaign_id", ev.CampaignID),
			zap.String("winner", ev.Winner),
			zap.Float64("quality", e.quality))
	}
	e.met.RecordAllocation(won)

	e.ledger.SplitUCSCost(e.day, ev.UCSPrice)
}

// handleDelivery overwrites each referenced campaign's cumulative
// delivered stats. Stats for unknown campaigns are skipped; known ones
// are still applied.
func (e *Engine) handleDelivery(ev models.DeliveryReport) error {
	var firstErr error
	for id, stats := range ev.Stats {
		if err := e.ledger.RecordDelivery(id, stats); err != nil {
			e.log.Warn("delivery report for unknown campaign", zap.Int("campaign_id", id))
			if firstErr == nil {
				firstErr = fmt.Errorf("campaign %d: %w", id, err)
			}
		}
	}
	return firstErr
}

// handleDailyTick builds the next day's bid bundle and advances the
// day counter.
func (e *Engine) handleDailyTick() []models.Outbound {
	bundle := e.allocator.Allocate(e.day+1, e.current, e.history)
	e.day++
	if bundle == nil {
		return nil
	}
	e.met.RecordBundle(len(bundle.Entries))
	return []models.Outbound{*bundle}
}

// handleOutcomeReport folds yesterday's per-cell outcomes into the
// impression history, dropping near-zero-cost cells.
func (e *Engine) handleOutcomeReport(ev models.HistoricalOutcomeReport) {
	added := 0
	for _, cell := range ev.Cells {
		if cell.CostMillis/1000 <= e.cfg.Estimator.MinRecordCost {
			continue
		}
		e.history.Add(models.NewImpressionRecord(
			e.runID, e.day, cell.CampaignID,
			cell.AdType, cell.Device, cell.Publisher,
			cell.Gender, cell.Income, cell.Age,
			cell.BidCount, cell.WinCount, cell.CostMillis,
		))
		added++
	}
	e.log.Debug("outcome report ingested",
		zap.Int("cells", len(ev.Cells)),
		zap.Int("recorded", added),
		zap.Int("history_size", e.history.Len()))
}

func eventName(ev models.Event) string {
	switch ev.(type) {
	case models.InitialAssignment:
		return "initial_assignment"
	case models.CatalogAnnouncement:
		return "catalog_announcement"
	case models.OpportunityAnnouncement:
		return "opportunity_announcement"
	case models.AllocationNotification:
		return "allocation_notification"
	case models.DeliveryReport:
		return "delivery_report"
	case models.DailyTick:
		return "daily_tick"
	case models.HistoricalOutcomeReport:
		return "historical_outcome_report"
	default:
		return "unknown"
	}
}
