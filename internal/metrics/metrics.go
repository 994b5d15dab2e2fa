package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	// Event metrics
	EventsTotal *prometheus.CounterVec

	// Campaign auction metrics
	CampaignBids       *prometheus.CounterVec
	CampaignBidAmount  *prometheus.HistogramVec
	CampaignsWon       prometheus.Counter
	CampaignsLost      prometheus.Counter
	CampaignsFinalized prometheus.Counter

	// Impression bidding metrics
	BundleEntries prometheus.Counter
	Bundles       prometheus.Counter

	// Game state metrics
	Day             prometheus.Gauge
	QualityScore    prometheus.Gauge
	ProfitTotal     prometheus.Gauge
	RevenueTotal    prometheus.Gauge
	ActiveCampaigns prometheus.Gauge
	HistorySize     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total inbound game events by type",
			},
			[]string{"type"},
		),

		CampaignBids: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "campaign_bids_total",
				Help:      "Total campaign budget bids by strategy",
			},
			[]string{"strategy"},
		),
		CampaignBidAmount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "campaign_bid_dollars",
				Help:      "Campaign budget bids in dollars",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 25, 50},
			},
			[]string{"strategy"},
		),
		CampaignsWon: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "campaigns_won_total",
				Help:      "Campaign auctions won",
			},
		),
		CampaignsLost: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "campaigns_lost_total",
				Help:      "Campaign auctions lost",
			},
		),
		CampaignsFinalized: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "campaigns_finalized_total",
				Help:      "Campaigns finalized after their day window ended",
			},
		),

		BundleEntries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundle_entries_total",
				Help:      "Bid bundle entries emitted",
			},
		),
		Bundles: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundles_total",
				Help:      "Bid bundles emitted",
			},
		),

		Day: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "game_day",
				Help:      "Current simulation day",
			},
		),
		QualityScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quality_score",
				Help:      "Current quality score",
			},
		),
		ProfitTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "profit_dollars",
				Help:      "Realized profit across finalized campaigns",
			},
		),
		RevenueTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "revenue_dollars",
				Help:      "Realized revenue across finalized campaigns",
			},
		),
		ActiveCampaigns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_campaigns",
				Help:      "Campaigns inside their day window",
			},
		),
		HistorySize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "impression_history_records",
				Help:      "Impression records held in history",
			},
		),
	}

	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvent records an inbound event.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordCampaignBid records a campaign budget bid.
func (m *Metrics) RecordCampaignBid(strategy string, amount float64) {
	m.CampaignBids.WithLabelValues(strategy).Inc()
	m.CampaignBidAmount.WithLabelValues(strategy).Observe(amount)
}

// RecordAllocation records a campaign auction outcome.
func (m *Metrics) RecordAllocation(won bool) {
	if won {
		m.CampaignsWon.Inc()
	} else {
		m.CampaignsLost.Inc()
	}
}

// RecordBundle records an emitted bid bundle.
func (m *Metrics) RecordBundle(entries int) {
	m.Bundles.Inc()
	m.BundleEntries.Add(float64(entries))
}

// RecordFinalized records finalized campaigns and running totals.
func (m *Metrics) RecordFinalized(count int, revenue, profit float64) {
	m.CampaignsFinalized.Add(float64(count))
	m.RevenueTotal.Set(revenue)
	m.ProfitTotal.Set(profit)
}

// UpdateGameState updates the per-day gauges.
func (m *Metrics) UpdateGameState(day int, quality float64, active, historySize int) {
	m.Day.Set(float64(day))
	m.QualityScore.Set(quality)
	m.ActiveCampaigns.Set(float64(active))
	m.HistorySize.Set(float64(historySize))
}
