package models

// Event is the closed set of inbound payloads the harness delivers to
// the engine, one per call. The unexported marker keeps the set sealed
// so dispatch is an exhaustive type switch.
type Event interface {
	event()
}

// InitialAssignment is delivered once on day 0: the campaign allocated
// to the agent without an auction, its budget, and the addresses of
// the demand and exchange servers.
type InitialAssignment struct {
	Terms        CampaignTerms `json:"terms"`
	BudgetMillis int64         `json:"budget_millis"`

	DemandAddress   string `json:"demand_address"`
	ExchangeAddress string `json:"exchange_address"`
}

// CatalogAnnouncement carries the publisher catalog the query space is
// derived from.
type CatalogAnnouncement struct {
	Publishers []string `json:"publishers"`
}

// OpportunityAnnouncement announces a campaign open for bidding. The
// campaign starts two or more days after the announcement; the bid is
// due the same day.
type OpportunityAnnouncement struct {
	Day   int           `json:"day"`
	Terms CampaignTerms `json:"terms"`
}

// AllocationNotification reports yesterday's campaign and
// classification-service auction results: the winner of the announced
// campaign, the price it cleared at, and the agent's classification
// service level, price and quality score for the coming day.
type AllocationNotification struct {
	CampaignID int    `json:"campaign_id"`
	CostMillis int64  `json:"cost_millis"`
	Winner     string `json:"winner"`

	UCSLevel     float64 `json:"ucs_level"`
	UCSPrice     float64 `json:"ucs_price"`
	QualityScore float64 `json:"quality_score"`
}

// DeliveryReport carries cumulative-since-day-1 delivery stats for
// each of the agent's campaigns.
type DeliveryReport struct {
	Stats map[int]CampaignStats `json:"stats"`
}

// DailyTick signals that computation time is up: the bid bundle for
// the next day is due and the day counter advances.
type DailyTick struct{}

// OutcomeCell is one cell of a historical outcome report: how the
// agent's impression bids fared for one user profile on one site.
type OutcomeCell struct {
	CampaignID int    `json:"campaign_id"`
	AdType     AdType `json:"ad_type"`
	Device     Device `json:"device"`
	Publisher  string `json:"publisher"`
	Gender     Gender `json:"gender"`
	Income     Income `json:"income"`
	Age        Age    `json:"age"`

	BidCount   int     `json:"bid_count"`
	WinCount   int     `json:"win_count"`
	CostMillis float64 `json:"cost_millis"`
}

// HistoricalOutcomeReport carries yesterday's per-cell auction
// outcomes for the agent's own bids.
type HistoricalOutcomeReport struct {
	Cells []OutcomeCell `json:"cells"`
}

func (InitialAssignment) event()       {}
func (CatalogAnnouncement) event()     {}
func (OpportunityAnnouncement) event() {}
func (AllocationNotification) event()  {}
func (DeliveryReport) event()          {}
func (DailyTick) event()               {}
func (HistoricalOutcomeReport) event() {}

// Outbound is the closed set of messages the engine hands back to the
// harness for delivery.
type Outbound interface {
	outbound()
}

// CampaignBid is the agent's answer to an opportunity announcement:
// a budget bid for the pending campaign plus the piggybacked
// classification-service bid.
type CampaignBid struct {
	CampaignID   int     `json:"campaign_id"`
	BudgetMillis int64   `json:"budget_millis"`
	UCSBid       float64 `json:"ucs_bid"`
}

// BidEntry is one per-query line of a daily bid bundle.
type BidEntry struct {
	Query      Query   `json:"query"`
	Price      float64 `json:"price"`
	CampaignID int     `json:"campaign_id"`
	Weight     float64 `json:"weight"`
}

// DailyLimit caps a campaign's spend for the day the bundle covers.
type DailyLimit struct {
	CampaignID      int     `json:"campaign_id"`
	ImpressionLimit int64   `json:"impression_limit"`
	BudgetLimit     float64 `json:"budget_limit"`
}

// BidBundle is the set of per-query bids plus daily caps submitted
// once per day to the exchange.
type BidBundle struct {
	Entries []BidEntry   `json:"entries"`
	Limits  []DailyLimit `json:"limits"`
}

func (CampaignBid) outbound() {}
func (BidBundle) outbound()   {}
