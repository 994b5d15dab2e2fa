package models

import (
	"fmt"
	"strconv"
)

// ImpressionRecord is one historical outcome of bidding into a single
// (publisher, device, ad type, user attributes) cell on one day.
// Records are immutable once created and accumulate across games under
// the run id that produced them.
type ImpressionRecord struct {
	RunID      string `json:"run_id"`
	Day        int    `json:"day"`
	CampaignID int    `json:"campaign_id"`

	AdType    AdType `json:"ad_type"`
	Device    Device `json:"device"`
	Publisher string `json:"publisher"`

	Gender        Gender        `json:"gender"`
	GenderSegment MarketSegment `json:"gender_segment"`
	Income        Income        `json:"income"`
	IncomeSegment MarketSegment `json:"income_segment"`
	Age           Age           `json:"age"`
	AgeSegment    MarketSegment `json:"age_segment"`

	BidCount   int     `json:"bid_count"`
	WinCount   int     `json:"win_count"`
	TotalCost  float64 `json:"total_cost"`
	CostPerImp float64 `json:"cost_per_imp"`
	LostCount  int     `json:"lost_count"`
}

// NewImpressionRecord derives the segment and cost-per-impression
// fields from one raw report cell. The reported cost arrives in millis
// and is stored in whole currency units.
func NewImpressionRecord(runID string, day, campaignID int, adType AdType, device Device,
	publisher string, gender Gender, income Income, age Age,
	bidCount, winCount int, costMillis float64) ImpressionRecord {

	r := ImpressionRecord{
		RunID:         runID,
		Day:           day,
		CampaignID:    campaignID,
		AdType:        adType,
		Device:        device,
		Publisher:     publisher,
		Gender:        gender,
		GenderSegment: gender.Segment(),
		Income:        income,
		IncomeSegment: income.Segment(),
		Age:           age,
		AgeSegment:    age.Segment(),
		BidCount:      bidCount,
		WinCount:      winCount,
		TotalCost:     costMillis / 1000.0,
		LostCount:     bidCount - winCount,
	}
	if winCount > 0 {
		r.CostPerImp = r.TotalCost / float64(winCount)
	}
	return r
}

// ImpressionRecordHeader is the persisted column order for impression
// records. Kept stable for round-trip compatibility with earlier runs.
var ImpressionRecordHeader = []string{
	"RunId", "BidDay", "CampId", "AdType", "Device", "Publisher",
	"Gender", "MktGender", "Income", "MktIncome", "Age", "MktAge",
	"BidCount", "WinCount", "TotalCost", "CostImpr", "LostCount",
}

// MarshalRecord renders the record as one persisted row, columns in
// ImpressionRecordHeader order.
func (r ImpressionRecord) MarshalRecord() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		r.RunID,
		strconv.Itoa(r.Day),
		strconv.Itoa(r.CampaignID),
		string(r.AdType),
		string(r.Device),
		r.Publisher,
		string(r.Gender),
		string(r.GenderSegment),
		string(r.Income),
		string(r.IncomeSegment),
		string(r.Age),
		string(r.AgeSegment),
		strconv.Itoa(r.BidCount),
		strconv.Itoa(r.WinCount),
		f(r.TotalCost),
		f(r.CostPerImp),
		strconv.Itoa(r.LostCount),
	}
}

// UnmarshalImpressionRecord parses one persisted impression row.
func UnmarshalImpressionRecord(row []string) (ImpressionRecord, error) {
	if len(row) != len(ImpressionRecordHeader) {
		return ImpressionRecord{}, fmt.Errorf("impression record: want %d columns, got %d",
			len(ImpressionRecordHeader), len(row))
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
	pi := func(s string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(s)
		return v
	}

	r := ImpressionRecord{
		RunID:         row[0],
		Day:           pi(row[1]),
		CampaignID:    pi(row[2]),
		AdType:        AdType(row[3]),
		Device:        Device(row[4]),
		Publisher:     row[5],
		Gender:        Gender(row[6]),
		GenderSegment: MarketSegment(row[7]),
		Income:        Income(row[8]),
		IncomeSegment: MarketSegment(row[9]),
		Age:           Age(row[10]),
		AgeSegment:    MarketSegment(row[11]),
		BidCount:      pi(row[12]),
		WinCount:      pi(row[13]),
		TotalCost:     pf(row[14]),
		CostPerImp:    pf(row[15]),
		LostCount:     pi(row[16]),
	}
	if err != nil {
		return ImpressionRecord{}, fmt.Errorf("impression record day %s: %w", row[1], err)
	}
	return r, nil
}
