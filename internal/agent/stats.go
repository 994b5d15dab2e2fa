package agent

import (
	"math"

	"github.com/manullamas/adx-agent/internal/models"
)

// SegmentStats holds descriptive statistics of cost-per-impression
// over a filtered slice of the impression history.
type SegmentStats struct {
	Count    int
	Mean     float64
	Std      float64
	Variance float64
	Min      float64
	Max      float64
}

// History is the append-only impression-outcome record the aggregator
// scans. It accumulates over the lifetime of potentially many games
// and is only ever queried with linear predicate scans; at the game's
// scale (tens of days, hundreds of records) that is cheap enough that
// no index is kept.
type History struct {
	records []models.ImpressionRecord

	// fallbackCPI is returned as mean/min/max when nothing matches,
	// so a downstream bid never becomes zero or undefined.
	fallbackCPI float64
}

// NewHistory creates an empty history with the given no-data fallback
// cost per impression.
func NewHistory(fallbackCPI float64) *History {
	return &History{fallbackCPI: fallbackCPI}
}

// Add appends a record.
func (h *History) Add(r models.ImpressionRecord) {
	h.records = append(h.records, r)
}

// AddAll appends a batch of records, preserving order.
func (h *History) AddAll(rs []models.ImpressionRecord) {
	h.records = append(h.records, rs...)
}

// Len returns the number of stored records.
func (h *History) Len() int { return len(h.records) }

// Records returns the underlying record slice. Callers must not
// mutate it.
func (h *History) Records() []models.ImpressionRecord { return h.records }

// StatsForQuery computes cost-per-impression statistics for the
// history cells matching the query's segments, device and ad type.
// The demographic filter uses the most specific non-empty criteria
// combination present in the query; device and ad type always apply.
func (h *History) StatsForQuery(q models.Query) SegmentStats {
	gender, age, income := q.Segments.Axes()
	return h.stats(gender, age, income, func(r models.ImpressionRecord) bool {
		return r.AdType == q.AdType && r.Device == q.Device
	})
}

// StatsForSegments computes cost-per-impression statistics filtered by
// demographic criteria alone. Records for cells the agent never won
// are excluded: they carry no realized price.
func (h *History) StatsForSegments(gender, age, income models.MarketSegment) SegmentStats {
	return h.stats(gender, age, income, func(r models.ImpressionRecord) bool {
		return r.LostCount == 0
	})
}

// stats walks the history once with the most specific demographic
// predicate that the supplied criteria allow. The specificity ladder
// is fixed: gender+age+income, gender+age, age+income, gender+income,
// gender, age, income, none. Partial matches of different specificity
// are never averaged together.
func (h *History) stats(gender, age, income models.MarketSegment, extra func(models.ImpressionRecord) bool) SegmentStats {
	var match func(models.ImpressionRecord) bool
	switch {
	case gender != "" && age != "" && income != "":
		match = func(r models.ImpressionRecord) bool {
			return r.GenderSegment == gender && r.AgeSegment == age && r.IncomeSegment == income
		}
	case gender != "" && age != "":
		match = func(r models.ImpressionRecord) bool {
			return r.GenderSegment == gender && r.AgeSegment == age
		}
	case age != "" && income != "":
		match = func(r models.ImpressionRecord) bool {
			return r.AgeSegment == age && r.IncomeSegment == income
		}
	case gender != "" && income != "":
		match = func(r models.ImpressionRecord) bool {
			return r.GenderSegment == gender && r.IncomeSegment == income
		}
	case gender != "":
		match = func(r models.ImpressionRecord) bool { return r.GenderSegment == gender }
	case age != "":
		match = func(r models.ImpressionRecord) bool { return r.AgeSegment == age }
	case income != "":
		match = func(r models.ImpressionRecord) bool { return r.IncomeSegment == income }
	default:
		match = func(models.ImpressionRecord) bool { return true }
	}

	var acc statsAccumulator
	for _, r := range h.records {
		if match(r) && extra(r) {
			acc.add(r.CostPerImp)
		}
	}
	if acc.n == 0 {
		return SegmentStats{
			Mean: h.fallbackCPI,
			Min:  h.fallbackCPI,
			Max:  h.fallbackCPI,
		}
	}
	return acc.stats()
}

// statsAccumulator is a single-pass mean/variance/extrema accumulator
// (Welford's recurrence for the variance).
type statsAccumulator struct {
	n        int
	mean     float64
	m2       float64
	min, max float64
}

func (a *statsAccumulator) add(v float64) {
	a.n++
	if a.n == 1 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	delta := v - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (v - a.mean)
}

func (a *statsAccumulator) stats() SegmentStats {
	s := SegmentStats{
		Count: a.n,
		Mean:  a.mean,
		Min:   a.min,
		Max:   a.max,
	}
	if a.n > 1 {
		s.Variance = a.m2 / float64(a.n-1)
		s.Std = math.Sqrt(s.Variance)
	}
	return s
}
