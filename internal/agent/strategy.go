package agent

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/models"
)

// BidPolicy computes a bid bound or default from the pending
// campaign's contracted reach and the current quality score. The
// built-in policies are provisional heuristics; callers can swap in
// better-informed ones without touching the selector.
type BidPolicy func(reachImps int64, quality float64) float64

// Selector picks a campaign budget bid for a pending opportunity:
// one of three strategies by game phase and quality score, then a
// clamp into the auction's plausible bidding band.
type Selector struct {
	cfg config.StrategyConfig
	rng *rand.Rand
	log *zap.Logger

	// TooHigh is the ceiling above which a bid is replaced by a value
	// just under the quality-scaled reserve.
	TooHigh BidPolicy
	// TooLow is the floor below which a bid is raised just above the
	// quality-scaled minimum.
	TooLow BidPolicy
	// ColdStart produces the very first bid, before any campaign
	// besides the initial assignment is held.
	ColdStart BidPolicy
}

// NewSelector builds a selector with the default clamp and cold-start
// policies. The random source is injected so games are reproducible
// under a fixed seed.
func NewSelector(cfg config.StrategyConfig, rng *rand.Rand, log *zap.Logger) *Selector {
	s := &Selector{cfg: cfg, rng: rng, log: log}
	s.TooHigh = func(reach int64, quality float64) float64 {
		// Percentile of the implicit reserve, never above the
		// quality-scaled maximum the advertiser would pay.
		high := cfg.ReservePerImp * float64(reach) * cfg.TooHighPercentile / 100
		maxBid := cfg.ReservePerImp * float64(reach) * quality
		if high >= maxBid {
			high = maxBid
		}
		return high
	}
	s.TooLow = func(reach int64, quality float64) float64 {
		if quality <= 0 {
			quality = 1
		}
		return float64(reach) * cfg.FloorPerImp / quality
	}
	s.ColdStart = func(reach int64, quality float64) float64 {
		// Uniform over [0, reach) millis.
		return s.rng.Float64() * float64(reach) / 1000
	}
	return s
}

// SelectBid returns the budget bid for the pending campaign, already
// clamped into the bidding band.
func (s *Selector) SelectBid(day int, pending *models.Campaign, quality float64, ledger *Ledger) float64 {
	var bid float64
	switch {
	case day <= s.cfg.StartupWindowDays:
		bid = s.startingBid(pending, quality, ledger)
	case quality < 1:
		bid = s.qualityRecoveryBid(pending, quality, ledger)
	default:
		bid = s.profitBid(pending, quality, ledger)
	}
	return s.clamp(bid, pending.ReachImps, quality)
}

// profitBid prices the pending campaign off the mean historical cost
// per contracted impression across the other campaigns held, jittered
// by a bounded random factor. With no history beyond the initial
// assignment it falls back to the cold-start policy.
func (s *Selector) profitBid(pending *models.Campaign, quality float64, ledger *Ledger) float64 {
	if ledger.Len() > 1 {
		totalCostPerImp := 0.0
		for _, c := range ledger.All() {
			// The initial assignment was never auctioned; its budget
			// says nothing about market prices.
			if c.DayStart != 1 && c.ReachImps > 0 {
				totalCostPerImp += c.Budget / float64(c.ReachImps)
			}
		}
		factor := 0.8 + 0.4*s.rng.Float64()
		return float64(pending.ReachImps) * totalCostPerImp / float64(ledger.Len()-1) * factor
	}
	bid := s.ColdStart(pending.ReachImps, quality)
	s.log.Debug("cold-start campaign bid", zap.Float64("bid", bid))
	return bid
}

// qualityRecoveryBid scales the profit bid by quality squared. Low
// quality both cuts revenue per impression and cuts the odds of
// winning campaign auctions, so the effective bid must fall faster
// than linearly to keep winning while quality recovers.
func (s *Selector) qualityRecoveryBid(pending *models.Campaign, quality float64, ledger *Ledger) float64 {
	return s.profitBid(pending, quality, ledger) * quality * quality
}

// startingBid covers the opening days, before history means anything:
// the profit bid scaled by campaign length. Short campaigns are
// riskier per impression but carry less budget, so a higher margin is
// tolerated.
func (s *Selector) startingBid(pending *models.Campaign, quality float64, ledger *Ledger) float64 {
	base := s.profitBid(pending, quality, ledger)
	switch length := pending.Duration(); {
	case length >= 10:
		return base * 0.8
	case length >= 5:
		return base * 1.5
	default:
		return base * 2
	}
}

// clamp forces the bid into [floor, ceiling]: above the ceiling it is
// replaced by a value just under the quality-scaled reserve, capped
// at the ceiling, below the floor by a value just above the floor. A
// bid already inside the band passes through unchanged.
func (s *Selector) clamp(bid float64, reach int64, quality float64) float64 {
	if ceiling := s.TooHigh(reach, quality); bid >= ceiling {
		clamped := s.cfg.ReservePerImp*float64(reach)*quality - s.cfg.BidEpsilon
		if clamped > ceiling {
			clamped = ceiling
		}
		s.log.Debug("campaign bid above ceiling",
			zap.Float64("bid", bid), zap.Float64("ceiling", ceiling), zap.Float64("clamped", clamped))
		bid = clamped
	}
	if floor := s.TooLow(reach, quality); bid <= floor {
		clamped := floor + s.cfg.BidEpsilon
		s.log.Debug("campaign bid below floor",
			zap.Float64("bid", bid), zap.Float64("floor", floor), zap.Float64("clamped", clamped))
		bid = clamped
	}
	return bid
}
