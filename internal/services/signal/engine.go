// Package signal scores a FeatureSnapshot with an additive rule table.
package signal

import (
	"math"

	"MarketSignal/internal/domain/models"
	"MarketSignal/pkg/util"
)

const (
	// BuyThreshold and SellThreshold bound the NEUTRAL band (inclusive edges are directional).
	BuyThreshold  = 1.5
	SellThreshold = -1.5
	// confidenceScale is the |score| at which confidence saturates.
	confidenceScale = 5.0
)

type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over rules, or DefaultRules when none are given.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Rules returns the evaluated table in order.
func (e *Engine) Rules() []Rule { return e.rules }

// Score evaluates every rule. Rules are independent: all that hold fire,
// in table order, even when they contradict each other.
func (e *Engine) Score(snap *models.FeatureSnapshot) models.SignalResult {
	total := 0.0
	reasons := make([]string, 0, 8)
	factors := make([]models.Factor, 0, 8)
	for _, r := range e.rules {
		fields, ok := r.When(snap)
		if !ok {
			continue
		}
		total += r.Weight
		reasons = append(reasons, r.Reason)
		factors = append(factors, models.Factor{
			Code:    r.Code,
			Reason:  r.Reason,
			Weight:  r.Weight,
			Context: fields,
		})
	}

	score := util.Round(total, 2)
	return models.SignalResult{
		Signal:     DetermineSignal(score),
		Score:      score,
		Confidence: Confidence(score),
		Reasons:    reasons,
		Factors:    factors,
		Quality:    AssessQuality(snap, score),
		Meta: models.SignalMeta{
			Regime:        snap.Momentum.Regime,
			RegimeReason:  snap.Momentum.RegimeReason,
			LongShortBias: snap.LongShort.GlobalBias,
			TopTraderBias: snap.LongShort.TopBias,
		},
	}
}

func DetermineSignal(score float64) models.SignalType {
	switch {
	case score >= BuyThreshold:
		return models.SignalBuy
	case score <= SellThreshold:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}

// Confidence is min(|score|/5, 1) rounded to three decimals.
func Confidence(score float64) float64 {
	return util.Round(math.Min(math.Abs(score)/confidenceScale, 1), 3)
}
