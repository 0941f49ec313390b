package model

import "MarketSignal/internal/domain/models"

// feature is one column of the design matrix: a raw snapshot value divided by a fixed scale.
type feature struct {
	name  string
	scale float64
	value func(s *models.FeatureSnapshot) *float64
}

var featureSet = []feature{
	{"funding_heat", 3, func(s *models.FeatureSnapshot) *float64 { return s.Funding.HeatScore }},
	{"funding_trend", 100, func(s *models.FeatureSnapshot) *float64 { return s.Funding.TrendPct }},
	{"oi_change_24h", 10, func(s *models.FeatureSnapshot) *float64 { return s.OpenInterest.PctChange24h }},
	{"whale_pressure", 3, func(s *models.FeatureSnapshot) *float64 { return s.Whales.PressureScore }},
	{"whale_cex_ratio", 1, func(s *models.FeatureSnapshot) *float64 { return s.Whales.CexRatio }},
	{"etf_flow", 1e8, func(s *models.FeatureSnapshot) *float64 { return s.Etf.LatestFlow }},
	{"etf_streak", 10, etfStreak},
	{"sentiment", 100, func(s *models.FeatureSnapshot) *float64 { return s.Sentiment.Value }},
	{"taker_buy_ratio", 1, func(s *models.FeatureSnapshot) *float64 { return s.Microstructure.TakerBuyRatio }},
	{"liquidation_bias", 1, liquidationBias},
	{"volatility", 10, func(s *models.FeatureSnapshot) *float64 { return s.Volatility() }},
}

// FeatureNames lists the model inputs in vector order.
func FeatureNames() []string {
	names := make([]string, len(featureSet))
	for i, f := range featureSet {
		names[i] = f.name
	}
	return names
}

// Extract builds the scaled feature vector. It returns false when the
// funding, open interest and whale signals are all missing.
func Extract(s *models.FeatureSnapshot) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	if s.Funding.HeatScore == nil && s.OpenInterest.PctChange24h == nil && s.Whales.PressureScore == nil {
		return nil, false
	}
	x := make([]float64, len(featureSet))
	for i, f := range featureSet {
		if v := f.value(s); v != nil {
			x[i] = *v / f.scale
		}
	}
	return x, true
}

func etfStreak(s *models.FeatureSnapshot) *float64 {
	if s.Etf.Streak == nil {
		return nil
	}
	v := float64(*s.Etf.Streak)
	return &v
}

// liquidationBias is (shorts-longs)/(shorts+longs) over the last 24h.
func liquidationBias(s *models.FeatureSnapshot) *float64 {
	longs, shorts := s.Liquidations.Long24hUSD, s.Liquidations.Short24hUSD
	if longs == nil || shorts == nil || *longs+*shorts == 0 {
		return nil
	}
	v := (*shorts - *longs) / (*shorts + *longs)
	return &v
}
