package signal

import (
	"math"

	"MarketSignal/internal/domain/models"
)

// Rule adds Weight to the score when When reports true. The returned map
// holds the feature values that triggered it.
type Rule struct {
	Code   string
	Reason string
	Weight float64
	When   func(s *models.FeatureSnapshot) (map[string]any, bool)
}

type fields = map[string]any

// above builds a predicate firing when the selected value is > threshold.
func above(name string, sel func(*models.FeatureSnapshot) *float64, threshold float64) func(*models.FeatureSnapshot) (map[string]any, bool) {
	return func(s *models.FeatureSnapshot) (map[string]any, bool) {
		v := sel(s)
		if v == nil || !(*v > threshold) {
			return nil, false
		}
		return fields{name: *v}, true
	}
}

// below builds a predicate firing when the selected value is < threshold.
func below(name string, sel func(*models.FeatureSnapshot) *float64, threshold float64) func(*models.FeatureSnapshot) (map[string]any, bool) {
	return func(s *models.FeatureSnapshot) (map[string]any, bool) {
		v := sel(s)
		if v == nil || !(*v < threshold) {
			return nil, false
		}
		return fields{name: *v}, true
	}
}

func atLeast(name string, sel func(*models.FeatureSnapshot) *float64, threshold float64) func(*models.FeatureSnapshot) (map[string]any, bool) {
	return func(s *models.FeatureSnapshot) (map[string]any, bool) {
		v := sel(s)
		if v == nil || *v < threshold {
			return nil, false
		}
		return fields{name: *v}, true
	}
}

func atMost(name string, sel func(*models.FeatureSnapshot) *float64, threshold float64) func(*models.FeatureSnapshot) (map[string]any, bool) {
	return func(s *models.FeatureSnapshot) (map[string]any, bool) {
		v := sel(s)
		if v == nil || *v > threshold {
			return nil, false
		}
		return fields{name: *v}, true
	}
}

func fundingHeat(s *models.FeatureSnapshot) *float64 { return s.Funding.HeatScore }
func fundingTrend(s *models.FeatureSnapshot) *float64 { return s.Funding.TrendPct }
func oiChange24h(s *models.FeatureSnapshot) *float64 { return s.OpenInterest.PctChange24h }
func whalePressure(s *models.FeatureSnapshot) *float64 { return s.Whales.PressureScore }
func cexRatio(s *models.FeatureSnapshot) *float64 { return s.Whales.CexRatio }
func sentimentValue(s *models.FeatureSnapshot) *float64 { return s.Sentiment.Value }
func takerRatio(s *models.FeatureSnapshot) *float64 { return s.Microstructure.TakerBuyRatio }
func bookImbalance(s *models.FeatureSnapshot) *float64 { return s.Microstructure.OrderbookImbalance }
func trendScore(s *models.FeatureSnapshot) *float64 { return s.Momentum.TrendScore }
func change1d(s *models.FeatureSnapshot) *float64 { return s.Momentum.Change1d }
func change7d(s *models.FeatureSnapshot) *float64 { return s.Momentum.Change7d }
func globalNet(s *models.FeatureSnapshot) *float64 { return s.LongShort.GlobalNetRatio }
func topNet(s *models.FeatureSnapshot) *float64 { return s.LongShort.TopNetRatio }
func divergence(s *models.FeatureSnapshot) *float64 { return s.LongShort.Divergence }

func etfStreak(s *models.FeatureSnapshot) *float64 {
	if s.Etf.Streak == nil {
		return nil
	}
	v := float64(*s.Etf.Streak)
	return &v
}

func rangeWidth(s *models.FeatureSnapshot) *float64 {
	if s.Momentum.Range == nil {
		return nil
	}
	return s.Momentum.Range.WidthPct
}

// DefaultRules is the ordered scoring table.
func DefaultRules() []Rule {
	return []Rule{
		// funding
		{"FUNDING_OVERHEATED", "Funding overheated", -2, above("heat_score", fundingHeat, 1.5)},
		{"FUNDING_DEEPLY_NEGATIVE", "Funding deeply negative", 2, below("heat_score", fundingHeat, -1.5)},
		{"FUNDING_TREND_UP", "Funding trending higher", 0.6, above("trend_pct", fundingTrend, 15)},
		{"FUNDING_TREND_DOWN", "Funding trending lower", -0.6, below("trend_pct", fundingTrend, -15)},

		// open interest
		{"LEVERAGE_BUILDUP", "Leverage build-up", -1.5, leverageBuildup},
		{"DELEVERAGING", "Open interest flush", 1.0, below("oi_change_24h", oiChange24h, -2)},

		// whales
		{"WHALE_EXCHANGE_INFLOW", "Whales moving coins to exchanges", -1.5, above("pressure_score", whalePressure, 1.2)},
		{"WHALE_EXCHANGE_OUTFLOW", "Whales withdrawing from exchanges", 1.5, below("pressure_score", whalePressure, -1.2)},
		{"CEX_INFLOW_DOMINANT", "Exchange inflows dominate", -0.6, above("cex_ratio", cexRatio, 0.65)},
		{"CEX_OUTFLOW_DOMINANT", "Exchange outflows dominate", 0.6, below("cex_ratio", cexRatio, 0.35)},

		// etf
		{"ETF_INFLOW_ABOVE_AVERAGE", "ETF inflows above 7d average", 1.2, etfInflow},
		{"ETF_OUTFLOW_BELOW_AVERAGE", "ETF outflows below 7d average", -1.2, etfOutflow},
		{"ETF_INFLOW_STREAK", "ETF inflow streak", 0.9, atLeast("streak", etfStreak, 3)},
		{"ETF_OUTFLOW_STREAK", "ETF outflow streak", -0.9, atMost("streak", etfStreak, -3)},

		// sentiment
		{"EXTREME_GREED", "Extreme greed", -1.0, atLeast("value", sentimentValue, 70)},
		{"EXTREME_FEAR", "Extreme fear", 1.0, atMost("value", sentimentValue, 30)},

		// microstructure
		{"TAKER_BUYERS", "Aggressive buyers in control", 0.8, above("taker_buy_ratio", takerRatio, 0.55)},
		{"TAKER_SELLERS", "Aggressive sellers in control", -0.8, below("taker_buy_ratio", takerRatio, 0.45)},
		{"BID_IMBALANCE", "Order book bid heavy", 0.5, above("orderbook_imbalance", bookImbalance, 0.1)},
		{"ASK_IMBALANCE", "Order book ask heavy", -0.5, below("orderbook_imbalance", bookImbalance, -0.1)},
		{"HIGH_VOL_SELLING", "High volatility selling", -0.6, highVolSelling},
		{"CALM_ACCUMULATION", "Calm accumulation", 0.5, calmAccumulation},

		// liquidations
		{"LONG_LIQUIDATIONS", "Longs flushed", 0.8, longsFlushed},
		{"SHORT_LIQUIDATIONS", "Shorts squeezed", -0.8, shortsSqueezed},

		// momentum
		{"TREND_UP", "Bullish momentum", 1.1, above("trend_score", trendScore, 1.2)},
		{"TREND_DOWN", "Bearish momentum", -1.1, below("trend_score", trendScore, -1.2)},
		{"DAY_MOVE_UP", "Strong daily gain", 0.6, above("change_1d", change1d, 2)},
		{"DAY_MOVE_DOWN", "Strong daily loss", -0.6, below("change_1d", change1d, -2)},
		{"WEEK_MOVE_UP", "Strong weekly gain", 0.4, above("change_7d", change7d, 5)},
		{"WEEK_MOVE_DOWN", "Strong weekly loss", -0.4, below("change_7d", change7d, -5)},

		// long/short
		{"CROWD_LONG", "Crowd leaning long", 0.7, above("global_net_ratio", globalNet, 0.04)},
		{"CROWD_SHORT", "Crowd leaning short", -0.7, below("global_net_ratio", globalNet, -0.04)},
		{"TOP_TRADERS_LONG", "Top traders long", 0.9, above("top_net_ratio", topNet, 0.06)},
		{"TOP_TRADERS_SHORT", "Top traders short", -0.9, below("top_net_ratio", topNet, -0.06)},
		{"TOP_TRADERS_MORE_LONG", "Top traders longer than crowd", 0.5, above("divergence", divergence, 0.05)},
		{"TOP_TRADERS_MORE_SHORT", "Top traders shorter than crowd", -0.5, below("divergence", divergence, -0.05)},

		// range
		{"TIGHT_RANGE", "Tight range, fakeout risk", -0.4, below("width_pct", rangeWidth, 1.5)},
		{"RANGE_BREAKOUT", "Wide range supports breakout", 0.3, rangeBreakout},
	}
}

func leverageBuildup(s *models.FeatureSnapshot) (map[string]any, bool) {
	oi, heat := oiChange24h(s), fundingHeat(s)
	if oi == nil || heat == nil || !(*oi > 2 && *heat > 0.5) {
		return nil, false
	}
	return fields{"oi_change_24h": *oi, "heat_score": *heat}, true
}

func etfInflow(s *models.FeatureSnapshot) (map[string]any, bool) {
	flow, ma := s.Etf.LatestFlow, s.Etf.MA7
	if flow == nil || ma == nil || !(*flow > 0 && *flow > *ma) {
		return nil, false
	}
	return fields{"latest_flow": *flow, "ma_7": *ma}, true
}

func etfOutflow(s *models.FeatureSnapshot) (map[string]any, bool) {
	flow, ma := s.Etf.LatestFlow, s.Etf.MA7
	if flow == nil || ma == nil || !(*flow < 0 && *flow < *ma) {
		return nil, false
	}
	return fields{"latest_flow": *flow, "ma_7": *ma}, true
}

func highVolSelling(s *models.FeatureSnapshot) (map[string]any, bool) {
	vol, taker := s.Microstructure.Volatility24h, takerRatio(s)
	if vol == nil || taker == nil || !(*vol > 5 && *taker < 0.45) {
		return nil, false
	}
	return fields{"volatility_24h": *vol, "taker_buy_ratio": *taker}, true
}

func calmAccumulation(s *models.FeatureSnapshot) (map[string]any, bool) {
	vol, taker := s.Microstructure.Volatility24h, takerRatio(s)
	if vol == nil || taker == nil || !(*vol < 1.5 && *taker > 0.55) {
		return nil, false
	}
	return fields{"volatility_24h": *vol, "taker_buy_ratio": *taker}, true
}

const liquidationSkew = 1.5

func longsFlushed(s *models.FeatureSnapshot) (map[string]any, bool) {
	longs, shorts := s.Liquidations.Long24hUSD, s.Liquidations.Short24hUSD
	if longs == nil || shorts == nil || !(*longs > liquidationSkew*(*shorts)) {
		return nil, false
	}
	return fields{"long_24h_usd": *longs, "short_24h_usd": *shorts}, true
}

func shortsSqueezed(s *models.FeatureSnapshot) (map[string]any, bool) {
	longs, shorts := s.Liquidations.Long24hUSD, s.Liquidations.Short24hUSD
	if longs == nil || shorts == nil || !(*shorts > liquidationSkew*(*longs)) {
		return nil, false
	}
	return fields{"long_24h_usd": *longs, "short_24h_usd": *shorts}, true
}

func rangeBreakout(s *models.FeatureSnapshot) (map[string]any, bool) {
	width, trend := rangeWidth(s), trendScore(s)
	if width == nil || trend == nil || !(*width > 6 && math.Abs(*trend) > 1) {
		return nil, false
	}
	return fields{"width_pct": *width, "trend_score": *trend}, true
}
