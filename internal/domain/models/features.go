package models

import "time"

// Section names, in the order FeatureBuilder evaluates them.
const (
	SectionFunding        = "funding"
	SectionOpenInterest   = "open_interest"
	SectionWhales         = "whales"
	SectionEtf            = "etf"
	SectionSentiment      = "sentiment"
	SectionMicrostructure = "microstructure"
	SectionLiquidations   = "liquidations"
	SectionLongShort      = "long_short"
	SectionMomentum       = "momentum"
)

// Sections lists every snapshot section.
var Sections = []string{
	SectionFunding,
	SectionOpenInterest,
	SectionWhales,
	SectionEtf,
	SectionSentiment,
	SectionMicrostructure,
	SectionLiquidations,
	SectionLongShort,
	SectionMomentum,
}

// Regime labels.
const (
	RegimeBullTrend   = "BULL TREND"
	RegimeBearTrend   = "BEAR TREND"
	RegimeHighVolChop = "HIGH VOL CHOP"
	RegimeRange       = "RANGE"
	RegimeUnknown     = "UNKNOWN"
)

// Long/short bias labels.
const (
	BiasLongHeavy  = "LONG HEAVY"
	BiasShortHeavy = "SHORT HEAVY"
	BiasBalanced   = "BALANCED"
)

// FeatureSnapshot is the normalized view of all market domains at one point in time.
// A section without upstream data is the zero value and encodes as {}.
type FeatureSnapshot struct {
	Symbol         string                 `json:"symbol"`
	Pair           string                 `json:"pair"`
	Interval       string                 `json:"interval"`
	GeneratedAt    time.Time              `json:"generated_at"`
	Funding        FundingFeatures        `json:"funding"`
	OpenInterest   OpenInterestFeatures   `json:"open_interest"`
	Whales         WhaleFeatures          `json:"whales"`
	Etf            EtfFeatures            `json:"etf"`
	Sentiment      SentimentFeatures      `json:"sentiment"`
	Microstructure MicrostructureFeatures `json:"microstructure"`
	Liquidations   LiquidationFeatures    `json:"liquidations"`
	LongShort      LongShortFeatures      `json:"long_short"`
	Momentum       MomentumFeatures       `json:"momentum"`
	Health         *Health                `json:"health,omitempty"`
}

type Health struct {
	Completeness    float64           `json:"completeness"`
	MissingSections []string          `json:"missing_sections"`
	IsDegraded      bool              `json:"is_degraded"`
	Errors          map[string]string `json:"errors,omitempty"`
}

type FundingExchangeStats struct {
	Latest   *float64 `json:"latest,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	Std      *float64 `json:"std,omitempty"`
	ZScore   *float64 `json:"z_score,omitempty"`
	TrendPct *float64 `json:"trend_pct,omitempty"`
	Count    int      `json:"count,omitempty"`
}

type FundingFeatures struct {
	Exchanges map[string]FundingExchangeStats `json:"exchanges,omitempty"`
	HeatScore *float64                        `json:"heat_score,omitempty"`
	Consensus *float64                        `json:"consensus,omitempty"`
	TrendPct  *float64                        `json:"trend_pct,omitempty"`
	Interval  string                          `json:"interval,omitempty"`
}

type OpenInterestFeatures struct {
	Latest       *float64 `json:"latest,omitempty"`
	EMA6         *float64 `json:"ema_6,omitempty"`
	PctChange6h  *float64 `json:"pct_change_6h,omitempty"`
	PctChange24h *float64 `json:"pct_change_24h,omitempty"`
}

type WhaleFeatures struct {
	Inflow24h     *float64 `json:"inflow_24h,omitempty"`
	Outflow24h    *float64 `json:"outflow_24h,omitempty"`
	Net24h        *float64 `json:"net_24h,omitempty"`
	Inflow7d      *float64 `json:"inflow_7d,omitempty"`
	Outflow7d     *float64 `json:"outflow_7d,omitempty"`
	PressureScore *float64 `json:"pressure_score,omitempty"`
	CexRatio      *float64 `json:"cex_ratio,omitempty"`
	Transfers24h  int      `json:"transfers_24h,omitempty"`
	Transfers7d   int      `json:"transfers_7d,omitempty"`
	IsStale       bool     `json:"is_stale,omitempty"`
}

type EtfFeatures struct {
	LatestFlow *float64   `json:"latest_flow,omitempty"`
	LatestDate *time.Time `json:"latest_date,omitempty"`
	MA7        *float64   `json:"ma_7,omitempty"`
	MA30       *float64   `json:"ma_30,omitempty"`
	Streak     *int       `json:"streak,omitempty"`
}

type SentimentFeatures struct {
	Value          *float64 `json:"value,omitempty"`
	Classification string   `json:"classification,omitempty"`
	MA7            *float64 `json:"ma_7,omitempty"`
	MA30           *float64 `json:"ma_30,omitempty"`
}

type MicrostructureFeatures struct {
	OrderbookImbalance *float64 `json:"orderbook_imbalance,omitempty"`
	TakerBuyRatio      *float64 `json:"taker_buy_ratio,omitempty"`
	PctChange24h       *float64 `json:"pct_change_24h,omitempty"`
	Volatility24h      *float64 `json:"volatility_24h,omitempty"`
	LastPrice          *float64 `json:"last_price,omitempty"`
}

type LiquidationFeatures struct {
	LatestLongUSD  *float64 `json:"latest_long_usd,omitempty"`
	LatestShortUSD *float64 `json:"latest_short_usd,omitempty"`
	Long24hUSD     *float64 `json:"long_24h_usd,omitempty"`
	Short24hUSD    *float64 `json:"short_24h_usd,omitempty"`
}

type LongShortFeatures struct {
	GlobalNetRatio     *float64 `json:"global_net_ratio,omitempty"`
	GlobalChange24hPct *float64 `json:"global_change_24h_pct,omitempty"`
	GlobalBias         string   `json:"global_bias,omitempty"`
	TopNetRatio        *float64 `json:"top_net_ratio,omitempty"`
	TopChange24hPct    *float64 `json:"top_change_24h_pct,omitempty"`
	TopBias            string   `json:"top_bias,omitempty"`
	Divergence         *float64 `json:"divergence,omitempty"`
	IsStale            bool     `json:"is_stale,omitempty"`
}

type PriceRange struct {
	High     float64  `json:"high"`
	Low      float64  `json:"low"`
	WidthPct *float64 `json:"width_pct,omitempty"`
}

type MomentumFeatures struct {
	Change1h     *float64    `json:"change_1h,omitempty"`
	Change4h     *float64    `json:"change_4h,omitempty"`
	Change1d     *float64    `json:"change_1d,omitempty"`
	Change7d     *float64    `json:"change_7d,omitempty"`
	TrendScore   *float64    `json:"trend_score,omitempty"`
	Volatility   *float64    `json:"volatility,omitempty"`
	Regime       string      `json:"regime,omitempty"`
	RegimeReason string      `json:"regime_reason,omitempty"`
	Range        *PriceRange `json:"range,omitempty"`
	LastPrice    *float64    `json:"last_price,omitempty"`
}

// LastPrice returns the freshest close known to the snapshot.
func (s *FeatureSnapshot) LastPrice() *float64 {
	if s.Momentum.LastPrice != nil {
		return s.Momentum.LastPrice
	}
	return s.Microstructure.LastPrice
}

// Volatility prefers the momentum estimate and falls back to microstructure.
func (s *FeatureSnapshot) Volatility() *float64 {
	if s.Momentum.Volatility != nil {
		return s.Momentum.Volatility
	}
	return s.Microstructure.Volatility24h
}
