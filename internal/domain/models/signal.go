package models

import "time"

type SignalType string

const (
	SignalBuy     SignalType = "BUY"
	SignalSell    SignalType = "SELL"
	SignalNeutral SignalType = "NEUTRAL"
)

type QualityStatus string

const (
	QualityHigh   QualityStatus = "HIGH"
	QualityMedium QualityStatus = "MEDIUM"
	QualityLow    QualityStatus = "LOW"
)

// SignalResult is the rule engine verdict for one snapshot.
type SignalResult struct {
	Signal     SignalType    `json:"signal"`
	Score      float64       `json:"score"`
	Confidence float64       `json:"confidence"`
	Reasons    []string      `json:"reasons"`
	Factors    []Factor      `json:"factors"`
	Quality    Quality       `json:"quality"`
	Meta       SignalMeta    `json:"meta"`
	AI         *AiPrediction `json:"ai,omitempty"`
}

type Factor struct {
	Code    string         `json:"code"`
	Reason  string         `json:"reason"`
	Weight  float64        `json:"weight"`
	Context map[string]any `json:"context"`
}

type Quality struct {
	Score  float64       `json:"score"`
	Status QualityStatus `json:"status"`
	Flags  []QualityFlag `json:"flags"`
}

type QualityFlag struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
}

type SignalMeta struct {
	Regime        string `json:"regime,omitempty"`
	RegimeReason  string `json:"regime_reason,omitempty"`
	LongShortBias string `json:"long_short_bias,omitempty"`
	TopTraderBias string `json:"top_trader_bias,omitempty"`
}

// AiPrediction is the model overlay output.
type AiPrediction struct {
	Probability float64    `json:"probability"`
	Decision    SignalType `json:"decision"`
	Confidence  float64    `json:"confidence"`
	Source      string     `json:"source"`
}

const (
	AiSourceModel = "model"
	AiSourceScore = "score_fallback"
)

// SignalEvent is published for every computed signal.
type SignalEvent struct {
	Symbol      string          `json:"symbol"`
	Pair        string          `json:"pair"`
	Interval    string          `json:"interval"`
	GeneratedAt time.Time       `json:"generated_at"`
	Signal      SignalType      `json:"signal"`
	Score       float64         `json:"score"`
	Confidence  float64         `json:"confidence"`
	Features    FeatureSnapshot `json:"features"`
}

// AnalyticsResult is the payload of the analytics endpoint.
type AnalyticsResult struct {
	Success  bool            `json:"success"`
	Symbol   string          `json:"symbol"`
	Signal   SignalResult    `json:"signal"`
	Features FeatureSnapshot `json:"features"`
}
