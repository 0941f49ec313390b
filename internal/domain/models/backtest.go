package models

import "time"

const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

// SignalSnapshot is a persisted signal with its realized outcome, once known.
type SignalSnapshot struct {
	ID             string          `json:"id,omitempty"`
	Symbol         string          `json:"symbol"`
	Interval       string          `json:"interval,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
	PriceAtSignal  *float64        `json:"price_at_signal,omitempty"`
	PriceFuture    *float64        `json:"price_future,omitempty"`
	SignalRule     SignalType      `json:"signal_rule"`
	SignalScore    *float64        `json:"signal_score,omitempty"`
	LabelDirection string          `json:"label_direction,omitempty"`
	LabelMagnitude *float64        `json:"label_magnitude,omitempty"`
	Features       FeatureSnapshot `json:"features_payload"`
}

// HasOutcome reports whether the realized outcome was filled in.
func (s *SignalSnapshot) HasOutcome() bool {
	return s.PriceFuture != nil && s.LabelDirection != "" && s.LabelMagnitude != nil
}

type BacktestResult struct {
	Symbol   string          `json:"symbol"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Total    int             `json:"total"`
	Metrics  BacktestMetrics `json:"metrics"`
	Timeline []TimelineEntry `json:"timeline"`
}

type BacktestMetrics struct {
	BuySignals             int     `json:"buy_signals"`
	SellSignals            int     `json:"sell_signals"`
	NeutralSignals         int     `json:"neutral_signals"`
	Trades                 int     `json:"trades"`
	Wins                   int     `json:"wins"`
	WinRate                float64 `json:"win_rate"`
	AvgReturnPct           float64 `json:"avg_return_pct"`
	MedianReturnPct        float64 `json:"median_return_pct"`
	BestReturnPct          float64 `json:"best_return_pct"`
	WorstReturnPct         float64 `json:"worst_return_pct"`
	ProfitFactor           float64 `json:"profit_factor"`
	MaxDrawdownPct         float64 `json:"max_drawdown_pct"`
	CumulativeReturnPct    float64 `json:"cumulative_return_pct"`
	AIEvaluated            int     `json:"ai_evaluated"`
	AIAligned              int     `json:"ai_aligned"`
	AIAlignmentRate        float64 `json:"ai_alignment_rate"`
	AIStrongAligned        int     `json:"ai_strong_aligned"`
	AIFilteredWinRate      float64 `json:"ai_filtered_win_rate"`
	AIFilteredAvgReturnPct float64 `json:"ai_filtered_avg_return_pct"`
}

type TimelineEntry struct {
	GeneratedAt   time.Time  `json:"generated_at"`
	Signal        SignalType `json:"signal"`
	ReturnPct     float64    `json:"return_pct"`
	Cumulative    float64    `json:"cumulative"`
	Drawdown      float64    `json:"drawdown"`
	AIDecision    SignalType `json:"ai_decision,omitempty"`
	AIProbability *float64   `json:"ai_probability,omitempty"`
}
