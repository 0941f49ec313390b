package models

// Requests for HTTP endpoints. Defined in domain for reuse by the CLI.

type AnalyticsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,alphanum,max=20"`
	Pair   string `query:"pair" json:"pair" validate:"omitempty,alphanum,max=30"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=15m 1h 4h 8h 12h 1d 1w"`
	At     string `query:"at" json:"at"`
}

type BacktestRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,alphanum,max=20"`
	Start  string `query:"start" json:"start" validate:"required"`
	End    string `query:"end" json:"end"`
}

type TrainRequest struct {
	Symbol string `json:"symbol" validate:"required,alphanum,max=20"`
	Start  string `json:"start" validate:"required"`
	End    string `json:"end"`
}

type ModelSummary struct {
	Version      int64     `json:"version"`
	Samples      int       `json:"samples"`
	Epochs       int       `json:"epochs"`
	LearningRate float64   `json:"learning_rate"`
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	TrainedAt    string    `json:"trained_at"`
}
