package analytics

import (
	"context"
	"math"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/util"
)

const (
	buyProbability  = 0.55
	sellProbability = 0.45
	scoreClamp      = 5.0
)

// Predictor yields a model probability for a feature payload.
type Predictor interface {
	Predict(ctx context.Context, payload *models.FeatureSnapshot) (float64, bool, error)
}

// AiSignalService combines the trained model with a score based fallback.
type AiSignalService struct {
	model   Predictor
	metrics repository.Metrics
	l       *applogger.Logger
}

func NewAiSignalService(model Predictor, metrics repository.Metrics, l *applogger.Logger) *AiSignalService {
	return &AiSignalService{model: model, metrics: metrics, l: l}
}

// Predict returns nil when neither the model nor score is available.
func (s *AiSignalService) Predict(ctx context.Context, payload *models.FeatureSnapshot, score *float64) (*models.AiPrediction, error) {
	p, ok, err := s.model.Predict(ctx, payload)
	if err != nil {
		return nil, err
	}
	source := models.AiSourceModel
	if !ok {
		if score == nil {
			return nil, nil
		}
		p = util.Sigmoid(util.Clamp(*score, -scoreClamp, scoreClamp))
		source = models.AiSourceScore
	}
	if s.metrics != nil {
		s.metrics.RecordAIPrediction(source)
	}
	return &models.AiPrediction{
		Probability: util.Round(p, 4),
		Decision:    Decide(p),
		Confidence:  util.Round(math.Abs(p-0.5)*2, 3),
		Source:      source,
	}, nil
}

// Decide maps a probability to a directional decision.
func Decide(p float64) models.SignalType {
	switch {
	case p >= buyProbability:
		return models.SignalBuy
	case p <= sellProbability:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}
