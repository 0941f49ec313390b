package signal

import (
	"testing"

	"MarketSignal/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func codes(q models.Quality) []string {
	out := make([]string, 0, len(q.Flags))
	for _, fl := range q.Flags {
		out = append(out, fl.Code)
	}
	return out
}

func TestQualityDefaultsWithoutHealth(t *testing.T) {
	q := AssessQuality(&models.FeatureSnapshot{}, 0)
	assert.Equal(t, 0.6, q.Score)
	assert.Equal(t, models.QualityMedium, q.Status)
	assert.Empty(t, q.Flags)
}

func TestQualityFullData(t *testing.T) {
	snap := &models.FeatureSnapshot{Health: &models.Health{Completeness: 1}}
	q := AssessQuality(snap, 2)
	assert.Equal(t, 1.0, q.Score)
	assert.Equal(t, models.QualityHigh, q.Status)
}

func TestQualityPenaltiesStack(t *testing.T) {
	snap := &models.FeatureSnapshot{
		Health:    &models.Health{Completeness: 5.0 / 9, IsDegraded: true},
		LongShort: models.LongShortFeatures{IsStale: true},
		Momentum:  models.MomentumFeatures{Volatility: f(7), Regime: models.RegimeHighVolChop},
	}
	q := AssessQuality(snap, 0.5)

	assert.Equal(t, []string{"DEGRADED_DATA", "STALE_LONG_SHORT", "HIGH_VOL_LOW_CONVICTION", "HIGH_VOL_CHOP"}, codes(q))
	assert.Equal(t, 0.106, q.Score)
	assert.Equal(t, models.QualityLow, q.Status)
}

func TestQualityClampsAtFloor(t *testing.T) {
	snap := &models.FeatureSnapshot{Health: &models.Health{Completeness: 0, IsDegraded: true}}
	q := AssessQuality(snap, 0)
	assert.Equal(t, 0.1, q.Score)
}

func TestQualityVolatilityFallsBackToMicrostructure(t *testing.T) {
	snap := &models.FeatureSnapshot{
		Health:         &models.Health{Completeness: 1},
		Microstructure: models.MicrostructureFeatures{Volatility24h: f(8)},
	}
	assert.Contains(t, codes(AssessQuality(snap, 1)), "HIGH_VOL_LOW_CONVICTION")
	assert.NotContains(t, codes(AssessQuality(snap, 1.5)), "HIGH_VOL_LOW_CONVICTION")
}
