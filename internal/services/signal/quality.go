package signal

import (
	"math"

	"MarketSignal/internal/domain/models"
	"MarketSignal/pkg/util"
)

const defaultCompleteness = 0.6

// AssessQuality grades how much the verdict can be trusted.
func AssessQuality(snap *models.FeatureSnapshot, score float64) models.Quality {
	q := defaultCompleteness
	if snap.Health != nil {
		q = snap.Health.Completeness
	}
	flags := make([]models.QualityFlag, 0, 4)

	if snap.Health != nil && snap.Health.IsDegraded {
		q -= 0.2
		flags = append(flags, models.QualityFlag{Code: "DEGRADED_DATA", Label: "Less than 70% of data sections available", Severity: "high"})
	}
	if snap.LongShort.IsStale {
		q -= 0.1
		flags = append(flags, models.QualityFlag{Code: "STALE_LONG_SHORT", Label: "Long/short data older than 6h", Severity: "medium"})
	}
	if vol := snap.Volatility(); vol != nil && *vol > 6 && math.Abs(score) < BuyThreshold {
		q -= 0.1
		flags = append(flags, models.QualityFlag{Code: "HIGH_VOL_LOW_CONVICTION", Label: "High volatility with weak score", Severity: "medium"})
	}
	if snap.Momentum.Regime == models.RegimeHighVolChop {
		q -= 0.05
		flags = append(flags, models.QualityFlag{Code: "HIGH_VOL_CHOP", Label: "Choppy high volatility regime", Severity: "low"})
	}

	q = util.Round(util.Clamp(q, 0.1, 1.0), 3)
	return models.Quality{Score: q, Status: qualityStatus(q), Flags: flags}
}

func qualityStatus(q float64) models.QualityStatus {
	switch {
	case q >= 0.8:
		return models.QualityHigh
	case q >= 0.55:
		return models.QualityMedium
	default:
		return models.QualityLow
	}
}
