// Package backtest replays labelled signal snapshots to score the strategy.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"
	"MarketSignal/pkg/util"

	"golang.org/x/sync/errgroup"
)

const (
	// zeroLossDivisor replaces the loss sum when a run has no losing trade.
	zeroLossDivisor = 0.0001
	// strongConfidence is the AI edge required to count a trade as strongly aligned.
	strongConfidence = 0.3
	defaultWorkers   = 8
)

// AiPredictor scores a stored payload with the model overlay.
type AiPredictor interface {
	Predict(ctx context.Context, payload *models.FeatureSnapshot, score *float64) (*models.AiPrediction, error)
}

type Service struct {
	store   repository.SnapshotStore
	ai      AiPredictor
	workers int
	metrics repository.Metrics
	l       *applogger.Logger
}

func NewService(store repository.SnapshotStore, ai AiPredictor, workers int, metrics repository.Metrics, l *applogger.Logger) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{store: store, ai: ai, workers: workers, metrics: metrics, l: l}
}

type Params struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

type trade struct {
	snap  *models.SignalSnapshot
	ret   float64
	win   bool
	aiKey string
}

// Run replays snapshots with a realized outcome in [Start, End].
func (s *Service) Run(ctx context.Context, p Params) (*models.BacktestResult, error) {
	start := time.Now()
	snaps, err := s.store.ListWithOutcome(ctx, p.Symbol, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	labelled := make([]models.SignalSnapshot, 0, len(snaps))
	for _, sn := range snaps {
		if sn.HasOutcome() {
			labelled = append(labelled, sn)
		}
	}
	sort.SliceStable(labelled, func(i, j int) bool {
		return labelled[i].GeneratedAt.Before(labelled[j].GeneratedAt)
	})

	res := &models.BacktestResult{
		Symbol:   p.Symbol,
		Start:    p.Start,
		End:      p.End,
		Total:    len(labelled),
		Timeline: []models.TimelineEntry{},
	}
	if len(labelled) == 0 {
		return res, nil
	}

	trades := make([]trade, 0, len(labelled))
	m := &res.Metrics
	for i := range labelled {
		sn := &labelled[i]
		switch sn.SignalRule {
		case models.SignalBuy:
			m.BuySignals++
			trades = append(trades, trade{snap: sn, ret: *sn.LabelMagnitude, win: sn.LabelDirection == models.DirectionUp, aiKey: cacheKey(sn, i)})
		case models.SignalSell:
			m.SellSignals++
			trades = append(trades, trade{snap: sn, ret: -*sn.LabelMagnitude, win: sn.LabelDirection == models.DirectionDown, aiKey: cacheKey(sn, i)})
		default:
			m.NeutralSignals++
		}
	}

	preds, err := s.predictAll(ctx, trades)
	if err != nil {
		return nil, err
	}

	returns := make([]float64, len(trades))
	var gains, losses float64
	var strongWins int
	var strongReturns float64
	equity, peak := 1.0, 1.0
	for i, tr := range trades {
		returns[i] = tr.ret
		if tr.win {
			m.Wins++
		}
		if tr.ret > 0 {
			gains += tr.ret
		} else {
			losses += math.Abs(tr.ret)
		}

		equity *= 1 + tr.ret/100
		peak = math.Max(peak, equity)
		drawdown := (equity - peak) / peak * 100
		m.MaxDrawdownPct = math.Min(m.MaxDrawdownPct, drawdown)

		entry := models.TimelineEntry{
			GeneratedAt: tr.snap.GeneratedAt,
			Signal:      tr.snap.SignalRule,
			ReturnPct:   util.Round(tr.ret, 4),
			Cumulative:  util.Round((equity-1)*100, 4),
			Drawdown:    util.Round(drawdown, 4),
		}
		if pred := preds[tr.aiKey]; pred != nil {
			prob := pred.Probability
			entry.AIDecision = pred.Decision
			entry.AIProbability = &prob

			m.AIEvaluated++
			if pred.Decision == tr.snap.SignalRule {
				m.AIAligned++
				if edge(pred.Probability) >= strongConfidence {
					m.AIStrongAligned++
					strongReturns += tr.ret
					if tr.win {
						strongWins++
					}
				}
			}
		}
		res.Timeline = append(res.Timeline, entry)
	}

	m.Trades = len(trades)
	m.WinRate = util.Round(float64(m.Wins)/math.Max(float64(m.BuySignals+m.SellSignals), 1), 4)
	if len(returns) > 0 {
		m.AvgReturnPct = util.Round(sum(returns)/float64(len(returns)), 4)
		m.MedianReturnPct = util.Round(median(returns), 4)
		m.BestReturnPct = util.Round(maxOf(returns), 4)
		m.WorstReturnPct = util.Round(minOf(returns), 4)
		m.ProfitFactor = util.Round(profitFactor(gains, losses), 4)
	}
	m.MaxDrawdownPct = util.Round(m.MaxDrawdownPct, 4)
	m.CumulativeReturnPct = util.Round((equity-1)*100, 4)
	if m.AIEvaluated > 0 {
		m.AIAlignmentRate = util.Round(float64(m.AIAligned)/float64(m.AIEvaluated), 4)
	}
	if m.AIStrongAligned > 0 {
		m.AIFilteredWinRate = util.Round(float64(strongWins)/float64(m.AIStrongAligned), 4)
		m.AIFilteredAvgReturnPct = util.Round(strongReturns/float64(m.AIStrongAligned), 4)
	}

	if s.metrics != nil {
		s.metrics.RecordLatency("backtest_run", time.Since(start).Seconds())
	}
	s.l.Info("backtest finished",
		applogger.String("symbol", p.Symbol),
		applogger.Int("snapshots", res.Total),
		applogger.Int("trades", m.Trades),
		applogger.Float("win_rate", m.WinRate),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

// predictAll scores every trade in parallel, keyed by cacheKey.
func (s *Service) predictAll(ctx context.Context, trades []trade) (map[string]*models.AiPrediction, error) {
	out := make(map[string]*models.AiPrediction, len(trades))
	if s.ai == nil {
		return out, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, tr := range trades {
		g.Go(func() error {
			pred, err := s.ai.Predict(gctx, &tr.snap.Features, tr.snap.SignalScore)
			if err != nil {
				return fmt.Errorf("ai predict %s: %w", tr.aiKey, err)
			}
			mu.Lock()
			out[tr.aiKey] = pred
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// cacheKey is the persisted id, or a timestamp and position key for
// snapshots without one.
func cacheKey(s *models.SignalSnapshot, i int) string {
	if s.ID != "" {
		return s.ID
	}
	return "ts:" + strconv.FormatInt(s.GeneratedAt.UnixNano(), 10) + ":" + strconv.Itoa(i)
}

// edge is the distance of p from a coin flip, scaled to [0, 1]. The
// prediction's Confidence is rounded to three places and must not be used
// against the cutoff.
func edge(p float64) float64 {
	return math.Abs(p-0.5) * 2
}

func profitFactor(gains, losses float64) float64 {
	if losses == 0 {
		return gains / zeroLossDivisor
	}
	return gains / losses
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}
	return m
}
