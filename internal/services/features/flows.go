package features

import (
	"context"
	"math"
	"strings"
	"time"

	"MarketSignal/internal/domain/models"
)

const (
	whaleLookback = 7 * 24 * time.Hour
	whaleLimit    = 1000
	etfLimit      = 60
	fearLimit     = 60
)

// exchangeKeywords identify centralized exchange wallets by owner name.
var exchangeKeywords = []string{
	"binance", "coinbase", "kraken", "okx", "okex", "bybit", "bitfinex",
	"huobi", "htx", "kucoin", "gemini", "bitstamp", "gate.io", "bitget",
	"crypto.com", "deribit", "upbit", "bithumb", "mexc",
}

func isExchange(owner string) bool {
	o := strings.ToLower(owner)
	if o == "" {
		return false
	}
	for _, k := range exchangeKeywords {
		if strings.Contains(o, k) {
			return true
		}
	}
	return false
}

func (b *Builder) whales(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	rows, err := b.repo.LatestWhaleTransfers(ctx, q.symbol, q.asOf.Add(-whaleLookback), whaleLimit, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}

	dayStart := q.asOf.Add(-24 * time.Hour)
	var in24, out24, in7, out7 float64
	count24 := 0
	for _, r := range rows {
		recent := !r.Time.Before(dayStart)
		if recent {
			count24++
		}
		amount := math.Abs(r.AmountUSD)
		switch {
		case isExchange(r.ToOwner):
			in7 += amount
			if recent {
				in24 += amount
			}
		case isExchange(r.FromOwner):
			out7 += amount
			if recent {
				out24 += amount
			}
		}
	}

	net := in24 - out24
	avgDaily := math.Max((in7+out7)/7, 1)
	w := models.WhaleFeatures{
		Inflow24h:     ptr(in24),
		Outflow24h:    ptr(out24),
		Net24h:        ptr(net),
		Inflow7d:      ptr(in7),
		Outflow7d:     ptr(out7),
		PressureScore: ptr(net / avgDaily),
		Transfers24h:  count24,
		Transfers7d:   len(rows),
		IsStale:       count24 == 0,
	}
	if in24+out24 > 0 {
		w.CexRatio = ptr(in24 / (in24 + out24))
	}
	snap.Whales = w
	return true, nil
}

func (b *Builder) etf(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	rows, err := b.repo.LatestEtfFlows(ctx, etfLimit, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	flows := make([]float64, len(rows))
	for i, r := range rows {
		flows[i] = r.NetFlowUSD
	}
	date := rows[0].Date
	streak := flowStreak(reversed(flows))
	snap.Etf = models.EtfFeatures{
		LatestFlow: at(flows, 0),
		LatestDate: &date,
		MA7:        movingAverage(flows, 7),
		MA30:       movingAverage(flows, 30),
		Streak:     &streak,
	}
	return true, nil
}

// flowStreak is the signed run length of same-sign days ending at the newest
// value of an ascending series. A zero day resets the run.
func flowStreak(asc []float64) int {
	streak := 0
	for _, v := range asc {
		switch {
		case v > 0:
			if streak < 0 {
				streak = 0
			}
			streak++
		case v < 0:
			if streak > 0 {
				streak = 0
			}
			streak--
		default:
			streak = 0
		}
	}
	return streak
}

func (b *Builder) sentiment(ctx context.Context, q query, snap *models.FeatureSnapshot) (bool, error) {
	rows, err := b.repo.FearGreedHistory(ctx, fearLimit, q.asOf)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = r.Value
	}
	snap.Sentiment = models.SentimentFeatures{
		Value:          at(values, 0),
		Classification: rows[0].Classification,
		MA7:            movingAverage(values, 7),
		MA30:           movingAverage(values, 30),
	}
	return true, nil
}
