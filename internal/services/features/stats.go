package features

import (
	"math"

	"MarketSignal/pkg/util"
)

// Null-propagating arithmetic shared by every section.

func ptr(v float64) *float64 { return &v }

func pctChange(cur, prev float64) *float64 {
	return util.SafePercentChange(&cur, &prev)
}

// at returns the value at index i of a most-recent-first series.
func at(values []float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return ptr(values[i])
}

// pctChangeBack compares the newest value with the one n positions back.
func pctChangeBack(desc []float64, n int) *float64 {
	return util.SafePercentChange(at(desc, 0), at(desc, n))
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return ptr(sum / float64(len(values)))
}

// meanOf averages the non-nil values.
func meanOf(values []*float64) *float64 {
	vs := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			vs = append(vs, *v)
		}
	}
	return mean(vs)
}

// sampleStd uses the n-1 denominator and needs at least two values.
func sampleStd(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	m := *mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ptr(math.Sqrt(ss / float64(len(values)-1)))
}

// ema runs an exponential moving average over an ascending series seeded
// with its first value.
func ema(asc []float64, period int) *float64 {
	if len(asc) < 2 || period <= 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	e := asc[0]
	for _, v := range asc[1:] {
		e = v*k + e*(1-k)
	}
	return ptr(e)
}

// movingAverage averages up to period most recent values of a descending series.
func movingAverage(desc []float64, period int) *float64 {
	if period < len(desc) {
		desc = desc[:period]
	}
	return mean(desc)
}

// returnsStd is the sample std of the last window percent-change returns
// of a descending close series.
func returnsStd(desc []float64, window int) *float64 {
	n := window + 1
	if n > len(desc) {
		n = len(desc)
	}
	returns := make([]float64, 0, window)
	for i := n - 1; i > 0; i-- {
		if r := pctChange(desc[i-1], desc[i]); r != nil {
			returns = append(returns, *r)
		}
	}
	return sampleStd(returns)
}

func reversed(desc []float64) []float64 {
	out := make([]float64, len(desc))
	for i, v := range desc {
		out[len(desc)-1-i] = v
	}
	return out
}
