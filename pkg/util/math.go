package util

import "math"

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// SafeDiv returns num/den, or nil if either operand is nil or den is zero.
func SafeDiv(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	v := *num / *den
	return &v
}

// SafePercentChange returns (cur-prev)/prev*100, or nil if either operand
// is nil or prev is zero.
func SafePercentChange(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	v := (*cur - *prev) / *prev * 100
	return &v
}

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
