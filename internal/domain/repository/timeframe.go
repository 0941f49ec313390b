package repository

import "time"

// Interval is a bar resolution understood by the market data tables.
type Interval string

const (
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

var intervalDurations = map[Interval]time.Duration{
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval8h:  8 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// finer maps an interval to the resolution queried when it has no rows.
var finer = map[Interval]Interval{
	Interval1w:  Interval1d,
	Interval1d:  Interval4h,
	Interval12h: Interval4h,
	Interval8h:  Interval1h,
	Interval4h:  Interval1h,
	Interval1h:  Interval15m,
}

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	_, ok := intervalDurations[iv]
	return ok
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval1h }

// NormalizeInterval converts a raw string to a valid interval (or default).
func NormalizeInterval(s string) Interval {
	iv := Interval(s)
	if IsValidInterval(iv) {
		return iv
	}
	return DefaultInterval()
}

// FinerInterval returns the next finer interval, if any.
func FinerInterval(iv Interval) (Interval, bool) {
	f, ok := finer[iv]
	return f, ok
}

// Duration returns the bar length of iv.
func (iv Interval) Duration() time.Duration { return intervalDurations[iv] }
