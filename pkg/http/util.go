package http

import (
	"time"

	xutil "MarketSignal/pkg/util"
)

// ParseTime accepts RFC3339, a bare date or unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseRange parses a required start and an optional end that defaults to now.
func ParseRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	from, ok := xutil.ParseTime(start)
	if !ok {
		return time.Time{}, time.Time{}, BadRequestErrorf("invalid start %q", start).WithField("start")
	}
	to := now.UTC()
	if end != "" {
		if to, ok = xutil.ParseTime(end); !ok {
			return time.Time{}, time.Time{}, BadRequestErrorf("invalid end %q", end).WithField("end")
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, BadRequestError("end is before start").WithField("end")
	}
	return from, to, nil
}
