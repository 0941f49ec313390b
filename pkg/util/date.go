package util

import (
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// ParseTime accepts RFC3339 (with or without fraction), a bare date or
// unix seconds. The result is in UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses s or returns def if empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
