package util

import (
	"strconv"
	"time"
)

var timeLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// ParseTime accepts RFC3339, "2006-01-02 15:04:05", a plain date or unix
// seconds. Layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// TradingDay returns the n-th weekday on or after start, keeping start's
// clock time. Simulated day ids map onto consecutive sessions this way.
func TradingDay(start time.Time, n int64) time.Time {
	d := start
	for isWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	// whole weeks first
	d = d.AddDate(0, 0, int(n/5)*7)
	for rem := n % 5; rem > 0; {
		d = d.AddDate(0, 0, 1)
		if !isWeekend(d) {
			rem--
		}
	}
	return d
}
