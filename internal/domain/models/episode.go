package models

import "fmt"

// DaySession labels the three canonical parts of a trading day.
type DaySession int32

const (
	Morning DaySession = iota
	Mid
	Close
	SessionCount
)

// Sessions lists all sessions in day order.
var Sessions = [SessionCount]DaySession{Morning, Mid, Close}

var sessionNames = [SessionCount]string{"morning", "mid", "close"}

func (s DaySession) String() string {
	if s < 0 || s >= SessionCount {
		return fmt.Sprintf("session(%d)", int32(s))
	}
	return sessionNames[s]
}

// ParseDaySession converts a config key into a DaySession.
func ParseDaySession(name string) (DaySession, error) {
	for i, n := range sessionNames {
		if n == name {
			return DaySession(i), nil
		}
	}
	return 0, fmt.Errorf("unknown session %q", name)
}

// Trend labels the direction and strength of a price episode.
type Trend int32

const (
	StrongUptrend Trend = iota
	MidUptrend
	WeakUptrend
	Consolidation
	WeakDowntrend
	MidDowntrend
	StrongDowntrend
	TrendCount
)

// Trends lists every trend label.
var Trends = [TrendCount]Trend{
	StrongUptrend, MidUptrend, WeakUptrend, Consolidation, WeakDowntrend, MidDowntrend, StrongDowntrend,
}

var trendNames = [TrendCount]string{
	"strong_uptrend", "mid_uptrend", "weak_uptrend", "consolidation",
	"weak_downtrend", "mid_downtrend", "strong_downtrend",
}

func (t Trend) String() string {
	if t < 0 || t >= TrendCount {
		return fmt.Sprintf("trend(%d)", int32(t))
	}
	return trendNames[t]
}

// ParseTrend converts a config key into a Trend.
func ParseTrend(name string) (Trend, error) {
	for i, n := range trendNames {
		if n == name {
			return Trend(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trend %q", name)
}

// Label is the set of episode label types.
type Label interface {
	DaySession | Trend
}

// Episode is a labeled span of time. Duration is in minutes.
type Episode[L Label] struct {
	Label    L
	Duration float64
}

// TotalDuration sums the durations of a partition.
func TotalDuration[L Label](eps []Episode[L]) float64 {
	var sum float64
	for _, e := range eps {
		sum += e.Duration
	}
	return sum
}

// DayResult is the sampled episode hierarchy of one day.
// Trends[i] partitions Sessions[i].
type DayResult struct {
	Sessions []Episode[DaySession]
	Trends   [][]Episode[Trend]
}
