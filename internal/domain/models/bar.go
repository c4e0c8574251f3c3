package models

// Bar is an OHLC bar with volume-weighted statistics.
type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	VWAP   float64
	Volume int64
	StdDev float64
}

// SecondBar is the one-second bar plus the labels active during that second.
type SecondBar struct {
	Bar
	Session DaySession
	Trend   Trend
}

// DayBars holds one simulated day at every resolution. Minute and FiveMinute
// hold running bars: entry i covers its period start through second i.
type DayBars struct {
	DayID      int64
	Seconds    []SecondBar
	Minute     []Bar
	FiveMinute []Bar
}
