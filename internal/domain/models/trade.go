package models

// Trade is a single simulated execution. Time is seconds from the start of
// the episode (or of the day once trades are chained).
type Trade struct {
	Time  float64
	Price float64
	Size  int64
	Trend Trend
}
