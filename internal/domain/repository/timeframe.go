package repository

import "fmt"

// Timeframe is a bar resolution carried by every dataset row.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
)

// Timeframes lists every resolution carried by a dataset row.
var Timeframes = []Timeframe{TF1s, TF1m, TF5m}

// ParseTimeframe accepts "1s", "1m" or "5m".
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range Timeframes {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Seconds is the bar period length.
func (tf Timeframe) Seconds() int {
	switch tf {
	case TF1m:
		return 60
	case TF5m:
		return 300
	default:
		return 1
	}
}

// Column returns the dataset column name for a bar field at this resolution.
// One-second bars are the base columns and carry no suffix.
func (tf Timeframe) Column(field string) string {
	if tf == TF1s {
		return field
	}
	return field + "_" + string(tf)
}
