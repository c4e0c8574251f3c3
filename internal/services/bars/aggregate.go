package bars

import (
	"math"

	"TradeSynth/internal/domain/models"
)

const (
	SecondsPerMinute     = 60
	SecondsPerFiveMinute = 300
)

// BucketSeconds groups time-ordered trades into n one-second bars by the
// truncated second of each trade. Seconds without trades carry the previous
// close forward (startPrice for a leading gap) with zero volume and spread.
func BucketSeconds(trades []models.Trade, n int, startPrice float64) []models.Bar {
	out := make([]models.Bar, n)
	last := startPrice
	k := 0
	var c Combiner
	for s := 0; s < n; s++ {
		c.Reset()
		bar := models.Bar{Open: last, High: last, Low: last, Close: last, VWAP: last}
		first := true
		for ; k < len(trades) && secondOf(trades[k].Time, n) <= s; k++ {
			tr := trades[k]
			if first {
				bar.Open, bar.High, bar.Low = tr.Price, tr.Price, tr.Price
				first = false
			}
			bar.High = math.Max(bar.High, tr.Price)
			bar.Low = math.Min(bar.Low, tr.Price)
			bar.Close = tr.Price
			bar.Volume += tr.Size
			c.Add(float64(tr.Size), tr.Price, 0)
		}
		if !first {
			bar.VWAP = c.Mean()
			bar.StdDev = c.StdDev()
			last = bar.Close
		}
		out[s] = bar
	}
	return out
}

func secondOf(t float64, n int) int {
	s := int(math.Floor(t))
	if s < 0 {
		return 0
	}
	if s >= n {
		return n - 1
	}
	return s
}

// Rollup merges seconds into bars of the given period. Entry i is the running
// bar from the start of its period through second i, so the completed bar of
// a period sits at its last second.
func Rollup(seconds []models.Bar, period int) []models.Bar {
	out := make([]models.Bar, len(seconds))
	var c Combiner
	var cur models.Bar
	for i, sec := range seconds {
		if i%period == 0 {
			c.Reset()
			cur = models.Bar{Open: sec.Open, High: sec.High, Low: sec.Low}
		}
		cur.High = math.Max(cur.High, sec.High)
		cur.Low = math.Min(cur.Low, sec.Low)
		cur.Close = sec.Close
		cur.Volume += sec.Volume
		c.Add(float64(sec.Volume), sec.VWAP, sec.StdDev)
		if c.Weight() > 0 {
			cur.VWAP = c.Mean()
			cur.StdDev = c.StdDev()
		} else {
			cur.VWAP = sec.VWAP
			cur.StdDev = 0
		}
		out[i] = cur
	}
	return out
}

// Labels returns the session and trend active at the start of each of n
// seconds.
func Labels(day models.DayResult, n int) ([]models.DaySession, []models.Trend) {
	sessions := make([]models.DaySession, n)
	trends := make([]models.Trend, n)

	type span struct {
		end     float64
		session models.DaySession
		trend   models.Trend
	}
	var spans []span
	var offset float64
	for i, se := range day.Sessions {
		for _, tr := range day.Trends[i] {
			offset += tr.Duration * SecondsPerMinute
			spans = append(spans, span{end: offset, session: se.Label, trend: tr.Label})
		}
	}
	if len(spans) == 0 {
		return sessions, trends
	}

	j := 0
	for s := 0; s < n; s++ {
		for j < len(spans)-1 && float64(s) >= spans[j].end {
			j++
		}
		sessions[s] = spans[j].session
		trends[s] = spans[j].trend
	}
	return sessions, trends
}

// SecondsPerDay converts a day length in minutes to a bar count.
func SecondsPerDay(dayMinutes float64) int {
	return int(math.Round(dayMinutes * SecondsPerMinute))
}

// Aggregate builds every resolution of a day from its chained trade stream.
func Aggregate(dayID int64, day models.DayResult, trades []models.Trade, startPrice float64) models.DayBars {
	n := SecondsPerDay(models.TotalDuration(day.Sessions))
	secs := BucketSeconds(trades, n, startPrice)
	sessions, trends := Labels(day, n)

	out := models.DayBars{
		DayID:      dayID,
		Seconds:    make([]models.SecondBar, n),
		Minute:     Rollup(secs, SecondsPerMinute),
		FiveMinute: Rollup(secs, SecondsPerFiveMinute),
	}
	for i := range secs {
		out.Seconds[i] = models.SecondBar{Bar: secs[i], Session: sessions[i], Trend: trends[i]}
	}
	return out
}
