package bars

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSynth/internal/domain/models"
)

func twoPass(trades []models.Trade) (mean, std float64, volume int64) {
	var wsum, psum float64
	for _, tr := range trades {
		wsum += float64(tr.Size)
		psum += float64(tr.Size) * tr.Price
		volume += tr.Size
	}
	mean = psum / wsum
	var ss float64
	for _, tr := range trades {
		d := tr.Price - mean
		ss += float64(tr.Size) * d * d
	}
	return mean, math.Sqrt(ss / wsum), volume
}

// six seconds of trades; seconds 2 and 4 are empty
var fixture = []models.Trade{
	{Time: 0.10, Price: 100.00, Size: 100},
	{Time: 0.55, Price: 100.20, Size: 300},
	{Time: 0.90, Price: 99.90, Size: 50},
	{Time: 1.20, Price: 100.40, Size: 200},
	{Time: 1.70, Price: 100.35, Size: 120},
	{Time: 3.05, Price: 100.10, Size: 80},
	{Time: 3.50, Price: 99.80, Size: 400},
	{Time: 3.99, Price: 99.95, Size: 10},
	{Time: 5.25, Price: 101.00, Size: 700},
}

func tradesIn(lo, hi float64) []models.Trade {
	var out []models.Trade
	for _, tr := range fixture {
		if tr.Time >= lo && tr.Time < hi {
			out = append(out, tr)
		}
	}
	return out
}

func TestCombinerMatchesTwoPass(t *testing.T) {
	var c Combiner
	for _, tr := range fixture {
		c.Add(float64(tr.Size), tr.Price, 0)
	}
	mean, std, volume := twoPass(fixture)
	assert.InEpsilon(t, mean, c.Mean(), 1e-12)
	assert.InEpsilon(t, std, c.StdDev(), 1e-9)
	assert.Equal(t, float64(volume), c.Weight())
}

func TestCombinerEmptyAndZeroWeight(t *testing.T) {
	var c Combiner
	c.Add(0, 123, 5)
	assert.Zero(t, c.Weight())
	assert.Zero(t, c.Variance())
	assert.Zero(t, c.StdDev())

	c.Add(10, 50, 0)
	c.Reset()
	assert.Zero(t, c.Mean())
}

func TestBucketSecondsForwardFill(t *testing.T) {
	secs := BucketSeconds(fixture, 6, 99.5)
	require.Len(t, secs, 6)

	for _, lo := range []float64{0, 1, 3, 5} {
		group := tradesIn(lo, lo+1)
		mean, std, volume := twoPass(group)
		bar := secs[int(lo)]
		assert.InEpsilon(t, mean, bar.VWAP, 1e-12)
		assert.InDelta(t, std, bar.StdDev, 1e-9)
		assert.Equal(t, volume, bar.Volume)
		assert.Equal(t, group[0].Price, bar.Open)
		assert.Equal(t, group[len(group)-1].Price, bar.Close)
	}

	empty := secs[2]
	assert.Equal(t, int64(0), empty.Volume)
	assert.Zero(t, empty.StdDev)
	assert.Equal(t, secs[1].Close, empty.VWAP)
	assert.Equal(t, secs[1].Close, empty.Open)
	assert.Equal(t, secs[1].Close, empty.High)
	assert.Equal(t, secs[1].Close, empty.Low)
	assert.Equal(t, secs[1].Close, empty.Close)
}

func TestBucketSecondsLeadingGapUsesStartPrice(t *testing.T) {
	secs := BucketSeconds([]models.Trade{{Time: 2.5, Price: 101, Size: 5}}, 4, 100)
	for _, s := range []int{0, 1} {
		assert.Equal(t, 100.0, secs[s].VWAP)
		assert.Equal(t, int64(0), secs[s].Volume)
	}
	assert.Equal(t, 101.0, secs[2].VWAP)
	assert.Equal(t, 101.0, secs[3].Close)
}

func TestRollupMatchesTwoPassPerPeriod(t *testing.T) {
	secs := BucketSeconds(fixture, 6, 99.5)
	rolled := Rollup(secs, 3)
	require.Len(t, rolled, 6)

	for _, period := range [][2]float64{{0, 3}, {3, 6}} {
		group := tradesIn(period[0], period[1])
		mean, std, volume := twoPass(group)
		bar := rolled[int(period[1])-1]
		assert.InEpsilon(t, mean, bar.VWAP, 1e-9)
		assert.InEpsilon(t, std, bar.StdDev, 1e-9)
		assert.Equal(t, volume, bar.Volume)
		assert.Equal(t, group[0].Price, bar.Open)
		assert.Equal(t, group[len(group)-1].Price, bar.Close)

		hi, lo := math.Inf(-1), math.Inf(1)
		for _, tr := range group {
			hi = math.Max(hi, tr.Price)
			lo = math.Min(lo, tr.Price)
		}
		assert.Equal(t, hi, bar.High)
		assert.Equal(t, lo, bar.Low)
	}

	// running bar mid-period covers only the seconds seen so far
	mean, std, volume := twoPass(tradesIn(0, 2))
	assert.InEpsilon(t, mean, rolled[1].VWAP, 1e-9)
	assert.InEpsilon(t, std, rolled[1].StdDev, 1e-9)
	assert.Equal(t, volume, rolled[1].Volume)
}

func TestRollupEmptyPeriodForwardFills(t *testing.T) {
	secs := BucketSeconds([]models.Trade{{Time: 0.5, Price: 50, Size: 10}}, 4, 49)
	rolled := Rollup(secs, 2)
	assert.Equal(t, int64(0), rolled[3].Volume)
	assert.Equal(t, 50.0, rolled[3].VWAP)
	assert.Zero(t, rolled[3].StdDev)
}

func TestLabelsFollowEpisodes(t *testing.T) {
	day := models.DayResult{
		Sessions: []models.Episode[models.DaySession]{
			{Label: models.Morning, Duration: 0.0625},
			{Label: models.Mid, Duration: 0.0625},
		},
		Trends: [][]models.Episode[models.Trend]{
			{{Label: models.StrongUptrend, Duration: 0.03125}, {Label: models.Consolidation, Duration: 0.03125}},
			{{Label: models.WeakDowntrend, Duration: 0.0625}},
		},
	}
	// 7.5 seconds rounds up to 8 bars
	n := SecondsPerDay(models.TotalDuration(day.Sessions))
	require.Equal(t, 8, n)

	sessions, trends := Labels(day, n)
	assert.Equal(t, []models.DaySession{
		models.Morning, models.Morning, models.Morning, models.Morning,
		models.Mid, models.Mid, models.Mid, models.Mid,
	}, sessions)
	assert.Equal(t, []models.Trend{
		models.StrongUptrend, models.StrongUptrend, models.Consolidation, models.Consolidation,
		models.WeakDowntrend, models.WeakDowntrend, models.WeakDowntrend, models.WeakDowntrend,
	}, trends)
}

func TestAggregateFullDay(t *testing.T) {
	day := models.DayResult{
		Sessions: []models.Episode[models.DaySession]{
			{Label: models.Morning, Duration: 60}, {Label: models.Mid, Duration: 270}, {Label: models.Close, Duration: 60},
		},
		Trends: [][]models.Episode[models.Trend]{
			{{Label: models.MidUptrend, Duration: 60}},
			{{Label: models.Consolidation, Duration: 270}},
			{{Label: models.MidDowntrend, Duration: 60}},
		},
	}
	trades := []models.Trade{{Time: 10, Price: 100.5, Size: 10}, {Time: 23399.9, Price: 99, Size: 1}}
	bars := Aggregate(7, day, trades, 100)

	assert.Equal(t, int64(7), bars.DayID)
	require.Len(t, bars.Seconds, 23400)
	require.Len(t, bars.Minute, 23400)
	require.Len(t, bars.FiveMinute, 23400)
	assert.Equal(t, 100.0, bars.Seconds[0].VWAP)
	assert.Equal(t, 100.5, bars.Seconds[10].VWAP)
	assert.Equal(t, 99.0, bars.Seconds[23399].Close)
	assert.Equal(t, models.Close, bars.Seconds[23399].Session)
	assert.Equal(t, models.Consolidation, bars.Seconds[3600].Trend)
	assert.Equal(t, int64(10), bars.Minute[59].Volume)
	assert.Equal(t, int64(0), bars.Minute[60].Volume)
}
