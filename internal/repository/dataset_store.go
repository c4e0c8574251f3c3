package repository

import (
	"fmt"
	"strconv"

	"TradeSynth/internal/domain/models"
	domrepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/services/bars"
	"TradeSynth/pkg/columnar"
)

// Dataset column names shared by all resolutions.
const (
	ColDayID   = "day_id"
	ColTime    = "time"
	ColSession = "session"
	ColTrend   = "trend"
)

// Per-resolution bar fields; the column is field + "_" + timeframe.
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVWAP   = "vwap"
	FieldVolume = "volume"
	FieldStdDev = "stddev"
)

// Footer metadata keys.
const (
	MetaRunID      = "run_id"
	MetaBaseSeed   = "base_seed"
	MetaDayMinutes = "day_minutes"
	MetaBarsPerDay = "bars_per_day"
)

var datasetSchema = func() *columnar.Schema {
	fields := []columnar.Field{
		{Name: ColDayID, Type: columnar.Int64},
		{Name: ColTime, Type: columnar.Int32},
		{Name: ColSession, Type: columnar.Int32},
		{Name: ColTrend, Type: columnar.Int32},
	}
	for _, tf := range domrepo.Timeframes {
		fields = append(fields,
			columnar.Field{Name: tf.Column(FieldOpen), Type: columnar.Float64},
			columnar.Field{Name: tf.Column(FieldHigh), Type: columnar.Float64},
			columnar.Field{Name: tf.Column(FieldLow), Type: columnar.Float64},
			columnar.Field{Name: tf.Column(FieldClose), Type: columnar.Float64},
			columnar.Field{Name: tf.Column(FieldVWAP), Type: columnar.Float64},
			columnar.Field{Name: tf.Column(FieldVolume), Type: columnar.Int64},
			columnar.Field{Name: tf.Column(FieldStdDev), Type: columnar.Float64},
		)
	}
	return columnar.MustSchema(fields...)
}()

// DatasetSchema is the column layout of a generated dataset: one row per
// simulated second.
func DatasetSchema() *columnar.Schema { return datasetSchema }

// DatasetMeta is stored in the dataset footer.
type DatasetMeta struct {
	RunID      string
	BaseSeed   uint64
	DayMinutes float64
}

// BarsPerDay is the expected row count of every row group.
func (m DatasetMeta) BarsPerDay() int { return bars.SecondsPerDay(m.DayMinutes) }

// Options renders the metadata as writer options.
func (m DatasetMeta) Options() []columnar.WriterOption {
	return []columnar.WriterOption{
		columnar.WithMetadata(MetaRunID, m.RunID),
		columnar.WithMetadata(MetaBaseSeed, strconv.FormatUint(m.BaseSeed, 10)),
		columnar.WithMetadata(MetaDayMinutes, strconv.FormatFloat(m.DayMinutes, 'g', -1, 64)),
		columnar.WithMetadata(MetaBarsPerDay, strconv.Itoa(m.BarsPerDay())),
	}
}

// ParseDatasetMeta reads the footer metadata of a dataset file.
func ParseDatasetMeta(md map[string]string) (DatasetMeta, error) {
	var m DatasetMeta
	var err error
	m.RunID = md[MetaRunID]
	if m.BaseSeed, err = strconv.ParseUint(md[MetaBaseSeed], 10, 64); err != nil {
		return m, fmt.Errorf("metadata %s: %w", MetaBaseSeed, err)
	}
	if m.DayMinutes, err = strconv.ParseFloat(md[MetaDayMinutes], 64); err != nil {
		return m, fmt.Errorf("metadata %s: %w", MetaDayMinutes, err)
	}
	if want, err := strconv.Atoi(md[MetaBarsPerDay]); err == nil && want != m.BarsPerDay() {
		return m, fmt.Errorf("metadata %s=%d disagrees with %s", MetaBarsPerDay, want, MetaDayMinutes)
	}
	return m, nil
}

// CreateDataset opens a new dataset file for writing.
func CreateDataset(path string, meta DatasetMeta, level int) (*columnar.Writer, error) {
	opts := append(meta.Options(), columnar.WithLevel(level))
	return columnar.Create(path, datasetSchema, opts...)
}

// OpenDataset opens a dataset file, generated or normalized.
func OpenDataset(path string) (*columnar.Reader, error) {
	return columnar.Open(path)
}

type barColumns struct {
	open, high, low, close, vwap, stddev []float64
	volume                               []int64
}

func newBarColumns(n int) barColumns {
	return barColumns{
		open:   make([]float64, n),
		high:   make([]float64, n),
		low:    make([]float64, n),
		close:  make([]float64, n),
		vwap:   make([]float64, n),
		stddev: make([]float64, n),
		volume: make([]int64, n),
	}
}

func (c barColumns) set(i int, b models.Bar) {
	c.open[i], c.high[i], c.low[i], c.close[i] = b.Open, b.High, b.Low, b.Close
	c.vwap[i], c.stddev[i], c.volume[i] = b.VWAP, b.StdDev, b.Volume
}

func (c barColumns) put(g *columnar.RowGroup, tf domrepo.Timeframe) {
	g.SetFloat64(tf.Column(FieldOpen), c.open)
	g.SetFloat64(tf.Column(FieldHigh), c.high)
	g.SetFloat64(tf.Column(FieldLow), c.low)
	g.SetFloat64(tf.Column(FieldClose), c.close)
	g.SetFloat64(tf.Column(FieldVWAP), c.vwap)
	g.SetFloat64(tf.Column(FieldStdDev), c.stddev)
	g.SetInt64(tf.Column(FieldVolume), c.volume)
}

// DayRowGroup lays a day's bars out as one row group.
func DayRowGroup(day models.DayBars) *columnar.RowGroup {
	n := len(day.Seconds)
	g := columnar.NewRowGroup(n)
	ids := make([]int64, n)
	times := make([]int32, n)
	sessions := make([]int32, n)
	trends := make([]int32, n)
	cols := map[domrepo.Timeframe]barColumns{
		domrepo.TF1s: newBarColumns(n),
		domrepo.TF1m: newBarColumns(n),
		domrepo.TF5m: newBarColumns(n),
	}
	for i, s := range day.Seconds {
		ids[i] = day.DayID
		times[i] = int32(i)
		sessions[i] = int32(s.Session)
		trends[i] = int32(s.Trend)
		cols[domrepo.TF1s].set(i, s.Bar)
		cols[domrepo.TF1m].set(i, day.Minute[i])
		cols[domrepo.TF5m].set(i, day.FiveMinute[i])
	}
	g.SetInt64(ColDayID, ids)
	g.SetInt32(ColTime, times)
	g.SetInt32(ColSession, sessions)
	g.SetInt32(ColTrend, trends)
	for tf, c := range cols {
		c.put(g, tf)
	}
	return g
}

func readBars(g *columnar.RowGroup, tf domrepo.Timeframe) ([]models.Bar, error) {
	var cols barColumns
	var err error
	get := func(field string) []float64 {
		if err != nil {
			return nil
		}
		var v []float64
		v, err = g.Float64(tf.Column(field))
		return v
	}
	cols.open, cols.high, cols.low, cols.close = get(FieldOpen), get(FieldHigh), get(FieldLow), get(FieldClose)
	cols.vwap, cols.stddev = get(FieldVWAP), get(FieldStdDev)
	if err != nil {
		return nil, err
	}
	if cols.volume, err = g.Int64(tf.Column(FieldVolume)); err != nil {
		return nil, err
	}
	out := make([]models.Bar, g.NumRows())
	for i := range out {
		out[i] = models.Bar{
			Open: cols.open[i], High: cols.high[i], Low: cols.low[i], Close: cols.close[i],
			VWAP: cols.vwap[i], Volume: cols.volume[i], StdDev: cols.stddev[i],
		}
	}
	return out, nil
}

// DayFromRowGroup reverses DayRowGroup.
func DayFromRowGroup(g *columnar.RowGroup) (models.DayBars, error) {
	var day models.DayBars
	ids, err := g.Int64(ColDayID)
	if err != nil {
		return day, err
	}
	sessions, err := g.Int32(ColSession)
	if err != nil {
		return day, err
	}
	trends, err := g.Int32(ColTrend)
	if err != nil {
		return day, err
	}
	secs, err := readBars(g, domrepo.TF1s)
	if err != nil {
		return day, err
	}
	if day.Minute, err = readBars(g, domrepo.TF1m); err != nil {
		return day, err
	}
	if day.FiveMinute, err = readBars(g, domrepo.TF5m); err != nil {
		return day, err
	}
	if len(ids) > 0 {
		day.DayID = ids[0]
	}
	day.Seconds = make([]models.SecondBar, len(secs))
	for i, b := range secs {
		day.Seconds[i] = models.SecondBar{Bar: b, Session: models.DaySession(sessions[i]), Trend: models.Trend(trends[i])}
	}
	return day, nil
}
