package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 390.0, c.Simulation.DayMinutes)
	assert.Equal(t, 100.0, c.Simulation.StartPrice)
	assert.Equal(t, uint64(42), c.Simulation.BaseSeed)
	assert.Equal(t, 1, c.Simulation.NumDays)
	assert.Equal(t, 2000, c.Simulation.SessionIterations)
	assert.Equal(t, 5000, c.Simulation.TrendIterations)
	assert.Equal(t, 0.7, c.Simulation.TransferProb)
	assert.Equal(t, 1000.0, c.Sketch.Compression)
	assert.Equal(t, 131072, c.Sketch.LUTSize)
	assert.Equal(t, 2*time.Minute, c.Normalize.StallTimeout)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, 0, c.Server.Port)
}

func TestParseOverrides(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
simulation:
  num_days: 250
  workers: 8
  sessions:
    mid: {kind: gamma, mean: 260, stddev: 20}
  trends:
    consolidation:
      flow: {volatility: 0.0001, band_width: 0.001, median_rate: 1, mean_rate: 2, median_size: 50, mean_size: 80}
  weights:
    close: {consolidation: 1}
sketch:
  features:
    - {name: range_1m, column: high_1m, base: low_1m, transform: sub}
`))
	require.NoError(t, err)
	assert.Equal(t, 250, c.Simulation.NumDays)
	assert.Equal(t, "gamma", c.Simulation.Sessions["mid"].Kind)
	require.NotNil(t, c.Simulation.Trends["consolidation"].Flow)
	assert.Nil(t, c.Simulation.Trends["consolidation"].Duration)
	assert.Equal(t, 0.001, c.Simulation.Trends["consolidation"].Flow.BandWidth)
	require.Len(t, c.Sketch.Features, 1)
	assert.Equal(t, "range_1m", c.Sketch.Features[0].Name)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad session key":    "simulation:\n  sessions:\n    lunch: {mean: 1, stddev: 1}\n",
		"bad kind":           "simulation:\n  sessions:\n    mid: {kind: weibull, mean: 1, stddev: 1}\n",
		"rate mean < median": "simulation:\n  trends:\n    consolidation:\n      flow: {band_width: 1, median_rate: 3, mean_rate: 2, median_size: 1, mean_size: 1}\n",
		"bad weight session": "simulation:\n  weights:\n    lunch: {consolidation: 1}\n",
		"zero weights":       "simulation:\n  weights:\n    mid: {consolidation: 0}\n",
		"bad compression":    "kafka:\n  compression: brotli\n",
		"bad timeframe":      "export:\n  timeframes: [1h]\n",
		"bad level":          "log:\n  level: loud\n",
		"feature no column":  "sketch:\n  features:\n    - {name: x}\n",
		"bad port":           "server:\n  port: 70000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	env := map[string]string{
		"TRADESYNTH_SEED":    "7",
		"TRADESYNTH_DAYS":    "12",
		"TRADESYNTH_WORKERS": "3",
		"TRADESYNTH_OUTPUT":  "/tmp/x.parquet",
		"KAFKA_BROKERS":      "a:9092,b:9092",
		"CLICKHOUSE_HOST":    "ch",
	}
	require.NoError(t, c.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, uint64(7), c.Simulation.BaseSeed)
	assert.Equal(t, 12, c.Simulation.NumDays)
	assert.Equal(t, 3, c.Simulation.Workers)
	assert.Equal(t, "/tmp/x.parquet", c.Dataset.Output)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "ch", c.ClickHouse.Host)

	err = c.ApplyEnv(func(k string) string {
		if k == "TRADESYNTH_SEED" {
			return "-1"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: dev\n"), 0o644))
	t.Setenv("TRADESYNTH_DAYS", "5")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Simulation.NumDays)

	t.Setenv("TRADESYNTH_DAYS", "0")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
