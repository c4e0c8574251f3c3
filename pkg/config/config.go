package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"TradeSynth/pkg/logger"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" validate:"gte=0,lte=65535"` // 0 disables the status server
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s"`
	} `yaml:"server"`
	Simulation Simulation `yaml:"simulation"`
	Dataset    struct {
		Output           string `yaml:"output" default:"data/dataset.parquet" validate:"required"`
		CompressionLevel int    `yaml:"compression_level" default:"2" validate:"gte=1,lte=4"`
	} `yaml:"dataset"`
	Sketch struct {
		Path        string        `yaml:"path" default:"data/sketch.bin" validate:"required"`
		Compression float64       `yaml:"compression" default:"1000" validate:"gt=0"`
		LUTSize     int           `yaml:"lut_size" default:"131072" validate:"gte=2"`
		Features    []FeatureSpec `yaml:"features" validate:"dive"`
	} `yaml:"sketch"`
	Normalize struct {
		Input        string        `yaml:"input"`
		Output       string        `yaml:"output" default:"data/dataset_cdf.parquet" validate:"required"`
		StallTimeout time.Duration `yaml:"stall_timeout" default:"2m" validate:"gt=0"`
	} `yaml:"normalize"`
	Export struct {
		Symbol     string   `yaml:"symbol" default:"SYNTH" validate:"required"`
		StartDate  string   `yaml:"start_date" default:"2024-01-02T14:30:00Z"`
		Timeframes []string `yaml:"timeframes" validate:"dive,oneof=1s 1m 5m"`
		MaxDays    int      `yaml:"max_days" validate:"gte=0"`
	} `yaml:"export"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"synthetic.ticks"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"zstd" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"500"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
			MaxRate      float64       `yaml:"max_rate" validate:"gte=0"` // messages per second, 0 = unlimited
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tradesynth"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		BatchSize        int           `yaml:"batch_size" default:"2000" validate:"gt=0"`
	} `yaml:"clickhouse"`
}

// Simulation holds the generator parameters. Label-keyed tables override the
// built-in defaults entry by entry; an entry present in YAML must be complete.
type Simulation struct {
	DayMinutes        float64 `yaml:"day_minutes" default:"390" validate:"gt=0"`
	StartPrice        float64 `yaml:"start_price" default:"100" validate:"gt=0"`
	BaseSeed          uint64  `yaml:"base_seed" default:"42"`
	NumDays           int     `yaml:"num_days" default:"1" validate:"gte=1"`
	Workers           int     `yaml:"workers" validate:"gte=0"` // 0 = runtime.NumCPU()
	SessionIterations int     `yaml:"session_iterations" default:"2000" validate:"gte=0"`
	TrendIterations   int     `yaml:"trend_iterations" default:"5000" validate:"gte=0"`
	MaxDeltaMinutes   float64 `yaml:"max_delta_minutes" default:"15" validate:"gt=0"`
	TransferProb      float64 `yaml:"transfer_prob" default:"0.7" validate:"gte=0,lte=1"`

	Sessions map[string]Duration           `yaml:"sessions" validate:"dive,keys,oneof=morning mid close,endkeys"`
	Trends   map[string]Trend              `yaml:"trends" validate:"dive,keys,oneof=strong_uptrend mid_uptrend weak_uptrend consolidation weak_downtrend mid_downtrend strong_downtrend,endkeys"`
	Weights  map[string]map[string]float64 `yaml:"weights"`
}

// Duration is a duration distribution in minutes.
type Duration struct {
	Kind   string  `yaml:"kind" validate:"omitempty,oneof=lognormal gamma"`
	Mean   float64 `yaml:"mean" validate:"gt=0"`
	StdDev float64 `yaml:"stddev" validate:"gt=0"`
}

// Trend overrides one trend label; either part may be omitted.
type Trend struct {
	Duration *Duration `yaml:"duration"`
	Flow     *Flow     `yaml:"flow"`
}

// Flow mirrors the order-flow parameters of one trend.
type Flow struct {
	Volatility float64 `yaml:"volatility" validate:"gte=0"`
	BandDrift  float64 `yaml:"band_drift"`
	BandWidth  float64 `yaml:"band_width" validate:"gt=0"`
	BandNoise  float64 `yaml:"band_noise" validate:"gte=0"`
	MedianRate float64 `yaml:"median_rate" validate:"gt=0"`
	MeanRate   float64 `yaml:"mean_rate" validate:"gtefield=MedianRate"`
	MedianSize float64 `yaml:"median_size" validate:"gt=0"`
	MeanSize   float64 `yaml:"mean_size" validate:"gtefield=MedianSize"`
}

// FeatureSpec names a column to normalize.
type FeatureSpec struct {
	Name      string `yaml:"name" validate:"required"`
	Column    string `yaml:"column" validate:"required"`
	Base      string `yaml:"base"`
	Transform string `yaml:"transform" validate:"omitempty,oneof=sub log_ratio log_return"`
	Diff      bool   `yaml:"diff"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("TRADESYNTH_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TRADESYNTH_SEED: %w", err)
		}
		c.Simulation.BaseSeed = seed
	}
	if v := getenv("TRADESYNTH_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRADESYNTH_DAYS: %w", err)
		}
		c.Simulation.NumDays = n
	}
	if v := getenv("TRADESYNTH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRADESYNTH_WORKERS: %w", err)
		}
		c.Simulation.Workers = n
	}
	if v := getenv("TRADESYNTH_OUTPUT"); v != "" {
		c.Dataset.Output = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	return nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for session, row := range c.Simulation.Weights {
		if !oneOf(session, "morning", "mid", "close") {
			return fmt.Errorf("simulation.weights: unknown session %q", session)
		}
		var sum float64
		for trend, w := range row {
			if w < 0 {
				return fmt.Errorf("simulation.weights.%s.%s must be non-negative", session, trend)
			}
			sum += w
		}
		if sum <= 0 {
			return fmt.Errorf("simulation.weights.%s has no positive weight", session)
		}
	}
	if c.Simulation.DayMinutes*60 < 1 {
		return fmt.Errorf("simulation.day_minutes must cover at least one second")
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
