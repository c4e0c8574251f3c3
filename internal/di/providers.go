package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"TradeSynth/internal/domain/models"
	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/handler/api"
	internalrepo "TradeSynth/internal/repository"
	"TradeSynth/internal/services/distributions"
	"TradeSynth/internal/services/episodes"
	"TradeSynth/internal/services/features"
	"TradeSynth/internal/services/mcmc"
	"TradeSynth/internal/services/orderflow"
	"TradeSynth/internal/usecase"
	pkgch "TradeSynth/pkg/clickhouse"
	"TradeSynth/pkg/config"
	xhttp "TradeSynth/pkg/http"
	pkgkafka "TradeSynth/pkg/kafka"
	"TradeSynth/pkg/logger"
	"TradeSynth/pkg/metrics"
	"TradeSynth/pkg/server"
	"TradeSynth/pkg/util"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry creates the registry shared by pipeline, HTTP and Kafka metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	pkgkafka.SetProducerMetricsRegisterer(reg)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) drepo.Metrics {
	return metrics.NewWithRegistry(reg)
}

func ProvideProgress() *usecase.Progress { return usecase.NewProgress() }

// ProvideEpisodeParams applies the simulation section on top of the built-in
// episode parameters.
func ProvideEpisodeParams(cfg *config.Config) (episodes.Params, error) {
	sim := cfg.Simulation
	p := episodes.DefaultParams()
	p.MaxDelta = sim.MaxDeltaMinutes
	p.TransferProb = sim.TransferProb
	p.SessionMCMC = mcmc.Config{Iterations: sim.SessionIterations}
	p.TrendMCMC = mcmc.Config{Iterations: sim.TrendIterations}

	for name, d := range sim.Sessions {
		s, err := models.ParseDaySession(name)
		if err != nil {
			return p, fmt.Errorf("simulation.sessions: %w", err)
		}
		p.Sessions[s] = durationParams(d)
	}
	for name, tr := range sim.Trends {
		if tr.Duration == nil {
			continue
		}
		t, err := models.ParseTrend(name)
		if err != nil {
			return p, fmt.Errorf("simulation.trends: %w", err)
		}
		p.Trends[t] = durationParams(*tr.Duration)
	}
	for sName, row := range sim.Weights {
		s, err := models.ParseDaySession(sName)
		if err != nil {
			return p, fmt.Errorf("simulation.weights: %w", err)
		}
		var weights [models.TrendCount]float64
		for tName, w := range row {
			t, err := models.ParseTrend(tName)
			if err != nil {
				return p, fmt.Errorf("simulation.weights.%s: %w", sName, err)
			}
			weights[t] = w
		}
		p.Weights[s] = weights
	}
	return p, nil
}

func durationParams(d config.Duration) episodes.DurationParams {
	return episodes.DurationParams{
		Kind:   distributions.Kind(d.Kind),
		Mean:   d.Mean,
		StdDev: d.StdDev,
	}
}

// ProvideFlowParams applies trend flow overrides on top of the built-in
// order-flow parameters.
func ProvideFlowParams(cfg *config.Config) ([models.TrendCount]orderflow.TrendParams, error) {
	p := orderflow.DefaultTrendParams()
	for name, tr := range cfg.Simulation.Trends {
		if tr.Flow == nil {
			continue
		}
		t, err := models.ParseTrend(name)
		if err != nil {
			return p, fmt.Errorf("simulation.trends: %w", err)
		}
		f := tr.Flow
		p[t] = orderflow.TrendParams{
			Volatility: f.Volatility,
			BandDrift:  f.BandDrift,
			BandWidth:  f.BandWidth,
			BandNoise:  f.BandNoise,
			MedianRate: f.MedianRate,
			MeanRate:   f.MeanRate,
			MedianSize: f.MedianSize,
			MeanSize:   f.MeanSize,
		}
	}
	return p, nil
}

func ProvideEpisodeSampler(p episodes.Params) (*episodes.Sampler, error) {
	s, err := episodes.NewSampler(p)
	if err != nil {
		return nil, fmt.Errorf("episode sampler: %w", err)
	}
	return s, nil
}

func ProvideSimulator(p [models.TrendCount]orderflow.TrendParams) (*orderflow.Simulator, error) {
	s, err := orderflow.NewSimulator(p)
	if err != nil {
		return nil, fmt.Errorf("order-flow simulator: %w", err)
	}
	return s, nil
}

// ProvideDayGenerator creates the day generator seeded from the config.
func ProvideDayGenerator(cfg *config.Config, ep *episodes.Sampler, flow *orderflow.Simulator) (*usecase.DayGenerator, error) {
	sim := cfg.Simulation
	return usecase.NewDayGenerator(ep, flow, sim.DayMinutes, sim.StartPrice, sim.BaseSeed)
}

// ProvideFeatureSpecs returns the configured features, or the defaults when
// none are listed.
func ProvideFeatureSpecs(cfg *config.Config) []features.Spec {
	if len(cfg.Sketch.Features) == 0 {
		return features.DefaultSpecs()
	}
	specs := make([]features.Spec, 0, len(cfg.Sketch.Features))
	for _, f := range cfg.Sketch.Features {
		specs = append(specs, features.Spec{
			Name:      f.Name,
			Column:    f.Column,
			Base:      f.Base,
			Transform: features.Transform(f.Transform),
			Diff:      f.Diff,
		})
	}
	return specs
}

// ProvidePipelineOptions collects the options shared by every pipeline stage.
func ProvidePipelineOptions(cfg *config.Config, m drepo.Metrics, l *logger.Logger, p *usecase.Progress) []usecase.PipelineOption {
	opts := []usecase.PipelineOption{
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
		usecase.WithProgress(p),
		usecase.WithStallTimeout(cfg.Normalize.StallTimeout),
	}
	if cfg.Simulation.Workers > 0 {
		opts = append(opts, usecase.WithWorkers(cfg.Simulation.Workers))
	}
	return opts
}

func ProvideStatusHandler(cfg *config.Config, l *logger.Logger, p *usecase.Progress) *api.StatusHandler {
	return api.NewStatusHandler(l, p, cfg.Sketch.LUTSize)
}

// ProvideHTTPServer creates the status server. A zero port disables it.
func ProvideHTTPServer(cfg *config.Config, h *api.StatusHandler, reg *prometheus.Registry, l *logger.Logger) *xhttp.Server {
	if cfg.Server.Port == 0 {
		return nil
	}
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg),
		xhttp.WithLogger(l),
	)
}

// ProvideApp bundles everything a subcommand needs.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	reg *prometheus.Registry,
	m drepo.Metrics,
	progress *usecase.Progress,
	gen *usecase.DayGenerator,
	specs []features.Spec,
	opts []usecase.PipelineOption,
	status *api.StatusHandler,
	srv *xhttp.Server,
) *server.App {
	return server.New(server.Deps{
		Config:    cfg,
		Logger:    l,
		Registry:  reg,
		Metrics:   m,
		Progress:  progress,
		Generator: gen,
		Specs:     specs,
		Options:   opts,
		Status:    status,
		HTTP:      srv,
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithEndpoint(ch.Host, ch.Port, ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithInsert(pkgch.InsertSettings{
			Async:        ch.AsyncInsert,
			WaitForAsync: ch.WaitForAsync,
			MaxExecTime:  ch.MaxExecutionTime,
			BatchSize:    ch.BatchSize,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the ClickHouse bar store.
func ProvideBarStore(client *pkgch.Client, cfg *config.Config, l *logger.Logger) (*internalrepo.CHBarStore, error) {
	start, ok := util.ParseTime(cfg.Export.StartDate)
	if !ok {
		return nil, fmt.Errorf("export.start_date: cannot parse %q", cfg.Export.StartDate)
	}
	store := internalrepo.NewCHBarStore(client, cfg.ClickHouse.Database, start)
	store.SetLogger(l)
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTradePublisher creates the Kafka tick publisher.
func ProvideTradePublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.TickPublisher {
	pub := internalrepo.NewTickPublisher(producer, cfg.Kafka.Topic)
	pub.SetRateLimit(cfg.Kafka.Producer.MaxRate)
	return pub
}
