package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/handler/api"
	"TradeSynth/internal/services/features"
	"TradeSynth/internal/usecase"
	"TradeSynth/pkg/config"
	xhttp "TradeSynth/pkg/http"
	applogger "TradeSynth/pkg/logger"
)

// Deps are the components a batch run is built from.
type Deps struct {
	Config    *config.Config
	Logger    *applogger.Logger
	Registry  *prometheus.Registry
	Metrics   drepo.Metrics
	Progress  *usecase.Progress
	Generator *usecase.DayGenerator
	Specs     []features.Spec
	Options   []usecase.PipelineOption
	Status    *api.StatusHandler
	// HTTP is nil when the status server is disabled.
	HTTP *xhttp.Server
}

// App encapsulates the lifecycle of one batch command.
type App struct {
	Deps
	runID string
}

// New creates a new App instance with all dependencies.
func New(d Deps) *App {
	return &App{Deps: d, runID: uuid.NewString()}
}

// RunID identifies this run in logs, dataset metadata and the status endpoint.
func (a *App) RunID() string { return a.runID }

// Run starts the status server if configured, runs fn and shuts the server
// down again once fn returns.
func (a *App) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	l := a.Logger.With(applogger.String("run_id", a.runID))
	a.Progress.SetRunID(a.runID)

	if a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			l.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	l.Info("command started",
		applogger.String("command", name),
		applogger.Uint64("seed", a.Config.Simulation.BaseSeed),
	)
	err := fn(ctx)
	if err != nil {
		l.Error("command failed", applogger.String("command", name), applogger.Error(err))
	} else {
		l.Info("command finished", applogger.String("command", name))
	}

	if serr := a.shutdown(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// shutdown stops the status server.
func (a *App) shutdown() error {
	if a.HTTP == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.HTTP.Stop(ctx); err != nil {
		a.Logger.Error("http shutdown error", applogger.Error(err))
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
