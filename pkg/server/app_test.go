package server

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSynth/internal/usecase"
	"TradeSynth/pkg/config"
	applogger "TradeSynth/pkg/logger"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	return New(Deps{
		Config:   cfg,
		Logger:   applogger.Nop(),
		Progress: usecase.NewProgress(),
	})
}

func TestRunIDIsUUID(t *testing.T) {
	app := newTestApp(t)
	_, err := uuid.Parse(app.RunID())
	require.NoError(t, err)
	assert.NotEqual(t, app.RunID(), newTestApp(t).RunID())
}

func TestRunWithoutStatusServer(t *testing.T) {
	app := newTestApp(t)
	var seen string
	err := app.Run(context.Background(), "verify", func(ctx context.Context) error {
		seen = app.Progress.Snapshot().RunID
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, app.RunID(), seen)
}

func TestRunPropagatesCommandError(t *testing.T) {
	app := newTestApp(t)
	boom := errors.New("boom")
	err := app.Run(context.Background(), "generate", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
