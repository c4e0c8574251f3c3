package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"TradeSynth/internal/di"
	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/repository"
	"TradeSynth/internal/services/sketch"
	"TradeSynth/internal/usecase"
	"TradeSynth/pkg/columnar"
	"TradeSynth/pkg/logger"
	"TradeSynth/pkg/server"
	"TradeSynth/pkg/util"
)

func runGenerate(ctx context.Context, app *server.App, args []string) error {
	cfg := app.Config
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	days := fs.Int("days", cfg.Simulation.NumDays, "number of days to simulate")
	out := fs.String("out", cfg.Dataset.Output, "dataset file to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 1 {
		return fmt.Errorf("-days must be at least 1")
	}

	meta := repository.DatasetMeta{
		RunID:      app.RunID(),
		BaseSeed:   app.Generator.BaseSeed(),
		DayMinutes: app.Generator.DayMinutes(),
	}
	w, err := repository.CreateDataset(*out, meta, cfg.Dataset.CompressionLevel)
	if err != nil {
		return err
	}
	stats, err := usecase.NewDatasetPipeline(app.Generator, app.Options...).Run(ctx, w, *days)
	if err != nil {
		_ = w.Close()
		_ = os.Remove(*out)
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	app.Logger.Info("dataset written",
		logger.String("path", *out),
		logger.Int("days", stats.Days),
		logger.Int64("rows", stats.Rows),
		logger.Duration("elapsed", stats.Elapsed),
	)
	return nil
}

func runVerify(ctx context.Context, app *server.App, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	in := fs.String("in", app.Config.Dataset.Output, "dataset file to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := repository.OpenDataset(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := usecase.VerifyDataset(ctx, r)
	if err != nil {
		return err
	}
	app.Logger.Info("dataset ok",
		logger.String("path", *in),
		logger.String("dataset_run_id", report.RunID),
		logger.Int("row_groups", report.RowGroups),
		logger.Int64("rows", report.Rows),
		logger.Int("bars_per_day", report.BarsPerDay),
		logger.Int64("min_day_id", report.MinDayID),
		logger.Int64("max_day_id", report.MaxDayID),
	)
	return nil
}

func runSketch(ctx context.Context, app *server.App, args []string) error {
	cfg := app.Config
	fs := flag.NewFlagSet("sketch", flag.ContinueOnError)
	in := fs.String("in", cfg.Dataset.Output, "dataset file to read")
	out := fs.String("out", cfg.Sketch.Path, "sketch artifact to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := repository.OpenDataset(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	set, err := usecase.NewSketchBuilder(app.Specs, cfg.Sketch.Compression, app.Options...).Build(ctx, r)
	if err != nil {
		return err
	}
	if err := set.SaveFile(*out); err != nil {
		return err
	}
	if err := app.Status.SetSketches(set); err != nil {
		return err
	}
	app.Logger.Info("sketch written", logger.String("path", *out), logger.Strings("features", set.Names()))
	return nil
}

func runNormalize(ctx context.Context, app *server.App, args []string) error {
	cfg := app.Config
	input := cfg.Normalize.Input
	if input == "" {
		input = cfg.Dataset.Output
	}
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	in := fs.String("in", input, "dataset file to read")
	sketchPath := fs.String("sketch", cfg.Sketch.Path, "sketch artifact built by the sketch command")
	out := fs.String("out", cfg.Normalize.Output, "normalized dataset file to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == *out {
		return fmt.Errorf("normalize cannot overwrite its input %s", *in)
	}

	set, err := sketch.LoadFile(*sketchPath)
	if err != nil {
		return err
	}
	if err := app.Status.SetSketches(set); err != nil {
		return err
	}
	tables, err := set.LookupTables(cfg.Sketch.LUTSize)
	if err != nil {
		return err
	}
	n, err := usecase.NewNormalizer(app.Specs, tables, app.Options...)
	if err != nil {
		return err
	}

	r, err := repository.OpenDataset(*in)
	if err != nil {
		return err
	}
	defer r.Close()
	schema, err := n.OutputSchema(r.Schema())
	if err != nil {
		return err
	}
	w, err := columnar.Create(*out, schema, columnar.WithLevel(cfg.Dataset.CompressionLevel))
	if err != nil {
		return err
	}
	if err := n.Run(ctx, r, w); err != nil {
		_ = w.Close()
		_ = os.Remove(*out)
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	app.Logger.Info("normalized dataset written", logger.String("path", *out))
	return nil
}

func runExport(ctx context.Context, app *server.App, args []string) error {
	cfg := app.Config
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	in := fs.String("in", cfg.Dataset.Output, "dataset file to read")
	days := fs.Int("days", cfg.Export.MaxDays, "export at most this many days, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tfs := make([]drepo.Timeframe, 0, len(cfg.Export.Timeframes))
	for _, s := range cfg.Export.Timeframes {
		tf, err := drepo.ParseTimeframe(s)
		if err != nil {
			return err
		}
		tfs = append(tfs, tf)
	}

	r, err := repository.OpenDataset(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	store, err := di.InitializeBarStore(cfg, app.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := usecase.NewExporter(store, cfg.Export.Symbol, tfs, app.Options...).Run(ctx, r, *days)
	if err != nil {
		return err
	}
	app.Logger.Info("bars exported", logger.String("symbol", cfg.Export.Symbol), logger.Int("days", n))
	return nil
}

func runPublish(ctx context.Context, app *server.App, args []string) error {
	cfg := app.Config
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	first := fs.Int64("first", 0, "first day_id to publish")
	days := fs.Int("days", cfg.Simulation.NumDays, "number of days to publish")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *first < 0 || *days < 1 {
		return errors.New("-first must be non-negative and -days at least 1")
	}
	start, ok := util.ParseTime(cfg.Export.StartDate)
	if !ok {
		return fmt.Errorf("export.start_date: cannot parse %q", cfg.Export.StartDate)
	}

	pub, err := di.InitializeTradePublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	sent, err := usecase.NewTradeFeed(app.Generator, pub, cfg.Export.Symbol, start, app.Options...).Run(ctx, *first, *days)
	if err != nil {
		return err
	}
	app.Logger.Info("trades published",
		logger.String("topic", cfg.Kafka.Topic),
		logger.Int("trades", sent),
	)
	return nil
}
