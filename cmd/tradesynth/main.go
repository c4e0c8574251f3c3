package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"TradeSynth/internal/di"
	"TradeSynth/pkg/config"
	"TradeSynth/pkg/server"
)

const usage = `usage: tradesynth [-config path] <command> [flags]

commands:
  generate   simulate days into a dataset file
  verify     check a dataset file row group by row group
  sketch     build t-digests of the configured features
  normalize  add CDF-normalized feature columns to a dataset
  export     store dataset bars in ClickHouse
  publish    stream regenerated trades to Kafka
`

type command func(ctx context.Context, app *server.App, args []string) error

var commands = map[string]command{
	"generate":  runGenerate,
	"verify":    runVerify,
	"sketch":    runSketch,
	"normalize": runNormalize,
	"export":    runExport,
	"publish":   runPublish,
}

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx, name, func(ctx context.Context) error {
		return cmd(ctx, app, flag.Args()[1:])
	})
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
