package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/insightlens/internal/client/cli"
	"github.com/dmitrijs2005/insightlens/internal/client/config"
	"github.com/dmitrijs2005/insightlens/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.New(os.Stderr, logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	if s, ok := logger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
