package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/hivekeeper/internal/config"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/dmitrijs2005/hivekeeper/internal/node"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewLogger(cfg.LogFormat, cfg.LogLevel)

	app, err := node.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "node stopped with error", "error", err)
		os.Exit(1)
	}
}
