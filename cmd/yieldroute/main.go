package main

import (
	"context"
	"log"

	"github.com/yieldroute/yieldroute/internal/api"
	"github.com/yieldroute/yieldroute/internal/chain"
	"github.com/yieldroute/yieldroute/internal/config"
	"github.com/yieldroute/yieldroute/internal/pipeline"
	"github.com/yieldroute/yieldroute/internal/websocket"
	"github.com/yieldroute/yieldroute/pkg/logger"
)

func main() {
	// Initialize logger
	logger.SetLevel(logger.INFO)
	err := logger.EnableFileLogging("./logs")
	if err != nil {
		log.Fatalf("Failed to enable file logging: %v", err)
	}

	logger.Info("Yield Route starting...")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	// Initialize WebSocket manager
	wsManager := websocket.NewWebSocketManager()
	go wsManager.Run()

	svc := pipeline.NewService(cfg, chain.DefaultClientCreator, wsManager)

	// Set up and run the API server
	r := api.SetupRouter(svc, wsManager)
	go func() {
		if err := r.Run(cfg.ListenAddr); err != nil {
			logger.Fatal("Failed to run server: %v", err)
		}
	}()

	if cfg.RunOnStart {
		result, err := svc.Run(context.Background())
		if err != nil {
			logger.LogTyped(err)
		} else {
			logger.Info("Pipeline completed with %d transactions", len(result.TxHashes()))
			for _, h := range result.TxHashes() {
				logger.Info("  %s", chain.ExplorerTxURL(h))
			}
		}
	}

	// Keep the main goroutine running
	select {}
}
