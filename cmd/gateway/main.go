package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/feliona/edge-gateway/internal/config"
	"github.com/feliona/edge-gateway/internal/gateway"
	"github.com/feliona/edge-gateway/internal/logging"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Edge Gateway %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := logging.New(cfg.Environment, cfg.DebugLogging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	logging.Info("starting edge gateway",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.String("upstream", cfg.UpstreamURL),
		zap.Strings("locales", cfg.SupportedLocales),
	)

	server, err := gateway.NewServer(cfg)
	if err != nil {
		logging.Error("failed to create gateway", zap.Error(err))
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		logging.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
