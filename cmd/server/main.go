package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatcore-io/chatcore-server/internal/app"
	"github.com/chatcore-io/chatcore-server/internal/config"
	"github.com/chatcore-io/chatcore-server/internal/log"
)

func main() {
	var (
		configPath string
		addr       string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	flag.Parse()

	bootstrap := log.New("info")

	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("failed to load config")
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting chatcore server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
