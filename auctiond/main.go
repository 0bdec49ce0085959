package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/playerauction/bootstrap"
	"github.com/cloudx-io/playerauction/config"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	envFile := flag.String("env", ".env", "Path to a .env file loaded before the environment is read")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		log.Error().Err(err).Msg("auction server stopped")
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	config.LoadDotEnv(envFile)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.SetupLogging(cfg.Log, os.Stderr); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	listener, err := listen(cfg.Server)
	if err != nil {
		return err
	}

	server := NewAuctionServer(d.Session, cfg.Server.Workers, cfg.Server.RequestTimeout)
	server.SetRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)
	serveErr := server.Serve(ctx, listener)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Session.Dispose(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to dispose session")
	}
	return serveErr
}
