package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/client"
	"github.com/pricepulse/pulse/internal/config"
	"github.com/pricepulse/pulse/internal/market"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	key, err := market.ParseSortKey(cfg.Client.SortKey)
	if err != nil {
		logger.Fatal("invalid sort key", zap.Error(err))
	}
	dir := market.Ascending
	if cfg.Client.SortDesc {
		dir = market.Descending
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := market.NewStore(logger)
	defer store.Close()

	refresher := client.NewRefresher(cfg.Client.APIURL, store, logger)
	refresher.Refresh(ctx)

	ctrl := client.NewController(client.Config{
		MaxAttempts: cfg.Client.MaxAttempts,
		RetryDelay:  cfg.Client.RetryDelay(),
	}, client.NewWSDialer(client.DefaultWSConfig(cfg.Client.SocketURL)), store, logger)

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	updates := store.Subscribe()
	ticker := time.NewTicker(cfg.Client.RenderInterval())
	defer ticker.Stop()

	lastStatus := store.Snapshot().ConnectionStatus
	for {
		select {
		case <-ctx.Done():
			if err := <-done; err != nil {
				logger.Error("controller", zap.Error(err))
			}
			return
		case <-hup:
			logger.Info("retry requested")
			ctrl.Retry()
			refresher.Refresh(ctx)
		case s, ok := <-updates:
			if !ok {
				return
			}
			if s.ConnectionStatus != lastStatus {
				lastStatus = s.ConnectionStatus
				fmt.Printf("status: %s\n", s.ConnectionStatus.Label())
			}
		case <-ticker.C:
			if err := client.Render(os.Stdout, store.Snapshot(), key, dir); err != nil {
				logger.Warn("render", zap.Error(err))
			}
		}
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
