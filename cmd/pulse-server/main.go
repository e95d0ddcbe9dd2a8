package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/cache"
	"github.com/pricepulse/pulse/internal/catalog"
	"github.com/pricepulse/pulse/internal/config"
	"github.com/pricepulse/pulse/internal/feed"
	"github.com/pricepulse/pulse/internal/publish"
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

	logger.Info("pulse feed server starting", zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Catalog
	var cat catalog.Catalog = catalog.NewStatic(nil)
	if cfg.Mongo.Enabled() {
		m, err := catalog.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logger)
		if err != nil {
			logger.Fatal("mongo catalog", zap.Error(err))
		}
		defer m.Close(context.Background())
		cat = m
	}

	// Taps run until the sessions feeding them are gone.
	tapCtx, stopTaps := context.WithCancel(context.Background())
	var taps []feed.Tap
	var tapWG sync.WaitGroup

	var rdb *cache.GoRedis
	if cfg.Redis.Enabled() {
		rdb, err = cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		w := cache.NewSnapshotWriter(rdb, logger)
		taps = append(taps, w)
		tapWG.Add(1)
		go func() {
			defer tapWG.Done()
			w.Run(tapCtx)
		}()
		logger.Info("redis snapshot cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Kafka.Enabled() {
		p := publish.NewPublisher(publish.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		taps = append(taps, p)
		tapWG.Add(1)
		go func() {
			defer tapWG.Done()
			p.Run(tapCtx)
		}()
		logger.Info("kafka audit stream enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	srv := feed.NewServer(feed.ServerConfig{
		Addr:           cfg.Server.Addr(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Interval:       cfg.Feed.Interval(),
	}, feed.NewGenerator(cfg.Feed.Assets, nil), cat, taps, logger)
	if rdb != nil {
		srv.SetLatest(rdb)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}

	stopTaps()
	tapWG.Wait()
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("pulse feed server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
