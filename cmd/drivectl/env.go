package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/config"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/history"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// env is the set of shared handles a command runs against
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    objectstore.ObjectStore
	recorder history.Recorder
	redis    *redis.Client
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logger := newLogger(level)

	store, err := objectstore.NewS3Store(c.Context, cfg.S3, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	e := &env{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		recorder: history.NopRecorder{},
	}

	if cfg.Redis.Addr != "" {
		e.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.recorder = history.NewRedisRecorder(e.redis, cfg.Redis.KeyPrefix, int64(cfg.Redis.HistoryLen))
	}

	return e, nil
}

func (e *env) Close() error {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("Failed to close Redis client", "error", err)
		}
	}
	return e.store.Close()
}

// record stores a history entry; failures only get logged
func (e *env) record(ctx context.Context, entry history.Entry) {
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("Failed to record run history", "kind", entry.Kind, "error", err)
	}
}

// withEnv wraps a command action with setup and teardown of the shared handles
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return action(c, e)
	}
}
