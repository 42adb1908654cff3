package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/appconfig"
	"pkt.systems/tabkeeper/internal/persist"
)

// openStore builds the configured persistence backend. The returned close
// func is never nil.
func openStore(ctx context.Context, cfg appconfig.StoreConfig, logger pslog.Logger) (persist.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case appconfig.StoreFile, "":
		store, err := persist.NewFileStoreWithLogger(cfg.File, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("store selected", "backend", appconfig.StoreFile, "path", store.Path())
		return store, noop, nil
	case appconfig.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := persist.NewRedisStore(client, cfg.Redis.Key, logger)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("store selected", "backend", appconfig.StoreRedis, "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return store, client.Close, nil
	case appconfig.StoreMemory:
		logger.Warn("store selected", "backend", appconfig.StoreMemory, "durable", false)
		return persist.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}
