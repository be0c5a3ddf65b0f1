package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/belezaflow/belezaflow/internal/booking"
	"github.com/belezaflow/belezaflow/internal/platform/kv"
)

// OpenKV connects the configured key-value backend. The returned func releases it.
func OpenKV(ctx context.Context, cfg *Config, logger *slog.Logger) (booking.KVStore, func(), error) {
	switch cfg.KVBackend {
	case BackendMemory:
		logger.Warn("using in-memory store, records are lost on restart")
		return kv.NewMemory(), func() {}, nil
	case BackendPostgres:
		pool, err := kv.DialPostgres(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		store := kv.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case BackendRedis:
		client, err := kv.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewRedis(client), func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
}
