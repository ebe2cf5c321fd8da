package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/eventlogs/internal/config"
	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/storage/cache"
	"github.com/telhawk-systems/eventlogs/internal/storage/opensearch"
	"github.com/telhawk-systems/eventlogs/internal/storage/postgres"
)

// Backend is the opened event and settings stores of one backend.
type Backend struct {
	Name     string
	Events   EventStore
	Settings SettingsStore

	closers []func() error
}

// Close releases the backend and the settings cache, if any.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects the configured backend and prepares its schema: migrations
// for postgres, index templates for opensearch. When redis is enabled the
// settings store is wrapped in a read-through cache.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	logger := logging.ForComponent("storage")

	var b *Backend
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		events := postgres.NewEventStore(pool)
		b = &Backend{
			Name:     config.BackendPostgres,
			Events:   Instrument(events, config.BackendPostgres),
			Settings: postgres.NewSettingsStore(pool),
			closers:  []func() error{events.Close},
		}

	case config.BackendOpenSearch:
		osCfg := opensearch.Config{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			Insecure:      cfg.OpenSearch.Insecure,
			Index:         cfg.OpenSearch.Index,
			SettingsIndex: cfg.OpenSearch.SettingsIndex,
		}
		client, err := opensearch.NewClient(ctx, osCfg)
		if err != nil {
			return nil, err
		}
		if err := opensearch.EnsureIndices(ctx, client, osCfg); err != nil {
			return nil, err
		}
		events := opensearch.NewEventStore(client, osCfg.Index)
		b = &Backend{
			Name:     config.BackendOpenSearch,
			Events:   Instrument(events, config.BackendOpenSearch),
			Settings: opensearch.NewSettingsStore(client, osCfg.SettingsIndex),
			closers:  []func() error{events.Close},
		}

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, settings reads will fall through to storage",
				slog.String("addr", cfg.Redis.Addr),
				logging.Error(err))
		}
		b.Settings = cache.NewSettings(b.Settings, rdb, cfg.Redis.TTL())
		b.closers = append(b.closers, rdb.Close)
	}

	logger.Info("storage backend ready",
		logging.Backend(b.Name),
		slog.Bool("settings_cache", cfg.Redis.Enabled))
	return b, nil
}
