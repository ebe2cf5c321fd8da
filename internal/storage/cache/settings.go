// Package cache puts a Redis read-through cache in front of the settings
// store, so the settings API and the retention sweep do not hit the
// backend on every read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/eventlogs/internal/logging"
	"github.com/telhawk-systems/eventlogs/internal/models"
)

// SettingsKey is the Redis key holding the cached settings record.
const SettingsKey = "eventlogs:settings:" + models.SettingsID

// SettingsStore is the backing store being cached.
type SettingsStore interface {
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// Settings caches the singleton settings record. Redis failures degrade to
// reading the backing store; they are never returned to callers.
type Settings struct {
	next   SettingsStore
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSettings wraps next. A ttl of zero caches without expiry.
func NewSettings(next SettingsStore, client *redis.Client, ttl time.Duration) *Settings {
	return &Settings{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logging.ForComponent("settings-cache"),
	}
}

// Get serves from Redis when possible. Absent settings are not cached.
func (c *Settings) Get(ctx context.Context) (*models.Settings, error) {
	data, err := c.redis.Get(ctx, SettingsKey).Bytes()
	switch {
	case err == nil:
		var st models.Settings
		uerr := json.Unmarshal(data, &st)
		if uerr == nil {
			return &st, nil
		}
		c.logger.WarnContext(ctx, "discarding unreadable cached settings", logging.Error(uerr))
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "settings cache unavailable", logging.Error(err))
	}

	st, err := c.next.Get(ctx)
	if err != nil || st == nil {
		return st, err
	}

	if data, err := json.Marshal(st); err == nil {
		if err := c.redis.Set(ctx, SettingsKey, data, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "failed to cache settings", logging.Error(err))
		}
	}
	return st, nil
}

// Save writes through to the backing store, then drops the cached copy.
func (c *Settings) Save(ctx context.Context, s models.Settings) error {
	if err := c.next.Save(ctx, s); err != nil {
		return err
	}
	if err := c.redis.Del(ctx, SettingsKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate cached settings", logging.Error(err))
	}
	return nil
}
