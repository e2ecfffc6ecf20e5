// Package redis holds the ephemeral server state: display pairing codes,
// per-display debug flags and the latest performance-metrics blobs.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/model"
)

const (
	metricsTTL     = 10 * time.Minute
	pairingCodeTTL = 5 * time.Minute
)

type Cache struct {
	rdb *redis.Client
}

func NewCache(address, username, password string) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{
		Addr:     address,
		Username: username,
		Password: password,
		DB:       0,
	})}
}

func metricsKey(displayID int) string { return fmt.Sprintf("display:%d:metrics", displayID) }
func debugKey(displayID int) string   { return fmt.Sprintf("display:%d:debug", displayID) }
func pairingKey(code string) string   { return fmt.Sprintf("pairing:%s", code) }

func (c *Cache) SetMetrics(ctx context.Context, displayID int, m model.PerformanceMetrics) {
	blob, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, metricsKey(displayID), blob, metricsTTL).Err(); err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("failed to cache metrics")
	}
}

func (c *Cache) GetMetrics(ctx context.Context, displayID int) (model.PerformanceMetrics, bool) {
	var m model.PerformanceMetrics
	blob, err := c.rdb.Get(ctx, metricsKey(displayID)).Bytes()
	if err != nil {
		return m, false
	}
	// unknown fields in a stale blob are ignored, not rejected
	if err := json.Unmarshal(blob, &m); err != nil {
		return m, false
	}
	return m, true
}

func (c *Cache) SetDebug(ctx context.Context, displayID int, enabled bool) error {
	return c.rdb.Set(ctx, debugKey(displayID), enabled, 0).Err()
}

func (c *Cache) GetDebug(ctx context.Context, displayID int) bool {
	v, err := c.rdb.Get(ctx, debugKey(displayID)).Bool()
	if err != nil {
		return false
	}
	return v
}

// SetPairingCode maps a short-lived pairing code to a display id.
func (c *Cache) SetPairingCode(ctx context.Context, code string, displayID int) error {
	return c.rdb.Set(ctx, pairingKey(code), displayID, pairingCodeTTL).Err()
}

// TakePairingCode resolves and consumes a pairing code.
func (c *Cache) TakePairingCode(ctx context.Context, code string) (int, error) {
	displayID, err := c.rdb.GetDel(ctx, pairingKey(code)).Int()
	if err != nil {
		return 0, fmt.Errorf("pairing code not found: %w", err)
	}
	return displayID, nil
}
