package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// BacktestCache implements domain.BacktestCache as JSON strings with a TTL.
type BacktestCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBacktestCache creates a BacktestCache backed by the given Client.
func NewBacktestCache(c *Client, ttl time.Duration) *BacktestCache {
	return &BacktestCache{rdb: c.Underlying(), ttl: ttl}
}

func backtestKey(key string) string {
	return "backtest:" + key
}

// Get returns the cached result for key, or domain.ErrNotFound on a miss.
func (bc *BacktestCache) Get(ctx context.Context, key string) (domain.BacktestResult, error) {
	raw, err := bc.rdb.Get(ctx, backtestKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BacktestResult{}, domain.ErrNotFound
		}
		return domain.BacktestResult{}, fmt.Errorf("redis: get backtest %s: %w", key, err)
	}

	var res domain.BacktestResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.BacktestResult{}, fmt.Errorf("redis: decode backtest %s: %w", key, err)
	}
	return res, nil
}

// Set stores result under key for the configured TTL.
func (bc *BacktestCache) Set(ctx context.Context, key string, result domain.BacktestResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: encode backtest %s: %w", key, err)
	}
	if err := bc.rdb.Set(ctx, backtestKey(key), raw, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set backtest %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BacktestCache = (*BacktestCache)(nil)
