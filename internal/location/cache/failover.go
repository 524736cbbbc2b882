package cache

import (
	"context"
	"log/slog"

	"unitedhelp/internal/location"
	"unitedhelp/pkg/platform/circuit"
)

// FailoverCache reads and writes the primary while the breaker is closed.
// Once it opens, results come from the fallback while the primary keeps
// being probed until it recovers.
type FailoverCache struct {
	primary  location.Cache
	fallback location.Cache
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFailoverCache(primary, fallback location.Cache, breaker *circuit.Breaker, logger *slog.Logger) *FailoverCache {
	return &FailoverCache{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (c *FailoverCache) Get(ctx context.Context, key string) (*location.Result, bool, error) {
	result, ok, err := c.primary.Get(ctx, key)
	if err != nil {
		if c.recordFailure(ctx, err) {
			return c.fallback.Get(ctx, key)
		}
		return nil, false, err
	}
	if !c.recordSuccess(ctx) {
		return c.fallback.Get(ctx, key)
	}
	return result, ok, nil
}

// Set always writes the fallback so it is warm when the primary goes away.
func (c *FailoverCache) Set(ctx context.Context, key string, result *location.Result) error {
	_ = c.fallback.Set(ctx, key, result)
	if err := c.primary.Set(ctx, key, result); err != nil {
		if c.recordFailure(ctx, err) {
			return nil
		}
		return err
	}
	c.recordSuccess(ctx)
	return nil
}

func (c *FailoverCache) recordFailure(ctx context.Context, err error) bool {
	useFallback, change := c.breaker.RecordFailure()
	if change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "geocode cache circuit opened", "breaker", c.breaker.Name(), "error", err)
	}
	return useFallback
}

func (c *FailoverCache) recordSuccess(ctx context.Context) bool {
	usePrimary, change := c.breaker.RecordSuccess()
	if change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "geocode cache circuit closed", "breaker", c.breaker.Name())
	}
	return usePrimary
}
