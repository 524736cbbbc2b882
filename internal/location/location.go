// Package location resolves free-text event locations to coordinates and
// caches results by normalized location text.
package location

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Result is a resolved location.
type Result struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Display string  `json:"display"`
}

// Resolver turns a location string into coordinates. Implementations return
// sentinel.ErrNotFound when nothing matches.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*Result, error)
}

// Cache stores resolved locations by normalized key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Set(ctx context.Context, key string, result *Result) error
}

// NormalizeKey folds case, applies NFC and collapses whitespace, so
// "Kyiv,  Khreshchatyk" and "kyiv, khreshchatyk" share one entry.
// A Caser is stateful, so one is built per call.
func NormalizeKey(query string) string {
	s := norm.NFC.String(query)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// CachingResolver consults cache before calling the upstream resolver.
// Cache failures are logged and never fail a lookup.
type CachingResolver struct {
	upstream Resolver
	cache    Cache
	logger   *slog.Logger
}

func NewCachingResolver(upstream Resolver, cache Cache, logger *slog.Logger) *CachingResolver {
	return &CachingResolver{upstream: upstream, cache: cache, logger: logger}
}

func (r *CachingResolver) Resolve(ctx context.Context, query string) (*Result, error) {
	key := NormalizeKey(query)
	if cached, ok, err := r.cache.Get(ctx, key); err != nil {
		r.warn(ctx, "geocode cache read failed", err)
	} else if ok {
		return cached, nil
	}

	result, err := r.upstream.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, result); err != nil {
		r.warn(ctx, "geocode cache write failed", err)
	}
	return result, nil
}

func (r *CachingResolver) warn(ctx context.Context, msg string, err error) {
	if r.logger != nil {
		r.logger.WarnContext(ctx, msg, "error", err)
	}
}
