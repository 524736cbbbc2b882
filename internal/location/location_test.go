package location

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kyiv,  Khreshchatyk 22", "kyiv, khreshchatyk 22"},
		{"  LVIV\tRynok Square ", "lviv rynok square"},
		{"Café", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

type countingResolver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingResolver) Resolve(_ context.Context, query string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &Result{Lat: 1, Lon: 2, Display: query}, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]Result
	getErr  error
}

func (c *mapCache) Get(_ context.Context, key string) (*Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *mapCache) Set(_ context.Context, key string, r *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *r
	return nil
}

func TestCachingResolver_SharesNormalizedEntries(t *testing.T) {
	upstream := &countingResolver{}
	r := NewCachingResolver(upstream, &mapCache{entries: map[string]Result{}}, nil)

	first, err := r.Resolve(context.Background(), "Kyiv Center")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "  kyiv   center")
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, first, second)
}

func TestCachingResolver_CacheErrorFallsThrough(t *testing.T) {
	upstream := &countingResolver{}
	r := NewCachingResolver(upstream, &mapCache{entries: map[string]Result{}, getErr: errors.New("down")}, nil)

	_, err := r.Resolve(context.Background(), "Kharkiv")
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.calls)
}

func TestCachingResolver_UpstreamErrorNotCached(t *testing.T) {
	upstream := &countingResolver{err: errors.New("timeout")}
	cache := &mapCache{entries: map[string]Result{}}
	r := NewCachingResolver(upstream, cache, nil)

	_, err := r.Resolve(context.Background(), "Dnipro")
	require.Error(t, err)
	assert.Empty(t, cache.entries)
}
