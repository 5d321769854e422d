package rules

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type weight float64

func newMiniredisCache(t *testing.T) Cache {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, "test")
}

func TestRedisCache_PutThenGetRoundTrips(t *testing.T) {
	cache := newMiniredisCache(t)
	params := NewParams().Put(weight(42))

	_, ok := cache.Get("heavy", params)
	require.False(t, ok, "cache must start empty")

	cache.Put("heavy", params, 99.5)

	got, ok := cache.Get("heavy", params)
	require.True(t, ok)
	require.Equal(t, 99.5, got)
}

func TestRedisCache_MissesOnDifferentParams(t *testing.T) {
	cache := newMiniredisCache(t)
	cache.Put("heavy", NewParams().Put(weight(1)), "light")

	_, ok := cache.Get("heavy", NewParams().Put(weight(2)))
	require.False(t, ok, "a different params hash must not hit the same entry")
}

func TestRedisCache_MissesOnDifferentRuleID(t *testing.T) {
	cache := newMiniredisCache(t)
	params := NewParams().Put(weight(7))
	cache.Put("rule-a", params, "a-value")

	_, ok := cache.Get("rule-b", params)
	require.False(t, ok, "the same params under a different rule id must not hit")
}
