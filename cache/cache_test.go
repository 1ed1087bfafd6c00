package cache_test

import (
	"testing"
	"time"

	"github.com/meikuraledutech/botflow/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Deterministic(t *testing.T) {
	a := cache.Key("flow:7", "nodes", 42)
	b := cache.Key("flow:7", "nodes", 42)
	assert.Equal(t, a, b)

	c := cache.Key("flow:7", "nodes", 43)
	assert.NotEqual(t, a, c)

	assert.True(t, len(a) > len("flow:7:"))
	assert.Contains(t, a, "flow:7:")
}

func TestCache_SetGet(t *testing.T) {
	c := cache.New()
	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_ExpiryEvicts(t *testing.T) {
	c := cache.New()
	c.Set("k", "v", -time.Second) // already expired

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestCache_Overwrite(t *testing.T) {
	c := cache.New()
	c.Set("k", 1, time.Minute)
	c.Set("k", 2, time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DeleteByPrefix(t *testing.T) {
	c := cache.New()
	c.Set(cache.Key("flow:1"), "a", time.Minute)
	c.Set(cache.Key("flow:1", "extra"), "b", time.Minute)
	c.Set(cache.Key("flow:12"), "c", time.Minute)
	c.Set(cache.Key("bot:1"), "d", time.Minute)

	dropped := c.DeleteByPrefix("flow:1:")
	assert.Equal(t, 2, dropped)

	_, ok := c.Get(cache.Key("flow:12"))
	assert.True(t, ok, "prefix clear must not touch other bots")
	_, ok = c.Get(cache.Key("bot:1"))
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := cache.New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
