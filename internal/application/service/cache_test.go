package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTTLCache_GetSet(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTLCache[string, int](5 * time.Second).WithClock(clock.Now)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("https://shop.test/cart", 42)
	v, ok := c.Get("https://shop.test/cart")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	clock.Advance(4 * time.Second)
	_, ok = c.Get("https://shop.test/cart")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("https://shop.test/cart")
	assert.False(t, ok, "entry must expire at the TTL boundary")
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_SetRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTLCache[string, string](time.Second).WithClock(clock.Now)

	c.Set("k", "a")
	clock.Advance(900 * time.Millisecond)
	c.Set("k", "b")
	clock.Advance(900 * time.Millisecond)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestTTLCache_EvictExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewTTLCache[int, bool](time.Second).WithClock(clock.Now)

	c.Set(1, true)
	clock.Advance(500 * time.Millisecond)
	c.Set(2, true)
	clock.Advance(600 * time.Millisecond)

	assert.Equal(t, 1, c.EvictExpired())
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_DeleteAndPurge(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, time.Minute, c.TTL())
}
