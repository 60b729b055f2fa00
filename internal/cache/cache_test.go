package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissOnAbsentKey(t *testing.T) {
	c := NewTTL[int](time.Minute, 10)

	_, err := c.Get("absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSetGetRoundTrip(t *testing.T) {
	c := NewTTL[string](time.Minute, 10)
	c.Set("k", "v")

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestExpiry(t *testing.T) {
	c := NewTTL[int](10*time.Millisecond, 10)
	c.Set("k", 42)

	time.Sleep(25 * time.Millisecond)

	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestEvict(t *testing.T) {
	c := NewTTL[int](time.Minute, 10)
	c.Set("k", 1)
	c.Evict("k")

	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMaxSizeEvictsOneEntry(t *testing.T) {
	c := NewTTL[int](time.Minute, 3)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 3, c.Len())

	// The most recent write always survives the bound.
	got, err := c.Get("k4")
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestPurgeDropsOnlyExpired(t *testing.T) {
	c := NewTTL[int](30*time.Millisecond, 10)
	c.Set("old", 1)
	time.Sleep(40 * time.Millisecond)
	c.Set("fresh", 2)

	c.Purge()

	assert.Equal(t, 1, c.Len())
	_, err := c.Get("old")
	assert.ErrorIs(t, err, ErrMiss)
	got, err := c.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestOverwriteRefreshesValue(t *testing.T) {
	c := NewTTL[int](time.Minute, 10)
	c.Set("k", 1)
	c.Set("k", 2)

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}
