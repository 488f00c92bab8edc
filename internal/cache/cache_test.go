package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Code    string
	Percent float64
}

func TestSetGet(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	require.NoError(t, c.Set("coupon:SPRING", entry{Code: "SPRING", Percent: 10}))

	var got entry
	found, err := c.Get("coupon:SPRING", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Code: "SPRING", Percent: 10}, got)

	found, err = c.Get("coupon:WINTER", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	require.NoError(t, c.Set("short", 1, -time.Second))

	var v int
	found, err := c.Get("short", &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, c.Size(), "expired entries stay until swept")

	c.sweep()
	assert.Equal(t, 0, c.Size())
}

func TestDeleteByPrefix(t *testing.T) {
	c := New(time.Minute, 0)
	defer c.Close()

	require.NoError(t, c.Set("coupon:A", 1))
	require.NoError(t, c.Set("coupon:B", 2))
	require.NoError(t, c.Set("other", 3))

	c.DeleteByPrefix("coupon:")
	assert.Equal(t, 1, c.Size())

	c.Delete("other")
	assert.Equal(t, 0, c.Size())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, time.Millisecond)
	c.Close()
	c.Close()
}
