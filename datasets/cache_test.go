package datasets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookupCache_TTL(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	c := newLookupCache(time.Minute, 10)
	c.now = func() time.Time { return now }

	k := cacheKey{kind: "sample", token: "s0"}
	c.set(k, 42)
	v, ok := c.get(k)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(59 * time.Second)
	_, ok = c.get(k)
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.get(k)
	assert.False(t, ok, "entry should have expired")
	assert.Equal(t, 0, c.len())
}

func TestLookupCache_MaxEntries(t *testing.T) {
	t.Parallel()
	c := newLookupCache(0, 2)
	for i := 0; i < 3; i++ {
		c.set(cacheKey{kind: "frame", index: i}, i)
	}
	assert.Equal(t, 2, c.len())
	_, ok := c.get(cacheKey{kind: "frame", index: 0})
	assert.False(t, ok, "oldest entry should have been evicted")

	c.setMaxEntries(1)
	assert.Equal(t, 1, c.len())
	_, ok = c.get(cacheKey{kind: "frame", index: 2})
	assert.True(t, ok)

	c.clear()
	assert.Equal(t, 0, c.len())
}
