package retrieval

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouse/property-assistant/internal/db"
)

func TestCacheGetPut(t *testing.T) {
	cache := NewCache(time.Minute, 0)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	want := &Result{Matches: []db.ChunkMatch{{Similarity: 0.9}}}
	cache.Put("key", want)

	got, ok := cache.Get("key")
	require.True(t, ok)
	require.Len(t, got.Matches, 1)
	assert.InDelta(t, 0.9, got.Matches[0].Similarity, 1e-9)
}

func TestCacheHitsAreIsolatedFromCallerMutation(t *testing.T) {
	cache := NewCache(time.Minute, 0)

	stored := &Result{Matches: []db.ChunkMatch{
		{Chunk: &db.Chunk{Content: "first"}, Similarity: 0.9},
		{Chunk: &db.Chunk{Content: "second"}, Similarity: 0.8},
	}}
	cache.Put("key", stored)

	// Mutating the value handed to Put must not touch the entry.
	stored.Matches = stored.Matches[:1]

	first, ok := cache.Get("key")
	require.True(t, ok)
	require.Len(t, first.Matches, 2)

	// Mutating a hit must not poison the next hit for the same key.
	first.Matches[0] = db.ChunkMatch{Similarity: 0}
	first.Matches = first.Matches[:0]

	second, ok := cache.Get("key")
	require.True(t, ok)
	require.Len(t, second.Matches, 2)
	assert.Equal(t, "first", second.Matches[0].Chunk.Content)
	assert.InDelta(t, 0.9, second.Matches[0].Similarity, 1e-9)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Minute, 0)

	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Put("key", &Result{})

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := cache.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entries are removed on read")
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	cache := NewCache(time.Minute, 3)

	base := time.Now()
	for i := 0; i < 3; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		cache.now = func() time.Time { return tick }
		cache.Put(fmt.Sprintf("key-%d", i), &Result{})
	}

	cache.now = func() time.Time { return base.Add(3 * time.Second) }
	cache.Put("key-3", &Result{})

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get("key-0")
	assert.False(t, ok, "the oldest entry is evicted first")
	_, ok = cache.Get("key-3")
	assert.True(t, ok)
}
