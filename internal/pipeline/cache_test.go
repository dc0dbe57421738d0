package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/loader"
)

func TestCache_BasicGetPut(t *testing.T) {
	cache := NewCache(10, time.Hour)

	_, ok := cache.Get("a")
	assert.False(t, ok)

	r := &Result{ID: "run-a"}
	cache.Put("a", r)
	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.Same(t, r, got)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-12)
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := NewCache(10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("a", &Result{})
	_, ok := cache.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("a")
	assert.False(t, ok)

	cache.mu.RLock()
	_, exists := cache.entries["a"]
	cache.mu.RUnlock()
	assert.False(t, exists)
}

func TestCache_LRUEviction_AccessOrder(t *testing.T) {
	cache := NewCache(3, 0)
	cache.Put("a", &Result{})
	cache.Put("b", &Result{})
	cache.Put("c", &Result{})

	cache.Get("a")
	cache.Put("d", &Result{})

	_, ok := cache.Get("b")
	assert.False(t, ok, "b was least recently used")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := cache.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(0, time.Hour)
	cache.Put("a", &Result{})
	_, ok := cache.Get("a")
	assert.False(t, ok)

	var nilCache *Cache
	nilCache.Put("a", &Result{})
	_, ok = nilCache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, nilCache.Purge())
}

func TestCache_InvalidateAndPurge(t *testing.T) {
	cache := NewCache(10, 0)
	cache.Put("a", &Result{})
	cache.Put("b", &Result{})

	assert.True(t, cache.Invalidate("a"))
	assert.False(t, cache.Invalidate("a"))
	assert.Equal(t, 1, cache.Purge())
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache(50, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%10))
			cache.Put(key, &Result{})
			cache.Get(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Stats().Entries, 10)
}

func TestKey(t *testing.T) {
	src := loader.Source{ArchivePath: "data/data.zip"}
	base := Key(src, DefaultConfig())
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key(src, DefaultConfig()))

	aliased := DefaultConfig()
	aliased.Metrics = []dbscan.Metric{"euclidean", "haversine", "planar"}
	assert.Equal(t, base, Key(src, aliased))

	changed := DefaultConfig()
	changed.MinSamples = 6
	assert.NotEqual(t, base, Key(src, changed))

	assert.NotEqual(t, base, Key(loader.Source{ArchivePath: "other.zip"}, DefaultConfig()))
}
