package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHashMapEnsureDefaultIsRaceFree drives many goroutines at the same
// missing key simultaneously; §4.6 requires exactly one insert to win,
// with the result from EnsureDefault observed by every caller.
func TestHashMapEnsureDefaultIsRaceFree(t *testing.T) {
	m := NewHashMap()
	const n = 64
	var wg sync.WaitGroup
	results := make([]Value, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.EnsureDefault("k", Number(0))
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, float64(0), r.AsNumber())
	}
	v, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, float64(0), v.AsNumber())
	assert.Equal(t, []string{"k"}, m.Order, "concurrent EnsureDefault calls on the same key must produce a single insert")
}

func TestHashMapEnsureDefaultPreservesExistingValue(t *testing.T) {
	m := NewHashMap()
	m.Set("k", Number(41))
	got := m.EnsureDefault("k", Number(0))
	assert.Equal(t, float64(41), got.AsNumber())
}

// TestReleasedHashMapIsClearedForReuse checks the pool-reuse path in
// gc.go's release(): a swept HashMap must come back from AllocHashMap
// with no stale entries from its previous life.
func TestReleasedHashMapIsClearedForReuse(t *testing.T) {
	mv := AllocHashMap()
	m := heapObjectOf(mv).(*HashMap)
	m.Set("stale", Number(99))

	heap.release(mv.arenaIndex(), m)

	fresh := AllocHashMap()
	fm := heapObjectOf(fresh).(*HashMap)
	_, ok := fm.Get("stale")
	assert.False(t, ok, "a pooled HashMap must not leak entries from its previous occupant")
}
