package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withRoots installs fn as the collector's root provider for the
// duration of a test and restores the prior provider afterward, since
// heap is a process-wide singleton shared with every other test in this
// package.
func withRoots(t *testing.T, fn RootProvider) {
	t.Helper()
	prev := heap.roots
	SetRoots(fn)
	t.Cleanup(func() { SetRoots(prev) })
}

func TestWriteBarrierKeepsYoungObjectReachableFromOldHolder(t *testing.T) {
	oldV := AllocArray(nil)
	oldObj := heapObjectOf(oldV).(*Array)
	oldObj.header().generation = 1 // simulate a prior promotion

	youngV := AllocArray([]Value{Number(42)})
	oldObj.Elements = []Value{youngV}
	WriteBarrier(oldV, youngV)

	withRoots(t, func() []Value { return nil }) // no true roots; only the remembered set
	heap.CollectMinor()

	youngIdx := youngV.arenaIndex()
	assert.NotNil(t, heap.objects[youngIdx], "a young object reachable only via an old holder's remembered entry must survive a minor collection")
	got := heapObjectOf(youngV).(*Array)
	assert.Equal(t, float64(42), got.Elements[0].AsNumber())
}

func TestWriteBarrierIgnoresNonHeapValues(t *testing.T) {
	oldV := AllocArray(nil)
	before := len(heap.remembered)
	WriteBarrier(oldV, Number(1))
	assert.Equal(t, before, len(heap.remembered), "a number payload never enters the remembered set")
}

func TestMinorCollectionFreesUnreachableYoungObjects(t *testing.T) {
	kept := AllocArray([]Value{Number(1)})
	discarded := AllocArray([]Value{Number(2)})

	withRoots(t, func() []Value { return []Value{kept} })
	heap.CollectMinor()

	assert.NotNil(t, heap.objects[kept.arenaIndex()])
	assert.Nil(t, heap.objects[discarded.arenaIndex()], "an array with no root path must be swept")
}

func TestEphemeralFrameReclaimsUnkeptAllocations(t *testing.T) {
	live, freeBefore := HeapStats()
	_ = live

	BeginEphemeral()
	temp1 := AllocArray([]Value{Number(1)})
	temp2 := AllocArray([]Value{Number(2)})
	EndEphemeral(Nil) // neither temp1 nor temp2 is the return value

	assert.Nil(t, heap.objects[temp1.arenaIndex()])
	assert.Nil(t, heap.objects[temp2.arenaIndex()])

	_, freeAfter := HeapStats()
	assert.GreaterOrEqual(t, freeAfter, freeBefore, "discarded ephemeral allocations return their slots to the free list")
}

func TestEphemeralFrameKeepsTheReturnedValue(t *testing.T) {
	BeginEphemeral()
	kept := AllocArray([]Value{Number(7)})
	discarded := AllocArray([]Value{Number(8)})
	EndEphemeral(kept)

	assert.NotNil(t, heap.objects[kept.arenaIndex()], "the value the native call returns must survive its own ephemeral frame")
	assert.Nil(t, heap.objects[discarded.arenaIndex()])
}

func TestCollectMajorBoundsLiveArraysAcrossManyAllocations(t *testing.T) {
	var surviving Value
	withRoots(t, func() []Value {
		if surviving.IsHeapObject() {
			return []Value{surviving}
		}
		return nil
	})
	heap.disabled = false
	t.Cleanup(func() { heap.disabled = false })

	const iterations = 150_000
	for i := 0; i < iterations; i++ {
		v := AllocArray([]Value{Number(float64(i))})
		if i == iterations-1 {
			surviving = v
		}
	}
	heap.CollectMajor()

	live, _ := HeapStats()
	assert.Less(t, live, iterations, "discarded arrays from the loop must not all still be live after a major collection")
	require.True(t, surviving.IsHeapObject())
	got := heapObjectOf(surviving).(*Array)
	assert.Equal(t, float64(iterations-1), got.Elements[0].AsNumber(), "the one array actually kept alive must not be lost")
}
