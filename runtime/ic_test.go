package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalCacheHitRequiresMatchingVersionAndName(t *testing.T) {
	env := NewEnvironment(nil)
	_, err := env.DeclareVar("g", Number(1), false)
	require.NoError(t, err)

	gc := newGlobalCache()
	_, ok := gc.lookup(0, env, "g")
	assert.False(t, ok, "a site never stored into must miss")

	gc.store(0, env, "g", Number(1))
	v, ok := gc.lookup(0, env, "g")
	require.True(t, ok)
	assert.Equal(t, float64(1), v.AsNumber())

	// A write to any global bumps the version, invalidating every entry.
	_, err = env.AssignVar("g", Number(2))
	require.NoError(t, err)
	_, ok = gc.lookup(0, env, "g")
	assert.False(t, ok, "stale entry must miss after the global version bumps")
}

func TestPropertyCacheMonomorphicHit(t *testing.T) {
	class := &Class{Name: "Point", Methods: make(map[string]*VMFunction)}
	inst := NewInstance(class)
	inst.Set("x", Number(1))

	pc := newPropertyCache()
	const site = 7
	_, ok := pc.Lookup(site, inst, "x")
	assert.False(t, ok)

	pc.Store(site, Nil, inst, "x", Number(1))
	v, ok := pc.Lookup(site, inst, "x")
	require.True(t, ok)
	assert.Equal(t, float64(1), v.AsNumber())

	// Adding a new field bumps Version, invalidating the cached entry.
	inst.Set("y", Number(2))
	_, ok = pc.Lookup(site, inst, "x")
	assert.False(t, ok, "a shape change on the instance must invalidate its cached entries")
}

func TestPropertyCacheMegamorphicTransition(t *testing.T) {
	class := &Class{Name: "Node", Methods: make(map[string]*VMFunction)}
	pc := newPropertyCache()
	const site = 3

	const instanceCount = 40
	instances := make([]*Instance, instanceCount)
	for i := range instances {
		inst := NewInstance(class)
		inst.Set("value", Number(float64(i)))
		instances[i] = inst
	}

	for i, inst := range instances {
		v, ok := pc.Lookup(site, inst, "value")
		if !ok {
			v, ok = inst.Get("value")
			require.True(t, ok)
			pc.Store(site, Nil, inst, "value", v)
		}
		assert.Equal(t, float64(i), v.AsNumber())
		if i < polymorphicCacheSize+megamorphicThreshold-1 {
			assert.False(t, pc.IsMegamorphic(site), "site must not go megamorphic before %d misses", megamorphicThreshold)
		}
	}

	assert.True(t, pc.IsMegamorphic(site), "40 distinct instances through a 4-entry cache must exceed the %d-miss threshold", megamorphicThreshold)

	// Once megamorphic, Store is a no-op and Lookup always misses.
	pc.Store(site, Nil, instances[0], "value", Number(999))
	_, ok := pc.Lookup(site, instances[0], "value")
	assert.False(t, ok, "a megamorphic site never serves a cached value again")
}

func TestCallCacheMissOnDifferentCallee(t *testing.T) {
	cc := newCallCache()
	fnA := AllocFunction(&VMFunction{Name: "a"})
	fnB := AllocFunction(&VMFunction{Name: "b"})

	_, ok := cc.lookup(0, fnA)
	assert.False(t, ok)

	cc.store(0, fnA, calleeFunction)
	kind, ok := cc.lookup(0, fnA)
	require.True(t, ok)
	assert.Equal(t, calleeFunction, kind)

	_, ok = cc.lookup(0, fnB)
	assert.False(t, ok, "a different callee identity at the same site must miss")
}
