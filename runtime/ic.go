package runtime

import "github.com/rs/zerolog/log"

// Inline caches speed up the three lookups the VM does over and over at
// the same call site: reading a global, reading/writing an instance
// property, and dispatching a call. Each cache is keyed by call-site
// (the bytecode offset of the instruction that owns it) and stored
// alongside the VM rather than in the Chunk, since a cache is a runtime
// observation, not part of the program's static encoding.

// globalCacheEntry caches a resolved global's value, valid only while
// the owning Environment's version counter matches Version. A single
// global write bumps the environment's version, invalidating every
// cached entry across every call site in one comparison each.
type globalCacheEntry struct {
	valid   bool
	name    string
	version uint32
	value   Value
}

type globalCache struct {
	entries map[int]*globalCacheEntry
}

func newGlobalCache() *globalCache {
	return &globalCache{entries: make(map[int]*globalCacheEntry)}
}

func (gc *globalCache) lookup(site int, env *Environment, name string) (Value, bool) {
	e, ok := gc.entries[site]
	if !ok || !e.valid || e.name != name || e.version != env.GlobalVersion() {
		return Nil, false
	}
	return e.value, true
}

func (gc *globalCache) store(site int, env *Environment, name string, v Value) {
	gc.entries[site] = &globalCacheEntry{valid: true, name: name, version: env.GlobalVersion(), value: v}
}

// Roots returns every cached Value across every call site, per §4.6's
// "every entry of every inline cache" root-set requirement: a global
// may be reassigned away from a cached gen-0 object between cache reads,
// and the cache itself must keep that object alive for callers still
// suspended mid-dispatch on the stale entry.
func (gc *globalCache) Roots() []Value {
	out := make([]Value, 0, len(gc.entries))
	for _, e := range gc.entries {
		if e.valid {
			out = append(out, e.value)
		}
	}
	return out
}

// propertyCacheEntry is one shape observed at a property access site:
// the instance identity, the name read, the instance's Version at the
// time of caching, and the value that lookup produced. A hit requires
// both the instance pointer and its version to still match — any
// SetProperty on that instance bumps Version and invalidates every
// entry that names it, per spec.
type propertyCacheEntry struct {
	instance *Instance
	// self is the Instance's own heap Value, kept alongside the pointer
	// so Roots() can publish it as a GC root (§4.6: "every entry of
	// every inline cache" keeps cached objects live, including the
	// receiver itself, not just the value read off it).
	self    Value
	name    string
	version uint32
	value   Value
}

const (
	polymorphicCacheSize = 4
	megamorphicThreshold  = 17
)

type propertySite struct {
	entries     []propertyCacheEntry
	misses      int
	megamorphic bool
}

type propertyCache struct {
	sites map[int]*propertySite
}

func newPropertyCache() *propertyCache {
	return &propertyCache{sites: make(map[int]*propertySite)}
}

func (pc *propertyCache) site(at int) *propertySite {
	s, ok := pc.sites[at]
	if !ok {
		s = &propertySite{}
		pc.sites[at] = s
	}
	return s
}

// Lookup serves a cached value for (instance, name) at call-site `at`
// if the instance's version has not moved since it was cached.
func (pc *propertyCache) Lookup(at int, inst *Instance, name string) (Value, bool) {
	s, ok := pc.sites[at]
	if !ok || s.megamorphic {
		return Nil, false
	}
	for i := range s.entries {
		e := &s.entries[i]
		if e.instance == inst && e.name == name {
			if e.version == inst.Version {
				// Move the matched entry to the end so index 0 is always
				// the least-recently-matched one.
				hit := *e
				copy(s.entries[i:], s.entries[i+1:])
				s.entries[len(s.entries)-1] = hit
				return hit.value, true
			}
			return Nil, false
		}
	}
	return Nil, false
}

// Store records a freshly computed value for (instance, name) at site
// `at`, evicting the least-recently-matched entry once the site has
// accumulated polymorphicCacheSize distinct shapes. Once a site has
// taken megamorphicThreshold misses (distinct instances cycling
// through a full cache) it stops caching entirely and the VM falls
// back to the plain map lookup unconditionally. self is the instance's
// own heap Value (see propertyCacheEntry.self).
func (pc *propertyCache) Store(at int, self Value, inst *Instance, name string, value Value) {
	s := pc.site(at)
	if s.megamorphic {
		return
	}
	for i := range s.entries {
		if s.entries[i].instance == inst && s.entries[i].name == name {
			s.entries[i].version = inst.Version
			s.entries[i].value = value
			return
		}
	}
	if len(s.entries) < polymorphicCacheSize {
		s.entries = append(s.entries, propertyCacheEntry{instance: inst, self: self, name: name, version: inst.Version, value: value})
		return
	}
	// Evict the least-recently-matched entry (index 0) to make room, then count this
	// as a miss toward the megamorphic threshold.
	s.entries = append(s.entries[1:], propertyCacheEntry{instance: inst, self: self, name: name, version: inst.Version, value: value})
	s.misses++
	if s.misses >= megamorphicThreshold {
		s.megamorphic = true
		log.Debug().Int("site", at).Msg("ic: property cache went megamorphic")
	}
}

func (pc *propertyCache) IsMegamorphic(at int) bool {
	s, ok := pc.sites[at]
	return ok && s.megamorphic
}

// Roots returns the receiver and cached value of every live entry across
// every site, per §4.6's inline-cache root-set requirement.
func (pc *propertyCache) Roots() []Value {
	var out []Value
	for _, s := range pc.sites {
		for _, e := range s.entries {
			out = append(out, e.self, e.value)
		}
	}
	return out
}

// callCacheEntry remembers what kind of callee a call site saw last:
// a bare VMFunction, a VMClosure, or a native Callable/Class (which
// bridges to the interpreter). A mismatch is a cache miss that falls
// back to the generic dispatch path in vm.go without invalidating
// anything else.
type calleeKind int

const (
	calleeUnknown calleeKind = iota
	calleeFunction
	calleeClosure
	calleeBoundMethod
	calleeBridged
)

type callCacheEntry struct {
	kind   calleeKind
	target Value
}

type callCache struct {
	entries map[int]*callCacheEntry
}

func newCallCache() *callCache {
	return &callCache{entries: make(map[int]*callCacheEntry)}
}

func (cc *callCache) lookup(site int, callee Value) (calleeKind, bool) {
	e, ok := cc.entries[site]
	if !ok || e.target != callee {
		return calleeUnknown, false
	}
	return e.kind, true
}

func (cc *callCache) store(site int, callee Value, kind calleeKind) {
	cc.entries[site] = &callCacheEntry{kind: kind, target: callee}
}

// Roots returns every cached callee Value, per §4.6's inline-cache
// root-set requirement.
func (cc *callCache) Roots() []Value {
	out := make([]Value, 0, len(cc.entries))
	for _, e := range cc.entries {
		out = append(out, e.target)
	}
	return out
}
