package runtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Default generation thresholds: a minor collection runs after this many
// allocations since the last minor cycle, a major collection after this
// many since the last major cycle. --benchmark-mode disables minor
// collections so a timing run isn't perturbed by frequent GC pauses;
// the major trigger still applies.
const (
	defaultMinorThreshold = 100_000
	defaultMajorThreshold = 1_000_000
)

// header exposes the gcHeader embedded in every Object so the collector
// can mark/promote without a type switch over every concrete kind.
type headered interface {
	header() *gcHeader
}

func (a *Array) header() *gcHeader    { return &a.gcHeader }
func (m *HashMap) header() *gcHeader  { return &m.gcHeader }
func (c *Callable) header() *gcHeader { return &c.gcHeader }
func (c *Class) header() *gcHeader    { return &c.gcHeader }
func (i *Instance) header() *gcHeader { return &i.gcHeader }
func (f *VMFunction) header() *gcHeader { return &f.gcHeader }
func (c *VMClosure) header() *gcHeader  { return &c.gcHeader }
func (u *Upvalue) header() *gcHeader    { return &u.gcHeader }
func (f *ScriptFunction) header() *gcHeader { return &f.gcHeader }
func (b *BoundMethod) header() *gcHeader    { return &b.gcHeader }

// RootProvider is supplied by the VM: it must return every Value
// currently reachable as a true root (value stack, call frames, open
// upvalues, globals, inline-cache entries).
type RootProvider func() []Value

// GC is the generational mark-sweep collector over the Value object
// arena. There is no dedicated collector in original_source (it leans
// on shared_ptr reference counting, see src/interpreter/gc_alloc.h); the
// generational design here follows the textual specification directly,
// using the teacher's sync.Pool object-reuse idiom
// (runtime/interpreter.go's numberPool/stringPool/boolPool/nullPool)
// for the array/hashmap pools.
type GC struct {
	mu      sync.Mutex
	objects []Object
	free    []uint32

	remembered map[uint32]struct{}

	allocSinceMinor int
	allocSinceMajor int
	minorThreshold  int
	majorThreshold  int
	disabled        bool

	roots RootProvider

	ephemeral [][]uint32

	arrayPool   sync.Pool
	hashMapPool sync.Pool
}

var heap = newGC()

func newGC() *GC {
	g := &GC{
		remembered:     make(map[uint32]struct{}),
		minorThreshold: defaultMinorThreshold,
		majorThreshold: defaultMajorThreshold,
	}
	g.arrayPool.New = func() any { return &Array{} }
	g.hashMapPool.New = func() any { return NewHashMap() }
	return g
}

// SetRoots registers the VM's root-set callback. Must be called once
// before any collection can run; until then the collector treats every
// live object as reachable (no collection occurs).
func SetRoots(fn RootProvider) { heap.roots = fn }

// SetBenchmarkMode disables minor collections, matching --benchmark-mode;
// major collections still run at their threshold.
func SetBenchmarkMode(on bool) { heap.disabled = on }

func heapObjectOf(v Value) Object {
	idx := v.arenaIndex()
	if int(idx) >= len(heap.objects) {
		return nil
	}
	return heap.objects[idx]
}

func (g *GC) alloc(obj Object) Value {
	g.mu.Lock()
	var idx uint32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
		g.objects[idx] = obj
	} else {
		idx = uint32(len(g.objects))
		g.objects = append(g.objects, obj)
	}
	if n := len(g.ephemeral); n > 0 {
		g.ephemeral[n-1] = append(g.ephemeral[n-1], idx)
	}
	g.allocSinceMinor++
	g.allocSinceMajor++
	needMinor := !g.disabled && g.roots != nil && g.allocSinceMinor >= g.minorThreshold
	needMajor := g.roots != nil && g.allocSinceMajor >= g.majorThreshold
	g.mu.Unlock()

	if needMajor {
		g.CollectMajor()
	} else if needMinor {
		g.CollectMinor()
	}
	return heapValue(idx)
}

// AllocArray puts a fresh Array on the heap, reusing a pooled backing
// struct when one is available.
func AllocArray(elements []Value) Value {
	a := heap.arrayPool.Get().(*Array)
	a.gcHeader = gcHeader{}
	a.Elements = elements
	return heap.alloc(a)
}

func AllocHashMap() Value {
	m := heap.hashMapPool.Get().(*HashMap)
	m.gcHeader = gcHeader{}
	if m.Entries == nil {
		m.Entries = make(map[string]Value)
	}
	return heap.alloc(m)
}

func AllocCallable(name string, arity int, fn NativeFn) Value {
	return heap.alloc(&Callable{Name: name, Arity: arity, Fn: fn})
}

func AllocClass(name string, super *Class) Value {
	return heap.alloc(&Class{Name: name, Superclass: super, Methods: make(map[string]*VMFunction)})
}

func AllocInstance(class *Class) Value {
	return heap.alloc(NewInstance(class))
}

// AllocFunction and AllocClosure allocate directly into the old
// generation: function prototypes and their closures are created once
// and called many times, so treating them as young generation would
// just mean promoting nearly all of them on the first minor collection.
func AllocFunction(fn *VMFunction) Value {
	fn.generation = 1
	return heap.alloc(fn)
}

func AllocClosure(fn *VMFunction, upvalues []*Upvalue) Value {
	return heap.alloc(&VMClosure{gcHeader: gcHeader{generation: 1}, Fn: fn, Upvalues: upvalues})
}

func AllocScriptFunction(name string, decl any, params []string, env *Environment) Value {
	return heap.alloc(&ScriptFunction{gcHeader: gcHeader{generation: 1}, Name: name, Decl: decl, Params: params, Env: env})
}

// AllocBoundMethod wraps a resolved method with the receiver it was
// looked up on, the payload OpCall dispatches for `instance.method(...)`.
func AllocBoundMethod(receiver Value, fn *VMFunction, script *ScriptFunction) Value {
	return heap.alloc(&BoundMethod{Receiver: receiver, Fn: fn, Script: script})
}

// AllocUpvalue both tracks an open upvalue on the GC heap and returns
// the raw pointer the VM keeps in its open-upvalue list, since upvalues
// are walked by slot identity, not by boxed Value.
func AllocUpvalue(stack []Value, slot int) *Upvalue {
	uv := newOpenUpvalue(stack, slot)
	heap.alloc(uv)
	return uv
}

// WriteBarrier must be called whenever a mutation stores ref into a
// field/slot/upvalue owned by holder. If holder is an old-generation
// object and ref points at a young one, holder's index is recorded in
// the remembered set so the next minor collection treats it as a root
// without re-walking the entire old generation.
func WriteBarrier(holder, ref Value) {
	if !holder.IsHeapObject() || !ref.IsHeapObject() {
		return
	}
	heap.mu.Lock()
	defer heap.mu.Unlock()
	hidx := holder.arenaIndex()
	if int(hidx) >= len(heap.objects) {
		return
	}
	hobj, ok := heap.objects[hidx].(headered)
	if !ok || hobj.header().generation == 0 {
		return
	}
	ridx := ref.arenaIndex()
	if int(ridx) >= len(heap.objects) {
		return
	}
	robj, ok := heap.objects[ridx].(headered)
	if ok && robj.header().generation == 0 {
		heap.remembered[hidx] = struct{}{}
	}
}

// BeginEphemeral opens a scratch allocation frame for a native-call
// bridge invocation (§4.6's "ephemeral frames for short-lived native
// temporaries"): objects allocated while the frame is open are freed
// immediately at EndEphemeral rather than waiting for the next cycle,
// unless the value returned by the native call keeps one of them alive.
func BeginEphemeral() {
	heap.mu.Lock()
	heap.ephemeral = append(heap.ephemeral, nil)
	heap.mu.Unlock()
}

// EndEphemeral closes the most recently opened ephemeral frame. keep is
// the value the native call is returning (or Nil); it and everything it
// transitively references (array elements, map values, instance fields,
// ...) survive into the normal generational heap instead of being freed.
// A single-level escape would leave a dangling reference the moment a
// kept container's own elements were allocated in the same frame — e.g.
// json.decode("[[1]]") builds the inner Array before the outer one, both
// inside one BeginEphemeral/EndEphemeral pair — so escaping walks the
// object graph from keep the same way the collector's mark phase does.
func EndEphemeral(keep Value) {
	heap.mu.Lock()
	defer heap.mu.Unlock()
	n := len(heap.ephemeral)
	if n == 0 {
		return
	}
	frame := heap.ephemeral[n-1]
	heap.ephemeral = heap.ephemeral[:n-1]

	escaped := make(map[uint32]bool)
	heap.markEscaped(keep, escaped)

	for _, idx := range frame {
		if escaped[idx] {
			continue
		}
		obj := heap.objects[idx]
		if obj == nil {
			continue
		}
		heap.release(idx, obj)
	}
}

// markEscaped walks v's reachable object graph, recording every visited
// arena index in escaped. Caller holds g.mu. Visited-before-recurse
// guards against cycles (a map containing itself, an instance whose
// field captures a closure over that same instance).
func (g *GC) markEscaped(v Value, escaped map[uint32]bool) {
	if !v.IsHeapObject() {
		return
	}
	idx := v.arenaIndex()
	if escaped[idx] {
		return
	}
	escaped[idx] = true
	obj := g.objects[idx]
	if obj == nil {
		return
	}
	for _, child := range obj.children() {
		g.markEscaped(child, escaped)
	}
}

// release retires arena slot idx and, for pooled kinds (Array, HashMap),
// returns obj to its sync.Pool with its generation reset to 0 per §4.6
// ("pool objects reset their generation to 0 when reused"), so the next
// AllocArray/AllocHashMap draws a cleared struct instead of constructing
// one afresh. Caller holds g.mu.
func (g *GC) release(idx uint32, obj Object) {
	g.objects[idx] = nil
	g.free = append(g.free, idx)
	switch o := obj.(type) {
	case *Array:
		o.gcHeader = gcHeader{}
		o.Elements = nil
		g.arrayPool.Put(o)
	case *HashMap:
		o.gcHeader = gcHeader{}
		o.Order = o.Order[:0]
		for k := range o.Entries {
			delete(o.Entries, k)
		}
		g.hashMapPool.Put(o)
	}
}

func (g *GC) mark(visited map[uint32]bool, v Value) {
	if !v.IsHeapObject() {
		return
	}
	idx := v.arenaIndex()
	if int(idx) >= len(g.objects) || visited[idx] {
		return
	}
	obj := g.objects[idx]
	if obj == nil {
		return
	}
	visited[idx] = true
	if h, ok := obj.(headered); ok {
		h.header().marked = true
	}
	for _, child := range obj.children() {
		g.mark(visited, child)
	}
}

// CollectMinor marks from the true root set plus the remembered set
// (old objects that may hold young pointers) and sweeps/promotes only
// the young generation.
func (g *GC) CollectMinor() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roots == nil {
		return
	}
	visited := make(map[uint32]bool, len(g.objects)/4+8)
	for _, r := range g.roots() {
		g.mark(visited, r)
	}
	for idx := range g.remembered {
		if obj := g.objects[idx]; obj != nil {
			g.mark(visited, heapValue(idx))
		}
	}

	promoted, freed := 0, 0
	for idx, obj := range g.objects {
		if obj == nil {
			continue
		}
		h, ok := obj.(headered)
		if !ok || h.header().generation != 0 {
			continue
		}
		if h.header().marked {
			h.header().marked = false
			h.header().generation = 1
			promoted++
		} else {
			g.release(uint32(idx), obj)
			freed++
		}
	}
	g.remembered = make(map[uint32]struct{})
	g.allocSinceMinor = 0
	log.Debug().Int("promoted", promoted).Int("freed", freed).Msg("gc: minor collection")
}

// CollectMajor marks the whole heap from the true root set and sweeps
// every generation.
func (g *GC) CollectMajor() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roots == nil {
		return
	}
	visited := make(map[uint32]bool, len(g.objects)/2+8)
	for _, r := range g.roots() {
		g.mark(visited, r)
	}

	freed := 0
	for idx, obj := range g.objects {
		if obj == nil {
			continue
		}
		h, ok := obj.(headered)
		if !ok {
			continue
		}
		if h.header().marked {
			h.header().marked = false
			h.header().generation = 1
		} else {
			g.release(uint32(idx), obj)
			freed++
		}
	}
	g.remembered = make(map[uint32]struct{})
	g.allocSinceMinor = 0
	g.allocSinceMajor = 0
	log.Debug().Int("freed", freed).Int("live", len(g.objects)-len(g.free)).Msg("gc: major collection")
}

// HeapStats reports live/free object counts, mainly for --ic-diagnostics
// and tests.
func HeapStats() (live, free int) {
	heap.mu.Lock()
	defer heap.mu.Unlock()
	return len(heap.objects) - len(heap.free), len(heap.free)
}
