package runtime

import "sync"

// Object is anything allocated on the GC heap and referenced from a
// Value through an arena index rather than a pointer. Each concrete
// kind below mirrors one of original_source's
// src/features/{array,hashmap,class}.h / src/callable.h heap kinds,
// plus VMFunction/VMClosure/Upvalue which original_source keeps as
// shared_ptr-backed AST nodes but which here are first-class bytecode
// objects (spec §4.3/§4.4).
type Object interface {
	typeName() string
	// children returns every Value this object directly references,
	// used by the collector's mark phase to walk the object graph.
	children() []Value
}

// gcHeader is embedded in every heap object and carries the bookkeeping
// the generational collector needs: which generation the object lives
// in, its mark bit for the current cycle, and whether it has already
// been recorded in the remembered set (old object holding a pointer
// into the young generation).
type gcHeader struct {
	generation  uint8
	marked      bool
	remembered  bool
}

// Array is the heap representation of an array literal / array value.
type Array struct {
	gcHeader
	Elements []Value
}

func (a *Array) typeName() string  { return "array" }
func (a *Array) children() []Value { return a.Elements }

// HashMap is the heap representation of a map literal / map value.
// mu guards Entries/Order the way src/interpreter/value.cpp's hashmap
// accessors validate before writing, per §3's "mutex-protected for
// concurrent default-ensure": EnsureDefault is the one operation two
// goroutines sharing a HashMap value can race on (a compound assignment
// to a key that doesn't exist yet), and it must produce exactly one
// insert rather than two.
type HashMap struct {
	gcHeader
	mu      sync.Mutex
	Entries map[string]Value
	// Order preserves insertion order for iteration/printing, since Go
	// maps have none and scripts observe iteration order.
	Order []string
}

func NewHashMap() *HashMap {
	return &HashMap{Entries: make(map[string]Value)}
}

func (m *HashMap) typeName() string { return "hashmap" }

func (m *HashMap) children() []Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Value, 0, len(m.Entries))
	for _, v := range m.Entries {
		out = append(out, v)
	}
	return out
}

func (m *HashMap) Get(key string) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Entries[key]
	return v, ok
}

func (m *HashMap) Set(key string, v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, v)
}

func (m *HashMap) setLocked(key string, v Value) {
	if _, exists := m.Entries[key]; !exists {
		m.Order = append(m.Order, key)
	}
	m.Entries[key] = v
}

func (m *HashMap) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Entries[key]; !exists {
		return
	}
	delete(m.Entries, key)
	for i, k := range m.Order {
		if k == key {
			m.Order = append(m.Order[:i], m.Order[i+1:]...)
			break
		}
	}
}

// EnsureDefault returns the current value at key, atomically inserting
// zero first if the key is absent — the "single insert" guarantee §4.6
// requires when concurrent compound assignments (`m["k"] += 1`) target
// the same missing key on a shared HashMap.
func (m *HashMap) EnsureDefault(key string, zero Value) Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.Entries[key]; ok {
		return v
	}
	m.setLocked(key, zero)
	return zero
}

// NativeFn is a built-in callable implemented in Go, bridged to script
// call sites the way the VM's Call opcode dispatches to the interpreter
// for anything that is not a bare VMFunction/VMClosure.
type NativeFn func(args []Value) (Value, *Error)

// Callable wraps a NativeFn so it can live on the heap and be referenced
// by Value like any other object, matching original_source's
// src/callable.h Callable base.
type Callable struct {
	gcHeader
	Name string
	Fn   NativeFn
	// Arity is -1 for variadic natives.
	Arity int
}

func (c *Callable) typeName() string  { return "native" }
func (c *Callable) children() []Value { return nil }

// Class is a flattened method table built at class-definition time by
// walking the superclass chain once, matching original_source's
// VoltClass-equivalent resolution rather than re-walking the chain on
// every method lookup.
type Class struct {
	gcHeader
	Name       string
	Superclass *Class
	Methods    map[string]*VMFunction
	// methods holds each method's interpreted body, keyed the same as
	// Methods; method dispatch always runs through the interpreter
	// (the native-call bridge boundary), so this is consulted instead
	// of Methods[name].Chunk, which stays nil.
	methods map[string]*ScriptFunction
}

func (c *Class) typeName() string { return "class" }

func (c *Class) children() []Value { return nil }

func (c *Class) scriptMethods() map[string]*ScriptFunction {
	if c.methods == nil {
		c.methods = make(map[string]*ScriptFunction)
	}
	return c.methods
}

// Resolve finds a method prototype by name, walking the superclass
// chain.
func (c *Class) Resolve(name string) (*VMFunction, bool) {
	for cls := c; cls != nil; cls = cls.Superclass {
		if fn, ok := cls.Methods[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// Instance is a live object of some Class, carrying its own field map
// plus a version counter the property inline cache uses as a freshness
// token (every Set, whether it adds a field or overwrites one, bumps
// Version, invalidating every value cached for this object).
type Instance struct {
	gcHeader
	Class   *Class
	Fields  map[string]Value
	Version uint32
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[string]Value)}
}

func (i *Instance) typeName() string { return i.Class.Name }

func (i *Instance) children() []Value {
	out := make([]Value, 0, len(i.Fields))
	for _, v := range i.Fields {
		out = append(out, v)
	}
	return out
}

func (i *Instance) Get(name string) (Value, bool) {
	v, ok := i.Fields[name]
	return v, ok
}

func (i *Instance) Set(name string, v Value) {
	i.Version++
	i.Fields[name] = v
}

// VMFunction is a compiled function prototype: its chunk, arity, and the
// upvalue descriptors the compiler recorded while resolving free
// variables (spec §4.4's 3-step local/upvalue/global resolution).
type VMFunction struct {
	gcHeader
	Name      string
	Arity     int
	Chunk     *Chunk
	LocalsMax int
	Upvalues  []UpvalueDesc
}

func (f *VMFunction) typeName() string  { return "function" }
func (f *VMFunction) children() []Value { return nil }

// ResolveFunction returns the VMFunction prototype v holds, whether v is
// a bare function or a closure wrapping one, the same de-reference
// vm.call performs before tracking hotness.
func ResolveFunction(v Value) (*VMFunction, bool) {
	if !v.IsHeapObject() {
		return nil, false
	}
	switch o := heapObjectOf(v).(type) {
	case *VMFunction:
		return o, true
	case *VMClosure:
		return o.Fn, true
	default:
		return nil, false
	}
}

// UpvalueDesc records, at compile time, where a closure's Nth upvalue
// comes from: a local slot in the immediately enclosing function, or an
// upvalue already captured by that enclosing function.
type UpvalueDesc struct {
	FromParentLocal bool
	Index           int
}

// VMClosure pairs a VMFunction prototype with the live Upvalue cells
// captured at the point the closure was created.
type VMClosure struct {
	gcHeader
	Fn       *VMFunction
	Upvalues []*Upvalue
}

func (c *VMClosure) typeName() string { return "closure" }

func (c *VMClosure) children() []Value {
	out := make([]Value, 0, len(c.Upvalues))
	for _, uv := range c.Upvalues {
		out = append(out, uv.Get())
	}
	return out
}

// ScriptFunction is a function whose body is interpreted directly
// rather than compiled: a class method body (methods are always
// interpreted, matching the native-call bridge boundary) or any
// function declared while running under --interpret. Decl/Env are
// untyped-at-this-layer (ast.FunctionDeclaration/*Environment) to avoid
// a runtime<->ast import cycle appearing in Object's method set; the
// interpreter casts them back on use.
type ScriptFunction struct {
	gcHeader
	Name   string
	Decl   any // *ast.FunctionDeclaration
	Env    *Environment
	Params []string
}

func (f *ScriptFunction) typeName() string  { return "function" }
func (f *ScriptFunction) children() []Value { return nil }

// BoundMethod pairs a receiver Instance with the method resolved for it,
// produced by OpGetProperty when the name resolves to a Class method
// rather than a plain field. Exactly one of Fn/Script is set: Fn for a
// method the VM compiled directly, Script for one whose body only the
// interpreter can run (matching the Class.Methods/methods split above).
type BoundMethod struct {
	gcHeader
	Receiver Value
	Fn       *VMFunction
	Script   *ScriptFunction
}

func (b *BoundMethod) typeName() string  { return "bound_method" }
func (b *BoundMethod) children() []Value { return []Value{b.Receiver} }

// Upvalue is either open (pointing at a live stack slot, shared with the
// VM's value stack so writes through either side are visible to both)
// or closed (the slot's value copied onto the heap once the owning
// frame returns).
type Upvalue struct {
	gcHeader
	// stack/slot are valid while open; closed holds the value once the
	// frame that owned the slot has returned.
	stack  []Value
	slot   int
	closed bool
	value  Value
}

func newOpenUpvalue(stack []Value, slot int) *Upvalue {
	return &Upvalue{stack: stack, slot: slot}
}

func (u *Upvalue) typeName() string { return "upvalue" }

func (u *Upvalue) children() []Value {
	if u.closed {
		return []Value{u.value}
	}
	return nil
}

func (u *Upvalue) Get() Value {
	if u.closed {
		return u.value
	}
	return u.stack[u.slot]
}

func (u *Upvalue) Set(v Value) {
	if u.closed {
		u.value = v
		return
	}
	u.stack[u.slot] = v
}

// Close copies the slot's current value onto the heap; called when the
// frame owning the stack slot returns while the upvalue is still
// reachable from a live closure.
func (u *Upvalue) Close() {
	if u.closed {
		return
	}
	u.value = u.stack[u.slot]
	u.closed = true
	u.stack = nil
}
