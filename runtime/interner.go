package runtime

import "sync"

// interner is the process-wide string pool. Every StringLiteral, every
// property/identifier name, and every string produced by concatenation
// or a native call is interned here so that Value's string payload (an
// index into this table) gives pointer-identity equality for free —
// the Go-safe stand-in for original_source's string_pool.h.
type interner struct {
	mu      sync.RWMutex
	strings []string
	index   map[string]uint32
}

var pool = newInterner()

func newInterner() *interner {
	return &interner{index: make(map[string]uint32, 256)}
}

// Intern returns the Value for s, reusing an existing arena slot if s
// has already been interned.
func Intern(s string) Value {
	pool.mu.RLock()
	if idx, ok := pool.index[s]; ok {
		pool.mu.RUnlock()
		return stringValue(idx)
	}
	pool.mu.RUnlock()

	pool.mu.Lock()
	defer pool.mu.Unlock()
	if idx, ok := pool.index[s]; ok {
		return stringValue(idx)
	}
	idx := uint32(len(pool.strings))
	pool.strings = append(pool.strings, s)
	pool.index[s] = idx
	return stringValue(idx)
}

// AsString returns the Go string backing a string Value. Panics if v is
// not a string value; callers must check IsString first.
func (v Value) AsString() string {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.strings[v.arenaIndex()]
}
