package runtime

import "math"

// Value is the uniform 64-bit runtime datum, NaN-boxed the way
// original_source/src/interpreter/value.h lays it out: a live IEEE 754
// double (exponent not all-ones) is a Number as-is; otherwise the low
// bits past the quiet-NaN pattern carry a 3-bit tag plus a 48-bit
// payload.
//
// original_source uses the payload as a raw pointer (string_view* /
// shared_ptr-backed object*). Go's collector cannot see an integer as a
// root, so the payload here is instead an index into one of two
// process-wide arenas (the interned-string table and the GC object
// heap) — the "by-index arena" equivalence the design calls out
// explicitly as acceptable.
type Value uint64

const (
	qnan    = uint64(0x7FFC000000000000)
	signBit = uint64(0x8000000000000000)

	tagNil   = uint64(1) // 001
	tagFalse = uint64(2) // 010
	tagTrue  = uint64(3) // 011

	// objTagBit, set within the qnan|signBit pattern, distinguishes an
	// interned string payload (bit set, tag 100) from a generic heap
	// object payload (bit clear, tag 101).
	objTagBit   = uint64(1) << 48
	payloadMask = (uint64(1) << 48) - 1
)

var (
	Nil   = Value(qnan | tagNil)
	False = Value(qnan | tagFalse)
	True  = Value(qnan | tagTrue)
)

// Number boxes a float64 directly; the bit pattern of a live, non-NaN
// double is already a valid Value.
func Number(f float64) Value { return Value(math.Float64bits(f)) }

// Bool boxes a boolean as the canonical True/False singleton.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func stringValue(index uint32) Value {
	return Value(signBit | qnan | objTagBit | uint64(index))
}

func heapValue(index uint32) Value {
	return Value(signBit | qnan | uint64(index))
}

func (v Value) bits() uint64 { return uint64(v) }

// IsNumber reports whether v holds a live double rather than a tagged
// immediate or object reference.
func (v Value) IsNumber() bool { return v.bits()&qnan != qnan }

func (v Value) AsNumber() float64 { return math.Float64frombits(v.bits()) }

func (v Value) IsNil() bool { return v == Nil }

func (v Value) IsBool() bool { return v == True || v == False }

func (v Value) AsBool() bool { return v == True }

func (v Value) isObjLike() bool {
	return v.bits()&(signBit|qnan) == (signBit | qnan)
}

// IsString reports whether v holds an interned-string reference.
func (v Value) IsString() bool { return v.isObjLike() && v.bits()&objTagBit != 0 }

// IsHeapObject reports whether v holds a GC-heap object reference
// (array, hashmap, class, instance, callable, VMFunction, VMClosure,
// upvalue).
func (v Value) IsHeapObject() bool { return v.isObjLike() && v.bits()&objTagBit == 0 }

func (v Value) arenaIndex() uint32 { return uint32(v.bits() & payloadMask) }

// IsTruthy implements the truthiness rule: nil and false are falsy,
// everything else (including 0 and "") is truthy.
func (v Value) IsTruthy() bool {
	if v.IsNil() {
		return false
	}
	if v.IsBool() {
		return v.AsBool()
	}
	return true
}

// TypeName returns a human-readable type name for diagnostics.
func (v Value) TypeName() string {
	switch {
	case v.IsNumber():
		return "number"
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return "bool"
	case v.IsString():
		return "string"
	case v.IsHeapObject():
		return heapObjectOf(v).typeName()
	default:
		return "unknown"
	}
}

// Equal implements value equality: numbers compare by IEEE semantics,
// strings by interned-index equality, and heap objects by identity
// (index equality).
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() == b.AsNumber()
	}
	return a == b
}
