// Package aot implements the §6.3 AOT constant binary layout: reading
// and writing the flat code-byte array and constant-record array an
// ahead-of-time pipeline would embed in a compiled object. The actual
// object emitter (ELF/Mach-O writing, LLVM codegen) is out of scope per
// the design's §1 — this package only owns the binary contract those
// tools and the loader agree on.
package aot

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"claw/runtime"
)

// Tag identifies a constant record's payload kind.
type Tag byte

const (
	TagNil Tag = iota
	TagBool
	TagNumber
	TagString
)

const recordSize = 16

// Record is one 16-byte AOT constant: a 1-byte tag, 7 bytes of padding,
// and an 8-byte payload (an IEEE 754 bit pattern for Number, or a
// pointer-sized integer resolved against an embedded byte table for
// String, per §6.3).
type Record struct {
	Tag     Tag
	Payload uint64
}

// Encode writes r as its 16-byte wire form.
func (r Record) Encode() [recordSize]byte {
	var out [recordSize]byte
	out[0] = byte(r.Tag)
	binary.LittleEndian.PutUint64(out[8:], r.Payload)
	return out
}

// DecodeRecord reads a 16-byte record back.
func DecodeRecord(b [recordSize]byte) Record {
	return Record{Tag: Tag(b[0]), Payload: binary.LittleEndian.Uint64(b[8:])}
}

// Artifact is a reconstructable compiled unit: a flat code-byte array, a
// sibling constant-record array, and a byte table the String records'
// payloads index into (the "embedded byte table" §6.3 resolves pointer
// payloads against at load time). BuildID stamps the artifact the way a
// real AOT pipeline tags output for cache invalidation, grounded on the
// pack's use of github.com/google/uuid for entity identifiers.
type Artifact struct {
	BuildID   uuid.UUID
	Code      []byte
	Lines     []int
	Constants []Record
	Strings   []byte // NUL-separated table String payloads index into
}

// EncodeConstant converts a runtime.Value of kind Nil/Bool/Number/String
// into its AOT Record. A string always appends its bytes to the
// artifact's string table at a fresh offset — no dedup against bytes
// already present, unlike the runtime string pool's interning — since
// two constants with the same text but distinct Records round-trip just
// as correctly as one shared offset would.
func (a *Artifact) EncodeConstant(v runtime.Value) (Record, error) {
	switch {
	case v.IsNil():
		return Record{Tag: TagNil}, nil
	case v.IsBool():
		payload := uint64(0)
		if v.AsBool() {
			payload = 1
		}
		return Record{Tag: TagBool, Payload: payload}, nil
	case v.IsNumber():
		return Record{Tag: TagNumber, Payload: math.Float64bits(v.AsNumber())}, nil
	case v.IsString():
		s := v.AsString()
		off := uint64(len(a.Strings))
		a.Strings = append(a.Strings, []byte(s)...)
		a.Strings = append(a.Strings, 0)
		return Record{Tag: TagString, Payload: off}, nil
	default:
		return Record{}, fmt.Errorf("aot: value of kind %q is not an AOT constant kind", v.TypeName())
	}
}

// DecodeConstant is EncodeConstant's inverse: it resolves r against the
// artifact's string table and returns an `eq`-equal runtime.Value.
func (a *Artifact) DecodeConstant(r Record) (runtime.Value, error) {
	switch r.Tag {
	case TagNil:
		return runtime.Nil, nil
	case TagBool:
		return runtime.Bool(r.Payload == 1), nil
	case TagNumber:
		return runtime.Number(math.Float64frombits(r.Payload)), nil
	case TagString:
		end := int(r.Payload)
		for end < len(a.Strings) && a.Strings[end] != 0 {
			end++
		}
		return runtime.Intern(string(a.Strings[r.Payload:end])), nil
	default:
		return runtime.Nil, fmt.Errorf("aot: unknown constant tag %d", r.Tag)
	}
}

// FromChunk builds a fresh Artifact from a compiled Chunk, encoding
// every constant in order.
func FromChunk(buildID uuid.UUID, chunk *runtime.Chunk) (*Artifact, error) {
	a := &Artifact{BuildID: buildID, Code: append([]byte(nil), chunk.Code...), Lines: append([]int(nil), chunk.Lines...)}
	for _, c := range chunk.Constants {
		rec, err := a.EncodeConstant(c)
		if err != nil {
			return nil, err
		}
		a.Constants = append(a.Constants, rec)
	}
	return a, nil
}

// ToChunk reconstructs a runtime.Chunk from the artifact — the "single
// entry point that reconstructs a Chunk and hands it to a VM" §6.3
// describes.
func (a *Artifact) ToChunk() (*runtime.Chunk, error) {
	chunk := runtime.NewChunk()
	chunk.Code = append([]byte(nil), a.Code...)
	chunk.Lines = append([]int(nil), a.Lines...)
	for _, rec := range a.Constants {
		v, err := a.DecodeConstant(rec)
		if err != nil {
			return nil, err
		}
		chunk.Constants = append(chunk.Constants, v)
	}
	return chunk, nil
}
