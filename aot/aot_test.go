package aot

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claw/runtime"
)

// TestConstantRoundTrip checks that every §3 AOT constant kind
// (Nil/Bool/Number/String) survives Encode/DecodeRecord and
// Artifact.EncodeConstant/DecodeConstant as an `eq`-equal Value, per the
// design's §8 "round-trips" testable property.
func TestConstantRoundTrip(t *testing.T) {
	a := &Artifact{BuildID: uuid.New()}

	values := []runtime.Value{
		runtime.Nil,
		runtime.Bool(true),
		runtime.Bool(false),
		runtime.Number(3.5),
		runtime.Number(0),
		runtime.Intern("hello"),
		runtime.Intern("world"),
	}

	for _, v := range values {
		rec, err := a.EncodeConstant(v)
		require.NoError(t, err)

		wire := rec.Encode()
		decodedRec := DecodeRecord(wire)
		assert.Equal(t, rec, decodedRec)

		got, err := a.DecodeConstant(decodedRec)
		require.NoError(t, err)
		assert.True(t, runtime.Equal(v, got), "round-trip of %v produced %v", v, got)
	}
}

func TestRecordEncodeLayout(t *testing.T) {
	rec := Record{Tag: TagNumber, Payload: 0x4010000000000000} // 4.0
	wire := rec.Encode()

	assert.Equal(t, byte(TagNumber), wire[0])
	for _, b := range wire[1:8] {
		assert.Equal(t, byte(0), b, "bytes 1..7 are reserved padding")
	}
	assert.Equal(t, rec, DecodeRecord(wire))
}

func TestEncodeConstantRejectsNonAOTKind(t *testing.T) {
	a := &Artifact{}
	arr := runtime.AllocArray(nil)
	_, err := a.EncodeConstant(arr)
	assert.Error(t, err)
}

// TestFromChunkToChunkRoundTrip builds a small chunk with a mix of
// constant kinds and checks it survives a full FromChunk/ToChunk cycle.
func TestFromChunkToChunkRoundTrip(t *testing.T) {
	ch := runtime.NewChunk()
	_, err := ch.AddConstant(runtime.Number(42))
	require.NoError(t, err)
	_, err = ch.AddConstant(runtime.Intern("answer"))
	require.NoError(t, err)
	ch.EmitOp(runtime.OpConstant, 1)
	ch.EmitByte(0, 1)
	ch.EmitOp(runtime.OpReturn, 1)

	a, err := FromChunk(uuid.New(), ch)
	require.NoError(t, err)
	assert.Equal(t, len(ch.Constants), len(a.Constants))

	back, err := a.ToChunk()
	require.NoError(t, err)

	assert.Equal(t, ch.Code, back.Code)
	assert.Equal(t, ch.Lines, back.Lines)
	require.Len(t, back.Constants, len(ch.Constants))
	for i, c := range ch.Constants {
		assert.True(t, runtime.Equal(c, back.Constants[i]))
	}
}

func TestStringTableDeduplicatesNothingButResolvesOffsets(t *testing.T) {
	a := &Artifact{}
	r1, err := a.EncodeConstant(runtime.Intern("abc"))
	require.NoError(t, err)
	r2, err := a.EncodeConstant(runtime.Intern("de"))
	require.NoError(t, err)

	v1, err := a.DecodeConstant(r1)
	require.NoError(t, err)
	v2, err := a.DecodeConstant(r2)
	require.NoError(t, err)

	assert.Equal(t, "abc", v1.AsString())
	assert.Equal(t, "de", v2.AsString())
}
