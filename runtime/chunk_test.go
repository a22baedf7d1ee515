package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkDisassembleRoundTrip builds a chunk containing one instance of
// every operand shape Disassemble has to understand (fixed u8/u16
// operands, the variable-width Closure encoding, and the Ensure*
// compound-assignment pair) and checks the rendered text reports the
// same opcode and operand sequence that was emitted.
func TestChunkDisassembleRoundTrip(t *testing.T) {
	ch := NewChunk()

	constIdx, err := ch.AddConstant(Number(7))
	require.NoError(t, err)
	ch.EmitOp(OpConstant, 1)
	ch.EmitByte(byte(constIdx), 1)

	ch.EmitOp(OpLoadLocal, 2)
	ch.EmitByte(3, 2)

	ch.EmitOp(OpNewArray, 3)
	ch.EmitU16(5, 3)

	nameIdx, err := ch.AddConstant(Intern("x"))
	require.NoError(t, err)
	ch.EmitOp(OpEnsurePropertyDefault, 4)
	ch.EmitByte(byte(nameIdx), 4)
	ch.EmitByte(byte(OpKindAdd), 4)

	protoIdx, err := ch.AddConstant(AllocFunction(&VMFunction{Name: "inner", Arity: 0, Chunk: NewChunk()}))
	require.NoError(t, err)
	ch.EmitOp(OpClosure, 5)
	ch.EmitByte(byte(protoIdx), 5)
	ch.EmitByte(2, 5) // 2 upvalues
	ch.EmitByte(1, 5) // first: local
	ch.EmitByte(0, 5)
	ch.EmitByte(0, 5) // second: parent upvalue
	ch.EmitByte(1, 5)

	ch.EmitOp(OpReturn, 6)

	out := ch.Disassemble("test")

	assert.True(t, strings.HasPrefix(out, "== test ==\n"))
	assert.Contains(t, out, "CONSTANT")
	assert.Contains(t, out, "LOAD_LOCAL")
	assert.Contains(t, out, "NEW_ARRAY")
	assert.Contains(t, out, "ENSURE_PROPERTY_DEFAULT")
	assert.Contains(t, out, "CLOSURE")
	assert.Contains(t, out, "(2 upvalues)")
	assert.Contains(t, out, "local=1 index=0")
	assert.Contains(t, out, "local=0 index=1")
	assert.Contains(t, out, "RETURN")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// header + CONSTANT + LOAD_LOCAL + NEW_ARRAY + ENSURE_PROPERTY_DEFAULT
	// + CLOSURE + 2 upvalue continuation lines + RETURN
	assert.Len(t, lines, 9)
}

func TestChunkAddConstantDedupesByValue(t *testing.T) {
	ch := NewChunk()
	i1, err := ch.AddConstant(Number(3))
	require.NoError(t, err)
	i2, err := ch.AddConstant(Number(3))
	require.NoError(t, err)
	assert.Equal(t, i1, i2)
	assert.Len(t, ch.Constants, 1)
}

func TestChunkAddConstantRejectsOverflow(t *testing.T) {
	ch := NewChunk()
	for i := 0; i < maxConstants; i++ {
		_, err := ch.AddConstant(Number(float64(i)))
		require.NoError(t, err)
	}
	_, err := ch.AddConstant(Number(float64(maxConstants)))
	assert.Error(t, err, "a 257th distinct constant must fail at compile time")
}

func TestChunkLoopCountTracksEmitLoop(t *testing.T) {
	ch := NewChunk()
	assert.Equal(t, 0, ch.LoopCount)
	loopStart := ch.Len()
	ch.EmitOp(OpNil, 1)
	c := &Compiler{current: &funcScope{chunk: ch}}
	c.emitLoop(loopStart, 1)
	assert.Equal(t, 1, ch.LoopCount)
}
