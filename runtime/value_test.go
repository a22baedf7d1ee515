package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueNumberRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.5, -3.5, 1e100, -1e-100} {
		v := Number(f)
		require.True(t, v.IsNumber())
		assert.Equal(t, f, v.AsNumber())
		assert.False(t, v.IsNil())
		assert.False(t, v.IsBool())
		assert.False(t, v.IsString())
		assert.False(t, v.IsHeapObject())
	}
}

func TestValueSingletons(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.False(t, Nil.IsNumber())
	assert.False(t, Nil.IsTruthy())

	assert.True(t, True.IsBool())
	assert.True(t, True.AsBool())
	assert.True(t, True.IsTruthy())

	assert.True(t, False.IsBool())
	assert.False(t, False.AsBool())
	assert.False(t, False.IsTruthy())

	assert.Equal(t, True, Bool(true))
	assert.Equal(t, False, Bool(false))
}

func TestValueTruthiness(t *testing.T) {
	assert.True(t, Number(0).IsTruthy())
	assert.True(t, Intern("").IsTruthy())
	assert.True(t, Number(-1).IsTruthy())
}

func TestValueTypeName(t *testing.T) {
	assert.Equal(t, "number", Number(1).TypeName())
	assert.Equal(t, "nil", Nil.TypeName())
	assert.Equal(t, "bool", True.TypeName())
	assert.Equal(t, "string", Intern("hi").TypeName())
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), Number(2)))
	assert.True(t, Equal(Intern("a"), Intern("a")))
	assert.False(t, Equal(Intern("a"), Intern("b")))
	assert.True(t, Equal(Nil, Nil))
	assert.True(t, Equal(True, True))
	assert.False(t, Equal(True, False))
}

func TestInternIdentity(t *testing.T) {
	a := Intern("polymorphic")
	b := Intern("polymorphic")
	assert.Equal(t, a, b, "interning the same bytes twice must yield pointer-identical values")
	assert.Equal(t, "polymorphic", a.AsString())

	c := Intern("megamorphic")
	assert.NotEqual(t, a, c)
}

func TestEnvironmentGlobalVersionBumpsOnWriteNotRead(t *testing.T) {
	globals := NewEnvironment(nil)
	v0 := globals.GlobalVersion()

	_, err := globals.DeclareVar("g", Number(1), false)
	require.NoError(t, err)
	v1 := globals.GlobalVersion()
	assert.Greater(t, v1, v0, "declaring a global bumps the version")

	_, err = globals.LookupVar("g")
	require.NoError(t, err)
	assert.Equal(t, v1, globals.GlobalVersion(), "a read must not bump the version")

	_, err = globals.AssignVar("g", Number(2))
	require.NoError(t, err)
	assert.Greater(t, globals.GlobalVersion(), v1, "assigning a global bumps the version")
}

func TestEnvironmentChildDelegatesGlobalVersion(t *testing.T) {
	globals := NewEnvironment(nil)
	child := NewEnvironment(globals)
	_, err := globals.DeclareVar("g", Number(1), false)
	require.NoError(t, err)
	assert.Equal(t, globals.GlobalVersion(), child.GlobalVersion())
}
