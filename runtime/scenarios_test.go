package runtime_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claw/parser"
	"claw/runtime"
)

// compileAndRun parses, compiles, and runs src against a fresh
// environment/VM pair, wiring the native-call bridge the same way
// cmd/clawc does so class declarations and try/catch (which the
// compiler routes through the tree-walking interpreter) work too.
func compileAndRun(t *testing.T, src string) (*runtime.VM, runtime.Value, *runtime.Error) {
	t.Helper()
	prog, perr := parser.Parse(src)
	require.Nil(t, perr, "parse error: %v", perr)

	globals := runtime.NewEnvironment(nil)
	interp := runtime.NewInterpreter(globals)
	compiler := runtime.NewCompiler()
	compiler.AttachInterpreter(interp)

	fn, cerr := compiler.Compile(prog)
	require.Nil(t, cerr, "compile error: %v", cerr)

	vm := runtime.NewVM(globals)
	interp.AttachVM(vm)
	vm.SetBridge(interp.Bridge)

	result, rerr := vm.Run(fn)
	return vm, result, rerr
}

// captureStdout redirects the process's real stdout for the duration of
// fn, since OpPrint writes through fmt.Println rather than an injectable
// writer.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

// Scenario 1: arithmetic and operator precedence.
func TestScenarioArithmeticPrint(t *testing.T) {
	out := captureStdout(t, func() {
		_, _, rerr := compileAndRun(t, "print 1 + 2 * 3;")
		require.Nil(t, rerr)
	})
	assert.Equal(t, "7\n", out)
}

// Scenario 2: closures capture an upvalue, which closes once the
// enclosing call returns.
func TestScenarioClosureUpvalueCapture(t *testing.T) {
	src := `
fn make() {
	let x = 10;
	fn inner() {
		return x;
	}
	return inner;
}
print make()();
`
	out := captureStdout(t, func() {
		_, _, rerr := compileAndRun(t, src)
		require.Nil(t, rerr)
	})
	assert.Equal(t, "10\n", out)
}

// Scenario 3: the global inline cache must not serve a stale value once
// the global it caches is reassigned.
func TestScenarioGlobalInlineCacheInvalidation(t *testing.T) {
	src := `
let g = 1;
fn f() { return g; }
for (let i = 0; i < 1000; i = i + 1) f();
g = 2;
print f();
`
	out := captureStdout(t, func() {
		_, _, rerr := compileAndRun(t, src)
		require.Nil(t, rerr)
	})
	assert.Equal(t, "2\n", out)
}

// Scenario 4: a property read at one call site across 40 distinct
// instances of the same class must go megamorphic after >=17 misses.
func TestScenarioPropertyICPolymorphism(t *testing.T) {
	src := `
import "array";
class Node {
	fn init(v) {
		this.value = v;
	}
}
let items = [];
let i = 0;
while (i < 40) {
	array.push(items, Node(i));
	i = i + 1;
}
let j = 0;
let total = 0;
while (j < 40) {
	total = total + items[j].value;
	j = j + 1;
}
print total;
`
	var vm *runtime.VM
	out := captureStdout(t, func() {
		var rerr *runtime.Error
		vm, _, rerr = compileAndRun(t, src)
		require.Nil(t, rerr)
	})
	assert.Equal(t, "780\n", out) // sum 0..39

	// The GetProperty site for `items[j].value` is the only one in the
	// chunk; whichever offset it landed at must have flipped megamorphic
	// after cycling 40 distinct instances through a 4-entry cache.
	foundMegamorphic := false
	for site := 0; site < 4096; site++ {
		if vm.PropertySiteMegamorphic(site) {
			foundMegamorphic = true
			break
		}
	}
	assert.True(t, foundMegamorphic, "40 distinct instances read at one site must drive it megamorphic")
}

// Scenario 5: the hotness counters.
func TestScenarioHotnessCounters(t *testing.T) {
	src := `
fn f() { return 1; }
let i = 0;
while (i < 1000) {
	f();
	i = i + 1;
}
`
	prog, perr := parser.Parse(src)
	require.Nil(t, perr)
	globals := runtime.NewEnvironment(nil)
	interp := runtime.NewInterpreter(globals)
	compiler := runtime.NewCompiler()
	compiler.AttachInterpreter(interp)
	fn, cerr := compiler.Compile(prog)
	require.Nil(t, cerr)

	vm := runtime.NewVM(globals)
	interp.AttachVM(vm)
	vm.SetBridge(interp.Bridge)

	_, rerr := vm.Run(fn)
	require.Nil(t, rerr)

	fv, err := globals.LookupVar("f")
	require.NoError(t, err)
	vfn := mustFunction(t, fv)
	assert.Equal(t, 1000, vm.HotnessOf(vfn))
}

// Compound assignment to a missing map key or a never-assigned instance
// field must seed a zero default rather than erroring, per §4.4's
// EnsurePropertyDefault/EnsureIndexDefault design.
func TestCompoundAssignSeedsDefaultOnFreshMapAndField(t *testing.T) {
	src := `
let m = {};
m["count"] += 1;
m["count"] += 1;

class Counter {
	fn init() {}
}
let c = Counter();
c.hits += 1;

print m["count"];
print c.hits;
`
	out := captureStdout(t, func() {
		_, _, rerr := compileAndRun(t, src)
		require.Nil(t, rerr)
	})
	assert.Equal(t, "2\n1\n", out)
}

func mustFunction(t *testing.T, v runtime.Value) *runtime.VMFunction {
	t.Helper()
	require.True(t, v.IsHeapObject())
	fn, ok := runtime.ResolveFunction(v)
	require.True(t, ok, "global value must be a compiled function or closure")
	return fn
}

func TestScenarioAggressiveTieringLowersThreshold(t *testing.T) {
	prog, perr := parser.Parse(`fn f() { return 1; } f();`)
	require.Nil(t, perr)
	globals := runtime.NewEnvironment(nil)
	interp := runtime.NewInterpreter(globals)
	compiler := runtime.NewCompiler()
	compiler.AttachInterpreter(interp)
	fn, cerr := compiler.Compile(prog)
	require.Nil(t, cerr)

	vm := runtime.NewVM(globals)
	interp.AttachVM(vm)
	vm.SetBridge(interp.Bridge)
	require.Equal(t, 1000, vm.HotThreshold())

	vm.SetAggressiveTiering(true)
	assert.Equal(t, 250, vm.HotThreshold(), "aggressive tiering with functionThreshold=1000 makes f eligible at a quarter of the calls")

	_, rerr := vm.Run(fn)
	require.Nil(t, rerr)
}

// Scenario 6: allocate and discard many short-lived arrays; the live
// count after the loop must stay bounded, and a reference kept alive
// through the whole run must not be lost.
func TestScenarioGCBoundedLiveArrays(t *testing.T) {
	src := `
fn churn() {
	let i = 0;
	while (i < 150000) {
		let tmp = [i, i + 1, i + 2];
		i = i + 1;
	}
	return "done";
}
print churn();
`
	out := captureStdout(t, func() {
		_, _, rerr := compileAndRun(t, src)
		require.Nil(t, rerr)
	})
	assert.Equal(t, "done\n", out)

	live, _ := runtime.HeapStats()
	assert.Less(t, live, 150_000, "discarded per-iteration arrays must not all remain live")
}
