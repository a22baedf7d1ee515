package runtime

import "fmt"

// moduleBuilder lazily constructs a built-in module's HashMap the first
// time it is imported; modules are cached after first load.
type moduleBuilder func() Value

var builtinModules = map[string]moduleBuilder{
	"math":    buildMathModule,
	"string":  buildStringModule,
	"array":   buildArrayModule,
	"json":    buildJSONModule,
	"time":    buildTimeModule,
	"hashmap": buildHashMapModule,
}

var loadedModules = map[string]Value{}

// loadBuiltinModule resolves an OpImport path to a module value,
// grounded on the teacher's builtinModules() table in
// runtime/interpreter.go, expanded per the native method tables in
// original_source/src/interpreter/natives/.
func loadBuiltinModule(path string) (Value, error) {
	if v, ok := loadedModules[path]; ok {
		return v, nil
	}
	build, ok := builtinModules[path]
	if !ok {
		return Nil, fmt.Errorf("no module named '%s'", path)
	}
	v := build()
	loadedModules[path] = v
	return v, nil
}

// nativeModule allocates a HashMap and sets each named native onto it.
func nativeModule(fns map[string]NativeFn) Value {
	mv := AllocHashMap()
	m := heapObjectOf(mv).(*HashMap)
	for name, fn := range fns {
		m.Set(name, AllocCallable(name, -1, fn))
	}
	return mv
}

func argNumber(args []Value, i int, fname string) (float64, *Error) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, ArgumentCountError(fname, i+1, len(args))
	}
	return args[i].AsNumber(), nil
}

func argString(args []Value, i int, fname string) (string, *Error) {
	if i >= len(args) || !args[i].IsString() {
		return "", ArgumentCountError(fname, i+1, len(args))
	}
	return args[i].AsString(), nil
}
