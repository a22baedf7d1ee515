package runtime

import "sort"

// buildHashMapModule provides the keys/values/has/delete surface
// original_source exposes on its hashmap objects directly as methods;
// the VM's GetProperty path only handles plain entry lookup, so the
// richer operations live in this importable module instead.
func buildHashMapModule() Value {
	mapArg := func(args []Value, i int, fname string) (*HashMap, *Error) {
		if i >= len(args) || !args[i].IsHeapObject() {
			return nil, ArgumentCountError(fname, i+1, len(args))
		}
		m, ok := heapObjectOf(args[i]).(*HashMap)
		if !ok {
			return nil, TypeError(fname+" expects a hashmap argument", 0, 0)
		}
		return m, nil
	}

	fns := map[string]NativeFn{
		"keys": func(args []Value) (Value, *Error) {
			m, err := mapArg(args, 0, "keys")
			if err != nil {
				return Nil, err
			}
			keys := append([]string(nil), m.Order...)
			sort.Strings(keys)
			elems := make([]Value, len(keys))
			for i, k := range keys {
				elems[i] = Intern(k)
			}
			return AllocArray(elems), nil
		},
		"values": func(args []Value) (Value, *Error) {
			m, err := mapArg(args, 0, "values")
			if err != nil {
				return Nil, err
			}
			keys := append([]string(nil), m.Order...)
			sort.Strings(keys)
			elems := make([]Value, len(keys))
			for i, k := range keys {
				elems[i], _ = m.Get(k)
			}
			return AllocArray(elems), nil
		},
		"has": func(args []Value) (Value, *Error) {
			m, err := mapArg(args, 0, "has")
			if err != nil {
				return Nil, err
			}
			key, err := argString(args, 1, "has")
			if err != nil {
				return Nil, err
			}
			_, ok := m.Get(key)
			return Bool(ok), nil
		},
		"delete": func(args []Value) (Value, *Error) {
			m, err := mapArg(args, 0, "delete")
			if err != nil {
				return Nil, err
			}
			key, err := argString(args, 1, "delete")
			if err != nil {
				return Nil, err
			}
			m.Delete(key)
			return Nil, nil
		},
		"len": func(args []Value) (Value, *Error) {
			m, err := mapArg(args, 0, "len")
			if err != nil {
				return Nil, err
			}
			return Number(float64(len(m.Order))), nil
		},
	}
	return nativeModule(fns)
}
