package runtime

// buildArrayModule follows src/interpreter/natives/native_array.cpp's
// index policy: slice clamps its bounds to [0,len] instead of erroring
// (substr in natives_string.go rejects negative indices instead — the
// two natives deliberately disagree, matching the original).
func buildArrayModule() Value {
	arrayArg := func(args []Value, i int, fname string) (*Array, *Error) {
		if i >= len(args) || !args[i].IsHeapObject() {
			return nil, ArgumentCountError(fname, i+1, len(args))
		}
		a, ok := heapObjectOf(args[i]).(*Array)
		if !ok {
			return nil, TypeError(fname+" expects an array argument", 0, 0)
		}
		return a, nil
	}

	fns := map[string]NativeFn{
		"len": func(args []Value) (Value, *Error) {
			a, err := arrayArg(args, 0, "len")
			if err != nil {
				return Nil, err
			}
			return Number(float64(len(a.Elements))), nil
		},
		"push": func(args []Value) (Value, *Error) {
			a, err := arrayArg(args, 0, "push")
			if err != nil {
				return Nil, err
			}
			if len(args) < 2 {
				return Nil, ArgumentCountError("push", 2, len(args))
			}
			a.Elements = append(a.Elements, args[1])
			WriteBarrier(args[0], args[1])
			return args[0], nil
		},
		"pop": func(args []Value) (Value, *Error) {
			a, err := arrayArg(args, 0, "pop")
			if err != nil {
				return Nil, err
			}
			if len(a.Elements) == 0 {
				return Nil, IndexOutOfBoundsError(0, 0)
			}
			last := a.Elements[len(a.Elements)-1]
			a.Elements = a.Elements[:len(a.Elements)-1]
			return last, nil
		},
		"slice": func(args []Value) (Value, *Error) {
			a, err := arrayArg(args, 0, "slice")
			if err != nil {
				return Nil, err
			}
			start, err := argNumber(args, 1, "slice")
			if err != nil {
				return Nil, err
			}
			end, err := argNumber(args, 2, "slice")
			if err != nil {
				return Nil, err
			}
			si, ei := clampIndex(int(start), len(a.Elements)), clampIndex(int(end), len(a.Elements))
			if ei < si {
				ei = si
			}
			out := make([]Value, ei-si)
			copy(out, a.Elements[si:ei])
			return AllocArray(out), nil
		},
		"has": func(args []Value) (Value, *Error) {
			a, err := arrayArg(args, 0, "has")
			if err != nil {
				return Nil, err
			}
			if len(args) < 2 {
				return Nil, ArgumentCountError("has", 2, len(args))
			}
			for _, el := range a.Elements {
				if Equal(el, args[1]) {
					return True, nil
				}
			}
			return False, nil
		},
	}
	return nativeModule(fns)
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}
