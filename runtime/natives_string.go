package runtime

import "strings"

// buildStringModule follows src/interpreter/natives/native_string.cpp's
// index policy: substr rejects a negative start/length rather than
// clamping it (array.slice, by contrast, clamps — see
// natives_array.go), and len/split/join mirror the original's naming.
func buildStringModule() Value {
	fns := map[string]NativeFn{
		"len": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "len")
			if err != nil {
				return Nil, err
			}
			return Number(float64(len([]rune(s)))), nil
		},
		"substr": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "substr")
			if err != nil {
				return Nil, err
			}
			start, err := argNumber(args, 1, "substr")
			if err != nil {
				return Nil, err
			}
			length, err := argNumber(args, 2, "substr")
			if err != nil {
				return Nil, err
			}
			runes := []rune(s)
			si, li := int(start), int(length)
			if si < 0 || li < 0 || si > len(runes) {
				return Nil, IndexOutOfBoundsError(0, 0)
			}
			end := si + li
			if end > len(runes) {
				end = len(runes)
			}
			return Intern(string(runes[si:end])), nil
		},
		"split": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "split")
			if err != nil {
				return Nil, err
			}
			sep, err := argString(args, 1, "split")
			if err != nil {
				return Nil, err
			}
			parts := strings.Split(s, sep)
			elems := make([]Value, len(parts))
			for i, p := range parts {
				elems[i] = Intern(p)
			}
			return AllocArray(elems), nil
		},
		"join": func(args []Value) (Value, *Error) {
			if len(args) < 2 || !args[0].IsHeapObject() {
				return Nil, ArgumentCountError("join", 2, len(args))
			}
			arr, ok := heapObjectOf(args[0]).(*Array)
			if !ok {
				return Nil, TypeError("join expects an array as its first argument", 0, 0)
			}
			sep, err := argString(args, 1, "join")
			if err != nil {
				return Nil, err
			}
			parts := make([]string, len(arr.Elements))
			for i, el := range arr.Elements {
				parts[i] = Sprint(el)
			}
			return Intern(strings.Join(parts, sep)), nil
		},
		"upper": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "upper")
			if err != nil {
				return Nil, err
			}
			return Intern(strings.ToUpper(s)), nil
		},
		"lower": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "lower")
			if err != nil {
				return Nil, err
			}
			return Intern(strings.ToLower(s)), nil
		},
		"trim": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "trim")
			if err != nil {
				return Nil, err
			}
			return Intern(strings.TrimSpace(s)), nil
		},
		"has": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "has")
			if err != nil {
				return Nil, err
			}
			sub, err := argString(args, 1, "has")
			if err != nil {
				return Nil, err
			}
			return Bool(strings.Contains(s, sub)), nil
		},
	}
	return nativeModule(fns)
}
