package runtime

import "time"

// buildTimeModule follows libraries/time.go's intent (now/sleep) without
// copying its non-compiling body, rebuilt against Value/NativeFn.
func buildTimeModule() Value {
	fns := map[string]NativeFn{
		"now": func(args []Value) (Value, *Error) {
			return Number(float64(time.Now().UnixMilli())), nil
		},
		"sleep": func(args []Value) (Value, *Error) {
			ms, err := argNumber(args, 0, "sleep")
			if err != nil {
				return Nil, err
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return Nil, nil
		},
	}
	return nativeModule(fns)
}
