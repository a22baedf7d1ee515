package runtime

import "math"

// buildMathModule is grounded on libraries/fmaths.go's native table
// (pow, sqrt, log, trig, rounding, and the named constants pi/e/phi),
// rewritten against Value/NativeFn instead of the teacher's ad-hoc
// locally-redeclared RuntimeVal types.
func buildMathModule() Value {
	unary := func(name string, f func(float64) float64) NativeFn {
		return func(args []Value) (Value, *Error) {
			x, err := argNumber(args, 0, name)
			if err != nil {
				return Nil, err
			}
			return Number(f(x)), nil
		}
	}

	fns := map[string]NativeFn{
		"sqrt":  unary("sqrt", math.Sqrt),
		"cbrt":  unary("cbrt", math.Cbrt),
		"abs":   unary("abs", math.Abs),
		"floor": unary("floor", math.Floor),
		"ceil":  unary("ceil", math.Ceil),
		"round": unary("round", math.Round),
		"exp":   unary("exp", math.Exp),
		"exp2":  unary("exp2", math.Exp2),
		"log":   unary("log", math.Log),
		"log10": unary("log10", math.Log10),
		"log2":  unary("log2", math.Log2),
		"sin":   unary("sin", math.Sin),
		"cos":   unary("cos", math.Cos),
		"tan":   unary("tan", math.Tan),
		"asin":  unary("asin", math.Asin),
		"acos":  unary("acos", math.Acos),
		"atan":  unary("atan", math.Atan),
		"sinh":  unary("sinh", math.Sinh),
		"cosh":  unary("cosh", math.Cosh),
		"tanh":  unary("tanh", math.Tanh),
		"gamma": unary("gamma", math.Gamma),

		"pow": func(args []Value) (Value, *Error) {
			x, err := argNumber(args, 0, "pow")
			if err != nil {
				return Nil, err
			}
			y, err := argNumber(args, 1, "pow")
			if err != nil {
				return Nil, err
			}
			return Number(math.Pow(x, y)), nil
		},
		"atan2": func(args []Value) (Value, *Error) {
			y, err := argNumber(args, 0, "atan2")
			if err != nil {
				return Nil, err
			}
			x, err := argNumber(args, 1, "atan2")
			if err != nil {
				return Nil, err
			}
			return Number(math.Atan2(y, x)), nil
		},
		"min": func(args []Value) (Value, *Error) {
			if len(args) == 0 {
				return Nil, ArgumentCountError("min", 1, 0)
			}
			m := args[0].AsNumber()
			for _, a := range args[1:] {
				if v := a.AsNumber(); v < m {
					m = v
				}
			}
			return Number(m), nil
		},
		"max": func(args []Value) (Value, *Error) {
			if len(args) == 0 {
				return Nil, ArgumentCountError("max", 1, 0)
			}
			m := args[0].AsNumber()
			for _, a := range args[1:] {
				if v := a.AsNumber(); v > m {
					m = v
				}
			}
			return Number(m), nil
		},
		"factorial": func(args []Value) (Value, *Error) {
			n, err := argNumber(args, 0, "factorial")
			if err != nil {
				return Nil, err
			}
			if n < 0 {
				return Nil, TypeError("factorial requires a non-negative number", 0, 0)
			}
			result := 1.0
			for i := 2.0; i <= n; i++ {
				result *= i
			}
			return Number(result), nil
		},
	}

	mv := nativeModule(fns)
	m := heapObjectOf(mv).(*HashMap)
	m.Set("pi", Number(math.Pi))
	m.Set("e", Number(math.E))
	m.Set("phi", Number(math.Phi))
	m.Set("sqrt2", Number(math.Sqrt2))
	m.Set("ln2", Number(math.Ln2))
	m.Set("ln10", Number(math.Ln10))
	return mv
}
