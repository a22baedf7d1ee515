package runtime

import (
	"encoding/json"
	"sort"
)

// buildJSONModule is grounded on
// src/interpreter/natives/native_json.cpp's encode/decode pair.
// encoding/json is used for parsing untrusted text and for number/string
// formatting; the actual tree built is always plain Value/Array/HashMap,
// never Go structs, to keep the result indistinguishable from any other
// script-constructed value.
func buildJSONModule() Value {
	fns := map[string]NativeFn{
		"encode": func(args []Value) (Value, *Error) {
			if len(args) < 1 {
				return Nil, ArgumentCountError("encode", 1, 0)
			}
			b, err := json.Marshal(toInterface(args[0]))
			if err != nil {
				return Nil, NewError("json encode failed: "+err.Error(), 0, 0)
			}
			return Intern(string(b)), nil
		},
		"decode": func(args []Value) (Value, *Error) {
			s, err := argString(args, 0, "decode")
			if err != nil {
				return Nil, err
			}
			var v any
			if jerr := json.Unmarshal([]byte(s), &v); jerr != nil {
				return Nil, NewError("json decode failed: "+jerr.Error(), 0, 0)
			}
			return fromInterface(v), nil
		},
	}
	return nativeModule(fns)
}

func toInterface(v Value) any {
	switch {
	case v.IsNil():
		return nil
	case v.IsBool():
		return v.AsBool()
	case v.IsNumber():
		return v.AsNumber()
	case v.IsString():
		return v.AsString()
	case v.IsHeapObject():
		switch o := heapObjectOf(v).(type) {
		case *Array:
			out := make([]any, len(o.Elements))
			for i, el := range o.Elements {
				out[i] = toInterface(el)
			}
			return out
		case *HashMap:
			out := make(map[string]any, len(o.Entries))
			keys := append([]string(nil), o.Order...)
			sort.Strings(keys)
			for _, k := range keys {
				v, _ := o.Get(k)
				out[k] = toInterface(v)
			}
			return out
		}
	}
	return nil
}

func fromInterface(v any) Value {
	switch t := v.(type) {
	case nil:
		return Nil
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case string:
		return Intern(t)
	case []any:
		elems := make([]Value, len(t))
		for i, el := range t {
			elems[i] = fromInterface(el)
		}
		return AllocArray(elems)
	case map[string]any:
		mv := AllocHashMap()
		m := heapObjectOf(mv).(*HashMap)
		for k, el := range t {
			m.Set(k, fromInterface(el))
		}
		return mv
	default:
		return Nil
	}
}
