package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sprint formats any Value as a single-line string, the way the print
// native and the VM's OpPrint instruction render output.
func Sprint(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return strconv.FormatBool(v.AsBool())
	case v.IsNumber():
		return strconv.FormatFloat(v.AsNumber(), 'g', -1, 64)
	case v.IsString():
		return v.AsString()
	case v.IsHeapObject():
		return sprintHeap(heapObjectOf(v))
	default:
		return "<unknown>"
	}
}

// Quoted formats v the way a REPL or array/map element dump does:
// strings carry their quotes, everything else matches Sprint.
func Quoted(v Value) string {
	if v.IsString() {
		return fmt.Sprintf("%q", v.AsString())
	}
	return Sprint(v)
}

func sprintHeap(obj Object) string {
	switch o := obj.(type) {
	case *Array:
		parts := make([]string, len(o.Elements))
		for i, el := range o.Elements {
			parts[i] = Quoted(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *HashMap:
		keys := append([]string(nil), o.Order...)
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			v, _ := o.Get(k)
			parts[i] = fmt.Sprintf("%q: %s", k, Quoted(v))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Instance:
		return fmt.Sprintf("<%s instance>", o.Class.Name)
	case *Class:
		return fmt.Sprintf("<class %s>", o.Name)
	case *VMFunction:
		return fmt.Sprintf("<fn %s>", o.Name)
	case *VMClosure:
		return fmt.Sprintf("<fn %s>", o.Fn.Name)
	case *ScriptFunction:
		return fmt.Sprintf("<fn %s>", o.Name)
	case *Callable:
		return fmt.Sprintf("<native %s>", o.Name)
	default:
		return "<object>"
	}
}
