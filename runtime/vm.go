package runtime

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	stackMax  = 1 << 16
	framesMax = 1024
)

// frame is one active call: the function/closure running, the
// instruction pointer into its Chunk, and the stack slot its locals
// start at. Unlike the teacher's runtime/vm.go frame (which only ever
// held a *VMFunction), a frame here may be driven by a VMClosure so
// OpLoadUpvalue/OpStoreUpvalue have somewhere to resolve against.
type frame struct {
	fn      *VMFunction
	closure *VMClosure // nil for a closure-less top-level/function call
	ip      int
	base    int
}

// NativeBridge is how the VM delegates a call to anything that isn't a
// bare compiled function: Callable natives, Class construction, and
// Instance method dispatch all run through the tree-walking
// interpreter, per the native-call bridge boundary. The VM itself never
// evaluates AST.
type NativeBridge func(vm *VM, callee Value, args []Value) (Value, *Error)

// TieredCompiler is the minimal surface the VM needs from a JIT
// backend: given a hot function and its observed call count, decide
// whether to compile it, and where OSR should resume if so. jit/stub.go
// implements this by always declining.
type TieredCompiler interface {
	MaybeCompile(fn *VMFunction, callCount int) (compiled bool, osrEntry int)
}

// VM executes compiled Chunks. It never parses or walks an AST; any
// call whose callee isn't a VMFunction/VMClosure is handed to Bridge.
type VM struct {
	stack  []Value
	sp     int
	frames []frame

	globals *Environment

	openUpvalues []*Upvalue

	globalCache   *globalCache
	propertyCache *propertyCache
	callCache     *callCache

	hotness      map[*VMFunction]int
	hotThreshold int
	loopHotness  map[int]int // keyed by the Loop instruction's call-site offset
	tiered       TieredCompiler

	bridge NativeBridge

	icDiagnostics bool
}

func NewVM(globals *Environment) *VM {
	vm := &VM{
		stack:         make([]Value, stackMax),
		frames:        make([]frame, 0, 64),
		globals:       globals,
		globalCache:   newGlobalCache(),
		propertyCache: newPropertyCache(),
		callCache:     newCallCache(),
		hotness:       make(map[*VMFunction]int),
		hotThreshold:  1000,
		loopHotness:   make(map[int]int),
	}
	SetRoots(vm.collectRoots)
	return vm
}

func (vm *VM) SetBridge(b NativeBridge)           { vm.bridge = b }
func (vm *VM) SetTieredCompiler(t TieredCompiler) { vm.tiered = t }
func (vm *VM) SetAggressiveTiering(on bool) {
	if on {
		vm.hotThreshold = vm.hotThreshold / 4
		if vm.hotThreshold < 1 {
			vm.hotThreshold = 1
		}
	}
}
func (vm *VM) SetICDiagnostics(on bool) { vm.icDiagnostics = on }

// HotnessOf reports how many times fn has been called (function
// counter; loop back-edge counters are per-site and read through
// LoopHotnessAt instead); used by tests to verify §4.5.4's
// tiering accounting without depending on a real JIT ever tiering up.
func (vm *VM) HotnessOf(fn *VMFunction) int { return vm.hotness[fn] }

// HotThreshold reports the VM's current tiering threshold, post
// SetAggressiveTiering adjustment.
func (vm *VM) HotThreshold() int { return vm.hotThreshold }

// PropertySiteMegamorphic reports whether the property inline cache at
// the given call-site byte offset has gone megamorphic (§4.5.3, §8's
// "a property call site that has observed >=17 distinct instance
// versions is marked megamorphic" boundary behavior).
func (vm *VM) PropertySiteMegamorphic(site int) bool {
	return vm.propertyCache.IsMegamorphic(site)
}

// collectRoots is the RootProvider wired into the collector: every live
// stack slot, every open upvalue, every global environment value, and
// every entry of every inline cache, per §4.6's root-set definition.
// Caches and globals matter in practice, not just on paper: a global
// holding the only reference to a gen-0 array, or a closure/instance
// cached at a call site while some other frame is mid-dispatch, would
// otherwise be swept by the very next minor collection.
func (vm *VM) collectRoots() []Value {
	roots := make([]Value, 0, vm.sp+len(vm.openUpvalues))
	roots = append(roots, vm.stack[:vm.sp]...)
	for _, uv := range vm.openUpvalues {
		roots = append(roots, uv.Get())
	}
	if vm.globals != nil {
		roots = append(roots, vm.globals.Values()...)
	}
	roots = append(roots, vm.globalCache.Roots()...)
	roots = append(roots, vm.propertyCache.Roots()...)
	roots = append(roots, vm.callCache.Roots()...)
	return roots
}

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		panic(StackOverflowError())
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// Run executes fn as the program's entry point (the implicit top-level
// function the compiler emits for a whole program).
func (vm *VM) Run(fn *VMFunction) (Value, *Error) {
	vm.frames = append(vm.frames, frame{fn: fn, base: vm.sp})
	return vm.run(0)
}

// CallValue invokes a VMFunction/VMClosure Value from outside the
// dispatch loop — the interpreter's half of the native-call bridge
// (§4.7): a tree-walking call that reaches a compiled closure hands it
// here instead of evaluating bytecode itself. floor records the frame
// depth CallValue is entered at, so the nested run() returns control
// once its own pushed frame (and nothing below it) has retired.
func (vm *VM) CallValue(callee Value, args []Value) (Value, *Error) {
	floor := len(vm.frames)
	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	vm.call(len(args), -1, 0)
	if len(vm.frames) == floor {
		return vm.pop(), nil
	}
	return vm.run(floor)
}

func (vm *VM) currentFrame() *frame { return &vm.frames[len(vm.frames)-1] }

func (vm *VM) run(floor int) (result Value, rerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				rerr = e.WithTrace(vm.captureTrace())
				return
			}
			panic(r)
		}
	}()

	for {
		f := vm.currentFrame()
		chunk := f.fn.Chunk
		if f.ip >= len(chunk.Code) {
			return Nil, NewError("chunk fell off the end without a return", 0, 0)
		}
		op := OpCode(chunk.Code[f.ip])
		line := chunk.Lines[f.ip]
		siteIP := f.ip
		f.ip++

		switch op {
		case OpConstant:
			idx := chunk.Code[f.ip]
			f.ip++
			vm.push(chunk.Constants[idx])

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(True)
		case OpFalse:
			vm.push(False)

		case OpPop:
			vm.pop()
		case OpDup:
			vm.push(vm.peek(0))

		case OpLoadLocal:
			slot := int(chunk.Code[f.ip])
			f.ip++
			vm.push(vm.stack[f.base+slot])
		case OpStoreLocal:
			slot := int(chunk.Code[f.ip])
			f.ip++
			vm.stack[f.base+slot] = vm.peek(0)

		case OpIncrementLocal:
			slot := int(chunk.Code[f.ip])
			f.ip++
			idx := f.base + slot
			vm.stack[idx] = Number(vm.stack[idx].AsNumber() + 1)
		case OpDecrementLocal:
			slot := int(chunk.Code[f.ip])
			f.ip++
			idx := f.base + slot
			vm.stack[idx] = Number(vm.stack[idx].AsNumber() - 1)

		case OpDefineGlobal:
			idx := chunk.Code[f.ip]
			f.ip++
			name := chunk.Constants[idx].AsString()
			if _, err := vm.globals.DeclareVar(name, vm.peek(0), false); err != nil {
				panic(NewCodedError(ETypeMismatch, err.Error(), line, 0))
			}
			vm.pop()

		case OpLoadGlobal:
			idx := chunk.Code[f.ip]
			f.ip++
			name := chunk.Constants[idx].AsString()
			if v, ok := vm.globalCache.lookup(siteIP, vm.globals, name); ok {
				vm.push(v)
				break
			}
			v, err := vm.globals.LookupVar(name)
			if err != nil {
				panic(UndefinedVariableError(name, line, 0))
			}
			vm.globalCache.store(siteIP, vm.globals, name, v)
			vm.push(v)

		case OpStoreGlobal:
			idx := chunk.Code[f.ip]
			f.ip++
			name := chunk.Constants[idx].AsString()
			if _, err := vm.globals.AssignVar(name, vm.peek(0)); err != nil {
				panic(UndefinedVariableError(name, line, 0))
			}

		case OpLoadUpvalue:
			idx := int(chunk.Code[f.ip])
			f.ip++
			vm.push(f.closure.Upvalues[idx].Get())
		case OpStoreUpvalue:
			idx := int(chunk.Code[f.ip])
			f.ip++
			f.closure.Upvalues[idx].Set(vm.peek(0))

		case OpCloseUpvalue:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case OpGetProperty:
			idx := chunk.Code[f.ip]
			f.ip++
			name := chunk.Constants[idx].AsString()
			obj := vm.pop()
			vm.push(vm.getProperty(obj, name, siteIP, line))

		case OpSetProperty:
			idx := chunk.Code[f.ip]
			f.ip++
			name := chunk.Constants[idx].AsString()
			val := vm.pop()
			obj := vm.pop()
			vm.setProperty(obj, name, val, line)
			vm.push(val)

		case OpGetIndex:
			index := vm.pop()
			obj := vm.pop()
			vm.push(vm.getIndex(obj, index, line))

		case OpSetIndex:
			val := vm.pop()
			index := vm.pop()
			obj := vm.pop()
			vm.setIndex(obj, index, val, line)
			vm.push(val)

		case OpNewArray:
			count := int(chunk.ReadU16(f.ip))
			f.ip += 2
			elems := make([]Value, count)
			copy(elems, vm.stack[vm.sp-count:vm.sp])
			vm.sp -= count
			vm.push(AllocArray(elems))

		case OpNewHashMap:
			count := int(chunk.ReadU16(f.ip))
			f.ip += 2
			mv := AllocHashMap()
			m := heapObjectOf(mv).(*HashMap)
			base := vm.sp - count*2
			for i := 0; i < count; i++ {
				k := vm.stack[base+i*2]
				v := vm.stack[base+i*2+1]
				m.Set(k.AsString(), v)
			}
			vm.sp = base
			vm.push(mv)

		case OpAdd:
			vm.binaryAdd(line)
		case OpSub, OpMul, OpDiv, OpMod, OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
			vm.binaryNumeric(op, line)
		case OpNeg:
			v := vm.pop()
			if !v.IsNumber() {
				panic(TypeError("operand of '-' must be a number", line, 0))
			}
			vm.push(Number(-v.AsNumber()))
		case OpNot:
			vm.push(Bool(!vm.pop().IsTruthy()))

		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(Equal(a, b)))
		case OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!Equal(a, b)))
		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			vm.compare(op, line)

		case OpEnsurePropertyDefault:
			idx := chunk.Code[f.ip]
			f.ip++
			kind := OperatorKind(chunk.Code[f.ip])
			f.ip++
			name := chunk.Constants[idx].AsString()
			rhs := vm.pop()
			obj := vm.peek(0)
			cur := vm.ensurePropertyDefault(obj, name, siteIP, line)
			res := applyOperatorKind(kind, cur, rhs, line)
			vm.setProperty(obj, name, res, line)
			vm.pop()
			vm.push(res)

		case OpEnsureIndexDefault:
			kind := OperatorKind(chunk.Code[f.ip])
			f.ip++
			rhs := vm.pop()
			index := vm.pop()
			obj := vm.peek(0)
			cur := vm.ensureIndexDefault(obj, index, line)
			res := applyOperatorKind(kind, cur, rhs, line)
			vm.setIndex(obj, index, res, line)
			vm.pop()
			vm.push(res)

		case OpJump:
			offset := int(chunk.ReadU16(f.ip))
			f.ip += 2 + offset
		case OpJumpIfFalse:
			offset := int(chunk.ReadU16(f.ip))
			f.ip += 2
			if !vm.peek(0).IsTruthy() {
				f.ip += offset
			}
		case OpLoop:
			offset := chunk.ReadU16(f.ip)
			f.ip += 2
			f.ip -= int(offset)
			vm.trackLoopHotness(f.fn, siteIP)

		case OpClosure:
			idx := chunk.Code[f.ip]
			f.ip++
			upCount := int(chunk.Code[f.ip])
			f.ip++
			protoVal := chunk.Constants[idx]
			proto := heapObjectOf(protoVal).(*VMFunction)
			upvalues := make([]*Upvalue, upCount)
			for i := 0; i < upCount; i++ {
				isLocal := chunk.Code[f.ip] != 0
				f.ip++
				index := int(chunk.Code[f.ip])
				f.ip++
				if isLocal {
					upvalues[i] = vm.captureUpvalue(f.base + index)
				} else {
					upvalues[i] = f.closure.Upvalues[index]
				}
			}
			vm.push(AllocClosure(proto, upvalues))

		case OpCall:
			argc := int(chunk.Code[f.ip])
			f.ip++
			vm.call(argc, siteIP, line)

		case OpReturn:
			ret := vm.pop()
			vm.closeUpvalues(f.base)
			done := len(vm.frames) == floor+1
			vm.sp = f.base
			vm.frames = vm.frames[:len(vm.frames)-1]
			if done {
				return ret, nil
			}
			vm.push(ret)

		case OpImport:
			idx := chunk.Code[f.ip]
			f.ip++
			path := chunk.Constants[idx].AsString()
			mod, err := loadBuiltinModule(path)
			if err != nil {
				panic(NewCodedError(EUndefinedVariable, err.Error(), line, 0))
			}
			vm.push(mod)

		case OpPrint:
			fmt.Println(Sprint(vm.pop()))

		default:
			panic(NewError(fmt.Sprintf("unknown opcode %d", op), line, 0))
		}
	}
}

func (vm *VM) binaryAdd(line int) {
	b, a := vm.pop(), vm.pop()
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.push(Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() || b.IsString():
		vm.push(Intern(Sprint(a) + Sprint(b)))
	default:
		panic(TypeError("operands of '+' must be numbers or strings", line, 0))
	}
}

func (vm *VM) binaryNumeric(op OpCode, line int) {
	b, a := vm.pop(), vm.pop()
	if !a.IsNumber() || !b.IsNumber() {
		panic(TypeError(fmt.Sprintf("operands of '%s' must be numbers", op), line, 0))
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case OpSub:
		vm.push(Number(x - y))
	case OpMul:
		vm.push(Number(x * y))
	case OpDiv:
		if y == 0 {
			panic(DivisionByZeroError(line, 0))
		}
		vm.push(Number(x / y))
	case OpMod:
		if y == 0 {
			panic(DivisionByZeroError(line, 0))
		}
		vm.push(Number(float64(int64(x) % int64(y))))
	case OpBitAnd:
		vm.push(Number(float64(int64(x) & int64(y))))
	case OpBitOr:
		vm.push(Number(float64(int64(x) | int64(y))))
	case OpBitXor:
		vm.push(Number(float64(int64(x) ^ int64(y))))
	case OpShl:
		vm.push(Number(float64(int64(x) << uint64(y))))
	case OpShr:
		vm.push(Number(float64(int64(x) >> uint64(y))))
	}
}

func applyOperatorKind(kind OperatorKind, cur, rhs Value, line int) Value {
	if !cur.IsNumber() || !rhs.IsNumber() {
		if kind == OpKindAdd && (cur.IsString() || rhs.IsString()) {
			return Intern(Sprint(cur) + Sprint(rhs))
		}
		panic(TypeError("compound assignment requires numbers", line, 0))
	}
	x, y := cur.AsNumber(), rhs.AsNumber()
	switch kind {
	case OpKindAdd:
		return Number(x + y)
	case OpKindSub:
		return Number(x - y)
	case OpKindMul:
		return Number(x * y)
	case OpKindDiv:
		if y == 0 {
			panic(DivisionByZeroError(line, 0))
		}
		return Number(x / y)
	case OpKindBitAnd:
		return Number(float64(int64(x) & int64(y)))
	case OpKindBitOr:
		return Number(float64(int64(x) | int64(y)))
	case OpKindBitXor:
		return Number(float64(int64(x) ^ int64(y)))
	case OpKindShl:
		return Number(float64(int64(x) << uint64(y)))
	case OpKindShr:
		return Number(float64(int64(x) >> uint64(y)))
	default:
		panic(NewError("unknown operator kind", line, 0))
	}
}

func (vm *VM) compare(op OpCode, line int) {
	b, a := vm.pop(), vm.pop()
	if !a.IsNumber() || !b.IsNumber() {
		panic(TypeError("comparison operands must be numbers", line, 0))
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case OpLess:
		vm.push(Bool(x < y))
	case OpLessEqual:
		vm.push(Bool(x <= y))
	case OpGreater:
		vm.push(Bool(x > y))
	case OpGreaterEqual:
		vm.push(Bool(x >= y))
	}
}

func (vm *VM) getProperty(obj Value, name string, site, line int) Value {
	if !obj.IsHeapObject() {
		panic(NotIndexableError(line, 0))
	}
	switch o := heapObjectOf(obj).(type) {
	case *Instance:
		if v, ok := vm.propertyCache.Lookup(site, o, name); ok {
			return v
		}
		if v, ok := o.Get(name); ok {
			vm.propertyCache.Store(site, obj, o, name, v)
			return v
		}
		// An interpreted method (the common case: every class declared
		// in script source compiles its methods through the interpreter,
		// per the native-call bridge boundary) takes priority over the
		// Class.Methods entry, which for those classes is an uncallable
		// stub with no Chunk — only present so Resolve can report arity.
		if sf, ok := o.Class.scriptMethods()[name]; ok {
			return AllocBoundMethod(obj, nil, sf)
		}
		if method, ok := o.Class.Resolve(name); ok {
			return AllocBoundMethod(obj, method, nil)
		}
		panic(UndefinedVariableError(name, line, 0))
	case *HashMap:
		if v, ok := o.Get(name); ok {
			return v
		}
		return Nil
	default:
		panic(NotIndexableError(line, 0))
	}
}

// ensurePropertyDefault reads obj's property, seeding a zero value first
// if it is absent (§4.4/§4.9: "a sensible default (0 for arithmetic, 0
// for bitwise)" so `m["k"] += 1`/`instance.k += 1` compile-time lowering
// works against a field that has never been assigned). On a HashMap the
// seed-then-read is atomic via HashMap.EnsureDefault, per §4.6's
// concurrent-default-ensure guarantee; Instance fields are VM-thread-only
// so a plain Get-or-seed suffices.
func (vm *VM) ensurePropertyDefault(obj Value, name string, site, line int) Value {
	if !obj.IsHeapObject() {
		panic(NotIndexableError(line, 0))
	}
	switch o := heapObjectOf(obj).(type) {
	case *Instance:
		if v, ok := vm.propertyCache.Lookup(site, o, name); ok {
			return v
		}
		if v, ok := o.Get(name); ok {
			vm.propertyCache.Store(site, obj, o, name, v)
			return v
		}
		o.Set(name, Number(0))
		vm.propertyCache.Store(site, obj, o, name, Number(0))
		return Number(0)
	case *HashMap:
		return o.EnsureDefault(name, Number(0))
	default:
		panic(NotIndexableError(line, 0))
	}
}

func (vm *VM) setProperty(obj Value, name string, val Value, line int) {
	if !obj.IsHeapObject() {
		panic(NotIndexableError(line, 0))
	}
	switch o := heapObjectOf(obj).(type) {
	case *Instance:
		o.Set(name, val)
		WriteBarrier(obj, val)
	case *HashMap:
		o.Set(name, val)
		WriteBarrier(obj, val)
	default:
		panic(NotIndexableError(line, 0))
	}
}

func (vm *VM) getIndex(obj, index Value, line int) Value {
	if !obj.IsHeapObject() {
		panic(NotIndexableError(line, 0))
	}
	switch o := heapObjectOf(obj).(type) {
	case *Array:
		if !index.IsNumber() {
			panic(TypeError("array index must be a number", line, 0))
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(o.Elements) {
			panic(IndexOutOfBoundsError(line, 0))
		}
		return o.Elements[i]
	case *HashMap:
		key := Sprint(index)
		if v, ok := o.Get(key); ok {
			return v
		}
		return Nil
	default:
		panic(NotIndexableError(line, 0))
	}
}

// ensureIndexDefault mirrors ensurePropertyDefault for `[]` targets.
// Arrays have no notion of a defaultable slot — an out-of-range index is
// always E4002 (§7), never silently seeded — so only the HashMap case
// seeds a zero value; the Array case just delegates to getIndex.
func (vm *VM) ensureIndexDefault(obj, index Value, line int) Value {
	if !obj.IsHeapObject() {
		panic(NotIndexableError(line, 0))
	}
	if o, ok := heapObjectOf(obj).(*HashMap); ok {
		return o.EnsureDefault(Sprint(index), Number(0))
	}
	return vm.getIndex(obj, index, line)
}

func (vm *VM) setIndex(obj, index, val Value, line int) {
	if !obj.IsHeapObject() {
		panic(NotIndexableError(line, 0))
	}
	switch o := heapObjectOf(obj).(type) {
	case *Array:
		if !index.IsNumber() {
			panic(TypeError("array index must be a number", line, 0))
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(o.Elements) {
			panic(IndexOutOfBoundsError(line, 0))
		}
		o.Elements[i] = val
		WriteBarrier(obj, val)
	case *HashMap:
		o.Set(Sprint(index), val)
		WriteBarrier(obj, val)
	default:
		panic(NotIndexableError(line, 0))
	}
}

// captureUpvalue returns an existing open Upvalue for stackIdx if one is
// already tracked (so two closures sharing the same free variable
// observe each other's writes), or allocates a new one.
func (vm *VM) captureUpvalue(stackIdx int) *Upvalue {
	for _, uv := range vm.openUpvalues {
		if !uv.closed && uv.slot == stackIdx {
			return uv
		}
	}
	uv := AllocUpvalue(vm.stack, stackIdx)
	vm.openUpvalues = append(vm.openUpvalues, uv)
	return uv
}

// closeUpvalues closes every open upvalue at or above fromSlot, called
// when a scope or frame whose locals they referenced is going away.
func (vm *VM) closeUpvalues(fromSlot int) {
	kept := vm.openUpvalues[:0]
	for _, uv := range vm.openUpvalues {
		if uv.slot >= fromSlot {
			uv.Close()
		} else {
			kept = append(kept, uv)
		}
	}
	vm.openUpvalues = kept
}

func (vm *VM) call(argc, site, line int) {
	if len(vm.frames) >= framesMax {
		panic(StackOverflowError())
	}
	callee := vm.peek(argc)
	kind, cached := vm.callCache.lookup(site, callee)
	if !cached {
		kind = vm.classifyCallee(callee)
		vm.callCache.store(site, callee, kind)
	}

	switch kind {
	case calleeFunction, calleeClosure:
		var fn *VMFunction
		var closure *VMClosure
		if kind == calleeClosure {
			closure = heapObjectOf(callee).(*VMClosure)
			fn = closure.Fn
		} else {
			fn = heapObjectOf(callee).(*VMFunction)
		}
		if argc != fn.Arity {
			panic(ArgumentCountError(fn.Name, fn.Arity, argc))
		}
		vm.trackHotness(fn)
		base := vm.sp - argc
		vm.frames = append(vm.frames, frame{fn: fn, closure: closure, base: base})

	case calleeBoundMethod:
		bm := heapObjectOf(callee).(*BoundMethod)
		if bm.Fn != nil {
			fn := bm.Fn
			if argc+1 != fn.Arity {
				panic(ArgumentCountError(fn.Name, fn.Arity-1, argc))
			}
			// The callee slot (holding the now-unneeded BoundMethod) becomes
			// the method's reserved `this` slot, so the receiver sits at
			// slot 0 of the new frame without having to shift any argument.
			calleeSlot := vm.sp - argc - 1
			vm.stack[calleeSlot] = bm.Receiver
			vm.trackHotness(fn)
			vm.frames = append(vm.frames, frame{fn: fn, base: calleeSlot})
			return
		}
		args := make([]Value, argc)
		copy(args, vm.stack[vm.sp-argc:vm.sp])
		vm.sp -= argc + 1
		if vm.bridge == nil {
			panic(NotCallableError(line, 0))
		}
		result, err := vm.bridge(vm, callee, args)
		if err != nil {
			panic(err)
		}
		vm.push(result)

	default:
		args := make([]Value, argc)
		copy(args, vm.stack[vm.sp-argc:vm.sp])
		vm.sp -= argc + 1
		if vm.bridge == nil {
			panic(NotCallableError(line, 0))
		}
		result, err := vm.bridge(vm, callee, args)
		if err != nil {
			panic(err)
		}
		vm.push(result)
	}
}

func (vm *VM) classifyCallee(callee Value) calleeKind {
	if !callee.IsHeapObject() {
		return calleeBridged
	}
	switch heapObjectOf(callee).(type) {
	case *VMFunction:
		return calleeFunction
	case *VMClosure:
		return calleeClosure
	case *BoundMethod:
		return calleeBoundMethod
	default:
		return calleeBridged
	}
}

// trackHotness bumps fn's call counter and, once past the tiering
// threshold, offers it to the registered TieredCompiler: the VM keeps
// interpreting regardless of the answer, since no native codegen
// backend exists in this build.
func (vm *VM) trackHotness(fn *VMFunction) {
	vm.hotness[fn]++
	n := vm.hotness[fn]
	if vm.tiered == nil || n != vm.hotThreshold {
		return
	}
	if compiled, osr := vm.tiered.MaybeCompile(fn, n); compiled {
		log.Debug().Str("fn", fn.Name).Int("osr", osr).Msg("jit: function tiered up")
	} else if vm.icDiagnostics {
		log.Debug().Str("fn", fn.Name).Msg("jit: tier-up declined")
	}
}

// trackLoopHotness bumps the back-edge counter for the Loop instruction
// at site, offering fn to the tiered compiler once it crosses the same
// threshold a function's call counter uses (the design doesn't give
// loops a separate configured threshold, only "its own atomic counter").
func (vm *VM) trackLoopHotness(fn *VMFunction, site int) {
	vm.loopHotness[site]++
	n := vm.loopHotness[site]
	if vm.tiered == nil || n != vm.hotThreshold {
		return
	}
	if compiled, osr := vm.tiered.MaybeCompile(fn, n); compiled {
		log.Debug().Str("fn", fn.Name).Int("site", site).Int("osr", osr).Msg("jit: loop tiered up")
	} else if vm.icDiagnostics {
		log.Debug().Str("fn", fn.Name).Int("site", site).Msg("jit: loop tier-up declined")
	}
}

// LoopHotnessAt reports the back-edge counter for the Loop instruction
// at the given call-site offset.
func (vm *VM) LoopHotnessAt(site int) int { return vm.loopHotness[site] }

func (vm *VM) captureTrace() []Frame {
	trace := make([]Frame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		line := 0
		if f.ip > 0 && f.ip-1 < len(f.fn.Chunk.Lines) {
			line = f.fn.Chunk.Lines[f.ip-1]
		}
		trace = append(trace, Frame{Function: f.fn.Name, Line: line})
	}
	return trace
}
