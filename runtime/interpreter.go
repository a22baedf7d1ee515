package runtime

import (
	"claw/ast"
	"fmt"
)

// Interpreter tree-walks an AST directly. It is never used to run a
// whole program under --vm; its jobs are (1) the native-call bridge
// target the VM hands Callable/Class/Instance-method calls to, (2)
// try/catch, which the compiler refuses to lower to bytecode and
// instead routes back here, and (3) running a whole program under
// --interpret, for comparison against the VM and for scripts that use
// try/catch at top level. Control flow (return/break/continue/throw) is
// unwound via panic/recover rather than threaded as extra return values
// through every eval method — the idiomatic Go stand-in for the
// original implementation's C++ exceptions.
type Interpreter struct {
	globals *Environment
	vm      *VM
}

func NewInterpreter(globals *Environment) *Interpreter {
	return &Interpreter{globals: globals}
}

func (in *Interpreter) AttachVM(vm *VM) { in.vm = vm }

type breakSignal struct{}
type continueSignal struct{}
type returnSignal struct{ value Value }
type thrownError struct{ err *Error }

// Bridge is installed on a VM via SetBridge so Callable/Class/Instance
// calls the VM's dispatch loop can't handle itself land here.
func (in *Interpreter) Bridge(vm *VM, callee Value, args []Value) (result Value, rerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(thrownError); ok {
				rerr = te.err
				return
			}
			panic(r)
		}
	}()

	if !callee.IsHeapObject() {
		return Nil, NotCallableError(0, 0)
	}
	switch o := heapObjectOf(callee).(type) {
	case *Callable:
		BeginEphemeral()
		v, err := o.Fn(args)
		EndEphemeral(v)
		return v, err
	case *Class:
		instV := AllocInstance(o)
		if sf, ok := o.scriptMethods()["init"]; ok {
			in.callMethod(instV, sf, args)
		} else if fn, ok := o.Resolve("init"); ok {
			if in.vm == nil {
				return Nil, NewError("class with a compiled initializer called with no VM attached", 0, 0)
			}
			if _, err := in.vm.CallValue(AllocBoundMethod(instV, fn, nil), args); err != nil {
				return Nil, err
			}
		}
		return instV, nil
	case *ScriptFunction:
		return in.callScriptFunction(o, Nil, args), nil
	case *BoundMethod:
		if o.Script != nil {
			return in.callScriptFunction(o.Script, o.Receiver, args), nil
		}
		if in.vm == nil {
			return Nil, NewError("compiled method called with no VM attached", 0, 0)
		}
		return in.vm.CallValue(callee, args)
	default:
		return Nil, NotCallableError(0, 0)
	}
}

// callMethod invokes a resolved method on recv, binding `this` in a
// fresh child environment of the method's declaring scope (the global
// environment, since classes are only ever declared at top level).
func (in *Interpreter) callMethod(recv Value, method *ScriptFunction, args []Value) Value {
	env := NewEnvironment(method.Env)
	env.DeclareVar("this", recv, true)
	return in.invoke(method, env, args)
}

func (in *Interpreter) callScriptFunction(fn *ScriptFunction, this Value, args []Value) Value {
	env := NewEnvironment(fn.Env)
	if !this.IsNil() {
		env.DeclareVar("this", this, true)
	}
	return in.invoke(fn, env, args)
}

func (in *Interpreter) invoke(fn *ScriptFunction, env *Environment, args []Value) (result Value) {
	decl := fn.Decl.(*ast.FunctionDeclaration)
	for i, p := range fn.Params {
		var v Value = Nil
		if i < len(args) {
			v = args[i]
		}
		env.DeclareVar(p, v, false)
	}
	defer func() {
		if r := recover(); r != nil {
			if rs, ok := r.(returnSignal); ok {
				result = rs.value
				return
			}
			panic(r)
		}
	}()
	in.execBlock(decl.Body, env)
	return Nil
}

// Eval runs a parsed program's statements against the interpreter's
// global environment, used by --interpret mode.
func (in *Interpreter) Eval(prog *ast.Program) (val Value, rerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(thrownError); ok {
				rerr = te.err
				return
			}
			panic(r)
		}
	}()
	var last Value = Nil
	for _, stmt := range prog.Body {
		last = in.execStmt(stmt, in.globals)
	}
	return last, nil
}

// ExecTopLevel runs a single top-level statement against the globals
// environment. This is the compiler's escape hatch for AST shapes it
// doesn't lower to bytecode (class declarations, try/catch): the
// compiler wraps stmt in an ephemeral Callable and emits a Call at the
// point the statement appears in program order, so the VM's native
// bridge reaches here instead of the compiler inventing bytecode for
// constructs that are always supposed to run interpreted.
func (in *Interpreter) ExecTopLevel(stmt ast.Stmt) (val Value, rerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(thrownError); ok {
				rerr = te.err
				return
			}
			panic(r)
		}
	}()
	return in.execStmt(stmt, in.globals), nil
}

func (in *Interpreter) execBlock(block *ast.BlockStatement, env *Environment) Value {
	scope := NewEnvironment(env)
	var last Value = Nil
	for _, stmt := range block.Statements {
		last = in.execStmt(stmt, scope)
	}
	return last
}

func (in *Interpreter) execStmt(stmt ast.Stmt, env *Environment) Value {
	switch s := stmt.(type) {
	case *ast.VarDeclaration:
		var v Value = Nil
		if s.Value != nil {
			v = in.evalExpr(s.Value, env)
		}
		if _, err := env.DeclareVar(s.Identifier, v, s.Constant); err != nil {
			line, _ := s.Pos()
			panic(thrownError{TypeError(err.Error(), line, 0)})
		}
		return v

	case *ast.FunctionDeclaration:
		fn := AllocScriptFunction(s.Name, s, s.Params, env)
		env.DeclareVar(s.Name, fn, false)
		return fn

	case *ast.ClassDeclaration:
		in.execClassDeclaration(s, env)
		return Nil

	case *ast.ReturnStatement:
		var v Value = Nil
		if s.Value != nil {
			v = in.evalExpr(s.Value, env)
		}
		panic(returnSignal{v})

	case *ast.BreakStatement:
		panic(breakSignal{})
	case *ast.ContinueStatement:
		panic(continueSignal{})

	case *ast.PrintStatement:
		v := in.evalExpr(s.Value, env)
		fmt.Println(Sprint(v))
		return v

	case *ast.BlockStatement:
		return in.execBlock(s, env)

	case *ast.IfStatement:
		if in.evalExpr(s.Condition, env).IsTruthy() {
			return in.execBlock(s.Consequence, env)
		} else if s.Alternative != nil {
			return in.execBlock(s.Alternative, env)
		}
		return Nil

	case *ast.WhileStatement:
		for in.evalExpr(s.Condition, env).IsTruthy() {
			if in.runLoopBody(s.Body, env) {
				break
			}
		}
		return Nil

	case *ast.ForStatement:
		loopEnv := NewEnvironment(env)
		if s.Init != nil {
			in.execStmt(s.Init, loopEnv)
		}
		for s.Condition == nil || in.evalExpr(s.Condition, loopEnv).IsTruthy() {
			if in.runLoopBody(s.Body, loopEnv) {
				break
			}
			if s.Step != nil {
				in.execStmt(s.Step, loopEnv)
			}
		}
		return Nil

	case *ast.TryStatement:
		return in.execTry(s, env)

	case *ast.ImportStatement:
		mod, err := loadBuiltinModule(s.Path)
		if err != nil {
			line, _ := s.Pos()
			panic(thrownError{NewCodedError(EUndefinedVariable, err.Error(), line, 0)})
		}
		name := s.Alias
		if name == "" {
			name = s.Path
		}
		env.DeclareVar(name, mod, false)
		return mod

	default:
		if expr, ok := stmt.(ast.Expr); ok {
			return in.evalExpr(expr, env)
		}
		return Nil
	}
}

// runLoopBody executes a loop body, absorbing a continueSignal and
// reporting whether a breakSignal asked the loop to stop.
func (in *Interpreter) runLoopBody(body *ast.BlockStatement, env *Environment) (brk bool) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case breakSignal:
				brk = true
			case continueSignal:
			default:
				panic(r)
			}
		}
	}()
	in.execBlock(body, env)
	return false
}

func (in *Interpreter) execTry(s *ast.TryStatement, env *Environment) (result Value) {
	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(thrownError)
			if !ok {
				panic(r)
			}
			catchEnv := NewEnvironment(env)
			if s.ErrorVar != "" {
				catchEnv.DeclareVar(s.ErrorVar, Intern(te.err.Error()), false)
			}
			result = in.execBlock(s.CatchBlock, catchEnv)
		}
	}()
	return in.execBlock(s.TryBlock, env)
}

func (in *Interpreter) execClassDeclaration(s *ast.ClassDeclaration, env *Environment) {
	var super *Class
	if s.Superclass != "" {
		sv, err := env.LookupVar(s.Superclass)
		if err != nil {
			line, _ := s.Pos()
			panic(thrownError{UndefinedVariableError(s.Superclass, line, 0)})
		}
		super, _ = heapObjectOf(sv).(*Class)
	}
	classV := AllocClass(s.Name, super)
	class := heapObjectOf(classV).(*Class)
	env.DeclareVar(s.Name, classV, false)
	if super != nil {
		for name, fn := range super.Methods {
			class.Methods[name] = fn
		}
		for name, sf := range super.scriptMethods() {
			class.scriptMethods()[name] = sf
		}
	}
	for _, m := range s.Methods {
		fnV := AllocScriptFunction(m.Name, m, m.Params, env)
		sf := heapObjectOf(fnV).(*ScriptFunction)
		// Methods are stored as VMFunction prototypes in Class.Methods
		// per the object model, but their body is always interpreted
		// (method dispatch only ever reaches here through the native
		// bridge); Chunk stays nil as the "interpreted, not compiled"
		// marker and invoke() is reached via scriptMethods, not Chunk
		// execution.
		class.Methods[m.Name] = &VMFunction{Name: m.Name, Arity: len(m.Params)}
		class.scriptMethods()[m.Name] = sf
	}
}

func (in *Interpreter) evalExpr(expr ast.Expr, env *Environment) Value {
	switch e := expr.(type) {
	case *ast.NumericLiteral:
		return Number(e.Value)
	case *ast.StringLiteral:
		return Intern(e.Value)
	case *ast.BooleanLiteral:
		return Bool(e.Value)
	case *ast.NilLiteral:
		return Nil
	case *ast.ThisExpr:
		v, err := env.LookupVar("this")
		if err != nil {
			line, _ := e.Pos()
			panic(thrownError{NewError("'this' used outside a method", line, 0)})
		}
		return v
	case *ast.Identifier:
		v, err := env.LookupVar(e.Symbol)
		if err != nil {
			panic(thrownError{UndefinedVariableError(e.Symbol, e.Line, e.Col)})
		}
		return v
	case *ast.ArrayLiteral:
		elems := make([]Value, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = in.evalExpr(el, env)
		}
		return AllocArray(elems)
	case *ast.MapLiteral:
		mv := AllocHashMap()
		m := heapObjectOf(mv).(*HashMap)
		for _, p := range e.Properties {
			key := in.propertyKey(p.Key, env)
			m.Set(key, in.evalExpr(p.Value, env))
		}
		return mv
	case *ast.UnaryExpr:
		return in.evalUnary(e, env)
	case *ast.BinaryExpr:
		return in.evalBinary(e, env)
	case *ast.LogicalExpr:
		return in.evalLogical(e, env)
	case *ast.TernaryExpr:
		if in.evalExpr(e.Condition, env).IsTruthy() {
			return in.evalExpr(e.Then, env)
		}
		return in.evalExpr(e.Else, env)
	case *ast.AssignmentExpr:
		return in.evalAssignment(e, env)
	case *ast.CompoundAssignExpr:
		return in.evalCompoundAssignment(e, env)
	case *ast.UpdateExpr:
		return in.evalUpdate(e, env)
	case *ast.MemberExpr:
		obj := in.evalExpr(e.Object, env)
		return in.getMember(obj, e.Property.Symbol, e.Line)
	case *ast.IndexExpr:
		obj := in.evalExpr(e.Object, env)
		idx := in.evalExpr(e.Index, env)
		return in.getIndex(obj, idx, e.Line)
	case *ast.SuperExpr:
		return in.evalSuper(e, env)
	case *ast.CallExpr:
		return in.evalCall(e, env)
	case *ast.FunctionExpr:
		return AllocScriptFunction(e.Decl.Name, e.Decl, e.Decl.Params, env)
	default:
		panic(thrownError{NewError(fmt.Sprintf("cannot evaluate %s", expr.Kind()), e.Line, e.Col)})
	}
}

func (in *Interpreter) propertyKey(key ast.Expr, env *Environment) string {
	if id, ok := key.(*ast.Identifier); ok {
		return id.Symbol
	}
	return Sprint(in.evalExpr(key, env))
}

func (in *Interpreter) evalUnary(e *ast.UnaryExpr, env *Environment) Value {
	v := in.evalExpr(e.Operand, env)
	switch e.Operator {
	case "-":
		if !v.IsNumber() {
			panic(thrownError{TypeError("operand of '-' must be a number", e.Line, e.Col)})
		}
		return Number(-v.AsNumber())
	case "!":
		return Bool(!v.IsTruthy())
	default:
		panic(thrownError{NewError("unknown unary operator "+e.Operator, e.Line, e.Col)})
	}
}

func (in *Interpreter) evalLogical(e *ast.LogicalExpr, env *Environment) Value {
	left := in.evalExpr(e.Left, env)
	switch e.Operator {
	case "&&":
		if !left.IsTruthy() {
			return left
		}
		return in.evalExpr(e.Right, env)
	case "||":
		if left.IsTruthy() {
			return left
		}
		return in.evalExpr(e.Right, env)
	default:
		panic(thrownError{NewError("unknown logical operator "+e.Operator, e.Line, e.Col)})
	}
}

func (in *Interpreter) evalBinary(e *ast.BinaryExpr, env *Environment) Value {
	a := in.evalExpr(e.Left, env)
	b := in.evalExpr(e.Right, env)
	return evalBinaryOp(e.Operator, a, b, e.Line, e.Col)
}

// evalBinaryOp is shared with the compound-assignment fast path so
// `x += y` and `x + y` agree on overload resolution exactly.
func evalBinaryOp(operator string, a, b Value, line, col int) Value {
	switch operator {
	case "+":
		if a.IsNumber() && b.IsNumber() {
			return Number(a.AsNumber() + b.AsNumber())
		}
		if a.IsString() || b.IsString() {
			return Intern(Sprint(a) + Sprint(b))
		}
		panic(thrownError{TypeError("operands of '+' must be numbers or strings", line, col)})
	case "==":
		return Bool(Equal(a, b))
	case "!=":
		return Bool(!Equal(a, b))
	}
	if !a.IsNumber() || !b.IsNumber() {
		panic(thrownError{TypeError(fmt.Sprintf("operands of '%s' must be numbers", operator), line, col)})
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch operator {
	case "-":
		return Number(x - y)
	case "*":
		return Number(x * y)
	case "/":
		if y == 0 {
			panic(thrownError{DivisionByZeroError(line, col)})
		}
		return Number(x / y)
	case "%":
		if y == 0 {
			panic(thrownError{DivisionByZeroError(line, col)})
		}
		return Number(float64(int64(x) % int64(y)))
	case "<":
		return Bool(x < y)
	case "<=":
		return Bool(x <= y)
	case ">":
		return Bool(x > y)
	case ">=":
		return Bool(x >= y)
	case "&":
		return Number(float64(int64(x) & int64(y)))
	case "|":
		return Number(float64(int64(x) | int64(y)))
	case "^":
		return Number(float64(int64(x) ^ int64(y)))
	case "<<":
		return Number(float64(int64(x) << uint64(y)))
	case ">>":
		return Number(float64(int64(x) >> uint64(y)))
	default:
		panic(thrownError{NewError("unknown binary operator "+operator, line, col)})
	}
}

func (in *Interpreter) evalAssignment(e *ast.AssignmentExpr, env *Environment) Value {
	v := in.evalExpr(e.Value, env)
	in.resolveTarget(e.Assignee, env).set(v)
	return v
}

func (in *Interpreter) evalCompoundAssignment(e *ast.CompoundAssignExpr, env *Environment) Value {
	ref := in.resolveTarget(e.Assignee, env)
	cur := ref.get()
	rhs := in.evalExpr(e.Value, env)
	op := e.Operator[:len(e.Operator)-1] // strip trailing '='
	result := evalBinaryOp(op, cur, rhs, e.Line, e.Col)
	ref.set(result)
	return result
}

func (in *Interpreter) evalUpdate(e *ast.UpdateExpr, env *Environment) Value {
	ref := in.resolveTarget(e.Operand, env)
	cur := ref.get()
	if !cur.IsNumber() {
		panic(thrownError{TypeError("++/-- require a number", e.Line, e.Col)})
	}
	delta := 1.0
	if e.Operator == "--" {
		delta = -1.0
	}
	updated := Number(cur.AsNumber() + delta)
	ref.set(updated)
	if e.Prefix {
		return updated
	}
	return cur
}

// targetRef is a resolved assignment target: its object/index
// sub-expressions are evaluated exactly once, up front, and shared by
// both the get and the set so compound assignment and increment/decrement
// never run a target expression with side effects (e.g.
// `this.counters[this.advance()] += 1`) twice.
type targetRef struct {
	get func() Value
	set func(Value)
}

func (in *Interpreter) resolveTarget(target ast.Expr, env *Environment) targetRef {
	switch t := target.(type) {
	case *ast.Identifier:
		return targetRef{
			get: func() Value {
				v, err := env.LookupVar(t.Symbol)
				if err != nil {
					panic(thrownError{UndefinedVariableError(t.Symbol, t.Line, t.Col)})
				}
				return v
			},
			set: func(v Value) {
				if _, err := env.AssignVar(t.Symbol, v); err != nil {
					panic(thrownError{UndefinedVariableError(t.Symbol, t.Line, t.Col)})
				}
			},
		}
	case *ast.MemberExpr:
		obj := in.evalExpr(t.Object, env)
		return targetRef{
			get: func() Value { return in.getMember(obj, t.Property.Symbol, t.Line) },
			set: func(v Value) { in.setMember(obj, t.Property.Symbol, v, t.Line) },
		}
	case *ast.IndexExpr:
		obj := in.evalExpr(t.Object, env)
		idx := in.evalExpr(t.Index, env)
		return targetRef{
			get: func() Value { return in.getIndex(obj, idx, t.Line) },
			set: func(v Value) { in.setIndex(obj, idx, v, t.Line) },
		}
	default:
		line, col := target.Pos()
		panic(thrownError{NewError("invalid assignment target", line, col)})
	}
}

func (in *Interpreter) getMember(obj Value, name string, line int) Value {
	if !obj.IsHeapObject() {
		panic(thrownError{NotIndexableError(line, 0)})
	}
	switch o := heapObjectOf(obj).(type) {
	case *Instance:
		if v, ok := o.Get(name); ok {
			return v
		}
		if sf, ok := o.Class.scriptMethods()[name]; ok {
			return AllocBoundMethod(obj, nil, sf)
		}
		if fn, ok := o.Class.Resolve(name); ok {
			return AllocBoundMethod(obj, fn, nil)
		}
		panic(thrownError{UndefinedVariableError(name, line, 0)})
	case *HashMap:
		if v, ok := o.Get(name); ok {
			return v
		}
		return Nil
	default:
		panic(thrownError{NotIndexableError(line, 0)})
	}
}

func (in *Interpreter) setMember(obj Value, name string, v Value, line int) {
	if !obj.IsHeapObject() {
		panic(thrownError{NotIndexableError(line, 0)})
	}
	switch o := heapObjectOf(obj).(type) {
	case *Instance:
		o.Set(name, v)
		WriteBarrier(obj, v)
	case *HashMap:
		o.Set(name, v)
		WriteBarrier(obj, v)
	default:
		panic(thrownError{NotIndexableError(line, 0)})
	}
}

func (in *Interpreter) getIndex(obj, index Value, line int) Value {
	if !obj.IsHeapObject() {
		panic(thrownError{NotIndexableError(line, 0)})
	}
	switch o := heapObjectOf(obj).(type) {
	case *Array:
		if !index.IsNumber() {
			panic(thrownError{TypeError("array index must be a number", line, 0)})
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(o.Elements) {
			panic(thrownError{IndexOutOfBoundsError(line, 0)})
		}
		return o.Elements[i]
	case *HashMap:
		if v, ok := o.Get(Sprint(index)); ok {
			return v
		}
		return Nil
	default:
		panic(thrownError{NotIndexableError(line, 0)})
	}
}

func (in *Interpreter) setIndex(obj, index, v Value, line int) {
	if !obj.IsHeapObject() {
		panic(thrownError{NotIndexableError(line, 0)})
	}
	switch o := heapObjectOf(obj).(type) {
	case *Array:
		if !index.IsNumber() {
			panic(thrownError{TypeError("array index must be a number", line, 0)})
		}
		i := int(index.AsNumber())
		if i < 0 || i >= len(o.Elements) {
			panic(thrownError{IndexOutOfBoundsError(line, 0)})
		}
		o.Elements[i] = v
		WriteBarrier(obj, v)
	case *HashMap:
		o.Set(Sprint(index), v)
		WriteBarrier(obj, v)
	default:
		panic(thrownError{NotIndexableError(line, 0)})
	}
}

func (in *Interpreter) evalSuper(e *ast.SuperExpr, env *Environment) Value {
	thisV, err := env.LookupVar("this")
	if err != nil {
		panic(thrownError{NewError("'super' used outside a method", e.Line, e.Col)})
	}
	inst, ok := heapObjectOf(thisV).(*Instance)
	if !ok || inst.Class.Superclass == nil {
		panic(thrownError{NewError("'super' has no superclass here", e.Line, e.Col)})
	}
	sf, ok := inst.Class.Superclass.scriptMethods()[e.Method.Symbol]
	if !ok {
		panic(thrownError{UndefinedVariableError(e.Method.Symbol, e.Line, e.Col)})
	}
	return AllocScriptFunction(sf.Name, sf.Decl, sf.Params, sf.Env)
}

func (in *Interpreter) evalCall(e *ast.CallExpr, env *Environment) Value {
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = in.evalExpr(a, env)
	}

	// A super.method(...) call or this.method(...) call must bind the
	// current `this`, so method calls are resolved by shape rather than
	// by evaluating the callee expression generically first.
	if mx, ok := e.Callee.(*ast.MemberExpr); ok {
		recv := in.evalExpr(mx.Object, env)
		return in.callMember(recv, mx.Property.Symbol, args, e.Line)
	}
	if _, ok := e.Callee.(*ast.SuperExpr); ok {
		fnVal := in.evalExpr(e.Callee, env)
		thisV, _ := env.LookupVar("this")
		sf := heapObjectOf(fnVal).(*ScriptFunction)
		return in.callScriptFunction(sf, thisV, args)
	}

	callee := in.evalExpr(e.Callee, env)
	return in.callValue(callee, args, e.Line)
}

func (in *Interpreter) callMember(recv Value, name string, args []Value, line int) Value {
	if recv.IsHeapObject() {
		if inst, ok := heapObjectOf(recv).(*Instance); ok {
			if sf, ok := inst.Class.scriptMethods()[name]; ok {
				return in.callScriptFunction(sf, recv, args)
			}
		}
	}
	member := in.getMember(recv, name, line)
	return in.callValue(member, args, line)
}

func (in *Interpreter) callValue(callee Value, args []Value, line int) Value {
	if !callee.IsHeapObject() {
		panic(thrownError{NotCallableError(line, 0)})
	}
	switch o := heapObjectOf(callee).(type) {
	case *ScriptFunction:
		return in.callScriptFunction(o, Nil, args)
	case *Callable:
		BeginEphemeral()
		v, err := o.Fn(args)
		EndEphemeral(v)
		if err != nil {
			panic(thrownError{err})
		}
		return v
	case *Class:
		instV := AllocInstance(o)
		if sf, ok := o.scriptMethods()["init"]; ok {
			in.callScriptFunction(sf, instV, args)
		} else if fn, ok := o.Resolve("init"); ok {
			if in.vm == nil {
				panic(thrownError{NewError("class with a compiled initializer called with no VM attached", line, 0)})
			}
			if _, err := in.vm.CallValue(AllocBoundMethod(instV, fn, nil), args); err != nil {
				panic(thrownError{err})
			}
		}
		return instV
	case *BoundMethod:
		if o.Script != nil {
			return in.callScriptFunction(o.Script, o.Receiver, args)
		}
		if in.vm == nil {
			panic(thrownError{NewError("compiled method called with no VM attached", line, 0)})
		}
		v, err := in.vm.CallValue(callee, args)
		if err != nil {
			panic(thrownError{err})
		}
		return v
	case *VMFunction, *VMClosure:
		if in.vm == nil {
			panic(thrownError{NewError("compiled function called with no VM attached", line, 0)})
		}
		v, err := in.vm.CallValue(callee, args)
		if err != nil {
			panic(thrownError{err})
		}
		return v
	default:
		panic(thrownError{NotCallableError(line, 0)})
	}
}
