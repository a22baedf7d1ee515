package runtime

import (
	"fmt"

	"claw/ast"
)

// Compiler lowers an ast.Program to a root VMFunction per the 3-step
// local/upvalue/global resolution: a name is first looked up among the
// current function's locals, then walked up through enclosing functions as
// an upvalue, and only then treated as a global. Two AST shapes are never
// lowered to bytecode at all — ast.ClassDeclaration and ast.TryStatement —
// because method dispatch and exception unwinding are defined entirely in
// terms of the tree-walking Interpreter (the native-call bridge boundary);
// the compiler instead wraps those statements in an ephemeral Callable and
// emits a Call at the point they occur, so the VM's own bridge mechanism
// (vm.go's default case in (*VM).call) runs them in program order without
// the compiler inventing a second execution model for them.
type Compiler struct {
	interp  *Interpreter
	current *funcScope
}

func NewCompiler() *Compiler { return &Compiler{} }

// AttachInterpreter wires the interpreter the compiler falls back to for
// class declarations and try/catch. cmd/clawc always sets this; a Compiler
// used without one fails only if the script actually contains one of those
// constructs.
func (c *Compiler) AttachInterpreter(in *Interpreter) { c.interp = in }

type localVar struct {
	name     string
	depth    int
	captured bool
}

type loopScope struct {
	depth         int
	breakJumps    []int
	continueJumps []int
}

// funcScope is the compile-time state for one function body (the program's
// top level counts as a function with arity 0). enclosing links to the
// scope compiling the function this one is nested inside, walked by
// resolveUpvalue per the 3-step resolution.
type funcScope struct {
	enclosing *funcScope
	chunk     *Chunk
	name      string
	arity     int
	isTop     bool

	locals     []localVar
	scopeDepth int
	upvalues   []UpvalueDesc

	loops []*loopScope
}

type compileError struct{ err *Error }

func (c *Compiler) fail(msg string, line, col int) {
	panic(compileError{NewCodedError(ESyntax, msg, line, col)})
}

// Compile produces the program's root VMFunction (arity 0, no upvalues).
func (c *Compiler) Compile(prog *ast.Program) (fn *VMFunction, rerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(compileError); ok {
				rerr = ce.err
				return
			}
			panic(r)
		}
	}()

	fs := &funcScope{chunk: NewChunk(), name: "<script>", isTop: true}
	c.current = fs
	for _, stmt := range prog.Body {
		c.compileStmt(stmt)
	}
	line, _ := prog.Pos()
	fs.chunk.EmitOp(OpNil, line)
	fs.chunk.EmitOp(OpReturn, line)

	return &VMFunction{Name: fs.name, Arity: 0, Chunk: fs.chunk, LocalsMax: len(fs.locals), Upvalues: fs.upvalues}, nil
}

// --- scope helpers ---

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope(line int) {
	fs := c.current
	fs.scopeDepth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		last := fs.locals[len(fs.locals)-1]
		if last.captured {
			fs.chunk.EmitOp(OpCloseUpvalue, line)
		} else {
			fs.chunk.EmitOp(OpPop, line)
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// declareLocal records name as occupying the next stack slot in the
// current function at the current scope depth; no bytecode is emitted
// because the value the declaration's initializer pushed already sits in
// that slot.
func (c *Compiler) declareLocal(name string, line int) {
	fs := c.current
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].depth < fs.scopeDepth {
			break
		}
		if fs.locals[i].name == name {
			c.fail(fmt.Sprintf("'%s' is already declared in this scope", name), line, 0)
		}
	}
	fs.locals = append(fs.locals, localVar{name: name, depth: fs.scopeDepth})
}

func resolveLocal(fs *funcScope, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

func addUpvalue(fs *funcScope, fromLocal bool, index int) int {
	for i, uv := range fs.upvalues {
		if uv.FromParentLocal == fromLocal && uv.Index == index {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, UpvalueDesc{FromParentLocal: fromLocal, Index: index})
	return len(fs.upvalues) - 1
}

func resolveUpvalue(fs *funcScope, name string) (int, bool) {
	if fs.enclosing == nil {
		return 0, false
	}
	if idx, ok := resolveLocal(fs.enclosing, name); ok {
		fs.enclosing.locals[idx].captured = true
		return addUpvalue(fs, true, idx), true
	}
	if idx, ok := resolveUpvalue(fs.enclosing, name); ok {
		return addUpvalue(fs, false, idx), true
	}
	return 0, false
}

func (c *Compiler) internConst(name string, line int) int {
	idx, err := c.current.chunk.AddConstant(Intern(name))
	if err != nil {
		c.fail(err.Error(), line, 0)
	}
	return idx
}

func (c *Compiler) emitVariableGet(name string, line int) {
	fs := c.current
	ch := fs.chunk
	if idx, ok := resolveLocal(fs, name); ok {
		ch.EmitOp(OpLoadLocal, line)
		ch.EmitByte(byte(idx), line)
		return
	}
	if idx, ok := resolveUpvalue(fs, name); ok {
		ch.EmitOp(OpLoadUpvalue, line)
		ch.EmitByte(byte(idx), line)
		return
	}
	nameIdx := c.internConst(name, line)
	ch.EmitOp(OpLoadGlobal, line)
	ch.EmitByte(byte(nameIdx), line)
}

// emitVariableSet stores the value already on top of the stack, leaving it
// there (Store{Local,Upvalue,Global} all peek rather than pop in vm.go).
func (c *Compiler) emitVariableSet(name string, line int) {
	fs := c.current
	ch := fs.chunk
	if idx, ok := resolveLocal(fs, name); ok {
		ch.EmitOp(OpStoreLocal, line)
		ch.EmitByte(byte(idx), line)
		return
	}
	if idx, ok := resolveUpvalue(fs, name); ok {
		ch.EmitOp(OpStoreUpvalue, line)
		ch.EmitByte(byte(idx), line)
		return
	}
	nameIdx := c.internConst(name, line)
	ch.EmitOp(OpStoreGlobal, line)
	ch.EmitByte(byte(nameIdx), line)
}

// --- jump helpers ---

func (c *Compiler) emitJump(op OpCode, line int) int {
	ch := c.current.chunk
	ch.EmitOp(op, line)
	return ch.EmitU16(0xFFFF, line)
}

func (c *Compiler) patchJump(at int) {
	ch := c.current.chunk
	target := ch.Len()
	ch.PatchU16(at, uint16(target-(at+2)))
}

func (c *Compiler) emitLoop(loopStart, line int) {
	ch := c.current.chunk
	ch.EmitOp(OpLoop, line)
	at := ch.EmitU16(0, line)
	ch.PatchU16(at, uint16((at+2)-loopStart))
	ch.LoopCount++
}

// --- statements ---

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDeclaration:
		c.compileVarDeclaration(s)
	case *ast.FunctionDeclaration:
		c.compileFunctionDeclaration(s)
	case *ast.ClassDeclaration:
		c.compileInterpreterFallback(s)
	case *ast.TryStatement:
		c.compileInterpreterFallback(s)
	case *ast.ReturnStatement:
		line, _ := s.Pos()
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.current.chunk.EmitOp(OpNil, line)
		}
		c.current.chunk.EmitOp(OpReturn, line)
	case *ast.BreakStatement:
		c.compileBreak(s)
	case *ast.ContinueStatement:
		c.compileContinue(s)
	case *ast.PrintStatement:
		line, _ := s.Pos()
		c.compileExpr(s.Value)
		c.current.chunk.EmitOp(OpPrint, line)
	case *ast.ImportStatement:
		c.compileImport(s)
	case *ast.BlockStatement:
		line, _ := s.Pos()
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStmt(inner)
		}
		c.endScope(line)
	case *ast.IfStatement:
		c.compileIf(s)
	case *ast.WhileStatement:
		c.compileWhile(s)
	case *ast.ForStatement:
		c.compileFor(s)
	default:
		if expr, ok := stmt.(ast.Expr); ok {
			c.compileExprStatement(expr)
			return
		}
		line, _ := stmt.Pos()
		c.fail(fmt.Sprintf("cannot compile statement of kind %s", stmt.Kind()), line, 0)
	}
}

// compileExprStatement compiles an expression whose value is discarded,
// using the Increment/DecrementLocal peephole for a bare `x++`/`x--` on a
// local (those opcodes mutate the slot in place and push nothing, so no
// trailing Pop is needed).
func (c *Compiler) compileExprStatement(expr ast.Expr) {
	line, _ := expr.Pos()
	if u, ok := expr.(*ast.UpdateExpr); ok {
		if id, ok := u.Operand.(*ast.Identifier); ok {
			if slot, ok := resolveLocal(c.current, id.Symbol); ok {
				op := OpIncrementLocal
				if u.Operator == "--" {
					op = OpDecrementLocal
				}
				c.current.chunk.EmitOp(op, line)
				c.current.chunk.EmitByte(byte(slot), line)
				return
			}
		}
	}
	c.compileExpr(expr)
	c.current.chunk.EmitOp(OpPop, line)
}

func (c *Compiler) compileVarDeclaration(s *ast.VarDeclaration) {
	line, _ := s.Pos()
	c.compileExpr(s.Value)
	if c.current.isTop {
		idx := c.internConst(s.Identifier, line)
		c.current.chunk.EmitOp(OpDefineGlobal, line)
		c.current.chunk.EmitByte(byte(idx), line)
		return
	}
	c.declareLocal(s.Identifier, line)
}

// compileFunctionDeclaration compiles decl's body in a fresh funcScope,
// allocates the resulting prototype into the enclosing chunk's constant
// pool, and emits OpClosure to bind it at the declaration site.
func (c *Compiler) compileFunctionDeclaration(decl *ast.FunctionDeclaration) {
	line, _ := decl.Pos()
	proto, upvalues := c.compileFunctionBody(decl)
	fnVal := AllocFunction(proto)
	idx, err := c.current.chunk.AddConstant(fnVal)
	if err != nil {
		c.fail(err.Error(), line, 0)
	}
	ch := c.current.chunk
	ch.EmitOp(OpClosure, line)
	ch.EmitByte(byte(idx), line)
	ch.EmitByte(byte(len(upvalues)), line)
	for _, uv := range upvalues {
		if uv.FromParentLocal {
			ch.EmitByte(1, line)
		} else {
			ch.EmitByte(0, line)
		}
		ch.EmitByte(byte(uv.Index), line)
	}

	if decl.Name == "" {
		return // anonymous function expression; caller consumes the pushed closure
	}
	if c.current.isTop {
		nameIdx := c.internConst(decl.Name, line)
		ch.EmitOp(OpDefineGlobal, line)
		ch.EmitByte(byte(nameIdx), line)
		return
	}
	c.declareLocal(decl.Name, line)
}

// compileFunctionBody compiles decl into a standalone VMFunction prototype,
// returning it together with the upvalue descriptors resolved against the
// (now former) current scope.
func (c *Compiler) compileFunctionBody(decl *ast.FunctionDeclaration) (*VMFunction, []UpvalueDesc) {
	line, _ := decl.Pos()
	fs := &funcScope{enclosing: c.current, chunk: NewChunk(), name: decl.Name, arity: len(decl.Params)}
	c.current = fs
	for _, p := range decl.Params {
		fs.locals = append(fs.locals, localVar{name: p, depth: 0})
	}
	for _, inner := range decl.Body.Statements {
		c.compileStmt(inner)
	}
	fs.chunk.EmitOp(OpNil, line)
	fs.chunk.EmitOp(OpReturn, line)
	c.current = fs.enclosing

	proto := &VMFunction{Name: fs.name, Arity: fs.arity, Chunk: fs.chunk, LocalsMax: len(fs.locals), Upvalues: fs.upvalues}
	return proto, fs.upvalues
}

func (c *Compiler) compileBreak(s *ast.BreakStatement) {
	line, _ := s.Pos()
	fs := c.current
	if len(fs.loops) == 0 {
		c.fail("'break' outside a loop", line, 0)
	}
	loop := fs.loops[len(fs.loops)-1]
	c.emitScopeCleanup(loop.depth, line)
	loop.breakJumps = append(loop.breakJumps, c.emitJump(OpJump, line))
}

func (c *Compiler) compileContinue(s *ast.ContinueStatement) {
	line, _ := s.Pos()
	fs := c.current
	if len(fs.loops) == 0 {
		c.fail("'continue' outside a loop", line, 0)
	}
	loop := fs.loops[len(fs.loops)-1]
	c.emitScopeCleanup(loop.depth, line)
	loop.continueJumps = append(loop.continueJumps, c.emitJump(OpJump, line))
}

// emitScopeCleanup pops (or closes) every local declared deeper than
// targetDepth without removing them from the compile-time locals list,
// since the structural end-of-scope still runs on the fall-through path.
func (c *Compiler) emitScopeCleanup(targetDepth, line int) {
	fs := c.current
	for i := len(fs.locals) - 1; i >= 0 && fs.locals[i].depth > targetDepth; i-- {
		if fs.locals[i].captured {
			fs.chunk.EmitOp(OpCloseUpvalue, line)
		} else {
			fs.chunk.EmitOp(OpPop, line)
		}
	}
}

func (c *Compiler) compileImport(s *ast.ImportStatement) {
	line, _ := s.Pos()
	ch := c.current.chunk
	pathIdx, err := ch.AddConstant(Intern(s.Path))
	if err != nil {
		c.fail(err.Error(), line, 0)
	}
	ch.EmitOp(OpImport, line)
	ch.EmitByte(byte(pathIdx), line)

	name := s.Alias
	if name == "" {
		name = s.Path
	}
	if c.current.isTop {
		nameIdx := c.internConst(name, line)
		ch.EmitOp(OpDefineGlobal, line)
		ch.EmitByte(byte(nameIdx), line)
		return
	}
	c.declareLocal(name, line)
}

func (c *Compiler) compileIf(s *ast.IfStatement) {
	line, _ := s.Pos()
	c.compileExpr(s.Condition)
	elseJump := c.emitJump(OpJumpIfFalse, line)
	c.current.chunk.EmitOp(OpPop, line)
	c.compileStmt(s.Consequence)

	endJump := c.emitJump(OpJump, line)
	c.patchJump(elseJump)
	c.current.chunk.EmitOp(OpPop, line)
	if s.Alternative != nil {
		c.compileStmt(s.Alternative)
	}
	c.patchJump(endJump)
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) {
	line, _ := s.Pos()
	fs := c.current
	loopStart := fs.chunk.Len()
	loop := &loopScope{depth: fs.scopeDepth}
	fs.loops = append(fs.loops, loop)

	c.compileExpr(s.Condition)
	exitJump := c.emitJump(OpJumpIfFalse, line)
	fs.chunk.EmitOp(OpPop, line)
	c.compileStmt(s.Body)

	for _, at := range loop.continueJumps {
		c.patchJump(at)
	}
	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	fs.chunk.EmitOp(OpPop, line)
	for _, at := range loop.breakJumps {
		c.patchJump(at)
	}
	fs.loops = fs.loops[:len(fs.loops)-1]
}

// compileFor lowers a C-style for loop. continue must resume at the step,
// not the condition, so the step's jump target is the loop-back point;
// continue jumps land right before the step is compiled.
func (c *Compiler) compileFor(s *ast.ForStatement) {
	line, _ := s.Pos()
	fs := c.current
	c.beginScope()
	if s.Init != nil {
		c.compileStmt(s.Init)
	}

	conditionStart := fs.chunk.Len()
	var exitJump int
	hasExit := s.Condition != nil
	if hasExit {
		c.compileExpr(s.Condition)
		exitJump = c.emitJump(OpJumpIfFalse, line)
		fs.chunk.EmitOp(OpPop, line)
	}

	bodyJump := c.emitJump(OpJump, line)
	stepStart := fs.chunk.Len()
	if s.Step != nil {
		if expr, ok := s.Step.(ast.Expr); ok {
			c.compileExprStatement(expr)
		} else {
			c.compileStmt(s.Step)
		}
	}
	c.emitLoop(conditionStart, line)
	c.patchJump(bodyJump)

	loop := &loopScope{depth: fs.scopeDepth}
	fs.loops = append(fs.loops, loop)
	c.compileStmt(s.Body)
	for _, at := range loop.continueJumps {
		c.patchJump(at)
	}
	c.emitLoop(stepStart, line)
	fs.loops = fs.loops[:len(fs.loops)-1]

	if hasExit {
		c.patchJump(exitJump)
		fs.chunk.EmitOp(OpPop, line)
	}
	for _, at := range loop.breakJumps {
		c.patchJump(at)
	}
	c.endScope(line)
}

// compileInterpreterFallback wraps stmt (a ClassDeclaration or
// TryStatement) in a zero-arity Callable that runs it against the
// interpreter's globals, then emits the Constant+Call+Pop sequence that
// invokes it immediately, at the point it appears in the instruction
// stream. This is restricted to the program's top level: the fallback
// always executes against globals, which is also the only environment a
// class declaration or top-level try/catch should ever need.
func (c *Compiler) compileInterpreterFallback(stmt ast.Stmt) {
	line, _ := stmt.Pos()
	if !c.current.isTop {
		c.fail(fmt.Sprintf("%s is only supported at top level", stmt.Kind()), line, 0)
	}
	interp := c.interp
	fn := func(args []Value) (Value, *Error) {
		if interp == nil {
			return Nil, NewError("no interpreter attached to run this construct", line, 0)
		}
		return interp.ExecTopLevel(stmt)
	}
	callableVal := AllocCallable("<fallback>", 0, fn)
	ch := c.current.chunk
	idx, err := ch.AddConstant(callableVal)
	if err != nil {
		c.fail(err.Error(), line, 0)
	}
	ch.EmitOp(OpConstant, line)
	ch.EmitByte(byte(idx), line)
	ch.EmitOp(OpCall, line)
	ch.EmitByte(0, line)
	ch.EmitOp(OpPop, line)
}

// --- expressions ---

func (c *Compiler) compileExpr(expr ast.Expr) {
	line, _ := expr.Pos()
	ch := c.current.chunk
	switch e := expr.(type) {
	case *ast.NumericLiteral:
		idx, err := ch.AddConstant(Number(e.Value))
		if err != nil {
			c.fail(err.Error(), line, 0)
		}
		ch.EmitOp(OpConstant, line)
		ch.EmitByte(byte(idx), line)
	case *ast.StringLiteral:
		idx, err := ch.AddConstant(Intern(e.Value))
		if err != nil {
			c.fail(err.Error(), line, 0)
		}
		ch.EmitOp(OpConstant, line)
		ch.EmitByte(byte(idx), line)
	case *ast.BooleanLiteral:
		if e.Value {
			ch.EmitOp(OpTrue, line)
		} else {
			ch.EmitOp(OpFalse, line)
		}
	case *ast.NilLiteral:
		ch.EmitOp(OpNil, line)
	case *ast.Identifier:
		c.emitVariableGet(e.Symbol, line)
	case *ast.UnaryExpr:
		c.compileExpr(e.Operand)
		switch e.Operator {
		case "-":
			ch.EmitOp(OpNeg, line)
		case "!":
			ch.EmitOp(OpNot, line)
		default:
			c.fail("unknown unary operator '"+e.Operator+"'", line, 0)
		}
	case *ast.BinaryExpr:
		c.compileExpr(e.Left)
		c.compileExpr(e.Right)
		c.emitBinaryOp(e.Operator, line)
	case *ast.LogicalExpr:
		c.compileLogical(e)
	case *ast.TernaryExpr:
		c.compileTernary(e)
	case *ast.AssignmentExpr:
		c.compileAssignment(e.Assignee, e.Value)
	case *ast.CompoundAssignExpr:
		c.compileCompoundAssign(e)
	case *ast.UpdateExpr:
		c.compileUpdate(e)
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			c.compileExpr(el)
		}
		ch.EmitOp(OpNewArray, line)
		ch.EmitU16(uint16(len(e.Elements)), line)
	case *ast.MapLiteral:
		for _, prop := range e.Properties {
			c.compileMapKey(prop.Key, line)
			c.compileExpr(prop.Value)
		}
		ch.EmitOp(OpNewHashMap, line)
		ch.EmitU16(uint16(len(e.Properties)), line)
	case *ast.MemberExpr:
		c.compileExpr(e.Object)
		nameIdx := c.internConst(e.Property.Symbol, line)
		ch.EmitOp(OpGetProperty, line)
		ch.EmitByte(byte(nameIdx), line)
	case *ast.IndexExpr:
		c.compileExpr(e.Object)
		c.compileExpr(e.Index)
		ch.EmitOp(OpGetIndex, line)
	case *ast.CallExpr:
		c.compileExpr(e.Callee)
		for _, arg := range e.Args {
			c.compileExpr(arg)
		}
		ch.EmitOp(OpCall, line)
		ch.EmitByte(byte(len(e.Args)), line)
	case *ast.FunctionExpr:
		c.compileFunctionDeclaration(e.Decl)
	default:
		c.fail(fmt.Sprintf("cannot compile expression of kind %s", expr.Kind()), line, 0)
	}
}

// compileMapKey pushes a map literal key: identifier keys intern their
// bare name as a string constant rather than being resolved as variables.
func (c *Compiler) compileMapKey(key ast.Expr, line int) {
	if id, ok := key.(*ast.Identifier); ok {
		idx, err := c.current.chunk.AddConstant(Intern(id.Symbol))
		if err != nil {
			c.fail(err.Error(), line, 0)
		}
		c.current.chunk.EmitOp(OpConstant, line)
		c.current.chunk.EmitByte(byte(idx), line)
		return
	}
	c.compileExpr(key)
}

var binaryOps = map[string]OpCode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"&": OpBitAnd, "|": OpBitOr, "^": OpBitXor, "<<": OpShl, ">>": OpShr,
	"==": OpEqual, "!=": OpNotEqual,
	"<": OpLess, "<=": OpLessEqual, ">": OpGreater, ">=": OpGreaterEqual,
}

func (c *Compiler) emitBinaryOp(operator string, line int) {
	op, ok := binaryOps[operator]
	if !ok {
		c.fail("unknown binary operator '"+operator+"'", line, 0)
	}
	c.current.chunk.EmitOp(op, line)
}

var operatorKinds = map[string]OperatorKind{
	"+=": OpKindAdd, "-=": OpKindSub, "*=": OpKindMul, "/=": OpKindDiv,
	"&=": OpKindBitAnd, "|=": OpKindBitOr, "^=": OpKindBitXor,
	"<<=": OpKindShl, ">>=": OpKindShr,
}

func (c *Compiler) compileLogical(e *ast.LogicalExpr) {
	line, _ := e.Pos()
	ch := c.current.chunk
	c.compileExpr(e.Left)
	if e.Operator == "&&" {
		end := c.emitJump(OpJumpIfFalse, line)
		ch.EmitOp(OpPop, line)
		c.compileExpr(e.Right)
		c.patchJump(end)
		return
	}
	// ||: short-circuit by jumping past the right side when left is truthy.
	elseJump := c.emitJump(OpJumpIfFalse, line)
	endJump := c.emitJump(OpJump, line)
	c.patchJump(elseJump)
	ch.EmitOp(OpPop, line)
	c.compileExpr(e.Right)
	c.patchJump(endJump)
}

func (c *Compiler) compileTernary(e *ast.TernaryExpr) {
	line, _ := e.Pos()
	ch := c.current.chunk
	c.compileExpr(e.Condition)
	elseJump := c.emitJump(OpJumpIfFalse, line)
	ch.EmitOp(OpPop, line)
	c.compileExpr(e.Then)
	endJump := c.emitJump(OpJump, line)
	c.patchJump(elseJump)
	ch.EmitOp(OpPop, line)
	c.compileExpr(e.Else)
	c.patchJump(endJump)
}

// compileAssignment evaluates value and stores it into target, leaving the
// stored value on the stack as the expression's result.
func (c *Compiler) compileAssignment(target ast.Expr, value ast.Expr) {
	line, _ := target.Pos()
	ch := c.current.chunk
	switch t := target.(type) {
	case *ast.Identifier:
		c.compileExpr(value)
		c.emitVariableSet(t.Symbol, line)
	case *ast.MemberExpr:
		c.compileExpr(t.Object)
		c.compileExpr(value)
		nameIdx := c.internConst(t.Property.Symbol, line)
		ch.EmitOp(OpSetProperty, line)
		ch.EmitByte(byte(nameIdx), line)
	case *ast.IndexExpr:
		c.compileExpr(t.Object)
		c.compileExpr(t.Index)
		c.compileExpr(value)
		ch.EmitOp(OpSetIndex, line)
	default:
		c.fail("invalid assignment target", line, 0)
	}
}

// compileCompoundAssign implements target OP= value. Identifier targets
// use a generic load/apply/store sequence; member/index targets use the
// Ensure{Property,Index}Default opcodes, which evaluate the target's
// object (and index) exactly once.
func (c *Compiler) compileCompoundAssign(e *ast.CompoundAssignExpr) {
	line, _ := e.Pos()
	ch := c.current.chunk
	kind, ok := operatorKinds[e.Operator]
	if !ok {
		c.fail("unknown compound-assignment operator '"+e.Operator+"'", line, 0)
	}

	switch t := e.Assignee.(type) {
	case *ast.Identifier:
		c.emitVariableGet(t.Symbol, line)
		c.compileExpr(e.Value)
		c.emitBinaryOp(e.Operator[:len(e.Operator)-1], line)
		c.emitVariableSet(t.Symbol, line)
	case *ast.MemberExpr:
		c.compileExpr(t.Object)
		c.compileExpr(e.Value)
		nameIdx := c.internConst(t.Property.Symbol, line)
		ch.EmitOp(OpEnsurePropertyDefault, line)
		ch.EmitByte(byte(nameIdx), line)
		ch.EmitByte(byte(kind), line)
	case *ast.IndexExpr:
		c.compileExpr(t.Object)
		c.compileExpr(t.Index)
		c.compileExpr(e.Value)
		ch.EmitOp(OpEnsureIndexDefault, line)
		ch.EmitByte(byte(kind), line)
	default:
		c.fail("invalid compound-assignment target", line, 0)
	}
}

// compileUpdate implements ++/--, scoped (SPEC_FULL.md §4) to plain locals
// and globals only: the local/global store opcodes only peek, so a postfix
// update stores [old+delta] then pops the extra copy, leaving old, and a
// prefix update leaves the stored new value directly. Property/index
// targets are rejected at compile time rather than compiled: doing so would
// require evaluating t.Object (and t.Index) twice — once to fetch the
// pre-update value, once to store the result — running any side effect in
// that sub-expression (e.g. `next().x++`) twice. original_source's own
// compiler (src/compiler/compiler.cpp's visitUpdateMemberExpr/
// visitUpdateIndexExpr) is a no-op stub for this case; this keeps that
// scope rather than silently miscompiling it.
func (c *Compiler) compileUpdate(e *ast.UpdateExpr) {
	line, _ := e.Pos()
	ch := c.current.chunk
	delta := 1.0
	if e.Operator == "--" {
		delta = -1.0
	}
	deltaIdx, err := ch.AddConstant(Number(delta))
	if err != nil {
		c.fail(err.Error(), line, 0)
	}
	emitDelta := func() {
		ch.EmitOp(OpConstant, line)
		ch.EmitByte(byte(deltaIdx), line)
	}

	switch t := e.Operand.(type) {
	case *ast.Identifier:
		c.emitVariableGet(t.Symbol, line)
		if !e.Prefix {
			ch.EmitOp(OpDup, line)
		}
		emitDelta()
		ch.EmitOp(OpAdd, line)
		c.emitVariableSet(t.Symbol, line)
		if !e.Prefix {
			ch.EmitOp(OpPop, line)
		}
	default:
		c.fail("'++'/'--' target must be a plain local or global variable, not a property or index expression", line, 0)
	}
}
