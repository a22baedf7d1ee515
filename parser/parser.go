// Package parser turns a claw token stream into an ast.Program using
// straightforward recursive-descent precedence climbing: assignment binds
// loosest, primary expressions tightest, with a dedicated call/member/index
// postfix loop in between.
package parser

import (
	"strconv"

	"claw/ast"
	"claw/lexer"
	"claw/runtime"
)

type Parser struct {
	tokens []lexer.Token
	pos    int
}

func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse tokenizes and parses source in one step, the entry point cmd/clawc
// calls for every input file.
func Parse(source string) (*ast.Program, *runtime.Error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, runtime.NewCodedError(runtime.ESyntax, err.Error(), 0, 0)
	}
	return New(tokens).ParseProgram()
}

func (p *Parser) ParseProgram() (prog *ast.Program, rerr *runtime.Error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*runtime.Error); ok {
				rerr = e
				return
			}
			panic(r)
		}
	}()
	line, col := 1, 1
	if len(p.tokens) > 0 {
		line, col = p.tokens[0].Line, p.tokens[0].Column
	}
	body := []ast.Stmt{}
	for !p.check(lexer.EOF) {
		body = append(body, p.statement())
	}
	return &ast.Program{Base: ast.Base{Line: line, Col: col}, Body: body}, nil
}

// --- token plumbing ---

func (p *Parser) peek() lexer.Token            { return p.tokens[p.pos] }
func (p *Parser) atEnd() bool                  { return p.peek().Type == lexer.EOF }
func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if !p.atEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	if !p.check(t) {
		tok := p.peek()
		p.fail("expected "+what+", found '"+tok.Value+"'", tok)
	}
	return p.advance()
}

func (p *Parser) fail(msg string, tok lexer.Token) {
	panic(runtime.NewCodedError(runtime.ESyntax, msg, tok.Line, tok.Column))
}

// consumeSemicolon is lenient: a trailing ';' is consumed when present but
// never required, so block-terminator tokens don't need look-behind.
func (p *Parser) consumeSemicolon() {
	if p.check(lexer.Semicolon) {
		p.advance()
	}
}

func base(tok lexer.Token) ast.Base { return ast.Base{Line: tok.Line, Col: tok.Column} }

// --- statements ---

func (p *Parser) statement() ast.Stmt {
	switch p.peek().Type {
	case lexer.Let, lexer.Var, lexer.Const:
		return p.varDeclaration()
	case lexer.Fn:
		return p.functionDeclaration()
	case lexer.Class:
		return p.classDeclaration()
	case lexer.If:
		return p.ifStatement()
	case lexer.While:
		return p.whileStatement()
	case lexer.For:
		return p.forStatement()
	case lexer.Return:
		return p.returnStatement()
	case lexer.Break:
		tok := p.advance()
		p.consumeSemicolon()
		return &ast.BreakStatement{Base: base(tok)}
	case lexer.Continue:
		tok := p.advance()
		p.consumeSemicolon()
		return &ast.ContinueStatement{Base: base(tok)}
	case lexer.Try:
		return p.tryStatement()
	case lexer.Print:
		return p.printStatement()
	case lexer.Import:
		return p.importStatement()
	case lexer.OpenBrace:
		return p.block()
	default:
		expr := p.expression()
		p.consumeSemicolon()
		return expr
	}
}

func (p *Parser) varDeclaration() ast.Stmt {
	kw := p.advance()
	name := p.expect(lexer.Identifier, "identifier").Value
	p.expect(lexer.Equals, "'='")
	value := p.expression()
	p.consumeSemicolon()
	return &ast.VarDeclaration{
		Base:       base(kw),
		Identifier: name,
		Value:      value,
		Constant:   kw.Type == lexer.Const,
	}
}

// functionRest parses the "(params) { body }" tail shared by function
// declarations and method declarations, the 'fn' keyword already consumed.
func (p *Parser) functionRest(nameTok lexer.Token, name string) *ast.FunctionDeclaration {
	p.expect(lexer.OpenParen, "'('")
	var params []string
	for !p.check(lexer.CloseParen) {
		params = append(params, p.expect(lexer.Identifier, "parameter name").Value)
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.CloseParen, "')'")
	body := p.block()
	return &ast.FunctionDeclaration{Base: base(nameTok), Name: name, Params: params, Body: body}
}

func (p *Parser) functionDeclaration() *ast.FunctionDeclaration {
	p.expect(lexer.Fn, "'fn'")
	nameTok := p.expect(lexer.Identifier, "function name")
	return p.functionRest(nameTok, nameTok.Value)
}

func (p *Parser) classDeclaration() ast.Stmt {
	kw := p.advance()
	name := p.expect(lexer.Identifier, "class name").Value
	var super string
	if p.match(lexer.Extends) {
		super = p.expect(lexer.Identifier, "superclass name").Value
	}
	p.expect(lexer.OpenBrace, "'{'")
	var methods []*ast.FunctionDeclaration
	for !p.check(lexer.CloseBrace) {
		p.expect(lexer.Fn, "method declaration")
		nameTok := p.expect(lexer.Identifier, "method name")
		methods = append(methods, p.functionRest(nameTok, nameTok.Value))
	}
	p.expect(lexer.CloseBrace, "'}'")
	return &ast.ClassDeclaration{Base: base(kw), Name: name, Superclass: super, Methods: methods}
}

func (p *Parser) block() *ast.BlockStatement {
	open := p.expect(lexer.OpenBrace, "'{'")
	var stmts []ast.Stmt
	for !p.check(lexer.CloseBrace) && !p.atEnd() {
		stmts = append(stmts, p.statement())
	}
	p.expect(lexer.CloseBrace, "'}'")
	return &ast.BlockStatement{Base: base(open), Statements: stmts}
}

func (p *Parser) ifStatement() ast.Stmt {
	kw := p.advance()
	p.expect(lexer.OpenParen, "'('")
	cond := p.expression()
	p.expect(lexer.CloseParen, "')'")
	then := p.block()
	var alt *ast.BlockStatement
	if p.match(lexer.Else) {
		if p.check(lexer.If) {
			nested := p.ifStatement().(*ast.IfStatement)
			alt = &ast.BlockStatement{Base: nested.Base, Statements: []ast.Stmt{nested}}
		} else {
			alt = p.block()
		}
	}
	return &ast.IfStatement{Base: base(kw), Condition: cond, Consequence: then, Alternative: alt}
}

func (p *Parser) whileStatement() ast.Stmt {
	kw := p.advance()
	p.expect(lexer.OpenParen, "'('")
	cond := p.expression()
	p.expect(lexer.CloseParen, "')'")
	body := p.block()
	return &ast.WhileStatement{Base: base(kw), Condition: cond, Body: body}
}

func (p *Parser) forStatement() ast.Stmt {
	kw := p.advance()
	p.expect(lexer.OpenParen, "'('")

	var init ast.Stmt
	if p.check(lexer.Semicolon) {
		p.expect(lexer.Semicolon, "';'")
	} else if p.check(lexer.Let) || p.check(lexer.Var) || p.check(lexer.Const) {
		init = p.varDeclaration()
	} else {
		init = p.expression()
		p.expect(lexer.Semicolon, "';'")
	}

	var cond ast.Expr
	if !p.check(lexer.Semicolon) {
		cond = p.expression()
	}
	p.expect(lexer.Semicolon, "';'")

	var step ast.Stmt
	if !p.check(lexer.CloseParen) {
		step = p.expression()
	}
	p.expect(lexer.CloseParen, "')'")

	body := p.block()
	return &ast.ForStatement{Base: base(kw), Init: init, Condition: cond, Step: step, Body: body}
}

func (p *Parser) returnStatement() ast.Stmt {
	kw := p.advance()
	var value ast.Expr
	if !p.check(lexer.Semicolon) && !p.check(lexer.CloseBrace) {
		value = p.expression()
	}
	p.consumeSemicolon()
	return &ast.ReturnStatement{Base: base(kw), Value: value}
}

func (p *Parser) tryStatement() ast.Stmt {
	kw := p.advance()
	tryBlock := p.block()
	p.expect(lexer.Catch, "'catch'")
	var errVar string
	if p.match(lexer.OpenParen) {
		errVar = p.expect(lexer.Identifier, "catch variable").Value
		p.expect(lexer.CloseParen, "')'")
	}
	catchBlock := p.block()
	return &ast.TryStatement{Base: base(kw), TryBlock: tryBlock, CatchBlock: catchBlock, ErrorVar: errVar}
}

func (p *Parser) printStatement() ast.Stmt {
	kw := p.advance()
	value := p.expression()
	p.consumeSemicolon()
	return &ast.PrintStatement{Base: base(kw), Value: value}
}

func (p *Parser) importStatement() ast.Stmt {
	kw := p.advance()
	pathTok := p.expect(lexer.String, "module path string")
	var alias string
	if p.match(lexer.As) {
		alias = p.expect(lexer.Identifier, "import alias").Value
	}
	p.consumeSemicolon()
	return &ast.ImportStatement{Base: base(kw), Path: pathTok.Value, Alias: alias}
}

// --- expressions ---

func (p *Parser) expression() ast.Expr { return p.assignment() }

var compoundOps = map[lexer.TokenType]string{
	lexer.PlusEq: "+=", lexer.MinusEq: "-=", lexer.StarEq: "*=", lexer.SlashEq: "/=",
	lexer.AmpEq: "&=", lexer.PipeEq: "|=", lexer.CaretEq: "^=", lexer.ShlEq: "<<=", lexer.ShrEq: ">>=",
}

func (p *Parser) assignment() ast.Expr {
	left := p.ternary()

	if p.check(lexer.Equals) {
		tok := p.advance()
		p.assertAssignable(left, tok)
		value := p.assignment()
		return &ast.AssignmentExpr{Base: base(tok), Assignee: left, Value: value}
	}

	if op, ok := compoundOps[p.peek().Type]; ok {
		tok := p.advance()
		p.assertAssignable(left, tok)
		value := p.assignment()
		return &ast.CompoundAssignExpr{Base: base(tok), Assignee: left, Operator: op, Value: value}
	}

	return left
}

func (p *Parser) assertAssignable(target ast.Expr, tok lexer.Token) {
	switch target.(type) {
	case *ast.Identifier, *ast.MemberExpr, *ast.IndexExpr:
		return
	default:
		p.fail("invalid assignment target", tok)
	}
}

func (p *Parser) ternary() ast.Expr {
	cond := p.logicalOr()
	if p.check(lexer.Question) {
		tok := p.advance()
		then := p.assignment()
		p.expect(lexer.Colon, "':'")
		els := p.assignment()
		return &ast.TernaryExpr{Base: base(tok), Condition: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) logicalOr() ast.Expr {
	left := p.logicalAnd()
	for p.check(lexer.OrOr) {
		tok := p.advance()
		right := p.logicalAnd()
		left = &ast.LogicalExpr{Base: base(tok), Left: left, Operator: "||", Right: right}
	}
	return left
}

func (p *Parser) logicalAnd() ast.Expr {
	left := p.bitOr()
	for p.check(lexer.AndAnd) {
		tok := p.advance()
		right := p.bitOr()
		left = &ast.LogicalExpr{Base: base(tok), Left: left, Operator: "&&", Right: right}
	}
	return left
}

func (p *Parser) bitOr() ast.Expr {
	left := p.bitXor()
	for p.check(lexer.Pipe) {
		tok := p.advance()
		right := p.bitXor()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: "|", Right: right}
	}
	return left
}

func (p *Parser) bitXor() ast.Expr {
	left := p.bitAnd()
	for p.check(lexer.Caret) {
		tok := p.advance()
		right := p.bitAnd()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: "^", Right: right}
	}
	return left
}

func (p *Parser) bitAnd() ast.Expr {
	left := p.equality()
	for p.check(lexer.Amp) {
		tok := p.advance()
		right := p.equality()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: "&", Right: right}
	}
	return left
}

func (p *Parser) equality() ast.Expr {
	left := p.comparison()
	for p.check(lexer.EqEq) || p.check(lexer.NotEq) {
		tok := p.advance()
		right := p.comparison()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: tok.Value, Right: right}
	}
	return left
}

func (p *Parser) comparison() ast.Expr {
	left := p.shift()
	for p.check(lexer.Less) || p.check(lexer.LessEq) || p.check(lexer.Greater) || p.check(lexer.GreaterEq) {
		tok := p.advance()
		right := p.shift()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: tok.Value, Right: right}
	}
	return left
}

func (p *Parser) shift() ast.Expr {
	left := p.additive()
	for p.check(lexer.Shl) || p.check(lexer.Shr) {
		tok := p.advance()
		right := p.additive()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: tok.Value, Right: right}
	}
	return left
}

func (p *Parser) additive() ast.Expr {
	left := p.multiplicative()
	for p.check(lexer.Plus) || p.check(lexer.Minus) {
		tok := p.advance()
		right := p.multiplicative()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: tok.Value, Right: right}
	}
	return left
}

func (p *Parser) multiplicative() ast.Expr {
	left := p.unary()
	for p.check(lexer.Star) || p.check(lexer.Slash) || p.check(lexer.Percent) {
		tok := p.advance()
		right := p.unary()
		left = &ast.BinaryExpr{Base: base(tok), Left: left, Operator: tok.Value, Right: right}
	}
	return left
}

func (p *Parser) unary() ast.Expr {
	if p.check(lexer.Bang) || p.check(lexer.Minus) {
		tok := p.advance()
		operand := p.unary()
		return &ast.UnaryExpr{Base: base(tok), Operand: operand, Operator: tok.Value}
	}
	if p.check(lexer.PlusPlus) || p.check(lexer.MinusMinus) {
		tok := p.advance()
		operand := p.unary()
		return &ast.UpdateExpr{Base: base(tok), Operand: operand, Operator: tok.Value, Prefix: true}
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Expr {
	expr := p.callOrMember()
	if p.check(lexer.PlusPlus) || p.check(lexer.MinusMinus) {
		tok := p.advance()
		return &ast.UpdateExpr{Base: base(tok), Operand: expr, Operator: tok.Value, Prefix: false}
	}
	return expr
}

func (p *Parser) callOrMember() ast.Expr {
	expr := p.primary()
	for {
		switch {
		case p.check(lexer.OpenParen):
			tok := p.advance()
			var args []ast.Expr
			for !p.check(lexer.CloseParen) {
				args = append(args, p.assignment())
				if !p.match(lexer.Comma) {
					break
				}
			}
			p.expect(lexer.CloseParen, "')'")
			expr = &ast.CallExpr{Base: base(tok), Callee: expr, Args: args}
		case p.check(lexer.Dot):
			tok := p.advance()
			name := p.expect(lexer.Identifier, "property name")
			expr = &ast.MemberExpr{
				Base:     base(tok),
				Object:   expr,
				Property: &ast.Identifier{Base: base(name), Symbol: name.Value},
			}
		case p.check(lexer.OpenBracket):
			tok := p.advance()
			index := p.expression()
			p.expect(lexer.CloseBracket, "']'")
			expr = &ast.IndexExpr{Base: base(tok), Object: expr, Index: index}
		default:
			return expr
		}
	}
}

func (p *Parser) primary() ast.Expr {
	tok := p.advance()
	switch tok.Type {
	case lexer.Number:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.fail("invalid numeric literal '"+tok.Value+"'", tok)
		}
		return &ast.NumericLiteral{Base: base(tok), Value: f}
	case lexer.String:
		return &ast.StringLiteral{Base: base(tok), Value: tok.Value}
	case lexer.True:
		return &ast.BooleanLiteral{Base: base(tok), Value: true}
	case lexer.False:
		return &ast.BooleanLiteral{Base: base(tok), Value: false}
	case lexer.Nil:
		return &ast.NilLiteral{Base: base(tok)}
	case lexer.This:
		return &ast.ThisExpr{Base: base(tok)}
	case lexer.Super:
		p.expect(lexer.Dot, "'.' after 'super'")
		name := p.expect(lexer.Identifier, "method name")
		return &ast.SuperExpr{Base: base(tok), Method: &ast.Identifier{Base: base(name), Symbol: name.Value}}
	case lexer.Identifier:
		return &ast.Identifier{Base: base(tok), Symbol: tok.Value}
	case lexer.OpenParen:
		expr := p.expression()
		p.expect(lexer.CloseParen, "')'")
		return expr
	case lexer.OpenBracket:
		return p.arrayLiteral(tok)
	case lexer.OpenBrace:
		return p.mapLiteral(tok)
	case lexer.Fn:
		decl := p.functionRest(tok, "")
		return &ast.FunctionExpr{Base: base(tok), Decl: decl}
	default:
		p.fail("unexpected token '"+tok.Value+"'", tok)
		return nil
	}
}

func (p *Parser) arrayLiteral(open lexer.Token) ast.Expr {
	var elems []ast.Expr
	for !p.check(lexer.CloseBracket) {
		elems = append(elems, p.assignment())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.CloseBracket, "']'")
	return &ast.ArrayLiteral{Base: base(open), Elements: elems}
}

func (p *Parser) mapLiteral(open lexer.Token) ast.Expr {
	var props []*ast.Property
	for !p.check(lexer.CloseBrace) {
		var key ast.Expr
		if p.check(lexer.String) {
			tok := p.advance()
			key = &ast.StringLiteral{Base: base(tok), Value: tok.Value}
		} else if p.check(lexer.Identifier) || isKeyword(p.peek().Type) {
			tok := p.advance()
			key = &ast.Identifier{Base: base(tok), Symbol: tok.Value}
		} else {
			p.fail("expected map key", p.peek())
		}
		p.expect(lexer.Colon, "':'")
		value := p.assignment()
		props = append(props, &ast.Property{Key: key, Value: value})
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.CloseBrace, "'}'")
	return &ast.MapLiteral{Base: base(open), Properties: props}
}

func isKeyword(t lexer.TokenType) bool {
	switch t {
	case lexer.Let, lexer.Var, lexer.Const, lexer.If, lexer.Else, lexer.For, lexer.While,
		lexer.True, lexer.False, lexer.Nil, lexer.Fn, lexer.Return, lexer.Break, lexer.Continue,
		lexer.Class, lexer.Extends, lexer.This, lexer.Super, lexer.Try, lexer.Catch,
		lexer.Print, lexer.Import, lexer.As:
		return true
	default:
		return false
	}
}
