package svsim

import (
	"strconv"

	"svsim/internal/lex"
)

// Parser turns a token stream from Lexer into a slice of Module ASTs.
// One source file may define more than one module (§4.3).
type Parser struct {
	lx   *Lexer
	buf  []lex.Item
	file string
}

// NewParser returns a parser over src, attributing errors to file.
func NewParser(src, file string) *Parser {
	return &Parser{lx: NewLexer(src, file), file: file}
}

// ParseFile parses every `module … endmodule` declaration in the source,
// returning them in textual order.
func (p *Parser) ParseFile() ([]*Module, error) {
	var mods []*Module
	for {
		t := p.peek()
		if t.Type == lex.EOF {
			return mods, nil
		}
		if !p.isKeyword(t, "module") {
			return nil, p.errf(KindSyntaxError, "expected 'module', found %v", t)
		}
		m, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
}

// --- token stream helpers ---

func (p *Parser) peek() lex.Item {
	return p.peekAt(0)
}

// peekAt returns the token n positions ahead of the current position
// (0 is the next unconsumed token), fetching from the lexer as needed.
func (p *Parser) peekAt(n int) lex.Item {
	for len(p.buf) <= n {
		p.buf = append(p.buf, p.lx.Next())
	}
	return p.buf[n]
}

func (p *Parser) advance() lex.Item {
	t := p.peek()
	p.buf = p.buf[1:]
	return t
}

func (p *Parser) loc(t lex.Item) Location {
	l := p.lx.Loc(t.Pos)
	return l
}

func (p *Parser) errf(kind Kind, format string, args ...interface{}) error {
	return newErr(kind, p.loc(p.peek()), format, args...)
}

func (p *Parser) isKeyword(t lex.Item, kw string) bool {
	if t.Type != tokKeyword {
		return false
	}
	s, _ := t.Value.(string)
	return s == kw
}

func (p *Parser) expectType(tt lex.Type, what string) (lex.Item, error) {
	t := p.advance()
	if t.Type != tt {
		return t, p.errfAt(t, KindSyntaxError, "expected %s, found %v", what, t)
	}
	return t, nil
}

func (p *Parser) errfAt(t lex.Item, kind Kind, format string, args ...interface{}) error {
	return newErr(kind, p.loc(t), format, args...)
}

func (p *Parser) expectKeyword(kw string) error {
	t := p.advance()
	if !p.isKeyword(t, kw) {
		return p.errfAt(t, KindSyntaxError, "expected keyword %q, found %v", kw, t)
	}
	return nil
}

func (p *Parser) ident() (string, Location, error) {
	t, err := p.expectType(tokIdent, "identifier")
	if err != nil {
		return "", Location{}, err
	}
	s, _ := t.Value.(string)
	return s, p.loc(t), nil
}

// --- module ---

func (p *Parser) parseModule() (*Module, error) {
	start := p.advance() // 'module'
	name, _, err := p.ident()
	if err != nil {
		return nil, err
	}
	m := &Module{Name: name, Loc: p.loc(start)}

	if _, err := p.expectType(tokLParen, "("); err != nil {
		return nil, err
	}
	if err := p.parsePortList(m); err != nil {
		return nil, err
	}
	if _, err := p.expectType(tokRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expectType(tokSemi, ";"); err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if p.isKeyword(t, "endmodule") {
			p.advance()
			if err := checkPortDisjoint(m); err != nil {
				return nil, err
			}
			return m, nil
		}
		if err := p.parseModuleItem(m); err != nil {
			return nil, err
		}
	}
}

func checkPortDisjoint(m *Module) error {
	seen := map[string]bool{}
	inputs := map[string]bool{}
	outputs := map[string]bool{}
	for _, p := range m.Ports {
		if seen[p.Name] {
			return newErr(KindSyntaxError, m.Loc, "port %q redeclared", p.Name)
		}
		seen[p.Name] = true
		if p.Direction == Input {
			inputs[p.Name] = true
		} else {
			outputs[p.Name] = true
		}
	}
	for n := range inputs {
		if outputs[n] {
			return newErr(KindSyntaxError, m.Loc, "port %q declared as both input and output", n)
		}
	}
	return nil
}

// parsePortList handles both ANSI (`input logic [7:0] foo, output bar`)
// and non-ANSI (`foo, bar`) port headers. Non-ANSI names become
// placeholder input ports of width 1, later overwritten by matching
// input/output declarations in the module body.
func (p *Parser) parsePortList(m *Module) error {
	if p.peek().Type == tokRParen {
		return nil
	}
	for {
		t := p.peek()
		if p.isKeyword(t, "input") || p.isKeyword(t, "output") {
			ports, err := p.parsePortDecl()
			if err != nil {
				return err
			}
			m.Ports = append(m.Ports, ports...)
		} else {
			name, loc, err := p.ident()
			if err != nil {
				return err
			}
			m.Ports = append(m.Ports, Port{Name: name, Direction: Input, Width: 1, Signed: false})
			_ = loc
		}
		if p.peek().Type == tokComma {
			p.advance()
			continue
		}
		return nil
	}
}

// parsePortDecl parses one `input|output [logic|reg|wire] [signed] [hi:lo] name, name, …`
// declaration, returning one Port per name.
func (p *Parser) parsePortDecl() ([]Port, error) {
	dirTok := p.advance()
	dir := Input
	if p.isKeyword(dirTok, "output") {
		dir = Output
	}
	// optional net-type keyword
	if t := p.peek(); p.isKeyword(t, "logic") || p.isKeyword(t, "reg") || p.isKeyword(t, "wire") {
		p.advance()
	}
	signed := false
	if p.isKeyword(p.peek(), "signed") {
		p.advance()
		signed = true
	}
	width, err := p.maybeWidthRange()
	if err != nil {
		return nil, err
	}
	var ports []Port
	for {
		name, _, err := p.ident()
		if err != nil {
			return nil, err
		}
		ports = append(ports, Port{Name: name, Direction: dir, Width: width, Signed: signed})
		if p.peek().Type == tokComma {
			// lookahead: a comma here could separate names within this
			// declaration, or start the next port-list item. Both are
			// syntactically identical at this point (no keyword follows
			// a bare name); the caller (parsePortList) re-checks for a
			// following direction keyword, so we only consume names that
			// are not followed by input/output.
			nt := p.peekAt(1)
			if p.isKeyword(nt, "input") || p.isKeyword(nt, "output") {
				// leave the comma for the caller
				return ports, nil
			}
			p.advance() // consume comma
			continue
		}
		return ports, nil
	}
}

// maybeWidthRange parses an optional `[hi:lo]` and returns the resulting
// width (hi-lo+1), or 1 if absent.
func (p *Parser) maybeWidthRange() (int, error) {
	if p.peek().Type != tokLBracket {
		return 1, nil
	}
	p.advance()
	hi, err := p.constIntExpr()
	if err != nil {
		return 0, err
	}
	if _, err := p.expectType(tokColon, ":"); err != nil {
		return 0, err
	}
	lo, err := p.constIntExpr()
	if err != nil {
		return 0, err
	}
	if _, err := p.expectType(tokRBracket, "]"); err != nil {
		return 0, err
	}
	if hi < lo {
		return 0, p.errf(KindSyntaxError, "malformed width range [%d:%d]", hi, lo)
	}
	return hi - lo + 1, nil
}

// constIntExpr parses a bare (unsized) integer literal used in width
// ranges and memory depths.
func (p *Parser) constIntExpr() (int, error) {
	t, err := p.expectType(tokNumber, "integer literal")
	if err != nil {
		return 0, err
	}
	nl, _ := t.Value.(numLit)
	return int(nl.value.Bits), nil
}

func (p *Parser) parseModuleItem(m *Module) error {
	t := p.peek()
	switch {
	case p.isKeyword(t, "input") || p.isKeyword(t, "output"):
		ports, err := p.parsePortDecl()
		if err != nil {
			return err
		}
		mergePorts(m, ports)
		return p.expectSemi()
	case p.isKeyword(t, "wire") || p.isKeyword(t, "logic") || p.isKeyword(t, "reg"):
		return p.parseNetOrMemDecl(m)
	case p.isKeyword(t, "assign"):
		return p.parseContinuousAssign(m)
	case p.isKeyword(t, "always_comb"):
		return p.parseAlwaysComb(m)
	case p.isKeyword(t, "always_ff"):
		return p.parseAlwaysFf(m)
	case t.Type == tokIdent:
		return p.parseInstance(m)
	default:
		return p.errfAt(t, KindSyntaxError, "unexpected token %v in module body", t)
	}
}

// mergePorts overwrites placeholder (non-ANSI) ports with their real
// direction/width, or appends new ones.
func mergePorts(m *Module, decls []Port) {
	for _, d := range decls {
		found := false
		for i := range m.Ports {
			if m.Ports[i].Name == d.Name {
				m.Ports[i] = d
				found = true
				break
			}
		}
		if !found {
			m.Ports = append(m.Ports, d)
		}
	}
}

func (p *Parser) expectSemi() error {
	_, err := p.expectType(tokSemi, ";")
	return err
}

func (p *Parser) parseNetOrMemDecl(m *Module) error {
	p.advance() // wire/logic/reg
	signed := false
	if p.isKeyword(p.peek(), "signed") {
		p.advance()
		signed = true
	}
	width, err := p.maybeWidthRange()
	if err != nil {
		return err
	}
	for {
		name, _, err := p.ident()
		if err != nil {
			return err
		}
		if p.peek().Type == tokLBracket {
			p.advance()
			depthHi, err := p.constIntExpr()
			if err != nil {
				return err
			}
			if _, err := p.expectType(tokColon, ":"); err != nil {
				return err
			}
			depthLo, err := p.constIntExpr()
			if err != nil {
				return err
			}
			if _, err := p.expectType(tokRBracket, "]"); err != nil {
				return err
			}
			m.Memories = append(m.Memories, Memory{Name: name, ElementWidth: width, Depth: depthHi - depthLo + 1})
		} else {
			m.Nets = append(m.Nets, Net{Name: name, Width: width, Signed: signed})
		}
		if p.peek().Type == tokComma {
			p.advance()
			continue
		}
		break
	}
	return p.expectSemi()
}

func (p *Parser) parseContinuousAssign(m *Module) error {
	p.advance() // 'assign'
	lv, err := p.parseLvalue()
	if err != nil {
		return err
	}
	if _, err := p.expectType(tokAssign, "="); err != nil {
		return err
	}
	e, err := p.parseExpr()
	if err != nil {
		return err
	}
	if err := p.expectSemi(); err != nil {
		return err
	}
	m.Continuous = append(m.Continuous, Assignment{Kind: Continuous, Target: lv, Expr: e})
	return nil
}

func (p *Parser) parseAlwaysComb(m *Module) error {
	start := p.advance() // 'always_comb'
	body, err := p.parseStmtBlockRequired()
	if err != nil {
		return err
	}
	m.Procedural = append(m.Procedural, &ProceduralBlock{Kind: AlwaysComb, Body: body, Loc: p.loc(start)})
	return nil
}

func (p *Parser) parseAlwaysFf(m *Module) error {
	start := p.advance() // 'always_ff'
	if _, err := p.expectType(tokAt, "@"); err != nil {
		return err
	}
	if _, err := p.expectType(tokLParen, "("); err != nil {
		return err
	}
	if err := p.expectKeyword("posedge"); err != nil {
		return err
	}
	clk, _, err := p.ident()
	if err != nil {
		return err
	}
	if _, err := p.expectType(tokRParen, ")"); err != nil {
		return err
	}
	body, err := p.parseStmtBlockRequired()
	if err != nil {
		return err
	}
	m.Procedural = append(m.Procedural, &ProceduralBlock{
		Kind: AlwaysFf, Clock: clk, Edge: PosEdge, Body: body, Loc: p.loc(start),
	})
	return nil
}

func (p *Parser) parseInstance(m *Module) error {
	modName, loc, err := p.ident()
	if err != nil {
		return err
	}
	label, _, err := p.ident()
	if err != nil {
		return err
	}
	if _, err := p.expectType(tokLParen, "("); err != nil {
		return err
	}
	bindings := map[string]Expr{}
	positional := 0
	if p.peek().Type != tokRParen {
		for {
			if p.peek().Type == tokDot {
				p.advance()
				pname, _, err := p.ident()
				if err != nil {
					return err
				}
				if _, err := p.expectType(tokLParen, "("); err != nil {
					return err
				}
				e, err := p.parseExpr()
				if err != nil {
					return err
				}
				if _, err := p.expectType(tokRParen, ")"); err != nil {
					return err
				}
				bindings[pname] = e
			} else {
				e, err := p.parseExpr()
				if err != nil {
					return err
				}
				bindings[strconv.Itoa(positional)] = e
				positional++
			}
			if p.peek().Type == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectType(tokRParen, ")"); err != nil {
		return err
	}
	if err := p.expectSemi(); err != nil {
		return err
	}
	m.Instances = append(m.Instances, Instance{
		ModuleName: modName, Label: label, Bindings: bindings, Loc: loc,
	})
	return nil
}

// --- statements ---

func (p *Parser) parseStmtBlockRequired() (*Stmt, error) {
	if err := p.expectKeyword("begin"); err != nil {
		return nil, err
	}
	var body []*Stmt
	for !p.isKeyword(p.peek(), "end") {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, s)
	}
	p.advance() // 'end'
	return &Stmt{Kind: StmtBlock, Body: body}, nil
}

func (p *Parser) parseStmt() (*Stmt, error) {
	t := p.peek()
	switch {
	case p.isKeyword(t, "begin"):
		return p.parseStmtBlockRequired()
	case p.isKeyword(t, "if"):
		return p.parseIfStmt()
	case p.isKeyword(t, "case"):
		return p.parseCaseStmt()
	default:
		return p.parseAssignStmt()
	}
}

func (p *Parser) parseIfStmt() (*Stmt, error) {
	p.advance() // 'if'
	if _, err := p.expectType(tokLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectType(tokRParen, ")"); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	s := &Stmt{Kind: StmtIf, Cond: cond, Then: then}
	if p.isKeyword(p.peek(), "else") {
		p.advance()
		els, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		s.Else = els
	}
	return s, nil
}

func (p *Parser) parseCaseStmt() (*Stmt, error) {
	p.advance() // 'case'
	if _, err := p.expectType(tokLParen, "("); err != nil {
		return nil, err
	}
	sel, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectType(tokRParen, ")"); err != nil {
		return nil, err
	}
	var arms []CaseArm
	for !p.isKeyword(p.peek(), "endcase") {
		if p.isKeyword(p.peek(), "default") {
			p.advance()
			if _, err := p.expectType(tokColon, ":"); err != nil {
				return nil, err
			}
			body, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			arms = append(arms, CaseArm{IsDefault: true, Body: body})
			continue
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(tokColon, ":"); err != nil {
			return nil, err
		}
		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		arms = append(arms, CaseArm{Value: val, Body: body})
	}
	p.advance() // 'endcase'
	return &Stmt{Kind: StmtCase, Selector: sel, Cases: arms}, nil
}

func (p *Parser) parseAssignStmt() (*Stmt, error) {
	lv, err := p.parseLvalue()
	if err != nil {
		return nil, err
	}
	kind := Blocking
	switch p.peek().Type {
	case tokAssign:
		p.advance()
		kind = Blocking
	case tokLe:
		p.advance()
		kind = NonBlocking
	default:
		return nil, p.errf(KindSyntaxError, "expected '=' or '<=' in assignment, found %v", p.peek())
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemi(); err != nil {
		return nil, err
	}
	return &Stmt{Kind: StmtAssign, Assign: &Assignment{Kind: kind, Target: lv, Expr: e}}, nil
}

func (p *Parser) parseLvalue() (Lvalue, error) {
	name, _, err := p.ident()
	if err != nil {
		return Lvalue{}, err
	}
	if p.peek().Type != tokLBracket {
		return Lvalue{Kind: LvalueWhole, Name: name}, nil
	}
	p.advance()
	first, err := p.parseExpr()
	if err != nil {
		return Lvalue{}, err
	}
	if p.peek().Type == tokColon {
		p.advance()
		lo, err := p.parseExpr()
		if err != nil {
			return Lvalue{}, err
		}
		if _, err := p.expectType(tokRBracket, "]"); err != nil {
			return Lvalue{}, err
		}
		return Lvalue{Kind: LvalueRange, Name: name, RangeHi: first, RangeLo: lo}, nil
	}
	if _, err := p.expectType(tokRBracket, "]"); err != nil {
		return Lvalue{}, err
	}
	// Ambiguous between bit-select and memory-element write; it is
	// resolved at evaluation time once module context (memory vs net) is
	// known, so we tag it provisionally as bit-select and the evaluators
	// check the module's Memories before writing (§3's memory-element lvalue).
	return Lvalue{Kind: LvalueBit, Name: name, BitIndex: first, AddrExpr: first}, nil
}

// --- expressions, precedence-climbing per §9's conservative table ---
// unary > * / % > + - > shifts > relational > equality > & > ^ > | > && > || > ?:
// Of the multiplicative level only * is parsed; / and % are not lexed.

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parseLogOr()
	if err != nil {
		return Expr{}, err
	}
	if p.peek().Type == tokQuestion {
		loc := p.loc(p.peek())
		p.advance()
		a, err := p.parseTernary()
		if err != nil {
			return Expr{}, err
		}
		if _, err := p.expectType(tokColon, ":"); err != nil {
			return Expr{}, err
		}
		b, err := p.parseTernary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprTernary, Sel: &cond, A: &a, B: &b, Loc: loc}, nil
	}
	return cond, nil
}

func (p *Parser) parseLogOr() (Expr, error) {
	l, err := p.parseLogAnd()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokLogOr {
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseLogAnd()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: OpLogOr, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseLogAnd() (Expr, error) {
	l, err := p.parseBitOr()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokLogAnd {
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseBitOr()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: OpLogAnd, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseBitOr() (Expr, error) {
	l, err := p.parseBitXor()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokOr {
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseBitXor()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: OpOr, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseBitXor() (Expr, error) {
	l, err := p.parseBitAnd()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokXor || p.peek().Type == tokXnor {
		op := OpXor
		loc := p.loc(p.peek())
		neg := p.peek().Type == tokXnor
		p.advance()
		r, err := p.parseBitAnd()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: op, L: &lhs, R: &r, Loc: loc}
		if neg {
			inner := l
			l = Expr{Kind: ExprUnary, UnOp: OpNot, X: &inner, Loc: loc}
		}
	}
	return l, nil
}

func (p *Parser) parseBitAnd() (Expr, error) {
	l, err := p.parseEquality()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokAnd {
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseEquality()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: OpAnd, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	l, err := p.parseRelational()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokEq || p.peek().Type == tokNe {
		op := OpEq
		if p.peek().Type == tokNe {
			op = OpNe
		}
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseRelational()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: op, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseRelational() (Expr, error) {
	l, err := p.parseShift()
	if err != nil {
		return Expr{}, err
	}
	for {
		var op BinOp
		switch p.peek().Type {
		case tokLt:
			op = OpLt
		case tokLe:
			op = OpLe
		case tokGt:
			op = OpGt
		case tokGe:
			op = OpGe
		default:
			return l, nil
		}
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseShift()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: op, L: &lhs, R: &r, Loc: loc}
	}
}

func (p *Parser) parseShift() (Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokShl || p.peek().Type == tokShr {
		op := OpShl
		if p.peek().Type == tokShr {
			op = OpShr
		}
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseAdditive()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: op, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokPlus || p.peek().Type == tokMinus {
		op := OpAdd
		if p.peek().Type == tokMinus {
			op = OpSub
		}
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseMultiplicative()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: op, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokStar {
		loc := p.loc(p.peek())
		p.advance()
		r, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		lhs := l
		l = Expr{Kind: ExprBinary, BinOp: OpMul, L: &lhs, R: &r, Loc: loc}
	}
	return l, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case tokNot:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprUnary, UnOp: OpNot, X: &x, Loc: p.loc(t)}, nil
	case tokLogNot:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprUnary, UnOp: OpLogNot, X: &x, Loc: p.loc(t)}, nil
	case tokAnd:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprUnary, UnOp: OpReduceAnd, X: &x, Loc: p.loc(t)}, nil
	case tokOr:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprUnary, UnOp: OpReduceOr, X: &x, Loc: p.loc(t)}, nil
	case tokXor:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprUnary, UnOp: OpReduceXor, X: &x, Loc: p.loc(t)}, nil
	case tokMinus:
		// Unary minus: implemented as 0 - x at x's own width.
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		zero := Literal(NewValue(1, 0), p.loc(t))
		return Expr{Kind: ExprBinary, BinOp: OpSub, L: &zero, R: &x, Loc: p.loc(t)}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return Expr{}, err
	}
	for p.peek().Type == tokLBracket {
		loc := p.loc(p.peek())
		p.advance()
		first, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		if p.peek().Type == tokColon {
			p.advance()
			lo, err := p.parseExpr()
			if err != nil {
				return Expr{}, err
			}
			if _, err := p.expectType(tokRBracket, "]"); err != nil {
				return Expr{}, err
			}
			base := e
			e = Expr{Kind: ExprRangeSelect, Base: &base, Hi: &first, Lo: &lo, Loc: loc}
			continue
		}
		if _, err := p.expectType(tokRBracket, "]"); err != nil {
			return Expr{}, err
		}
		base := e
		e = Expr{Kind: ExprBitSelect, Base: &base, Index: &first, Loc: loc}
	}
	return e, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case tokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		if _, err := p.expectType(tokRParen, ")"); err != nil {
			return Expr{}, err
		}
		return e, nil
	case tokNumber:
		p.advance()
		nl, _ := t.Value.(numLit)
		return Literal(nl.value, p.loc(t)), nil
	case tokIdent:
		p.advance()
		s, _ := t.Value.(string)
		return Ident(s, p.loc(t)), nil
	case tokLBrace:
		return p.parseBraceExpr()
	default:
		return Expr{}, p.errfAt(t, KindSyntaxError, "unexpected token %v in expression", t)
	}
}

// parseBraceExpr parses `{a, b, …}` (concatenation) or `{N{expr}}`
// (replication), per §4.1.
func (p *Parser) parseBraceExpr() (Expr, error) {
	loc := p.loc(p.peek())
	p.advance() // '{'
	first, err := p.parseExpr()
	if err != nil {
		return Expr{}, err
	}
	if p.peek().Type == tokLBrace {
		// {N{expr}} — first must have been a literal count.
		if first.Kind != ExprLiteral {
			return Expr{}, p.errf(KindUnsupportedConstruct, "replication count must be a literal")
		}
		p.advance() // '{'
		elem, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		if _, err := p.expectType(tokRBrace, "}"); err != nil {
			return Expr{}, err
		}
		if _, err := p.expectType(tokRBrace, "}"); err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprReplicate, Count: int(first.LitValue.Bits), Elem: &elem, Loc: loc}, nil
	}
	parts := []Expr{first}
	for p.peek().Type == tokComma {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		parts = append(parts, e)
	}
	if _, err := p.expectType(tokRBrace, "}"); err != nil {
		return Expr{}, err
	}
	return Expr{Kind: ExprConcat, Parts: parts, Loc: loc}, nil
}
