package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/edwingeng/deque"
	"github.com/ezachrisen/formula/lexer"
	"github.com/rs/zerolog"
)

// DefaultMaxDepth is the default limit on expression nesting.
const DefaultMaxDepth = 256

// DefaultMaxVectorSize is the default limit on the size of vectors declared
// inside an expression.
const DefaultMaxVectorSize = 1 << 20

// maxErrors caps the number of diagnostics collected from one compile.
const maxErrors = 10

// Parser compiles source text into an Expression. A Parser keeps the
// diagnostics and unknown symbols of its most recent compile. It is not safe
// for concurrent use; separate parsers are independent.
type Parser struct {
	opts    parserOptions
	errors  []*ParseError
	unknown []string
}

type parserOptions struct {
	resolver     Resolver
	maxDepth     int
	maxVecSize   int
	logger       zerolog.Logger
	declarations bool
	folding      bool
}

// ParserOption configures a Parser, or a single call to Compile.
type ParserOption func(*parserOptions)

// WithResolver enables unknown symbol resolution with r.
func WithResolver(r Resolver) ParserOption {
	return func(o *parserOptions) {
		o.resolver = r
	}
}

// MaxDepth limits how deeply expressions may nest. Values below 1 are ignored.
func MaxDepth(n int) ParserOption {
	return func(o *parserOptions) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// MaxVectorSize limits the size of vectors declared with var v[n]. Values
// below 1 are ignored.
func MaxVectorSize(n int) ParserOption {
	return func(o *parserOptions) {
		if n > 0 {
			o.maxVecSize = n
		}
	}
}

// WithLogger sets the logger for compile events. The default discards
// everything.
func WithLogger(l zerolog.Logger) ParserOption {
	return func(o *parserOptions) {
		o.logger = l
	}
}

// AllowDeclarations enables or disables local variable declarations
// (var x := ...). They are enabled by default.
func AllowDeclarations(b bool) ParserOption {
	return func(o *parserOptions) {
		o.declarations = b
	}
}

// ConstantFolding controls whether operations on literals and constants are
// computed once at compile time. It is enabled by default.
func ConstantFolding(b bool) ParserOption {
	return func(o *parserOptions) {
		o.folding = b
	}
}

// NewParser returns a parser configured with opts.
func NewParser(opts ...ParserOption) *Parser {
	o := parserOptions{
		maxDepth:     DefaultMaxDepth,
		maxVecSize:   DefaultMaxVectorSize,
		logger:       zerolog.Nop(),
		declarations: true,
		folding:      true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Parser{opts: o}
}

// Compile parses src and binds the result to e, which is evaluated against
// the symbol table registered on it. If e has no table, an empty one is
// registered. Options given here apply to this call only.
//
// On failure the returned error is a *CompileError, the diagnostics are
// available from the parser, and e is left uncompiled.
func (p *Parser) Compile(src string, e *Expression, opts ...ParserOption) error {
	o := p.opts
	for _, opt := range opts {
		opt(&o)
	}

	if e.table == nil {
		e.RegisterSymbolTable(NewSymbolTable())
	}
	e.invalidate()

	c := newCompiler(src, e.table, o)
	o.logger.Debug().Str("source", src).Msg("compiling expression")

	root, errs := c.compile()
	p.errors = errs
	p.unknown = c.unknown
	if len(errs) > 0 {
		o.logger.Debug().Err(errs[0]).Int("errors", len(errs)).Msg("compile failed")
		return &CompileError{Source: src, Errors: errs}
	}

	o.resolver = nil
	e.bind(src, root, o)
	o.logger.Debug().Strs("unknown", c.unknown).Msg("compiled expression")
	return nil
}

// ErrorCount is the number of diagnostics from the last compile.
func (p *Parser) ErrorCount() int {
	return len(p.errors)
}

// Error returns diagnostic i of the last compile, or nil if out of range.
func (p *Parser) Error(i int) *ParseError {
	if i < 0 || i >= len(p.errors) {
		return nil
	}
	return p.errors[i]
}

// Errors returns the diagnostics of the last compile.
func (p *Parser) Errors() []*ParseError {
	return append([]*ParseError(nil), p.errors...)
}

// UnknownSymbols lists the names the resolver accepted as placeholders
// during the last compile, in order of first use.
func (p *Parser) UnknownSymbols() []string {
	return append([]string(nil), p.unknown...)
}

// compiler is the state of one compile.
type compiler struct {
	src   string
	lex   *lexer.Lexer
	ahead deque.Deque // tokens read past tok
	tok   lexer.Token // current token
	prev  lexer.Token // last consumed token

	table *SymbolTable
	opts  parserOptions
	log   zerolog.Logger
	depth int

	locals       map[string]node
	placeholders map[string]*varNode
	unknown      []string
}

func newCompiler(src string, t *SymbolTable, o parserOptions) *compiler {
	return &compiler{
		src:          src,
		lex:          lexer.New(src),
		ahead:        deque.NewDeque(),
		table:        t,
		opts:         o,
		log:          o.logger,
		locals:       map[string]node{},
		placeholders: map[string]*varNode{},
	}
}

// ------------------------------------------------------------------ tokens

func (c *compiler) next() {
	c.prev = c.tok
	if c.ahead.Len() > 0 {
		c.tok = c.ahead.Front().(lexer.Token)
		c.ahead.PopFront()
		return
	}
	c.tok = c.lex.Next()
}

// peek returns the token after the current one without consuming anything.
func (c *compiler) peek() lexer.Token {
	if c.ahead.Empty() {
		c.ahead.PushBack(c.lex.Next())
	}
	return c.ahead.Front().(lexer.Token)
}

func (c *compiler) keyword(word string) bool {
	return c.tok.Is(word)
}

func (c *compiler) errorf(tok lexer.Token, kind ErrorKind, format string, args ...interface{}) error {
	return newParseError(c.src, tok, kind, fmt.Sprintf(format, args...))
}

func describe(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of expression"
	}
	return "'" + tok.Value + "'"
}

func (c *compiler) unexpected() error {
	switch c.tok.Type {
	case lexer.Error:
		return c.errorf(c.tok, ErrorLexer, "%s", c.tok.Message)
	case lexer.EOF:
		return c.errorf(c.tok, ErrorSyntax, "unexpected end of expression")
	}
	return c.errorf(c.tok, ErrorSyntax, "unexpected token '%s'", c.tok.Value)
}

func (c *compiler) expect(t lexer.Type) (lexer.Token, error) {
	tok := c.tok
	if tok.Type == lexer.Error {
		return tok, c.unexpected()
	}
	if tok.Type != t {
		return tok, c.errorf(tok, ErrorSyntax, "expected '%s' but found %s", t, describe(tok))
	}
	c.next()
	return tok, nil
}

func (c *compiler) expectKeyword(word string) error {
	if c.tok.Type == lexer.Error {
		return c.unexpected()
	}
	if !c.keyword(word) {
		return c.errorf(c.tok, ErrorSyntax, "expected '%s' but found %s", word, describe(c.tok))
	}
	c.next()
	return nil
}

func (c *compiler) enter() error {
	c.depth++
	if c.depth > c.opts.maxDepth {
		c.depth--
		return c.errorf(c.tok, ErrorSyntax, "maximum nesting depth of %d exceeded", c.opts.maxDepth)
	}
	return nil
}

func (c *compiler) leave() {
	c.depth--
}

// -------------------------------------------------------------- statements

// compile parses the whole source. After a failed statement it skips to the
// next top level ';' and carries on, so one compile can report several
// diagnostics.
func (c *compiler) compile() (node, []*ParseError) {
	c.next()
	atEOF := func() bool { return c.tok.Type == lexer.EOF }

	var stmts []node
	var errs []*ParseError
	for !atEOF() && len(errs) < maxErrors {
		if c.tok.Type == lexer.Semicolon {
			c.next()
			continue
		}
		s, err := c.statement()
		if err == nil {
			err = c.terminator(atEOF)
		}
		if err != nil {
			errs = append(errs, asParseError(err))
			if !c.skipStatement() {
				break
			}
			continue
		}
		stmts = append(stmts, s)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	if len(stmts) == 0 {
		return nil, []*ParseError{asParseError(c.errorf(c.tok, ErrorSyntax, "empty expression"))}
	}
	return newSeq(stmts), nil
}

func asParseError(err error) *ParseError {
	if pe, ok := err.(*ParseError); ok {
		return pe
	}
	return &ParseError{Kind: ErrorUnknown, Message: err.Error()}
}

// skipStatement discards tokens up to and including the next ';' outside any
// brackets. It returns false if no further statement can be parsed.
func (c *compiler) skipStatement() bool {
	level := 0
	for {
		switch c.tok.Type {
		case lexer.Error:
			return false
		case lexer.EOF:
			return true
		case lexer.LParen, lexer.LBracket, lexer.LBrace:
			level++
		case lexer.RParen, lexer.RBracket, lexer.RBrace:
			level--
		case lexer.Semicolon:
			if level <= 0 {
				c.next()
				return true
			}
		}
		c.next()
	}
}

// statements parses a ';' separated list until stop reports true.
func (c *compiler) statements(stop func() bool) ([]node, error) {
	var stmts []node
	for !stop() {
		if c.tok.Type == lexer.Semicolon {
			c.next()
			continue
		}
		s, err := c.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if err := c.terminator(stop); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

// terminator consumes the separator after a statement. A statement ending
// in a '}' block needs none.
func (c *compiler) terminator(stop func() bool) error {
	if c.tok.Type == lexer.Semicolon {
		c.next()
		return nil
	}
	if stop() || c.prev.Type == lexer.RBrace {
		return nil
	}
	if c.tok.Type == lexer.Error {
		return c.unexpected()
	}
	return c.errorf(c.tok, ErrorSyntax, "expected ';' but found %s", describe(c.tok))
}

func (c *compiler) statement() (node, error) {
	if c.keyword("var") {
		return c.declaration()
	}
	return c.expression()
}

func (c *compiler) block(closer lexer.Type) (node, error) {
	open := c.tok
	c.next()
	stmts, err := c.statements(func() bool { return c.tok.Type == closer || c.tok.Type == lexer.EOF })
	if err != nil {
		return nil, err
	}
	if _, err := c.expect(closer); err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, c.errorf(open, ErrorSyntax, "empty block")
	}
	return newSeq(stmts), nil
}

// ------------------------------------------------------------ declarations

func (c *compiler) declaration() (node, error) {
	kw := c.tok
	c.next()
	if !c.opts.declarations {
		return nil, c.errorf(kw, ErrorSemantic, "variable declarations are not allowed")
	}
	nameTok, err := c.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	name := nameTok.Value
	if isReserved(name) {
		return nil, c.errorf(nameTok, ErrorSemantic, "'%s' is a reserved symbol", name)
	}
	if c.defined(name) {
		return nil, c.errorf(nameTok, ErrorSemantic, "symbol '%s' is already defined", name)
	}

	if c.tok.Type == lexer.LBracket {
		return c.vectorDeclaration(nameTok)
	}

	var init node
	if c.tok.Type == lexer.Assign {
		c.next()
		if init, err = c.expression(); err != nil {
			return nil, err
		}
	}

	switch x := init.(type) {
	case stringNode:
		sv := NewStringVar("")
		c.locals[key(name)] = &strVarNode{name: name, s: sv}
		return &strDeclNode{dst: sv, init: x}, nil
	case vectorNode:
		v := make([]float64, x.size())
		c.locals[key(name)] = &vecVarNode{name: name, v: v}
		return &vecDeclNode{dst: v, init: x}, nil
	}
	p := new(float64)
	c.locals[key(name)] = &varNode{name: name, p: p}
	return &declNode{p: p, init: init}, nil
}

// vectorDeclaration parses var v[n] [:= {a, b, ...} | := expr].
func (c *compiler) vectorDeclaration(nameTok lexer.Token) (node, error) {
	c.next()
	sizeTok := c.tok
	sizeExpr, err := c.expression()
	if err != nil {
		return nil, err
	}
	size, ok := constant(sizeExpr)
	if !ok {
		return nil, c.errorf(sizeTok, ErrorSemantic, "vector size must be a constant")
	}
	if size < 1 || size != math.Trunc(size) {
		return nil, c.errorf(sizeTok, ErrorSemantic, "invalid vector size %g", size)
	}
	if size > float64(c.opts.maxVecSize) {
		return nil, c.errorf(sizeTok, ErrorSemantic, "vector size %g exceeds the limit of %d", size, c.opts.maxVecSize)
	}
	if _, err := c.expect(lexer.RBracket); err != nil {
		return nil, err
	}

	d := &vecDeclNode{dst: make([]float64, int(size))}
	if c.tok.Type == lexer.Assign {
		c.next()
		if c.tok.Type == lexer.LBrace {
			if d.list, err = c.vectorLiteral(nameTok, len(d.dst)); err != nil {
				return nil, err
			}
		} else {
			initTok := c.tok
			if d.init, err = c.expression(); err != nil {
				return nil, err
			}
			if isString(d.init) {
				return nil, c.errorf(initTok, ErrorSemantic, "type mismatch: cannot initialise vector '%s' with a string", nameTok.Value)
			}
		}
	}
	c.locals[key(nameTok.Value)] = &vecVarNode{name: nameTok.Value, v: d.dst}
	return d, nil
}

func (c *compiler) vectorLiteral(nameTok lexer.Token, size int) ([]node, error) {
	c.next()
	list := []node{}
	for c.tok.Type != lexer.RBrace {
		tok := c.tok
		e, err := c.expression()
		if err != nil {
			return nil, err
		}
		if isString(e) {
			return nil, c.errorf(tok, ErrorSemantic, "type mismatch: vector elements must be numeric")
		}
		list = append(list, e)
		if c.tok.Type != lexer.Comma {
			break
		}
		c.next()
	}
	if _, err := c.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	if len(list) > size {
		return nil, c.errorf(nameTok, ErrorSemantic, "too many initializers for vector '%s'", nameTok.Value)
	}
	return list, nil
}

// defined reports whether name is bound in the table or in this compile.
func (c *compiler) defined(name string) bool {
	if c.table.SymbolExists(name) {
		return true
	}
	_, local := c.locals[key(name)]
	_, placeholder := c.placeholders[key(name)]
	return local || placeholder
}

// ------------------------------------------------------------- expressions

var assignOps = map[lexer.Type]func(a, b float64) float64{
	lexer.Assign:    nil,
	lexer.AddAssign: func(a, b float64) float64 { return a + b },
	lexer.SubAssign: func(a, b float64) float64 { return a - b },
	lexer.MulAssign: func(a, b float64) float64 { return a * b },
	lexer.DivAssign: func(a, b float64) float64 { return a / b },
	lexer.ModAssign: math.Mod,
}

func (c *compiler) expression() (node, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()
	return c.assignment()
}

func (c *compiler) assignment() (node, error) {
	lhs, err := c.ternary()
	if err != nil {
		return nil, err
	}
	op, ok := assignOps[c.tok.Type]
	if !ok {
		return lhs, nil
	}
	tok := c.tok
	c.next()
	rhs, err := c.expression()
	if err != nil {
		return nil, err
	}
	return c.assign(tok, lhs, op, rhs)
}

func (c *compiler) assign(tok lexer.Token, lhs node, op func(a, b float64) float64, rhs node) (node, error) {
	switch t := lhs.(type) {
	case *varNode:
		if t.constant {
			return nil, c.errorf(tok, ErrorSemantic, "cannot assign to constant '%s'", t.name)
		}
		if isString(rhs) {
			return nil, c.mismatch(tok)
		}
		return &assignNode{p: t.p, x: rhs, op: op}, nil
	case *indexNode:
		v, ok := t.v.(*vecVarNode)
		if !ok {
			break
		}
		if isString(rhs) {
			return nil, c.mismatch(tok)
		}
		return &elemAssignNode{v: v.v, idx: t.idx, x: rhs, op: op}, nil
	case *vecVarNode:
		if isString(rhs) {
			return nil, c.mismatch(tok)
		}
		return &vecAssignNode{dst: t.v, src: rhs, op: op}, nil
	case *strVarNode:
		if t.constant {
			return nil, c.errorf(tok, ErrorSemantic, "cannot assign to constant '%s'", t.name)
		}
		s, ok := rhs.(stringNode)
		if !ok || (op != nil && tok.Type != lexer.AddAssign) {
			return nil, c.mismatch(tok)
		}
		return &strAssignNode{dst: t.s, x: s, concat: tok.Type == lexer.AddAssign}, nil
	}
	return nil, c.errorf(tok, ErrorSyntax, "invalid assignment target")
}

func (c *compiler) ternary() (node, error) {
	cond, err := c.or()
	if err != nil {
		return nil, err
	}
	if c.tok.Type != lexer.Question {
		return cond, nil
	}
	tok := c.tok
	c.next()
	a, err := c.expression()
	if err != nil {
		return nil, err
	}
	if _, err := c.expect(lexer.Colon); err != nil {
		return nil, err
	}
	b, err := c.expression()
	if err != nil {
		return nil, err
	}
	return c.conditional(tok, cond, a, b)
}

func (c *compiler) conditional(tok lexer.Token, cond, a, b node) (node, error) {
	if isString(cond) {
		return nil, c.mismatch(tok)
	}
	as, aok := a.(stringNode)
	bs, bok := b.(stringNode)
	switch {
	case aok && bok:
		return &strCondNode{c: cond, a: as, b: bs}, nil
	case aok || bok:
		return nil, c.mismatch(tok)
	}
	if v, ok := constant(cond); ok && c.opts.folding {
		if v != 0 {
			return a, nil
		}
		return b, nil
	}
	return &condNode{c: cond, a: a, b: b}, nil
}

func (c *compiler) or() (node, error) {
	lhs, err := c.and()
	if err != nil {
		return nil, err
	}
	for {
		tok := c.tok
		var f func(a, b bool) bool
		short := false
		switch {
		case tok.Type == lexer.LogOr || c.keyword("or"):
			short = true
		case tok.Type == lexer.Pipe:
			f = func(a, b bool) bool { return a || b }
		case c.keyword("xor"):
			f = func(a, b bool) bool { return a != b }
		case c.keyword("nor"):
			f = func(a, b bool) bool { return !(a || b) }
		case c.keyword("xnor"):
			f = func(a, b bool) bool { return a == b }
		default:
			return lhs, nil
		}
		c.next()
		rhs, err := c.and()
		if err != nil {
			return nil, err
		}
		if lhs, err = c.logical(tok, lhs, rhs, f, short); err != nil {
			return nil, err
		}
	}
}

func (c *compiler) and() (node, error) {
	lhs, err := c.relational()
	if err != nil {
		return nil, err
	}
	for {
		tok := c.tok
		var f func(a, b bool) bool
		short := false
		switch {
		case tok.Type == lexer.LogAnd || c.keyword("and"):
			short = true
		case tok.Type == lexer.Amp:
			f = func(a, b bool) bool { return a && b }
		case c.keyword("nand"):
			f = func(a, b bool) bool { return !(a && b) }
		default:
			return lhs, nil
		}
		c.next()
		rhs, err := c.relational()
		if err != nil {
			return nil, err
		}
		if lhs, err = c.logical(tok, lhs, rhs, f, short); err != nil {
			return nil, err
		}
	}
}

// logical builds a boolean operator node. Short-circuit nodes are used for
// and/or, f for everything else.
func (c *compiler) logical(tok lexer.Token, a, b node, f func(a, b bool) bool, short bool) (node, error) {
	if isString(a) || isString(b) {
		return nil, c.mismatch(tok)
	}
	var n node
	switch {
	case short && (tok.Type == lexer.LogOr || tok.Is("or")):
		n = &orNode{a: a, b: b}
	case short:
		n = &andNode{a: a, b: b}
	default:
		n = &binaryNode{a: a, b: b, f: func(x, y float64) float64 { return truth(f(x != 0, y != 0)) }}
	}
	return c.fold(n, a, b), nil
}

var scalarComparisons = map[string]func(a, b float64) float64{
	"==": func(a, b float64) float64 { return truth(a == b) },
	"!=": func(a, b float64) float64 { return truth(a != b) },
	"<":  func(a, b float64) float64 { return truth(a < b) },
	"<=": func(a, b float64) float64 { return truth(a <= b) },
	">":  func(a, b float64) float64 { return truth(a > b) },
	">=": func(a, b float64) float64 { return truth(a >= b) },
}

func (c *compiler) relational() (node, error) {
	lhs, err := c.additive()
	if err != nil {
		return nil, err
	}
	for {
		tok := c.tok
		op := ""
		switch tok.Type {
		case lexer.Eq:
			op = "=="
		case lexer.Ne:
			op = "!="
		case lexer.Lt:
			op = "<"
		case lexer.Le:
			op = "<="
		case lexer.Gt:
			op = ">"
		case lexer.Ge:
			op = ">="
		case lexer.Ident:
			for _, w := range []string{"in", "like", "ilike"} {
				if tok.Is(w) {
					op = w
				}
			}
		}
		if op == "" {
			return lhs, nil
		}
		c.next()
		rhs, err := c.additive()
		if err != nil {
			return nil, err
		}
		if lhs, err = c.compare(tok, op, lhs, rhs); err != nil {
			return nil, err
		}
	}
}

func (c *compiler) compare(tok lexer.Token, op string, a, b node) (node, error) {
	as, aok := a.(stringNode)
	bs, bok := b.(stringNode)
	switch {
	case aok && bok:
		return &strCompareNode{a: as, b: bs, f: stringComparisons[op]}, nil
	case aok || bok:
		return nil, c.mismatch(tok)
	}
	f, ok := scalarComparisons[op]
	if !ok {
		return nil, c.errorf(tok, ErrorSemantic, "operator '%s' requires string operands", op)
	}
	return c.fold(&binaryNode{a: a, b: b, f: f}, a, b), nil
}

var arithmetic = map[string]func(a, b float64) float64{
	"+": func(a, b float64) float64 { return a + b },
	"-": func(a, b float64) float64 { return a - b },
	"*": func(a, b float64) float64 { return a * b },
	"/": func(a, b float64) float64 { return a / b },
	"%": math.Mod,
	"^": math.Pow,
}

func (c *compiler) additive() (node, error) {
	lhs, err := c.multiplicative()
	if err != nil {
		return nil, err
	}
	for c.tok.Type == lexer.Plus || c.tok.Type == lexer.Minus {
		tok := c.tok
		c.next()
		rhs, err := c.multiplicative()
		if err != nil {
			return nil, err
		}
		if lhs, err = c.arith(tok, lhs, rhs); err != nil {
			return nil, err
		}
	}
	return lhs, nil
}

func (c *compiler) multiplicative() (node, error) {
	lhs, err := c.unary()
	if err != nil {
		return nil, err
	}
	for c.tok.Type == lexer.Mul || c.tok.Type == lexer.Div || c.tok.Type == lexer.Mod {
		tok := c.tok
		c.next()
		rhs, err := c.unary()
		if err != nil {
			return nil, err
		}
		if lhs, err = c.arith(tok, lhs, rhs); err != nil {
			return nil, err
		}
	}
	return lhs, nil
}

// arith combines a and b with the arithmetic operator spelled by tok.
func (c *compiler) arith(tok lexer.Token, a, b node) (node, error) {
	op := tok.Value
	as, aok := a.(stringNode)
	bs, bok := b.(stringNode)
	switch {
	case aok && bok && op == "+":
		return &concatNode{a: as, b: bs}, nil
	case aok || bok:
		return nil, c.mismatch(tok)
	case isVector(a) || isVector(b):
		return newVecBinary(a, b, arithmetic[op]), nil
	}
	return c.fold(&binaryNode{a: a, b: b, f: arithmetic[op]}, a, b), nil
}

func (c *compiler) unary() (node, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()

	tok := c.tok
	switch {
	case tok.Type == lexer.Minus:
		c.next()
		x, err := c.unary()
		if err != nil {
			return nil, err
		}
		if isString(x) {
			return nil, c.mismatch(tok)
		}
		if v, ok := x.(vectorNode); ok {
			return &vecNegNode{x: v, out: make([]float64, v.size())}, nil
		}
		return c.fold(&negNode{x: x}, x), nil
	case tok.Type == lexer.Plus:
		c.next()
		x, err := c.unary()
		if err != nil {
			return nil, err
		}
		if isString(x) {
			return nil, c.mismatch(tok)
		}
		return x, nil
	case tok.Type == lexer.Bang || c.keyword("not"):
		c.next()
		x, err := c.unary()
		if err != nil {
			return nil, err
		}
		if isString(x) {
			return nil, c.mismatch(tok)
		}
		return c.fold(&notNode{x: x}, x), nil
	}
	return c.power()
}

func (c *compiler) power() (node, error) {
	base, err := c.postfix()
	if err != nil {
		return nil, err
	}

	// 2x, 2(x+1) and 2x^3 = 2*(x^3)
	if c.prev.Type == lexer.Number && c.implicitOperand() {
		tok := lexer.Token{Type: lexer.Mul, Value: "*", Offset: c.tok.Offset, Line: c.tok.Line, Column: c.tok.Column}
		rhs, err := c.power()
		if err != nil {
			return nil, err
		}
		return c.arith(tok, base, rhs)
	}

	if c.tok.Type != lexer.Pow {
		return base, nil
	}
	tok := c.tok
	c.next()
	exp, err := c.unary()
	if err != nil {
		return nil, err
	}
	return c.arith(tok, base, exp)
}

func (c *compiler) implicitOperand() bool {
	switch c.tok.Type {
	case lexer.LParen:
		return true
	case lexer.Ident:
		return !keywords[strings.ToLower(c.tok.Value)]
	}
	return false
}

func (c *compiler) postfix() (node, error) {
	n, err := c.primary()
	if err != nil {
		return nil, err
	}
	for c.tok.Type == lexer.LBracket {
		open := c.tok
		c.next()
		if n, err = c.subscript(open, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// subscript parses the part after '[': v[], v[i], s[], s[i:j].
func (c *compiler) subscript(open lexer.Token, n node) (node, error) {
	if c.tok.Type == lexer.RBracket {
		c.next()
		switch x := n.(type) {
		case vectorNode:
			return &constNode{v: float64(x.size())}, nil
		case stringNode:
			return &strLenNode{s: x}, nil
		}
		return nil, c.errorf(open, ErrorSemantic, "'[]' requires a vector or string")
	}

	switch x := n.(type) {
	case stringNode:
		return c.substring(x)
	case vectorNode:
		idxTok := c.tok
		idx, err := c.expression()
		if err != nil {
			return nil, err
		}
		if isString(idx) {
			return nil, c.mismatch(idxTok)
		}
		if _, err := c.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		if i, ok := constant(idx); ok {
			if _, in := index(i, x.size()); !in {
				return nil, c.errorf(idxTok, ErrorSemantic, "index %g out of range for vector", i)
			}
		}
		return &indexNode{v: x, idx: idx}, nil
	}
	return nil, c.errorf(open, ErrorSemantic, "cannot index a scalar")
}

func (c *compiler) substring(s stringNode) (node, error) {
	n := &substrNode{s: s}
	var err error
	if c.tok.Type != lexer.Colon {
		if n.lo, err = c.scalarExpression(); err != nil {
			return nil, err
		}
	}
	if c.tok.Type != lexer.Colon {
		// s[i] is the single character at i
		n.hi = n.lo
	} else {
		c.next()
		if c.tok.Type != lexer.RBracket {
			if n.hi, err = c.scalarExpression(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := c.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return n, nil
}

func (c *compiler) scalarExpression() (node, error) {
	tok := c.tok
	n, err := c.expression()
	if err != nil {
		return nil, err
	}
	if isString(n) {
		return nil, c.mismatch(tok)
	}
	return n, nil
}

func (c *compiler) primary() (node, error) {
	tok := c.tok
	switch tok.Type {
	case lexer.Number:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil && !math.IsInf(v, 0) {
			return nil, c.errorf(tok, ErrorLexer, "malformed numeric literal")
		}
		c.next()
		return &constNode{v: v}, nil
	case lexer.String:
		c.next()
		return &strConstNode{s: tok.Value}, nil
	case lexer.LParen:
		return c.block(lexer.RParen)
	case lexer.LBrace:
		return c.block(lexer.RBrace)
	case lexer.Tilde:
		c.next()
		switch c.tok.Type {
		case lexer.LParen:
			return c.block(lexer.RParen)
		case lexer.LBrace:
			return c.block(lexer.RBrace)
		}
		return nil, c.unexpected()
	case lexer.Ident:
		return c.identifier()
	}
	return nil, c.unexpected()
}

func (c *compiler) identifier() (node, error) {
	tok := c.tok
	name := strings.ToLower(tok.Value)
	switch name {
	case "true":
		c.next()
		return &constNode{v: 1}, nil
	case "false":
		c.next()
		return &constNode{v: 0}, nil
	case "if":
		return c.ifExpression()
	case "while":
		return c.whileLoop()
	case "for":
		return c.forLoop()
	case "repeat":
		return c.repeatLoop()
	case "switch":
		return c.switchExpression()
	}
	if keywords[name] {
		return nil, c.unexpected()
	}

	if c.peek().Type == lexer.LParen {
		if _, ok := builtins[name]; ok {
			return c.call(nil)
		}
		if s, ok := c.table.lookupKind(name, KindFunction); ok {
			return c.call(s.fn)
		}
		if !c.defined(name) {
			return nil, c.errorf(tok, ErrorSemantic, "unknown function: '%s'", tok.Value)
		}
	}
	if _, ok := builtins[name]; ok {
		return nil, c.errorf(tok, ErrorSemantic, "function '%s' requires arguments", tok.Value)
	}
	return c.symbol()
}

// call parses name(args...). fn is the registered function, looked up before
// the arguments, or nil for a built-in. Resolving an argument may change the
// table.
func (c *compiler) call(fn Function) (node, error) {
	tok := c.tok
	c.next()
	c.next() // (

	var args []node
	for c.tok.Type != lexer.RParen {
		argTok := c.tok
		a, err := c.expression()
		if err != nil {
			return nil, err
		}
		if isString(a) {
			return nil, c.mismatch(argTok)
		}
		args = append(args, a)
		if c.tok.Type != lexer.Comma {
			break
		}
		c.next()
	}
	if _, err := c.expect(lexer.RParen); err != nil {
		return nil, err
	}

	if b, ok := builtins[strings.ToLower(tok.Value)]; ok {
		if b.arity == variadic {
			if len(args) == 0 {
				return nil, c.errorf(tok, ErrorSemantic, "arity mismatch: '%s' expects at least 1 argument", tok.Value)
			}
			size := 0
			for _, a := range args {
				size++
				if v, ok := a.(vectorNode); ok {
					size += v.size() - 1
				}
			}
			n := &variadicNode{fn: b.fn, args: args, buf: make([]float64, 0, size)}
			return c.fold(n, args...), nil
		}
		if len(args) != b.arity {
			return nil, c.arityMismatch(tok, b.arity, len(args))
		}
		return c.fold(&callNode{fn: b.fn, args: args, buf: make([]float64, len(args))}, args...), nil
	}

	if fn == nil {
		return nil, c.errorf(tok, ErrorSemantic, "unknown function: '%s'", tok.Value)
	}
	if n := fn.Arity(); n != len(args) {
		return nil, c.arityMismatch(tok, n, len(args))
	}
	return &callNode{fn: fn.Call, args: args, buf: make([]float64, len(args))}, nil
}

func (c *compiler) arityMismatch(tok lexer.Token, want, got int) error {
	return c.errorf(tok, ErrorSemantic, "arity mismatch: '%s' expects %d arguments, got %d", tok.Value, want, got)
}

func (c *compiler) mismatch(tok lexer.Token) error {
	return c.errorf(tok, ErrorSemantic, "type mismatch for operator '%s'", tok.Value)
}

// fold replaces n with its value when every operand is constant.
func (c *compiler) fold(n node, operands ...node) node {
	if !c.opts.folding {
		return n
	}
	for _, o := range operands {
		if _, ok := o.(vectorNode); ok {
			return n
		}
		if _, ok := constant(o); !ok {
			return n
		}
	}
	return &constNode{v: n.eval()}
}

// ----------------------------------------------------------------- symbols

// symbol resolves an identifier against the table, the local declarations
// and finally the resolver.
func (c *compiler) symbol() (node, error) {
	tok := c.tok
	c.next()
	n, err := c.lookup(tok)
	if n != nil || err != nil {
		return n, err
	}
	return c.resolve(tok)
}

// lookup returns nil, nil if the name is not known.
func (c *compiler) lookup(tok lexer.Token) (node, error) {
	if s, ok := c.table.lookup(tok.Value); ok {
		switch s.kind {
		case KindVariable:
			return &varNode{name: s.name, p: s.scalar, constant: s.constant}, nil
		case KindString:
			return &strVarNode{name: s.name, s: s.str, constant: s.constant}, nil
		case KindVector:
			return &vecVarNode{name: s.name, v: s.vector}, nil
		case KindFunction:
			return nil, c.errorf(tok, ErrorSemantic, "function '%s' requires arguments", tok.Value)
		}
	}
	if n, ok := c.locals[key(tok.Value)]; ok {
		return n, nil
	}
	if n, ok := c.placeholders[key(tok.Value)]; ok {
		return n, nil
	}
	return nil, nil
}

func (c *compiler) resolve(tok lexer.Token) (node, error) {
	r := c.opts.resolver
	if r == nil {
		return nil, c.errorf(tok, ErrorSemantic, "undefined symbol: '%s'", tok.Value)
	}

	res := r.Resolve(tok.Value, c.table)
	c.log.Debug().Str("symbol", tok.Value).Stringer("resolution", res).Msg("resolved unknown symbol")

	switch res.action {
	case actionAccept:
		v := res.value
		n := &varNode{name: tok.Value, p: &v}
		c.placeholders[key(tok.Value)] = n
		c.unknown = append(c.unknown, tok.Value)
		return n, nil
	case actionBind:
		if err := res.bind(tok.Value, c.table); err != nil {
			return nil, c.errorf(tok, ErrorResolver, "%s", err.Error())
		}
	case actionResolved:
	default:
		if res.message == "" {
			return nil, c.errorf(tok, ErrorResolver, "undefined symbol: '%s'", tok.Value)
		}
		return nil, c.errorf(tok, ErrorResolver, "%s", res.message)
	}

	n, err := c.lookup(tok)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, c.errorf(tok, ErrorResolver, "symbol '%s' was not registered by the resolver", tok.Value)
	}
	return n, nil
}

// ------------------------------------------------------------ control flow

// ifExpression parses both if(c, a, b) and if (c) stmt [else stmt].
func (c *compiler) ifExpression() (node, error) {
	tok := c.tok
	c.next()
	if _, err := c.expect(lexer.LParen); err != nil {
		return nil, err
	}
	cond, err := c.expression()
	if err != nil {
		return nil, err
	}

	if c.tok.Type == lexer.Comma {
		c.next()
		a, err := c.expression()
		if err != nil {
			return nil, err
		}
		if _, err := c.expect(lexer.Comma); err != nil {
			return nil, err
		}
		b, err := c.expression()
		if err != nil {
			return nil, err
		}
		if _, err := c.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return c.conditional(tok, cond, a, b)
	}

	if _, err := c.expect(lexer.RParen); err != nil {
		return nil, err
	}
	a, err := c.statement()
	if err != nil {
		return nil, err
	}
	var b node = &constNode{v: math.NaN()}
	if isString(a) {
		b = &strConstNode{}
	}
	if c.tok.Type == lexer.Semicolon && c.peek().Is("else") {
		c.next()
	}
	if c.keyword("else") {
		c.next()
		if b, err = c.statement(); err != nil {
			return nil, err
		}
	}
	return c.conditional(tok, cond, a, b)
}

func (c *compiler) condition() (node, error) {
	if _, err := c.expect(lexer.LParen); err != nil {
		return nil, err
	}
	n, err := c.scalarExpression()
	if err != nil {
		return nil, err
	}
	if _, err := c.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return n, nil
}

func (c *compiler) whileLoop() (node, error) {
	c.next()
	cond, err := c.condition()
	if err != nil {
		return nil, err
	}
	body, err := c.statement()
	if err != nil {
		return nil, err
	}
	return &whileNode{cond: cond, body: body}, nil
}

// forLoop parses for (init; cond; incr) body. Each clause may be empty.
func (c *compiler) forLoop() (node, error) {
	c.next()
	if _, err := c.expect(lexer.LParen); err != nil {
		return nil, err
	}
	n := &forNode{}
	var err error
	if c.tok.Type != lexer.Semicolon {
		if n.init, err = c.statement(); err != nil {
			return nil, err
		}
	}
	if _, err := c.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	if c.tok.Type != lexer.Semicolon {
		if n.cond, err = c.scalarExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := c.expect(lexer.Semicolon); err != nil {
		return nil, err
	}
	if c.tok.Type != lexer.RParen {
		if n.incr, err = c.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := c.expect(lexer.RParen); err != nil {
		return nil, err
	}
	if n.body, err = c.statement(); err != nil {
		return nil, err
	}
	return n, nil
}

// repeatLoop parses repeat stmts until (cond).
func (c *compiler) repeatLoop() (node, error) {
	tok := c.tok
	c.next()
	stmts, err := c.statements(func() bool { return c.keyword("until") || c.tok.Type == lexer.EOF })
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, c.errorf(tok, ErrorSyntax, "empty repeat body")
	}
	if err := c.expectKeyword("until"); err != nil {
		return nil, err
	}
	cond, err := c.condition()
	if err != nil {
		return nil, err
	}
	return &repeatNode{body: newSeq(stmts), until: cond}, nil
}

// switchExpression parses switch { case c: e; ... default: e; }.
func (c *compiler) switchExpression() (node, error) {
	c.next()
	if _, err := c.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	n := &switchNode{}
	for c.tok.Type != lexer.RBrace {
		switch {
		case c.keyword("case"):
			c.next()
			cond, err := c.scalarExpression()
			if err != nil {
				return nil, err
			}
			if _, err := c.expect(lexer.Colon); err != nil {
				return nil, err
			}
			e, err := c.statement()
			if err != nil {
				return nil, err
			}
			n.conds = append(n.conds, cond)
			n.exprs = append(n.exprs, e)
		case c.keyword("default"):
			c.next()
			if _, err := c.expect(lexer.Colon); err != nil {
				return nil, err
			}
			e, err := c.statement()
			if err != nil {
				return nil, err
			}
			n.def = e
		default:
			return nil, c.unexpected()
		}
		if c.tok.Type == lexer.Semicolon {
			c.next()
		}
	}
	c.next()
	return n, nil
}
