package formula

import (
	"fmt"
	"math"
)

// Expression is a compiled formula bound to one SymbolTable. Value
// re-reads the table's current storage on every call.
//
// An Expression is not safe for concurrent use, and neither is the table
// it reads. See Locker.
type Expression struct {
	table    *SymbolTable
	root     node
	source   string
	opts     parserOptions
	compiled bool
}

// NewExpression returns an uncompiled expression bound to t. t may be nil,
// in which case Parser.Compile registers an empty table.
func NewExpression(t *SymbolTable) *Expression {
	return &Expression{table: t}
}

// Compile compiles src against t with a new Parser.
func Compile(src string, t *SymbolTable, opts ...ParserOption) (*Expression, error) {
	e := NewExpression(t)
	if err := NewParser(opts...).Compile(src, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CompileResolve compiles src against t, consulting r for unknown symbols.
func CompileResolve(src string, t *SymbolTable, r Resolver) (*Expression, error) {
	return Compile(src, t, WithResolver(r))
}

// CompileVars compiles src against t, adding every unknown symbol to t as a
// variable initialised to zero. It returns the names that were added, in
// order of first use. If t is nil a new table is used.
func CompileVars(src string, t *SymbolTable) (*Expression, []string, error) {
	if t == nil {
		t = NewSymbolTable()
	}
	auto := &autoVariables{}
	e, err := Compile(src, t, WithResolver(auto))
	if err != nil {
		return nil, auto.names, err
	}
	return e, auto.names, nil
}

// Value evaluates the expression. A string result is projected to its
// length and a vector result to its first element. An expression that is
// not compiled evaluates to NaN.
func (e *Expression) Value() float64 {
	if !e.compiled {
		return math.NaN()
	}
	return e.root.eval()
}

// RegisterSymbolTable binds the expression to t. Any compiled form is
// discarded; compile again before evaluating.
func (e *Expression) RegisterSymbolTable(t *SymbolTable) {
	e.table = t
	e.invalidate()
}

// Symbols returns the table the expression is bound to.
func (e *Expression) Symbols() *SymbolTable {
	return e.table
}

// Source returns the text of the last successful compile.
func (e *Expression) Source() string {
	return e.source
}

// IsCompiled reports whether the expression holds a compiled form.
func (e *Expression) IsCompiled() bool {
	return e.compiled
}

// Release drops the compiled form and the table reference. Value returns
// NaN afterwards. It is safe to call more than once.
func (e *Expression) Release() {
	e.invalidate()
	e.table = nil
	e.source = ""
}

// Clone compiles the same source against a copy of the table, with the
// options of the original compile. Symbols that were only accepted as
// placeholders by a resolver are not in the table, so cloning such an
// expression fails.
func (e *Expression) Clone() (*Expression, error) {
	var t *SymbolTable
	if e.table != nil {
		t = e.table.Clone()
	}
	c := NewExpression(t)
	if !e.compiled {
		return c, nil
	}
	p := &Parser{opts: e.opts}
	if err := p.Compile(e.source, c); err != nil {
		return nil, fmt.Errorf("cloning expression: %w", err)
	}
	return c, nil
}

func (e *Expression) String() string {
	if !e.compiled {
		return "<uncompiled>"
	}
	return e.source
}

func (e *Expression) bind(src string, root node, o parserOptions) {
	e.root = root
	e.source = src
	e.opts = o
	e.compiled = true
}

func (e *Expression) invalidate() {
	e.root = nil
	e.compiled = false
}
