package formula

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	// ErrSymbolExists is returned when a name is already bound to anything
	// in the table.
	ErrSymbolExists = errors.New("symbol already exists")

	// ErrInvalidName is returned for names that are not of the form
	// [A-Za-z][A-Za-z0-9_]*.
	ErrInvalidName = errors.New("invalid symbol name")

	// ErrReservedSymbol is returned for keywords and built-in function names.
	ErrReservedSymbol = errors.New("reserved symbol name")

	// ErrBadArity is returned for functions taking fewer than 1 or more than
	// MaxArity arguments.
	ErrBadArity = errors.New("unsupported function arity")

	// ErrEmptyVector is returned when binding a vector without elements.
	ErrEmptyVector = errors.New("empty vector")

	// ErrNilStorage is returned when binding caller-owned storage that is nil.
	ErrNilStorage = errors.New("nil storage")
)

// Epsilon is the tolerance used by the epsilon constant and by the equal
// and nequal functions.
const Epsilon = 1e-10

// symbol is one binding. Exactly one of the storage fields is set,
// according to kind.
type symbol struct {
	name     string
	kind     Kind
	constant bool
	owned    bool // storage was allocated by the table

	scalar *float64
	str    *StringVar
	vector []float64
	fn     Function

	gen uint64 // registration number, used for ordering and handle checks
}

// SymbolTable binds names to scalars, strings, vectors and functions.
// Compiled expressions keep references to the storage they were compiled
// against, so changing a value in place is visible to them on the next
// evaluation.
//
// Names are unique across all kinds and are compared without regard to case.
// A SymbolTable is not safe for concurrent use; see Locker.
type SymbolTable struct {
	symbols map[string]*symbol
	gen     uint64
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols: map[string]*symbol{},
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// ValidName reports whether name can be bound in a table.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '_'):
		default:
			return false
		}
	}
	return true
}

// checkName validates name and makes sure it is free.
func (t *SymbolTable) checkName(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: '%s'", ErrInvalidName, name)
	}
	if isReserved(name) {
		return fmt.Errorf("%w: '%s'", ErrReservedSymbol, name)
	}
	if _, ok := t.symbols[key(name)]; ok {
		return fmt.Errorf("%w: '%s'", ErrSymbolExists, name)
	}
	return nil
}

func (t *SymbolTable) insert(s *symbol) {
	t.gen++
	s.gen = t.gen
	t.symbols[key(s.name)] = s
}

func (t *SymbolTable) lookup(name string) (*symbol, bool) {
	s, ok := t.symbols[key(name)]
	return s, ok
}

func (t *SymbolTable) lookupKind(name string, k Kind) (*symbol, bool) {
	s, ok := t.symbols[key(name)]
	if !ok || s.kind != k {
		return nil, false
	}
	return s, true
}

// AddVariable binds name to caller-owned storage. The caller keeps v alive
// and may change *v at any time; expressions read the current value.
func (t *SymbolTable) AddVariable(name string, v *float64, constant bool) error {
	if v == nil {
		return fmt.Errorf("%w: variable '%s'", ErrNilStorage, name)
	}
	if err := t.checkName(name); err != nil {
		return err
	}
	t.insert(&symbol{name: name, kind: KindVariable, constant: constant, scalar: v})
	return nil
}

// CreateVariable binds name to storage allocated and owned by the table.
// Use VariableRef or SetValue to change it.
func (t *SymbolTable) CreateVariable(name string, value float64) error {
	if err := t.checkName(name); err != nil {
		return err
	}
	v := value
	t.insert(&symbol{name: name, kind: KindVariable, owned: true, scalar: &v})
	return nil
}

// AddConstant binds name to an immutable, table-owned scalar.
func (t *SymbolTable) AddConstant(name string, value float64) error {
	if err := t.checkName(name); err != nil {
		return err
	}
	v := value
	t.insert(&symbol{name: name, kind: KindVariable, owned: true, constant: true, scalar: &v})
	return nil
}

// AddStringVar binds name to a caller-owned string cell.
func (t *SymbolTable) AddStringVar(name string, s *StringVar, constant bool) error {
	if s == nil {
		return fmt.Errorf("%w: string '%s'", ErrNilStorage, name)
	}
	if err := t.checkName(name); err != nil {
		return err
	}
	t.insert(&symbol{name: name, kind: KindString, constant: constant, str: s})
	return nil
}

// CreateStringVar binds name to a table-owned string cell holding text.
func (t *SymbolTable) CreateStringVar(name string, text string) error {
	if err := t.checkName(name); err != nil {
		return err
	}
	t.insert(&symbol{name: name, kind: KindString, owned: true, str: NewStringVar(text)})
	return nil
}

// AddVector binds name to v. The length is fixed at this point; the table
// shares v's backing array, so changing v[i] is visible to expressions.
func (t *SymbolTable) AddVector(name string, v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: '%s'", ErrEmptyVector, name)
	}
	if err := t.checkName(name); err != nil {
		return err
	}
	t.insert(&symbol{name: name, kind: KindVector, vector: v[:len(v):len(v)]})
	return nil
}

// AddFunction registers f under name. On failure no handle is returned and
// the table is unchanged.
func (t *SymbolTable) AddFunction(name string, f Function) (*FunctionHandle, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: function '%s'", ErrNilStorage, name)
	}
	if n := f.Arity(); n < 1 || n > MaxArity {
		return nil, fmt.Errorf("%w: function '%s' takes %d arguments", ErrBadArity, name, n)
	}
	if err := t.checkName(name); err != nil {
		return nil, err
	}
	s := &symbol{name: name, kind: KindFunction, fn: f}
	t.insert(s)
	return &FunctionHandle{name: name, fn: f, table: t, gen: s.gen}, nil
}

// AddFunc1 registers a one-argument function.
func (t *SymbolTable) AddFunc1(name string, fn func(a float64) float64) (*FunctionHandle, error) {
	return t.AddFunction(name, Func1(fn))
}

// AddFunc2 registers a two-argument function.
func (t *SymbolTable) AddFunc2(name string, fn func(a, b float64) float64) (*FunctionHandle, error) {
	return t.AddFunction(name, Func2(fn))
}

// AddFunc3 registers a three-argument function.
func (t *SymbolTable) AddFunc3(name string, fn func(a, b, c float64) float64) (*FunctionHandle, error) {
	return t.AddFunction(name, Func3(fn))
}

// AddFunc4 registers a four-argument function.
func (t *SymbolTable) AddFunc4(name string, fn func(a, b, c, d float64) float64) (*FunctionHandle, error) {
	return t.AddFunction(name, Func4(fn))
}

// AddConstants registers pi, epsilon and inf. Either all three are added or,
// if any of the names is taken, none.
func (t *SymbolTable) AddConstants() error {
	for _, n := range []string{"pi", "epsilon", "inf"} {
		if err := t.checkName(n); err != nil {
			return err
		}
	}
	_ = t.AddPi()
	_ = t.AddEpsilon()
	return t.AddInfinity()
}

// AddPi registers the constant pi.
func (t *SymbolTable) AddPi() error {
	return t.AddConstant("pi", math.Pi)
}

// AddEpsilon registers the constant epsilon.
func (t *SymbolTable) AddEpsilon() error {
	return t.AddConstant("epsilon", Epsilon)
}

// AddInfinity registers the constant inf.
func (t *SymbolTable) AddInfinity() error {
	return t.AddConstant("inf", math.Inf(1))
}

// rollback removes every symbol registered after mark, a value of t.gen.
func (t *SymbolTable) rollback(mark uint64) {
	for n, s := range t.symbols {
		if s.gen > mark {
			delete(t.symbols, n)
		}
	}
}

func (t *SymbolTable) remove(name string, k Kind) bool {
	if _, ok := t.lookupKind(name, k); !ok {
		return false
	}
	delete(t.symbols, key(name))
	return true
}

// RemoveVariable unbinds a scalar. Expressions compiled against it keep
// reading the storage they captured, which no longer reflects the table.
func (t *SymbolTable) RemoveVariable(name string) bool { return t.remove(name, KindVariable) }

// RemoveStringVar unbinds a string.
func (t *SymbolTable) RemoveStringVar(name string) bool { return t.remove(name, KindString) }

// RemoveVector unbinds a vector.
func (t *SymbolTable) RemoveVector(name string) bool { return t.remove(name, KindVector) }

// RemoveFunction unbinds a function. Handles for it report Registered() == false.
func (t *SymbolTable) RemoveFunction(name string) bool { return t.remove(name, KindFunction) }

func (t *SymbolTable) clear(k Kind) {
	for n, s := range t.symbols {
		if s.kind == k {
			delete(t.symbols, n)
		}
	}
}

// ClearVariables unbinds all scalars, constants included.
func (t *SymbolTable) ClearVariables() { t.clear(KindVariable) }

// ClearStrings unbinds all strings.
func (t *SymbolTable) ClearStrings() { t.clear(KindString) }

// ClearVectors unbinds all vectors.
func (t *SymbolTable) ClearVectors() { t.clear(KindVector) }

// ClearFunctions unbinds all functions.
func (t *SymbolTable) ClearFunctions() { t.clear(KindFunction) }

// VariableRef returns the live storage of a scalar, or nil if name is not a
// scalar. Writing through the pointer bypasses the constant flag.
func (t *SymbolTable) VariableRef(name string) *float64 {
	s, ok := t.lookupKind(name, KindVariable)
	if !ok {
		return nil
	}
	return s.scalar
}

// StringVarRef returns the live string cell, or nil if name is not a string.
func (t *SymbolTable) StringVarRef(name string) *StringVar {
	s, ok := t.lookupKind(name, KindString)
	if !ok {
		return nil
	}
	return s.str
}

// Vector returns the live vector storage, or nil if name is not a vector.
func (t *SymbolTable) Vector(name string) []float64 {
	s, ok := t.lookupKind(name, KindVector)
	if !ok {
		return nil
	}
	return s.vector
}

// Value returns the current value of a scalar.
func (t *SymbolTable) Value(name string) (float64, bool) {
	s, ok := t.lookupKind(name, KindVariable)
	if !ok {
		return math.NaN(), false
	}
	return *s.scalar, true
}

// SetValue changes a scalar in place. It refuses constants and unknown names.
func (t *SymbolTable) SetValue(name string, v float64) bool {
	s, ok := t.lookupKind(name, KindVariable)
	if !ok || s.constant {
		return false
	}
	*s.scalar = v
	return true
}

// SetString changes a string cell in place. It refuses constants and
// unknown names.
func (t *SymbolTable) SetString(name string, text string) bool {
	s, ok := t.lookupKind(name, KindString)
	if !ok || s.constant {
		return false
	}
	s.str.Set(text)
	return true
}

// Kind reports what name is bound to.
func (t *SymbolTable) Kind(name string) (Kind, bool) {
	s, ok := t.lookup(name)
	if !ok {
		return 0, false
	}
	return s.kind, true
}

// SymbolExists reports whether name is bound to anything.
func (t *SymbolTable) SymbolExists(name string) bool {
	_, ok := t.lookup(name)
	return ok
}

// IsConstantNode reports whether name is a constant scalar.
func (t *SymbolTable) IsConstantNode(name string) bool {
	s, ok := t.lookupKind(name, KindVariable)
	return ok && s.constant
}

// IsConstantString reports whether name is a constant string.
func (t *SymbolTable) IsConstantString(name string) bool {
	s, ok := t.lookupKind(name, KindString)
	return ok && s.constant
}

func (t *SymbolTable) count(k Kind) int {
	n := 0
	for _, s := range t.symbols {
		if s.kind == k {
			n++
		}
	}
	return n
}

// VariableCount is the number of scalars, constants included.
func (t *SymbolTable) VariableCount() int { return t.count(KindVariable) }

// StringVarCount is the number of strings.
func (t *SymbolTable) StringVarCount() int { return t.count(KindString) }

// VectorCount is the number of vectors.
func (t *SymbolTable) VectorCount() int { return t.count(KindVector) }

// FunctionCount is the number of functions.
func (t *SymbolTable) FunctionCount() int { return t.count(KindFunction) }

// sorted returns the symbols of kind k (all kinds if k is 0) in
// registration order.
func (t *SymbolTable) sorted(k Kind) []*symbol {
	l := make([]*symbol, 0, len(t.symbols))
	for _, s := range t.symbols {
		if k == 0 || s.kind == k {
			l = append(l, s)
		}
	}
	sort.Slice(l, func(i, j int) bool {
		return l[i].gen < l[j].gen
	})
	return l
}

func (t *SymbolTable) names(k Kind) []string {
	l := t.sorted(k)
	out := make([]string, len(l))
	for i := range l {
		out[i] = l[i].name
	}
	return out
}

// VariableNames lists the scalar names in registration order. The slice is
// the caller's.
func (t *SymbolTable) VariableNames() []string { return t.names(KindVariable) }

// StringVarNames lists the string names in registration order.
func (t *SymbolTable) StringVarNames() []string { return t.names(KindString) }

// VectorNames lists the vector names in registration order.
func (t *SymbolTable) VectorNames() []string { return t.names(KindVector) }

// FunctionNames lists the function names in registration order.
func (t *SymbolTable) FunctionNames() []string { return t.names(KindFunction) }

// LoadFrom copies every binding of other into t. When a name exists in both
// tables the binding from other replaces the one in t. Table-owned storage is
// copied by value; caller-owned storage and functions are shared.
func (t *SymbolTable) LoadFrom(other *SymbolTable) {
	if other == nil || other == t {
		return
	}
	for _, s := range other.sorted(0) {
		c := *s
		if s.owned {
			switch s.kind {
			case KindVariable:
				v := *s.scalar
				c.scalar = &v
			case KindString:
				c.str = NewStringVar(s.str.Get())
			}
		}
		delete(t.symbols, key(s.name))
		t.insert(&c)
	}
}

// Clone returns a new table with the bindings of t, as LoadFrom does.
func (t *SymbolTable) Clone() *SymbolTable {
	c := NewSymbolTable()
	c.LoadFrom(t)
	return c
}

// String renders the table's bindings in registration order.
func (t *SymbolTable) String() string {
	tw := table.NewWriter()
	tw.SetTitle("SYMBOL TABLE")
	tw.AppendHeader(table.Row{"Name", "Kind", "Constant", "Owned", "Value"})

	for _, s := range t.sorted(0) {
		tw.AppendRow(table.Row{
			s.name,
			s.kind.String(),
			trueFalse(s.constant),
			trueFalse(s.owned),
			s.valueString(),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func (s *symbol) valueString() string {
	switch s.kind {
	case KindVariable:
		return fmt.Sprintf("%g", *s.scalar)
	case KindString:
		return fmt.Sprintf("%q", s.str.Get())
	case KindVector:
		return fmt.Sprintf("%v", s.vector)
	case KindFunction:
		return fmt.Sprintf("arity %d", s.fn.Arity())
	}
	return ""
}

func trueFalse(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
