package formula

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/segmentio/fasthash/fnv1a"
)

// ErrFormulaNotFound is returned when deleting a formula the vault does not hold.
var ErrFormulaNotFound = errors.New("formula not found")

// Formula is a named, compiled expression held by a Vault. Formulas are
// immutable once published; an update replaces the Formula.
type Formula struct {
	Name   string
	Source string
	hash   uint64
	expr   *Expression
}

// Expression returns the compiled expression.
func (f *Formula) Expression() *Expression {
	return f.expr
}

// Value evaluates the formula. Like Expression.Value it is not safe to call
// concurrently for the same formula.
func (f *Formula) Value() float64 {
	return f.expr.Value()
}

// Vault holds named formulas compiled against one table. Lookups are
// lock-free against an immutable snapshot; ApplyMutations builds a new
// snapshot and publishes it atomically, so readers see either all or none of
// a batch.
type Vault struct {
	formulas atomic.Pointer[map[string]*Formula] // current immutable snapshot
	mu       sync.Mutex                          // serializes writers
	table    *SymbolTable
	opts     []ParserOption
}

// Mutation is one change to the vault.
type Mutation struct {
	// Required; the formula's name
	Name string

	// Source replaces the formula with that name, or adds it. If Source is
	// empty, the formula is deleted.
	Source string
}

// NewVault creates an empty vault whose formulas are compiled against t
// with opts.
func NewVault(t *SymbolTable, opts ...ParserOption) *Vault {
	if t == nil {
		t = NewSymbolTable()
	}
	v := &Vault{
		table: t,
		opts:  opts,
	}
	empty := map[string]*Formula{}
	v.formulas.Store(&empty)
	return v
}

// Symbols returns the table formulas are compiled against.
func (v *Vault) Symbols() *SymbolTable {
	return v.table
}

// Get returns the current formula with name.
func (v *Vault) Get(name string) (*Formula, bool) {
	f, ok := (*v.formulas.Load())[name]
	return f, ok
}

// Names lists the formula names in sorted order.
func (v *Vault) Names() []string {
	return slices.Sorted(maps.Keys(*v.formulas.Load()))
}

// Len is the number of formulas.
func (v *Vault) Len() int {
	return len(*v.formulas.Load())
}

// ApplyMutations compiles and applies the changes. If any change fails, none
// are applied, and symbols registered in the table by a resolver during the
// batch are removed again. A formula whose source fingerprint is unchanged
// is not recompiled.
func (v *Vault) ApplyMutations(mutations []Mutation) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	mark := v.table.gen
	next, err := v.apply(maps.Clone(*v.formulas.Load()), mutations)
	if err != nil {
		v.table.rollback(mark)
		return err
	}
	v.formulas.Store(&next)
	return nil
}

func (v *Vault) apply(next map[string]*Formula, mutations []Mutation) (map[string]*Formula, error) {
	for _, m := range mutations {
		if m.Source == "" {
			if _, ok := next[m.Name]; !ok {
				return nil, fmt.Errorf("deleting formula %s: %w", m.Name, ErrFormulaNotFound)
			}
			delete(next, m.Name)
			continue
		}
		f, err := v.upsert(next[m.Name], m)
		if err != nil {
			return nil, fmt.Errorf("upserting formula %s: %w", m.Name, err)
		}
		next[m.Name] = f
	}
	return next, nil
}

// upsert reuses old when the 64-bit FNV-1a fingerprint of the source is
// unchanged.
func (v *Vault) upsert(old *Formula, m Mutation) (*Formula, error) {
	h := fnv1a.HashString64(m.Source)
	if old != nil && old.hash == h {
		return old, nil
	}
	e := NewExpression(v.table)
	if err := NewParser(v.opts...).Compile(m.Source, e); err != nil {
		return nil, err
	}
	return &Formula{Name: m.Name, Source: m.Source, hash: h, expr: e}, nil
}
