package formula

import (
	"sync"
)

// Locker pairs a SymbolTable with a read/write mutex for programs that share
// a table between goroutines. Changes to the table and evaluation of
// expressions bound to it go through the Locker.
//
// Evaluation takes the write lock: expressions may assign to the table, and
// compiled expressions reuse internal buffers between calls.
type Locker struct {
	mu    sync.RWMutex
	table *SymbolTable
}

// NewLocker guards t. If t is nil a new table is created.
func NewLocker(t *SymbolTable) *Locker {
	if t == nil {
		t = NewSymbolTable()
	}
	return &Locker{
		table: t,
	}
}

// Update runs f with exclusive access to the table.
func (l *Locker) Update(f func(t *SymbolTable) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return f(l.table)
}

// Read runs f with shared access to the table. f must not modify the table.
func (l *Locker) Read(f func(t *SymbolTable)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f(l.table)
}

// Compile compiles src into e against the guarded table.
func (l *Locker) Compile(p *Parser, src string, e *Expression, opts ...ParserOption) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.RegisterSymbolTable(l.table)
	return p.Compile(src, e, opts...)
}

// Eval evaluates e, which must be bound to the guarded table.
func (l *Locker) Eval(e *Expression) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return e.Value()
}

// SetValue changes a variable under the write lock.
func (l *Locker) SetValue(name string, v float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.table.SetValue(name, v)
}

// Value reads a variable under the read lock.
func (l *Locker) Value(name string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.table.Value(name)
}

// Lock takes the write lock, for callers that need several changes and
// evaluations in one critical section. Prefer Update where a closure fits.
func (l *Locker) Lock() {
	l.mu.Lock()
}

// Unlock releases the write lock.
func (l *Locker) Unlock() {
	l.mu.Unlock()
}

// RLock takes the read lock for a sequence of reads. Prefer Read where a
// closure fits.
func (l *Locker) RLock() {
	l.mu.RLock()
}

// RUnlock releases the read lock.
func (l *Locker) RUnlock() {
	l.mu.RUnlock()
}
