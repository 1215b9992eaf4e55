package formula

import "fmt"

// MaxArity is the largest number of arguments a registered function may take.
const MaxArity = 10

// Function is a callable that can be registered in a SymbolTable and called
// from an expression. Any state the function needs is captured by the
// implementation itself.
type Function interface {
	// Arity is the fixed number of arguments, 1 through MaxArity.
	Arity() int

	// Call receives exactly Arity arguments. The slice is reused between
	// calls and must not be retained.
	Call(args []float64) float64
}

type function struct {
	arity int
	fn    func(args []float64) float64
}

func (f *function) Arity() int                  { return f.arity }
func (f *function) Call(args []float64) float64 { return f.fn(args) }

// NewFunction wraps fn as a Function taking arity arguments.
func NewFunction(arity int, fn func(args []float64) float64) (Function, error) {
	if arity < 1 || arity > MaxArity {
		return nil, fmt.Errorf("%w: %d", ErrBadArity, arity)
	}
	if fn == nil {
		return nil, fmt.Errorf("missing function")
	}
	return &function{arity: arity, fn: fn}, nil
}

// Func1 adapts a one-argument Go function.
func Func1(fn func(a float64) float64) Function {
	return &function{arity: 1, fn: func(x []float64) float64 { return fn(x[0]) }}
}

// Func2 adapts a two-argument Go function.
func Func2(fn func(a, b float64) float64) Function {
	return &function{arity: 2, fn: func(x []float64) float64 { return fn(x[0], x[1]) }}
}

// Func3 adapts a three-argument Go function.
func Func3(fn func(a, b, c float64) float64) Function {
	return &function{arity: 3, fn: func(x []float64) float64 { return fn(x[0], x[1], x[2]) }}
}

// Func4 adapts a four-argument Go function.
func Func4(fn func(a, b, c, d float64) float64) Function {
	return &function{arity: 4, fn: func(x []float64) float64 { return fn(x[0], x[1], x[2], x[3]) }}
}

// FunctionHandle is returned when a function is registered. It identifies
// one registration: removing the function, or registering another one under
// the same name, makes Registered report false for this handle.
//
// Releasing a handle does not unregister the function; use
// SymbolTable.RemoveFunction for that.
type FunctionHandle struct {
	name  string
	fn    Function
	table *SymbolTable
	gen   uint64
}

// Name is the name the function was registered under.
func (h *FunctionHandle) Name() string {
	return h.name
}

// Function returns the registered function, or nil once the handle is released.
func (h *FunctionHandle) Function() Function {
	return h.fn
}

// Registered reports whether this registration is still present in its table.
func (h *FunctionHandle) Registered() bool {
	if h.table == nil {
		return false
	}
	s, ok := h.table.lookup(h.name)
	return ok && s.kind == KindFunction && s.gen == h.gen
}

// Release drops the handle's references. It is safe to call more than once.
func (h *FunctionHandle) Release() {
	h.fn = nil
	h.table = nil
}

// Released reports whether Release has been called.
func (h *FunctionHandle) Released() bool {
	return h.table == nil
}
