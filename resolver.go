package formula

import "fmt"

// Resolver is consulted during compilation for every identifier that is
// neither bound in the symbol table nor declared locally by the expression.
//
// The resolver receives the live table and may register the symbol itself
// (return Resolved), ask the parser to register it (the Bind functions),
// accept it as a placeholder for this compile only (Accept), or fail the
// compile (Reject).
type Resolver interface {
	Resolve(name string, table *SymbolTable) Resolution
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string, table *SymbolTable) Resolution

// Resolve calls f(name, table).
func (f ResolverFunc) Resolve(name string, table *SymbolTable) Resolution {
	return f(name, table)
}

type action int

const (
	actionReject action = iota
	actionAccept
	actionBind
	actionResolved
)

// Resolution is the outcome of resolving one unknown symbol. The zero value
// rejects the symbol.
type Resolution struct {
	action   action
	kind     Kind
	constant bool
	value    float64
	text     string
	vector   []float64
	message  string
}

// Accept treats the symbol as a scalar with value def for the remainder of
// the compile. Nothing is written to the table; the name is reported by
// Parser.UnknownSymbols so the caller can bind it before compiling again.
func Accept(def float64) Resolution {
	return Resolution{action: actionAccept, kind: KindVariable, value: def}
}

// BindVariable has the parser create a table-owned variable holding v.
func BindVariable(v float64) Resolution {
	return Resolution{action: actionBind, kind: KindVariable, value: v}
}

// BindConstant has the parser create a constant holding v.
func BindConstant(v float64) Resolution {
	return Resolution{action: actionBind, kind: KindVariable, constant: true, value: v}
}

// BindString has the parser create a table-owned string holding s.
func BindString(s string) Resolution {
	return Resolution{action: actionBind, kind: KindString, text: s}
}

// BindVector has the parser bind v as a vector. The table shares v.
func BindVector(v []float64) Resolution {
	return Resolution{action: actionBind, kind: KindVector, vector: v}
}

// Resolved reports that the resolver registered the symbol in the table.
// The parser looks the name up again; if it is still missing the compile
// fails.
func Resolved() Resolution {
	return Resolution{action: actionResolved}
}

// Reject fails the compile. The message becomes the diagnostic's message.
func Reject(message string) Resolution {
	return Resolution{action: actionReject, message: message}
}

func (r Resolution) String() string {
	switch r.action {
	case actionAccept:
		return fmt.Sprintf("accept(%g)", r.value)
	case actionBind:
		return fmt.Sprintf("bind(%s)", r.kind)
	case actionResolved:
		return "resolved"
	default:
		return fmt.Sprintf("reject(%q)", r.message)
	}
}

// bind registers name in t according to r.
func (r Resolution) bind(name string, t *SymbolTable) error {
	switch r.kind {
	case KindString:
		return t.CreateStringVar(name, r.text)
	case KindVector:
		return t.AddVector(name, r.vector)
	default:
		if r.constant {
			return t.AddConstant(name, r.value)
		}
		return t.CreateVariable(name, r.value)
	}
}

// autoVariables binds every unknown symbol as a zero variable and remembers
// the names in order.
type autoVariables struct {
	names []string
}

func (a *autoVariables) Resolve(name string, _ *SymbolTable) Resolution {
	a.names = append(a.names, name)
	return BindVariable(0)
}
