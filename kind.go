package formula

import (
	"fmt"
	"strings"
)

// Kind identifies what a name in a SymbolTable is bound to.
type Kind int

const (
	// KindVariable is a scalar (float64) cell. Constants are variables with
	// the constant flag set.
	KindVariable Kind = iota + 1

	// KindString is a text cell held in a *StringVar.
	KindString

	// KindVector is a fixed length sequence of scalars.
	KindVector

	// KindFunction is a callable registered with AddFunction.
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindString:
		return "string"
	case KindVector:
		return "vector"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the lower-case name of a kind, as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "variable", "scalar":
		return KindVariable, nil
	case "string":
		return KindString, nil
	case "vector":
		return KindVector, nil
	case "function":
		return KindFunction, nil
	default:
		return 0, fmt.Errorf("unrecognized kind: %s", s)
	}
}
