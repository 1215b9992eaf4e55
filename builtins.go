package formula

import (
	"math"
	"strings"
)

// variadic marks a built-in that takes one or more arguments. Vector
// arguments to a variadic built-in contribute each of their elements.
const variadic = -1

type builtin struct {
	arity int
	fn    func(args []float64) float64
}

func unary(f func(float64) float64) builtin {
	return builtin{arity: 1, fn: func(x []float64) float64 { return f(x[0]) }}
}

func binary(f func(a, b float64) float64) builtin {
	return builtin{arity: 2, fn: func(x []float64) float64 { return f(x[0], x[1]) }}
}

func ternary(f func(a, b, c float64) float64) builtin {
	return builtin{arity: 3, fn: func(x []float64) float64 { return f(x[0], x[1], x[2]) }}
}

var builtins = map[string]builtin{
	"abs":      unary(math.Abs),
	"acos":     unary(math.Acos),
	"acosh":    unary(math.Acosh),
	"asin":     unary(math.Asin),
	"asinh":    unary(math.Asinh),
	"atan":     unary(math.Atan),
	"atan2":    binary(math.Atan2),
	"atanh":    unary(math.Atanh),
	"ceil":     unary(math.Ceil),
	"cos":      unary(math.Cos),
	"cosh":     unary(math.Cosh),
	"cot":      unary(func(x float64) float64 { return 1 / math.Tan(x) }),
	"csc":      unary(func(x float64) float64 { return 1 / math.Sin(x) }),
	"deg2grad": unary(func(x float64) float64 { return x * 10 / 9 }),
	"deg2rad":  unary(func(x float64) float64 { return x * math.Pi / 180 }),
	"equal":    binary(func(a, b float64) float64 { return truth(approxEqual(a, b)) }),
	"erf":      unary(math.Erf),
	"erfc":     unary(math.Erfc),
	"exp":      unary(math.Exp),
	"expm1":    unary(math.Expm1),
	"floor":    unary(math.Floor),
	"frac":     unary(func(x float64) float64 { return x - math.Trunc(x) }),
	"grad2deg": unary(func(x float64) float64 { return x * 9 / 10 }),
	"hypot":    binary(math.Hypot),
	"log":      unary(math.Log),
	"log10":    unary(math.Log10),
	"log1p":    unary(math.Log1p),
	"log2":     unary(math.Log2),
	"logn":     binary(func(x, n float64) float64 { return math.Log(x) / math.Log(n) }),
	"ncdf":     unary(func(x float64) float64 { return 0.5 * math.Erfc(-x/math.Sqrt2) }),
	"nequal":   binary(func(a, b float64) float64 { return truth(!approxEqual(a, b)) }),
	"pow":      binary(math.Pow),
	"rad2deg":  unary(func(x float64) float64 { return x * 180 / math.Pi }),
	"root":     binary(func(x, n float64) float64 { return math.Pow(x, 1/n) }),
	"round":    unary(math.Round),
	"roundn":   binary(roundn),
	"sec":      unary(func(x float64) float64 { return 1 / math.Cos(x) }),
	"sgn":      unary(sgn),
	"sin":      unary(math.Sin),
	"sinc":     unary(sinc),
	"sinh":     unary(math.Sinh),
	"sqrt":     unary(math.Sqrt),
	"tan":      unary(math.Tan),
	"tanh":     unary(math.Tanh),
	"trunc":    unary(math.Trunc),

	// clamp(lo, x, hi)
	"clamp": ternary(func(lo, x, hi float64) float64 {
		return math.Max(lo, math.Min(x, hi))
	}),
	// iclamp(lo, x, hi) pushes values inside (lo, hi) out to the nearer bound.
	"iclamp": ternary(func(lo, x, hi float64) float64 {
		if x <= lo || x >= hi {
			return x
		}
		if x-lo < hi-x {
			return lo
		}
		return hi
	}),
	// inrange(lo, x, hi)
	"inrange": ternary(func(lo, x, hi float64) float64 {
		return truth(lo <= x && x <= hi)
	}),

	"sum": {arity: variadic, fn: func(x []float64) float64 {
		s := 0.0
		for _, v := range x {
			s += v
		}
		return s
	}},
	"avg": {arity: variadic, fn: func(x []float64) float64 {
		s := 0.0
		for _, v := range x {
			s += v
		}
		return s / float64(len(x))
	}},
	"mul": {arity: variadic, fn: func(x []float64) float64 {
		p := 1.0
		for _, v := range x {
			p *= v
		}
		return p
	}},
	"min": {arity: variadic, fn: func(x []float64) float64 {
		m := x[0]
		for _, v := range x[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {arity: variadic, fn: func(x []float64) float64 {
		m := x[0]
		for _, v := range x[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}

// keywords are reserved words of the expression grammar.
var keywords = map[string]bool{
	"and": true, "or": true, "xor": true, "nand": true, "nor": true, "xnor": true,
	"not": true, "true": true, "false": true,
	"if": true, "else": true, "while": true, "for": true, "repeat": true, "until": true,
	"switch": true, "case": true, "default": true, "var": true,
	"in": true, "like": true, "ilike": true,
	"break": true, "continue": true, "return": true, "null": true, "swap": true,
}

// isReserved reports whether name is a keyword or a built-in function.
func isReserved(name string) bool {
	n := strings.ToLower(name)
	if keywords[n] {
		return true
	}
	_, ok := builtins[n]
	return ok
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= Epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func sgn(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(x) / x
}

func roundn(x, n float64) float64 {
	p := math.Pow(10, math.Trunc(n))
	return math.Round(x*p) / p
}

// wildcardMatch matches s against a pattern where '*' matches any run of
// characters and '?' matches exactly one.
func wildcardMatch(pattern, s string) bool {
	px, sx := 0, 0
	star, mark := -1, 0
	for sx < len(s) {
		switch {
		case px < len(pattern) && (pattern[px] == '?' || pattern[px] == s[sx]):
			px++
			sx++
		case px < len(pattern) && pattern[px] == '*':
			star = px
			mark = sx
			px++
		case star >= 0:
			px = star + 1
			mark++
			sx = mark
		default:
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}
