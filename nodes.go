package formula

import (
	"math"
	"strings"
)

// node is one evaluable element of a compiled expression. Every node has a
// scalar value; string nodes project to their length and vector nodes to
// their first element.
type node interface {
	eval() float64
}

type stringNode interface {
	node
	str() string
}

type vectorNode interface {
	node
	vec() []float64
	size() int
}

func isString(n node) bool {
	_, ok := n.(stringNode)
	return ok
}

func isVector(n node) bool {
	_, ok := n.(vectorNode)
	return ok
}

func first(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return v[0]
}

// index converts f to a position in a vector of length n. The check runs on
// the float so NaN and huge values are rejected before the conversion.
func index(f float64, n int) (int, bool) {
	if !(f >= 0 && f < float64(n)) {
		return 0, false
	}
	return int(f), true
}

// constant returns the value of n if it is a literal or a constant symbol.
func constant(n node) (float64, bool) {
	switch c := n.(type) {
	case *constNode:
		return c.v, true
	case *varNode:
		if c.constant {
			return *c.p, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------- scalars

type constNode struct {
	v float64
}

func (n *constNode) eval() float64 { return n.v }

type varNode struct {
	name     string
	p        *float64
	constant bool
}

func (n *varNode) eval() float64 { return *n.p }

type negNode struct{ x node }

func (n *negNode) eval() float64 { return -n.x.eval() }

type notNode struct{ x node }

func (n *notNode) eval() float64 { return truth(n.x.eval() == 0) }

type binaryNode struct {
	a, b node
	f    func(a, b float64) float64
}

func (n *binaryNode) eval() float64 { return n.f(n.a.eval(), n.b.eval()) }

type andNode struct{ a, b node }

func (n *andNode) eval() float64 {
	if n.a.eval() == 0 {
		return 0
	}
	return truth(n.b.eval() != 0)
}

type orNode struct{ a, b node }

func (n *orNode) eval() float64 {
	if n.a.eval() != 0 {
		return 1
	}
	return truth(n.b.eval() != 0)
}

type condNode struct{ c, a, b node }

func (n *condNode) eval() float64 {
	if n.c.eval() != 0 {
		return n.a.eval()
	}
	return n.b.eval()
}

// callNode calls a fixed arity function. args and buf have the same length.
type callNode struct {
	fn   func(args []float64) float64
	args []node
	buf  []float64
}

func (n *callNode) eval() float64 {
	for i, a := range n.args {
		n.buf[i] = a.eval()
	}
	return n.fn(n.buf)
}

// variadicNode calls a built-in over the concatenation of its arguments,
// where each vector argument contributes all of its elements.
type variadicNode struct {
	fn   func(args []float64) float64
	args []node
	buf  []float64
}

func (n *variadicNode) eval() float64 {
	buf := n.buf[:0]
	for _, a := range n.args {
		if v, ok := a.(vectorNode); ok {
			buf = append(buf, v.vec()...)
			continue
		}
		buf = append(buf, a.eval())
	}
	return n.fn(buf)
}

// -------------------------------------------------------------- sequences

type seqNode struct {
	stmts []node
}

func (n *seqNode) run() {
	for _, s := range n.stmts[:len(n.stmts)-1] {
		s.eval()
	}
}

func (n *seqNode) last() node { return n.stmts[len(n.stmts)-1] }

func (n *seqNode) eval() float64 {
	n.run()
	return n.last().eval()
}

type stringSeqNode struct{ *seqNode }

func (n stringSeqNode) str() string {
	n.run()
	return n.last().(stringNode).str()
}

func (n stringSeqNode) eval() float64 { return float64(len(n.str())) }

type vectorSeqNode struct{ *seqNode }

func (n vectorSeqNode) vec() []float64 {
	n.run()
	return n.last().(vectorNode).vec()
}

func (n vectorSeqNode) size() int     { return n.last().(vectorNode).size() }
func (n vectorSeqNode) eval() float64 { return first(n.vec()) }

// newSeq wraps stmts so the sequence has the type of its last statement.
func newSeq(stmts []node) node {
	if len(stmts) == 1 {
		return stmts[0]
	}
	s := &seqNode{stmts: stmts}
	switch s.last().(type) {
	case stringNode:
		return stringSeqNode{s}
	case vectorNode:
		return vectorSeqNode{s}
	}
	return s
}

// ----------------------------------------------------------- control flow

type whileNode struct{ cond, body node }

func (n *whileNode) eval() float64 {
	r := math.NaN()
	for n.cond.eval() != 0 {
		r = n.body.eval()
	}
	return r
}

type forNode struct{ init, cond, incr, body node }

func (n *forNode) eval() float64 {
	r := math.NaN()
	if n.init != nil {
		n.init.eval()
	}
	for n.cond == nil || n.cond.eval() != 0 {
		r = n.body.eval()
		if n.incr != nil {
			n.incr.eval()
		}
	}
	return r
}

type repeatNode struct{ body, until node }

func (n *repeatNode) eval() float64 {
	var r float64
	for {
		r = n.body.eval()
		if n.until.eval() != 0 {
			return r
		}
	}
}

type switchNode struct {
	conds []node
	exprs []node
	def   node
}

func (n *switchNode) eval() float64 {
	for i, c := range n.conds {
		if c.eval() != 0 {
			return n.exprs[i].eval()
		}
	}
	if n.def == nil {
		return math.NaN()
	}
	return n.def.eval()
}

// ------------------------------------------------------------ assignments

type assignNode struct {
	p  *float64
	x  node
	op func(a, b float64) float64 // nil for plain assignment
}

func (n *assignNode) eval() float64 {
	v := n.x.eval()
	if n.op != nil {
		v = n.op(*n.p, v)
	}
	*n.p = v
	return v
}

type elemAssignNode struct {
	v   []float64
	idx node
	x   node
	op  func(a, b float64) float64
}

func (n *elemAssignNode) eval() float64 {
	i, ok := index(n.idx.eval(), len(n.v))
	v := n.x.eval()
	if !ok {
		return math.NaN()
	}
	if n.op != nil {
		v = n.op(n.v[i], v)
	}
	n.v[i] = v
	return v
}

// vecAssignNode assigns element-wise from a vector, or broadcasts a scalar.
type vecAssignNode struct {
	dst []float64
	src node
	op  func(a, b float64) float64
}

func (n *vecAssignNode) vec() []float64 {
	if sv, ok := n.src.(vectorNode); ok {
		src := sv.vec()
		for i := 0; i < len(n.dst) && i < len(src); i++ {
			n.dst[i] = n.apply(n.dst[i], src[i])
		}
		return n.dst
	}
	x := n.src.eval()
	for i := range n.dst {
		n.dst[i] = n.apply(n.dst[i], x)
	}
	return n.dst
}

func (n *vecAssignNode) apply(a, b float64) float64 {
	if n.op == nil {
		return b
	}
	return n.op(a, b)
}

func (n *vecAssignNode) size() int     { return len(n.dst) }
func (n *vecAssignNode) eval() float64 { return first(n.vec()) }

type strAssignNode struct {
	dst    *StringVar
	x      stringNode
	concat bool
}

func (n *strAssignNode) str() string {
	s := n.x.str()
	if n.concat {
		s = n.dst.Get() + s
	}
	n.dst.Set(s)
	return s
}

func (n *strAssignNode) eval() float64 { return float64(len(n.str())) }

// declNode initialises a local scalar each time the expression runs.
type declNode struct {
	p    *float64
	init node
}

func (n *declNode) eval() float64 {
	*n.p = 0
	if n.init != nil {
		*n.p = n.init.eval()
	}
	return *n.p
}

type strDeclNode struct {
	dst  *StringVar
	init stringNode
}

func (n *strDeclNode) str() string {
	s := ""
	if n.init != nil {
		s = n.init.str()
	}
	n.dst.Set(s)
	return s
}

func (n *strDeclNode) eval() float64 { return float64(len(n.str())) }

// vecDeclNode initialises a local vector from a literal list, a vector or a
// scalar. Elements not covered by the initializer are zero.
type vecDeclNode struct {
	dst  []float64
	list []node
	init node
}

func (n *vecDeclNode) vec() []float64 {
	for i := range n.dst {
		n.dst[i] = 0
	}
	switch {
	case n.list != nil:
		for i, e := range n.list {
			n.dst[i] = e.eval()
		}
	case n.init != nil:
		if v, ok := n.init.(vectorNode); ok {
			copy(n.dst, v.vec())
			break
		}
		x := n.init.eval()
		for i := range n.dst {
			n.dst[i] = x
		}
	}
	return n.dst
}

func (n *vecDeclNode) size() int     { return len(n.dst) }
func (n *vecDeclNode) eval() float64 { return first(n.vec()) }

// ---------------------------------------------------------------- vectors

type vecVarNode struct {
	name string
	v    []float64
}

func (n *vecVarNode) vec() []float64 { return n.v }
func (n *vecVarNode) size() int      { return len(n.v) }
func (n *vecVarNode) eval() float64  { return first(n.v) }

// indexNode reads one element; out of range indexes evaluate to NaN.
type indexNode struct {
	v   vectorNode
	idx node
}

func (n *indexNode) eval() float64 {
	v := n.v.vec()
	i, ok := index(n.idx.eval(), len(v))
	if !ok {
		return math.NaN()
	}
	return v[i]
}

// vecBinaryNode applies f element-wise. A scalar operand is broadcast; two
// vectors are combined up to the shorter length.
type vecBinaryNode struct {
	a, b   node
	av, bv vectorNode
	f      func(a, b float64) float64
	out    []float64
}

func newVecBinary(a, b node, f func(a, b float64) float64) *vecBinaryNode {
	n := &vecBinaryNode{a: a, b: b, f: f}
	size := -1
	if v, ok := a.(vectorNode); ok {
		n.av = v
		size = v.size()
	}
	if v, ok := b.(vectorNode); ok {
		n.bv = v
		if size < 0 || v.size() < size {
			size = v.size()
		}
	}
	n.out = make([]float64, size)
	return n
}

func (n *vecBinaryNode) vec() []float64 {
	var av, bv []float64
	var as, bs float64
	if n.av != nil {
		av = n.av.vec()
	} else {
		as = n.a.eval()
	}
	if n.bv != nil {
		bv = n.bv.vec()
	} else {
		bs = n.b.eval()
	}
	for i := range n.out {
		x, y := as, bs
		if av != nil {
			x = av[i]
		}
		if bv != nil {
			y = bv[i]
		}
		n.out[i] = n.f(x, y)
	}
	return n.out
}

func (n *vecBinaryNode) size() int     { return len(n.out) }
func (n *vecBinaryNode) eval() float64 { return first(n.vec()) }

type vecNegNode struct {
	x   vectorNode
	out []float64
}

func (n *vecNegNode) vec() []float64 {
	for i, v := range n.x.vec() {
		n.out[i] = -v
	}
	return n.out
}

func (n *vecNegNode) size() int     { return len(n.out) }
func (n *vecNegNode) eval() float64 { return first(n.vec()) }

// ---------------------------------------------------------------- strings

type strConstNode struct{ s string }

func (n *strConstNode) str() string   { return n.s }
func (n *strConstNode) eval() float64 { return float64(len(n.s)) }

type strVarNode struct {
	name     string
	s        *StringVar
	constant bool
}

func (n *strVarNode) str() string   { return n.s.Get() }
func (n *strVarNode) eval() float64 { return float64(n.s.Len()) }

type strLenNode struct{ s stringNode }

func (n *strLenNode) eval() float64 { return float64(len(n.s.str())) }

type concatNode struct{ a, b stringNode }

func (n *concatNode) str() string   { return n.a.str() + n.b.str() }
func (n *concatNode) eval() float64 { return float64(len(n.str())) }

// substrNode is s[lo:hi] with both bounds inclusive. A missing bound means
// the start or end of the string.
type substrNode struct {
	s      stringNode
	lo, hi node
}

func (n *substrNode) str() string {
	s := n.s.str()
	lo, hi := 0, len(s)-1
	if n.lo != nil {
		lo = int(n.lo.eval())
	}
	if n.hi != nil {
		hi = int(n.hi.eval())
	}
	if lo < 0 {
		lo = 0
	}
	if hi >= len(s) {
		hi = len(s) - 1
	}
	if lo > hi {
		return ""
	}
	return s[lo : hi+1]
}

func (n *substrNode) eval() float64 { return float64(len(n.str())) }

type strCondNode struct {
	c    node
	a, b stringNode
}

func (n *strCondNode) str() string {
	if n.c.eval() != 0 {
		return n.a.str()
	}
	return n.b.str()
}

func (n *strCondNode) eval() float64 { return float64(len(n.str())) }

type strCompareNode struct {
	a, b stringNode
	f    func(a, b string) bool
}

func (n *strCompareNode) eval() float64 { return truth(n.f(n.a.str(), n.b.str())) }

var stringComparisons = map[string]func(a, b string) bool{
	"==":    func(a, b string) bool { return a == b },
	"!=":    func(a, b string) bool { return a != b },
	"<":     func(a, b string) bool { return a < b },
	"<=":    func(a, b string) bool { return a <= b },
	">":     func(a, b string) bool { return a > b },
	">=":    func(a, b string) bool { return a >= b },
	"in":    func(a, b string) bool { return strings.Contains(b, a) },
	"like":  func(a, b string) bool { return wildcardMatch(b, a) },
	"ilike": func(a, b string) bool { return wildcardMatch(strings.ToLower(b), strings.ToLower(a)) },
}
