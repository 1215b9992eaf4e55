package formula_test

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/ezachrisen/formula"
	"github.com/matryer/is"
)

func TestEvaluate(t *testing.T) {

	cases := map[string]struct {
		src  string
		want float64
	}{
		// arithmetic
		"precedence":          {src: "1 + 2 * 3", want: 7},
		"parentheses":         {src: "(1 + 2) * 3", want: 9},
		"power associativity": {src: "2 ^ 3 ^ 2", want: 512},
		"negated power":       {src: "-2 ^ 2", want: -4},
		"power of negative":   {src: "(-2) ^ 2", want: 4},
		"modulus":             {src: "10 % 4", want: 2},
		"division":            {src: "7 / 2", want: 3.5},
		"division by zero":    {src: "1 / 0", want: math.Inf(1)},
		"unary plus":          {src: "+x", want: 2},
		"scientific":          {src: "1e3 + .5", want: 1000.5},
		"variables":           {src: "x + y", want: 5},
		"names ignore case":   {src: "X * Y", want: 6},

		// implicit multiplication
		"number symbol":      {src: "2x", want: 4},
		"number power":       {src: "2x^3", want: 16},
		"number parentheses": {src: "3(x + 1)", want: 9},
		"number constant":    {src: "2pi", want: 2 * math.Pi},

		// logic and comparison
		"and":           {src: "x > 1 and y > 1", want: 1},
		"and symbol":    {src: "x > 1 && y < 1", want: 0},
		"or":            {src: "x > 5 or y > 5", want: 0},
		"or symbol":     {src: "x > 5 || y > 2", want: 1},
		"xor":           {src: "x xor y", want: 0},
		"nand":          {src: "x nand 0", want: 1},
		"nor":           {src: "0 nor 0", want: 1},
		"xnor":          {src: "1 xnor 0", want: 0},
		"not":           {src: "not (x > 1)", want: 0},
		"bang":          {src: "!0", want: 1},
		"equal":         {src: "x == 2", want: 1},
		"single equal":  {src: "x = 2", want: 1},
		"not equal":     {src: "x <> 3", want: 1},
		"less or equal": {src: "x <= 2", want: 1},
		"booleans":      {src: "true + true + false", want: 2},

		// conditionals
		"ternary":           {src: "x > 1 ? 10 : 20", want: 10},
		"nested ternary":    {src: "x > 5 ? 1 : y > 2 ? 2 : 3", want: 2},
		"if function":       {src: "if(x > 1, 10, 20)", want: 10},
		"if else":           {src: "if (x < 1) 10 else 20", want: 20},
		"if semicolon else": {src: "if (x > 1) 10; else 20", want: 10},
		"if without else":   {src: "if (x < 1) 10", want: math.NaN()},
		"if block":          {src: "if (x > 1) { y := 7; y * 2 } else { 0 }", want: 14},

		// built-in functions
		"abs":        {src: "abs(-3)", want: 3},
		"upper case": {src: "SIN(0)", want: 0},
		"min":        {src: "min(4, x, 9)", want: 2},
		"max":        {src: "max(4, x, 9)", want: 9},
		"clamp":      {src: "clamp(0, 5, 3)", want: 3},
		"inrange":    {src: "inrange(1, x, 3)", want: 1},
		"roundn":     {src: "roundn(3.14159, 2)", want: 3.14},
		"hypot":      {src: "hypot(3, 4)", want: 5},
		"log exp":    {src: "log(exp(2))", want: 2},
		"sgn":        {src: "sgn(-4) + sgn(0)", want: -1},
		"nested":     {src: "sqrt(pow(x, 2) + pow(y + 1, 2) * 0 + 5 ^ 2 - 4)", want: 5},

		// constants
		"pi":      {src: "pi", want: math.Pi},
		"inf":     {src: "inf > 1e308", want: 1},
		"epsilon": {src: "epsilon < 1e-9", want: 1},

		// statements and assignment
		"sequence":        {src: "1; 2; 3", want: 3},
		"trailing ;":      {src: "x;", want: 2},
		"assign":          {src: "x := 5; x * 2", want: 10},
		"add assign":      {src: "x += 3; x", want: 5},
		"mul assign":      {src: "y *= 2", want: 6},
		"mod assign":      {src: "y %= 2", want: 1},
		"declare":         {src: "var a := 3; var b := 4; a * b", want: 12},
		"declare default": {src: "var a; a", want: 0},
		"brace block":     {src: "{x + 1}", want: 3},
		"tilde block":     {src: "~(1; 2)", want: 2},
		"comment":         {src: "# leading comment\nx", want: 2},
		"block comment":   {src: "x /* inline */ + 1", want: 3},
		"line comment":    {src: "x + 1 // trailing", want: 3},

		// loops
		"for":            {src: "var total := 0; for (var i := 0; i < 5; i += 1) { total += i }; total", want: 10},
		"while":          {src: "var n := 0; while (n < 10) { n += 3 }; n", want: 12},
		"repeat":         {src: "var n := 0; repeat n += 2; until (n >= 7); n", want: 8},
		"while never":    {src: "while (x < 0) 1", want: math.NaN()},
		"switch":         {src: "switch { case x > 5: 10; case x == 2: 20; default: 30 }", want: 20},
		"switch default": {src: "switch { case x > 5: 10; default: 30 }", want: 30},
		"switch none":    {src: "switch { case x > 5: 10 }", want: math.NaN()},

		// strings
		"string projection": {src: "s", want: 5},
		"string length":     {src: "s[]", want: 5},
		"substring":         {src: "s[1:3]", want: 3},
		"substring value":   {src: "s[1:3] == 'ell'", want: 1},
		"substring open hi": {src: "s[3:] == 'lo'", want: 1},
		"substring open lo": {src: "s[:1] == 'he'", want: 1},
		"character":         {src: "s[0] == 'h'", want: 1},
		"substring clamped": {src: "s[2:100] == 'llo'", want: 1},
		"concatenate":       {src: "s + ' world'", want: 11},
		"string equal":      {src: "s == 'hello'", want: 1},
		"string order":      {src: "'abc' < 'abd'", want: 1},
		"in":                {src: "'ell' in s", want: 1},
		"like":              {src: "s like 'h*o'", want: 1},
		"like case":         {src: "s like 'H*'", want: 0},
		"ilike":             {src: "s ilike 'H?LLO'", want: 1},
		"string assign":     {src: "s := 'hey'; s[]", want: 3},
		"string append":     {src: "s += '!'; s", want: 6},
		"string local":      {src: "var t := 'ab'; t += 'cd'; t[]", want: 4},
		"string ternary":    {src: "x > 1 ? 'yes' : 'no'", want: 3},
		"escapes":           {src: `'a\'b\n'[]`, want: 4},

		// vectors
		"element":           {src: "v[0] + v[2]", want: 4},
		"vector size":       {src: "v[]", want: 3},
		"variable index":    {src: "v[x]", want: 3},
		"index past end":    {src: "v[x + 5]", want: math.NaN()},
		"vector projection": {src: "v", want: 1},
		"sum":               {src: "sum(v)", want: 6},
		"avg":               {src: "avg(v, 4)", want: 2.5},
		"mul":               {src: "mul(v)", want: 6},
		"max vector":        {src: "max(v)", want: 3},
		"scale":             {src: "sum(v * 2)", want: 12},
		"scale left":        {src: "sum(2 * v)", want: 12},
		"vector add":        {src: "sum(v + v)", want: 12},
		"negate":            {src: "sum(-v)", want: -6},
		"negate projection": {src: "-v", want: -1},
		"broadcast assign":  {src: "v += 1; sum(v)", want: 9},
		"element assign":    {src: "v[1] := 10; sum(v)", want: 14},
		"local list":        {src: "var w[3] := {1, 2}; sum(w)", want: 3},
		"local fill":        {src: "var w[3] := 5; sum(w)", want: 15},
		"local copy":        {src: "var w[2] := v; sum(w)", want: 3},
		"local size":        {src: "var w[4]; w[]", want: 4},
		"local element":     {src: "var w[3]; w[2] := 4; w[2] * 2", want: 8},
	}

	for k, c := range cases {
		f := newFixture(t)
		e, err := formula.Compile(c.src, f.table, formula.WithLogger(testLogger(t)))
		if err != nil {
			t.Errorf("case %s: compiling %q: %v", k, c.src, err)
			continue
		}
		if err := approx(e.Value(), c.want); err != nil {
			t.Errorf("case %s: %q: %v", k, c.src, err)
		}
	}
}

// Locals are initialised on every evaluation, so repeated evaluation gives
// the same result.
func TestRepeatedEvaluation(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	e, err := formula.Compile("var total := 0; for (var i := 0; i < 5; i += 1) { total += i }; total", f.table)
	is.NoErr(err)
	for i := 0; i < 3; i++ {
		is.Equal(e.Value(), 10.0)
	}

	// assignments to table variables persist
	e, err = formula.Compile("x += 1", f.table)
	is.NoErr(err)
	is.Equal(e.Value(), 3.0)
	is.Equal(e.Value(), 4.0)
	x, _ := f.table.Value("x")
	is.Equal(x, 4.0)
}

// Expressions read the current value of caller-owned storage.
func TestLiveBindings(t *testing.T) {
	is := is.New(t)
	table := formula.NewSymbolTable()

	x := 1.0
	is.NoErr(table.AddVariable("x", &x, false))
	v := []float64{1, 2}
	is.NoErr(table.AddVector("v", v))
	s := formula.NewStringVar("ab")
	is.NoErr(table.AddStringVar("s", s, false))

	e, err := formula.Compile("x * 10 + sum(v) + s[]", table)
	is.NoErr(err)
	is.Equal(e.Value(), 15.0)

	x = 2
	v[0] = 10
	s.Set("abcd")
	is.Equal(e.Value(), 36.0)
}

func TestUserFunctions(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	_, err := f.table.AddFunc1("double", func(a float64) float64 { return 2 * a })
	is.NoErr(err)
	_, err = f.table.AddFunc3("lerp", func(a, b, t float64) float64 { return a + (b-a)*t })
	is.NoErr(err)

	calls := 0
	ten, err := formula.NewFunction(10, func(args []float64) float64 {
		calls++
		s := 0.0
		for _, a := range args {
			s += a
		}
		return s
	})
	is.NoErr(err)
	_, err = f.table.AddFunction("sum10", ten)
	is.NoErr(err)

	cases := map[string]struct {
		src  string
		want float64
	}{
		"one":        {src: "double(x)", want: 4},
		"three":      {src: "lerp(0, 10, 0.25)", want: 2.5},
		"ten":        {src: "sum10(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)", want: 55},
		"nested":     {src: "double(double(y))", want: 12},
		"case":       {src: "DOUBLE(1)", want: 2},
		"in ternary": {src: "x > 1 ? double(1) : 0", want: 2},
	}
	for k, c := range cases {
		e, err := formula.Compile(c.src, f.table)
		if err != nil {
			t.Errorf("case %s: %v", k, err)
			continue
		}
		if err := approx(e.Value(), c.want); err != nil {
			t.Errorf("case %s: %v", k, err)
		}
	}

	// user functions are called on every evaluation, even with constant arguments
	calls = 0
	e, err := formula.Compile("sum10(1, 1, 1, 1, 1, 1, 1, 1, 1, 1)", f.table)
	is.NoErr(err)
	e.Value()
	e.Value()
	is.Equal(calls, 2)

	_, err = formula.Compile("double(1, 2)", f.table)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "arity mismatch: 'double' expects 1 arguments, got 2"))
}

func TestCompileErrors(t *testing.T) {

	cases := map[string]struct {
		src    string
		kind   formula.ErrorKind
		msg    string
		column int // 0 skips the check
	}{
		"empty":              {src: "", kind: formula.ErrorSyntax, msg: "empty expression"},
		"only separators":    {src: " ; ; ", kind: formula.ErrorSyntax, msg: "empty expression"},
		"dangling operator":  {src: "1 +", kind: formula.ErrorSyntax, msg: "unexpected end of expression"},
		"missing separator":  {src: "1 2", kind: formula.ErrorSyntax, msg: "expected ';' but found '2'", column: 3},
		"unclosed paren":     {src: "(1 + 2", kind: formula.ErrorSyntax, msg: "expected ')' but found end of expression"},
		"empty block":        {src: "()", kind: formula.ErrorSyntax, msg: "empty block"},
		"stray keyword":      {src: "else", kind: formula.ErrorSyntax, msg: "unexpected token 'else'", column: 1},
		"undefined":          {src: "x + foo", kind: formula.ErrorSemantic, msg: "undefined symbol: 'foo'", column: 5},
		"unknown function":   {src: "foo(1)", kind: formula.ErrorSemantic, msg: "unknown function: 'foo'", column: 1},
		"builtin arity":      {src: "sin(1, 2)", kind: formula.ErrorSemantic, msg: "arity mismatch: 'sin' expects 1 arguments, got 2"},
		"variadic empty":     {src: "sum()", kind: formula.ErrorSemantic, msg: "expects at least 1 argument"},
		"bare builtin":       {src: "sin + 1", kind: formula.ErrorSemantic, msg: "function 'sin' requires arguments"},
		"assign constant":    {src: "pi := 3", kind: formula.ErrorSemantic, msg: "cannot assign to constant 'pi'"},
		"assign literal":     {src: "1 := 2", kind: formula.ErrorSyntax, msg: "invalid assignment target"},
		"string plus scalar": {src: "s + 1", kind: formula.ErrorSemantic, msg: "type mismatch for operator '+'"},
		"string product":     {src: "s * s", kind: formula.ErrorSemantic, msg: "type mismatch for operator '*'"},
		"string argument":    {src: "abs(s)", kind: formula.ErrorSemantic, msg: "type mismatch"},
		"mixed branches":     {src: "x ? 1 : 's'", kind: formula.ErrorSemantic, msg: "type mismatch for operator '?'"},
		"scalar like":        {src: "x like 2", kind: formula.ErrorSemantic, msg: "operator 'like' requires string operands"},
		"index range":        {src: "v[5]", kind: formula.ErrorSemantic, msg: "index 5 out of range for vector"},
		"negative index":     {src: "v[-1]", kind: formula.ErrorSemantic, msg: "index -1 out of range for vector"},
		"nan index":          {src: "v[0/0]", kind: formula.ErrorSemantic, msg: "index NaN out of range for vector"},
		"huge index":         {src: "v[1e300]", kind: formula.ErrorSemantic, msg: "index 1e+300 out of range for vector"},
		"vector too large":   {src: "var w[1e9]", kind: formula.ErrorSemantic, msg: "vector size 1e+09 exceeds the limit of 1048576"},
		"index scalar":       {src: "x[0]", kind: formula.ErrorSemantic, msg: "cannot index a scalar"},
		"redeclare":          {src: "var x := 1", kind: formula.ErrorSemantic, msg: "symbol 'x' is already defined"},
		"declare reserved":   {src: "var if := 1", kind: formula.ErrorSemantic, msg: "'if' is a reserved symbol"},
		"vector size":        {src: "var w[x]", kind: formula.ErrorSemantic, msg: "vector size must be a constant"},
		"zero size":          {src: "var w[0]", kind: formula.ErrorSemantic, msg: "invalid vector size 0"},
		"initializers":       {src: "var w[2] := {1, 2, 3}", kind: formula.ErrorSemantic, msg: "too many initializers for vector 'w'"},
		"unterminated":       {src: "1 + 'abc", kind: formula.ErrorLexer, msg: "unterminated string literal", column: 5},
		"bad escape":         {src: `'\q'`, kind: formula.ErrorLexer, msg: "invalid escape sequence"},
		"illegal character":  {src: "1 $ 2", kind: formula.ErrorLexer, msg: "illegal character", column: 3},
		"malformed number":   {src: "1.2.3", kind: formula.ErrorLexer, msg: "malformed numeric literal"},
		"open comment":       {src: "1 /* never closed", kind: formula.ErrorLexer, msg: "unterminated comment"},
	}

	for k, c := range cases {
		f := newFixture(t)
		e := formula.NewExpression(f.table)
		p := formula.NewParser()
		err := p.Compile(c.src, e)
		if err == nil {
			t.Errorf("case %s: expected an error compiling %q", k, c.src)
			continue
		}
		if e.IsCompiled() {
			t.Errorf("case %s: failed compile left the expression compiled", k)
		}

		var ce *formula.CompileError
		if !errors.As(err, &ce) {
			t.Errorf("case %s: wanted a *CompileError, got %T", k, err)
			continue
		}
		pe := p.Error(0)
		if pe == nil || pe != ce.First() {
			t.Errorf("case %s: parser and error disagree on the first diagnostic", k)
			continue
		}
		if pe.Kind != c.kind {
			t.Errorf("case %s: wanted kind %s, got %s (%v)", k, c.kind, pe.Kind, pe)
		}
		if !strings.Contains(pe.Message, c.msg) {
			t.Errorf("case %s: wanted message containing %q, got %q", k, c.msg, pe.Message)
		}
		if c.column != 0 && pe.ColumnNo != c.column {
			t.Errorf("case %s: wanted column %d, got %d", k, c.column, pe.ColumnNo)
		}
	}
}

func TestMultipleErrors(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	p := formula.NewParser()
	err := p.Compile("1 +; 2 *; 3", formula.NewExpression(f.table))
	is.True(err != nil)
	is.Equal(p.ErrorCount(), 2)
	is.Equal(p.Error(0).ColumnNo, 4)
	is.Equal(p.Error(1).ColumnNo, 9)
	is.True(p.Error(2) == nil)
	is.True(p.Error(-1) == nil)
	is.True(strings.HasSuffix(err.Error(), "(and 1 more errors)"))

	var pe *formula.ParseError
	is.True(errors.As(err, &pe))
	is.Equal(pe, p.Error(0))

	// a successful compile clears the diagnostics
	is.NoErr(p.Compile("1", formula.NewExpression(f.table)))
	is.Equal(p.ErrorCount(), 0)
	is.Equal(len(p.Errors()), 0)
}

func TestErrorLimit(t *testing.T) {
	is := is.New(t)
	src := strings.Repeat("foo; ", 50)
	p := formula.NewParser()
	err := p.Compile(src, formula.NewExpression(nil))
	is.True(err != nil)
	is.Equal(p.ErrorCount(), 10)
}

func TestErrorPosition(t *testing.T) {
	is := is.New(t)
	table := formula.NewSymbolTable()
	is.NoErr(table.CreateVariable("a", 1))

	p := formula.NewParser()
	err := p.Compile("a + 1 + b", formula.NewExpression(table))
	is.True(err != nil)

	pe := p.Error(0)
	is.Equal(pe.LineNo, 1)
	is.Equal(pe.ColumnNo, 9)
	is.Equal(pe.Offset, 8)
	is.Equal(pe.TokenType, "SYMBOL")
	is.Equal(pe.TokenValue, "b")
	is.Equal(pe.Line, "a + 1 + b")
	is.Equal(err.Error(), "Parse error at line 1, column 9 (b): undefined symbol: 'b'")

	// second line
	err = p.Compile("a := 2;\n  a + c", formula.NewExpression(table))
	is.True(err != nil)
	pe = p.Error(0)
	is.Equal(pe.LineNo, 2)
	is.Equal(pe.ColumnNo, 7)
	is.Equal(pe.Line, "  a + c")
}

func TestMaxDepth(t *testing.T) {
	is := is.New(t)
	deep := strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300)

	_, err := formula.Compile(deep, nil)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "maximum nesting depth of 256 exceeded"))

	e, err := formula.Compile(deep, nil, formula.MaxDepth(1000))
	is.NoErr(err)
	is.Equal(e.Value(), 1.0)

	_, err = formula.Compile("1 + (2 * (3 - 1))", nil, formula.MaxDepth(3))
	is.True(err != nil)

	unary := strings.Repeat("-", 400) + "1"
	_, err = formula.Compile(unary, nil)
	is.True(err != nil)
}

// Indexes that are NaN, infinite or beyond the range of int evaluate to NaN.
func TestIndexOutOfRange(t *testing.T) {

	cases := map[string]struct {
		src string
		x   float64
	}{
		"nan":             {src: "v[x]", x: math.NaN()},
		"huge":            {src: "v[x]", x: 1e19},
		"huge negative":   {src: "v[x]", x: -1e19},
		"infinite":        {src: "v[x]", x: math.Inf(1)},
		"scaled":          {src: "v[x * 1e300]", x: 1},
		"assign nan":      {src: "v[x] := 1", x: math.NaN()},
		"assign huge":     {src: "v[x] += 1", x: 1e19},
		"fraction at end": {src: "v[x]", x: 2.999},
	}

	for k, c := range cases {
		f := newFixture(t)
		e, err := formula.Compile(c.src, f.table)
		if err != nil {
			t.Fatalf("case %s: %v", k, err)
		}
		f.table.SetValue("x", c.x)
		got := e.Value()
		want := math.NaN()
		if k == "fraction at end" {
			want = 3
		}
		if err := approx(got, want); err != nil {
			t.Errorf("case %s: %v", k, err)
		}
		if !slices.Equal(f.v, []float64{1, 2, 3}) {
			t.Errorf("case %s: vector changed to %v", k, f.v)
		}
	}

	// without folding the constant indexes reach evaluation
	for _, src := range []string{"v[0/0]", "v[1e300 * 2]", "v[-1e300]"} {
		f := newFixture(t)
		e, err := formula.Compile(src, f.table, formula.ConstantFolding(false))
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if got := e.Value(); !math.IsNaN(got) {
			t.Errorf("%s: wanted NaN, got %v", src, got)
		}
	}
}

func TestMaxVectorSize(t *testing.T) {
	is := is.New(t)

	p := formula.NewParser()
	err := p.Compile("var w[2000000]; 1", formula.NewExpression(nil))
	is.True(err != nil)
	is.Equal(p.Error(0).Kind, formula.ErrorSemantic)
	is.Equal(p.Error(0).Message, "vector size 2e+06 exceeds the limit of 1048576")

	// the default allows the limit itself
	is.NoErr(p.Compile("var w[1048576]; w[]", formula.NewExpression(nil)))

	p = formula.NewParser(formula.MaxVectorSize(4))
	err = p.Compile("var w[5]; 1", formula.NewExpression(nil))
	is.True(err != nil)
	is.Equal(p.Error(0).Message, "vector size 5 exceeds the limit of 4")

	e := formula.NewExpression(nil)
	is.NoErr(p.Compile("var w[4] := {1, 2, 3, 4}; sum(w)", e))
	is.Equal(e.Value(), 10.0)

	// values below 1 keep the default
	_, err = formula.Compile("var w[1000]; w[]", nil, formula.MaxVectorSize(0))
	is.NoErr(err)
}

func TestDeclarationsOption(t *testing.T) {
	is := is.New(t)

	p := formula.NewParser(formula.AllowDeclarations(false))
	err := p.Compile("var a := 1; a", formula.NewExpression(nil))
	is.True(err != nil)
	is.Equal(p.Error(0).Message, "variable declarations are not allowed")

	// per-call options override the parser's
	is.NoErr(p.Compile("var a := 1; a", formula.NewExpression(nil), formula.AllowDeclarations(true)))
}

func TestFoldingDoesNotChangeResults(t *testing.T) {
	srcs := []string{
		"1 + 2 * 3 - 4 / 5",
		"pi * 2 ^ 3",
		"sin(pi / 4) + cos(0)",
		"max(1, 2, 3) + min(4, 5) + sum(1, 2)",
		"1 < 2 and 3 > 2 or 0",
		"1 ? 2 : 3",
		"if (0) 1 else 2",
		"-(3 % 2) + not 0",
		"x * (1 + 2)",
	}
	for _, src := range srcs {
		a := newFixture(t)
		b := newFixture(t)
		folded, err := formula.Compile(src, a.table)
		if err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		plain, err := formula.Compile(src, b.table, formula.ConstantFolding(false))
		if err != nil {
			t.Fatalf("%q: %v", src, err)
		}
		if err := approx(folded.Value(), plain.Value()); err != nil {
			t.Errorf("%q: %v", src, err)
		}
	}
}

func TestCompileRegistersTable(t *testing.T) {
	is := is.New(t)
	e := formula.NewExpression(nil)
	is.NoErr(formula.NewParser().Compile("1 + 1", e))
	is.True(e.Symbols() != nil)
	is.Equal(e.Value(), 2.0)
}

// A failed compile leaves the expression uncompiled, even if it compiled
// before.
func TestRecompileFailure(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	e := formula.NewExpression(f.table)
	p := formula.NewParser()

	is.NoErr(p.Compile("x + 1", e))
	is.Equal(e.Value(), 3.0)

	is.True(p.Compile("x +", e) != nil)
	is.True(!e.IsCompiled())
	is.True(math.IsNaN(e.Value()))

	is.NoErr(p.Compile("y", e))
	is.Equal(e.Value(), 3.0)
	is.Equal(e.Source(), "y")
}
