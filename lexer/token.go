package lexer

import "fmt"

// Type classifies a token.
type Type int

const (
	EOF Type = iota
	Error
	Ident
	Number
	String

	Plus  // +
	Minus // -
	Mul   // *
	Div   // /
	Mod   // %
	Pow   // ^

	Assign    // :=
	AddAssign // +=
	SubAssign // -=
	MulAssign // *=
	DivAssign // /=
	ModAssign // %=

	Eq // == or =
	Ne // != or <>
	Lt // <
	Le // <=
	Gt // >
	Ge // >=

	LogAnd // &&
	LogOr  // ||
	Amp    // &
	Pipe   // |
	Bang   // !
	Tilde  // ~

	Question // ?
	Colon    // :

	LParen    // (
	RParen    // )
	LBracket  // [
	RBracket  // ]
	LBrace    // {
	RBrace    // }
	Comma     // ,
	Semicolon // ;
)

var typeNames = map[Type]string{
	EOF:       "EOF",
	Error:     "ERROR",
	Ident:     "SYMBOL",
	Number:    "NUMBER",
	String:    "STRING",
	Plus:      "+",
	Minus:     "-",
	Mul:       "*",
	Div:       "/",
	Mod:       "%",
	Pow:       "^",
	Assign:    ":=",
	AddAssign: "+=",
	SubAssign: "-=",
	MulAssign: "*=",
	DivAssign: "/=",
	ModAssign: "%=",
	Eq:        "=",
	Ne:        "!=",
	Lt:        "<",
	Le:        "<=",
	Gt:        ">",
	Ge:        ">=",
	LogAnd:    "&&",
	LogOr:     "||",
	Amp:       "&",
	Pipe:      "|",
	Bang:      "!",
	Tilde:     "~",
	Question:  "?",
	Colon:     ":",
	LParen:    "(",
	RParen:    ")",
	LBracket:  "[",
	RBracket:  "]",
	LBrace:    "{",
	RBrace:    "}",
	Comma:     ",",
	Semicolon: ";",
}

// String returns the diagnostic name of the token type. Identifiers are
// reported as SYMBOL, operators as their canonical spelling.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Token is one lexical unit of an expression.
type Token struct {
	Type Type

	// Value is the literal text of the token. For strings it holds the
	// decoded contents without quotes.
	Value string

	// Message describes the fault for Error tokens.
	Message string

	// Offset is the byte offset of the first character.
	Offset int

	// Line and Column are 1-based.
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "EOF"
	case Error:
		return fmt.Sprintf("%d:%d error %q: %s", t.Line, t.Column, t.Value, t.Message)
	}
	return fmt.Sprintf("%d:%d %s %q", t.Line, t.Column, t.Type, t.Value)
}

// Is reports whether the token is an identifier spelled like word, ignoring case.
func (t Token) Is(word string) bool {
	if t.Type != Ident || len(t.Value) != len(word) {
		return false
	}
	for i := 0; i < len(word); i++ {
		if lower(t.Value[i]) != lower(word[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
