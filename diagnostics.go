package formula

import (
	"fmt"
	"strings"

	"github.com/Delta456/box-cli-maker/v2"
	"github.com/alexeyco/simpletable"
	"github.com/ezachrisen/formula/lexer"
)

// ErrorKind classifies a compile diagnostic.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota

	// ErrorLexer is a malformed token: an unterminated string or comment, a
	// bad numeric literal or an illegal character.
	ErrorLexer

	// ErrorSyntax is a grammar violation.
	ErrorSyntax

	// ErrorSemantic covers well-formed input that cannot be compiled: undefined
	// symbols, unknown functions, arity and type mismatches, assignments to
	// constants and constant indexes out of range.
	ErrorSemantic

	// ErrorResolver is a symbol rejected by the Resolver. The message is the
	// resolver's message.
	ErrorResolver
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorLexer:
		return "lexer"
	case ErrorSyntax:
		return "syntax"
	case ErrorSemantic:
		return "semantic"
	case ErrorResolver:
		return "resolver"
	default:
		return "unknown"
	}
}

// ParseError is one diagnostic from a failed compile.
type ParseError struct {
	Kind       ErrorKind
	TokenType  string // classified token type, e.g. SYMBOL, NUMBER, +
	TokenValue string // literal token text
	Message    string
	Line       string // the source line containing the token
	LineNo     int    // 1-based, 0 when unknown
	ColumnNo   int    // 1-based, 0 when unknown
	Offset     int    // byte offset of the token in the source
}

func (e *ParseError) Error() string {
	if e.LineNo > 0 || e.ColumnNo > 0 {
		return fmt.Sprintf("Parse error at line %d, column %d (%s): %s", e.LineNo, e.ColumnNo, e.TokenValue, e.Message)
	}
	return fmt.Sprintf("Parse error at %s: %s", e.TokenValue, e.Message)
}

// Snippet renders the offending line with a caret under the column.
//
//	   1 | a + 1 + b
//	     |         ^ undefined symbol: 'b'
func (e *ParseError) Snippet() string {
	if e.LineNo == 0 {
		return e.Error()
	}
	col := e.ColumnNo
	if col < 1 {
		col = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%4d | %s\n", e.LineNo, e.Line)
	fmt.Fprintf(&b, "     | %s^ %s", strings.Repeat(" ", col-1), e.Message)
	return b.String()
}

func newParseError(src string, tok lexer.Token, kind ErrorKind, msg string) *ParseError {
	return &ParseError{
		Kind:       kind,
		TokenType:  tok.Type.String(),
		TokenValue: tok.Value,
		Message:    msg,
		Line:       sourceLine(src, tok.Offset),
		LineNo:     tok.Line,
		ColumnNo:   tok.Column,
		Offset:     tok.Offset,
	}
}

// sourceLine returns the line of src containing offset, without its newline.
func sourceLine(src string, offset int) string {
	if offset > len(src) {
		offset = len(src)
	}
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[offset:], '\n')
	if end < 0 {
		return strings.TrimRight(src[start:], "\r")
	}
	return strings.TrimRight(src[start:offset+end], "\r")
}

// CompileError is returned by a failed compile. It holds at least one
// diagnostic.
type CompileError struct {
	Source string
	Errors []*ParseError
}

func (e *CompileError) Error() string {
	if len(e.Errors) == 0 {
		return "compile failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Unwrap exposes the individual diagnostics to errors.As.
func (e *CompileError) Unwrap() []error {
	l := make([]error, len(e.Errors))
	for i := range e.Errors {
		l[i] = e.Errors[i]
	}
	return l
}

// First returns the first diagnostic.
func (e *CompileError) First() *ParseError {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// Report renders the source and the diagnostics as a boxed report for
// terminal display.
func (e *CompileError) Report() string {
	Box := box.New(box.Config{Px: 2, Py: 1, Type: "Double", Color: "Cyan", TitlePos: "Top", ContentAlign: "Left"})

	s := strings.Builder{}
	s.WriteString("Expression:\n")
	s.WriteString("-----------\n")
	s.WriteString(wordWrap(e.Source, 100))
	s.WriteString("\n\n")

	if len(e.Errors) > 0 && e.Errors[0].LineNo > 0 {
		s.WriteString(e.Errors[0].Snippet())
		s.WriteString("\n\n")
	}

	s.WriteString("Diagnostics:\n")
	s.WriteString("------------\n")
	s.WriteString(e.diagnosticTable().String())

	return Box.String("FORMULA COMPILE REPORT", s.String())
}

func (e *CompileError) diagnosticTable() *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Loc"},
			{Align: simpletable.AlignCenter, Text: "Kind"},
			{Align: simpletable.AlignCenter, Text: "Token"},
			{Align: simpletable.AlignCenter, Text: "Message"},
		},
	}

	for _, d := range e.Errors {
		r := []*simpletable.Cell{
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d:%d", d.LineNo, d.ColumnNo)},
			{Text: d.Kind.String()},
			{Text: fmt.Sprintf("%s %q", d.TokenType, d.TokenValue)},
			{Text: d.Message},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}

	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func wordWrap(text string, lineWidth int) string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return text
	}
	wrapped := words[0]
	spaceLeft := lineWidth - len(wrapped)
	for _, word := range words[1:] {
		if len(word)+1 > spaceLeft {
			wrapped += "\n" + word
			spaceLeft = lineWidth - len(word)
		} else {
			wrapped += " " + word
			spaceLeft -= 1 + len(word)
		}
	}

	return wrapped
}
