// Package lexer breaks formula source text into classified tokens.
//
// The lexer is lazy and single-pass: each call to Next scans just far enough
// to produce one token. Once an EOF or Error token has been returned, every
// following call returns the same token.
//
// Keywords (and, or, if, while, ...) are not classified here; they surface as
// Ident tokens and the parser decides their meaning by position.
package lexer

import "strings"

const (
	digits  = "0123456789"
	letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Lexer scans one source string.
type Lexer struct {
	input string

	pos  int // current byte offset
	line int // current line, 1-based
	col  int // current column, 1-based

	start     int // start offset of the token being scanned
	startLine int
	startCol  int

	done *Token // sticky EOF or Error token
}

// New returns a lexer positioned at the beginning of input.
func New(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

// Tokens scans the complete input, including the final EOF or Error token.
func Tokens(input string) []Token {
	l := New(input)
	var out []Token
	for {
		t := l.Next()
		out = append(out, t)
		if t.Type == EOF || t.Type == Error {
			return out
		}
	}
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	if l.done != nil {
		return *l.done
	}

	if t, ok := l.skipSpaceAndComments(); !ok {
		return l.finish(t)
	}

	l.mark()
	if l.pos >= len(l.input) {
		return l.finish(l.emit(EOF))
	}

	c := l.input[l.pos]
	switch {
	case isLetter(c):
		l.acceptRun(letters + digits + "_")
		return l.emit(Ident)
	case isDigit(c), c == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.lexNumber()
	case c == '\'':
		return l.lexString()
	case c >= 0x80:
		l.advance()
		for l.pos < len(l.input) && l.input[l.pos]&0xC0 == 0x80 {
			l.advance()
		}
		return l.finish(l.errorf("illegal non-ASCII character"))
	}

	l.advance()
	switch c {
	case '+':
		return l.either('=', AddAssign, Plus)
	case '-':
		return l.either('=', SubAssign, Minus)
	case '*':
		return l.either('=', MulAssign, Mul)
	case '/':
		return l.either('=', DivAssign, Div)
	case '%':
		return l.either('=', ModAssign, Mod)
	case '^':
		return l.emit(Pow)
	case ':':
		return l.either('=', Assign, Colon)
	case '=':
		l.accept("=")
		return l.emit(Eq)
	case '!':
		return l.either('=', Ne, Bang)
	case '<':
		if l.accept(">") {
			return l.emit(Ne)
		}
		return l.either('=', Le, Lt)
	case '>':
		return l.either('=', Ge, Gt)
	case '&':
		return l.either('&', LogAnd, Amp)
	case '|':
		return l.either('|', LogOr, Pipe)
	case '~':
		return l.emit(Tilde)
	case '?':
		return l.emit(Question)
	case '(':
		return l.emit(LParen)
	case ')':
		return l.emit(RParen)
	case '[':
		return l.emit(LBracket)
	case ']':
		return l.emit(RBracket)
	case '{':
		return l.emit(LBrace)
	case '}':
		return l.emit(RBrace)
	case ',':
		return l.emit(Comma)
	case ';':
		return l.emit(Semicolon)
	}
	return l.finish(l.errorf("illegal character"))
}

// lexNumber scans integer, decimal and scientific literals.
func (l *Lexer) lexNumber() Token {
	l.acceptRun(digits)
	if l.accept(".") {
		l.acceptRun(digits)
	}
	if l.peekAt(0) == 'e' || l.peekAt(0) == 'E' {
		switch {
		case isDigit(l.peekAt(1)):
			l.advance()
			l.acceptRun(digits)
		case (l.peekAt(1) == '+' || l.peekAt(1) == '-') && isDigit(l.peekAt(2)):
			l.advance()
			l.advance()
			l.acceptRun(digits)
		case l.peekAt(1) == '+' || l.peekAt(1) == '-':
			l.advance()
			l.advance()
			return l.finish(l.errorf("malformed numeric literal"))
		}
	}
	if l.peekAt(0) == '.' || l.peekAt(0) == '_' {
		l.advance()
		return l.finish(l.errorf("malformed numeric literal"))
	}
	return l.emit(Number)
}

// lexString scans a single-quoted string literal.
func (l *Lexer) lexString() Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.input) {
			return l.finish(l.errorf("unterminated string literal"))
		}
		c := l.input[l.pos]
		l.advance()
		switch c {
		case '\'':
			t := l.emit(String)
			t.Value = b.String()
			return t
		case '\\':
			if l.pos >= len(l.input) {
				return l.finish(l.errorf("unterminated string literal"))
			}
			e := l.input[l.pos]
			l.advance()
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\'', '\\', '"':
				b.WriteByte(e)
			default:
				return l.finish(l.errorf("invalid escape sequence"))
			}
		default:
			b.WriteByte(c)
		}
	}
}

// skipSpaceAndComments returns false with an Error token when a block
// comment is not terminated.
func (l *Lexer) skipSpaceAndComments() (Token, bool) {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v':
			l.advance()
		case c == '#' || (c == '/' && l.peekAt(1) == '/'):
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.mark()
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.input) {
					return l.errorf("unterminated comment"), false
				}
				if l.input[l.pos] == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return Token{}, true
		}
	}
	return Token{}, true
}

func (l *Lexer) mark() {
	l.start = l.pos
	l.startLine = l.line
	l.startCol = l.col
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.input) {
		return 0
	}
	return l.input[l.pos+n]
}

// accept consumes the next byte if it is in valid.
func (l *Lexer) accept(valid string) bool {
	if l.pos < len(l.input) && strings.IndexByte(valid, l.input[l.pos]) >= 0 {
		l.advance()
		return true
	}
	return false
}

// acceptRun consumes a run of bytes from valid.
func (l *Lexer) acceptRun(valid string) {
	for l.accept(valid) {
	}
}

// either emits long when the next byte is next, short otherwise.
func (l *Lexer) either(next byte, long, short Type) Token {
	if l.peekAt(0) == next {
		l.advance()
		return l.emit(long)
	}
	return l.emit(short)
}

func (l *Lexer) emit(t Type) Token {
	return Token{
		Type:   t,
		Value:  l.input[l.start:l.pos],
		Offset: l.start,
		Line:   l.startLine,
		Column: l.startCol,
	}
}

func (l *Lexer) errorf(msg string) Token {
	t := l.emit(Error)
	t.Message = msg
	return t
}

func (l *Lexer) finish(t Token) Token {
	l.done = &t
	return t
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
