// Package text implements the human-readable teal format: a
// position-tracked tokenizer, a recursive-descent parser that builds the
// document model directly, and a formatter that serializes a document
// back to text.
package text

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tealdata/teal"
)

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenLParen
	TokenRParen
	TokenColon
	TokenComma
	TokenQuestion
	TokenNull
	TokenBool
	TokenInt
	TokenUint
	TokenBigNum
	TokenFloat
	TokenString
	TokenBytes
	TokenWord
	TokenDirective
	TokenRef
	TokenTimestamp
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenColon:
		return "':'"
	case TokenComma:
		return "','"
	case TokenQuestion:
		return "'?'"
	case TokenNull:
		return "null"
	case TokenBool:
		return "bool"
	case TokenInt, TokenUint, TokenBigNum:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenString:
		return "string"
	case TokenBytes:
		return "byte string"
	case TokenWord:
		return "word"
	case TokenDirective:
		return "directive"
	case TokenRef:
		return "reference"
	case TokenTimestamp:
		return "timestamp"
	}
	return "token"
}

type Token struct {
	Kind  TokenKind
	Text  string
	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Bytes []byte
	Ts    teal.Timestamp
	Line  int
	Col   int
}

// Lexer turns raw bytes into a flat token stream with line and column
// positions. It never panics on truncated input; malformed literals come
// back as *SyntaxError.
type Lexer struct {
	src  []byte
	pos  int
	line int
	col  int
}

func NewLexer(src []byte) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Tokenize scans the whole input, ending with a TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) errorf(line, col int, sentinel error, format string, args ...interface{}) error {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
			continue
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			return
		}
		l.advance()
	}
}

func isWordStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isWordChar(c byte) bool {
	return isWordStart(c) || c == '-' || c >= '0' && c <= '9'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) next() (Token, error) {
	l.skipSpace()
	line, col := l.line, l.col
	mk := func(kind TokenKind) Token {
		return Token{Kind: kind, Line: line, Col: col}
	}
	if l.pos >= len(l.src) {
		return mk(TokenEOF), nil
	}
	c := l.peek()
	switch c {
	case '{':
		l.advance()
		return mk(TokenLBrace), nil
	case '}':
		l.advance()
		return mk(TokenRBrace), nil
	case '[':
		l.advance()
		return mk(TokenLBracket), nil
	case ']':
		l.advance()
		return mk(TokenRBracket), nil
	case '(':
		l.advance()
		return mk(TokenLParen), nil
	case ')':
		l.advance()
		return mk(TokenRParen), nil
	case ':':
		l.advance()
		return mk(TokenColon), nil
	case ',':
		l.advance()
		return mk(TokenComma), nil
	case '?':
		l.advance()
		return mk(TokenQuestion), nil
	case '~':
		l.advance()
		return mk(TokenNull), nil
	case '!':
		l.advance()
		start := l.pos
		for l.pos < len(l.src) && isWordChar(l.peek()) {
			l.advance()
		}
		if l.pos == start {
			return Token{}, l.errorf(line, col, nil, "expected name after '!'")
		}
		tok := mk(TokenRef)
		tok.Text = string(l.src[start:l.pos])
		return tok, nil
	case '@':
		l.advance()
		start := l.pos
		for l.pos < len(l.src) && isWordChar(l.peek()) {
			l.advance()
		}
		if l.pos == start {
			return Token{}, l.errorf(line, col, nil, "expected name after '@'")
		}
		tok := mk(TokenDirective)
		tok.Text = string(l.src[start:l.pos])
		return tok, nil
	case '"':
		return l.scanString(line, col)
	}
	if c == 'b' && l.peekAt(1) == '"' {
		return l.scanBytes(line, col)
	}
	if isDigit(c) || c == '-' || c == '+' {
		if l.looksLikeTimestamp() {
			return l.scanTimestamp(line, col)
		}
		return l.scanNumber(line, col)
	}
	if isWordStart(c) {
		start := l.pos
		for l.pos < len(l.src) && isWordChar(l.peek()) {
			l.advance()
		}
		word := string(l.src[start:l.pos])
		switch word {
		case "true", "false":
			tok := mk(TokenBool)
			tok.Bool = word == "true"
			return tok, nil
		case "null":
			return mk(TokenNull), nil
		case "NaN":
			tok := mk(TokenFloat)
			tok.Float = math.NaN()
			return tok, nil
		case "inf":
			tok := mk(TokenFloat)
			tok.Float = math.Inf(1)
			return tok, nil
		}
		tok := mk(TokenWord)
		tok.Text = word
		return tok, nil
	}
	return Token{}, l.errorf(line, col, nil, "unexpected character %q", c)
}

// looksLikeTimestamp checks for a YYYY-MM-DD prefix at the cursor.
func (l *Lexer) looksLikeTimestamp() bool {
	if l.pos+10 > len(l.src) {
		return false
	}
	s := l.src[l.pos:]
	for _, i := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s[4] == '-' && s[7] == '-'
}

func (l *Lexer) scanTimestamp(line, col int) (Token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.peek()
		if isDigit(c) || c == '-' || c == ':' || c == '.' || c == '+' ||
			c == 'T' || c == 't' || c == 'Z' || c == 'z' {
			l.advance()
			continue
		}
		break
	}
	ts, err := teal.ParseTimestamp(string(l.src[start:l.pos]))
	if err != nil {
		return Token{}, l.errorf(line, col, nil, "%s", err)
	}
	return Token{Kind: TokenTimestamp, Ts: ts, Line: line, Col: col}, nil
}

func (l *Lexer) scanNumber(line, col int) (Token, error) {
	start := l.pos
	neg := false
	if c := l.peek(); c == '-' || c == '+' {
		neg = c == '-'
		l.advance()
	}
	if neg && strings.HasPrefix(string(l.src[l.pos:]), "inf") {
		l.advance()
		l.advance()
		l.advance()
		return Token{Kind: TokenFloat, Float: math.Inf(-1), Line: line, Col: col}, nil
	}
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X' || l.peekAt(1) == 'b' || l.peekAt(1) == 'B') {
		base := 16
		if l.peekAt(1) == 'b' || l.peekAt(1) == 'B' {
			base = 2
		}
		l.advance()
		l.advance()
		digStart := l.pos
		for l.pos < len(l.src) {
			c := l.peek()
			if isDigit(c) || base == 16 && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
				l.advance()
				continue
			}
			break
		}
		if l.pos == digStart {
			return Token{}, l.errorf(line, col, nil, "malformed integer literal")
		}
		u, err := strconv.ParseUint(string(l.src[digStart:l.pos]), base, 64)
		if err != nil {
			return Token{}, l.errorf(line, col, nil, "integer literal out of range")
		}
		if neg {
			if u > math.MaxInt64 {
				return Token{}, l.errorf(line, col, nil, "integer literal out of range")
			}
			return Token{Kind: TokenInt, Int: -int64(u), Line: line, Col: col}, nil
		}
		if u <= math.MaxInt64 {
			return Token{Kind: TokenInt, Int: int64(u), Line: line, Col: col}, nil
		}
		return Token{Kind: TokenUint, Uint: u, Line: line, Col: col}, nil
	}

	isFloat := false
	for l.pos < len(l.src) {
		c := l.peek()
		if isDigit(c) {
			l.advance()
			continue
		}
		if c == '.' && isDigit(l.peekAt(1)) {
			isFloat = true
			l.advance()
			continue
		}
		if (c == 'e' || c == 'E') && (isDigit(l.peekAt(1)) ||
			(l.peekAt(1) == '-' || l.peekAt(1) == '+') && isDigit(l.peekAt(2))) {
			isFloat = true
			l.advance()
			l.advance()
			continue
		}
		break
	}
	text := string(l.src[start:l.pos])
	if text == "" || text == "-" || text == "+" {
		return Token{}, l.errorf(line, col, nil, "malformed number")
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			// A magnitude beyond float64 keeps its digits verbatim,
			// like an oversized integer; underflow rounds toward zero.
			if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
				return Token{Kind: TokenBigNum, Text: text, Line: line, Col: col}, nil
			}
			if !errors.Is(err, strconv.ErrRange) {
				return Token{}, l.errorf(line, col, nil, "malformed float literal %q", text)
			}
		}
		return Token{Kind: TokenFloat, Float: f, Line: line, Col: col}, nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Token{Kind: TokenInt, Int: i, Line: line, Col: col}, nil
	}
	if !neg {
		if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return Token{Kind: TokenUint, Uint: u, Line: line, Col: col}, nil
		}
	}
	// Too big for 64 bits either way; keep the digits verbatim.
	return Token{Kind: TokenBigNum, Text: text, Line: line, Col: col}, nil
}

func (l *Lexer) scanString(line, col int) (Token, error) {
	if l.peekAt(1) == '"' && l.peekAt(2) == '"' {
		return l.scanMultiline(line, col)
	}
	l.advance()
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(line, col, ErrUnterminatedString, "")
		}
		c := l.advance()
		switch c {
		case '"':
			return Token{Kind: TokenString, Text: b.String(), Line: line, Col: col}, nil
		case '\n':
			return Token{}, l.errorf(line, col, ErrUnterminatedString, "")
		case '\\':
			if l.pos >= len(l.src) {
				return Token{}, l.errorf(line, col, ErrUnterminatedString, "")
			}
			esc := l.advance()
			switch esc {
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'u':
				r, err := l.scanUnicodeEscape(line, col)
				if err != nil {
					return Token{}, err
				}
				b.WriteRune(r)
			default:
				return Token{}, l.errorf(line, col, ErrInvalidEscape, "\\%c", esc)
			}
		default:
			b.WriteByte(c)
		}
	}
}

// scanUnicodeEscape handles \uXXXX and \u{XXXX} forms.
func (l *Lexer) scanUnicodeEscape(line, col int) (rune, error) {
	braced := l.peek() == '{'
	if braced {
		l.advance()
	}
	var digits strings.Builder
	for l.pos < len(l.src) {
		c := l.peek()
		if isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' {
			digits.WriteByte(c)
			l.advance()
			if !braced && digits.Len() == 4 {
				break
			}
			continue
		}
		break
	}
	if braced {
		if l.peek() != '}' {
			return 0, l.errorf(line, col, ErrInvalidEscape, "unclosed \\u{...}")
		}
		l.advance()
	} else if digits.Len() != 4 {
		return 0, l.errorf(line, col, ErrInvalidEscape, "\\u needs four hex digits")
	}
	if digits.Len() == 0 || digits.Len() > 6 {
		return 0, l.errorf(line, col, ErrInvalidEscape, "bad \\u escape")
	}
	v, err := strconv.ParseUint(digits.String(), 16, 32)
	if err != nil || v > utf8.MaxRune {
		return 0, l.errorf(line, col, ErrInvalidEscape, "bad \\u escape")
	}
	return rune(v), nil
}

// scanMultiline handles """...""" blocks. A leading newline is dropped
// and the common indentation of the remaining lines is stripped.
func (l *Lexer) scanMultiline(line, col int) (Token, error) {
	l.advance()
	l.advance()
	l.advance()
	start := l.pos
	for {
		if l.pos+3 > len(l.src) {
			return Token{}, l.errorf(line, col, ErrUnterminatedString, "")
		}
		if l.peek() == '"' && l.peekAt(1) == '"' && l.peekAt(2) == '"' {
			break
		}
		l.advance()
	}
	raw := string(l.src[start:l.pos])
	l.advance()
	l.advance()
	l.advance()
	return Token{Kind: TokenString, Text: dedent(raw), Line: line, Col: col}, nil
}

func dedent(s string) string {
	// Content on the same line as the opening quotes has no source
	// indentation to strip; lines after a leading newline do.
	hadNewline := strings.HasPrefix(s, "\n")
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")
	indent := -1
	for i, ln := range lines {
		if i == 0 && !hadNewline || strings.TrimSpace(ln) == "" {
			continue
		}
		n := len(ln) - len(strings.TrimLeft(ln, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent > 0 {
		for i, ln := range lines {
			if i == 0 && !hadNewline {
				continue
			}
			if len(ln) >= indent {
				lines[i] = ln[indent:]
			} else {
				lines[i] = strings.TrimLeft(ln, " \t")
			}
		}
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\n")
}

func (l *Lexer) scanBytes(line, col int) (Token, error) {
	l.advance()
	l.advance()
	var hi byte
	haveHi := false
	var out []byte
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(line, col, ErrUnterminatedString, "")
		}
		c := l.advance()
		if c == '"' {
			if haveHi {
				return Token{}, l.errorf(line, col, nil, "byte string has an odd number of hex digits")
			}
			return Token{Kind: TokenBytes, Bytes: out, Line: line, Col: col}, nil
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		v, ok := hexDigit(c)
		if !ok {
			return Token{}, l.errorf(line, col, nil, "invalid hex digit %q in byte string", c)
		}
		if haveHi {
			out = append(out, hi<<4|v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
