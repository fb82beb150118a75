package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/solisoft/soli/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int
	column       int
	errMsg       string // detail for the last ILLEGAL token
	comments     int
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	l.position = l.readPosition
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.readPosition++
		l.column++
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) peekCharN(n int) rune {
	pos := l.readPosition
	var r rune
	for i := 0; i < n; i++ {
		if pos >= len(l.input) {
			return 0
		}
		var w int
		r, w = utf8.DecodeRuneInString(l.input[pos:])
		pos += w
	}
	return r
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

// LastError describes why the most recent ILLEGAL token was produced.
func (l *Lexer) LastError() string {
	return l.errMsg
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.column
	mk := func(t token.TokenType, lexeme string) token.Token {
		return token.Token{Type: t, Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
	}
	// two consumes the second character of a two-rune operator.
	two := func(t token.TokenType, lexeme string) token.Token {
		l.readChar()
		l.readChar()
		return mk(t, lexeme)
	}
	one := func(t token.TokenType) token.Token {
		lexeme := string(l.ch)
		l.readChar()
		return mk(t, lexeme)
	}

	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Lexeme: "", Line: line, Column: col}
	case '=':
		switch l.peekChar() {
		case '=':
			return two(token.EQ, "==")
		case '>':
			return two(token.FAT_ARROW, "=>")
		}
		return one(token.ASSIGN)
	case '+':
		if l.peekChar() == '=' {
			return two(token.PLUS_ASSIGN, "+=")
		}
		return one(token.PLUS)
	case '-':
		switch l.peekChar() {
		case '=':
			return two(token.MINUS_ASSIGN, "-=")
		case '>':
			return two(token.ARROW, "->")
		}
		return one(token.MINUS)
	case '*':
		if l.peekChar() == '=' {
			return two(token.ASTERISK_ASSIGN, "*=")
		}
		return one(token.ASTERISK)
	case '/':
		if l.peekChar() == '=' {
			return two(token.SLASH_ASSIGN, "/=")
		}
		return one(token.SLASH)
	case '%':
		if l.peekChar() == '=' {
			return two(token.PERCENT_ASSIGN, "%=")
		}
		return one(token.PERCENT)
	case '!':
		if l.peekChar() == '=' {
			return two(token.NOT_EQ, "!=")
		}
		return one(token.BANG)
	case '<':
		if l.peekChar() == '=' {
			return two(token.LTE, "<=")
		}
		return one(token.LT)
	case '>':
		if l.peekChar() == '=' {
			return two(token.GTE, ">=")
		}
		return one(token.GT)
	case '&':
		if l.peekChar() == '&' {
			return two(token.AND, "&&")
		}
		l.errMsg = "unexpected '&', did you mean '&&'?"
		return one(token.ILLEGAL)
	case '|':
		if l.peekChar() == '|' {
			return two(token.OR, "||")
		}
		return one(token.PIPE)
	case '?':
		switch l.peekChar() {
		case '?':
			return two(token.NULL_COALESCE, "??")
		case '.':
			return two(token.OPTIONAL_CHAIN, "?.")
		}
		return one(token.QUESTION)
	case '.':
		if l.peekChar() == '.' {
			switch l.peekCharN(2) {
			case '.':
				l.readChar()
				return two(token.ELLIPSIS, "...")
			case '=':
				l.readChar()
				return two(token.DOT_DOT_EQ, "..=")
			}
			return two(token.DOT_DOT, "..")
		}
		return one(token.DOT)
	case ',':
		return one(token.COMMA)
	case ';':
		return one(token.SEMICOLON)
	case ':':
		return one(token.COLON)
	case '(':
		return one(token.LPAREN)
	case ')':
		return one(token.RPAREN)
	case '{':
		return one(token.LBRACE)
	case '}':
		return one(token.RBRACE)
	case '[':
		return one(token.LBRACKET)
	case ']':
		return one(token.RBRACKET)
	case '"':
		return l.readString(line, col)
	case '\'':
		return l.readRawString(line, col)
	}

	if isLetter(l.ch) {
		ident := l.readIdentifier()
		t := token.LookupIdent(ident)
		return token.Token{Type: t, Lexeme: ident, Literal: ident, Line: line, Column: col}
	}
	if isDigit(l.ch) {
		return l.readNumber(line, col)
	}

	l.errMsg = "illegal character " + strconv.QuoteRune(l.ch)
	return one(token.ILLEGAL)
}

// Comments returns how many comments have been skipped so far.
func (l *Lexer) Comments() int { return l.comments }

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			l.comments++
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.comments++
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') && l.ch != 0 {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber(line, col int) token.Token {
	start := l.position
	isFloat := false
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	// "1..5" is a range, not a float
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekCharN(2))) {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	lexeme := l.input[start:l.position]
	clean := strings.ReplaceAll(lexeme, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			l.errMsg = "invalid float literal " + lexeme
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
		}
		return token.Token{Type: token.FLOAT, Lexeme: lexeme, Literal: f, Line: line, Column: col}
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		l.errMsg = "integer literal out of range: " + lexeme
		return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
	}
	return token.Token{Type: token.INT, Lexeme: lexeme, Literal: n, Line: line, Column: col}
}

// readString reads a double-quoted string. When it contains #{...} the token
// is INTERP_STRING and Literal holds alternating text and expression source,
// starting with text.
func (l *Lexer) readString(line, col int) token.Token {
	start := l.position
	l.readChar() // opening quote

	var parts []string
	var sb strings.Builder
	interpolated := false

	for {
		switch {
		case l.ch == 0:
			l.errMsg = "unterminated string"
			return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:], Literal: "", Line: line, Column: col}
		case l.ch == '"':
			l.readChar()
			lexeme := l.input[start:l.position]
			if !interpolated {
				return token.Token{Type: token.STRING, Lexeme: lexeme, Literal: sb.String(), Line: line, Column: col}
			}
			parts = append(parts, sb.String())
			return token.Token{Type: token.INTERP_STRING, Lexeme: lexeme, Literal: parts, Line: line, Column: col}
		case l.ch == '\\':
			l.readChar()
			sb.WriteRune(unescape(l.ch))
			l.readChar()
		case l.ch == '#' && l.peekChar() == '{':
			interpolated = true
			parts = append(parts, sb.String())
			sb.Reset()
			l.readChar()
			l.readChar()
			exprStart := l.position
			depth := 1
			for l.ch != 0 {
				if l.ch == '{' {
					depth++
				} else if l.ch == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				l.readChar()
			}
			if l.ch == 0 {
				l.errMsg = "unterminated interpolation"
				return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:], Literal: "", Line: line, Column: col}
			}
			parts = append(parts, l.input[exprStart:l.position])
			l.readChar() // closing brace
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

func (l *Lexer) readRawString(line, col int) token.Token {
	start := l.position
	l.readChar()
	var sb strings.Builder
	for l.ch != '\'' {
		if l.ch == 0 {
			l.errMsg = "unterminated string"
			return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:], Literal: "", Line: line, Column: col}
		}
		if l.ch == '\\' && (l.peekChar() == '\'' || l.peekChar() == '\\') {
			l.readChar()
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar()
	return token.Token{Type: token.STRING, Lexeme: l.input[start:l.position], Literal: sb.String(), Line: line, Column: col}
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return ch
	}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
