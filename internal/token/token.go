package token

import "fmt"

type TokenType string

type Token struct {
	Type    TokenType
	Lexeme  string      // raw text as it appears in the source
	Literal interface{} // decoded value: int64, float64, string or string parts
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	// Identifiers + literals
	IDENT         TokenType = "IDENT"
	INT           TokenType = "INT"
	FLOAT         TokenType = "FLOAT"
	STRING        TokenType = "STRING"
	INTERP_STRING TokenType = "INTERP_STRING" // "a #{b} c"

	// Operators
	ASSIGN          TokenType = "="
	PLUS            TokenType = "+"
	MINUS           TokenType = "-"
	ASTERISK        TokenType = "*"
	SLASH           TokenType = "/"
	PERCENT         TokenType = "%"
	BANG            TokenType = "!"
	EQ              TokenType = "=="
	NOT_EQ          TokenType = "!="
	LT              TokenType = "<"
	LTE             TokenType = "<="
	GT              TokenType = ">"
	GTE             TokenType = ">="
	AND             TokenType = "&&"
	OR              TokenType = "||"
	NULL_COALESCE   TokenType = "??"
	OPTIONAL_CHAIN  TokenType = "?."
	QUESTION        TokenType = "?"
	PLUS_ASSIGN     TokenType = "+="
	MINUS_ASSIGN    TokenType = "-="
	ASTERISK_ASSIGN TokenType = "*="
	SLASH_ASSIGN    TokenType = "/="
	PERCENT_ASSIGN  TokenType = "%="
	ARROW           TokenType = "->"
	FAT_ARROW       TokenType = "=>"
	PIPE            TokenType = "|"
	DOT             TokenType = "."
	DOT_DOT         TokenType = ".."
	DOT_DOT_EQ      TokenType = "..="
	ELLIPSIS        TokenType = "..."

	// Delimiters
	COMMA     TokenType = ","
	SEMICOLON TokenType = ";"
	COLON     TokenType = ":"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"

	// Keywords
	LET         TokenType = "LET"
	CONST       TokenType = "CONST"
	FN          TokenType = "FN"
	RETURN      TokenType = "RETURN"
	IF          TokenType = "IF"
	ELSE        TokenType = "ELSE"
	WHILE       TokenType = "WHILE"
	FOR         TokenType = "FOR"
	IN          TokenType = "IN"
	BREAK       TokenType = "BREAK"
	CONTINUE    TokenType = "CONTINUE"
	TRUE        TokenType = "TRUE"
	FALSE       TokenType = "FALSE"
	NULL        TokenType = "NULL"
	CLASS       TokenType = "CLASS"
	EXTENDS     TokenType = "EXTENDS"
	NEW         TokenType = "NEW"
	THIS        TokenType = "THIS"
	SUPER       TokenType = "SUPER"
	STATIC      TokenType = "STATIC"
	TRY         TokenType = "TRY"
	CATCH       TokenType = "CATCH"
	FINALLY     TokenType = "FINALLY"
	THROW       TokenType = "THROW"
	MATCH       TokenType = "MATCH"
	IMPORT      TokenType = "IMPORT"
	FROM        TokenType = "FROM"
	KW_AND      TokenType = "AND_KW"
	KW_OR       TokenType = "OR_KW"
	KW_NOT      TokenType = "NOT_KW"
	UNDERSCORE  TokenType = "_"
	CONSTRUCTOR TokenType = "CONSTRUCTOR"
)

var keywords = map[string]TokenType{
	"let":         LET,
	"const":       CONST,
	"fn":          FN,
	"return":      RETURN,
	"if":          IF,
	"else":        ELSE,
	"while":       WHILE,
	"for":         FOR,
	"in":          IN,
	"break":       BREAK,
	"continue":    CONTINUE,
	"true":        TRUE,
	"false":       FALSE,
	"null":        NULL,
	"class":       CLASS,
	"extends":     EXTENDS,
	"new":         NEW,
	"this":        THIS,
	"super":       SUPER,
	"static":      STATIC,
	"try":         TRY,
	"catch":       CATCH,
	"finally":     FINALLY,
	"throw":       THROW,
	"match":       MATCH,
	"import":      IMPORT,
	"from":        FROM,
	"and":         KW_AND,
	"or":          KW_OR,
	"not":         KW_NOT,
	"_":           UNDERSCORE,
	"constructor": CONSTRUCTOR,
}

// LookupIdent returns the keyword type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether name is reserved.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}
