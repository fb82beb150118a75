package parser

import (
	"fmt"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/token"
)

const MaxRecursionDepth = 500

const (
	_ int = iota
	LOWEST
	ASSIGN      // = += -=
	NULLISH     // ??
	OR          // || or
	AND         // && and
	EQUALS      // == !=
	LESSGREATER // > < >= <=
	RANGE       // .. ..=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x !x
	CALL        // f(x) a[i] a.b a?.b
)

var precedences = map[token.TokenType]int{
	token.ASSIGN:          ASSIGN,
	token.PLUS_ASSIGN:     ASSIGN,
	token.MINUS_ASSIGN:    ASSIGN,
	token.ASTERISK_ASSIGN: ASSIGN,
	token.SLASH_ASSIGN:    ASSIGN,
	token.PERCENT_ASSIGN:  ASSIGN,
	token.NULL_COALESCE:   NULLISH,
	token.OR:              OR,
	token.KW_OR:           OR,
	token.AND:             AND,
	token.KW_AND:          AND,
	token.EQ:              EQUALS,
	token.NOT_EQ:          EQUALS,
	token.LT:              LESSGREATER,
	token.LTE:             LESSGREATER,
	token.GT:              LESSGREATER,
	token.GTE:             LESSGREATER,
	token.DOT_DOT:         RANGE,
	token.DOT_DOT_EQ:      RANGE,
	token.PLUS:            SUM,
	token.MINUS:           SUM,
	token.ASTERISK:        PRODUCT,
	token.SLASH:           PRODUCT,
	token.PERCENT:         PRODUCT,
	token.LPAREN:          CALL,
	token.LBRACKET:        CALL,
	token.DOT:             CALL,
	token.OPTIONAL_CHAIN:  CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	tokens []token.Token
	pos    int
	ctx    *pipeline.PipelineContext

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	depth int
}

// New creates a parser over a token stream; errors are appended to ctx.Errors.
func New(tokens []token.Token, ctx *pipeline.PipelineContext) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	p := &Parser{tokens: tokens, ctx: ctx}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.IDENT:         p.parseIdentifier,
		token.INT:           p.parseIntegerLiteral,
		token.FLOAT:         p.parseFloatLiteral,
		token.STRING:        p.parseStringLiteral,
		token.INTERP_STRING: p.parseInterpolatedString,
		token.TRUE:          p.parseBoolean,
		token.FALSE:         p.parseBoolean,
		token.NULL:          p.parseNull,
		token.MINUS:         p.parsePrefixExpression,
		token.BANG:          p.parsePrefixExpression,
		token.KW_NOT:        p.parsePrefixExpression,
		token.LPAREN:        p.parseGroupedExpression,
		token.LBRACKET:      p.parseArrayLiteral,
		token.LBRACE:        p.parseMapLiteral,
		token.FN:            p.parseFunctionLiteral,
		token.IF:            p.parseIfExpression,
		token.MATCH:         p.parseMatchExpression,
		token.NEW:           p.parseNewExpression,
		token.THIS:          p.parseThis,
		token.SUPER:         p.parseSuper,
	}

	p.infixParseFns = map[token.TokenType]infixParseFn{
		token.PLUS:            p.parseInfixExpression,
		token.MINUS:           p.parseInfixExpression,
		token.ASTERISK:        p.parseInfixExpression,
		token.SLASH:           p.parseInfixExpression,
		token.PERCENT:         p.parseInfixExpression,
		token.EQ:              p.parseInfixExpression,
		token.NOT_EQ:          p.parseInfixExpression,
		token.LT:              p.parseInfixExpression,
		token.LTE:             p.parseInfixExpression,
		token.GT:              p.parseInfixExpression,
		token.GTE:             p.parseInfixExpression,
		token.AND:             p.parseInfixExpression,
		token.KW_AND:          p.parseInfixExpression,
		token.OR:              p.parseInfixExpression,
		token.KW_OR:           p.parseInfixExpression,
		token.NULL_COALESCE:   p.parseInfixExpression,
		token.DOT_DOT:         p.parseRangeExpression,
		token.DOT_DOT_EQ:      p.parseRangeExpression,
		token.ASSIGN:          p.parseAssignExpression,
		token.PLUS_ASSIGN:     p.parseAssignExpression,
		token.MINUS_ASSIGN:    p.parseAssignExpression,
		token.ASTERISK_ASSIGN: p.parseAssignExpression,
		token.SLASH_ASSIGN:    p.parseAssignExpression,
		token.PERCENT_ASSIGN:  p.parseAssignExpression,
		token.LPAREN:          p.parseCallExpression,
		token.LBRACKET:        p.parseIndexExpression,
		token.DOT:             p.parseMemberExpression,
		token.OPTIONAL_CHAIN:  p.parseMemberExpression,
	}

	p.curToken = p.tokens[0]
	p.peekToken = p.tokenAt(1)
	return p
}

func (p *Parser) tokenAt(i int) token.Token {
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) nextToken() {
	p.pos++
	p.curToken = p.tokenAt(p.pos)
	p.peekToken = p.tokenAt(p.pos + 1)
}

// peekN returns the token n positions after the current one.
func (p *Parser) peekN(n int) token.Token {
	return p.tokenAt(p.pos + n)
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) addError(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	err := diagnostics.NewError(code, tok, format, args...)
	err.File = p.ctx.FilePath
	p.ctx.Errors = append(p.ctx.Errors, err)
}

func (p *Parser) peekError(t token.TokenType) {
	p.addError(diagnostics.ErrP001, p.peekToken,
		"expected next token to be %s, got %s instead", t, describe(p.peekToken))
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	p.addError(diagnostics.ErrP002, tok, "unexpected %s", describe(tok))
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("'%s'", tok.Lexeme)
}

// ParseProgram parses statements until EOF. Parsing stops at the first
// statement that fails so that error cascades stay short.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{File: p.ctx.FilePath}
	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		errCount := len(p.ctx.Errors)
		stmt := p.parseStatement()
		if len(p.ctx.Errors) > errCount {
			return program
		}
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}
