package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expression {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > MaxRecursionDepth {
		p.addError(diagnostics.ErrP006, p.curToken, "expression too complex: recursion depth limit exceeded")
		return nil
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}
	return leftExp
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Lexeme}
	if p.curTokenIs(token.KW_NOT) {
		expression.Operator = "!"
	}
	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Left:     left,
	}
	switch p.curToken.Type {
	case token.KW_AND:
		expression.Operator = "&&"
	case token.KW_OR:
		expression.Operator = "||"
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseRangeExpression(left ast.Expression) ast.Expression {
	expr := &ast.RangeExpression{Token: p.curToken, Start: left, Inclusive: p.curTokenIs(token.DOT_DOT_EQ)}
	p.nextToken()
	expr.End = p.parseExpression(RANGE)
	if expr.End == nil {
		return nil
	}
	return expr
}

// parseAssignExpression is right-associative: a = b = c assigns c to both.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	switch left.(type) {
	case *ast.Identifier, *ast.MemberExpression, *ast.IndexExpression:
	default:
		p.addError(diagnostics.ErrP003, p.curToken, "cannot assign to %s", describe(left.GetToken()))
		return nil
	}
	if me, ok := left.(*ast.MemberExpression); ok && me.IsOptional {
		p.addError(diagnostics.ErrP003, p.curToken, "cannot assign through optional chaining")
		return nil
	}

	expr := &ast.AssignExpression{Token: p.curToken, Target: left, Operator: "="}
	switch p.curToken.Type {
	case token.PLUS_ASSIGN:
		expr.Operator = "+"
	case token.MINUS_ASSIGN:
		expr.Operator = "-"
	case token.ASTERISK_ASSIGN:
		expr.Operator = "*"
	case token.SLASH_ASSIGN:
		expr.Operator = "/"
	case token.PERCENT_ASSIGN:
		expr.Operator = "%"
	}
	p.nextToken()
	expr.Value = p.parseExpression(ASSIGN - 1)
	if expr.Value == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
}

func (p *Parser) parseThis() ast.Expression {
	return &ast.ThisExpression{Token: p.curToken}
}

func (p *Parser) parseSuper() ast.Expression {
	expr := &ast.SuperExpression{Token: p.curToken}
	if p.peekTokenIs(token.DOT) {
		p.nextToken()
		if !p.expectMemberName() {
			return nil
		}
		expr.Method = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
		return expr
	}
	if !p.peekTokenIs(token.LPAREN) {
		p.addError(diagnostics.ErrP001, p.peekToken, "expected '.' or '(' after super")
		return nil
	}
	return expr
}

// expectMemberName accepts identifiers and keywords after '.', so that
// obj.new or m.class read naturally.
func (p *Parser) expectMemberName() bool {
	if p.peekTokenIs(token.IDENT) || token.IsKeyword(p.peekToken.Lexeme) {
		p.nextToken()
		return true
	}
	p.peekError(token.IDENT)
	return false
}
