package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseIfExpression() ast.Expression {
	expression := &ast.IfExpression{Token: p.curToken}
	p.nextToken()
	expression.Condition = p.parseExpression(LOWEST)
	if expression.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expression.Consequence = p.parseBlockStatement()
	if expression.Consequence == nil {
		return nil
	}

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if p.peekTokenIs(token.IF) {
			p.nextToken()
			alt := p.parseIfExpression()
			if alt == nil {
				return nil
			}
			expression.Alternative = alt
			return expression
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		alt := p.parseBlockStatement()
		if alt == nil {
			return nil
		}
		expression.Alternative = alt
	}
	return expression
}

// parseArmBody reads a match arm or arrow-lambda body starting at curToken.
// A leading '{' is a block here, not a map literal.
func (p *Parser) parseArmBody() ast.Expression {
	if p.curTokenIs(token.LBRACE) {
		block := p.parseBlockStatement()
		if block == nil {
			return nil
		}
		return block
	}
	return p.parseExpression(LOWEST)
}

// parseMatchExpression parses
//
//	match subject { pat | pat if guard => body, _ => other }
func (p *Parser) parseMatchExpression() ast.Expression {
	expr := &ast.MatchExpression{Token: p.curToken}
	p.nextToken()
	expr.Subject = p.parseExpression(LOWEST)
	if expr.Subject == nil {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		if p.curTokenIs(token.EOF) {
			p.addError(diagnostics.ErrP001, p.curToken, "unterminated match expression")
			return nil
		}
		arm := &ast.MatchArm{Token: p.curToken}
		for {
			pat := p.parsePattern()
			if pat == nil {
				return nil
			}
			arm.Patterns = append(arm.Patterns, pat)
			if !p.peekTokenIs(token.PIPE) {
				break
			}
			p.nextToken()
			p.nextToken()
		}
		if p.peekTokenIs(token.IF) {
			p.nextToken()
			p.nextToken()
			arm.Guard = p.parseExpression(LOWEST)
			if arm.Guard == nil {
				return nil
			}
		}
		if !p.expectPeek(token.FAT_ARROW) {
			return nil
		}
		p.nextToken()
		arm.Body = p.parseArmBody()
		if arm.Body == nil {
			return nil
		}
		expr.Arms = append(expr.Arms, arm)

		if p.peekTokenIs(token.COMMA) || p.peekTokenIs(token.SEMICOLON) {
			p.nextToken()
		}
	}
	p.nextToken() // }

	if len(expr.Arms) == 0 {
		p.addError(diagnostics.ErrP004, expr.Token, "match needs at least one arm")
		return nil
	}
	return expr
}

func (p *Parser) parsePattern() ast.Pattern {
	tok := p.curToken
	switch tok.Type {
	case token.UNDERSCORE:
		return &ast.WildcardPattern{Token: tok}
	case token.IDENT:
		return &ast.IdentifierPattern{Token: tok, Name: &ast.Identifier{Token: tok, Value: tok.Lexeme}}
	case token.INT, token.FLOAT, token.STRING, token.TRUE, token.FALSE, token.NULL, token.MINUS:
		value := p.parsePatternLiteral()
		if value == nil {
			return nil
		}
		if p.peekTokenIs(token.DOT_DOT) || p.peekTokenIs(token.DOT_DOT_EQ) {
			p.nextToken()
			rp := &ast.RangePattern{Token: tok, Start: value, Inclusive: p.curTokenIs(token.DOT_DOT_EQ)}
			p.nextToken()
			rp.End = p.parsePatternLiteral()
			if rp.End == nil {
				return nil
			}
			return rp
		}
		return &ast.LiteralPattern{Token: tok, Value: value}
	}
	p.addError(diagnostics.ErrP001, tok, "invalid pattern %s", describe(tok))
	return nil
}

func (p *Parser) parsePatternLiteral() ast.Expression {
	switch p.curToken.Type {
	case token.MINUS:
		minus := p.curToken
		p.nextToken()
		switch p.curToken.Type {
		case token.INT:
			return &ast.IntegerLiteral{Token: minus, Value: -p.curToken.Literal.(int64)}
		case token.FLOAT:
			return &ast.FloatLiteral{Token: minus, Value: -p.curToken.Literal.(float64)}
		}
	case token.INT:
		return p.parseIntegerLiteral()
	case token.FLOAT:
		return p.parseFloatLiteral()
	case token.STRING:
		return p.parseStringLiteral()
	case token.TRUE, token.FALSE:
		return p.parseBoolean()
	case token.NULL:
		return p.parseNull()
	}
	p.addError(diagnostics.ErrP005, p.curToken, "expected a literal in pattern, got %s", describe(p.curToken))
	return nil
}
