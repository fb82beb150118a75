package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseIntegerLiteral() ast.Expression {
	return &ast.IntegerLiteral{Token: p.curToken, Value: p.curToken.Literal.(int64)}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	return &ast.FloatLiteral{Token: p.curToken, Value: p.curToken.Literal.(float64)}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal.(string)}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNull() ast.Expression {
	return &ast.NullLiteral{Token: p.curToken}
}

// parseInterpolatedString parses each #{...} segment with a nested parser
// sharing this parser's context, so its errors land in the same list.
func (p *Parser) parseInterpolatedString() ast.Expression {
	tok := p.curToken
	raw := tok.Literal.([]string)
	expr := &ast.InterpolatedString{Token: tok}

	for i, part := range raw {
		if i%2 == 0 {
			if part != "" {
				expr.Parts = append(expr.Parts, &ast.StringLiteral{Token: tok, Value: part})
			}
			continue
		}
		embedded := p.parseEmbeddedExpression(part, tok)
		if embedded == nil {
			return nil
		}
		expr.Parts = append(expr.Parts, embedded)
	}
	return expr
}

func (p *Parser) parseEmbeddedExpression(src string, at token.Token) ast.Expression {
	toks := lexer.New(src).Tokenize()
	for i := range toks {
		toks[i].Line += at.Line - 1
		if toks[i].Type == token.ILLEGAL {
			p.addError(diagnostics.ErrL001, at, "invalid interpolation #{%s}", src)
			return nil
		}
	}
	if len(toks) == 1 {
		p.addError(diagnostics.ErrP005, at, "empty interpolation in string")
		return nil
	}
	sub := New(toks, p.ctx)
	sub.depth = p.depth
	expr := sub.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !sub.peekTokenIs(token.EOF) {
		p.addError(diagnostics.ErrP005, at, "unexpected %s in interpolation", describe(sub.peekToken))
		return nil
	}
	return expr
}

// parseArrayLiteral handles [a, ...b] and [expr for x in xs if cond].
func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.curToken
	if p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		return &ast.ArrayLiteral{Token: tok}
	}
	p.nextToken()
	first := p.parseElement()
	if first == nil {
		return nil
	}

	if p.peekTokenIs(token.FOR) {
		if _, spread := first.(*ast.SpreadExpression); spread {
			p.addError(diagnostics.ErrP006, tok, "spread is not allowed as a comprehension element")
			return nil
		}
		comp := &ast.ListComprehension{Token: tok, Element: first}
		if !p.parseComprehensionClause(&comp.Variable, &comp.Iterable, &comp.Condition) {
			return nil
		}
		if !p.expectPeek(token.RBRACKET) {
			return nil
		}
		return comp
	}

	arr := &ast.ArrayLiteral{Token: tok, Elements: []ast.Expression{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(token.RBRACKET) {
			break // trailing comma
		}
		p.nextToken()
		el := p.parseElement()
		if el == nil {
			return nil
		}
		arr.Elements = append(arr.Elements, el)
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return arr
}

func (p *Parser) parseElement() ast.Expression {
	if p.curTokenIs(token.ELLIPSIS) {
		spread := &ast.SpreadExpression{Token: p.curToken}
		p.nextToken()
		spread.Value = p.parseExpression(LOWEST)
		if spread.Value == nil {
			return nil
		}
		return spread
	}
	return p.parseExpression(LOWEST)
}

// parseComprehensionClause parses `for x in xs [if cond]` with peekToken on 'for'.
func (p *Parser) parseComprehensionClause(variable **ast.Identifier, iterable, cond *ast.Expression) bool {
	p.nextToken() // for
	if !p.expectPeek(token.IDENT) {
		return false
	}
	*variable = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if !p.expectPeek(token.IN) {
		return false
	}
	p.nextToken()
	*iterable = p.parseExpression(LOWEST)
	if *iterable == nil {
		return false
	}
	if p.peekTokenIs(token.IF) {
		p.nextToken()
		p.nextToken()
		*cond = p.parseExpression(LOWEST)
		if *cond == nil {
			return false
		}
	}
	return true
}

// parseMapLiteral handles {k: v, ...m} and {k: v for x in xs if cond}.
func (p *Parser) parseMapLiteral() ast.Expression {
	tok := p.curToken
	lit := &ast.MapLiteral{Token: tok}
	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return lit
	}

	for {
		p.nextToken()
		if p.curTokenIs(token.ELLIPSIS) {
			p.nextToken()
			spread := p.parseExpression(LOWEST)
			if spread == nil {
				return nil
			}
			lit.Entries = append(lit.Entries, &ast.MapEntry{Spread: spread})
		} else {
			key := p.parseExpression(LOWEST)
			if key == nil {
				return nil
			}
			if !p.expectPeek(token.COLON) {
				return nil
			}
			p.nextToken()
			value := p.parseExpression(LOWEST)
			if value == nil {
				return nil
			}
			if len(lit.Entries) == 0 && p.peekTokenIs(token.FOR) {
				comp := &ast.MapComprehension{Token: tok, Key: key, Value: value}
				if !p.parseComprehensionClause(&comp.Variable, &comp.Iterable, &comp.Condition) {
					return nil
				}
				if !p.expectPeek(token.RBRACE) {
					return nil
				}
				return comp
			}
			lit.Entries = append(lit.Entries, &ast.MapEntry{Key: key, Value: value})
		}

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
		if p.peekTokenIs(token.RBRACE) {
			break
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return lit
}

// parseFunctionLiteral parses fn(x) { ... } and fn(x) => expr.
func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParameters()
	if !ok {
		return nil
	}
	lit.Parameters = params
	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		p.nextToken()
		lit.ReturnType = p.parseTypeAnnotation()
		if lit.ReturnType == nil {
			return nil
		}
	}

	if p.peekTokenIs(token.FAT_ARROW) {
		p.nextToken()
		arrow := p.curToken
		p.nextToken()
		body := p.parseArmBody()
		if body == nil {
			return nil
		}
		if block, ok := body.(*ast.BlockStatement); ok {
			lit.Body = block
		} else {
			lit.Body = &ast.BlockStatement{Token: arrow, Statements: []ast.Statement{
				&ast.ReturnStatement{Token: arrow, Value: body},
			}}
		}
		return lit
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	lit.Body = p.parseBlockStatement()
	if lit.Body == nil {
		return nil
	}
	return lit
}
