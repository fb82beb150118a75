package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseFunctionStatement() ast.Statement {
	stmt := &ast.FunctionStatement{Token: p.curToken}
	p.nextToken()
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParameters()
	if !ok {
		return nil
	}
	stmt.Parameters = params

	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		p.nextToken()
		stmt.ReturnType = p.parseTypeAnnotation()
		if stmt.ReturnType == nil {
			return nil
		}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseParameters expects curToken on '(' and leaves it on ')'.
func (p *Parser) parseParameters() ([]*ast.Parameter, bool) {
	var params []*ast.Parameter
	seenDefault := false

	for !p.peekTokenIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		param := &ast.Parameter{
			Token: p.curToken,
			Name:  &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme},
		}
		if p.peekTokenIs(token.COLON) {
			p.nextToken()
			p.nextToken()
			param.Type = p.parseTypeAnnotation()
			if param.Type == nil {
				return nil, false
			}
		}
		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			param.Default = p.parseExpression(LOWEST)
			if param.Default == nil {
				return nil, false
			}
			seenDefault = true
		} else if seenDefault {
			p.addError(diagnostics.ErrP004, param.Token,
				"parameter %s without a default follows a defaulted parameter", param.Name.Value)
			return nil, false
		}
		params = append(params, param)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RPAREN) {
			p.peekError(token.RPAREN)
			return nil, false
		}
	}
	p.nextToken() // )
	return params, true
}

// parseTypeAnnotation reads a type name such as Int, Array<String> or Int?
// starting at curToken. Types are kept as text.
func (p *Parser) parseTypeAnnotation() *ast.TypeAnnotation {
	if !p.curTokenIs(token.IDENT) && !p.curTokenIs(token.NULL) && !p.curTokenIs(token.FN) {
		p.addError(diagnostics.ErrP004, p.curToken, "expected a type, got %s", describe(p.curToken))
		return nil
	}
	ta := &ast.TypeAnnotation{Token: p.curToken, Name: p.curToken.Lexeme}
	if p.peekTokenIs(token.LT) {
		depth := 0
		for {
			p.nextToken()
			switch p.curToken.Type {
			case token.LT:
				depth++
			case token.GT:
				depth--
			case token.EOF:
				p.addError(diagnostics.ErrP004, ta.Token, "unterminated type arguments")
				return nil
			}
			ta.Name += p.curToken.Lexeme
			if depth == 0 {
				break
			}
		}
	}
	for p.peekTokenIs(token.LBRACKET) && p.peekN(2).Type == token.RBRACKET {
		p.nextToken()
		p.nextToken()
		ta.Name += "[]"
	}
	if p.peekTokenIs(token.QUESTION) {
		p.nextToken()
		ta.Name += "?"
	}
	return ta
}
