package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseClassStatement() ast.Statement {
	stmt := &ast.ClassStatement{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}

	if p.peekTokenIs(token.EXTENDS) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.SuperClass = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.addError(diagnostics.ErrP001, p.curToken, "unterminated class body for %s", stmt.Name.Value)
			return nil
		}
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		if !p.parseClassMember(stmt) {
			return nil
		}
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseClassMember(class *ast.ClassStatement) bool {
	static := false
	if p.curTokenIs(token.STATIC) {
		static = true
		p.nextToken()
	}

	switch {
	case p.curTokenIs(token.NEW) || p.curTokenIs(token.CONSTRUCTOR):
		if static {
			p.addError(diagnostics.ErrP006, p.curToken, "constructor cannot be static")
			return false
		}
		if class.Constructor != nil {
			p.addError(diagnostics.ErrP004, p.curToken, "class %s has more than one constructor", class.Name.Value)
			return false
		}
		m := p.parseMethod(p.curToken, &ast.Identifier{Token: p.curToken, Value: "new"})
		if m == nil {
			return false
		}
		class.Constructor = m
		return true

	case p.curTokenIs(token.FN):
		tok := p.curToken
		if !p.expectPeek(token.IDENT) {
			return false
		}
		m := p.parseMethod(tok, &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme})
		if m == nil {
			return false
		}
		m.Static = static
		class.Methods = append(class.Methods, m)
		return true

	case p.curTokenIs(token.CONST) || p.curTokenIs(token.LET) || p.curTokenIs(token.IDENT):
		f := &ast.FieldDeclaration{Token: p.curToken, Static: static}
		if p.curTokenIs(token.CONST) || p.curTokenIs(token.LET) {
			f.Const = p.curTokenIs(token.CONST)
			if !p.expectPeek(token.IDENT) {
				return false
			}
		}
		f.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
		if p.peekTokenIs(token.COLON) {
			p.nextToken()
			p.nextToken()
			f.Type = p.parseTypeAnnotation()
			if f.Type == nil {
				return false
			}
		}
		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			f.Value = p.parseExpression(LOWEST)
			if f.Value == nil {
				return false
			}
		} else if f.Const {
			p.addError(diagnostics.ErrP004, f.Token, "const field %s needs an initial value", f.Name.Value)
			return false
		}
		p.skipSemicolon()
		class.Fields = append(class.Fields, f)
		return true
	}

	p.addError(diagnostics.ErrP001, p.curToken, "unexpected %s in class body", describe(p.curToken))
	return false
}

// parseMethod expects curToken on the method name and parses the rest.
func (p *Parser) parseMethod(tok token.Token, name *ast.Identifier) *ast.MethodDeclaration {
	m := &ast.MethodDeclaration{Token: tok, Name: name}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParameters()
	if !ok {
		return nil
	}
	m.Parameters = params
	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		p.nextToken()
		m.ReturnType = p.parseTypeAnnotation()
		if m.ReturnType == nil {
			return nil
		}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	m.Body = p.parseBlockStatement()
	if m.Body == nil {
		return nil
	}
	return m
}
