package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET, token.CONST:
		return p.parseLetStatement()
	case token.FN:
		if p.peekTokenIs(token.IDENT) {
			return p.parseFunctionStatement()
		}
		return p.parseExpressionStatement()
	case token.CLASS:
		return p.parseClassStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		p.skipSemicolon()
		return stmt
	case token.CONTINUE:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		p.skipSemicolon()
		return stmt
	case token.TRY:
		return p.parseTryStatement()
	case token.THROW:
		return p.parseThrowStatement()
	case token.IMPORT:
		return p.parseImportStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) skipSemicolon() {
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStatement{Token: p.curToken, Const: p.curTokenIs(token.CONST)}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}

	if p.peekTokenIs(token.COLON) {
		p.nextToken()
		p.nextToken()
		stmt.Type = p.parseTypeAnnotation()
		if stmt.Type == nil {
			return nil
		}
	}

	if !p.peekTokenIs(token.ASSIGN) {
		if stmt.Const {
			p.addError(diagnostics.ErrP004, stmt.Token, "const %s needs an initial value", stmt.Name.Value)
			return nil
		}
		p.skipSemicolon()
		return stmt
	}
	p.nextToken()
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.peekTokenIs(token.SEMICOLON) || p.peekTokenIs(token.RBRACE) || p.peekTokenIs(token.EOF) {
		p.skipSemicolon()
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	// A statement-level if or match ends at its closing brace; the next line
	// must not be read as a call or index on its value.
	switch p.curToken.Type {
	case token.IF:
		stmt.Expression = p.parseIfExpression()
	case token.MATCH:
		stmt.Expression = p.parseMatchExpression()
	default:
		stmt.Expression = p.parseExpression(LOWEST)
	}
	if stmt.Expression == nil {
		return nil
	}
	p.skipSemicolon()
	return stmt
}

// parseBlockStatement expects curToken to be '{' and leaves it on '}'.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.addError(diagnostics.ErrP001, p.curToken, "unterminated block, expected '}'")
			return nil
		}
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		errCount := len(p.ctx.Errors)
		stmt := p.parseStatement()
		if len(p.ctx.Errors) > errCount {
			return nil
		}
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
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

// parseForStatement handles `for (x in xs)`, `for (k, v in m)` and the
// same forms without parentheses.
func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}
	parens := p.peekTokenIs(token.LPAREN)
	if parens {
		p.nextToken()
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	first := &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Key = first
		stmt.Value = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	} else {
		stmt.Value = first
	}
	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	stmt.Iterable = p.parseExpression(LOWEST)
	if stmt.Iterable == nil {
		return nil
	}
	if parens && !p.expectPeek(token.RPAREN) {
		return nil
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

func (p *Parser) parseTryStatement() ast.Statement {
	stmt := &ast.TryStatement{Token: p.curToken}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}

	if p.peekTokenIs(token.CATCH) {
		p.nextToken()
		switch {
		case p.peekTokenIs(token.LPAREN):
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			stmt.CatchParam = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
			// catch (e: Error) - the type is informational only
			if p.peekTokenIs(token.COLON) {
				p.nextToken()
				p.nextToken()
				if p.parseTypeAnnotation() == nil {
					return nil
				}
			}
			if !p.expectPeek(token.RPAREN) {
				return nil
			}
		case p.peekTokenIs(token.IDENT):
			p.nextToken()
			stmt.CatchParam = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.CatchBody = p.parseBlockStatement()
		if stmt.CatchBody == nil {
			return nil
		}
	}

	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.FinallyBody = p.parseBlockStatement()
		if stmt.FinallyBody == nil {
			return nil
		}
	}

	if stmt.CatchBody == nil && stmt.FinallyBody == nil {
		p.addError(diagnostics.ErrP004, stmt.Token, "try needs a catch or finally block")
		return nil
	}
	return stmt
}

func (p *Parser) parseThrowStatement() ast.Statement {
	stmt := &ast.ThrowStatement{Token: p.curToken}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	p.skipSemicolon()
	return stmt
}

func (p *Parser) parseImportStatement() ast.Statement {
	stmt := &ast.ImportStatement{Token: p.curToken}
	if p.peekTokenIs(token.LBRACE) {
		p.nextToken()
		for !p.peekTokenIs(token.RBRACE) {
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			stmt.Symbols = append(stmt.Symbols, &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme})
			if p.peekTokenIs(token.COMMA) {
				p.nextToken()
			}
		}
		p.nextToken() // }
		if !p.expectPeek(token.FROM) {
			return nil
		}
	}
	if !p.expectPeek(token.STRING) {
		return nil
	}
	stmt.Path = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal.(string)}
	p.skipSemicolon()
	return stmt
}
