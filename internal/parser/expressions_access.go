package parser

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)
	if exp.Index == nil {
		return nil
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return exp
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	exp := &ast.MemberExpression{Token: p.curToken, Left: left, IsOptional: p.curTokenIs(token.OPTIONAL_CHAIN)}
	if !p.expectMemberName() {
		return nil
	}
	exp.Member = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	return exp
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Function: function}
	args, named, ok := p.parseCallArguments()
	if !ok {
		return nil
	}
	exp.Arguments = args
	exp.Named = named
	return exp
}

// parseCallArguments expects curToken on '(' and leaves it on ')'.
// Named arguments (name: value) must follow all positional ones.
func (p *Parser) parseCallArguments() ([]ast.Expression, []*ast.NamedArgument, bool) {
	var args []ast.Expression
	var named []*ast.NamedArgument

	for !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		if p.curTokenIs(token.IDENT) && p.peekTokenIs(token.COLON) {
			arg := &ast.NamedArgument{Token: p.curToken, Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}}
			p.nextToken()
			p.nextToken()
			arg.Value = p.parseExpression(LOWEST)
			if arg.Value == nil {
				return nil, nil, false
			}
			named = append(named, arg)
		} else {
			if len(named) > 0 {
				p.addError(diagnostics.ErrP006, p.curToken, "positional argument after named argument")
				return nil, nil, false
			}
			arg := p.parseExpression(LOWEST)
			if arg == nil {
				return nil, nil, false
			}
			args = append(args, arg)
		}

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RPAREN) {
			p.peekError(token.RPAREN)
			return nil, nil, false
		}
	}
	p.nextToken() // )
	return args, named, true
}

func (p *Parser) parseNewExpression() ast.Expression {
	exp := &ast.NewExpression{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	var class ast.Expression = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	// new mod.Class(...)
	for p.peekTokenIs(token.DOT) {
		p.nextToken()
		dot := p.curToken
		if !p.expectMemberName() {
			return nil
		}
		class = &ast.MemberExpression{Token: dot, Left: class, Member: &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}}
	}
	exp.Class = class
	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		args, named, ok := p.parseCallArguments()
		if !ok {
			return nil
		}
		exp.Arguments = args
		exp.Named = named
	}
	return exp
}
