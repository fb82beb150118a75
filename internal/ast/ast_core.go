package ast

import (
	"github.com/solisoft/soli/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root node of every AST our parser produces.
type Program struct {
	File       string
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}
func (p *Program) GetToken() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].GetToken()
	}
	return token.Token{}
}

// TypeAnnotation is a parsed but unchecked type name, e.g. Int or Array<String>.
type TypeAnnotation struct {
	Token token.Token
	Name  string
}

// LetStatement is `let x = v;` or `const x = v;`.
type LetStatement struct {
	Token token.Token
	Name  *Identifier
	Type  *TypeAnnotation
	Value Expression
	Const bool
}

func (ls *LetStatement) statementNode()        {}
func (ls *LetStatement) TokenLiteral() string  { return ls.Token.Lexeme }
func (ls *LetStatement) GetToken() token.Token { return ls.Token }

type ReturnStatement struct {
	Token token.Token
	Value Expression // nil for a bare return
}

func (rs *ReturnStatement) statementNode()        {}
func (rs *ReturnStatement) TokenLiteral() string  { return rs.Token.Lexeme }
func (rs *ReturnStatement) GetToken() token.Token { return rs.Token }

// ExpressionStatement is a statement that consists of a single expression.
type ExpressionStatement struct {
	Token      token.Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()        {}
func (es *ExpressionStatement) TokenLiteral() string  { return es.Token.Lexeme }
func (es *ExpressionStatement) GetToken() token.Token { return es.Token }

// BlockStatement represents a list of statements within curly braces.
type BlockStatement struct {
	Token      token.Token // {
	Statements []Statement
}

func (bs *BlockStatement) statementNode()        {}
func (bs *BlockStatement) expressionNode()       {}
func (bs *BlockStatement) TokenLiteral() string  { return bs.Token.Lexeme }
func (bs *BlockStatement) GetToken() token.Token { return bs.Token }

// Parameter is one function parameter, optionally typed and defaulted.
type Parameter struct {
	Token   token.Token
	Name    *Identifier
	Type    *TypeAnnotation
	Default Expression
}

// FunctionStatement is a named function declaration.
// fn name(a: Int, b: Int = 2) -> Int { body }
type FunctionStatement struct {
	Token      token.Token
	Name       *Identifier
	Parameters []*Parameter
	ReturnType *TypeAnnotation
	Body       *BlockStatement
}

func (fs *FunctionStatement) statementNode()        {}
func (fs *FunctionStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *FunctionStatement) GetToken() token.Token { return fs.Token }

type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode()        {}
func (ws *WhileStatement) TokenLiteral() string  { return ws.Token.Lexeme }
func (ws *WhileStatement) GetToken() token.Token { return ws.Token }

// ForStatement is `for (x in xs) {}` or `for (k, v in xs) {}`.
type ForStatement struct {
	Token    token.Token
	Key      *Identifier // set only in the two-variable form
	Value    *Identifier
	Iterable Expression
	Body     *BlockStatement
}

func (fs *ForStatement) statementNode()        {}
func (fs *ForStatement) TokenLiteral() string  { return fs.Token.Lexeme }
func (fs *ForStatement) GetToken() token.Token { return fs.Token }

type BreakStatement struct {
	Token token.Token
}

func (bs *BreakStatement) statementNode()        {}
func (bs *BreakStatement) TokenLiteral() string  { return bs.Token.Lexeme }
func (bs *BreakStatement) GetToken() token.Token { return bs.Token }

type ContinueStatement struct {
	Token token.Token
}

func (cs *ContinueStatement) statementNode()        {}
func (cs *ContinueStatement) TokenLiteral() string  { return cs.Token.Lexeme }
func (cs *ContinueStatement) GetToken() token.Token { return cs.Token }

// TryStatement is try/catch/finally. At least one of CatchBody and
// FinallyBody is present.
type TryStatement struct {
	Token       token.Token
	Body        *BlockStatement
	CatchParam  *Identifier // optional even when CatchBody is set
	CatchBody   *BlockStatement
	FinallyBody *BlockStatement
}

func (ts *TryStatement) statementNode()        {}
func (ts *TryStatement) TokenLiteral() string  { return ts.Token.Lexeme }
func (ts *TryStatement) GetToken() token.Token { return ts.Token }

type ThrowStatement struct {
	Token token.Token
	Value Expression
}

func (ts *ThrowStatement) statementNode()        {}
func (ts *ThrowStatement) TokenLiteral() string  { return ts.Token.Lexeme }
func (ts *ThrowStatement) GetToken() token.Token { return ts.Token }

// ImportStatement is `import "path";` or `import { a, b } from "path";`.
type ImportStatement struct {
	Token   token.Token
	Path    *StringLiteral
	Symbols []*Identifier
}

func (is *ImportStatement) statementNode()        {}
func (is *ImportStatement) TokenLiteral() string  { return is.Token.Lexeme }
func (is *ImportStatement) GetToken() token.Token { return is.Token }
