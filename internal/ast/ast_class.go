package ast

import "github.com/solisoft/soli/internal/token"

// ClassStatement declares a class with optional single inheritance.
//
//	class Dog extends Animal {
//	    name: String = "rex";
//	    static count = 0;
//	    new(name) { this.name = name; }
//	    fn speak() { return "woof"; }
//	}
type ClassStatement struct {
	Token       token.Token
	Name        *Identifier
	SuperClass  *Identifier
	Fields      []*FieldDeclaration
	Methods     []*MethodDeclaration
	Constructor *MethodDeclaration
}

func (cs *ClassStatement) statementNode()        {}
func (cs *ClassStatement) TokenLiteral() string  { return cs.Token.Lexeme }
func (cs *ClassStatement) GetToken() token.Token { return cs.Token }

type FieldDeclaration struct {
	Token  token.Token
	Name   *Identifier
	Type   *TypeAnnotation
	Value  Expression // nil means the field starts as null
	Static bool
	Const  bool
}

func (fd *FieldDeclaration) TokenLiteral() string  { return fd.Token.Lexeme }
func (fd *FieldDeclaration) GetToken() token.Token { return fd.Token }

type MethodDeclaration struct {
	Token      token.Token
	Name       *Identifier
	Parameters []*Parameter
	ReturnType *TypeAnnotation
	Body       *BlockStatement
	Static     bool
}

func (md *MethodDeclaration) TokenLiteral() string  { return md.Token.Lexeme }
func (md *MethodDeclaration) GetToken() token.Token { return md.Token }

type NewExpression struct {
	Token     token.Token
	Class     Expression
	Arguments []Expression
	Named     []*NamedArgument
}

func (ne *NewExpression) expressionNode()       {}
func (ne *NewExpression) TokenLiteral() string  { return ne.Token.Lexeme }
func (ne *NewExpression) GetToken() token.Token { return ne.Token }

type ThisExpression struct {
	Token token.Token
}

func (te *ThisExpression) expressionNode()       {}
func (te *ThisExpression) TokenLiteral() string  { return te.Token.Lexeme }
func (te *ThisExpression) GetToken() token.Token { return te.Token }

// SuperExpression is `super.method` or, with a nil Method, the `super` in
// `super(args)` inside a constructor.
type SuperExpression struct {
	Token  token.Token
	Method *Identifier
}

func (se *SuperExpression) expressionNode()       {}
func (se *SuperExpression) TokenLiteral() string  { return se.Token.Lexeme }
func (se *SuperExpression) GetToken() token.Token { return se.Token }
