package ast

import "github.com/solisoft/soli/internal/token"

// MatchExpression evaluates the first arm whose pattern matches Subject.
type MatchExpression struct {
	Token   token.Token
	Subject Expression
	Arms    []*MatchArm
}

func (me *MatchExpression) expressionNode()       {}
func (me *MatchExpression) TokenLiteral() string  { return me.Token.Lexeme }
func (me *MatchExpression) GetToken() token.Token { return me.Token }

// MatchArm holds alternatives joined by '|'; any one matching selects the arm.
type MatchArm struct {
	Token    token.Token
	Patterns []Pattern
	Guard    Expression
	Body     Expression
}

type Pattern interface {
	Node
	patternNode()
}

// LiteralPattern matches by equality against a literal value.
type LiteralPattern struct {
	Token token.Token
	Value Expression
}

func (lp *LiteralPattern) patternNode()          {}
func (lp *LiteralPattern) TokenLiteral() string  { return lp.Token.Lexeme }
func (lp *LiteralPattern) GetToken() token.Token { return lp.Token }

type WildcardPattern struct {
	Token token.Token
}

func (wp *WildcardPattern) patternNode()          {}
func (wp *WildcardPattern) TokenLiteral() string  { return wp.Token.Lexeme }
func (wp *WildcardPattern) GetToken() token.Token { return wp.Token }

// IdentifierPattern always matches and binds the subject to Name.
type IdentifierPattern struct {
	Token token.Token
	Name  *Identifier
}

func (ip *IdentifierPattern) patternNode()          {}
func (ip *IdentifierPattern) TokenLiteral() string  { return ip.Token.Lexeme }
func (ip *IdentifierPattern) GetToken() token.Token { return ip.Token }

// RangePattern matches numbers in Start..End (or Start..=End).
type RangePattern struct {
	Token     token.Token
	Start     Expression
	End       Expression
	Inclusive bool
}

func (rp *RangePattern) patternNode()          {}
func (rp *RangePattern) TokenLiteral() string  { return rp.Token.Lexeme }
func (rp *RangePattern) GetToken() token.Token { return rp.Token }
