package ast

import (
	"github.com/solisoft/soli/internal/token"
)

type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()       {}
func (i *Identifier) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()       {}
func (il *IntegerLiteral) TokenLiteral() string  { return il.Token.Lexeme }
func (il *IntegerLiteral) GetToken() token.Token { return il.Token }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()       {}
func (fl *FloatLiteral) TokenLiteral() string  { return fl.Token.Lexeme }
func (fl *FloatLiteral) GetToken() token.Token { return fl.Token }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()       {}
func (sl *StringLiteral) TokenLiteral() string  { return sl.Token.Lexeme }
func (sl *StringLiteral) GetToken() token.Token { return sl.Token }

// InterpolatedString is "a #{b} c"; Parts mixes StringLiterals and
// arbitrary expressions in source order.
type InterpolatedString struct {
	Token token.Token
	Parts []Expression
}

func (is *InterpolatedString) expressionNode()       {}
func (is *InterpolatedString) TokenLiteral() string  { return is.Token.Lexeme }
func (is *InterpolatedString) GetToken() token.Token { return is.Token }

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()       {}
func (bl *BooleanLiteral) TokenLiteral() string  { return bl.Token.Lexeme }
func (bl *BooleanLiteral) GetToken() token.Token { return bl.Token }

type NullLiteral struct {
	Token token.Token
}

func (nl *NullLiteral) expressionNode()       {}
func (nl *NullLiteral) TokenLiteral() string  { return nl.Token.Lexeme }
func (nl *NullLiteral) GetToken() token.Token { return nl.Token }

type PrefixExpression struct {
	Token    token.Token
	Operator string // "-" or "!"
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()       {}
func (pe *PrefixExpression) TokenLiteral() string  { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token { return pe.Token }

// InfixExpression covers arithmetic, comparison, logical (&&, ||) and
// nullish (??) operators.
type InfixExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()       {}
func (ie *InfixExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token { return ie.Token }

// AssignExpression is `target = value` or a compound form such as `+=`.
// Target is an Identifier, MemberExpression or IndexExpression.
type AssignExpression struct {
	Token    token.Token
	Target   Expression
	Operator string // "=" or the arithmetic operator of a compound assignment
	Value    Expression
}

func (ae *AssignExpression) expressionNode()       {}
func (ae *AssignExpression) TokenLiteral() string  { return ae.Token.Lexeme }
func (ae *AssignExpression) GetToken() token.Token { return ae.Token }

type NamedArgument struct {
	Token token.Token
	Name  *Identifier
	Value Expression
}

type CallExpression struct {
	Token     token.Token // the '(' token
	Function  Expression
	Arguments []Expression
	Named     []*NamedArgument
}

func (ce *CallExpression) expressionNode()       {}
func (ce *CallExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token { return ce.Token }

// MemberExpression represents dot access, e.g. obj.field or obj?.field
type MemberExpression struct {
	Token      token.Token // The '.' or '?.' token
	Left       Expression
	Member     *Identifier
	IsOptional bool
}

func (me *MemberExpression) expressionNode()       {}
func (me *MemberExpression) TokenLiteral() string  { return me.Token.Lexeme }
func (me *MemberExpression) GetToken() token.Token { return me.Token }

// IndexExpression represents indexing, e.g. arr[i]
type IndexExpression struct {
	Token token.Token // The '[' token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()       {}
func (ie *IndexExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IndexExpression) GetToken() token.Token { return ie.Token }

// SpreadExpression is `...xs` inside an array or map literal.
type SpreadExpression struct {
	Token token.Token
	Value Expression
}

func (se *SpreadExpression) expressionNode()       {}
func (se *SpreadExpression) TokenLiteral() string  { return se.Token.Lexeme }
func (se *SpreadExpression) GetToken() token.Token { return se.Token }

// ArrayLiteral elements may include SpreadExpressions.
type ArrayLiteral struct {
	Token    token.Token
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode()       {}
func (al *ArrayLiteral) TokenLiteral() string  { return al.Token.Lexeme }
func (al *ArrayLiteral) GetToken() token.Token { return al.Token }

// MapEntry is either Key: Value or, with Spread set, `...other`.
type MapEntry struct {
	Key    Expression
	Value  Expression
	Spread Expression
}

type MapLiteral struct {
	Token   token.Token
	Entries []*MapEntry
}

func (ml *MapLiteral) expressionNode()       {}
func (ml *MapLiteral) TokenLiteral() string  { return ml.Token.Lexeme }
func (ml *MapLiteral) GetToken() token.Token { return ml.Token }

// FunctionLiteral is a lambda: fn(x) { ... } or fn(x) => expr.
type FunctionLiteral struct {
	Token      token.Token
	Parameters []*Parameter
	ReturnType *TypeAnnotation
	Body       *BlockStatement
}

func (fl *FunctionLiteral) expressionNode()       {}
func (fl *FunctionLiteral) TokenLiteral() string  { return fl.Token.Lexeme }
func (fl *FunctionLiteral) GetToken() token.Token { return fl.Token }

// IfExpression is usable as a statement or a value. Alternative is nil, a
// *BlockStatement, or a nested *IfExpression for else-if chains.
type IfExpression struct {
	Token       token.Token
	Condition   Expression
	Consequence *BlockStatement
	Alternative Expression
}

func (ie *IfExpression) expressionNode()       {}
func (ie *IfExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *IfExpression) GetToken() token.Token { return ie.Token }

type RangeExpression struct {
	Token     token.Token
	Start     Expression
	End       Expression
	Inclusive bool
}

func (re *RangeExpression) expressionNode()       {}
func (re *RangeExpression) TokenLiteral() string  { return re.Token.Lexeme }
func (re *RangeExpression) GetToken() token.Token { return re.Token }

// ListComprehension is [Element for Variable in Iterable if Condition].
type ListComprehension struct {
	Token     token.Token
	Element   Expression
	Variable  *Identifier
	Iterable  Expression
	Condition Expression
}

func (lc *ListComprehension) expressionNode()       {}
func (lc *ListComprehension) TokenLiteral() string  { return lc.Token.Lexeme }
func (lc *ListComprehension) GetToken() token.Token { return lc.Token }

// MapComprehension is {Key: Value for Variable in Iterable if Condition}.
type MapComprehension struct {
	Token     token.Token
	Key       Expression
	Value     Expression
	Variable  *Identifier
	Iterable  Expression
	Condition Expression
}

func (mc *MapComprehension) expressionNode()       {}
func (mc *MapComprehension) TokenLiteral() string  { return mc.Token.Lexeme }
func (mc *MapComprehension) GetToken() token.Token { return mc.Token }
