// Package prettyprinter renders a parsed program back to soli source in a
// canonical layout. Comments are not part of the AST and are lost.
package prettyprinter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/token"
)

// Binding strength, mirroring the parser (higher = binds tighter)
const (
	precLowest = iota + 1
	precAssign
	precNullish
	precOr
	precAnd
	precEquals
	precCompare
	precRange
	precSum
	precProduct
	precPrefix
	precCall
	precAtom
)

var operatorPrecedence = map[string]int{
	"??": precNullish,
	"||": precOr,
	"&&": precAnd,
	"==": precEquals,
	"!=": precEquals,
	"<":  precCompare,
	">":  precCompare,
	"<=": precCompare,
	">=": precCompare,
	"+":  precSum,
	"-":  precSum,
	"*":  precProduct,
	"/":  precProduct,
	"%":  precProduct,
}

func precedenceOf(expr ast.Expression) int {
	switch e := expr.(type) {
	case *ast.InfixExpression:
		if p, ok := operatorPrecedence[e.Operator]; ok {
			return p
		}
		return precSum
	case *ast.AssignExpression:
		return precAssign
	case *ast.RangeExpression:
		return precRange
	case *ast.PrefixExpression:
		return precPrefix
	case *ast.CallExpression, *ast.MemberExpression, *ast.IndexExpression, *ast.NewExpression:
		return precCall
	case *ast.FunctionLiteral, *ast.IfExpression, *ast.MatchExpression, *ast.BlockStatement:
		// These extend as far right as they can
		return precLowest
	}
	return precAtom
}

const indentUnit = "    "

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{}
}

// Format renders program as source text ending in a newline.
func Format(program *ast.Program) string {
	p := NewCodePrinter()
	p.printProgram(program)
	return p.String()
}

// FormatExpression renders a single expression.
func FormatExpression(expr ast.Expression) string {
	p := NewCodePrinter()
	p.printExpr(expr, precLowest)
	return p.String()
}

func (p *CodePrinter) String() string {
	return p.buf.String()
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
}

func (p *CodePrinter) writeln() {
	p.buf.WriteByte('\n')
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString(indentUnit)
	}
}

// sub captures what fn prints with a fresh printer at the current indent.
func (p *CodePrinter) sub(fn func(*CodePrinter)) string {
	q := &CodePrinter{indent: p.indent}
	fn(q)
	return q.String()
}

func (p *CodePrinter) printProgram(program *ast.Program) {
	p.printStatements(program.Statements, true)
}

// printStatements writes one statement per line at the current indent. A
// statement is terminated with ';' when the next one starts with '(' or '['
// so that it is not read as a call or index on the previous value.
func (p *CodePrinter) printStatements(stmts []ast.Statement, topLevel bool) {
	rendered := make([]string, len(stmts))
	for i, stmt := range stmts {
		rendered[i] = p.sub(func(q *CodePrinter) { q.printStatement(stmt) })
	}
	for i, text := range rendered {
		if i > 0 && topLevel && (isDeclaration(stmts[i]) || isDeclaration(stmts[i-1])) {
			p.writeln()
		}
		p.writeIndent()
		p.write(text)
		if i+1 < len(rendered) && startsGroup(rendered[i+1]) {
			p.write(";")
		}
		p.writeln()
	}
}

func isDeclaration(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.FunctionStatement, *ast.ClassStatement:
		return true
	}
	return false
}

func startsGroup(s string) bool {
	return strings.HasPrefix(s, "(") || strings.HasPrefix(s, "[")
}

func (p *CodePrinter) printStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		if s.Const {
			p.write("const ")
		} else {
			p.write("let ")
		}
		p.write(s.Name.Value)
		p.printType(s.Type)
		if s.Value != nil {
			p.write(" = ")
			p.printExpr(s.Value, precLowest)
		}
	case *ast.ReturnStatement:
		p.write("return")
		if s.Value != nil {
			p.write(" ")
			p.printExpr(s.Value, precLowest)
		}
	case *ast.ExpressionStatement:
		text := p.sub(func(q *CodePrinter) { q.printExpr(s.Expression, precLowest) })
		// A leading '{' would open a block
		if strings.HasPrefix(text, "{") {
			text = "(" + text + ")"
		}
		p.write(text)
	case *ast.BlockStatement:
		p.printBlock(s)
	case *ast.FunctionStatement:
		p.write("fn " + s.Name.Value)
		p.printSignature(s.Parameters, s.ReturnType)
		p.write(" ")
		p.printBlock(s.Body)
	case *ast.WhileStatement:
		p.write("while ")
		p.printExpr(s.Condition, precLowest)
		p.write(" ")
		p.printBlock(s.Body)
	case *ast.ForStatement:
		p.write("for (")
		if s.Key != nil {
			p.write(s.Key.Value + ", ")
		}
		p.write(s.Value.Value + " in ")
		p.printExpr(s.Iterable, precLowest)
		p.write(") ")
		p.printBlock(s.Body)
	case *ast.BreakStatement:
		p.write("break")
	case *ast.ContinueStatement:
		p.write("continue")
	case *ast.TryStatement:
		p.write("try ")
		p.printBlock(s.Body)
		if s.CatchBody != nil {
			p.write(" catch ")
			if s.CatchParam != nil {
				p.write("(" + s.CatchParam.Value + ") ")
			}
			p.printBlock(s.CatchBody)
		}
		if s.FinallyBody != nil {
			p.write(" finally ")
			p.printBlock(s.FinallyBody)
		}
	case *ast.ThrowStatement:
		p.write("throw ")
		p.printExpr(s.Value, precLowest)
	case *ast.ImportStatement:
		p.write("import ")
		if len(s.Symbols) > 0 {
			names := make([]string, len(s.Symbols))
			for i, sym := range s.Symbols {
				names[i] = sym.Value
			}
			p.write("{ " + strings.Join(names, ", ") + " } from ")
		}
		p.write(quote(s.Path.Value))
	case *ast.ClassStatement:
		p.printClass(s)
	}
}

func (p *CodePrinter) printType(t *ast.TypeAnnotation) {
	if t != nil {
		p.write(": " + t.Name)
	}
}

func (p *CodePrinter) printSignature(params []*ast.Parameter, ret *ast.TypeAnnotation) {
	p.write("(")
	for i, param := range params {
		if i > 0 {
			p.write(", ")
		}
		p.write(param.Name.Value)
		p.printType(param.Type)
		if param.Default != nil {
			p.write(" = ")
			p.printExpr(param.Default, precLowest)
		}
	}
	p.write(")")
	if ret != nil {
		p.write(" -> " + ret.Name)
	}
}

func (p *CodePrinter) printBlock(block *ast.BlockStatement) {
	if len(block.Statements) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.writeln()
	p.indent++
	p.printStatements(block.Statements, false)
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *CodePrinter) printClass(s *ast.ClassStatement) {
	p.write("class " + s.Name.Value)
	if s.SuperClass != nil {
		p.write(" extends " + s.SuperClass.Value)
	}
	if len(s.Fields) == 0 && s.Constructor == nil && len(s.Methods) == 0 {
		p.write(" {}")
		return
	}
	p.write(" {")
	p.writeln()
	p.indent++

	for _, f := range s.Fields {
		p.writeIndent()
		if f.Static {
			p.write("static ")
		}
		if f.Const {
			p.write("const ")
		}
		p.write(f.Name.Value)
		p.printType(f.Type)
		if f.Value != nil {
			p.write(" = ")
			p.printExpr(f.Value, precLowest)
		}
		p.writeln()
	}

	methods := s.Methods
	if s.Constructor != nil {
		methods = append([]*ast.MethodDeclaration{s.Constructor}, methods...)
	}
	for i, m := range methods {
		if i > 0 || len(s.Fields) > 0 {
			p.writeln()
		}
		p.writeIndent()
		if m.Static {
			p.write("static ")
		}
		if m == s.Constructor {
			p.write("new")
		} else {
			p.write("fn " + m.Name.Value)
		}
		p.printSignature(m.Parameters, m.ReturnType)
		p.write(" ")
		p.printBlock(m.Body)
		p.writeln()
	}

	p.indent--
	p.writeIndent()
	p.write("}")
}

// printExpr prints an expression, adding parentheses only if it binds
// looser than minPrec
func (p *CodePrinter) printExpr(expr ast.Expression, minPrec int) {
	if precedenceOf(expr) < minPrec {
		p.write("(")
		p.printExpr(expr, precLowest)
		p.write(")")
		return
	}

	switch e := expr.(type) {
	case *ast.Identifier:
		p.write(e.Value)
	case *ast.IntegerLiteral:
		p.write(strconv.FormatInt(e.Value, 10))
	case *ast.FloatLiteral:
		p.write(formatFloat(e.Value))
	case *ast.StringLiteral:
		p.write(quote(e.Value))
	case *ast.InterpolatedString:
		p.write(`"`)
		for _, part := range e.Parts {
			if lit, ok := part.(*ast.StringLiteral); ok {
				p.write(escape(lit.Value))
				continue
			}
			p.write("#{")
			p.printExpr(part, precLowest)
			p.write("}")
		}
		p.write(`"`)
	case *ast.BooleanLiteral:
		p.write(strconv.FormatBool(e.Value))
	case *ast.NullLiteral:
		p.write("null")
	case *ast.ThisExpression:
		p.write("this")
	case *ast.SuperExpression:
		p.write("super")
		if e.Method != nil {
			p.write("." + e.Method.Value)
		}

	case *ast.PrefixExpression:
		p.write(e.Operator)
		right := p.sub(func(q *CodePrinter) { q.printExpr(e.Right, precPrefix) })
		// "- -x" must not collapse into "--x"
		if e.Operator == "-" && strings.HasPrefix(right, "-") {
			right = "(" + right + ")"
		}
		p.write(right)
	case *ast.InfixExpression:
		prec := precedenceOf(e)
		p.printExpr(e.Left, prec)
		p.write(" " + e.Operator + " ")
		p.printExpr(e.Right, prec+1)
	case *ast.RangeExpression:
		p.printExpr(e.Start, precRange)
		if e.Inclusive {
			p.write("..=")
		} else {
			p.write("..")
		}
		p.printExpr(e.End, precRange+1)
	case *ast.AssignExpression:
		p.printExpr(e.Target, precCall)
		if e.Operator == "=" {
			p.write(" = ")
		} else {
			p.write(" " + e.Operator + "= ")
		}
		p.printExpr(e.Value, precAssign)

	case *ast.CallExpression:
		p.printExpr(e.Function, precCall)
		p.printArguments(e.Arguments, e.Named)
	case *ast.MemberExpression:
		p.printExpr(e.Left, precCall)
		if e.IsOptional {
			p.write("?.")
		} else {
			p.write(".")
		}
		p.write(e.Member.Value)
	case *ast.IndexExpression:
		p.printExpr(e.Left, precCall)
		p.write("[")
		p.printExpr(e.Index, precLowest)
		p.write("]")
	case *ast.NewExpression:
		p.write("new ")
		p.printExpr(e.Class, precCall)
		p.printArguments(e.Arguments, e.Named)

	case *ast.SpreadExpression:
		p.write("...")
		p.printExpr(e.Value, precLowest)
	case *ast.ArrayLiteral:
		p.write("[")
		for i, el := range e.Elements {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(el, precLowest)
		}
		p.write("]")
	case *ast.MapLiteral:
		if len(e.Entries) == 0 {
			p.write("{}")
			return
		}
		p.write("{")
		for i, entry := range e.Entries {
			if i > 0 {
				p.write(", ")
			}
			if entry.Spread != nil {
				p.write("...")
				p.printExpr(entry.Spread, precLowest)
				continue
			}
			p.printExpr(entry.Key, precLowest)
			p.write(": ")
			p.printExpr(entry.Value, precLowest)
		}
		p.write("}")
	case *ast.ListComprehension:
		p.write("[")
		p.printExpr(e.Element, precLowest)
		p.printComprehension(e.Variable, e.Iterable, e.Condition)
		p.write("]")
	case *ast.MapComprehension:
		p.write("{")
		p.printExpr(e.Key, precLowest)
		p.write(": ")
		p.printExpr(e.Value, precLowest)
		p.printComprehension(e.Variable, e.Iterable, e.Condition)
		p.write("}")

	case *ast.FunctionLiteral:
		p.write("fn")
		p.printSignature(e.Parameters, e.ReturnType)
		if body, ok := arrowBody(e.Body); ok {
			p.write(" => ")
			p.printArmBody(body)
			return
		}
		p.write(" ")
		p.printBlock(e.Body)
	case *ast.IfExpression:
		p.printIf(e)
	case *ast.MatchExpression:
		p.printMatch(e)
	case *ast.BlockStatement:
		p.printBlock(e)
	}
}

func (p *CodePrinter) printArguments(args []ast.Expression, named []*ast.NamedArgument) {
	p.write("(")
	for i, arg := range args {
		if i > 0 {
			p.write(", ")
		}
		p.printExpr(arg, precLowest)
	}
	for i, arg := range named {
		if i > 0 || len(args) > 0 {
			p.write(", ")
		}
		p.write(arg.Name.Value + ": ")
		p.printExpr(arg.Value, precLowest)
	}
	p.write(")")
}

func (p *CodePrinter) printComprehension(variable *ast.Identifier, iterable, cond ast.Expression) {
	p.write(" for " + variable.Value + " in ")
	p.printExpr(iterable, precLowest)
	if cond != nil {
		p.write(" if ")
		p.printExpr(cond, precLowest)
	}
}

// arrowBody reports whether body came from `fn(x) => expr` and returns expr.
func arrowBody(body *ast.BlockStatement) (ast.Expression, bool) {
	if body == nil || len(body.Statements) != 1 || body.Token.Type != token.FAT_ARROW {
		return nil, false
	}
	ret, ok := body.Statements[0].(*ast.ReturnStatement)
	if !ok || ret.Value == nil {
		return nil, false
	}
	return ret.Value, true
}

// printArmBody prints the expression after `=>`. A map literal there must
// be wrapped, since a leading '{' starts a block.
func (p *CodePrinter) printArmBody(body ast.Expression) {
	switch body.(type) {
	case *ast.MapLiteral, *ast.MapComprehension:
		p.write("(")
		p.printExpr(body, precLowest)
		p.write(")")
	default:
		p.printExpr(body, precLowest)
	}
}

func (p *CodePrinter) printIf(e *ast.IfExpression) {
	p.write("if ")
	p.printExpr(e.Condition, precLowest)
	p.write(" ")
	p.printBlock(e.Consequence)
	switch alt := e.Alternative.(type) {
	case *ast.IfExpression:
		p.write(" else ")
		p.printIf(alt)
	case *ast.BlockStatement:
		p.write(" else ")
		p.printBlock(alt)
	}
}

func (p *CodePrinter) printMatch(e *ast.MatchExpression) {
	p.write("match ")
	p.printExpr(e.Subject, precLowest)
	p.write(" {")
	p.writeln()
	p.indent++
	for _, arm := range e.Arms {
		p.writeIndent()
		for i, pat := range arm.Patterns {
			if i > 0 {
				p.write(" | ")
			}
			p.printPattern(pat)
		}
		if arm.Guard != nil {
			p.write(" if ")
			p.printExpr(arm.Guard, precLowest)
		}
		p.write(" => ")
		if block, ok := arm.Body.(*ast.BlockStatement); ok {
			p.printBlock(block)
		} else {
			p.printArmBody(arm.Body)
		}
		p.write(",")
		p.writeln()
	}
	p.indent--
	p.writeIndent()
	p.write("}")
}

func (p *CodePrinter) printPattern(pat ast.Pattern) {
	switch pt := pat.(type) {
	case *ast.WildcardPattern:
		p.write("_")
	case *ast.IdentifierPattern:
		p.write(pt.Name.Value)
	case *ast.LiteralPattern:
		p.printExpr(pt.Value, precLowest)
	case *ast.RangePattern:
		p.printExpr(pt.Start, precLowest)
		if pt.Inclusive {
			p.write("..=")
		} else {
			p.write("..")
		}
		p.printExpr(pt.End, precLowest)
	}
}

// formatFloat keeps a decimal point so the literal lexes back as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	return `"` + escape(s) + `"`
}

func escape(s string) string {
	var sb strings.Builder
	for i, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		case '#':
			if strings.HasPrefix(s[i:], "#{") {
				sb.WriteString(`\#`)
			} else {
				sb.WriteRune(r)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
