package vm

import (
	"github.com/solisoft/soli/internal/ast"
)

var binaryOps = map[string]Opcode{
	"+":  OP_ADD,
	"-":  OP_SUB,
	"*":  OP_MUL,
	"/":  OP_DIV,
	"%":  OP_MOD,
	"==": OP_EQ,
	"!=": OP_NE,
	"<":  OP_LT,
	"<=": OP_LE,
	">":  OP_GT,
	">=": OP_GE,
}

// compileExpression compiles an expression, leaving exactly one value
func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		c.emitConstant(IntVal(e.Value), e.Token.Line)

	case *ast.FloatLiteral:
		c.emitConstant(FloatVal(e.Value), e.Token.Line)

	case *ast.StringLiteral:
		c.emitConstant(StringVal(e.Value), e.Token.Line)

	case *ast.BooleanLiteral:
		if e.Value {
			c.emitOp(OP_TRUE, e.Token.Line)
		} else {
			c.emitOp(OP_FALSE, e.Token.Line)
		}

	case *ast.NullLiteral:
		c.emitOp(OP_NULL, e.Token.Line)

	case *ast.InterpolatedString:
		return c.compileInterpolatedString(e)

	case *ast.Identifier:
		return c.compileIdentifier(e)

	case *ast.ThisExpression:
		return c.compileThis(e)

	case *ast.SuperExpression:
		if e.Method == nil {
			return c.errorAt(e, UnsupportedConstruct, "super must be called or accessed with .name")
		}
		return c.compileSuperAccess(e, e.Method.Value)

	case *ast.PrefixExpression:
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		switch e.Operator {
		case "-":
			c.emitOp(OP_NEG, e.Token.Line)
		case "!":
			c.emitOp(OP_NOT, e.Token.Line)
		default:
			return c.errorAt(e, UnsupportedConstruct, "unknown prefix operator %s", e.Operator)
		}

	case *ast.InfixExpression:
		return c.compileInfixExpression(e)

	case *ast.AssignExpression:
		return c.compileAssignExpression(e)

	case *ast.CallExpression:
		return c.compileCallExpression(e)

	case *ast.MemberExpression:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		skip := -1
		if e.IsOptional {
			skip = c.emitJump(OP_JUMP_IF_NULL, e.Token.Line)
		}
		c.emit(OP_GET_PROPERTY, c.nameConstant(e.Member.Value), 0, e.Token.Line)
		if skip >= 0 {
			c.patchJump(skip)
		}

	case *ast.IndexExpression:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Index); err != nil {
			return err
		}
		c.emitOp(OP_INDEX, e.Token.Line)

	case *ast.ArrayLiteral:
		return c.compileArrayLiteral(e)

	case *ast.MapLiteral:
		return c.compileMapLiteral(e)

	case *ast.FunctionLiteral:
		return c.compileFunction("<lambda>", e.Parameters, e.Body, TYPE_FUNCTION, e)

	case *ast.IfExpression:
		return c.compileIfExpression(e)

	case *ast.BlockStatement:
		return c.compileBlockExpression(e)

	case *ast.MatchExpression:
		return c.compileMatchExpression(e)

	case *ast.RangeExpression:
		if err := c.compileExpression(e.Start); err != nil {
			return err
		}
		if err := c.compileExpression(e.End); err != nil {
			return err
		}
		c.emit(OP_RANGE, boolOperand(e.Inclusive), 0, e.Token.Line)

	case *ast.ListComprehension:
		return c.compileListComprehension(e)

	case *ast.MapComprehension:
		return c.compileMapComprehension(e)

	case *ast.NewExpression:
		return c.compileNewExpression(e)

	case *ast.SpreadExpression:
		return c.errorAt(e, UnsupportedConstruct, "spread is only allowed inside array and map literals")

	case nil:
		return &CompileError{Kind: UnsupportedConstruct, Message: "nil expression"}

	default:
		return c.errorAt(expr, UnsupportedConstruct, "unsupported expression %T", expr)
	}
	return nil
}

func (c *Compiler) compileInterpolatedString(e *ast.InterpolatedString) error {
	if len(e.Parts) == 0 {
		c.emitConstant(StringVal(""), e.Token.Line)
		return nil
	}
	for _, part := range e.Parts {
		if err := c.compileExpression(part); err != nil {
			return err
		}
	}
	c.emit(OP_INTERPOLATE, len(e.Parts), 0, e.Token.Line)
	return nil
}

// compileIdentifier resolves a name: local slot, upvalue, then global
func (c *Compiler) compileIdentifier(ident *ast.Identifier) error {
	line := ident.Token.Line
	if idx := c.resolveLocal(ident.Value); idx != -1 {
		c.emit(OP_GET_LOCAL, c.locals[idx].Slot, 0, line)
		return nil
	}
	up, err := c.resolveUpvalue(ident, ident.Value)
	if err != nil {
		return err
	}
	if up != -1 {
		c.emit(OP_GET_UPVALUE, up, 0, line)
		return nil
	}
	c.emit(OP_GET_GLOBAL, c.nameConstant(ident.Value), 0, line)
	return nil
}

func (c *Compiler) compileThis(e *ast.ThisExpression) error {
	if c.class == nil {
		return c.errorAt(e, ThisOutsideClass, "this outside of a class")
	}
	if idx := c.resolveLocal("this"); idx != -1 {
		c.emit(OP_GET_LOCAL, c.locals[idx].Slot, 0, e.Token.Line)
		return nil
	}
	up, err := c.resolveUpvalue(e, "this")
	if err != nil {
		return err
	}
	if up == -1 {
		return c.errorAt(e, ThisOutsideClass, "this is not available in a static method")
	}
	c.emit(OP_GET_UPVALUE, up, 0, e.Token.Line)
	return nil
}

// compileSuperAccess leaves super.name bound to this
func (c *Compiler) compileSuperAccess(e *ast.SuperExpression, name string) error {
	if c.class == nil || !c.class.hasSuper {
		return c.errorAt(e, SuperOutsideSubclass, "super used outside of a subclass")
	}
	if err := c.compileThis(&ast.ThisExpression{Token: e.Token}); err != nil {
		return err
	}
	c.emit(OP_GET_SUPER, c.nameConstant(name), 0, e.Token.Line)
	return nil
}

func (c *Compiler) compileInfixExpression(e *ast.InfixExpression) error {
	line := e.Token.Line
	switch e.Operator {
	case "&&", "||", "??":
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		var jump int
		switch e.Operator {
		case "&&":
			jump = c.emitJump(OP_JUMP_IF_FALSE_KEEP, line)
		case "||":
			jump = c.emitJump(OP_JUMP_IF_TRUE_KEEP, line)
		default:
			jump = c.emitJump(OP_JUMP_IF_NOT_NULL, line)
		}
		c.emitOp(OP_POP, line)
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.patchJump(jump)
		return nil
	}

	op, ok := binaryOps[e.Operator]
	if !ok {
		return c.errorAt(e, UnsupportedConstruct, "unknown operator %s", e.Operator)
	}
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	c.emitOp(op, line)
	return nil
}

func (c *Compiler) compileAssignExpression(e *ast.AssignExpression) error {
	line := e.Token.Line
	var op Opcode
	compound := e.Operator != "="
	if compound {
		var ok bool
		if op, ok = binaryOps[e.Operator]; !ok {
			return c.errorAt(e, UnsupportedConstruct, "unknown compound operator %s=", e.Operator)
		}
	}

	switch target := e.Target.(type) {
	case *ast.Identifier:
		if c.isConstName(target.Value) {
			return c.errorAt(target, ConstReassignment, "cannot assign to constant %s", target.Value)
		}
		if compound {
			if err := c.compileIdentifier(target); err != nil {
				return err
			}
		}
		if err := c.compileExpression(e.Value); err != nil {
			return err
		}
		if compound {
			c.emitOp(op, line)
		}
		if idx := c.resolveLocal(target.Value); idx != -1 {
			c.emit(OP_SET_LOCAL, c.locals[idx].Slot, 0, line)
			return nil
		}
		up, err := c.resolveUpvalue(target, target.Value)
		if err != nil {
			return err
		}
		if up != -1 {
			c.emit(OP_SET_UPVALUE, up, 0, line)
			return nil
		}
		c.emit(OP_SET_GLOBAL, c.nameConstant(target.Value), 0, line)
		return nil

	case *ast.MemberExpression:
		if target.IsOptional {
			return c.errorAt(target, InvalidAssignment, "cannot assign through ?.")
		}
		if err := c.compileExpression(target.Left); err != nil {
			return err
		}
		name := c.nameConstant(target.Member.Value)
		if compound {
			c.emit(OP_DUP, 0, 0, line)
			c.emit(OP_GET_PROPERTY, name, 0, line)
		}
		if err := c.compileExpression(e.Value); err != nil {
			return err
		}
		if compound {
			c.emitOp(op, line)
		}
		c.emit(OP_SET_PROPERTY, name, 0, line)
		return nil

	case *ast.IndexExpression:
		if err := c.compileExpression(target.Left); err != nil {
			return err
		}
		if err := c.compileExpression(target.Index); err != nil {
			return err
		}
		if compound {
			c.emit(OP_DUP, 1, 0, line)
			c.emit(OP_DUP, 1, 0, line)
			c.emitOp(OP_INDEX, line)
		}
		if err := c.compileExpression(e.Value); err != nil {
			return err
		}
		if compound {
			c.emitOp(op, line)
		}
		c.emitOp(OP_SET_INDEX, line)
		return nil
	}
	return c.errorAt(e, InvalidAssignment, "invalid assignment target")
}

func (c *Compiler) compileCallExpression(call *ast.CallExpression) error {
	line := call.Token.Line
	skip := -1
	switch fn := call.Function.(type) {
	case *ast.SuperExpression:
		name := "new"
		if fn.Method != nil {
			name = fn.Method.Value
		}
		if err := c.compileSuperAccess(fn, name); err != nil {
			return err
		}
	case *ast.MemberExpression:
		// a?.m() is null when a is null
		if err := c.compileExpression(fn.Left); err != nil {
			return err
		}
		if fn.IsOptional {
			skip = c.emitJump(OP_JUMP_IF_NULL, fn.Token.Line)
		}
		c.emit(OP_GET_PROPERTY, c.nameConstant(fn.Member.Value), 0, fn.Token.Line)
	default:
		if err := c.compileExpression(call.Function); err != nil {
			return err
		}
	}

	names, err := c.compileArguments(call.Arguments, call.Named)
	if err != nil {
		return err
	}
	c.emit(OP_CALL, len(call.Arguments), names, line)
	if skip >= 0 {
		c.patchJump(skip)
	}
	return nil
}

// compileArguments pushes positional then named argument values and returns
// the constant index of the name list, or -1.
func (c *Compiler) compileArguments(args []ast.Expression, named []*ast.NamedArgument) (int, error) {
	for _, arg := range args {
		if err := c.compileExpression(arg); err != nil {
			return -1, err
		}
	}
	if len(named) == 0 {
		return -1, nil
	}
	names := make([]string, len(named))
	seen := make(map[string]bool, len(named))
	for i, na := range named {
		if seen[na.Name.Value] {
			return -1, c.errorAt(na.Name, DuplicateDeclaration, "argument %s given twice", na.Name.Value)
		}
		seen[na.Name.Value] = true
		names[i] = na.Name.Value
		if err := c.compileExpression(na.Value); err != nil {
			return -1, err
		}
	}
	return c.namesConstant(names), nil
}

func (c *Compiler) compileNewExpression(e *ast.NewExpression) error {
	if err := c.compileExpression(e.Class); err != nil {
		return err
	}
	names, err := c.compileArguments(e.Arguments, e.Named)
	if err != nil {
		return err
	}
	c.emit(OP_NEW, len(e.Arguments), names, e.Token.Line)
	return nil
}

func (c *Compiler) compileArrayLiteral(lit *ast.ArrayLiteral) error {
	line := lit.Token.Line
	// Leading plain elements go into one ARRAY; the rest append one by one
	prefix := 0
	for prefix < len(lit.Elements) {
		if _, ok := lit.Elements[prefix].(*ast.SpreadExpression); ok {
			break
		}
		if err := c.compileExpression(lit.Elements[prefix]); err != nil {
			return err
		}
		prefix++
	}
	c.emit(OP_ARRAY, prefix, 0, line)

	for _, elem := range lit.Elements[prefix:] {
		if spread, ok := elem.(*ast.SpreadExpression); ok {
			if err := c.compileExpression(spread.Value); err != nil {
				return err
			}
			c.emitOp(OP_ARRAY_EXTEND, spread.Token.Line)
			continue
		}
		if err := c.compileExpression(elem); err != nil {
			return err
		}
		c.emitOp(OP_ARRAY_APPEND, line)
	}
	return nil
}

func (c *Compiler) compileMapLiteral(lit *ast.MapLiteral) error {
	line := lit.Token.Line
	prefix := 0
	for prefix < len(lit.Entries) && lit.Entries[prefix].Spread == nil {
		entry := lit.Entries[prefix]
		if err := c.compileExpression(entry.Key); err != nil {
			return err
		}
		if err := c.compileExpression(entry.Value); err != nil {
			return err
		}
		prefix++
	}
	c.emit(OP_MAP, prefix, 0, line)

	for _, entry := range lit.Entries[prefix:] {
		if entry.Spread != nil {
			if err := c.compileExpression(entry.Spread); err != nil {
				return err
			}
			c.emitOp(OP_MAP_MERGE, line)
			continue
		}
		if err := c.compileExpression(entry.Key); err != nil {
			return err
		}
		if err := c.compileExpression(entry.Value); err != nil {
			return err
		}
		c.emitOp(OP_MAP_INSERT, line)
	}
	return nil
}

// compileIfExpression leaves the value of the branch taken, null when the
// condition fails and there is no else.
func (c *Compiler) compileIfExpression(expr *ast.IfExpression) error {
	line := expr.Token.Line
	if err := c.compileExpression(expr.Condition); err != nil {
		return err
	}
	thenJump := c.emitJump(OP_JUMP_IF_FALSE, line)
	height := c.slotCount

	if err := c.compileBlockExpression(expr.Consequence); err != nil {
		return err
	}
	elseJump := c.emitJump(OP_JUMP, line)

	c.patchJump(thenJump)
	c.slotCount = height
	if expr.Alternative != nil {
		if err := c.compileExpression(expr.Alternative); err != nil {
			return err
		}
	} else {
		c.emitOp(OP_NULL, line)
	}
	c.patchJump(elseJump)
	c.slotCount = height + 1
	return nil
}
