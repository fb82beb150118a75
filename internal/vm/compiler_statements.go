package vm

import (
	"github.com/solisoft/soli/internal/ast"
)

// compileStatement compiles a statement. Statements leave the stack as they
// found it, except declarations of locals which leave the new local.
func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expression); err != nil {
			return err
		}
		c.emitOp(OP_POP, s.Token.Line)
		return nil

	case *ast.LetStatement:
		return c.compileLetStatement(s)

	case *ast.BlockStatement:
		return c.compileBlockStatement(s)

	case *ast.FunctionStatement:
		return c.compileFunctionStatement(s)

	case *ast.ClassStatement:
		return c.compileClassStatement(s)

	case *ast.ReturnStatement:
		return c.compileReturnStatement(s)

	case *ast.WhileStatement:
		return c.compileWhileStatement(s)

	case *ast.ForStatement:
		return c.compileForStatement(s)

	case *ast.BreakStatement:
		return c.compileBreakStatement(s)

	case *ast.ContinueStatement:
		return c.compileContinueStatement(s)

	case *ast.TryStatement:
		return c.compileTryStatement(s)

	case *ast.ThrowStatement:
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emitOp(OP_THROW, s.Token.Line)
		return nil

	case *ast.ImportStatement:
		return c.compileImportStatement(s)

	case nil:
		return &CompileError{Kind: UnsupportedConstruct, Message: "nil statement"}

	default:
		return c.errorAt(stmt, UnsupportedConstruct, "unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileLetStatement(s *ast.LetStatement) error {
	line := s.Token.Line
	if s.Value != nil {
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
	} else {
		c.emitOp(OP_NULL, line)
	}

	if c.isGlobalScope() {
		if err := c.declareGlobalName(s.Name.Value, s.Const, line, s.Token.Column); err != nil {
			return err
		}
		c.emit(OP_DEFINE_GLOBAL, c.nameConstant(s.Name.Value), boolOperand(s.Const), line)
		return nil
	}
	return c.addLocal(s.Name, s.Name.Value, s.Const)
}

func (c *Compiler) compileBlockStatement(block *ast.BlockStatement) error {
	c.beginScope()
	for _, stmt := range block.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	c.endScope(block.Token.Line)
	return nil
}

// compileBlockExpression compiles a block as a value: the value of its
// trailing expression statement, or null.
func (c *Compiler) compileBlockExpression(block *ast.BlockStatement) error {
	c.beginScope()
	n := len(block.Statements)
	for i, stmt := range block.Statements {
		if es, ok := stmt.(*ast.ExpressionStatement); ok && i == n-1 {
			if err := c.compileExpression(es.Expression); err != nil {
				return err
			}
			continue
		}
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
		if i == n-1 {
			c.emitOp(OP_NULL, stmt.GetToken().Line)
		}
	}
	if n == 0 {
		c.emitOp(OP_NULL, block.Token.Line)
	}

	// Drop the block's locals from under the result
	dropped := c.endScopeNoEmit()
	if dropped > 0 {
		c.emit(OP_CLOSE_SCOPE, dropped, 0, block.Token.Line)
	}
	return nil
}

func (c *Compiler) compileFunctionStatement(s *ast.FunctionStatement) error {
	line := s.Token.Line
	if c.isGlobalScope() {
		if err := c.compileFunction(s.Name.Value, s.Parameters, s.Body, TYPE_FUNCTION, s); err != nil {
			return err
		}
		c.emit(OP_DEFINE_GLOBAL, c.nameConstant(s.Name.Value), 0, line)
		return nil
	}
	if err := c.reserveLocal(s.Name, s.Name.Value); err != nil {
		return err
	}
	return c.compileFunction(s.Name.Value, s.Parameters, s.Body, TYPE_FUNCTION, s)
}

func (c *Compiler) compileReturnStatement(s *ast.ReturnStatement) error {
	if c.funcType == TYPE_SCRIPT {
		return c.errorAt(s, ReturnOutsideFunction, "return outside of a function")
	}
	line := s.Token.Line
	if s.Value != nil {
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
	} else {
		c.emitOp(OP_NULL, line)
	}
	c.emitOp(OP_RETURN, line)
	return nil
}

func (c *Compiler) compileImportStatement(s *ast.ImportStatement) error {
	names := -1
	if len(s.Symbols) > 0 {
		list := make([]string, len(s.Symbols))
		for i, sym := range s.Symbols {
			list[i] = sym.Value
			c.shared.globals[sym.Value] = true
		}
		names = c.namesConstant(list)
	}
	c.emit(OP_IMPORT, c.nameConstant(s.Path.Value), names, s.Token.Line)
	return nil
}

// compileFunction compiles a function body into a prototype and emits the
// CLOSURE instruction that materializes it.
func (c *Compiler) compileFunction(name string, params []*ast.Parameter, body *ast.BlockStatement, funcType FunctionType, node ast.Node) error {
	proto, upvalues, err := c.buildFunction(name, params, body, funcType, node)
	if err != nil {
		return err
	}
	proto.Upvalues = upvalues
	c.emit(OP_CLOSURE, c.currentChunk().AddConstant(ObjVal(proto)), 0, node.GetToken().Line)
	return nil
}

func (c *Compiler) buildFunction(name string, params []*ast.Parameter, body *ast.BlockStatement, funcType FunctionType, node ast.Node) (*FunctionProto, []UpvalueDesc, error) {
	fc := newFunctionCompiler(c, name, funcType)
	proto := fc.function
	proto.Arity = len(params)
	proto.RequiredArity = len(params)

	// Parameters already sit on the stack when the frame starts
	for i, p := range params {
		fc.slotCount++
		if err := fc.addLocal(p.Name, p.Name.Value, false); err != nil {
			return nil, nil, err
		}
		proto.ParamNames = append(proto.ParamNames, p.Name.Value)
		if p.Default != nil {
			if proto.RequiredArity == len(params) {
				proto.RequiredArity = i
			}
		} else if proto.RequiredArity != len(params) {
			return nil, nil, fc.errorAt(p.Name, UnsupportedConstruct, "parameter %s without a default follows a defaulted parameter", p.Name.Value)
		}
	}

	for _, p := range params[proto.RequiredArity:] {
		def, err := fc.buildExpressionFunction(name+"$"+p.Name.Value, p.Default, TYPE_FUNCTION)
		if err != nil {
			return nil, nil, err
		}
		proto.Defaults = append(proto.Defaults, def)
	}

	if err := fc.compileFunctionBody(body); err != nil {
		return nil, nil, err
	}
	return proto, fc.upvalues, nil
}

// buildExpressionFunction compiles a zero-parameter prototype returning the
// value of expr. Used for default parameter values and field initializers.
func (c *Compiler) buildExpressionFunction(name string, expr ast.Expression, funcType FunctionType) (*FunctionProto, error) {
	fc := newFunctionCompiler(c, name, funcType)
	if err := fc.compileExpression(expr); err != nil {
		return nil, err
	}
	fc.emitOp(OP_RETURN, expr.GetToken().Line)
	fc.function.Upvalues = fc.upvalues
	return fc.function, nil
}

// compileFunctionBody compiles the statements of a function. A trailing
// expression statement is the implicit return value.
func (c *Compiler) compileFunctionBody(body *ast.BlockStatement) error {
	n := len(body.Statements)
	line := body.Token.Line
	for i, stmt := range body.Statements {
		line = stmt.GetToken().Line
		if es, ok := stmt.(*ast.ExpressionStatement); ok && i == n-1 && c.funcType != TYPE_INITIALIZER {
			if err := c.compileExpression(es.Expression); err != nil {
				return err
			}
			c.emitOp(OP_RETURN, line)
			return nil
		}
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}
	c.emitOp(OP_NULL, line)
	c.emitOp(OP_RETURN, line)
	return nil
}

func boolOperand(b bool) int {
	if b {
		return 1
	}
	return 0
}
