package vm

import (
	"github.com/solisoft/soli/internal/ast"
)

// compileClassStatement emits
//
//	CLASS name; [super; INHERIT]; FIELD...; STATIC_FIELD...;
//	METHOD new; METHOD...; STATIC_METHOD...
//
// leaving the class on the stack, then binds it like a let.
func (c *Compiler) compileClassStatement(s *ast.ClassStatement) error {
	line := s.Token.Line
	name := s.Name.Value
	global := c.isGlobalScope()
	if !global {
		if err := c.reserveLocal(s.Name, name); err != nil {
			return err
		}
	}

	c.emit(OP_CLASS, c.nameConstant(name), 0, line)

	if s.SuperClass != nil {
		if s.SuperClass.Value == name {
			return c.errorAt(s.SuperClass, UnsupportedConstruct, "class %s cannot extend itself", name)
		}
		if err := c.compileIdentifier(s.SuperClass); err != nil {
			return err
		}
		c.emitOp(OP_INHERIT, line)
	}

	c.class = &classContext{name: name, hasSuper: s.SuperClass != nil, enclosing: c.class}
	defer func() { c.class = c.class.enclosing }()

	seen := make(map[string]bool)
	declare := func(node ast.Node, member string, static bool) error {
		key := member
		if static {
			key = "static " + member
		}
		if seen[key] {
			return c.errorAt(node, DuplicateDeclaration, "%s.%s is declared twice", name, member)
		}
		seen[key] = true
		return nil
	}

	for _, f := range s.Fields {
		fline := f.Token.Line
		if err := declare(f.Name, f.Name.Value, f.Static); err != nil {
			return err
		}
		if f.Static {
			if f.Value != nil {
				if err := c.compileExpression(f.Value); err != nil {
					return err
				}
			} else {
				c.emitOp(OP_NULL, fline)
			}
			c.emit(OP_STATIC_FIELD, c.nameConstant(f.Name.Value), boolOperand(f.Const), fline)
			continue
		}
		if f.Value != nil {
			init, err := c.buildExpressionFunction(name+"."+f.Name.Value, f.Value, TYPE_METHOD)
			if err != nil {
				return err
			}
			c.emit(OP_CLOSURE, c.currentChunk().AddConstant(ObjVal(init)), 0, fline)
		} else {
			c.emitOp(OP_NULL, fline)
		}
		c.emit(OP_FIELD, c.nameConstant(f.Name.Value), boolOperand(f.Const), fline)
	}

	if ctor := s.Constructor; ctor != nil {
		if err := c.compileFunction(name+".new", ctor.Parameters, ctor.Body, TYPE_INITIALIZER, ctor); err != nil {
			return err
		}
		c.emit(OP_METHOD, c.nameConstant("new"), 0, ctor.Token.Line)
	}

	for _, m := range s.Methods {
		if err := declare(m.Name, m.Name.Value, m.Static); err != nil {
			return err
		}
		if m.Static {
			// Static methods have no receiver
			saved := c.class
			c.class = &classContext{name: name, enclosing: saved.enclosing}
			err := c.compileFunction(name+"."+m.Name.Value, m.Parameters, m.Body, TYPE_FUNCTION, m)
			c.class = saved
			if err != nil {
				return err
			}
			c.emit(OP_STATIC_METHOD, c.nameConstant(m.Name.Value), 0, m.Token.Line)
			continue
		}
		if m.Name.Value == "new" {
			return c.errorAt(m.Name, DuplicateDeclaration, "%s.new must be declared as the constructor", name)
		}
		if err := c.compileFunction(name+"."+m.Name.Value, m.Parameters, m.Body, TYPE_METHOD, m); err != nil {
			return err
		}
		c.emit(OP_METHOD, c.nameConstant(m.Name.Value), 0, m.Token.Line)
	}

	if global {
		c.emit(OP_DEFINE_GLOBAL, c.nameConstant(name), 0, line)
	}
	return nil
}
