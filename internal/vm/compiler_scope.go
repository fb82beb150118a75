package vm

import (
	"github.com/solisoft/soli/internal/ast"
)

// beginScope starts a new scope
func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope ends the current scope and emits cleanup code
func (c *Compiler) endScope(line int) {
	c.scopeDepth--

	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].IsCaptured {
			c.emitOp(OP_CLOSE_UPVALUE, line)
		} else {
			c.emitOp(OP_POP, line)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// endScopeNoEmit closes scope without emitting POP instructions.
// Returns how many locals left scope.
func (c *Compiler) endScopeNoEmit() int {
	c.scopeDepth--
	n := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
		n++
	}
	return n
}

// addLocal turns the value on top of the stack into a named local.
// Hidden names (empty or starting with '$') skip the duplicate check.
func (c *Compiler) addLocal(node ast.Node, name string, isConst bool) error {
	if len(c.locals) >= maxLocals {
		return c.errorAt(node, TooManyLocals, "too many local variables in function")
	}
	if name != "" && name[0] != '$' {
		for i := len(c.locals) - 1; i >= 0; i-- {
			if c.locals[i].Depth < c.scopeDepth {
				break
			}
			if c.locals[i].Name == name {
				return c.errorAt(node, DuplicateDeclaration, "%s is already declared in this scope", name)
			}
		}
	}
	c.locals = append(c.locals, Local{
		Name:    name,
		Depth:   c.scopeDepth,
		Slot:    c.slotCount - 1,
		IsConst: isConst,
	})
	return nil
}

// reserveLocal declares a local for the slot the next push will occupy, so a
// function or class can refer to its own name while it is being built.
func (c *Compiler) reserveLocal(node ast.Node, name string) error {
	c.slotCount++
	err := c.addLocal(node, name, false)
	c.slotCount--
	return err
}

// resolveLocal looks up a local variable by name and returns its index
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return i
		}
	}
	return -1
}

// resolveUpvalue looks for a variable in enclosing scopes
func (c *Compiler) resolveUpvalue(node ast.Node, name string) (int, error) {
	if c.enclosing == nil {
		return -1, nil
	}

	if idx := c.enclosing.resolveLocal(name); idx != -1 {
		c.enclosing.locals[idx].IsCaptured = true
		return c.addUpvalue(node, c.enclosing.locals[idx].Slot, true)
	}

	up, err := c.enclosing.resolveUpvalue(node, name)
	if err != nil || up == -1 {
		return -1, err
	}
	return c.addUpvalue(node, up, false)
}

// addUpvalue adds an upvalue to this function's upvalue list
func (c *Compiler) addUpvalue(node ast.Node, index int, isLocal bool) (int, error) {
	for i, uv := range c.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i, nil
		}
	}
	if len(c.upvalues) >= maxLocals {
		return -1, c.errorAt(node, TooManyLocals, "too many closure variables in function")
	}
	c.upvalues = append(c.upvalues, UpvalueDesc{Index: index, IsLocal: isLocal})
	return len(c.upvalues) - 1, nil
}

// isConstName reports whether name resolves to a constant binding
func (c *Compiler) isConstName(name string) bool {
	for fc := c; fc != nil; fc = fc.enclosing {
		if idx := fc.resolveLocal(name); idx != -1 {
			return fc.locals[idx].IsConst
		}
	}
	return c.shared.globalConsts[name]
}

// popTo emits cleanup for every slot above height, closing captured
// locals. Used by jumps that leave scopes early.
func (c *Compiler) popTo(height int, line int) {
	for c.slotCount > height {
		slot := c.slotCount - 1
		captured := false
		for i := len(c.locals) - 1; i >= 0; i-- {
			if c.locals[i].Slot == slot {
				captured = c.locals[i].IsCaptured
				break
			}
		}
		if captured {
			c.emitOp(OP_CLOSE_UPVALUE, line)
		} else {
			c.emitOp(OP_POP, line)
		}
	}
}

// emit helpers

func (c *Compiler) emit(op Opcode, a, b int, line int) int {
	offset := c.currentChunk().Emit(Instruction{Op: op, A: int32(a), B: int32(b)}, line)
	c.slotCount += c.stackEffect(op, a, b)
	return offset
}

func (c *Compiler) emitOp(op Opcode, line int) int {
	return c.emit(op, 0, 0, line)
}

func (c *Compiler) emitConstant(value Value, line int) {
	c.emit(OP_CONST, c.currentChunk().AddConstant(value), 0, line)
}

func (c *Compiler) nameConstant(name string) int {
	return c.currentChunk().AddConstant(StringVal(name))
}

// namesConstant stores a list of names (named arguments, import symbols)
func (c *Compiler) namesConstant(names []string) int {
	elems := make([]Value, len(names))
	for i, n := range names {
		elems[i] = StringVal(n)
	}
	return c.currentChunk().AddConstant(ObjVal(NewArray(elems)))
}

func (c *Compiler) emitJump(op Opcode, line int) int {
	return c.emit(op, -1, 0, line)
}

func (c *Compiler) patchJump(offset int) {
	c.currentChunk().PatchJump(offset)
}

// emitLoop emits a backward jump to loopStart
func (c *Compiler) emitLoop(loopStart int, line int) {
	c.emit(OP_LOOP, c.currentChunk().Len()+1-loopStart, 0, line)
}

// stackEffect is the net change in stack height of one instruction on its
// fall-through path.
func (c *Compiler) stackEffect(op Opcode, a, b int) int {
	switch op {
	case OP_CONST, OP_NULL, OP_TRUE, OP_FALSE, OP_DUP,
		OP_GET_LOCAL, OP_GET_GLOBAL, OP_GET_UPVALUE, OP_CLOSURE, OP_CLASS:
		return 1
	case OP_POP, OP_DEFINE_GLOBAL, OP_CLOSE_UPVALUE, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE,
		OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD,
		OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE,
		OP_RETURN, OP_ARRAY_APPEND, OP_ARRAY_EXTEND, OP_MAP_MERGE, OP_INDEX, OP_RANGE,
		OP_SET_PROPERTY, OP_INHERIT, OP_METHOD, OP_STATIC_METHOD, OP_FIELD, OP_STATIC_FIELD,
		OP_THROW, OP_GET_ITER, OP_MATCH_FAIL:
		return -1
	case OP_MAP_INSERT, OP_SET_INDEX:
		return -2
	case OP_CLOSE_SCOPE:
		return -a
	case OP_ARRAY, OP_INTERPOLATE:
		return 1 - a
	case OP_MAP:
		return 1 - 2*a
	case OP_CALL, OP_NEW:
		return -(a + c.namesLen(b))
	case OP_FOR_ITER:
		if b == 1 {
			return 2
		}
		return 1
	}
	return 0
}

func (c *Compiler) namesLen(idx int) int {
	if idx < 0 {
		return 0
	}
	if arr := c.currentChunk().Constants[idx].AsArray(); arr != nil {
		return len(arr.Elements)
	}
	return 0
}
