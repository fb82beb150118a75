package vm

import (
	"github.com/solisoft/soli/internal/ast"
)

func (c *Compiler) pushLoop(start int, forIn bool) *LoopContext {
	loop := &LoopContext{
		loopStart: start,
		slotCount: c.slotCount,
		tryDepth:  len(c.tryStack),
		isForIn:   forIn,
	}
	c.loopStack = append(c.loopStack, loop)
	return loop
}

func (c *Compiler) popLoop() {
	loop := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
}

// compileWhileStatement compiles
//
//	start: cond; JUMP_IF_FALSE exit; body; LOOP start; exit:
func (c *Compiler) compileWhileStatement(s *ast.WhileStatement) error {
	line := s.Token.Line
	loopStart := c.currentChunk().Len()
	if err := c.compileExpression(s.Condition); err != nil {
		return err
	}
	exitJump := c.emitJump(OP_JUMP_IF_FALSE, line)

	c.pushLoop(loopStart, false)
	if err := c.compileBlockStatement(s.Body); err != nil {
		return err
	}
	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	c.popLoop()
	return nil
}

// compileForStatement compiles a for-in loop over the iterator stack
//
//	iterable; GET_ITER; start: FOR_ITER exit; vars; body; LOOP start; exit:
func (c *Compiler) compileForStatement(s *ast.ForStatement) error {
	line := s.Token.Line
	if err := c.compileExpression(s.Iterable); err != nil {
		return err
	}
	c.emitOp(OP_GET_ITER, line)

	loopStart := c.currentChunk().Len()
	loop := c.pushLoop(loopStart, true)
	pair := s.Key != nil
	exitJump := c.emit(OP_FOR_ITER, -1, boolOperand(pair), line)

	// Fresh bindings each iteration, so closures capture per-iteration values
	c.beginScope()
	if pair {
		c.slotCount--
		if err := c.addLocal(s.Key, s.Key.Value, false); err != nil {
			return err
		}
		c.slotCount++
	}
	if err := c.addLocal(s.Value, s.Value.Value, false); err != nil {
		return err
	}
	if err := c.compileBlockStatement(s.Body); err != nil {
		return err
	}
	c.endScope(line)

	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	c.slotCount = loop.slotCount
	c.popLoop()
	return nil
}

// leaveProtected unwinds the try regions opened since depth, innermost
// first: pops the region's slots, ends its handler and inlines its finally.
func (c *Compiler) leaveProtected(depth int, line int) error {
	for i := len(c.tryStack) - 1; i >= depth; i-- {
		tc := c.tryStack[i]
		c.popTo(tc.slotCount, line)
		if tc.inFinally {
			c.emit(OP_END_FINALLY, 1, 0, line)
			continue
		}
		c.emitOp(OP_TRY_END, line)
		if tc.finally == nil {
			continue
		}

		// The finally body sees only what was in scope at the try
		savedTries := c.tryStack
		savedLocals := c.locals
		c.tryStack = savedTries[:i]
		c.locals = append([]Local(nil), savedLocals[:tc.localCount]...)
		err := c.compileBlockStatement(tc.finally)
		for j := 0; j < tc.localCount; j++ {
			if c.locals[j].IsCaptured {
				savedLocals[j].IsCaptured = true
			}
		}
		c.tryStack = savedTries
		c.locals = savedLocals
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileBreakStatement(s *ast.BreakStatement) error {
	if len(c.loopStack) == 0 {
		return c.errorAt(s, LoopControlOutsideLoop, "break outside of a loop")
	}
	loop := c.loopStack[len(c.loopStack)-1]
	line := s.Token.Line
	height := c.slotCount

	if err := c.leaveProtected(loop.tryDepth, line); err != nil {
		return err
	}
	c.popTo(loop.slotCount, line)
	if loop.isForIn {
		c.emitOp(OP_POP_ITER, line)
	}
	loop.breakJumps = append(loop.breakJumps, c.emitJump(OP_JUMP, line))
	c.slotCount = height
	return nil
}

func (c *Compiler) compileContinueStatement(s *ast.ContinueStatement) error {
	if len(c.loopStack) == 0 {
		return c.errorAt(s, LoopControlOutsideLoop, "continue outside of a loop")
	}
	loop := c.loopStack[len(c.loopStack)-1]
	line := s.Token.Line
	height := c.slotCount

	if err := c.leaveProtected(loop.tryDepth, line); err != nil {
		return err
	}
	c.popTo(loop.slotCount, line)
	c.emitLoop(loop.loopStart, line)
	c.slotCount = height
	return nil
}

// compileComprehension builds the shared skeleton of list and map
// comprehensions: a hidden accumulator local filled by an inlined for-in.
func (c *Compiler) compileComprehension(node ast.Node, variable *ast.Identifier, iterable, cond ast.Expression, emptyOp Opcode, body func() error) error {
	line := node.GetToken().Line
	c.emit(emptyOp, 0, 0, line)
	c.beginScope()
	if err := c.addLocal(node, "$acc", false); err != nil {
		return err
	}
	acc := c.locals[len(c.locals)-1].Slot

	if err := c.compileExpression(iterable); err != nil {
		return err
	}
	c.emitOp(OP_GET_ITER, line)
	loopStart := c.currentChunk().Len()
	height := c.slotCount
	exitJump := c.emit(OP_FOR_ITER, -1, 0, line)

	c.beginScope()
	if err := c.addLocal(variable, variable.Value, false); err != nil {
		return err
	}
	skip := -1
	if cond != nil {
		if err := c.compileExpression(cond); err != nil {
			return err
		}
		skip = c.emitJump(OP_JUMP_IF_FALSE, line)
	}
	c.emit(OP_GET_LOCAL, acc, 0, line)
	if err := body(); err != nil {
		return err
	}
	c.emitOp(OP_POP, line)
	if skip >= 0 {
		c.patchJump(skip)
	}
	c.endScope(line)
	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	c.slotCount = height

	// The accumulator stays behind as the value
	c.endScopeNoEmit()
	return nil
}

func (c *Compiler) compileListComprehension(e *ast.ListComprehension) error {
	return c.compileComprehension(e, e.Variable, e.Iterable, e.Condition, OP_ARRAY, func() error {
		if err := c.compileExpression(e.Element); err != nil {
			return err
		}
		c.emitOp(OP_ARRAY_APPEND, e.Token.Line)
		return nil
	})
}

func (c *Compiler) compileMapComprehension(e *ast.MapComprehension) error {
	return c.compileComprehension(e, e.Variable, e.Iterable, e.Condition, OP_MAP, func() error {
		if err := c.compileExpression(e.Key); err != nil {
			return err
		}
		if err := c.compileExpression(e.Value); err != nil {
			return err
		}
		c.emitOp(OP_MAP_INSERT, e.Token.Line)
		return nil
	})
}
