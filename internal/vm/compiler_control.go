package vm

import (
	"github.com/solisoft/soli/internal/ast"
)

// compileTryStatement lays out
//
//	TRY_BEGIN catch, finally
//	  body
//	TRY_END; [ENTER_FINALLY]; JUMP finally|end
//	catch:                        ; thrown value on the stack, bound as a local
//	  [TRY_BEGIN -, catchFinally] ; a throw inside catch still runs finally
//	  catch body
//	  [TRY_END]; pop param; [ENTER_FINALLY; JUMP finally] | JUMP end
//	catchFinally: pop param
//	finally:
//	  finally body
//	  END_FINALLY              ; resume the recorded completion
//	end:
func (c *Compiler) compileTryStatement(s *ast.TryStatement) error {
	line := s.Token.Line
	hasCatch := s.CatchBody != nil
	hasFinally := s.FinallyBody != nil
	if !hasCatch && !hasFinally {
		return c.errorAt(s, UnsupportedConstruct, "try needs a catch or a finally")
	}

	height := c.slotCount
	tryBegin := c.emit(OP_TRY_BEGIN, -1, -1, line)
	c.tryStack = append(c.tryStack, tryContext{finally: s.FinallyBody, slotCount: height, localCount: len(c.locals)})
	if err := c.compileBlockStatement(s.Body); err != nil {
		return err
	}
	c.tryStack = c.tryStack[:len(c.tryStack)-1]
	c.emitOp(OP_TRY_END, line)

	if !hasCatch {
		c.emitOp(OP_ENTER_FINALLY, line)
		c.currentChunk().PatchTry(tryBegin, false)
		return c.compileFinallyBody(s.FinallyBody, height)
	}

	var toFinally []int
	var toEnd int
	if hasFinally {
		c.emitOp(OP_ENTER_FINALLY, line)
		toFinally = append(toFinally, c.emitJump(OP_JUMP, line))
	} else {
		toEnd = c.emitJump(OP_JUMP, line)
	}

	// catch: the unwinder pushed the thrown value
	c.currentChunk().PatchTry(tryBegin, true)
	catchLine := s.CatchBody.Token.Line
	c.slotCount = height + 1
	c.beginScope()
	var node ast.Node = s.CatchBody
	name := ""
	if s.CatchParam != nil {
		node, name = s.CatchParam, s.CatchParam.Value
	}
	if err := c.addLocal(node, name, false); err != nil {
		return err
	}
	param := len(c.locals) - 1

	innerBegin := -1
	if hasFinally {
		innerBegin = c.emit(OP_TRY_BEGIN, -1, -1, catchLine)
		c.tryStack = append(c.tryStack, tryContext{finally: s.FinallyBody, slotCount: height + 1, localCount: len(c.locals)})
	}
	if err := c.compileBlockStatement(s.CatchBody); err != nil {
		return err
	}
	if hasFinally {
		c.tryStack = c.tryStack[:len(c.tryStack)-1]
		c.emitOp(OP_TRY_END, catchLine)
	}
	paramCaptured := c.locals[param].IsCaptured
	c.endScope(catchLine)

	if !hasFinally {
		c.patchJump(toEnd)
		return nil
	}
	c.emitOp(OP_ENTER_FINALLY, catchLine)
	toFinally = append(toFinally, c.emitJump(OP_JUMP, catchLine))

	// A throw or return inside the catch body lands here with the param
	// still on the stack.
	c.currentChunk().PatchTry(innerBegin, false)
	c.slotCount = height + 1
	if paramCaptured {
		c.emitOp(OP_CLOSE_UPVALUE, catchLine)
	} else {
		c.emitOp(OP_POP, catchLine)
	}

	for _, j := range toFinally {
		c.patchJump(j)
	}
	// A return from the try body runs the finally too
	c.currentChunk().PatchTry(tryBegin, false)
	return c.compileFinallyBody(s.FinallyBody, height)
}

// compileFinallyBody compiles the shared finally block that ends by
// resuming the recorded completion.
func (c *Compiler) compileFinallyBody(body *ast.BlockStatement, height int) error {
	c.slotCount = height
	c.tryStack = append(c.tryStack, tryContext{inFinally: true, slotCount: height, localCount: len(c.locals)})
	if err := c.compileBlockStatement(body); err != nil {
		return err
	}
	c.tryStack = c.tryStack[:len(c.tryStack)-1]
	c.emitOp(OP_END_FINALLY, body.Token.Line)
	return nil
}

// compileMatchExpression tests arms in order against a hidden subject local.
//
//	subject
//	arm:   test patterns -> matched | JUMP next
//	matched: [bind] [guard; JUMP_IF_FALSE fail] body; [CLOSE_SCOPE]; JUMP end
//	fail:  [pop bind]
//	next:  ...
//	MATCH_FAIL
//	end:   CLOSE_SCOPE 1
func (c *Compiler) compileMatchExpression(expr *ast.MatchExpression) error {
	line := expr.Token.Line
	if err := c.compileExpression(expr.Subject); err != nil {
		return err
	}
	c.beginScope()
	if err := c.addLocal(expr, "$subject", false); err != nil {
		return err
	}
	subject := c.locals[len(c.locals)-1].Slot
	height := c.slotCount

	var endJumps []int
	for _, arm := range expr.Arms {
		armLine := arm.Token.Line
		var matched []int
		var binding *ast.Identifier
		next := -1

		for _, pat := range arm.Patterns {
			switch p := pat.(type) {
			case *ast.WildcardPattern:
				matched = append(matched, c.emitJump(OP_JUMP, armLine))
			case *ast.IdentifierPattern:
				binding = p.Name
				matched = append(matched, c.emitJump(OP_JUMP, armLine))
			case *ast.LiteralPattern:
				c.emit(OP_GET_LOCAL, subject, 0, armLine)
				if err := c.compileExpression(p.Value); err != nil {
					return err
				}
				c.emitOp(OP_EQ, armLine)
				matched = append(matched, c.emitJump(OP_JUMP_IF_TRUE, armLine))
			case *ast.RangePattern:
				c.emit(OP_GET_LOCAL, subject, 0, armLine)
				if err := c.compileExpression(p.Start); err != nil {
					return err
				}
				c.emitOp(OP_GE, armLine)
				below := c.emitJump(OP_JUMP_IF_FALSE, armLine)
				c.emit(OP_GET_LOCAL, subject, 0, armLine)
				if err := c.compileExpression(p.End); err != nil {
					return err
				}
				if p.Inclusive {
					c.emitOp(OP_LE, armLine)
				} else {
					c.emitOp(OP_LT, armLine)
				}
				matched = append(matched, c.emitJump(OP_JUMP_IF_TRUE, armLine))
				c.patchJump(below)
			default:
				return c.errorAt(pat, UnsupportedConstruct, "unsupported pattern %T", pat)
			}
		}
		next = c.emitJump(OP_JUMP, armLine)

		for _, j := range matched {
			c.patchJump(j)
		}
		c.beginScope()
		if binding != nil {
			c.emit(OP_GET_LOCAL, subject, 0, armLine)
			if err := c.addLocal(binding, binding.Value, false); err != nil {
				return err
			}
		}
		guardFail := -1
		if arm.Guard != nil {
			if err := c.compileExpression(arm.Guard); err != nil {
				return err
			}
			guardFail = c.emitJump(OP_JUMP_IF_FALSE, armLine)
		}
		if err := c.compileExpression(arm.Body); err != nil {
			return err
		}
		bindCaptured := binding != nil && c.locals[len(c.locals)-1].IsCaptured
		if dropped := c.endScopeNoEmit(); dropped > 0 {
			c.emit(OP_CLOSE_SCOPE, dropped, 0, armLine)
		}
		endJumps = append(endJumps, c.emitJump(OP_JUMP, armLine))

		if guardFail >= 0 {
			c.patchJump(guardFail)
			if binding != nil {
				c.slotCount = height + 1
				if bindCaptured {
					c.emitOp(OP_CLOSE_UPVALUE, armLine)
				} else {
					c.emitOp(OP_POP, armLine)
				}
			}
		}
		c.patchJump(next)
		c.slotCount = height
	}

	c.emit(OP_GET_LOCAL, subject, 0, line)
	c.emitOp(OP_MATCH_FAIL, line)

	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.slotCount = height + 1
	c.endScopeNoEmit()
	c.emit(OP_CLOSE_SCOPE, 1, 0, line)
	return nil
}
