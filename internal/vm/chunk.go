package vm

import (
	"fmt"
	"math"
)

// BytecodeVersion identifies the instruction set and module encoding.
// Bump it whenever either changes so cached modules are recompiled.
const BytecodeVersion = "soli-bc-3"

// Instruction is a single fixed-shape VM operation.
type Instruction struct {
	Op Opcode
	A  int32
	B  int32
}

// Chunk represents a sequence of bytecode instructions
type Chunk struct {
	// Code is the bytecode instructions
	Code []Instruction

	// Constants pool - literals, names, prototypes
	Constants []Value

	// Lines maps instruction offset to source line number (for errors)
	Lines []int

	// constant deduplication for literal values
	index map[constKey]int
}

type constKey struct {
	typ  ValueType
	data uint64
	str  string
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]Instruction, 0, 64),
		Constants: make([]Value, 0, 16),
		Lines:     make([]int, 0, 64),
	}
}

// Emit appends an instruction with line info and returns its offset
func (c *Chunk) Emit(ins Instruction, line int) int {
	c.Code = append(c.Code, ins)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// AddConstant adds a constant to the pool and returns its index.
// Null, boolean, numeric and string literals are shared; objects never are.
func (c *Chunk) AddConstant(v Value) int {
	if v.Type == ValObj {
		c.Constants = append(c.Constants, v)
		return len(c.Constants) - 1
	}
	key := constKey{typ: v.Type, data: v.Data, str: v.Str}
	if v.Type == ValFloat && math.IsNaN(v.AsFloat()) {
		c.Constants = append(c.Constants, v)
		return len(c.Constants) - 1
	}
	if c.index == nil {
		c.index = make(map[constKey]int)
	}
	if i, ok := c.index[key]; ok {
		return i
	}
	c.Constants = append(c.Constants, v)
	c.index[key] = len(c.Constants) - 1
	return len(c.Constants) - 1
}

// PatchJump points the jump at offset to the next instruction to be emitted.
func (c *Chunk) PatchJump(offset int) {
	op := c.Code[offset].Op
	if !op.IsJump() || op == OP_LOOP || op == OP_TRY_BEGIN {
		panic(fmt.Sprintf("PatchJump: instruction %d is %s, not a forward jump", offset, op))
	}
	c.Code[offset].A = int32(len(c.Code) - offset - 1)
}

// PatchTry points the catch (or finally) target of the TRY_BEGIN at offset
// to the next instruction to be emitted.
func (c *Chunk) PatchTry(offset int, catch bool) {
	if c.Code[offset].Op != OP_TRY_BEGIN {
		panic(fmt.Sprintf("PatchTry: instruction %d is %s, not TRY_BEGIN", offset, c.Code[offset].Op))
	}
	rel := int32(len(c.Code) - offset - 1)
	if catch {
		c.Code[offset].A = rel
	} else {
		c.Code[offset].B = rel
	}
}

// Len returns the number of instructions in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Line returns the source line for the instruction at offset
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// CompiledModule is the result of compiling a program.
type CompiledModule struct {
	Main *FunctionProto
	File string
}
