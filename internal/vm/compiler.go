package vm

import (
	"fmt"

	"github.com/solisoft/soli/internal/ast"
)

// maxLocals bounds locals and upvalues per function
const maxLocals = 256

// Local represents a local variable during compilation
type Local struct {
	Name       string
	Depth      int  // Scope depth where this local was declared
	Slot       int  // Stack slot relative to frame.base
	IsCaptured bool // True if captured by a nested function (needs to become upvalue)
	IsConst    bool
}

// FunctionType distinguishes top-level code from the several function shapes
type FunctionType int

const (
	TYPE_SCRIPT FunctionType = iota
	TYPE_FUNCTION
	TYPE_METHOD      // this in slot 0
	TYPE_INITIALIZER // constructor; this in slot 0, returns this
)

// LoopContext tracks loop information for break/continue
type LoopContext struct {
	loopStart  int   // Offset of loop start (for continue)
	breakJumps []int // Offsets of break jumps to patch
	slotCount  int   // Stack height when the loop body starts (before loop vars)
	tryDepth   int   // Protected regions open when the loop started
	isForIn    bool  // Break must drop the iterator
}

// tryContext is a region that break/continue must leave explicitly.
type tryContext struct {
	finally    *ast.BlockStatement // inlined on break/continue; nil for catch-only
	inFinally  bool                // the region is a finally body holding a completion
	slotCount  int
	localCount int
}

// classContext is the class whose body is being compiled
type classContext struct {
	name      string
	hasSuper  bool
	enclosing *classContext
}

// compileShared is state common to a compiler and all of its nested
// function compilers.
type compileShared struct {
	file         string
	globals      map[string]bool
	globalConsts map[string]bool
}

// Compiler compiles AST to bytecode
type Compiler struct {
	// Current function being compiled
	function *FunctionProto
	funcType FunctionType

	locals     []Local
	scopeDepth int // Current scope depth (0 = global for script, 1 = function body)
	slotCount  int // Current stack height relative to frame.base

	// Upvalues captured by this function
	upvalues []UpvalueDesc

	// Enclosing compiler (for nested functions)
	enclosing *Compiler

	// Loop context stack for break/continue
	loopStack []*LoopContext
	tryStack  []tryContext

	class  *classContext
	shared *compileShared

	// returnLast makes a trailing top-level expression the script's result
	returnLast bool
}

// NewCompiler creates a new compiler for top-level code
func NewCompiler() *Compiler {
	return &Compiler{
		function: &FunctionProto{
			Chunk: NewChunk(),
			Name:  "<script>",
		},
		funcType: TYPE_SCRIPT,
		shared: &compileShared{
			globals:      make(map[string]bool),
			globalConsts: make(map[string]bool),
		},
	}
}

// DeclareGlobal tells the compiler a global already exists (host builtins,
// earlier REPL lines), so redefinition checks and const checks see it.
func (c *Compiler) DeclareGlobal(name string, isConst bool) {
	c.shared.globals[name] = true
	if isConst {
		c.shared.globalConsts[name] = true
	}
}

func newFunctionCompiler(enclosing *Compiler, name string, funcType FunctionType) *Compiler {
	fc := &Compiler{
		function: &FunctionProto{
			Chunk:         NewChunk(),
			Name:          name,
			IsMethod:      funcType == TYPE_METHOD || funcType == TYPE_INITIALIZER,
			IsInitializer: funcType == TYPE_INITIALIZER,
		},
		funcType:   funcType,
		enclosing:  enclosing,
		scopeDepth: 1,
		class:      enclosing.class,
		shared:     enclosing.shared,
	}
	if fc.function.IsMethod {
		fc.locals = append(fc.locals, Local{Name: "this", Depth: 1, Slot: 0})
		fc.slotCount = 1
	}
	return fc
}

func (c *Compiler) currentChunk() *Chunk {
	return c.function.Chunk
}

// Compile compiles a whole program into a module whose main prototype runs
// the top-level statements. The first error aborts compilation.
func (c *Compiler) Compile(program *ast.Program) (*CompiledModule, error) {
	if program == nil {
		return nil, &CompileError{Kind: UnsupportedConstruct, Message: "nil program"}
	}
	c.shared.file = program.File

	// Predeclare top-level functions and classes so bodies may refer to ones
	// defined later in the file.
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.FunctionStatement:
			if err := c.declareGlobalName(s.Name.Value, false, s.Token.Line, s.Token.Column); err != nil {
				return nil, err
			}
		case *ast.ClassStatement:
			if err := c.declareGlobalName(s.Name.Value, false, s.Token.Line, s.Token.Column); err != nil {
				return nil, err
			}
		}
	}

	for i, stmt := range program.Statements {
		if es, ok := stmt.(*ast.ExpressionStatement); ok && c.returnLast && i == len(program.Statements)-1 {
			if err := c.compileExpression(es.Expression); err != nil {
				return nil, err
			}
			c.emitOp(OP_RETURN, es.Token.Line)
			return &CompiledModule{Main: c.function, File: program.File}, nil
		}
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}

	line := 0
	if n := len(program.Statements); n > 0 {
		line = program.Statements[n-1].GetToken().Line
	}
	c.emitOp(OP_NULL, line)
	c.emitOp(OP_RETURN, line)

	return &CompiledModule{Main: c.function, File: program.File}, nil
}

// ReturnLastExpression makes Run return the value of a trailing top-level
// expression statement instead of null. Used for eval-style hosts.
func (c *Compiler) ReturnLastExpression(on bool) {
	c.returnLast = on
}

// errorAt builds a compile error positioned at node
func (c *Compiler) errorAt(node ast.Node, kind CompileErrorKind, format string, args ...interface{}) error {
	tok := node.GetToken()
	return &CompileError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
	}
}

// declareGlobalName records a top-level definition
func (c *Compiler) declareGlobalName(name string, isConst bool, line, col int) error {
	if c.shared.globals[name] && c.shared.globalConsts[name] {
		return &CompileError{Kind: DuplicateDeclaration, Message: fmt.Sprintf("%s is already declared as a constant", name), Line: line, Column: col}
	}
	c.shared.globals[name] = true
	if isConst {
		c.shared.globalConsts[name] = true
	}
	return nil
}

// isGlobalScope reports whether declarations land in the global table
func (c *Compiler) isGlobalScope() bool {
	return c.funcType == TYPE_SCRIPT && c.scopeDepth == 0
}
