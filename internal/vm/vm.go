package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Initial sizes for stack and frames
const InitialStackSize = 256

// DefaultMaxFrames bounds call depth when no option overrides it
const DefaultMaxFrames = 1024

// Maximum operand stack size to prevent OOM
const MaxStackSize = 1024 * 1024 // 1M elements

// instructions between context checks
const checkInterval = 1024

// CallFrame represents a single ongoing function call
type CallFrame struct {
	closure     *Closure // The closure being executed
	ip          int      // Instruction pointer within this frame's chunk
	base        int      // Absolute stack index of slot 0
	retSlot     int      // Where the result goes; the callee's slot
	iterBase    int      // Iterator stack height at entry
	complBase   int      // Completion stack height at entry
	initializer bool     // Constructor frame: returns this
}

// ModuleResolver loads the module an import statement names.
type ModuleResolver interface {
	Resolve(path string) (*CompiledModule, error)
}

// ModuleResolverFunc adapts a function to ModuleResolver.
type ModuleResolverFunc func(path string) (*CompiledModule, error)

func (f ModuleResolverFunc) Resolve(path string) (*CompiledModule, error) { return f(path) }

// VM is the virtual machine that executes bytecode.
// A VM runs one call stack at a time and is not safe for concurrent use.
type VM struct {
	stack []Value
	sp    int // Stack pointer (points to next free slot)

	frames     []CallFrame
	frameCount int

	// Current frame (for convenience)
	frame *CallFrame

	globals *Globals

	// Linked list of open upvalues, sorted by stack location (highest first)
	openUpvalues *Upvalue

	handlers    []handler
	completions []completion
	iterators   []iterator

	maxFrames int
	out       io.Writer
	output    []string
	logger    zerolog.Logger
	resolver  ModuleResolver
	imported  map[string]bool
	file      string

	// Context for cancellation
	ctx context.Context
}

// Option configures a VM.
type Option func(*VM)

// WithOutput sets where print writes (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithMaxFrames bounds the call depth.
func WithMaxFrames(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxFrames = n
		}
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(vm *VM) { vm.logger = l }
}

// WithModuleResolver enables import statements.
func WithModuleResolver(r ModuleResolver) Option {
	return func(vm *VM) { vm.resolver = r }
}

// WithGlobals seeds the global table.
func WithGlobals(g *Globals) Option {
	return func(vm *VM) { vm.globals = g }
}

// WithContext makes the dispatch loop stop when ctx is done.
func WithContext(ctx context.Context) Option {
	return func(vm *VM) { vm.ctx = ctx }
}

// New creates a new VM instance
func New(opts ...Option) *VM {
	vm := &VM{
		stack:     make([]Value, InitialStackSize),
		maxFrames: DefaultMaxFrames,
		out:       os.Stdout,
		logger:    zerolog.Nop(),
		imported:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.globals == nil {
		vm.globals = NewGlobals()
		RegisterBuiltins(vm.globals)
	}
	vm.frames = make([]CallFrame, vm.maxFrames)
	return vm
}

// SetOutput sets the output writer for the VM
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetContext sets the context for cancellation
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// Run executes a compiled module's top-level code.
func (vm *VM) Run(mod *CompiledModule) (Value, error) {
	vm.file = mod.File
	return vm.Execute(mod.Main, nil)
}

// Execute runs proto as the top-level script against globals (the VM's
// own table when nil) and returns its result.
func (vm *VM) Execute(proto *FunctionProto, globals *Globals) (result Value, err error) {
	if globals != nil {
		vm.globals = globals
	}
	vm.reset()

	log := vm.logger.With().Str("file", formatFilePath(vm.file)).Logger()
	log.Debug().Str("fn", proto.Name).Msg("vm run start")
	defer func() {
		if err != nil {
			log.Debug().Err(err).Msg("vm run failed")
			return
		}
		log.Debug().Int("output_lines", len(vm.output)).Msg("vm run done")
	}()
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(error)
			if !ok || !(errors.Is(fault, errStackUnderflow) || KindOf(fault) == StackOverflow) {
				panic(r)
			}
			result, err = NullVal(), fault
		}
	}()

	closure := &Closure{Proto: proto}
	vm.push(ObjVal(closure))
	if err := vm.pushFrame(closure, 0, 1); err != nil {
		return NullVal(), err
	}
	result, err = vm.run(0)
	if err != nil {
		return NullVal(), vm.finalizeError(err)
	}
	return result, nil
}

func (vm *VM) reset() {
	for i := 0; i < vm.sp; i++ {
		vm.stack[i] = Value{}
	}
	vm.sp = 0
	vm.frameCount = 0
	vm.frame = nil
	vm.openUpvalues = nil
	vm.handlers = vm.handlers[:0]
	vm.completions = vm.completions[:0]
	vm.iterators = vm.iterators[:0]
}

func (vm *VM) pushFrame(closure *Closure, retSlot, base int) error {
	if vm.frameCount >= vm.maxFrames {
		return raise(StackOverflow, "stack overflow: more than %d nested calls", vm.maxFrames)
	}
	vm.frames[vm.frameCount] = CallFrame{
		closure:     closure,
		base:        base,
		retSlot:     retSlot,
		iterBase:    len(vm.iterators),
		complBase:   len(vm.completions),
		initializer: closure.Proto.IsInitializer,
	}
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

// run executes until the frame stack drops back to stopDepth. Nested runs
// (stopDepth > 0) serve synchronous calls made from Go.
func (vm *VM) run(stopDepth int) (Value, error) {
	ops := 0
	for {
		if vm.ctx != nil {
			ops++
			if ops >= checkInterval {
				ops = 0
				if err := vm.ctx.Err(); err != nil {
					return NullVal(), vm.position(raise(Cancelled, "execution cancelled: %v", err))
				}
			}
		}

		frame := vm.frame
		ins := frame.closure.Proto.Chunk.Code[frame.ip]
		frame.ip++

		var err error
		switch ins.Op {
		case OP_RETURN:
			if done, v := vm.returnFrom(vm.pop(), stopDepth); done {
				return v, nil
			}
			continue

		case OP_END_FINALLY:
			if len(vm.completions) <= frame.complBase {
				return NullVal(), errNoHandler
			}
			c := vm.completions[len(vm.completions)-1]
			vm.completions = vm.completions[:len(vm.completions)-1]
			if ins.A == 1 {
				// Leaving the finally body through break/continue
				continue
			}
			switch c.kind {
			case completionThrow:
				err = c.err
			case completionReturn:
				if done, v := vm.returnFrom(c.value, stopDepth); done {
					return v, nil
				}
			}

		default:
			err = vm.executeOneOp(ins)
		}

		if err != nil {
			err = vm.position(err)
			if vm.handleError(err, stopDepth) {
				continue
			}
			return NullVal(), err
		}
	}
}

// returnFrom finishes the running frame with result, detouring through
// any finally blocks the frame still has open. It reports done when the
// frame stack reaches stopDepth.
func (vm *VM) returnFrom(result Value, stopDepth int) (bool, Value) {
	frame := vm.frame
	for len(vm.handlers) > 0 {
		h := vm.handlers[len(vm.handlers)-1]
		if h.frameDepth != vm.frameCount {
			break
		}
		vm.handlers = vm.handlers[:len(vm.handlers)-1]
		if h.finallyIP >= 0 {
			vm.unwindTo(h)
			vm.completions = append(vm.completions, completion{kind: completionReturn, value: result})
			frame.ip = h.finallyIP
			return false, Value{}
		}
	}

	if frame.initializer {
		result = vm.stack[frame.base]
	}
	vm.closeUpvalues(frame.base)
	vm.iterators = vm.iterators[:frame.iterBase]
	vm.completions = vm.completions[:frame.complBase]
	for i := frame.retSlot; i < vm.sp; i++ {
		vm.stack[i] = Value{}
	}
	vm.sp = frame.retSlot
	vm.frameCount--

	if vm.frameCount == stopDepth {
		if vm.frameCount > 0 {
			vm.frame = &vm.frames[vm.frameCount-1]
		} else {
			vm.frame = nil
		}
		return true, result
	}
	vm.frame = &vm.frames[vm.frameCount-1]
	vm.push(result)
	return false, Value{}
}

// Stack operations
func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		if vm.sp >= MaxStackSize {
			panic(raise(StackOverflow, "value stack exceeded %d slots", MaxStackSize))
		}
		newStack := make([]Value, len(vm.stack)*2)
		copy(newStack, vm.stack[:vm.sp])
		vm.stack = newStack
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp <= 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Value{}
	return v
}

func (vm *VM) peek(distance int) Value {
	idx := vm.sp - 1 - distance
	if idx < 0 {
		panic(errStackUnderflow)
	}
	return vm.stack[idx]
}

// currentLine is the source line of the instruction being executed
func (vm *VM) currentLine() int {
	if vm.frame == nil {
		return 0
	}
	return vm.frame.closure.Proto.Chunk.Line(vm.frame.ip - 1)
}

// position fills in the line and stack trace of a runtime error
func (vm *VM) position(err error) error {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return err
	}
	if re.Line == 0 {
		re.Line = vm.currentLine()
	}
	if re.Trace == nil {
		re.Trace = vm.stackTrace()
	}
	return re
}

// stackTrace walks the frames innermost first
func (vm *VM) stackTrace() []string {
	file := formatFilePath(vm.file)
	if file == "" {
		file = "<script>"
	}
	trace := make([]string, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		line := f.closure.Proto.Chunk.Line(f.ip - 1)
		trace = append(trace, fmt.Sprintf("at %s (%s:%d)", f.closure.Proto.Name, file, line))
	}
	return trace
}

// formatFilePath formats a file path for display in stack traces
func formatFilePath(file string) string {
	if file == "" || !filepath.IsAbs(file) {
		return file
	}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, file); err == nil {
			return rel
		}
	}
	return file
}
