package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/vm"
)

// VMBackend executes programs using the bytecode VM. Every Run gets a
// fresh VM, so one backend may serve concurrent pipelines.
type VMBackend struct {
	maxFrames int
	timeout   time.Duration
	out       io.Writer
	logger    zerolog.Logger
	resolver  vm.ModuleResolver
	globals   *vm.Globals
	base      context.Context
}

// Option configures a VMBackend.
type Option func(*VMBackend)

// WithMaxFrames bounds the call depth of each run.
func WithMaxFrames(n int) Option {
	return func(b *VMBackend) { b.maxFrames = n }
}

// WithTimeout cancels each run after d. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(b *VMBackend) { b.timeout = d }
}

// WithOutput sets where print writes. nil discards it; the lines are still
// collected in the pipeline context.
func WithOutput(w io.Writer) Option {
	return func(b *VMBackend) {
		if w == nil {
			w = io.Discard
		}
		b.out = w
	}
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *VMBackend) { b.logger = l }
}

// WithResolver enables imports.
func WithResolver(r vm.ModuleResolver) Option {
	return func(b *VMBackend) { b.resolver = r }
}

// WithGlobals seeds each run with a clone of g. g should already hold the
// builtins (see vm.RegisterBuiltins).
func WithGlobals(g *vm.Globals) Option {
	return func(b *VMBackend) { b.globals = g }
}

// WithContext sets the parent context of every run.
func WithContext(ctx context.Context) Option {
	return func(b *VMBackend) { b.base = ctx }
}

// ForContext returns a copy of b whose runs are children of ctx.
func (b *VMBackend) ForContext(ctx context.Context) *VMBackend {
	c := *b
	c.base = ctx
	return &c
}

// NewVM creates a new VM backend
func NewVM(opts ...Option) *VMBackend {
	b := &VMBackend{
		maxFrames: vm.DefaultMaxFrames,
		out:       os.Stdout,
		logger:    zerolog.Nop(),
		base:      context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run compiles (if needed) and executes the program using the VM
func (b *VMBackend) Run(ctx *pipeline.PipelineContext) (vm.Value, error) {
	mod, err := moduleOf(ctx)
	if err != nil {
		return vm.NullVal(), err
	}

	runCtx, cancel := b.runContext()
	defer cancel()

	machine := b.NewMachine(runCtx, ctx.RunID)
	result, err := machine.Run(mod)
	ctx.Output = machine.Output()
	if err != nil {
		// Return runtime error as is (ExecutionProcessor will handle formatting)
		return vm.NullVal(), err
	}
	return result, nil
}

// Invoke runs the program in ctx for its definitions and then calls the
// global function name with args. Printed lines of both steps land in
// ctx.Output.
func (b *VMBackend) Invoke(ctx *pipeline.PipelineContext, name string, args ...vm.Value) (vm.Value, error) {
	mod, err := moduleOf(ctx)
	if err != nil {
		return vm.NullVal(), err
	}

	runCtx, cancel := b.runContext()
	defer cancel()

	machine := b.NewMachine(runCtx, ctx.RunID)
	defer func() { ctx.Output = machine.Output() }()
	if _, err := machine.Run(mod); err != nil {
		return vm.NullVal(), err
	}
	return machine.Invoke(name, args...)
}

// NewMachine builds a VM configured like the ones Run uses. Callers that
// keep the VM past ctx must not share it between goroutines.
func (b *VMBackend) NewMachine(ctx context.Context, runID string) *vm.VM {
	opts := []vm.Option{
		vm.WithOutput(b.out),
		vm.WithMaxFrames(b.maxFrames),
		vm.WithLogger(b.logger.With().Str("run_id", runID).Logger()),
		vm.WithContext(ctx),
	}
	if b.resolver != nil {
		opts = append(opts, vm.WithModuleResolver(b.resolver))
	}
	if b.globals != nil {
		opts = append(opts, vm.WithGlobals(b.globals.Clone()))
	}
	return vm.New(opts...)
}

// runContext derives the per-run context, applying the timeout
func (b *VMBackend) runContext() (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(b.base, b.timeout)
	}
	return context.WithCancel(b.base)
}

// Name returns the backend name
func (b *VMBackend) Name() string {
	return "vm"
}

// Disassemble returns the bytecode listing of the program in ctx
func (b *VMBackend) Disassemble(ctx *pipeline.PipelineContext) (string, error) {
	mod, err := moduleOf(ctx)
	if err != nil {
		return "", err
	}
	return vm.Disassemble(mod.Main), nil
}

func moduleOf(ctx *pipeline.PipelineContext) (*vm.CompiledModule, error) {
	if mod, ok := ctx.Compiled.(*vm.CompiledModule); ok && mod != nil {
		return mod, nil
	}
	if ctx.AstRoot == nil {
		return nil, fmt.Errorf("no AST to compile")
	}
	program, ok := ctx.AstRoot.(*ast.Program)
	if !ok {
		return nil, fmt.Errorf("AST root is not a Program: %T", ctx.AstRoot)
	}
	if program.File == "" {
		program.File = ctx.FilePath
	}
	mod, err := vm.NewCompiler().Compile(program)
	if err != nil {
		return nil, fmt.Errorf("compilation error: %w", err)
	}
	ctx.Compiled = mod
	return mod, nil
}
