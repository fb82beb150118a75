// Package soli embeds the soli compiler and VM in Go programs.
//
//	s := soli.New()
//	s.Bind("double", func(x int) int { return x * 2 })
//	v, err := s.Eval(`double(21)`)
//
// Globals persist between Eval, LoadFile and Call on the same VM.
package soli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/backend"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/vm"
)

// VM wraps the bytecode VM and provides a high-level embedding API.
// It is not safe for concurrent use.
type VM struct {
	globals    *vm.Globals
	marshaller *Marshaller

	out         io.Writer
	logger      zerolog.Logger
	maxFrames   int
	timeout     time.Duration
	importPaths []string
	output      []string
}

// Option configures a VM.
type Option func(*VM)

// WithOutput sets where print writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.out = w }
}

// WithLogger attaches a logger to every run.
func WithLogger(l zerolog.Logger) Option {
	return func(v *VM) { v.logger = l }
}

// WithImportPaths sets the roots imports are resolved against.
func WithImportPaths(paths ...string) Option {
	return func(v *VM) { v.importPaths = paths }
}

// WithMaxFrames bounds the call depth.
func WithMaxFrames(n int) Option {
	return func(v *VM) { v.maxFrames = n }
}

// WithTimeout cancels each Eval, LoadFile or Call after d.
func WithTimeout(d time.Duration) Option {
	return func(v *VM) { v.timeout = d }
}

// New creates a new VM instance.
func New(opts ...Option) *VM {
	g := vm.NewGlobals()
	vm.RegisterBuiltins(g)
	v := &VM{
		globals:    g,
		marshaller: NewMarshaller(),
		out:        os.Stdout,
		logger:     zerolog.Nop(),
		maxFrames:  vm.DefaultMaxFrames,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Bind registers a Go function or value as a constant global. Functions
// are callable from scripts; their arguments and results go through the
// Marshaller.
func (v *VM) Bind(name string, val interface{}) error {
	obj, err := v.toValue(name, val)
	if err != nil {
		return err
	}
	v.globals.Define(name, obj, true)
	return nil
}

// Set sets a global variable scripts may reassign.
func (v *VM) Set(name string, val interface{}) error {
	obj, err := v.toValue(name, val)
	if err != nil {
		return err
	}
	v.globals.Define(name, obj, false)
	return nil
}

func (v *VM) toValue(name string, val interface{}) (vm.Value, error) {
	if val == nil {
		return vm.NullVal(), nil
	}
	if value, ok := val.(vm.Value); ok {
		return value, nil
	}
	obj, err := v.marshaller.toValue(reflect.ValueOf(val), name)
	if err != nil {
		return vm.NullVal(), fmt.Errorf("binding %s: %w", name, err)
	}
	return obj, nil
}

// Get retrieves a global variable from the VM.
func (v *VM) Get(name string) (interface{}, error) {
	obj, ok := v.globals.Get(name)
	if !ok {
		return nil, fmt.Errorf("variable '%s' not found", name)
	}
	return v.marshaller.FromValue(obj, nil)
}

// GetInto converts a global into the value target points to.
func (v *VM) GetInto(name string, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	obj, ok := v.globals.Get(name)
	if !ok {
		return fmt.Errorf("variable '%s' not found", name)
	}
	val, err := v.marshaller.convert(obj, rv.Elem().Type())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	rv.Elem().Set(val)
	return nil
}

// Call calls a function defined in soli (or bound from Go) by name.
func (v *VM) Call(funcName string, args ...interface{}) (interface{}, error) {
	if _, ok := v.globals.Get(funcName); !ok {
		return nil, fmt.Errorf("function '%s' not found", funcName)
	}
	vals := make([]vm.Value, len(args))
	for i, arg := range args {
		val, err := v.marshaller.ToValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		vals[i] = val
	}

	ctx, cancel := v.runContext()
	defer cancel()
	machine := v.newMachine(ctx, "")
	result, err := machine.Invoke(funcName, vals...)
	v.output = append(v.output, machine.Output()...)
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// Eval executes code and returns the value of its trailing expression
// statement, or nil.
func (v *VM) Eval(code string) (interface{}, error) {
	mod, err := v.compile(code, "<eval>", true)
	if err != nil {
		return nil, err
	}
	result, err := v.run(mod, "")
	if err != nil {
		return nil, err
	}
	return v.marshaller.FromValue(result, nil)
}

// LoadFile compiles and executes a file. Imports resolve against the
// file's directory first.
func (v *VM) LoadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mod, err := v.compile(string(content), path, false)
	if err != nil {
		return err
	}
	_, err = v.run(mod, filepath.Dir(path))
	return err
}

// Output returns every line printed so far.
func (v *VM) Output() []string {
	out := make([]string, len(v.output))
	copy(out, v.output)
	return out
}

func (v *VM) compile(code, file string, returnLast bool) (*vm.CompiledModule, error) {
	ctx := pipeline.NewPipelineContext(code)
	ctx.FilePath = file
	p := pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&backend.CompileProcessor{Logger: v.logger, Globals: v.globals.Names(), ReturnLast: returnLast},
	)
	ctx = p.Run(ctx)
	if len(ctx.Errors) > 0 {
		errs := make([]error, len(ctx.Errors))
		for i, e := range ctx.Errors {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}
	return ctx.Compiled.(*vm.CompiledModule), nil
}

func (v *VM) run(mod *vm.CompiledModule, dir string) (vm.Value, error) {
	ctx, cancel := v.runContext()
	defer cancel()
	machine := v.newMachine(ctx, dir)
	result, err := machine.Run(mod)
	v.output = append(v.output, machine.Output()...)
	return result, err
}

func (v *VM) newMachine(ctx context.Context, dir string) *vm.VM {
	opts := []vm.Option{
		vm.WithGlobals(v.globals),
		vm.WithOutput(v.out),
		vm.WithLogger(v.logger),
		vm.WithMaxFrames(v.maxFrames),
		vm.WithContext(ctx),
	}
	roots := v.importPaths
	if dir != "" {
		roots = append([]string{dir}, roots...)
	}
	if len(roots) > 0 {
		opts = append(opts, vm.WithModuleResolver(backend.NewFileResolver(roots, nil, v.logger)))
	}
	return vm.New(opts...)
}

func (v *VM) runContext() (context.Context, context.CancelFunc) {
	if v.timeout > 0 {
		return context.WithTimeout(context.Background(), v.timeout)
	}
	return context.WithCancel(context.Background())
}
