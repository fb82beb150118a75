package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/cache"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/token"
	"github.com/solisoft/soli/internal/vm"
)

// CacheProcessor serves a previously compiled module for ctx.SourceCode.
// On a hit the lexer, parser and compiler stages pass the context through.
type CacheProcessor struct {
	Cache *cache.ModuleCache
}

func (p *CacheProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if p.Cache == nil || ctx.Compiled != nil || len(ctx.Errors) > 0 {
		return ctx
	}
	if mod, ok := p.Cache.Get(context.Background(), ctx.SourceCode); ok {
		// Same source under another name shares the prototypes
		ctx.Compiled = &vm.CompiledModule{Main: mod.Main, File: ctx.FilePath}
		ctx.CacheHit = true
	}
	return ctx
}

// CompileProcessor compiles ctx.AstRoot into ctx.Compiled and records the
// result in Cache when one is set.
type CompileProcessor struct {
	Cache  *cache.ModuleCache
	Logger zerolog.Logger
	// Globals are names the host defines before the script runs
	Globals []string
	// ReturnLast makes a trailing expression statement the module result.
	// Such modules are not cached.
	ReturnLast bool
}

func (p *CompileProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Compiled != nil || ctx.AstRoot == nil || len(ctx.Errors) > 0 {
		return ctx
	}
	program, ok := ctx.AstRoot.(*ast.Program)
	if !ok {
		ctx.Errors = append(ctx.Errors, diagnostics.NewError(diagnostics.ErrC001, token.Token{}, "AST root is not a Program: %T", ctx.AstRoot))
		return ctx
	}
	program.File = ctx.FilePath

	compiler := vm.NewCompiler()
	compiler.ReturnLastExpression(p.ReturnLast)
	for _, name := range p.Globals {
		compiler.DeclareGlobal(name, false)
	}
	mod, err := compiler.Compile(program)
	if err != nil {
		diag := diagnostics.NewError(diagnostics.ErrC001, token.Token{}, "%s", err.Error())
		var ce *vm.CompileError
		if errors.As(err, &ce) {
			diag = diagnostics.NewError(diagnostics.ErrC001, token.Token{Line: ce.Line, Column: ce.Column}, "[%s] %s", ce.Kind, ce.Message)
		}
		diag.File = ctx.FilePath
		diag.Cause = err
		ctx.Errors = append(ctx.Errors, diag)
		return ctx
	}
	ctx.Compiled = mod

	if p.Cache != nil && !p.ReturnLast {
		if err := p.Cache.Put(context.Background(), ctx.SourceCode, mod); err != nil {
			p.Logger.Warn().Err(err).Str("file", ctx.FilePath).Msg("module cache write failed")
		}
	}
	return ctx
}

// ExecutionProcessor implements pipeline.Processor to run a Backend
type ExecutionProcessor struct {
	Backend Backend
	Logger  zerolog.Logger
}

// NewExecutionProcessor creates a new pipeline step for the given backend
func NewExecutionProcessor(b Backend, logger zerolog.Logger) *ExecutionProcessor {
	return &ExecutionProcessor{Backend: b, Logger: logger}
}

// Name labels the stage in pipeline timings
func (p *ExecutionProcessor) Name() string {
	if p.Backend == nil {
		return "ExecutionProcessor"
	}
	return "execute/" + p.Backend.Name()
}

func (p *ExecutionProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// If previous steps failed, don't run execution
	if len(ctx.Errors) > 0 || (ctx.Compiled == nil && ctx.AstRoot == nil) {
		return ctx
	}
	if ctx.RunID == "" {
		ctx.RunID = uuid.NewString()
	}
	log := p.Logger.With().Str("run_id", ctx.RunID).Str("file", ctx.FilePath).Logger()

	start := time.Now()
	result, err := p.Backend.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		log.Debug().Err(err).Dur("elapsed", elapsed).Msg("run failed")
		p.handleError(ctx, err)
		return ctx
	}
	log.Debug().Dur("elapsed", elapsed).Bool("cache_hit", ctx.CacheHit).Msg("run finished")
	ctx.Result = result
	return ctx
}

func (p *ExecutionProcessor) handleError(ctx *pipeline.PipelineContext, err error) {
	diag := diagnostics.NewError(diagnostics.ErrR001, token.Token{}, "%s", err.Error())

	var re *vm.RuntimeError
	var ce *vm.CompileError
	switch {
	case errors.As(err, &re):
		msg := string(re.Kind) + ": " + re.Message
		if len(re.Trace) > 0 {
			msg += "\n  " + strings.Join(re.Trace, "\n  ")
		}
		diag = diagnostics.NewError(diagnostics.ErrR001, token.Token{Line: re.Line, Column: re.Column}, "%s", msg)
	case errors.As(err, &ce):
		diag = diagnostics.NewError(diagnostics.ErrC001, token.Token{Line: ce.Line, Column: ce.Column}, "[%s] %s", ce.Kind, ce.Message)
	}
	diag.File = ctx.FilePath
	diag.Cause = err
	ctx.Errors = append(ctx.Errors, diag)
}
