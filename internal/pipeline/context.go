package pipeline

import (
	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries the state shared between stages.
type PipelineContext struct {
	SourceCode  string
	FilePath    string
	RunID       string
	TokenStream []token.Token
	AstRoot     ast.Node
	Errors      []*diagnostics.DiagnosticError

	// Compiled holds the *vm.CompiledModule produced by the compile stage.
	// It is untyped so the vm package can use the pipeline in its tests.
	Compiled interface{}
	// Result holds the final vm.Value of an execution stage.
	Result interface{}
	// Output holds the lines printed by the execution stage.
	Output []string
	// CacheHit is set when Compiled came from the module cache.
	CacheHit bool
	// Timings has one entry per stage that ran, in order.
	Timings []StageTiming
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source}
}

// Failed reports whether any stage recorded an error.
func (ctx *PipelineContext) Failed() bool {
	return len(ctx.Errors) > 0
}
