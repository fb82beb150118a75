package parser

import (
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/token"
)

type ParserProcessor struct{}

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if len(ctx.Errors) > 0 || ctx.Compiled != nil {
		return ctx
	}
	if ctx.TokenStream == nil {
		err := diagnostics.NewError(diagnostics.ErrP001, token.Token{}, "parser: token stream is nil")
		err.File = ctx.FilePath
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}

	parser := New(ctx.TokenStream, ctx)
	program := parser.ParseProgram()
	if len(ctx.Errors) == 0 {
		ctx.AstRoot = program
	}
	return ctx
}
