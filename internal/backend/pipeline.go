package backend

import (
	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/cache"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/vm"
)

// Frontend returns the stages that turn source into ctx.Compiled:
// cache lookup, lexer, parser and compiler. c may be nil.
func Frontend(c *cache.ModuleCache, logger zerolog.Logger, globals ...string) []pipeline.Processor {
	return []pipeline.Processor{
		&CacheProcessor{Cache: c},
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&CompileProcessor{Cache: c, Logger: logger, Globals: globals},
	}
}

// NewPipeline wires the front end to an execution stage running b.
func NewPipeline(b Backend, c *cache.ModuleCache, logger zerolog.Logger, globals ...string) *pipeline.Pipeline {
	stages := append(Frontend(c, logger, globals...), NewExecutionProcessor(b, logger))
	return pipeline.New(stages...).WithLogger(logger)
}

// CompileSource runs the front end on src and returns the compiled module
// or the first diagnostic.
func CompileSource(src, file string, c *cache.ModuleCache) (*vm.CompiledModule, error) {
	ctx := pipeline.NewPipelineContext(src)
	ctx.FilePath = file
	ctx = pipeline.New(Frontend(c, zerolog.Nop())...).Run(ctx)
	if err := FirstError(ctx); err != nil {
		return nil, err
	}
	return ctx.Compiled.(*vm.CompiledModule), nil
}

// FirstError returns the first recorded diagnostic, or nil.
func FirstError(ctx *pipeline.PipelineContext) error {
	if len(ctx.Errors) == 0 {
		return nil
	}
	return ctx.Errors[0]
}
