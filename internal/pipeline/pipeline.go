package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Pipeline runs processors in order over one context.
type Pipeline struct {
	processors []Processor
	logger     zerolog.Logger
}

// StageTiming is how long one stage took in a run.
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors, logger: zerolog.Nop()}
}

// WithLogger logs every stage at debug level.
func (p *Pipeline) WithLogger(l zerolog.Logger) *Pipeline {
	p.logger = l
	return p
}

// Run executes the pipeline. Stages after the first failing one still run so
// that each can decide whether it has enough to work with.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		errs := len(ctx.Errors)
		start := time.Now()
		ctx = processor.Process(ctx)
		timing := StageTiming{Stage: StageName(processor), Elapsed: time.Since(start)}
		ctx.Timings = append(ctx.Timings, timing)

		p.logger.Debug().
			Str("stage", timing.Stage).
			Str("file", ctx.FilePath).
			Dur("elapsed", timing.Elapsed).
			Int("new_errors", len(ctx.Errors)-errs).
			Msg("stage done")
	}
	return ctx
}

// StageName is the processor's Name() when it has one, otherwise its type
// without the package, e.g. "LexerProcessor".
func StageName(p Processor) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", p), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
