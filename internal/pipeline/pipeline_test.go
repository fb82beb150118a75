package pipeline

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/token"
)

type appendStage struct{ word string }

func (s *appendStage) Process(ctx *PipelineContext) *PipelineContext {
	ctx.Output = append(ctx.Output, s.word)
	return ctx
}

type failStage struct{}

func (failStage) Name() string { return "fail" }
func (failStage) Process(ctx *PipelineContext) *PipelineContext {
	ctx.Errors = append(ctx.Errors, diagnostics.NewError(diagnostics.ErrP001, token.Token{Line: 1, Column: 1}, "broken"))
	return ctx
}

func TestRunKeepsGoingAfterErrors(t *testing.T) {
	ctx := New(&appendStage{"a"}, failStage{}, &appendStage{"b"}).Run(NewPipelineContext("src"))

	assert.Equal(t, []string{"a", "b"}, ctx.Output)
	assert.True(t, ctx.Failed())
	require.Len(t, ctx.Timings, 3)
	assert.Equal(t, "appendStage", ctx.Timings[0].Stage)
	assert.Equal(t, "fail", ctx.Timings[1].Stage)
	assert.Equal(t, "appendStage", ctx.Timings[2].Stage)
}

func TestRunLogsStages(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	ctx := NewPipelineContext("")
	ctx.FilePath = "main.sl"
	New(failStage{}).WithLogger(logger).Run(ctx)

	out := buf.String()
	assert.Contains(t, out, `"stage":"fail"`)
	assert.Contains(t, out, `"file":"main.sl"`)
	assert.Contains(t, out, `"new_errors":1`)
}

func TestEmptyPipeline(t *testing.T) {
	ctx := New().Run(NewPipelineContext("x"))
	assert.Empty(t, ctx.Timings)
	assert.False(t, ctx.Failed())
}
