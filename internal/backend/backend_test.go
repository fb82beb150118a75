package backend

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/cache"
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/vm"
)

func run(t *testing.T, p *pipeline.Pipeline, src string) *pipeline.PipelineContext {
	t.Helper()
	ctx := pipeline.NewPipelineContext(src)
	ctx.FilePath = "main.sl"
	return p.Run(ctx)
}

func TestPipelineRunsSource(t *testing.T) {
	var out bytes.Buffer
	p := NewPipeline(NewVM(WithOutput(&out)), nil, zerolog.Nop())

	ctx := run(t, p, "let xs = [1, 2, 3]\nprint(xs.map(fn(x) => x * x))")
	require.NoError(t, FirstError(ctx))
	assert.Equal(t, []string{"[1, 4, 9]"}, ctx.Output)
	assert.Equal(t, "[1, 4, 9]\n", out.String())

	_, err := uuid.Parse(ctx.RunID)
	assert.NoError(t, err)

	var stages []string
	for _, timing := range ctx.Timings {
		stages = append(stages, timing.Stage)
	}
	assert.Equal(t, []string{"CacheProcessor", "LexerProcessor", "ParserProcessor", "CompileProcessor", "execute/vm"}, stages)
	assert.False(t, ctx.CacheHit)
}

func TestPipelineDiagnostics(t *testing.T) {
	p := NewPipeline(NewVM(WithOutput(io.Discard)), nil, zerolog.Nop())

	tests := []struct {
		name string
		src  string
		code diagnostics.ErrorCode
		line int
	}{
		{"parse error", "let = 1", diagnostics.ErrP001, 1},
		{"compile error", "\nbreak", diagnostics.ErrC001, 2},
		{"runtime error", "let a = 1\n\nprint(a / 0)", diagnostics.ErrR001, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := run(t, p, tt.src)
			require.True(t, ctx.Failed())
			diag := ctx.Errors[0]
			assert.Equal(t, tt.code, diag.Code)
			assert.Equal(t, tt.line, diag.Token.Line)
			assert.Equal(t, "main.sl", diag.File)
		})
	}
}

func TestRuntimeDiagnosticUnwraps(t *testing.T) {
	p := NewPipeline(NewVM(WithOutput(io.Discard)), nil, zerolog.Nop())
	ctx := run(t, p, "fn f() { return [][0] }\nf()")
	require.True(t, ctx.Failed())

	var re *vm.RuntimeError
	require.True(t, errors.As(FirstError(ctx), &re))
	assert.Equal(t, vm.IndexOutOfBounds, re.Kind)
	assert.Contains(t, ctx.Errors[0].Message, "at f (")
}

func TestPipelineCachesModules(t *testing.T) {
	c := cache.New()
	p := NewPipeline(NewVM(WithOutput(io.Discard)), c, zerolog.Nop())
	src := "print(\"cached\")"

	first := run(t, p, src)
	require.NoError(t, FirstError(first))
	assert.False(t, first.CacheHit)

	second := run(t, p, src)
	require.NoError(t, FirstError(second))
	assert.True(t, second.CacheHit)
	assert.Nil(t, second.AstRoot, "front end should be skipped")
	assert.Equal(t, []string{"cached"}, second.Output)
	assert.Equal(t, "main.sl", second.Compiled.(*vm.CompiledModule).File)
	assert.Equal(t, uint64(1), c.Stats().MemoryHits)
}

func TestTimeout(t *testing.T) {
	p := NewPipeline(NewVM(WithOutput(io.Discard), WithTimeout(20*time.Millisecond)), nil, zerolog.Nop())
	ctx := run(t, p, "while true { }")
	require.True(t, ctx.Failed())
	assert.Equal(t, vm.Cancelled, vm.KindOf(FirstError(ctx)))
}

func TestMaxFrames(t *testing.T) {
	p := NewPipeline(NewVM(WithOutput(io.Discard), WithMaxFrames(8)), nil, zerolog.Nop())
	ctx := run(t, p, "fn f(n) { return f(n + 1) }\nf(0)")
	assert.Equal(t, vm.StackOverflow, vm.KindOf(FirstError(ctx)))
}

func TestHostGlobals(t *testing.T) {
	g := vm.NewGlobals()
	vm.RegisterBuiltins(g)
	g.Define("VERSION", vm.StringVal("1.2"), true)

	b := NewVM(WithOutput(io.Discard), WithGlobals(g))
	p := NewPipeline(b, nil, zerolog.Nop(), "VERSION")

	ctx := run(t, p, "let v = \"v\" + VERSION\nprint(v)")
	require.NoError(t, FirstError(ctx))
	assert.Equal(t, []string{"v1.2"}, ctx.Output)

	// runs do not leak globals into the seed
	assert.False(t, g.Has("v"))
}

func TestFileResolver(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "math.sl"),
		[]byte("fn square(x) { return x * x }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.sl"),
		[]byte("fn (("), 0o644))

	resolver := NewFileResolver([]string{filepath.Join(root, "missing"), root}, nil, zerolog.Nop())

	t.Run("finds module without extension", func(t *testing.T) {
		mod, err := resolver.Resolve("lib/math")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "lib", "math.sl"), mod.File)
	})

	t.Run("finds module with extension", func(t *testing.T) {
		_, err := resolver.Resolve("lib/math.sl")
		require.NoError(t, err)
	})

	t.Run("missing module", func(t *testing.T) {
		_, err := resolver.Resolve("nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `module "nope" not found`)
	})

	t.Run("syntax error surfaces as diagnostic", func(t *testing.T) {
		_, err := resolver.Resolve("broken")
		var diag *diagnostics.DiagnosticError
		require.True(t, errors.As(err, &diag))
	})

	t.Run("imports through the pipeline", func(t *testing.T) {
		p := NewPipeline(NewVM(WithOutput(io.Discard), WithResolver(resolver)), nil, zerolog.Nop())
		ctx := run(t, p, "import {square} from \"lib/math\"\nprint(square(9))")
		require.NoError(t, FirstError(ctx))
		assert.Equal(t, []string{"81"}, ctx.Output)
	})
}

func TestDisassemble(t *testing.T) {
	b := NewVM()
	ctx := pipeline.New(Frontend(nil, zerolog.Nop())...).Run(pipeline.NewPipelineContext("print(1)"))
	require.NoError(t, FirstError(ctx))
	listing, err := b.Disassemble(ctx)
	require.NoError(t, err)
	assert.Contains(t, listing, "== <script> ==")
	assert.Equal(t, "vm", b.Name())
}

func TestCompileSource(t *testing.T) {
	mod, err := CompileSource("let a = 1", "a.sl", nil)
	require.NoError(t, err)
	assert.Equal(t, "a.sl", mod.File)

	_, err = CompileSource("let a = ", "a.sl", nil)
	require.Error(t, err)
}

func TestInvoke(t *testing.T) {
	b := NewVM(WithOutput(io.Discard))
	ctx := pipeline.New(Frontend(nil, zerolog.Nop())...).Run(pipeline.NewPipelineContext("print(\"loaded\")\nfn add(a, b) { return a + b }"))
	require.NoError(t, FirstError(ctx))

	result, err := b.Invoke(ctx, "add", vm.IntVal(2), vm.IntVal(40))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
	assert.Equal(t, []string{"loaded"}, ctx.Output)

	_, err = b.Invoke(ctx, "missing")
	assert.Equal(t, vm.UndefinedVariable, vm.KindOf(err))
}
