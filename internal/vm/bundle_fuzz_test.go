package vm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
)

var fuzzSeeds = []string{
	"print(1 + 2)",
	"let x = 42\nprint(x)",
	"fn add(a, b) { return a + b }\nprint(add(1, 2))",
	"fn greet(name = \"World\") { print(name) }\ngreet()",
	"let list = [1, 2, 3]\nfor x in list { print(x) }",
	"let i = 0\nwhile i < 3 { print(i)\n i += 1 }",
	"print(match 4 { 0..3 => \"low\", _ => \"high\" })",
	"try { throw \"x\" } catch (e) { print(e) }",
	bundleProgram,
}

// tryCompile is compile without a *testing.T; it returns nil for programs
// that do not parse or compile.
func tryCompile(src string) *CompiledModule {
	ctx := pipeline.NewPipelineContext(src)
	program := parser.New(lexer.New(src).Tokenize(), ctx).ParseProgram()
	if len(ctx.Errors) > 0 || program == nil {
		return nil
	}
	mod, err := NewCompiler().Compile(program)
	if err != nil {
		return nil
	}
	return mod
}

func fuzzRun(mod *CompiledModule) ([]string, ErrorKind) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	machine := New(WithOutput(io.Discard), WithContext(ctx), WithMaxFrames(64))
	_, err := machine.Run(mod)
	var re *RuntimeError
	if errors.As(err, &re) {
		return machine.Output(), re.Kind
	}
	return machine.Output(), ""
}

// FuzzBundleRoundTrip checks that a decoded module disassembles and runs
// exactly like the module it was encoded from.
func FuzzBundleRoundTrip(f *testing.F) {
	for _, seed := range fuzzSeeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 2000 {
			return
		}
		mod := tryCompile(src)
		if mod == nil {
			return
		}

		data, err := EncodeModule(mod)
		require.NoError(t, err)
		decoded, err := DecodeModule(data)
		require.NoError(t, err)
		require.Equal(t, Disassemble(mod.Main), Disassemble(decoded.Main))

		wantOut, wantKind := fuzzRun(mod)
		gotOut, gotKind := fuzzRun(decoded)
		if wantKind == Cancelled || gotKind == Cancelled {
			return
		}
		assert.Equal(t, wantKind, gotKind)
		assert.Equal(t, wantOut, gotOut)
	})
}

// FuzzDecodeModule feeds arbitrary bytes to the decoder, which must fail
// cleanly instead of panicking.
func FuzzDecodeModule(f *testing.F) {
	for _, seed := range fuzzSeeds {
		if mod := tryCompile(seed); mod != nil {
			if data, err := EncodeModule(mod); err == nil {
				f.Add(data)
			}
		}
	}
	f.Add([]byte("SOLB"))
	f.Add([]byte("SOLB\xa0"))
	f.Add([]byte("SOLB\xbf\xff"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		mod, err := DecodeModule(data)
		if err != nil {
			return
		}
		require.NotNil(t, mod)
	})
}
