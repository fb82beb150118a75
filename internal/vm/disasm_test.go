package vm

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	mod := compile(t, "let x = 1 + 2\nfn add(a, b = 1) { return a + b }\nif x > 2 { print(add(x)) }")
	listing := Disassemble(mod.Main)

	assert.True(t, strings.HasPrefix(listing, "== <script> ==\n"))
	assert.Contains(t, listing, "== add ==")
	assert.Contains(t, listing, "DEFINE_GLOBAL")
	assert.Contains(t, listing, "'x'")
	assert.Contains(t, listing, "JUMP_IF_FALSE")
	assert.Contains(t, listing, "-> ")
	assert.Contains(t, listing, "<fn add>")

	lines := strings.Split(strings.TrimSpace(listing), "\n")
	require.Greater(t, len(lines), 4)
	assert.Regexp(t, `^0000 +1 [A-Z_]+`, lines[1])
}

func TestDisassembleMarksRepeatedLines(t *testing.T) {
	mod := compile(t, "print(1, 2)")
	listing := Disassemble(mod.Main)
	assert.Contains(t, listing, "   | ")
}

func TestDisassembleTryTargets(t *testing.T) {
	mod := compile(t, "try { throw 1 } catch (e) { print(e) } finally { print(2) }")
	listing := Disassemble(mod.Main)
	assert.Regexp(t, `TRY_BEGIN +catch \d{4} finally \d{4}`, listing)

	mod = compile(t, "try { throw 1 } finally { print(2) }")
	assert.Regexp(t, `TRY_BEGIN +catch - finally \d{4}`, Disassemble(mod.Main))
}

func TestCompilerDeduplicatesConstants(t *testing.T) {
	mod := compile(t, "let a = \"same\"\nlet b = \"same\"\nlet c = 7\nlet d = 7")
	count := 0
	for _, c := range mod.Main.Chunk.Constants {
		if c.IsString() && c.Str == "same" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCompilerLinesMatchCode(t *testing.T) {
	mod := compile(t, bundleProgram)
	var walk func(p *FunctionProto)
	walk = func(p *FunctionProto) {
		require.Len(t, p.Chunk.Lines, len(p.Chunk.Code), p.Name)
		last := p.Chunk.Code[len(p.Chunk.Code)-1]
		assert.Equal(t, OP_RETURN, last.Op, p.Name)
		for _, c := range p.Chunk.Constants {
			if nested, ok := c.Obj.(*FunctionProto); ok {
				walk(nested)
			}
		}
		for _, d := range p.Defaults {
			walk(d)
		}
	}
	walk(mod.Main)
}

func TestReturnLastExpression(t *testing.T) {
	program := parse(t, "let a = 20\na * 2 + 2")

	c := NewCompiler()
	c.ReturnLastExpression(true)
	mod, err := c.Compile(program)
	require.NoError(t, err)

	result, err := New(WithOutput(io.Discard)).Run(mod)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())

	plain, err := NewCompiler().Compile(parse(t, "1 + 1"))
	require.NoError(t, err)
	result, err = New(WithOutput(io.Discard)).Run(plain)
	require.NoError(t, err)
	assert.True(t, result.IsNull())
}
