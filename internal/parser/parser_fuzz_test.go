package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
)

// FuzzParser throws arbitrary text at the lexer and parser. Neither may
// panic, and a clean parse always yields a program.
func FuzzParser(f *testing.F) {
	f.Add("let x = 1 + 2 * 3")
	f.Add("fn f(a, b = 2) { return a?.b ?? [x for x in 0..=b] }")
	f.Add("class A extends B { static n = 0; new(x) { super(x) } fn m() { this.n += 1 } }")
	f.Add("match v { 1..=3 | 9 => \"a\", x if x > 0 => { x }, _ => null }")
	f.Add("try { throw new Error(\"x\") } catch (e: Error) { print(e) } finally { }")
	f.Add("import { a, b } from \"lib/m\"\nprint(\"#{a} and #{b(1)}\")")
	f.Add("((((((((((")
	f.Add("\"unterminated #{")
	f.Add("let = ;")

	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 4000 {
			return
		}
		ctx := pipeline.NewPipelineContext(src)
		ctx = (&lexer.LexerProcessor{}).Process(ctx)
		ctx = (&parser.ParserProcessor{}).Process(ctx)
		if len(ctx.Errors) > 0 {
			return
		}
		_, ok := ctx.AstRoot.(*ast.Program)
		require.True(t, ok, "clean parse of %q gave %T", src, ctx.AstRoot)
	})
}
