package prettyprinter_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/backend"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/prettyprinter"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	ctx := pipeline.NewPipelineContext(src)
	program := parser.New(lexer.New(src).Tokenize(), ctx).ParseProgram()
	require.Empty(t, ctx.Errors, "parsing %q", src)
	return program
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"spacing", "let x=1+2*3", "let x = 1 + 2 * 3\n"},
		{"needed parens kept", "let y = (1 + 2) * 3", "let y = (1 + 2) * 3\n"},
		{"redundant parens dropped", "let y = (1 * 2) + (3)", "let y = 1 * 2 + 3\n"},
		{"left associativity", "let z = 1 - 2 - 3\nlet w = 1 - (2 - 3)", "let z = 1 - 2 - 3\nlet w = 1 - (2 - 3)\n"},
		{"nested negation", "print(-(-x))", "print(-(-x))\n"},
		{"keyword operators", "let t = a and not b or c", "let t = a && !b || c\n"},
		{"assignment chain", "a = b = 3\nn += 1", "a = b = 3\nn += 1\n"},
		{"range", "let r = 1..=n + 1\nlet s = (0..3)", "let r = 1..=n + 1\nlet s = 0..3\n"},
		{"floats", "let f = 2.50\nlet g = 3.0", "let f = 2.5\nlet g = 3.0\n"},
		{"optional chain and nullish", "let n = a?.b ?? \"none\"", "let n = a?.b ?? \"none\"\n"},
		{"new with named arguments", "let p = new Point(1, y: 2)", "let p = new Point(1, y: 2)\n"},
		{"function", "fn add(a, b = 2) { return a + b }",
			"fn add(a, b = 2) {\n    return a + b\n}\n"},
		{"typed function", "fn id(x: Int) -> Int { return x }",
			"fn id(x: Int) -> Int {\n    return x\n}\n"},
		{"arrow lambda", "let f = fn(x) => x * 2", "let f = fn(x) => x * 2\n"},
		{"block lambda", "let g = fn() { print(1) }", "let g = fn() {\n    print(1)\n}\n"},
		{"interpolation", "let s = \"hi #{name.upcase()}!\"", "let s = \"hi #{name.upcase()}!\"\n"},
		{"escapes", "let s = 'a #{b}' + \"q\\\"\\n\"", "let s = \"a \\#{b}\" + \"q\\\"\\n\"\n"},
		{"collections", "let xs = [1, ...ys]\nlet m = {\"a\": 1, ...other}", "let xs = [1, ...ys]\nlet m = {\"a\": 1, ...other}\n"},
		{"comprehensions", "let sq = [x * x for x in xs if x > 1]\nlet m = {k: 1 for k in ks}",
			"let sq = [x * x for x in xs if x > 1]\nlet m = {k: 1 for k in ks}\n"},
		{"map statement", "({a: 1})", "({a: 1})\n"},
		{"imports", "import {a,b} from \"lib\"\nimport \"x\"", "import { a, b } from \"lib\"\nimport \"x\"\n"},
		{"declarations are spaced", "fn a() {}\nfn b() {}\nlet x = 1\nlet y = 2",
			"fn a() {}\n\nfn b() {}\n\nlet x = 1\nlet y = 2\n"},
		{"else if", "if a { 1 } else if b { 2 } else { 3 }",
			"if a {\n    1\n} else if b {\n    2\n} else {\n    3\n}\n"},
		{"loops", "for (k, v in m) { continue }\nwhile i < 3 { i += 1; break }",
			"for (k, v in m) {\n    continue\n}\nwhile i < 3 {\n    i += 1\n    break\n}\n"},
		{"try", "try { throw \"x\" } catch (e) { print(e) } finally { print(1) }",
			"try {\n    throw \"x\"\n} catch (e) {\n    print(e)\n} finally {\n    print(1)\n}\n"},
		{"statement separators", "let a = 1;\n(a + 1).print()\nx;[1].len()",
			"let a = 1;\n(a + 1).print()\nx;\n[1].len()\n"},
		{"match", "let r = match n { 0 => \"zero\", 1..=9 | 42 => \"small\", x if x < 0 => \"neg\", _ => { print(n)\n\"big\" } }",
			"let r = match n {\n    0 => \"zero\",\n    1..=9 | 42 => \"small\",\n    x if x < 0 => \"neg\",\n    _ => {\n        print(n)\n        \"big\"\n    },\n}\n"},
		{"class",
			"class Dog extends Animal { static count = 0; name: String = \"rex\"; const legs = 4; new(name) { super(name); this.name = name } fn speak() { return super.speak() + \"!\" } static fn make() { return new Dog(\"a\") } }",
			"class Dog extends Animal {\n" +
				"    static count = 0\n" +
				"    name: String = \"rex\"\n" +
				"    const legs = 4\n" +
				"\n" +
				"    new(name) {\n" +
				"        super(name)\n" +
				"        this.name = name\n" +
				"    }\n" +
				"\n" +
				"    fn speak() {\n" +
				"        return super.speak() + \"!\"\n" +
				"    }\n" +
				"\n" +
				"    static fn make() {\n" +
				"        return new Dog(\"a\")\n" +
				"    }\n" +
				"}\n"},
		{"empty class", "class Empty {}", "class Empty {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prettyprinter.Format(parse(t, tt.src))
			assert.Equal(t, tt.want, got)

			// Formatting is a fixed point
			assert.Equal(t, got, prettyprinter.Format(parse(t, got)))
		})
	}
}

func TestFormatExpression(t *testing.T) {
	program := parse(t, "(a + b) * -c[0]")
	stmt := program.Statements[0].(*ast.ExpressionStatement)
	assert.Equal(t, "(a + b) * -c[0]", prettyprinter.FormatExpression(stmt.Expression))
}

func TestFormattedProgramBehavesTheSame(t *testing.T) {
	src := `
class Counter {
  count = 0
  fn add(n = 1) { this.count += n; return this }
}
let c = new Counter()
c.add().add(2)
let label = match c.count { 0 => "none", 1..3 => "few", _ => "many" }
let evens = [x for x in 0..10 if x % 2 == 0]
try { throw "boom" } catch (e) { print("caught #{e}") }
print(label, evens.len(), (1 + 2) * 3, 10 - (4 - 1))
`
	run := func(code string) []string {
		p := backend.NewPipeline(backend.NewVM(backend.WithOutput(io.Discard)), nil, zerolog.Nop())
		ctx := p.Run(pipeline.NewPipelineContext(code))
		require.NoError(t, backend.FirstError(ctx))
		return ctx.Output
	}

	formatted := prettyprinter.Format(parse(t, src))
	assert.Equal(t, run(src), run(formatted))
}
