package vm

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	ctx := pipeline.NewPipelineContext(input)

	l := &lexer.LexerProcessor{}
	ctx = l.Process(ctx)
	require.Empty(t, ctx.Errors, "lexer errors")

	p := &parser.ParserProcessor{}
	ctx = p.Process(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("parser error: %s", ctx.Errors[0].Error())
	}
	return ctx.AstRoot.(*ast.Program)
}

func compile(t *testing.T, input string) *CompiledModule {
	t.Helper()
	mod, err := NewCompiler().Compile(parse(t, input))
	require.NoError(t, err)
	return mod
}

// runSource compiles and runs input with a five second deadline so a
// runaway loop fails the test instead of hanging it.
func runSource(t *testing.T, input string) (*VM, error) {
	t.Helper()
	mod := compile(t, input)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	machine := New(WithOutput(io.Discard), WithContext(ctx))
	_, err := machine.Run(mod)
	return machine, err
}

// runOutput runs input and returns everything it printed.
func runOutput(t *testing.T, input string) []string {
	t.Helper()
	machine, err := runSource(t, input)
	require.NoError(t, err)
	return machine.Output()
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"int add", "print(1 + 2)", "3"},
		{"precedence", "print(2 + 3 * 4)", "14"},
		{"grouping", "print((2 + 3) * 4)", "20"},
		{"int division", "print(7 / 2)", "3"},
		{"modulo", "print(7 % 3)", "1"},
		{"float", "print(1.5 + 1)", "2.5"},
		{"whole float", "print(2.0 * 2)", "4.0"},
		{"negate", "print(-5 + 2)", "-3"},
		{"string concat", `print("a" + "b")`, "ab"},
		{"string with int", `print("n=" + 3)`, "n=3"},
		{"array concat", "print([1] + [2, 3])", "[1, 2, 3]"},
		{"comparison", "print(3 > 2)", "true"},
		{"equality across numbers", "print(1 == 1.0)", "true"},
		{"string compare", `print("a" < "b")`, "true"},
		{"not", "print(!true)", "false"},
		{"and short-circuit", "print(false && undefined_name)", "false"},
		{"or short-circuit", "print(true || undefined_name)", "true"},
		{"nullish", "print(null ?? 4)", "4"},
		{"nullish keeps value", "print(0 ?? 4)", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, runOutput(t, tt.input))
		})
	}
}

func TestVariablesAndScopes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "global let",
			input: "let x = 10\nx = x + 5\nprint(x)",
			want:  []string{"15"},
		},
		{
			name:  "compound assignment",
			input: "let x = 10\nx += 5\nx *= 2\nx -= 1\nprint(x)",
			want:  []string{"29"},
		},
		{
			name:  "block shadowing",
			input: "let x = 1\n{ let x = 2\nprint(x) }\nprint(x)",
			want:  []string{"2", "1"},
		},
		{
			name:  "locals in function",
			input: "fn f() { let a = 1\nlet b = 2\nreturn a + b }\nprint(f())",
			want:  []string{"3"},
		},
		{
			name:  "if else",
			input: "let x = 5\nif x > 3 { print(\"big\") } else { print(\"small\") }",
			want:  []string{"big"},
		},
		{
			name:  "else if chain",
			input: "let x = 2\nif x == 1 { print(\"one\") } else if x == 2 { print(\"two\") } else { print(\"many\") }",
			want:  []string{"two"},
		},
		{
			name:  "if as expression",
			input: "let label = if 1 < 2 { \"yes\" } else { \"no\" }\nprint(label)",
			want:  []string{"yes"},
		},
		{
			name:  "interpolation",
			input: "let name = \"soli\"\nlet n = 3\nprint(\"hi #{name} x#{n + 1}\")",
			want:  []string{"hi soli x4"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "fib 10",
			input: "fn fib(n) { if n < 2 { return n }\nreturn fib(n - 1) + fib(n - 2) }\nprint(fib(10))",
			want:  []string{"55"},
		},
		{
			name:  "fib 20",
			input: "fn fib(n) { if n < 2 { return n }\nreturn fib(n - 1) + fib(n - 2) }\nprint(fib(20))",
			want:  []string{"6765"},
		},
		{
			name:  "forward reference",
			input: "fn a() { return b() + 1 }\nfn b() { return 41 }\nprint(a())",
			want:  []string{"42"},
		},
		{
			name:  "default parameter",
			input: "fn greet(name, greeting = \"hello\") { return greeting + \" \" + name }\nprint(greet(\"bob\"))\nprint(greet(\"bob\", \"hey\"))",
			want:  []string{"hello bob", "hey bob"},
		},
		{
			name:  "default refers to earlier parameter",
			input: "fn area(w, h = w) { return w * h }\nprint(area(3))\nprint(area(3, 4))",
			want:  []string{"9", "12"},
		},
		{
			name:  "named arguments",
			input: "fn sub(a, b) { return a - b }\nprint(sub(b: 1, a: 10))\nprint(sub(10, b: 3))",
			want:  []string{"9", "7"},
		},
		{
			name:  "named argument skips a default",
			input: "fn f(a, b = 2, c = 3) { return a * 100 + b * 10 + c }\nprint(f(1, c: 9))",
			want:  []string{"129"},
		},
		{
			name:  "implicit null return",
			input: "fn f() { let x = 1 }\nprint(f())",
			want:  []string{"null"},
		},
		{
			name:  "lambda",
			input: "let double = fn(x) { return x * 2 }\nprint(double(21))",
			want:  []string{"42"},
		},
		{
			name:  "arrow lambda",
			input: "let inc = fn(x) => x + 1\nprint(inc(1))",
			want:  []string{"2"},
		},
		{
			name:  "higher order",
			input: "fn twice(f, x) { return f(f(x)) }\nprint(twice(fn(n) => n * 3, 2))",
			want:  []string{"18"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestClosures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name: "counter keeps state",
			input: `fn make_counter() {
  let count = 0
  return fn() { count += 1
return count }
}
let c = make_counter()
c()
c()
print(c())`,
			want: []string{"3"},
		},
		{
			name: "independent counters",
			input: `fn make_counter() {
  let count = 0
  return fn() { count += 1
return count }
}
let a = make_counter()
let b = make_counter()
a()
a()
print(a())
print(b())`,
			want: []string{"3", "1"},
		},
		{
			name: "two closures share one variable",
			input: `fn pair() {
  let n = 0
  let inc = fn() { n += 1 }
  let get = fn() { return n }
  return [inc, get]
}
let p = pair()
let inc = p[0]
let get = p[1]
inc()
inc()
print(get())`,
			want: []string{"2"},
		},
		{
			name: "nested capture through two levels",
			input: `fn outer() {
  let x = "deep"
  fn middle() {
    fn inner() { return x }
    return inner
  }
  return middle()
}
print(outer()())`,
			want: []string{"deep"},
		},
		{
			name: "loop variable captured per iteration",
			input: `let fns = []
for i in [1, 2, 3] {
  fns.push(fn() { return i * 10 })
}
print(fns[0]())
print(fns[2]())`,
			want: []string{"10", "30"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestLoops(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "while sum",
			input: "let sum = 0\nlet i = 0\nwhile i < 10 { sum += i\ni += 1 }\nprint(sum)",
			want:  []string{"45"},
		},
		{
			name:  "long loop in function",
			input: "fn sum_to(n) { let s = 0\nlet i = 1\nwhile i <= n { s += i\ni += 1 }\nreturn s }\nprint(sum_to(10000))",
			want:  []string{"50005000"},
		},
		{
			name:  "break",
			input: "let i = 0\nwhile true { if i == 3 { break }\ni += 1 }\nprint(i)",
			want:  []string{"3"},
		},
		{
			name:  "continue",
			input: "let s = 0\nfor x in [1, 2, 3, 4, 5] { if x % 2 == 0 { continue }\ns += x }\nprint(s)",
			want:  []string{"9"},
		},
		{
			name:  "for over range",
			input: "let s = 0\nfor i in 0..5 { s += i }\nprint(s)",
			want:  []string{"10"},
		},
		{
			name:  "for over inclusive range",
			input: "let s = 0\nfor i in 1..=5 { s += i }\nprint(s)",
			want:  []string{"15"},
		},
		{
			name:  "for over map keys",
			input: "let m = {\"a\": 1, \"b\": 2}\nfor k in m { print(k) }",
			want:  []string{"a", "b"},
		},
		{
			name:  "for over map pairs",
			input: "let m = {\"a\": 1, \"b\": 2}\nfor (k, v in m) { print(k + \"=\" + v) }",
			want:  []string{"a=1", "b=2"},
		},
		{
			name:  "for over array pairs",
			input: "for (i, x in [\"p\", \"q\"]) { print(i, x) }",
			want:  []string{"0 p", "1 q"},
		},
		{
			name:  "for over string",
			input: "for c in \"héy\" { print(c) }",
			want:  []string{"h", "é", "y"},
		},
		{
			name:  "break out of nested for",
			input: "let n = 0\nfor a in 0..3 { for b in 0..3 { if b == 1 { break }\nn += 1 } }\nprint(n)",
			want:  []string{"3"},
		},
		{
			name:  "return from inside for",
			input: "fn find(xs, want) { for x in xs { if x == want { return \"found\" } }\nreturn \"missing\" }\nprint(find([1, 2, 3], 2))\nprint(find([1], 9))",
			want:  []string{"found", "missing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestCollections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array index", "let a = [1, 2, 3]\nprint(a[1])", []string{"2"}},
		{"negative index", "let a = [1, 2, 3]\nprint(a[-1])", []string{"3"}},
		{"index assignment", "let a = [1, 2, 3]\na[0] = 9\nprint(a)", []string{"[9, 2, 3]"}},
		{"spread", "let a = [2, 3]\nprint([1, ...a, 4])", []string{"[1, 2, 3, 4]"}},
		{"map literal", "let m = {\"a\": 1}\nm[\"b\"] = 2\nprint(m)", []string{`{"a": 1, "b": 2}`}},
		{"map missing key", "let m = {}\nprint(m[\"x\"])", []string{"null"}},
		{"map member access", "let m = {\"name\": \"soli\"}\nprint(m.name)", []string{"soli"}},
		{"map spread", "let a = {\"x\": 1}\nprint({...a, \"y\": 2})", []string{`{"x": 1, "y": 2}`}},
		{"string index", "print(\"héllo\"[1])", []string{"é"}},
		{"list comprehension", "print([x * x for x in 1..=4])", []string{"[1, 4, 9, 16]"}},
		{"filtered comprehension", "print([x for x in 0..10 if x % 3 == 0])", []string{"[0, 3, 6, 9]"}},
		{"map comprehension", "print({x: x * 2 for x in [1, 2]})", []string{"{1: 2, 2: 4}"}},
		{"len builtin", "print(len([1, 2]), len(\"abc\"), len({\"a\": 1}))", []string{"2 3 1"}},
		{"array methods", "let a = [3, 1, 2]\nprint(a.map(fn(x) => x * 2))\nprint(a.filter(fn(x) => x > 1))\nprint(a.reduce(fn(acc, x) => acc + x, 0))", []string{"[6, 2, 4]", "[3, 2]", "6"}},
		{"push and pop", "let a = []\na.push(1)\na.push(2)\nprint(a.pop(), a)", []string{"2 [1]"}},
		{"join", "print([1, 2, 3].join(\"-\"))", []string{"1-2-3"}},
		{"string methods", "print(\"  Soli \".trim().upper())\nprint(\"a,b\".split(\",\"))", []string{"SOLI", `["a", "b"]`}},
		{"map methods", "let m = {\"a\": 1}\nprint(m.has(\"a\"), m.get(\"z\", 0))\nm.remove(\"a\")\nprint(m.len())", []string{"true 0", "0"}},
		{"optional chaining", "let m = null\nprint(m?.name)", []string{"null"}},
		{"type names", "print(type(1), type(1.5), type(\"s\"), type([]), type({}), type(null))", []string{"Int Float String Array Map Null"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "literal arms",
			input: "fn name(n) { return match n { 1 => \"one\", 2 => \"two\", _ => \"many\" } }\nprint(name(1))\nprint(name(2))\nprint(name(7))",
			want:  []string{"one", "two", "many"},
		},
		{
			name:  "alternatives",
			input: "let r = match 3 { 1 | 3 | 5 => \"odd\", _ => \"other\" }\nprint(r)",
			want:  []string{"odd"},
		},
		{
			name:  "range pattern",
			input: "let r = match 15 { 0..10 => \"low\", 10..=20 => \"mid\", _ => \"high\" }\nprint(r)",
			want:  []string{"mid"},
		},
		{
			name:  "binding with guard",
			input: "let r = match 8 { n if n > 5 => n * 2, n => n }\nprint(r)",
			want:  []string{"16"},
		},
		{
			name:  "string arms",
			input: "let r = match \"b\" { \"a\" => 1, \"b\" => 2, _ => 0 }\nprint(r)",
			want:  []string{"2"},
		},
		{
			name:  "block body",
			input: "let r = match 1 { 1 => { let x = 40\nx + 2 }, _ => 0 }\nprint(r)",
			want:  []string{"42"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestClasses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name: "constructor and method",
			input: `class Point {
  x = 0
  y = 0
  new(x, y) { this.x = x
this.y = y }
  fn sum() { return this.x + this.y }
}
let p = new Point(2, 3)
print(p.sum())
print(p.x)`,
			want: []string{"5", "2"},
		},
		{
			name: "field defaults without constructor",
			input: `class Box {
  items = []
  label = "box"
}
let a = new Box()
let b = new Box()
a.items.push(1)
print(a.label, len(a.items), len(b.items))`,
			want: []string{"box 1 0"},
		},
		{
			name: "inheritance and super",
			input: `class Animal {
  name = ""
  new(name) { this.name = name }
  fn speak() { return this.name + " makes a sound" }
}
class Dog extends Animal {
  new(name) { super.new(name) }
  fn speak() { return super.speak() + " (woof)" }
}
print(new Dog("rex").speak())`,
			want: []string{"rex makes a sound (woof)"},
		},
		{
			name: "inherited constructor",
			input: `class Base {
  v = 0
  new(v) { this.v = v }
}
class Child extends Base {
  fn double() { return this.v * 2 }
}
print(new Child(4).double())`,
			want: []string{"8"},
		},
		{
			name: "static members",
			input: `class Counter {
  static count = 0
  static fn bump() { Counter.count += 1
return Counter.count }
}
Counter.bump()
print(Counter.bump())`,
			want: []string{"2"},
		},
		{
			name: "bound method keeps receiver",
			input: `class Greeter {
  word = "hi"
  fn greet(who) { return this.word + " " + who }
}
let g = new Greeter()
let f = g.greet
print(f("ann"))`,
			want: []string{"hi ann"},
		},
		{
			name: "closure in method sees this",
			input: `class Acc {
  total = 0
  fn add_all(xs) { xs.each(fn(x) { this.total += x })
return this.total }
}
print(new Acc().add_all([1, 2, 3]))`,
			want: []string{"6"},
		},
		{
			name: "named constructor arguments",
			input: `class Pair {
  a = 0
  b = 0
  new(a, b = 5) { this.a = a
this.b = b }
}
let p = new Pair(b: 2, a: 1)
print(p.a, p.b)
print(new Pair(9).b)`,
			want: []string{"1 2", "5"},
		},
		{
			name:  "class name and type",
			input: "class Thing {}\nlet t = new Thing()\nprint(type(t))\nprint(Thing.name)",
			want:  []string{"Thing", "Thing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

func TestExceptions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "catch thrown string",
			input: "try { throw \"boom\" } catch (e) { print(\"caught \" + e) }",
			want:  []string{"caught boom"},
		},
		{
			name:  "finally runs once on success",
			input: "try { print(\"body\") } finally { print(\"finally\") }",
			want:  []string{"body", "finally"},
		},
		{
			name:  "finally runs once after catch",
			input: "try { throw 1 } catch (e) { print(\"catch\") } finally { print(\"finally\") }",
			want:  []string{"catch", "finally"},
		},
		{
			name: "throw unwinds through calls",
			input: `fn inner() { throw "deep" }
fn middle() { inner()
print("unreachable") }
try { middle() } catch (e) { print(e) }`,
			want: []string{"deep"},
		},
		{
			name: "nested try rethrow",
			input: `try {
  try { throw "a" } catch (e) { throw e + "b" } finally { print("inner finally") }
} catch (e) { print(e) }`,
			want: []string{"inner finally", "ab"},
		},
		{
			name: "finally on return",
			input: `fn f() {
  try { return "value" } finally { print("cleanup") }
}
print(f())`,
			want: []string{"cleanup", "value"},
		},
		{
			name: "finally on return from try with a catch",
			input: `fn f() {
  try { return "value" } catch (e) { print("catch") } finally { print("cleanup") }
}
print(f())`,
			want: []string{"cleanup", "value"},
		},
		{
			name: "finally on return from catch",
			input: `fn f() {
  try { throw "x" } catch (e) { return "caught " + e } finally { print("cleanup") }
}
print(f())`,
			want: []string{"cleanup", "caught x"},
		},
		{
			name: "finally once when try with a catch completes",
			input: `fn f() {
  try { print("body") } catch (e) { print("catch") } finally { print("cleanup") }
  return "done"
}
print(f())`,
			want: []string{"body", "cleanup", "done"},
		},
		{
			name:  "division by zero is catchable",
			input: "try { print(1 / 0) } catch (e) { print(e.kind, e.message) }",
			want:  []string{"DivisionByZero division by zero"},
		},
		{
			name:  "modulo by zero is catchable",
			input: "try { print(1 % 0) } catch (e) { print(e.kind) }",
			want:  []string{"DivisionByZero"},
		},
		{
			name:  "index error is catchable",
			input: "try { [1][5] } catch (e) { print(e.kind) }",
			want:  []string{"IndexOutOfBounds"},
		},
		{
			name: "error subclass",
			input: `class NotFound extends Error {}
try { throw new NotFound("no such user") } catch (e) { print(e.message) }`,
			want: []string{"no such user"},
		},
		{
			name: "break through finally",
			input: `let i = 0
while true {
  try { if i == 2 { break }
i += 1 } finally { print("f" + i) }
}
print(i)`,
			want: []string{"f1", "f2", "f2", "2"},
		},
		{
			name: "code after try keeps running",
			input: `let log = []
try { throw "x" } catch (e) { log.push("catch") }
log.push("after")
print(log)`,
			want: []string{`["catch", "after"]`},
		},
		{
			name: "catch inside a callback",
			input: `let out = [1, 0, 2].map(fn(x) {
  try { return 10 / x } catch (e) { return -1 }
})
print(out)`,
			want: []string{"[10, -1, 5]"},
		},
		{
			name: "throw from callback reaches outer handler",
			input: `try { [1, 2].each(fn(x) { if x == 2 { throw "stop" } }) } catch (e) { print(e) }`,
			want:  []string{"stop"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runOutput(t, tt.input))
		})
	}
}

type machineState struct {
	sp, frames, handlers, iterators int
}

func TestCatchRestoresRecordedDepths(t *testing.T) {
	src := `fn dive(n) {
  if n == 0 {
    mark("bottom")
    throw "bottom"
  }
  return dive(n - 1)
}
fn guarded() {
  mark("before")
  for x in [1] {
    try {
      mark("try")
      dive(30)
    } catch (e) {
      mark("catch")
    }
  }
  mark("after")
}
guarded()`

	states := map[string]machineState{}
	var recorded handler
	machine := New(WithOutput(io.Discard))
	machine.SetGlobal("mark", ObjVal(&NativeFunction{Name: "mark", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		label := args[0].AsString()
		states[label] = machineState{sp: vm.sp, frames: vm.frameCount, handlers: len(vm.handlers), iterators: len(vm.iterators)}
		if label == "try" {
			recorded = vm.handlers[len(vm.handlers)-1]
		}
		return NullVal(), nil
	}}))
	_, err := machine.Run(compile(t, src))
	require.NoError(t, err)

	before, try, bottom, caught, after := states["before"], states["try"], states["bottom"], states["catch"], states["after"]

	// The callee and its argument sit above the recorded depth during mark
	assert.Equal(t, recorded.stackDepth+2, try.sp)
	assert.Equal(t, recorded.frameDepth, try.frames)
	assert.Equal(t, 1, try.handlers)
	assert.Equal(t, 1, try.iterators)

	assert.Equal(t, try.frames+31, bottom.frames)
	assert.Equal(t, 1, bottom.handlers)

	// The thrown value is bound one slot above the recorded depth
	assert.Equal(t, machineState{sp: recorded.stackDepth + 3, frames: recorded.frameDepth, handlers: 0, iterators: 1}, caught)
	assert.Equal(t, before, after)
	assert.Equal(t, machineState{sp: before.sp, frames: recorded.frameDepth}, after)
}

func TestImports(t *testing.T) {
	modules := map[string]string{
		"math": "fn square(x) { return x * x }\nlet loaded = true\nprint(\"math loaded\")",
	}
	resolver := ModuleResolverFunc(func(path string) (*CompiledModule, error) {
		src, ok := modules[path]
		if !ok {
			return nil, assert.AnError
		}
		return compile(t, src), nil
	})

	run := func(input string) (*VM, error) {
		machine := New(WithOutput(io.Discard), WithModuleResolver(resolver))
		_, err := machine.Run(compile(t, input))
		return machine, err
	}

	t.Run("import names", func(t *testing.T) {
		machine, err := run("import {square} from \"math\"\nprint(square(7))")
		require.NoError(t, err)
		assert.Equal(t, []string{"math loaded", "49"}, machine.Output())
	})

	t.Run("module runs once", func(t *testing.T) {
		machine, err := run("import \"math\"\nimport \"math\"\nprint(loaded)")
		require.NoError(t, err)
		assert.Equal(t, []string{"math loaded", "true"}, machine.Output())
	})

	t.Run("missing module", func(t *testing.T) {
		_, err := run("import \"nope\"")
		require.Error(t, err)
		assert.Equal(t, ImportError, KindOf(err))
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := run("import {cube} from \"math\"")
		require.Error(t, err)
		assert.Equal(t, ImportError, KindOf(err))
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := runSource(t, "import \"math\"")
		assert.Equal(t, ImportError, KindOf(err))
	})
}

func TestHostInterop(t *testing.T) {
	t.Run("globals set by host", func(t *testing.T) {
		machine := New(WithOutput(io.Discard))
		machine.SetGlobal("answer", IntVal(42))
		_, err := machine.Run(compile(t, "let doubled = answer * 2"))
		require.NoError(t, err)
		v, ok := machine.GetGlobal("doubled")
		require.True(t, ok)
		assert.Equal(t, int64(84), v.AsInt())
	})

	t.Run("call script function from Go", func(t *testing.T) {
		machine := New(WithOutput(io.Discard))
		_, err := machine.Run(compile(t, "fn add(a, b) { return a + b }"))
		require.NoError(t, err)
		fn, ok := machine.GetGlobal("add")
		require.True(t, ok)
		v, err := machine.Call(fn, IntVal(2), IntVal(3))
		require.NoError(t, err)
		assert.Equal(t, int64(5), v.AsInt())
	})

	t.Run("native function", func(t *testing.T) {
		machine := New(WithOutput(io.Discard))
		machine.SetGlobal("shout", ObjVal(&NativeFunction{Name: "shout", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
			return StringVal(args[0].String() + "!"), nil
		}}))
		_, err := machine.Run(compile(t, "print(shout(\"hey\"))"))
		require.NoError(t, err)
		assert.Equal(t, []string{"hey!"}, machine.Output())
	})

	t.Run("globals persist across runs", func(t *testing.T) {
		machine := New(WithOutput(io.Discard))
		_, err := machine.Run(compile(t, "let n = 1"))
		require.NoError(t, err)
		c := NewCompiler()
		c.DeclareGlobal("n", false)
		mod, err := c.Compile(parse(t, "n += 1\nprint(n)"))
		require.NoError(t, err)
		_, err = machine.Run(mod)
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, machine.Output())
	})
}

func TestCancellation(t *testing.T) {
	mod := compile(t, "while true { }")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	machine := New(WithOutput(io.Discard), WithContext(ctx))
	_, err := machine.Run(mod)
	require.Error(t, err)
	assert.Equal(t, Cancelled, KindOf(err))
}

func TestCancellationIsNotCatchable(t *testing.T) {
	mod := compile(t, "try { while true { } } catch (e) { print(\"caught\") }")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	machine := New(WithOutput(io.Discard), WithContext(ctx))
	_, err := machine.Run(mod)
	assert.Equal(t, Cancelled, KindOf(err))
	assert.Empty(t, machine.Output())
}
