package soli_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/vm"
	soli "github.com/solisoft/soli/pkg/embed"
)

// User is a Go struct handed to scripts by value
type User struct {
	Name  string
	Score int
}

func (u User) Status() string {
	return fmt.Sprintf("User %s has %d points", u.Name, u.Score)
}

func TestEmbedAPI(t *testing.T) {
	s := soli.New()

	// 1. Bind a simple function
	require.NoError(t, s.Bind("double", func(x int) int { return x * 2 }))

	// 2. Pass a struct; it arrives as a map
	require.NoError(t, s.Set("player", User{Name: "Alice", Score: 10}))

	// 3. Call back into Go with script values
	require.NoError(t, s.Bind("status", func(u User) string { return u.Status() }))

	res, err := s.Eval(`
let doubled = double(21)
let name = player["Name"]
player["Score"] += 5;
[doubled, name, status(player)]
`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{42, "Alice", "User Alice has 15 points"}, res)

	name, err := s.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

func TestGlobalsPersist(t *testing.T) {
	s := soli.New()
	_, err := s.Eval("let counter = 1\nfn add(a, b) { return a + b }")
	require.NoError(t, err)

	res, err := s.Eval("counter = add(counter, 1)\ncounter")
	require.NoError(t, err)
	assert.Equal(t, 2, res)

	sum, err := s.Call("add", 40, 2)
	require.NoError(t, err)
	assert.Equal(t, 42, sum)

	joined, err := s.Call("add", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ab", joined)

	_, err = s.Call("missing")
	assert.EqualError(t, err, "function 'missing' not found")

	_, err = s.Get("nope")
	assert.Error(t, err)
}

func TestHostFunctions(t *testing.T) {
	s := soli.New()
	require.NoError(t, s.Bind("divmod", func(a, b int) (int, int) { return a / b, a % b }))
	require.NoError(t, s.Bind("sum", func(xs ...int) int {
		total := 0
		for _, x := range xs {
			total += x
		}
		return total
	}))
	require.NoError(t, s.Bind("fail", func(msg string) (int, error) { return 0, errors.New(msg) }))
	require.NoError(t, s.Bind("half", func(f float64) float64 { return f / 2 }))
	require.NoError(t, s.Bind("double", func(x int) int { return x * 2 }))

	tests := []struct {
		name string
		code string
		want interface{}
	}{
		{"multiple results", "divmod(7, 2)", []interface{}{3, 1}},
		{"variadic", "sum(1, 2, 3)", 6},
		{"variadic empty", "sum()", 0},
		{"int widens to float", "half(3)", 1.5},
		{"host error is catchable", "let kind = \"\"\ntry { fail(\"nope\") } catch (e) { kind = e.kind }\nkind", "HostError"},
		{"host error message", "let m = \"\"\ntry { fail(\"nope\") } catch (e) { m = e.message }\nm", "fail: nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Eval(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}

	failures := []struct {
		name string
		code string
		kind vm.ErrorKind
	}{
		{"uncaught host error", "fail(\"boom\")", vm.HostError},
		{"bad argument type", "double(\"x\")", vm.TypeError},
		{"arity", "double(1, 2)", vm.ArityMismatch},
		{"bindings are constant", "double = 1", vm.ConstAssignment},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Eval(tt.code)
			require.Error(t, err)
			assert.Equal(t, tt.kind, vm.KindOf(err))
		})
	}
}

func TestGetInto(t *testing.T) {
	s := soli.New()
	_, err := s.Eval(`let cfg = {"Name": "api", "Port": 8080, "Tags": ["a", "b"], "Ratio": 0.5}`)
	require.NoError(t, err)

	var cfg struct {
		Name  string
		Port  int
		Tags  []string
		Ratio float64
		Extra bool
	}
	require.NoError(t, s.GetInto("cfg", &cfg))
	assert.Equal(t, "api", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.Equal(t, 0.5, cfg.Ratio)
	assert.False(t, cfg.Extra)

	var port int8
	assert.Error(t, s.GetInto("cfg", &port))
	assert.Error(t, s.GetInto("cfg", cfg))
}

func TestInstancesAndMaps(t *testing.T) {
	s := soli.New()
	_, err := s.Eval("class Point { x = 1\n y = 2 }\nlet p = new Point()\nlet m = {1: \"one\"}")
	require.NoError(t, err)

	p, err := s.Get("p")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"x": 1, "y": 2}, p)

	m, err := s.Get("m")
	require.NoError(t, err)
	assert.Equal(t, map[interface{}]interface{}{1: "one"}, m)

	fn, err := s.Get("Point")
	require.NoError(t, err)
	assert.IsType(t, vm.Value{}, fn)
}

func TestOutput(t *testing.T) {
	var buf bytes.Buffer
	s := soli.New(soli.WithOutput(&buf))
	_, err := s.Eval("print(\"hi\")\nprint(1, 2)")
	require.NoError(t, err)
	assert.Equal(t, "hi\n1 2\n", buf.String())
	assert.Equal(t, []string{"hi", "1 2"}, s.Output())
}

func TestErrors(t *testing.T) {
	s := soli.New()

	_, err := s.Eval("let = 1")
	var diag *diagnostics.DiagnosticError
	require.True(t, errors.As(err, &diag))
	assert.Equal(t, "<eval>", diag.File)

	_, err = s.Eval("[][3]")
	assert.Equal(t, vm.IndexOutOfBounds, vm.KindOf(err))

	slow := soli.New(soli.WithTimeout(20 * time.Millisecond))
	_, err = slow.Eval("while true { }")
	assert.Equal(t, vm.Cancelled, vm.KindOf(err))

	shallow := soli.New(soli.WithMaxFrames(4))
	_, err = shallow.Eval("fn f(n) { return f(n + 1) }\nf(0)")
	assert.Equal(t, vm.StackOverflow, vm.KindOf(err))
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "lib", "greet.sl"),
		[]byte("fn greeting() { return \"Hello from Import\" }"), 0o644))

	mainPath := filepath.Join(tmpDir, "main.sl")
	require.NoError(t, os.WriteFile(mainPath,
		[]byte("import { greeting } from \"lib/greet\"\nlet message = greeting()"), 0o644))

	s := soli.New()
	require.NoError(t, s.LoadFile(mainPath))

	res, err := s.Get("message")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Import", res)

	assert.Error(t, s.LoadFile(filepath.Join(tmpDir, "missing.sl")))
}
