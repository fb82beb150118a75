package cli

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/backend"
	"github.com/solisoft/soli/internal/config"
	"github.com/solisoft/soli/internal/server"
)

type result struct {
	out, err string
	code     int
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errb bytes.Buffer
	code := Run(append([]string{"soli"}, args...), Streams{In: strings.NewReader(stdin), Out: &out, Err: &errb})
	return result{out: out.String(), err: errb.String(), code: code}
}

// project writes a config and the given files into a temp dir and returns
// the dir and the config path.
func project(t *testing.T, configYAML string, files map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "soli.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("cache:\n  path: cache.db\nlog:\n  level: warn\n"+configYAML), 0o644))
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir, cfg
}

func TestVersionAndUsage(t *testing.T) {
	res := runCLI(t, "", "version")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "soli "+config.Version+"\n", res.out)

	res = runCLI(t, "", "--version")
	assert.Equal(t, "soli "+config.Version+"\n", res.out)

	res = runCLI(t, "")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.err, "usage: soli")

	res = runCLI(t, "", "help")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.out, "commands:")

	res = runCLI(t, "", "nope")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.err, "unknown command 'nope'")

	res = runCLI(t, "", "run")
	assert.Equal(t, exitUsage, res.code)

	res = runCLI(t, "", "run", "-h")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.err, "-no-cache")
}

func TestRun(t *testing.T) {
	dir, cfg := project(t, "", map[string]string{
		"main.sl":     "import { square } from \"lib/math\"\nprint(square(7))",
		"lib/math.sl": "fn square(x) { return x * x }",
		"bad.sl":      "let a = 1\n\nprint(a / 0)",
		"syntax.sl":   "let = 1",
	})

	res := runCLI(t, "", "run", "-config", cfg, filepath.Join(dir, "main.sl"))
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "49\n", res.out)

	res = runCLI(t, "", "run", "-config", cfg, filepath.Join(dir, "bad.sl"))
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "DivisionByZero")
	assert.Contains(t, res.err, "bad.sl:3")

	res = runCLI(t, "", "run", "-config", cfg, filepath.Join(dir, "syntax.sl"))
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "[P001]")

	res = runCLI(t, "", "run", "-config", cfg, filepath.Join(dir, "missing.sl"))
	assert.Equal(t, exitError, res.code)
}

func TestRunShorthandFindsConfig(t *testing.T) {
	dir, _ := project(t, "vm:\n  echo: false\n", map[string]string{"quiet.sl": "print(\"hidden\")"})
	t.Chdir(dir)

	res := runCLI(t, "", "quiet.sl")
	require.Equal(t, 0, res.code, res.err)
	assert.Empty(t, res.out)
	assert.FileExists(t, filepath.Join(dir, "cache.db"))
}

func TestRunStdinAndTimeout(t *testing.T) {
	res := runCLI(t, "print(5)", "run", "-no-cache", "-")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "5\n", res.out)

	res = runCLI(t, "while true { }", "run", "-no-cache", "-timeout", "20ms", "-")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "Cancelled")
}

func TestEval(t *testing.T) {
	res := runCLI(t, "", "eval", "-no-cache", "1 + 2")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "3\n", res.out)

	res = runCLI(t, "", "-e", "-no-cache", "let a = 2\nprint(a)\na * 21")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "2\n42\n", res.out)

	res = runCLI(t, "", "eval", "-no-cache", "print(\"only output\")")
	assert.Equal(t, "only output\n", res.out)

	res = runCLI(t, "", "eval", "-no-cache", "nope()")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "UndefinedVariable")
}

func TestBuildAndRunBytecode(t *testing.T) {
	dir, cfg := project(t, "", map[string]string{
		"app.sl": "class Greeter { fn hi(n) { return \"hi \" + n } }\nprint(new Greeter().hi(\"bob\"))",
	})
	src := filepath.Join(dir, "app.sl")

	res := runCLI(t, "", "build", src)
	require.Equal(t, 0, res.code, res.err)
	assert.Contains(t, res.out, "Compiled")
	compiled := filepath.Join(dir, "app.slc")
	require.FileExists(t, compiled)

	res = runCLI(t, "", "run", "-config", cfg, compiled)
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "hi bob\n", res.out)

	fromSource := runCLI(t, "", "disasm", src)
	require.Equal(t, 0, fromSource.code, fromSource.err)
	assert.Contains(t, fromSource.out, "== <script> ==")
	assert.Contains(t, fromSource.out, "== Greeter.hi ==")

	fromBytecode := runCLI(t, "", "disasm", compiled)
	require.Equal(t, 0, fromBytecode.code, fromBytecode.err)
	assert.Equal(t, fromSource.out, fromBytecode.out)

	out := filepath.Join(dir, "custom.slc")
	res = runCLI(t, "", "build", "-o", out, src)
	require.Equal(t, 0, res.code, res.err)
	assert.FileExists(t, out)

	res = runCLI(t, "", "build", filepath.Join(dir, "nope.sl"))
	assert.Equal(t, exitError, res.code)
}

func TestCacheCommand(t *testing.T) {
	dir, cfg := project(t, "", map[string]string{"one.sl": "print(1)"})

	res := runCLI(t, "", "run", "-config", cfg, filepath.Join(dir, "one.sl"))
	require.Equal(t, 0, res.code, res.err)

	res = runCLI(t, "", "cache", "-config", cfg, "info")
	require.Equal(t, 0, res.code, res.err)
	assert.Contains(t, res.out, "entries: 1")
	assert.Contains(t, res.out, filepath.Join(dir, "cache.db"))

	res = runCLI(t, "", "cache", "-config", cfg, "prune")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "removed 0 stale entries\n", res.out)

	res = runCLI(t, "", "cache", "-config", cfg, "clear")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "removed 1 entries\n", res.out)

	res = runCLI(t, "", "cache", "-config", cfg, "bogus")
	assert.Equal(t, exitUsage, res.code)

	res = runCLI(t, "", "cache", "-no-cache")
	assert.Equal(t, exitError, res.code)
}

func TestRemote(t *testing.T) {
	srv, err := server.New(backend.NewVM(backend.WithOutput(nil)), nil, zerolog.Nop(), config.ServerConfig{})
	require.NoError(t, err)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dir, _ := project(t, "", map[string]string{
		"ok.sl":   "print(\"remote\")",
		"fail.sl": "throw \"x\"",
	})

	res := runCLI(t, "", "run", "-remote", lis.Addr().String(), filepath.Join(dir, "ok.sl"))
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "remote\n", res.out)

	res = runCLI(t, "", "run", "-remote", lis.Addr().String(), filepath.Join(dir, "fail.sl"))
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "UncaughtException")

	res = runCLI(t, "", "disasm", "-remote", lis.Addr().String(), filepath.Join(dir, "ok.sl"))
	require.Equal(t, 0, res.code, res.err)
	assert.Contains(t, res.out, "== <script> ==")
}

func TestFmt(t *testing.T) {
	dir, _ := project(t, "", map[string]string{
		"messy.sl":     "let x=1+2\nfn f(a){return a*2}",
		"tidy.sl":      "let x = 1\n",
		"commented.sl": "// keep me\nlet y=2",
		"broken.sl":    "let = 1",
	})
	messy := filepath.Join(dir, "messy.sl")
	want := "let x = 1 + 2\n\nfn f(a) {\n    return a * 2\n}\n"

	res := runCLI(t, "", "fmt", messy)
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, want, res.out)

	res = runCLI(t, "", "fmt", "-l", messy, filepath.Join(dir, "tidy.sl"))
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, messy+"\n", res.out)

	res = runCLI(t, "", "fmt", "-w", messy)
	require.Equal(t, 0, res.code, res.err)
	data, err := os.ReadFile(messy)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	commented := filepath.Join(dir, "commented.sl")
	res = runCLI(t, "", "fmt", "-w", commented)
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "has comments")
	data, err = os.ReadFile(commented)
	require.NoError(t, err)
	assert.Equal(t, "// keep me\nlet y=2", string(data))

	res = runCLI(t, "", "fmt", filepath.Join(dir, "broken.sl"))
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.err, "[P001]")

	res = runCLI(t, "let z=3", "fmt", "-")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "let z = 3\n", res.out)
}
