package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/ast"
	"github.com/solisoft/soli/internal/backend"
	"github.com/solisoft/soli/internal/config"
	"github.com/solisoft/soli/internal/lexer"
	"github.com/solisoft/soli/internal/parser"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/prettyprinter"
	"github.com/solisoft/soli/internal/server"
	"github.com/solisoft/soli/internal/vm"
)

func newFlagSet(name string, s Streams) *flag.FlagSet {
	fs := flag.NewFlagSet(commandName+" "+name, flag.ContinueOnError)
	fs.SetOutput(s.Err)
	return fs
}

// parseFlags reports the exit status to return when parsing stops the
// command, or -1 to continue.
func parseFlags(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitUsage
	}
	return -1
}

// readInput reads a file argument, "-" meaning stdin.
func readInput(path string, s Streams) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(s.In)
	}
	return os.ReadFile(path)
}

// loadContext prepares a pipeline context for path: bytecode files are
// decoded into ctx.Compiled, sources are left for the front end.
func loadContext(path string, s Streams) (*pipeline.PipelineContext, error) {
	data, err := readInput(path, s)
	if err != nil {
		return nil, err
	}
	file := path
	if path == "-" {
		file = "<stdin>"
	} else if abs, err := filepath.Abs(path); err == nil {
		file = abs
	}

	if strings.HasSuffix(path, config.BytecodeFileExt) {
		mod, err := vm.DecodeModule(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ctx := pipeline.NewPipelineContext("")
		ctx.FilePath = file
		ctx.Compiled = mod
		return ctx, nil
	}
	ctx := pipeline.NewPipelineContext(string(data))
	ctx.FilePath = file
	return ctx, nil
}

func printErrors(ctx *pipeline.PipelineContext, errW io.Writer) {
	for _, err := range ctx.Errors {
		fmt.Fprintln(errW, err.Error())
	}
}

func runCommand(args []string, s Streams) int {
	fs := newFlagSet("run", s)
	var common commonFlags
	common.register(fs)
	remote := fs.String("remote", "", "run on the executor at this address instead of locally")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(s.Err, "usage: soli run [flags] <file>")
		return exitUsage
	}
	path := fs.Arg(0)

	if *remote != "" {
		return runRemote(*remote, path, s)
	}

	e, err := newEnv(common, s.Err)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	defer e.Close()

	ctx, err := loadContext(path, s)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}

	p := backend.NewPipeline(e.backend(s.Out, path), e.cache, e.logger)
	ctx = p.Run(ctx)
	if ctx.Failed() {
		printErrors(ctx, s.Err)
		return exitError
	}
	return 0
}

func runRemote(addr, path string, s Streams) int {
	src, err := readInput(path, s)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	client, err := server.Dial(addr)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	defer client.Close()

	res, err := client.Execute(context.Background(), string(src), path)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	for _, line := range res.Output {
		fmt.Fprintln(s.Out, line)
	}
	if res.Error != "" {
		fmt.Fprintln(s.Err, res.Error)
		return exitError
	}
	return 0
}

func evalCommand(args []string, s Streams) int {
	fs := newFlagSet("eval", s)
	var common commonFlags
	common.register(fs)
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(s.Err, "usage: soli eval [flags] <code>")
		return exitUsage
	}

	e, err := newEnv(common, s.Err)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	defer e.Close()

	ctx := pipeline.NewPipelineContext(strings.Join(fs.Args(), " "))
	ctx.FilePath = "<eval>"
	p := pipeline.New(
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&backend.CompileProcessor{Logger: e.logger, ReturnLast: true},
		backend.NewExecutionProcessor(e.backend(s.Out, ""), e.logger),
	)
	ctx = p.Run(ctx)
	if ctx.Failed() {
		printErrors(ctx, s.Err)
		return exitError
	}
	if result, ok := ctx.Result.(vm.Value); ok && !result.IsNull() {
		fmt.Fprintln(s.Out, result.Inspect())
	}
	return 0
}

func buildCommand(args []string, s Streams) int {
	fs := newFlagSet("build", s)
	output := fs.String("o", "", "output path (default: the source path with "+config.BytecodeFileExt+")")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(s.Err, "usage: soli build [-o out.slc] <file>")
		return exitUsage
	}
	sourcePath := fs.Arg(0)

	src, err := os.ReadFile(sourcePath)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	mod, err := backend.CompileSource(string(src), filepath.Base(sourcePath), nil)
	if err != nil {
		fmt.Fprintf(s.Err, "Compilation error: %s\n", err)
		return exitError
	}
	data, err := vm.EncodeModule(mod)
	if err != nil {
		fmt.Fprintf(s.Err, "Serialization error: %s\n", err)
		return exitError
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + config.BytecodeFileExt
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		fmt.Fprintf(s.Err, "Error writing bytecode file: %s\n", err)
		return exitError
	}
	fmt.Fprintf(s.Out, "Compiled %s -> %s (%d bytes)\n", sourcePath, outputPath, len(data))
	return 0
}

func disasmCommand(args []string, s Streams) int {
	fs := newFlagSet("disasm", s)
	remote := fs.String("remote", "", "disassemble on the executor at this address")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(s.Err, "usage: soli disasm <file>")
		return exitUsage
	}
	path := fs.Arg(0)

	if *remote != "" {
		src, err := readInput(path, s)
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
			return exitError
		}
		client, err := server.Dial(*remote)
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
			return exitError
		}
		defer client.Close()
		listing, err := client.Disassemble(context.Background(), string(src))
		if err != nil {
			fmt.Fprintln(s.Err, err)
			return exitError
		}
		fmt.Fprint(s.Out, listing)
		return 0
	}

	ctx, err := loadContext(path, s)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	ctx = pipeline.New(backend.Frontend(nil, zerolog.Nop())...).Run(ctx)
	if ctx.Failed() {
		printErrors(ctx, s.Err)
		return exitError
	}
	listing, err := backend.NewVM().Disassemble(ctx)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	fmt.Fprint(s.Out, listing)
	return 0
}

func fmtCommand(args []string, s Streams) int {
	fs := newFlagSet("fmt", s)
	write := fs.Bool("w", false, "rewrite files in place instead of printing them")
	list := fs.Bool("l", false, "only list files whose formatting differs")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(s.Err, "usage: soli fmt [-w] [-l] <file>...")
		return exitUsage
	}

	status := 0
	for _, path := range fs.Args() {
		if err := formatFile(path, *write, *list, s); err != nil {
			fmt.Fprintln(s.Err, err)
			status = exitError
		}
	}
	return status
}

func formatFile(path string, write, list bool, s Streams) error {
	src, err := readInput(path, s)
	if err != nil {
		return err
	}
	ctx := pipeline.NewPipelineContext(string(src))
	ctx.FilePath = path
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	if ctx.Failed() {
		return ctx.Errors[0]
	}
	formatted := prettyprinter.Format(ctx.AstRoot.(*ast.Program))

	switch {
	case list:
		if formatted != string(src) {
			fmt.Fprintln(s.Out, path)
		}
	case write && path != "-":
		if formatted == string(src) {
			return nil
		}
		l := lexer.New(string(src))
		l.Tokenize()
		if l.Comments() > 0 {
			return fmt.Errorf("%s: has comments, which formatting would drop; not rewritten", path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(formatted), info.Mode().Perm())
	default:
		fmt.Fprint(s.Out, formatted)
	}
	return nil
}

func serveCommand(args []string, s Streams) int {
	fs := newFlagSet("serve", s)
	var common commonFlags
	common.register(fs)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}

	e, err := newEnv(common, s.Err)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	defer e.Close()
	if *addr != "" {
		e.cfg.Server.Addr = *addr
	}

	srv, err := server.New(e.backend(io.Discard, ""), e.cache, e.logger, e.cfg.Server)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()

	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	return 0
}

func cacheCommand(args []string, s Streams) int {
	fs := newFlagSet("cache", s)
	var common commonFlags
	common.register(fs)
	if code := parseFlags(fs, args); code >= 0 {
		return code
	}
	op := "info"
	if fs.NArg() > 0 {
		op = fs.Arg(0)
	}

	e, err := newEnv(common, s.Err)
	if err != nil {
		fmt.Fprintf(s.Err, "Error: %s\n", err)
		return exitError
	}
	defer e.Close()
	if e.store == nil {
		fmt.Fprintln(s.Err, "no persistent module cache configured")
		return exitError
	}

	ctx := context.Background()
	switch op {
	case "info":
		n, err := e.store.Len(ctx)
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
			return exitError
		}
		fmt.Fprintf(s.Out, "path: %s\nentries: %d\nbytecode: %s\n", e.store.Path(), n, vm.BytecodeVersion)
	case "prune":
		n, err := e.store.Prune(ctx, vm.BytecodeVersion+"-")
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
			return exitError
		}
		fmt.Fprintf(s.Out, "removed %d stale entries\n", n)
	case "clear":
		n, err := e.store.Clear(ctx)
		if err != nil {
			fmt.Fprintf(s.Err, "Error: %s\n", err)
			return exitError
		}
		fmt.Fprintf(s.Out, "removed %d entries\n", n)
	default:
		fmt.Fprintf(s.Err, "unknown cache operation '%s' (want info, prune or clear)\n", op)
		return exitUsage
	}
	return 0
}
