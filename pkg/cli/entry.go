// Package cli implements the soli command line.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/solisoft/soli/internal/config"
)

const (
	exitError = 1
	exitUsage = 2

	commandName = "soli"
)

const usage = `usage: soli <command> [flags] [args]

commands:
  run <file>       compile and run a .sl file (or a .slc built by soli build)
  eval <code>      run code and print the value of its last expression
  build <file>     compile a .sl file to .slc bytecode
  disasm <file>    print the bytecode listing of a .sl or .slc file
  fmt <file>...    print or rewrite (-w) files in canonical layout
  serve            start the gRPC executor service
  cache <op>       inspect the module cache: info, prune, clear
  version          print the version

"soli <file>" is short for "soli run <file>"; "soli -e <code>" for "soli eval".
Run "soli <command> -h" for the flags of a command.
`

// Streams are the process's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type command func(args []string, s Streams) int

var commands = map[string]command{
	"run":     runCommand,
	"eval":    evalCommand,
	"build":   buildCommand,
	"disasm":  disasmCommand,
	"fmt":     fmtCommand,
	"serve":   serveCommand,
	"cache":   cacheCommand,
	"version": versionCommand,
}

// Run executes the command line args (args[0] is the program name) and
// returns the process exit status.
func Run(args []string, s Streams) (statusCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(s.Err, "Internal error: %v\n", r)
			fmt.Fprintln(s.Err, "This is a bug. Please report it.")
			statusCode = exitError
		}
	}()

	if len(args) < 2 {
		fmt.Fprint(s.Err, usage)
		return exitUsage
	}
	sub, rest := args[1], args[2:]

	switch sub {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(s.Out, usage)
		return 0
	case "-v", "-version", "--version":
		return versionCommand(rest, s)
	case "-e":
		return evalCommand(rest, s)
	}

	if cmd, ok := commands[sub]; ok {
		return cmd(rest, s)
	}
	if config.HasSourceExt(sub) || strings.HasSuffix(sub, config.BytecodeFileExt) || sub == "-" {
		return runCommand(args[1:], s)
	}

	fmt.Fprintf(s.Err, "unknown command '%s'\n\n%s", sub, usage)
	return exitUsage
}

func versionCommand(_ []string, s Streams) int {
	fmt.Fprintln(s.Out, commandName+" "+config.Version)
	return 0
}
