// Package backend runs compiled soli programs as the last pipeline stage
// and wires the standard pipeline around it.
package backend

import (
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/vm"
)

// Backend is the interface for execution backends
type Backend interface {
	// Run executes the module in ctx.Compiled (compiling ctx.AstRoot when
	// it is unset) and returns the script's result
	Run(ctx *pipeline.PipelineContext) (vm.Value, error)

	// Name returns the backend name for display
	Name() string
}
