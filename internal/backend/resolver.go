package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/cache"
	"github.com/solisoft/soli/internal/config"
	"github.com/solisoft/soli/internal/vm"
)

// FileResolver loads imported modules from source files under a list of
// search roots. The extension may be left off: `import "lib/math"` finds
// lib/math.sl.
type FileResolver struct {
	roots  []string
	cache  *cache.ModuleCache
	logger zerolog.Logger
}

// NewFileResolver searches roots in order. c may be nil.
func NewFileResolver(roots []string, c *cache.ModuleCache, logger zerolog.Logger) *FileResolver {
	return &FileResolver{roots: roots, cache: c, logger: logger}
}

// Resolve implements vm.ModuleResolver.
func (r *FileResolver) Resolve(path string) (*vm.CompiledModule, error) {
	file, err := r.find(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", file, err)
	}
	r.logger.Debug().Str("module", path).Str("file", file).Msg("resolved import")
	return CompileSource(string(src), file, r.cache)
}

func (r *FileResolver) find(path string) (string, error) {
	var candidates []string
	if filepath.IsAbs(path) {
		candidates = []string{path}
	} else {
		for _, root := range r.roots {
			candidates = append(candidates, filepath.Join(root, path))
		}
	}

	for _, c := range candidates {
		if config.HasSourceExt(c) {
			if isFile(c) {
				return c, nil
			}
			continue
		}
		for _, ext := range config.SourceFileExtensions {
			if isFile(c + ext) {
				return c + ext, nil
			}
		}
	}
	return "", fmt.Errorf("module %q not found (searched %s)", path, strings.Join(r.roots, ", "))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
