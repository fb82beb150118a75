package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/solisoft/soli/internal/backend"
	"github.com/solisoft/soli/internal/cache"
	"github.com/solisoft/soli/internal/config"
)

// commonFlags are accepted by every command that compiles or runs code.
type commonFlags struct {
	configPath string
	noCache    bool
	logLevel   string
	timeout    time.Duration
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (default: nearest soli.yaml or soli.toml)")
	fs.BoolVar(&c.noCache, "no-cache", false, "disable the compiled module cache")
	fs.StringVar(&c.logLevel, "log-level", "", "override log.level")
	fs.DurationVar(&c.timeout, "timeout", 0, "cancel a run after this long (overrides vm.timeout_ms)")
}

// env is the configured runtime shared by the commands.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	cache  *cache.ModuleCache
	store  *cache.SQLiteStore
}

func newEnv(flags commonFlags, errW io.Writer) (*env, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			cfg, err = config.FindAndLoad(wd)
		}
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel()
	if flags.logLevel != "" {
		if level, err = zerolog.ParseLevel(flags.logLevel); err != nil {
			return nil, fmt.Errorf("-log-level: %w", err)
		}
	}
	if flags.timeout > 0 {
		cfg.VM.TimeoutMS = int(flags.timeout / time.Millisecond)
	}

	e := &env{cfg: cfg, logger: newLogger(cfg.Log, level, errW)}
	if !cfg.Cache.Enabled || flags.noCache {
		return e, nil
	}

	opts := []cache.Option{cache.WithLogger(e.logger), cache.WithMemoryEntries(cfg.Cache.MemoryEntries)}
	if path := cfg.CachePath(); path != "" {
		store, err := cache.OpenSQLite(path)
		if err != nil {
			// Fall back to the memory tier
			e.logger.Warn().Err(err).Str("path", path).Msg("module cache unavailable")
		} else {
			e.store = store
			opts = append(opts, cache.WithStore(store))
		}
	}
	e.cache = cache.New(opts...)
	return e, nil
}

func (e *env) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("closing module cache")
		}
	}
}

// importRoots puts the script's directory ahead of the configured paths.
func (e *env) importRoots(file string) []string {
	roots := e.cfg.ResolvedImportPaths()
	if file == "" || file == "-" {
		return roots
	}
	if abs, err := filepath.Abs(file); err == nil {
		return append([]string{filepath.Dir(abs)}, roots...)
	}
	return roots
}

// backend builds a VM backend writing print output to out.
func (e *env) backend(out io.Writer, file string) *backend.VMBackend {
	if !e.cfg.VM.Echo {
		out = io.Discard
	}
	return backend.NewVM(
		backend.WithMaxFrames(e.cfg.VM.MaxFrames),
		backend.WithTimeout(time.Duration(e.cfg.VM.TimeoutMS)*time.Millisecond),
		backend.WithOutput(out),
		backend.WithLogger(e.logger),
		backend.WithResolver(backend.NewFileResolver(e.importRoots(file), e.cache, e.logger)),
	)
}
