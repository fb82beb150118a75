package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/tidwall/tinylru"
	"github.com/zeebo/xxh3"

	"github.com/solisoft/soli/internal/vm"
)

// DefaultMemoryEntries is the LRU size when none is configured.
const DefaultMemoryEntries = 256

// Key names the cache entry for source under the current bytecode version.
func Key(source string) string {
	return fmt.Sprintf("%s-%016x", vm.BytecodeVersion, xxh3.HashString(source))
}

// Stats counts lookups since the cache was created.
type Stats struct {
	MemoryHits uint64
	StoreHits  uint64
	Misses     uint64
}

// ModuleCache maps source text to compiled modules. It is safe for
// concurrent use. Cached modules are shared and must not be mutated.
type ModuleCache struct {
	mem    tinylru.LRU // key -> *vm.CompiledModule
	store  Store       // nil for memory only
	logger zerolog.Logger

	memHits   atomic.Uint64
	storeHits atomic.Uint64
	misses    atomic.Uint64
}

// Option configures a ModuleCache.
type Option func(*ModuleCache)

// WithStore adds a persistent tier behind the LRU.
func WithStore(s Store) Option {
	return func(c *ModuleCache) { c.store = s }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *ModuleCache) { c.logger = l }
}

// WithMemoryEntries sizes the LRU tier.
func WithMemoryEntries(n int) Option {
	return func(c *ModuleCache) {
		if n > 0 {
			c.mem.Resize(n)
		}
	}
}

// New creates a ModuleCache.
func New(opts ...Option) *ModuleCache {
	c := &ModuleCache{logger: zerolog.Nop()}
	c.mem.Resize(DefaultMemoryEntries)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the module compiled from source, if cached. A module found
// only in the store is decoded and promoted into memory. Store failures
// are logged and reported as misses.
func (c *ModuleCache) Get(ctx context.Context, source string) (*vm.CompiledModule, bool) {
	key := Key(source)
	if v, ok := c.mem.Get(key); ok {
		c.memHits.Add(1)
		return v.(*vm.CompiledModule), true
	}

	if c.store != nil {
		data, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			mod, err := vm.DecodeModule(data)
			if err == nil {
				c.mem.Set(key, mod)
				c.storeHits.Add(1)
				c.logger.Debug().Str("key", key).Msg("module cache store hit")
				return mod, true
			}
			c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		case !errors.Is(err, ErrNotFound):
			c.logger.Warn().Err(err).Str("key", key).Msg("module cache store read failed")
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put records mod as the compilation of source in both tiers.
func (c *ModuleCache) Put(ctx context.Context, source string, mod *vm.CompiledModule) error {
	key := Key(source)
	c.mem.Set(key, mod)
	if c.store == nil {
		return nil
	}
	data, err := vm.EncodeModule(mod)
	if err != nil {
		return fmt.Errorf("encoding module for cache: %w", err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return err
	}
	c.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("module cached")
	return nil
}

// Len is the number of modules held in memory.
func (c *ModuleCache) Len() int {
	return c.mem.Len()
}

// Stats returns the lookup counters.
func (c *ModuleCache) Stats() Stats {
	return Stats{
		MemoryHits: c.memHits.Load(),
		StoreHits:  c.storeHits.Load(),
		Misses:     c.misses.Load(),
	}
}

// Close closes the persistent tier, if any.
func (c *ModuleCache) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
