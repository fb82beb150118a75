package cache

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solisoft/soli/internal/vm"
)

// module builds a tiny script returning the constant v
func module(v int64) *vm.CompiledModule {
	proto := &vm.FunctionProto{Name: "<script>", Chunk: vm.NewChunk()}
	idx := proto.Chunk.AddConstant(vm.IntVal(v))
	proto.Chunk.Emit(vm.Instruction{Op: vm.OP_CONST, A: int32(idx)}, 1)
	proto.Chunk.Emit(vm.Instruction{Op: vm.OP_RETURN}, 1)
	return &vm.CompiledModule{Main: proto, File: "test.sl"}
}

func TestKey(t *testing.T) {
	a := Key("print(1)")
	assert.True(t, strings.HasPrefix(a, vm.BytecodeVersion+"-"))
	assert.Len(t, a, len(vm.BytecodeVersion)+1+16)
	assert.Equal(t, a, Key("print(1)"))
	assert.NotEqual(t, a, Key("print(2)"))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, path, store.Path())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "k1", []byte("one")))
	require.NoError(t, store.Put(ctx, "k1", []byte("uno")))
	require.NoError(t, store.Put(ctx, "old-k2", []byte("two")))

	data, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), data)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pruned, err := store.Prune(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	require.NoError(t, store.Delete(ctx, "k1"))
	require.NoError(t, store.Delete(ctx, "k1"))
	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, store.Put(ctx, "a", []byte("1")))
	require.NoError(t, store.Put(ctx, "b", []byte("2")))
	cleared, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestModuleCacheMemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := New(WithMemoryEntries(2))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	modA := module(1)
	require.NoError(t, c.Put(ctx, "a", modA))
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Same(t, modA, got)

	require.NoError(t, c.Put(ctx, "b", module(2)))
	require.NoError(t, c.Put(ctx, "c", module(3)))
	assert.Equal(t, 2, c.Len())

	// "a" was least recently used when "c" arrived
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)

	assert.Equal(t, Stats{MemoryHits: 2, Misses: 1}, c.Stats())
	assert.NoError(t, c.Close())
}

func TestModuleCacheStoreTier(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	first := New(WithStore(store))
	require.NoError(t, first.Put(ctx, "return 7", module(7)))
	require.NoError(t, first.Close())

	// A fresh process sees the entry through the store only
	store, err = OpenSQLite(path)
	require.NoError(t, err)
	second := New(WithStore(store))
	defer second.Close()

	mod, ok := second.Get(ctx, "return 7")
	require.True(t, ok)
	assert.Equal(t, "test.sl", mod.File)
	v, err := vm.New().Run(mod)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.AsInt())

	// promoted into memory
	_, ok = second.Get(ctx, "return 7")
	require.True(t, ok)
	assert.Equal(t, Stats{MemoryHits: 1, StoreHits: 1}, second.Stats())
}

func TestModuleCacheDropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	c := New(WithStore(store))
	defer c.Close()

	require.NoError(t, store.Put(ctx, Key("src"), []byte("garbage")))
	_, ok := c.Get(ctx, "src")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}
