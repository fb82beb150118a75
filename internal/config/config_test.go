package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultMaxFrames, cfg.VM.MaxFrames)
	assert.True(t, cfg.VM.Echo)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	require.NoError(t, cfg.validate("default"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		input string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name:  "yaml overrides",
			path:  "soli.yaml",
			input: "vm:\n  max_frames: 64\n  echo: false\nlog:\n  level: debug\n  format: json\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 64, cfg.VM.MaxFrames)
				assert.False(t, cfg.VM.Echo)
				assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
				assert.Equal(t, "json", cfg.Log.Format)
				// untouched keys keep their defaults
				assert.Equal(t, DefaultMemoryEntries, cfg.Cache.MemoryEntries)
			},
		},
		{
			name:  "toml overrides",
			path:  "soli.toml",
			input: "import_paths = [\"lib\"]\n\n[cache]\nenabled = false\nmemory_entries = 8\n\n[server]\naddr = \":9000\"\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"lib"}, cfg.ImportPaths)
				assert.False(t, cfg.Cache.Enabled)
				assert.Equal(t, 8, cfg.Cache.MemoryEntries)
				assert.Equal(t, ":9000", cfg.Server.Addr)
				assert.Equal(t, DefaultMaxFrames, cfg.VM.MaxFrames)
			},
		},
		{
			name:  "empty file",
			path:  "soli.yml",
			input: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.input), tt.path)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		input string
		want  string
	}{
		{"bad yaml", "soli.yaml", "vm: [", "parsing soli.yaml"},
		{"bad toml", "soli.toml", "[vm\n", "parsing soli.toml"},
		{"zero frames", "soli.yaml", "vm:\n  max_frames: 0\n", "max_frames"},
		{"negative timeout", "soli.yaml", "vm:\n  timeout_ms: -1\n", "timeout_ms"},
		{"bad level", "soli.yaml", "log:\n  level: loud\n", "log.level"},
		{"bad format", "soli.yaml", "log:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Run("no file gives defaults", func(t *testing.T) {
		cfg, err := FindAndLoad(nested)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxFrames, cfg.VM.MaxFrames)
		abs, _ := filepath.Abs(nested)
		assert.Equal(t, abs, cfg.Dir)
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "soli.yaml"),
		[]byte("vm:\n  max_frames: 32\ncache:\n  path: cache/modules.db\nimport_paths: [lib]\n"), 0o644))

	t.Run("walks up to the nearest file", func(t *testing.T) {
		path, err := FindConfig(nested)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "soli.yaml"), path)

		cfg, err := FindAndLoad(nested)
		require.NoError(t, err)
		assert.Equal(t, 32, cfg.VM.MaxFrames)
		assert.Equal(t, root, cfg.Dir)
		assert.Equal(t, filepath.Join(root, "cache", "modules.db"), cfg.CachePath())
		assert.Equal(t, []string{filepath.Join(root, "lib"), root}, cfg.ResolvedImportPaths())
	})
}

func TestHasSourceExt(t *testing.T) {
	assert.True(t, HasSourceExt("main.sl"))
	assert.True(t, HasSourceExt("lib/util.soli"))
	assert.False(t, HasSourceExt("main.go"))
	assert.False(t, HasSourceExt("readme"))
}
