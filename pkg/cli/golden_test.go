package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGolden runs every testdata/golden/*.sl through `soli run` and compares
// stdout with the matching .want file. A .err file, when present, holds text
// that stderr must contain and means the run is expected to fail.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "golden", "*.sl"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".sl")
		t.Run(name, func(t *testing.T) {
			want, err := os.ReadFile(strings.TrimSuffix(file, ".sl") + ".want")
			require.NoError(t, err)

			res := runCLI(t, "", "run", "-no-cache", file)
			assert.Equal(t, normalize(string(want)), normalize(res.out))

			wantErr, err := os.ReadFile(strings.TrimSuffix(file, ".sl") + ".err")
			if os.IsNotExist(err) {
				assert.Equal(t, 0, res.code, "stderr: %s", res.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, exitError, res.code)
			assert.Contains(t, res.err, strings.TrimSpace(string(wantErr)))
		})
	}
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
