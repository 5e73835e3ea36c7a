package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kektorgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/kektorgraph
index_order: 32
strict_seeding: true
node_index:
  backend: sorted-file
  cache_size: 64
`)
	opts, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/kektorgraph", opts.DataDir)
	assert.Equal(t, 32, opts.IndexOrder)
	assert.True(t, opts.StrictSeeding)
	assert.False(t, opts.LenientLoad)
	assert.Equal(t, "sorted-file", opts.NodeIndex.Backend)
	assert.Equal(t, 64, opts.NodeIndex.CacheSize)
	assert.Empty(t, opts.NodeIndex.Path)
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	opts, err := LoadConfig(writeConfig(t, "data_dir: ./data\n"))
	require.NoError(t, err)

	want := DefaultOptions("./data")
	assert.Equal(t, want, opts)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "data_dir: x\ncache: 10\n", "field cache not found"},
		{"bad backend", "data_dir: x\nnode_index:\n  backend: bolt\n", "unknown index backend"},
		{"missing data dir", "index_order: 8\n", "data_dir is required"},
		{"wrong type", "data_dir: x\nindex_order: many\n", "YAML syntax error"},
		{"empty file", "", "data_dir is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
