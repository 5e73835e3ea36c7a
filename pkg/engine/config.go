package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/core/bisect"
	"github.com/sanonone/kektorgraph/pkg/core/bptree"
	"github.com/sanonone/kektorgraph/pkg/core/index"
)

// NodeIndexOptions selects the index that serves LookupNode.
type NodeIndexOptions struct {
	// Backend is "memory" (default), "sorted-file" or "badger".
	Backend string `yaml:"backend"`

	// Path of the index. Defaults to <DataDir>/nodes.jsonl for
	// "sorted-file" and <DataDir>/nodes.db for "badger". For "memory" an
	// explicit path loads that file instead of using the graph's own table.
	Path string `yaml:"path"`

	// CacheSize bounds the probe cache of the "sorted-file" backend.
	CacheSize int `yaml:"cache_size"`
}

// Options configures an Engine.
type Options struct {
	// DataDir holds nodes.jsonl and edges.jsonl. It is created if missing.
	DataDir string `yaml:"data_dir"`

	// IndexOrder is the B+Tree order of the node table.
	IndexOrder int `yaml:"index_order"`

	// StrictSeeding makes Query().V fail with query.ErrNodeNotFound when
	// none of its ids exist.
	StrictSeeding bool `yaml:"strict_seeding"`

	// LenientLoad skips malformed lines in the data files instead of
	// failing Open. Skipped lines are logged.
	LenientLoad bool `yaml:"lenient_load"`

	NodeIndex NodeIndexOptions `yaml:"node_index"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultOptions returns a standard configuration rooted at dataDir.
//
// Defaults:
//   - IndexOrder: 16
//   - NodeIndex: the in-memory node table
//   - Strict seeding and lenient loading off
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:    dataDir,
		IndexOrder: bptree.DefaultOrder,
		NodeIndex: NodeIndexOptions{
			Backend:   string(index.Memory),
			CacheSize: bisect.DefaultCacheSize,
		},
	}
}

// Validate checks option values.
func (o Options) Validate() error {
	if o.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if o.IndexOrder < 0 {
		return fmt.Errorf("index_order must be positive, got %d", o.IndexOrder)
	}
	if _, err := index.ParseBackend(o.NodeIndex.Backend); err != nil {
		return err
	}
	if o.NodeIndex.CacheSize < 0 {
		return fmt.Errorf("node_index.cache_size must be positive, got %d", o.NodeIndex.CacheSize)
	}
	return nil
}

// LoadConfig reads YAML options from path on top of DefaultOptions("").
// Unknown fields are rejected.
func LoadConfig(path string) (Options, error) {
	opts := DefaultOptions("")

	file, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open engine config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("YAML syntax error in engine config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid engine config: %w", err)
	}
	return opts, nil
}
