// Package index defines the read contract shared by the ordered index
// backends and selects one of them by name.
package index

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sanonone/kektorgraph/pkg/core/bisect"
	"github.com/sanonone/kektorgraph/pkg/core/bptree"
	"github.com/sanonone/kektorgraph/pkg/core/kvindex"
	"github.com/sanonone/kektorgraph/pkg/persistence"
)

// Lookup returns every value stored under key. An absent key yields nil
// and no error.
type Lookup[V any] interface {
	Lookup(key string) ([]V, error)
}

var (
	_ Lookup[string] = (*bptree.Tree[string])(nil)
	_ Lookup[string] = (*bisect.File[string])(nil)
	_ Lookup[string] = (*kvindex.Index[string])(nil)
	_ Lookup[string] = (*Handle[string])(nil)
)

// Backend names an index implementation.
type Backend string

const (
	// Memory loads a JSON-lines index file into a B+Tree.
	Memory Backend = "memory"
	// SortedFile binary-searches a sorted JSON-lines file in place.
	SortedFile Backend = "sorted-file"
	// Badger reads a BadgerDB directory written by kvindex.
	Badger Backend = "badger"
)

// ParseBackend validates a backend name. The empty string means Memory.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case "":
		return Memory, nil
	case Memory, SortedFile, Badger:
		return b, nil
	default:
		return "", fmt.Errorf("unknown index backend %q (want %s, %s or %s)", s, Memory, SortedFile, Badger)
	}
}

// Config describes which backend to open and where.
type Config struct {
	Backend   Backend
	Path      string // index file, or database directory for Badger
	Order     int    // B+Tree order for Memory
	CacheSize int    // probe cache size for SortedFile
	Lenient   bool   // skip malformed lines when loading Memory
	Logger    *slog.Logger
}

// Handle is an opened index. Close releases files held by the backend.
type Handle[V any] struct {
	idx     Lookup[V]
	backend Backend
	closer  io.Closer
}

// Lookup returns every value stored under key by the backend.
func (h *Handle[V]) Lookup(key string) ([]V, error) { return h.idx.Lookup(key) }

// Backing returns the backend implementation, for callers that need
// backend-specific operations such as rewriting a Badger index.
func (h *Handle[V]) Backing() Lookup[V] { return h.idx }

// Backend reports which implementation serves the handle.
func (h *Handle[V]) Backend() Backend { return h.backend }

// Close releases the backend.
func (h *Handle[V]) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Open opens the index described by cfg. equal deduplicates values when
// the Memory backend rebuilds the tree.
func Open[V any](cfg Config, equal func(a, b V) bool) (*Handle[V], error) {
	backend, err := ParseBackend(string(cfg.Backend))
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("index backend %s: path is required", backend)
	}

	switch backend {
	case SortedFile:
		f, err := bisect.Open[V](cfg.Path, bisect.WithCacheSize(cfg.CacheSize))
		if err != nil {
			return nil, err
		}
		return &Handle[V]{idx: f, backend: backend, closer: f}, nil

	case Badger:
		x, err := kvindex.Open[V](kvindex.Config{Path: cfg.Path, Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		return &Handle[V]{idx: x, backend: backend, closer: x}, nil

	default:
		order := cfg.Order
		if order <= 0 {
			order = bptree.DefaultOrder
		}
		var readOpts []persistence.ReadOption
		if cfg.Lenient {
			readOpts = append(readOpts, persistence.Lenient())
		}
		if cfg.Logger != nil {
			readOpts = append(readOpts, persistence.WithLogger(cfg.Logger))
		}
		t, err := bptree.Load(cfg.Path, order, equal, readOpts)
		if err != nil {
			return nil, err
		}
		return &Handle[V]{idx: t, backend: Memory}, nil
	}
}
