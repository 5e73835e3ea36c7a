// Package engine provides the embedded entry point for KektorGraph.
//
// It owns one graph.Store, loads it from and saves it to a data directory,
// and serves traversals and node lookups without a server process.
//
// Basic usage:
//
//	opts := engine.DefaultOptions("./data")
//	db, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	db.AddNode("Sharlene", types.Attributes{"node_type": types.String("Person")})
//	db.AddEdge("Sharlene", "Bindoon", "Lives In")
//	q, _ := db.Query()
//	people := q.Has("node_type", types.String("Person"))
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sanonone/kektorgraph/pkg/core/index"
	"github.com/sanonone/kektorgraph/pkg/core/kvindex"
	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/persistence"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// ErrClosed is returned by every operation on a closed Engine.
var ErrClosed = errors.New("engine is closed")

// Engine is an open graph database. Writes are serialized; queries may run
// concurrently with each other but should not overlap a build phase.
type Engine struct {
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	graph     *graph.Store
	nodeIndex *index.Handle[types.Attributes]
	closed    bool
}

// Open loads the graph stored in opts.DataDir, or starts an empty one when
// the directory holds no graph yet.
//
// It performs the following actions:
// 1. Creates DataDir if missing.
// 2. Loads nodes.jsonl and edges.jsonl when both exist.
// 3. Attaches the configured node index.
func Open(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &Engine{opts: opts, logger: logger}

	g, err := e.load()
	if err != nil {
		return nil, err
	}
	e.graph = g

	if err := e.attachNodeIndex(); err != nil {
		return nil, err
	}
	e.updateGauges()

	logger.Info("Graph engine opened",
		"data_dir", opts.DataDir,
		"nodes", g.Len(),
		"edges", g.EdgeCount(),
		"node_index", e.nodeIndexBackend())
	return e, nil
}

func (e *Engine) graphOptions() []graph.Option {
	return []graph.Option{graph.WithIndexOrder(e.opts.IndexOrder)}
}

func (e *Engine) readOptions() []persistence.ReadOption {
	readOpts := []persistence.ReadOption{persistence.WithLogger(e.logger)}
	if e.opts.LenientLoad {
		readOpts = append(readOpts, persistence.Lenient())
	}
	return readOpts
}

func (e *Engine) load() (*graph.Store, error) {
	nodesPath := filepath.Join(e.opts.DataDir, graph.NodesFile)
	edgesPath := filepath.Join(e.opts.DataDir, graph.EdgesFile)

	_, nodesErr := os.Stat(nodesPath)
	_, edgesErr := os.Stat(edgesPath)
	if errors.Is(nodesErr, os.ErrNotExist) && errors.Is(edgesErr, os.ErrNotExist) {
		return graph.New(e.graphOptions()...), nil
	}

	start := time.Now()
	g, stats, err := graph.Load(e.opts.DataDir, e.readOptions(), e.graphOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	elapsed := time.Since(start)
	metrics.PersistenceDuration.WithLabelValues("load").Observe(elapsed.Seconds())

	if skipped := stats.Nodes.Skipped + stats.Edges.Skipped; skipped > 0 {
		e.logger.Warn("Graph loaded with skipped records",
			"skipped_nodes", stats.Nodes.Skipped,
			"skipped_edges", stats.Edges.Skipped)
	}
	e.logger.Info("Graph loaded", "nodes", stats.Nodes.Records, "edges", stats.Edges.Records, "duration", elapsed)
	return g, nil
}

func (e *Engine) nodeIndexPath(backend index.Backend) string {
	if e.opts.NodeIndex.Path != "" {
		return e.opts.NodeIndex.Path
	}
	switch backend {
	case index.SortedFile:
		return filepath.Join(e.opts.DataDir, graph.NodesFile)
	case index.Badger:
		return filepath.Join(e.opts.DataDir, "nodes.db")
	}
	return ""
}

// attachNodeIndex opens the configured node index. The sorted-file backend
// is attached only once its file exists; until then lookups use the graph.
func (e *Engine) attachNodeIndex() error {
	backend, _ := index.ParseBackend(e.opts.NodeIndex.Backend)
	path := e.nodeIndexPath(backend)
	if path == "" {
		return nil
	}
	if backend != index.Badger {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}

	h, err := index.Open(index.Config{
		Backend:   backend,
		Path:      path,
		Order:     e.opts.IndexOrder,
		CacheSize: e.opts.NodeIndex.CacheSize,
		Lenient:   e.opts.LenientLoad,
		Logger:    e.logger,
	}, types.Attributes.Equal)
	if err != nil {
		return fmt.Errorf("failed to open node index: %w", err)
	}
	e.nodeIndex = h

	if x, ok := h.Backing().(*kvindex.Index[types.Attributes]); ok {
		if n, err := x.Len(); err == nil && n == 0 && e.graph.Len() > 0 {
			return e.fillBadger(x)
		}
	}
	return nil
}

// fillBadger rewrites the badger node index from the graph.
func (e *Engine) fillBadger(x *kvindex.Index[types.Attributes]) error {
	if err := x.DropAll(); err != nil {
		return fmt.Errorf("failed to clear node index: %w", err)
	}
	for id, attrs := range e.graph.NodesWithAttributes() {
		if err := x.Insert(id, attrs); err != nil {
			return fmt.Errorf("failed to index node %q: %w", id, err)
		}
	}
	return nil
}

func (e *Engine) nodeIndexBackend() index.Backend {
	if e.nodeIndex == nil {
		return index.Memory
	}
	return e.nodeIndex.Backend()
}

func (e *Engine) updateGauges() {
	metrics.GraphNodes.Set(float64(e.graph.Len()))
	metrics.GraphEdges.Set(float64(e.graph.EdgeCount()))
}

// AddNode inserts or replaces a node.
func (e *Engine) AddNode(id string, attrs types.Attributes) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.graph.AddNode(id, attrs)
	metrics.GraphNodes.Set(float64(e.graph.Len()))
	return nil
}

// AddEdge records a directed, labeled edge.
func (e *Engine) AddEdge(source, target, relationship string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.graph.AddEdge(source, target, relationship)
	metrics.GraphEdges.Set(float64(e.graph.EdgeCount()))
	return nil
}

// Graph returns the underlying store. Callers must not write to it while
// other goroutines use the Engine.
func (e *Engine) Graph() *graph.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph
}

// Query starts a traversal over every node.
func (e *Engine) Query() (*query.Traversal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	var opts []query.Option
	if e.opts.StrictSeeding {
		opts = append(opts, query.StrictSeeding())
	}
	return query.New(e.graph, opts...), nil
}

// LookupNode returns the payloads stored for id by the node index, or by
// the graph itself when no external index is attached. An unknown id yields
// nil.
func (e *Engine) LookupNode(id string) ([]types.Attributes, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.nodeIndex != nil {
		return e.nodeIndex.Lookup(id)
	}
	if attrs, ok := e.graph.Node(id); ok {
		return []types.Attributes{attrs}, nil
	}
	return nil, nil
}

// Save writes the graph to DataDir and refreshes the node index.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	start := time.Now()
	if err := e.graph.Save(e.opts.DataDir); err != nil {
		return err
	}

	// The sorted-file backend holds the replaced file open; reopen it.
	if e.nodeIndex != nil {
		switch x := e.nodeIndex.Backing().(type) {
		case *kvindex.Index[types.Attributes]:
			if err := e.fillBadger(x); err != nil {
				return err
			}
		default:
			if err := e.nodeIndex.Close(); err != nil {
				e.logger.Warn("Failed to close node index", "error", err)
			}
			e.nodeIndex = nil
		}
	}
	if e.nodeIndex == nil {
		if err := e.attachNodeIndex(); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	metrics.PersistenceDuration.WithLabelValues("save").Observe(elapsed.Seconds())
	e.updateGauges()
	e.logger.Info("Graph saved",
		"data_dir", e.opts.DataDir,
		"nodes", e.graph.Len(),
		"edges", e.graph.EdgeCount(),
		"duration", elapsed)
	return nil
}

// Close releases the node index. It does not save; call Save first to
// persist changes. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.nodeIndex != nil {
		err = e.nodeIndex.Close()
		e.nodeIndex = nil
	}
	return err
}
