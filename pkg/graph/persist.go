package graph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/persistence"
)

const (
	// NodesFile holds one {"key": id, "value": attributes} record per node,
	// ascending by id.
	NodesFile = "nodes.jsonl"
	// EdgesFile holds one {"source", "target", "relationship"} record per
	// edge, in Edges order.
	EdgesFile = "edges.jsonl"
)

type nodeRecord struct {
	Key   *string           `json:"key"`
	Value *types.Attributes `json:"value"`
}

func (r *nodeRecord) Validate() error {
	if r.Key == nil {
		return errors.New("missing field \"key\"")
	}
	if r.Value == nil {
		return errors.New("missing field \"value\"")
	}
	return nil
}

type edgeRecord struct {
	Source       *string `json:"source"`
	Target       *string `json:"target"`
	Relationship *string `json:"relationship"`
}

func (r *edgeRecord) Validate() error {
	switch {
	case r.Source == nil:
		return errors.New("missing field \"source\"")
	case r.Target == nil:
		return errors.New("missing field \"target\"")
	case r.Relationship == nil:
		return errors.New("missing field \"relationship\"")
	}
	return nil
}

// LoadStats reports what Load read from each file.
type LoadStats struct {
	Nodes persistence.ReadStats
	Edges persistence.ReadStats
}

// Save writes the node table and the edge list into dir, creating it if
// needed. Both files are written concurrently and each is replaced
// atomically.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create graph directory: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := s.nodes.Save(filepath.Join(dir, NodesFile)); err != nil {
			return fmt.Errorf("failed to save nodes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.saveEdges(filepath.Join(dir, EdgesFile)); err != nil {
			return fmt.Errorf("failed to save edges: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Store) saveEdges(path string) error {
	w, err := persistence.Create(path)
	if err != nil {
		return err
	}
	for e := range s.Edges() {
		if err := w.Write(e); err != nil {
			_ = w.Abort()
			return err
		}
	}
	return w.Commit()
}

// Load reads a graph written by Save. Both files must exist. Malformed lines
// fail with a *persistence.RecordError unless persistence.Lenient is among
// readOpts. A node id that appears twice keeps its last payload.
func Load(dir string, readOpts []persistence.ReadOption, opts ...Option) (*Store, LoadStats, error) {
	s := New(opts...)
	var stats LoadStats

	// AddNode and AddEdge touch disjoint parts of the store.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		stats.Nodes, err = persistence.ReadFile(filepath.Join(dir, NodesFile), func(r nodeRecord) error {
			s.AddNode(*r.Key, *r.Value)
			return nil
		}, readOpts...)
		if err != nil {
			return fmt.Errorf("failed to load nodes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats.Edges, err = persistence.ReadFile(filepath.Join(dir, EdgesFile), func(r edgeRecord) error {
			s.AddEdge(*r.Source, *r.Target, *r.Relationship)
			return nil
		}, readOpts...)
		if err != nil {
			return fmt.Errorf("failed to load edges: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	return s, stats, nil
}
