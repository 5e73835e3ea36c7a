package bptree

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/sanonone/kektorgraph/pkg/persistence"
)

// entry is the on-disk shape of one (key, value) pair.
type entry[V any] struct {
	Key   string `json:"key"`
	Value V      `json:"value"`
}

// record decodes an entry and remembers which fields were present.
type record[V any] struct {
	Key      string
	Value    V
	hasKey   bool
	hasValue bool
}

func (r *record[V]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Key   *string         `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Key != nil {
		r.Key, r.hasKey = *aux.Key, true
	}
	if len(aux.Value) > 0 {
		if err := json.Unmarshal(aux.Value, &r.Value); err != nil {
			return fmt.Errorf("field \"value\": %w", err)
		}
		r.hasValue = true
	}
	return nil
}

func (r *record[V]) Validate() error {
	if !r.hasKey {
		return errors.New("missing field \"key\"")
	}
	if !r.hasValue {
		return errors.New("missing field \"value\"")
	}
	return nil
}

// Save writes every (key, value) pair as one JSON line, in Items order. The
// file is replaced atomically.
func (t *Tree[V]) Save(path string) error {
	w, err := persistence.Create(path)
	if err != nil {
		return err
	}
	for k, v := range t.Items() {
		if err := w.Write(entry[V]{Key: k, Value: v}); err != nil {
			_ = w.Abort()
			return err
		}
	}
	return w.Commit()
}

// LoadFile inserts every record of a file written by Save, in file order.
// Malformed lines fail with a *persistence.RecordError unless
// persistence.Lenient is passed.
func (t *Tree[V]) LoadFile(path string, opts ...persistence.ReadOption) (persistence.ReadStats, error) {
	return persistence.ReadFile(path, func(r record[V]) error {
		t.Insert(r.Key, r.Value)
		return nil
	}, opts...)
}

// Load builds a new tree from a file written by Save.
func Load[V any](path string, order int, equal func(a, b V) bool, readOpts []persistence.ReadOption, opts ...Option) (*Tree[V], error) {
	t := New(order, equal, opts...)
	if _, err := t.LoadFile(path, readOpts...); err != nil {
		return nil, err
	}
	return t, nil
}
