// Package kvindex is a persistent ordered multi-map on top of BadgerDB.
//
// It has the same contract as the in-memory B+Tree: string keys in
// ascending byte order, every key holding a deduplicated list of values in
// insertion order. Each value is stored under its own badger key
//
//	<key> 0x00 <seq, 8 bytes big-endian>
//
// so that a prefix scan returns a key's values in insertion order and a full
// scan returns keys in byte order. Values are JSON encoded.
package kvindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

// ErrInvalidKey is returned for keys containing a NUL byte, which is reserved
// as the key/sequence separator.
var ErrInvalidKey = errors.New("index key must not contain NUL")

const sep = 0x00

// Config holds configuration for an index database.
type Config struct {
	// Path is the directory for the database files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every transaction.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil disables them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Index is an open badger-backed multi-map. Safe for concurrent use.
type Index[V any] struct {
	db   *badger.DB
	path string
}

// Open opens (creating if needed) the index described by cfg.
func Open[V any](cfg Config) (*Index[V], error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent index")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create index directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger index: %w", err)
	}
	return &Index[V]{db: db, path: cfg.Path}, nil
}

// Path returns the database directory ("" in memory).
func (x *Index[V]) Path() string { return x.path }

// Close flushes and closes the database.
func (x *Index[V]) Close() error {
	return x.db.Close()
}

func prefixOf(key string) []byte {
	p := make([]byte, 0, len(key)+1)
	p = append(p, key...)
	return append(p, sep)
}

func entryKey(key string, seq uint64) []byte {
	k := prefixOf(key)
	return binary.BigEndian.AppendUint64(k, seq)
}

func splitEntryKey(raw []byte) (string, bool) {
	i := bytes.IndexByte(raw, sep)
	if i < 0 || len(raw)-i-1 != 8 {
		return "", false
	}
	return string(raw[:i]), true
}

// Insert adds value under key unless an equal value (same JSON encoding) is
// already stored there.
func (x *Index[V]) Insert(key string, value V) error {
	if strings.IndexByte(key, sep) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}

	return x.db.Update(func(txn *badger.Txn) error {
		prefix := prefixOf(key)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var next uint64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			next = binary.BigEndian.Uint64(k[len(k)-8:]) + 1

			dup := false
			if err := item.Value(func(v []byte) error {
				dup = bytes.Equal(v, data)
				return nil
			}); err != nil {
				return err
			}
			if dup {
				return nil
			}
		}
		return txn.Set(entryKey(key, next), data)
	})
}

// Retrieve returns every value stored under key in insertion order, or nil.
func (x *Index[V]) Retrieve(key string) ([]V, error) {
	if strings.IndexByte(key, sep) >= 0 {
		return nil, nil
	}

	var out []V
	err := x.db.View(func(txn *badger.Txn) error {
		prefix := prefixOf(key)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := decode[V](it.Item())
			if err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// Lookup implements the shared index contract.
func (x *Index[V]) Lookup(key string) ([]V, error) {
	return x.Retrieve(key)
}

// Keys returns every distinct key in ascending byte order.
func (x *Index[V]) Keys() ([]string, error) {
	var keys []string
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k, ok := splitEntryKey(it.Item().Key())
			if !ok {
				continue
			}
			if n := len(keys); n == 0 || keys[n-1] != k {
				keys = append(keys, k)
			}
		}
		return nil
	})
	return keys, err
}

// Items calls fn for every (key, value) pair, keys ascending and values in
// insertion order. Iteration stops when fn returns false.
func (x *Index[V]) Items(fn func(key string, value V) bool) error {
	return x.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k, ok := splitEntryKey(item.Key())
			if !ok {
				continue
			}
			v, err := decode[V](item)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			if !fn(k, v) {
				return nil
			}
		}
		return nil
	})
}

// Len returns the number of distinct keys.
func (x *Index[V]) Len() (int, error) {
	keys, err := x.Keys()
	return len(keys), err
}

// DropAll removes every entry.
func (x *Index[V]) DropAll() error {
	return x.db.DropAll()
}

func decode[V any](item *badger.Item) (V, error) {
	var v V
	err := item.Value(func(raw []byte) error {
		return json.Unmarshal(raw, &v)
	})
	return v, err
}
