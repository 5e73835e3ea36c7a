// Package bisect looks up keys in a sorted JSON-lines file without loading
// it: a binary search over byte offsets, reading only the lines it probes.
//
// Every line must be a JSON object with a string "key" field (and usually a
// "value" field), and the file must be sorted by key in byte-wise order, the
// layout produced by bptree.Tree.Save or `LC_ALL=C sort`.
//
// One File keeps its descriptor open for its whole life and reads with
// ReadAt, so it can serve concurrent lookups. The most recently probed
// offsets are cached.
package bisect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/persistence"
)

const readChunk = 4096

// File is an open sorted record file.
type File[V any] struct {
	f       *os.File
	path    string
	size    int64
	compare func(a, b string) int

	mu    sync.Mutex
	cache *lruCache
}

// Option configures Open.
type Option func(*options)

type options struct {
	cacheSize int
	compare   func(a, b string) int
}

// WithCacheSize bounds the number of cached offset probes.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithComparator overrides the byte-wise key order. It must match the order
// the file was sorted with.
func WithComparator(cmp func(a, b string) int) Option {
	return func(o *options) {
		if cmp != nil {
			o.compare = cmp
		}
	}
}

// Open opens path for lookups.
func Open[V any](path string, opts ...Option) (*File[V], error) {
	o := options{cacheSize: DefaultCacheSize, compare: strings.Compare}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sorted index: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat sorted index: %w", err)
	}

	return &File[V]{
		f:       f,
		path:    path,
		size:    info.Size(),
		compare: o.compare,
		cache:   newLRUCache(o.cacheSize),
	}, nil
}

// Path returns the file path.
func (b *File[V]) Path() string { return b.path }

// Close releases the file descriptor.
func (b *File[V]) Close() error {
	return b.f.Close()
}

// Retrieve returns every value stored under key, in file order. An absent
// key yields nil and no error.
func (b *File[V]) Retrieve(key string) ([]V, error) {
	start, err := b.bisectLeft(key)
	if err != nil {
		return nil, err
	}

	var out []V
	for start < b.size {
		raw, next, err := b.readLineAt(start)
		if err != nil {
			return out, err
		}
		rec, err := decodeLine[V](raw)
		if err != nil {
			return out, &persistence.RecordError{Path: b.path, Offset: start, Err: err}
		}
		if rec.key != key {
			break
		}
		if !rec.hasValue {
			return out, &persistence.RecordError{Path: b.path, Offset: start, Err: errors.New("missing field \"value\"")}
		}
		out = append(out, rec.value)
		start = next
	}
	return out, nil
}

// Lookup implements the shared index contract.
func (b *File[V]) Lookup(key string) ([]V, error) {
	return b.Retrieve(key)
}

// Contains reports whether key occurs in the file.
func (b *File[V]) Contains(key string) (bool, error) {
	start, err := b.bisectLeft(key)
	if err != nil || start >= b.size {
		return false, err
	}
	p, err := b.probeAt(start)
	if err != nil {
		return false, err
	}
	return !p.eof && p.key == key, nil
}

// bisectLeft returns the start offset of the first line whose key is >= key,
// or the file size when there is none.
func (b *File[V]) bisectLeft(key string) (int64, error) {
	lo, hi := int64(0), b.size
	for lo < hi {
		mid := lo + (hi-lo)/2
		p, err := b.probeAt(mid)
		if err != nil {
			return 0, err
		}
		if p.eof || b.compare(p.key, key) >= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	p, err := b.probeAt(lo)
	if err != nil {
		return 0, err
	}
	if p.eof {
		return b.size, nil
	}
	return p.start, nil
}

// probeAt resolves offset to the line starting at or after it: offset 0 is
// the first line, any other offset skips to the line after the newline found
// at or after offset-1.
func (b *File[V]) probeAt(offset int64) (probe, error) {
	b.mu.Lock()
	p, ok := b.cache.get(offset)
	b.mu.Unlock()
	if ok {
		metrics.BisectCacheHits.Inc()
		return p, nil
	}
	metrics.BisectCacheMisses.Inc()

	start := int64(0)
	if offset > 0 {
		nl, err := b.indexNewline(offset - 1)
		if err != nil {
			return probe{}, err
		}
		if nl < 0 {
			start = b.size
		} else {
			start = nl + 1
		}
	}

	p = probe{start: start, eof: start >= b.size}
	if !p.eof {
		raw, next, err := b.readLineAt(start)
		if err != nil {
			return probe{}, err
		}
		key, err := decodeKey(raw)
		if err != nil {
			return probe{}, &persistence.RecordError{Path: b.path, Offset: start, Err: err}
		}
		p.key, p.next = key, next
	}

	b.mu.Lock()
	b.cache.set(offset, p)
	b.mu.Unlock()
	return p, nil
}

// indexNewline returns the offset of the first '\n' at or after from, or -1.
func (b *File[V]) indexNewline(from int64) (int64, error) {
	buf := make([]byte, readChunk)
	for pos := from; pos < b.size; {
		n, err := b.f.ReadAt(buf, pos)
		if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
			return pos + int64(i), nil
		}
		pos += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	return -1, nil
}

// readLineAt returns the line starting at start without its newline, and the
// offset of the following line.
func (b *File[V]) readLineAt(start int64) ([]byte, int64, error) {
	var line []byte
	buf := make([]byte, readChunk)
	for pos := start; pos < b.size; {
		n, err := b.f.ReadAt(buf, pos)
		if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
			line = append(line, buf[:i]...)
			return line, pos + int64(i) + 1, nil
		}
		line = append(line, buf[:n]...)
		pos += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return line, b.size, nil
}

type lineRecord[V any] struct {
	key      string
	value    V
	hasValue bool
}

func decodeKey(raw []byte) (string, error) {
	var aux struct {
		Key *string `json:"key"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return "", err
	}
	if aux.Key == nil {
		return "", errors.New("missing field \"key\"")
	}
	return *aux.Key, nil
}

func decodeLine[V any](raw []byte) (lineRecord[V], error) {
	var rec lineRecord[V]
	var aux struct {
		Key   *string         `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return rec, err
	}
	if aux.Key == nil {
		return rec, errors.New("missing field \"key\"")
	}
	rec.key = *aux.Key
	if len(aux.Value) > 0 {
		if err := json.Unmarshal(aux.Value, &rec.value); err != nil {
			return rec, fmt.Errorf("field \"value\": %w", err)
		}
		rec.hasValue = true
	}
	return rec, nil
}
