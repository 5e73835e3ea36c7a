// Package persistence implements the line-delimited JSON record files used to
// persist node indexes and edge lists.
//
// Writes go to a temporary sibling file that is renamed over the target on
// Commit, so a crash never leaves a half-written index behind. Reads report
// malformed input with the file, 1-based line number and byte offset of the
// offending record.
package persistence

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrMalformedRecord marks a persisted line that could not be decoded or is
// missing a required field.
var ErrMalformedRecord = errors.New("malformed record")

// RecordError describes a malformed line in a record file.
type RecordError struct {
	Path   string
	Line   int   // 1-based; 0 when the line was addressed by offset only
	Offset int64 // byte offset of the start of the line
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s:%d (offset %d): %v: %v", e.Path, e.Line, e.Offset, ErrMalformedRecord, e.Err)
}

// Unwrap exposes both ErrMalformedRecord and the underlying cause to errors.Is/As.
func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// Validator is implemented by record types that have required fields.
type Validator interface {
	Validate() error
}

// Writer appends JSON records, one per line, to a temporary file and
// atomically replaces the destination on Commit.
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	path    string
	tmpPath string
	count   int
	done    bool
}

// Create opens a record writer for path. Parent directories are created.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmpPath := fmt.Sprintf("%s.tmp-%s", path, uuid.NewString())
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}

	return &Writer{
		file:    file,
		buf:     bufio.NewWriterSize(file, 64*1024),
		path:    path,
		tmpPath: tmpPath,
	}, nil
}

// Write encodes record as a single JSON line.
func (w *Writer) Write(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", w.count+1, err)
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.path
}

// Commit flushes, fsyncs and renames the temporary file over the destination.
func (w *Writer) Commit() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.tmpPath)
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.tmpPath)
		return err
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return err
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}
	return nil
}

// Abort discards everything written. Safe to call after Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.file.Close()
	return os.Remove(w.tmpPath)
}

// ReadStats summarizes a read pass.
type ReadStats struct {
	Records int // records handed to the callback
	Skipped int // malformed lines skipped in lenient mode
}

type readConfig struct {
	lenient bool
	logger  *slog.Logger
}

// ReadOption configures ReadFile.
type ReadOption func(*readConfig)

// Lenient makes ReadFile skip malformed lines instead of failing. Skipped
// lines are logged at Warn level and counted in ReadStats.
func Lenient() ReadOption {
	return func(c *readConfig) { c.lenient = true }
}

// WithLogger sets the logger used for lenient-mode warnings.
func WithLogger(l *slog.Logger) ReadOption {
	return func(c *readConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ReadFile decodes every non-empty line of path into a T and passes it to fn
// in file order. Decoding failures, and Validate errors when T implements
// Validator, produce a *RecordError unless Lenient is set. Errors returned by
// fn abort the read and are returned unchanged.
func ReadFile[T any](path string, fn func(T) error, opts ...ReadOption) (ReadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return ReadStats{}, fmt.Errorf("failed to open record file: %w", err)
	}
	defer file.Close()

	return Read(path, file, fn, opts...)
}

// Read is ReadFile over an arbitrary reader; name is used in error messages.
func Read[T any](name string, r io.Reader, fn func(T) error, opts ...ReadOption) (ReadStats, error) {
	cfg := readConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var stats ReadStats
	reader := bufio.NewReaderSize(r, 64*1024)
	var offset int64
	line := 0

	for {
		raw, readErr := reader.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			start := offset
			offset += int64(len(raw))

			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 {
				rec, err := decodeRecord[T](trimmed)
				if err != nil {
					recErr := &RecordError{Path: name, Line: line, Offset: start, Err: err}
					if !cfg.lenient {
						return stats, recErr
					}
					cfg.logger.Warn("Skipping malformed record", "path", name, "line", line, "offset", start, "error", err)
					stats.Skipped++
				} else {
					if err := fn(rec); err != nil {
						return stats, err
					}
					stats.Records++
				}
			}
		}

		if readErr == io.EOF {
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("failed to read %s: %w", name, readErr)
		}
	}
}

func decodeRecord[T any](data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	if v, ok := any(&rec).(Validator); ok {
		if err := v.Validate(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
