package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Key   *string `json:"key"`
	Value string  `json:"value"`
}

func (r *testRecord) Validate() error {
	if r.Key == nil {
		return errors.New("missing field \"key\"")
	}
	return nil
}

func ptr(s string) *string { return &s }

func TestWriterCommitAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "records.jsonl")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{Key: ptr("a"), Value: "1"}))
	require.NoError(t, w.Write(testRecord{Key: ptr("b"), Value: "2"}))
	assert.Equal(t, 2, w.Count())

	// Nothing visible until commit.
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, w.Commit())
	require.NoError(t, w.Abort(), "abort after commit is a no-op")

	var got []string
	stats, err := ReadFile(path, func(r testRecord) error {
		got = append(got, *r.Key+"="+r.Value)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2"}, got)
	assert.Equal(t, ReadStats{Records: 2}, stats)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be gone after commit")
}

func TestWriterAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.jsonl")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(testRecord{Key: ptr("a")}))
	require.NoError(t, w.Abort())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadReportsMalformedLine(t *testing.T) {
	input := "{\"key\":\"a\",\"value\":\"1\"}\n\n{\"key\":\"b\",\"value\":\n{\"key\":\"c\",\"value\":\"3\"}\n"

	tests := []struct {
		name       string
		input      string
		wantLine   int
		wantOffset int64
	}{
		{"corrupt json", input, 3, int64(len("{\"key\":\"a\",\"value\":\"1\"}\n\n"))},
		{"missing key", "{\"value\":\"x\"}\n", 1, 0},
		{"wrong type", "{\"key\":\"a\"}\n{\"key\":5}\n", 2, int64(len("{\"key\":\"a\"}\n"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read("mem", strings.NewReader(tt.input), func(testRecord) error { return nil })
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)

			var recErr *RecordError
			require.ErrorAs(t, err, &recErr)
			assert.Equal(t, "mem", recErr.Path)
			assert.Equal(t, tt.wantLine, recErr.Line)
			assert.Equal(t, tt.wantOffset, recErr.Offset)
		})
	}
}

func TestReadLenientSkips(t *testing.T) {
	input := "{\"key\":\"a\",\"value\":\"1\"}\nnot json\n{\"value\":\"orphan\"}\n{\"key\":\"c\",\"value\":\"3\"}"

	var keys []string
	stats, err := Read("mem", strings.NewReader(input), func(r testRecord) error {
		keys = append(keys, *r.Key)
		return nil
	}, Lenient())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, keys, "final line without newline is still read")
	assert.Equal(t, ReadStats{Records: 2, Skipped: 2}, stats)
}

func TestReadCallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	_, err := Read("mem", strings.NewReader("{\"key\":\"a\"}\n{\"key\":\"b\"}\n"), func(testRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.NotErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, 1, calls)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl"), func(testRecord) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
