package journal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/txtlog/internal/entry"
	"github.com/marcelocantos/txtlog/internal/metrics"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppendExactLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path, WithClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	got, err := w.Append("hello", entry.KindIn)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2024-01-01 00:00:00.000 UTC] [IN] hello\n", string(data))
}

func TestAppendCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "txt.log")
	w := NewWriter(path)

	_, err := w.Append("x", entry.KindInfo)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestAppendPreservesPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path)

	texts := []string{"first", "", "multi\nline\n", "unicode ✓", "last"}
	var prev []byte
	for _, text := range texts {
		before := bytes.Count(prev, []byte("\n"))
		_, err := w.Append(text, entry.KindOut)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, prev), "existing content was rewritten")

		added := bytes.Count(data, []byte("\n")) - before
		assert.Equal(t, strings.Count(text, "\n")+1, added)
		prev = data
	}
}

func TestAppendTwiceInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	ticks := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 1, 500_000_000, time.UTC),
	}
	i := 0
	w := NewWriter(path, WithClock(func() time.Time { ts := ticks[i]; i++; return ts }))

	_, err := w.Append("one", entry.KindIn)
	require.NoError(t, err)
	_, err = w.Append("two", entry.KindOut)
	require.NoError(t, err)

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entry.Entry{Time: ticks[0], Kind: entry.KindIn, Text: "one"}, entries[0])
	assert.Equal(t, entry.Entry{Time: ticks[1], Kind: entry.KindOut, Text: "two"}, entries[1])
}

func TestAppendOpenKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path)

	_, err := w.Append("a", "AUDIT")
	require.NoError(t, err)
	_, err = w.Append("b", "")
	require.NoError(t, err)

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entry.Kind("AUDIT"), entries[0].Kind)
	assert.Equal(t, entry.KindInfo, entries[1].Kind)
}

func TestAppendFilesystemError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	m := metrics.NewMetrics("test")
	w := NewWriter(filepath.Join(blocker, "txt.log"), WithMetrics(m))
	_, err := w.Append("x", entry.KindInfo)
	assert.Error(t, err)
}

func TestAppendRejectsUnparsableKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path)

	for _, k := range []entry.Kind{"a]b", "IN\n[2024-01-01 00:00:00.000 UTC] [OUT"} {
		_, err := w.Append("x", k)
		assert.True(t, errors.Is(err, entry.ErrInvalidKind), string(k))
	}
	assert.NoFileExists(t, path)
}

func TestAppendMetricsGroupUnknownKinds(t *testing.T) {
	m := metrics.NewMetrics("test")
	w := NewWriter(filepath.Join(t.TempDir(), "txt.log"), WithMetrics(m))

	for i := 0; i < 50; i++ {
		_, err := w.Append("x", entry.Kind(fmt.Sprintf("k%d", i)))
		require.NoError(t, err)
	}
	_, err := w.Append("x", entry.KindIn)
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(m.EntriesTotal))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.EntriesTotal.WithLabelValues("other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesTotal.WithLabelValues("IN")))
}

func TestMultiLineEntryReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path)

	_, err := w.Append("line one\n\nline three", entry.KindIn)
	require.NoError(t, err)
	_, err = w.Append("after", entry.KindOut)
	require.NoError(t, err)

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "line one\n\nline three", entries[0].Text)
	assert.Equal(t, "after", entries[1].Text)

	n, err := Check(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path)
	for _, s := range []string{"a", "b", "c", "d"} {
		_, err := w.Append(s, entry.KindInfo)
		require.NoError(t, err)
	}

	entries, err := Tail(path, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Text)
	assert.Equal(t, "d", entries[1].Text)

	entries, err = Tail(path, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestTailOffsetStopsAtLastCompleteLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	complete := "[2024-01-01 00:00:00.000 UTC] [IN] a\n[2024-01-01 00:00:01.000 UTC] [OUT] b\n"
	require.NoError(t, os.WriteFile(path, []byte(complete+"[2024-01-01 00:00:02.000 UTC] [IN] par"), 0644))

	entries, offset, err := TailOffset(path, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Text)
	assert.Equal(t, int64(len(complete)), offset)
}

func TestTailOffsetMissingFile(t *testing.T) {
	entries, offset, err := TailOffset(filepath.Join(t.TempDir(), "none.log"), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, offset)
}

func TestTailMissingFile(t *testing.T) {
	entries, err := Tail(filepath.Join(t.TempDir(), "nope.log"), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckDetectsOrphanLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n[2024-01-01 00:00:00.000 UTC] [IN] ok\n"), 0644))

	_, err := Check(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestCheckDetectsTruncatedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	require.NoError(t, os.WriteFile(path, []byte("[2024-01-01 00:00:00.000 UTC] [IN] ok"), 0644))

	_, err := Check(path)
	assert.Error(t, err)
}

func TestCheckEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	n, err := Check(path)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingFilter struct{}

func (failingFilter) Apply(entry.Kind, string) (string, error) {
	return "", errors.New("boom")
}

func TestFilterErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path, WithFilter(failingFilter{}))

	_, err := w.Append("secret", entry.KindIn)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestStarlarkFilterRedacts(t *testing.T) {
	src := `
def filter(kind, text):
    if kind == "IN":
        return text.replace("hunter2", "[redacted]")
    return text
`
	f, err := CompileStarlarkFilter("redact.star", []byte(src))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "txt.log")
	w := NewWriter(path, WithFilter(f), WithClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	_, err = w.Append("password is hunter2", entry.KindIn)
	require.NoError(t, err)
	_, err = w.Append("hunter2", entry.KindOut)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-01-01 00:00:00.000 UTC] [IN] password is [redacted]\n"+
			"[2024-01-01 00:00:00.000 UTC] [OUT] hunter2\n",
		string(data))
}

func TestStarlarkFilterMustDefineFunction(t *testing.T) {
	_, err := CompileStarlarkFilter("empty.star", []byte("x = 1\n"))
	assert.Error(t, err)
}

func TestStarlarkFilterMustReturnString(t *testing.T) {
	f, err := CompileStarlarkFilter("bad.star", []byte("def filter(kind, text):\n    return 42\n"))
	require.NoError(t, err)

	_, err = f.Apply(entry.KindIn, "x")
	assert.Error(t, err)
}

func TestLoadStarlarkFilterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upper.star")
	require.NoError(t, os.WriteFile(path, []byte("def filter(kind, text):\n    return text.upper()\n"), 0644))

	f, err := LoadStarlarkFilter(path)
	require.NoError(t, err)
	got, err := f.Apply(entry.KindInfo, "quiet")
	require.NoError(t, err)
	assert.Equal(t, "QUIET", got)
}
