package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcelocantos/txtlog/internal/entry"
	"github.com/marcelocantos/txtlog/internal/metrics"
)

// Filter rewrites entry text before it is written.
type Filter interface {
	Apply(kind entry.Kind, text string) (string, error)
}

// Writer appends entries to a plain-text, append-only log file.
type Writer struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	filter  Filter
	metrics *metrics.Metrics
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithFilter installs a text filter.
func WithFilter(f Filter) Option {
	return func(w *Writer) { w.filter = f }
}

// WithMetrics records appends on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter returns a Writer for the log file at path. Nothing is touched on
// disk until the first Append.
func NewWriter(path string, opts ...Option) *Writer {
	w := &Writer{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Append writes one entry and returns the log file path. The file and its
// directory are created if missing. Errors are returned as-is to the caller;
// nothing is retried.
func (w *Writer) Append(text string, kind entry.Kind) (string, error) {
	kind = kind.Normalize()
	if err := kind.Validate(); err != nil {
		w.metrics.AppendFailed()
		return "", err
	}
	e := entry.Entry{Time: w.now().UTC(), Kind: kind, Text: text}

	if w.filter != nil {
		filtered, err := w.filter.Apply(kind, text)
		if err != nil {
			w.metrics.AppendFailed()
			return "", fmt.Errorf("filter entry: %w", err)
		}
		e.Text = filtered
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.write([]byte(e.Line())); err != nil {
		w.metrics.AppendFailed()
		return "", err
	}
	w.metrics.Appended(kindLabel(kind))
	return w.path, nil
}

func (w *Writer) write(line []byte) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	// One Write per entry keeps concurrent appenders from splitting lines.
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}

// kindLabel bounds metric cardinality: kinds are client-supplied.
func kindLabel(k entry.Kind) string {
	if k.Known() {
		return string(k)
	}
	return "other"
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}
