// Package publish commits the log file to version control.
package publish

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcelocantos/txtlog/internal/entry"
	"github.com/marcelocantos/txtlog/internal/metrics"
	"github.com/marcelocantos/txtlog/internal/vcs"
)

// Result is the outcome of a commit attempt.
type Result struct {
	OK     bool   `json:"ok"`
	Output string `json:"output"`
}

// Publisher stages, commits and optionally pushes the log file.
type Publisher struct {
	backend     vcs.VCS
	defaultPath string
	now         func() time.Time
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func WithLogger(l *logrus.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New returns a Publisher that commits defaultPath unless told otherwise.
func New(backend vcs.VCS, defaultPath string, opts ...Option) *Publisher {
	p := &Publisher{
		backend:     backend,
		defaultPath: defaultPath,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logrus.New()
		p.logger.SetOutput(io.Discard)
	}
	return p
}

// DefaultMessage is the commit message used when none is given.
func (p *Publisher) DefaultMessage() string {
	return "Auto log update: " + entry.FormatTime(p.now())
}

// Commit stages path, commits it with message and pushes when push is set.
// An empty message or path falls back to the defaults. Stage or commit
// failures stop before anything further runs. A push failure is reported
// but the local commit stays in place. All failures are returned in the
// Result; Commit never returns an error or panics on backend failures.
func (p *Publisher) Commit(ctx context.Context, message, path string, push bool) Result {
	if path == "" {
		path = p.defaultPath
	}
	if message == "" {
		message = p.DefaultMessage()
	}
	log := p.logger.WithFields(logrus.Fields{"path": path, "push": push})

	if out, err := p.backend.Stage(ctx, path); err != nil {
		return p.fail(log.WithField("step", "stage"), out, err)
	}
	if out, err := p.backend.Commit(ctx, message); err != nil {
		return p.fail(log.WithField("step", "commit"), out, err)
	}
	if !push {
		log.Info("Committed log")
		p.metrics.Committed("committed")
		return Result{OK: true, Output: "committed"}
	}
	if out, err := p.backend.Push(ctx); err != nil {
		return p.fail(log.WithField("step", "push"), out, err)
	}
	log.Info("Committed and pushed log")
	p.metrics.Committed("pushed")
	return Result{OK: true, Output: "committed and pushed"}
}

func (p *Publisher) fail(log *logrus.Entry, out string, err error) Result {
	log.WithError(err).Warn("Commit failed")
	p.metrics.Committed("failed")
	if errors.Is(err, vcs.ErrToolNotFound) {
		return Result{Output: vcs.ErrToolNotFound.Error()}
	}
	if strings.TrimSpace(out) == "" {
		out = err.Error()
	}
	return Result{Output: out}
}
