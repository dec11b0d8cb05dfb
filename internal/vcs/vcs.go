// Package vcs abstracts the three version-control operations the publisher
// needs, so the log can be committed through the git executable, through an
// in-process git implementation, or through a fake in tests.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// VCS stages, commits and pushes. Each call returns whatever human-readable
// output the backend produced, even on failure.
type VCS interface {
	Stage(ctx context.Context, path string) (string, error)
	Commit(ctx context.Context, message string) (string, error)
	Push(ctx context.Context) (string, error)
}

// ErrToolNotFound means the version-control executable is not installed.
var ErrToolNotFound = errors.New("tool not found")

// ExitError is a version-control command that exited with a non-zero status.
type ExitError struct {
	Args []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.Code)
}
