package vcs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Exec shells out to a git executable.
type Exec struct {
	// Binary defaults to "git" resolved through PATH.
	Binary string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

var _ VCS = (*Exec)(nil)

func (g *Exec) Stage(ctx context.Context, path string) (string, error) {
	return g.run(ctx, "add", "--", path)
}

func (g *Exec) Commit(ctx context.Context, message string) (string, error) {
	return g.run(ctx, "commit", "-m", message)
}

func (g *Exec) Push(ctx context.Context) (string, error) {
	return g.run(ctx, "push")
}

// run executes git with stdout and stderr captured together. A missing
// executable maps to ErrToolNotFound and a non-zero exit to *ExitError.
func (g *Exec) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	// Resolve up front: a failed Start cannot tell a missing binary from a
	// missing Dir.
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", ErrToolNotFound
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = g.Dir
	if len(g.Env) > 0 {
		cmd.Env = append(os.Environ(), g.Env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), &ExitError{Args: args, Code: exitErr.ExitCode()}
		}
		return out.String(), err
	}
	return out.String(), nil
}
