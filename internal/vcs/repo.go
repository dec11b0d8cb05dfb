package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Repo implements VCS in-process with go-git, for hosts without a git
// executable. Only HTTP(S) remotes are supported for push.
type Repo struct {
	// Dir is any path inside the working tree.
	Dir string
	// Remote defaults to "origin".
	Remote string

	// AuthorName and AuthorEmail sign commits. When empty, go-git falls
	// back to the repository and global git config.
	AuthorName  string
	AuthorEmail string

	// Username and Token authenticate pushes with HTTP basic auth.
	Username string
	Token    string
}

var _ VCS = (*Repo)(nil)

func (r *Repo) open() (*goGit.Repository, *goGit.Worktree, error) {
	dir := r.Dir
	if dir == "" {
		dir = "."
	}
	repo, err := goGit.PlainOpenWithOptions(dir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, goGit.ErrRepositoryNotExists) {
			return nil, nil, fmt.Errorf("%s: not a git repository", dir)
		}
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("open worktree: %w", err)
	}
	return repo, wt, nil
}

func (r *Repo) Stage(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, wt, err := r.open()
	if err != nil {
		return "", err
	}
	rel, err := relativeTo(wt.Filesystem.Root(), path)
	if err != nil {
		return "", err
	}
	if _, err := wt.Add(rel); err != nil {
		return "", fmt.Errorf("add %s: %w", rel, err)
	}
	return "", nil
}

func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, wt, err := r.open()
	if err != nil {
		return "", err
	}
	opts := &goGit.CommitOptions{}
	if r.AuthorName != "" || r.AuthorEmail != "" {
		opts.Author = &object.Signature{
			Name:  r.AuthorName,
			Email: r.AuthorEmail,
			When:  time.Now(),
		}
	}
	hash, err := wt.Commit(message, opts)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return fmt.Sprintf("[%s] %s\n", hash.String()[:7], firstLine(message)), nil
}

func (r *Repo) Push(ctx context.Context) (string, error) {
	repo, _, err := r.open()
	if err != nil {
		return "", err
	}
	remote := r.Remote
	if remote == "" {
		remote = "origin"
	}
	err = repo.PushContext(ctx, &goGit.PushOptions{
		RemoteName: remote,
		Auth:       r.authMethod(),
	})
	if errors.Is(err, goGit.NoErrAlreadyUpToDate) {
		return "Everything up-to-date\n", nil
	}
	if err != nil {
		return "", fmt.Errorf("push %s: %w", remote, err)
	}
	return fmt.Sprintf("pushed to %s\n", remote), nil
}

func (r *Repo) authMethod() transport.AuthMethod {
	if r.Token == "" {
		return nil
	}
	user := r.Username
	if user == "" {
		// GitHub accepts any non-empty username alongside a token.
		user = "x-access-token"
	}
	return &http.BasicAuth{Username: user, Password: r.Token}
}

// relativeTo returns path relative to root in slash form, rejecting paths
// outside the working tree.
func relativeTo(root, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside repository %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
