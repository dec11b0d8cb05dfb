package journal

import (
	"fmt"
	"os"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/marcelocantos/txtlog/internal/entry"
)

// StarlarkFilter runs a user script's filter(kind, text) function on every
// entry before it is written, e.g. to redact tokens or e-mail addresses.
type StarlarkFilter struct {
	mu     sync.Mutex
	name   string
	fn     starlark.Callable
	thread *starlark.Thread
}

var _ Filter = (*StarlarkFilter)(nil)

// LoadStarlarkFilter reads and compiles the script at path.
func LoadStarlarkFilter(path string) (*StarlarkFilter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter: %w", err)
	}
	return CompileStarlarkFilter(path, src)
}

// CompileStarlarkFilter compiles src, which must define filter(kind, text).
func CompileStarlarkFilter(name string, src []byte) (*StarlarkFilter, error) {
	thread := &starlark.Thread{Name: "filter"}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, name, src, nil)
	if err != nil {
		return nil, fmt.Errorf("compile filter %s: %w", name, err)
	}
	fn, ok := globals["filter"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("filter %s: no filter(kind, text) function defined", name)
	}
	return &StarlarkFilter{name: name, fn: fn, thread: thread}, nil
}

// Apply calls filter(kind, text) and returns its string result.
func (f *StarlarkFilter) Apply(kind entry.Kind, text string) (string, error) {
	// A starlark.Thread must not be used concurrently.
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := starlark.Call(f.thread, f.fn, starlark.Tuple{starlark.String(kind), starlark.String(text)}, nil)
	if err != nil {
		return "", fmt.Errorf("filter %s: %w", f.name, err)
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("filter %s: returned %s, want string", f.name, v.Type())
	}
	return s, nil
}
