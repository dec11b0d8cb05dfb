package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/marcelocantos/txtlog/internal/entry"
)

// ReadAll parses every entry in the log file. Physical lines that do not
// start with a header are joined onto the previous entry's text. A missing
// file yields no entries.
func ReadAll(path string) ([]entry.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log: %w", err)
	}
	entries, _ := entry.Scan(data)
	return entries, nil
}

// Tail returns the last n entries from the log file.
func Tail(path string, n int) ([]entry.Entry, error) {
	entries, err := ReadAll(path)
	if err != nil {
		return nil, err
	}
	return lastN(entries, n), nil
}

// TailOffset is Tail that also returns the byte offset just past the last
// complete line it parsed, for resuming with follow.FollowFrom.
func TailOffset(path string, n int) ([]entry.Entry, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read log: %w", err)
	}
	cut := bytes.LastIndexByte(data, '\n') + 1
	entries, _ := entry.Scan(data[:cut])
	return lastN(entries, n), int64(cut), nil
}

func lastN(entries []entry.Entry, n int) []entry.Entry {
	n = max(0, min(n, len(entries)))
	return entries[len(entries)-n:]
}

// Check reads the log and returns the number of entries, or an error
// describing the first line that breaks the file format.
func Check(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read log: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		return 0, fmt.Errorf("log does not end with a newline")
	}
	entries, orphan := entry.Scan(data)
	if orphan >= 0 {
		return 0, fmt.Errorf("line %d: continuation line before any entry", orphan+1)
	}
	return len(entries), nil
}
