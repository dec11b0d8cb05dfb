// Package follow streams entries as they are appended to the log file.
package follow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/marcelocantos/txtlog/internal/entry"
)

const bufferSize = 256

// follower tracks the read position in one log file.
type follower struct {
	path    string
	logger  *logrus.Logger
	fsw     *fsnotify.Watcher
	file    *os.File
	offset  int64
	partial []byte
}

// Follow watches path and sends every entry appended after the call. The
// file may not exist yet, but its directory must. Truncation and
// re-creation restart reading from the beginning of the new content. The
// returned channel is closed when ctx is cancelled.
func Follow(ctx context.Context, path string, logger *logrus.Logger) (<-chan entry.Entry, error) {
	return start(ctx, path, -1, logger)
}

// FollowFrom is Follow starting at byte offset rather than at the end of
// the file. A caller that has read the log up to offset (see
// journal.TailOffset) receives every later entry exactly once.
func FollowFrom(ctx context.Context, path string, offset int64, logger *logrus.Logger) (<-chan entry.Entry, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	return start(ctx, path, offset, logger)
}

// start opens the file at offset, or at its end when offset is negative.
func start(ctx context.Context, path string, offset int64, logger *logrus.Logger) (<-chan entry.Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so creation and rotation are seen too.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	f := &follower{path: abs, logger: logger, fsw: fsw}
	if err := f.open(offset); err != nil && !os.IsNotExist(err) {
		fsw.Close()
		return nil, err
	}

	out := make(chan entry.Entry, bufferSize)
	go f.run(ctx, out)
	return out, nil
}

func (f *follower) run(ctx context.Context, out chan<- entry.Entry) {
	defer close(out)
	defer f.fsw.Close()
	defer f.close()

	// Catch up on anything written before the watcher saw it.
	if !f.drain(ctx, out) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-f.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != f.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				f.close()
				continue
			case ev.Has(fsnotify.Create):
				f.close()
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if !f.drain(ctx, out) {
					return
				}
			}

		case err, ok := <-f.fsw.Errors:
			if !ok {
				return
			}
			f.logger.WithError(err).Warn("Log watcher error")
		}
	}
}

// open opens the file positioned at offset, or at its end when offset is
// negative.
func (f *follower) open(offset int64) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	f.offset = offset
	if offset < 0 {
		if f.offset, err = file.Seek(0, io.SeekEnd); err != nil {
			file.Close()
			return fmt.Errorf("seek %s: %w", f.path, err)
		}
	}
	f.file = file
	f.partial = nil
	return nil
}

func (f *follower) close() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
	f.partial = nil
}

// drain reads everything past the current offset and emits complete
// entries. It returns false if ctx was cancelled while sending.
func (f *follower) drain(ctx context.Context, out chan<- entry.Entry) bool {
	if f.file == nil {
		if err := f.open(0); err != nil {
			if !os.IsNotExist(err) {
				f.logger.WithError(err).Warn("Cannot open log")
			}
			return true
		}
	}

	if info, err := f.file.Stat(); err == nil && info.Size() < f.offset {
		// Truncated in place.
		f.offset = 0
		f.partial = nil
	}
	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		f.logger.WithError(err).Warn("Cannot seek log")
		return true
	}
	data, err := io.ReadAll(f.file)
	if err != nil {
		f.logger.WithError(err).Warn("Cannot read log")
		return true
	}
	f.offset += int64(len(data))

	data = append(f.partial, data...)
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		f.partial = data
		return true
	}
	f.partial = append([]byte(nil), data[cut+1:]...)

	entries, orphan := entry.Scan(data[:cut+1])
	if orphan >= 0 {
		f.logger.WithField("path", f.path).Debug("Skipped continuation lines without a header")
	}
	for _, e := range entries {
		select {
		case out <- e:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
