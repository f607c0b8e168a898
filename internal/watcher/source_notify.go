//go:build !windows

package watcher

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// batchLimit caps how many queued events a single Poll call drains.
const batchLimit = 128

// notifySource adapts the kernel notification facility exposed by fsnotify
// (inotify on Linux, kqueue on the BSDs and macOS) to the Source contract.
// Registration is per directory and not recursive; the watch loop registers
// new directories as it encounters them.
//
// dirs is only touched from the watch loop goroutine, so it needs no lock.
type notifySource struct {
	fsw  *fsnotify.Watcher
	dirs map[string]struct{}
}

func newSource(root string) (Source, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &notifySource{
		fsw:  fsw,
		dirs: make(map[string]struct{}),
	}, nil
}

// AddDirectory registers dir for notifications. Already-registered and
// since-vanished directories are no-ops.
func (s *notifySource) AddDirectory(dir string) error {
	if _, ok := s.dirs[dir]; ok {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	if err := s.fsw.Add(dir); err != nil {
		return err
	}
	s.dirs[dir] = struct{}{}
	return nil
}

// Poll waits up to timeout for events and returns the batch that arrived.
// A nil batch with nil error means the wait timed out.
func (s *notifySource) Poll(timeout time.Duration) ([]RawEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var batch []RawEvent

	select {
	case ev, ok := <-s.fsw.Events:
		if !ok {
			return nil, ErrSourceClosed
		}
		batch = s.appendEvent(batch, ev)
	case err, ok := <-s.fsw.Errors:
		if !ok {
			return nil, ErrSourceClosed
		}
		return nil, err
	case <-timer.C:
		return nil, nil
	}

	// A save or a build rarely produces a single event. Drain whatever else
	// is already queued so one wakeup hands the loop the whole burst.
	for len(batch) < batchLimit {
		select {
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return batch, nil
			}
			batch = s.appendEvent(batch, ev)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// appendEvent converts an fsnotify event to a RawEvent. Events on a
// registered directory itself carry no file name worth reporting (directory
// metadata noise), so they are dropped here at the source.
func (s *notifySource) appendEvent(batch []RawEvent, ev fsnotify.Event) []RawEvent {
	path := filepath.Clean(ev.Name)
	if path == "" || path == "." {
		return batch
	}
	if _, ok := s.dirs[path]; ok {
		return batch
	}
	return append(batch, RawEvent{
		Dir:  filepath.Dir(path),
		Name: filepath.Base(path),
		Path: path,
	})
}

func (s *notifySource) Close() error {
	return s.fsw.Close()
}

var (
	probeOnce sync.Once
	probed    Capability
)

// Probe reports whether the notification backend is usable. The result is
// computed once per process: opening a watcher can fail even on supported
// kernels, e.g. when the inotify instance limit is exhausted.
func Probe() Capability {
	probeOnce.Do(func() {
		backend := "kqueue"
		if runtime.GOOS == "linux" {
			backend = "inotify"
		}
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			hint := "file notification unavailable: " + err.Error()
			if runtime.GOOS == "linux" {
				hint += " (try raising fs.inotify.max_user_instances)"
			}
			probed = Capability{OK: false, Backend: backend, Hint: hint}
			return
		}
		_ = fsw.Close()
		probed = Capability{OK: true, Backend: backend}
	})
	return probed
}
