package watcher

import (
	"errors"
	"time"
)

// ErrSourceClosed is returned by Poll after the source has been closed or
// its underlying event stream has gone away. The watch loop treats it as
// fatal to the session.
var ErrSourceClosed = errors.New("watcher: event source closed")

// RawEvent is a single change notification as delivered by a backend.
// Name is the entry's base name within Dir; Path is the joined full path.
type RawEvent struct {
	Dir  string
	Name string
	Path string
}

// Source is the backend-specific event source. Implementations register
// directories for change notification and deliver raw events in batches.
//
// AddDirectory must be idempotent and must tolerate directories that no
// longer exist. Poll blocks for at most timeout and returns a nil batch on
// timeout; the caller uses the bounded wait to check for cancellation.
// Close releases the backend handle; Poll calls after Close return
// ErrSourceClosed.
type Source interface {
	AddDirectory(dir string) error
	Poll(timeout time.Duration) ([]RawEvent, error)
	Close() error
}

// Capability reports whether a usable notification backend exists on this
// platform, with a one-line install or tuning hint when it does not.
type Capability struct {
	OK      bool
	Backend string
	Hint    string
}
