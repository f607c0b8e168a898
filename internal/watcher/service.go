package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// TrackedLister enumerates the files the watched project considers part of
// its content. It is consulted once during startup to seed directory
// registrations; the worktree root is watched regardless.
type TrackedLister interface {
	TrackedFiles() ([]string, error)
}

// State is the lifecycle phase of a Service's watch goroutine.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// DefaultQuietInterval is the delay between the first event of a burst
	// and the coalesced broadcast.
	DefaultQuietInterval = 888 * time.Millisecond

	// DefaultPollTimeout bounds each backend wait so the loop can observe a
	// stop request. A tradeoff between notification latency and how long
	// shutdown may take.
	DefaultPollTimeout = 333 * time.Millisecond
)

// Options configure a Service.
type Options struct {
	// Root is the absolute path of the worktree to watch.
	Root string

	// Enabled gates the whole subsystem. When false, Start logs why and
	// never spawns a goroutine.
	Enabled bool

	QuietInterval time.Duration
	PollTimeout   time.Duration

	// Ignore holds extra ignore patterns on top of the built-ins.
	Ignore []string
}

// Service owns the background watch goroutine for one monitoring session:
// it opens the backend, seeds directory registrations from the tracked file
// list, runs the poll loop, and forwards qualifying events to the
// Debouncer. Start and Stop are issued from the controlling goroutine; all
// backend and registry mutation happens on the watch goroutine.
type Service struct {
	opts     Options
	lister   TrackedLister
	filter   *Filter
	debounce *Debouncer
	log      *log.Logger

	// Swapped out in tests.
	openSource func(root string) (Source, error)
	probe      func() Capability

	watched atomic.Int64

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewService creates a Service. broadcast is the downstream refresh action
// invoked once per coalesced batch; it runs on a timer goroutine and must
// marshal itself to another executor if it needs one.
func NewService(opts Options, lister TrackedLister, logger *log.Logger, broadcast func() error) *Service {
	if opts.QuietInterval <= 0 {
		opts.QuietInterval = DefaultQuietInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Service{
		opts:       opts,
		lister:     lister,
		filter:     NewFilter(opts.Ignore),
		debounce:   NewDebouncer(opts.QuietInterval, logger, broadcast),
		log:        logger,
		openSource: newSource,
		probe:      Probe,
		state:      Idle,
	}
}

// Start begins watching. When the config flag is disabled or no usable
// backend exists the service stays Idle, logs a one-line diagnostic, and
// returns nil: a degraded watcher is not an error.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A Service is single-use: its debouncer stays stopped after Stop, so a
	// finished session cannot be restarted either.
	if s.state != Idle {
		return fmt.Errorf("watcher already started (state %s)", s.state)
	}

	if !s.opts.Enabled {
		s.log.Info("file notification disabled because watch.enabled is false")
		return nil
	}

	c := s.probe()
	if !c.OK {
		s.log.Warn(c.Hint)
		return nil
	}

	s.state = Starting
	s.done = make(chan struct{})
	go s.run()

	s.log.Info("file notification enabled", "backend", c.Backend, "root", s.opts.Root)
	return nil
}

// Stop requests cancellation and blocks until the watch goroutine has
// exited. Worst case this takes one poll timeout plus backend teardown.
// Stopping an inactive service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != Starting && s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	done := s.done
	s.mu.Unlock()

	<-done
	s.debounce.Stop()
}

// IsActive reports whether a watch goroutine is currently running.
func (s *Service) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Starting || s.state == Running || s.state == Stopping
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WatchCount returns the number of directories registered so far.
func (s *Service) WatchCount() int64 {
	return s.watched.Load()
}

// run is the watch goroutine: startup registration, the poll loop, and
// teardown. The Source and Registry are owned exclusively by this
// goroutine.
func (s *Service) run() {
	defer close(s.done)
	defer s.setState(Stopped)

	src, err := s.openSource(s.opts.Root)
	if err != nil {
		s.log.Error("open event source", "error", err)
		return
	}
	defer src.Close()

	reg := NewRegistry()
	s.register(src, reg, s.opts.Root)

	if s.lister != nil {
		files, err := s.lister.TrackedFiles()
		if err != nil {
			s.log.Warn("tracked file enumeration failed, watching root only", "error", err)
		}
		for _, f := range files {
			path := f
			if !filepath.IsAbs(path) {
				path = filepath.Join(s.opts.Root, f)
			}
			s.register(src, reg, filepath.Dir(path))
		}
	}

	s.setState(Running)
	s.log.Debug("watch loop entered", "dirs", reg.Len())

	for {
		events, err := src.Poll(s.opts.PollTimeout)
		if s.stopRequested() {
			return
		}
		if err != nil {
			s.log.Error("event source failed, watcher exiting", "error", err)
			return
		}
		for _, ev := range events {
			s.handle(src, reg, ev)
		}
	}
}

// register adds dir to the registry and, if newly added, to the backend.
// Missing directories are skipped silently.
func (s *Service) register(src Source, reg *Registry, dir string) {
	canonical, added := reg.Add(dir)
	if !added {
		return
	}
	// The count mirrors the registry, which keeps the entry even when the
	// backend refuses it.
	s.watched.Store(int64(reg.Len()))
	if err := src.AddDirectory(canonical); err != nil {
		s.log.Debug("register directory", "dir", canonical, "error", err)
	}
}

// handle filters and normalises one raw event, registers newly appeared
// directories, and forwards the change to the debouncer.
func (s *Service) handle(src Source, reg *Registry, ev RawEvent) {
	if ev.Name == "" {
		return
	}
	rel, err := filepath.Rel(s.opts.Root, ev.Path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	if s.filter.Ignored(rel) {
		return
	}
	info, err := os.Stat(ev.Path)
	if err != nil {
		// Gone between delivery and processing.
		return
	}
	if info.IsDir() {
		s.register(src, reg, ev.Path)
	}
	s.debounce.Notify()
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A stop request must not be clobbered by the goroutine catching up.
	if s.state == Stopping && st != Stopped {
		return
	}
	s.state = st
}

func (s *Service) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Stopping
}
