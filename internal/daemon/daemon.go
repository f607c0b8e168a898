package daemon

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/repowatch/repowatch/internal/config"
	"github.com/repowatch/repowatch/internal/gitrepo"
	"github.com/repowatch/repowatch/internal/ipc"
	"github.com/repowatch/repowatch/internal/store"
	"github.com/repowatch/repowatch/internal/watcher"
)

// IPCServer is the interface the daemon uses to run the IPC listener. The
// concrete server is injected to avoid a circular dependency: the ipc
// package must not import daemon.
type IPCServer interface {
	Listen(socketPath string, ctx context.Context) error
	Stop() error
	SetStore(ipc.StoreQuerier)
}

// Daemon manages the lifecycle of the repowatch background process: it
// owns the store, the watcher service, and the IPC server, and caches the
// latest worktree status snapshot for IPC reads.
type Daemon struct {
	cfg  *config.Config
	repo *gitrepo.Repo
	ipc  IPCServer
	log  *log.Logger

	store   *store.Store
	watcher *watcher.Service

	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	mu       sync.Mutex
	running  bool
	snapshot *gitrepo.Summary
}

// New creates a Daemon for the given worktree.
func New(cfg *config.Config, repo *gitrepo.Repo, ipcServer IPCServer, logger *log.Logger) *Daemon {
	return &Daemon{
		cfg:  cfg,
		repo: repo,
		ipc:  ipcServer,
		log:  logger,
	}
}

// Start initialises the store, starts the IPC server and the watcher, and
// blocks until a signal arrives or Stop is called.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.mu.Unlock()

	if err := d.cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s, err := store.New(d.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	d.store = s
	d.ipc.SetStore(s)

	ctx, cancel := signalContext(context.Background())
	d.ctx = ctx
	d.cancel = cancel
	d.startTime = time.Now()

	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	ipcErrCh := make(chan error, 1)
	go func() {
		ipcErrCh <- d.ipc.Listen(d.cfg.SocketPath, d.ctx)
	}()

	// Compute a first snapshot so status queries have an answer before any
	// filesystem event fires.
	if err := d.refresh(); err != nil {
		d.log.Warn("initial status refresh failed", "error", err)
	}

	d.watcher = watcher.NewService(watcher.Options{
		Root:          d.repo.Root(),
		Enabled:       d.cfg.Watch.Enabled,
		QuietInterval: d.cfg.Watch.QuietInterval(),
		PollTimeout:   d.cfg.Watch.PollTimeout(),
		Ignore:        d.cfg.Watch.IgnorePatterns,
	}, d.repo, d.log, d.refresh)

	if err := d.watcher.Start(); err != nil {
		d.log.Error("start watcher", "error", err)
	}

	d.log.Info("daemon started",
		"pid", os.Getpid(), "root", d.repo.Root(), "socket", d.cfg.SocketPath)

	select {
	case <-d.ctx.Done():
		d.log.Info("shutdown signal received")
	case err := <-ipcErrCh:
		if err != nil {
			d.log.Error("ipc server failed", "error", err)
		}
	}

	return d.shutdown()
}

// Stop triggers a graceful shutdown from outside (e.g. the IPC stop
// command).
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// shutdown performs ordered teardown: watcher, IPC server, store, socket.
func (d *Daemon) shutdown() error {
	d.log.Info("shutting down")

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.ipc != nil {
		if err := d.ipc.Stop(); err != nil {
			d.log.Warn("ipc stop", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warn("store close", "error", err)
		}
	}
	_ = os.Remove(d.cfg.SocketPath)

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.log.Info("daemon stopped")
	return nil
}

// refresh is the downstream action fired once per coalesced batch: it
// recomputes the worktree status, caches the snapshot for IPC reads, and
// journals the outcome. It runs on the debouncer's timer goroutine.
func (d *Daemon) refresh() error {
	start := time.Now()
	sum, err := d.repo.Status()
	if err != nil {
		return fmt.Errorf("refresh status: %w", err)
	}

	d.mu.Lock()
	d.snapshot = sum
	d.mu.Unlock()

	took := time.Since(start)
	if err := d.store.InsertRefresh(store.RefreshRecord{
		Timestamp: sum.Timestamp,
		Duration:  took,
		Staged:    sum.Staged,
		Modified:  sum.Modified,
		Deleted:   sum.Deleted,
		Untracked: sum.Untracked,
	}); err != nil {
		return fmt.Errorf("journal refresh: %w", err)
	}

	d.log.Debug("status refreshed", "took", took,
		"staged", sum.Staged, "modified", sum.Modified,
		"deleted", sum.Deleted, "untracked", sum.Untracked)
	return nil
}

// Running returns true if the daemon is currently running.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	if d.startTime.IsZero() {
		return 0
	}
	return time.Since(d.startTime)
}

// Root returns the watched worktree root.
func (d *Daemon) Root() string {
	return d.repo.Root()
}

// WatcherState reports the watcher's lifecycle state for status queries.
func (d *Daemon) WatcherState() string {
	if d.watcher == nil {
		return watcher.Idle.String()
	}
	return d.watcher.State().String()
}

// WatchCount returns the number of directories the watcher has registered.
func (d *Daemon) WatchCount() int64 {
	if d.watcher == nil {
		return 0
	}
	return d.watcher.WatchCount()
}

// Snapshot returns the most recent cached worktree status, or nil if no
// refresh has completed yet.
func (d *Daemon) Snapshot() *gitrepo.Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}
