package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/repowatch/repowatch/internal/gitrepo"
	"github.com/repowatch/repowatch/internal/store"
)

const defaultHistoryLimit = 20

// DaemonQuerier is the interface the IPC server uses to query daemon state.
// This avoids importing the daemon package (which would be circular).
type DaemonQuerier interface {
	Uptime() time.Duration
	Root() string
	WatcherState() string
	WatchCount() int64
	Snapshot() *gitrepo.Summary
	Stop()
}

// StoreQuerier provides the data access the IPC server needs.
type StoreQuerier interface {
	RefreshCount() (int64, error)
	RecentRefreshes(limit int) ([]store.RefreshRecord, error)
	DBSizeBytes() (int64, error)
}

// Server is a Unix domain socket server for CLI-to-daemon communication.
type Server struct {
	log *log.Logger

	mu       sync.Mutex
	daemon   DaemonQuerier
	store    StoreQuerier
	listener net.Listener
	wg       sync.WaitGroup
	stopped  bool
}

// NewServer creates a new IPC server. The daemon and store references are
// wired in afterwards via SetDaemon and SetStore to break the circular
// construction dependency.
func NewServer(logger *log.Logger) *Server {
	return &Server{log: logger}
}

// SetDaemon sets the daemon reference.
func (s *Server) SetDaemon(d DaemonQuerier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daemon = d
}

// SetStore sets the store reference once the daemon has opened it.
func (s *Server) SetStore(sq StoreQuerier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = sq
}

// Listen starts accepting connections on the given Unix socket path. It
// blocks until the context is cancelled or an error occurs.
func (s *Server) Listen(socketPath string, ctx context.Context) error {
	// Remove stale socket file if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", socketPath, err)
	}

	// Socket is owner-only: it can stop the daemon.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.stopped = false
	s.mu.Unlock()

	s.log.Info("ipc server listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop stops accepting connections and waits for in-flight connections to
// drain, bounded by a 5 second timeout.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("drain timeout: connections still open after 5s")
	}
}

// handleConn reads a single JSON request, dispatches it, and writes the
// response.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		writeError(conn, "empty request")
		return
	}

	var req Request
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		writeError(conn, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	switch req.Command {
	case "ping":
		writeResponse(conn, Response{OK: true, Data: "pong"})

	case "status":
		s.handleStatus(conn)

	case "history":
		s.handleHistory(conn, req.Args)

	case "stop":
		writeResponse(conn, Response{OK: true, Data: "shutting down"})
		// Trigger daemon shutdown after sending the response.
		s.mu.Lock()
		d := s.daemon
		s.mu.Unlock()
		if d != nil {
			d.Stop()
		}

	default:
		writeError(conn, fmt.Sprintf("unknown command: %q", req.Command))
	}
}

func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	d := s.daemon
	sq := s.store
	s.mu.Unlock()

	var data StatusData
	if d != nil {
		data.Uptime = d.Uptime().Truncate(time.Second).String()
		data.Root = d.Root()
		data.WatcherState = d.WatcherState()
		data.WatchedDirs = d.WatchCount()
		data.Worktree = d.Snapshot()
	}
	if sq != nil {
		if v, err := sq.RefreshCount(); err == nil {
			data.RefreshCount = v
		}
		if v, err := sq.DBSizeBytes(); err == nil {
			data.DBSizeBytes = v
		}
	}

	writeResponse(conn, Response{OK: true, Data: data})
}

func (s *Server) handleHistory(conn net.Conn, args map[string]string) {
	s.mu.Lock()
	sq := s.store
	s.mu.Unlock()

	if sq == nil {
		writeError(conn, "store not ready")
		return
	}

	limit := defaultHistoryLimit
	if v, ok := args["limit"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := sq.RecentRefreshes(limit)
	if err != nil {
		writeError(conn, fmt.Sprintf("query history: %v", err))
		return
	}
	writeResponse(conn, Response{OK: true, Data: HistoryData{Entries: entries}})
}

func writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func writeError(conn net.Conn, msg string) {
	writeResponse(conn, Response{OK: false, Error: msg})
}
