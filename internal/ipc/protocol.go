package ipc

import (
	"github.com/repowatch/repowatch/internal/gitrepo"
	"github.com/repowatch/repowatch/internal/store"
)

// Request is a JSON message sent from client to server.
type Request struct {
	Command string            `json:"command"` // "ping", "status", "history", "stop"
	Args    map[string]string `json:"args,omitempty"`
}

// Response is a JSON message sent from server to client.
type Response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// StatusData is returned by the "status" command.
type StatusData struct {
	Uptime       string           `json:"uptime"`
	Root         string           `json:"root"`
	WatcherState string           `json:"watcher_state"`
	WatchedDirs  int64            `json:"watched_dirs"`
	RefreshCount int64            `json:"refresh_count"`
	DBSizeBytes  int64            `json:"db_size_bytes"`
	Worktree     *gitrepo.Summary `json:"worktree,omitempty"`
}

// HistoryData is returned by the "history" command.
type HistoryData struct {
	Entries []store.RefreshRecord `json:"entries"`
}
