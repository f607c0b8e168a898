package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/repowatch/repowatch/internal/ipc"
)

// ANSI escape codes for terminal formatting.
const (
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	reset  = "\033[0m"
)

// FormatJSON marshals any value as indented JSON for --json output.
func FormatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// FormatStatus formats daemon status as a terminal-friendly string.
func FormatStatus(st *ipc.StatusData) string {
	var b strings.Builder

	b.WriteString(bold + "repowatch daemon" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString(fmt.Sprintf("%-14s %s\n", "Root:", st.Root))
	b.WriteString(fmt.Sprintf("%-14s %s (%d dirs watched)\n", "Watcher:", st.WatcherState, st.WatchedDirs))
	b.WriteString(fmt.Sprintf("%-14s %s\n", "Uptime:", st.Uptime))
	b.WriteString(fmt.Sprintf("%-14s %d\n", "Refreshes:", st.RefreshCount))
	b.WriteString(fmt.Sprintf("%-14s %.1f KB\n", "DB size:", float64(st.DBSizeBytes)/1024.0))

	if st.Worktree == nil {
		b.WriteString("\nNo status snapshot yet.\n")
		return b.String()
	}

	w := st.Worktree
	b.WriteString("\n" + bold + "Worktree status" + reset)
	b.WriteString(fmt.Sprintf(" (as of %s)\n", w.Timestamp.Local().Format("15:04:05")))
	if w.Clean() {
		b.WriteString(green + "clean" + reset + "\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("%sstaged%s %d  %smodified%s %d  %sdeleted%s %d  %suntracked%s %d\n",
		green, reset, w.Staged,
		yellow, reset, w.Modified,
		red, reset, w.Deleted,
		yellow, reset, w.Untracked))
	for _, path := range w.Sample {
		b.WriteString("  " + path + "\n")
	}
	return b.String()
}

// FormatHistory formats the refresh journal as a table, newest first.
func FormatHistory(h *ipc.HistoryData) string {
	if len(h.Entries) == 0 {
		return "No refreshes recorded yet.\n"
	}

	var b strings.Builder
	b.WriteString(bold + "Recent refreshes" + reset + "\n")
	b.WriteString(strings.Repeat("-", 62) + "\n")
	b.WriteString(fmt.Sprintf("%-20s %8s %7s %9s %8s %10s\n",
		"Time", "Took", "Staged", "Modified", "Deleted", "Untracked"))
	b.WriteString(strings.Repeat("-", 62) + "\n")
	for _, e := range h.Entries {
		b.WriteString(fmt.Sprintf("%-20s %8s %7d %9d %8d %10d\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Duration.String(),
			e.Staged, e.Modified, e.Deleted, e.Untracked))
	}
	return b.String()
}
