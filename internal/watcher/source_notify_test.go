//go:build !windows

package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newNotifySource(t *testing.T) *notifySource {
	t.Helper()
	src, err := newSource("")
	if err != nil {
		t.Fatalf("newSource: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src.(*notifySource)
}

func TestNotifySourcePollTimeout(t *testing.T) {
	src := newNotifySource(t)

	start := time.Now()
	events, err := src.Poll(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if events != nil {
		t.Errorf("Poll on a quiet source returned %v, want nil", events)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Poll returned after %v, want it to wait out the timeout", elapsed)
	}
}

func TestNotifySourceDeliversFileEvents(t *testing.T) {
	dir := t.TempDir()
	src := newNotifySource(t)
	if err := src.AddDirectory(dir); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := src.Poll(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		for _, ev := range events {
			if ev.Name == "f.txt" {
				if ev.Path != path {
					t.Errorf("event path = %q, want %q", ev.Path, path)
				}
				if ev.Dir != dir {
					t.Errorf("event dir = %q, want %q", ev.Dir, dir)
				}
				return
			}
		}
	}
	t.Fatal("write event never delivered")
}

func TestNotifySourceDrainsBurst(t *testing.T) {
	dir := t.TempDir()
	src := newNotifySource(t)
	if err := src.AddDirectory(dir); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	const files = 10
	for i := 0; i < files; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%d.txt", i))
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]struct{})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(seen) < files {
		events, err := src.Poll(100 * time.Millisecond)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		for _, ev := range events {
			seen[ev.Name] = struct{}{}
		}
	}
	if len(seen) != files {
		t.Errorf("observed %d distinct files, want %d: %v", len(seen), files, seen)
	}
}

func TestNotifySourceAddDirectoryIdempotentAndTolerant(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	src := newNotifySource(t)
	if err := src.AddDirectory(dir); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}
	if err := src.AddDirectory(dir); err != nil {
		t.Fatalf("repeated AddDirectory: %v", err)
	}
	if err := src.AddDirectory(filepath.Join(dir, "vanished")); err != nil {
		t.Errorf("AddDirectory on a missing dir: %v, want nil", err)
	}
	if err := src.AddDirectory(file); err != nil {
		t.Errorf("AddDirectory on a regular file: %v, want nil", err)
	}
	if got := len(src.dirs); got != 1 {
		t.Errorf("registered dirs = %d, want 1", got)
	}
}

func TestNotifySourceDropsEventsOnRegisteredDirs(t *testing.T) {
	dir := t.TempDir()
	src := newNotifySource(t)
	if err := src.AddDirectory(dir); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}

	// Metadata churn on a registered directory itself carries no file name
	// worth reporting.
	batch := src.appendEvent(nil, fsnotify.Event{Name: dir, Op: fsnotify.Chmod})
	if len(batch) != 0 {
		t.Errorf("event on a registered directory not dropped: %v", batch)
	}

	batch = src.appendEvent(batch, fsnotify.Event{Name: filepath.Join(dir, "f.txt"), Op: fsnotify.Create})
	if len(batch) != 1 {
		t.Fatalf("event on a file inside the directory dropped: %v", batch)
	}
	if batch[0].Name != "f.txt" || batch[0].Dir != dir {
		t.Errorf("event = %+v, want name f.txt in %s", batch[0], dir)
	}
}

func TestProbeReportsBackend(t *testing.T) {
	c := Probe()
	if !c.OK {
		t.Skipf("no notification backend here: %s", c.Hint)
	}
	want := "kqueue"
	if runtime.GOOS == "linux" {
		want = "inotify"
	}
	if c.Backend != want {
		t.Errorf("Backend = %q, want %q", c.Backend, want)
	}
	if c.Hint != "" {
		t.Errorf("usable backend carries a hint: %q", c.Hint)
	}
}
