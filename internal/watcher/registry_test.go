package watcher

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRegistryAddIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	canonical, added := r.Add(dir)
	if !added {
		t.Fatalf("first Add(%q) = false, want true", dir)
	}
	if canonical == "" {
		t.Fatal("first Add returned empty canonical path")
	}

	if _, added := r.Add(dir); added {
		t.Error("second Add of the same directory reported newly added")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryCanonicalisesSpellings(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if _, added := r.Add(sub); !added {
		t.Fatal("expected first add to succeed")
	}

	// A different spelling of the same directory must not register twice.
	dotted := filepath.Join(dir, ".", "sub")
	if _, added := r.Add(dotted); added {
		t.Errorf("Add(%q) registered an already-present directory", dotted)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryResolvesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if _, added := r.Add(target); !added {
		t.Fatal("expected add of target to succeed")
	}
	if _, added := r.Add(link); added {
		t.Error("symlinked spelling registered the same directory twice")
	}
	if !r.Contains(link) {
		t.Error("Contains should resolve the symlinked spelling")
	}
}

func TestRegistrySkipsMissingDirectories(t *testing.T) {
	r := NewRegistry()
	if _, added := r.Add(filepath.Join(t.TempDir(), "gone")); added {
		t.Error("Add of a missing directory reported success")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistrySkipsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if _, added := r.Add(file); added {
		t.Error("Add of a regular file reported success")
	}
}
