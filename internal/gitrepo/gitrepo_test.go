package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initTestRepo creates a repository with two committed files in distinct
// subdirectories and returns its root.
func initTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	repo, err := git.PlainInit(root, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	for _, rel := range []string{
		filepath.Join("src", "main.go"),
		filepath.Join("docs", "readme.md"),
	} {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("content\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			t.Fatalf("Add %s: %v", rel, err)
		}
	}

	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return root
}

func TestOpenFromSubdirectoryFindsRoot(t *testing.T) {
	root := initTestRepo(t)

	r, err := Open(filepath.Join(root, "src"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := filepath.EvalSymlinks(r.Root())
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Root() = %q, want %q", got, want)
	}
}

func TestOpenOutsideRepositoryFails(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open outside a repository did not fail")
	}
}

func TestTrackedFiles(t *testing.T) {
	root := initTestRepo(t)

	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	files, err := r.TrackedFiles()
	if err != nil {
		t.Fatalf("TrackedFiles: %v", err)
	}

	want := map[string]bool{
		filepath.Join("src", "main.go"):    false,
		filepath.Join("docs", "readme.md"): false,
	}
	for _, f := range files {
		if _, ok := want[f]; !ok {
			t.Errorf("unexpected tracked file %q", f)
			continue
		}
		want[f] = true
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("tracked file %q missing", f)
		}
	}
}

func TestStatusCleanAfterCommit(t *testing.T) {
	root := initTestRepo(t)

	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sum, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !sum.Clean() {
		t.Errorf("fresh commit not clean: %+v", sum)
	}
	if len(sum.Sample) != 0 {
		t.Errorf("clean summary carries sample paths: %v", sum.Sample)
	}
}

func TestStatusCountsChanges(t *testing.T) {
	root := initTestRepo(t)

	if err := os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "new.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "docs", "readme.md")); err != nil {
		t.Fatal(err)
	}

	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sum, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	if sum.Clean() {
		t.Fatal("dirty worktree reported clean")
	}
	if sum.Modified != 1 {
		t.Errorf("Modified = %d, want 1", sum.Modified)
	}
	if sum.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", sum.Deleted)
	}
	if sum.Untracked != 1 {
		t.Errorf("Untracked = %d, want 1", sum.Untracked)
	}
	if len(sum.Sample) == 0 {
		t.Error("dirty summary carries no sample paths")
	}
	if sum.Timestamp.IsZero() {
		t.Error("summary timestamp not set")
	}
}
