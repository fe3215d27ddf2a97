/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initWorktree creates a temporary git repo with fixtures and returns
// its worktree and root path.
func initWorktree(t *testing.T) (*gogit.Worktree, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	writeTestFile(t, dir, "hello.txt", "Hello, World!")
	writeTestFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	if err := os.MkdirAll(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, dir, "subdir/nested.txt", "nested content here")
	writeTestFile(t, dir, "image.png", "")

	if _, err := wt.Add("."); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@test", When: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	return wt, dir
}

func writeTestFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, relPath), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadFile(t *testing.T) {
	wt, _ := initWorktree(t)
	cb := WorktreeCallbacks(wt)
	ctx := context.Background()

	got, err := cb.ReadFile(ctx, "hello.txt")
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if got != "Hello, World!" {
		t.Errorf("ReadFile() = %q", got)
	}

	if _, err := cb.ReadFile(ctx, "nope.txt"); err == nil {
		t.Error("ReadFile on missing file succeeded, wanted error")
	}
	if _, err := cb.ReadFile(ctx, "../outside.txt"); err == nil {
		t.Error("ReadFile escaping the worktree succeeded, wanted error")
	}
}

func TestWriteFileStages(t *testing.T) {
	wt, dir := initWorktree(t)
	cb := WorktreeCallbacks(wt)
	ctx := context.Background()

	if err := cb.WriteFile(ctx, "pkg/new.go", "package pkg\n"); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pkg/new.go"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "package pkg\n" {
		t.Errorf("written content = %q", data)
	}

	status, err := wt.Status()
	if err != nil {
		t.Fatal(err)
	}
	st := status.File("pkg/new.go")
	if st.Staging != gogit.Added {
		t.Errorf("pkg/new.go staging = %v, want Added", st.Staging)
	}

	if err := cb.WriteFile(ctx, "../../etc/evil", "x"); err == nil {
		t.Error("WriteFile escaping the worktree succeeded, wanted error")
	}
}

func TestDeleteFileStages(t *testing.T) {
	wt, dir := initWorktree(t)
	cb := WorktreeCallbacks(wt)
	ctx := context.Background()

	if err := cb.DeleteFile(ctx, "hello.txt"); err != nil {
		t.Fatalf("DeleteFile() = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "hello.txt")); !os.IsNotExist(err) {
		t.Error("hello.txt still exists after delete")
	}

	status, err := wt.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st := status.File("hello.txt"); st.Staging != gogit.Deleted {
		t.Errorf("hello.txt staging = %v, want Deleted", st.Staging)
	}
}

func TestListFiles(t *testing.T) {
	wt, _ := initWorktree(t)
	cb := WorktreeCallbacks(wt)

	names, err := cb.ListFiles(context.Background(), ".")
	if err != nil {
		t.Fatalf("ListFiles() = %v", err)
	}
	if !slices.Contains(names, "hello.txt") || !slices.Contains(names, "subdir/") {
		t.Errorf("ListFiles() = %v, want hello.txt and subdir/", names)
	}
}

func TestSearchFiles(t *testing.T) {
	wt, _ := initWorktree(t)
	cb := WorktreeCallbacks(wt)

	matches, err := cb.SearchFiles(context.Background(), `func main`)
	if err != nil {
		t.Fatalf("SearchFiles() = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("SearchFiles() found %d matches, want 1", len(matches))
	}
	if matches[0].Path != "main.go" || matches[0].Line != 3 {
		t.Errorf("match = %+v, want main.go:3", matches[0])
	}
	if !strings.Contains(matches[0].Content, "func main") {
		t.Errorf("match content = %q", matches[0].Content)
	}

	if _, err := cb.SearchFiles(context.Background(), `([`); err == nil {
		t.Error("SearchFiles with invalid pattern succeeded, wanted error")
	}
}
