/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package editor applies structured edits from a change plan to a git
// worktree. Every mutation is staged, so the clone layer commits
// exactly what was edited.
package editor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	gogit "github.com/go-git/go-git/v5"
)

// Editor performs plan edits inside a single worktree.
type Editor struct {
	wt   *gogit.Worktree
	root string
}

// New binds an editor to a worktree.
func New(wt *gogit.Worktree) *Editor {
	return &Editor{wt: wt, root: wt.Filesystem.Root()}
}

func (e *Editor) resolve(path string) (string, error) {
	fullPath := filepath.Join(e.root, filepath.Clean(path))
	rel, err := filepath.Rel(e.root, fullPath)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes worktree", path)
	}
	return fullPath, nil
}

func (e *Editor) read(path string) (string, string, error) {
	fullPath, err := e.resolve(path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, string(data), nil
}

func (e *Editor) write(ctx context.Context, path, fullPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return err
	}
	if _, err := e.wt.Add(path); err != nil {
		return fmt.Errorf("staging %s: %w", path, err)
	}
	clog.FromContext(ctx).With("path", path).Debug("staged edit")
	return nil
}

// Create writes a new file. It fails if the file already exists.
func (e *Editor) Create(ctx context.Context, path, content string) error {
	fullPath, err := e.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(fullPath); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return e.write(ctx, path, fullPath, content)
}

// Replace substitutes the first occurrence of target with replacement.
// When target is not present the replacement is appended to the end of
// the file instead, so a plan generated against slightly stale content
// still lands its code.
func (e *Editor) Replace(ctx context.Context, path, target, replacement string) error {
	fullPath, content, err := e.read(path)
	if err != nil {
		return err
	}
	if target != "" && strings.Contains(content, target) {
		content = strings.Replace(content, target, replacement, 1)
	} else {
		clog.FromContext(ctx).With("path", path).
			Warn("replace target not found, appending instead")
		content = appendBlock(content, replacement)
	}
	return e.write(ctx, path, fullPath, content)
}

// InsertAfter inserts content on a new line after the first line
// containing anchor, or appends when the anchor is missing.
func (e *Editor) InsertAfter(ctx context.Context, path, anchor, content string) error {
	fullPath, existing, err := e.read(path)
	if err != nil {
		return err
	}

	lines := strings.Split(existing, "\n")
	inserted := false
	if anchor != "" {
		for i, line := range lines {
			if strings.Contains(line, anchor) {
				rest := append([]string{content}, lines[i+1:]...)
				lines = append(lines[:i+1], rest...)
				inserted = true
				break
			}
		}
	}
	if !inserted {
		clog.FromContext(ctx).With("path", path).
			Warn("insert anchor not found, appending instead")
		return e.write(ctx, path, fullPath, appendBlock(existing, content))
	}
	return e.write(ctx, path, fullPath, strings.Join(lines, "\n"))
}

// InsertAtLine inserts content before the 1-based line number, clamped
// to the file's bounds.
func (e *Editor) InsertAtLine(ctx context.Context, path string, line int, content string) error {
	fullPath, existing, err := e.read(path)
	if err != nil {
		return err
	}
	lines := strings.Split(existing, "\n")
	idx := line - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(lines) {
		idx = len(lines)
	}
	rest := append([]string{content}, lines[idx:]...)
	lines = append(lines[:idx:idx], rest...)
	return e.write(ctx, path, fullPath, strings.Join(lines, "\n"))
}

// Append adds content to the end of the file, creating it if needed.
func (e *Editor) Append(ctx context.Context, path, content string) error {
	fullPath, err := e.resolve(path)
	if err != nil {
		return err
	}
	existing := ""
	if data, err := os.ReadFile(fullPath); err == nil {
		existing = string(data)
	}
	return e.write(ctx, path, fullPath, appendBlock(existing, content))
}

// Delete removes a file and stages the deletion.
func (e *Editor) Delete(ctx context.Context, path string) error {
	fullPath, err := e.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return err
	}
	if _, err := e.wt.Remove(path); err != nil {
		return fmt.Errorf("staging deletion of %s: %w", path, err)
	}
	return nil
}

// Rename moves a file, staging both sides.
func (e *Editor) Rename(ctx context.Context, oldPath, newPath string) error {
	_, content, err := e.read(oldPath)
	if err != nil {
		return err
	}
	if err := e.Delete(ctx, oldPath); err != nil {
		return err
	}
	newFull, err := e.resolve(newPath)
	if err != nil {
		return err
	}
	return e.write(ctx, newPath, newFull, content)
}

// appendBlock joins existing content and a new block with exactly one
// blank line between them and a trailing newline.
func appendBlock(existing, block string) string {
	existing = strings.TrimRight(existing, "\n")
	block = strings.TrimRight(block, "\n")
	if existing == "" {
		return block + "\n"
	}
	return existing + "\n\n" + block + "\n"
}
