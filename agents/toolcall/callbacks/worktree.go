/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package callbacks

import "context"

// Match is one search hit inside a worktree file.
type Match struct {
	// Path is the repo-relative file containing the hit.
	Path string
	// Line is the 1-based line number.
	Line int
	// Content is the matching line's text.
	Content string
}

// Worktree is the filesystem surface agents get over a cloned repo.
// Implementations confine every path to the worktree root and stage
// mutations so the clone layer can commit whatever the agent changed.
type Worktree struct {
	// ReadFile returns a file's contents.
	ReadFile func(ctx context.Context, path string) (string, error)
	// WriteFile creates or replaces a file and stages it.
	WriteFile func(ctx context.Context, path, content string) error
	// DeleteFile removes a file and stages the deletion.
	DeleteFile func(ctx context.Context, path string) error
	// ListFiles enumerates files under dir, repo-relative.
	ListFiles func(ctx context.Context, dir string) ([]string, error)
	// SearchFiles finds lines matching a regular expression.
	SearchFiles func(ctx context.Context, pattern string) ([]Match, error)
}
