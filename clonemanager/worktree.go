/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/mechanic-dev/mechanic/agents/toolcall/callbacks"
)

// WorktreeCallbacks binds callbacks.Worktree to a git worktree. Every
// path is confined to the worktree root, and writes and deletes are
// staged so MakeAndPushChanges commits whatever the agent touched.
func WorktreeCallbacks(wt *gogit.Worktree) callbacks.Worktree {
	root := wt.Filesystem.Root()

	validatePath := func(path string) (string, error) {
		fullPath := filepath.Join(root, filepath.Clean(path))
		rel, err := filepath.Rel(root, fullPath)
		if err != nil {
			return "", fmt.Errorf("path %q: %w", path, err)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q escapes worktree", path)
		}
		return fullPath, nil
	}

	return callbacks.Worktree{
		ReadFile: func(_ context.Context, path string) (string, error) {
			fullPath, err := validatePath(path)
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(fullPath)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		WriteFile: func(_ context.Context, path, content string) error {
			fullPath, err := validatePath(path)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
				return err
			}
			_, err = wt.Add(path)
			return err
		},
		DeleteFile: func(_ context.Context, path string) error {
			fullPath, err := validatePath(path)
			if err != nil {
				return err
			}
			if err := os.Remove(fullPath); err != nil {
				return err
			}
			_, err = wt.Remove(path)
			return err
		},
		ListFiles: func(_ context.Context, dir string) ([]string, error) {
			fullPath, err := validatePath(dir)
			if err != nil {
				return nil, err
			}
			entries, err := os.ReadDir(fullPath)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			return names, nil
		},
		SearchFiles: func(_ context.Context, pattern string) ([]callbacks.Match, error) {
			return grepWorktree(root, pattern)
		},
	}
}

func grepWorktree(root, pattern string) ([]callbacks.Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	var matches []callbacks.Match
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}
		fileMatches, err := searchFile(path, root, re)
		if err != nil {
			return nil
		}
		matches = append(matches, fileMatches...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func searchFile(path, root string, re *regexp.Regexp) ([]callbacks.Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}

	var matches []callbacks.Match
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, callbacks.Match{
				Path:    relPath,
				Line:    lineNum,
				Content: line,
			})
		}
	}
	return matches, scanner.Err()
}

func isBinaryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".dll", ".so", ".dylib",
		".zip", ".tar", ".gz", ".bz2",
		".png", ".jpg", ".jpeg", ".gif", ".ico",
		".pdf", ".bin", ".dat", ".jar", ".class":
		return true
	}
	return false
}
