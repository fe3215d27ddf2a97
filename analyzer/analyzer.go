/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package analyzer surveys a cloned repository: which languages it
// uses, where its manifests and entry points are, and which files are
// most relevant to a change request.
package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// FileInfo is one source file in the surveyed tree.
type FileInfo struct {
	// Path is repo-relative, with forward slashes.
	Path string
	// Language is the detected language, empty when unknown.
	Language string
	// Size is the file length in bytes.
	Size int64
}

// Project is the result of analyzing a repository.
type Project struct {
	// Root is the absolute path that was analyzed.
	Root string
	// Files lists every non-ignored file.
	Files []FileInfo
	// Languages maps language name to file count.
	Languages map[string]int
	// Manifests are build and dependency files (go.mod, package.json...).
	Manifests []string
	// EntryPoints are likely program entry files.
	EntryPoints []string
}

// PrimaryLanguage returns the language with the most files, or "".
func (p *Project) PrimaryLanguage() string {
	best, bestCount := "", 0
	for lang, count := range p.Languages {
		if count > bestCount || (count == bestCount && lang < best) {
			best, bestCount = lang, count
		}
	}
	return best
}

var languageByExt = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".rb":    "Ruby",
	".rs":    "Rust",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sh":    "Shell",
}

var manifestNames = map[string]struct{}{
	"go.mod":           {},
	"package.json":     {},
	"requirements.txt": {},
	"pyproject.toml":   {},
	"setup.py":         {},
	"pom.xml":          {},
	"build.gradle":     {},
	"Cargo.toml":       {},
	"Gemfile":          {},
	"Makefile":         {},
	"Dockerfile":       {},
}

var entryPointNames = map[string]struct{}{
	"main.go":     {},
	"main.py":     {},
	"app.py":      {},
	"index.js":    {},
	"index.ts":    {},
	"server.js":   {},
	"main.rs":     {},
	"Main.java":   {},
	"Program.cs":  {},
	"__main__.py": {},
}

var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
}

// maxAnalyzedFileSize skips generated blobs and checked-in archives.
const maxAnalyzedFileSize = 1 << 20

// maxDepth bounds how far below the root the walk descends. The survey
// feeds a prompt; deep leaves add noise faster than signal.
const maxDepth = 3

// maxFilesPerDir caps how many files a single directory contributes.
const maxFilesPerDir = 10

// Analyze walks the tree rooted at root concurrently, one goroutine per
// top-level directory, and aggregates what it finds.
func Analyze(ctx context.Context, root string) (*Project, error) {
	log := clog.FromContext(ctx)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	project := &Project{
		Root:      root,
		Languages: make(map[string]int),
	}

	record := func(files []FileInfo) {
		mu.Lock()
		defer mu.Unlock()
		for _, f := range files {
			project.Files = append(project.Files, f)
			if f.Language != "" {
				project.Languages[f.Language]++
			}
			base := filepath.Base(f.Path)
			if _, ok := manifestNames[base]; ok {
				project.Manifests = append(project.Manifests, f.Path)
			}
			if _, ok := entryPointNames[base]; ok {
				project.EntryPoints = append(project.EntryPoints, f.Path)
			}
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		if skip(entry.Name(), entry.IsDir()) {
			continue
		}
		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			record([]FileInfo{describe(entry.Name(), info.Size())})
			continue
		}
		group.Go(func() error {
			files, err := walkDir(ctx, root, entry.Name())
			if err != nil {
				return err
			}
			record(files)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(project.Files, func(i, j int) bool { return project.Files[i].Path < project.Files[j].Path })
	sort.Strings(project.Manifests)
	sort.Strings(project.EntryPoints)

	log.With("files", len(project.Files), "language", project.PrimaryLanguage()).
		Info("analyzed repository")
	return project, nil
}

func walkDir(ctx context.Context, root, dir string) ([]FileInfo, error) {
	var files []FileInfo
	perDir := make(map[string]int)
	err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if skip(d.Name(), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if depth(rel) > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		parent := filepath.Dir(rel)
		if perDir[parent] >= maxFilesPerDir {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxAnalyzedFileSize {
			return nil
		}
		perDir[parent]++
		files = append(files, describe(filepath.ToSlash(rel), info.Size()))
		return nil
	})
	return files, err
}

// depth counts path components: "a" is 1, "a/b" is 2.
func depth(rel string) int {
	return strings.Count(rel, string(filepath.Separator)) + 1
}

func describe(relPath string, size int64) FileInfo {
	return FileInfo{
		Path:     relPath,
		Language: languageByExt[strings.ToLower(filepath.Ext(relPath))],
		Size:     size,
	}
}

func skip(name string, isDir bool) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if !isDir {
		return false
	}
	_, ok := skippedDirs[name]
	return ok
}
