/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package validator sanity-checks generated file content before it is
// written into a worktree. Errors block the change; warnings are
// reported but allowed through.
package validator

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Severity classifies an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in generated content.
type Issue struct {
	Severity Severity
	Line     int // 0 when the issue is file-wide
	Message  string
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", i.Severity, i.Line, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

const (
	// maxFileSize rejects runaway generations.
	maxFileSize = 1 << 20
	// maxLineLength flags minified or otherwise suspect lines.
	maxLineLength = 500
)

var debugMarkers = map[string][]string{
	".go":   {"fmt.Println("},
	".py":   {"print(", "pdb.set_trace", "breakpoint()"},
	".js":   {"console.log(", "debugger"},
	".jsx":  {"console.log(", "debugger"},
	".ts":   {"console.log(", "debugger"},
	".tsx":  {"console.log(", "debugger"},
	".java": {"System.out.println("},
	".rb":   {"binding.pry", "puts "},
}

var bracedExtensions = map[string]struct{}{
	".go": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".java": {}, ".c": {}, ".h": {}, ".cpp": {}, ".cs": {}, ".rs": {},
}

// Validate inspects content destined for path and returns any issues.
func Validate(path, content string) []Issue {
	var issues []Issue

	if len(content) > maxFileSize {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  fmt.Sprintf("file is %d bytes, limit is %d", len(content), maxFileSize),
		})
	}
	if !utf8.ValidString(content) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  "content is not valid UTF-8",
		})
		return issues
	}

	ext := strings.ToLower(filepath.Ext(path))

	if _, braced := bracedExtensions[ext]; braced {
		if open, close := strings.Count(content, "{"), strings.Count(content, "}"); open != close {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Message:  fmt.Sprintf("unbalanced braces: %d open, %d close", open, close),
			})
		}
	}

	markers := debugMarkers[ext]
	usesTabs, usesSpaces := false, false

	for num, line := range strings.Split(content, "\n") {
		lineNo := num + 1
		if len(line) > maxLineLength {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Line:     lineNo,
				Message:  fmt.Sprintf("line is %d characters long", len(line)),
			})
		}
		if trimmed := strings.TrimRight(line, " \t"); trimmed != line && trimmed != "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Line:     lineNo,
				Message:  "trailing whitespace",
			})
		}
		for _, marker := range markers {
			if strings.Contains(line, marker) {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Line:     lineNo,
					Message:  fmt.Sprintf("debug statement %q", strings.TrimSuffix(marker, "(")),
				})
				break
			}
		}
		switch {
		case strings.HasPrefix(line, "\t"):
			usesTabs = true
		case strings.HasPrefix(line, "    "):
			usesSpaces = true
		}
	}

	// Go indents with tabs; mixing elsewhere is the smell.
	if usesTabs && usesSpaces && ext != ".go" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Message:  "mixed tab and space indentation",
		})
	}

	return issues
}

// Blocking reports whether any issue is an error.
func Blocking(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
