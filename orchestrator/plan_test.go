/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/mechanic-dev/mechanic/editor"
)

func initPlanWorktree(t *testing.T) (*editor.Editor, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(strings.Join([]string{
		"def main():",
		"    print('hello')",
		"",
	}, "\n")), 0o644))

	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@test", When: time.Now()},
	})
	require.NoError(t, err)

	return editor.New(wt), dir
}

func TestPlanValidate(t *testing.T) {
	valid := Plan{
		CommitMessage: "Add greeting module",
		Changes: []FileChange{
			{Action: "create", Path: "greet.py", Content: "def greet():\n    return 'hi'\n"},
			{Action: "modify", Path: "main.py", Edits: []Edit{
				{Type: "replace", Target: "print('hello')", Content: "print(greet())"},
			}},
			{Action: "rename", Path: "old.py", NewPath: "new.py"},
			{Action: "delete", Path: "unused.py"},
		},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Plan)
	}{
		{"no commit message", func(p *Plan) { p.CommitMessage = "" }},
		{"no changes", func(p *Plan) { p.Changes = nil }},
		{"change without path", func(p *Plan) { p.Changes[0].Path = "" }},
		{"create without content", func(p *Plan) { p.Changes[0].Content = "" }},
		{"modify without edits", func(p *Plan) { p.Changes[1].Edits = nil }},
		{"unknown action", func(p *Plan) { p.Changes[0].Action = "truncate" }},
		{"unknown edit type", func(p *Plan) { p.Changes[1].Edits[0].Type = "patch" }},
		{"edit without content", func(p *Plan) { p.Changes[1].Edits[0].Content = "" }},
		{"rename without destination", func(p *Plan) { p.Changes[2].NewPath = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			p.Changes = make([]FileChange, len(valid.Changes))
			copy(p.Changes, valid.Changes)
			for i := range p.Changes {
				p.Changes[i].Edits = append([]Edit(nil), valid.Changes[i].Edits...)
			}
			tc.mutate(&p)
			require.Error(t, p.Validate())
		})
	}
}

func TestPlanValidateRejectsUnbalancedBraces(t *testing.T) {
	p := Plan{
		CommitMessage: "Add broken file",
		Changes: []FileChange{
			{Action: "create", Path: "broken.go", Content: "package broken\n\nfunc f() {\n"},
		},
	}
	require.Error(t, p.Validate())
}

func TestPlanContentWarnings(t *testing.T) {
	p := Plan{
		CommitMessage: "Add debug-laden module",
		Changes: []FileChange{
			{Action: "create", Path: "debug.py", Content: "def f():\n    print('checkpoint')\n"},
			{Action: "create", Path: "clean.py", Content: "def g():\n    return 1\n"},
		},
	}
	require.NoError(t, p.Validate())

	warnings := p.ContentWarnings()
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "debug.py")
	require.Contains(t, warnings[0], "print")
}

func TestPlanApply(t *testing.T) {
	ed, dir := initPlanWorktree(t)
	ctx := context.Background()

	plan := Plan{
		CommitMessage: "Add greeting",
		Changes: []FileChange{
			{Action: "create", Path: "greet.py", Content: "def greet():\n    return 'hi'\n"},
			{Action: "modify", Path: "main.py", Edits: []Edit{
				{Type: "insert_after", Target: "def main():", Content: "    # greet first"},
				{Type: "append", Content: "main()"},
			}},
		},
	}
	require.NoError(t, plan.Validate())
	require.NoError(t, plan.Apply(ctx, ed))

	created, err := os.ReadFile(filepath.Join(dir, "greet.py"))
	require.NoError(t, err)
	require.Contains(t, string(created), "def greet():")

	modified, err := os.ReadFile(filepath.Join(dir, "main.py"))
	require.NoError(t, err)
	require.Contains(t, string(modified), "# greet first")
	require.Contains(t, string(modified), "main()")
}

func TestPlanApplyStopsOnError(t *testing.T) {
	ed, dir := initPlanWorktree(t)
	ctx := context.Background()

	plan := Plan{
		CommitMessage: "Bad plan",
		Changes: []FileChange{
			{Action: "create", Path: "main.py", Content: "clobber\n"},
			{Action: "create", Path: "never.py", Content: "nope\n"},
		},
	}
	require.Error(t, plan.Apply(ctx, ed))

	_, err := os.Stat(filepath.Join(dir, "never.py"))
	require.True(t, os.IsNotExist(err))
}
