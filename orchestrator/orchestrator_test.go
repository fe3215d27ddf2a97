/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"

	"github.com/mechanic-dev/mechanic/agents/toolcall/callbacks"
	"github.com/mechanic-dev/mechanic/agents/toolcall/claudetool"
	"github.com/mechanic-dev/mechanic/analyzer"
	"github.com/mechanic-dev/mechanic/config"
	"github.com/mechanic-dev/mechanic/testrunner"
)

// clonelessCallbacks builds tool definitions without a real worktree.
func clonelessCallbacks() callbacks.Worktree { return callbacks.Worktree{} }

func TestSanitizeSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"add-healthz-endpoint", "add-healthz-endpoint"},
		{"Add Healthz Endpoint!", "add-healthz-endpoint"},
		{"fix//weird__chars", "fix-weird-chars"},
		{"---", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", 40)},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, sanitizeSlug(tc.in), "input %q", tc.in)
	}
}

func TestBranchName(t *testing.T) {
	o := &Orchestrator{cfg: &config.Config{Identity: "mechanic"}}
	task := &Task{ID: "0123456789abcdef"}

	require.Equal(t, "mechanic/feature-add-healthz-01234567",
		o.branchName(KindImplement, "Add Healthz", task))
	require.Equal(t, "mechanic/fix-change-01234567",
		o.branchName(KindFix, "!!!", task))
}

func TestFailureFiles(t *testing.T) {
	failures := []testrunner.Failure{
		{Test: "TestA", File: "a_test.go"},
		{Test: "TestB", File: "a_test.go"},
		{Test: "TestC"},
		{Test: "TestD", File: "b_test.go"},
		{Test: "TestE", File: "c_test.go"},
	}
	require.Equal(t, []string{"a_test.go", "b_test.go"}, failureFiles(failures, 2))
	require.Equal(t, []string{"a_test.go", "b_test.go", "c_test.go"}, failureFiles(failures, 10))
}

func TestSeedReads(t *testing.T) {
	seeds := seedReads([]string{"main.go", "pkg/server.go"})
	require.Len(t, seeds, 2)

	for i, path := range []string{"main.go", "pkg/server.go"} {
		require.Equal(t, "read_file", seeds[i].Name)
		require.True(t, strings.HasPrefix(seeds[i].ID, "seed_"))

		var input struct {
			Reasoning string `json:"reasoning"`
			Path      string `json:"path"`
		}
		require.NoError(t, json.Unmarshal([]byte(seeds[i].Input), &input))
		require.Equal(t, path, input.Path)
		require.NotEmpty(t, input.Reasoning)
	}
}

func TestTailLines(t *testing.T) {
	require.Equal(t, "c\nd", tailLines("a\nb\nc\nd\n", 2))
	require.Equal(t, "a\nb", tailLines("a\nb", 5))
}

func TestPlanRequestBind(t *testing.T) {
	project := &analyzer.Project{
		Root:      "/tmp/repo",
		Files:     []analyzer.FileInfo{{Path: "main.go", Language: "Go", Size: 100}},
		Languages: map[string]int{"Go": 1},
	}
	req := PlanRequest{
		Repository:    "octocat/hello",
		Description:   "add a healthz endpoint",
		Project:       project,
		RelevantFiles: []string{"main.go", "server.go"},
	}

	bound, err := req.Bind(plannerPrompt)
	require.NoError(t, err)
	prompt, err := bound.Build()
	require.NoError(t, err)

	require.Contains(t, prompt, "octocat/hello")
	require.Contains(t, prompt, "add a healthz endpoint")
	require.Contains(t, prompt, "main.go\nserver.go")
	require.NotContains(t, prompt, "{{")
}

func TestPlanRequestBindLanguage(t *testing.T) {
	project := &analyzer.Project{
		Root:      "/tmp/repo",
		Files:     []analyzer.FileInfo{{Path: "main.py", Language: "Python", Size: 100}},
		Languages: map[string]int{"Python": 1},
	}

	// GitHub's classification wins when present.
	req := PlanRequest{
		Repository:  "octocat/hello",
		Description: "add a healthz endpoint",
		Language:    "TypeScript",
		Project:     project,
	}
	bound, err := req.Bind(plannerPrompt)
	require.NoError(t, err)
	prompt, err := bound.Build()
	require.NoError(t, err)
	require.Contains(t, prompt, "primary language is TypeScript")

	// The survey heuristic fills in otherwise.
	req.Language = ""
	bound, err = req.Bind(plannerPrompt)
	require.NoError(t, err)
	prompt, err = bound.Build()
	require.NoError(t, err)
	require.Contains(t, prompt, "primary language is Python")
}

func TestPlanRequestBindCapsFileList(t *testing.T) {
	files := make([]analyzer.FileInfo, promptFileLimit+50)
	for i := range files {
		files[i] = analyzer.FileInfo{Path: fmt.Sprintf("pkg/file%04d.go", i), Language: "Go", Size: 10}
	}
	req := PlanRequest{
		Repository:  "octocat/hello",
		Description: "add a healthz endpoint",
		Project:     &analyzer.Project{Root: "/tmp/repo", Files: files, Languages: map[string]int{"Go": len(files)}},
	}

	bound, err := req.Bind(plannerPrompt)
	require.NoError(t, err)
	prompt, err := bound.Build()
	require.NoError(t, err)

	require.Contains(t, prompt, files[promptFileLimit-1].Path)
	require.NotContains(t, prompt, files[promptFileLimit].Path)
	// The original request is untouched.
	require.Len(t, req.Project.Files, promptFileLimit+50)
}

func TestFixRequestBind(t *testing.T) {
	req := FixRequest{
		Repository:  "octocat/hello",
		Description: "add a healthz endpoint",
		Result: &testrunner.Result{
			Command: testrunner.Command{
				Framework: testrunner.FrameworkGo,
				Name:      "go",
				Args:      []string{"test", "./..."},
			},
			Failures: []testrunner.Failure{{Test: "TestHealthz", File: "server_test.go", Line: 12}},
			Output:   "--- FAIL: TestHealthz\nserver_test.go:12: got 500, want 200\nFAIL\n",
			Duration: time.Second,
		},
	}

	bound, err := req.Bind(fixerPrompt)
	require.NoError(t, err)
	prompt, err := bound.Build()
	require.NoError(t, err)

	require.Contains(t, prompt, "go test ./...")
	require.Contains(t, prompt, "TestHealthz")
	require.Contains(t, prompt, "got 500, want 200")
	require.NotContains(t, prompt, "{{")
}

func TestPlannerToolsAreReadOnly(t *testing.T) {
	tools := plannerTools(clonelessCallbacks())
	require.Contains(t, tools, "read_file")
	require.Contains(t, tools, "list_directory")
	require.Contains(t, tools, "search_files")
	require.NotContains(t, tools, "write_file")
	require.NotContains(t, tools, "delete_file")
}

func TestFixerToolsIncludeRunTests(t *testing.T) {
	tools := fixerTools(clonelessCallbacks(), func(context.Context) (*testrunner.Result, error) {
		return &testrunner.Result{Passed: true}, nil
	})
	require.Contains(t, tools, "run_tests")
	require.Contains(t, tools, "write_file")
	require.Contains(t, tools, "delete_file")
}

func callRunTests(t *testing.T, tool claudetool.Metadata[FixOutcome]) map[string]any {
	t.Helper()
	params, errResp := claudetool.NewParams(anthropic.ToolUseBlock{
		ID:    "t1",
		Name:  "run_tests",
		Input: json.RawMessage(`{"reasoning": "checking the repair"}`),
	})
	require.Nil(t, errResp)
	var outcome FixOutcome
	return tool.Handler(context.Background(), params, &outcome)
}

func TestRunTestsToolPassing(t *testing.T) {
	tool := runTestsTool(func(context.Context) (*testrunner.Result, error) {
		return &testrunner.Result{
			Command: testrunner.Command{Framework: testrunner.FrameworkGo, Name: "go", Args: []string{"test", "./..."}},
			Passed:  true,
		}, nil
	})

	out := callRunTests(t, tool)
	require.Equal(t, true, out["passed"])
	require.Equal(t, "go test ./...", out["command"])
	require.NotContains(t, out, "failures")
}

func TestRunTestsToolFailing(t *testing.T) {
	tool := runTestsTool(func(context.Context) (*testrunner.Result, error) {
		return &testrunner.Result{
			Command:  testrunner.Command{Framework: testrunner.FrameworkGo, Name: "go", Args: []string{"test", "./..."}},
			Failures: []testrunner.Failure{{Test: "TestHealthz", File: "server_test.go", Line: 12}},
			Output:   "--- FAIL: TestHealthz\nFAIL\n",
		}, nil
	})

	out := callRunTests(t, tool)
	require.Equal(t, false, out["passed"])
	require.Contains(t, out, "failures")
	require.Contains(t, out["output_tail"], "TestHealthz")
}

func TestRunTestsToolRunError(t *testing.T) {
	tool := runTestsTool(func(context.Context) (*testrunner.Result, error) {
		return nil, errors.New("no shell")
	})
	require.True(t, claudetool.IsError(callRunTests(t, tool)))
}

func TestRenderStatus(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	task, err := store.Create(KindImplement, "octocat/hello", "add a healthz endpoint")
	require.NoError(t, err)
	require.NoError(t, store.Update(task.ID, func(t *Task) {
		t.Status = StatusCompleted
		t.PRURL = "https://github.com/octocat/hello/pull/7"
	}))

	var buf bytes.Buffer
	require.NoError(t, RenderStatus(&buf, store.List(), store.Stats()))

	out := buf.String()
	require.Contains(t, out, task.ShortID())
	require.Contains(t, out, "octocat/hello")
	require.Contains(t, out, "completed")
	require.Contains(t, out, "pull/7")
	require.Contains(t, out, "1 tasks: 0 pending, 0 in progress, 1 completed, 0 failed")
}
