/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"strings"

	"github.com/mechanic-dev/mechanic/agents/promptbuilder"
	"github.com/mechanic-dev/mechanic/analyzer"
	"github.com/mechanic-dev/mechanic/testrunner"
)

const plannerInstructions = `You are an automated software engineer. You make precise,
minimal changes to existing codebases. You read code before you modify it,
you follow the conventions of the surrounding code, and you never touch
files unrelated to the task.`

var plannerPrompt = promptbuilder.MustNew(`Plan a code change for the following task.

<repository>
{{repository}}
</repository>

<task>
{{description}}
</task>

The repository's primary language is {{language}}. A project survey follows.

{{project}}

The files most relevant to the task, ranked by a keyword heuristic:

{{relevant_files}}

Use the tools to read any file you need. When you understand the change,
submit a plan with the submit_plan tool. Rules for the plan:

- Every "create" change carries the complete file content.
- Every "modify" change carries ordered edits. A "replace" edit quotes the
  exact existing text in "target". An "insert_after" edit quotes the exact
  anchor line. Prefer "replace" over whole-file rewrites.
- Keep the change minimal. Do not reformat untouched code.
- "branch_slug" is a short kebab-case phrase naming the change.
- "pr_body" explains what changed and why, in plain prose.`)

// PlanRequest carries everything the planner needs to produce a Plan.
type PlanRequest struct {
	Repository  string
	Description string
	// Language is GitHub's classification; the survey heuristic fills
	// in when it is empty.
	Language      string
	Project       *analyzer.Project
	RelevantFiles []string
}

// promptFileLimit bounds the survey serialized into the prompt. The
// model can list and read anything the cut drops.
const promptFileLimit = 200

func (r PlanRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	p, err := p.Bind("repository", r.Repository)
	if err != nil {
		return nil, err
	}
	if p, err = p.Bind("description", r.Description); err != nil {
		return nil, err
	}
	language := r.Language
	if language == "" {
		language = r.Project.PrimaryLanguage()
	}
	if p, err = p.Bind("language", language); err != nil {
		return nil, err
	}
	project := r.Project
	if len(project.Files) > promptFileLimit {
		trimmed := *project
		trimmed.Files = project.Files[:promptFileLimit]
		project = &trimmed
	}
	if p, err = p.BindYAML("project", project); err != nil {
		return nil, err
	}
	return p.Bind("relevant_files", strings.Join(r.RelevantFiles, "\n"))
}

const fixerInstructions = `You are an automated software engineer fixing a failing test
suite. You change as little as possible. You fix the code under test unless
the test itself is plainly wrong.`

var fixerPrompt = promptbuilder.MustNew(`Tests are failing after a recent change. Repair them.

<repository>
{{repository}}
</repository>

<original_task>
{{description}}
</original_task>

The test command was:

{{test_command}}

Structured failures:

{{failures}}

Raw test output (truncated):

{{output}}

Use the tools to inspect and edit files directly in the worktree. The edits
you make through write_file take effect immediately. Use run_tests to check
your work; once it reports passing, call submit_fix with a summary of what
you changed. Do not call submit_fix before making at least one edit.`)

// FixRequest carries a failing test run into the fixer.
type FixRequest struct {
	Repository  string
	Description string
	Result      *testrunner.Result
}

func (r FixRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	p, err := p.Bind("repository", r.Repository)
	if err != nil {
		return nil, err
	}
	if p, err = p.Bind("description", r.Description); err != nil {
		return nil, err
	}
	if p, err = p.Bind("test_command", r.Result.Command.String()); err != nil {
		return nil, err
	}
	if p, err = p.BindJSON("failures", r.Result.Failures); err != nil {
		return nil, err
	}
	return p.Bind("output", tailLines(r.Result.Output, 120))
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
