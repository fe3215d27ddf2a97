/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/mechanic-dev/mechanic/agents/executor/claudeexecutor"
	"github.com/mechanic-dev/mechanic/agents/promptbuilder"
	"github.com/mechanic-dev/mechanic/agents/submitresult"
	"github.com/mechanic-dev/mechanic/agents/toolcall/callbacks"
	"github.com/mechanic-dev/mechanic/agents/toolcall/claudetool"
	"github.com/mechanic-dev/mechanic/testrunner"
)

// FixOutcome is what the fixer submits once it believes the worktree is
// repaired. The edits themselves happen through the worktree tools.
type FixOutcome struct {
	// Summary describes what was changed and why.
	Summary string `json:"summary" jsonschema:"required"`
}

type agents struct {
	planner claudeexecutor.Interface[PlanRequest, Plan]
	fixer   claudeexecutor.Interface[FixRequest, FixOutcome]
}

func newAgents(client anthropic.Client, model string) (*agents, error) {
	submitPlan, err := submitresult.ClaudeTool[Plan](submitresult.Options{
		ToolName:           "submit_plan",
		Description:        "Submit the finished change plan. Call this exactly once, after reading every file you intend to modify.",
		PayloadField:       "plan",
		PayloadDescription: "The complete change plan for the task.",
		SuccessMessage:     "Plan accepted.",
	})
	if err != nil {
		return nil, fmt.Errorf("building submit_plan tool: %w", err)
	}
	planner, err := claudeexecutor.New(client, plannerPrompt,
		claudeexecutor.WithModel[PlanRequest, Plan](model),
		claudeexecutor.WithSystemInstructions[PlanRequest, Plan](promptbuilder.MustNew(plannerInstructions)),
		claudeexecutor.WithMaxTokens[PlanRequest, Plan](16384),
		claudeexecutor.WithThinking[PlanRequest, Plan](4096),
		claudeexecutor.WithSubmitResult[PlanRequest, Plan](submitPlan),
	)
	if err != nil {
		return nil, fmt.Errorf("building planner: %w", err)
	}

	submitFix, err := submitresult.ClaudeTool[FixOutcome](submitresult.Options{
		ToolName:           "submit_fix",
		Description:        "Declare the worktree repaired. Call this exactly once, after your edits are in place.",
		PayloadField:       "fix",
		PayloadDescription: "A summary of the repair.",
		SuccessMessage:     "Fix recorded.",
	})
	if err != nil {
		return nil, fmt.Errorf("building submit_fix tool: %w", err)
	}
	fixer, err := claudeexecutor.New(client, fixerPrompt,
		claudeexecutor.WithModel[FixRequest, FixOutcome](model),
		claudeexecutor.WithSystemInstructions[FixRequest, FixOutcome](promptbuilder.MustNew(fixerInstructions)),
		claudeexecutor.WithMaxTokens[FixRequest, FixOutcome](16384),
		claudeexecutor.WithSubmitResult[FixRequest, FixOutcome](submitFix),
	)
	if err != nil {
		return nil, fmt.Errorf("building fixer: %w", err)
	}

	return &agents{planner: planner, fixer: fixer}, nil
}

// plannerTools exposes only the read side of the worktree. The planner
// describes changes, it does not make them.
func plannerTools(cb callbacks.Worktree) map[string]claudetool.Metadata[Plan] {
	tools := claudetool.WorktreeTools[Plan](cb)
	delete(tools, "write_file")
	delete(tools, "delete_file")
	return tools
}

// testRunFunc executes the repository's test suite.
type testRunFunc func(context.Context) (*testrunner.Result, error)

func fixerTools(cb callbacks.Worktree, run testRunFunc) map[string]claudetool.Metadata[FixOutcome] {
	tools := claudetool.WorktreeTools[FixOutcome](cb)
	tools["run_tests"] = runTestsTool(run)
	return tools
}

// runTestsTool lets the fixer check its work mid-conversation instead
// of guessing and exiting.
func runTestsTool(run testRunFunc) claudetool.Metadata[FixOutcome] {
	return claudetool.Metadata[FixOutcome]{
		Definition: anthropic.ToolParam{
			Name:        "run_tests",
			Description: anthropic.String("Run the repository's test suite and report whether it passes."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"reasoning": map[string]any{
						"type":        "string",
						"description": "Explain why you are making this call.",
					},
				},
				Required: []string{"reasoning"},
			},
		},
		Handler: func(ctx context.Context, p *claudetool.Params, _ *FixOutcome) map[string]any {
			if _, errResp := claudetool.Param[string](p, "reasoning"); errResp != nil {
				return errResp
			}
			result, err := run(ctx)
			if err != nil {
				return claudetool.Error("running tests: %v", err)
			}
			out := map[string]any{
				"command": result.Command.String(),
				"passed":  result.Passed,
			}
			if !result.Passed {
				out["failures"] = result.Failures
				out["output_tail"] = tailLines(result.Output, 60)
			}
			return out
		},
	}
}

// seedReads fabricates read_file calls for the given paths so the agent
// starts with those files already in its context.
func seedReads(paths []string) []anthropic.ToolUseBlock {
	seeds := make([]anthropic.ToolUseBlock, 0, len(paths))
	for _, path := range paths {
		input := fmt.Sprintf(`{"reasoning": "Preloading a file relevant to the task.", "path": %q}`, path)
		seeds = append(seeds, anthropic.ToolUseBlock{
			ID:    "seed_" + uuid.NewString(),
			Name:  "read_file",
			Input: []byte(input),
		})
	}
	return seeds
}
