/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package submitresult

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"

	"github.com/mechanic-dev/mechanic/agents/toolcall/claudetool"
)

type review struct {
	Approved bool   `json:"approved"`
	Summary  string `json:"summary"`
}

func TestClaudeToolDefaults(t *testing.T) {
	tool, err := ClaudeTool[review](Options{})
	require.NoError(t, err)
	require.Equal(t, "submit_result", tool.Definition.Name)
	require.Contains(t, tool.Definition.InputSchema.Required, "reasoning")
	require.Contains(t, tool.Definition.InputSchema.Required, "result")

	schemaProps, ok := tool.Definition.InputSchema.Properties.(map[string]any)
	require.True(t, ok, "input schema has no properties map")
	payload, ok := schemaProps["result"].(map[string]any)
	require.True(t, ok, "payload schema missing")
	props, ok := payload["properties"].(map[string]any)
	require.True(t, ok, "payload schema has no properties")
	require.Contains(t, props, "approved")
	require.Contains(t, props, "summary")
}

func TestHandlerStoresResult(t *testing.T) {
	tool, err := ClaudeTool[review](Options{SuccessMessage: "done"})
	require.NoError(t, err)

	input, err := json.Marshal(map[string]any{
		"reasoning": "all checks pass",
		"result":    map[string]any{"approved": true, "summary": "looks good"},
	})
	require.NoError(t, err)

	p, errResp := claudetool.NewParams(anthropic.ToolUseBlock{Input: input})
	require.Nil(t, errResp)

	var result review
	resp := tool.Handler(context.Background(), p, &result)
	require.False(t, claudetool.IsError(resp), "handler returned %v", resp)
	require.Equal(t, "done", resp["message"])
	require.Equal(t, review{Approved: true, Summary: "looks good"}, result)
}

func TestHandlerRejectsMissingPayload(t *testing.T) {
	tool, err := ClaudeTool[review](Options{})
	require.NoError(t, err)

	input, err := json.Marshal(map[string]any{"reasoning": "forgot the payload"})
	require.NoError(t, err)

	p, errResp := claudetool.NewParams(anthropic.ToolUseBlock{Input: input})
	require.Nil(t, errResp)

	var result review
	resp := tool.Handler(context.Background(), p, &result)
	require.True(t, claudetool.IsError(resp))
}

func TestCustomOptions(t *testing.T) {
	tool, err := ClaudeTool[review](Options{
		ToolName:     "submit_review",
		PayloadField: "review",
	})
	require.NoError(t, err)
	require.Equal(t, "submit_review", tool.Definition.Name)
	require.Contains(t, tool.Definition.InputSchema.Required, "review")
}
