/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudetool

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mechanic-dev/mechanic/agents/toolcall/callbacks"
)

// reasoning is required on every tool so the model explains each call.
// The explanations end up in traces and make failed runs debuggable.
var reasoningProperty = map[string]any{
	"type":        "string",
	"description": "Explain why you are making this call.",
}

// WorktreeTools builds the file tools agents use to explore and modify
// a cloned repository, backed by the given callbacks.
func WorktreeTools[Response any](cb callbacks.Worktree) map[string]Metadata[Response] {
	return map[string]Metadata[Response]{
		"read_file": {
			Definition: anthropic.ToolParam{
				Name:        "read_file",
				Description: anthropic.String("Read the complete content of a file in the repository."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: "object",
					Properties: map[string]any{
						"reasoning": reasoningProperty,
						"path": map[string]any{
							"type":        "string",
							"description": "File path relative to the repository root",
						},
					},
					Required: []string{"reasoning", "path"},
				},
			},
			Handler: func(ctx context.Context, p *Params, _ *Response) map[string]any {
				path, errResp := Param[string](p, "path")
				if errResp != nil {
					return errResp
				}
				content, err := cb.ReadFile(ctx, path)
				if err != nil {
					return ErrorWithContext(err, map[string]any{"path": path})
				}
				return map[string]any{"path": path, "content": content}
			},
		},
		"write_file": {
			Definition: anthropic.ToolParam{
				Name:        "write_file",
				Description: anthropic.String("Create or replace a file in the repository."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: "object",
					Properties: map[string]any{
						"reasoning": reasoningProperty,
						"path": map[string]any{
							"type":        "string",
							"description": "File path relative to the repository root",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "The complete new content of the file",
						},
					},
					Required: []string{"reasoning", "path", "content"},
				},
			},
			Handler: func(ctx context.Context, p *Params, _ *Response) map[string]any {
				path, errResp := Param[string](p, "path")
				if errResp != nil {
					return errResp
				}
				content, errResp := Param[string](p, "content")
				if errResp != nil {
					return errResp
				}
				if err := cb.WriteFile(ctx, path, content); err != nil {
					return ErrorWithContext(err, map[string]any{"path": path})
				}
				return map[string]any{"path": path, "bytes_written": len(content)}
			},
		},
		"delete_file": {
			Definition: anthropic.ToolParam{
				Name:        "delete_file",
				Description: anthropic.String("Delete a file from the repository."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: "object",
					Properties: map[string]any{
						"reasoning": reasoningProperty,
						"path": map[string]any{
							"type":        "string",
							"description": "File path relative to the repository root",
						},
					},
					Required: []string{"reasoning", "path"},
				},
			},
			Handler: func(ctx context.Context, p *Params, _ *Response) map[string]any {
				path, errResp := Param[string](p, "path")
				if errResp != nil {
					return errResp
				}
				if err := cb.DeleteFile(ctx, path); err != nil {
					return ErrorWithContext(err, map[string]any{"path": path})
				}
				return map[string]any{"path": path, "deleted": true}
			},
		},
		"list_directory": {
			Definition: anthropic.ToolParam{
				Name:        "list_directory",
				Description: anthropic.String("List the files under a directory in the repository."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: "object",
					Properties: map[string]any{
						"reasoning": reasoningProperty,
						"path": map[string]any{
							"type":        "string",
							"description": "Directory path relative to the repository root, '.' for the root",
						},
					},
					Required: []string{"reasoning", "path"},
				},
			},
			Handler: func(ctx context.Context, p *Params, _ *Response) map[string]any {
				dir, errResp := Param[string](p, "path")
				if errResp != nil {
					return errResp
				}
				files, err := cb.ListFiles(ctx, dir)
				if err != nil {
					return ErrorWithContext(err, map[string]any{"path": dir})
				}
				return map[string]any{"path": dir, "files": files}
			},
		},
		"search_files": {
			Definition: anthropic.ToolParam{
				Name:        "search_files",
				Description: anthropic.String("Search the repository for lines matching a regular expression."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: "object",
					Properties: map[string]any{
						"reasoning": reasoningProperty,
						"pattern": map[string]any{
							"type":        "string",
							"description": "RE2 regular expression to search for",
						},
					},
					Required: []string{"reasoning", "pattern"},
				},
			},
			Handler: func(ctx context.Context, p *Params, _ *Response) map[string]any {
				pattern, errResp := Param[string](p, "pattern")
				if errResp != nil {
					return errResp
				}
				matches, err := cb.SearchFiles(ctx, pattern)
				if err != nil {
					return ErrorWithContext(err, map[string]any{"pattern": pattern})
				}
				out := make([]map[string]any, 0, len(matches))
				for _, m := range matches {
					out = append(out, map[string]any{
						"path":    m.Path,
						"line":    m.Line,
						"content": m.Content,
					})
				}
				return map[string]any{"pattern": pattern, "matches": out}
			},
		},
	}
}
