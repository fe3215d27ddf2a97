/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"

	"github.com/mechanic-dev/mechanic/agents/agenttrace"
	"github.com/mechanic-dev/mechanic/agents/executor/retry"
	"github.com/mechanic-dev/mechanic/agents/promptbuilder"
	"github.com/mechanic-dev/mechanic/agents/result"
	"github.com/mechanic-dev/mechanic/agents/toolcall/claudetool"
)

// Interface runs one agent conversation per Execute call. Request binds
// per-call data into the prompt; Response is the structured result the
// conversation must produce.
type Interface[Request promptbuilder.Bindable, Response any] interface {
	// Execute drives the conversation until a tool submits a result or
	// the model answers with parseable text. Seed tool calls, if given,
	// are executed up front and their results prepended, so the model
	// starts with that context already in hand.
	Execute(ctx context.Context, request Request, tools map[string]claudetool.Metadata[Response], seedToolCalls ...anthropic.ToolUseBlock) (Response, error)
}

type executor[Request promptbuilder.Bindable, Response any] struct {
	client             anthropic.Client
	model              string
	prompt             *promptbuilder.Prompt
	systemInstructions *promptbuilder.Prompt
	maxTokens          int64
	temperature        float64
	thinkingBudget     *int64
	submitTool         claudetool.Metadata[Response]
	retryConfig        retry.Config
}

// New builds an executor around a shared prompt template.
func New[Request promptbuilder.Bindable, Response any](
	client anthropic.Client,
	prompt *promptbuilder.Prompt,
	opts ...Option[Request, Response],
) (Interface[Request, Response], error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}
	e := &executor[Request, Response]{
		client:      client,
		model:       string(anthropic.ModelClaudeSonnet4_20250514),
		prompt:      prompt,
		maxTokens:   8192,
		temperature: 0.1,
		retryConfig: retry.DefaultConfig,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return e, nil
}

func (e *executor[Request, Response]) Execute(
	ctx context.Context,
	request Request,
	tools map[string]claudetool.Metadata[Response],
	seedToolCalls ...anthropic.ToolUseBlock,
) (response Response, err error) {
	log := clog.FromContext(ctx)

	boundPrompt, err := request.Bind(e.prompt)
	if err != nil {
		return response, fmt.Errorf("binding request to prompt: %w", err)
	}
	prompt, err := boundPrompt.Build()
	if err != nil {
		return response, fmt.Errorf("building prompt: %w", err)
	}

	ctx, trace := agenttrace.Start[Response](ctx, e.model)
	defer func() { trace.End(err) }()

	log.With("model", e.model, "prompt_length", len(prompt)).Info("starting agent execution")

	if e.submitTool.Handler != nil {
		merged := make(map[string]claudetool.Metadata[Response], len(tools)+1)
		maps.Copy(merged, tools)
		if _, exists := merged[e.submitTool.Definition.Name]; !exists {
			merged[e.submitTool.Definition.Name] = e.submitTool
		}
		tools = merged
	}

	toolDefs := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, meta := range tools {
		toolDefs = append(toolDefs, anthropic.ToolUnionParam{OfTool: &meta.Definition})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
		Tools: toolDefs,
	}
	params.Temperature = anthropic.Float(e.temperature)
	if e.systemInstructions != nil {
		system, err := e.systemInstructions.Build()
		if err != nil {
			return response, fmt.Errorf("building system prompt: %w", err)
		}
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if e.thinkingBudget != nil {
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: *e.thinkingBudget},
		}
		// The API requires temperature 1.0 with extended thinking.
		params.Temperature = anthropic.Float(1.0)
	}

	var finalResult Response

	runTool := func(toolUse anthropic.ToolUseBlock) (anthropic.ContentBlockParamUnion, error) {
		log.With("tool", toolUse.Name, "id", toolUse.ID).Info("executing tool call")

		var out map[string]any
		meta, known := tools[toolUse.Name]
		switch {
		case !known:
			out = claudetool.Error("unknown tool: %q", toolUse.Name)
		default:
			p, errResp := claudetool.NewParams(toolUse)
			if errResp != nil {
				out = errResp
			} else {
				call := trace.StartToolCall(ctx, toolUse.Name, p.Inputs())
				out = meta.Handler(ctx, p, &finalResult)
				if claudetool.IsError(out) {
					call.Fail(fmt.Errorf("%v", out["error"]))
				} else {
					call.Complete(out)
				}
			}
		}

		raw, err := json.Marshal(out)
		if err != nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("marshaling tool result: %w", err)
		}
		return anthropic.ContentBlockParamUnion{
			OfToolResult: &anthropic.ToolResultBlockParam{
				ToolUseID: toolUse.ID,
				Content: []anthropic.ToolResultBlockParamContentUnion{{
					OfText: &anthropic.TextBlockParam{Text: string(raw)},
				}},
			},
		}, nil
	}

	// Seeded calls run before the first model turn, as if the model had
	// asked for them itself.
	for _, toolCall := range seedToolCalls {
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role: anthropic.MessageParamRoleAssistant,
			Content: []anthropic.ContentBlockParamUnion{{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    toolCall.ID,
					Name:  toolCall.Name,
					Input: toolCall.Input,
				},
			}},
		})
		toolResult, err := runTool(toolCall)
		if err != nil {
			return response, err
		}
		if !reflect.ValueOf(finalResult).IsZero() {
			return finalResult, nil
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{toolResult},
		})
	}

	for {
		message, err := retry.Do(ctx, e.retryConfig, isRetryableClaudeError, func(ctx context.Context) (anthropic.Message, error) {
			stream := e.client.Messages.NewStreaming(ctx, params)
			var msg anthropic.Message
			for stream.Next() {
				if err := msg.Accumulate(stream.Current()); err != nil {
					return msg, fmt.Errorf("accumulating stream event: %w", err)
				}
			}
			if err := stream.Err(); err != nil {
				return msg, err
			}
			return msg, nil
		})
		if err != nil {
			return response, fmt.Errorf("streaming model response: %w", err)
		}

		trace.RecordTokenUsage(message.Usage.InputTokens, message.Usage.OutputTokens)

		var toolUseBlocks []anthropic.ToolUseBlock
		var textContent string
		for _, content := range message.Content {
			switch content.Type {
			case "text":
				textContent = content.Text
			case "tool_use":
				toolUseBlocks = append(toolUseBlocks, anthropic.ToolUseBlock{
					ID:    content.ID,
					Name:  content.Name,
					Input: content.Input,
				})
			}
		}

		if len(toolUseBlocks) > 0 {
			params.Messages = append(params.Messages, message.ToParam())

			var toolResults []anthropic.ContentBlockParamUnion
			for _, toolUse := range toolUseBlocks {
				toolResult, err := runTool(toolUse)
				if err != nil {
					return response, err
				}
				toolResults = append(toolResults, toolResult)

				if !reflect.ValueOf(finalResult).IsZero() {
					log.Info("tool submitted final result")
					return finalResult, nil
				}
			}
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: toolResults,
			})
			continue
		}

		if textContent != "" {
			resp, err := result.Extract[Response](textContent)
			if err != nil {
				log.With("response_length", len(textContent)).Errorf("unparseable model response: %v", err)
				return response, fmt.Errorf("parsing model response: %w", err)
			}
			return resp, nil
		}
		return response, errors.New("model response had no content")
	}
}
