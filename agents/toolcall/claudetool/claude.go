/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudetool

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mechanic-dev/mechanic/agents/toolcall/params"
)

// Metadata pairs a tool's Claude schema with its handler. Response is
// the agent's result type: the submit handler writes through the
// pointer to end the conversation.
type Metadata[Response any] struct {
	Definition anthropic.ToolParam
	Handler    HandlerFunc[Response]
}

// HandlerFunc executes one tool call. The returned map becomes the
// tool result sent back to the model; an "error" key marks failure.
type HandlerFunc[Response any] func(ctx context.Context, p *Params, result *Response) map[string]any

// Params wraps a tool call's input block, deserialized once.
type Params struct {
	raw    json.RawMessage
	inputs map[string]any
}

// NewParams parses the JSON input of a tool use block. A parse failure
// is returned as an error response for the model rather than an error.
func NewParams(toolUse anthropic.ToolUseBlock) (*Params, map[string]any) {
	var inputs map[string]any
	if err := json.Unmarshal(toolUse.Input, &inputs); err != nil {
		return nil, Error("parsing tool input: %v", err)
	}
	return &Params{raw: toolUse.Input, inputs: inputs}, nil
}

// Raw returns the undecoded input payload.
func (p *Params) Raw() json.RawMessage { return p.raw }

// Inputs returns the decoded input map, for tracing.
func (p *Params) Inputs() map[string]any { return p.inputs }

// Param extracts a required parameter, returning an error response for
// the model when it is missing or mistyped.
func Param[T any](p *Params, name string) (T, map[string]any) {
	v, err := params.Extract[T](p.inputs, name)
	if err != nil {
		return v, Error("%s", err)
	}
	return v, nil
}

// OptionalParam extracts an optional parameter with a default.
func OptionalParam[T any](p *Params, name string, fallback T) (T, map[string]any) {
	v, err := params.ExtractOptional(p.inputs, name, fallback)
	if err != nil {
		return v, Error("%s", err)
	}
	return v, nil
}

// Error builds an error response map for the model.
func Error(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// ErrorWithContext builds an error response carrying extra fields the
// model can use to correct its next call.
func ErrorWithContext(err error, context map[string]any) map[string]any {
	response := map[string]any{"error": err.Error()}
	maps.Copy(response, context)
	return response
}

// IsError reports whether a handler response marks a failed call.
func IsError(response map[string]any) bool {
	_, ok := response["error"]
	return ok
}
