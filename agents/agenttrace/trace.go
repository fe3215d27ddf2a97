/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mechanic-dev/mechanic/agents/agenttrace")

// Trace records a single agent execution: the conversation's tool calls,
// token usage, and the final outcome. Response is the agent's result
// type so handlers can attach partial results to individual calls.
type Trace[Response any] struct {
	span trace.Span

	mu           sync.Mutex
	toolCalls    []*ToolCall[Response]
	inputTokens  int64
	outputTokens int64
}

// Start begins a trace for one agent run. The returned context carries
// the trace's span so nested operations parent correctly.
func Start[Response any](ctx context.Context, agent string) (context.Context, *Trace[Response]) {
	ctx, span := tracer.Start(ctx, "agent."+agent,
		trace.WithAttributes(attribute.String("agent.name", agent)))
	return ctx, &Trace[Response]{span: span}
}

// RecordTokenUsage accumulates token counts across conversation turns.
func (t *Trace[Response]) RecordTokenUsage(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTokens += input
	t.outputTokens += output
}

// TokenUsage reports the accumulated input and output token counts.
func (t *Trace[Response]) TokenUsage() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTokens, t.outputTokens
}

// ToolCalls returns the tool calls recorded so far, in order.
func (t *Trace[Response]) ToolCalls() []*ToolCall[Response] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*ToolCall[Response]{}, t.toolCalls...)
}

// End closes the trace, labeling the span with the run's outcome.
func (t *Trace[Response]) End(err error) {
	t.mu.Lock()
	t.span.SetAttributes(
		attribute.Int("agent.tool_calls", len(t.toolCalls)),
		attribute.Int64("agent.input_tokens", t.inputTokens),
		attribute.Int64("agent.output_tokens", t.outputTokens),
	)
	t.mu.Unlock()
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	} else {
		t.span.SetStatus(codes.Ok, "")
	}
	t.span.End()
}

// ToolCall records one tool invocation within a trace.
type ToolCall[Response any] struct {
	Name    string
	Inputs  map[string]any
	Outputs map[string]any
	Err     string
	Started time.Time
	Ended   time.Time

	span trace.Span
}

// StartToolCall opens a span for a tool invocation and registers it on
// the trace. The call must be finished with Complete or Fail.
func (t *Trace[Response]) StartToolCall(ctx context.Context, name string, inputs map[string]any) *ToolCall[Response] {
	_, span := tracer.Start(ctx, "tool."+name,
		trace.WithAttributes(attribute.String("tool.name", name)))
	if raw, err := json.Marshal(inputs); err == nil {
		span.SetAttributes(attribute.String("tool.inputs", string(raw)))
	}
	call := &ToolCall[Response]{
		Name:    name,
		Inputs:  inputs,
		Started: time.Now(),
		span:    span,
	}
	t.mu.Lock()
	t.toolCalls = append(t.toolCalls, call)
	t.mu.Unlock()
	return call
}

// Complete finishes the call successfully with the handler's outputs.
func (c *ToolCall[Response]) Complete(outputs map[string]any) {
	c.Outputs = outputs
	c.Ended = time.Now()
	c.span.SetStatus(codes.Ok, "")
	c.span.End()
}

// Fail finishes the call with an error, which is also surfaced back to
// the model as the tool result.
func (c *ToolCall[Response]) Fail(err error) {
	c.Err = err.Error()
	c.Ended = time.Now()
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	c.span.End()
}
