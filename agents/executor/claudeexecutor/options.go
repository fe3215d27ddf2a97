/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"errors"
	"fmt"

	"github.com/mechanic-dev/mechanic/agents/executor/retry"
	"github.com/mechanic-dev/mechanic/agents/promptbuilder"
	"github.com/mechanic-dev/mechanic/agents/toolcall/claudetool"
)

// Option configures an executor at construction time.
type Option[Request promptbuilder.Bindable, Response any] func(*executor[Request, Response]) error

// WithModel overrides the default model.
func WithModel[Request promptbuilder.Bindable, Response any](model string) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		e.model = model
		return nil
	}
}

// WithMaxTokens sets the per-turn output token budget.
func WithMaxTokens[Request promptbuilder.Bindable, Response any](maxTokens int64) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if maxTokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", maxTokens)
		}
		e.maxTokens = maxTokens
		return nil
	}
}

// WithTemperature sets the sampling temperature, in [0, 1].
func WithTemperature[Request promptbuilder.Bindable, Response any](temperature float64) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if temperature < 0 || temperature > 1 {
			return fmt.Errorf("temperature must be in [0, 1], got %v", temperature)
		}
		e.temperature = temperature
		return nil
	}
}

// WithSystemInstructions sets a system prompt built alongside the main
// prompt. It must have no unbound placeholders at Execute time.
func WithSystemInstructions[Request promptbuilder.Bindable, Response any](instructions *promptbuilder.Prompt) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if instructions == nil {
			return errors.New("system instructions cannot be nil")
		}
		e.systemInstructions = instructions
		return nil
	}
}

// WithThinking enables extended thinking with the given token budget.
func WithThinking[Request promptbuilder.Bindable, Response any](budgetTokens int64) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if budgetTokens <= 0 {
			return fmt.Errorf("thinking budget must be positive, got %d", budgetTokens)
		}
		e.thinkingBudget = &budgetTokens
		return nil
	}
}

// WithSubmitResult registers the tool that ends the conversation by
// submitting a typed result.
func WithSubmitResult[Request promptbuilder.Bindable, Response any](tool claudetool.Metadata[Response]) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if tool.Handler == nil {
			return errors.New("submit tool has no handler")
		}
		if tool.Definition.Name == "" {
			return errors.New("submit tool has no name")
		}
		e.submitTool = tool
		return nil
	}
}

// WithRetryConfig overrides the retry schedule for transient API errors.
func WithRetryConfig[Request promptbuilder.Bindable, Response any](cfg retry.Config) Option[Request, Response] {
	return func(e *executor[Request, Response]) error {
		if cfg.MaxAttempts <= 0 {
			return fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
		}
		e.retryConfig = cfg
		return nil
	}
}
