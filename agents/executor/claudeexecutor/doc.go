/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexecutor drives multi-turn Claude conversations with
// tool use. An executor owns the prompt template, model parameters, and
// retry policy; callers supply the request data and tool handlers, and
// get back a typed result either from the submit tool or parsed out of
// the model's final text.
package claudeexecutor
