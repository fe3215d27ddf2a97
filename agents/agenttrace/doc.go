/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package agenttrace instruments agent executions with OpenTelemetry
// spans, recording each tool call and the token usage of the run.
package agenttrace
