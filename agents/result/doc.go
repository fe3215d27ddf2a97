/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package result recovers structured JSON results from free-form model
// output, handling fenced code blocks and surrounding prose.
package result
