/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package callbacks defines provider-neutral callback bundles that back
// agent tools, so tool wiring stays separate from tool definitions.
package callbacks
