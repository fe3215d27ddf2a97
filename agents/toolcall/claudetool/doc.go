/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package claudetool defines tools for Claude conversations: schema
// metadata, typed parameter extraction, and the worktree tool set that
// lets agents read and edit a cloned repository.
package claudetool
