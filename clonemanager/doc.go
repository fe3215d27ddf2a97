/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package clonemanager maintains a pool of git clones used to apply
// agent-generated changes. A lease checks out a fresh upstream commit,
// exposes the working tree to agents, and pushes the resulting branch
// to the user's fork.
package clonemanager
