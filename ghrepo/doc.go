/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package ghrepo talks to GitHub: repository reference parsing, fork
// management, and pull request lifecycle over the REST and GraphQL
// APIs.
package ghrepo
