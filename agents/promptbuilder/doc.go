/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package promptbuilder renders agent prompts from templates with
// {{placeholder}} markers. Values are bound as plain strings or as
// JSON, XML, or YAML renderings of structured data, and Build fails
// closed if any placeholder is left unbound.
package promptbuilder
