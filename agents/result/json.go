/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON payload out of model output. It prefers the
// first ```json fenced block; failing that it falls back to the first
// top-level object or array in the text. Models often wrap structured
// answers in prose, so the caller should not assume the text is bare
// JSON.
func ExtractJSON(text string) (string, error) {
	if fenced, ok := fencedJSON(text); ok {
		return fenced, nil
	}
	trimmed := strings.TrimSpace(text)
	if start := strings.IndexAny(trimmed, "{["); start >= 0 {
		open := trimmed[start]
		close := byte('}')
		if open == '[' {
			close = ']'
		}
		if end := strings.LastIndexByte(trimmed, close); end > start {
			return trimmed[start : end+1], nil
		}
	}
	return "", fmt.Errorf("no JSON found in text: %q", truncate(text, 120))
}

// Extract parses model output into T via ExtractJSON.
func Extract[T any](text string) (T, error) {
	var out T
	payload, err := ExtractJSON(text)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("unmarshaling extracted JSON: %w", err)
	}
	return out, nil
}

func fencedJSON(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		fence := strings.TrimSpace(line)
		switch {
		case start == -1 && (fence == "```json" || fence == "```"):
			start = i + 1
		case start != -1 && fence == "```":
			return strings.Join(lines[start:i], "\n"), true
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
