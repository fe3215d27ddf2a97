/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package params extracts typed values from the loosely typed JSON
// inputs of model tool calls.
package params

import (
	"fmt"
	"math"
)

// Extract returns the required parameter name from inputs, converting
// JSON numbers (always float64) to integer types when the value is
// integral.
func Extract[T any](inputs map[string]any, name string) (T, error) {
	var zero T
	raw, ok := inputs[name]
	if !ok {
		return zero, fmt.Errorf("missing required parameter %q", name)
	}
	return convert[T](raw, name)
}

// ExtractOptional returns the parameter if present, or fallback if it
// is absent. A present value of the wrong type is still an error.
func ExtractOptional[T any](inputs map[string]any, name string, fallback T) (T, error) {
	raw, ok := inputs[name]
	if !ok {
		return fallback, nil
	}
	return convert[T](raw, name)
}

func convert[T any](raw any, name string) (T, error) {
	var zero T
	if v, ok := raw.(T); ok {
		return v, nil
	}
	// JSON decoding yields float64 for every number; recover integer
	// parameters when the value has no fractional part.
	if f, ok := raw.(float64); ok {
		switch any(zero).(type) {
		case int:
			if f == math.Trunc(f) {
				return any(int(f)).(T), nil
			}
		case int64:
			if f == math.Trunc(f) {
				return any(int64(f)).(T), nil
			}
		}
	}
	return zero, fmt.Errorf("parameter %q has type %T, want %T", name, raw, zero)
}
