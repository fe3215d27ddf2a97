/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package retry runs fallible operations with exponential backoff and
// jitter, retrying only errors the caller classifies as transient.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config controls the retry schedule.
type Config struct {
	// MaxAttempts bounds the total number of tries, including the first.
	MaxAttempts int
	// BaseBackoff is the delay after the first failure. It doubles on
	// each subsequent failure up to MaxBackoff.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential delay.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of the random slack added to each
	// delay to avoid synchronized retries.
	MaxJitter time.Duration
}

// DefaultConfig suits API rate limits and transient overload errors.
var DefaultConfig = Config{
	MaxAttempts: 5,
	BaseBackoff: 1 * time.Second,
	MaxBackoff:  60 * time.Second,
	MaxJitter:   500 * time.Millisecond,
}

// Do runs op until it succeeds, fails with a non-retryable error, or
// exhausts the attempt budget. retryable decides which errors are worth
// another try.
func Do[T any](ctx context.Context, cfg Config, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	log := clog.FromContext(ctx)
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoff(cfg, attempt)
		log.With("attempt", attempt, "delay", delay).Infof("retrying after transient error: %v", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseBackoff << (attempt - 1)
	if delay > cfg.MaxBackoff || delay <= 0 {
		delay = cfg.MaxBackoff
	}
	return delay + jitter(cfg.MaxJitter)
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return max / 2
	}
	return time.Duration(n.Int64())
}
