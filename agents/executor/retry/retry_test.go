/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func(error) bool { return true },
		func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("Do() = %q after %d calls, want %q after 1", got, calls, "ok")
	}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(5), func(err error) bool { return errors.Is(err, errTransient) },
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errTransient
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("Do() = %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), fastConfig(5), func(err error) bool { return errors.Is(err, errTransient) },
		func(context.Context) (int, error) {
			calls++
			return 0, permanent
		})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do() = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func(error) bool { return true },
		func(context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
	if !errors.Is(err, errTransient) {
		t.Fatalf("Do() = %v, want wrapped %v", err, errTransient)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Do(ctx, Config{MaxAttempts: 3, BaseBackoff: time.Minute, MaxBackoff: time.Minute}, func(error) bool { return true },
		func(context.Context) (int, error) {
			cancel()
			return 0, errTransient
		})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := Config{BaseBackoff: time.Second, MaxBackoff: 4 * time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		if d := backoff(cfg, attempt); d > cfg.MaxBackoff {
			t.Errorf("backoff(attempt=%d) = %v, want <= %v", attempt, d, cfg.MaxBackoff)
		}
	}
}
