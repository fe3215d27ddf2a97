/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mechanic-dev/mechanic/agents/executor/retry"
)

func TestNotify(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	New(server.URL).Notify(context.Background(), Notification{
		Task:        "abc123",
		Repository:  "octocat/hello-world",
		Description: "add retry logic",
		Status:      "completed",
		PRURL:       "https://github.com/octocat/hello-world/pull/7",
	})

	content, _ := got["content"].(string)
	for _, want := range []string{"completed", "octocat/hello-world", "add retry logic", "pull/7"} {
		if !strings.Contains(content, want) {
			t.Errorf("content %q missing %q", content, want)
		}
	}
	if got["username"] != "mechanic" {
		t.Errorf("username = %v", got["username"])
	}
}

func TestNotifyNoURL(t *testing.T) {
	// Must not panic or block.
	New("").Notify(context.Background(), Notification{Status: "completed"})
}

// fastNotifier shrinks the backoff so retry tests stay quick.
func fastNotifier(url string) *Notifier {
	n := New(url)
	n.retry = retry.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
	return n
}

func TestNotifyRetriesTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	fastNotifier(server.URL).Notify(context.Background(), Notification{Status: "completed"})

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestNotifyServerErrorIsSwallowed(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Webhook failures never propagate to the caller, even after the
	// retry budget is spent.
	fastNotifier(server.URL).Notify(context.Background(), Notification{Status: "failed", Err: "boom"})

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}
