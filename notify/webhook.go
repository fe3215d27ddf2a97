/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package notify posts task completion notices to a Discord-compatible
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/mechanic-dev/mechanic/agents/executor/retry"
)

// Notification describes a finished task.
type Notification struct {
	Task        string
	Repository  string
	Description string
	Status      string
	PRURL       string
	Err         string
}

// Notifier posts notifications to a webhook URL. A Notifier with an
// empty URL is a no-op, so callers never need to branch on config.
type Notifier struct {
	url    string
	client *http.Client
	retry  retry.Config
}

// New builds a Notifier. url may be empty.
func New(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: retry.Config{
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			MaxBackoff:  2 * time.Second,
			MaxJitter:   100 * time.Millisecond,
		},
	}
}

// Notify sends the notification. Failures are logged, not returned:
// a dead webhook should never fail the task it reports on.
func (n *Notifier) Notify(ctx context.Context, note Notification) {
	if n.url == "" {
		return
	}
	log := clog.FromContext(ctx)

	content := fmt.Sprintf("**%s** `%s`\n%s", note.Status, note.Repository, note.Description)
	if note.PRURL != "" {
		content += "\n" + note.PRURL
	}
	if note.Err != "" {
		content += "\nerror: " + note.Err
	}

	payload, err := json.Marshal(map[string]any{
		"content":  content,
		"username": "mechanic",
	})
	if err != nil {
		log.Errorf("marshaling notification: %v", err)
		return
	}

	// Webhook endpoints flake; every error is worth the small retry.
	if _, err := retry.Do(ctx, n.retry, func(error) bool { return true }, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, n.post(ctx, payload)
	}); err != nil {
		log.Errorf("posting notification: %v", err)
		return
	}
	log.With("task", note.Task).Debug("notification delivered")
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected notification: status %d", resp.StatusCode)
	}
	return nil
}
