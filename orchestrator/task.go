/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Kind distinguishes feature work from bug fixes.
type Kind string

const (
	KindImplement Kind = "implement"
	KindFix       Kind = "fix"
)

// Task is one change request, persisted across invocations so status
// reporting works after the process exits.
type Task struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Repository  string    `json:"repository"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Branch      string    `json:"branch,omitempty"`
	PRURL       string    `json:"pr_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ShortID returns the first eight characters of the task ID, used in
// branch names and logs.
func (t *Task) ShortID() string {
	if len(t.ID) < 8 {
		return t.ID
	}
	return t.ID[:8]
}

// Stats aggregates the ledger by status.
type Stats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Store is a task ledger persisted as a JSON file. Every mutation is
// written through immediately, so a crash loses at most the in-flight
// status transition.
type Store struct {
	path string

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewStore loads (or initializes) the ledger at path.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, tasks: make(map[string]*Task)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var tasks []*Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s, nil
}

// Create registers a new pending task and persists it.
func (s *Store) Create(kind Kind, repository, description string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Repository:  repository,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	if err := s.persistLocked(); err != nil {
		delete(s.tasks, task.ID)
		return nil, err
	}
	return task, nil
}

// Update applies mutate to the task and persists the result.
func (s *Store) Update(id string, mutate func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %q", id)
	}
	mutate(task)
	task.UpdatedAt = time.Now().UTC()
	return s.persistLocked()
}

// Get returns a copy of the task, or nil.
func (s *Store) Get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		copy := *task
		return &copy
	}
	return nil
}

// List returns all tasks, newest first.
func (s *Store) List() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		copy := *task
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stats summarizes the ledger.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	for _, task := range s.tasks {
		switch task.Status {
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
		stats.Total++
	}
	return stats
}

func (s *Store) persistLocked() error {
	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	// Write-then-rename so a crash cannot truncate the ledger.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
