/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/mechanic-dev/mechanic/editor"
	"github.com/mechanic-dev/mechanic/validator"
)

// Plan is the change plan an agent produces for a task.
type Plan struct {
	// Summary explains the overall approach in a sentence or two.
	Summary string `json:"summary"`
	// BranchSlug is a short kebab-case name fragment for the branch.
	BranchSlug string `json:"branch_slug"`
	// CommitMessage is the commit title for the change.
	CommitMessage string `json:"commit_message"`
	// PRTitle and PRBody populate the pull request.
	PRTitle string `json:"pr_title"`
	PRBody  string `json:"pr_body"`
	// Changes are applied in order.
	Changes []FileChange `json:"changes"`
}

// FileChange is one file-level operation in a plan.
type FileChange struct {
	// Action is create, modify, delete, or rename.
	Action string `json:"action"`
	// Path is the target file, repo-relative.
	Path string `json:"path"`
	// NewPath is the destination for rename.
	NewPath string `json:"new_path,omitempty"`
	// Content is the full file content for create.
	Content string `json:"content,omitempty"`
	// Edits apply to modify actions, in order.
	Edits []Edit `json:"edits,omitempty"`
}

// Edit is one in-place modification.
type Edit struct {
	// Type is replace, insert_after, insert_at_line, or append.
	Type string `json:"type"`
	// Target is the text to replace or the anchor line for inserts.
	Target string `json:"target,omitempty"`
	// Line is the 1-based position for insert_at_line.
	Line int `json:"line,omitempty"`
	// Content is the new text.
	Content string `json:"content"`
}

// Validate checks a plan's shape and its generated content before
// anything touches the worktree.
func (p *Plan) Validate() error {
	if p.CommitMessage == "" {
		return errors.New("plan has no commit message")
	}
	if len(p.Changes) == 0 {
		return errors.New("plan has no changes")
	}
	for i, change := range p.Changes {
		if change.Path == "" {
			return fmt.Errorf("change %d has no path", i)
		}
		switch change.Action {
		case "create":
			if change.Content == "" {
				return fmt.Errorf("create of %s has no content", change.Path)
			}
			if issues := validator.Validate(change.Path, change.Content); validator.Blocking(issues) {
				return fmt.Errorf("generated content for %s rejected: %v", change.Path, issues)
			}
		case "modify":
			if len(change.Edits) == 0 {
				return fmt.Errorf("modify of %s has no edits", change.Path)
			}
			for j, edit := range change.Edits {
				switch edit.Type {
				case "replace", "insert_after", "insert_at_line", "append":
				default:
					return fmt.Errorf("change %d edit %d has unknown type %q", i, j, edit.Type)
				}
				if edit.Content == "" {
					return fmt.Errorf("edit %d of %s has no content", j, change.Path)
				}
				if issues := validator.Validate(change.Path, edit.Content); validator.Blocking(issues) {
					return fmt.Errorf("generated edit for %s rejected: %v", change.Path, issues)
				}
			}
		case "delete":
		case "rename":
			if change.NewPath == "" {
				return fmt.Errorf("rename of %s has no destination", change.Path)
			}
		default:
			return fmt.Errorf("change %d has unknown action %q", i, change.Action)
		}
	}
	return nil
}

// ContentWarnings collects the non-blocking validator findings for the
// plan's generated content, one line per finding.
func (p *Plan) ContentWarnings() []string {
	var out []string
	record := func(path, content string) {
		for _, issue := range validator.Validate(path, content) {
			if issue.Severity != validator.SeverityError {
				out = append(out, fmt.Sprintf("%s: %s", path, issue))
			}
		}
	}
	for _, change := range p.Changes {
		switch change.Action {
		case "create":
			record(change.Path, change.Content)
		case "modify":
			for _, edit := range change.Edits {
				record(change.Path, edit.Content)
			}
		}
	}
	return out
}

// Apply executes the plan against a worktree through the editor.
func (p *Plan) Apply(ctx context.Context, ed *editor.Editor) error {
	log := clog.FromContext(ctx)

	for _, change := range p.Changes {
		log.With("action", change.Action, "path", change.Path).Info("applying change")
		var err error
		switch change.Action {
		case "create":
			err = ed.Create(ctx, change.Path, change.Content)
		case "modify":
			err = applyEdits(ctx, ed, change)
		case "delete":
			err = ed.Delete(ctx, change.Path)
		case "rename":
			err = ed.Rename(ctx, change.Path, change.NewPath)
		default:
			err = fmt.Errorf("unknown action %q", change.Action)
		}
		if err != nil {
			return fmt.Errorf("applying %s to %s: %w", change.Action, change.Path, err)
		}
	}
	return nil
}

func applyEdits(ctx context.Context, ed *editor.Editor, change FileChange) error {
	for _, edit := range change.Edits {
		var err error
		switch edit.Type {
		case "replace":
			err = ed.Replace(ctx, change.Path, edit.Target, edit.Content)
		case "insert_after":
			err = ed.InsertAfter(ctx, change.Path, edit.Target, edit.Content)
		case "insert_at_line":
			err = ed.InsertAtLine(ctx, change.Path, edit.Line, edit.Content)
		case "append":
			err = ed.Append(ctx, change.Path, edit.Content)
		default:
			err = fmt.Errorf("unknown edit type %q", edit.Type)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
