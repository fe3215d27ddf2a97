/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator drives a code change from request to pull
// request: fork, clone, plan, edit, test, fix, push, PR.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
	gogit "github.com/go-git/go-git/v5"

	"github.com/mechanic-dev/mechanic/analyzer"
	"github.com/mechanic-dev/mechanic/clonemanager"
	"github.com/mechanic-dev/mechanic/config"
	"github.com/mechanic-dev/mechanic/editor"
	"github.com/mechanic-dev/mechanic/ghrepo"
	"github.com/mechanic-dev/mechanic/notify"
	"github.com/mechanic-dev/mechanic/testrunner"
)

// planAttempts bounds retries when the model submits an invalid plan.
const planAttempts = 3

// rankLimit is how many ranked files the planner sees.
const rankLimit = 10

// seedLimit is how many of those are preloaded into the conversation.
const seedLimit = 5

// Request is one unit of work for the orchestrator.
type Request struct {
	Kind        Kind
	Repository  string
	Description string
	// TargetBranch overrides the upstream default branch as the PR base.
	TargetBranch string
	// Draft opens the PR as a draft.
	Draft bool
	// SkipTests skips the test run and fix loop.
	SkipTests bool
}

// Orchestrator owns the long-lived clients and the task ledger.
type Orchestrator struct {
	cfg      *config.Config
	gh       *ghrepo.Client
	clones   *clonemanager.Manager
	runner   *testrunner.Runner
	notifier *notify.Notifier
	store    *Store
	agents   *agents
}

// New wires an Orchestrator from validated configuration.
func New(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gh, err := ghrepo.NewClient(ctx, cfg.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("building github client: %w", err)
	}
	clones, err := clonemanager.New(gh.TokenSource(), cfg.Identity, clonemanager.WithCloneTimeout(cfg.CloneTimeout))
	if err != nil {
		return nil, fmt.Errorf("building clone manager: %w", err)
	}
	store, err := NewStore(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	claude := anthropic.NewClient(option.WithAPIKey(cfg.ClaudeAPIKey))
	ag, err := newAgents(claude, cfg.Model)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:      cfg,
		gh:       gh,
		clones:   clones,
		runner:   testrunner.New(cfg.TestTimeout),
		notifier: notify.New(cfg.WebhookURL),
		store:    store,
		agents:   ag,
	}, nil
}

// Store exposes the task ledger, for the status command.
func (o *Orchestrator) Store() *Store { return o.store }

// ProcessRequest runs the full pipeline for one request. The returned
// task reflects the final state either way; the error explains a
// failure.
func (o *Orchestrator) ProcessRequest(ctx context.Context, req Request) (*Task, error) {
	upstream, err := ghrepo.ParseURL(req.Repository)
	if err != nil {
		return nil, err
	}

	task, err := o.store.Create(req.Kind, upstream.FullName(), req.Description)
	if err != nil {
		return nil, fmt.Errorf("recording task: %w", err)
	}
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("task", task.ShortID(), "repo", upstream.FullName()))

	prURL, runErr := o.run(ctx, task, req, upstream)

	status := StatusCompleted
	errText := ""
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
		clog.FromContext(ctx).Errorf("task failed: %v", runErr)
	}
	if err := o.store.Update(task.ID, func(t *Task) {
		t.Status = status
		t.PRURL = prURL
		t.Error = errText
	}); err != nil {
		clog.FromContext(ctx).Errorf("persisting task state: %v", err)
	}
	o.notifier.Notify(ctx, notify.Notification{
		Task:        task.ShortID(),
		Repository:  upstream.FullName(),
		Description: req.Description,
		Status:      string(status),
		PRURL:       prURL,
		Err:         errText,
	})
	return o.store.Get(task.ID), runErr
}

func (o *Orchestrator) run(ctx context.Context, task *Task, req Request, upstream *ghrepo.Resource) (string, error) {
	log := clog.FromContext(ctx)

	if err := o.store.Update(task.ID, func(t *Task) { t.Status = StatusInProgress }); err != nil {
		return "", fmt.Errorf("updating task: %w", err)
	}

	fork, err := o.gh.EnsureFork(ctx, upstream)
	if err != nil {
		return "", fmt.Errorf("ensuring fork: %w", err)
	}

	info, err := o.gh.Metadata(ctx, upstream)
	if err != nil {
		return "", fmt.Errorf("fetching repository metadata: %w", err)
	}
	log.With("default_branch", info.DefaultBranch, "language", info.Language).Info("repository metadata resolved")

	targetBranch := req.TargetBranch
	if targetBranch == "" {
		targetBranch = info.DefaultBranch
	}

	lease, err := o.clones.Lease(ctx, fork, upstream, targetBranch)
	if err != nil {
		return "", fmt.Errorf("preparing clone: %w", err)
	}
	defer func() {
		if err := lease.Return(ctx); err != nil {
			log.Warnf("returning clone: %v", err)
		}
	}()

	description := req.Description
	if req.Kind == KindFix && !strings.HasPrefix(description, "Fix bug:") {
		description = "Fix bug: " + description
	}

	plan, err := o.plan(ctx, lease, upstream, info, description)
	if err != nil {
		return "", err
	}

	branch := o.branchName(req.Kind, plan.BranchSlug, task)
	if err := o.store.Update(task.ID, func(t *Task) { t.Branch = branch }); err != nil {
		return "", fmt.Errorf("updating task: %w", err)
	}

	err = lease.MakeAndPushChanges(ctx, branch, func(ctx context.Context, wt *gogit.Worktree) (string, error) {
		if err := plan.Apply(ctx, editor.New(wt)); err != nil {
			return "", err
		}
		if req.SkipTests {
			log.Info("skipping tests by request")
			return plan.CommitMessage, nil
		}
		if err := o.verify(ctx, wt, lease.WorkingTree(), upstream, description); err != nil {
			return "", err
		}
		return plan.CommitMessage, nil
	})
	if err != nil {
		return "", fmt.Errorf("pushing changes: %w", err)
	}

	return o.ensurePR(ctx, upstream, fork, branch, targetBranch, plan, req.Draft)
}

// plan runs the planner agent, retrying when the submitted plan fails
// validation.
func (o *Orchestrator) plan(ctx context.Context, lease *clonemanager.Lease, upstream *ghrepo.Resource, info *ghrepo.RepoInfo, description string) (*Plan, error) {
	log := clog.FromContext(ctx)

	project, err := analyzer.Analyze(ctx, lease.WorkingTree())
	if err != nil {
		return nil, fmt.Errorf("analyzing repository: %w", err)
	}
	ranked, err := analyzer.Rank(ctx, project, description, rankLimit)
	if err != nil {
		return nil, fmt.Errorf("ranking files: %w", err)
	}
	relevant := make([]string, 0, len(ranked))
	for _, sf := range ranked {
		relevant = append(relevant, sf.Path)
	}
	log.With("files", len(project.Files), "language", project.PrimaryLanguage()).Info("repository analyzed")

	wt, err := lease.Repo().Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	tools := plannerTools(clonemanager.WorktreeCallbacks(wt))
	request := PlanRequest{
		Repository:    upstream.FullName(),
		Description:   description,
		Language:      info.Language,
		Project:       project,
		RelevantFiles: relevant,
	}
	seeds := seedReads(relevant[:min(len(relevant), seedLimit)])

	var lastErr error
	for attempt := 1; attempt <= planAttempts; attempt++ {
		plan, err := o.agents.planner.Execute(ctx, request, tools, seeds...)
		if err != nil {
			return nil, fmt.Errorf("planning change: %w", err)
		}
		if err := plan.Validate(); err != nil {
			log.Warnf("plan attempt %d invalid: %v", attempt, err)
			lastErr = err
			continue
		}
		log.With("changes", len(plan.Changes), "attempt", attempt).Info("plan accepted")
		return &plan, nil
	}
	return nil, fmt.Errorf("no valid plan after %d attempts: %w", planAttempts, lastErr)
}

// verify runs the test suite and, on failure, loops the fixer agent
// until tests pass or attempts run out.
func (o *Orchestrator) verify(ctx context.Context, wt *gogit.Worktree, root string, upstream *ghrepo.Resource, description string) error {
	log := clog.FromContext(ctx)

	result, err := o.runner.Run(ctx, root)
	if errors.Is(err, testrunner.ErrNoFramework) {
		log.Warn("no test framework detected, skipping verification")
		return nil
	}
	if err != nil {
		return fmt.Errorf("running tests: %w", err)
	}
	if result.Passed {
		log.With("command", result.Command.String()).Info("tests passed")
		return nil
	}

	tools := fixerTools(clonemanager.WorktreeCallbacks(wt), func(ctx context.Context) (*testrunner.Result, error) {
		return o.runner.Run(ctx, root)
	})
	for attempt := 1; attempt <= o.cfg.MaxFixAttempts; attempt++ {
		log.With("attempt", attempt, "failures", len(result.Failures)).Warnf("tests failed, attempting repair")

		seeds := seedReads(failureFiles(result.Failures, seedLimit))
		outcome, err := o.agents.fixer.Execute(ctx, FixRequest{
			Repository:  upstream.FullName(),
			Description: description,
			Result:      result,
		}, tools, seeds...)
		if err != nil {
			return fmt.Errorf("fix attempt %d: %w", attempt, err)
		}
		log.With("attempt", attempt).Infof("fixer: %s", outcome.Summary)

		if result, err = o.runner.Run(ctx, root); err != nil {
			return fmt.Errorf("running tests: %w", err)
		}
		if result.Passed {
			log.With("attempt", attempt).Info("tests passing after repair")
			return nil
		}
	}
	return fmt.Errorf("tests still failing after %d fix attempts: %d failures", o.cfg.MaxFixAttempts, len(result.Failures))
}

// ensurePR creates the pull request, or refreshes the body of an open
// one for the same branch, and appends diff statistics.
func (o *Orchestrator) ensurePR(ctx context.Context, upstream, fork *ghrepo.Resource, branch, targetBranch string, plan *Plan, draft bool) (string, error) {
	log := clog.FromContext(ctx)

	pr, err := o.gh.FindOpenPR(ctx, upstream, fork.Owner, branch)
	if err != nil {
		return "", fmt.Errorf("checking for existing PR: %w", err)
	}
	if pr == nil {
		title := plan.PRTitle
		if title == "" {
			title = plan.CommitMessage
		}
		if pr, err = o.gh.CreatePR(ctx, upstream, fork.Owner, branch, targetBranch, title, plan.PRBody, draft); err != nil {
			return "", fmt.Errorf("creating PR: %w", err)
		}
		log.With("pr", pr.URL).Info("pull request opened")
	} else {
		log.With("pr", pr.URL).Info("reusing open pull request")
	}

	body := strings.TrimRight(plan.PRBody, "\n")
	if warnings := plan.ContentWarnings(); len(warnings) > 0 {
		body += "\n\n### Review notes\n- " + strings.Join(warnings, "\n- ")
	}
	if stats, err := o.gh.PRDiffStats(ctx, upstream, pr.Number); err != nil {
		log.Warnf("fetching diff stats: %v", err)
	} else {
		body += fmt.Sprintf("\n\n---\n%d files changed, +%d/-%d lines.",
			stats.FilesChanged, stats.Additions, stats.Deletions)
	}
	if err := o.gh.UpdatePRBody(ctx, upstream, pr.Number, body); err != nil {
		log.Warnf("updating PR body: %v", err)
	}
	return pr.URL, nil
}

// branchName builds <identity>/<kind>-<slug>-<shortid>.
func (o *Orchestrator) branchName(kind Kind, slug string, task *Task) string {
	word := "feature"
	if kind == KindFix {
		word = "fix"
	}
	slug = sanitizeSlug(slug)
	if slug == "" {
		slug = "change"
	}
	return fmt.Sprintf("%s/%s-%s-%s", o.cfg.Identity, word, slug, task.ShortID())
}

// sanitizeSlug maps arbitrary model output to a safe git ref fragment.
func sanitizeSlug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	if len(out) > 40 {
		out = strings.Trim(out[:40], "-")
	}
	return out
}

// failureFiles collects the distinct files named in test failures.
func failureFiles(failures []testrunner.Failure, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range failures {
		if f.File == "" {
			continue
		}
		if _, dup := seen[f.File]; dup {
			continue
		}
		seen[f.File] = struct{}{}
		out = append(out, f.File)
		if len(out) == limit {
			break
		}
	}
	return out
}
