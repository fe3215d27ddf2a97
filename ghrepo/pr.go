/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package ghrepo

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
	"github.com/waigani/diffparser"
)

// PullRequest is the subset of PR state the orchestrator reports.
type PullRequest struct {
	Number int
	URL    string
	Title  string
}

// DiffStats summarizes a pull request's diff.
type DiffStats struct {
	FilesChanged int
	Additions    int
	Deletions    int
}

// FindOpenPR looks for an open PR against base whose head is branch
// pushed from headOwner's fork. It returns nil when none exists.
func (c *Client) FindOpenPR(ctx context.Context, base *Resource, headOwner, branch string) (*PullRequest, error) {
	gqlClient := githubv4.NewClient(c.HTTPClient())

	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number int
					URL    string
					Title  string
					HeadRepositoryOwner struct {
						Login string
					}
				}
			} `graphql:"pullRequests(headRefName: $branch, states: OPEN, first: 10)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner":  githubv4.String(base.Owner),
		"repo":   githubv4.String(base.Repo),
		"branch": githubv4.String(branch),
	}
	if err := gqlClient.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("graphql query for open PRs: %w", err)
	}

	for _, node := range query.Repository.PullRequests.Nodes {
		if node.HeadRepositoryOwner.Login == headOwner {
			return &PullRequest{Number: node.Number, URL: node.URL, Title: node.Title}, nil
		}
	}
	return nil, nil
}

// CreatePR opens a pull request against base. When the head branch
// lives in a fork, headOwner qualifies it in "owner:branch" form.
func (c *Client) CreatePR(ctx context.Context, base *Resource, headOwner, branch, targetBranch, title, body string, draft bool) (*PullRequest, error) {
	log := clog.FromContext(ctx)

	head := branch
	if headOwner != base.Owner {
		head = headOwner + ":" + branch
	}

	pr, _, err := c.gh.PullRequests.Create(ctx, base.Owner, base.Repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(targetBranch),
		Draft: github.Ptr(draft),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}

	log.With("pr", pr.GetHTMLURL()).Info("opened pull request")
	return &PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		Title:  pr.GetTitle(),
	}, nil
}

// UpdatePRBody replaces the body of an existing PR, used when a fix
// round pushes new commits to an already-open PR.
func (c *Client) UpdatePRBody(ctx context.Context, base *Resource, number int, body string) error {
	_, _, err := c.gh.PullRequests.Edit(ctx, base.Owner, base.Repo, number, &github.PullRequest{
		Body: github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("updating pull request #%d: %w", number, err)
	}
	return nil
}

// PRDiffStats fetches the PR's diff and computes file and line counts.
func (c *Client) PRDiffStats(ctx context.Context, base *Resource, number int) (*DiffStats, error) {
	raw, _, err := c.gh.PullRequests.GetRaw(ctx, base.Owner, base.Repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return nil, fmt.Errorf("fetching diff for #%d: %w", number, err)
	}
	diff, err := diffparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing diff for #%d: %w", number, err)
	}

	stats := &DiffStats{FilesChanged: len(diff.Files)}
	for _, file := range diff.Files {
		for _, hunk := range file.Hunks {
			for _, line := range hunk.WholeRange.Lines {
				switch line.Mode {
				case diffparser.ADDED:
					stats.Additions++
				case diffparser.REMOVED:
					stats.Deletions++
				}
			}
		}
	}
	return stats, nil
}
