/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package ghrepo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub REST surface with the operations the
// orchestrator needs: identity, forking, and pull requests.
type Client struct {
	gh          *github.Client
	tokenSource oauth2.TokenSource

	login string // authenticated user, resolved lazily
}

// NewClient builds a client from a personal access token.
func NewClient(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("github token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	return &Client{
		gh:          github.NewClient(httpClient),
		tokenSource: ts,
	}, nil
}

// TokenSource exposes the credential for git-over-https operations.
func (c *Client) TokenSource() oauth2.TokenSource { return c.tokenSource }

// HTTPClient returns the authenticated HTTP client, for the GraphQL API.
func (c *Client) HTTPClient() *http.Client { return c.gh.Client() }

// Login returns the authenticated user's login, caching it after the
// first lookup.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.login != "" {
		return c.login, nil
	}
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("resolving authenticated user: %w", err)
	}
	c.login = user.GetLogin()
	return c.login, nil
}

// forkPollInterval paces the wait for GitHub's async fork creation.
var forkPollInterval = 2 * time.Second

// EnsureFork makes sure the authenticated user has a fork of upstream,
// creating one if needed, and returns it. Fork creation is asynchronous
// on GitHub's side, so this polls until the fork repo answers.
func (c *Client) EnsureFork(ctx context.Context, upstream *Resource) (*Resource, error) {
	log := clog.FromContext(ctx)

	login, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}
	if login == upstream.Owner {
		// Pushing straight to the user's own repo, no fork needed.
		return upstream, nil
	}
	fork := &Resource{Owner: login, Repo: upstream.Repo}

	if existing, _, err := c.gh.Repositories.Get(ctx, fork.Owner, fork.Repo); err == nil {
		if existing.GetFork() && existing.GetParent().GetFullName() == upstream.FullName() {
			return fork, nil
		}
		return nil, fmt.Errorf("%s exists but is not a fork of %s", fork.FullName(), upstream.FullName())
	}

	log.With("upstream", upstream.FullName()).Info("creating fork")
	if _, _, err := c.gh.Repositories.CreateFork(ctx, upstream.Owner, upstream.Repo, nil); err != nil {
		// CreateFork returns AcceptedError while GitHub forks async.
		var accepted *github.AcceptedError
		if !errors.As(err, &accepted) {
			return nil, fmt.Errorf("creating fork of %s: %w", upstream.FullName(), err)
		}
	}

	for {
		if _, _, err := c.gh.Repositories.Get(ctx, fork.Owner, fork.Repo); err == nil {
			return fork, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for fork %s: %w", fork.FullName(), ctx.Err())
		case <-time.After(forkPollInterval):
		}
	}
}

// RepoInfo is the repository metadata the orchestrator consumes.
type RepoInfo struct {
	DefaultBranch string
	// Language is GitHub's reported primary language, empty for
	// repositories GitHub has not classified.
	Language string
}

// Metadata returns the repository's default branch and primary language.
func (c *Client) Metadata(ctx context.Context, res *Resource) (*RepoInfo, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, res.Owner, res.Repo)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", res.FullName(), err)
	}
	return &RepoInfo{
		DefaultBranch: repo.GetDefaultBranch(),
		Language:      repo.GetLanguage(),
	}, nil
}
