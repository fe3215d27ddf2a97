/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"

	"github.com/mechanic-dev/mechanic/ghrepo"
)

const cloneDirPrefix = "mechanic-clone-"

// upstreamRemote tracks the repository a fork was cut from, so leases
// can branch from a fresh upstream commit even when the fork is stale.
const upstreamRemote = "upstream"

// remoteURL resolves the git URL for a repository. Tests override it
// to point clones at local fixture repositories.
var remoteURL = func(res *ghrepo.Resource) string { return res.CloneURL() }

// Manager owns a pool of git clones leased out one task at a time.
// Clones are keyed by the fork they track and reset before reuse, so a
// failed task cannot leak state into the next one.
type Manager struct {
	tokenSource  oauth2.TokenSource
	identity     string
	cloneTimeout time.Duration

	mu        sync.Mutex
	available map[string][]*clone
}

// Option configures a Manager.
type Option func(*Manager)

// WithCloneTimeout bounds the network work of each Lease (clone,
// fetch, checkout). Zero keeps the default.
func WithCloneTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cloneTimeout = d
		}
	}
}

const defaultCloneTimeout = 5 * time.Minute

type clone struct {
	path string
	repo *git.Repository
}

// Lease is a clone prepared at a specific upstream commit. Callers
// must Return it when the task finishes.
type Lease struct {
	manager *Manager
	clone   *clone
	fork    *ghrepo.Resource

	sha string
}

// UpdateFunc receives the prepared working tree and returns the commit
// message for whatever it staged.
type UpdateFunc func(context.Context, *git.Worktree) (string, error)

// New constructs a Manager. The token source must allow cloning the
// upstream repository and pushing to the fork. Identity becomes the
// commit author.
func New(tokenSource oauth2.TokenSource, identity string, opts ...Option) (*Manager, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity cannot be empty")
	}
	m := &Manager{
		tokenSource:  tokenSource,
		identity:     identity,
		cloneTimeout: defaultCloneTimeout,
		available:    make(map[string][]*clone),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Lease hydrates a clone of fork, fetches ref from upstream, and checks
// it out. When fork and upstream are the same repository the clone has
// a single origin remote.
func (m *Manager) Lease(ctx context.Context, fork, upstream *ghrepo.Resource, ref string) (*Lease, error) {
	switch {
	case fork == nil || upstream == nil:
		return nil, errors.New("fork and upstream cannot be nil")
	case ref == "":
		return nil, errors.New("ref cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cloneTimeout)
	defer cancel()

	cl, err := m.acquireClone(ctx, fork, upstream)
	if err != nil {
		return nil, err
	}

	sha, err := m.prepareClone(ctx, cl, fork, upstream, ref)
	if err != nil {
		clog.FromContext(ctx).Warnf("discarding clone after prepare failure: %v", err)
		m.discardClone(cl)
		return nil, err
	}

	return &Lease{manager: m, clone: cl, fork: fork, sha: sha}, nil
}

// acquireClone takes from the front of the pool while releaseClone
// appends to the back, so a clone that just misbehaved is not
// immediately handed out again.
func (m *Manager) acquireClone(ctx context.Context, fork, upstream *ghrepo.Resource) (*clone, error) {
	key := fork.FullName()
	m.mu.Lock()
	if pool := m.available[key]; len(pool) > 0 {
		cl := pool[0]
		m.available[key] = pool[1:]
		m.mu.Unlock()
		return cl, nil
	}
	m.mu.Unlock()

	return m.createClone(ctx, fork, upstream)
}

func (m *Manager) createClone(ctx context.Context, fork, upstream *ghrepo.Resource) (*clone, error) {
	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	remote := remoteURL(fork)
	clog.FromContext(ctx).Infof("cloning %s into %s", remote, dir)

	auth, err := m.auth()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("getting token: %w", err)
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  remote,
		Auth: auth,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning repository: %w", err)
	}

	if fork.FullName() != upstream.FullName() {
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: upstreamRemote,
			URLs: []string{remoteURL(upstream)},
		}); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("adding upstream remote: %w", err)
		}
	}

	return &clone{path: dir, repo: repo}, nil
}

func (m *Manager) prepareClone(ctx context.Context, cl *clone, fork, upstream *ghrepo.Resource, ref string) (string, error) {
	repo := cl.repo
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("resetting worktree: %w", err)
	}
	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return "", fmt.Errorf("cleaning worktree: %w", err)
	}

	auth, err := m.auth()
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}

	source := upstreamRemote
	if fork.FullName() == upstream.FullName() {
		source = "origin"
	}

	clog.FromContext(ctx).Infof("fetching %s from %s", ref, source)
	if err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: source,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", ref, source, ref)),
		},
		Auth: auth,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("fetching ref %s: %w", ref, err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(source, ref), true)
	if err != nil {
		return "", fmt.Errorf("resolving %s/%s: %w", source, ref, err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Force: true}); err != nil {
		return "", fmt.Errorf("checking out %s: %w", remoteRef.Hash(), err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("getting worktree status: %w", err)
	}
	if !status.IsClean() {
		return "", errors.New("worktree is not clean after checkout")
	}

	return remoteRef.Hash().String(), nil
}

func (m *Manager) resetClone(cl *clone) error {
	worktree, err := cl.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting worktree: %w", err)
	}
	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning worktree: %w", err)
	}
	return nil
}

func (m *Manager) releaseClone(key string, cl *clone) {
	m.mu.Lock()
	m.available[key] = append(m.available[key], cl)
	m.mu.Unlock()
}

func (m *Manager) discardClone(cl *clone) {
	os.RemoveAll(cl.path)
}

func (m *Manager) auth() (*githttp.BasicAuth, error) {
	token, err := m.tokenSource.Token()
	if err != nil {
		return nil, err
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

// MakeAndPushChanges creates branchName at the leased SHA, hands the
// working tree to updateFn, commits whatever it staged, and force
// pushes the branch to the fork.
func (l *Lease) MakeAndPushChanges(ctx context.Context, branchName string, updateFn UpdateFunc) error {
	if updateFn == nil {
		return errors.New("update function cannot be nil")
	}

	ref, err := l.createFreshBranch(branchName)
	if err != nil {
		return fmt.Errorf("creating fresh branch: %w", err)
	}

	worktree, err := l.clone.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	commitMessage, err := updateFn(ctx, worktree)
	if err != nil {
		return fmt.Errorf("applying updates: %w", err)
	}
	if commitMessage == "" {
		return errors.New("commit message cannot be empty")
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("getting worktree status: %w", err)
	}
	if status.IsClean() {
		return errors.New("update function staged no changes")
	}

	if err := l.manager.commitChanges(l.clone.repo, commitMessage); err != nil {
		return fmt.Errorf("committing changes: %w", err)
	}
	if err := l.manager.forcePushBranch(ctx, l.clone.repo, ref); err != nil {
		return fmt.Errorf("force pushing branch: %w", err)
	}
	return nil
}

func (l *Lease) createFreshBranch(branchName string) (plumbing.ReferenceName, error) {
	if branchName == "" {
		return "", errors.New("branch name cannot be empty")
	}

	refName := plumbing.NewBranchReferenceName(branchName)
	branchRef := plumbing.NewHashReference(refName, plumbing.NewHash(l.sha))
	if err := l.clone.repo.Storer.SetReference(branchRef); err != nil {
		return "", fmt.Errorf("setting branch reference: %w", err)
	}

	worktree, err := l.clone.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName, Force: true}); err != nil {
		return "", fmt.Errorf("checking out branch: %w", err)
	}
	return refName, nil
}

func (m *Manager) commitChanges(repo *git.Repository, commitMessage string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	email := m.identity
	if !strings.Contains(email, "@") {
		email += "@users.noreply.github.com"
	}

	if _, err := worktree.Commit(commitMessage, &git.CommitOptions{
		Author: &object.Signature{
			Name:  m.identity,
			Email: email,
			When:  time.Now(),
		},
	}); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (m *Manager) forcePushBranch(ctx context.Context, repo *git.Repository, ref plumbing.ReferenceName) error {
	log := clog.FromContext(ctx)

	auth, err := m.auth()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref.String(), ref.String()))
	log.Infof("force pushing %s", refSpec)

	if err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       auth,
		Force:      true,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.Info("branch already up to date")
			return nil
		}
		return fmt.Errorf("force pushing: %w", err)
	}
	return nil
}

// Repo returns the lease's underlying git repository.
func (l *Lease) Repo() *git.Repository { return l.clone.repo }

// WorkingTree returns the absolute path of the working directory.
func (l *Lease) WorkingTree() string { return l.clone.path }

// SHA returns the commit the lease is based on.
func (l *Lease) SHA() string { return l.sha }

// ID identifies the clone by its working directory name.
func (l *Lease) ID() string { return filepath.Base(l.clone.path) }

// Return resets the working tree and releases the clone back to the
// pool. The lease is invalid afterwards.
func (l *Lease) Return(ctx context.Context) error {
	if err := l.manager.resetClone(l.clone); err != nil {
		l.manager.discardClone(l.clone)
		l.clone = nil
		return err
	}
	l.manager.releaseClone(l.fork.FullName(), l.clone)
	l.clone = nil
	l.manager = nil
	l.sha = ""
	return nil
}
