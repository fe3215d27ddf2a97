/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package ghrepo

import (
	"fmt"
	"regexp"
	"strings"
)

// Resource identifies a GitHub repository.
type Resource struct {
	Owner string
	Repo  string
}

var (
	httpsRE = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshRE   = regexp.MustCompile(`^git@github\.com:([^/]+)/([^/]+?)(?:\.git)?$`)
	shortRE = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9._-]+)$`)
)

// ParseURL resolves a repository reference in https, ssh, or
// "owner/repo" shorthand form.
func ParseURL(raw string) (*Resource, error) {
	raw = strings.TrimSpace(raw)
	for _, re := range []*regexp.Regexp{httpsRE, sshRE, shortRE} {
		if m := re.FindStringSubmatch(raw); m != nil {
			return &Resource{Owner: m[1], Repo: m[2]}, nil
		}
	}
	return nil, fmt.Errorf("unrecognized repository reference %q", raw)
}

// FullName returns "owner/repo".
func (r *Resource) FullName() string {
	return r.Owner + "/" + r.Repo
}

// CloneURL returns the https clone URL.
func (r *Resource) CloneURL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", r.Owner, r.Repo)
}

// URL returns the repository's web URL.
func (r *Resource) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Repo)
}

func (r *Resource) String() string { return r.FullName() }
