/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package ghrepo

import "testing"

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Resource
		wantErr bool
	}{{
		name: "https",
		raw:  "https://github.com/octocat/hello-world",
		want: Resource{Owner: "octocat", Repo: "hello-world"},
	}, {
		name: "https with .git",
		raw:  "https://github.com/octocat/hello-world.git",
		want: Resource{Owner: "octocat", Repo: "hello-world"},
	}, {
		name: "https with trailing slash",
		raw:  "https://github.com/octocat/hello-world/",
		want: Resource{Owner: "octocat", Repo: "hello-world"},
	}, {
		name: "ssh",
		raw:  "git@github.com:octocat/hello-world.git",
		want: Resource{Owner: "octocat", Repo: "hello-world"},
	}, {
		name: "shorthand",
		raw:  "octocat/hello-world",
		want: Resource{Owner: "octocat", Repo: "hello-world"},
	}, {
		name: "shorthand with dots",
		raw:  "octocat/my.repo",
		want: Resource{Owner: "octocat", Repo: "my.repo"},
	}, {
		name: "surrounding whitespace",
		raw:  "  octocat/hello-world\n",
		want: Resource{Owner: "octocat", Repo: "hello-world"},
	}, {
		name:    "not github",
		raw:     "https://gitlab.com/octocat/hello-world",
		wantErr: true,
	}, {
		name:    "missing repo",
		raw:     "https://github.com/octocat",
		wantErr: true,
	}, {
		name:    "empty",
		raw:     "",
		wantErr: true,
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseURL(test.raw)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseURL(%q) = %v, wanted error", test.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL(%q) = %v", test.raw, err)
			}
			if *got != test.want {
				t.Errorf("ParseURL(%q) = %v, want %v", test.raw, *got, test.want)
			}
		})
	}
}

func TestResourceURLs(t *testing.T) {
	res := &Resource{Owner: "octocat", Repo: "hello-world"}
	if got, want := res.CloneURL(), "https://github.com/octocat/hello-world.git"; got != want {
		t.Errorf("CloneURL() = %q, want %q", got, want)
	}
	if got, want := res.URL(), "https://github.com/octocat/hello-world"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
	if got, want := res.FullName(), "octocat/hello-world"; got != want {
		t.Errorf("FullName() = %q, want %q", got, want)
	}
}
