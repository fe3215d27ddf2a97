/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ScoredFile is a file with its relevance to a change request.
type ScoredFile struct {
	Path  string
	Score int
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "do": {}, "for": {}, "from": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "should": {}, "so": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "when": {}, "will": {}, "with": {},
	"add": {}, "create": {}, "fix": {}, "implement": {}, "make": {},
	"update": {}, "change": {}, "remove": {}, "support": {},
}

var wordRE = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// keywords tokenizes a change description, dropping stop words and
// single letters.
func keywords(description string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range wordRE.FindAllString(strings.ToLower(description), -1) {
		if len(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// rankReadConcurrency bounds parallel file reads during ranking.
const rankReadConcurrency = 8

// maxContentHits caps the per-keyword content contribution so one
// repetitive file does not drown out everything else.
const maxContentHits = 10

// Rank scores the project's files against a change description and
// returns the top limit files, best first. Path hits weigh more than
// content hits.
func Rank(ctx context.Context, project *Project, description string, limit int) ([]ScoredFile, error) {
	words := keywords(description)
	if len(words) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var scored []ScoredFile

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(rankReadConcurrency)

	for _, file := range project.Files {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score := scorePath(file.Path, words)
			score += scoreContent(filepath.Join(project.Root, file.Path), words)
			if score > 0 {
				mu.Lock()
				scored = append(scored, ScoredFile{Path: file.Path, Score: score})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Path < scored[j].Path
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func scorePath(path string, words []string) int {
	lower := strings.ToLower(path)
	base := strings.TrimSuffix(filepath.Base(lower), filepath.Ext(lower))
	score := 0
	for _, w := range words {
		if base == w {
			score += 10
		} else if strings.Contains(base, w) {
			score += 5
		} else if strings.Contains(lower, w) {
			score += 3
		}
	}
	return score
}

func scoreContent(fullPath string, words []string) int {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return 0
	}
	content := strings.ToLower(string(data))
	score := 0
	for _, w := range words {
		hits := strings.Count(content, w)
		if hits > maxContentHits {
			hits = maxContentHits
		}
		score += hits
	}
	return score
}
