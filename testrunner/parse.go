/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package testrunner

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// --- FAIL: TestName (0.00s)
	goFailRE = regexp.MustCompile(`^\s*--- FAIL: (\S+)`)
	//     file_test.go:42: message
	goLocRE = regexp.MustCompile(`^\s+(\S+_test\.go):(\d+): (.*)`)

	// ✕ test name (5 ms) or ● test name
	jestFailRE = regexp.MustCompile(`^\s*[✕●] (.+?)(?: \(\d+ m?s\))?$`)
	//   1) suite test name:
	mochaFailRE = regexp.MustCompile(`^\s*\d+\) (.+?):?$`)

	// FAILED tests/test_x.py::test_name - AssertionError: ...
	pytestFailRE = regexp.MustCompile(`^FAILED (\S+?)::(\S+?)(?: - (.*))?$`)
	// file.py:12: AssertionError
	pytestLocRE = regexp.MustCompile(`^(\S+\.py):(\d+): (.+)$`)

	// [ERROR] testMethod(com.example.ClassTest)  Time elapsed: ...
	mavenFailRE = regexp.MustCompile(`^\[ERROR\] +(\w+)\(([\w.]+)\)`)
	// ClassTest > testMethod FAILED
	gradleFailRE = regexp.MustCompile(`^(\S+) > (\S+) FAILED$`)

	// ---- test_name stdout ----  /  test tests::test_name ... FAILED
	cargoFailRE = regexp.MustCompile(`^test (\S+) \.\.\. FAILED$`)
)

// ParseFailures extracts structured failures from test output. Parsing
// is best-effort: output that matches nothing yields a single failure
// carrying the tail of the log, so the fix agent always has something
// to work from.
func ParseFailures(framework Framework, output string) []Failure {
	var failures []Failure
	switch framework {
	case FrameworkGo:
		failures = parseGo(output)
	case FrameworkJest, FrameworkMocha, FrameworkNPM:
		failures = parseJS(output)
	case FrameworkPytest:
		failures = parsePytest(output)
	case FrameworkMaven:
		failures = parseLineMatches(output, mavenFailRE, func(m []string) Failure {
			return Failure{Test: m[2] + "." + m[1]}
		})
	case FrameworkGradle:
		failures = parseLineMatches(output, gradleFailRE, func(m []string) Failure {
			return Failure{Test: m[1] + "." + m[2]}
		})
	case FrameworkCargo:
		failures = parseLineMatches(output, cargoFailRE, func(m []string) Failure {
			return Failure{Test: m[1]}
		})
	}

	if len(failures) == 0 {
		failures = []Failure{{Message: tail(output, 30)}}
	}
	return failures
}

func parseGo(output string) []Failure {
	var failures []Failure
	var current *Failure
	for _, line := range strings.Split(output, "\n") {
		if m := goFailRE.FindStringSubmatch(line); m != nil {
			failures = append(failures, Failure{Test: m[1]})
			current = &failures[len(failures)-1]
			continue
		}
		if current == nil {
			continue
		}
		if m := goLocRE.FindStringSubmatch(line); m != nil {
			current.File = m[1]
			current.Line = atoi(m[2])
			current.Message = m[3]
			current = nil
		}
	}
	return failures
}

func parseJS(output string) []Failure {
	var failures []Failure
	seen := make(map[string]struct{})
	for _, line := range strings.Split(output, "\n") {
		var name string
		if m := jestFailRE.FindStringSubmatch(line); m != nil {
			name = strings.TrimSpace(m[1])
		} else if m := mochaFailRE.FindStringSubmatch(line); m != nil {
			name = strings.TrimSpace(m[1])
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		failures = append(failures, Failure{Test: name})
	}
	return failures
}

func parsePytest(output string) []Failure {
	var failures []Failure
	for _, line := range strings.Split(output, "\n") {
		if m := pytestFailRE.FindStringSubmatch(line); m != nil {
			failures = append(failures, Failure{File: m[1], Test: m[2], Message: m[3]})
			continue
		}
		if m := pytestLocRE.FindStringSubmatch(line); m != nil {
			// Attach the first location line to a failure missing one.
			for i := range failures {
				if failures[i].Line == 0 && failures[i].File == m[1] {
					failures[i].Line = atoi(m[2])
					if failures[i].Message == "" {
						failures[i].Message = m[3]
					}
					break
				}
			}
		}
	}
	return failures
}

func parseLineMatches(output string, re *regexp.Regexp, build func([]string) Failure) []Failure {
	var failures []Failure
	for _, line := range strings.Split(output, "\n") {
		if m := re.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			failures = append(failures, build(m))
		}
	}
	return failures
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
