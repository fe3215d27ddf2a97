/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package testrunner detects a repository's test framework, runs its
// tests, and parses failures into a form agents can act on.
package testrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
)

// Framework identifies a detected test setup.
type Framework string

const (
	FrameworkGo      Framework = "go"
	FrameworkJest    Framework = "jest"
	FrameworkMocha   Framework = "mocha"
	FrameworkNPM     Framework = "npm"
	FrameworkPytest  Framework = "pytest"
	FrameworkMaven   Framework = "maven"
	FrameworkGradle  Framework = "gradle"
	FrameworkCargo   Framework = "cargo"
	FrameworkUnknown Framework = ""
)

// Command is the runnable test invocation for a repository.
type Command struct {
	Framework Framework
	Name      string
	Args      []string
}

func (c Command) String() string {
	out := c.Name
	for _, a := range c.Args {
		out += " " + a
	}
	return out
}

// Failure is one parsed test failure.
type Failure struct {
	// Test is the failing test's name when the framework reports one.
	Test string `json:"test,omitempty"`
	// File is the source file, repo-relative when available.
	File string `json:"file,omitempty"`
	// Line is the failing line, 0 when unknown.
	Line int `json:"line,omitempty"`
	// Message is the failure output.
	Message string `json:"message"`
}

// Result is the outcome of one test run.
type Result struct {
	Command  Command
	Passed   bool
	Output   string
	Failures []Failure
	Duration time.Duration
}

// ErrNoFramework means no manifest identified a test setup. Callers
// can treat an untestable repository as a soft condition.
var ErrNoFramework = errors.New("no recognized test framework")

// Detect inspects a repository root and picks its test command.
// Detection follows the manifests present, not the file extensions, so
// a polyglot repo runs the suite its build system defines.
func Detect(root string) (Command, error) {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(root, name))
		return err == nil
	}

	switch {
	case exists("go.mod"):
		return Command{Framework: FrameworkGo, Name: "go", Args: []string{"test", "./..."}}, nil
	case exists("package.json"):
		return detectNode(root)
	case exists("pyproject.toml") || exists("requirements.txt") || exists("setup.py") || exists("pytest.ini"):
		return detectPython(root)
	case exists("pom.xml"):
		return Command{Framework: FrameworkMaven, Name: "mvn", Args: []string{"test", "-B"}}, nil
	case exists("build.gradle") || exists("build.gradle.kts"):
		// The checked-in wrapper pins the Gradle version the build expects.
		if exists("gradlew") {
			return Command{Framework: FrameworkGradle, Name: "./gradlew", Args: []string{"test"}}, nil
		}
		return Command{Framework: FrameworkGradle, Name: "gradle", Args: []string{"test"}}, nil
	case exists("Cargo.toml"):
		return Command{Framework: FrameworkCargo, Name: "cargo", Args: []string{"test"}}, nil
	}
	return Command{}, ErrNoFramework
}

func detectNode(root string) (Command, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return Command{}, fmt.Errorf("reading package.json: %w", err)
	}
	framework := FrameworkNPM
	switch {
	case bytes.Contains(data, []byte(`"jest"`)):
		framework = FrameworkJest
	case bytes.Contains(data, []byte(`"mocha"`)):
		framework = FrameworkMocha
	}
	// Always run through the package's own script so local config and
	// wrappers apply.
	return Command{Framework: framework, Name: "npm", Args: []string{"test", "--silent"}}, nil
}

func detectPython(root string) (Command, error) {
	for _, marker := range []string{"pytest.ini", "conftest.py"} {
		if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
			return Command{Framework: FrameworkPytest, Name: "pytest", Args: []string{"-q"}}, nil
		}
	}
	if data, err := os.ReadFile(filepath.Join(root, "pyproject.toml")); err == nil && bytes.Contains(data, []byte("pytest")) {
		return Command{Framework: FrameworkPytest, Name: "pytest", Args: []string{"-q"}}, nil
	}
	if data, err := os.ReadFile(filepath.Join(root, "requirements.txt")); err == nil && bytes.Contains(data, []byte("pytest")) {
		return Command{Framework: FrameworkPytest, Name: "pytest", Args: []string{"-q"}}, nil
	}
	return Command{Framework: FrameworkPytest, Name: "python", Args: []string{"-m", "unittest", "discover", "-v"}}, nil
}

// Runner executes test commands with a per-run timeout.
type Runner struct {
	timeout time.Duration
}

// New builds a Runner. A zero timeout means 10 minutes.
func New(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Runner{timeout: timeout}
}

// Run detects and executes the repository's tests. A test failure is a
// Result with Passed=false, not an error; errors mean the run itself
// could not happen.
func (r *Runner) Run(ctx context.Context, root string) (*Result, error) {
	cmd, err := Detect(root)
	if err != nil {
		return nil, err
	}
	return r.RunCommand(ctx, root, cmd)
}

// RunCommand executes an explicit test command in root.
func (r *Runner) RunCommand(ctx context.Context, root string, cmd Command) (*Result, error) {
	log := clog.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.With("command", cmd.String(), "dir", root).Info("running tests")
	start := time.Now()

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = root
	output, runErr := execCmd.CombinedOutput()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("tests timed out after %s", r.timeout)
	}

	res := &Result{
		Command:  cmd,
		Output:   string(output),
		Duration: duration,
	}
	if runErr == nil {
		res.Passed = true
		log.With("duration", duration).Info("tests passed")
		return res, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		// The command never ran (binary missing, permission denied).
		return nil, fmt.Errorf("running %q: %w", cmd.String(), runErr)
	}

	res.Failures = ParseFailures(cmd.Framework, res.Output)
	log.With("failures", len(res.Failures), "duration", duration).Info("tests failed")
	return res, nil
}
