/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

package testrunner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseGoFailures(t *testing.T) {
	output := `=== RUN   TestAdd
--- FAIL: TestAdd (0.00s)
    math_test.go:17: Add(2, 2) = 5, want 4
=== RUN   TestSub
--- PASS: TestSub (0.00s)
--- FAIL: TestMul (0.01s)
    math_test.go:31: Mul(3, 3) = 6, want 9
FAIL
exit status 1
`
	got := ParseFailures(FrameworkGo, output)
	want := []Failure{{
		Test:    "TestAdd",
		File:    "math_test.go",
		Line:    17,
		Message: "Add(2, 2) = 5, want 4",
	}, {
		Test:    "TestMul",
		File:    "math_test.go",
		Line:    31,
		Message: "Mul(3, 3) = 6, want 9",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFailures mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePytestFailures(t *testing.T) {
	output := `tests/test_auth.py:42: AssertionError
FAILED tests/test_auth.py::test_login - AssertionError: expected 200
FAILED tests/test_auth.py::test_logout
1 failed
`
	got := ParseFailures(FrameworkPytest, output)
	if len(got) != 2 {
		t.Fatalf("got %d failures, want 2: %+v", len(got), got)
	}
	if got[0].Test != "test_login" || got[0].File != "tests/test_auth.py" {
		t.Errorf("first failure = %+v", got[0])
	}
	if got[0].Message != "AssertionError: expected 200" {
		t.Errorf("first message = %q", got[0].Message)
	}
	if got[1].Test != "test_logout" {
		t.Errorf("second failure = %+v", got[1])
	}
}

func TestParseJestFailures(t *testing.T) {
	output := `  ✕ renders the header (12 ms)
  ✓ renders the footer (3 ms)
  ● renders the header
`
	got := ParseFailures(FrameworkJest, output)
	if len(got) != 1 {
		t.Fatalf("got %d failures, want 1 (deduplicated): %+v", len(got), got)
	}
	if got[0].Test != "renders the header" {
		t.Errorf("failure = %+v", got[0])
	}
}

func TestParseMochaFailures(t *testing.T) {
	output := `  2 passing (20ms)
  1 failing

  1) auth login rejects bad passwords:
     AssertionError: expected 401
`
	got := ParseFailures(FrameworkMocha, output)
	if len(got) != 1 || got[0].Test != "auth login rejects bad passwords" {
		t.Errorf("ParseFailures = %+v", got)
	}
}

func TestParseMavenFailures(t *testing.T) {
	output := `[ERROR] testLogin(com.example.AuthTest)  Time elapsed: 0.01 s  <<< FAILURE!
`
	got := ParseFailures(FrameworkMaven, output)
	if len(got) != 1 || got[0].Test != "com.example.AuthTest.testLogin" {
		t.Errorf("ParseFailures = %+v", got)
	}
}

func TestParseGradleFailures(t *testing.T) {
	output := `AuthTest > testLogin FAILED
    org.junit.ComparisonFailure at AuthTest.java:25
`
	got := ParseFailures(FrameworkGradle, output)
	if len(got) != 1 || got[0].Test != "AuthTest.testLogin" {
		t.Errorf("ParseFailures = %+v", got)
	}
}

func TestParseCargoFailures(t *testing.T) {
	output := `test tests::test_add ... FAILED
test tests::test_sub ... ok
`
	got := ParseFailures(FrameworkCargo, output)
	if len(got) != 1 || got[0].Test != "tests::test_add" {
		t.Errorf("ParseFailures = %+v", got)
	}
}

func TestParseUnrecognizedOutput(t *testing.T) {
	got := ParseFailures(FrameworkGo, "something exploded\nno recognizable format\n")
	if len(got) != 1 {
		t.Fatalf("got %d failures, want 1 fallback", len(got))
	}
	if got[0].Message == "" {
		t.Error("fallback failure has no message")
	}
}

func TestTail(t *testing.T) {
	if got := tail("a\nb\nc\nd\n", 2); got != "c\nd" {
		t.Errorf("tail() = %q, want %q", got, "c\nd")
	}
	if got := tail("a\nb", 5); got != "a\nb" {
		t.Errorf("tail() = %q, want %q", got, "a\nb")
	}
}
