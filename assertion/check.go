package assertion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/launchdarkly/roll-forward-tests/capture"
	"github.com/launchdarkly/roll-forward-tests/probe"
)

// MaxHaystackBytes limits how much of the checked output is quoted in a failure message.
const MaxHaystackBytes = 4096

// Error describes a failed assertion, including the output it was checked against.
type Error struct {
	Assertion Assertion
	Command   string
	Reason    string
	Haystack  string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assertion failed: %s: %s", e.Assertion, e.Reason)
	if e.Command != "" {
		fmt.Fprintf(&b, "\ncommand: %s", e.Command)
	}
	if e.Haystack == "" {
		fmt.Fprintf(&b, "\n%s was empty", e.Assertion.stream())
	} else {
		fmt.Fprintf(&b, "\n%s was:\n%s", e.Assertion.stream(), capture.Truncate(e.Haystack, MaxHaystackBytes))
	}
	return b.String()
}

// Check evaluates a against result. It returns nil if the assertion holds and an *Error
// otherwise. A malformed assertion, such as an invalid pattern, is reported as a failure.
func Check(result probe.Result, a Assertion) error {
	haystack, ok := selectStream(result, a.stream())
	if !ok {
		return fail(result, a, "", fmt.Sprintf("unknown stream %q", a.Stream))
	}
	if a.Needle == "" {
		return fail(result, a, haystack, "needle must not be empty")
	}

	switch a.Predicate {
	case PredicateContains:
		if strings.Contains(haystack, a.Needle) {
			return nil
		}
		return fail(result, a, haystack, "not found")

	case PredicateNotContains:
		if !strings.Contains(haystack, a.Needle) {
			return nil
		}
		return fail(result, a, haystack, "found")

	case PredicateContainsNTimes:
		if a.Count < 1 {
			return fail(result, a, haystack, fmt.Sprintf("count must be at least 1, was %d", a.Count))
		}
		rx, err := regexp.Compile(a.Needle)
		if err != nil {
			return fail(result, a, haystack, fmt.Sprintf("invalid pattern: %s", err))
		}
		count := CountMatches(rx, haystack)
		if count >= a.Count {
			return nil
		}
		return fail(result, a, haystack, fmt.Sprintf("found %d matches", count))

	default:
		return fail(result, a, haystack, fmt.Sprintf("unknown predicate %q", a.Predicate))
	}
}

// CheckAll evaluates every assertion, without stopping at the first failure, and returns
// the failures in order.
func CheckAll(result probe.Result, assertions []Assertion) []error {
	var errs []error
	for _, a := range assertions {
		if err := Check(result, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CountMatches returns the number of non-overlapping matches of rx in s.
func CountMatches(rx *regexp.Regexp, s string) int {
	return len(rx.FindAllStringIndex(s, -1))
}

func selectStream(result probe.Result, stream Stream) (string, bool) {
	switch stream {
	case StreamStdout:
		return result.StdoutString(), true
	case StreamStderr:
		return result.StderrString(), true
	default:
		return "", false
	}
}

func fail(result probe.Result, a Assertion, haystack, reason string) error {
	return &Error{Assertion: a, Command: result.Command, Reason: reason, Haystack: haystack}
}
