// Package assertion checks the captured output of a probe against substring and
// occurrence-count expectations.
package assertion

import (
	"fmt"
	"strconv"
)

// Predicate is the kind of check an Assertion performs.
type Predicate string

const (
	// PredicateContains passes if the stream contains Needle as a substring.
	PredicateContains Predicate = "contains"

	// PredicateContainsNTimes treats Needle as a regular expression and passes if it has
	// at least Count non-overlapping matches.
	PredicateContainsNTimes Predicate = "contains_n_times"

	// PredicateNotContains passes if Needle does not occur in the stream.
	PredicateNotContains Predicate = "not_contains"
)

// Stream selects which captured output an Assertion is evaluated against.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Assertion is one expectation about a probe result.
type Assertion struct {
	Predicate Predicate `json:"predicate"`
	Stream    Stream    `json:"stream,omitempty"`
	Needle    string    `json:"needle"`
	Count     int       `json:"count,omitempty"`
}

func Contains(needle string) Assertion {
	return Assertion{Predicate: PredicateContains, Stream: StreamStdout, Needle: needle}
}

func ContainsNTimes(pattern string, n int) Assertion {
	return Assertion{Predicate: PredicateContainsNTimes, Stream: StreamStdout, Needle: pattern, Count: n}
}

func NotContains(needle string) Assertion {
	return Assertion{Predicate: PredicateNotContains, Stream: StreamStdout, Needle: needle}
}

// OnStderr returns a copy of the assertion that checks stderr instead of stdout.
func (a Assertion) OnStderr() Assertion {
	a.Stream = StreamStderr
	return a
}

func (a Assertion) stream() Stream {
	if a.Stream == "" {
		return StreamStdout
	}
	return a.Stream
}

func (a Assertion) String() string {
	switch a.Predicate {
	case PredicateContains:
		return fmt.Sprintf("%s contains %s", a.stream(), strconv.Quote(a.Needle))
	case PredicateContainsNTimes:
		return fmt.Sprintf("%s matches /%s/ at least %d times", a.stream(), a.Needle, a.Count)
	case PredicateNotContains:
		return fmt.Sprintf("%s does not contain %s", a.stream(), strconv.Quote(a.Needle))
	default:
		return fmt.Sprintf("%s %s %s", a.stream(), a.Predicate, strconv.Quote(a.Needle))
	}
}
