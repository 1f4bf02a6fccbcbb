package framework

import (
	"strings"
	"time"
)

// FailureKind classifies why a case failed. The first failure recorded for a case wins.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureCheckout  FailureKind = "checkout"
	FailureLaunch    FailureKind = "launch"
	FailureProbe     FailureKind = "probe"
	FailureAssertion FailureKind = "assertion"
	FailurePanic     FailureKind = "panic"
)

type Results struct {
	Cases    []CaseResult
	Failures []CaseResult
}

type CaseResult struct {
	CaseID     CaseID
	Errors     []error
	Skipped    bool
	Kind       FailureKind
	FinalState string
	Duration   time.Duration
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Passed returns the number of cases that ran and did not fail.
func (r Results) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if !c.Skipped && c.Kind == FailureNone {
			n++
		}
	}
	return n
}

// Skipped returns the number of cases that were skipped.
func (r Results) Skipped() int {
	n := 0
	for _, c := range r.Cases {
		if c.Skipped {
			n++
		}
	}
	return n
}

type CaseID struct {
	Path []string
}

func (c CaseID) String() string {
	return strings.Join(c.Path, "/")
}

// Child returns the ID of a case nested under this one. The receiver's path is copied so
// that siblings never share a backing array.
func (c CaseID) Child(name string) CaseID {
	path := make([]string, 0, len(c.Path)+1)
	path = append(path, c.Path...)
	return CaseID{Path: append(path, name)}
}
