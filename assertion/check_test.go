package assertion

import (
	"regexp"
	"strings"
	"testing"

	"github.com/launchdarkly/roll-forward-tests/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultWithStdout(s string) probe.Result {
	return probe.Result{Command: "curl -s localhost:8000", Stdout: []byte(s)}
}

func TestContains(t *testing.T) {
	r := resultWithStdout("HTTP/1.1 200 OK\r\n\r\nHello World")

	assert.NoError(t, Check(r, Contains("Hello World")))

	err := Check(r, Contains("hello world"))
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "not found", ae.Reason)
	assert.Contains(t, err.Error(), "Hello World")
	assert.Contains(t, err.Error(), "curl -s localhost:8000")
}

func TestNotContains(t *testing.T) {
	r := resultWithStdout("Hello World")

	assert.NoError(t, Check(r, NotContains("500 Internal Server Error")))
	assert.Error(t, Check(r, NotContains("World")))
}

func TestContainsNTimesIsAtLeast(t *testing.T) {
	three := resultWithStdout("Hello World\nHello World\nHello World\n")

	assert.NoError(t, Check(three, ContainsNTimes("Hello World", 2)))
	assert.NoError(t, Check(three, ContainsNTimes("Hello World", 3)))

	err := Check(three, ContainsNTimes("Hello World", 4))
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "found 3 matches", ae.Reason)
}

func TestContainsNTimesUsesRegularExpressions(t *testing.T) {
	r := resultWithStdout("HTTP/1.1 200 OK\nHTTP/1.1 404 Not Found\nHTTP/1.1 200 OK\n")

	assert.NoError(t, Check(r, ContainsNTimes(`HTTP/1\.1 \d{3}`, 3)))
	assert.NoError(t, Check(r, ContainsNTimes(`200 OK`, 2)))
	assert.Error(t, Check(r, ContainsNTimes(`200 OK`, 3)))
}

func TestMatchesDoNotOverlap(t *testing.T) {
	assert.Equal(t, 2, CountMatches(regexp.MustCompile("aa"), "aaaa"))
	assert.Equal(t, 1, CountMatches(regexp.MustCompile("aa"), "aaa"))
	assert.Equal(t, 0, CountMatches(regexp.MustCompile("b"), "aaa"))
}

func TestInvalidPatternIsDiagnosticNotPanic(t *testing.T) {
	r := resultWithStdout("anything")

	var err error
	assert.NotPanics(t, func() { err = Check(r, ContainsNTimes("(unclosed", 1)) })
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Reason, "invalid pattern")
}

func TestMalformedAssertionsFail(t *testing.T) {
	r := resultWithStdout("anything")

	assert.Error(t, Check(r, Contains("")))
	assert.Error(t, Check(r, ContainsNTimes("any", 0)))
	assert.Error(t, Check(r, Assertion{Predicate: "equals", Needle: "anything"}))
	assert.Error(t, Check(r, Assertion{Predicate: PredicateContains, Stream: "stdin", Needle: "x"}))
}

func TestStderrStream(t *testing.T) {
	r := probe.Result{Stdout: []byte("body"), Stderr: []byte("* Connected to localhost")}

	assert.NoError(t, Check(r, Contains("Connected").OnStderr()))
	assert.Error(t, Check(r, Contains("Connected")))
	assert.NoError(t, Check(r, Assertion{Predicate: PredicateContains, Needle: "body"}))
}

func TestCheckAllReportsEveryFailure(t *testing.T) {
	r := resultWithStdout("Hello World")

	errs := CheckAll(r, []Assertion{
		Contains("Goodbye"),
		Contains("Hello"),
		ContainsNTimes("World", 2),
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "Goodbye")
	assert.Contains(t, errs[1].Error(), "at least 2 times")

	assert.Len(t, CheckAll(r, []Assertion{Contains("Hello"), Contains("World")}), 0)
}

func TestFailureMessageTruncatesLargeOutput(t *testing.T) {
	big := strings.Repeat("x", MaxHaystackBytes+100)

	err := Check(resultWithStdout(big), Contains("needle"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "100 more bytes truncated")
	assert.Less(t, len(err.Error()), MaxHaystackBytes+300)
}

func TestFailureMessageForEmptyOutput(t *testing.T) {
	err := Check(resultWithStdout(""), Contains("Hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout was empty")
}

func TestAssertionString(t *testing.T) {
	assert.Equal(t, `stdout contains "Hello"`, Contains("Hello").String())
	assert.Equal(t, `stderr does not contain "x"`, NotContains("x").OnStderr().String())
	assert.Equal(t, `stdout matches /Hi/ at least 3 times`, ContainsNTimes("Hi", 3).String())
}
