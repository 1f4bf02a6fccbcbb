package process

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExitedDuringStartup means the server process exited before its startup grace period
// ended, which usually means the command or its working directory is wrong.
var ErrExitedDuringStartup = errors.New("server exited during startup grace period")

// ErrNotListening means WaitForPort was set and the port never accepted a connection
// within the startup grace period.
var ErrNotListening = errors.New("server did not start listening")

// LaunchError is returned by Start when the server could not be brought up.
type LaunchError struct {
	Command string
	Dir     string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *LaunchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "could not launch server %q in %q: %s", e.Command, e.Dir, e.Err)
	b.WriteString(describeOutput(e.Stdout, e.Stderr))
	return b.String()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func describeOutput(stdout, stderr string) string {
	var b strings.Builder
	if stdout != "" {
		fmt.Fprintf(&b, "\nserver stdout:\n%s", stdout)
	}
	if stderr != "" {
		fmt.Fprintf(&b, "\nserver stderr:\n%s", stderr)
	}
	return b.String()
}
