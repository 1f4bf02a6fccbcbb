package probe

import (
	"fmt"
	"strings"
)

// LaunchError means the probe command could not be started at all: the shell could not be
// spawned, the working directory is missing, or the shell reported that the command does
// not exist or is not executable.
type LaunchError struct {
	Command string
	Dir     string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Dir != "" {
		return fmt.Sprintf("could not run %q in %q: %s", e.Command, e.Dir, e.Err)
	}
	return fmt.Sprintf("could not run %q: %s", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExecutionError means the probe command ran but exited with a non-zero status. Stderr is
// carried verbatim.
type ExecutionError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %q exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", e.Stderr)
	} else {
		b.WriteString(" (no stderr output)")
	}
	return b.String()
}
