// Package probe runs client commands against a server under test and captures what they
// print.
package probe

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/alessio/shellescape"

	"github.com/launchdarkly/roll-forward-tests/capture"
	"github.com/launchdarkly/roll-forward-tests/framework"
)

const (
	DefaultShell = "/bin/sh"

	// exit statuses the shell uses for "not executable" and "not found"
	shellCannotExecute = 126
	shellNotFound      = 127

	waitDelay = 2 * time.Second
)

type RunnerOptions struct {
	Logger framework.Logger
	Shell  string

	// Verbose makes the runner log captured output for successful commands too.
	Verbose bool

	OutputLimitBytes int
}

// Runner executes probe commands through the shell. Probe commands have no time limit of
// their own; the server's hard deadline bounds how long a well-behaved client can wait.
type Runner struct {
	logger      framework.Logger
	shell       string
	verbose     bool
	outputLimit int
}

func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		logger:      opts.Logger,
		shell:       opts.Shell,
		verbose:     opts.Verbose,
		outputLimit: opts.OutputLimitBytes,
	}
	if r.logger == nil {
		r.logger = framework.NullLogger()
	}
	if r.shell == "" {
		r.shell = DefaultShell
	}
	return r
}

// Run executes command in the harness's working directory.
func (r *Runner) Run(ctx context.Context, command string) (Result, error) {
	return r.RunIn(ctx, "", command)
}

// RunIn executes command with dir as its working directory. A non-zero exit status is
// returned as *ExecutionError together with the captured Result.
func (r *Runner) RunIn(ctx context.Context, dir, command string) (Result, error) {
	result := Result{Command: command, Dir: dir}
	if strings.TrimSpace(command) == "" {
		return result, &LaunchError{Command: command, Dir: dir, Err: errors.New("command is empty")}
	}

	stdout := capture.NewBuffer(r.outputLimit)
	stderr := capture.NewBuffer(r.outputLimit)
	cmd := exec.CommandContext(ctx, r.shell, "-c", command) //nolint:gosec
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return result, &LaunchError{Command: command, Dir: dir, Err: err}
	}
	err := cmd.Wait()
	result.Duration = time.Since(started)
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	result.Truncated = stdout.Truncated() || stderr.Truncated()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, &LaunchError{Command: command, Dir: dir, Err: err}
		}
		result.ExitCode = exitErr.ExitCode()
		execErr := &ExecutionError{
			Command:  command,
			ExitCode: result.ExitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
		r.logger.Printf("Command failed with exit status %d: %s\nstderr:\n%s", result.ExitCode, command, execErr.Stderr)
		if result.ExitCode == shellNotFound || result.ExitCode == shellCannotExecute {
			return result, &LaunchError{Command: command, Dir: dir, Err: execErr}
		}
		return result, execErr
	}

	if r.verbose {
		r.logger.Printf("Command succeeded in %s: %s\nstdout:\n%s\nstderr:\n%s",
			result.Duration.Round(time.Millisecond), command, stdout.String(), stderr.String())
	}
	return result, nil
}

// Command builds a shell command line from an executable and its arguments, quoting each
// argument so it reaches the program unchanged.
func Command(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellescape.Quote(name))
	for _, a := range args {
		parts = append(parts, shellescape.Quote(a))
	}
	return strings.Join(parts, " ")
}
