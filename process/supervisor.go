package process

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/launchdarkly/roll-forward-tests/capture"
	"github.com/launchdarkly/roll-forward-tests/framework"
)

const (
	DefaultShell        = "/bin/sh"
	DefaultHardDeadline = 5 * time.Second
	DefaultStopTimeout  = 2 * time.Second
	DefaultHost         = "localhost"

	portPollInterval = 50 * time.Millisecond
	portDialTimeout  = 200 * time.Millisecond
)

// ServerSpec describes how to launch one server under test. It must not be changed once a
// case has started.
type ServerSpec struct {
	// Command is run with "/bin/sh -c", so it may contain arguments and shell syntax.
	Command string

	// Dir is the working directory of the server process. Empty means the harness's own.
	Dir string

	// Host and Port are where the server is expected to listen. Port is only required
	// when WaitForPort is set.
	Host string
	Port int

	// StartupGrace is how long Start waits after spawning before declaring the server up.
	StartupGrace time.Duration

	// HardDeadline is the maximum lifetime of the process, measured from spawn. Zero means
	// DefaultHardDeadline.
	HardDeadline time.Duration

	// WaitForPort makes Start return as soon as the port accepts a connection, instead of
	// always sleeping for the whole StartupGrace. StartupGrace remains the upper bound.
	WaitForPort bool
}

// Address returns the host:port pair for the server.
func (s ServerSpec) Address() string {
	host := s.Host
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// ProcessSignaler delivers SIGKILL to a process group.
type ProcessSignaler interface {
	KillGroup(pgid int) error
}

type syscallSignaler struct{}

func (syscallSignaler) KillGroup(pgid int) error {
	err := syscall.Kill(-pgid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Options configures a Supervisor. Zero values select defaults.
type Options struct {
	Logger           framework.Logger
	Shell            string
	StopTimeout      time.Duration
	OutputLimitBytes int

	// OnKill is called after SIGKILL has been delivered, with the reason.
	OnKill func(reason KillReason)

	Signaler ProcessSignaler
}

// Supervisor launches server processes and guarantees that each one is killed and reaped.
// It is the only component that signals the processes it starts.
type Supervisor struct {
	logger      framework.Logger
	shell       string
	stopTimeout time.Duration
	outputLimit int
	onKill      func(KillReason)
	signaler    ProcessSignaler
}

func NewSupervisor(opts Options) *Supervisor {
	s := &Supervisor{
		logger:      opts.Logger,
		shell:       opts.Shell,
		stopTimeout: opts.StopTimeout,
		outputLimit: opts.OutputLimitBytes,
		onKill:      opts.OnKill,
		signaler:    opts.Signaler,
	}
	if s.logger == nil {
		s.logger = framework.NullLogger()
	}
	if s.shell == "" {
		s.shell = DefaultShell
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = DefaultStopTimeout
	}
	if s.outputLimit <= 0 {
		s.outputLimit = capture.DefaultLimitBytes
	}
	if s.signaler == nil {
		s.signaler = syscallSignaler{}
	}
	return s
}

// Process is a server started by a Supervisor.
type Process struct {
	owner     *Supervisor
	spec      ServerSpec
	pid       int
	cmd       *exec.Cmd
	stdout    *capture.Buffer
	stderr    *capture.Buffer
	deadline  *time.Timer
	reaped    chan struct{}
	startedAt time.Time

	lock       sync.Mutex
	state      State
	killReason KillReason
	waitErr    error
	exitCode   int
}

// Start spawns the server described by spec, arms its deadline watcher and waits out the
// startup grace period. If the process cannot be spawned, or exits before the grace
// period ends, Start returns a *LaunchError and nothing is left running.
func (s *Supervisor) Start(ctx context.Context, spec ServerSpec) (*Process, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, &LaunchError{Dir: spec.Dir, Err: errors.New("server command is empty")}
	}
	if spec.HardDeadline <= 0 {
		spec.HardDeadline = DefaultHardDeadline
	}
	if spec.StartupGrace < 0 {
		spec.StartupGrace = 0
	}

	cmd := exec.Command(s.shell, "-c", spec.Command) //nolint:gosec
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// A grandchild that left the process group can hold the output pipes open; Wait gives
	// up on them after WaitDelay, which Stop's bound allows for.
	cmd.WaitDelay = s.stopTimeout
	p := &Process{
		owner:  s,
		spec:   spec,
		cmd:    cmd,
		stdout: capture.NewBuffer(s.outputLimit),
		stderr: capture.NewBuffer(s.outputLimit),
		reaped: make(chan struct{}),
		state:  StateStarting,
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Dir: spec.Dir, Err: err}
	}
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.deadline = time.AfterFunc(spec.HardDeadline, func() { p.kill(KillDeadline) })
	go p.reap()

	s.logger.Printf("Started server (pid %d, deadline %s) in %q: %s", p.pid, spec.HardDeadline, spec.Dir, spec.Command)

	if err := p.awaitStartup(ctx); err != nil {
		_ = s.Stop(p)
		var le *LaunchError
		if errors.As(err, &le) {
			le.Stdout, le.Stderr = p.Stdout(), p.Stderr()
		}
		return nil, err
	}

	p.lock.Lock()
	if p.state == StateStarting {
		p.state = StateRunning
	}
	p.lock.Unlock()
	return p, nil
}

func (p *Process) awaitStartup(ctx context.Context) error {
	grace := time.NewTimer(p.spec.StartupGrace)
	defer grace.Stop()

	var poll <-chan time.Time
	if p.spec.WaitForPort {
		ticker := time.NewTicker(portPollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	fail := func(err error) error {
		return &LaunchError{Command: p.spec.Command, Dir: p.spec.Dir, Err: err}
	}

	for {
		select {
		case <-p.reaped:
			return fail(fmt.Errorf("%w (%s)", ErrExitedDuringStartup, p.exitDescription()))
		case <-ctx.Done():
			return fail(ctx.Err())
		case <-grace.C:
			if p.spec.WaitForPort && !dialable(ctx, p.spec.Address()) {
				return fail(fmt.Errorf("%w on %s within %s", ErrNotListening, p.spec.Address(), p.spec.StartupGrace))
			}
			return nil
		case <-poll:
			if dialable(ctx, p.spec.Address()) {
				return nil
			}
		}
	}
}

func dialable(ctx context.Context, address string) bool {
	dialer := net.Dialer{Timeout: portDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (p *Process) reap() {
	err := p.cmd.Wait()

	p.lock.Lock()
	p.waitErr = err
	p.exitCode = extractExitCode(err)
	p.state = StateReaped
	reason := p.killReason
	p.lock.Unlock()

	p.deadline.Stop()
	close(p.reaped)

	if reason == KillNone {
		p.owner.logger.Printf("Server (pid %d) exited on its own after %s: %s",
			p.pid, time.Since(p.startedAt).Round(time.Millisecond), p.exitDescription())
	}
}

// kill sends SIGKILL to the process group unless the process has already been signalled
// or reaped. The lock is held while signalling so the reaper cannot mark the process
// reaped in between.
func (p *Process) kill(reason KillReason) {
	p.lock.Lock()
	if p.state == StateKilled || p.state == StateReaped {
		p.lock.Unlock()
		return
	}
	p.state = StateKilled
	p.killReason = reason
	err := p.owner.signaler.KillGroup(p.pid)
	p.lock.Unlock()

	if err != nil {
		p.owner.logger.Printf("Failed to kill server (pid %d): %s", p.pid, err)
		return
	}
	if reason == KillDeadline {
		p.owner.logger.Printf("Server (pid %d) exceeded its hard deadline of %s; killed", p.pid, p.spec.HardDeadline)
	} else {
		p.owner.logger.Printf("Killed server (pid %d)", p.pid)
	}
	if p.owner.onKill != nil {
		p.owner.onKill(reason)
	}
}

// Stop kills the process immediately, cancels its deadline watcher and waits for it to be
// reaped. Calling Stop more than once, or after the process has exited, is harmless.
func (s *Supervisor) Stop(p *Process) error {
	if p == nil {
		return nil
	}
	p.deadline.Stop()
	p.kill(KillStop)

	bound := s.stopTimeout + p.cmd.WaitDelay
	select {
	case <-p.reaped:
		return nil
	case <-time.After(bound):
		return fmt.Errorf("server (pid %d) was not reaped within %s", p.pid, bound)
	}
}

func (p *Process) PID() int {
	return p.pid
}

func (p *Process) Spec() ServerSpec {
	return p.spec
}

func (p *Process) State() State {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}

// KillReason returns why the supervisor killed the process, or KillNone.
func (p *Process) KillReason() KillReason {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.killReason
}

// Done is closed once the process has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.reaped
}

// ExitCode is only meaningful after Done is closed. A process killed by a signal reports
// 128 plus the signal number, as a shell would.
func (p *Process) ExitCode() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.exitCode
}

func (p *Process) Stdout() string {
	return p.stdout.String()
}

func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Output returns the captured stdout and stderr in a form suitable for failure messages.
func (p *Process) Output() string {
	return strings.TrimPrefix(describeOutput(p.Stdout(), p.Stderr()), "\n")
}

func (p *Process) exitDescription() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.state != StateReaped {
		return "still running"
	}
	if p.waitErr == nil {
		return "exit status 0"
	}
	return fmt.Sprintf("exit status %d", p.exitCode)
}

func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return -1
}
