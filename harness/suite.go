package harness

import (
	"context"
	"errors"
	"time"

	"github.com/launchdarkly/roll-forward-tests/checkout"
	"github.com/launchdarkly/roll-forward-tests/framework"
	"github.com/launchdarkly/roll-forward-tests/process"
)

// TestCase is one revision of the server and the steps to run against it. It is built
// before the run and not modified afterward.
type TestCase struct {
	Name   string
	Tag    string
	Server process.ServerSpec
	Steps  []Step
}

// RunSuite runs the cases in order, each as a child of one root framework.Context, and
// returns their results. A case that fails, for any reason, does not stop the others.
func RunSuite(
	ctx context.Context,
	rc *RunContext,
	cases []TestCase,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	return framework.Run(filter, testLogger, func(t *framework.Context) {
		for _, tc := range cases {
			tc := tc
			t.Run(tc.Name, func(t *framework.Context) {
				if ctx.Err() != nil {
					t.SkipWithReason("run was cancelled")
				}
				rc.RunCase(ctx, t, tc)
			})
		}
	})
}

type caseRun struct {
	ctx context.Context
	rc  *RunContext
	t   *framework.Context
	tc  TestCase
}

func (r *caseRun) host() string {
	if r.tc.Server.Host != "" {
		return r.tc.Server.Host
	}
	return r.rc.Host
}

// RunCase takes one case from Idle to TornDown. The server is stopped and every raw
// connection closed on all paths out, including a panic from a failed step.
func (rc *RunContext) RunCase(ctx context.Context, t *framework.Context, tc TestCase) {
	rc.token.Lock()
	defer rc.token.Unlock()

	rc.router.attach(t.DebugLogger())
	defer rc.router.attach(nil)

	m := newCaseMachine(tc.Name, t)
	var proc *process.Process
	defer func() {
		rc.Injector.CloseAll()
		if err := rc.Supervisor.Stop(proc); err != nil {
			t.Debug("Teardown: %s", err)
		}
		if proc != nil && t.Failed() {
			if out := proc.Output(); out != "" {
				t.Debug("Captured server output:\n%s", out)
			}
		}
		m.mustTransition(StateTornDown)
	}()

	if err := rc.Checkout.Checkout(tc.Tag); err != nil {
		var ce *checkout.Error
		if !errors.As(err, &ce) {
			err = &checkout.Error{Op: "checkout", Tag: tc.Tag, Err: err}
		}
		t.Fail(framework.FailureCheckout, err)
		return
	}
	m.mustTransition(StateCheckedOut)

	server := tc.Server
	if server.Host == "" {
		server.Host = rc.Host
	}
	p, err := rc.Supervisor.Start(ctx, server)
	if err != nil {
		t.Fail(framework.FailureLaunch, err)
		return
	}
	proc = p
	m.mustTransition(StateServerRunning)

	m.mustTransition(StateProbing)
	run := &caseRun{ctx: ctx, rc: rc, t: t, tc: tc}
	if err := run.runSteps(tc.Steps); err != nil {
		t.Fail(framework.FailureProbe, err)
	}

	if !proc.State().IsLive() || proc.KillReason() == process.KillDeadline {
		t.Debug("Server was no longer running at the end of the case (%s)", describeEnd(proc))
	}
}

func describeEnd(p *process.Process) string {
	if p.KillReason() == process.KillDeadline {
		return "killed at its hard deadline of " + p.Spec().HardDeadline.String()
	}
	select {
	case <-p.Done():
		return "exited by itself"
	default:
		return "still exiting"
	}
}

// runSteps runs steps in order and stops at the first one that returns an error.
func (r *caseRun) runSteps(steps []Step) error {
	for _, s := range steps {
		r.t.Debug("Step: %s", s.Describe())
		started := time.Now()
		err := s.execute(r)
		if r.rc.observer != nil {
			r.rc.observer.ObserveStep(s.Kind(), time.Since(started), err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
