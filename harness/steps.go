package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/launchdarkly/roll-forward-tests/assertion"
	"github.com/launchdarkly/roll-forward-tests/framework"
	"github.com/launchdarkly/roll-forward-tests/inject"
)

// Step is one action taken against a running server. The set of steps is closed; build
// them with the types in this package.
type Step interface {
	Kind() string
	Describe() string
	execute(r *caseRun) error
}

// Probe runs a client command and checks its output. A failed assertion fails the case but
// later steps still run; a command that cannot run, or exits non-zero, ends the case.
type Probe struct {
	Command    string
	Assertions []assertion.Assertion
}

func (p Probe) Kind() string { return "probe" }

func (p Probe) Describe() string {
	return "probe: " + p.Command
}

func (p Probe) execute(r *caseRun) error {
	result, err := r.rc.Runner.Run(r.ctx, p.Command)
	if err != nil {
		return err
	}
	for _, err := range assertion.CheckAll(result, p.Assertions) {
		r.t.Fail(framework.FailureAssertion, err)
	}
	return nil
}

// SendMalformed sends one garbage request on a fresh connection and hangs up.
type SendMalformed struct{}

func (SendMalformed) Kind() string { return "send_malformed" }

func (SendMalformed) Describe() string { return "send malformed request" }

func (SendMalformed) execute(r *caseRun) error {
	return r.rc.Injector.SendMalformed(r.ctx, r.host(), r.tc.Server.Port)
}

// HoldIncomplete opens Count connections that each send an incomplete request, runs Steps
// while they are held open, then closes them.
type HoldIncomplete struct {
	Count int
	Steps []Step
}

func (HoldIncomplete) Kind() string { return "hold_incomplete" }

func (h HoldIncomplete) Describe() string {
	var nested []string
	for _, s := range h.Steps {
		nested = append(nested, s.Describe())
	}
	return fmt.Sprintf("hold %d incomplete connection(s) during [%s]", h.Count, strings.Join(nested, "; "))
}

func (h HoldIncomplete) execute(r *caseRun) error {
	var held []*inject.RawConnection
	defer func() {
		for _, c := range held {
			_ = c.Close()
		}
	}()
	for i := 0; i < h.Count; i++ {
		c, err := r.rc.Injector.OpenIncomplete(r.ctx, r.host(), r.tc.Server.Port)
		if err != nil {
			return err
		}
		held = append(held, c)
	}
	return r.runSteps(h.Steps)
}

// Pause waits before the next step.
type Pause struct {
	Duration time.Duration
}

func (Pause) Kind() string { return "pause" }

func (p Pause) Describe() string {
	return "pause " + p.Duration.String()
}

func (p Pause) execute(r *caseRun) error {
	timer := time.NewTimer(p.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}
