package framework

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context represents one node of a run: the root, or a single case. It is not safe for
// concurrent use; cases run strictly one after another.
type Context struct {
	env         *environment
	id          CaseID
	debugLogger CapturingLogger
	failed      bool
	kind        FailureKind
	skipped     bool
	skipReason  string
	state       string
	errors      []error
	cleanups    []func()
}

// Run creates the root context and calls action with it. Every case started with
// Context.Run inside action contributes one entry to the returned Results.
func Run(
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	started := time.Now()
	defer func() {
		r := recover()
		c.runCleanups()
		if r != nil && !c.skipped {
			var addError error
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("case failed with no failure message")
				}
			} else {
				c.setKind(FailurePanic)
				addError = fmt.Errorf("unexpected panic in case: %+v\n%s", r, string(debug.Stack()))
			}
			c.failed = true
			if addError != nil {
				c.errors = append(c.errors, addError)
				c.env.testLogger.TestError(c.id, addError)
			}
		}
		if len(c.id.Path) == 0 {
			return
		}
		result := CaseResult{
			CaseID:     c.id,
			Errors:     c.errors,
			Skipped:    c.skipped,
			Kind:       c.kind,
			FinalState: c.state,
			Duration:   time.Since(started),
		}
		if c.failed && result.Kind == FailureNone {
			result.Kind = FailureAssertion
		}
		c.env.results.Cases = append(c.env.results.Cases, result)
		if c.failed && !c.skipped {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()

	action(c)
}

func (c *Context) runCleanups() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
}

func (c *Context) ID() CaseID {
	return c.id
}

// Run runs a child case. The child's cleanups have all completed before Run returns, so
// the next sibling never overlaps with it.
func (c *Context) Run(name string, action func(*Context)) {
	id := c.id.Child(name)

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.results.Cases = append(c.env.results.Cases, CaseResult{CaseID: id, Skipped: true})
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// Errorf records an assertion-style failure without stopping the case.
func (c *Context) Errorf(format string, args ...interface{}) {
	c.Fail(FailureAssertion, fmt.Errorf(format, args...))
}

// Fail records a failure of the given kind without stopping the case.
func (c *Context) Fail(kind FailureKind, err error) {
	c.failed = true
	c.setKind(kind)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, err)
}

func (c *Context) setKind(kind FailureKind) {
	if c.kind == FailureNone {
		c.kind = kind
	}
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

// Defer schedules fn to run when the case ends, however it ends. Deferred functions run
// in reverse order of registration.
func (c *Context) Defer(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

// SetState records the lifecycle state the case has reached; the last value is reported in
// the case result.
func (c *Context) SetState(state string) {
	c.state = state
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}
