package harness

import (
	"sync"
	"time"

	"github.com/launchdarkly/roll-forward-tests/checkout"
	"github.com/launchdarkly/roll-forward-tests/framework"
	"github.com/launchdarkly/roll-forward-tests/inject"
	"github.com/launchdarkly/roll-forward-tests/probe"
	"github.com/launchdarkly/roll-forward-tests/process"
)

// StepObserver is told how long each step took and whether it ended the case early.
type StepObserver interface {
	ObserveStep(kind string, duration time.Duration, err error)
}

type RunOptions struct {
	Checkout         checkout.Controller
	Logger           framework.Logger
	Host             string
	Verbose          bool
	StopTimeout      time.Duration
	OutputLimitBytes int
	OnKill           func(process.KillReason)
	StepObserver     StepObserver
}

// RunContext holds everything a run shares between cases. Cases are serialized by a run
// token, since they all use the same port and the same working copy.
type RunContext struct {
	Checkout   checkout.Controller
	Supervisor *process.Supervisor
	Runner     *probe.Runner
	Injector   *inject.Injector
	Host       string
	Logger     framework.Logger

	observer StepObserver
	router   *caseLogRouter
	token    sync.Mutex
}

// NewRunContext builds the supervisor, probe runner and injector for a run. Their log
// output goes to opts.Logger and also to the debug log of whichever case is running.
func NewRunContext(opts RunOptions) *RunContext {
	base := opts.Logger
	if base == nil {
		base = framework.NullLogger()
	}
	router := &caseLogRouter{base: base}
	rc := &RunContext{
		Checkout: opts.Checkout,
		Supervisor: process.NewSupervisor(process.Options{
			Logger:           framework.WithPrefix(router, "[supervisor] "),
			StopTimeout:      opts.StopTimeout,
			OutputLimitBytes: opts.OutputLimitBytes,
			OnKill:           opts.OnKill,
		}),
		Runner: probe.NewRunner(probe.RunnerOptions{
			Logger:           framework.WithPrefix(router, "[probe] "),
			Verbose:          opts.Verbose,
			OutputLimitBytes: opts.OutputLimitBytes,
		}),
		Injector: inject.NewInjector(inject.Options{Logger: framework.WithPrefix(router, "[inject] ")}),
		Host:     opts.Host,
		Logger:   base,
		observer: opts.StepObserver,
		router:   router,
	}
	if rc.Checkout == nil {
		rc.Checkout = checkout.None{}
	}
	if rc.Host == "" {
		rc.Host = process.DefaultHost
	}
	return rc
}

// caseLogRouter sends every message to the run's logger and, while a case is running, to
// that case's debug log.
type caseLogRouter struct {
	base    framework.Logger
	lock    sync.Mutex
	current framework.Logger
}

func (r *caseLogRouter) Printf(message string, args ...interface{}) {
	r.lock.Lock()
	current := r.current
	r.lock.Unlock()
	framework.Tee(r.base, current).Printf(message, args...)
}

func (r *caseLogRouter) attach(l framework.Logger) {
	r.lock.Lock()
	r.current = l
	r.lock.Unlock()
}
