package harness

import (
	"fmt"

	"github.com/launchdarkly/roll-forward-tests/framework"
)

// CaseState is a stage in the lifecycle of one test case.
type CaseState string

const (
	StateIdle          CaseState = "idle"
	StateCheckedOut    CaseState = "checked_out"
	StateServerRunning CaseState = "server_running"
	StateProbing       CaseState = "probing"
	StateTornDown      CaseState = "torn_down"
)

// Every state can go straight to TornDown, which is how failures end a case.
var allowedTransitions = map[CaseState]map[CaseState]struct{}{
	StateIdle: {
		StateCheckedOut: {},
		StateTornDown:   {},
	},
	StateCheckedOut: {
		StateServerRunning: {},
		StateTornDown:      {},
	},
	StateServerRunning: {
		StateProbing:  {},
		StateTornDown: {},
	},
	StateProbing: {
		StateTornDown: {},
	},
}

// IllegalTransitionError is a programming error in the orchestrator: it tried to move a
// case to a state that cannot follow the current one.
type IllegalTransitionError struct {
	Case string
	From CaseState
	To   CaseState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition case %q from %q to %q", e.Case, e.From, e.To)
}

type caseMachine struct {
	name    string
	state   CaseState
	history []CaseState
	t       *framework.Context
}

func newCaseMachine(name string, t *framework.Context) *caseMachine {
	m := &caseMachine{name: name, state: StateIdle, history: []CaseState{StateIdle}, t: t}
	if t != nil {
		t.SetState(string(StateIdle))
	}
	return m
}

func (m *caseMachine) transition(to CaseState) error {
	if _, ok := allowedTransitions[m.state][to]; !ok {
		return &IllegalTransitionError{Case: m.name, From: m.state, To: to}
	}
	m.state = to
	m.history = append(m.history, to)
	if m.t != nil {
		m.t.SetState(string(to))
	}
	return nil
}

// mustTransition panics on an illegal transition; the framework reports the panic as a
// failure of the case.
func (m *caseMachine) mustTransition(to CaseState) {
	if err := m.transition(to); err != nil {
		panic(err)
	}
}
