package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseMachineHappyPath(t *testing.T) {
	m := newCaseMachine("case", nil)
	for _, s := range []CaseState{StateCheckedOut, StateServerRunning, StateProbing, StateTornDown} {
		require.NoError(t, m.transition(s))
	}
	assert.Equal(t, []CaseState{StateIdle, StateCheckedOut, StateServerRunning, StateProbing, StateTornDown}, m.history)
}

func TestEveryLiveStateCanTearDown(t *testing.T) {
	for _, from := range []CaseState{StateIdle, StateCheckedOut, StateServerRunning, StateProbing} {
		_, ok := allowedTransitions[from][StateTornDown]
		assert.True(t, ok, "%s -> %s", from, StateTornDown)
	}
}

func TestIllegalTransitions(t *testing.T) {
	m := newCaseMachine("case", nil)

	err := m.transition(StateProbing)
	var ite *IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StateIdle, ite.From)
	assert.Equal(t, StateProbing, ite.To)
	assert.Equal(t, StateIdle, m.state)

	require.NoError(t, m.transition(StateTornDown))
	assert.Error(t, m.transition(StateTornDown))
	assert.Error(t, m.transition(StateIdle))
	assert.Panics(t, func() { m.mustTransition(StateCheckedOut) })
}
