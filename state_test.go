package msl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Property 8: persistent variable values survive a round trip through
// SaveState/RestoreState for non-moved units.
func TestState_SaveRestoreRoundTrip(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("vars.msl", "global var loopCount = 0\nloopCount = 4")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))
	require.True(t, unit.VariableCarryover)

	// Run the body so the assignment actually executes.
	requestBody(env, unit)
	cond := env.Conductor()
	shell := newStubContext(ContextShell)
	cond.Advance(ContextShell, shell)

	v := unit.FindLocalVariable("loopCount")
	require.NotNil(t, v)
	assert.Equal(t, int64(4), v.Get(0).Int())

	data, err := env.SaveState()
	require.NoError(t, err)

	// Simulate a fresh process: new Environment, same unit id re-installed
	// with the variable reset to its initial value.
	env2 := NewEnvironment(nil, NewLogger(false))
	unit2 := env2.Compile("vars.msl", "global var loopCount = 0")
	require.False(t, unit2.HasErrors())
	require.True(t, env2.Install(unit2))

	require.NoError(t, env2.RestoreState(data))
	v2 := unit2.FindLocalVariable("loopCount")
	require.NotNil(t, v2)
	assert.Equal(t, int64(4), v2.Get(0).Int())
}

func TestState_RestoreToleratesMovedVariable(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("vars2.msl", "global var oldName = 1\noldName = 9")
	require.False(t, unit.HasErrors())
	require.True(t, env.Install(unit))
	requestBody(env, unit)
	env.Conductor().Advance(ContextShell, newStubContext(ContextShell))

	data, err := env.SaveState()
	require.NoError(t, err)

	env2 := NewEnvironment(nil, NewLogger(false))
	unit2 := env2.Compile("vars2.msl", "global var newName = 1")
	require.False(t, unit2.HasErrors())
	require.True(t, env2.Install(unit2))

	// Must not error even though oldName no longer exists on the unit.
	assert.NoError(t, env2.RestoreState(data))
}
