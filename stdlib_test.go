package msl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdlib_RandRespectsBounds(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("rand.msl", "Rand(10, 20)")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	v := r.Value.Int()
	assert.GreaterOrEqual(t, v, int64(10))
	assert.LessOrEqual(t, v, int64(20))
}

func TestStdlib_RandCollapsesWhenLowGEHigh(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("rand2.msl", "Rand(5, 5)")
	require.False(t, unit.HasErrors())
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.Equal(t, int64(5), r.Value.Int())
}

func TestStdlib_TempoFormula(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("tempo.msl", "Tempo(0, 500)")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.InDelta(t, 120.0, r.Value.Float(), 0.0001)
}

func TestStdlib_SampleRateReadsContext(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("sr.msl", "SampleRate()")
	require.False(t, unit.HasErrors())
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.Equal(t, int64(48000), r.Value.Int())
}

// EndSustain/EndRepeat exercised through the conductor, not just callStdlib:
// calling EndSustain() from within a sustained unit's body must clear the
// suspend-on-sustain state so the session finalizes immediately instead of
// suspending.
func TestStdlib_EndSustainFinalizesInsteadOfSuspending(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("endsustain.msl", "#sustain 200\nEndSustain()")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))
	require.True(t, unit.Sustain)

	requestBody(env, unit)
	cond := env.Conductor()
	cond.Advance(ContextShell, shell)

	results := cond.Results()
	require.Len(t, results, 1)
	assert.Equal(t, ProcessFinished, results[0].State)
	assert.Empty(t, cond.Processes())
}
