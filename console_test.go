package msl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_DeclarationsCarryAcrossLines(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	cs := NewConsoleSession(env, "console1")

	_, err := cs.Eval("function dbl(x) { x * 2 }")
	require.NoError(t, err)

	unit, err := cs.Eval("dbl(21)")
	require.NoError(t, err)
	require.NotNil(t, unit)

	shell := newStubContext(ContextShell)
	linkage := &Linkage{Name: unit.ID, Unit: unit, Function: unit.Body, IsFunction: true}
	env.Request(ContextShell, &Request{Linkage: linkage})

	cond := env.Conductor()
	cond.SetDiagnostics(true)
	for i := 0; i < 10; i++ {
		cond.Advance(ContextShell, shell)
		if rs := cond.Results(); len(rs) > 0 {
			require.Empty(t, rs[0].Errors)
			assert.Equal(t, int64(42), rs[0].Value.Int())
			return
		}
	}
	t.Fatal("console eval did not complete")
}

func TestConsole_LaterLineOverridesEarlierFunctionOfSameName(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	cs := NewConsoleSession(env, "console2")

	_, err := cs.Eval("function who() { 1 }")
	require.NoError(t, err)
	unit, err := cs.Eval("function who() { 2 }")
	require.NoError(t, err)

	count := 0
	for _, fn := range unit.Functions {
		if fn.Name == "who" {
			count++
		}
	}
	assert.Equal(t, 1, count, "carry-forward must not duplicate a redefined function")
}

func TestConsole_ParseErrorLeavesPriorUnitIntact(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	cs := NewConsoleSession(env, "console3")

	_, err := cs.Eval("global var total = 0")
	require.NoError(t, err)
	before := cs.Unit()

	_, err = cs.Eval("noSuchFunction(")
	assert.Error(t, err)
	assert.Same(t, before, cs.Unit(), "a bad line must not replace the console's installed unit")
}
