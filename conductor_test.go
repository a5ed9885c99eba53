package msl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deferredWaitContext behaves like stubContext but leaves WaitState
// unfinished until the test flips it, so the Transitioning/Waiting states
// described in spec E5 can be observed step by step.
type deferredWaitContext struct {
	*stubContext
	lastWait *WaitState
}

func newDeferredWaitContext(id ContextID) *deferredWaitContext {
	return &deferredWaitContext{stubContext: newStubContext(id)}
}

func (c *deferredWaitContext) Wait(w *WaitState) bool {
	c.lastWait = w
	return true
}

// E5: wait subcycle 2, started from shell -> Transitioning -> (kernel
// advance) Waiting -> (host finishes wait) Finished.
func TestE2E_WaitTransitionsShellToKernel(t *testing.T) {
	shell := newDeferredWaitContext(ContextShell)
	kernel := newDeferredWaitContext(ContextKernel)

	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("wait.msl", "wait subcycle 2")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	cond := env.Conductor()

	// First shell advance: session starts, hits wait while on the shell
	// context, and must transition to the kernel.
	cond.Advance(ContextShell, shell)
	procs := cond.Processes()
	require.Len(t, procs, 1)
	assert.Equal(t, ProcessTransitioning, procs[0].State)

	// Kernel advance: receives the transition message, resumes, now
	// actually parked on the wait.
	cond.Advance(ContextKernel, kernel)
	procs = cond.Processes()
	require.Len(t, procs, 1)
	assert.Equal(t, ProcessWaiting, procs[0].State)
	require.NotNil(t, kernel.lastWait)
	assert.False(t, kernel.lastWait.Finished)

	// Host signals the wait elapsed; next kernel advance finalizes. The
	// kernel ships the result to the shell, which owns the results list,
	// so one shell advance makes it visible.
	kernel.lastWait.Finished = true
	cond.Advance(ContextKernel, kernel)
	cond.Advance(ContextShell, shell)

	results := cond.Results()
	require.Len(t, results, 1)
	assert.Equal(t, ProcessFinished, results[0].State)
	assert.Empty(t, cond.Processes())
}

// E4: #sustain 200 / OnRelease, with a triggerId-based release request
// invoking OnRelease and finalizing the suspended session.
func TestE2E_SustainReleaseInvokesOnRelease(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	src := "#sustain 200\nfunction OnRelease() { print \"up\" }"
	unit := env.Compile("sustain.msl", src)
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))
	require.True(t, unit.Sustain)

	cond := env.Conductor()
	linkage := &Linkage{Name: unit.ID, Unit: unit, Function: unit.Body, IsFunction: true}
	cond.Request(ContextShell, &Request{Linkage: linkage, TriggerID: "t1"})
	cond.Advance(ContextShell, shell)

	procs := cond.Processes()
	require.Len(t, procs, 1)
	assert.Equal(t, ProcessSuspended, procs[0].State)

	// Follow-up release request against the same trigger invokes
	// OnRelease and finalizes.
	cond.Request(ContextShell, &Request{Linkage: linkage, TriggerID: "t1", Release: true})
	cond.Advance(ContextShell, shell)

	assert.Contains(t, shell.echoed, "up")
	assert.Empty(t, cond.Processes())
}
