package msl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubContext is a minimal Context for exercising the evaluator/conductor
// without a real looper engine, following spec §6's externals being
// out-of-scope collaborators. externalValues backs Query/Action for a
// handful of named externals a test wires up.
type stubContext struct {
	id ContextID

	externals map[string]*External
	values    map[string]*Value
	echoed    []string
	scopeKws  map[string]bool
}

func newStubContext(id ContextID) *stubContext {
	return &stubContext{
		id:        id,
		externals: make(map[string]*External),
		values:    make(map[string]*Value),
		scopeKws:  make(map[string]bool),
	}
}

func (c *stubContext) ContextID() ContextID { return c.id }

func (c *stubContext) Resolve(name string) (*External, bool) {
	ext, ok := c.externals[name]
	return ext, ok
}

func (c *stubContext) Query(ext *External, scope int) (*Value, error) {
	if v, ok := c.values[ext.Name]; ok {
		return v, nil
	}
	return NullValue(), nil
}

func (c *stubContext) Action(ext *External, args []*Value, scope int) (*Value, *ActionEvent, error) {
	if len(args) > 0 {
		c.values[ext.Name] = args[0]
	}
	return NullValue(), nil, nil
}

func (c *stubContext) Wait(w *WaitState) bool {
	return true
}

func (c *stubContext) Echo(s string) { c.echoed = append(c.echoed, s) }

func (c *stubContext) IsScopeKeyword(name string) bool { return c.scopeKws[name] }

func (c *stubContext) IsUsageArgument(usage, name string) bool { return false }

func (c *stubContext) SampleRate() int32 { return 48000 }

func (c *stubContext) LogRoot() string { return "." }

func (c *stubContext) Export(l *Linkage) {}

// runToCompletion drives the Conductor across both contexts until a
// result is recorded for the given session or the tick budget is spent.
func runToCompletion(t *testing.T, env *Environment, shellCtx, kernelCtx Context, maxTicks int) *Result {
	t.Helper()
	cond := env.Conductor()
	for i := 0; i < maxTicks; i++ {
		cond.Advance(ContextShell, shellCtx)
		cond.Advance(ContextKernel, kernelCtx)
		if rs := cond.Results(); len(rs) > 0 {
			return rs[0]
		}
	}
	t.Fatalf("session did not complete within %d ticks", maxTicks)
	return nil
}

func requestBody(env *Environment, unit *Compilation) {
	linkage := &Linkage{Name: unit.ID, Unit: unit, Function: unit.Body, IsFunction: true}
	env.Request(ContextShell, &Request{Linkage: linkage})
}

// E1: 1 + 2 * 3 -> Int(7).
func TestE2E_ArithmeticPrecedence(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("e1.msl", "1 + 2 * 3")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.Equal(t, int64(7), r.Value.Int())
}

// E2: if switchQuantize == loop 42 else 0, with switchQuantize resolved
// to an external enum whose current value is Enum{3, "loop"} -> Int(42).
func TestE2E_EnumComparisonExternal(t *testing.T) {
	shell := newStubContext(ContextShell)
	shell.externals["switchQuantize"] = &External{Name: "switchQuantize"}
	shell.values["switchQuantize"] = EnumValue(3, "loop")

	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("e2.msl", `if switchQuantize == loop 42 else 0`)
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.Equal(t, int64(42), r.Value.Int())
}

// E3: function dbl(x) { x * 2 } dbl(5) -> Int(10).
func TestE2E_UserFunctionCall(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("e3.msl", `function dbl(x) { x * 2 } dbl(5)`)
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.Equal(t, int64(10), r.Value.Int())
}

// Property 11: an unresolved bare symbol evaluates to its own name.
func TestE2E_UnresolvedSymbolEvaluatesToName(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("e11.msl", "someUndeclaredName")
	require.False(t, unit.HasErrors())
	assert.Contains(t, unit.Unresolved, "someUndeclaredName")
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.Empty(t, r.Errors)
	assert.Equal(t, "someUndeclaredName", r.Value.String())
}

// Property 12 / link error: call syntax on an unresolved name is a link
// error, not a runtime crash.
func TestLink_UnresolvedCallIsLinkError(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("bad-call.msl", "noSuchFunction(1,2)")
	require.True(t, unit.HasErrors())
	assert.False(t, env.Install(unit))
}

// Property 10: a missing required call argument is a link error.
func TestLink_MissingRequiredArgument(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("missing-arg.msl", "function needsTwo(a, b) { a + b } needsTwo(1)")
	require.True(t, unit.HasErrors())
	found := false
	for _, e := range unit.Errors {
		if e.Detail == "missing function argument b" {
			found = true
		}
	}
	assert.True(t, found, "expected a missing-argument error, got %v", unit.Errors)
}

// Property 9: integer divide by zero yields 0 and is logged (as a
// runtime error attached to the session, per this port's error model).
func TestEvaluator_IntegerDivideByZero(t *testing.T) {
	shell := newStubContext(ContextShell)
	env := NewEnvironment(shell, NewLogger(false))
	env.Conductor().SetDiagnostics(true)

	unit := env.Compile("divzero.msl", "10 / 0")
	require.False(t, unit.HasErrors())
	require.True(t, env.Install(unit))

	requestBody(env, unit)
	r := runToCompletion(t, env, shell, newStubContext(ContextKernel), 10)
	require.NotEmpty(t, r.Errors)
	assert.Equal(t, int64(0), r.Value.Int())
}

// E6: two units both declaring function foo() without namespaces ->
// second install records a Collision on the later unit; neither unit's
// foo linkage is repointed silently.
func TestEnvironment_CollisionOnDuplicateGlobalFunction(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))

	u1 := env.Compile("first.msl", "export function foo() { 1 }")
	require.False(t, u1.HasErrors())
	require.True(t, env.Install(u1))

	u2 := env.Compile("second.msl", "export function foo() { 2 }")
	require.False(t, u2.HasErrors())
	require.True(t, env.Install(u2))

	require.Len(t, u2.Collisions, 1)
	assert.Equal(t, "foo", u2.Collisions[0].Name)
	assert.Equal(t, "first.msl", u2.Collisions[0].WithUnitID)

	l := env.Linkage("foo")
	require.NotNil(t, l)
	assert.Same(t, u1, l.Unit, "the original linkage must not be silently repointed")
}

// Property 4: uninstalling a unit removes exactly its linkages.
func TestEnvironment_UninstallRemovesOwnedLinkages(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("uninstall.msl", "export function bar() { 1 }")
	require.False(t, unit.HasErrors())
	require.True(t, env.Install(unit))
	require.NotNil(t, env.Linkage("bar"))

	env.Uninstall(unit.ID)
	assert.Nil(t, env.Linkage("bar"))
	assert.Nil(t, env.Unit(unit.ID))
}

// Property 3: installing the same id twice yields at most one unit in the
// registry and does not duplicate linkages.
func TestEnvironment_ReinstallSameIDReplacesPrior(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	first := env.Compile("dup.msl", "export function baz() { 1 }")
	require.True(t, env.Install(first))

	second := env.Compile("dup.msl", "export function baz() { 2 }")
	require.True(t, env.Install(second))

	assert.Same(t, second, env.Unit("dup.msl"))
	l := env.Linkage("baz")
	require.NotNil(t, l)
	assert.Same(t, second, l.Unit)
}
