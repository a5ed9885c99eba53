package msl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasErrorContaining(errs []*CompileError, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e.Detail, substr) {
			return true
		}
	}
	return false
}

func TestLinker_AmbiguousLocalDefinitionIsAnError(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("ambiguous.msl", "function outer() { function dup() { 1 } var dup = 2 dup }")
	require.True(t, unit.HasErrors())
	assert.True(t, hasErrorContaining(unit.Errors, "ambiguous local definition of dup"), "%v", unit.Errors)
}

func TestLinker_CallSyntaxOnVariableIsAnError(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("callvar.msl", "global var count = 0\ncount(5)")
	require.True(t, unit.HasErrors())
	assert.True(t, hasErrorContaining(unit.Errors, "call syntax used on a variable"), "%v", unit.Errors)
}

func TestLinker_AssignmentToFunctionNameIsAnError(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("assignfunc.msl", "function foo() { 1 }\nfoo = 5")
	require.True(t, unit.HasErrors())
	assert.True(t, hasErrorContaining(unit.Errors, "assignment target is not a variable"), "%v", unit.Errors)
}

func TestLinker_AssignmentToPlainVariableResolvesAsStatic(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("assignvar.msl", "global var count = 0\ncount = 5")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	var assign *Node
	for _, n := range unit.Root.Children {
		if n.Kind == NodeAssignment {
			assign = n
		}
	}
	require.NotNil(t, assign)
	require.NotNil(t, assign.Children[0].Resolution)
	assert.Equal(t, ResStaticVariable, assign.Children[0].Resolution.Kind)
}

// resolveScriptArgument: a symbol matching a declared #arguments name
// resolves to a function argument, not the environment/stdlib tiers below it.
func TestLinker_ScriptArgumentShadowsStdlib(t *testing.T) {
	env := NewEnvironment(nil, NewLogger(false))
	unit := env.Compile("shadow.msl", "#arguments Rand\nRand")
	require.False(t, unit.HasErrors(), "%v", unit.Errors)
	require.True(t, env.Install(unit))

	var found *Node
	for _, n := range unit.Root.Children {
		if n.Kind == NodeSymbol && n.Name == "Rand" {
			found = n
		}
	}
	require.NotNil(t, found)
	require.NotNil(t, found.Resolution)
	assert.Equal(t, ResFunctionArgument, found.Resolution.Kind)
}
