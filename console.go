package msl

import "fmt"

// ConsoleSession is the "console" scriptlet surface (spec §6 "CLI/REPL
// surface", §9 "Console/scriptlet extension"), grounded on
// original_source/MslScriptlet.cpp and MslScriptletSession.cpp: each new
// line is parsed as if concatenated to the prior body, with prior
// function and variable declarations carried over. This is implemented
// as a structural move rather than a full re-parse of the accumulated
// buffer: the previous compilation's Functions/Variables are transferred
// onto the new one, and the replaced compilation is retained in the
// Environment's garbage list until no session still references it (spec
// §9).
type ConsoleSession struct {
	env  *Environment
	id   string
	unit *Compilation

	lineNo int
}

// NewConsoleSession opens a console scriptlet bound to id (one console
// has one id for its whole lifetime, so repeated Install calls replace
// the same environment slot rather than accumulating).
func NewConsoleSession(env *Environment, id string) *ConsoleSession {
	unit := NewCompilation(id)
	unit.Library = false
	return &ConsoleSession{env: env, id: id, unit: unit}
}

// Unit returns the console's current compilation.
func (cs *ConsoleSession) Unit() *Compilation { return cs.unit }

// Eval parses one line of input as an extension of the console's
// accumulated declarations, links it, and — if it links cleanly —
// installs it and returns the new unit, whose Body the caller can
// request. On a parse
// or link error the console's prior unit is left untouched and the
// errors are returned for display (spec §7: "A unit with any errors is
// not installed").
func (cs *ConsoleSession) Eval(line string) (*Compilation, error) {
	cs.lineNo++
	next := ParseCompilation(line, fmt.Sprintf("%s#%d", cs.id, cs.lineNo))
	next.ID = cs.id
	next.Package = cs.unit.Package
	next.Using = append([]string(nil), cs.unit.Using...)

	carryForwardDeclarations(cs.unit, next)

	if next.HasErrors() {
		return next, fmt.Errorf("console line %d: %d error(s)", cs.lineNo, len(next.Errors))
	}

	NewLinker(cs.env, next).Link()
	if next.HasErrors() {
		return next, fmt.Errorf("console line %d: %d link error(s)", cs.lineNo, len(next.Errors))
	}

	cs.env.Install(next)
	cs.unit = next
	return next, nil
}

// carryForwardDeclarations moves prior's sifted functions and variables
// onto next, ahead of whatever next's own line just sifted out, so later
// lines can reference earlier ones (spec §9: "Implement as structural
// moves... rather than true copy").
func carryForwardDeclarations(prior, next *Compilation) {
	merged := make([]*Function, 0, len(prior.Functions)+len(next.Functions))
	seen := make(map[string]bool, len(next.Functions))
	for _, fn := range next.Functions {
		seen[fn.Name] = true
	}
	for _, fn := range prior.Functions {
		if !seen[fn.Name] {
			fn.Unit = next
			merged = append(merged, fn)
		}
	}
	merged = append(merged, next.Functions...)
	next.Functions = merged

	mergedVars := make([]*Variable, 0, len(prior.Variables)+len(next.Variables))
	seenVars := make(map[string]bool, len(next.Variables))
	for _, v := range next.Variables {
		seenVars[v.Name] = true
	}
	for _, v := range prior.Variables {
		if !seenVars[v.Name] {
			v.Unit = next
			mergedVars = append(mergedVars, v)
		}
	}
	mergedVars = append(mergedVars, next.Variables...)
	next.Variables = mergedVars
}
