package msl

import "sync"

// Environment is the top-level façade (spec §3 "Compilation (unit)"
// lifecycle, §4.3 linkage resolution, §6 persisted state): it owns
// compilation, installation, the linkage table, the externals table, and
// state save/restore. It is the *env passed down to the Linker, every
// Session, and the Conductor.
type Environment struct {
	ctx    Context
	logger *Logger

	mu sync.Mutex

	units     map[string]*Compilation // by ID
	linkages  map[string]*Linkage     // by qualified name
	externals map[string]*External    // interned on first resolution

	garbage []*Compilation // replaced units, drained once unreferenced

	conductor *Conductor
}

// NewEnvironment builds an Environment bound to a host Context, together
// with its Conductor. ctx may be nil for pure compile/link checks.
func NewEnvironment(ctx Context, logger *Logger) *Environment {
	if logger == nil {
		logger = NewLogger(false)
	}
	env := &Environment{
		ctx:       ctx,
		logger:    logger,
		units:     make(map[string]*Compilation),
		linkages:  make(map[string]*Linkage),
		externals: make(map[string]*External),
	}
	env.conductor = NewConductor(env)
	return env
}

func (e *Environment) Conductor() *Conductor { return e.conductor }

func (e *Environment) Logger() *Logger { return e.logger }

// Compile parses source into a Compilation and links it against this
// Environment's current linkage table, without installing it (spec §4.2,
// §4.3). Callers that want the unit published should follow with Install.
func (e *Environment) Compile(id, source string) *Compilation {
	unit := ParseCompilation(source, id)
	if !unit.HasErrors() {
		NewLinker(e, unit).Link()
	}
	return unit
}

// lookupLinkage implements spec §4.3 resolution order point 4: first
// "package:name", then bare "name", then every using-namespace in
// declared order.
func (e *Environment) lookupLinkage(unit *Compilation, name string) *Linkage {
	e.mu.Lock()
	defer e.mu.Unlock()
	if unit.Package != "" {
		if l, ok := e.linkages[unit.Package+":"+name]; ok {
			return l
		}
	}
	if l, ok := e.linkages[name]; ok {
		return l
	}
	for _, ns := range unit.Using {
		if l, ok := e.linkages[ns+":"+name]; ok {
			return l
		}
	}
	return nil
}

// Install publishes a compiled unit's functions and variables into the
// linkage table and replaces any prior unit with the same id, moving it
// to the garbage list until drained (spec §3 "Compilation (unit)"
// lifecycle, §8 testable property 3).
//
// A unit with any errors is not installed. A unit with only
// warnings/collisions is installed but its own symbols are not published
// (spec §7 "Error handling design").
func (e *Environment) Install(unit *Compilation) bool {
	if unit.HasErrors() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prior, ok := e.units[unit.ID]; ok && prior != unit {
		e.uninstallLocked(prior)
		e.garbage = append(e.garbage, prior)
	}
	e.units[unit.ID] = unit

	collided := e.detectCollisionsLocked(unit)
	if !collided && len(unit.Warnings) == 0 {
		unit.Published = true
		e.publishLocked(unit)
	}

	if e.ctx != nil {
		for _, name := range e.qualifiedNamesLocked(unit) {
			if l, ok := e.linkages[name]; ok && l.Unit == unit {
				e.ctx.Export(l)
			}
		}
	}
	return true
}

// detectCollisionsLocked implements spec §4.3 "Collision detection": a
// collision exists when a symbol the unit would publish has the same
// qualified name as an already-published symbol from a different unit.
// Collisions are recorded on the later unit but do not abort
// installation.
func (e *Environment) detectCollisionsLocked(unit *Compilation) bool {
	any := false
	for _, name := range e.qualifiedNamesLocked(unit) {
		if existing, ok := e.linkages[name]; ok && existing.Unit != unit {
			unit.Collisions = append(unit.Collisions, &Collision{Name: name, WithUnitID: existing.Unit.ID})
			any = true
		}
	}
	return any
}

func (e *Environment) qualifiedNamesLocked(unit *Compilation) []string {
	var names []string
	for _, f := range unit.Functions {
		if f.IsExported() {
			names = append(names, unit.QualifiedName(f.Name))
		}
	}
	for _, v := range unit.Variables {
		if v.Flags.Exported || v.Flags.Public || v.Flags.Global || v.Flags.Static {
			names = append(names, unit.QualifiedName(v.Name))
		}
	}
	return names
}

// publishLocked installs one Linkage per exported function/variable. At
// most one linkage exists per qualified name (spec §3 Linkage invariant).
func (e *Environment) publishLocked(unit *Compilation) {
	for _, f := range unit.Functions {
		if !f.IsExported() {
			continue
		}
		qname := unit.QualifiedName(f.Name)
		if _, exists := e.linkages[qname]; exists {
			continue // collision already recorded; do not repoint silently
		}
		e.linkages[qname] = &Linkage{
			Name:          qname,
			Unit:          unit,
			Function:      f,
			IsFunction:    true,
			IsSustainable: unit.Sustain,
			Exported:      true,
		}
	}
	for _, v := range unit.Variables {
		if !(v.Flags.Exported || v.Flags.Public || v.Flags.Global || v.Flags.Static) {
			continue
		}
		qname := unit.QualifiedName(v.Name)
		if _, exists := e.linkages[qname]; exists {
			continue
		}
		e.linkages[qname] = &Linkage{
			Name:     qname,
			Unit:     unit,
			Variable: v,
			Exported: true,
		}
	}
}

// Uninstall removes a unit and every linkage it owns (spec §8 testable
// property 4: "removes exactly the linkages whose unit==C").
func (e *Environment) Uninstall(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	unit, ok := e.units[id]
	if !ok {
		return
	}
	e.uninstallLocked(unit)
	delete(e.units, id)
}

func (e *Environment) uninstallLocked(unit *Compilation) {
	for name, l := range e.linkages {
		if l.Unit == unit {
			delete(e.linkages, name)
		}
	}
	unit.Published = false
}

// Unit returns the currently installed compilation for id, if any.
func (e *Environment) Unit(id string) *Compilation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.units[id]
}

// Linkage returns the installed linkage for a qualified name, if any.
func (e *Environment) Linkage(qualifiedName string) *Linkage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linkages[qualifiedName]
}

// DrainGarbage removes replaced compilations that no longer have any live
// session referencing them (spec §9 "Console/scriptlet extension":
// "Replaced units are retained in a garbage list until no active session
// references them"). liveIDs is supplied by the caller; nothing in this
// package calls DrainGarbage on its own.
func (e *Environment) DrainGarbage(liveIDs map[*Compilation]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.garbage[:0]
	for _, u := range e.garbage {
		if liveIDs[u] {
			kept = append(kept, u)
		}
	}
	e.garbage = kept
}

// Request is a convenience wrapper over Conductor.Request.
func (e *Environment) Request(ctx ContextID, req *Request) {
	e.conductor.Request(ctx, req)
}
