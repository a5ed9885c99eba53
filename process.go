package msl

import "sync"

// ProcessState enumerates the states a Process can be in (spec §3
// "Process").
type ProcessState int

const (
	ProcessNone ProcessState = iota
	ProcessRunning
	ProcessWaiting
	ProcessSuspended
	ProcessTransitioning
	ProcessError
	ProcessFinished
)

// Process is a lightweight handle visible across both execution contexts,
// consulted by the monitoring UI (spec §3 "Process"). It lives on a
// shared, mutex-protected list owned by the Conductor.
type Process struct {
	SessionID int64
	State     ProcessState
	Context   ContextID
	Name      string
	TriggerID string

	session *Session // strong reference while the process is alive
	result  *Result  // weak-in-spirit; nulled on finalize
}

// processList is the Conductor's shared, mutex-protected process
// registry (spec §4.5 "Process list"). Every process carries a
// snapshot-friendly name, trigger id, context, and state; it must be
// traversed under lock.
type processList struct {
	mu   sync.Mutex
	byID map[int64]*Process
}

func newProcessList() *processList {
	return &processList{byID: make(map[int64]*Process)}
}

func (pl *processList) create(s *Session, name string) *Process {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	p := &Process{SessionID: s.ID, Context: s.Location, Name: name, TriggerID: s.TriggerID, session: s}
	pl.byID[s.ID] = p
	s.Process = p
	return p
}

func (pl *processList) get(sessionID int64) *Process {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.byID[sessionID]
}

// remove finalizes and detaches the process for sessionID, nulling its
// back-reference to the session and deleting it from the list (spec §4.5
// "Process list"). Processes are not pooled.
func (pl *processList) remove(sessionID int64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if p, ok := pl.byID[sessionID]; ok {
		p.session = nil
		delete(pl.byID, sessionID)
	}
}

// Snapshot returns a copy of all live processes for the monitoring UI,
// taken under lock (spec §4.5 "must be traversed under lock").
func (pl *processList) Snapshot() []Process {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	out := make([]Process, 0, len(pl.byID))
	for _, p := range pl.byID {
		out = append(out, *p)
	}
	return out
}
