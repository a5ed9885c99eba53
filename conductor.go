package msl

import (
	"sync"
	"sync/atomic"
	"time"
)

// Request is the host-facing entry point for starting or resuming a
// session (spec §6 "Request surface").
type Request struct {
	Linkage   *Linkage
	Bindings  map[string]*Value
	Arguments []*Value
	TriggerID string
	Scope     int
	Release   bool
	Repeat    bool
	Context   ContextID
}

// Conductor owns all running sessions (spec §4.5). It maintains two
// session slices keyed by context, two inbound message queues, a
// shared mutex-protected process list, and a mutex-protected results
// list.
type Conductor struct {
	env *Environment

	mu             sync.Mutex // shellSessions/kernelSessions are each owned
	shellSessions  []*Session // by their context and never touched from the
	kernelSessions []*Session // other side; the mutex here only protects
	//                           the slice headers during cross-context moves.

	shellMessages  *messageQueue
	kernelMessages *messageQueue

	processes *processList
	results   *resultList

	nextSessionID int64

	pools *pools

	nowMillis func() int64
}

func NewConductor(env *Environment) *Conductor {
	return &Conductor{
		env:            env,
		shellMessages:  newMessageQueue(),
		kernelMessages: newMessageQueue(),
		processes:      newProcessList(),
		results:        newResultList(false),
		pools:          newPools(),
		nowMillis:      func() int64 { return time.Now().UnixMilli() },
	}
}

// nextID returns a monotonically increasing non-zero session identifier
// (spec §4.5 "Session identifiers").
func (c *Conductor) nextID() int64 {
	return atomic.AddInt64(&c.nextSessionID, 1)
}

func (c *Conductor) sessionsFor(ctx ContextID) []Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	var list []*Session
	if ctx == ContextShell {
		list = c.shellSessions
	} else {
		list = c.kernelSessions
	}
	out := make([]Session, 0, len(list))
	for _, s := range list {
		out = append(out, *s)
	}
	return out
}

func (c *Conductor) addSession(ctx ContextID, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx == ContextShell {
		c.shellSessions = append(c.shellSessions, s)
	} else {
		c.kernelSessions = append(c.kernelSessions, s)
	}
}

func (c *Conductor) removeSession(ctx ContextID, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx == ContextShell {
		c.shellSessions = removeSessionFrom(c.shellSessions, s)
	} else {
		c.kernelSessions = removeSessionFrom(c.kernelSessions, s)
	}
}

func removeSessionFrom(list []*Session, target *Session) []*Session {
	for i, s := range list {
		if s == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (c *Conductor) messagesFor(ctx ContextID) *messageQueue {
	if ctx == ContextShell {
		return c.shellMessages
	}
	return c.kernelMessages
}

func (c *Conductor) otherMessages(ctx ContextID) *messageQueue {
	if ctx == ContextShell {
		return c.kernelMessages
	}
	return c.shellMessages
}

// Advance drives one context forward one tick (spec §4.5):
//
//	advance(ctx):
//	    ageSuspended(ctx)      # time out #sustain / #repeat states
//	    consumeMessages(ctx)   # transitions in, requests in, results routed
//	    advanceActive(ctx)     # resume each live session once
func (c *Conductor) Advance(ctx ContextID, host Context) {
	c.ageSuspended(ctx, host)
	c.consumeMessages(ctx, host)
	c.advanceActive(ctx, host)
}

func (c *Conductor) advanceActive(ctx ContextID, host Context) {
	c.mu.Lock()
	var list []*Session
	if ctx == ContextShell {
		list = append([]*Session(nil), c.shellSessions...)
	} else {
		list = append([]*Session(nil), c.kernelSessions...)
	}
	c.mu.Unlock()

	for _, s := range list {
		s.Resume(host)
		c.checkCompletion(ctx, s, host)
	}
}

// checkCompletion applies the per-session state table from spec §4.5.
func (c *Conductor) checkCompletion(ctx ContextID, s *Session, host Context) {
	switch {
	case s.hasErrors():
		c.finalize(ctx, s, ProcessError)

	case s.Transitioning:
		if s.Process == nil {
			c.processes.create(s, s.Unit.Name)
		}
		s.Process.State = ProcessTransitioning
		c.removeSession(ctx, s)
		other := otherContext(ctx)
		s.Location = other
		c.otherMessages(ctx).push(&Message{Type: MsgTransition, Session: s})

	case s.Waiting:
		if s.Process == nil {
			c.processes.create(s, s.Unit.Name)
		}
		s.Process.State = ProcessWaiting

	case s.Finished && c.isSuspended(s):
		if s.Process == nil {
			c.processes.create(s, s.Unit.Name)
		}
		s.Process.State = ProcessSuspended

	case s.Finished:
		c.finalize(ctx, s, ProcessFinished)

	default:
		// still has frames but neither waiting nor transitioning: an
		// internal logic error (spec §4.5 table, last row).
		s.addError(0, 0, "mysterious state: session neither waiting, transitioning, nor finished")
		c.finalize(ctx, s, ProcessError)
	}
}

func (c *Conductor) isSuspended(s *Session) bool {
	return s.sustain.Active || s.repeat.Active
}

func otherContext(ctx ContextID) ContextID {
	if ctx == ContextShell {
		return ContextKernel
	}
	return ContextShell
}

func (c *Conductor) finalize(ctx ContextID, s *Session, state ProcessState) {
	c.removeSession(ctx, s)
	c.processes.remove(s.ID)
	result := resultFromSession(s, state)
	if ctx == ContextKernel {
		// "Results produced in the kernel are shipped to the shell via
		// MsgResult because the shell owns the canonical list" (spec
		// §4.5 "Results list").
		c.shellMessages.push(&Message{Type: MsgResult, Result: result})
	} else {
		c.results.add(result)
	}
}

// consumeMessages drains ctx's inbound queue: transitions resume on this
// side, requests either start a session or are handled by
// processRequest, and results are appended to the canonical (shell) list.
func (c *Conductor) consumeMessages(ctx ContextID, host Context) {
	for _, m := range c.messagesFor(ctx).drain() {
		switch m.Type {
		case MsgTransition:
			m.Session.Location = ctx
			c.addSession(ctx, m.Session)
		case MsgRequest:
			c.handleRequest(ctx, m.Request, host)
		case MsgResult:
			c.results.add(m.Result)
		}
		c.pools.messages.Put(m)
	}
}

// Maintain performs the shell's periodic pool-replenishment duty (spec §5,
// §9 "Pools": "fluff from shell, consume in kernel"). The kernel context
// never calls this; it only drains what the shell keeps topped off.
func (c *Conductor) Maintain(highWater int) {
	c.pools.FluffAll(highWater)
}

// ageSuspended walks suspended sessions in ctx and bumps/timeouts their
// sustain/repeat state (spec §4.5 "Aging").
func (c *Conductor) ageSuspended(ctx ContextID, host Context) {
	now := c.nowMillis()
	c.mu.Lock()
	var list []*Session
	if ctx == ContextShell {
		list = append([]*Session(nil), c.shellSessions...)
	} else {
		list = append([]*Session(nil), c.kernelSessions...)
	}
	c.mu.Unlock()

	for _, s := range list {
		if !c.isSuspended(s) {
			continue
		}
		if s.sustain.elapsed(now) {
			s.sustain.Count++
			s.sustain.Start = now
			c.invokeSustain(s, host)
		}
		if s.repeat.elapsed(now) {
			c.invokeTimeout(s, host)
		}
		c.checkCompletion(ctx, s, host)
	}
}

func (c *Conductor) invokeSustain(s *Session, host Context) {
	if fn := s.Unit.FindLocalFunction("OnSustain"); fn != nil {
		s.resumeFrom(fn, host)
	}
}

func (c *Conductor) invokeTimeout(s *Session, host Context) {
	if fn := s.Unit.FindLocalFunction("OnRelease"); fn != nil {
		s.resumeFrom(fn, host)
	}
	s.repeat.init()
}

// resumeFrom restarts a suspended session's stack at fn's body, preserving
// the session's original argument bindings and result accumulation (spec
// §9 "Suspended sessions": "sustain/repeat scripts sit at the top of the
// execution stack with no frames but live bindings").
func (s *Session) resumeFrom(fn *Function, host Context) {
	s.Finished = false
	s.pushFunctionBody(fn, s.initialBindings)
	s.Resume(host)
}

// handleRequest implements spec §4.5 "Request processing".
func (c *Conductor) handleRequest(ctx ContextID, req *Request, host Context) {
	if req.TriggerID == "" {
		c.startSession(ctx, req, host)
		return
	}

	local := c.findByTrigger(ctx, req.TriggerID)
	if local != nil {
		switch {
		case req.Release:
			c.releaseSustain(ctx, local, host)
		case req.Repeat:
			c.invokeTimeout(local, host)
			c.checkCompletion(ctx, local, host)
		default:
			c.startSession(ctx, req, host)
		}
		return
	}

	if c.findByTrigger(otherContext(ctx), req.TriggerID) != nil {
		// Matched only on the other side: forward.
		c.otherMessages(ctx).push(&Message{Type: MsgRequest, Request: req})
		return
	}

	if req.Release {
		// "Has release but no matching session -> log and drop."
		if c.env != nil && c.env.logger != nil {
			c.env.logger.Warn(CatConductor, "release request for unknown trigger %q", req.TriggerID)
		}
		return
	}

	// No session holds this trigger yet: start one.
	c.startSession(ctx, req, host)
}

func (c *Conductor) releaseSustain(ctx ContextID, s *Session, host Context) {
	s.sustain.init()
	if fn := s.Unit.FindLocalFunction("OnRelease"); fn != nil {
		s.resumeFrom(fn, host)
	}
	c.checkCompletion(ctx, s, host)
}

func (c *Conductor) findByTrigger(ctx ContextID, triggerID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	var list []*Session
	if ctx == ContextShell {
		list = c.shellSessions
	} else {
		list = c.kernelSessions
	}
	for _, s := range list {
		if s.TriggerID == triggerID {
			return s
		}
	}
	return nil
}

func (c *Conductor) startSession(ctx ContextID, req *Request, host Context) {
	if req.Linkage == nil || req.Linkage.Function == nil {
		return
	}
	bindings := compileRequestBindings(req)
	id := c.nextID()
	s := NewSession(id, req.Linkage.Unit, req.Linkage.Function, bindings, ctx, c.env)
	s.TriggerID = req.TriggerID

	if req.Linkage.Unit != nil {
		s.sustain = suspendState{}
		s.repeat = suspendState{}
		if req.Linkage.Unit.Sustain {
			s.sustain.start(c.nowMillis(), int64(req.Linkage.Unit.SustainInterval))
		}
		if req.Linkage.Unit.Repeat {
			s.repeat.start(c.nowMillis(), int64(req.Linkage.Unit.RepeatTimeout))
		}
	}

	c.addSession(ctx, s)
	s.Resume(host)
	c.checkCompletion(ctx, s, host)
}

func compileRequestBindings(req *Request) []*Binding {
	var bindings []*Binding
	pos := int32(1)
	for _, v := range req.Arguments {
		bindings = append(bindings, NewBinding("", v, pos))
		pos++
	}
	for name, v := range req.Bindings {
		bindings = append(bindings, NewBinding(name, v, 0))
	}
	return bindings
}

// Request is the public entry point the host calls; it enqueues as a
// MsgRequest so ordinary scheduling handles it on the next Advance, per
// spec §4.5.
func (c *Conductor) Request(ctx ContextID, req *Request) {
	c.messagesFor(ctx).push(&Message{Type: MsgRequest, Request: req})
}

// SetDiagnostics toggles whether the results list retains every
// finalized session, not just ones with a non-null value, errors, or
// explicit AddResult entries (spec §3 Result: "Saved indefinitely... if
// non-empty or if diagnostics are enabled"). Interactive hosts (the
// console REPL) want this on so every line's completion is observable.
func (c *Conductor) SetDiagnostics(enabled bool) {
	c.results.mu.Lock()
	defer c.results.mu.Unlock()
	c.results.diagnosticsEnabled = enabled
}

// Results returns a snapshot of the canonical (shell-owned) results list
// (spec §4.5 "Results list"). Callers that want to stop polling once a
// particular session has finished should match on Result.SessionID.
func (c *Conductor) Results() []*Result {
	return c.results.All()
}

// Processes returns a snapshot of all live processes, for a monitoring
// host (spec §4.5 "Process list").
func (c *Conductor) Processes() []Process {
	return c.processes.Snapshot()
}

// PruneResults clears the results list on explicit request (spec §4.5
// "Results list": "Pruned only on explicit request").
func (c *Conductor) PruneResults() {
	c.results.Prune()
}
