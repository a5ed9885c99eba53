package msl

import "fmt"

// RuntimeError is attached to a session when something goes wrong during
// evaluation (spec §7 "Runtime errors"). Any runtime error causes the
// session to terminate at the next checkCompletion.
type RuntimeError struct {
	Detail string
	Line   int
	Column int
}

func (e *RuntimeError) Error() string { return e.Detail }

// Session is one execution of a script (spec §3 "Session"). It holds a
// linked list of stack frames (top = current), the owning compilation,
// accumulated errors, the root result value, a process handle (once it
// must survive beyond the initial call), sustain/repeat state, and the
// transitioning/waiting/finished flags the Conductor inspects.
type Session struct {
	ID   int64
	Unit *Compilation
	env  *Environment

	top *StackFrame

	Errors []*RuntimeError
	Result *Value
	Results []*Value

	Process *Process

	sustain suspendState
	repeat  suspendState

	Transitioning bool
	Waiting       bool
	Finished      bool

	Location ContextID
	TriggerID string

	// initialBindings carries the argument bindings used to start the
	// session, so a #sustain/#repeat re-invocation can run the body again
	// with the same arguments (spec §9 "Suspended sessions").
	initialBindings []*Binding
}

func resetSession(s *Session) {
	*s = Session{}
}

// NewSession starts a session evaluating fn's body with the given argument
// bindings. It does not run the session; call Resume to advance it.
func NewSession(id int64, unit *Compilation, fn *Function, bindings []*Binding, loc ContextID, env *Environment) *Session {
	s := &Session{ID: id, Unit: unit, env: env, Location: loc, initialBindings: bindings}
	s.pushFunctionBody(fn, bindings)
	return s
}

func (s *Session) pushFunctionBody(fn *Function, bindings []*Binding) {
	if fn == nil || fn.Body == nil {
		s.Finished = true
		return
	}
	frame := newStackFrame(fn.Body, nil)
	frame.Bindings = bindings
	s.top = frame
}

func (s *Session) hasErrors() bool { return len(s.Errors) > 0 }

func (s *Session) addError(line, col int, detail string) {
	s.Errors = append(s.Errors, &RuntimeError{Detail: detail, Line: line, Column: col})
}

// activeWait returns the first wait marked active on any frame from the
// top down, whether or not it has finished; nil if there is none.
func (s *Session) activeWait() *WaitState {
	for f := s.top; f != nil; f = f.Parent {
		if f.Wait != nil && f.Wait.Active {
			return f.Wait
		}
	}
	return nil
}

// Resume runs the evaluator's run loop (spec §4.4):
//
//	while stack non-empty AND no errors AND not transitioning AND
//	      not (active-wait ∧ !finished):
//	    advance(top-of-stack)
//
// It returns when the session suspends for one of the reasons enumerated
// in spec §5 "Suspension points".
func (s *Session) Resume(ctx Context) {
	s.Transitioning = false
	for s.top != nil && !s.hasErrors() && !s.Transitioning {
		if w := s.activeWait(); w != nil && !w.Finished {
			s.Waiting = true
			return
		}
		s.Waiting = false
		s.advance(s.top, ctx)
	}
	if s.top == nil {
		s.Finished = true
	}
}

func (s *Session) pop(result *Value) {
	finishing := s.top
	s.top = finishing.Parent
	if s.top == nil {
		s.Result = result
	} else {
		s.top.pushResult(result)
		s.top.ChildIndex++
	}
}

// advance dispatches on the node kind via the node-kind switch below (the
// tagged-sum "visitor" from spec §9). Each handler may push child frames,
// set Phase, produce a result and pop, set Transitioning, or initialize a
// Wait.
func (s *Session) advance(f *StackFrame, ctx Context) {
	n := f.Node
	switch n.Kind {
	case NodeLiteral:
		s.pop(n.LitValue)

	case NodeBlock:
		s.advanceBlock(f, n)

	case NodeSymbol:
		s.advanceSymbol(f, n, ctx)

	case NodeVariableDef:
		s.advanceVariableDef(f, n)

	case NodeFunctionDef:
		s.pop(NullValue())

	case NodeAssignment:
		s.advanceAssignment(f, n, ctx)

	case NodeReference:
		b := f.findPositional(n.RefPosition)
		if b == nil {
			s.pop(NullValue())
		} else {
			s.pop(b.Value)
		}

	case NodeOperator:
		s.advanceOperator(f, n)

	case NodeIf:
		s.advanceIf(f, n)

	case NodeElse, NodeCase:
		s.advanceContainer(f, n)

	case NodeEnd:
		s.pop(StringValue("end"))
		s.top = nil

	case NodeEcho, NodeTrace:
		s.advanceEcho(f, n, ctx)

	case NodeAddResult:
		s.advanceAddResult(f, n)

	case NodeContext:
		if n.TargetContext != s.Location {
			s.Transitioning = true
			return
		}
		s.pop(NullValue())

	case NodeIn:
		s.advanceIn(f, n)

	case NodeWait:
		s.advanceWait(f, n, ctx)

	default:
		s.pop(NullValue())
	}
}

func (s *Session) advanceBlock(f *StackFrame, n *Node) {
	if f.ChildIndex >= len(n.Children) {
		if len(n.Children) == 0 {
			s.pop(NullValue())
			return
		}
		s.pop(f.lastResult())
		return
	}
	child := n.Children[f.ChildIndex]
	s.top = newStackFrame(child, f)
}

func (s *Session) advanceContainer(f *StackFrame, n *Node) {
	if len(n.Children) == 0 {
		s.pop(NullValue())
		return
	}
	if f.ChildIndex == 0 {
		s.top = newStackFrame(n.Children[0], f)
		return
	}
	s.pop(f.lastResult())
}

func (s *Session) advanceSymbol(f *StackFrame, n *Node, ctx Context) {
	res := n.Resolution
	if res == nil {
		s.pop(StringValue(n.Name))
		return
	}

	hasCall := len(n.Children) > 0 && n.Children[0].Kind == NodeBlock

	switch res.Kind {
	case ResUnresolved, ResKeyword, ResUsageArgument:
		s.pop(StringValue(n.Name))

	case ResFunctionArgument:
		pos := int32(0)
		if len(res.Args) > 0 {
			pos = res.Args[0].Position
		}
		if b := f.findBinding(n.Name); b != nil {
			s.pop(b.Value)
			return
		}
		if b := f.findPositional(pos); b != nil {
			s.pop(b.Value)
			return
		}
		s.pop(NullValue())

	case ResInnerVariable, ResStaticVariable:
		if b := f.findBinding(n.Name); b != nil {
			s.pop(b.Value)
			return
		}
		if res.Variable != nil {
			s.pop(res.Variable.Get(f.Scope))
			return
		}
		s.pop(NullValue())

	case ResInnerFunction, ResRootFunction:
		if !hasCall {
			s.pop(StringValue(n.Name))
			return
		}
		s.callUserFunction(f, n, res.Function, ctx)

	case ResLinkage:
		if res.Linkage.IsFunction {
			if !hasCall {
				s.pop(StringValue(n.Name))
				return
			}
			s.callUserFunction(f, n, res.Linkage.Function, ctx)
		} else {
			if res.Linkage.Variable != nil {
				s.pop(res.Linkage.Variable.Get(f.Scope))
			} else {
				s.pop(NullValue())
			}
		}

	case ResExternal:
		s.callOrQueryExternal(f, n, res.External, ctx)

	case ResStandardLibrary:
		s.callStandardLibrary(f, n, res.StdlibID, ctx)
	}
}

// callUserFunction evaluates the call's compiled ArgumentEntry list into
// bindings, then pushes the function body (spec §4.3 "Call argument
// compilation", §4.4 "push arg-bindings then body").
func (s *Session) callUserFunction(f *StackFrame, n *Node, fn *Function, ctx Context) {
	if f.Phase == 1 {
		// the body has returned into this frame: its result is the call's
		s.pop(f.lastResult())
		return
	}
	f.Phase = 1
	if fn == nil || fn.Body == nil {
		s.addError(n.Line, n.Column, "call to function with no body: "+n.Name)
		s.pop(NullValue())
		return
	}
	bindings := s.evaluateArgPlanEagerly(n, ctx)
	callFrame := newStackFrame(fn.Body, f)
	callFrame.Bindings = bindings
	callFrame.CallFunction = fn
	s.top = callFrame
}

// evaluateArgPlanEagerly evaluates every compiled argument's value-node
// against the caller's frame. The evaluator is resumable in general, but
// argument evaluation itself is a small enough expression tree that we
// evaluate it with a private recursive walk rather than extra stack
// frames, mirroring the teacher's lazy-argument design intent without
// adding re-entrant bookkeeping for this bounded case.
func (s *Session) evaluateArgPlanEagerly(n *Node, ctx Context) []*Binding {
	if n.Resolution == nil {
		return nil
	}
	var bindings []*Binding
	for _, entry := range n.Resolution.Args {
		var val *Value = NullValue()
		if entry.ValueNode != nil {
			val = s.evalSync(entry.ValueNode, ctx)
		}
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("$%d", entry.Position)
		}
		bindings = append(bindings, NewBinding(name, val, entry.Position))
	}
	return bindings
}

// evalSync evaluates a self-contained expression node to completion
// synchronously. Used for the argument values of calls (user functions,
// externals, the standard library); `if` conditions run on ordinary stack
// frames instead. The sub-evaluation has no transition or wait handling.
func (s *Session) evalSync(n *Node, ctx Context) *Value {
	sub := &Session{env: s.env, Unit: s.Unit, Location: s.Location}
	sub.top = newStackFrame(n, nil)
	if f := s.topFrame(); f != nil {
		sub.top.Bindings = f.Bindings
		sub.top.Scope = f.Scope
	}
	for sub.top != nil && !sub.hasErrors() {
		sub.advance(sub.top, ctx)
	}
	s.Errors = append(s.Errors, sub.Errors...)
	if sub.Result != nil {
		return sub.Result
	}
	return NullValue()
}

func (s *Session) topFrame() *StackFrame { return s.top }

func (s *Session) callOrQueryExternal(f *StackFrame, n *Node, ext *External, ctx Context) {
	hasCall := len(n.Children) > 0 && n.Children[0].Kind == NodeBlock
	if ctx == nil {
		s.pop(NullValue())
		return
	}
	if ext.IsFunction && hasCall {
		var args []*Value
		for _, entry := range n.Resolution.Args {
			if entry.ValueNode != nil {
				args = append(args, s.evalSync(entry.ValueNode, ctx))
			} else {
				args = append(args, NullValue())
			}
		}
		v, _, err := ctx.Action(ext, args, f.Scope)
		if err != nil {
			s.addError(n.Line, n.Column, err.Error())
			s.pop(NullValue())
			return
		}
		s.pop(v)
		return
	}
	v, err := ctx.Query(ext, f.Scope)
	if err != nil {
		s.addError(n.Line, n.Column, err.Error())
		s.pop(NullValue())
		return
	}
	s.pop(v)
}

func (s *Session) callStandardLibrary(f *StackFrame, n *Node, id StdlibID, ctx Context) {
	var args []*Value
	if n.Resolution != nil {
		for _, entry := range n.Resolution.Args {
			if entry.ValueNode != nil {
				args = append(args, s.evalSync(entry.ValueNode, ctx))
			}
		}
	}
	v, err := callStdlib(id, args, s, ctx)
	if err != nil {
		s.addError(n.Line, n.Column, err.Error())
	}
	s.pop(v)
}

func (s *Session) advanceVariableDef(f *StackFrame, n *Node) {
	if f.Phase == 0 {
		f.Phase = 1
		if len(n.Children) > 0 {
			s.top = newStackFrame(n.Children[0], f)
			return
		}
	}
	var v *Value = NullValue()
	if len(f.ChildResults) > 0 {
		v = f.ChildResults[0]
	}
	// A top-level declaration initializes the unit's persistent Variable,
	// the same storage the linker resolves its references to.
	if s.Unit != nil && n.Parent != nil && n.Parent == s.Unit.Root {
		if sv := s.Unit.FindLocalVariable(n.DeclName); sv != nil {
			sv.Set(f.Scope, v)
			s.popFromSelf(f, NullValue())
			return
		}
	}
	f.Parent.declareBinding(n.DeclName, v)
	s.popFromSelf(f, NullValue())
}

// popFromSelf is used by handlers (VariableDef) that want to pop the
// *current* frame f directly rather than go through advance's implicit
// pop-on-next-call path, since f may not be s.top by the time we're done
// mutating it.
func (s *Session) popFromSelf(f *StackFrame, result *Value) {
	s.top = f
	s.pop(result)
}

func (s *Session) advanceAssignment(f *StackFrame, n *Node, ctx Context) {
	if len(n.Children) != 2 {
		s.pop(NullValue())
		return
	}
	if f.Phase == 0 {
		f.Phase = 1
		s.top = newStackFrame(n.Children[1], f)
		return
	}
	val := f.lastResult()
	lhs := n.Children[0]
	if lhs.Kind != NodeSymbol || lhs.Resolution == nil {
		s.addError(n.Line, n.Column, "invalid assignment target")
		s.popFromSelf(f, val)
		return
	}
	switch lhs.Resolution.Kind {
	case ResInnerVariable, ResFunctionArgument:
		if !f.setBinding(lhs.Name, val) {
			f.declareBinding(lhs.Name, val)
		}
	case ResStaticVariable:
		if lhs.Resolution.Variable != nil {
			lhs.Resolution.Variable.Set(f.Scope, val)
		}
	case ResExternal:
		if ctx != nil {
			if _, _, err := ctx.Action(lhs.Resolution.External, []*Value{val}, f.Scope); err != nil {
				s.addError(n.Line, n.Column, err.Error())
			}
		}
	case ResUnresolved:
		f.declareBinding(lhs.Name, val)
	default:
		s.addError(n.Line, n.Column, "assignment target is a function, not a variable")
	}
	s.popFromSelf(f, val)
}

// advanceOperator treats its operand(s) as an accumulator frame, then
// applies the operator (spec §4.4 "Operator").
func (s *Session) advanceOperator(f *StackFrame, n *Node) {
	f.Accumulator = true
	if f.ChildIndex < len(n.Children) {
		s.top = newStackFrame(n.Children[f.ChildIndex], f)
		return
	}
	if n.Unary {
		operand := boolValueOrFirst(f.ChildResults)
		if n.Operator == "!" {
			s.pop(BoolValue(!operand.Bool()))
			return
		}
		if n.Operator == "-" {
			if operand.Kind == KindFloat {
				s.pop(FloatValue(-operand.Float()))
			} else {
				s.pop(IntValue(-operand.Int()))
			}
			return
		}
		s.pop(operand)
		return
	}
	if len(f.ChildResults) != 2 {
		s.pop(NullValue())
		return
	}
	s.pop(applyBinaryOperator(n.Operator, f.ChildResults[0], f.ChildResults[1], s, n))
}

func boolValueOrFirst(vs []*Value) *Value {
	if len(vs) == 0 {
		return NullValue()
	}
	return vs[0]
}

func applyBinaryOperator(op string, a, b *Value, s *Session, n *Node) *Value {
	switch op {
	case "+":
		if a.Kind == KindFloat || b.Kind == KindFloat {
			return FloatValue(a.Float() + b.Float())
		}
		if a.Kind == KindString || b.Kind == KindString {
			return StringValue(a.String() + b.String())
		}
		return IntValue(a.Int() + b.Int())
	case "-":
		if a.Kind == KindFloat || b.Kind == KindFloat {
			return FloatValue(a.Float() - b.Float())
		}
		return IntValue(a.Int() - b.Int())
	case "*":
		if a.Kind == KindFloat || b.Kind == KindFloat {
			return FloatValue(a.Float() * b.Float())
		}
		return IntValue(a.Int() * b.Int())
	case "/":
		if a.Kind == KindFloat || b.Kind == KindFloat {
			if b.Float() == 0 {
				s.addError(n.Line, n.Column, "divide by zero")
				return FloatValue(0)
			}
			return FloatValue(a.Float() / b.Float())
		}
		if b.Int() == 0 {
			// spec §4.4, §8 property 9: integer divide by zero yields 0;
			// it is recorded as a runtime error on the session.
			s.addError(n.Line, n.Column, "integer divide by zero")
			return IntValue(0)
		}
		return IntValue(a.Int() / b.Int())
	case "==":
		return BoolValue(a.Equal(b))
	case "!=":
		return BoolValue(!a.Equal(b))
	case "<":
		return BoolValue(compareNumeric(a, b) < 0)
	case "<=":
		return BoolValue(compareNumeric(a, b) <= 0)
	case ">":
		return BoolValue(compareNumeric(a, b) > 0)
	case ">=":
		return BoolValue(compareNumeric(a, b) >= 0)
	case "&&":
		// Evaluated eagerly over both operands; short-circuiting is NOT
		// guaranteed (spec §4.4 "Logical"). Both already evaluated by the
		// accumulator frame before we get here.
		return BoolValue(a.Bool() && b.Bool())
	case "||":
		return BoolValue(a.Bool() || b.Bool())
	}
	return NullValue()
}

func compareNumeric(a, b *Value) int {
	if a.Kind == KindFloat || b.Kind == KindFloat {
		af, bf := a.Float(), b.Float()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	ai, bi := a.Int(), b.Int()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

// advanceIf implements the three-phase If node (spec §4.4 "If"):
// phase 0 evaluates condition; phase 1 pushes the true-branch or the
// else-branch (or returns null); phase 2 pops.
func (s *Session) advanceIf(f *StackFrame, n *Node) {
	switch f.Phase {
	case 0:
		f.Phase = 1
		if len(n.Children) == 0 {
			s.pop(NullValue())
			return
		}
		s.top = newStackFrame(n.Children[0], f)
	case 1:
		f.Phase = 2
		cond := f.lastResult()
		f.ChildResults = nil

		var thenBranch, elseBranch *Node
		if len(n.Children) > 1 {
			if n.Children[1].Kind == NodeElse {
				elseBranch = n.Children[1]
			} else {
				thenBranch = n.Children[1]
				if len(n.Children) > 2 && n.Children[2].Kind == NodeElse {
					elseBranch = n.Children[2]
				}
			}
		}

		if cond.Bool() {
			if thenBranch != nil {
				s.top = newStackFrame(thenBranch, f)
				return
			}
			s.pop(NullValue())
		} else {
			if elseBranch != nil {
				s.top = newStackFrame(elseBranch, f)
				return
			}
			s.pop(NullValue())
		}
	case 2:
		s.pop(f.lastResult())
	}
}

func (s *Session) advanceEcho(f *StackFrame, n *Node, ctx Context) {
	if f.ChildIndex < len(n.Children) {
		f.Accumulator = true
		s.top = newStackFrame(n.Children[f.ChildIndex], f)
		return
	}
	var parts []string
	for _, v := range f.ChildResults {
		parts = append(parts, v.String())
	}
	text := joinStrings(parts)
	if ctx != nil {
		ctx.Echo(text)
	}
	s.pop(NullValue())
}

func joinStrings(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func (s *Session) advanceAddResult(f *StackFrame, n *Node) {
	if f.ChildIndex < len(n.Children) {
		s.top = newStackFrame(n.Children[f.ChildIndex], f)
		return
	}
	s.Results = append(s.Results, f.lastResult())
	s.pop(NullValue())
}

// advanceIn resolves the scope keywords/expressions into a list of
// integer scope ids, then iteratively runs the body with "current scope"
// bound to each in turn (spec §4.4 "In").
func (s *Session) advanceIn(f *StackFrame, n *Node) {
	if len(n.Children) < 2 {
		s.pop(NullValue())
		return
	}
	scopeListNode, body := n.Children[0], n.Children[1]

	if f.Phase == 0 {
		f.Phase = 1
		s.top = newStackFrame(scopeListNode, f)
		return
	}
	if f.Phase == 1 {
		f.Phase = 2
		scopes := resolveScopeList(f.lastResult())
		f.ChildResults = nil
		if len(scopes) == 0 {
			s.pop(NullValue())
			return
		}
		f.Bindings = append(f.Bindings, NewBinding("__in_scopes", nil, 0))
		f.Bindings[len(f.Bindings)-1].Value = scopesToValue(scopes)
		f.ChildIndex = 0
		f.Scope = scopes[0]
		inner := newStackFrame(body, f)
		inner.Scope = scopes[0]
		s.top = inner
		return
	}
	// Phase 2+: advance to the next scope, if any (pop has already moved
	// ChildIndex past the scope whose body just finished).
	scopes := valueToScopes(f.findBinding("__in_scopes").Value)
	if f.ChildIndex >= len(scopes) {
		s.pop(NullValue())
		return
	}
	f.Scope = scopes[f.ChildIndex]
	inner := newStackFrame(body, f)
	inner.Scope = scopes[f.ChildIndex]
	s.top = inner
}

func resolveScopeList(v *Value) []int {
	var out []int
	if v.IsList() {
		for n := v; n != nil && n.Kind == KindList; n = n.Tail {
			out = append(out, int(n.Head.Int()))
		}
		return out
	}
	if !v.IsNull() {
		out = append(out, int(v.Int()))
	}
	return out
}

func scopesToValue(scopes []int) *Value {
	var list *Value
	for _, sc := range scopes {
		list = AppendList(list, IntValue(int64(sc)))
	}
	return list
}

func valueToScopes(v *Value) []int {
	return resolveScopeList(v)
}

// advanceWait validates type/unit, transitions to the kernel context if
// needed, then calls Context.Wait and suspends (spec §4.4 "Wait").
func (s *Session) advanceWait(f *StackFrame, n *Node, ctx Context) {
	if n.Wait == nil {
		s.addError(n.Line, n.Column, "malformed wait")
		s.pop(NullValue())
		return
	}
	if f.Wait != nil {
		if f.Wait.Finished {
			s.pop(NullValue())
		}
		return
	}
	if s.Location != ContextKernel {
		s.Transitioning = true
		return
	}
	w := &WaitState{Type: n.Wait.Type, Unit: n.Wait.Unit, Value: n.Wait.Value, Session: s}
	if ctx != nil {
		ctx.Wait(w)
	}
	w.Active = true
	f.Wait = w
}
