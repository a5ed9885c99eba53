package msl

// StackFrame is one level of the evaluator's explicit call stack
// (spec §3 "Stack frame").
type StackFrame struct {
	Node         *Node
	Parent       *StackFrame
	Phase        int
	ChildResults []*Value
	ChildIndex   int
	Accumulator  bool // if true, ChildResults are appended rather than replaced

	Bindings []*Binding

	CallFunction *Function
	CallExternal *External

	Wait *WaitState

	// scope is the "current scope" bound by an enclosing `in` construct,
	// 0 meaning unscoped (spec §4.4 "In").
	Scope int
}

func newStackFrame(n *Node, parent *StackFrame) *StackFrame {
	scope := 0
	if parent != nil {
		scope = parent.Scope
	}
	return &StackFrame{Node: n, Parent: parent, Scope: scope}
}

func (f *StackFrame) pushResult(v *Value) {
	if f.Accumulator {
		f.ChildResults = append(f.ChildResults, v)
	} else {
		if len(f.ChildResults) == 0 {
			f.ChildResults = append(f.ChildResults, v)
		} else {
			f.ChildResults[0] = v
		}
	}
}

func (f *StackFrame) lastResult() *Value {
	if len(f.ChildResults) == 0 {
		return NullValue()
	}
	return f.ChildResults[len(f.ChildResults)-1]
}

// findBinding walks the frame chain looking up bindings by name, used by
// Symbol evaluation to read a local/positional binding (spec §4.4
// "Symbol").
func (f *StackFrame) findBinding(name string) *Binding {
	for frame := f; frame != nil; frame = frame.Parent {
		for _, b := range frame.Bindings {
			if b.Name == name {
				return b
			}
		}
	}
	return nil
}

func (f *StackFrame) findPositional(pos int32) *Binding {
	for frame := f; frame != nil; frame = frame.Parent {
		for _, b := range frame.Bindings {
			if b.Position == pos {
				return b
			}
		}
	}
	return nil
}

// setBinding assigns a variable visible on the stack, searching outward
// from f. Returns false if no such binding exists (spec §4.4
// "Assignment").
func (f *StackFrame) setBinding(name string, v *Value) bool {
	for frame := f; frame != nil; frame = frame.Parent {
		for _, b := range frame.Bindings {
			if b.Name == name {
				b.Value = v
				return true
			}
		}
	}
	return false
}

// declareBinding creates a binding on the nearest block frame at or above
// f (spec §4.4 "Variable-def"). If no block frame encloses f, the binding
// goes on f itself.
func (f *StackFrame) declareBinding(name string, v *Value) {
	target := f
	for target != nil && (target.Node == nil || target.Node.Kind != NodeBlock) {
		target = target.Parent
	}
	if target == nil {
		target = f
	}
	target.Bindings = append(target.Bindings, NewBinding(name, v, 0))
}
