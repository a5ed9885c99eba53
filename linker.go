package msl

import "fmt"

// Linker resolves every symbol reference and compiles every function
// call-argument plan for a compilation, given the owning Environment
// (spec §4.3).
type Linker struct {
	env  *Environment
	unit *Compilation
}

func NewLinker(env *Environment, unit *Compilation) *Linker {
	return &Linker{env: env, unit: unit}
}

// Link resolves the unit's symbols and compiles call-argument plans. It
// never aborts on unresolved symbols alone (spec §4.3: "not install
// blocking because enumeration comparisons... deliberately rely on
// unresolved symbols evaluating as their own name"); call-syntax on an
// unresolved name IS an error.
func (lk *Linker) Link() {
	if lk.unit.Body != nil && lk.unit.Body.Body != nil {
		lk.linkBlock(lk.unit.Body.Body, lk.unit.Body)
	}
	for _, fn := range lk.unit.Functions {
		if fn.Body != nil {
			lk.linkBlock(fn.Body, fn)
		}
	}
}

func (lk *Linker) linkBlock(n *Node, enclosingFn *Function) {
	for _, child := range n.Children {
		lk.linkNode(child, enclosingFn)
	}
}

func (lk *Linker) linkNode(n *Node, fn *Function) {
	switch n.Kind {
	case NodeSymbol:
		lk.linkSymbol(n, fn)
	case NodeAssignment:
		if len(n.Children) == 2 {
			lk.linkNode(n.Children[0], fn)
			lk.linkNode(n.Children[1], fn)
			lk.checkAssignmentTarget(n.Children[0])
		}
	case NodeVariableDef:
		for _, c := range n.Children {
			lk.linkNode(c, fn)
		}
	case NodeFunctionDef:
		if n.Body != nil {
			lk.linkBlock(n.Body, fn)
		}
	default:
		for _, c := range n.Children {
			lk.linkNode(c, fn)
		}
	}
}

func (lk *Linker) checkAssignmentTarget(lhs *Node) {
	if lhs.Kind != NodeSymbol || lhs.Resolution == nil {
		return
	}
	switch lhs.Resolution.Kind {
	case ResInnerVariable, ResStaticVariable, ResFunctionArgument, ResExternal, ResUnresolved:
		// ok (external is assumed settable; host Action() enforces it)
	default:
		lk.unit.AddError(lhs.Line, lhs.Column, lhs.Name, "assignment target is not a variable")
	}
}

// linkSymbol implements the resolution order from spec §4.3.
func (lk *Linker) linkSymbol(n *Node, fn *Function) {
	name := n.Name
	hasCall := len(n.Children) > 0 && n.Children[0].Kind == NodeBlock && n.Children[0].Token.Value == "("

	// 1. Local lexical scope.
	if local := lk.resolveLexical(n, fn, name); local != nil {
		n.Resolution = local
	} else if loc := lk.resolveUnitLevel(name); loc != nil {
		// 2. sifted top-level functions / static variables
		n.Resolution = loc
	} else if arg := lk.resolveScriptArgument(name); arg != nil {
		// 3. the body function's declaration block (script arguments)
		n.Resolution = arg
	} else if link := lk.env.lookupLinkage(lk.unit, name); link != nil {
		// 4. environment linkage table
		n.Resolution = &SymbolResolution{Kind: ResLinkage, Linkage: link, Name: name}
	} else if ext := lk.resolveExternal(name); ext != nil {
		// 5. host external table
		n.Resolution = &SymbolResolution{Kind: ResExternal, External: ext, Name: name}
	} else if lk.unit.Usage != "" && lk.env.ctx != nil && lk.env.ctx.IsUsageArgument(lk.unit.Usage, name) {
		// 6. experimental usage-argument resolution
		n.Resolution = &SymbolResolution{Kind: ResUsageArgument, Name: name}
	} else if id, ok := lookupStdlib(name); ok {
		// 7. built-in standard library
		n.Resolution = &SymbolResolution{Kind: ResStandardLibrary, StdlibID: id, Name: name}
	} else {
		n.Resolution = &SymbolResolution{Kind: ResUnresolved, Name: name}
		if hasCall {
			lk.unit.AddError(n.Line, n.Column, name, fmt.Sprintf("unresolved function call %q", name))
		} else {
			lk.unit.AddWarning(n.Line, n.Column, name, fmt.Sprintf("unresolved symbol %q", name))
			lk.unit.Unresolved = append(lk.unit.Unresolved, name)
		}
	}

	if hasCall {
		lk.checkCallTarget(n)
		lk.compileArguments(n, fn)
		for _, c := range n.Children[0].Children {
			lk.linkNode(c, fn)
		}
	}
}

func (lk *Linker) checkCallTarget(n *Node) {
	if n.Resolution == nil {
		return
	}
	switch n.Resolution.Kind {
	case ResInnerVariable, ResStaticVariable:
		lk.unit.AddError(n.Line, n.Column, n.Name, "call syntax used on a variable")
	}
}

func (lk *Linker) resolveLexical(n *Node, fn *Function, name string) *SymbolResolution {
	// Walk up the parent chain looking for an enclosing function-def whose
	// declaration names it, or a function/variable definition with that
	// name in any enclosing block.
	var foundFunc *Node
	var foundVar *Node
	var foundVarBlock *Node
	for block := n.Parent; block != nil; block = block.Parent {
		if block.Kind != NodeBlock {
			continue
		}
		for _, sib := range block.Children {
			if sib.Kind == NodeFunctionDef && sib.DeclName == name {
				foundFunc = sib
			}
			if sib.Kind == NodeVariableDef && sib.DeclName == name {
				foundVar = sib
				foundVarBlock = block
			}
		}
		if foundFunc != nil && foundVar != nil {
			lk.unit.AddError(n.Line, n.Column, name, "ambiguous local definition of "+name)
			return &SymbolResolution{Kind: ResUnresolved, Name: name}
		}
		if foundFunc != nil {
			return &SymbolResolution{Kind: ResInnerFunction, Name: name}
		}
		if foundVar != nil {
			// A match at the unit's sifted root block is one of the
			// top-level declarations packaged as a persistent Variable by
			// sift() — route through it instead of a transient Binding so
			// reads/writes survive the session (same storage resolveUnitLevel
			// uses for references that skip straight past local scope).
			if foundVarBlock == lk.unit.Root {
				if v := lk.unit.FindLocalVariable(name); v != nil {
					return &SymbolResolution{Kind: ResStaticVariable, Variable: v, Name: name}
				}
			}
			return &SymbolResolution{Kind: ResInnerVariable, Name: name}
		}
	}
	if fn != nil && fn.Declaration != nil {
		for i, param := range fn.Declaration.Children {
			if param.DeclName == name {
				return &SymbolResolution{Kind: ResFunctionArgument, Name: name, Args: []*ArgumentEntry{{Name: name, Position: int32(i + 1)}}}
			}
		}
	}
	return nil
}

func (lk *Linker) resolveUnitLevel(name string) *SymbolResolution {
	if f := lk.unit.FindLocalFunction(name); f != nil {
		return &SymbolResolution{Kind: ResRootFunction, Function: f, Name: name}
	}
	if v := lk.unit.FindLocalVariable(name); v != nil {
		return &SymbolResolution{Kind: ResStaticVariable, Variable: v, Name: name}
	}
	return nil
}

func (lk *Linker) resolveScriptArgument(name string) *SymbolResolution {
	if lk.unit.Body == nil || lk.unit.Body.Declaration == nil {
		return nil
	}
	for i, param := range lk.unit.Body.Declaration.Children {
		if param.DeclName == name {
			return &SymbolResolution{Kind: ResFunctionArgument, Name: name, Args: []*ArgumentEntry{{Name: name, Position: int32(i + 1)}}}
		}
	}
	return nil
}

func (lk *Linker) resolveExternal(name string) *External {
	if lk.env.ctx == nil {
		return nil
	}
	if ext, ok := lk.env.externals[name]; ok {
		return ext
	}
	if ext, ok := lk.env.ctx.Resolve(name); ok {
		lk.env.externals[name] = ext
		return ext
	}
	return nil
}

// compileArguments implements spec §4.3 "Call argument compilation".
func (lk *Linker) compileArguments(call *Node, fn *Function) {
	var decl *Node
	switch call.Resolution.Kind {
	case ResRootFunction:
		decl = call.Resolution.Function.Declaration
	case ResInnerFunction:
		decl = findSiblingFunctionDecl(call, call.Name)
	case ResLinkage:
		if call.Resolution.Linkage.Function != nil {
			decl = call.Resolution.Linkage.Function.Declaration
		}
	}

	argsBlock := call.Children[0]
	callArgs := argsBlock.Children

	var entries []*ArgumentEntry
	consumed := make([]bool, len(callArgs))
	optionalFromHere := false

	if decl != nil {
		for i, param := range decl.Children {
			entry := &ArgumentEntry{Name: param.DeclName, Position: int32(i + 1)}
			if param.Flags.Track {
				optionalFromHere = true
			}
			entry.Optional = optionalFromHere

			// (a) keyword assignment name=value among call args
			matched := false
			for j, ca := range callArgs {
				if consumed[j] {
					continue
				}
				if ca.Kind == NodeAssignment && len(ca.Children) == 2 && ca.Children[0].Kind == NodeSymbol && ca.Children[0].Name == param.DeclName {
					entry.ValueNode = ca.Children[1]
					consumed[j] = true
					matched = true
					break
				}
			}
			if !matched {
				// (b) next unnamed positional argument
				for j, ca := range callArgs {
					if consumed[j] {
						continue
					}
					if ca.Kind == NodeAssignment {
						continue
					}
					entry.ValueNode = ca
					consumed[j] = true
					matched = true
					break
				}
			}
			if !matched && len(param.Children) > 0 {
				// (c) declaration default
				entry.ValueNode = param.Children[0]
				matched = true
			}
			if !matched && !entry.Optional {
				lk.unit.AddError(call.Line, call.Column, call.Name, fmt.Sprintf("missing function argument %s", param.DeclName))
			}
			entries = append(entries, entry)
		}
	}

	// Extras: remaining call arguments become additional bindings.
	extraPos := int32(len(entries) + 1)
	for j, ca := range callArgs {
		if consumed[j] {
			continue
		}
		if ca.Kind == NodeAssignment && len(ca.Children) == 2 && ca.Children[0].Kind == NodeSymbol {
			entries = append(entries, &ArgumentEntry{Name: ca.Children[0].Name, Extra: true, ValueNode: ca.Children[1]})
			continue
		}
		entries = append(entries, &ArgumentEntry{Position: extraPos, Extra: true, ValueNode: ca})
		extraPos++
	}

	call.Resolution.Args = entries
}

func findSiblingFunctionDecl(n *Node, name string) *Node {
	for block := n.Parent; block != nil; block = block.Parent {
		if block.Kind != NodeBlock {
			continue
		}
		for _, sib := range block.Children {
			if sib.Kind == NodeFunctionDef && sib.DeclName == name {
				return sib.Declaration
			}
		}
	}
	return nil
}
