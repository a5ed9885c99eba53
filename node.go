package msl

// NodeKind tags the polymorphic parse tree node (spec §3 Node, §9 design
// note: "replace the visitor hierarchy with a tagged sum").
type NodeKind int

const (
	NodeLiteral NodeKind = iota
	NodeBlock
	NodeSymbol
	NodeOperator
	NodeAssignment
	NodeVariableDef
	NodeFunctionDef
	NodeIf
	NodeElse
	NodeCase
	NodeWait
	NodeIn
	NodeContext
	NodeEnd
	NodeEcho
	NodeTrace
	NodeAddResult
	NodeReference // $n positional reference
)

// ResolutionKind tags what a Symbol node resolved to after linking
// (spec §3 "Symbol resolution").
type ResolutionKind int

const (
	ResUnresolved ResolutionKind = iota
	ResInnerFunction
	ResInnerVariable
	ResStaticVariable
	ResRootFunction
	ResFunctionArgument
	ResLinkage
	ResExternal
	ResKeyword
	ResStandardLibrary
	ResUsageArgument
)

// SymbolResolution is stored on a Symbol node once the linker runs.
type SymbolResolution struct {
	Kind     ResolutionKind
	Function *Function
	Variable *Variable
	Linkage  *Linkage
	External *External
	StdlibID StdlibID
	Name     string // keyword / unresolved display name
	Args     []*ArgumentEntry
}

// ArgumentEntry is one compiled call-argument slot (spec §4.3 "Argument").
type ArgumentEntry struct {
	Name      string
	Position  int32
	Extra     bool
	Optional  bool
	ValueNode *Node // caller expression, declaration default, or nil
}

// Node is the parse tree element. Every concrete "kind" of syntax
// (literal, block, symbol, ...) is represented by the same struct with
// kind-specific fields populated, per the tagged-sum design note (§9)
// rather than a class per node kind.
type Node struct {
	Kind NodeKind

	Token Token // source token: value, line, column
	Line  int
	Column int

	Parent   *Node
	Children []*Node

	// Literal
	LitValue *Value

	// Symbol
	Name       string
	Qualified  bool // true if parsed as package:name
	Resolution *SymbolResolution

	// Operator / unary
	Operator string
	Unary    bool

	// VariableDef / FunctionDef
	DeclName string
	Scoped   bool
	Flags    DeclFlags

	// FunctionDef: declaration block (args) and body block, if present.
	Declaration *Node
	Body        *Node

	// Wait
	Wait *WaitSpec

	// Context
	TargetContext ContextID

	// Reference ($n)
	RefPosition int32

	locked bool
}

// DeclFlags mirror the scope-modifier keywords accumulated by the parser
// (public, export, global, static, track, scope) and transferred onto the
// next function/variable node (spec §4.2 "Scope modifiers").
type DeclFlags struct {
	Exported bool
	Public   bool
	Global   bool
	Static   bool
	Track    bool
	Scope    bool
}

// WaitSpec captures the parsed arguments of a `wait` statement before it
// becomes a runtime WaitState (spec §3 Wait state, §4.4 Wait).
type WaitSpec struct {
	Type  WaitType
	Unit  string
	Value int64
}

type WaitType int

const (
	WaitEvent WaitType = iota
	WaitDuration
	WaitLocation
)

var waitUnits = map[string]WaitType{
	"subcycle": WaitLocation,
	"cycle":    WaitLocation,
	"beat":     WaitLocation,
	"bar":      WaitLocation,
	"loop":     WaitLocation,
	"marker":   WaitLocation,
	"block":    WaitLocation,
	"msec":     WaitDuration,
	"frame":    WaitDuration,
	"last":     WaitEvent,
	"switch":   WaitEvent,
	"pulse":    WaitEvent,
}

func newNode(kind NodeKind, tok Token) *Node {
	return &Node{Kind: kind, Token: tok, Line: tok.Line, Column: tok.Column}
}

func (n *Node) add(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return
		}
	}
}

func (n *Node) last() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// isExpression reports whether a node kind is acceptable as an operand:
// literal, symbol, operator, block, or assignment (spec's MslOperator /
// MslAssignment wantsNode rule in original_source/MslModel.h).
func (n *Node) isExpression() bool {
	switch n.Kind {
	case NodeLiteral, NodeSymbol, NodeOperator, NodeBlock, NodeAssignment, NodeReference:
		return true
	}
	return false
}

// isFull reports whether an operator or assignment node already has every
// operand slot it will ever accept — the complement of wantsNode's capacity
// check, used by the parser to decide whether a completed expression should
// be reused whole as an operand, rather than still being filled in.
func (n *Node) isFull() bool {
	switch n.Kind {
	case NodeOperator:
		if n.Unary {
			return len(n.Children) >= 1
		}
		return len(n.Children) >= 2
	case NodeAssignment:
		return len(n.Children) >= 2
	}
	return false
}

// wantsToken mirrors the teacher/original parser's per-node virtual: does
// this node want to silently consume the given token rather than have it
// promoted to a child node? Used for reading the name of a var/function
// and wait-unit keywords.
func (n *Node) wantsToken(t Token) bool {
	switch n.Kind {
	case NodeVariableDef, NodeFunctionDef:
		if n.DeclName == "" && t.Type == TokSymbol {
			n.DeclName = t.Value
			return true
		}
		// Once named, a bare '=' before the initializer expression is
		// swallowed rather than promoted into an Assignment node — the
		// initializer becomes the declaration's single expression child
		// directly (original_source/MslModel.cpp MslVariableNode::wantsToken).
		// Functions have no initializer syntax, so this only applies to var.
		if n.Kind == NodeVariableDef && n.DeclName != "" && t.Type == TokOperator && t.Value == "=" {
			return true
		}
	case NodeContext:
		if t.Type == TokSymbol {
			switch t.Value {
			case "shell":
				n.TargetContext = ContextShell
				return true
			case "kernel":
				n.TargetContext = ContextKernel
				return true
			}
		}
	}
	return false
}

// wantsNode mirrors the teacher/original parser's per-node virtual: will
// this node accept the given fully-parsed node as a child?
func (n *Node) wantsNode(child *Node) bool {
	if n.locked {
		return false
	}
	switch n.Kind {
	case NodeBlock:
		return true
	case NodeSymbol:
		return child.Kind == NodeBlock && child.Token.Value == "(" && len(n.Children) == 0
	case NodeOperator:
		return !n.isFull() && child.isExpression()
	case NodeAssignment:
		return len(n.Children) < 2 && child.isExpression()
	case NodeVariableDef:
		return len(n.Children) < 1 && child.isExpression()
	case NodeFunctionDef:
		if child.Kind == NodeBlock && child.Token.Value == "(" && n.Declaration == nil {
			n.Declaration = child
			return true
		}
		if child.Kind == NodeBlock && child.Token.Value == "{" && n.Body == nil {
			n.Body = child
			return true
		}
		return false
	case NodeIf:
		// Three slots: condition, then-branch (expression, may be absent),
		// trailing else. A bare `if cond else X` skips straight from cond
		// to an NodeElse in slot 1; `if cond then-expr else X` fills all
		// three. Either way a trailing NodeElse must bind to its own if,
		// never fall through to become an unconditional sibling statement.
		switch len(n.Children) {
		case 0:
			return child.isExpression()
		case 1:
			return child.isExpression() || child.Kind == NodeElse
		case 2:
			return n.Children[1].Kind != NodeElse && child.Kind == NodeElse
		}
		return false
	case NodeElse, NodeCase:
		return len(n.Children) < 1 && child.isExpression()
	case NodeIn:
		return true
	case NodeEcho, NodeTrace, NodeAddResult:
		return child.isExpression()
	}
	return false
}
