package msl

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the dynamic type carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindEnum
	KindKeyword
	KindList
)

// maxBindingName mirrors the teacher's ShortString(≤128) binding name cap.
const maxBindingName = 128

// Value is the dynamically typed scalar that flows through the evaluator.
// It doubles as a cons cell: a Value of KindList carries Head/Tail and the
// scalar fields are unused. Lists are built by appending at the tail and
// are otherwise treated as immutable in shape from the script's view.
type Value struct {
	Kind ValueKind

	i   int64
	f   float64
	b   bool
	s   string
	ord int32 // enum ordinal

	Head *Value
	Tail *Value
}

func NullValue() *Value { return &Value{Kind: KindNull} }

func IntValue(i int64) *Value { return &Value{Kind: KindInt, i: i} }

func FloatValue(f float64) *Value { return &Value{Kind: KindFloat, f: f} }

func BoolValue(b bool) *Value { return &Value{Kind: KindBool, b: b} }

func StringValue(s string) *Value { return &Value{Kind: KindString, s: s} }

func KeywordValue(s string) *Value { return &Value{Kind: KindKeyword, s: s} }

func EnumValue(ordinal int32, name string) *Value {
	return &Value{Kind: KindEnum, ord: ordinal, s: name}
}

// Cons builds a list cell with head and the remaining tail (nil for none).
func Cons(head *Value, tail *Value) *Value {
	return &Value{Kind: KindList, Head: head, Tail: tail}
}

// AppendList builds a new list by walking to the end of list and linking
// a fresh cell for v. A nil list starts a new single-element list.
func AppendList(list *Value, v *Value) *Value {
	if list == nil || list.Kind != KindList {
		return Cons(v, nil)
	}
	head := Cons(list.Head, nil)
	cursor := head
	for n := list.Tail; n != nil; n = n.Tail {
		cursor.Tail = Cons(n.Head, nil)
		cursor = cursor.Tail
	}
	cursor.Tail = Cons(v, nil)
	return head
}

func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

func (v *Value) IsList() bool { return v != nil && v.Kind == KindList }

// Int coerces the value to an int64, following the same loose rules the
// teacher's arithmetic library used: bools are 0/1, strings parse, floats
// truncate, enums give their ordinal, everything else is 0.
func (v *Value) Int() int64 {
	if v == nil {
		return 0
	}
	switch v.Kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindEnum:
		return int64(v.ord)
	case KindString, KindKeyword:
		n, _ := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		return n
	}
	return 0
}

func (v *Value) Float() float64 {
	if v == nil {
		return 0
	}
	switch v.Kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString, KindKeyword:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f
	}
	return 0
}

func (v *Value) Bool() bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString, KindKeyword:
		return v.s != "" && v.s != "false"
	case KindNull:
		return false
	}
	return true
}

// EnumOrdinal returns an enum's ordinal, or 0 for non-enums.
func (v *Value) EnumOrdinal() int32 {
	if v == nil || v.Kind != KindEnum {
		return 0
	}
	return v.ord
}

// String renders the value's display form. For an unresolved bare symbol
// this is how MSL evaluates "itself as a string" (spec §4.3 resolution,
// §8 property 11).
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString, KindKeyword:
		return v.s
	case KindEnum:
		return v.s
	case KindList:
		var sb strings.Builder
		sb.WriteByte('(')
		for n := v; n != nil && n.Kind == KindList; n = n.Tail {
			if n != v {
				sb.WriteByte(' ')
			}
			sb.WriteString(n.Head.String())
		}
		sb.WriteByte(')')
		return sb.String()
	}
	return fmt.Sprintf("%v", v.i)
}

// Equal implements the evaluator's `==` semantics (spec §4.4 Operator):
// string-insensitive equality when either side is a String, integer
// equality when one side is an Enum compared by ordinal OR by string form
// of the other (this is what lets `switchQuantize == loop` evaluate true),
// integer equality otherwise.
func (a *Value) Equal(b *Value) bool {
	if a == nil {
		a = NullValue()
	}
	if b == nil {
		b = NullValue()
	}
	if a.Kind == KindString || b.Kind == KindString {
		return strings.EqualFold(a.String(), b.String())
	}
	if a.Kind == KindEnum {
		return a.ord == int32(b.Int()) || strings.EqualFold(a.s, b.String())
	}
	if b.Kind == KindEnum {
		return b.ord == int32(a.Int()) || strings.EqualFold(b.s, a.String())
	}
	if a.Kind == KindFloat || b.Kind == KindFloat {
		return a.Float() == b.Float()
	}
	return a.Int() == b.Int()
}

// Binding pairs a name with a value, plus the positional index used to
// resolve $1..$n references inside a function body (spec §3 Binding).
type Binding struct {
	Name     string
	Value    *Value
	Position int32
}

func NewBinding(name string, value *Value, position int32) *Binding {
	if len(name) > maxBindingName {
		name = name[:maxBindingName]
	}
	return &Binding{Name: name, Value: value, Position: position}
}
