package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Value is one slot on the operand stack: a tag plus inline payload for the
// immediate kinds and a heap pointer for everything else. Values are copied
// freely; objects alias through the pointer.
type Value struct {
	Kind Kind
	B    bool
	Num  float64
	Obj  *Object
}

func Null() Value            { return Value{Kind: KindNull} }
func Bool(b bool) Value      { return Value{Kind: KindBool, B: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

func ObjectValue(o *Object) Value { return Value{Kind: KindObject, Obj: o} }

// Truthy reports how a value behaves as a condition: null and false are
// falsy, everything else truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.B
	default:
		return true
	}
}

// Equal compares two values. Strings compare by contents, every other
// object kind by identity.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.B == b.B
	case KindNumber:
		return a.Num == b.Num
	default:
		if a.Obj.Type == ObjString && b.Obj.Type == ObjString {
			return a.Obj.Str == b.Obj.Str
		}
		return a.Obj == b.Obj
	}
}

// TypeName names the value's kind as shown in diagnostics; objects report
// their object type.
func (v Value) TypeName() string {
	if v.Kind == KindObject {
		return v.Obj.Type.String()
	}
	return v.Kind.String()
}

// String renders the value the way the print statement shows it.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindNumber:
		return formatNumber(v.Num)
	}

	o := v.Obj
	switch o.Type {
	case ObjString:
		return o.Str
	case ObjFunction:
		return fmt.Sprintf("<fun %s>", o.Fn.Name)
	case ObjBuiltin:
		return fmt.Sprintf("<builtin %s>", o.Name)
	case ObjStructTemplate:
		return fmt.Sprintf("<struct %s>", o.Tmpl.Name)
	case ObjStructInstance:
		return formatInstance(o)
	case ObjList:
		return formatList(o)
	}
	return "<object>"
}

// formatNumber prints integral values without a decimal part.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func formatInstance(o *Object) string {
	tmpl := o.Template.Tmpl
	names := make([]string, 0, len(tmpl.Fields))
	for name := range tmpl.Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return tmpl.Fields[names[i]] < tmpl.Fields[names[j]]
	})

	var sb strings.Builder
	sb.WriteString(tmpl.Name)
	sb.WriteString(" { ")
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(o.Fields[name].String())
	}
	sb.WriteString(" }")
	return sb.String()
}

func formatList(o *Object) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, el := range o.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(el.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
