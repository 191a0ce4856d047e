package vm

import (
	"github.com/positron-lang/positron/internal/bytecode"
)

// ObjType tags the variant of a heap object.
type ObjType int

const (
	ObjString ObjType = iota
	ObjFunction
	ObjBuiltin
	ObjStructTemplate
	ObjStructInstance
	ObjList
)

func (t ObjType) String() string {
	switch t {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjBuiltin:
		return "builtin"
	case ObjStructTemplate:
		return "struct template"
	case ObjStructInstance:
		return "struct instance"
	case ObjList:
		return "list"
	}
	return "unknown"
}

// NativeFn is the implementation of a builtin. parent is the bound receiver
// for method-style builtins and nil for free functions.
type NativeFn func(vm *VM, parent *Object, args []Value) (Value, error)

// Object is a heap-allocated value. One struct covers every object type;
// the Type tag decides which fields are meaningful.
type Object struct {
	Type ObjType

	// ObjString
	Str string

	// ObjFunction
	Fn *bytecode.Function

	// ObjBuiltin
	Name   string
	Arity  int
	Native NativeFn
	Parent *Object

	// ObjStructTemplate
	Tmpl *bytecode.StructTemplate

	// ObjStructInstance
	Template *Object
	Fields   map[string]Value

	// ObjList
	Elems []Value
}

// Heap owns every object allocated during a run. Objects are appended and
// never freed individually; Release drops the whole arena when the run's
// results are no longer needed.
type Heap struct {
	objects []*Object
}

func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) track(o *Object) *Object {
	h.objects = append(h.objects, o)
	return o
}

// Size reports how many objects the arena currently holds.
func (h *Heap) Size() int {
	return len(h.objects)
}

// Release drops every object the arena owns.
func (h *Heap) Release() {
	h.objects = nil
}

func (h *Heap) NewString(s string) *Object {
	return h.track(&Object{Type: ObjString, Str: s})
}

func (h *Heap) NewFunction(fn *bytecode.Function) *Object {
	return h.track(&Object{Type: ObjFunction, Fn: fn})
}

func (h *Heap) NewBuiltin(name string, arity int, parent *Object, fn NativeFn) *Object {
	return h.track(&Object{Type: ObjBuiltin, Name: name, Arity: arity, Parent: parent, Native: fn})
}

func (h *Heap) NewTemplate(tmpl *bytecode.StructTemplate) *Object {
	return h.track(&Object{Type: ObjStructTemplate, Tmpl: tmpl})
}

// NewInstance allocates a struct instance with every declared field set to
// null.
func (h *Heap) NewInstance(template *Object) *Object {
	fields := make(map[string]Value, len(template.Tmpl.Fields))
	for name := range template.Tmpl.Fields {
		fields[name] = Null()
	}
	return h.track(&Object{Type: ObjStructInstance, Template: template, Fields: fields})
}

func (h *Heap) NewList(elems []Value) *Object {
	return h.track(&Object{Type: ObjList, Elems: elems})
}
