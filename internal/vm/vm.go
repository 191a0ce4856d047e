package vm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/positron-lang/positron/internal/bytecode"
)

const (
	// DefaultMaxStack is the operand stack capacity in value slots.
	DefaultMaxStack = 256
	// DefaultMaxFrames bounds call nesting.
	DefaultMaxFrames = 64
)

// frame is one live call. base indexes the operand stack slot of the first
// argument; the callee itself sits at base-1 and everything from base up is
// the frame's argument and local slots.
type frame struct {
	fn     *Object
	ip     int
	base   int
	lastOp int
}

// VM is a stack-based interpreter for compiled blocks. A VM keeps its
// globals between runs, so an embedder can feed it a sequence of scripts
// that share state.
type VM struct {
	stack   []Value
	frames  []frame
	globals map[string]Value
	heap    *Heap

	// realized constant pools, one per block, so repeated execution of a
	// block reuses the same heap objects for its constants
	consts map[*bytecode.Block][]Value

	maxStack  int
	maxFrames int
	stdout    io.Writer
	traceHook TraceHook

	exitCode int
	exited   bool
}

// Outcome is the result of running a script to completion.
type Outcome struct {
	Value Value
	// Exited is set when an exit statement ended the run; ExitCode is
	// then the requested process status.
	Exited   bool
	ExitCode int
}

// New constructs a VM with the standard library bound into its globals.
func New() *VM {
	vm := &VM{
		stack:     make([]Value, 0, DefaultMaxStack),
		frames:    make([]frame, 0, 16),
		globals:   make(map[string]Value),
		heap:      NewHeap(),
		consts:    make(map[*bytecode.Block][]Value),
		maxStack:  DefaultMaxStack,
		maxFrames: DefaultMaxFrames,
		stdout:    os.Stdout,
	}
	registerBuiltins(vm)
	return vm
}

// SetStdout redirects the print statement and wln builtin.
func (vm *VM) SetStdout(w io.Writer) {
	if w != nil {
		vm.stdout = w
	}
}

// SetLimits overrides the operand stack and frame stack capacities.
// Non-positive arguments keep the current limit.
func (vm *VM) SetLimits(maxStack, maxFrames int) {
	if maxStack > 0 {
		vm.maxStack = maxStack
	}
	if maxFrames > 0 {
		vm.maxFrames = maxFrames
	}
}

// SetTraceHook registers a callback invoked before every instruction
// dispatch.
func (vm *VM) SetTraceHook(h TraceHook) {
	vm.traceHook = h
}

// Heap exposes the VM's arena, mainly for inspection in tests.
func (vm *VM) Heap() *Heap {
	return vm.heap
}

// Global reads a global binding by name.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// ResetState clears transient execution state, keeping globals and heap.
func (vm *VM) ResetState() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.exited = false
	vm.exitCode = 0
}

// Run executes a compiled script root to completion.
func (vm *VM) Run(root *bytecode.Function) (Outcome, error) {
	vm.ResetState()
	if root == nil {
		return vm.fail(nil, "invalid script")
	}
	log.Debugf("run %s: %d bytes, %d objects live", root.Name, len(root.Block.Code), vm.heap.Size())
	rootObj := vm.heap.NewFunction(root)
	vm.frames = append(vm.frames, frame{fn: rootObj, ip: 0, base: 0, lastOp: -1})

	for len(vm.frames) > 0 {
		fr := vm.currentFrame()
		fr.lastOp = fr.ip
		code := fr.fn.Fn.Block.Code
		if fr.ip >= len(code) {
			ret, done := vm.finishFrame(Null())
			if done {
				return Outcome{Value: ret}, nil
			}
			continue
		}
		op := code[fr.ip]
		fr.ip++
		vm.trace(fr, op)

		switch op {
		case bytecode.OP_NOP:
			// no-op
		case bytecode.OP_CONSTANT:
			idx := vm.readU8(fr)
			pool := vm.blockConsts(fr.fn.Fn.Block)
			if int(idx) >= len(pool) {
				return vm.fail(fr, "constant index out of range")
			}
			if !vm.push(pool[idx]) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_POP:
			vm.pop()
		case bytecode.OP_DUPE:
			if !vm.push(vm.peek()) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_SWAP:
			n := len(vm.stack)
			if n >= 2 {
				vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
			}
		case bytecode.OP_PRINT:
			v := vm.pop()
			fmt.Fprintln(vm.stdout, v.String())
		case bytecode.OP_EXIT:
			v := vm.pop()
			if v.Kind != KindNumber {
				return vm.fail(fr, "exit status must be a number, got %s", v.TypeName())
			}
			vm.exited = true
			vm.exitCode = int(v.Num)
			return Outcome{Value: v, Exited: true, ExitCode: vm.exitCode}, nil
		case bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV,
			bytecode.OP_LT, bytecode.OP_GT, bytecode.OP_LTE, bytecode.OP_GTE,
			bytecode.OP_EQ, bytecode.OP_NEQ:
			b := vm.pop()
			a := vm.pop()
			res, err := binaryOp(op, a, b)
			if err != nil {
				return vm.failErr(fr, err)
			}
			if !vm.push(res) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_NEGATE:
			v := vm.pop()
			if v.Kind != KindNumber {
				return vm.fail(fr, "operand of '-' must be a number, got %s", v.TypeName())
			}
			vm.push(Number(-v.Num))
		case bytecode.OP_NOT:
			v := vm.pop()
			vm.push(Bool(!v.Truthy()))
		case bytecode.OP_GLOBAL_DEFINE:
			name, err := vm.popName()
			if err != nil {
				return vm.failErr(fr, err)
			}
			if _, exists := vm.globals[name]; exists {
				return vm.fail(fr, "global '%s' already defined", name)
			}
			vm.globals[name] = Null()
		case bytecode.OP_GLOBAL_SET:
			name, err := vm.popName()
			if err != nil {
				return vm.failErr(fr, err)
			}
			if _, exists := vm.globals[name]; !exists {
				return vm.fail(fr, "undefined global '%s'", name)
			}
			vm.globals[name] = vm.peek()
		case bytecode.OP_GLOBAL_GET:
			name, err := vm.popName()
			if err != nil {
				return vm.failErr(fr, err)
			}
			v, exists := vm.globals[name]
			if !exists {
				return vm.fail(fr, "undefined global '%s'", name)
			}
			if !vm.push(v) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_LOCAL_GET:
			slot := int(vm.readU8(fr))
			idx := fr.base + slot
			if idx >= len(vm.stack) {
				return vm.fail(fr, "local slot %d out of range", slot)
			}
			if !vm.push(vm.stack[idx]) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_LOCAL_SET:
			slot := int(vm.readU8(fr))
			idx := fr.base + slot
			if idx >= len(vm.stack) {
				return vm.fail(fr, "local slot %d out of range", slot)
			}
			// assignment is an expression: the value stays on the stack
			vm.stack[idx] = vm.peek()
		case bytecode.OP_JUMP:
			off := vm.readU16(fr)
			fr.ip += off
		case bytecode.OP_JUMP_BACK:
			off := vm.readU16(fr)
			fr.ip -= off
		case bytecode.OP_CJUMPF:
			off := vm.readU16(fr)
			if !vm.pop().Truthy() {
				fr.ip += off
			}
		case bytecode.OP_CJUMPT:
			off := vm.readU16(fr)
			if vm.pop().Truthy() {
				fr.ip += off
			}
		case bytecode.OP_CALL:
			argc := int(vm.readU8(fr))
			if err := vm.callValue(argc); err != nil {
				return vm.failErr(fr, err)
			}
		case bytecode.OP_RETURN:
			ret := vm.pop()
			result, done := vm.finishFrame(ret)
			if done {
				return Outcome{Value: result}, nil
			}
		case bytecode.OP_FIELD_GET:
			name, err := vm.popName()
			if err != nil {
				return vm.failErr(fr, err)
			}
			target := vm.pop()
			val, err := vm.fieldGet(target, name)
			if err != nil {
				return vm.failErr(fr, err)
			}
			if !vm.push(val) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_FIELD_SET:
			name, err := vm.popName()
			if err != nil {
				return vm.failErr(fr, err)
			}
			val := vm.pop()
			target := vm.pop()
			if err := fieldSet(target, name, val); err != nil {
				return vm.failErr(fr, err)
			}
			if !vm.push(val) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_LIST:
			countVal := vm.pop()
			if countVal.Kind != KindNumber {
				return vm.fail(fr, "list length must be a number")
			}
			count := int(countVal.Num)
			if count < 0 || count > len(vm.stack) {
				return vm.fail(fr, "list length out of range")
			}
			elems := make([]Value, count)
			for i := count - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			if !vm.push(ObjectValue(vm.heap.NewList(elems))) {
				return vm.fail(fr, "stack overflow")
			}
		case bytecode.OP_INDEX:
			index := vm.pop()
			target := vm.pop()
			val, err := indexGet(target, index)
			if err != nil {
				return vm.failErr(fr, err)
			}
			if !vm.push(val) {
				return vm.fail(fr, "stack overflow")
			}
		default:
			return vm.fail(fr, "unknown opcode %d", op)
		}
	}

	return Outcome{Value: Null()}, nil
}

// callValue dispatches a call to the value sitting beneath argc arguments
// on the stack.
func (vm *VM) callValue(argc int) error {
	calleeIdx := len(vm.stack) - argc - 1
	if calleeIdx < 0 {
		return fmt.Errorf("stack underflow on call")
	}
	callee := vm.stack[calleeIdx]
	if callee.Kind != KindObject {
		return fmt.Errorf("cannot call a %s", callee.TypeName())
	}

	switch obj := callee.Obj; obj.Type {
	case ObjFunction:
		if argc != obj.Fn.Arity {
			return fmt.Errorf("%s expects %d arguments, got %d", obj.Fn.Name, obj.Fn.Arity, argc)
		}
		if len(vm.frames) >= vm.maxFrames {
			return fmt.Errorf("call stack overflow")
		}
		vm.frames = append(vm.frames, frame{fn: obj, ip: 0, base: len(vm.stack) - argc, lastOp: -1})
		return nil
	case ObjBuiltin:
		if argc != obj.Arity {
			return fmt.Errorf("%s expects %d arguments, got %d", obj.Name, obj.Arity, argc)
		}
		args := make([]Value, argc)
		copy(args, vm.stack[len(vm.stack)-argc:])
		res, err := obj.Native(vm, obj.Parent, args)
		if err != nil {
			return err
		}
		vm.stack = vm.stack[:calleeIdx]
		if !vm.push(res) {
			return fmt.Errorf("stack overflow")
		}
		return nil
	case ObjStructTemplate:
		if argc != 0 {
			return fmt.Errorf("%s takes no arguments, got %d", obj.Tmpl.Name, argc)
		}
		vm.stack[calleeIdx] = ObjectValue(vm.heap.NewInstance(obj))
		return nil
	default:
		return fmt.Errorf("cannot call a %s", obj.Type)
	}
}

// finishFrame pops the current frame, truncating the stack through the
// callee slot and leaving the return value in its place.
func (vm *VM) finishFrame(ret Value) (Value, bool) {
	fr := vm.currentFrame()
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		vm.stack = vm.stack[:0]
		return ret, true
	}
	vm.stack = vm.stack[:fr.base-1]
	vm.push(ret)
	return ret, false
}

func (vm *VM) fieldGet(target Value, name string) (Value, error) {
	if target.Kind != KindObject {
		return Null(), fmt.Errorf("cannot access field '%s' on a %s", name, target.TypeName())
	}
	switch obj := target.Obj; obj.Type {
	case ObjStructInstance:
		v, ok := obj.Fields[name]
		if !ok {
			return Null(), fmt.Errorf("%s has no field '%s'", obj.Template.Tmpl.Name, name)
		}
		return v, nil
	case ObjList:
		return vm.listMethod(obj, name)
	default:
		return Null(), fmt.Errorf("cannot access field '%s' on a %s", name, obj.Type)
	}
}

func fieldSet(target Value, name string, val Value) error {
	if target.Kind != KindObject || target.Obj.Type != ObjStructInstance {
		return fmt.Errorf("cannot assign field '%s' on a %s", name, target.TypeName())
	}
	obj := target.Obj
	if _, ok := obj.Fields[name]; !ok {
		return fmt.Errorf("%s has no field '%s'", obj.Template.Tmpl.Name, name)
	}
	obj.Fields[name] = val
	return nil
}

func indexGet(target, index Value) (Value, error) {
	if target.Kind != KindObject || target.Obj.Type != ObjList {
		return Null(), fmt.Errorf("cannot index a %s", target.TypeName())
	}
	if index.Kind != KindNumber {
		return Null(), fmt.Errorf("list index must be a number, got %s", index.TypeName())
	}
	i := int(index.Num)
	elems := target.Obj.Elems
	if i < 0 || i >= len(elems) {
		return Null(), fmt.Errorf("list index %d out of range [0, %d)", i, len(elems))
	}
	return elems[i], nil
}

func binaryOp(op byte, a, b Value) (Value, error) {
	switch op {
	case bytecode.OP_EQ:
		return Bool(Equal(a, b)), nil
	case bytecode.OP_NEQ:
		return Bool(!Equal(a, b)), nil
	}

	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Null(), fmt.Errorf("operands of %s must be numbers, got %s and %s",
			strings.TrimPrefix(bytecode.Name(op), "OP_"), a.TypeName(), b.TypeName())
	}
	switch op {
	case bytecode.OP_ADD:
		return Number(a.Num + b.Num), nil
	case bytecode.OP_SUB:
		return Number(a.Num - b.Num), nil
	case bytecode.OP_MUL:
		return Number(a.Num * b.Num), nil
	case bytecode.OP_DIV:
		if b.Num == 0 {
			return Null(), fmt.Errorf("division by zero")
		}
		return Number(a.Num / b.Num), nil
	case bytecode.OP_LT:
		return Bool(a.Num < b.Num), nil
	case bytecode.OP_LTE:
		return Bool(a.Num <= b.Num), nil
	case bytecode.OP_GT:
		return Bool(a.Num > b.Num), nil
	case bytecode.OP_GTE:
		return Bool(a.Num >= b.Num), nil
	}
	return Null(), fmt.Errorf("unsupported op")
}

// blockConsts realizes a block's constant pool into runtime values, once
// per block. Realizing once keeps object identity stable: every execution
// of a struct declaration yields the same template object.
func (vm *VM) blockConsts(b *bytecode.Block) []Value {
	if pool, ok := vm.consts[b]; ok {
		return pool
	}
	pool := make([]Value, len(b.Consts))
	for i, c := range b.Consts {
		switch v := c.(type) {
		case nil:
			pool[i] = Null()
		case bool:
			pool[i] = Bool(v)
		case float64:
			pool[i] = Number(v)
		case string:
			pool[i] = ObjectValue(vm.heap.NewString(v))
		case *bytecode.Function:
			pool[i] = ObjectValue(vm.heap.NewFunction(v))
		case *bytecode.StructTemplate:
			pool[i] = ObjectValue(vm.heap.NewTemplate(v))
		default:
			pool[i] = Null()
		}
	}
	vm.consts[b] = pool
	return pool
}

func (vm *VM) currentFrame() *frame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) push(v Value) bool {
	if len(vm.stack) >= vm.maxStack {
		return false
	}
	vm.stack = append(vm.stack, v)
	return true
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		return Null()
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek() Value {
	if len(vm.stack) == 0 {
		return Null()
	}
	return vm.stack[len(vm.stack)-1]
}

// popName pops a value that must be a string constant naming a global or
// field.
func (vm *VM) popName() (string, error) {
	v := vm.pop()
	if v.Kind != KindObject || v.Obj.Type != ObjString {
		return "", fmt.Errorf("name operand is not a string")
	}
	return v.Obj.Str, nil
}

func (vm *VM) readU8(fr *frame) byte {
	b := fr.fn.Fn.Block.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readU16(fr *frame) int {
	code := fr.fn.Fn.Block.Code
	hi := code[fr.ip]
	lo := code[fr.ip+1]
	fr.ip += 2
	return int(hi)<<8 | int(lo)
}

// DumpState writes the operand stack and global bindings, deepest stack
// slot first, for post-mortem inspection.
func (vm *VM) DumpState(w io.Writer) {
	fmt.Fprintf(w, "stack (%d):\n", len(vm.stack))
	for i := len(vm.stack) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "  [%3d] %s\n", i, vm.stack[i].String())
	}
	names := make([]string, 0, len(vm.globals))
	for name := range vm.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "globals (%d):\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, vm.globals[name].String())
	}
}
