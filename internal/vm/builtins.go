package vm

import (
	"fmt"
	"math"
	"time"
)

// BuiltinNames lists the standard library globals every VM starts with.
// Compilers seed their known-global set from this.
func BuiltinNames() []string {
	return []string{"wln", "abs", "clock"}
}

var processStart = time.Now()

// registerBuiltins binds the standard library into a fresh VM's globals.
func registerBuiltins(vm *VM) {
	define := func(name string, arity int, fn NativeFn) {
		vm.globals[name] = ObjectValue(vm.heap.NewBuiltin(name, arity, nil, fn))
	}

	define("wln", 1, func(vm *VM, _ *Object, args []Value) (Value, error) {
		fmt.Fprintln(vm.stdout, args[0].String())
		return Null(), nil
	})

	define("abs", 1, func(_ *VM, _ *Object, args []Value) (Value, error) {
		if args[0].Kind != KindNumber {
			return Null(), fmt.Errorf("abs expects a number, got %s", args[0].TypeName())
		}
		return Number(math.Abs(args[0].Num)), nil
	})

	// seconds since process start
	define("clock", 0, func(_ *VM, _ *Object, _ []Value) (Value, error) {
		return Number(time.Since(processStart).Seconds()), nil
	})
}

// listMethod resolves a method name on a list, returning a builtin bound to
// the receiving list object.
func (vm *VM) listMethod(list *Object, name string) (Value, error) {
	switch name {
	case "size":
		return ObjectValue(vm.heap.NewBuiltin("size", 0, list, listSize)), nil
	case "add":
		return ObjectValue(vm.heap.NewBuiltin("add", 1, list, listAdd)), nil
	default:
		return Null(), fmt.Errorf("list has no method '%s'", name)
	}
}

func listSize(_ *VM, parent *Object, _ []Value) (Value, error) {
	return Number(float64(len(parent.Elems))), nil
}

func listAdd(_ *VM, parent *Object, args []Value) (Value, error) {
	parent.Elems = append(parent.Elems, args[0])
	return Null(), nil
}
