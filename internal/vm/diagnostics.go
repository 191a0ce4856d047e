package vm

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/positron-lang/positron/internal/bytecode"
)

var log = commonlog.GetLogger("positron.vm")

// TraceInfo describes a single instruction dispatch for debugging/tracing.
// Stack is a live view of the operand stack; hooks must not retain it.
type TraceInfo struct {
	Op       byte
	OpName   string
	Function string
	Line     int
	IP       int
	Depth    int
	Stack    []Value
}

// TraceHook observes instruction dispatch for debugging/profiling.
type TraceHook func(TraceInfo)

// FrameInfo captures one call frame at the time of an error or trace event.
type FrameInfo struct {
	Function string
	Line     int
	IP       int
}

// RuntimeError carries source and call stack information for VM failures.
type RuntimeError struct {
	Message string
	Frame   FrameInfo
	Stack   []FrameInfo
	Cause   error
}

func (e *RuntimeError) Error() string {
	locParts := []string{}
	if e.Frame.Line > 0 {
		locParts = append(locParts, fmt.Sprintf("line %d", e.Frame.Line))
	}
	if e.Frame.Function != "" {
		locParts = append(locParts, fmt.Sprintf("in %s", e.Frame.Function))
	}
	loc := strings.Join(locParts, " ")
	if loc != "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return e.Message
}

// Unwrap exposes the original error, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Trace renders the call stack deepest frame first, one line per frame.
func (e *RuntimeError) Trace() string {
	var sb strings.Builder
	for _, fi := range e.Stack {
		name := fi.Function
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&sb, "  at %s (line %d)\n", name, fi.Line)
	}
	return sb.String()
}

func (vm *VM) fail(fr *frame, format string, args ...interface{}) (Outcome, error) {
	msg := fmt.Sprintf(format, args...)
	return Outcome{}, vm.newRuntimeError(fr, msg, nil)
}

func (vm *VM) failErr(fr *frame, err error) (Outcome, error) {
	if re, ok := err.(*RuntimeError); ok {
		return Outcome{}, re
	}
	return Outcome{}, vm.newRuntimeError(fr, err.Error(), err)
}

func (vm *VM) newRuntimeError(fr *frame, msg string, cause error) *RuntimeError {
	log.Debugf("runtime error: %s", msg)
	return &RuntimeError{
		Message: msg,
		Frame:   vm.frameInfo(fr, vm.offsetForFrame(fr)),
		Stack:   vm.stackTrace(),
		Cause:   cause,
	}
}

func (vm *VM) trace(fr *frame, op byte) {
	if vm.traceHook == nil {
		return
	}
	info := vm.frameInfo(fr, vm.offsetForFrame(fr))
	vm.traceHook(TraceInfo{
		Op:       op,
		OpName:   bytecode.Name(op),
		Function: info.Function,
		Line:     info.Line,
		IP:       info.IP,
		Depth:    len(vm.frames),
		Stack:    vm.stack,
	})
}

func (vm *VM) stackTrace() []FrameInfo {
	if len(vm.frames) == 0 {
		return nil
	}
	trace := make([]FrameInfo, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		trace = append(trace, vm.frameInfo(fr, vm.offsetForFrame(fr)))
	}
	return trace
}

func (vm *VM) frameInfo(fr *frame, offset int) FrameInfo {
	if fr == nil || fr.fn == nil || fr.fn.Fn == nil {
		return FrameInfo{}
	}
	return FrameInfo{
		Function: fr.fn.Fn.Name,
		Line:     fr.fn.Fn.Block.LineForOffset(offset),
		IP:       offset,
	}
}

func (vm *VM) offsetForFrame(fr *frame) int {
	if fr == nil {
		return -1
	}
	if fr.lastOp >= 0 {
		return fr.lastOp
	}
	return fr.ip
}
