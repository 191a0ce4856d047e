// Package positron embeds the Positron interpreter: a one-pass compiler
// that turns scripts straight into bytecode, and a stack-based VM that
// executes it.
package positron

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/positron-lang/positron/internal/bytecode"
	"github.com/positron-lang/positron/internal/compiler"
	"github.com/positron-lang/positron/internal/config"
	"github.com/positron-lang/positron/internal/vm"
)

var log = commonlog.GetLogger("positron")

// Options tunes a new Engine. Zero values fall back to the defaults from
// the config package.
type Options struct {
	StackSize int
	MaxFrames int
	Stdout    io.Writer
}

// OptionsFromConfig maps loaded settings onto engine options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		StackSize: cfg.StackSize,
		MaxFrames: cfg.MaxFrames,
	}
}

// Engine couples one VM with the compile-time knowledge needed to feed it a
// sequence of scripts: globals defined by an earlier script stay visible to
// later ones. An Engine is safe for sequential reuse, not for concurrent
// Run calls.
type Engine struct {
	mu    sync.Mutex
	core  *vm.VM
	known []string
}

// NewEngine constructs an engine with the standard library loaded.
func NewEngine(opts Options) *Engine {
	core := vm.New()
	core.SetLimits(opts.StackSize, opts.MaxFrames)
	if opts.Stdout != nil {
		core.SetStdout(opts.Stdout)
	}
	return &Engine{
		core:  core,
		known: vm.BuiltinNames(),
	}
}

// Script is one compiled unit, ready to run on the engine that compiled it.
type Script struct {
	root    *bytecode.Function
	defined []string
}

// Result is the outcome of running a script.
type Result struct {
	// Value renders the script's final value.
	Value string
	// Exited is set when an exit statement ended the run early; ExitCode
	// is then the requested process status.
	Exited   bool
	ExitCode int
}

// Compile turns source text into a runnable script. name appears in
// diagnostics. All parse errors are reported together in the returned
// error.
func (e *Engine) Compile(name, source string) (*Script, error) {
	e.mu.Lock()
	known := append([]string(nil), e.known...)
	e.mu.Unlock()

	c := compiler.New(name, source, known)
	root, err := c.Compile()
	if err != nil {
		log.Debugf("compile failed: %s: %s", name, err.Error())
		return nil, err
	}
	log.Debugf("compiled %s: %d bytes, %d globals", name, len(root.Block.Code), len(c.DefinedGlobals()))
	return &Script{root: root, defined: c.DefinedGlobals()}, nil
}

// CompileFile reads and compiles a script file.
func (e *Engine) CompileFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return e.Compile(path, string(data))
}

// Run executes a compiled script. On success the globals the script
// defined become visible to later compiles on this engine.
func (e *Engine) Run(s *Script) (Result, error) {
	if s == nil || s.root == nil {
		return Result{}, fmt.Errorf("nil script")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome, err := e.core.Run(s.root)
	if err != nil {
		log.Debugf("run failed: %s", err.Error())
		return Result{}, convertRuntimeError(err)
	}
	e.known = append(e.known, s.defined...)
	return Result{
		Value:    outcome.Value.String(),
		Exited:   outcome.Exited,
		ExitCode: outcome.ExitCode,
	}, nil
}

// Eval compiles and runs source text in one step.
func (e *Engine) Eval(name, source string) (Result, error) {
	s, err := e.Compile(name, source)
	if err != nil {
		return Result{}, err
	}
	return e.Run(s)
}

// Disassemble writes an assembly-style dump of a compiled script.
func (e *Engine) Disassemble(s *Script, w io.Writer) error {
	if s == nil || s.root == nil {
		return fmt.Errorf("nil script")
	}
	return bytecode.NewDisassembler(w).DisassembleFunction(s.root)
}

// DumpState writes the VM's operand stack and globals for post-mortem
// inspection after a failed Run.
func (e *Engine) DumpState(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.core.DumpState(w)
}

// FrameTrace describes a single frame in a runtime error or trace.
type FrameTrace struct {
	Function string
	Line     int
	IP       int
}

// RuntimeError is a source-aware execution error surfaced from the VM.
type RuntimeError struct {
	Message string
	Frame   FrameTrace
	Stack   []FrameTrace
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e.Frame.Line > 0 {
		if e.Frame.Function != "" {
			return fmt.Sprintf("line %d in %s: %s", e.Frame.Line, e.Frame.Function, e.Message)
		}
		return fmt.Sprintf("line %d: %s", e.Frame.Line, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying cause (if any) for errors.Is/As.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Trace renders the call stack deepest frame first, one line per frame.
func (e *RuntimeError) Trace() string {
	var sb strings.Builder
	for _, fr := range e.Stack {
		name := fr.Function
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&sb, "  at %s (line %d)\n", name, fr.Line)
	}
	return sb.String()
}

// TraceInfo captures one instruction dispatch for debug hooks.
type TraceInfo struct {
	Op       string
	Function string
	Line     int
	IP       int
	Depth    int
}

// TraceHook observes instruction dispatch for debugging/profiling.
type TraceHook func(TraceInfo)

// SetTraceHook attaches a debug hook that observes instruction dispatch.
// Pass nil to detach.
func (e *Engine) SetTraceHook(h TraceHook) {
	if h == nil {
		e.core.SetTraceHook(nil)
		return
	}
	e.core.SetTraceHook(func(info vm.TraceInfo) {
		h(TraceInfo{
			Op:       info.OpName,
			Function: info.Function,
			Line:     info.Line,
			IP:       info.IP,
			Depth:    info.Depth,
		})
	})
}

func convertRuntimeError(err error) error {
	rte, ok := err.(*vm.RuntimeError)
	if !ok {
		return err
	}
	out := &RuntimeError{
		Message: rte.Message,
		Frame: FrameTrace{
			Function: rte.Frame.Function,
			Line:     rte.Frame.Line,
			IP:       rte.Frame.IP,
		},
		Cause: rte.Cause,
	}
	for _, fr := range rte.Stack {
		out.Stack = append(out.Stack, FrameTrace{
			Function: fr.Function,
			Line:     fr.Line,
			IP:       fr.IP,
		})
	}
	return out
}
