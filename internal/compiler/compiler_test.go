package compiler_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/positron-lang/positron/internal/bytecode"
	"github.com/positron-lang/positron/internal/compiler"
)

var stdlib = []string{"wln", "abs", "clock"}

func compile(t *testing.T, src string) *bytecode.Function {
	t.Helper()
	fn, err := compiler.New("test", src, stdlib).Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return fn
}

func compileError(t *testing.T, src string) error {
	t.Helper()
	_, err := compiler.New("test", src, stdlib).Compile()
	if err == nil {
		t.Fatalf("expected compile error, got none")
	}
	return err
}

func TestExpressionStatementEmitsPop(t *testing.T) {
	fn := compile(t, "1 + 2;")
	code := fn.Block.Code
	// CONSTANT 0, CONSTANT 1, ADD, POP, then the implicit return
	want := []byte{
		bytecode.OP_CONSTANT, 0,
		bytecode.OP_CONSTANT, 1,
		bytecode.OP_ADD,
		bytecode.OP_POP,
		bytecode.OP_CONSTANT, 2,
		bytecode.OP_RETURN,
	}
	if len(code) != len(want) {
		t.Fatalf("code = %v, want %v", code, want)
	}
	for i := range want {
		if code[i] != want[i] {
			t.Fatalf("code[%d] = %d, want %d (code %v)", i, code[i], want[i], code)
		}
	}
}

func TestStringConstantsDeduplicated(t *testing.T) {
	fn := compile(t, `let a = 1; a = 2; a = 3;`)
	count := 0
	for _, c := range fn.Block.Consts {
		if s, ok := c.(string); ok && s == "a" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("'a' appears %d times in the pool, want 1", count)
	}
}

// decode a forward jump's operand and verify it lands where expected
func readJumpTarget(code []byte, opPos int) int {
	off := int(code[opPos+1])<<8 | int(code[opPos+2])
	return opPos + 3 + off
}

func TestIfJumpLandsAfterThen(t *testing.T) {
	fn := compile(t, "if (true) 1; 2;")
	code := fn.Block.Code

	jumpPos := -1
	for i := 0; i < len(code); {
		if code[i] == bytecode.OP_CJUMPF {
			jumpPos = i
			break
		}
		i += 1 + bytecode.OperandWidth(code[i])
	}
	if jumpPos < 0 {
		t.Fatalf("no CJUMPF in %v", code)
	}
	target := readJumpTarget(code, jumpPos)
	// the then-branch is CONSTANT n, POP: three bytes past the jump
	if target != jumpPos+3+3 {
		t.Fatalf("jump target %d, want %d (code %v)", target, jumpPos+6, code)
	}
	if code[target] != bytecode.OP_CONSTANT {
		t.Fatalf("jump target is opcode %d, want OP_CONSTANT", code[target])
	}
}

func TestIfElseJumpsSkipEachOther(t *testing.T) {
	fn := compile(t, "if (true) 1; else 2;")
	code := fn.Block.Code

	var cjump, jump int = -1, -1
	for i := 0; i < len(code); {
		switch code[i] {
		case bytecode.OP_CJUMPF:
			cjump = i
		case bytecode.OP_JUMP:
			jump = i
		}
		i += 1 + bytecode.OperandWidth(code[i])
	}
	if cjump < 0 || jump < 0 {
		t.Fatalf("missing jumps in %v", code)
	}
	// false path enters the else branch right after the unconditional jump
	if got := readJumpTarget(code, cjump); got != jump+3 {
		t.Fatalf("CJUMPF target %d, want %d", got, jump+3)
	}
	// true path jumps over the else branch: CONSTANT n, POP
	if got := readJumpTarget(code, jump); got != jump+3+3 {
		t.Fatalf("JUMP target %d, want %d", got, jump+6)
	}
}

func TestWhileLoopJumpsBackToCondition(t *testing.T) {
	fn := compile(t, "while (false) 1;")
	code := fn.Block.Code

	backPos := -1
	for i := 0; i < len(code); {
		if code[i] == bytecode.OP_JUMP_BACK {
			backPos = i
			break
		}
		i += 1 + bytecode.OperandWidth(code[i])
	}
	if backPos < 0 {
		t.Fatalf("no OP_JUMP_BACK in %v", code)
	}
	off := int(code[backPos+1])<<8 | int(code[backPos+2])
	target := backPos + 3 - off
	if target != 0 {
		t.Fatalf("loop target %d, want 0 (code %v)", target, code)
	}
}

func TestFunctionCompiledAsConstant(t *testing.T) {
	fn := compile(t, `
fun add(a, b) {
	return a + b;
}
`)
	var inner *bytecode.Function
	for _, c := range fn.Block.Consts {
		if f, ok := c.(*bytecode.Function); ok {
			inner = f
		}
	}
	if inner == nil {
		t.Fatalf("no function constant in pool")
	}
	if inner.Name != "add" || inner.Arity != 2 {
		t.Fatalf("got %s/%d, want add/2", inner.Name, inner.Arity)
	}
	// parameters resolve as local slots 0 and 1
	code := inner.Block.Code
	found := false
	for i := 0; i+1 < len(code); {
		if code[i] == bytecode.OP_LOCAL_GET && code[i+1] == 0 {
			found = true
			break
		}
		i += 1 + bytecode.OperandWidth(code[i])
	}
	if !found {
		t.Fatalf("parameter access not compiled to LOCAL_GET 0: %v", code)
	}
}

func TestStructTemplateRecordsFieldOrder(t *testing.T) {
	fn := compile(t, "struct Point { x, y, }")
	var tmpl *bytecode.StructTemplate
	for _, c := range fn.Block.Consts {
		if s, ok := c.(*bytecode.StructTemplate); ok {
			tmpl = s
		}
	}
	if tmpl == nil {
		t.Fatalf("no template constant in pool")
	}
	if tmpl.Name != "Point" || tmpl.Fields["x"] != 0 || tmpl.Fields["y"] != 1 {
		t.Fatalf("template = %+v", tmpl)
	}
}

func TestBlockLocalsPoppedAtScopeEnd(t *testing.T) {
	fn := compile(t, "{ let a = 1; let b = 2; }")
	code := fn.Block.Code
	pops := 0
	for i := 0; i < len(code); {
		if code[i] == bytecode.OP_POP {
			pops++
		}
		i += 1 + bytecode.OperandWidth(code[i])
	}
	if pops != 2 {
		t.Fatalf("%d pops, want 2 (code %v)", pops, code)
	}
}

func TestUndefinedVariable(t *testing.T) {
	err := compileError(t, "print nope;")
	if !strings.Contains(err.Error(), "undefined variable 'nope'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUseBeforeDeclaration(t *testing.T) {
	// globals resolve top to bottom; a later declaration does not help
	err := compileError(t, "print later; let later = 1;")
	if !strings.Contains(err.Error(), "undefined variable 'later'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidAssignmentTarget(t *testing.T) {
	err := compileError(t, "let a = 1; let b = 2; a + b = 3;")
	if !strings.Contains(err.Error(), "invalid assignment target") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDuplicateLocalInScope(t *testing.T) {
	err := compileError(t, "{ let a = 1; let a = 2; }")
	if !strings.Contains(err.Error(), "already declared") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShadowingInNestedScopeAllowed(t *testing.T) {
	compile(t, "{ let a = 1; { let a = 2; } }")
}

func TestLocalNotVisibleAfterBlock(t *testing.T) {
	err := compileError(t, "{ let a = 1; } print a;")
	if !strings.Contains(err.Error(), "undefined variable 'a'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNestedFunctionRejected(t *testing.T) {
	err := compileError(t, `
fun outer() {
	fun inner() { return 1; }
}
`)
	if !strings.Contains(err.Error(), "top level") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGlobalRedefinitionRejected(t *testing.T) {
	err := compileError(t, "let a = 1; let a = 2;")
	if !strings.Contains(err.Error(), "already defined") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecursionResolves(t *testing.T) {
	compile(t, `
fun fact(n) {
	if (n <= 1) return 1;
	return n * fact(n - 1);
}
`)
}

func TestMultipleErrorsReported(t *testing.T) {
	err := compileError(t, `
print missing1;
let ok = 1;
print missing2;
`)
	msg := err.Error()
	if !strings.Contains(msg, "missing1") || !strings.Contains(msg, "missing2") {
		t.Fatalf("expected both errors, got: %v", err)
	}
}

func TestErrorsCarryLineNumbers(t *testing.T) {
	err := compileError(t, "let a = 1;\nprint nope;")
	if !strings.Contains(err.Error(), "[line 2]") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnterminatedString(t *testing.T) {
	compileError(t, `print "open;`)
}

func TestStrayCharacter(t *testing.T) {
	err := compileError(t, "let a = 1 @ 2;")
	if !strings.Contains(err.Error(), "@") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTooManyConstants(t *testing.T) {
	// distinct names and literals so the pool cannot be shared
	var prog strings.Builder
	for i := 0; i < 300; i++ {
		prog.WriteString("let v")
		prog.WriteString(string(rune('a' + i%26)))
		prog.WriteString(strings.Repeat("x", i/26))
		prog.WriteString(" = ")
		prog.WriteString(strconv.Itoa(i))
		prog.WriteString(".5;\n")
	}
	err := compileError(t, prog.String())
	if !strings.Contains(err.Error(), "too many constants") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefinedGlobalsTracked(t *testing.T) {
	c := compiler.New("test", "let a = 1; fun f() { return 1; } struct S { v, }", stdlib)
	if _, err := c.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := strings.Join(c.DefinedGlobals(), ",")
	if got != "a,f,S" {
		t.Fatalf("defined globals = %q, want a,f,S", got)
	}
}
