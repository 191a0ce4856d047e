package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/positron-lang/positron/internal/config"
)

func TestUpdateQuitCommandReturnsQuit(t *testing.T) {
	m := newREPLModel(config.Default())
	m.textInput.SetValue(":quit")

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	rm, ok := model.(replModel)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}

	if !rm.quitting {
		t.Fatalf("quitting flag not set")
	}
	if cmd == nil {
		t.Fatalf("expected tea.Quit command")
	}
	if msg := cmd(); msg != nil {
		if _, ok := msg.(tea.QuitMsg); !ok {
			t.Fatalf("expected QuitMsg, got %T", msg)
		}
	}
}

func TestUpdateHelpToggles(t *testing.T) {
	m := newREPLModel(config.Default())
	m.textInput.SetValue(":help")

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	rm := model.(replModel)
	if cmd != nil {
		t.Fatalf("expected no command for help toggle")
	}
	if !rm.showHelp {
		t.Fatalf("help toggle should be enabled")
	}
	if rm.textInput.Value() != "" {
		t.Fatalf("input not cleared after command")
	}
}

func TestEvaluateExpressionEchoesValue(t *testing.T) {
	m := newREPLModel(config.Default())

	output, isErr, quit := m.evaluate("1 + 2")
	if isErr || quit {
		t.Fatalf("unexpected eval result: %q isErr=%v quit=%v", output, isErr, quit)
	}
	if output != "3" {
		t.Fatalf("output = %q, want 3", output)
	}
}

func TestEvaluateStatementRuns(t *testing.T) {
	m := newREPLModel(config.Default())

	output, isErr, _ := m.evaluate(`let x = 10;`)
	if isErr {
		t.Fatalf("unexpected error: %s", output)
	}
	output, isErr, _ = m.evaluate("x * 2")
	if isErr {
		t.Fatalf("unexpected error: %s", output)
	}
	if output != "20" {
		t.Fatalf("output = %q, want 20", output)
	}
}

func TestEvaluateCompileErrorReported(t *testing.T) {
	m := newREPLModel(config.Default())

	output, isErr, _ := m.evaluate("print nosuch;")
	if !isErr {
		t.Fatalf("expected error, got %q", output)
	}
	if !strings.Contains(output, "nosuch") {
		t.Fatalf("output = %q", output)
	}
}

func TestEvaluateExitQuits(t *testing.T) {
	m := newREPLModel(config.Default())

	output, isErr, quit := m.evaluate("exit 0;")
	if isErr {
		t.Fatalf("unexpected error: %s", output)
	}
	if !quit {
		t.Fatalf("exit must end the session")
	}
}

func TestDisCommandShowsBytecode(t *testing.T) {
	m := newREPLModel(config.Default())

	m, _ = m.handleCommand(":dis print 1;")
	if len(m.history) == 0 {
		t.Fatalf("no history entry")
	}
	entry := m.history[len(m.history)-1]
	if entry.isErr {
		t.Fatalf("unexpected error: %s", entry.output)
	}
	if !strings.Contains(entry.output, "OP_PRINT") {
		t.Fatalf("dump missing OP_PRINT:\n%s", entry.output)
	}
}

func TestHistoryNavigation(t *testing.T) {
	m := newREPLModel(config.Default())
	m.textInput.SetValue("1 + 1")
	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(replModel)
	m.textInput.SetValue("2 + 2")
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(replModel)

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = model.(replModel)
	if m.textInput.Value() != "2 + 2" {
		t.Fatalf("value = %q, want 2 + 2", m.textInput.Value())
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = model.(replModel)
	if m.textInput.Value() != "1 + 1" {
		t.Fatalf("value = %q, want 1 + 1", m.textInput.Value())
	}
}
