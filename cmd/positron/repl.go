package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	positron "github.com/positron-lang/positron"
	"github.com/positron-lang/positron/internal/config"
)

var (
	accentColor = lipgloss.Color("#8B5CF6")
	okColor     = lipgloss.Color("#10B981")
	errColor    = lipgloss.Color("#EF4444")
	mutedColor  = lipgloss.Color("#6B7280")

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(okColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)
)

type historyEntry struct {
	input  string
	output string
	isErr  bool
}

type replModel struct {
	textInput   textinput.Model
	engine      *positron.Engine
	capture     *bytes.Buffer
	cfg         config.Config
	history     []historyEntry
	cmdHistory  []string
	historyIdx  int
	width       int
	height      int
	showHelp    bool
	quitting    bool
	initialized bool
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	CtrlC key.Binding
	CtrlD key.Binding
	CtrlL key.Binding
}

var keys = keyMap{
	Up:    key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous input")),
	Down:  key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next input")),
	Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "evaluate")),
	CtrlC: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	CtrlD: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "quit")),
	CtrlL: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
}

func newREPLModel(cfg config.Config) replModel {
	ti := textinput.New()
	ti.Placeholder = "type a statement..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "positron> "

	capture := &bytes.Buffer{}
	opts := positron.OptionsFromConfig(cfg)
	opts.Stdout = capture

	return replModel{
		textInput:  ti,
		engine:     positron.NewEngine(opts),
		capture:    capture,
		cfg:        cfg,
		historyIdx: -1,
	}
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.EnterAltScreen)
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 12
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.CtrlC), key.Matches(msg, keys.CtrlD):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.CtrlL):
			m.history = nil
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.cmdHistory) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.cmdHistory) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.cmdHistory)-1 {
					m.historyIdx++
					m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.textInput.SetValue("")
				}
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Enter):
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, ":") {
				var cmd tea.Cmd
				m, cmd = m.handleCommand(input)
				m.textInput.SetValue("")
				m.historyIdx = -1
				return m, cmd
			}

			output, isErr, quit := m.evaluate(input)
			m.history = append(m.history, historyEntry{input: input, output: output, isErr: isErr})
			m.cmdHistory = append(m.cmdHistory, input)
			m.textInput.SetValue("")
			m.historyIdx = -1
			if quit {
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	parts := strings.SplitN(input, " ", 2)

	switch parts[0] {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":clear", ":c":
		m.history = nil
	case ":dis", ":d":
		if len(parts) < 2 {
			m.history = append(m.history, historyEntry{input: input, output: "usage: :dis <code>", isErr: true})
			break
		}
		script, err := m.engine.Compile("repl", parts[1])
		if err != nil {
			m.history = append(m.history, historyEntry{input: input, output: err.Error(), isErr: true})
			break
		}
		var dump strings.Builder
		if err := m.engine.Disassemble(script, &dump); err != nil {
			m.history = append(m.history, historyEntry{input: input, output: err.Error(), isErr: true})
			break
		}
		m.history = append(m.history, historyEntry{input: input, output: strings.TrimRight(dump.String(), "\n")})
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	default:
		m.history = append(m.history, historyEntry{
			input:  input,
			output: fmt.Sprintf("unknown command %s (try :help)", parts[0]),
			isErr:  true,
		})
	}
	return m, nil
}

// evaluate runs one line of input. A bare expression is wrapped in a print
// statement so its value echoes back; anything else runs as written.
func (m replModel) evaluate(input string) (output string, isErr, quit bool) {
	script, err := m.compileLine(input)
	if err != nil {
		return err.Error(), true, false
	}

	m.capture.Reset()
	result, err := m.engine.Run(script)
	printed := strings.TrimRight(m.capture.String(), "\n")
	if err != nil {
		if printed != "" {
			return printed + "\n" + err.Error(), true, false
		}
		return err.Error(), true, false
	}
	if result.Exited {
		note := fmt.Sprintf("exit %d", result.ExitCode)
		if printed != "" {
			return printed + "\n" + note, false, true
		}
		return note, false, true
	}
	if printed == "" {
		printed = mutedStyle.Render("ok")
	}
	return printed, false, false
}

func (m replModel) compileLine(input string) (*positron.Script, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(input), ";")
	if !strings.Contains(trimmed, ";") {
		if script, err := m.engine.Compile("repl", "print "+trimmed+";"); err == nil {
			return script, nil
		}
	}
	return m.engine.Compile("repl", input)
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}
	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Positron") + " " + mutedStyle.Render("interactive session") + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", min(m.width-2, 60))) + "\n\n")

	reserved := 7
	if m.showHelp {
		reserved += 8
	}
	available := m.height - reserved

	// each entry renders as roughly three lines
	historyStart := 0
	if available > 0 && len(m.history)*3 > available {
		historyStart = len(m.history) - available/3
		if historyStart < 0 {
			historyStart = 0
		}
	}
	for i := historyStart; i < len(m.history); i++ {
		entry := m.history[i]
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		if entry.isErr {
			b.WriteString("  " + errorStyle.Render(entry.output) + "\n")
		} else {
			b.WriteString("  " + resultStyle.Render(entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(renderHelp())
		b.WriteString("\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString(mutedStyle.Render(":help commands  ctrl+l clear  ctrl+c quit"))
	return b.String()
}

func renderHelp() string {
	lines := []string{
		headerStyle.Render("Commands"),
		"  :help        toggle this help",
		"  :dis <code>  show bytecode for a snippet",
		"  :clear       clear the screen",
		"  :quit        leave the session",
		"",
		"Globals persist between inputs; bare expressions echo their value.",
	}
	return mutedStyle.Render(strings.Join(lines, "\n"))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func runREPL(cfg config.Config) error {
	p := tea.NewProgram(newREPLModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
