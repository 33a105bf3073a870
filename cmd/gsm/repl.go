package main

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xplshn/gsm/pkg/compiler"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/ir"
	"github.com/xplshn/gsm/pkg/util"
)

var (
	accentColor    = lipgloss.Color("#3B82F6")
	successColor   = lipgloss.Color("#10B981")
	warnColor      = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#F59E0B")

	promptStyle   = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	resultStyle   = lipgloss.NewStyle().Foreground(successColor)
	warnStyle     = lipgloss.NewStyle().Foreground(warnColor)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle   = lipgloss.NewStyle().Foreground(accentColor).Bold(true).Padding(0, 1)
	helpKeyStyle  = lipgloss.NewStyle().Foreground(highlightColor)
	helpDescStyle = lipgloss.NewStyle().Foreground(mutedColor)
	borderStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

type historyEntry struct {
	input    string
	output   string
	warnings []string
	isErr    bool
	// id fingerprints the emitted listing; equal ids mean equal code.
	id uint64
}

type replModel struct {
	textInput   textinput.Model
	cfg         *config.Config
	session     *ir.Program
	seen        map[uint64]int
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
	CtrlH key.Binding
}

var keys = keyMap{
	Up:    key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous input")),
	Down:  key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next input")),
	Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "compile")),
	CtrlC: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	CtrlD: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "quit")),
	CtrlL: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
	CtrlH: key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "toggle help")),
}

func newREPLModel(cfg *config.Config) replModel {
	ti := textinput.New()
	ti.Placeholder = "A = B + 3 * C"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "gsm> "

	return replModel{
		textInput:  ti,
		cfg:        cfg,
		session:    &ir.Program{},
		seen:       make(map[uint64]int),
		historyIdx: -1,
	}
}

func (m replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.CtrlC), key.Matches(msg, keys.CtrlD):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.CtrlL):
			m.clearHistory()
			return m, nil

		case key.Matches(msg, keys.CtrlH):
			m.showHelp = !m.showHelp
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
			m.textInput.SetValue("")
			m.historyIdx = -1
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, ":") {
				return m.handleCommand(input)
			}
			m.history = append(m.history, m.evaluate(input))
			m.cmdHistory = append(m.cmdHistory, input)
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	parts := strings.Fields(input)
	note := func(output string, isErr bool) {
		m.history = append(m.history, historyEntry{input: input, output: output, isErr: isErr})
	}

	switch parts[0] {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":clear", ":c":
		m.clearHistory()
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	case ":std":
		if len(parts) != 2 {
			note("current std: "+m.cfg.StdName, false)
			break
		}
		if err := m.cfg.ApplyStd(parts[1]); err != nil {
			note(err.Error(), true)
			break
		}
		note("std set to "+m.cfg.StdName, false)
	case ":set":
		if err := m.cfg.ApplyDirective(strings.Join(parts[1:], " ")); err != nil {
			note(err.Error(), true)
			break
		}
		note("applied "+strings.Join(parts[1:], " "), false)
	case ":program", ":p":
		if m.session.Len() == 0 {
			note("session program is empty", false)
			break
		}
		note(m.session.String(), false)
	case ":reset", ":r":
		m.session = &ir.Program{}
		m.seen = make(map[uint64]int)
		note("session program reset", false)
	default:
		note(fmt.Sprintf("Unknown command: %s", parts[0]), true)
	}
	return m, nil
}

// clearHistory drops the visible entries. Repeat markers refer to entry
// numbers, so they are forgotten too.
func (m *replModel) clearHistory() {
	m.history = nil
	m.seen = make(map[uint64]int)
}

// evaluate compiles one line and appends it to the session program.
func (m *replModel) evaluate(input string) historyEntry {
	entry := historyEntry{input: input}
	res, err := compiler.Compile(input, m.cfg)
	if err != nil {
		entry.output, entry.isErr = err.Error(), true
		return entry
	}

	var sb strings.Builder
	reporter := &util.Reporter{Out: &sb, Files: []util.SourceFileRecord{{Name: "<repl>", Content: []rune(input)}}}
	for _, d := range res.Diagnostics {
		sb.Reset()
		reporter.Warn(m.cfg, d)
		entry.warnings = append(entry.warnings, strings.TrimRight(sb.String(), "\n"))
	}

	m.session.Append(res.Program)
	listing := res.Program.String()
	entry.id = xxhash.Sum64String(listing)
	entry.output = listing
	if prev, ok := m.seen[entry.id]; ok {
		entry.output += fmt.Sprintf("  (same code as #%d)", prev)
	} else {
		m.seen[entry.id] = len(m.history) + 1
	}
	return entry
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}
	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder
	header := headerStyle.Render("gsm REPL")
	std := mutedStyle.Render("std " + m.cfg.StdName)
	b.WriteString(header + " " + std + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(min(m.width-2, 60), 0))) + "\n\n")

	reservedLines := 8
	if m.showHelp {
		reservedLines += 12
	}
	availableHeight := max(m.height-reservedLines, 1)

	historyStart := 0
	if len(m.history) > availableHeight {
		historyStart = len(m.history) - availableHeight
	}

	for i := historyStart; i < len(m.history); i++ {
		entry := m.history[i]
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%3d › ", i+1)) + entry.input + "\n")
		for _, w := range entry.warnings {
			b.WriteString("  " + warnStyle.Render(w) + "\n")
		}
		switch {
		case entry.isErr:
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		case entry.id != 0:
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + mutedStyle.Render(fmt.Sprintf("  [%08x]", uint32(entry.id))) + "\n")
		default:
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(renderHelpPanel())
		b.WriteString("\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")

	footer := helpKeyStyle.Render("ctrl+k") + helpDescStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+l") + helpDescStyle.Render(" clear  ") +
		helpKeyStyle.Render("ctrl+c") + helpDescStyle.Render(" quit")
	b.WriteString(footer)

	return b.String()
}

func renderHelpPanel() string {
	help := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "Navigate input history"},
		{"Enter", "Compile the line"},
		{":help", "Toggle this help"},
		{":std <s>", "Switch standard (ref, gsm)"},
		{":set <f>", "Apply -W/-F flags, e.g. :set -Ffold"},
		{":program", "Show every line compiled so far"},
		{":reset", "Forget the session program"},
		{":clear", "Clear history"},
		{":quit", "Exit REPL"},
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help"))
	for _, h := range help {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-9s", h.key)),
			helpDescStyle.Render(h.desc)))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func runREPL(cfg *config.Config) error {
	p := tea.NewProgram(newREPLModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
