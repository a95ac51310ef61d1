// Package tui is an interactive front-end that evaluates Calculator
// methods through the binding module.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/meandmytram/pybind-example/internal/binding"
	"github.com/meandmytram/pybind-example/internal/calculator"
)

type field int

const (
	fieldA field = iota
	fieldB
	fieldMethod
	fieldCount
)

var methods = []string{calculator.MethodAdd, calculator.MethodSubtract}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle    = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	focusedStyle  = lipgloss.NewStyle().Underline(true)
	resultStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the bubbletea model for the calculator TUI.
type Model struct {
	mod     *binding.Module
	inputs  [2]textinput.Model
	focus   field
	method  int
	history []string
	result  string
	err     error
	width   int
}

// New returns a Model evaluating against mod.
func New(mod *binding.Module) Model {
	m := Model{mod: mod}
	for i := range m.inputs {
		in := textinput.New()
		in.Placeholder = "0"
		in.CharLimit = 32
		in.Width = 20
		m.inputs[i] = in
	}
	m.inputs[fieldA].Focus()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			return m.setFocus((m.focus + 1) % fieldCount), nil
		case "shift+tab", "up":
			return m.setFocus((m.focus + fieldCount - 1) % fieldCount), nil
		case "enter":
			return m.evaluate(), nil
		}

		if m.focus == fieldMethod {
			switch msg.String() {
			case "left", "right", " ", "h", "l":
				m.method = (m.method + 1) % len(methods)
			case "+":
				m.method = 0
			case "-":
				m.method = 1
			}
			return m, nil
		}
	}

	if m.focus == fieldMethod {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) setFocus(f field) Model {
	m.focus = f
	for i := range m.inputs {
		if field(i) == f {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return m
}

func (m Model) evaluate() Model {
	a, err := parseOperand(m.inputs[fieldA].Value())
	if err != nil {
		m.err = fmt.Errorf("a: %w", err)
		return m
	}
	b, err := parseOperand(m.inputs[fieldB].Value())
	if err != nil {
		m.err = fmt.Errorf("b: %w", err)
		return m
	}

	method := methods[m.method]
	result, err := m.mod.Invoke(calculator.ClassName, method, []float64{a, b})
	if err != nil {
		m.err = err
		return m
	}

	m.err = nil
	m.result = formatNumber(result)
	m.history = append(m.history, fmt.Sprintf("%s(%s, %s) = %s", method, formatNumber(a), formatNumber(b), m.result))
	if len(m.history) > 5 {
		m.history = m.history[len(m.history)-5:]
	}
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.mod.Name() + "." + calculator.ClassName))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("a") + m.inputs[fieldA].View() + "\n")
	b.WriteString(labelStyle.Render("b") + m.inputs[fieldB].View() + "\n")

	var opts []string
	for i, name := range methods {
		if i == m.method {
			name = selectedStyle.Render(name)
		}
		opts = append(opts, name)
	}
	line := strings.Join(opts, " / ")
	if m.focus == fieldMethod {
		line = focusedStyle.Render(line)
	}
	b.WriteString(labelStyle.Render("method") + line + "\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	case m.result != "":
		b.WriteString(resultStyle.Render("= "+m.result) + "\n")
	}

	if len(m.history) > 0 {
		b.WriteString("\n")
		for _, entry := range m.history {
			b.WriteString(helpStyle.Render(m.truncate(entry)) + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render(m.truncate("tab: next field  ←/→: method  enter: evaluate  esc: quit")))
	return b.String()
}

func (m Model) truncate(s string) string {
	if m.width <= 0 {
		return s
	}
	return ansi.Truncate(s, m.width, "…")
}

func parseOperand(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Run starts the TUI and blocks until the user quits.
func Run(mod *binding.Module) error {
	_, err := tea.NewProgram(New(mod), tea.WithAltScreen()).Run()
	return err
}
