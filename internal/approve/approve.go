// Package approve prompts the user to confirm an approval-gated step.
package approve

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/planweave/internal/plan"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	taskStyle  = lipgloss.NewStyle().PaddingLeft(2)
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

// Confirm shows the gated step's tasks and asks for approval. Returns
// true when the user answers yes.
func Confirm(step *plan.Step) (bool, error) {
	m := newModel(step)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return false, fmt.Errorf("approval prompt failed: %w", err)
	}
	result, ok := final.(model)
	if !ok {
		return false, fmt.Errorf("approval prompt returned unexpected model")
	}
	return result.approved, nil
}

type model struct {
	step     *plan.Step
	input    textinput.Model
	approved bool
	done     bool
}

func newModel(step *plan.Step) model {
	ti := textinput.New()
	ti.Placeholder = "y/N"
	ti.CharLimit = 3
	ti.Width = 8
	ti.Focus()
	return model{step: step, input: ti}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			answer := strings.ToLower(strings.TrimSpace(m.input.Value()))
			m.approved = answer == "y" || answer == "yes"
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.approved = false
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("The next step requires your approval:"))
	b.WriteString("\n\n")
	for _, t := range m.step.Tasks() {
		data := t.Data()
		line := t.Name()
		if data.WhatIsNeeded != "" {
			line += " - " + data.WhatIsNeeded
		}
		b.WriteString(taskStyle.Render("• " + line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString("Proceed? ")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter to confirm, esc to stop"))
	b.WriteString("\n")
	return b.String()
}
