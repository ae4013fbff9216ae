// Package prompt asks yes/no questions on the terminal.
package prompt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var questionStyle = lipgloss.NewStyle().Bold(true)

// confirmModel is a bubbletea model for a single y/N question.
type confirmModel struct {
	question  string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newConfirmModel(question string) confirmModel {
	ti := textinput.New()
	ti.Placeholder = "y/N"
	ti.CharLimit = 8
	ti.Focus()
	return confirmModel{question: question, input: ti}
}

func (m confirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s %s\n", questionStyle.Render(m.question), m.input.View())
}

// answer reports whether the user confirmed.
func (m confirmModel) answer() bool {
	return m.done && IsYes(m.input.Value())
}

// IsYes reports whether s is an affirmative answer.
func IsYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

// Confirm asks question on out, reading keys from in. Anything but y/yes,
// including cancellation, is a no.
func Confirm(question string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(newConfirmModel(question), tea.WithInput(in), tea.WithOutput(out))
	result, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	final, ok := result.(confirmModel)
	if !ok {
		return false, fmt.Errorf("prompt: unexpected model %T", result)
	}
	return final.answer(), nil
}
