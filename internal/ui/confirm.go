package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/yozoon/internal/ui/style"
)

// Detail is one labelled line shown above the question.
type Detail struct {
	Label string
	Value string
}

// ConfirmModel asks a yes/no question. The default answer is no.
type ConfirmModel struct {
	title   string
	details []Detail
	keys    KeyMap
	styles  style.Styles

	yes       bool // highlighted option
	done      bool
	confirmed bool
}

func NewConfirm(title string, details []Detail) ConfirmModel {
	return ConfirmModel{
		title:   title,
		details: details,
		keys:    DefaultKeyMap(),
		styles:  style.NewStyles(style.DefaultPalette()),
	}
}

func (m ConfirmModel) Init() tea.Cmd { return nil }

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Yes):
		m.yes, m.confirmed, m.done = true, true, true
	case key.Matches(keyMsg, m.keys.No), key.Matches(keyMsg, m.keys.Quit):
		m.yes, m.confirmed, m.done = false, false, true
	case key.Matches(keyMsg, m.keys.Toggle):
		m.yes = !m.yes
		return m, nil
	case key.Matches(keyMsg, m.keys.Submit):
		m.confirmed, m.done = m.yes, true
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m ConfirmModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString("\n\n")
	if len(m.details) > 0 {
		rows := make([][2]string, len(m.details))
		for i, d := range m.details {
			rows[i] = [2]string{d.Label, d.Value}
		}
		b.WriteString(m.styles.KeyValues(rows))
		b.WriteString("\n\n")
	}

	yes, no := m.styles.Button, m.styles.ActiveButton
	if m.yes {
		yes, no = m.styles.ActiveButton, m.styles.Button
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, yes.Render("Yes"), "  ", no.Render("No")))
	b.WriteString("\n\n")

	help := make([]string, 0, len(m.keys.ShortHelp()))
	for _, kb := range m.keys.ShortHelp() {
		h := kb.Help()
		help = append(help, fmt.Sprintf("%s %s", m.styles.Key.Render(h.Key), m.styles.Muted.Render(h.Desc)))
	}
	b.WriteString(strings.Join(help, m.styles.Muted.Render(" • ")))
	b.WriteString("\n")
	return b.String()
}

// Done reports whether an answer was given.
func (m ConfirmModel) Done() bool { return m.done }

func (m ConfirmModel) Confirmed() bool { return m.done && m.confirmed }

// Confirm runs the prompt on in/out and returns the answer.
func Confirm(title string, details []Detail, in io.Reader, out io.Writer) (bool, error) {
	final, err := tea.NewProgram(NewConfirm(title, details), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(ConfirmModel)
	if !ok {
		return false, fmt.Errorf("unexpected prompt model %T", final)
	}
	return m.Confirmed(), nil
}
