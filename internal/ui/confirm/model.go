package confirm

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/theme"
)

// ResultMsg reports the user's answer for the pending deletion.
type ResultMsg struct {
	Confirmed bool
}

// Model is the delete confirmation dialog.
type Model struct {
	form    *huh.Form
	answer  *bool
	todo    model.Todo
	working bool
	width   int
}

// New creates a confirmation dialog.
func New(width int) Model {
	return Model{answer: new(bool), width: width}
}

// Start asks whether todo should be deleted. The default answer is no.
func (m *Model) Start(todo model.Todo) tea.Cmd {
	m.todo = todo
	m.working = false
	*m.answer = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", todo.Title)).
				Description("This cannot be undone.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(m.answer),
		),
	).WithWidth(min(max(m.width-4, 30), 60))
	return m.form.Init()
}

// SetWorking marks the deletion as in flight.
func (m *Model) SetWorking(working bool) {
	m.working = working
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.working {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return m, func() tea.Msg { return ResultMsg{Confirmed: false} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		ok := *m.answer
		return m, func() tea.Msg { return ResultMsg{Confirmed: ok} }
	case huh.StateAborted:
		return m, func() tea.Msg { return ResultMsg{Confirmed: false} }
	}
	return m, cmd
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	body := m.form.View()
	if m.working {
		body = theme.HelpStyle.Render("Deleting...")
	}
	return theme.PanelStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, theme.TitleStyle.Render("Delete todo"), body),
	)
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width int) {
	m.width = width
}
