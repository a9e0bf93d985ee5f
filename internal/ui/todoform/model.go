package todoform

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/theme"
	"github.com/nhle/todo-client/internal/validation"
)

// SubmitMsg is dispatched when the user completes the form.
type SubmitMsg struct {
	Draft model.TodoDraft
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	priority    model.Priority
	category    string
}

// Model is the Bubble Tea model for the todo create/edit form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	editID int64
	saving bool
	err    string
	width  int
	height int
}

// New creates a new todo form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium},
		width:  width,
		height: height,
	}
}

// Start opens the form on the given draft. A draft with an ID edits that
// todo; a zero ID creates a new one.
func (m *Model) Start(d model.TodoDraft) tea.Cmd {
	m.editID = d.ID
	m.fb.title = d.Title
	m.fb.description = d.Description
	m.fb.priority = d.Priority.Normalize()
	m.fb.category = d.Category
	m.saving = false
	m.err = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// SetSaving marks a submission in flight. While saving the form ignores
// input so the same draft cannot be submitted twice.
func (m *Model) SetSaving(saving bool) {
	m.saving = saving
}

// Saving reports whether a submission is in flight.
func (m Model) Saving() bool {
	return m.saving
}

// Fail reopens the form on the submitted values with an error line.
func (m *Model) Fail(message string) tea.Cmd {
	d := m.draft()
	cmd := m.Start(d)
	m.err = message
	return cmd
}

// Editing reports whether the form edits an existing todo.
func (m Model) Editing() bool {
	return m.editID != 0
}

// Update handles messages for the todo form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.saving {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		d := m.draft()
		return m, func() tea.Msg { return SubmitMsg{Draft: d} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the todo form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Todo"
	if m.Editing() {
		titleText = "Edit Todo"
	}

	parts := []string{theme.TitleStyle.Render(titleText)}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.saving {
		label := "Creating..."
		if m.Editing() {
			label = "Saving..."
		}
		parts = append(parts, theme.HelpStyle.Render(label))
	} else {
		parts = append(parts, m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&m.fb.title).
				Validate(validation.Title),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				Value(&m.fb.description),
			huh.NewSelect[model.Priority]().
				Title("Priority").
				Options(
					huh.NewOption(model.PriorityLow.Label(), model.PriorityLow),
					huh.NewOption(model.PriorityMedium.Label(), model.PriorityMedium),
					huh.NewOption(model.PriorityHigh.Label(), model.PriorityHigh),
				).
				Value(&m.fb.priority),
			huh.NewInput().
				Title("Category").
				Placeholder("Optional, e.g. work").
				Value(&m.fb.category),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) draft() model.TodoDraft {
	return model.TodoDraft{
		ID:          m.editID,
		Title:       strings.TrimSpace(m.fb.title),
		Description: m.fb.description,
		Priority:    m.fb.priority.Normalize(),
		Category:    strings.TrimSpace(m.fb.category),
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
