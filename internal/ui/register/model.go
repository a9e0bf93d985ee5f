package register

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/theme"
	"github.com/nhle/todo-client/internal/validation"
)

// SubmitMsg carries the fields of a completed registration form.
type SubmitMsg struct {
	Name     string
	Email    string
	Password string
}

// CancelMsg returns to the login view.
type CancelMsg struct{}

type formBindings struct {
	name     string
	email    string
	password string
	confirm  string
}

// Model is the registration view.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	submitting bool
	err        string
	width      int
	height     int
}

// New creates a registration view.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start clears the form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{}
	m.submitting = false
	m.err = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Fail reopens the form with the server's message. Name and email are
// kept; passwords must be typed again.
func (m *Model) Fail(message string) tea.Cmd {
	name, email := m.fb.name, m.fb.email
	cmd := m.Start()
	m.fb.name, m.fb.email = name, email
	m.err = message
	return cmd
}

// Submitting reports whether a registration request is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

// Update handles messages for the registration view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.submitting {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.submitting = true
		sub := SubmitMsg{
			Name:     strings.TrimSpace(m.fb.name),
			Email:    strings.TrimSpace(m.fb.email),
			Password: m.fb.password,
		}
		return m, func() tea.Msg { return sub }
	}

	return m, cmd
}

// View renders the registration view.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	parts := []string{theme.TitleStyle.Render("Create an account")}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.submitting {
		parts = append(parts, theme.HelpStyle.Render("Creating account..."))
	} else {
		parts = append(parts,
			m.form.View(),
			theme.HelpStyle.Render("Already registered? Press esc to sign in."),
		)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) buildForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Full name").
				Value(&fb.name).
				Validate(validation.Name),
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&fb.email).
				Validate(func(s string) error {
					return validation.Email(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(validation.NewPassword),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.confirm).
				Validate(func(s string) error {
					return validation.Confirmation(fb.password, s)
				}),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 30), 60)
}
