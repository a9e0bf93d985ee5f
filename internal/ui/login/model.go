package login

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/theme"
	"github.com/nhle/todo-client/internal/validation"
)

// SubmitMsg carries the credentials of a completed login form.
type SubmitMsg struct {
	Email    string
	Password string
	Remember bool
}

// RegisterMsg asks to switch to the registration view.
type RegisterMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
	remember bool
}

// Model is the login view.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	submitting bool
	notice     string
	err        string
	width      int
	height     int
}

// New creates a login view.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the form. A non-empty email is prefilled and keeps the
// remember choice ticked.
func (m *Model) Start(email string) tea.Cmd {
	m.fb.email = email
	m.fb.password = ""
	m.fb.remember = email != ""
	m.submitting = false
	m.err = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// SetNotice shows an informational line above the form, such as the
// registration confirmation. It survives Start.
func (m *Model) SetNotice(notice string) {
	m.notice = notice
}

// Fail reopens the form after a rejected login, keeping the email.
func (m *Model) Fail(message string) tea.Cmd {
	remember := m.fb.remember
	cmd := m.Start(m.fb.email)
	m.fb.remember = remember
	m.err = message
	return cmd
}

// Submitting reports whether a login request is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.submitting {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+r" {
		return m, func() tea.Msg { return RegisterMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.submitting = true
		m.notice = ""
		sub := SubmitMsg{
			Email:    strings.TrimSpace(m.fb.email),
			Password: m.fb.password,
			Remember: m.fb.remember,
		}
		return m, func() tea.Msg { return sub }
	}

	return m, cmd
}

// View renders the login view.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	parts := []string{theme.TitleStyle.Render("Sign in")}
	if m.notice != "" {
		parts = append(parts, theme.SuccessStyle.Render(m.notice))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.submitting {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else {
		parts = append(parts,
			m.form.View(),
			theme.HelpStyle.Render("Don't have an account? Press ctrl+r to register."),
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
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(func(s string) error {
					return validation.Email(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validation.Password),
			huh.NewConfirm().
				Title("Remember my email?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.remember),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 30), 60)
}
