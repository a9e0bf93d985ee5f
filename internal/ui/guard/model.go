// Package guard gates protected views behind a session check. Each mount
// runs the check again; while it is outstanding only a spinner is shown.
package guard

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/theme"
)

// State is the outcome of the current check.
type State int

const (
	Checking State = iota
	Authenticated
	Redirecting
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Redirecting:
		return "redirecting"
	default:
		return "checking"
	}
}

// VerifyFunc decides whether the current session may see protected views.
type VerifyFunc func(ctx context.Context) (bool, error)

// AuthenticatedMsg is emitted when the check passes.
type AuthenticatedMsg struct{}

// RedirectMsg is emitted once per mount when the check fails. Err is set
// when the check itself errored.
type RedirectMsg struct {
	Err error
}

// checkedMsg carries a check result back. seq ties it to the mount that
// started it so results of superseded mounts are dropped.
type checkedMsg struct {
	seq int
	ok  bool
	err error
}

// Model is the guard view.
type Model struct {
	verify     VerifyFunc
	spinner    spinner.Model
	state      State
	seq        int
	redirected bool
}

// New creates a guard around verify.
func New(verify VerifyFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)
	return Model{verify: verify, spinner: s}
}

// Mount starts a fresh check, discarding any earlier outcome.
func (m *Model) Mount() tea.Cmd {
	m.seq++
	m.state = Checking
	m.redirected = false
	return tea.Batch(m.spinner.Tick, m.check())
}

func (m Model) check() tea.Cmd {
	seq, verify := m.seq, m.verify
	return func() tea.Msg {
		ok, err := verify(context.Background())
		return checkedMsg{seq: seq, ok: ok && err == nil, err: err}
	}
}

// State returns the outcome of the current check.
func (m Model) State() State {
	return m.state
}

// Allowed reports whether protected content may render.
func (m Model) Allowed() bool {
	return m.state == Authenticated
}

// Revoke moves an authenticated guard to Redirecting, for when the session
// disappears while a protected view is shown. It returns the redirect
// command unless one was already emitted for this mount.
func (m *Model) Revoke() tea.Cmd {
	if m.state == Checking {
		m.seq++
	}
	m.state = Redirecting
	return m.redirect(nil)
}

func (m *Model) redirect(err error) tea.Cmd {
	if m.redirected {
		return nil
	}
	m.redirected = true
	return func() tea.Msg { return RedirectMsg{Err: err} }
}

// Update handles messages for the guard.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case checkedMsg:
		if msg.seq != m.seq || m.state != Checking {
			return m, nil
		}
		if msg.ok {
			m.state = Authenticated
			return m, func() tea.Msg { return AuthenticatedMsg{} }
		}
		m.state = Redirecting
		cmd := m.redirect(msg.err)
		return m, cmd

	case spinner.TickMsg:
		if m.state != Checking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner while checking and nothing otherwise.
func (m Model) View() string {
	if m.state != Checking {
		return ""
	}
	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(m.spinner.View() + " Checking your session...")
}
