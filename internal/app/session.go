package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todo-client/internal/apiclient"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/store"
	"github.com/nhle/todo-client/internal/todolist"
	"github.com/nhle/todo-client/internal/ui/login"
	"github.com/nhle/todo-client/internal/ui/register"
	"github.com/nhle/todo-client/internal/validation"
)

// registeredNotice is shown on the login view after a registration that
// did not sign the user in.
const registeredNotice = "Registration successful. Please sign in."

type loginResultMsg struct {
	email    string
	remember bool
	err      error
}

type registerResultMsg struct {
	email    string
	signedIn bool
	err      error
}

type logoutResultMsg struct{ err error }

// onSession re-derives the route from a published session. Losing the
// token on a protected view redirects to login at most once per mount;
// gaining one on the login or registration view starts a fresh check.
func (m *Model) onSession(sess model.Session) tea.Cmd {
	prev := m.session
	m.session = sess

	view := m.currentView
	if view == ViewHelp || view == ViewCommand {
		view = m.previousView
	}

	if !sess.HasToken() {
		if view.protected() {
			return m.guard.Revoke()
		}
		return nil
	}

	switch {
	case view == ViewLogin || view == ViewRegister:
		return m.mountProtected()
	case view.protected() && prev.Token != sess.Token:
		// another instance signed in as someone else
		return m.mountProtected()
	}
	return nil
}

// mountProtected shows the spinner and verifies the session again.
func (m *Model) mountProtected() tea.Cmd {
	m.currentView = ViewChecking
	m.previousView = ViewChecking
	return m.guard.Mount()
}

// showTodos enters the list after a passing check and refetches.
func (m *Model) showTodos() tea.Cmd {
	m.currentView = ViewTodos
	m.previousView = ViewTodos
	return tea.Batch(m.taskList.Sync(), m.taskList.Refresh())
}

// showLogin is idempotent so concurrent redirects land on one login view.
func (m *Model) showLogin(email string) tea.Cmd {
	if m.currentView == ViewLogin {
		return nil
	}
	m.todos.CancelEdit()
	m.todos.CancelDelete()
	m.currentView = ViewLogin
	m.previousView = ViewLogin
	return m.loginView.Start(email)
}

func (m *Model) showRegister() tea.Cmd {
	m.currentView = ViewRegister
	m.previousView = ViewRegister
	return m.registerView.Start()
}

func (m Model) submitLogin(msg login.SubmitMsg) tea.Cmd {
	auth := m.auth
	return func() tea.Msg {
		_, err := auth.Login(context.Background(), msg.Email, msg.Password)
		return loginResultMsg{email: msg.Email, remember: msg.Remember, err: err}
	}
}

// onLoginResult reports failures on the form. Success needs no routing
// here: the session store publishes the new session.
func (m *Model) onLoginResult(msg loginResultMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Warn("login failed", "err", msg.err)
		return m.loginView.Fail(m.formError(msg.err))
	}

	m.prefs.RememberEmail = ""
	if msg.remember {
		m.prefs.RememberEmail = msg.email
	}
	return m.savePreferences()
}

func (m Model) submitRegister(msg register.SubmitMsg) tea.Cmd {
	auth := m.auth
	return func() tea.Msg {
		signedIn, err := auth.Register(context.Background(), msg.Name, msg.Email, msg.Password)
		return registerResultMsg{email: msg.Email, signedIn: signedIn, err: err}
	}
}

func (m *Model) onRegisterResult(msg registerResultMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Warn("registration failed", "err", msg.err)
		return m.registerView.Fail(m.formError(msg.err))
	}
	if msg.signedIn {
		return nil
	}
	m.loginView.SetNotice(registeredNotice)
	return m.showLogin(msg.email)
}

func (m Model) logout() tea.Cmd {
	auth := m.auth
	return func() tea.Msg {
		return logoutResultMsg{err: auth.Logout(context.Background())}
	}
}

// formError turns a failed auth request into the line shown on the form:
// the validation text, the server's message, or the network description.
func (m Model) formError(err error) string {
	if validation.IsValidationError(err) {
		var errs validation.Errors
		if errors.As(err, &errs) && len(errs) > 0 {
			return errs[0].Message
		}
		var fieldErr *validation.Error
		if errors.As(err, &fieldErr) {
			return fieldErr.Message
		}
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return todolist.Describe(err, m.todos.BaseURL())
}

// loadPreferences applies the saved filter, grouping and remembered email.
func (m *Model) loadPreferences(groupByDefault bool) {
	prefs, err := store.LoadPreferences(context.Background(), m.state)
	if err != nil {
		m.logger.Warn("loading preferences", "err", err)
	}
	if prefs.FilterPriority == "" && prefs.FilterStatus == "" {
		prefs.GroupByPriority = groupByDefault
	}
	m.prefs = prefs
	m.todos.SetFilter(todolist.ParseFilter(prefs.FilterPriority, prefs.FilterStatus))
	m.todos.SetGrouped(prefs.GroupByPriority)
}

// savePreferences persists the current preferences in the background.
func (m Model) savePreferences() tea.Cmd {
	s, writer, prefs, logger := m.state, m.instanceID, m.prefs, m.logger
	if prefs.FilterPriority == "" {
		f := m.todos.Filter()
		prefs.FilterPriority = string(f.Priority)
		prefs.FilterStatus = string(f.Status)
	}
	return func() tea.Msg {
		if err := store.SavePreferences(context.Background(), s, writer, prefs); err != nil {
			logger.Warn("saving preferences", "err", err)
		}
		return nil
	}
}
