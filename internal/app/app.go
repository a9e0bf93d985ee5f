// Package app is the root Bubble Tea model. It routes between the login,
// registration and protected todo views and owns the session subscription.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/todo-client/internal/auth"
	"github.com/nhle/todo-client/internal/keys"
	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/session"
	"github.com/nhle/todo-client/internal/store"
	appsync "github.com/nhle/todo-client/internal/sync"
	"github.com/nhle/todo-client/internal/todolist"
	"github.com/nhle/todo-client/internal/ui"
	"github.com/nhle/todo-client/internal/ui/command"
	"github.com/nhle/todo-client/internal/ui/confirm"
	"github.com/nhle/todo-client/internal/ui/guard"
	helpview "github.com/nhle/todo-client/internal/ui/help"
	"github.com/nhle/todo-client/internal/ui/login"
	"github.com/nhle/todo-client/internal/ui/register"
	"github.com/nhle/todo-client/internal/ui/tasklist"
	"github.com/nhle/todo-client/internal/ui/todoform"
)

// appTitle is shown on the left of the navigation bar.
const appTitle = "Todo App"

// noticeTTL is how long a toast stays on screen.
const noticeTTL = 4 * time.Second

// Authenticator is the part of auth.Manager the UI drives.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.Session, error)
	Register(ctx context.Context, name, email, password string) (bool, error)
	VerifySession(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// Deps are the collaborators of the root model.
type Deps struct {
	Auth     Authenticator
	Sessions session.Store
	State    store.Store
	Todos    *todolist.ViewModel
	Watcher  *appsync.Watcher

	// InstanceID tags preference writes in the state database.
	InstanceID string

	// GroupByDefault applies when no display preference was saved yet.
	GroupByDefault bool

	Logger *log.Logger
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewChecking ViewState = iota
	ViewLogin
	ViewRegister
	ViewTodos
	ViewTodoCreate
	ViewTodoEdit
	ViewConfirmDelete
	ViewHelp
	ViewCommand
)

// protected reports whether v shows data that needs a verified session.
func (v ViewState) protected() bool {
	switch v {
	case ViewChecking, ViewTodos, ViewTodoCreate, ViewTodoEdit, ViewConfirmDelete:
		return true
	}
	return false
}

// UnauthorizedMsg is sent into the program when the API client tore the
// session down after a 401.
type UnauthorizedMsg struct{}

// sessionChangedMsg carries a session published by the session store,
// from this instance or, through the watcher, from another one.
type sessionChangedMsg struct {
	session model.Session
}

// notice is the toast line under the header.
type notice struct {
	text   string
	failed bool
	seq    int
}

type clearNoticeMsg struct{ seq int }

// Model is the root Bubble Tea model that manages view routing,
// layout, and the authenticated session.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	auth       Authenticator
	sessions   session.Store
	state      store.Store
	todos      *todolist.ViewModel
	watcher    *appsync.Watcher
	instanceID string
	logger     *log.Logger

	guard        guard.Model
	loginView    login.Model
	registerView register.Model
	taskList     tasklist.Model
	todoForm     todoform.Model
	confirmView  confirm.Model
	helpView     helpview.Model
	commandView  command.Model

	sessionCh   <-chan model.Session
	unsubscribe func()
	session     model.Session
	prefs       model.Preferences
	notice      notice
	startCmd    tea.Cmd
	ready       bool
}

// New creates the root model. Preferences are read synchronously so the
// first frame already uses the saved filter and remembered email.
func New(d Deps) Model {
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	k := keys.DefaultKeyMap()

	m := Model{
		currentView:  ViewChecking,
		previousView: ViewChecking,
		keys:         k,
		auth:         d.Auth,
		sessions:     d.Sessions,
		state:        d.State,
		todos:        d.Todos,
		watcher:      d.Watcher,
		instanceID:   d.InstanceID,
		logger:       logger,
		guard:        guard.New(d.Auth.VerifySession),
		loginView:    login.New(80, 24),
		registerView: register.New(80, 24),
		taskList:     tasklist.New(d.Todos, k, 80, 24),
		todoForm:     todoform.New(80, 24),
		confirmView:  confirm.New(80),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.NewModel(80, 24),
	}

	m.loadPreferences(d.GroupByDefault)
	m.sessionCh, m.unsubscribe = d.Sessions.Subscribe()
	if sess, err := d.Sessions.Get(context.Background()); err == nil {
		m.session = sess
	}
	m.startCmd = m.guard.Mount()
	return m
}

// Init starts the first session check, the session subscription and the
// cross-instance watcher.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.startCmd, waitForSession(m.sessionCh)}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.Start())
	}
	return tea.Batch(cmds...)
}

// waitForSession blocks until the session store publishes.
func waitForSession(ch <-chan model.Session) tea.Cmd {
	return func() tea.Msg {
		sess, ok := <-ch
		if !ok {
			return nil
		}
		return sessionChangedMsg{session: sess}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m.updateActiveView(msg)

	case sessionChangedMsg:
		cmd := m.onSession(msg.session)
		return m, tea.Batch(cmd, waitForSession(m.sessionCh))

	case appsync.ChangedMsg:
		m.logger.Debug("state changed by another instance", "revision", msg.Revision.Number)
		cmd := m.watcher.WaitForChange()
		return m, cmd

	case UnauthorizedMsg:
		cmd := m.flash("Your session expired or you are not logged in.", true)
		return m, cmd

	case guard.AuthenticatedMsg:
		cmd := m.showTodos()
		return m, cmd

	case guard.RedirectMsg:
		cmd := m.showLogin(m.prefs.RememberEmail)
		if auth.IsSessionExpired(msg.Err) {
			flash := m.flash("Your session has expired. Please sign in again.", true)
			return m, tea.Batch(cmd, flash)
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.guard, cmd = m.guard.Update(msg)
		return m, cmd

	case clearNoticeMsg:
		if msg.seq == m.notice.seq {
			m.notice = notice{seq: m.notice.seq}
		}
		return m, nil

	case login.SubmitMsg:
		cmd := m.submitLogin(msg)
		return m, cmd

	case loginResultMsg:
		cmd := m.onLoginResult(msg)
		return m, cmd

	case login.RegisterMsg:
		cmd := m.showRegister()
		return m, cmd

	case register.SubmitMsg:
		cmd := m.submitRegister(msg)
		return m, cmd

	case registerResultMsg:
		cmd := m.onRegisterResult(msg)
		return m, cmd

	case register.CancelMsg:
		cmd := m.showLogin(m.prefs.RememberEmail)
		return m, cmd

	case logoutResultMsg:
		if msg.err != nil {
			cmd := m.flash(msg.err.Error(), true)
			return m, cmd
		}
		return m, nil

	case tasklist.RefreshedMsg:
		var cmd tea.Cmd
		m.taskList, cmd = m.taskList.Update(msg)
		return m, cmd

	case tasklist.DisplayChangedMsg:
		m.prefs.FilterPriority = string(msg.Filter.Priority)
		m.prefs.FilterStatus = string(msg.Filter.Status)
		m.prefs.GroupByPriority = msg.Grouped
		cmd := m.savePreferences()
		return m, cmd

	case todoform.SubmitMsg:
		m.todoForm.SetSaving(true)
		cmd := m.submitDraft(msg.Draft)
		return m, cmd

	case todoform.CancelMsg:
		m.todos.CancelEdit()
		m.currentView = ViewTodos
		return m, nil

	case savedMsg:
		cmd := m.onSaved(msg)
		return m, cmd

	case toggledMsg:
		cmd := m.onToggled(msg)
		return m, cmd

	case confirm.ResultMsg:
		cmd := m.onConfirmDelete(msg)
		return m, cmd

	case deletedMsg:
		cmd := m.onDeleted(msg)
		return m, cmd

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(command.Command(msg))
		return m, cmd

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	// The guard sees every message so a check started before a view
	// change still settles.
	var gcmd tea.Cmd
	m.guard, gcmd = m.guard.Update(msg)
	next, cmd := m.updateActiveView(msg)
	return next, tea.Batch(gcmd, cmd)
}

// handleKey processes global and list-level keys. Forms get every other key.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		cmd := m.quit()
		return m, cmd, true
	}

	switch m.currentView {
	case ViewHelp:
		if msg.String() == "?" || msg.String() == "esc" || msg.String() == "q" {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, true

	case ViewCommand:
		if msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false

	case ViewTodoCreate, ViewTodoEdit:
		if msg.String() == "esc" && !m.todoForm.Saving() {
			m.todos.CancelEdit()
			m.currentView = ViewTodos
			return m, nil, true
		}
		return m, nil, false

	case ViewTodos:
		return m.handleTodoKey(msg)
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewRegister:
		m.registerView, cmd = m.registerView.Update(msg)
	case ViewTodos:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewTodoCreate, ViewTodoEdit:
		m.todoForm, cmd = m.todoForm.Update(msg)
	case ViewConfirmDelete:
		m.confirmView, cmd = m.confirmView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	m.ready = true
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.loginView.SetSize(w, h)
	m.registerView.SetSize(w, h)
	m.taskList.SetSize(w, h)
	m.todoForm.SetSize(w, h)
	m.confirmView.SetSize(w)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
}

// openOverlay shows help or the command palette over the current view.
func (m *Model) openOverlay(v ViewState) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = v
	if v == ViewCommand {
		return m.commandView.Focus()
	}
	return nil
}

// flash shows a toast and schedules its removal.
func (m *Model) flash(text string, failed bool) tea.Cmd {
	m.notice = notice{text: text, failed: failed, seq: m.notice.seq + 1}
	seq := m.notice.seq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

func (m *Model) quit() tea.Cmd {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(appTitle, m.accountArea())
	notice := m.layout.RenderNotice(m.notice.text, m.notice.failed)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, notice, m.renderContent(), statusBar)
}

// accountArea is the right side of the navigation bar.
func (m Model) accountArea() string {
	if !m.guard.Allowed() {
		return ""
	}
	return "Welcome, " + m.session.User.DisplayName() + " | L log out"
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewChecking:
		return m.guard.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewRegister:
		return m.registerView.View()
	case ViewTodos:
		return m.taskList.View()
	case ViewTodoCreate, ViewTodoEdit:
		return m.todoForm.View()
	case ViewConfirmDelete:
		return m.confirmView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewChecking:
		return "ctrl+c quit"
	case ViewLogin:
		return "enter next | shift+tab back | ctrl+r register | ctrl+c quit"
	case ViewRegister:
		return "enter next | shift+tab back | esc sign in | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewTodoCreate, ViewTodoEdit:
		return "enter next/submit | esc cancel"
	case ViewConfirmDelete:
		return "←/→ choose | enter confirm | esc cancel"
	default:
		return "q quit | ? help | n new | e edit | x toggle | d delete | p/s filter | c clear | g group | r refresh"
	}
}
