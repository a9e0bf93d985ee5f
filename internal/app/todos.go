package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todo-client/internal/apiclient"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/todolist"
	"github.com/nhle/todo-client/internal/ui/command"
	"github.com/nhle/todo-client/internal/ui/confirm"
	"github.com/nhle/todo-client/internal/validation"
)

// savedMsg is sent after a create or edit round trip.
type savedMsg struct {
	todo model.Todo
	edit bool
	err  error
}

// toggledMsg carries the todo as it was before the toggle.
type toggledMsg struct {
	before model.Todo
	err    error
}

type deletedMsg struct {
	todo    model.Todo
	deleted bool
	err     error
}

// handleTodoKey runs the list-level actions. Navigation and filter keys
// fall through to the list itself.
func (m Model) handleTodoKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		cmd := m.quit()
		return m, cmd, true

	case key.Matches(msg, m.keys.Help):
		cmd := m.openOverlay(ViewHelp)
		return m, cmd, true

	case key.Matches(msg, m.keys.Command):
		cmd := m.openOverlay(ViewCommand)
		return m, cmd, true

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.taskList.Refresh()
		return m, cmd, true

	case key.Matches(msg, m.keys.New):
		cmd := m.startCreate()
		return m, cmd, true

	case key.Matches(msg, m.keys.Edit):
		cmd := m.startEdit()
		return m, cmd, true

	case key.Matches(msg, m.keys.Toggle):
		t, ok := m.taskList.SelectedTodo()
		if !ok {
			return m, nil, true
		}
		cmd := m.toggle(t.ID)
		return m, cmd, true

	case key.Matches(msg, m.keys.Delete):
		cmd := m.startDelete()
		return m, cmd, true

	case key.Matches(msg, m.keys.Logout):
		cmd := m.logout()
		return m, cmd, true
	}
	return m, nil, false
}

func (m *Model) startCreate() tea.Cmd {
	d := m.todos.BeginCreate()
	m.currentView = ViewTodoCreate
	return m.todoForm.Start(d)
}

func (m *Model) startEdit() tea.Cmd {
	t, ok := m.taskList.SelectedTodo()
	if !ok {
		return nil
	}
	d, err := m.todos.BeginEdit(t.ID)
	if err != nil {
		return m.flash(err.Error(), true)
	}
	m.currentView = ViewTodoEdit
	return m.todoForm.Start(d)
}

func (m Model) submitDraft(d model.TodoDraft) tea.Cmd {
	vm := m.todos
	return func() tea.Msg {
		saved, err := vm.SubmitDraft(context.Background(), d)
		return savedMsg{todo: saved, edit: d.IsEdit(), err: err}
	}
}

func (m *Model) onSaved(msg savedMsg) tea.Cmd {
	switch {
	case errors.Is(msg.err, todolist.ErrSaveInProgress):
		return nil
	case msg.err != nil:
		if apiclient.StatusCode(msg.err) == http.StatusUnauthorized {
			return nil
		}
		m.todoForm.SetSaving(false)
		return m.todoForm.Fail(m.mutationError(msg.err))
	}

	m.todoForm.SetSaving(false)
	if m.currentView == ViewTodoCreate || m.currentView == ViewTodoEdit {
		m.currentView = ViewTodos
	}
	verb := "created"
	if msg.edit {
		verb = "updated"
	}
	return tea.Batch(
		m.taskList.Sync(),
		m.flash(fmt.Sprintf("Todo %q %s!", msg.todo.Title, verb), false),
	)
}

func (m Model) toggle(id int64) tea.Cmd {
	vm := m.todos
	return func() tea.Msg {
		before, err := vm.Toggle(context.Background(), id)
		return toggledMsg{before: before, err: err}
	}
}

func (m *Model) onToggled(msg toggledMsg) tea.Cmd {
	if msg.err != nil {
		return m.failMutation(msg.err)
	}
	return tea.Batch(m.taskList.Sync(), m.flash(toggleNotice(msg.before), false))
}

// toggleNotice describes the new state of a todo given its old one.
func toggleNotice(before model.Todo) string {
	if before.Completed {
		return fmt.Sprintf("Todo %q marked as pending!", before.Title)
	}
	return fmt.Sprintf("Todo %q completed!", before.Title)
}

func (m *Model) startDelete() tea.Cmd {
	t, ok := m.taskList.SelectedTodo()
	if !ok {
		return nil
	}
	pending, err := m.todos.RequestDelete(t.ID)
	if err != nil {
		return m.flash(err.Error(), true)
	}
	m.currentView = ViewConfirmDelete
	return m.confirmView.Start(pending)
}

func (m *Model) onConfirmDelete(msg confirm.ResultMsg) tea.Cmd {
	if !msg.Confirmed {
		m.todos.CancelDelete()
		m.currentView = ViewTodos
		return nil
	}
	m.confirmView.SetWorking(true)
	vm := m.todos
	return func() tea.Msg {
		t, deleted, err := vm.ConfirmDelete(context.Background())
		return deletedMsg{todo: t, deleted: deleted, err: err}
	}
}

func (m *Model) onDeleted(msg deletedMsg) tea.Cmd {
	m.confirmView.SetWorking(false)
	if m.currentView == ViewConfirmDelete {
		m.currentView = ViewTodos
	}
	if msg.err != nil {
		return m.failMutation(msg.err)
	}
	if !msg.deleted {
		return nil
	}
	return tea.Batch(
		m.taskList.Sync(),
		m.flash(deleteNotice(msg.todo), false),
	)
}

func deleteNotice(t model.Todo) string {
	return fmt.Sprintf("Todo %q deleted successfully!", t.Title)
}

// failMutation toasts a failed toggle or delete. A 401 is left to the
// session teardown and its redirect.
func (m *Model) failMutation(err error) tea.Cmd {
	m.logger.Warn("todo mutation failed", "err", err)
	if apiclient.StatusCode(err) == http.StatusUnauthorized {
		return nil
	}
	return m.flash(m.mutationError(err), true)
}

func (m Model) mutationError(err error) string {
	var fieldErr *validation.Error
	if errors.As(err, &fieldErr) {
		return fieldErr.Message
	}
	return todolist.Describe(err, m.todos.BaseURL())
}

// executeCommand runs a command palette entry. Todo commands only work
// on the list; the rest work everywhere.
func (m *Model) executeCommand(c command.Command) tea.Cmd {
	switch c.Name {
	case command.Quit:
		return m.quit()
	case command.Help:
		return m.openOverlay(ViewHelp)
	}

	if m.currentView == ViewLogin || m.currentView == ViewRegister {
		switch c.Name {
		case command.Register:
			return m.showRegister()
		case command.Login:
			return m.showLogin(m.prefs.RememberEmail)
		}
		return m.flash(fmt.Sprintf("Sign in to use %q", c.Name), true)
	}
	if m.currentView != ViewTodos {
		return nil
	}

	switch c.Name {
	case command.New:
		return m.startCreate()
	case command.Refresh:
		return m.taskList.Refresh()
	case command.Logout:
		return m.logout()
	case command.Clear:
		m.todos.ClearFilters()
	case command.Group:
		m.todos.SetGrouped(!m.todos.Grouped())
	case command.Filter:
		if err := m.applyFilterCommand(c); err != nil {
			return m.flash(err.Error(), true)
		}
	default:
		return m.flash(fmt.Sprintf("Unknown command: %s", c.Name), true)
	}
	return m.displayChanged()
}

// applyFilterCommand handles "filter priority <p>" and "filter status <s>".
func (m *Model) applyFilterCommand(c command.Command) error {
	value := strings.ToUpper(c.Arg(1))
	f := m.todos.Filter()

	switch strings.ToLower(c.Arg(0)) {
	case "priority":
		p := model.Priority(value)
		if p != todolist.PriorityAll && !p.Valid() {
			return fmt.Errorf("unknown priority %q", c.Arg(1))
		}
		f.Priority = p
	case "status":
		s := todolist.StatusFilter(value)
		switch s {
		case todolist.StatusAll, todolist.StatusCompleted, todolist.StatusPending:
		default:
			return fmt.Errorf("unknown status %q", c.Arg(1))
		}
		f.Status = s
	default:
		return errors.New("usage: filter priority|status <value>")
	}

	m.todos.SetFilter(f)
	return nil
}

// displayChanged re-renders the list and persists the display settings.
func (m *Model) displayChanged() tea.Cmd {
	f := m.todos.Filter()
	m.prefs.FilterPriority = string(f.Priority)
	m.prefs.FilterStatus = string(f.Status)
	m.prefs.GroupByPriority = m.todos.Grouped()
	return tea.Batch(m.taskList.Sync(), m.savePreferences())
}
