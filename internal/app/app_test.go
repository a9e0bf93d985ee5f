package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nhle/todo-client/internal/apiclient"
	"github.com/nhle/todo-client/internal/auth"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/session"
	"github.com/nhle/todo-client/internal/store"
	"github.com/nhle/todo-client/internal/testutil"
	"github.com/nhle/todo-client/internal/todolist"
	"github.com/nhle/todo-client/internal/todos"
	"github.com/nhle/todo-client/internal/ui/command"
	"github.com/nhle/todo-client/internal/ui/guard"
	"github.com/nhle/todo-client/internal/ui/login"
)

type fixture struct {
	backend  *testutil.Backend
	state    *store.SQLiteStore
	sessions *session.KVStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	return &fixture{
		backend:  testutil.NewBackend(t),
		state:    st,
		sessions: session.NewKVStore(st),
	}
}

func (f *fixture) model(t *testing.T) Model {
	t.Helper()
	client := apiclient.New(f.backend.URL(), time.Second, f.sessions)
	vm := todolist.New(todos.NewService(client, nil), client.BaseURL(), nil)
	m := New(Deps{
		Auth:       auth.NewManager(client, f.sessions, nil),
		Sessions:   f.sessions,
		State:      f.state,
		Todos:      vm,
		InstanceID: "test",
	})
	t.Cleanup(m.unsubscribe)
	return m
}

func TestLostSessionRedirectsOnce(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m.currentView = ViewTodos
	m.session = model.Session{Token: "T1"}

	cmd := m.onSession(model.Session{})
	if cmd == nil {
		t.Fatal("losing the token on the list returned no command")
	}
	redirect, ok := cmd().(guard.RedirectMsg)
	if !ok {
		t.Fatalf("cmd() = %T, want guard.RedirectMsg", cmd())
	}
	if again := m.onSession(model.Session{}); again != nil {
		t.Error("second session clear produced another redirect")
	}

	next, _ := m.Update(redirect)
	m = next.(Model)
	if m.currentView != ViewLogin {
		t.Fatalf("currentView = %v, want login", m.currentView)
	}

	next, cmd = m.Update(guard.RedirectMsg{})
	m = next.(Model)
	if m.currentView != ViewLogin || cmd != nil {
		t.Errorf("a late redirect should be a no-op, got view %v cmd %v", m.currentView, cmd != nil)
	}
}

func TestSessionOnLoginViewStartsCheck(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m.currentView = ViewLogin

	if cmd := m.onSession(model.Session{Token: "T1"}); cmd == nil {
		t.Fatal("gaining a token on the login view returned no command")
	}
	if m.currentView != ViewChecking {
		t.Errorf("currentView = %v, want checking", m.currentView)
	}
	if m.guard.State() != guard.Checking {
		t.Errorf("guard state = %v, want checking", m.guard.State())
	}
}

func TestSessionOnUnprotectedViewWithoutToken(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m.currentView = ViewRegister

	if cmd := m.onSession(model.Session{}); cmd != nil {
		t.Error("clearing the session on the register view should not redirect")
	}
	if m.currentView != ViewRegister {
		t.Errorf("currentView = %v, want register", m.currentView)
	}
}

func TestLoginRemembersEmail(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("Ada Lovelace", "ada@example.com", "secret1")
	m := f.model(t)
	m.currentView = ViewLogin

	msg := m.submitLogin(login.SubmitMsg{Email: "ada@example.com", Password: "secret1", Remember: true})()
	result, ok := msg.(loginResultMsg)
	if !ok {
		t.Fatalf("submitLogin produced %T", msg)
	}
	if result.err != nil {
		t.Fatalf("login failed: %v", result.err)
	}

	if save := m.onLoginResult(result); save != nil {
		save()
	}

	prefs, err := store.LoadPreferences(context.Background(), f.state)
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if prefs.RememberEmail != "ada@example.com" {
		t.Errorf("RememberEmail = %q, want ada@example.com", prefs.RememberEmail)
	}

	select {
	case sess := <-m.sessionCh:
		if !sess.HasToken() {
			t.Error("published session has no token")
		}
	default:
		t.Error("login did not publish a session")
	}
}

func TestLoginFailureStaysOnForm(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser("Ada", "ada@example.com", "secret1")
	m := f.model(t)
	m.currentView = ViewLogin

	msg := m.submitLogin(login.SubmitMsg{Email: "ada@example.com", Password: "wrong-pw"})()
	result := msg.(loginResultMsg)
	if result.err == nil {
		t.Fatal("login with a wrong password succeeded")
	}

	m.onLoginResult(result)
	if m.currentView != ViewLogin {
		t.Errorf("currentView = %v, want login", m.currentView)
	}
	if got := f.backend.RequestCount("GET", "/api/auth/verify"); got != 0 {
		t.Errorf("verify called %d times after a failed login", got)
	}
}

func TestRegisterWithoutTokenShowsLogin(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m.currentView = ViewRegister

	m.onRegisterResult(registerResultMsg{email: "new@example.com"})

	if m.currentView != ViewLogin {
		t.Fatalf("currentView = %v, want login", m.currentView)
	}
	if !strings.Contains(m.loginView.View(), registeredNotice) {
		t.Errorf("login view does not show %q", registeredNotice)
	}
}

func TestPreferencesApplied(t *testing.T) {
	f := newFixture(t)
	prefs := model.Preferences{
		RememberEmail:   "ada@example.com",
		FilterPriority:  "HIGH",
		FilterStatus:    "PENDING",
		GroupByPriority: true,
	}
	if err := store.SavePreferences(context.Background(), f.state, "other", prefs); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	m := f.model(t)

	want := todolist.Filter{Priority: model.PriorityHigh, Status: todolist.StatusPending}
	if got := m.todos.Filter(); got != want {
		t.Errorf("Filter() = %+v, want %+v", got, want)
	}
	if !m.todos.Grouped() {
		t.Error("Grouped() = false, want true")
	}
	if m.prefs.RememberEmail != "ada@example.com" {
		t.Errorf("RememberEmail = %q", m.prefs.RememberEmail)
	}
}

func TestFilterCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     todolist.Filter
		wantFail bool
	}{
		{"priority", []string{"priority", "high"}, todolist.Filter{Priority: model.PriorityHigh, Status: todolist.StatusAll}, false},
		{"status", []string{"status", "completed"}, todolist.Filter{Priority: todolist.PriorityAll, Status: todolist.StatusCompleted}, false},
		{"bad priority", []string{"priority", "urgent"}, todolist.DefaultFilter(), true},
		{"bad field", []string{"colour", "red"}, todolist.DefaultFilter(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.model(t)
			m.currentView = ViewTodos

			m.executeCommand(command.Command{Name: command.Filter, Args: tt.args})

			if got := m.todos.Filter(); got != tt.want {
				t.Errorf("Filter() = %+v, want %+v", got, tt.want)
			}
			if m.notice.failed != tt.wantFail {
				t.Errorf("notice failed = %v, want %v (%q)", m.notice.failed, tt.wantFail, m.notice.text)
			}
			if !tt.wantFail && m.prefs.FilterStatus != string(tt.want.Status) {
				t.Errorf("prefs.FilterStatus = %q, want %q", m.prefs.FilterStatus, tt.want.Status)
			}
		})
	}
}

func TestTodoCommandsNeedSession(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)
	m.currentView = ViewLogin

	m.executeCommand(command.Command{Name: command.New})

	if m.currentView != ViewLogin {
		t.Errorf("currentView = %v, want login", m.currentView)
	}
	if !m.notice.failed {
		t.Error("expected a failure notice")
	}
}

func TestNotices(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{toggleNotice(model.Todo{Title: "Buy milk"}), `Todo "Buy milk" completed!`},
		{toggleNotice(model.Todo{Title: "Buy milk", Completed: true}), `Todo "Buy milk" marked as pending!`},
		{deleteNotice(model.Todo{Title: "Buy milk"}), `Todo "Buy milk" deleted successfully!`},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestFormError(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api", &apiclient.APIError{StatusCode: 401, Message: "Invalid credentials"}, "Invalid credentials"},
		{"network", &apiclient.NetworkError{Op: "POST /api/auth/login", Err: context.Canceled}, "could not reach the backend at " + f.backend.URL()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.formError(tt.err); got != tt.want {
				t.Errorf("formError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccountArea(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	if got := m.accountArea(); got != "" {
		t.Errorf("accountArea() before authentication = %q", got)
	}
}
