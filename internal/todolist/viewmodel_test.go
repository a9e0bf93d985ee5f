package todolist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nhle/todo-client/internal/apiclient"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/session"
	"github.com/nhle/todo-client/internal/testutil"
	"github.com/nhle/todo-client/internal/todos"
)

func newViewModel(t *testing.T) (*testutil.Backend, *ViewModel) {
	t.Helper()
	backend := testutil.NewBackend(t)
	sessions := session.NewKVStore(testutil.NewTestStore(t))
	token := backend.IssueToken("Ada", "ada@example.com", time.Hour)
	if err := sessions.Set(context.Background(), model.Session{Token: token}); err != nil {
		t.Fatalf("Set session: %v", err)
	}
	client := apiclient.New(backend.URL(), time.Second, sessions)
	return backend, New(todos.NewService(client, nil), backend.URL(), nil)
}

func TestCreateThenRefresh(t *testing.T) {
	backend, vm := newViewModel(t)
	backend.AddTodo(model.Todo{Title: "Existing Todo", Priority: model.PriorityMedium})

	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := len(vm.Todos()); n != 1 {
		t.Fatalf("held %d todos, want 1", n)
	}

	vm.BeginCreate()
	draft := model.TodoDraft{Title: "Buy Milk", Priority: model.PriorityMedium}
	if _, err := vm.SubmitDraft(context.Background(), draft); err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}

	got := vm.Todos()
	if len(got) != 2 {
		t.Fatalf("held %d todos after create, want 2", len(got))
	}
	found := false
	for _, todo := range got {
		if todo.Title == "Buy Milk" {
			found = true
		}
	}
	if !found {
		t.Errorf("todos = %+v, want one titled Buy Milk", got)
	}
	if _, open := vm.Draft(); open {
		t.Error("draft still open after successful submit")
	}
	if vm.LastFetchedAt().IsZero() {
		t.Error("LastFetchedAt not recorded")
	}
}

func TestDoubleToggleRestoresState(t *testing.T) {
	backend, vm := newViewModel(t)
	todo := backend.AddTodo(model.Todo{Title: "Walk dog"})
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	before, _ := vm.Find(todo.ID)
	if prev, err := vm.Toggle(context.Background(), todo.ID); err != nil || prev.Completed {
		t.Fatalf("first Toggle = %+v, %v", prev, err)
	}
	mid, _ := vm.Find(todo.ID)
	if mid.Completed == before.Completed {
		t.Error("first toggle did not flip completion")
	}
	if _, err := vm.Toggle(context.Background(), todo.ID); err != nil {
		t.Fatalf("second Toggle: %v", err)
	}
	after, _ := vm.Find(todo.ID)
	if after.Completed != before.Completed {
		t.Errorf("completed after double toggle = %v, want %v", after.Completed, before.Completed)
	}
	if n := backend.RequestCount(http.MethodPut, "/api/todos/1"); n != 2 {
		t.Errorf("PUT requests = %d, want 2", n)
	}
}

func TestToggleFailureLeavesState(t *testing.T) {
	backend, vm := newViewModel(t)
	todo := backend.AddTodo(model.Todo{Title: "Walk dog"})
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	backend.FailWith(http.StatusInternalServerError)
	if _, err := vm.Toggle(context.Background(), todo.ID); err == nil {
		t.Fatal("Toggle succeeded against failing backend")
	}
	got, ok := vm.Find(todo.ID)
	if !ok || got.Completed {
		t.Errorf("held todo = %+v, %v; want unchanged", got, ok)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backend, vm := newViewModel(t)
	todo := backend.AddTodo(model.Todo{Title: "Old chore"})
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, handled, err := vm.ConfirmDelete(context.Background()); handled || err != nil {
		t.Errorf("ConfirmDelete without request = %v, %v; want no-op", handled, err)
	}

	if _, err := vm.RequestDelete(todo.ID); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	vm.CancelDelete()
	if _, pending := vm.PendingDelete(); pending {
		t.Error("pending delete kept after cancel")
	}
	if n := backend.RequestCount(http.MethodDelete, "/api/todos/1"); n != 0 {
		t.Errorf("cancelled delete made %d requests", n)
	}

	if _, err := vm.RequestDelete(todo.ID); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	deleted, handled, err := vm.ConfirmDelete(context.Background())
	if err != nil || !handled {
		t.Fatalf("ConfirmDelete = %v, %v", handled, err)
	}
	if deleted.Title != "Old chore" {
		t.Errorf("deleted = %+v", deleted)
	}
	if len(vm.Todos()) != 0 {
		t.Errorf("held todos after delete = %+v, want none", vm.Todos())
	}

	if _, handled, _ := vm.ConfirmDelete(context.Background()); handled {
		t.Error("second ConfirmDelete acted on a cleared request")
	}
}

func TestDeleteAlreadyRemoved(t *testing.T) {
	backend, vm := newViewModel(t)
	todo := backend.AddTodo(model.Todo{Title: "Gone soon"})
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := vm.RequestDelete(todo.ID); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}

	// Another client removes it first.
	svcBackendRemove(t, backend, todo.ID)

	_, _, err := vm.ConfirmDelete(context.Background())
	if apiclient.StatusCode(err) != http.StatusNotFound {
		t.Errorf("ConfirmDelete error = %v, want 404", err)
	}
}

func svcBackendRemove(t *testing.T, backend *testutil.Backend, id int64) {
	t.Helper()
	sessions := session.NewKVStore(testutil.NewTestStore(t))
	token := backend.IssueToken("Ada", "ada@example.com", time.Hour)
	if err := sessions.Set(context.Background(), model.Session{Token: token}); err != nil {
		t.Fatalf("Set session: %v", err)
	}
	svc := todos.NewService(apiclient.New(backend.URL(), time.Second, sessions), nil)
	if err := svc.Remove(context.Background(), id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestEditFlow(t *testing.T) {
	backend, vm := newViewModel(t)
	todo := backend.AddTodo(model.Todo{Title: "Draft me", Priority: model.PriorityLow})
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	draft, err := vm.BeginEdit(todo.ID)
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if draft.ID != todo.ID || draft.Title != "Draft me" || draft.Priority != model.PriorityLow {
		t.Errorf("draft = %+v", draft)
	}

	vm.CancelEdit()
	if _, open := vm.Draft(); open {
		t.Error("draft open after cancel")
	}
	if n := backend.RequestCount(http.MethodPut, "/api/todos/1"); n != 0 {
		t.Errorf("cancel made %d requests", n)
	}

	draft, _ = vm.BeginEdit(todo.ID)
	draft.Title = "Edited"
	draft.Priority = model.PriorityHigh
	if _, err := vm.SubmitDraft(context.Background(), draft); err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	got, _ := vm.Find(todo.ID)
	if got.Title != "Edited" || got.Priority != model.PriorityHigh {
		t.Errorf("todo after edit = %+v", got)
	}

	if _, err := vm.BeginEdit(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("BeginEdit(99) error = %v, want ErrNotFound", err)
	}
}

func TestInvalidDraftKeepsDraftOpen(t *testing.T) {
	backend, vm := newViewModel(t)
	vm.BeginCreate()

	if _, err := vm.SubmitDraft(context.Background(), model.TodoDraft{Title: "ab"}); err == nil {
		t.Fatal("SubmitDraft accepted a short title")
	}
	if _, open := vm.Draft(); !open {
		t.Error("draft closed after failed submit")
	}
	if vm.Saving() {
		t.Error("saving flag left on")
	}
	if n := len(backend.Requests()); n != 0 {
		t.Errorf("%d requests reached the backend", n)
	}
}

type blockingService struct {
	Service
	started chan struct{}
	release chan struct{}
	creates int
}

func (s *blockingService) List(context.Context, todos.ListOptions) ([]model.Todo, error) {
	return []model.Todo{}, nil
}

func (s *blockingService) CreateDraft(_ context.Context, d model.TodoDraft) (model.Todo, error) {
	s.creates++
	close(s.started)
	<-s.release
	return model.Todo{ID: 1, Title: d.Title}, nil
}

func TestSubmitWhileSavingIsRejected(t *testing.T) {
	svc := &blockingService{started: make(chan struct{}), release: make(chan struct{})}
	vm := New(svc, "http://localhost:8080", nil)

	done := make(chan error, 1)
	go func() {
		_, err := vm.SubmitDraft(context.Background(), model.TodoDraft{Title: "Buy Milk"})
		done <- err
	}()
	<-svc.started

	if !vm.Saving() {
		t.Error("Saving = false while a save is outstanding")
	}
	if _, err := vm.SubmitDraft(context.Background(), model.TodoDraft{Title: "Buy Milk"}); !errors.Is(err, ErrSaveInProgress) {
		t.Errorf("second submit error = %v, want ErrSaveInProgress", err)
	}

	close(svc.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if svc.creates != 1 {
		t.Errorf("creates = %d, want 1", svc.creates)
	}
	if vm.Saving() {
		t.Error("Saving = true after save finished")
	}
}

func TestRefreshClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
		wantMsg  string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: KindUnauthenticated, wantMsg: "session expired"},
		{name: "forbidden", status: http.StatusForbidden, wantKind: KindForbidden, wantMsg: "Access denied (403)"},
		{name: "server", status: http.StatusInternalServerError, wantKind: KindGeneric, wantMsg: "Failed to load todos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, vm := newViewModel(t)
			backend.AddTodo(model.Todo{Title: "Existing Todo"})
			if err := vm.Refresh(context.Background()); err != nil {
				t.Fatalf("Refresh: %v", err)
			}

			backend.FailWith(tt.status)
			err := vm.Refresh(context.Background())

			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Refresh error = %v, want LoadError", err)
			}
			if loadErr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", loadErr.Kind, tt.wantKind)
			}
			if !strings.Contains(loadErr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", loadErr.Message, tt.wantMsg)
			}
			if len(vm.Todos()) != 0 {
				t.Error("collection kept after failed refresh")
			}
			if vm.Loading() {
				t.Error("loading flag left on")
			}
			if vm.Err() != loadErr {
				t.Error("Err does not return the last load error")
			}
		})
	}
}

func TestRefreshNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sessions := session.NewKVStore(testutil.NewTestStore(t))
	vm := New(todos.NewService(apiclient.New(url, time.Second, sessions), nil), url, nil)

	err := vm.Refresh(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Kind != KindNetwork {
		t.Fatalf("Refresh error = %v, want network LoadError", err)
	}
	if !strings.Contains(loadErr.Message, url) {
		t.Errorf("Message = %q, want backend url", loadErr.Message)
	}
	if vm.Loading() {
		t.Error("loading flag left on")
	}
}

func TestFilteringDoesNotFetch(t *testing.T) {
	backend, vm := newViewModel(t)
	backend.AddTodo(model.Todo{Title: "Pay rent", Priority: model.PriorityHigh})
	backend.AddTodo(model.Todo{Title: "Read book", Priority: model.PriorityLow})
	if err := vm.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := len(backend.Requests())

	vm.SetFilter(Filter{Priority: model.PriorityHigh, Status: StatusAll})
	if got := vm.Visible(); len(got) != 1 || got[0].Title != "Pay rent" {
		t.Errorf("Visible = %+v", got)
	}
	if len(vm.Todos()) != 2 {
		t.Error("filter changed the held collection")
	}
	vm.ClearFilters()
	if len(vm.Visible()) != 2 {
		t.Error("ClearFilters did not restore the full list")
	}
	if len(backend.Requests()) != before {
		t.Error("filtering made a request")
	}
}

func TestDescribe(t *testing.T) {
	url := "http://localhost:8080"
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "network", err: &apiclient.NetworkError{Op: "GET /api/todos", Err: errors.New("refused")}, want: "could not reach the backend at " + url},
		{name: "server", err: &apiclient.APIError{StatusCode: 500, Message: "boom"}, want: "request failed: boom"},
		{name: "nil", err: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err, url); got != tt.want {
				t.Errorf("Describe = %q, want %q", got, tt.want)
			}
		})
	}
}
