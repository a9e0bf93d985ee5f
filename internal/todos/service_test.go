package todos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nhle/todo-client/internal/apiclient"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/session"
	"github.com/nhle/todo-client/internal/testutil"
	"github.com/nhle/todo-client/internal/validation"
)

func newService(t *testing.T) (*testutil.Backend, *Service) {
	t.Helper()
	backend := testutil.NewBackend(t)
	sessions := session.NewKVStore(testutil.NewTestStore(t))
	token := backend.IssueToken("Ada", "ada@example.com", time.Hour)
	if err := sessions.Set(context.Background(), model.Session{Token: token}); err != nil {
		t.Fatalf("Set session: %v", err)
	}
	client := apiclient.New(backend.URL(), time.Second, sessions)
	return backend, NewService(client, nil)
}

func TestListEmpty(t *testing.T) {
	for _, envelope := range []bool{false, true} {
		backend, svc := newService(t)
		backend.Envelope = envelope

		got, err := svc.List(context.Background(), ListOptions{})
		if err != nil {
			t.Fatalf("List (envelope=%v): %v", envelope, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("List (envelope=%v) = %#v, want empty non-nil slice", envelope, got)
		}
	}
}

func TestListQuery(t *testing.T) {
	backend, svc := newService(t)
	backend.AddTodo(model.Todo{Title: "Pay rent", Priority: model.PriorityHigh, Category: "home"})
	backend.AddTodo(model.Todo{Title: "Read book", Priority: model.PriorityLow, Category: "fun"})
	backend.AddTodo(model.Todo{Title: "Fix bike", Priority: model.PriorityHigh, Completed: true, Category: "home"})

	pending := false
	tests := []struct {
		name      string
		opts      ListOptions
		wantQuery string
		wantTitle []string
	}{
		{name: "all", opts: ListOptions{}, wantQuery: "", wantTitle: []string{"Pay rent", "Read book", "Fix bike"}},
		{name: "priority", opts: ListOptions{Priority: "high"}, wantQuery: "priority=HIGH", wantTitle: []string{"Pay rent", "Fix bike"}},
		{
			name:      "category and status",
			opts:      ListOptions{Category: "home", Completed: &pending},
			wantQuery: "category=home&completed=false",
			wantTitle: []string{"Pay rent"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var titles []string
			for _, todo := range got {
				titles = append(titles, todo.Title)
			}
			if strings.Join(titles, ",") != strings.Join(tt.wantTitle, ",") {
				t.Errorf("titles = %v, want %v", titles, tt.wantTitle)
			}
			reqs := backend.Requests()
			if last := reqs[len(reqs)-1]; last.Query != tt.wantQuery {
				t.Errorf("query = %q, want %q", last.Query, tt.wantQuery)
			}
		})
	}
}

func TestCreateRejectsInvalidTitleLocally(t *testing.T) {
	tests := []struct {
		title   string
		wantErr bool
	}{
		{title: "", wantErr: true},
		{title: "   ", wantErr: true},
		{title: "ab", wantErr: true},
		{title: "  ab  ", wantErr: true},
		{title: "abc", wantErr: false},
		{title: "  abc ", wantErr: false},
		{title: "Buy Milk", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			backend, svc := newService(t)

			_, err := svc.Create(context.Background(), tt.title, "", model.PriorityMedium)
			posts := backend.RequestCount(http.MethodPost, PathTodos)

			if tt.wantErr {
				var fieldErr *validation.Error
				if !errors.As(err, &fieldErr) || fieldErr.Field != "title" {
					t.Errorf("Create(%q) error = %v, want title validation error", tt.title, err)
				}
				if posts != 0 {
					t.Errorf("Create(%q) made %d requests, want 0", tt.title, posts)
				}
				return
			}
			if err != nil {
				t.Errorf("Create(%q): %v", tt.title, err)
			}
			if posts != 1 {
				t.Errorf("Create(%q) made %d requests, want 1", tt.title, posts)
			}
		})
	}
}

func TestCreateSendsFullBody(t *testing.T) {
	backend, svc := newService(t)

	created, err := svc.CreateDraft(context.Background(), model.TodoDraft{
		Title:       "  Buy Milk ",
		Description: "2 litres",
		Priority:    "high",
		Category:    "shopping",
	})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if created.ID == 0 || created.Title != "Buy Milk" || created.Completed {
		t.Errorf("created = %+v", created)
	}

	reqs := backend.Requests()
	var body map[string]any
	if err := json.Unmarshal([]byte(reqs[len(reqs)-1].Body), &body); err != nil {
		t.Fatalf("decoding request body: %v", err)
	}
	want := map[string]any{
		"title":       "Buy Milk",
		"description": "2 litres",
		"completed":   false,
		"priority":    "HIGH",
		"category":    "shopping",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, body[k], v)
		}
	}
}

func TestUpdateSendsOnlySuppliedFields(t *testing.T) {
	backend, svc := newService(t)
	todo := backend.AddTodo(model.Todo{Title: "Existing Todo", Description: "keep me", Priority: model.PriorityLow})

	updated, err := svc.SetCompleted(context.Background(), todo.ID, true)
	if err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	if !updated.Completed || updated.Description != "keep me" || updated.Priority != model.PriorityLow {
		t.Errorf("updated = %+v, want only completed changed", updated)
	}

	reqs := backend.Requests()
	if got := strings.TrimSpace(reqs[len(reqs)-1].Body); got != `{"completed":true}` {
		t.Errorf("request body = %s, want only completed", got)
	}

	if _, err := svc.SetCompleted(context.Background(), todo.ID, false); err != nil {
		t.Fatalf("SetCompleted(false): %v", err)
	}
	reqs = backend.Requests()
	if got := strings.TrimSpace(reqs[len(reqs)-1].Body); got != `{"completed":false}` {
		t.Errorf("request body = %s, want completed=false sent", got)
	}
}

func TestUpdateFromDraft(t *testing.T) {
	backend, svc := newService(t)
	todo := backend.AddTodo(model.Todo{Title: "Old title", Completed: true})

	draft := model.DraftFromTodo(todo)
	draft.Title = "New title"
	draft.Priority = model.PriorityHigh

	updated, err := svc.Update(context.Background(), todo.ID, PatchFromDraft(draft))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "New title" || updated.Priority != model.PriorityHigh || !updated.Completed {
		t.Errorf("updated = %+v", updated)
	}

	draft.Title = "x"
	before := len(backend.Requests())
	if _, err := svc.Update(context.Background(), todo.ID, PatchFromDraft(draft)); !validation.IsValidationError(err) {
		t.Errorf("Update with short title error = %v, want validation error", err)
	}
	if len(backend.Requests()) != before {
		t.Error("invalid edit reached the backend")
	}
}

func TestRemove(t *testing.T) {
	for _, envelope := range []bool{false, true} {
		backend, svc := newService(t)
		backend.Envelope = envelope
		todo := backend.AddTodo(model.Todo{Title: "Delete me"})

		if err := svc.Remove(context.Background(), todo.ID); err != nil {
			t.Fatalf("Remove (envelope=%v): %v", envelope, err)
		}
		if len(backend.Todos()) != 0 {
			t.Errorf("todo still present after Remove")
		}

		err := svc.Remove(context.Background(), todo.ID)
		if apiclient.StatusCode(err) != http.StatusNotFound {
			t.Errorf("second Remove error = %v, want 404 APIError", err)
		}
	}
}

func TestServerErrorsAreTyped(t *testing.T) {
	backend, svc := newService(t)
	backend.FailWith(http.StatusInternalServerError)

	_, err := svc.List(context.Background(), ListOptions{})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("List error = %v, want 500 APIError", err)
	}
}
