// Package todos is the typed CRUD surface over the backend's todo
// endpoints. Results are already unwrapped from transport envelopes.
package todos

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/validation"
)

// PathTodos is the collection endpoint.
const PathTodos = "/api/todos"

// Requester is the subset of apiclient.Client the service needs.
type Requester interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// Service performs todo operations for the signed-in user.
type Service struct {
	api    Requester
	logger *log.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(api Requester, logger *log.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{api: api, logger: logger}
}

// ListOptions narrows the collection on the server. The zero value lists
// everything.
type ListOptions struct {
	Priority  model.Priority
	Category  string
	Completed *bool
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Priority != "" {
		q.Set("priority", string(o.Priority.Normalize()))
	}
	if c := strings.TrimSpace(o.Category); c != "" {
		q.Set("category", c)
	}
	if o.Completed != nil {
		q.Set("completed", strconv.FormatBool(*o.Completed))
	}
	return q.Encode()
}

// Patch holds the fields of a partial update. Nil fields are not sent.
type Patch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Completed   *bool           `json:"completed,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
	Category    *string         `json:"category,omitempty"`
}

// PatchFromDraft returns a patch carrying every editable field of d.
func PatchFromDraft(d model.TodoDraft) Patch {
	title := strings.TrimSpace(d.Title)
	description := d.Description
	priority := d.Priority.Normalize()
	category := strings.TrimSpace(d.Category)
	return Patch{
		Title:       &title,
		Description: &description,
		Priority:    &priority,
		Category:    &category,
	}
}

type createRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Completed   bool           `json:"completed"`
	Priority    model.Priority `json:"priority"`
	Category    string         `json:"category,omitempty"`
}

// List returns the full collection, narrowed by opts. An empty collection
// is an empty slice.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]model.Todo, error) {
	path := PathTodos
	if q := opts.query(); q != "" {
		path += "?" + q
	}

	var todos []model.Todo
	if err := s.api.Get(ctx, path, &todos); err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}

// Create adds a todo. The title is checked locally first; an invalid title
// never reaches the network.
func (s *Service) Create(
	ctx context.Context,
	title string,
	description string,
	priority model.Priority,
) (model.Todo, error) {
	return s.CreateDraft(ctx, model.TodoDraft{
		Title:       title,
		Description: description,
		Priority:    priority,
	})
}

// CreateDraft adds a todo from a form draft.
func (s *Service) CreateDraft(ctx context.Context, d model.TodoDraft) (model.Todo, error) {
	if err := validation.Title(d.Title); err != nil {
		return model.Todo{}, err
	}

	body := createRequest{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Completed:   false,
		Priority:    d.Priority.Normalize(),
		Category:    strings.TrimSpace(d.Category),
	}

	var created model.Todo
	if err := s.api.Post(ctx, PathTodos, body, &created); err != nil {
		return model.Todo{}, fmt.Errorf("creating todo: %w", err)
	}
	s.logger.Debug("todo created", "id", created.ID)
	return created, nil
}

// Update sends only the fields set in p. A supplied title is validated
// like on create.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (model.Todo, error) {
	if p.Title != nil {
		if err := validation.Title(*p.Title); err != nil {
			return model.Todo{}, err
		}
		trimmed := strings.TrimSpace(*p.Title)
		p.Title = &trimmed
	}

	var updated model.Todo
	if err := s.api.Put(ctx, itemPath(id), p, &updated); err != nil {
		return model.Todo{}, fmt.Errorf("updating todo %d: %w", id, err)
	}
	return updated, nil
}

// SetCompleted updates only the completion flag.
func (s *Service) SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error) {
	return s.Update(ctx, id, Patch{Completed: &completed})
}

// Remove deletes a todo. Removing an id that is already gone surfaces the
// server's 404 as an APIError.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, itemPath(id)); err != nil {
		return fmt.Errorf("deleting todo %d: %w", id, err)
	}
	s.logger.Debug("todo deleted", "id", id)
	return nil
}

func itemPath(id int64) string {
	return PathTodos + "/" + strconv.FormatInt(id, 10)
}
