// Package todolist holds the fetched todo collection for the list view and
// exposes filtered and grouped projections plus mutation dispatch. Every
// mutation waits for the server and then refetches; nothing changes locally
// ahead of the response.
package todolist

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/todo-client/internal/logging"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/todos"
)

// ErrSaveInProgress is returned when a draft is submitted while another
// save has not finished.
var ErrSaveInProgress = errors.New("a save is already in progress")

// ErrNotFound is returned when an id is not in the held collection.
var ErrNotFound = errors.New("todo not found")

// Service is the subset of todos.Service the view-model drives.
type Service interface {
	List(ctx context.Context, opts todos.ListOptions) ([]model.Todo, error)
	CreateDraft(ctx context.Context, d model.TodoDraft) (model.Todo, error)
	Update(ctx context.Context, id int64, p todos.Patch) (model.Todo, error)
	SetCompleted(ctx context.Context, id int64, completed bool) (model.Todo, error)
	Remove(ctx context.Context, id int64) error
}

// ViewModel is safe for concurrent use. Refreshes are not cancelled when a
// newer one starts; whichever response lands last wins.
type ViewModel struct {
	svc     Service
	baseURL string
	logger  *log.Logger
	now     func() time.Time

	mu            gosync.Mutex
	todos         []model.Todo
	loading       bool
	loadErr       *LoadError
	lastFetchedAt time.Time
	filter        Filter
	grouped       bool
	pendingDelete *model.Todo
	draft         *model.TodoDraft
	saving        bool
}

// New creates a view-model. baseURL appears in network error messages.
func New(svc Service, baseURL string, logger *log.Logger) *ViewModel {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ViewModel{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
		todos:   []model.Todo{},
		filter:  DefaultFilter(),
	}
}

// BaseURL returns the backend address used in messages.
func (vm *ViewModel) BaseURL() string {
	return vm.baseURL
}

// Refresh refetches the collection. On failure the collection is emptied
// and a classified LoadError is kept and returned. The loading flag is
// always cleared.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	vm.mu.Lock()
	vm.loading = true
	vm.mu.Unlock()

	defer func() {
		vm.mu.Lock()
		vm.loading = false
		vm.mu.Unlock()
	}()

	fetched, err := vm.svc.List(ctx, todos.ListOptions{})

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if err != nil {
		loadErr := classify(err, vm.baseURL)
		vm.logger.Warn("loading todos failed", "kind", loadErr.Kind, "err", err)
		vm.todos = []model.Todo{}
		vm.loadErr = loadErr
		return loadErr
	}

	vm.todos = fetched
	vm.loadErr = nil
	vm.lastFetchedAt = vm.now()
	return nil
}

// Loading reports whether a refresh is outstanding.
func (vm *ViewModel) Loading() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.loading
}

// Err returns the error of the last refresh, or nil.
func (vm *ViewModel) Err() *LoadError {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.loadErr
}

// LastFetchedAt returns when the collection was last loaded successfully.
func (vm *ViewModel) LastFetchedAt() time.Time {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.lastFetchedAt
}

// Todos returns a copy of the held collection.
func (vm *ViewModel) Todos() []model.Todo {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]model.Todo(nil), vm.todos...)
}

// Visible returns the held collection with the current filter applied.
func (vm *ViewModel) Visible() []model.Todo {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return Apply(vm.todos, vm.filter)
}

// Groups returns the visible todos partitioned by priority.
func (vm *ViewModel) Groups() []Bucket {
	return Group(vm.Visible())
}

// Filter returns the current filter.
func (vm *ViewModel) Filter() Filter {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.filter
}

// SetFilter replaces the filter. It never triggers a fetch.
func (vm *ViewModel) SetFilter(f Filter) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter = f
}

// ClearFilters resets the filter to ALL/ALL.
func (vm *ViewModel) ClearFilters() {
	vm.SetFilter(DefaultFilter())
}

// Grouped reports whether the priority grouping display is on.
func (vm *ViewModel) Grouped() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.grouped
}

// SetGrouped switches the grouping display.
func (vm *ViewModel) SetGrouped(on bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.grouped = on
}

// Find returns the held todo with id.
func (vm *ViewModel) Find(id int64) (model.Todo, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.find(id)
}

func (vm *ViewModel) find(id int64) (model.Todo, bool) {
	for _, t := range vm.todos {
		if t.ID == id {
			return t, true
		}
	}
	return model.Todo{}, false
}

// Toggle flips the completion flag on the server and refetches. On failure
// the held collection is left as it was. The returned todo is the one as
// it was before the toggle.
func (vm *ViewModel) Toggle(ctx context.Context, id int64) (model.Todo, error) {
	current, ok := vm.Find(id)
	if !ok {
		return model.Todo{}, fmt.Errorf("toggling todo %d: %w", id, ErrNotFound)
	}

	if _, err := vm.svc.SetCompleted(ctx, id, !current.Completed); err != nil {
		return current, err
	}
	vm.refreshAfterMutation(ctx)
	return current, nil
}

// RequestDelete records a pending deletion awaiting confirmation.
func (vm *ViewModel) RequestDelete(id int64) (model.Todo, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	t, ok := vm.find(id)
	if !ok {
		return model.Todo{}, fmt.Errorf("deleting todo %d: %w", id, ErrNotFound)
	}
	vm.pendingDelete = &t
	return t, nil
}

// PendingDelete returns the todo awaiting delete confirmation.
func (vm *ViewModel) PendingDelete() (model.Todo, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.pendingDelete == nil {
		return model.Todo{}, false
	}
	return *vm.pendingDelete, true
}

// CancelDelete drops the pending deletion without a network call.
func (vm *ViewModel) CancelDelete() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.pendingDelete = nil
}

// ConfirmDelete removes the pending todo on the server and refetches.
// Without a pending request it does nothing and reports false.
func (vm *ViewModel) ConfirmDelete(ctx context.Context) (model.Todo, bool, error) {
	vm.mu.Lock()
	pending := vm.pendingDelete
	vm.pendingDelete = nil
	vm.mu.Unlock()

	if pending == nil {
		return model.Todo{}, false, nil
	}
	if err := vm.svc.Remove(ctx, pending.ID); err != nil {
		return *pending, true, err
	}
	vm.refreshAfterMutation(ctx)
	return *pending, true, nil
}

// BeginCreate opens a blank draft.
func (vm *ViewModel) BeginCreate() model.TodoDraft {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	d := model.NewDraft()
	vm.draft = &d
	return d
}

// BeginEdit captures the todo with id into a draft.
func (vm *ViewModel) BeginEdit(id int64) (model.TodoDraft, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	t, ok := vm.find(id)
	if !ok {
		return model.TodoDraft{}, fmt.Errorf("editing todo %d: %w", id, ErrNotFound)
	}
	d := model.DraftFromTodo(t)
	vm.draft = &d
	return d, nil
}

// Draft returns the open draft, if any.
func (vm *ViewModel) Draft() (model.TodoDraft, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.draft == nil {
		return model.TodoDraft{}, false
	}
	return *vm.draft, true
}

// CancelEdit discards the draft without a network call.
func (vm *ViewModel) CancelEdit() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.draft = nil
}

// Saving reports whether a draft submission is outstanding.
func (vm *ViewModel) Saving() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.saving
}

// SubmitDraft creates or updates depending on d.ID. On success the draft is
// cleared and the collection refetched. A second submit while the first is
// outstanding returns ErrSaveInProgress without a network call.
func (vm *ViewModel) SubmitDraft(ctx context.Context, d model.TodoDraft) (model.Todo, error) {
	vm.mu.Lock()
	if vm.saving {
		vm.mu.Unlock()
		return model.Todo{}, ErrSaveInProgress
	}
	vm.saving = true
	vm.mu.Unlock()

	saved, err := vm.save(ctx, d)

	vm.mu.Lock()
	vm.saving = false
	if err == nil {
		vm.draft = nil
	}
	vm.mu.Unlock()

	if err != nil {
		return model.Todo{}, err
	}
	vm.refreshAfterMutation(ctx)
	return saved, nil
}

func (vm *ViewModel) save(ctx context.Context, d model.TodoDraft) (model.Todo, error) {
	if d.IsEdit() {
		return vm.svc.Update(ctx, d.ID, todos.PatchFromDraft(d))
	}
	return vm.svc.CreateDraft(ctx, d)
}

// refreshAfterMutation refetches once the server accepted a change. The
// mutation already succeeded, so a failed refetch is only logged and kept
// as the list error.
func (vm *ViewModel) refreshAfterMutation(ctx context.Context) {
	if err := vm.Refresh(ctx); err != nil {
		vm.logger.Debug("refresh after mutation failed", "err", err)
	}
}
