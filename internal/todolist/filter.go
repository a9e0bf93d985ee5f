package todolist

import (
	"strings"

	"github.com/nhle/todo-client/internal/model"
)

// PriorityAll matches every priority.
const PriorityAll model.Priority = "ALL"

// StatusFilter selects todos by completion.
type StatusFilter string

// Completion filters.
const (
	StatusAll       StatusFilter = "ALL"
	StatusCompleted StatusFilter = "COMPLETED"
	StatusPending   StatusFilter = "PENDING"
)

// Filter is the projection applied to the held collection. Both criteria
// must match.
type Filter struct {
	Priority model.Priority
	Status   StatusFilter
}

// DefaultFilter matches everything.
func DefaultFilter() Filter {
	return Filter{Priority: PriorityAll, Status: StatusAll}
}

// ParseFilter builds a filter from persisted strings. Unknown values fall
// back to ALL.
func ParseFilter(priority, status string) Filter {
	f := DefaultFilter()
	if p := model.Priority(strings.ToUpper(strings.TrimSpace(priority))); p.Valid() {
		f.Priority = p
	}
	switch s := StatusFilter(strings.ToUpper(strings.TrimSpace(status))); s {
	case StatusCompleted, StatusPending:
		f.Status = s
	}
	return f
}

// IsDefault reports whether f lets every todo through.
func (f Filter) IsDefault() bool {
	return f.priorityAll() && f.statusAll()
}

// Matches reports whether t passes both criteria. Todos with an unknown
// priority count as MEDIUM, as in grouping.
func (f Filter) Matches(t model.Todo) bool {
	if !f.priorityAll() && t.Priority.Normalize() != f.Priority.Normalize() {
		return false
	}
	switch f.Status {
	case StatusCompleted:
		return t.Completed
	case StatusPending:
		return !t.Completed
	}
	return true
}

// NextPriority cycles ALL, HIGH, MEDIUM, LOW.
func (f Filter) NextPriority() Filter {
	order := append([]model.Priority{PriorityAll}, model.Priorities...)
	f.Priority = order[(indexOf(order, f.Priority)+1)%len(order)]
	return f
}

// NextStatus cycles ALL, PENDING, COMPLETED.
func (f Filter) NextStatus() Filter {
	switch f.Status {
	case StatusPending:
		f.Status = StatusCompleted
	case StatusCompleted:
		f.Status = StatusAll
	default:
		f.Status = StatusPending
	}
	return f
}

func (f Filter) priorityAll() bool {
	return f.Priority == "" || f.Priority == PriorityAll
}

func (f Filter) statusAll() bool {
	return f.Status == "" || f.Status == StatusAll
}

func indexOf(ps []model.Priority, p model.Priority) int {
	for i, candidate := range ps {
		if candidate == p {
			return i
		}
	}
	return 0
}

// Apply returns the todos matching f in their original order. The input is
// never modified.
func Apply(todos []model.Todo, f Filter) []model.Todo {
	out := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Bucket is one priority section of the grouped display.
type Bucket struct {
	Priority model.Priority
	Todos    []model.Todo
}

// Group partitions todos into HIGH, MEDIUM and LOW buckets in that order.
// Every todo lands in exactly one bucket; unknown priorities go to MEDIUM.
func Group(todos []model.Todo) []Bucket {
	buckets := make([]Bucket, len(model.Priorities))
	index := make(map[model.Priority]int, len(model.Priorities))
	for i, p := range model.Priorities {
		buckets[i] = Bucket{Priority: p, Todos: []model.Todo{}}
		index[p] = i
	}
	for _, t := range todos {
		i := index[t.Priority.Normalize()]
		buckets[i].Todos = append(buckets[i].Todos, t)
	}
	return buckets
}
