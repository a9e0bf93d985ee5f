package model

import "strings"

// Priority is the importance level of a todo as exchanged with the backend.
type Priority string

// Priority levels. The backend stores them as upper-case strings.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists every priority in display order (highest first).
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Normalize maps lower-case or padded input to a known level.
// Anything unrecognised becomes PriorityMedium.
func (p Priority) Normalize() Priority {
	n := Priority(strings.ToUpper(strings.TrimSpace(string(p))))
	if n.Valid() {
		return n
	}
	return PriorityMedium
}

// Label returns the human-readable name of the priority.
func (p Priority) Label() string {
	switch p.Normalize() {
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	default:
		return "Medium"
	}
}

// Todo is a single task record owned by the signed-in user on the backend.
// The ID is assigned by the server and never allocated locally.
type Todo struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Completed   bool     `json:"completed"`
	Priority    Priority `json:"priority"`
	Category    string   `json:"category,omitempty"`
}

// TodoDraft holds the editable fields of a todo while a form is open.
// ID is zero when the draft creates a new todo.
type TodoDraft struct {
	ID          int64
	Title       string
	Description string
	Priority    Priority
	Category    string
}

// IsEdit reports whether the draft targets an existing todo.
func (d TodoDraft) IsEdit() bool {
	return d.ID != 0
}

// DraftFromTodo mirrors the editable fields of t into a draft.
func DraftFromTodo(t Todo) TodoDraft {
	return TodoDraft{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority.Normalize(),
		Category:    t.Category,
	}
}

// NewDraft returns a blank draft for the creation form.
func NewDraft() TodoDraft {
	return TodoDraft{Priority: PriorityMedium}
}
