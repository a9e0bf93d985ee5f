package tasklist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/theme"
)

// TodoItem wraps a model.Todo so it can be used in a bubbles/list.
type TodoItem struct {
	Todo model.Todo
}

// FilterValue returns the string used for fuzzy filtering.
func (i TodoItem) FilterValue() string { return i.Todo.Title }

// Title returns the todo title for the list.
func (i TodoItem) Title() string { return i.Todo.Title }

// Description returns the todo description.
func (i TodoItem) Description() string { return i.Todo.Description }

// headerItem introduces a priority bucket in grouped mode. It cannot be
// acted on.
type headerItem struct {
	priority model.Priority
	count    int
}

func (h headerItem) FilterValue() string { return "" }

// ItemDelegate implements list.ItemDelegate for rendering list items.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	switch it := item.(type) {
	case headerItem:
		label := fmt.Sprintf("%s priority (%d)", it.priority.Label(), it.count)
		fmt.Fprint(w, theme.PriorityStyle(it.priority).Inherit(theme.GroupHeaderStyle).Render(label))
	case TodoItem:
		fmt.Fprint(w, renderTodo(it.Todo, index == m.Index()))
	}
}

// renderTodo draws a checkbox, priority badge, title and category.
func renderTodo(t model.Todo, selected bool) string {
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}

	pri := theme.PriorityStyle(t.Priority).Render(fmt.Sprintf("%-6s", t.Priority.Label()))

	title := t.Title
	if t.Completed {
		title = theme.DimmedStyle.Render(title)
	}

	category := ""
	if t.Category != "" {
		category = " " + theme.CategoryStyle.Render("#"+t.Category)
	}

	line := fmt.Sprintf("%s %s %s%s", check, pri, title, category)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 02 15:04")
	}
}
