package tasklist

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/keys"
	"github.com/nhle/todo-client/internal/model"
	"github.com/nhle/todo-client/internal/theme"
	"github.com/nhle/todo-client/internal/todolist"
)

// EmptyText is shown when the user has no todos at all.
const EmptyText = "No todos yet. Create one to get started!"

// RefreshedMsg is sent when a refresh of the collection has finished.
type RefreshedMsg struct {
	Err error
}

// DisplayChangedMsg is sent after the filter or grouping changed so the
// new choice can be persisted.
type DisplayChangedMsg struct {
	Filter  todolist.Filter
	Grouped bool
}

// Model is the main todo list view component.
type Model struct {
	list   list.Model
	vm     *todolist.ViewModel
	keys   *keys.KeyMap
	now    func() time.Time
	width  int
	height int
}

// New creates a new todo list model backed by vm.
func New(vm *todolist.ViewModel, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, listHeight(height))
	l.Title = "Todos"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		vm:     vm,
		keys:   k,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Refresh returns a command that refetches the collection.
func (m Model) Refresh() tea.Cmd {
	vm := m.vm
	return func() tea.Msg {
		return RefreshedMsg{Err: vm.Refresh(context.Background())}
	}
}

// Sync rebuilds the list items from the view-model, keeping the cursor on
// the same todo when it is still visible.
func (m *Model) Sync() tea.Cmd {
	var selected int64
	if t, ok := m.SelectedTodo(); ok {
		selected = t.ID
	}

	items := m.items()
	cmd := m.list.SetItems(items)

	cursor := firstTodo(items)
	for i, it := range items {
		if ti, ok := it.(TodoItem); ok && ti.Todo.ID == selected {
			cursor = i
			break
		}
	}
	if cursor >= 0 {
		m.list.Select(cursor)
	}
	return cmd
}

func (m Model) items() []list.Item {
	if !m.vm.Grouped() {
		visible := m.vm.Visible()
		items := make([]list.Item, len(visible))
		for i, t := range visible {
			items[i] = TodoItem{Todo: t}
		}
		return items
	}

	var items []list.Item
	for _, b := range m.vm.Groups() {
		if len(b.Todos) == 0 {
			continue
		}
		items = append(items, headerItem{priority: b.Priority, count: len(b.Todos)})
		for _, t := range b.Todos {
			items = append(items, TodoItem{Todo: t})
		}
	}
	return items
}

func firstTodo(items []list.Item) int {
	for i, it := range items {
		if _, ok := it.(TodoItem); ok {
			return i
		}
	}
	return -1
}

// SelectedTodo returns the todo under the cursor.
func (m Model) SelectedTodo() (model.Todo, bool) {
	it, ok := m.list.SelectedItem().(TodoItem)
	if !ok {
		return model.Todo{}, false
	}
	return it.Todo, true
}

// Update handles messages for the todo list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshedMsg:
		cmd := m.Sync()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.FilterPriority):
		m.vm.SetFilter(m.vm.Filter().NextPriority())
		cmd := m.displayChanged()
		return m, cmd

	case key.Matches(msg, m.keys.FilterStatus):
		m.vm.SetFilter(m.vm.Filter().NextStatus())
		cmd := m.displayChanged()
		return m, cmd

	case key.Matches(msg, m.keys.ClearFilters):
		m.vm.ClearFilters()
		cmd := m.displayChanged()
		return m, cmd

	case key.Matches(msg, m.keys.Group):
		m.vm.SetGrouped(!m.vm.Grouped())
		cmd := m.displayChanged()
		return m, cmd

	case key.Matches(msg, m.keys.Up):
		m.list.CursorUp()
		m.skipHeader(m.list.CursorUp)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.list.CursorDown()
		m.skipHeader(m.list.CursorDown)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// skipHeader moves past a group header once; headers are never adjacent.
// At the top of the list it falls back to the first todo.
func (m *Model) skipHeader(move func()) {
	if _, ok := m.list.SelectedItem().(headerItem); !ok {
		return
	}
	move()
	if _, ok := m.list.SelectedItem().(headerItem); ok {
		if i := firstTodo(m.list.Items()); i >= 0 {
			m.list.Select(i)
		}
	}
}

// displayChanged re-renders the list and reports the new display settings.
func (m *Model) displayChanged() tea.Cmd {
	ev := DisplayChangedMsg{Filter: m.vm.Filter(), Grouped: m.vm.Grouped()}
	return tea.Batch(m.Sync(), func() tea.Msg { return ev })
}

// View renders the todo list view.
func (m Model) View() string {
	parts := []string{m.renderSummary()}

	if err := m.vm.Err(); err != nil {
		parts = append(parts, theme.ErrorStyle.Render(err.Message))
	}

	switch {
	case m.vm.Loading() && len(m.vm.Todos()) == 0:
		parts = append(parts, theme.HelpStyle.Render("Loading todos..."))
	case len(m.list.Items()) == 0:
		parts = append(parts, m.renderEmptyState())
	default:
		parts = append(parts, m.list.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderSummary shows the count, the active filters and the fetch time.
func (m Model) renderSummary() string {
	total := len(m.vm.Todos())
	visible := len(m.vm.Visible())
	f := m.vm.Filter()

	count := fmt.Sprintf("%d todos", total)
	if !f.IsDefault() {
		count = fmt.Sprintf("Showing %d of %d todos", visible, total)
	}

	grouping := ""
	if m.vm.Grouped() {
		grouping = " | grouped"
	}

	line := fmt.Sprintf(
		"%s | priority: %s | status: %s%s | updated %s",
		count, f.Priority, f.Status, grouping,
		relativeTime(m.vm.LastFetchedAt(), m.now()),
	)
	if m.vm.Loading() {
		line += " | refreshing..."
	}
	return theme.HelpStyle.Render(line)
}

// renderEmptyState shows guidance text when no todos are listed.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(listHeight(m.height)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.vm.Err() != nil {
		return style.Render("Press r to retry.")
	}
	if len(m.vm.Todos()) > 0 {
		return style.Render("No todos match the current filters.\nPress c to clear them.")
	}
	return style.Render(EmptyText + "\n\nPress n to add a todo.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, listHeight(height))
}

// listHeight leaves room for the summary and error lines.
func listHeight(height int) int {
	if height < 4 {
		return 2
	}
	return height - 2
}
