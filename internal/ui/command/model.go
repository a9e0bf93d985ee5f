package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todo-client/internal/theme"
)

// Names of the commands understood by the palette.
const (
	New      = "new"
	Refresh  = "refresh"
	Filter   = "filter"
	Clear    = "clear"
	Group    = "group"
	Logout   = "logout"
	Help     = "help"
	Quit     = "quit"
	Register = "register"
	Login    = "login"
)

// suggestions feed the textinput autocompletion.
var suggestions = []string{
	New, Refresh, Clear, Group, Logout, Help, Quit, Register, Login,
	"filter priority all", "filter priority high", "filter priority medium", "filter priority low",
	"filter status all", "filter status completed", "filter status pending",
}

// Command is a parsed palette entry.
type Command struct {
	Name string
	Args []string
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Parse splits raw palette input into a command name and its arguments.
// A leading ':' is ignored and the name is lower-cased.
func Parse(raw string) (Command, bool) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(raw), ":"))
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg Command

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// NewModel creates a new command palette model.
func NewModel(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(suggestions)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		c, ok := Parse(m.input.Value())
		m.input.Reset()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return CommandMsg(c)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Command Palette")
	hint := theme.HelpStyle.Render("tab to complete, enter to run, esc to close")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.input.View(), "", hint)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
