package main

import (
	"fmt"
	"os"
	"strings"

	"task-server/entities"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultServerURL = "http://localhost:3000"

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true).
			PaddingLeft(2)

	normalStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Strikethrough(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

type step int

const (
	stepChoosingMode step = iota
	stepEnteringUsername
	stepEnteringPassword
	stepAuthenticating
	stepBrowsing
	stepEnteringTitle
	stepEnteringDueDate
)

var modes = []string{"Log in", "Register"}

type model struct {
	client       *apiClient
	step         step
	cursor       int
	registering  bool
	username     string
	password     string
	tasks        []entities.Task
	newTitle     string
	currentInput string
	message      string
	quitting     bool
}

type authSuccessMsg struct{}
type tasksLoadedMsg []entities.Task
type taskChangedMsg struct{ note string }
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func initialModel(client *apiClient) model {
	return model{client: client, step: stepChoosingMode}
}

func (m model) Init() tea.Cmd {
	return nil
}

func authenticate(c *apiClient, register bool, username, password string) tea.Cmd {
	return func() tea.Msg {
		var err error
		if register {
			err = c.register(username, password)
		} else {
			err = c.login(username, password)
		}
		if err != nil {
			return errMsg{err}
		}
		return authSuccessMsg{}
	}
}

func loadTasks(c *apiClient) tea.Cmd {
	return func() tea.Msg {
		tasks, err := c.list()
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg(tasks)
	}
}

func createTask(c *apiClient, title, due string) tea.Cmd {
	return func() tea.Msg {
		task, err := c.create(title, due)
		if err != nil {
			return errMsg{err}
		}
		return taskChangedMsg{note: "Added " + task.Title}
	}
}

func toggleTask(c *apiClient, id string) tea.Cmd {
	return func() tea.Msg {
		if _, err := c.toggle(id); err != nil {
			return errMsg{err}
		}
		return taskChangedMsg{}
	}
}

func deleteTask(c *apiClient, id string) tea.Cmd {
	return func() tea.Msg {
		if err := c.remove(id); err != nil {
			return errMsg{err}
		}
		return taskChangedMsg{note: "Deleted"}
	}
}

func (m model) typing() bool {
	switch m.step {
	case stepEnteringUsername, stepEnteringPassword, stepEnteringTitle, stepEnteringDueDate:
		return true
	}
	return false
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" || (key == "q" && !m.typing()) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.typing() {
			return m.updateInput(key)
		}
		return m.updateSelection(key)

	case authSuccessMsg:
		m.step = stepBrowsing
		m.password = ""
		m.message = successStyle.Render("✓ Signed in as " + m.username)
		return m, loadTasks(m.client)

	case tasksLoadedMsg:
		m.tasks = []entities.Task(msg)
		if m.cursor >= len(m.tasks) {
			m.cursor = max(len(m.tasks)-1, 0)
		}

	case taskChangedMsg:
		if msg.note != "" {
			m.message = successStyle.Render("✓ " + msg.note)
		}
		return m, loadTasks(m.client)

	case errMsg:
		m.message = errorStyle.Render("✗ " + msg.err.Error())
		if m.step == stepAuthenticating {
			m.step = stepChoosingMode
			m.cursor = 0
		}
	}

	return m, nil
}

func (m model) updateInput(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "backspace":
		if len(m.currentInput) > 0 {
			m.currentInput = m.currentInput[:len(m.currentInput)-1]
		}
	case "esc":
		m.currentInput = ""
		if m.step == stepEnteringTitle || m.step == stepEnteringDueDate {
			m.step = stepBrowsing
		} else {
			m.step = stepChoosingMode
		}
	case "enter":
		switch m.step {
		case stepEnteringUsername:
			if m.currentInput != "" {
				m.username = m.currentInput
				m.currentInput = ""
				m.step = stepEnteringPassword
			}
		case stepEnteringPassword:
			if m.currentInput != "" {
				m.password = m.currentInput
				m.currentInput = ""
				m.step = stepAuthenticating
				m.message = "Signing in..."
				return m, authenticate(m.client, m.registering, m.username, m.password)
			}
		case stepEnteringTitle:
			if strings.TrimSpace(m.currentInput) != "" {
				m.newTitle = m.currentInput
				m.currentInput = ""
				m.step = stepEnteringDueDate
			}
		case stepEnteringDueDate:
			due := strings.TrimSpace(m.currentInput)
			m.currentInput = ""
			m.step = stepBrowsing
			return m, createTask(m.client, m.newTitle, due)
		}
	default:
		if len(key) == 1 || key == " " {
			m.currentInput += key
		}
	}
	return m, nil
}

func (m model) updateSelection(key string) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepChoosingMode:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(modes)-1 {
				m.cursor++
			}
		case "enter":
			m.registering = m.cursor == 1
			m.cursor = 0
			m.message = ""
			m.step = stepEnteringUsername
		}

	case stepBrowsing:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.tasks)-1 {
				m.cursor++
			}
		case "a":
			m.step = stepEnteringTitle
		case "r":
			return m, loadTasks(m.client)
		case "enter", " ":
			if len(m.tasks) > 0 {
				return m, toggleTask(m.client, m.tasks[m.cursor].ID)
			}
		case "d":
			if len(m.tasks) > 0 {
				return m, deleteTask(m.client, m.tasks[m.cursor].ID)
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("Tasks\n\n"))

	switch m.step {
	case stepChoosingMode:
		if m.message != "" {
			s.WriteString(m.message + "\n\n")
		}
		for i, mode := range modes {
			cursor := " "
			style := normalStyle
			if m.cursor == i {
				cursor = ">"
				style = selectedStyle
			}
			s.WriteString(fmt.Sprintf("%s %s\n", cursor, style.Render(mode)))
		}
		s.WriteString("\nUse ↑/↓, Enter to choose, q to quit\n")

	case stepEnteringUsername:
		s.WriteString(promptStyle.Render("Enter your username:\n"))
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter\n")

	case stepEnteringPassword:
		s.WriteString(promptStyle.Render("Enter your password:\n"))
		s.WriteString(inputStyle.Render("> " + strings.Repeat("•", len(m.currentInput))))
		s.WriteString("\n\nPress Enter\n")

	case stepAuthenticating:
		s.WriteString(m.message + "\n")

	case stepBrowsing:
		if m.message != "" {
			s.WriteString(m.message + "\n\n")
		}
		if len(m.tasks) == 0 {
			s.WriteString(normalStyle.Render("No tasks yet.") + "\n")
		}
		for i, t := range m.tasks {
			s.WriteString(renderTask(t, i == m.cursor) + "\n")
		}
		s.WriteString("\n↑/↓ move, Enter toggle, a add, d delete, r refresh, q quit\n")

	case stepEnteringTitle:
		s.WriteString(promptStyle.Render("Title:\n"))
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter, Esc to cancel\n")

	case stepEnteringDueDate:
		s.WriteString(promptStyle.Render("Due date (optional, YYYY-MM-DD):\n"))
		s.WriteString(inputStyle.Render("> " + m.currentInput))
		s.WriteString("\n\nPress Enter\n")
	}

	return s.String()
}

func renderTask(t entities.Task, selected bool) string {
	box := "[ ]"
	title := t.Title
	if t.Completed {
		box = "[x]"
		title = doneStyle.Render(title)
	}
	line := box + " " + title
	if t.DueDate != nil {
		line += fmt.Sprintf(" (due %s)", *t.DueDate)
	}
	if selected {
		return "> " + selectedStyle.Render(line)
	}
	return "  " + normalStyle.Render(line)
}

func main() {
	base := os.Getenv("TASK_SERVER_URL")
	if base == "" {
		base = defaultServerURL
	}
	client, err := newAPIClient(base)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(client))
	if _, err := p.Run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
