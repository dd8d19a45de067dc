package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/imkarma/crewdeck/internal/store"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tasksRefreshedMsg:
		if msg.err != nil {
			m.statusMsg = "Failed to load tasks: " + msg.err.Error()
			return m, nil
		}
		m.setTasks(msg.tasks)
		m.clampCursor()
		return m, nil

	case detailLoadedMsg:
		if msg.err != nil {
			m.statusMsg = "Failed to load task: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.currentScreen = screenDetail
		return m, nil
	}

	return m, nil
}

func (m *Model) setTasks(tasks []store.Task) {
	var columns [numColumns][]store.Task
	for _, t := range tasks {
		for i, status := range columnStatuses {
			if t.Status == status {
				columns[i] = append(columns[i], t)
				break
			}
		}
	}
	m.columns = columns
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentScreen {
	case screenSearch:
		return m.handleSearchKey(msg)
	case screenDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleBoardKey(msg)
	}
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "left", "h":
		if m.cursorCol > 0 {
			m.cursorCol--
			m.clampCursor()
		}
	case "right", "l":
		if m.cursorCol < numColumns-1 {
			m.cursorCol++
			m.clampCursor()
		}
	case "up", "k":
		if m.cursorRow > 0 {
			m.cursorRow--
		}
	case "down", "j":
		if m.cursorRow < len(m.columns[m.cursorCol])-1 {
			m.cursorRow++
		}

	case "enter":
		if t := m.selectedTask(); t != nil {
			return m, m.loadDetail(t.ID)
		}

	case "/":
		m.searchInput.SetValue(m.keyword)
		m.searchInput.Focus()
		m.currentScreen = screenSearch
		return m, textinput.Blink

	case "r":
		m.statusMsg = ""
		return m, m.refreshTasks()
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchInput.Blur()
		m.currentScreen = screenBoard
		return m, nil

	case "enter":
		m.keyword = m.searchInput.Value()
		m.searchInput.Blur()
		m.currentScreen = screenBoard
		m.cursorRow = 0
		return m, m.refreshTasks()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc", "backspace":
		m.detail = nil
		m.currentScreen = screenBoard
		return m, nil

	case "r":
		if m.detail != nil {
			return m, m.loadDetail(m.detail.task.ID)
		}
	}

	return m, nil
}

func (m Model) selectedTask() *store.Task {
	tasks := m.columns[m.cursorCol]
	if m.cursorRow < 0 || m.cursorRow >= len(tasks) {
		return nil
	}
	return &tasks[m.cursorRow]
}

func (m *Model) clampCursor() {
	n := len(m.columns[m.cursorCol])
	if m.cursorRow >= n {
		m.cursorRow = n - 1
	}
	if m.cursorRow < 0 {
		m.cursorRow = 0
	}
}
