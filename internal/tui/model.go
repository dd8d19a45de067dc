// Package tui implements an interactive read-only board browser over
// the crewdeck store. Writes go through the API; the TUI is for looking.
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/imkarma/crewdeck/internal/store"
)

// screen represents which view the TUI is showing.
type screen int

const (
	screenBoard  screen = iota // status columns (main)
	screenDetail               // one task with ledger and ballot
	screenSearch               // keyword filter input
)

// column indices for navigation
const (
	colTodo = iota
	colTaskReview
	colInProgress
	colResultReview
	colDone
	numColumns
)

var columnStatuses = [numColumns]store.TaskStatus{
	store.StatusTodo,
	store.StatusTaskReview,
	store.StatusInProgress,
	store.StatusResultReview,
	store.StatusDone,
}

var columnLabels = [numColumns]string{
	"TODO",
	"TASK REVIEW",
	"IN PROGRESS",
	"RESULT REVIEW",
	"DONE",
}

// Model is the top-level bubbletea model.
type Model struct {
	store  *store.Store
	width  int
	height int

	currentScreen screen

	// Board state.
	columns   [numColumns][]store.Task
	cursorCol int
	cursorRow int
	keyword   string

	// Keyword filter input.
	searchInput textinput.Model

	// Detail state.
	detail *taskDetail

	// Status message at the bottom.
	statusMsg string

	quitting bool
}

// taskDetail is everything the detail screen shows for one task.
type taskDetail struct {
	task         *store.Task
	stakeholders []store.Stakeholder
	history      []store.StatusChange
	pending      *store.StatusChange
	votes        []store.Approval
}

// New creates a new TUI model.
func New(s *store.Store) Model {
	si := textinput.New()
	si.Placeholder = "Keyword..."
	si.CharLimit = 80
	si.Width = 40

	return Model{
		store:         s,
		currentScreen: screenBoard,
		searchInput:   si,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.refreshTasks()
}

type tasksRefreshedMsg struct {
	tasks []store.Task
	err   error
}

type detailLoadedMsg struct {
	detail *taskDetail
	err    error
}

func (m Model) refreshTasks() tea.Cmd {
	keyword := m.keyword
	return func() tea.Msg {
		tasks, err := m.store.ListTasks(store.TaskFilter{Keyword: keyword})
		return tasksRefreshedMsg{tasks: tasks, err: err}
	}
}

func (m Model) loadDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		task, err := m.store.GetTask(id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		d := &taskDetail{task: task}
		if d.stakeholders, err = m.store.ListStakeholders(id); err != nil {
			return detailLoadedMsg{err: err}
		}
		if d.history, err = m.store.ListStatusHistory(id); err != nil {
			return detailLoadedMsg{err: err}
		}
		if d.pending, err = m.store.PendingChange(id); err != nil {
			return detailLoadedMsg{err: err}
		}
		if d.pending != nil {
			if d.votes, err = m.store.ListApprovals(d.pending.ID); err != nil {
				return detailLoadedMsg{err: err}
			}
		}
		return detailLoadedMsg{detail: d}
	}
}
