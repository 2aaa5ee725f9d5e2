package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/example/taskforce/internal/events"
)

// taskState tracks one task's display state.
type taskState struct {
	TaskID   string
	Status   string
	Progress float64
	Output   []string
}

// TaskPaneModel shows the task list with a scrollable transcript viewport
// for the selected task.
type TaskPaneModel struct {
	tasks       map[string]*taskState
	taskOrder   []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewTaskPaneModel creates the task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*taskState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// SelectedTaskID returns the task ID of the currently selected row.
func (m TaskPaneModel) SelectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskUpdatedEvent:
		task, exists := m.tasks[msg.ID]
		if !exists {
			task = &taskState{TaskID: msg.ID}
			m.tasks[msg.ID] = task
			m.taskOrder = append(m.taskOrder, msg.ID)
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
			}
		}
		prev := task.Status
		task.Status = msg.Status
		task.Progress = msg.Progress
		if msg.Status == "completed" && prev != "completed" {
			task.Output = append(task.Output, fmt.Sprintf("\n[Completed: %s]", msg.Result))
		}
		if msg.Status == "failed" && prev != "failed" {
			task.Output = append(task.Output, fmt.Sprintf("\n[Failed: %s]", msg.Error))
		}
		if m.SelectedTaskID() == msg.ID {
			m.updateViewportContent()
		}

	case events.TaskOutputEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Output = append(task.Output, msg.Line)
			if m.SelectedTaskID() == msg.ID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Tasks"))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusIdle.Render("Waiting..."))
	} else {
		for i, taskID := range m.taskOrder {
			task := m.tasks[taskID]
			short := taskID
			if len(short) > 8 {
				short = short[:8]
			}
			line := fmt.Sprintf("%s %s %3.0f%%", taskStatusIcon(task.Status), short, task.Progress*100)
			if i == m.selectedIdx {
				line = StyleSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

func taskStatusIcon(status string) string {
	switch status {
	case "inProgress":
		return StyleStatusActive.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusIdle.Render("○")
	}
}

// updateViewportContent fills the viewport with the selected task's
// transcript and scrolls to the bottom.
func (m *TaskPaneModel) updateViewportContent() {
	taskID := m.SelectedTaskID()
	task, exists := m.tasks[taskID]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	m.viewport.SetContent(strings.Join(task.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	listWidth := 28
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
