// Package tui renders the live team, task transcripts, and interactive
// agent requests on top of Bubble Tea, fed by the coordinator's event bus.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/config"
	"github.com/example/taskforce/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTeam PaneID = iota
	PaneTasks
)

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	teamPane     TeamPaneModel
	taskPane     TaskPaneModel
	requestPane  RequestPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	resolver     Resolver
	eventSub     *events.Subscription
	width        int
	height       int
	quitting     bool
	showSettings bool
}

// New creates the TUI model. It subscribes to every topic on the bus.
func New(bus *events.Bus, roster *agent.Roster, resolver Resolver, cfg *config.Config, globalPath, projectPath string) Model {
	return Model{
		teamPane:     NewTeamPaneModel(roster),
		taskPane:     NewTaskPaneModel(),
		requestPane:  NewRequestPaneModel(resolver),
		settingsPane: NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:  PaneTasks,
		resolver:     resolver,
		eventSub:     bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub *events.Subscription) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.C
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The request form is modal: all keys go to it while visible,
		// except quit.
		if m.requestPane.IsVisible() {
			switch msg.String() {
			case KeyCtrlC:
				m.quitting = true
				return m, tea.Quit
			default:
				var cmd tea.Cmd
				m.requestPane, cmd = m.requestPane.Update(msg)
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

		if m.showSettings {
			switch msg.String() {
			case KeySettings, "esc":
				m.showSettings = false
				m.settingsPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.settingsPane, cmd = m.settingsPane.Update(msg)
				cmds = append(cmds, cmd)
				if !m.settingsPane.IsVisible() {
					m.showSettings = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab, KeyShiftTab:
			if m.focusedPane == PaneTeam {
				m.focusedPane = PaneTasks
			} else {
				m.focusedPane = PaneTeam
			}
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTeam
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyCancel:
			if taskID := m.taskPane.SelectedTaskID(); taskID != "" {
				resolver := m.resolver
				cmds = append(cmds, func() tea.Msg {
					_ = resolver.CancelTask(taskID)
					return nil
				})
			}

		case KeyResume:
			if taskID := m.taskPane.SelectedTaskID(); taskID != "" {
				resolver := m.resolver
				cmds = append(cmds, func() tea.Msg {
					_ = resolver.ResumeTask(context.Background(), taskID)
					return nil
				})
			}

		default:
			switch m.focusedPane {
			case PaneTeam:
				var cmd tea.Cmd
				m.teamPane, cmd = m.teamPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneTasks:
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)
		m.requestPane.SetSize(msg.Width, msg.Height)

	case events.TeamSpawnedEvent, events.AgentStatusEvent,
		events.TeamDisbandingEvent, events.TeamDisbandedEvent:
		var cmd tea.Cmd
		m.teamPane, cmd = m.teamPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.TaskUpdatedEvent, events.TaskOutputEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.RequestRaisedEvent:
		cmds = append(cmds, m.requestPane.Show(msg.Request), waitForEvent(m.eventSub))

	case events.RequestClearedEvent:
		// The request may have been resolved outside this form.
		if m.requestPane.IsVisible() && m.requestPane.request != nil &&
			m.requestPane.request.Task() == msg.ID {
			m.requestPane.Hide()
		}
		cmds = append(cmds, waitForEvent(m.eventSub))

	case requestResolvedMsg:
		var cmd tea.Cmd
		m.requestPane, cmd = m.requestPane.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}
	if m.requestPane.IsVisible() {
		return m.requestPane.View()
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.teamPane.View(), m.taskPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

// computeLayout calculates pane dimensions and updates the child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 30) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1

	m.teamPane.SetSize(leftWidth, availableHeight)
	m.taskPane.SetSize(rightWidth, availableHeight)
	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.teamPane.SetFocused(m.focusedPane == PaneTeam)
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
}
