package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/example/taskforce/internal/agent"
	"github.com/example/taskforce/internal/events"
)

// memberRow is one agent line in the team pane.
type memberRow struct {
	AgentID     string
	CommanderID string
	Role        string
	Status      agent.Status
}

// TeamPaneModel shows every team's agents with their live statuses.
type TeamPaneModel struct {
	roster     *agent.Roster
	members    map[string]*memberRow
	order      []string // display order: commanders first, then their subs
	disbanding map[string]bool
	width      int
	height     int
	focused    bool
}

// NewTeamPaneModel creates the team pane.
func NewTeamPaneModel(roster *agent.Roster) TeamPaneModel {
	return TeamPaneModel{
		roster:     roster,
		members:    make(map[string]*memberRow),
		disbanding: make(map[string]bool),
	}
}

// Update handles messages for the team pane.
func (m TeamPaneModel) Update(msg tea.Msg) (TeamPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.TeamSpawnedEvent:
		for _, id := range msg.MemberIDs {
			if _, exists := m.members[id]; exists {
				continue
			}
			row := &memberRow{AgentID: id, CommanderID: msg.CommanderID, Status: agent.StatusIdle}
			if a, ok := m.roster.Get(id); ok {
				row.Role = a.Role
			}
			m.members[id] = row
			m.order = append(m.order, id)
		}

	case events.AgentStatusEvent:
		if row, exists := m.members[msg.AgentID]; exists {
			row.Status = msg.Status
		}

	case events.TeamDisbandingEvent:
		m.disbanding[msg.CommanderID] = true

	case events.TeamDisbandedEvent:
		delete(m.disbanding, msg.CommanderID)
		gone := make(map[string]bool, len(msg.MemberIDs))
		for _, id := range msg.MemberIDs {
			gone[id] = true
			delete(m.members, id)
		}
		kept := m.order[:0]
		for _, id := range m.order {
			if !gone[id] {
				kept = append(kept, id)
			}
		}
		m.order = kept
	}

	return m, nil
}

// View renders the team pane.
func (m TeamPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Team"))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusIdle.Render("No agents"))
	} else {
		for _, id := range m.order {
			row := m.members[id]
			indent := ""
			label := row.Role
			if row.CommanderID != id {
				indent = "  "
			} else if m.disbanding[id] {
				label += " (disbanding)"
			}
			b.WriteString(fmt.Sprintf("%s%s %s %s\n",
				indent, statusIcon(row.Status), label, StyleStatusIdle.Render(string(row.Status))))
		}
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.NewStyle().Width(m.width - 4).Render(b.String()))
}

// statusIcon returns a styled indicator for an agent status.
func statusIcon(status agent.Status) string {
	switch status {
	case agent.StatusThinking, agent.StatusWorking:
		return StyleStatusActive.Render("●")
	case agent.StatusCompleted:
		return StyleStatusComplete.Render("✓")
	case agent.StatusError:
		return StyleStatusFailed.Render("✗")
	case agent.StatusRequestingPermission, agent.StatusWaitingForAnswer, agent.StatusReviewingPlan:
		return StyleStatusWaiting.Render("?")
	case agent.StatusSuspended:
		return StyleStatusIdle.Render("◌")
	default:
		return StyleStatusIdle.Render("○")
	}
}

// SetSize updates the pane dimensions.
func (m *TeamPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *TeamPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
