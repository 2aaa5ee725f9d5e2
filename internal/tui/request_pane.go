package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/example/taskforce/internal/interact"
)

// Resolver is the slice of the coordinator the request pane drives.
type Resolver interface {
	DismissDangerousCommand(ctx context.Context, taskID string) error
	CancelDangerousCommand(taskID string) error
	SubmitAnswers(ctx context.Context, taskID string, answers []interact.Answer) error
	ApprovePlan(ctx context.Context, taskID string) error
	RejectPlan(ctx context.Context, taskID, feedback string) error
	CancelTask(taskID string) error
	ResumeTask(ctx context.Context, taskID string) error
}

// requestResolvedMsg reports the outcome of a resolution call.
type requestResolvedMsg struct {
	taskID string
	err    error
}

// RequestPaneModel renders the outstanding interactive request as a modal
// form and submits the operator's resolution.
type RequestPaneModel struct {
	resolver Resolver
	request  interact.Request
	form     *huh.Form
	width    int
	height   int
	visible  bool
	err      error

	// Form field bindings
	alertChoice string
	answers     []answerBinding
	planVerdict string
	planNotes   string
}

// answerBinding holds the form values for one question.
type answerBinding struct {
	header   string
	selected string
	multi    []string
	freeText string
	hasOpts  bool
	multiSel bool
}

// NewRequestPaneModel creates the request pane.
func NewRequestPaneModel(resolver Resolver) RequestPaneModel {
	return RequestPaneModel{resolver: resolver}
}

// Show builds the form for a newly raised request and makes the pane
// visible.
func (m *RequestPaneModel) Show(req interact.Request) tea.Cmd {
	m.request = req
	m.visible = true
	m.err = nil
	m.buildForm()
	return m.form.Init()
}

// Hide drops the current request, e.g. when it was resolved elsewhere.
func (m *RequestPaneModel) Hide() {
	m.visible = false
	m.request = nil
	m.form = nil
}

// IsVisible returns whether a request is currently displayed.
func (m RequestPaneModel) IsVisible() bool {
	return m.visible
}

// buildForm constructs the Huh form matching the request kind.
func (m *RequestPaneModel) buildForm() {
	switch req := m.request.(type) {
	case interact.DangerousCommandAlert:
		m.alertChoice = "dismiss"
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("%s wants to run: %s", req.Tool, req.Input)).
				Description(req.Reason).
				Options(
					huh.NewOption("Allow the command", "dismiss"),
					huh.NewOption("Cancel the task", "cancel"),
				).
				Value(&m.alertChoice),
		).Title("Dangerous Command"))

	case interact.AskUserQuestionRequest:
		m.answers = make([]answerBinding, len(req.Questions))
		groups := make([]*huh.Group, 0, len(req.Questions))
		for i, q := range req.Questions {
			b := &m.answers[i]
			b.header = q.Header
			b.hasOpts = len(q.Options) > 0
			b.multiSel = q.MultiSelect

			var field huh.Field
			switch {
			case b.hasOpts && b.multiSel:
				opts := make([]huh.Option[string], len(q.Options))
				for j, o := range q.Options {
					opts[j] = huh.NewOption(o, o)
				}
				field = huh.NewMultiSelect[string]().
					Title(q.Question).
					Options(opts...).
					Value(&b.multi)
			case b.hasOpts:
				opts := make([]huh.Option[string], len(q.Options))
				for j, o := range q.Options {
					opts[j] = huh.NewOption(o, o)
				}
				field = huh.NewSelect[string]().
					Title(q.Question).
					Options(opts...).
					Value(&b.selected)
			default:
				field = huh.NewInput().
					Title(q.Question).
					Value(&b.freeText)
			}
			groups = append(groups, huh.NewGroup(field).Title(q.Header))
		}
		m.form = huh.NewForm(groups...)

	case interact.PlanReviewRequest:
		m.planVerdict = "approve"
		m.planNotes = ""
		m.form = huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Review the plan").
				Description(req.PlanContent).
				Options(
					huh.NewOption("Approve", "approve"),
					huh.NewOption("Reject", "reject"),
				).
				Value(&m.planVerdict),
			huh.NewInput().
				Title("Feedback (used when rejecting)").
				Value(&m.planNotes),
		).Title("Plan Review"))
	}
}

// Update handles messages for the request pane.
func (m RequestPaneModel) Update(msg tea.Msg) (RequestPaneModel, tea.Cmd) {
	if !m.visible || m.form == nil {
		return m, nil
	}

	if resolved, ok := msg.(requestResolvedMsg); ok {
		if resolved.err != nil {
			m.err = resolved.err
		} else {
			m.Hide()
		}
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		resolve := m.resolveCmd()
		m.form.State = huh.StateNormal
		return m, tea.Batch(cmd, resolve)
	}
	return m, cmd
}

// resolveCmd submits the completed form to the resolver off the UI loop.
func (m *RequestPaneModel) resolveCmd() tea.Cmd {
	taskID := m.request.Task()

	switch m.request.(type) {
	case interact.DangerousCommandAlert:
		choice := m.alertChoice
		return func() tea.Msg {
			var err error
			if choice == "cancel" {
				err = m.resolver.CancelDangerousCommand(taskID)
			} else {
				err = m.resolver.DismissDangerousCommand(context.Background(), taskID)
			}
			return requestResolvedMsg{taskID: taskID, err: err}
		}

	case interact.AskUserQuestionRequest:
		answers := make([]interact.Answer, len(m.answers))
		for i, b := range m.answers {
			answers[i] = interact.Answer{Header: b.header, FreeText: b.freeText}
			if b.hasOpts {
				if b.multiSel {
					answers[i].Options = append([]string(nil), b.multi...)
				} else if b.selected != "" {
					answers[i].Options = []string{b.selected}
				}
			}
		}
		return func() tea.Msg {
			err := m.resolver.SubmitAnswers(context.Background(), taskID, answers)
			return requestResolvedMsg{taskID: taskID, err: err}
		}

	case interact.PlanReviewRequest:
		verdict, notes := m.planVerdict, m.planNotes
		return func() tea.Msg {
			var err error
			if verdict == "approve" {
				err = m.resolver.ApprovePlan(context.Background(), taskID)
			} else {
				err = m.resolver.RejectPlan(context.Background(), taskID, notes)
			}
			return requestResolvedMsg{taskID: taskID, err: err}
		}
	}
	return nil
}

// View renders the request pane.
func (m RequestPaneModel) View() string {
	if !m.visible || m.form == nil {
		return ""
	}

	content := m.form.View()
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ %v", m.err)) + "\n\n" + content
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("Agent Request")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the request pane.
func (m *RequestPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}
