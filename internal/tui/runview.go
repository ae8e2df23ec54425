// Package tui provides the terminal user interface for invested: a compact
// live view of one optimization run driven by engine events.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/invested/internal/debate"
	"github.com/ShayCichocki/invested/internal/engine"
)

// EngineEventMsg wraps an engine event for the TUI.
type EngineEventMsg struct {
	Event engine.Event
}

// RunDoneMsg signals that the run has completed.
type RunDoneMsg struct {
	Result *engine.RunResult
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	nodeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	confBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// iterationLine is one completed round shown in the history list.
type iterationLine struct {
	index      int
	confidence float64
	violations int
}

// RunView is the bubbletea model for a single optimization run.
type RunView struct {
	artifactKey string
	spinner     spinner.Model
	events      <-chan tea.Msg

	currentNode debate.Node
	iterations  []iterationLine
	confidence  float64
	violations  int

	done     bool
	result   *engine.RunResult
	quitting bool
	width    int
}

// NewRunView creates the run view. The events channel carries EngineEventMsg
// and one final RunDoneMsg; the caller owns the channel and closes nothing.
func NewRunView(artifactKey string, events <-chan tea.Msg) *RunView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &RunView{
		artifactKey: artifactKey,
		spinner:     sp,
		events:      events,
	}
}

// Init implements tea.Model.
func (v *RunView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.waitForEvent())
}

// waitForEvent reads the next message from the event channel.
func (v *RunView) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-v.events
	}
}

// Update implements tea.Model.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			v.quitting = true
			return v, tea.Quit
		}

	case tea.WindowSizeMsg:
		v.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case EngineEventMsg:
		v.apply(msg.Event)
		return v, v.waitForEvent()

	case RunDoneMsg:
		v.done = true
		v.result = msg.Result
		return v, tea.Quit
	}

	return v, nil
}

// apply folds one engine event into the view state.
func (v *RunView) apply(e engine.Event) {
	switch e.Type {
	case engine.EventNodeEntered:
		v.currentNode = e.Node
		v.confidence = e.Confidence
		v.violations = e.Violations
	case engine.EventIterationDone:
		v.iterations = append(v.iterations, iterationLine{
			index:      e.Iteration,
			confidence: e.Confidence,
			violations: e.Violations,
		})
		v.confidence = e.Confidence
		v.violations = e.Violations
	}
}

// View implements tea.Model.
func (v *RunView) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("invested") + "  " + v.artifactKey + "\n\n")

	for _, it := range v.iterations {
		style := warnStyle
		if it.violations == 0 && it.confidence > debate.ConvergenceThreshold {
			style = okStyle
		}
		b.WriteString(fmt.Sprintf("  round %d  %s  %s\n",
			it.index,
			confBar(it.confidence),
			style.Render(fmt.Sprintf("%.2f confidence, %d violations", it.confidence, it.violations))))
	}

	if v.done {
		b.WriteString("\n" + v.summary() + "\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("\n  %s %s\n", v.spinner.View(), nodeStyle.Render(nodeLabel(v.currentNode))))
	b.WriteString(nodeStyle.Render("\n  q to abort\n"))
	return b.String()
}

// summary renders the terminal line for a finished run.
func (v *RunView) summary() string {
	if v.result == nil {
		return failStyle.Render("  run ended without a result")
	}
	r := v.result
	switch {
	case r.Err != nil:
		return failStyle.Render(fmt.Sprintf("  ✗ failed: %v", r.Err))
	case r.Proposal != nil:
		return warnStyle.Render(fmt.Sprintf("  ◆ split proposed: %d parts (%s)",
			len(r.Proposal.Parts), r.Proposal.Rationale))
	case r.Committed:
		return okStyle.Render(fmt.Sprintf("  ✓ committed after %d round(s), confidence %.2f",
			r.Iterations, r.Confidence))
	default:
		return warnStyle.Render(fmt.Sprintf("  ◆ finished without commit, confidence %.2f", r.Confidence))
	}
}

// confBar renders a ten-cell confidence bar.
func confBar(confidence float64) string {
	filled := int(confidence * 10)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return confBarStyle.Render(strings.Repeat("█", filled) + strings.Repeat("░", 10-filled))
}

// nodeLabel maps machine nodes to display text.
func nodeLabel(node debate.Node) string {
	switch node {
	case debate.NodeIngress:
		return "fetching work item"
	case debate.NodeContextAssembly:
		return "assembling context"
	case debate.NodeDrafting:
		return "drafting"
	case debate.NodeQACritique:
		return "QA critique"
	case debate.NodeDeveloperCritique:
		return "developer critique"
	case debate.NodeSynthesis:
		return "synthesizing feedback"
	case debate.NodeValidation:
		return "validating"
	case debate.NodeExecution:
		return "executing"
	default:
		return "starting"
	}
}
