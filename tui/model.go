// Package tui provides the Bubble Tea terminal UI for sitehound,
// displaying live enumeration progress and a styled summary of results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwestcott/sitehound/discover"
	"github.com/mwestcott/sitehound/report"
)

// Model is the Bubble Tea model for the enumeration TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	enum       *discover.Enumerator
	spinner    spinner.Model
	progressCh <-chan discover.Progress

	stage    discover.Stage
	found    int
	probed   int
	alive    int
	total    int
	current  string
	quitting bool
	done     bool
	result   *report.EnumResult
	width    int
}

// NewModel creates a TUI model wired to the given enumerator and progress
// channel.
func NewModel(ctx context.Context, cancel context.CancelFunc, enum *discover.Enumerator, progressCh <-chan discover.Progress) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		enum:       enum,
		spinner:    spin,
		progressCh: progressCh,
	}
}

// Init starts the spinner, enumeration, and progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startScan(), waitForProgress(m.progressCh))
}

// startScan returns a tea.Cmd that runs the enumerator and sends ScanDoneMsg.
func (m Model) startScan() tea.Cmd {
	return func() tea.Msg {
		return ScanDoneMsg{Result: m.enum.Run(m.ctx)}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ScanProgressMsg:
		m.stage = msg.Stage
		m.current = msg.URL
		if msg.Found > m.found {
			m.found = msg.Found
		}
		if msg.Stage == discover.StageProbe {
			m.probed = msg.Probed
			m.alive = msg.Alive
			m.total = msg.Total
		}
		return m, waitForProgress(m.progressCh)

	case ScanDoneMsg:
		m.done = true
		if msg.Result != nil {
			m.result = msg.Result
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		return RenderSummary(m.result)
	}
	if m.stage == discover.StageProbe {
		return fmt.Sprintf("%s Probing... %d/%d checked, %d alive\n%s\n",
			m.spinner.View(), m.probed, m.total, m.alive,
			dimStyle.Render("  "+m.current))
	}
	return fmt.Sprintf("%s Discovering... found %d URLs\n%s\n",
		m.spinner.View(), m.found,
		dimStyle.Render("  "+stageLabel(m.stage)+" "+m.current))
}

// Interrupted reports whether the user quit before the scan finished.
func (m Model) Interrupted() bool {
	return m.quitting && m.result == nil
}

// GetResult returns the enumeration result for output formatting.
func (m Model) GetResult() *report.EnumResult {
	return m.result
}

func stageLabel(stage discover.Stage) string {
	if stage == "" {
		return "starting"
	}
	return string(stage)
}
