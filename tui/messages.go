package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwestcott/sitehound/discover"
	"github.com/mwestcott/sitehound/report"
)

// ScanProgressMsg reports enumeration progress for one stage.
type ScanProgressMsg struct {
	Stage  discover.Stage
	URL    string
	Found  int
	Probed int
	Alive  int
	Total  int
}

// ScanDoneMsg signals the enumeration has completed.
type ScanDoneMsg struct {
	Result *report.EnumResult
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. When the channel closes, it returns a ScanDoneMsg with nil Result
// (the actual result comes from startScan).
func waitForProgress(ch <-chan discover.Progress) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return ScanDoneMsg{}
		}
		return ScanProgressMsg{
			Stage:  evt.Stage,
			URL:    evt.URL,
			Found:  evt.Found,
			Probed: evt.Probed,
			Alive:  evt.Alive,
			Total:  evt.Total,
		}
	}
}
