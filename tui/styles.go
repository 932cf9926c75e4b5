package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mwestcott/sitehound/report"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder defines the display order for error categories (most to least actionable).
var categoryOrder = []report.ErrorCategory{
	report.Category4xx,
	report.Category5xx,
	report.CategoryTimeout,
	report.CategoryDNSFailure,
	report.CategoryConnectionRefused,
	report.CategoryRedirectLoop,
	report.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of enumeration results.
func RenderSummary(res *report.EnumResult) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	builder.WriteString(titleStyle.Render(res.Domain))
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("%d URLs discovered, %d alive",
		res.Summary.TotalURLs, res.Summary.AliveURLs))
	if res.Summary.Duration > 0 {
		builder.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", res.Summary.Duration.Round(1_000_000))))
	}
	builder.WriteString("\n\n")

	if len(res.Summary.SourcesUsed) > 0 {
		rows := make([][]string, 0, len(res.Summary.SourcesUsed))
		for _, src := range res.Summary.SourcesUsed {
			rows = append(rows, []string{src, fmt.Sprintf("%d", res.Summary.SourcesSummary[src])})
		}
		srcTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Source", "URLs").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return urlStyle
			}).
			Rows(rows...)
		builder.WriteString(srcTable.Render())
		builder.WriteString("\n\n")
	}

	deadCount := 0
	for _, urls := range res.DeadByCategory {
		deadCount += len(urls)
	}
	if deadCount == 0 {
		builder.WriteString(successStyle.Render("All discovered URLs are alive!"))
		builder.WriteString("\n")
		return builder.String()
	}

	// Display each dead-URL category in order
	for _, cat := range categoryOrder {
		urls, exists := res.DeadByCategory[cat]
		if !exists || len(urls) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", report.FormatCategory(cat), len(urls))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(urls))
		for _, u := range urls {
			status := "unreachable"
			if detail, ok := res.Details[u]; ok && detail.Status > 0 {
				status = fmt.Sprintf("%d", detail.Status)
			}
			rows = append(rows, []string{u, status})
		}

		catTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Status").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 { // Status column
					return statusErrorStyle
				}
				return urlStyle
			}).
			Rows(rows...)

		builder.WriteString(catTable.Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"%d of %d discovered URLs are dead",
		deadCount, res.Summary.TotalURLs,
	)))
	builder.WriteString("\n")

	return builder.String()
}
