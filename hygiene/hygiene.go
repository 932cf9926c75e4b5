// Package hygiene shapes inspection results into the frontend-facing
// hygiene payloads: worst-first page listings and scan summaries.
package hygiene

import (
	"sort"

	"github.com/mwestcott/sitehound/inspect"
	"github.com/mwestcott/sitehound/report"
)

// IssueView is the trimmed issue shape exposed to clients.
type IssueView struct {
	Category string         `json:"category"`
	Title    string         `json:"title"`
	Severity string         `json:"severity"`
	Details  map[string]any `json:"details,omitempty"`
}

// Page is one page's hygiene record, frontend-facing.
type Page struct {
	URL                string      `json:"url"`
	Type               string      `json:"type"`
	Score              float64     `json:"score"`
	Issues             []IssueView `json:"issues"`
	CriticalIssueCount int         `json:"criticalIssueCount"`
	TotalIssueCount    int         `json:"totalIssueCount"`
}

// Summary aggregates a scan for clients.
type Summary struct {
	TotalDiscovered int     `json:"totalDiscovered"`
	TotalValid      int     `json:"totalValid"`
	TotalAnalyzed   int     `json:"totalAnalyzed"`
	AverageScore    float64 `json:"averageScore"`
	TotalIssues     int     `json:"totalIssues"`
	CriticalIssues  int     `json:"criticalIssues"`
}

// Pages converts a scan report into hygiene pages sorted worst-score-first.
func Pages(report *inspect.ScanReport) []Page {
	pages := make([]Page, 0, len(report.Pages))
	for _, analysis := range report.Pages {
		issues := make([]IssueView, 0, len(analysis.Issues))
		for _, issue := range analysis.Issues {
			issues = append(issues, IssueView{
				Category: string(issue.Category),
				Title:    issue.Title,
				Severity: string(issue.Severity),
				Details:  issue.Details,
			})
		}
		pages = append(pages, Page{
			URL:                analysis.URL,
			Type:               string(analysis.Type),
			Score:              analysis.Score,
			Issues:             issues,
			CriticalIssueCount: analysis.CriticalIssueCount,
			TotalIssueCount:    analysis.TotalIssueCount,
		})
	}
	sortWorstFirst(pages)
	return pages
}

// Summarize aggregates a scan report.
func Summarize(report *inspect.ScanReport) Summary {
	s := Summary{
		TotalDiscovered: report.TotalDiscovered,
		TotalValid:      report.TotalValid,
		TotalAnalyzed:   len(report.Pages),
		AverageScore:    report.GlobalHygieneScore,
	}
	for _, analysis := range report.Pages {
		s.TotalIssues += analysis.TotalIssueCount
		s.CriticalIssues += analysis.CriticalIssueCount
	}
	return s
}

// WorstPages returns up to n pages with the lowest scores.
func WorstPages(pages []Page, n int) []Page {
	if n <= 0 || n > len(pages) {
		n = len(pages)
	}
	sorted := make([]Page, len(pages))
	copy(sorted, pages)
	sortWorstFirst(sorted)
	return sorted[:n]
}

// Indicative scores for crawl-only scans, where no browser analysis ran.
const (
	crawlScoreOK       = 90
	crawlScoreRedirect = 50
	crawlScoreDead     = 30
)

// FromEnum derives indicative hygiene pages from enumeration results for
// crawl-only scans: pages answering 200 score 90, other live statuses 50,
// dead URLs 30 with a synthetic functional issue.
func FromEnum(result *report.EnumResult) []Page {
	pages := make([]Page, 0, len(result.Details))
	for url, detail := range result.Details {
		page := Page{URL: url, Type: "unknown", Issues: []IssueView{}}
		switch {
		case detail.Alive && detail.Status == 200:
			page.Score = crawlScoreOK
		case detail.Alive:
			page.Score = crawlScoreRedirect
		default:
			page.Score = crawlScoreDead
			page.Issues = append(page.Issues, IssueView{
				Category: "functional",
				Title:    "URL not reachable",
				Severity: "high",
				Details:  map[string]any{"status": detail.Status},
			})
			page.CriticalIssueCount = 1
		}
		page.TotalIssueCount = len(page.Issues)
		pages = append(pages, page)
	}
	sortWorstFirst(pages)
	return pages
}

// sortWorstFirst orders pages by ascending score, breaking ties by URL so
// the ordering is stable across runs.
func sortWorstFirst(pages []Page) {
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Score != pages[j].Score {
			return pages[i].Score < pages[j].Score
		}
		return pages[i].URL < pages[j].URL
	})
}
