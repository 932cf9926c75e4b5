package hygiene_test

import (
	"testing"

	"github.com/mwestcott/sitehound/hygiene"
	"github.com/mwestcott/sitehound/inspect"
	"github.com/mwestcott/sitehound/report"
)

func sampleReport() *inspect.ScanReport {
	pages := []inspect.PageAnalysis{
		{
			URL:   "https://example.com/good",
			Type:  inspect.PageUnknown,
			Score: 95,
			Issues: []inspect.Issue{
				{Category: inspect.CategoryUI, Title: "Missing navigation", Severity: inspect.SeverityMedium},
			},
		},
		{
			URL:   "https://example.com/bad",
			Type:  inspect.PageForm,
			Score: 60,
			Issues: []inspect.Issue{
				{Category: inspect.CategoryFunctional, Title: "JavaScript console error", Severity: inspect.SeverityHigh},
				{Category: inspect.CategoryUI, Title: "Dead link", Severity: inspect.SeverityMedium},
			},
		},
	}
	for i := range pages {
		pages[i].CountIssues()
	}
	return &inspect.ScanReport{
		BaseURL:            "https://example.com",
		TotalDiscovered:    5,
		TotalValid:         3,
		Pages:              pages,
		GlobalHygieneScore: 77.5,
	}
}

func TestPagesWorstFirst(t *testing.T) {
	pages := hygiene.Pages(sampleReport())
	if len(pages) != 2 {
		t.Fatalf("Pages() returned %d, want 2", len(pages))
	}
	if pages[0].URL != "https://example.com/bad" {
		t.Errorf("worst page first = %s, want /bad", pages[0].URL)
	}
	if pages[0].CriticalIssueCount != 1 || pages[0].TotalIssueCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", pages[0].CriticalIssueCount, pages[0].TotalIssueCount)
	}
	if pages[0].Issues[0].Severity != "high" {
		t.Errorf("issue severity = %q, want high", pages[0].Issues[0].Severity)
	}
}

func TestSummarize(t *testing.T) {
	s := hygiene.Summarize(sampleReport())
	want := hygiene.Summary{
		TotalDiscovered: 5,
		TotalValid:      3,
		TotalAnalyzed:   2,
		AverageScore:    77.5,
		TotalIssues:     3,
		CriticalIssues:  1,
	}
	if s != want {
		t.Errorf("Summarize() = %+v, want %+v", s, want)
	}
}

func TestWorstPages(t *testing.T) {
	pages := []hygiene.Page{
		{URL: "a", Score: 90},
		{URL: "b", Score: 30},
		{URL: "c", Score: 60},
	}
	worst := hygiene.WorstPages(pages, 2)
	if len(worst) != 2 || worst[0].URL != "b" || worst[1].URL != "c" {
		t.Errorf("WorstPages() = %v, want [b c]", worst)
	}
	// n larger than the slice returns everything.
	if got := hygiene.WorstPages(pages, 10); len(got) != 3 {
		t.Errorf("WorstPages(10) returned %d, want 3", len(got))
	}
}

func TestFromEnum(t *testing.T) {
	result := &report.EnumResult{
		Details: map[string]report.URLDetail{
			"https://example.com/":      {Status: 200, Alive: true},
			"https://example.com/moved": {Status: 301, Alive: true},
			"https://example.com/gone":  {Status: 404, Alive: false},
		},
	}
	pages := hygiene.FromEnum(result)
	if len(pages) != 3 {
		t.Fatalf("FromEnum() returned %d pages, want 3", len(pages))
	}

	byURL := make(map[string]hygiene.Page)
	for _, p := range pages {
		byURL[p.URL] = p
	}
	if s := byURL["https://example.com/"].Score; s != 90 {
		t.Errorf("200 page score = %v, want 90", s)
	}
	if s := byURL["https://example.com/moved"].Score; s != 50 {
		t.Errorf("redirect page score = %v, want 50", s)
	}
	gone := byURL["https://example.com/gone"]
	if gone.Score != 30 || gone.CriticalIssueCount != 1 {
		t.Errorf("dead page = %+v, want score 30 with one critical issue", gone)
	}

	if pages[0].URL != "https://example.com/gone" {
		t.Errorf("worst page first = %s, want /gone", pages[0].URL)
	}
}
