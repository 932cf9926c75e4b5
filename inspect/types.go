// Package inspect implements the per-page inspection stage: an internal BFS
// crawler, a status validator, a headless-browser analyzer, and the
// structure/classification/issue/scoring passes that turn runtime captures
// into hygiene reports.
package inspect

import "time"

// PageType is the heuristic role assigned to a page.
type PageType string

// Page roles, in classifier precedence order.
const (
	PageLogin     PageType = "login"
	PageDashboard PageType = "dashboard"
	PageList      PageType = "list"
	PageForm      PageType = "form"
	PageWizard    PageType = "wizard"
	PageReport    PageType = "report"
	PageUnknown   PageType = "unknown"
)

// Category groups issues by the kind of defect they describe.
type Category string

const (
	CategoryFunctional    Category = "functional"
	CategoryUI            Category = "ui"
	CategoryPerformance   Category = "performance"
	CategoryAccessibility Category = "accessibility"
	CategoryContent       Category = "content"
	CategoryRuntime       Category = "runtime"
)

// Severity ranks how damaging an issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityWeights rank issues for ordering and the critical count.
var severityWeights = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Weight returns the ranking weight for a severity (unknown severities
// weigh 1).
func (s Severity) Weight() int {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return 1
}

// Issue is one detected quality defect on a page.
type Issue struct {
	Page           string         `json:"page"`
	Category       Category       `json:"category"`
	Title          string         `json:"title"`
	Severity       Severity       `json:"severity"`
	SeverityWeight int            `json:"severity_weight"`
	Details        map[string]any `json:"details,omitempty"`
}

// CrawledPage is one page recorded by the inspection crawler.
type CrawledPage struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	HTML        string `json:"html,omitempty"`
	ContentType string `json:"content_type"`
}

// Validation is the per-URL verdict of the status validator.
type Validation struct {
	Status      int    `json:"status"`
	Valid       bool   `json:"valid"`
	ContentType string `json:"content_type"`
}

// DOMMetrics are element counts captured by in-page evaluation.
type DOMMetrics struct {
	NodeCount   int `json:"nodeCount"`
	InputCount  int `json:"inputCount"`
	ButtonCount int `json:"buttonCount"`
	ImgCount    int `json:"imgCount"`
	LinkCount   int `json:"linkCount"`
}

// ConsoleLog is one console message observed during page load.
type ConsoleLog struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
}

// NetworkFailure is one subresource request that failed during page load.
type NetworkFailure struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	Failure      string `json:"failure"`
	ResourceType string `json:"resource_type"`
}

// NavigationTiming is the navigation entry of the performance capture.
type NavigationTiming struct {
	Duration         float64 `json:"duration"`
	DOMContentLoaded float64 `json:"domContentLoaded"`
	LoadEventEnd     float64 `json:"loadEventEnd"`
}

// PaintTiming is one paint entry of the performance capture.
type PaintTiming struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"startTime"`
}

// Performance is the timing capture for one page load.
type Performance struct {
	Navigation NavigationTiming `json:"navigation"`
	Paint      []PaintTiming    `json:"paint,omitempty"`
}

// AXNode is one node of the accessibility tree snapshot.
type AXNode struct {
	Role     string    `json:"role,omitempty"`
	Name     string    `json:"name,omitempty"`
	Children []*AXNode `json:"children,omitempty"`
}

// Structure records the structural features of a page.
type Structure struct {
	HasHeader       bool     `json:"has_header"`
	HasFooter       bool     `json:"has_footer"`
	HasNav          bool     `json:"has_nav"`
	RepeatedClasses []string `json:"repeated_classes"`
	BrokenLinks     []string `json:"broken_links"`
	BrokenImages    []string `json:"broken_images"`
}

// RuntimeCapture is everything the browser analyzer observed for one URL.
// Every field is populated even when navigation failed; unavailable data is
// left empty rather than omitted.
type RuntimeCapture struct {
	URL              string           `json:"url"`
	HTML             string           `json:"html"`
	NavigationStatus string           `json:"navigation_status"`
	ConsoleLogs      []ConsoleLog     `json:"console_logs"`
	NetworkFailures  []NetworkFailure `json:"network_failures"`
	DOMMetrics       DOMMetrics       `json:"dom_metrics"`
	Performance      Performance      `json:"performance"`
	AXTree           *AXNode          `json:"ax_tree,omitempty"`
	Elapsed          time.Duration    `json:"-"`
}

// PageAnalysis is the full per-page inspection result.
type PageAnalysis struct {
	URL                string           `json:"url"`
	Type               PageType         `json:"type"`
	Score              float64          `json:"score"`
	Issues             []Issue          `json:"issues"`
	Structure          Structure        `json:"structure"`
	DOMMetrics         DOMMetrics       `json:"dom_metrics"`
	ConsoleLogs        []ConsoleLog     `json:"console_logs"`
	NetworkFailures    []NetworkFailure `json:"network_failures"`
	Performance        Performance      `json:"performance"`
	NavigationStatus   string           `json:"navigation_status,omitempty"`
	CriticalIssueCount int              `json:"criticalIssueCount"`
	TotalIssueCount    int              `json:"totalIssueCount"`
}

// CountIssues fills the critical and total issue counts from Issues.
// Critical counts severities in {critical, high}.
func (p *PageAnalysis) CountIssues() {
	p.TotalIssueCount = len(p.Issues)
	p.CriticalIssueCount = 0
	for _, issue := range p.Issues {
		if issue.Severity == SeverityCritical || issue.Severity == SeverityHigh {
			p.CriticalIssueCount++
		}
	}
}
