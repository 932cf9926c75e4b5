package inspect

import "strings"

// Thresholds for performance issues.
const (
	slowNavigationMs  = 4000
	heavyDOMNodeCount = 4000
)

// axRolesNeedingNames are accessibility roles that must carry an accessible
// name.
var axRolesNeedingNames = map[string]bool{
	"button":   true,
	"link":     true,
	"textbox":  true,
	"combobox": true,
}

// DetectIssues runs every issue rule against a page's runtime capture and
// structure record. The returned issues carry the owning page URL and their
// ranking weight.
func DetectIssues(capture *RuntimeCapture, structure Structure) []Issue {
	var issues []Issue
	add := func(category Category, title string, severity Severity, details map[string]any) {
		issues = append(issues, Issue{
			Page:           capture.URL,
			Category:       category,
			Title:          title,
			Severity:       severity,
			SeverityWeight: severity.Weight(),
			Details:        details,
		})
	}

	for _, entry := range capture.ConsoleLogs {
		if entry.Type == "error" || entry.Type == "assert" {
			add(CategoryFunctional, "JavaScript console error", SeverityHigh, map[string]any{
				"text":     entry.Text,
				"location": entry.Location,
			})
		}
	}

	for _, failure := range capture.NetworkFailures {
		add(CategoryFunctional, "Failed network request", SeverityHigh, map[string]any{
			"url":           failure.URL,
			"method":        failure.Method,
			"failure":       failure.Failure,
			"resource_type": failure.ResourceType,
		})
	}

	if !structure.HasHeader {
		add(CategoryUI, "Missing page header", SeverityLow, nil)
	}
	if !structure.HasFooter {
		add(CategoryUI, "Missing page footer", SeverityLow, nil)
	}
	if !structure.HasNav {
		add(CategoryUI, "Missing navigation", SeverityMedium, nil)
	}

	for _, link := range structure.BrokenLinks {
		add(CategoryUI, "Dead link", SeverityMedium, map[string]any{"href": link})
	}
	for _, img := range structure.BrokenImages {
		add(CategoryUI, "Broken image", SeverityLow, map[string]any{"src": img})
	}

	if capture.Performance.Navigation.Duration > slowNavigationMs {
		add(CategoryPerformance, "Slow page load", SeverityMedium, map[string]any{
			"duration_ms": capture.Performance.Navigation.Duration,
		})
	}
	if capture.DOMMetrics.NodeCount > heavyDOMNodeCount {
		add(CategoryPerformance, "Excessive DOM size", SeverityMedium, map[string]any{
			"node_count": capture.DOMMetrics.NodeCount,
		})
	}

	if unnamed := countUnnamedInteractive(capture.AXTree); unnamed > 0 {
		add(CategoryAccessibility, "Interactive elements without accessible names", SeverityMedium,
			map[string]any{"count": unnamed})
	}

	lower := strings.ToLower(capture.HTML)
	if strings.Contains(lower, "lorem ipsum") {
		add(CategoryContent, "Placeholder text present", SeverityLow, nil)
	}
	if capture.DOMMetrics.ImgCount > 0 && strings.Contains(capture.HTML, `alt=""`) {
		add(CategoryAccessibility, "Images with empty alt text", SeverityLow, nil)
	}

	return issues
}

// countUnnamedInteractive walks the accessibility tree iteratively and
// counts interactive nodes missing an accessible name.
func countUnnamedInteractive(root *AXNode) int {
	if root == nil {
		return 0
	}
	var count int
	stack := []*AXNode{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if axRolesNeedingNames[node.Role] && strings.TrimSpace(node.Name) == "" {
			count++
		}
		stack = append(stack, node.Children...)
	}
	return count
}
