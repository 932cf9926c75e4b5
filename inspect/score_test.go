package inspect_test

import (
	"testing"

	"github.com/mwestcott/sitehound/inspect"
)

func issuesOf(severities ...inspect.Severity) []inspect.Issue {
	issues := make([]inspect.Issue, len(severities))
	for i, sev := range severities {
		issues[i] = inspect.Issue{Severity: sev, SeverityWeight: sev.Weight()}
	}
	return issues
}

func TestScorePage(t *testing.T) {
	tests := []struct {
		name       string
		severities []inspect.Severity
		want       float64
	}{
		{"no issues", nil, 100},
		{"one critical", []inspect.Severity{inspect.SeverityCritical}, 80},
		{"one high", []inspect.Severity{inspect.SeverityHigh}, 90},
		{"one medium", []inspect.Severity{inspect.SeverityMedium}, 95},
		{"one low", []inspect.Severity{inspect.SeverityLow}, 98},
		{
			"mixed",
			[]inspect.Severity{inspect.SeverityCritical, inspect.SeverityHigh, inspect.SeverityLow},
			68,
		},
		{
			"floored at zero",
			[]inspect.Severity{
				inspect.SeverityCritical, inspect.SeverityCritical, inspect.SeverityCritical,
				inspect.SeverityCritical, inspect.SeverityCritical, inspect.SeverityCritical,
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inspect.ScorePage(issuesOf(tt.severities...)); got != tt.want {
				t.Errorf("ScorePage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobalScore(t *testing.T) {
	if got := inspect.GlobalScore(nil); got != 0 {
		t.Errorf("GlobalScore(nil) = %v, want 0", got)
	}

	pages := []inspect.PageAnalysis{{Score: 100}, {Score: 80}, {Score: 60}}
	if got := inspect.GlobalScore(pages); got != 80 {
		t.Errorf("GlobalScore() = %v, want 80", got)
	}
}

func TestSeverityWeights(t *testing.T) {
	tests := []struct {
		sev  inspect.Severity
		want int
	}{
		{inspect.SeverityCritical, 5},
		{inspect.SeverityHigh, 3},
		{inspect.SeverityMedium, 2},
		{inspect.SeverityLow, 1},
		{inspect.Severity("bogus"), 1},
	}
	for _, tt := range tests {
		if got := tt.sev.Weight(); got != tt.want {
			t.Errorf("Weight(%q) = %d, want %d", tt.sev, got, tt.want)
		}
	}
}
