package inspect

// scoreDeductions are the per-severity deductions from the base score.
// They intentionally differ from the ranking weights in types.go.
var scoreDeductions = map[Severity]float64{
	SeverityCritical: 20,
	SeverityHigh:     10,
	SeverityMedium:   5,
	SeverityLow:      2,
}

// ScorePage computes a page's hygiene score: 100 minus the summed severity
// deductions, floored at 0. A page with no issues scores 100.
func ScorePage(issues []Issue) float64 {
	score := 100.0
	for _, issue := range issues {
		score -= scoreDeductions[issue.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}

// GlobalScore is the mean page score, 0 when no pages were analyzed.
func GlobalScore(pages []PageAnalysis) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, page := range pages {
		sum += page.Score
	}
	return sum / float64(len(pages))
}
