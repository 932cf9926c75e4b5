package inspect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Classify assigns a role to a page from its snapshot and DOM metrics.
// Rules are evaluated in order and the first match wins; pages matching
// nothing are unknown.
func Classify(html string, metrics DOMMetrics) PageType {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageUnknown
	}

	passwords := doc.Find(`input[type="password"]`).Length()
	forms := doc.Find("form").Length()
	charts := doc.Find("canvas").Length() + doc.Find("svg").Length()
	tables := doc.Find("table").Length()
	lists := doc.Find("ul").Length() + doc.Find("ol").Length()
	wizardSteps := doc.Find(".wizard, .wizard-step").Length() +
		doc.Find(`[role="tablist"] .step`).Length()

	bodyText := strings.ToLower(doc.Text())

	switch {
	case passwords >= 1 || (forms >= 1 && metrics.InputCount >= 3 && metrics.ButtonCount >= 1):
		return PageLogin
	case charts >= 1 || strings.Contains(bodyText, "dashboard"):
		return PageDashboard
	case tables >= 1 && lists >= 1 && metrics.InputCount < 5:
		return PageList
	case forms >= 1 && metrics.InputCount >= 2 && metrics.ButtonCount >= 1:
		return PageForm
	case wizardSteps >= 1:
		return PageWizard
	case charts >= 1 && tables >= 1:
		return PageReport
	default:
		return PageUnknown
	}
}
