package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mwestcott/sitehound/report"
)

func sampleEnumResult() *report.EnumResult {
	return &report.EnumResult{
		Domain: "example.com",
		URLs:   []string{"https://example.com/", "https://example.com/admin"},
		Details: map[string]report.URLDetail{
			"https://example.com/": {
				Status: 200, StatusTag: "[200]", Alive: true,
				Sources: []string{"live_crawl"},
			},
			"https://example.com/admin": {
				Status: 404, StatusTag: "[404]", Alive: false,
				Sources: []string{"bruteforce"},
			},
		},
		Summary: report.EnumSummary{
			TotalURLs:      2,
			AliveURLs:      1,
			SourcesUsed:    []string{"bruteforce", "live_crawl"},
			SourcesSummary: map[string]int{"bruteforce": 5, "live_crawl": 1},
		},
	}
}

func TestWriteEnumJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteEnumJSON(&buf, sampleEnumResult()); err != nil {
		t.Fatalf("WriteEnumJSON() error: %v", err)
	}

	var decoded report.EnumResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Domain != "example.com" || len(decoded.URLs) != 2 {
		t.Errorf("round-trip = %+v", decoded)
	}
	if decoded.Summary.SourcesSummary["bruteforce"] != 5 {
		t.Errorf("summary lost in round-trip: %+v", decoded.Summary)
	}
}

func TestWriteEnumTXT(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteEnumTXT(&buf, sampleEnumResult()); err != nil {
		t.Fatalf("WriteEnumTXT() error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "[200] https://example.com/\n") {
		t.Errorf("output missing tagged URL line:\n%s", out)
	}
	if !strings.Contains(out, "# domain: example.com") {
		t.Errorf("output missing summary block:\n%s", out)
	}
	if !strings.Contains(out, "# total: 2 alive: 1") {
		t.Errorf("output missing totals line:\n%s", out)
	}
}
