package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// URLDetail is the per-URL record in an enumeration result.
type URLDetail struct {
	Status        int      `json:"status"`
	StatusTag     string   `json:"status_tag"`
	ContentLength int64    `json:"content_length"`
	Alive         bool     `json:"alive"`
	Sources       []string `json:"sources"`
}

// EnumSummary aggregates an enumeration run.
type EnumSummary struct {
	TotalURLs      int            `json:"total_urls"`
	AliveURLs      int            `json:"alive_urls"`
	SourcesUsed    []string       `json:"sources_used"`
	SourcesSummary map[string]int `json:"sources_summary"`
	Duration       time.Duration  `json:"-"`
}

// EnumResult is the output of an enumeration run. URLs is sorted; when the
// run filtered to live URLs only, SourcesSummary still counts every raw
// candidate per source.
type EnumResult struct {
	Domain         string                     `json:"domain"`
	URLs           []string                   `json:"urls"`
	Details        map[string]URLDetail       `json:"url_details"`
	Summary        EnumSummary                `json:"summary"`
	DeadByCategory map[ErrorCategory][]string `json:"-"`
}

// WriteEnumJSON writes the enumeration result as indented JSON.
func WriteEnumJSON(w io.Writer, result *EnumResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode enumeration result: %w", err)
	}
	return nil
}

// WriteEnumTXT writes the enumeration result as plain text, one URL per
// line with its status tag, followed by a summary block.
func WriteEnumTXT(w io.Writer, result *EnumResult) error {
	for _, u := range result.URLs {
		detail := result.Details[u]
		if _, err := fmt.Fprintf(w, "%s %s\n", detail.StatusTag, u); err != nil {
			return fmt.Errorf("write enumeration line: %w", err)
		}
	}

	fmt.Fprintf(w, "\n# domain: %s\n", result.Domain)
	fmt.Fprintf(w, "# total: %d alive: %d\n", result.Summary.TotalURLs, result.Summary.AliveURLs)
	for _, src := range result.Summary.SourcesUsed {
		fmt.Fprintf(w, "# %s: %d\n", src, result.Summary.SourcesSummary[src])
	}
	return nil
}
