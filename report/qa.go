package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mwestcott/sitehound/inspect"
)

// QAReport is the persisted form of an inspection run.
type QAReport struct {
	BaseURL            string                 `json:"base_url"`
	TotalPages         int                    `json:"total_pages"`
	GlobalHygieneScore float64                `json:"global_hygiene_score"`
	Pages              []inspect.PageAnalysis `json:"pages"`
	Graph              inspect.GraphReport    `json:"graph"`
}

// NewQAReport shapes a scan report for persistence.
func NewQAReport(scan *inspect.ScanReport) *QAReport {
	return &QAReport{
		BaseURL:            scan.BaseURL,
		TotalPages:         len(scan.Pages),
		GlobalHygieneScore: scan.GlobalHygieneScore,
		Pages:              scan.Pages,
		Graph:              scan.Graph,
	}
}

// WriteQAJSON writes the QA report as indented JSON.
func WriteQAJSON(w io.Writer, qa *QAReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(qa); err != nil {
		return fmt.Errorf("encode QA report: %w", err)
	}
	return nil
}
