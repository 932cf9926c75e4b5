package discover

import "github.com/mwestcott/sitehound/report"

// Stage identifies the discovery phase a Progress event belongs to.
type Stage string

const (
	StageLiveCrawl  Stage = "live_crawl"
	StageJSAnalysis Stage = "js_analysis"
	StageWayback    Stage = "wayback"
	StageRobots     Stage = "robots"
	StageSitemap    Stage = "sitemap"
	StageBruteforce Stage = "bruteforce"
	StageProbe      Stage = "probe"
)

// Progress reports enumeration progress for the TUI and other listeners.
// Probe-stage events carry running totals; technique-stage events carry the
// per-technique URL count once the technique finishes.
type Progress struct {
	Stage    Stage
	URL      string
	Err      string
	Found    int
	Probed   int
	Alive    int
	Total    int
	Category report.ErrorCategory
	Done     bool
}
