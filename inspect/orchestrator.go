package inspect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mwestcott/sitehound/events"
)

// OrchestratorConfig configures the inspection pipeline. Zero values select
// defaults.
type OrchestratorConfig struct {
	MaxPages             int
	CrawlerConcurrency   int
	ValidatorConcurrency int64
	BrowserConcurrency   int64
	RequestTimeout       time.Duration
	BrowserTimeout       time.Duration
	UserAgent            string
	MemoryLimitMB        int64
	Logger               zerolog.Logger
}

// ScanReport is the full output of an inspection run.
type ScanReport struct {
	BaseURL            string         `json:"base_url"`
	TotalDiscovered    int            `json:"total_discovered"`
	TotalValid         int            `json:"total_valid"`
	Pages              []PageAnalysis `json:"pages"`
	Graph              GraphReport    `json:"graph"`
	GlobalHygieneScore float64        `json:"global_hygiene_score"`
}

// Orchestrator runs the inspection stage: crawl the site, filter to pages
// answering 200, fan them through a bounded browser pool, and run the
// structure/classification/issue/scoring passes on each.
type Orchestrator struct {
	cfg      OrchestratorConfig
	bus      *events.Bus
	analyzer Analyzer
	memory   *MemoryWatcher
}

// NewOrchestrator creates an Orchestrator. The analyzer is injected so scans
// can run against a real browser or a test double.
func NewOrchestrator(cfg OrchestratorConfig, bus *events.Bus, analyzer Analyzer) *Orchestrator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.CrawlerConcurrency <= 0 {
		cfg.CrawlerConcurrency = 5
	}
	if cfg.ValidatorConcurrency <= 0 {
		cfg.ValidatorConcurrency = 10
	}
	if cfg.BrowserConcurrency <= 0 {
		cfg.BrowserConcurrency = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BrowserTimeout <= 0 {
		cfg.BrowserTimeout = 30 * time.Second
	}

	o := &Orchestrator{cfg: cfg, bus: bus, analyzer: analyzer}
	if cfg.MemoryLimitMB > 0 {
		o.memory = NewMemoryWatcher(cfg.MemoryLimitMB)
	}
	return o
}

// Run executes the inspection pipeline for one scan, emitting page-level
// events as it goes. Scan lifecycle events (started, completed, failed) are
// the caller's responsibility. Per-page failures are recorded as synthetic
// runtime issues; only crawl failures on the base URL and context
// cancellation fail the scan.
func (o *Orchestrator) Run(ctx context.Context, scanID, baseURL string) (*ScanReport, error) {
	log := o.cfg.Logger.With().Str("scan_id", scanID).Str("url", baseURL).Logger()

	crawler := NewCrawler(CrawlerConfig{
		MaxPages:    o.cfg.MaxPages,
		Concurrency: o.cfg.CrawlerConcurrency,
		Timeout:     o.cfg.RequestTimeout,
		UserAgent:   o.cfg.UserAgent,
		Logger:      log,
		OnPage: func(page CrawledPage) {
			o.emit(events.URLDiscovered, scanID, map[string]any{
				"url":    page.URL,
				"status": page.Status,
			})
		},
	})
	pages, err := crawler.Crawl(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("inspection crawl: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("inspection cancelled: %w", err)
	}
	log.Info().Int("discovered", len(pages)).Msg("inspection crawl complete")

	urls := make([]string, 0, len(pages))
	for u := range pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	validator := NewValidator(ValidatorConfig{
		Concurrency: o.cfg.ValidatorConcurrency,
		Timeout:     o.cfg.RequestTimeout,
		UserAgent:   o.cfg.UserAgent,
		Logger:      log,
		OnValidated: func(u string, v Validation) {
			o.emit(events.URLValidated, scanID, map[string]any{
				"url":    u,
				"status": v.Status,
				"valid":  v.Valid,
			})
		},
	})
	verdicts := validator.ValidateAll(ctx, urls)
	valid := FilterValid(verdicts)
	log.Info().Int("valid", len(valid)).Msg("validation complete")

	analyses := o.analyzePages(ctx, scanID, valid, pages, log)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("inspection cancelled: %w", err)
	}

	graph := NewGraph()
	for _, analysis := range analyses {
		graph.AddPage(analysis.URL, analysis.Type, analysis.Score)
		graph.AddIssues(analysis.URL, analysis.Issues)
	}

	report := &ScanReport{
		BaseURL:            baseURL,
		TotalDiscovered:    len(pages),
		TotalValid:         len(valid),
		Pages:              analyses,
		Graph:              graph.Report(),
		GlobalHygieneScore: GlobalScore(analyses),
	}

	log.Info().
		Int("analyzed", len(analyses)).
		Float64("global_score", report.GlobalHygieneScore).
		Msg("inspection complete")
	return report, nil
}

// analyzePages fans the valid URLs through the browser pool. Results come
// back in completion order.
func (o *Orchestrator) analyzePages(ctx context.Context, scanID string, urls []string, pages map[string]CrawledPage, log zerolog.Logger) []PageAnalysis {
	sem := semaphore.NewWeighted(o.cfg.BrowserConcurrency)
	var (
		mu       sync.Mutex
		analyses []PageAnalysis
		wg       sync.WaitGroup
	)

	for _, u := range urls {
		o.waitForMemory(ctx)
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer sem.Release(1)

			analysis := o.analyzePage(ctx, scanID, u, pages[u].HTML, log)
			mu.Lock()
			analyses = append(analyses, analysis)
			globalScore := GlobalScore(analyses)
			mu.Unlock()

			o.emit(events.ScoreUpdated, scanID, map[string]any{
				"url":          u,
				"score":        analysis.Score,
				"global_score": globalScore,
			})
			o.emit(events.PageAnalyzed, scanID, map[string]any{
				"url":   u,
				"type":  string(analysis.Type),
				"score": analysis.Score,
			})
		}(u)
	}
	wg.Wait()
	return analyses
}

// analyzePage runs the full per-page pass. Any failure, panic included,
// produces a scored analysis with a synthetic runtime issue instead of
// aborting the scan. When navigation fails and the browser captured no HTML,
// the crawler's copy of the page stands in so the structure and content
// passes still see real markup.
func (o *Orchestrator) analyzePage(ctx context.Context, scanID, u, crawledHTML string, log zerolog.Logger) (analysis PageAnalysis) {
	analysis = PageAnalysis{URL: u, Type: PageUnknown}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("url", u).Msg("page analysis panicked")
			analysis = o.failedAnalysis(u, fmt.Sprintf("panic: %v", r))
		}
	}()

	o.emit(events.PageTestingStarted, scanID, map[string]any{"url": u})

	pageCtx, cancel := context.WithTimeout(ctx, o.cfg.BrowserTimeout)
	defer cancel()

	capture, err := o.analyzer.Analyze(pageCtx, u)
	if err != nil {
		log.Warn().Err(err).Str("url", u).Msg("page analysis failed")
		return o.failedAnalysis(u, err.Error())
	}

	if capture.HTML == "" && crawledHTML != "" {
		capture.HTML = crawledHTML
	}

	structure := DetectStructure(capture.HTML)
	pageType := Classify(capture.HTML, capture.DOMMetrics)
	issues := DetectIssues(capture, structure)

	o.emit(events.IssuesDetected, scanID, map[string]any{
		"url":   u,
		"count": len(issues),
	})

	analysis = PageAnalysis{
		URL:              u,
		Type:             pageType,
		Score:            ScorePage(issues),
		Issues:           issues,
		Structure:        structure,
		DOMMetrics:       capture.DOMMetrics,
		ConsoleLogs:      capture.ConsoleLogs,
		NetworkFailures:  capture.NetworkFailures,
		Performance:      capture.Performance,
		NavigationStatus: capture.NavigationStatus,
	}
	analysis.CountIssues()
	return analysis
}

// failedAnalysis produces the synthetic record for a page whose analysis
// crashed. The failure surfaces as a critical runtime issue so it lands in
// the report instead of vanishing.
func (o *Orchestrator) failedAnalysis(u, errText string) PageAnalysis {
	issue := Issue{
		Page:           u,
		Category:       CategoryRuntime,
		Title:          "Page analysis failed",
		Severity:       SeverityCritical,
		SeverityWeight: SeverityCritical.Weight(),
		Details:        map[string]any{"error": errText},
	}
	analysis := PageAnalysis{
		URL:    u,
		Type:   PageUnknown,
		Score:  0,
		Issues: []Issue{issue},
	}
	analysis.CountIssues()
	return analysis
}

// waitForMemory pauses scheduling while the process is under memory
// pressure.
func (o *Orchestrator) waitForMemory(ctx context.Context) {
	if o.memory == nil {
		return
	}
	for {
		_, level := o.memory.Check()
		backoff := o.memory.Backoff(level)
		if backoff == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (o *Orchestrator) emit(eventType, scanID string, data map[string]any) {
	if o.bus != nil {
		o.bus.Emit(eventType, scanID, data)
	}
}
