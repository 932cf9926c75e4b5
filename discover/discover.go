// Package discover implements multi-technique URL enumeration: live
// crawling, JavaScript endpoint mining, historical-archive lookups, path
// brute forcing, and robots.txt/sitemap harvesting, fused into one
// deduplicated candidate set with per-URL liveness verdicts.
package discover

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mwestcott/sitehound/report"
	"github.com/mwestcott/sitehound/urlutil"
)

// Technique selects one enumeration technique.
type Technique string

// Enumeration techniques.
const (
	TechniqueLive       Technique = "live"
	TechniqueJS         Technique = "js"
	TechniqueWayback    Technique = "wayback"
	TechniqueBruteforce Technique = "bruteforce"
	TechniqueRobots     Technique = "robots"
	TechniqueSitemap    Technique = "sitemap"
)

// AllTechniques returns every technique in canonical order.
func AllTechniques() []Technique {
	return []Technique{
		TechniqueLive, TechniqueJS, TechniqueWayback,
		TechniqueBruteforce, TechniqueRobots, TechniqueSitemap,
	}
}

// ParseTechniques parses a comma-separated technique list, ignoring unknown
// names. An empty or all-unknown input returns nil.
func ParseTechniques(s string) []Technique {
	known := make(map[Technique]bool)
	for _, t := range AllTechniques() {
		known[t] = true
	}
	var out []Technique
	seen := make(map[Technique]bool)
	for _, part := range strings.Split(s, ",") {
		t := Technique(strings.TrimSpace(strings.ToLower(part)))
		if known[t] && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// sourceTag maps a technique to the provenance tag stored on results.
func sourceTag(t Technique) string {
	switch t {
	case TechniqueLive:
		return "live_crawl"
	case TechniqueJS:
		return "js_analysis"
	default:
		return string(t)
	}
}

// Config configures an enumeration run. Zero values select defaults.
type Config struct {
	Domain          string
	Depth           int
	Timeout         time.Duration
	Threads         int
	OnlyAlive       bool
	RespectRobots   bool
	UserAgent       string
	Techniques      []Technique
	Wordlist        []string
	WaybackEndpoint string
	WaybackLimit    int
	Logger          zerolog.Logger
	OnProgress      func(Progress)
}

// Enumerator fuses the enumeration techniques into one candidate table and
// probes the candidates for liveness.
type Enumerator struct {
	cfg    Config
	origin string

	mu         sync.Mutex
	candidates map[string]map[string]bool // url -> source tags
	rawCounts  map[string]int
}

// NewEnumerator creates an Enumerator for cfg.Domain.
func NewEnumerator(cfg Config) (*Enumerator, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("enumerator: domain is required")
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 50
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sitehound/1.0 (+https://github.com/mwestcott/sitehound)"
	}
	if len(cfg.Techniques) == 0 {
		cfg.Techniques = AllTechniques()
	}

	normalized, err := urlutil.Normalize(cfg.Domain)
	if err != nil {
		return nil, fmt.Errorf("enumerator: normalize domain: %w", err)
	}
	origin, err := urlutil.Origin(normalized)
	if err != nil {
		return nil, fmt.Errorf("enumerator: derive origin: %w", err)
	}

	return &Enumerator{
		cfg:        cfg,
		origin:     origin,
		candidates: make(map[string]map[string]bool),
		rawCounts:  make(map[string]int),
	}, nil
}

// add merges a batch of raw URLs from one source into the candidate table.
// URLs that fail normalization or fall outside the target domain are dropped.
// Raw per-source counts are kept before deduplication for the summary.
func (e *Enumerator) add(source string, urls []string) {
	domain := urlutil.ExtractDomain(e.origin)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, raw := range urls {
		e.rawCounts[source]++
		normalized, err := urlutil.Normalize(raw)
		if err != nil || !urlutil.IsInternal(normalized, domain) {
			continue
		}
		if e.candidates[normalized] == nil {
			e.candidates[normalized] = make(map[string]bool)
		}
		e.candidates[normalized][source] = true
	}
}

// addPaths joins paths onto the origin and merges them.
func (e *Enumerator) addPaths(source string, paths []string) {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		urls = append(urls, e.origin+p)
	}
	e.add(source, urls)
}

func (e *Enumerator) enabled(t Technique) bool {
	for _, have := range e.cfg.Techniques {
		if have == t {
			return true
		}
	}
	return false
}

func (e *Enumerator) progress(p Progress) {
	if e.cfg.OnProgress != nil {
		e.cfg.OnProgress(p)
	}
}

// Run executes every enabled technique, fuses the candidates, and probes
// them for liveness. Individual technique failures never fail the run.
// When OnlyAlive is set the output contains only URLs that probed alive,
// while SourcesSummary still counts every raw candidate per source.
func (e *Enumerator) Run(ctx context.Context) *report.EnumResult {
	start := time.Now()
	log := e.cfg.Logger.With().Str("domain", e.cfg.Domain).Logger()
	log.Info().Strs("techniques", techniqueNames(e.cfg.Techniques)).Msg("enumeration started")

	var wg sync.WaitGroup

	// Live crawl feeds the JS miner, so the two run in one goroutine.
	if e.enabled(TechniqueLive) || e.enabled(TechniqueJS) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runLiveAndJS(ctx, log)
		}()
	}

	if e.enabled(TechniqueWayback) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			archive := NewArchiveClient(e.cfg.WaybackEndpoint, e.cfg.Timeout+5*time.Second,
				e.cfg.WaybackLimit, e.cfg.UserAgent, log)
			urls := archive.Search(ctx, e.cfg.Domain)
			e.add(sourceTag(TechniqueWayback), urls)
			e.progress(Progress{Stage: StageWayback, Found: len(urls), Done: true})
		}()
	}

	if e.enabled(TechniqueBruteforce) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			urls := NewBruteForcer(e.cfg.Wordlist).GenerateURLs(e.origin)
			e.add(sourceTag(TechniqueBruteforce), urls)
			e.progress(Progress{Stage: StageBruteforce, Found: len(urls), Done: true})
		}()
	}

	// Robots mining also harvests Sitemap: declarations, so the sitemap
	// technique shares its goroutine to consume them.
	if e.enabled(TechniqueRobots) || e.enabled(TechniqueSitemap) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var sitemapExtra []string
			if e.enabled(TechniqueRobots) {
				paths, sitemaps := NewRobotsSource(e.cfg.Timeout, log).Mine(ctx, e.origin)
				e.addPaths(sourceTag(TechniqueRobots), paths)
				sitemapExtra = sitemaps
				e.progress(Progress{Stage: StageRobots, Found: len(paths), Done: true})
			}
			if e.enabled(TechniqueSitemap) {
				urls := NewSitemapSource(e.cfg.Timeout, log).URLs(ctx, e.origin, sitemapExtra)
				e.add(sourceTag(TechniqueSitemap), urls)
				e.progress(Progress{Stage: StageSitemap, Found: len(urls), Done: true})
			}
		}()
	}

	wg.Wait()

	result := e.probeAndAssemble(ctx, log)
	result.Summary.Duration = time.Since(start)
	log.Info().
		Int("total", result.Summary.TotalURLs).
		Int("alive", result.Summary.AliveURLs).
		Dur("duration", result.Summary.Duration).
		Msg("enumeration complete")
	return result
}

func (e *Enumerator) runLiveAndJS(ctx context.Context, log zerolog.Logger) {
	crawler := NewLiveCrawler(LiveCrawlConfig{
		Depth:         e.cfg.Depth,
		Threads:       e.cfg.Threads,
		Timeout:       e.cfg.Timeout,
		RateLimit:     rate.Limit(e.cfg.Threads * 2),
		UserAgent:     e.cfg.UserAgent,
		RespectRobots: e.cfg.RespectRobots,
		Logger:        log,
		OnProgress:    e.cfg.OnProgress,
	})
	urls, jsBodies, err := crawler.Crawl(ctx, e.origin)
	if err != nil {
		log.Warn().Err(err).Msg("live crawl failed")
	}
	if e.enabled(TechniqueLive) {
		e.add(sourceTag(TechniqueLive), urls)
		e.progress(Progress{Stage: StageLiveCrawl, Found: len(urls), Done: true})
	}
	if e.enabled(TechniqueJS) {
		endpoints := ExtractEndpointsFromFiles(jsBodies)
		e.addPaths(sourceTag(TechniqueJS), endpoints)
		e.progress(Progress{Stage: StageJSAnalysis, Found: len(endpoints), Done: true})
	}
}

// probeAndAssemble checks every fused candidate and builds the result.
func (e *Enumerator) probeAndAssemble(ctx context.Context, log zerolog.Logger) *report.EnumResult {
	e.mu.Lock()
	all := make([]string, 0, len(e.candidates))
	for u := range e.candidates {
		all = append(all, u)
	}
	e.mu.Unlock()
	sort.Strings(all)

	prober := NewProber(ProberConfig{
		Timeout:   e.cfg.Timeout,
		Workers:   e.cfg.Threads,
		UserAgent: e.cfg.UserAgent,
		Logger:    log,
	})
	var probed, alive int
	var progressMu sync.Mutex
	probes := prober.ProbeAll(ctx, all, func(res ProbeResult) {
		progressMu.Lock()
		probed++
		if res.Alive {
			alive++
		}
		e.progress(Progress{
			Stage: StageProbe, URL: res.URL,
			Probed: probed, Alive: alive, Total: len(all),
			Category: res.Category,
		})
		progressMu.Unlock()
	})

	result := &report.EnumResult{
		Domain:         e.cfg.Domain,
		Details:        make(map[string]report.URLDetail, len(all)),
		DeadByCategory: make(map[report.ErrorCategory][]string),
	}

	usedTags := make(map[string]bool)
	for _, u := range all {
		e.mu.Lock()
		srcSet := e.candidates[u]
		e.mu.Unlock()

		sources := make([]string, 0, len(srcSet))
		for s := range srcSet {
			sources = append(sources, s)
			usedTags[s] = true
		}
		sort.Strings(sources)

		probe := probes[u]
		detail := report.URLDetail{
			Status:        probe.Status,
			StatusTag:     urlutil.StatusTag(probe.Status),
			ContentLength: probe.ContentLength,
			Alive:         probe.Alive,
			Sources:       sources,
		}

		if probe.Alive {
			result.Summary.AliveURLs++
		} else {
			result.DeadByCategory[probe.Category] = append(result.DeadByCategory[probe.Category], u)
		}
		if !e.cfg.OnlyAlive || probe.Alive {
			result.URLs = append(result.URLs, u)
			result.Details[u] = detail
		}
	}

	result.Summary.TotalURLs = len(result.URLs)
	result.Summary.SourcesUsed = sortedKeys(usedTags)
	result.Summary.SourcesSummary = make(map[string]int, len(e.rawCounts))
	e.mu.Lock()
	for src, n := range e.rawCounts {
		result.Summary.SourcesSummary[src] = n
	}
	e.mu.Unlock()

	e.progress(Progress{Stage: StageProbe, Probed: probed, Alive: alive, Total: len(all), Done: true})
	return result
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func techniqueNames(ts []Technique) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = string(t)
	}
	return names
}
