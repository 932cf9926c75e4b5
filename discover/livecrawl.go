package discover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mwestcott/sitehound/urlutil"
)

// LiveCrawlConfig configures the depth-bounded live crawl.
type LiveCrawlConfig struct {
	Depth         int
	Threads       int
	Timeout       time.Duration
	RateLimit     rate.Limit
	UserAgent     string
	RespectRobots bool
	MaxBodyBytes  int64
	Logger        zerolog.Logger
	OnProgress    func(Progress)
}

// LiveCrawl BFS-walks the target site collecting in-scope URLs and the bodies
// of JavaScript files it encounters along the way.
type LiveCrawler struct {
	cfg     LiveCrawlConfig
	client  *http.Client
	limiter *rate.Limiter
	robots  *RobotsChecker
}

// crawlJob is one fetch in the BFS frontier.
type crawlJob struct {
	url   string
	depth int
}

// crawlResult carries a fetched page back to the coordinator.
type crawlResult struct {
	job    crawlJob
	links  []string
	jsBody string
	err    error
}

// NewLiveCrawler creates a LiveCrawler. Zero config values select defaults.
func NewLiveCrawler(cfg LiveCrawlConfig) *LiveCrawler {
	if cfg.Depth <= 0 {
		cfg.Depth = 3
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 50
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	lc := &LiveCrawler{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Threads),
	}
	if cfg.RespectRobots {
		lc.robots = NewRobotsChecker(&http.Client{Timeout: 5 * time.Second})
	}
	return lc
}

// Crawl walks the site starting at target up to the configured depth. It
// returns every in-scope URL reached plus the bodies of JavaScript files,
// keyed by URL, for endpoint mining. The crawl never fails the scan; fetch
// errors are reported through OnProgress and skipped.
func (lc *LiveCrawler) Crawl(ctx context.Context, target string) ([]string, map[string]string, error) {
	start, err := urlutil.Normalize(target)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize crawl target: %w", err)
	}
	domain := urlutil.ExtractDomain(start)

	visited, err := NewVisitedSet(100000)
	if err != nil {
		return nil, nil, fmt.Errorf("create visited set: %w", err)
	}
	defer visited.Close()

	// The frontier buffer must absorb a full page's worth of new links so the
	// coordinator never blocks against its own workers.
	jobs := make(chan crawlJob, 4096)
	results := make(chan crawlResult, lc.cfg.Threads*2)

	var pendingJobs sync.WaitGroup

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < lc.cfg.Threads; i++ {
		g.Go(func() error {
			for {
				select {
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					if waitErr := lc.limiter.Wait(gctx); waitErr != nil {
						results <- crawlResult{job: job, err: waitErr}
						continue
					}
					results <- lc.fetch(gctx, job)
				case <-gctx.Done():
					for {
						select {
						case job, ok := <-jobs:
							if !ok {
								return nil
							}
							results <- crawlResult{job: job, err: gctx.Err()}
						default:
							return nil
						}
					}
				}
			}
		})
	}

	visited.VisitOnce(start)
	pendingJobs.Add(1)
	jobs <- crawlJob{url: start, depth: 0}

	g.Go(func() error {
		pendingJobs.Wait()
		close(results)
		return nil
	})

	var (
		found    []string
		jsBodies = make(map[string]string)
	)
	for res := range results {
		if res.err != nil {
			lc.cfg.Logger.Debug().Err(res.err).Str("url", res.job.url).Msg("crawl fetch failed")
			lc.progress(Progress{Stage: StageLiveCrawl, URL: res.job.url, Err: res.err.Error()})
		} else {
			found = append(found, res.job.url)
			if res.jsBody != "" {
				jsBodies[res.job.url] = res.jsBody
			}
			lc.progress(Progress{Stage: StageLiveCrawl, URL: res.job.url, Found: len(found)})
		}

		if res.err == nil && res.job.depth+1 < lc.cfg.Depth && ctx.Err() == nil {
			for _, link := range res.links {
				normalized, normErr := urlutil.Normalize(link)
				if normErr != nil || !urlutil.IsInternal(normalized, domain) {
					continue
				}
				if !visited.VisitOnce(normalized) {
					continue
				}
				if lc.robots != nil && !lc.robots.Allowed(ctx, normalized, lc.cfg.UserAgent) {
					continue
				}
				pendingJobs.Add(1)
				select {
				case jobs <- crawlJob{url: normalized, depth: res.job.depth + 1}:
				default:
					// Frontier full: drop rather than deadlock the coordinator.
					pendingJobs.Done()
				}
			}
		}

		pendingJobs.Done()
	}

	close(jobs)
	if waitErr := g.Wait(); waitErr != nil && ctx.Err() == nil {
		return found, jsBodies, fmt.Errorf("wait for crawl workers: %w", waitErr)
	}
	return found, jsBodies, nil
}

// fetch retrieves one URL, harvesting JS bodies and extracting in-page links.
func (lc *LiveCrawler) fetch(ctx context.Context, job crawlJob) crawlResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.url, nil)
	if err != nil {
		return crawlResult{job: job, err: err}
	}
	if lc.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", lc.cfg.UserAgent)
	}

	resp, err := lc.client.Do(req)
	if err != nil {
		return crawlResult{job: job, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return crawlResult{job: job, err: fmt.Errorf("fetch %s: status %d", job.url, resp.StatusCode)}
	}

	body := io.LimitReader(resp.Body, lc.cfg.MaxBodyBytes)
	contentType := resp.Header.Get("Content-Type")

	if isJavaScript(job.url, contentType) {
		data, readErr := io.ReadAll(body)
		if readErr != nil {
			return crawlResult{job: job, err: readErr}
		}
		return crawlResult{job: job, jsBody: string(data)}
	}

	if !strings.Contains(contentType, "text/html") {
		return crawlResult{job: job}
	}

	base, err := url.Parse(job.url)
	if err != nil {
		return crawlResult{job: job, err: err}
	}
	// Script sources come back as links too, so in-scope JS files get
	// crawled and their bodies feed the endpoint miner.
	return crawlResult{job: job, links: ExtractRefs(body, base)}
}

func (lc *LiveCrawler) progress(p Progress) {
	if lc.cfg.OnProgress != nil {
		lc.cfg.OnProgress(p)
	}
}

// isJavaScript reports whether a response should be treated as a JS body.
func isJavaScript(rawURL, contentType string) bool {
	if strings.Contains(contentType, "javascript") {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(parsed.Path, ".js")
}
