package inspect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mwestcott/sitehound/urlutil"
)

// CrawlerConfig configures the inspection crawler. Zero values select
// defaults.
type CrawlerConfig struct {
	MaxPages     int
	Concurrency  int
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Logger       zerolog.Logger
	OnPage       func(CrawledPage)
}

// Crawler walks a single origin breadth-first to gather pages for browser
// inspection. Unlike the discovery crawler it is bounded by a page budget
// rather than a depth, and it records every response status it sees.
type Crawler struct {
	cfg    CrawlerConfig
	client *http.Client
}

// NewCrawler creates an inspection Crawler.
func NewCrawler(cfg CrawlerConfig) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	return &Crawler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type fetchedPage struct {
	page  CrawledPage
	links []string
	err   error
}

// Crawl walks the site from baseURL and returns the recorded pages keyed by
// URL. The page budget caps how many URLs are fetched: a URL is only
// enqueued while budget remains, so recorded pages never exceed MaxPages.
func (c *Crawler) Crawl(ctx context.Context, baseURL string) (map[string]CrawledPage, error) {
	start, err := urlutil.Normalize(baseURL)
	if err != nil {
		return nil, fmt.Errorf("normalize crawl base: %w", err)
	}
	domain := urlutil.ExtractDomain(start)

	pages := make(map[string]CrawledPage, c.cfg.MaxPages)
	visited := make(map[string]bool, c.cfg.MaxPages)

	jobs := make(chan string, c.cfg.MaxPages)
	results := make(chan fetchedPage, c.cfg.Concurrency*2)

	var pendingJobs sync.WaitGroup
	var budget = c.cfg.MaxPages // decremented at enqueue time by the coordinator

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case u, ok := <-jobs:
					if !ok {
						return nil
					}
					results <- c.fetch(gctx, u)
				case <-gctx.Done():
					for {
						select {
						case u, ok := <-jobs:
							if !ok {
								return nil
							}
							results <- fetchedPage{page: CrawledPage{URL: u}, err: gctx.Err()}
						default:
							return nil
						}
					}
				}
			}
		})
	}

	visited[start] = true
	budget--
	pendingJobs.Add(1)
	jobs <- start

	g.Go(func() error {
		pendingJobs.Wait()
		close(results)
		return nil
	})

	for res := range results {
		if res.err != nil {
			c.cfg.Logger.Debug().Err(res.err).Str("url", res.page.URL).Msg("inspection fetch failed")
		} else {
			pages[res.page.URL] = res.page
			if c.cfg.OnPage != nil {
				c.cfg.OnPage(res.page)
			}
		}

		if res.err == nil && ctx.Err() == nil {
			for _, link := range res.links {
				if budget <= 0 {
					break
				}
				normalized, normErr := urlutil.Normalize(link)
				if normErr != nil || !urlutil.IsInternal(normalized, domain) {
					continue
				}
				if visited[normalized] {
					continue
				}
				visited[normalized] = true
				budget--
				pendingJobs.Add(1)
				jobs <- normalized
			}
		}

		pendingJobs.Done()
	}

	close(jobs)
	if waitErr := g.Wait(); waitErr != nil && ctx.Err() == nil {
		return pages, fmt.Errorf("wait for inspection workers: %w", waitErr)
	}
	return pages, nil
}

// fetch records one page. HTML bodies are retained only for 200 responses.
func (c *Crawler) fetch(ctx context.Context, u string) fetchedPage {
	page := CrawledPage{URL: u}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fetchedPage{page: page, err: err}
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fetchedPage{page: page, err: err}
	}
	defer resp.Body.Close()

	page.Status = resp.StatusCode
	page.ContentType = resp.Header.Get("Content-Type")

	isHTML := strings.Contains(page.ContentType, "text/html")
	if resp.StatusCode != http.StatusOK || !isHTML {
		return fetchedPage{page: page}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return fetchedPage{page: page, err: err}
	}
	page.HTML = string(body)

	base, err := url.Parse(u)
	if err != nil {
		return fetchedPage{page: page}
	}
	return fetchedPage{page: page, links: extractLinks(page.HTML, base)}
}

// extractLinks pulls candidate URLs from a, link, script, and form
// elements, resolved against the page URL with fragments stripped.
func extractLinks(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		refURL, err := url.Parse(ref)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(refURL)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		u := resolved.String()
		if !seen[u] {
			seen[u] = true
			links = append(links, u)
		}
	}

	doc.Find("a[href], link[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			add(href)
		}
	})
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			add(src)
		}
	})
	doc.Find("form[action]").Each(func(_ int, sel *goquery.Selection) {
		if action, ok := sel.Attr("action"); ok {
			add(action)
		}
	})
	return links
}
