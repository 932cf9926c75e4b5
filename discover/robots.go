package discover

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
)

// RobotsSource mines robots.txt for path directives and sitemap declarations.
type RobotsSource struct {
	client *http.Client
	logger zerolog.Logger
}

// NewRobotsSource creates a RobotsSource with the given request timeout.
func NewRobotsSource(timeout time.Duration, logger zerolog.Logger) *RobotsSource {
	return &RobotsSource{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Mine fetches <origin>/robots.txt and returns the paths named by Allow: and
// Disallow: directives (skipping empty paths and "/"), plus any sitemap URLs
// declared by Sitemap: lines. Fetch and parse failures yield empty results.
func (r *RobotsSource) Mine(ctx context.Context, origin string) (paths []string, sitemaps []string) {
	robotsURL := strings.TrimRight(origin, "/") + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt fetch failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		r.logger.Debug().Err(err).Msg("robots.txt read failed")
		return nil, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var directive string
		switch {
		case strings.HasPrefix(line, "Allow:"):
			directive = strings.TrimPrefix(line, "Allow:")
		case strings.HasPrefix(line, "Disallow:"):
			directive = strings.TrimPrefix(line, "Disallow:")
		default:
			continue
		}
		path := strings.TrimSpace(directive)
		if path == "" || path == "/" {
			continue
		}
		paths = append(paths, path)
	}

	// Sitemap: declarations come from the parsed representation; the
	// directive-path mining above intentionally ignores them.
	if data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body); err == nil && data != nil {
		sitemaps = data.Sitemaps
	}

	return paths, sitemaps
}

// sitemapDoc covers both <urlset> and <sitemapindex> documents.
type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapSource fetches and parses sitemap XML documents, following one level
// of sitemap-index nesting.
type SitemapSource struct {
	client *http.Client
	logger zerolog.Logger
}

// NewSitemapSource creates a SitemapSource with the given request timeout.
func NewSitemapSource(timeout time.Duration, logger zerolog.Logger) *SitemapSource {
	return &SitemapSource{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// URLs fetches <origin>/sitemap.xml plus any extra sitemap documents (for
// example those declared in robots.txt) and returns every <loc> entry.
// Sitemap indexes are expanded one level deep. Best-effort: failures are
// logged and skipped.
func (s *SitemapSource) URLs(ctx context.Context, origin string, extra []string) []string {
	docs := append([]string{strings.TrimRight(origin, "/") + "/sitemap.xml"}, extra...)

	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, docURL := range urlDedupe(docs) {
		doc, err := s.fetch(ctx, docURL)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", docURL).Msg("sitemap fetch failed")
			continue
		}
		for _, entry := range doc.URLs {
			add(strings.TrimSpace(entry.Loc))
		}
		// Sitemap index: fetch each nested sitemap and emit its entries.
		for _, nested := range doc.Sitemaps {
			loc := strings.TrimSpace(nested.Loc)
			if loc == "" {
				continue
			}
			nestedDoc, err := s.fetch(ctx, loc)
			if err != nil {
				s.logger.Debug().Err(err).Str("url", loc).Msg("nested sitemap fetch failed")
				continue
			}
			for _, entry := range nestedDoc.URLs {
				add(strings.TrimSpace(entry.Loc))
			}
		}
	}

	return urls
}

func (s *SitemapSource) fetch(ctx context.Context, docURL string) (*sitemapDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap %s: status %d", docURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read sitemap %s: %w", docURL, err)
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", docURL, err)
	}
	return &doc, nil
}

func urlDedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0:0]
	for _, u := range urls {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// cachedRobots stores a parsed robots.txt with its fetch time.
type cachedRobots struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker answers robots.txt allow/deny queries for the live crawler's
// optional politeness mode, caching parsed rules per host. Errors fail open.
type RobotsChecker struct {
	client   *http.Client
	cache    sync.Map // host -> *cachedRobots
	cacheTTL time.Duration
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		client:   client,
		cacheTTL: time.Hour,
	}
}

// Allowed reports whether userAgent may fetch rawURL under the host's
// robots.txt. Network and parse failures allow the fetch.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	host := parsed.Host

	if cached, ok := r.cache.Load(host); ok {
		entry := cached.(*cachedRobots)
		if time.Since(entry.fetchedAt) < r.cacheTTL {
			if entry.data == nil {
				return true
			}
			return entry.data.TestAgent(parsed.Path, userAgent)
		}
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		r.storeNil(host)
		return true
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.storeNil(host)
		return true
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if readErr != nil {
		r.storeNil(host)
		return true
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		r.storeNil(host)
		return true
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil || data == nil {
		r.storeNil(host)
		return true
	}

	r.cache.Store(host, &cachedRobots{data: data, fetchedAt: time.Now()})
	return data.TestAgent(parsed.Path, userAgent)
}

func (r *RobotsChecker) storeNil(host string) {
	r.cache.Store(host, &cachedRobots{fetchedAt: time.Now()})
}
