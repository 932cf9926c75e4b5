package inspect_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mwestcott/sitehound/inspect"
)

func pageHTML(links ...string) string {
	body := "<html><body>"
	for _, link := range links {
		body += fmt.Sprintf(`<a href="%s">link</a>`, link)
	}
	return body + "</body></html>"
}

func TestInspectionCrawl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, pageHTML("/a", "/b", "/missing"))
		case "/a", "/b":
			fmt.Fprint(w, pageHTML())
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, pageHTML())
		}
	}))
	defer srv.Close()

	crawler := inspect.NewCrawler(inspect.CrawlerConfig{
		MaxPages:    10,
		Concurrency: 2,
		Timeout:     2 * time.Second,
		Logger:      zerolog.Nop(),
	})
	pages, err := crawler.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	if len(pages) != 4 {
		t.Fatalf("Crawl() recorded %d pages, want 4: %v", len(pages), pages)
	}

	root := pages[srv.URL+"/"]
	if root.Status != 200 || root.HTML == "" {
		t.Errorf("root page = %+v, want status 200 with HTML", root)
	}
	missing := pages[srv.URL+"/missing"]
	if missing.Status != 404 {
		t.Errorf("missing page status = %d, want 404", missing.Status)
	}
	// HTML is retained only for 200 responses.
	if missing.HTML != "" {
		t.Errorf("missing page retained HTML %q", missing.HTML)
	}
}

func TestInspectionCrawlMaxPages(t *testing.T) {
	var fetched atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched.Add(1)
		w.Header().Set("Content-Type", "text/html")
		// Every page links to three fresh ones; only the budget stops the walk.
		fmt.Fprint(w, pageHTML(
			r.URL.Path+"x", r.URL.Path+"y", r.URL.Path+"z",
		))
	}))
	defer srv.Close()

	crawler := inspect.NewCrawler(inspect.CrawlerConfig{
		MaxPages:    7,
		Concurrency: 1,
		Timeout:     2 * time.Second,
		Logger:      zerolog.Nop(),
	})
	pages, err := crawler.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	if len(pages) > 7 {
		t.Errorf("Crawl() recorded %d pages, want at most 7", len(pages))
	}
	if n := fetched.Load(); n > 7 {
		t.Errorf("Crawl() fetched %d URLs, want at most 7", n)
	}
}

func TestInspectionCrawlOnPageCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, pageHTML())
	}))
	defer srv.Close()

	var seen []string
	crawler := inspect.NewCrawler(inspect.CrawlerConfig{
		MaxPages:    5,
		Concurrency: 1,
		Timeout:     2 * time.Second,
		Logger:      zerolog.Nop(),
		OnPage:      func(p inspect.CrawledPage) { seen = append(seen, p.URL) },
	})
	if _, err := crawler.Crawl(context.Background(), srv.URL); err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if len(seen) != 1 || seen[0] != srv.URL+"/" {
		t.Errorf("OnPage saw %v, want [%s/]", seen, srv.URL)
	}
}
