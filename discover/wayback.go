package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultArchiveEndpoint is the Wayback Machine CDX index.
const DefaultArchiveEndpoint = "https://web.archive.org/cdx/search/cdx"

// ArchiveClient queries a historical-archive CDX index for URLs once served
// under a domain.
type ArchiveClient struct {
	endpoint  string
	client    *http.Client
	limit     int
	userAgent string
	logger    zerolog.Logger
}

// NewArchiveClient creates an ArchiveClient. Empty endpoint selects the
// Wayback Machine; limit <= 0 selects 10000.
func NewArchiveClient(endpoint string, timeout time.Duration, limit int, userAgent string, logger zerolog.Logger) *ArchiveClient {
	if endpoint == "" {
		endpoint = DefaultArchiveEndpoint
	}
	if limit <= 0 {
		limit = 10000
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ArchiveClient{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		limit:     limit,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Search queries the archive index for historical URLs under the domain.
// Timeouts, non-2xx responses, and parse failures yield an empty set; the
// technique never fails the scan.
func (a *ArchiveClient) Search(ctx context.Context, domain string) []string {
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimRight(domain, "/")

	params := url.Values{
		"url":       {domain + "/*"},
		"matchType": {"domain"},
		"output":    {"json"},
		"collapse":  {"statuscode"},
		"limit":     {strconv.Itoa(a.limit)},
		"from":      {"20100101"},
		"to":        {"20261231"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		a.logger.Debug().Err(err).Msg("archive request build failed")
		return nil
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn().Err(err).Str("domain", domain).Msg("archive query failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.Warn().Int("status", resp.StatusCode).Msg("archive query returned non-2xx")
		return nil
	}

	// The CDX response is tabular JSON: the first row is a header, the URL
	// sits at index 2 of every following row.
	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		a.logger.Debug().Err(err).Msg(fmt.Sprintf("archive response parse failed for %s", domain))
		return nil
	}

	seen := make(map[string]bool)
	var urls []string
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		u := row[2]
		if u == "" || !strings.HasPrefix(u, "http") {
			continue
		}
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	a.logger.Info().Int("count", len(urls)).Str("domain", domain).Msg("archive query complete")
	return urls
}
