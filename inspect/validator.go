package inspect

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ValidatorConfig configures the status validator. Zero values select
// defaults.
type ValidatorConfig struct {
	Concurrency int64
	Timeout     time.Duration
	UserAgent   string
	Logger      zerolog.Logger
	OnValidated func(url string, v Validation)
}

// Validator re-checks candidate URLs before browser work so the expensive
// page pool only sees URLs that answer 200.
type Validator struct {
	cfg    ValidatorConfig
	client *http.Client
	sem    *semaphore.Weighted
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Validator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sem:    semaphore.NewWeighted(cfg.Concurrency),
	}
}

// ValidateAll probes every URL with a bounded number of in-flight HEAD
// requests and returns verdicts keyed by URL. Probe failures yield
// {status 0, valid false}.
func (v *Validator) ValidateAll(ctx context.Context, urls []string) map[string]Validation {
	results := make(map[string]Validation, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, u := range urls {
		if err := v.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer v.sem.Release(1)

			verdict := v.validate(ctx, u)
			mu.Lock()
			results[u] = verdict
			mu.Unlock()
			if v.cfg.OnValidated != nil {
				v.cfg.OnValidated(u, verdict)
			}
		}(u)
	}
	wg.Wait()
	return results
}

func (v *Validator) validate(ctx context.Context, u string) Validation {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return Validation{}
	}
	if v.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", v.cfg.UserAgent)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.cfg.Logger.Debug().Err(err).Str("url", u).Msg("validation probe failed")
		return Validation{}
	}
	resp.Body.Close()
	return Validation{
		Status:      resp.StatusCode,
		Valid:       resp.StatusCode == http.StatusOK,
		ContentType: resp.Header.Get("Content-Type"),
	}
}

// FilterValid returns the sorted subset of URLs whose verdict is valid.
func FilterValid(results map[string]Validation) []string {
	var valid []string
	for u, verdict := range results {
		if verdict.Valid {
			valid = append(valid, u)
		}
	}
	sort.Strings(valid)
	return valid
}
