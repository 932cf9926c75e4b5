package discover

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mwestcott/sitehound/report"
)

// aliveStatuses are the response codes that count a candidate as alive:
// success codes plus every redirect that implies the path is routed.
var aliveStatuses = map[int]bool{
	http.StatusOK:                true,
	http.StatusCreated:           true,
	http.StatusAccepted:          true,
	http.StatusNoContent:         true,
	http.StatusPartialContent:    true,
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// IsAlive reports whether a probe status counts as alive.
func IsAlive(status int) bool {
	return aliveStatuses[status]
}

// ProbeResult records the liveness verdict for one candidate URL.
type ProbeResult struct {
	URL           string
	Status        int
	ContentLength int64
	Alive         bool
	Category      report.ErrorCategory
}

// Prober checks candidate liveness with bounded-concurrency HEAD requests.
type Prober struct {
	client    *http.Client
	workers   int
	limiter   *rate.Limiter
	retry     RetryPolicy
	userAgent string
	logger    zerolog.Logger
}

// ProberConfig configures a Prober. Zero values select defaults.
type ProberConfig struct {
	Timeout   time.Duration
	Workers   int
	RateLimit rate.Limit
	UserAgent string
	Logger    zerolog.Logger
}

// NewProber creates a Prober. The client does not follow redirects so that
// 3xx statuses survive as liveness evidence.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 50
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Prober{
		client:    client,
		workers:   cfg.Workers,
		limiter:   rate.NewLimiter(cfg.RateLimit, cfg.Workers),
		retry:     DefaultRetryPolicy(),
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
	}
}

// ProbeAll checks every candidate and returns results keyed by URL. The
// onResult callback, when non-nil, fires once per completed probe.
func (p *Prober) ProbeAll(ctx context.Context, urls []string, onResult func(ProbeResult)) map[string]ProbeResult {
	results := make(map[string]ProbeResult, len(urls))
	var mu sync.Mutex

	jobs := make(chan string)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for u := range jobs {
				res := p.probe(gctx, u)
				mu.Lock()
				results[u] = res
				mu.Unlock()
				if onResult != nil {
					onResult(res)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	_ = g.Wait()
	return results
}

// probe issues a HEAD request with retries for transient failures.
func (p *Prober) probe(ctx context.Context, u string) ProbeResult {
	var (
		status int
		length int64
		err    error
	)
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		if waitErr := p.limiter.Wait(ctx); waitErr != nil {
			err = waitErr
			break
		}
		status, length, err = p.head(ctx, u)
		if !shouldRetry(err, status) {
			break
		}
		if attempt < p.retry.MaxAttempts {
			if sleepErr := p.retry.sleep(ctx, attempt); sleepErr != nil {
				break
			}
		}
	}

	res := ProbeResult{
		URL:           u,
		Status:        status,
		ContentLength: length,
		Alive:         err == nil && IsAlive(status),
	}
	if !res.Alive {
		res.Category = report.ClassifyError(err, status)
		p.logger.Debug().Str("url", u).Int("status", status).
			Str("category", string(res.Category)).Msg("probe dead")
	}
	return res
}

func (p *Prober) head(ctx context.Context, u string) (int, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return 0, 0, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	return resp.StatusCode, length, nil
}
