// Package server exposes the scan pipeline over HTTP: a JSON API for
// starting and polling scans plus a websocket stream of scan events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mwestcott/sitehound/discover"
	"github.com/mwestcott/sitehound/events"
	"github.com/mwestcott/sitehound/hygiene"
	"github.com/mwestcott/sitehound/inspect"
	"github.com/mwestcott/sitehound/urlutil"
)

// AnalyzerFactory creates the browser analyzer for one scan. Injecting the
// factory keeps browser startup out of tests.
type AnalyzerFactory func(cfg ScanConfig) (inspect.Analyzer, error)

// Config configures the Server. Zero values select defaults.
type Config struct {
	DefaultDepth    int
	DefaultMaxPages int
	RequestTimeout  time.Duration
	Threads         int
	UserAgent       string
	Headless        bool
	AnalyzerFactory AnalyzerFactory
	Logger          zerolog.Logger
}

// Server owns the HTTP surface, the scan store, and the event bus.
type Server struct {
	cfg    Config
	store  ScanStore
	bus    *events.Bus
	router chi.Router
	log    zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a Server wired to the given store and bus.
func New(cfg Config, store ScanStore, bus *events.Bus) *Server {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = 3
	}
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = 50
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 50
	}
	if cfg.AnalyzerFactory == nil {
		cfg.AnalyzerFactory = func(sc ScanConfig) (inspect.Analyzer, error) {
			return inspect.NewChromeAnalyzer(inspect.BrowserConfig{
				Headless:    cfg.Headless,
				ValidateSSL: sc.ValidateSSL,
				Logger:      cfg.Logger,
			})
		}
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		log:     cfg.Logger,
		cancels: make(map[string]context.CancelFunc),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.handleStartScan)
		r.Get("/scan/{scanID}", s.handleGetScan)
		r.Delete("/scan/{scanID}", s.handleCancelScan)
		r.Get("/scan/{scanID}/events", s.handleScanEvents)
		r.Get("/hygiene", s.handleHygiene)
		r.Get("/health", s.handleHealth)
	})
	r.Get("/ws/scan/{scanID}", s.handleScanStream)

	s.router = r
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server on the given address until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

type startScanRequest struct {
	URL         string `json:"url"`
	Depth       int    `json:"depth"`
	Mode        string `json:"mode"`
	MaxPages    int    `json:"max_pages"`
	Wayback     bool   `json:"wayback"`
	Bruteforce  bool   `json:"bruteforce"`
	ValidateSSL bool   `json:"validate_ssl"`
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if _, err := urlutil.Normalize(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid url: %v", err))
		return
	}

	switch req.Mode {
	case "", "full", "crawl", "qa":
	default:
		writeError(w, http.StatusBadRequest, "mode must be one of full, crawl, qa")
		return
	}
	if req.Mode == "" {
		req.Mode = "full"
	}
	if req.Depth <= 0 {
		req.Depth = s.cfg.DefaultDepth
	}
	if req.MaxPages <= 0 {
		req.MaxPages = s.cfg.DefaultMaxPages
	}

	scanID := newScanID()
	cfg := ScanConfig{
		URL:         req.URL,
		Depth:       req.Depth,
		Mode:        req.Mode,
		MaxPages:    req.MaxPages,
		Wayback:     req.Wayback,
		Bruteforce:  req.Bruteforce,
		ValidateSSL: req.ValidateSSL,
	}
	scan := &Scan{
		ID:        scanID,
		Status:    StatusRunning,
		URL:       req.URL,
		Config:    cfg,
		StartedAt: time.Now().UTC(),
	}
	s.store.Put(scan)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[scanID] = cancel
	s.mu.Unlock()

	go s.runScan(ctx, scanID, cfg)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "started",
		"scan_id": scanID,
		"url":     req.URL,
		"config":  cfg,
		"message": "scan started; poll /api/scan/" + scanID + " or stream /ws/scan/" + scanID,
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.store.Get(chi.URLParam(r, "scanID"))
	if !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleCancelScan tears a running scan down best-effort by canceling its
// context; in-flight pages finish as failures. A finished scan is removed
// from the store along with its event history.
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	if _, ok := s.store.Get(scanID); !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}

	s.mu.Lock()
	cancel, running := s.cancels[scanID]
	s.mu.Unlock()
	if running {
		cancel()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "cancellation_requested",
			"scan_id": scanID,
		})
		return
	}

	s.store.Delete(scanID)
	s.bus.ClearHistory(scanID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "deleted",
		"scan_id": scanID,
	})
}

func (s *Server) handleScanEvents(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	if _, ok := s.store.Get(scanID); !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id": scanID,
		"events":  s.bus.History(scanID),
	})
}

func (s *Server) handleHygiene(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.store.LatestCompleted()
	if !ok || scan.HygienePages == nil {
		writeJSON(w, http.StatusOK, []hygiene.Page{})
		return
	}
	writeJSON(w, http.StatusOK, scan.HygienePages)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runScan executes one scan to completion. Panics surface as scan_failed
// events and a failed scan status rather than crashing the server.
func (s *Server) runScan(ctx context.Context, scanID string, cfg ScanConfig) {
	defer func() {
		s.mu.Lock()
		delete(s.cancels, scanID)
		s.mu.Unlock()

		if r := recover(); r != nil {
			errText := fmt.Sprintf("panic: %v", r)
			s.log.Error().Str("scan_id", scanID).Interface("panic", r).Msg("scan panicked")
			s.failScan(scanID, errText)
		}
	}()

	log := s.log.With().Str("scan_id", scanID).Logger()
	s.setProgress(scanID, 10)

	s.bus.Emit(events.ScanStarted, scanID, map[string]any{
		"url":  cfg.URL,
		"mode": cfg.Mode,
	})

	var enumResult *enumOutcome
	if cfg.Mode == "full" || cfg.Mode == "crawl" {
		result, err := s.runEnumeration(ctx, scanID, cfg, log)
		if err != nil {
			s.failScan(scanID, err.Error())
			return
		}
		enumResult = result
		s.setProgress(scanID, 40)
	}

	if cfg.Mode == "crawl" {
		s.completeCrawlScan(scanID, enumResult)
		return
	}

	if err := s.runInspection(ctx, scanID, cfg, log); err != nil {
		s.failScan(scanID, err.Error())
		return
	}
	s.setProgress(scanID, 100)
}

type enumOutcome struct {
	pages []hygiene.Page
}

func (s *Server) runEnumeration(ctx context.Context, scanID string, cfg ScanConfig, log zerolog.Logger) (*enumOutcome, error) {
	techniques := []discover.Technique{
		discover.TechniqueLive, discover.TechniqueJS,
		discover.TechniqueRobots, discover.TechniqueSitemap,
	}
	if cfg.Wayback {
		techniques = append(techniques, discover.TechniqueWayback)
	}
	if cfg.Bruteforce {
		techniques = append(techniques, discover.TechniqueBruteforce)
	}

	enum, err := discover.NewEnumerator(discover.Config{
		Domain:     cfg.URL,
		Depth:      cfg.Depth,
		Timeout:    s.cfg.RequestTimeout,
		Threads:    s.cfg.Threads,
		UserAgent:  s.cfg.UserAgent,
		Techniques: techniques,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("start enumeration: %w", err)
	}

	result := enum.Run(ctx)
	for _, u := range result.URLs {
		s.bus.Emit(events.URLDiscovered, scanID, map[string]any{
			"url":     u,
			"sources": result.Details[u].Sources,
		})
	}

	s.store.Update(scanID, func(scan *Scan) {
		scan.EnumResult = result
	})
	return &enumOutcome{pages: hygiene.FromEnum(result)}, nil
}

// completeCrawlScan finishes a crawl-only scan with indicative hygiene
// pages derived from the enumeration.
func (s *Server) completeCrawlScan(scanID string, outcome *enumOutcome) {
	pages := outcome.pages
	summary := hygiene.Summary{
		TotalDiscovered: len(pages),
		AverageScore:    averagePageScore(pages),
	}
	for _, p := range pages {
		summary.TotalIssues += p.TotalIssueCount
		summary.CriticalIssues += p.CriticalIssueCount
	}

	s.store.Update(scanID, func(scan *Scan) {
		scan.Status = StatusCompleted
		scan.Progress = 100
		scan.HygienePages = pages
		scan.Summary = &summary
		scan.WorstPages = hygiene.WorstPages(pages, 5)
	})
	s.bus.Emit(events.ScanCompleted, scanID, map[string]any{
		"mode":        "crawl",
		"total_pages": len(pages),
	})
}

func (s *Server) runInspection(ctx context.Context, scanID string, cfg ScanConfig, log zerolog.Logger) error {
	analyzer, err := s.cfg.AnalyzerFactory(cfg)
	if err != nil {
		return fmt.Errorf("start analyzer: %w", err)
	}
	defer analyzer.Close()

	orch := inspect.NewOrchestrator(inspect.OrchestratorConfig{
		MaxPages:       cfg.MaxPages,
		RequestTimeout: s.cfg.RequestTimeout,
		UserAgent:      s.cfg.UserAgent,
		Logger:         log,
	}, s.bus, analyzer)

	scanReport, err := orch.Run(ctx, scanID, cfg.URL)
	if err != nil {
		return err
	}

	pages := hygiene.Pages(scanReport)
	summary := hygiene.Summarize(scanReport)
	s.store.Update(scanID, func(scan *Scan) {
		scan.Status = StatusCompleted
		scan.HygienePages = pages
		scan.Summary = &summary
		scan.WorstPages = hygiene.WorstPages(pages, 5)
	})
	s.bus.Emit(events.ScanCompleted, scanID, map[string]any{
		"total_pages":  len(scanReport.Pages),
		"global_score": scanReport.GlobalHygieneScore,
	})
	return nil
}

func (s *Server) setProgress(scanID string, progress int) {
	s.store.Update(scanID, func(scan *Scan) {
		scan.Progress = progress
	})
}

func (s *Server) failScan(scanID, errText string) {
	s.store.Update(scanID, func(scan *Scan) {
		scan.Status = StatusFailed
		scan.Error = errText
	})
	s.bus.Emit(events.ScanFailed, scanID, map[string]any{"error": errText})
}

func averagePageScore(pages []hygiene.Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += p.Score
	}
	return sum / float64(len(pages))
}

// newScanID generates a short scan token like "scan_9f2a41bc".
func newScanID() string {
	id := uuid.New()
	return fmt.Sprintf("scan_%x", id[:4])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
