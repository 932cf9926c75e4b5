package server

import (
	"sync"
	"time"

	"github.com/mwestcott/sitehound/hygiene"
	"github.com/mwestcott/sitehound/report"
)

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
)

// ScanConfig is the client-supplied configuration of a scan.
type ScanConfig struct {
	URL         string `json:"url"`
	Depth       int    `json:"depth"`
	Mode        string `json:"mode"`
	MaxPages    int    `json:"max_pages"`
	Wayback     bool   `json:"wayback"`
	Bruteforce  bool   `json:"bruteforce"`
	ValidateSSL bool   `json:"validate_ssl"`
}

// Scan is one scan's full state as exposed by the API.
type Scan struct {
	ID           string             `json:"scan_id"`
	Status       ScanStatus         `json:"status"`
	URL          string             `json:"url"`
	Config       ScanConfig         `json:"config"`
	Progress     int                `json:"progress"`
	StartedAt    time.Time          `json:"started_at"`
	HygienePages []hygiene.Page     `json:"hygiene_pages,omitempty"`
	Summary      *hygiene.Summary   `json:"summary,omitempty"`
	WorstPages   []hygiene.Page     `json:"worst_pages,omitempty"`
	EnumResult   *report.EnumResult `json:"enum_results,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// ScanStore holds scans keyed by id. Implementations must be safe for
// concurrent use.
type ScanStore interface {
	Put(scan *Scan)
	Get(id string) (*Scan, bool)
	Update(id string, fn func(*Scan))
	LatestCompleted() (*Scan, bool)
	Delete(id string)
}

// MemoryStore is the in-process ScanStore for single-node deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[string]*Scan
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scans: make(map[string]*Scan)}
}

// Put stores a scan, replacing any existing scan with the same id.
func (s *MemoryStore) Put(scan *Scan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans[scan.ID] = scan
}

// Get returns a snapshot of the scan with the given id.
func (s *MemoryStore) Get(id string) (*Scan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scan, ok := s.scans[id]
	if !ok {
		return nil, false
	}
	snapshot := *scan
	return &snapshot, true
}

// Update applies fn to the stored scan under the store lock.
func (s *MemoryStore) Update(id string, fn func(*Scan)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scan, ok := s.scans[id]; ok {
		fn(scan)
	}
}

// LatestCompleted returns a snapshot of the most recently started scan that
// reached completed status.
func (s *MemoryStore) LatestCompleted() (*Scan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Scan
	for _, scan := range s.scans {
		if scan.Status != StatusCompleted {
			continue
		}
		if latest == nil || scan.StartedAt.After(latest.StartedAt) {
			latest = scan
		}
	}
	if latest == nil {
		return nil, false
	}
	snapshot := *latest
	return &snapshot, true
}

// Delete removes a scan.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scans, id)
}
