package discover

import (
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// VisitedSet is a disk-backed bloom filter tracking URLs the live crawler has
// already fetched. The memory-mapped backing file keeps the footprint
// constant regardless of crawl size. False positives are possible (a URL may
// be skipped that was never fetched) but false negatives are not, which is
// the safe direction for a visited set.
type VisitedSet struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mapped    mmap.MMap
	path      string
	pending   uint64
	syncEvery uint64
}

// NewVisitedSet creates a visited set sized for the expected number of URLs
// with a 0.1% false-positive rate, backed by a temp file.
func NewVisitedSet(expected uint) (*VisitedSet, error) {
	if expected == 0 {
		expected = 100000
	}
	filter := bloom.NewWithEstimates(expected, 0.001)

	file, err := os.CreateTemp(os.TempDir(), "sitehound-visited-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create visited backing file: %w", err)
	}
	path := file.Name()

	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(path)
	}

	size := int64(filter.Cap())
	if err := file.Truncate(size); err != nil {
		cleanup()
		return nil, fmt.Errorf("size visited backing file: %w", err)
	}

	mapped, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap visited backing file: %w", err)
	}

	data, err := filter.MarshalBinary()
	if err != nil {
		_ = mapped.Unmap()
		cleanup()
		return nil, fmt.Errorf("marshal visited filter: %w", err)
	}
	if len(data) <= len(mapped) {
		copy(mapped, data)
	}

	return &VisitedSet{
		filter:    filter,
		file:      file,
		mapped:    mapped,
		path:      path,
		syncEvery: 1000,
	}, nil
}

// VisitOnce atomically checks and marks a URL. It returns true when the URL
// was new, false when it was already visited.
func (v *VisitedSet) VisitOnce(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.filter.TestString(url) {
		return false
	}
	v.filter.AddString(url)
	v.pending++
	if v.pending >= v.syncEvery {
		_ = v.flushLocked() // periodic flush is best-effort
	}
	return true
}

// Contains reports whether a URL is (probably) already visited.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter.TestString(url)
}

// flushLocked persists the filter to the mapped file. Caller holds mu.
func (v *VisitedSet) flushLocked() error {
	data, err := v.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal visited filter: %w", err)
	}
	if len(data) <= len(v.mapped) {
		copy(v.mapped, data)
	}
	if err := v.mapped.Flush(); err != nil {
		return fmt.Errorf("flush visited mmap: %w", err)
	}
	v.pending = 0
	return nil
}

// Close releases the mapping and removes the backing file.
func (v *VisitedSet) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var firstErr error
	if err := v.mapped.Unmap(); err != nil {
		firstErr = fmt.Errorf("unmap visited set: %w", err)
	}
	if err := v.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close visited backing file: %w", err)
	}
	if err := os.Remove(v.path); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("remove visited backing file: %w", err)
	}
	return firstErr
}
