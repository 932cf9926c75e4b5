package inspect

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// PressureLevel indicates memory pressure severity.
type PressureLevel int

const (
	// PressureNormal indicates memory usage is within normal bounds.
	PressureNormal PressureLevel = iota
	// PressureWarning indicates memory usage is elevated (75-90% of limit).
	PressureWarning
	// PressureCritical indicates memory usage is critical (>90% of limit).
	PressureCritical
)

// MemoryWatcher tracks heap pressure so the orchestrator can pause new
// browser pages before the process hits its soft memory limit. Browser
// captures hold full HTML snapshots and accessibility trees, which makes
// inspection the memory-heavy stage.
type MemoryWatcher struct {
	mu         sync.RWMutex
	limitBytes int64
	callback   func(level PressureLevel)
	lastLevel  PressureLevel
}

// NewMemoryWatcher creates a watcher with the given soft limit in MB and
// installs it via runtime/debug.SetMemoryLimit.
func NewMemoryWatcher(limitMB int64) *MemoryWatcher {
	limitBytes := limitMB * 1024 * 1024
	debug.SetMemoryLimit(limitBytes)
	return &MemoryWatcher{
		limitBytes: limitBytes,
		lastLevel:  PressureNormal,
	}
}

// OnLevelChange registers a callback fired whenever the pressure level
// transitions.
func (m *MemoryWatcher) OnLevelChange(cb func(level PressureLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// Check returns current heap usage as a percentage of the limit and the
// resulting pressure level, firing the transition callback when the level
// changed since the last check.
func (m *MemoryWatcher) Check() (usedPercent float64, level PressureLevel) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	if m.limitBytes <= 0 {
		return 0, PressureNormal
	}
	usedPercent = float64(stats.HeapAlloc) / float64(m.limitBytes) * 100

	switch {
	case usedPercent >= 90:
		level = PressureCritical
	case usedPercent >= 75:
		level = PressureWarning
	default:
		level = PressureNormal
	}

	m.mu.RLock()
	lastLevel := m.lastLevel
	callback := m.callback
	m.mu.RUnlock()

	if level != lastLevel {
		m.mu.Lock()
		m.lastLevel = level
		m.mu.Unlock()
		if callback != nil {
			callback(level)
		}
	}
	return usedPercent, level
}

// Backoff returns how long the caller should pause before scheduling more
// browser work at the given pressure level.
func (m *MemoryWatcher) Backoff(level PressureLevel) time.Duration {
	switch level {
	case PressureCritical:
		return 2 * time.Second
	case PressureWarning:
		return 500 * time.Millisecond
	default:
		return 0
	}
}
