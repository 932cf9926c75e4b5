package inspect_test

import (
	"testing"
	"time"

	"github.com/mwestcott/sitehound/inspect"
)

func TestMemoryWatcherCheck(t *testing.T) {
	// A generous limit keeps the test process in the normal band.
	watcher := inspect.NewMemoryWatcher(16384)
	used, level := watcher.Check()
	if level != inspect.PressureNormal {
		t.Errorf("level = %v, want normal at %.1f%% usage", level, used)
	}
	if used <= 0 {
		t.Errorf("used percent = %v, want > 0", used)
	}
}

func TestMemoryWatcherBackoff(t *testing.T) {
	watcher := inspect.NewMemoryWatcher(16384)
	if d := watcher.Backoff(inspect.PressureNormal); d != 0 {
		t.Errorf("normal backoff = %v, want 0", d)
	}
	if d := watcher.Backoff(inspect.PressureWarning); d <= 0 {
		t.Error("warning backoff should be positive")
	}
	if c, w := watcher.Backoff(inspect.PressureCritical), watcher.Backoff(inspect.PressureWarning); c <= w {
		t.Errorf("critical backoff %v not above warning %v", c, w)
	}
	if d := watcher.Backoff(inspect.PressureCritical); d > 10*time.Second {
		t.Errorf("critical backoff %v unreasonably long", d)
	}
}
