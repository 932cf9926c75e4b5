package discover_test

import (
	"fmt"
	"testing"

	"github.com/mwestcott/sitehound/discover"
)

func TestVisitedSet(t *testing.T) {
	set, err := discover.NewVisitedSet(1000)
	if err != nil {
		t.Fatalf("NewVisitedSet() error: %v", err)
	}
	defer set.Close()

	if !set.VisitOnce("https://example.com/a") {
		t.Error("first VisitOnce() = false, want true")
	}
	if set.VisitOnce("https://example.com/a") {
		t.Error("second VisitOnce() = true, want false")
	}
	if !set.Contains("https://example.com/a") {
		t.Error("Contains() = false for visited URL")
	}
	if set.Contains("https://example.com/never") {
		t.Error("Contains() = true for unvisited URL")
	}
}

func TestVisitedSetManyEntries(t *testing.T) {
	set, err := discover.NewVisitedSet(10000)
	if err != nil {
		t.Fatalf("NewVisitedSet() error: %v", err)
	}
	defer set.Close()

	// Push past the periodic flush threshold.
	for i := 0; i < 2500; i++ {
		url := fmt.Sprintf("https://example.com/page/%d", i)
		if !set.VisitOnce(url) {
			t.Fatalf("VisitOnce(%q) = false on first visit", url)
		}
	}
	for i := 0; i < 2500; i++ {
		url := fmt.Sprintf("https://example.com/page/%d", i)
		if !set.Contains(url) {
			t.Fatalf("Contains(%q) = false after visit", url)
		}
	}
}

func TestVisitedSetClose(t *testing.T) {
	set, err := discover.NewVisitedSet(100)
	if err != nil {
		t.Fatalf("NewVisitedSet() error: %v", err)
	}
	set.VisitOnce("https://example.com/")
	if err := set.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
