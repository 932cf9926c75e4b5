package events_test

import (
	"regexp"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mwestcott/sitehound/events"
)

func newTestBus() *events.Bus {
	return events.NewBus(0, zerolog.Nop())
}

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := newTestBus()

	var got []events.Event
	bus.Subscribe(events.PageAnalyzed, func(e events.Event) {
		got = append(got, e)
	})

	bus.Emit(events.ScanStarted, "scan_1", nil)
	bus.Emit(events.PageAnalyzed, "scan_1", map[string]any{"url": "https://example.com/"})

	if len(got) != 1 {
		t.Fatalf("handler received %d events, want 1", len(got))
	}
	if got[0].Type != events.PageAnalyzed {
		t.Errorf("event type = %q, want %q", got[0].Type, events.PageAnalyzed)
	}
	if got[0].ScanID != "scan_1" {
		t.Errorf("scan id = %q, want scan_1", got[0].ScanID)
	}
	if got[0].Data["url"] != "https://example.com/" {
		t.Errorf("event data = %v", got[0].Data)
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := newTestBus()

	var count int
	bus.SubscribeAll(func(events.Event) { count++ })

	bus.Emit(events.ScanStarted, "scan_1", nil)
	bus.Emit(events.URLDiscovered, "scan_1", nil)
	bus.Emit(events.ScanCompleted, "scan_1", nil)

	if count != 3 {
		t.Errorf("catch-all handler received %d events, want 3", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := newTestBus()

	var count int
	unsub := bus.Subscribe(events.ScoreUpdated, func(events.Event) { count++ })

	bus.Emit(events.ScoreUpdated, "scan_1", nil)
	unsub()
	bus.Emit(events.ScoreUpdated, "scan_1", nil)

	if count != 1 {
		t.Errorf("handler received %d events after unsubscribe, want 1", count)
	}
}

func TestSubscribeScanSplitsSnapshotAndLive(t *testing.T) {
	bus := newTestBus()

	bus.Emit(events.ScanStarted, "scan_1", nil)
	bus.Emit(events.URLDiscovered, "scan_1", nil)
	bus.Emit(events.ScanStarted, "scan_2", nil)

	var live []events.Event
	snapshot, unsub := bus.SubscribeScan("scan_1", func(e events.Event) {
		live = append(live, e)
	})

	bus.Emit(events.PageAnalyzed, "scan_1", nil)
	bus.Emit(events.ScanCompleted, "scan_1", nil)

	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d events, want the 2 emitted before registration", len(snapshot))
	}
	if snapshot[0].Type != events.ScanStarted || snapshot[1].Type != events.URLDiscovered {
		t.Errorf("snapshot order wrong: %v", snapshot)
	}
	if len(live) != 2 {
		t.Fatalf("handler received %d events, want the 2 emitted after registration", len(live))
	}
	if live[0].Type != events.PageAnalyzed || live[1].Type != events.ScanCompleted {
		t.Errorf("live order wrong: %v", live)
	}
	// Snapshot plus live covers the scan with no event in both.
	if got := len(snapshot) + len(live); got != len(bus.History("scan_1")) {
		t.Errorf("snapshot+live = %d events, history has %d", got, len(bus.History("scan_1")))
	}

	unsub()
	bus.Emit(events.ScanFailed, "scan_1", nil)
	if len(live) != 2 {
		t.Errorf("handler received %d events after unsubscribe, want 2", len(live))
	}
}

func TestEmitStampsUTCTimestamp(t *testing.T) {
	bus := newTestBus()
	evt := bus.Emit(events.ScanStarted, "scan_1", nil)

	// ISO-8601 UTC with millisecond precision.
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
	if !pattern.MatchString(evt.Timestamp) {
		t.Errorf("timestamp %q does not match ISO-8601 UTC millisecond format", evt.Timestamp)
	}
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := newTestBus()

	var reached bool
	bus.Subscribe(events.ScanFailed, func(events.Event) { panic("boom") })
	bus.Subscribe(events.ScanFailed, func(events.Event) { reached = true })

	bus.Emit(events.ScanFailed, "scan_1", nil)

	if !reached {
		t.Error("second handler not reached after first panicked")
	}
}

func TestHistoryPerScan(t *testing.T) {
	bus := newTestBus()

	bus.Emit(events.ScanStarted, "scan_1", nil)
	bus.Emit(events.PageAnalyzed, "scan_1", nil)
	bus.Emit(events.ScanStarted, "scan_2", nil)

	if got := len(bus.History("scan_1")); got != 2 {
		t.Errorf("History(scan_1) returned %d events, want 2", got)
	}
	if got := len(bus.History("scan_2")); got != 1 {
		t.Errorf("History(scan_2) returned %d events, want 1", got)
	}

	history := bus.History("scan_1")
	if history[0].Type != events.ScanStarted || history[1].Type != events.PageAnalyzed {
		t.Errorf("History(scan_1) order wrong: %v", history)
	}

	bus.ClearHistory("scan_1")
	if got := len(bus.History("scan_1")); got != 0 {
		t.Errorf("History(scan_1) after clear returned %d events, want 0", got)
	}
	if got := len(bus.History("scan_2")); got != 1 {
		t.Errorf("ClearHistory(scan_1) touched scan_2 history (%d events)", got)
	}
}

func TestHistoryBounded(t *testing.T) {
	bus := events.NewBus(5, zerolog.Nop())
	for i := 0; i < 12; i++ {
		bus.Emit(events.URLDiscovered, "scan_1", map[string]any{"n": i})
	}
	history := bus.History("scan_1")
	if len(history) != 5 {
		t.Fatalf("History() returned %d events, want 5", len(history))
	}
	if history[len(history)-1].Data["n"] != 11 {
		t.Errorf("newest retained event = %v, want n=11", history[len(history)-1].Data)
	}
}
