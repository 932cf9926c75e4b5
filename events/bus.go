// Package events provides the in-process publish/subscribe bus that carries
// scan lifecycle events to API pollers, websocket streams, and tests.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted over a scan's lifetime.
const (
	ScanStarted        = "scan_started"
	URLDiscovered      = "url_discovered"
	URLValidated       = "url_validated"
	PageTestingStarted = "page_testing_started"
	IssuesDetected     = "issues_detected"
	ScoreUpdated       = "score_updated"
	PageAnalyzed       = "page_analyzed"
	ScanCompleted      = "scan_completed"
	ScanFailed         = "scan_failed"
)

// timestampLayout renders UTC instants with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Event is one timestamped occurrence on the bus.
type Event struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	ScanID    string         `json:"scan_id"`
	Data      map[string]any `json:"data"`
}

// Handler receives events. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(Event)

type subscriber struct {
	id      int
	handler Handler
}

// Bus is a synchronous pub/sub event bus with per-scan bounded history.
// The zero value is not usable; create instances with NewBus.
type Bus struct {
	mu         sync.Mutex
	nextID     int
	byType     map[string][]subscriber
	all        []subscriber
	history    map[string][]Event
	maxHistory int
	logger     zerolog.Logger
	clock      func() time.Time
}

// NewBus creates a Bus retaining up to maxHistory events per scan
// (0 selects 1000).
func NewBus(maxHistory int, logger zerolog.Logger) *Bus {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &Bus{
		byType:     make(map[string][]subscriber),
		history:    make(map[string][]Event),
		maxHistory: maxHistory,
		logger:     logger,
		clock:      time.Now,
	}
}

// Subscribe registers a handler for one event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(eventType string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[eventType] = append(b.byType[eventType], subscriber{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[eventType] = removeSubscriber(b.byType[eventType], id)
	}
}

// SubscribeAll registers a handler for every event type and returns an
// unsubscribe function.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSubscriber(b.all, id)
	}
}

// SubscribeScan registers a catch-all handler and returns the scan's
// retained history as of registration. The snapshot and the registration
// happen under one lock, so a consumer that replays the snapshot and then
// drains the handler sees every event of the scan exactly once.
func (b *Bus) SubscribeScan(scanID string, h Handler) ([]Event, func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscriber{id: id, handler: h})
	snapshot := make([]Event, len(b.history[scanID]))
	copy(snapshot, b.history[scanID])
	b.mu.Unlock()
	return snapshot, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSubscriber(b.all, id)
	}
}

// Emit stamps the event with the current UTC time, appends it to the scan's
// history, and delivers it to type and catch-all subscribers in
// registration order. A panicking handler is logged and skipped; it never
// takes down the scan.
func (b *Bus) Emit(eventType, scanID string, data map[string]any) Event {
	b.mu.Lock()
	evt := Event{
		Type:      eventType,
		Timestamp: b.clock().UTC().Format(timestampLayout),
		ScanID:    scanID,
		Data:      data,
	}
	scanHistory := append(b.history[scanID], evt)
	if len(scanHistory) > b.maxHistory {
		scanHistory = scanHistory[len(scanHistory)-b.maxHistory:]
	}
	b.history[scanID] = scanHistory

	handlers := make([]Handler, 0, len(b.byType[eventType])+len(b.all))
	for _, sub := range b.byType[eventType] {
		handlers = append(handlers, sub.handler)
	}
	for _, sub := range b.all {
		handlers = append(handlers, sub.handler)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.deliver(h, evt)
	}
	return evt
}

func (b *Bus) deliver(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", evt.Type).
				Msg("event handler panicked")
		}
	}()
	h(evt)
}

// History returns a copy of the scan's retained events in emission order.
func (b *Bus) History(scanID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history[scanID]))
	copy(out, b.history[scanID])
	return out
}

// ClearHistory drops the retained events of one scan.
func (b *Bus) ClearHistory(scanID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, scanID)
}

func removeSubscriber(subs []subscriber, id int) []subscriber {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
