package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mwestcott/sitehound/events"
	"github.com/mwestcott/sitehound/inspect"
	"github.com/mwestcott/sitehound/server"
)

// stubAnalyzer avoids launching a browser in tests.
type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, url string) (*inspect.RuntimeCapture, error) {
	return &inspect.RuntimeCapture{
		URL:              url,
		HTML:             `<html><body><header></header><footer></footer><nav></nav></body></html>`,
		NavigationStatus: "success",
	}, nil
}

func (stubAnalyzer) Close() error { return nil }

func newTestServer(t *testing.T) (*server.Server, *httptest.Server, *events.Bus) {
	t.Helper()
	bus := events.NewBus(0, zerolog.Nop())
	srv := server.New(server.Config{
		RequestTimeout: 2 * time.Second,
		Threads:        4,
		AnalyzerFactory: func(server.ScanConfig) (inspect.Analyzer, error) {
			return stubAnalyzer{}, nil
		},
		Logger: zerolog.Nop(),
	}, server.NewMemoryStore(), bus)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)
	return srv, api, bus
}

// newTargetSite serves a tiny crawlable site for scans to run against.
func newTargetSite(t *testing.T) *httptest.Server {
	t.Helper()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/about">about</a></body></html>`)
		case "/about":
			fmt.Fprint(w, `<html><body>about</body></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(site.Close)
	return site
}

func postScan(t *testing.T, api *httptest.Server, body map[string]any) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(api.URL+"/api/scan", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /api/scan: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/scan status = %d, want 202", resp.StatusCode)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func getScan(t *testing.T, api *httptest.Server, scanID string) map[string]any {
	t.Helper()
	resp, err := http.Get(api.URL + "/api/scan/" + scanID)
	if err != nil {
		t.Fatalf("GET /api/scan/%s: %v", scanID, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	return decoded
}

func waitForStatus(t *testing.T, api *httptest.Server, scanID, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		scan := getScan(t, api, scanID)
		if scan["status"] == want {
			return scan
		}
		if scan["status"] == "failed" && want != "failed" {
			t.Fatalf("scan failed: %v", scan["error"])
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("scan %s never reached status %q", scanID, want)
	return nil
}

func TestStartScanValidation(t *testing.T) {
	_, api, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"bad mode", `{"url":"https://example.com","mode":"bogus"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(api.URL+"/api/scan", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestCrawlScanLifecycle(t *testing.T) {
	_, api, _ := newTestServer(t)
	site := newTargetSite(t)

	started := postScan(t, api, map[string]any{"url": site.URL, "mode": "crawl", "depth": 2})
	scanID, _ := started["scan_id"].(string)
	if !regexp.MustCompile(`^scan_[0-9a-f]{8}$`).MatchString(scanID) {
		t.Fatalf("scan_id = %q, want scan_<8-hex>", scanID)
	}
	if started["status"] != "started" {
		t.Errorf("status = %v, want started", started["status"])
	}

	scan := waitForStatus(t, api, scanID, "completed")
	pages, _ := scan["hygiene_pages"].([]any)
	if len(pages) == 0 {
		t.Fatal("completed crawl scan has no hygiene pages")
	}
	if scan["enum_results"] == nil {
		t.Error("completed crawl scan missing enum_results")
	}

	// The latest completed scan backs /api/hygiene.
	resp, err := http.Get(api.URL + "/api/hygiene")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var hygienePages []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&hygienePages); err != nil {
		t.Fatalf("decode hygiene: %v", err)
	}
	if len(hygienePages) != len(pages) {
		t.Errorf("/api/hygiene returned %d pages, want %d", len(hygienePages), len(pages))
	}
}

func TestFullScanLifecycle(t *testing.T) {
	_, api, _ := newTestServer(t)
	site := newTargetSite(t)

	started := postScan(t, api, map[string]any{"url": site.URL, "mode": "full", "depth": 2, "max_pages": 5})
	scanID := started["scan_id"].(string)

	scan := waitForStatus(t, api, scanID, "completed")
	summary, _ := scan["summary"].(map[string]any)
	if summary == nil {
		t.Fatal("completed scan has no summary")
	}
	if summary["totalAnalyzed"].(float64) < 1 {
		t.Errorf("totalAnalyzed = %v, want >= 1", summary["totalAnalyzed"])
	}

	// Event history is exposed for polling clients.
	resp, err := http.Get(api.URL + "/api/scan/" + scanID + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var history struct {
		ScanID string         `json:"scan_id"`
		Events []events.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(history.Events) == 0 {
		t.Fatal("no events in history")
	}
	if history.Events[0].Type != events.ScanStarted {
		t.Errorf("first event = %q, want scan_started", history.Events[0].Type)
	}
	if last := history.Events[len(history.Events)-1]; last.Type != events.ScanCompleted {
		t.Errorf("last event = %q, want scan_completed", last.Type)
	}
}

func TestGetUnknownScan(t *testing.T) {
	_, api, _ := newTestServer(t)
	resp, err := http.Get(api.URL + "/api/scan/scan_deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelRunningScan(t *testing.T) {
	_, api, _ := newTestServer(t)

	// A slow site keeps the scan running long enough to cancel it.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>slow</body></html>`)
	}))
	t.Cleanup(slow.Close)

	started := postScan(t, api, map[string]any{"url": slow.URL, "mode": "crawl"})
	scanID := started["scan_id"].(string)

	ack := deleteScan(t, api, scanID)
	if ack["status"] != "cancellation_requested" {
		t.Errorf("ack = %v, want cancellation_requested", ack)
	}
}

func TestDeleteFinishedScan(t *testing.T) {
	_, api, bus := newTestServer(t)
	site := newTargetSite(t)

	started := postScan(t, api, map[string]any{"url": site.URL, "mode": "crawl"})
	scanID := started["scan_id"].(string)
	waitForStatus(t, api, scanID, "completed")

	ack := deleteScan(t, api, scanID)
	if ack["status"] != "deleted" {
		t.Errorf("ack = %v, want deleted", ack)
	}

	resp, err := http.Get(api.URL + "/api/scan/" + scanID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", resp.StatusCode)
	}
	if history := bus.History(scanID); len(history) != 0 {
		t.Errorf("history not cleared, %d events remain", len(history))
	}
}

func deleteScan(t *testing.T, api *httptest.Server, scanID string) map[string]any {
	t.Helper()
	req, _ := http.NewRequest(http.MethodDelete, api.URL+"/api/scan/"+scanID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", resp.StatusCode)
	}
	var ack map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatal(err)
	}
	return ack
}

func TestHealth(t *testing.T) {
	_, api, _ := newTestServer(t)
	resp, err := http.Get(api.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("health = %v, want ok", body)
	}
}

func TestScanEventStream(t *testing.T) {
	_, api, bus := newTestServer(t)
	site := newTargetSite(t)

	started := postScan(t, api, map[string]any{"url": site.URL, "mode": "crawl"})
	scanID := started["scan_id"].(string)
	waitForStatus(t, api, scanID, "completed")

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/ws/scan/" + scanID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// The completed scan's history is replayed on connect.
	want := len(bus.History(scanID))
	if want == 0 {
		t.Fatal("no history to replay")
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < want; i++ {
		var evt events.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if evt.ScanID != scanID {
			t.Errorf("frame %d scan id = %q, want %q", i, evt.ScanID, scanID)
		}
	}
}
