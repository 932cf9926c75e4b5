package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Analyzer drives one page through a browser and returns its runtime
// capture. Analyze must return a populated capture even when navigation
// fails. Close releases the underlying browser session.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (*RuntimeCapture, error)
	Close() error
}

// BrowserConfig configures the Chrome analyzer.
type BrowserConfig struct {
	Headless    bool
	Timeout     time.Duration
	ValidateSSL bool
	Logger      zerolog.Logger
}

// ChromeAnalyzer implements Analyzer on a headless Chrome session. The
// session spans the inspection stage; each Analyze call opens a fresh tab
// and closes it on every exit path.
type ChromeAnalyzer struct {
	cfg           BrowserConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeAnalyzer launches the browser session.
func NewChromeAnalyzer(cfg BrowserConfig) (*ChromeAnalyzer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !cfg.ValidateSSL {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Starting the browser eagerly surfaces launch failures here instead of
	// on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &ChromeAnalyzer{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close tears down the browser session.
func (a *ChromeAnalyzer) Close() error {
	a.browserCancel()
	a.allocCancel()
	return nil
}

// Analyze navigates one URL in a fresh tab, hooks console and network
// events before navigation, and captures HTML, performance entries, DOM
// metrics, and the accessibility tree afterward. A navigation failure is
// recorded in NavigationStatus; capture continues with whatever the page
// reached.
func (a *ChromeAnalyzer) Analyze(ctx context.Context, url string) (*RuntimeCapture, error) {
	start := time.Now()
	capture := &RuntimeCapture{URL: url}

	tabCtx, tabCancel := chromedp.NewContext(a.browserCtx)
	defer tabCancel()

	var mu sync.Mutex
	requests := make(map[network.RequestID]*network.Request)

	idle := make(chan struct{})
	var idleOnce sync.Once

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == "networkIdle" {
				idleOnce.Do(func() { close(idle) })
			}
		case *cdpruntime.EventConsoleAPICalled:
			entry := ConsoleLog{Type: string(e.Type), Text: consoleText(e.Args)}
			if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
				frame := e.StackTrace.CallFrames[0]
				entry.Location = fmt.Sprintf("%s:%d", frame.URL, frame.LineNumber)
			}
			mu.Lock()
			capture.ConsoleLogs = append(capture.ConsoleLogs, entry)
			mu.Unlock()
		case *cdpruntime.EventExceptionThrown:
			entry := ConsoleLog{Type: "error", Text: exceptionText(e.ExceptionDetails)}
			mu.Lock()
			capture.ConsoleLogs = append(capture.ConsoleLogs, entry)
			mu.Unlock()
		case *network.EventRequestWillBeSent:
			mu.Lock()
			requests[e.RequestID] = e.Request
			mu.Unlock()
		case *network.EventLoadingFailed:
			mu.Lock()
			failure := NetworkFailure{
				Failure:      e.ErrorText,
				ResourceType: string(e.Type),
			}
			if req, ok := requests[e.RequestID]; ok {
				failure.URL = req.URL
				failure.Method = req.Method
			}
			capture.NetworkFailures = append(capture.NetworkFailures, failure)
			mu.Unlock()
		}
	})

	navCtx, navCancel := context.WithTimeout(tabCtx, a.cfg.Timeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		page.Enable(),
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitNetworkIdle(idle, networkIdleSettle),
	)
	if err != nil {
		capture.NavigationStatus = fmt.Sprintf("failed: %v", err)
		a.cfg.Logger.Warn().Err(err).Str("url", url).Msg("navigation failed")
	} else {
		capture.NavigationStatus = "success"
	}

	// Capture whatever the page reached, navigation failure included. Each
	// step gets its own deadline and failures leave the field empty.
	captureCtx, captureCancel := context.WithTimeout(tabCtx, a.cfg.Timeout)
	defer captureCancel()

	var html string
	if err := chromedp.Run(captureCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err == nil {
		capture.HTML = html
	}

	var perf Performance
	if err := chromedp.Run(captureCtx, chromedp.Evaluate(performanceJS, &perf)); err == nil {
		capture.Performance = perf
	} else {
		a.cfg.Logger.Debug().Err(err).Str("url", url).Msg("performance capture failed")
	}

	var metrics DOMMetrics
	if err := chromedp.Run(captureCtx, chromedp.Evaluate(domMetricsJS, &metrics)); err == nil {
		capture.DOMMetrics = metrics
	} else {
		a.cfg.Logger.Debug().Err(err).Str("url", url).Msg("DOM metrics capture failed")
	}

	if tree, err := a.snapshotAXTree(captureCtx); err == nil {
		capture.AXTree = tree
	} else {
		a.cfg.Logger.Debug().Err(err).Str("url", url).Msg("accessibility snapshot failed")
	}

	capture.Elapsed = time.Since(start)
	return capture, nil
}

// networkIdleSettle caps how long a navigation waits for the networkIdle
// lifecycle event after the DOM is ready.
const networkIdleSettle = 3 * time.Second

// waitNetworkIdle blocks until the networkIdle lifecycle event or the settle
// cap. Pages that never go idle (polling, websockets) proceed after the cap
// instead of failing navigation.
func waitNetworkIdle(idle <-chan struct{}, settle time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		timer := time.NewTimer(settle)
		defer timer.Stop()
		select {
		case <-idle:
			return nil
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

const performanceJS = `(() => {
	const nav = performance.getEntriesByType('navigation')[0] || {};
	const paint = performance.getEntriesByType('paint')
		.map(p => ({name: p.name, startTime: p.startTime}));
	return {
		navigation: {
			duration: nav.duration || 0,
			domContentLoaded: nav.domContentLoadedEventEnd || 0,
			loadEventEnd: nav.loadEventEnd || 0,
		},
		paint: paint,
	};
})()`

const domMetricsJS = `(() => ({
	nodeCount: document.getElementsByTagName('*').length,
	inputCount: document.querySelectorAll('input, select, textarea').length,
	buttonCount: document.querySelectorAll('button, input[type="submit"], input[type="button"]').length,
	imgCount: document.getElementsByTagName('img').length,
	linkCount: document.getElementsByTagName('a').length,
}))()`

// snapshotAXTree captures the full accessibility tree and rebuilds it as a
// recursive record.
func (a *ChromeAnalyzer) snapshotAXTree(ctx context.Context) (*AXNode, error) {
	var flat []*accessibility.Node
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		nodes, err := accessibility.GetFullAXTree().Do(ctx)
		if err != nil {
			return err
		}
		flat = nodes
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return buildAXTree(flat), nil
}

// buildAXTree converts the protocol's flat node list into a tree by
// following child IDs. The root is the node no other node claims as a child.
func buildAXTree(flat []*accessibility.Node) *AXNode {
	if len(flat) == 0 {
		return nil
	}

	byID := make(map[accessibility.NodeID]*accessibility.Node, len(flat))
	isChild := make(map[accessibility.NodeID]bool)
	for _, node := range flat {
		byID[node.NodeID] = node
		for _, childID := range node.ChildIDs {
			isChild[childID] = true
		}
	}

	var rootID accessibility.NodeID
	found := false
	for _, node := range flat {
		if !isChild[node.NodeID] {
			rootID = node.NodeID
			found = true
			break
		}
	}
	if !found {
		rootID = flat[0].NodeID
	}

	var convert func(id accessibility.NodeID) *AXNode
	convert = func(id accessibility.NodeID) *AXNode {
		raw, ok := byID[id]
		if !ok {
			return nil
		}
		node := &AXNode{
			Role: axValueString(raw.Role),
			Name: axValueString(raw.Name),
		}
		for _, childID := range raw.ChildIDs {
			if child := convert(childID); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		return node
	}
	return convert(rootID)
}

// axValueString extracts the string payload of an accessibility value.
func axValueString(v *accessibility.Value) string {
	if v == nil || v.Value == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return strings.Trim(string(v.Value), `"`)
	}
	return s
}

// consoleText renders console call arguments as one line of text.
func consoleText(args []*cdpruntime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == nil:
			continue
		case arg.Value != nil:
			var v any
			if err := json.Unmarshal(arg.Value, &v); err == nil {
				parts = append(parts, fmt.Sprintf("%v", v))
			} else {
				parts = append(parts, string(arg.Value))
			}
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

// exceptionText renders an uncaught exception as console-error text.
func exceptionText(details *cdpruntime.ExceptionDetails) string {
	if details == nil {
		return "uncaught exception"
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}
