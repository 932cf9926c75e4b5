package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mwestcott/sitehound/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is open CORS; the stream follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// Slow consumers get dropped rather than blocking the bus.
	wsSendBuffer = 256
)

// handleScanStream upgrades the connection and pushes the scan's events as
// JSON frames in emission order until the client disconnects.
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	if _, ok := s.store.Get(scanID); !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The subscription and the history snapshot are taken under one bus
	// lock, so events emitted during the replay arrive on the channel
	// without also appearing in the snapshot.
	send := make(chan events.Event, wsSendBuffer)
	history, unsubscribe := s.bus.SubscribeScan(scanID, func(evt events.Event) {
		if evt.ScanID != scanID {
			return
		}
		select {
		case send <- evt:
		default:
			// Buffer full: the consumer is too slow, drop the frame.
		}
	})
	defer unsubscribe()

	// Replay so late subscribers see the scan from the start.
	for _, evt := range history {
		if err := writeFrame(conn, evt); err != nil {
			return
		}
	}

	// Reader goroutine: the client sends nothing meaningful, but reading
	// is what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case evt := <-send:
			if err := writeFrame(conn, evt); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, evt events.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(evt)
}
