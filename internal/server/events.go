package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// Frame is one websocket message on the event stream.
type Frame struct {
	Type     string           `json:"type"`
	Previous *models.Snapshot `json:"previous,omitempty"`
	Current  models.Snapshot  `json:"current"`
	At       time.Time        `json:"at"`
}

func trackChangedFrame(e events.TrackChanged) Frame {
	prev := e.Previous
	return Frame{Type: events.KindTrackChanged.String(), Previous: &prev, Current: e.Current, At: e.At}
}

func nowPlayingFrame(e events.NowPlaying) Frame {
	return Frame{Type: events.KindNowPlaying.String(), Current: e.Current, At: e.At}
}

// EventsHandler streams bus events to websocket clients.
type EventsHandler struct {
	bus      *events.Bus
	buffer   int
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewEventsHandler creates a handler whose subscribers buffer up to buffer events.
func NewEventsHandler(bus *events.Bus, buffer int, logger *log.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The control surface only listens on the configured local address.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: shared.WithLogger(logger, "component", "events-ws"),
	}
}

func (h *EventsHandler) Routes() []string {
	return []string{"/api/events"}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(h.buffer)
	defer h.bus.Unsubscribe(sub)

	gone := make(chan struct{})
	go h.readLoop(conn, gone)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	h.logger.Debug("client connected", "remote", r.RemoteAddr)
	defer func() {
		h.logger.Debug("client disconnected", "remote", r.RemoteAddr, "dropped", sub.Dropped())
	}()

	for {
		select {
		case <-gone:
			return
		case <-sub.Done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case e := <-sub.TrackChanged:
			if !h.send(conn, trackChangedFrame(e)) {
				return
			}
		case e := <-sub.NowPlaying:
			if !h.send(conn, nowPlayingFrame(e)) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) send(conn *websocket.Conn, f Frame) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		h.logger.Debug("failed to write frame", "type", f.Type, "error", err)
		return false
	}
	return true
}

// readLoop discards client messages and closes gone when the connection ends.
func (h *EventsHandler) readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
	}
}

// NewControlRouter mounts the control API and event stream behind logging and recovery.
func NewControlRouter(engine Engine, bus *events.Bus, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(NewControlHandler(engine, logger))
	router.Handler(NewEventsHandler(bus, events.DefaultBuffer, logger))
	return router
}
