package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aristath/worktime/internal/events"
)

const (
	// SubprotocolMsgpack selects binary MessagePack frames on the WebSocket stream
	SubprotocolMsgpack = "msgpack"
	// SubprotocolJSON selects text JSON frames (the default)
	SubprotocolJSON = "json"

	streamBuffer       = 100
	streamHeartbeat    = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// EventsStreamHandler forwards bus events to clients over WebSocket or
// Server-Sent Events. A slow client drops events, it never blocks the emitter.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// subscribe registers a buffered channel for the requested event types.
// An empty filter means every event type.
func (h *EventsStreamHandler) subscribe(filter string) (<-chan *events.Event, func()) {
	types := events.AllEventTypes
	if filter != "" {
		types = nil
		for _, t := range strings.Split(filter, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, events.EventType(t))
			}
		}
	}

	ch := make(chan *events.Event, streamBuffer)
	handler := func(event *events.Event) {
		select {
		case ch <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	ids := make(map[events.EventType]uint64, len(types))
	for _, t := range types {
		ids[t] = h.bus.Subscribe(t, handler)
	}

	return ch, func() {
		for t, id := range ids {
			h.bus.Unsubscribe(t, id)
		}
	}
}

// ServeWebSocket handles GET /api/events/ws
func (h *EventsStreamHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{SubprotocolMsgpack, SubprotocolJSON},
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	binary := conn.Subprotocol() == SubprotocolMsgpack
	ctx := conn.CloseRead(r.Context())

	eventChan, unsubscribe := h.subscribe(r.URL.Query().Get("types"))
	defer unsubscribe()

	h.log.Info().
		Bool("msgpack", binary).
		Str("remote", r.RemoteAddr).
		Msg("Client connected to event stream")

	if err := h.writeFrame(ctx, conn, binary, &events.Event{
		Type:      "CONNECTED",
		Timestamp: time.Now(),
		Module:    "events_stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.writeFrame(ctx, conn, binary, event); err != nil {
				h.log.Warn().
					Err(err).
					Str("event_type", string(event.Type)).
					Msg("Failed to deliver event")
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Event stream heartbeat failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) writeFrame(ctx context.Context, conn *websocket.Conn, binary bool, event *events.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()

	if binary {
		data, err := msgpack.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return conn.Write(writeCtx, websocket.MessageBinary, data)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// ServeSSE handles GET /api/events/stream for clients without WebSocket support
func (h *EventsStreamHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan, unsubscribe := h.subscribe(r.URL.Query().Get("types"))
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
