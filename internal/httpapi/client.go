package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/metrics"
	"github.com/fa-sharp/tinistream/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway runs behind a proxy; origin policy is enforced there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsReplayDelay is how long to wait after the handshake before the first
// WebSocket send. Some peers buffer the handshake response and miss a frame
// sent immediately after it.
const wsReplayDelay = 200 * time.Millisecond

// handleClientSSE streams a stream's history and live tail as Server-Sent
// Events. Supports resumption via the Last-Event-ID header.
func (s *Server) handleClientSSE(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := s.authorizeConsumer(r, key); err != nil {
		s.logger.Info("Rejected consumer", zap.String("key", key), zap.Error(err))
		s.unauthorized(w)
		return
	}

	conn, err := s.excl.Acquire(r.Context())
	if err != nil {
		s.poolError(w, err)
		return
	}
	defer conn.Release()
	reader := stream.NewReader(conn)

	ctx := r.Context()
	prev, lastID, closed, err := reader.PrevEvents(ctx, key, r.Header.Get("Last-Event-ID"))
	if err != nil {
		if errors.Is(err, stream.ErrStreamNotFound) {
			s.streamNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.internalError(w, fmt.Errorf("streaming not supported by connection"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.ConsumersConnected.WithLabelValues("sse").Inc()
	defer metrics.ConsumersConnected.WithLabelValues("sse").Dec()

	for _, entry := range prev {
		fmt.Fprint(w, stream.EncodeSSE(entry))
	}
	flusher.Flush()
	metrics.FramesSent.WithLabelValues("sse").Add(float64(len(prev)))
	if closed {
		return
	}

	for {
		entry, err := reader.Next(ctx, key, lastID)
		if err != nil {
			if ctx.Err() == nil {
				// Surface the failure as a final error frame
				fmt.Fprint(w, stream.EncodeSSE(stream.ErrorEntry(err.Error())))
				flusher.Flush()
				s.logger.Error("Tail failed", zap.String("key", key), zap.Error(err))
			}
			return
		}
		fmt.Fprint(w, stream.EncodeSSE(entry))
		flusher.Flush()
		metrics.FramesSent.WithLabelValues("sse").Inc()
		if entry.IsTerminal() {
			return
		}
		lastID = entry.ID
	}
}

// handleClientWS streams a stream's history and live tail over a WebSocket.
// The first message is a JSON array of all prior events; each live event
// follows as a separate JSON object.
func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := s.authorizeConsumer(r, key); err != nil {
		s.logger.Info("Rejected consumer", zap.String("key", key), zap.Error(err))
		s.unauthorized(w)
		return
	}

	conn, err := s.excl.Acquire(r.Context())
	if err != nil {
		s.poolError(w, err)
		return
	}
	defer conn.Release()
	reader := stream.NewReader(conn)

	resumeAfter := r.URL.Query().Get("last_event_id")
	prev, lastID, closed, err := reader.PrevEvents(r.Context(), key, resumeAfter)
	if err != nil {
		if errors.Is(err, stream.ErrStreamNotFound) {
			s.streamNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	metrics.ConsumersConnected.WithLabelValues("ws").Inc()
	defer metrics.ConsumersConnected.WithLabelValues("ws").Dec()

	// Cancel the tail as soon as the peer goes away. The reader pump also
	// processes close frames, which gorilla only surfaces while reading.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(wsReplayDelay)
	if err := ws.WriteJSON(stream.EncodeJSONBatch(prev)); err != nil {
		return
	}
	metrics.FramesSent.WithLabelValues("ws").Add(float64(len(prev)))
	if closed {
		s.writeWSClose(ws)
		return
	}

	for {
		entry, err := reader.Next(ctx, key, lastID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Tail failed", zap.String("key", key), zap.Error(err))
				_ = ws.WriteJSON(map[string]string{
					stream.EventField: stream.EventError,
					stream.DataField:  err.Error(),
				})
				s.writeWSClose(ws)
			}
			return
		}
		if err := ws.WriteJSON(stream.EncodeJSON(entry)); err != nil {
			return
		}
		metrics.FramesSent.WithLabelValues("ws").Inc()
		if entry.IsTerminal() {
			s.writeWSClose(ws)
			return
		}
		lastID = entry.ID
	}
}

func (s *Server) writeWSClose(ws *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
