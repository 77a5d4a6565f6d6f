package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/metrics"
	"github.com/fa-sharp/tinistream/internal/pool"
	"github.com/fa-sharp/tinistream/internal/stream"
)

// maxIngestBody caps the line-delimited JSON request body.
const maxIngestBody = 512 * 1024

type addEventsStreamResponse struct {
	// IDs of the added events
	IDs []string `json:"ids"`
	// Errors that occurred while adding events
	Errors []string `json:"errors"`
}

// ingestAck is the per-event response on the streaming ingest paths.
type ingestAck struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

func ackSuccess(id string) ingestAck {
	return ingestAck{Type: "success", ID: id}
}

func ackError(message string) ingestAck {
	return ingestAck{Type: "error", Message: message}
}

// handleAddEventsJSONStream ingests newline-delimited JSON events from the
// request body. Lines that do not start with '{' are skipped; per-line ids
// and errors accumulate into the response. If the body exceeds the size cap
// the input is cut, but acks gathered so far are still returned.
func (s *Server) handleAddEventsJSONStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, codeBadRequest, "Method not allowed")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		s.badRequest(w, "Missing stream key")
		return
	}
	active, err := s.ctrl.IsActive(r.Context(), key)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !active {
		s.streamNotFound(w)
		return
	}

	conn, err := s.excl.Acquire(r.Context())
	if err != nil {
		s.poolError(w, err)
		return
	}
	defer conn.Release()
	writer := stream.NewWriter(conn)

	ids := []string{}
	ingestErrs := []string{}
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 64*1024), maxIngestBody)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimLeft(line, " \t\r"), "{") {
			continue
		}
		var ev stream.AddEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			ingestErrs = append(ingestErrs, fmt.Sprintf("Invalid JSON: %v", err))
			metrics.IngestErrors.WithLabelValues("json-stream").Inc()
			continue
		}
		id, err := writer.WriteOne(r.Context(), key, ev)
		if err != nil {
			ingestErrs = append(ingestErrs, err.Error())
			metrics.IngestErrors.WithLabelValues("json-stream").Inc()
			continue
		}
		if id == "" {
			break // stream ended
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		ingestErrs = append(ingestErrs, err.Error())
	}

	s.respondJSON(w, http.StatusOK, addEventsStreamResponse{IDs: ids, Errors: ingestErrs})
}

// handleAddEventsWebSocket ingests events over a WebSocket connection,
// acking each message individually. An inactive stream produces an error ack
// followed by a close frame.
func (s *Server) handleAddEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.badRequest(w, "Missing stream key")
		return
	}
	active, err := s.ctrl.IsActive(r.Context(), key)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !active {
		s.streamNotFound(w)
		return
	}

	conn, err := s.excl.Acquire(r.Context())
	if err != nil {
		s.poolError(w, err)
		return
	}
	defer conn.Release()
	writer := stream.NewWriter(conn)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			// Close frame or dropped connection; everything acked so far
			// is already in the log.
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Ingest WebSocket closed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev stream.AddEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			metrics.IngestErrors.WithLabelValues("ws-stream").Inc()
			if err := ws.WriteJSON(ackError(fmt.Sprintf("Invalid JSON: %v", err))); err != nil {
				return
			}
			continue
		}

		id, err := writer.WriteOne(r.Context(), key, ev)
		switch {
		case err != nil:
			metrics.IngestErrors.WithLabelValues("ws-stream").Inc()
			if err := ws.WriteJSON(ackError(err.Error())); err != nil {
				return
			}
		case id == "":
			_ = ws.WriteJSON(ackError("Stream not active"))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		default:
			if err := ws.WriteJSON(ackSuccess(id)); err != nil {
				return
			}
		}
	}
}

func (s *Server) poolError(w http.ResponseWriter, err error) {
	if errors.Is(err, pool.ErrPoolTimeout) {
		s.tooManyRequests(w)
		return
	}
	s.internalError(w, err)
}
