package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/auth"
	"github.com/fa-sharp/tinistream/internal/stream"
)

type streamRequest struct {
	Key string `json:"key"`
}

type streamAccessResponse struct {
	// URL to connect to the stream
	URL string `json:"url"`
	// Bearer token to access the stream
	Token string `json:"token"`
}

type addEventsRequest struct {
	Key    string            `json:"key"`
	Events []stream.AddEvent `json:"events"`
}

type addEventsResponse struct {
	IDs []string `json:"ids"`
}

type endStreamResponse struct {
	Status stream.Status `json:"status"`
}

// handleStreamRoot serves /api/stream/: GET lists active streams, POST
// creates a new one.
func (s *Server) handleStreamRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListStreams(w, r)
	case http.MethodPost:
		s.handleCreateStream(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, codeBadRequest, "Method not allowed")
	}
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	streams, err := s.ctrl.Scan(r.Context(), pattern)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, streams)
}

func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.badRequest(w, "Missing stream key")
		return
	}
	status, length, ttl, err := s.ctrl.Info(r.Context(), key)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if status != stream.StatusActive {
		s.streamNotFound(w)
		return
	}
	s.respondJSON(w, http.StatusOK, stream.StreamInfo{Key: key, Length: length, TTL: ttl})
}

// handleCreateStream starts a new stream and returns a consumer URL and
// token for it.
func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.badRequest(w, "Invalid request body")
		return
	}
	active, err := s.ctrl.IsActive(r.Context(), req.Key)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if active {
		s.respondError(w, http.StatusBadRequest, codeExistingStream, "Stream already exists")
		return
	}
	if _, err := s.ctrl.Start(r.Context(), req.Key, time.Duration(s.cfg.TTL)*time.Second); err != nil {
		s.internalError(w, err)
		return
	}
	s.logger.Info("Stream started", zap.String("key", req.Key))
	s.respondStreamAccess(w, req.Key)
}

// handleCreateToken mints a consumer token without touching the stream
// itself; producers may pre-mint tokens for streams they are about to create.
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.badRequest(w, "Invalid request body")
		return
	}
	s.respondStreamAccess(w, req.Key)
}

func (s *Server) respondStreamAccess(w http.ResponseWriter, key string) {
	token, err := s.cipher.EncryptBase64(auth.MintClientToken(key, auth.DefaultTokenTTL))
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, streamAccessResponse{URL: s.streamURL(key), Token: token})
}

// handleAddEvents appends a batch of events. The active check runs once for
// the whole batch.
func (s *Server) handleAddEvents(w http.ResponseWriter, r *http.Request) {
	var req addEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.badRequest(w, "Invalid request body")
		return
	}
	active, err := s.ctrl.IsActive(r.Context(), req.Key)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !active {
		s.streamNotFound(w)
		return
	}
	ids, err := s.ctrl.WriteMany(r.Context(), req.Key, req.Events)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, addEventsResponse{IDs: ids})
}

func (s *Server) handleCancelStream(w http.ResponseWriter, r *http.Request) {
	s.terminateStream(w, r, stream.StatusCancelled, s.ctrl.Cancel)
}

func (s *Server) handleEndStream(w http.ResponseWriter, r *http.Request) {
	s.terminateStream(w, r, stream.StatusEnded, s.ctrl.End)
}

func (s *Server) terminateStream(w http.ResponseWriter, r *http.Request, status stream.Status, terminate func(ctx context.Context, key string) error) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.badRequest(w, "Invalid request body")
		return
	}
	active, err := s.ctrl.IsActive(r.Context(), req.Key)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !active {
		s.streamNotFound(w)
		return
	}
	if err := terminate(r.Context(), req.Key); err != nil {
		s.internalError(w, err)
		return
	}
	s.logger.Info("Stream terminated", zap.String("key", req.Key), zap.String("status", string(status)))
	s.respondJSON(w, http.StatusOK, endStreamResponse{Status: status})
}
