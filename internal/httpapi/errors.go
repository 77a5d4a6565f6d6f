package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Error codes returned in the {code, message} body.
const (
	codeBadRequest      = "bad-request"
	codeUnauthorized    = "unauthorized"
	codeStreamNotFound  = "active-stream-not-found"
	codeExistingStream  = "existing-stream"
	codeTooManyRequests = "too-many-requests"
	codeInternal        = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorBody{Code: code, Message: message})
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.respondError(w, http.StatusBadRequest, codeBadRequest, message)
}

// unauthorized writes a deliberately generic payload: crypto and token
// failures must not be distinguishable by probing clients.
func (s *Server) unauthorized(w http.ResponseWriter) {
	s.respondError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
}

func (s *Server) streamNotFound(w http.ResponseWriter) {
	s.respondError(w, http.StatusNotFound, codeStreamNotFound, "Active stream not found")
}

func (s *Server) tooManyRequests(w http.ResponseWriter) {
	s.respondError(w, http.StatusTooManyRequests, codeTooManyRequests, "Too many concurrent clients")
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("Internal error", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
}
