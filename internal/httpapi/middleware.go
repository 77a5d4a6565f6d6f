package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/auth"
)

// apiKeyHeader carries the shared producer secret.
const apiKeyHeader = "X-API-KEY"

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		s.logger.Debug("Request received",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey guards producer endpoints with the shared API key.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(header), []byte(s.cfg.APIKey)) != 1 {
			s.logger.Info("Rejected request with invalid API key", zap.String("path", r.URL.Path))
			s.unauthorized(w)
			return
		}
		next(w, r)
	}
}

// consumerToken extracts the encrypted bearer token from the Authorization
// header or the `token` query field. The query fallback exists because
// browser EventSource cannot set headers.
func consumerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

// authorizeConsumer decrypts and validates the client token against the
// stream key on the request.
func (s *Server) authorizeConsumer(r *http.Request, key string) error {
	encrypted := consumerToken(r)
	if encrypted == "" {
		return auth.ErrMissingToken
	}
	token, err := s.cipher.DecryptBase64(encrypted)
	if err != nil {
		return err
	}
	return auth.ValidateClientToken(token, key)
}
