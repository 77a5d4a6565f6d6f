// Package httpapi binds the stream controller, pools, and token cipher to
// the HTTP surface: producer endpoints under /api/stream, consumer endpoints
// under /api/client, and health/info under /api.
package httpapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fa-sharp/tinistream/internal/auth"
	"github.com/fa-sharp/tinistream/internal/config"
	"github.com/fa-sharp/tinistream/internal/pool"
	"github.com/fa-sharp/tinistream/internal/stream"
)

// Version reported by /api/info.
const Version = "v1.0.0"

// Server holds the process-wide collaborators: config, cipher, stream
// controller, and the exclusive connection pool. All are immutable after boot.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	ctrl   *stream.Controller
	excl   *pool.Exclusive
	cipher *auth.Cipher
}

func NewServer(cfg *config.Config, rdb *redis.Client, excl *pool.Exclusive, cipher *auth.Cipher, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		ctrl:   stream.NewController(rdb),
		excl:   excl,
		cipher: cipher,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/info", s.requireAPIKey(s.handleInfo))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/stream/", s.requireAPIKey(s.handleStreamRoot))
	mux.HandleFunc("/api/stream/info", s.requireAPIKey(s.handleStreamInfo))
	mux.HandleFunc("/api/stream/token", s.requireAPIKey(s.handleCreateToken))
	mux.HandleFunc("/api/stream/add", s.requireAPIKey(s.handleAddEvents))
	mux.HandleFunc("/api/stream/add/json-stream", s.requireAPIKey(s.handleAddEventsJSONStream))
	mux.HandleFunc("/api/stream/add/ws-stream", s.requireAPIKey(s.handleAddEventsWebSocket))
	mux.HandleFunc("/api/stream/cancel", s.requireAPIKey(s.handleCancelStream))
	mux.HandleFunc("/api/stream/end", s.requireAPIKey(s.handleEndStream))

	mux.HandleFunc("/api/client/sse", s.handleClientSSE)
	mux.HandleFunc("/api/client/ws", s.handleClientWS)

	return s.requestID(mux)
}

// streamURL composes the public SSE URL for a stream key.
func (s *Server) streamURL(key string) string {
	return fmt.Sprintf("%s/api/client/sse?key=%s", s.cfg.ServerAddress, url.QueryEscape(key))
}
