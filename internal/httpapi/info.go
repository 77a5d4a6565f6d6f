package httpapi

import "net/http"

type infoResponse struct {
	URL     string     `json:"url"`
	Version string     `json:"version"`
	Redis   redisStats `json:"redis"`
}

type redisStats struct {
	// Number of static connections
	Static int `json:"static"`
	// Number of current streaming connections
	Streaming int `json:"streaming"`
	// Number of available streaming connections
	StreamingAvailable int `json:"streaming_available"`
	// Maximum number of streaming connections
	StreamingMax int `json:"streaming_max"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	stats := s.excl.Stats()
	s.respondJSON(w, http.StatusOK, infoResponse{
		URL:     s.cfg.ServerAddress,
		Version: Version,
		Redis: redisStats{
			Static:             s.cfg.RedisPool,
			Streaming:          stats.Size,
			StreamingAvailable: stats.Available,
			StreamingMax:       stats.Max,
		},
	})
}
