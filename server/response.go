package server

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/composels/errors"
	"github.com/teranos/composels/version"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int64  `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "ok"
	code := http.StatusOK
	if s.ctx.Err() != nil {
		status = "draining"
		code = http.StatusServiceUnavailable
	}
	if err := writeJSON(w, code, healthResponse{
		Status:   status,
		Version:  version.ServerVersion(),
		Sessions: s.Sessions(),
	}); err != nil {
		s.logger.Warnw("Failed to write health response", "error", err)
	}
}
