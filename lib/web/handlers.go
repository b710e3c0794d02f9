package web

import (
	"context"
	"net/http"

	"github.com/go-i2p/dbpool/lib/driver"
	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/pool"
)

// ReadinessResponse is the body of /readyz.
type ReadinessResponse struct {
	Status string     `json:"status"`
	Pool   pool.Stats `json:"pool"`
	Code   int        `json:"code,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// handleStats returns the pool statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pool.Stats())
}

// handleLiveness reports that the process is serving.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadiness borrows a connection and pings it. Failures answer 503
// with a message that never includes the database URL or credentials.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyWait)
	defer cancel()

	err := s.pool.WithConnection(ctx, func(conn driver.Conn) error {
		return conn.Ping(ctx)
	})
	if err != nil {
		appErr := apperrors.FromSentinel(err)
		s.logger.Warn("readiness check failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status: "unavailable",
			Pool:   s.pool.Stats(),
			Code:   appErr.Code,
			Error:  appErr.SafeMessage(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, ReadinessResponse{
		Status: "ready",
		Pool:   s.pool.Stats(),
	})
}
