package api

import (
	"net/http"

	"github.com/adgate/adgate/internal/api/presenter"
	"github.com/adgate/adgate/internal/buildinfo"
)

// handleHealth is the liveness probe. It deliberately touches no storage
// so a degraded backend never flaps the whole service unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout reports build metadata for the running server.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handlePlatforms lists the advertising platforms this deployment can
// issue credentials for.
func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, map[string][]string{"platforms": s.platforms.Platforms()}, http.StatusOK)
}
