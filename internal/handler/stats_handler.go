package handler

import (
	"net/http"

	"github.com/sentinelhq/domainwatch/internal/service"
)

// StatsHandler serves aggregate fleet statistics
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *service.StatsService) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// Stats handles GET /api/v1/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	domainFilter := r.URL.Query().Get("domain")

	stats, err := h.service.Stats(r.Context(), domainFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
