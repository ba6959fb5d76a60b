package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/service"
)

// TargetHandler handles the monitored domain registry endpoints
type TargetHandler struct {
	service *service.TargetService
}

// NewTargetHandler creates a new target handler
func NewTargetHandler(service *service.TargetService) *TargetHandler {
	return &TargetHandler{
		service: service,
	}
}

// TargetListResponse represents the target list response
type TargetListResponse struct {
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Results []model.Target `json:"results"`
}

// Register handles POST /api/v1/targets
func (h *TargetHandler) Register(w http.ResponseWriter, r *http.Request) {
	var target model.Target
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Register(r.Context(), &target); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"domain": target.Domain,
	})
}

// List handles GET /api/v1/targets
func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	targets, total, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TargetListResponse{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: targets,
	})
}

// Delete handles DELETE /api/v1/targets/{domain}
func (h *TargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimPrefix(r.URL.Path, "/api/v1/targets/")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "target domain is required")
		return
	}

	if err := h.service.Delete(r.Context(), domain); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
