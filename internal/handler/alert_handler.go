package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/service"
)

// AlertHandler handles alert queries and lifecycle transitions
type AlertHandler struct {
	service *service.AlertService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(service *service.AlertService) *AlertHandler {
	return &AlertHandler{
		service: service,
	}
}

// AlertListResponse represents alert list response
type AlertListResponse struct {
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Results []model.AlertSummary `json:"results"`
}

// List handles GET /api/v1/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	domain := r.URL.Query().Get("domain")
	alertType := r.URL.Query().Get("type")
	page, limit := parsePagination(r)

	summaries, total, err := h.service.List(r.Context(), status, domain, alertType, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AlertListResponse{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: summaries,
	})
}

// Get handles GET /api/v1/alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	alert, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// AcknowledgeRequest represents the acknowledge alert request
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// Acknowledge handles PATCH /api/v1/alerts/{id}/acknowledge
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := alertIDFromPath(r.URL.Path, "/acknowledge")
	if id == "" {
		writeError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AcknowledgedBy == "" {
		writeError(w, http.StatusBadRequest, "acknowledged_by is required")
		return
	}

	if err := h.service.Acknowledge(r.Context(), id, req.AcknowledgedBy); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(model.AlertAcknowledged),
	})
}

// ResolveRequest represents the resolve alert request
type ResolveRequest struct {
	Note string `json:"note"`
}

// Resolve handles PATCH /api/v1/alerts/{id}/resolve
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := alertIDFromPath(r.URL.Path, "/resolve")
	if id == "" {
		writeError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	var req ResolveRequest
	if r.Body != nil {
		// The note is optional; an empty body is fine
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Resolve(r.Context(), id, req.Note); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(model.AlertResolved),
	})
}

// SuppressRequest represents the suppress alert request
type SuppressRequest struct {
	Until time.Time `json:"until"`
}

// Suppress handles PATCH /api/v1/alerts/{id}/suppress
func (h *AlertHandler) Suppress(w http.ResponseWriter, r *http.Request) {
	id := alertIDFromPath(r.URL.Path, "/suppress")
	if id == "" {
		writeError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	var req SuppressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Until.IsZero() {
		writeError(w, http.StatusBadRequest, "until is required")
		return
	}

	if err := h.service.Suppress(r.Context(), id, req.Until); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(model.AlertSuppressed),
	})
}

func alertIDFromPath(path, action string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/alerts/")
	return strings.TrimSuffix(trimmed, action)
}
