package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sentinelhq/domainwatch/internal/model"
	"github.com/sentinelhq/domainwatch/internal/service"
)

// OperationHandler handles batch operation endpoints
type OperationHandler struct {
	service *service.OperationService
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(service *service.OperationService) *OperationHandler {
	return &OperationHandler{
		service: service,
	}
}

// StartResponse is returned when a run or definition is accepted
type StartResponse struct {
	ID      string                `json:"id"`
	Status  model.OperationStatus `json:"status"`
	Targets int                   `json:"targets"`
}

// Start handles POST /api/v1/operations
func (h *OperationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var op model.Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.StartBatch(r.Context(), &op)
	if err != nil {
		if errors.Is(err, service.ErrNoTargets) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, StartResponse{
		ID:      created.ID.Hex(),
		Status:  created.Status,
		Targets: len(created.Targets),
	})
}

// Schedule handles POST /api/v1/operations/schedule
func (h *OperationHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var op model.Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.ScheduleBatch(r.Context(), &op)
	if err != nil {
		if errors.Is(err, service.ErrNoTargets) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// OperationListResponse represents the operation list response
type OperationListResponse struct {
	Total   int64                    `json:"total"`
	Page    int                      `json:"page"`
	Limit   int                      `json:"limit"`
	Results []model.OperationSummary `json:"results"`
}

// List handles GET /api/v1/operations
func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	kind := r.URL.Query().Get("kind")
	page, limit := parsePagination(r)

	summaries, total, err := h.service.List(r.Context(), status, kind, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, OperationListResponse{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: summaries,
	})
}

// Get handles GET /api/v1/operations/{id}
func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/operations/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "operation ID is required")
		return
	}

	op, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, op)
}

// Cancel handles POST /api/v1/operations/{id}/cancel
func (h *OperationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/operations/")
	id := strings.TrimSuffix(path, "/cancel")
	if id == "" {
		writeError(w, http.StatusBadRequest, "operation ID is required")
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotCancellable) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "cancelling",
	})
}
