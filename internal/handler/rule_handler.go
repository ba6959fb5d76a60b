package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sentinelhq/domainwatch/internal/model"
)

// ruleService is the rule management surface the endpoints need
type ruleService interface {
	Create(ctx context.Context, rule *model.AlertRule) error
	GetByID(ctx context.Context, id string) (*model.AlertRule, error)
	List(ctx context.Context) ([]model.AlertRule, error)
	Update(ctx context.Context, id string, rule *model.AlertRule) error
	Delete(ctx context.Context, id string) error
}

// RuleHandler handles alert rule management endpoints
type RuleHandler struct {
	service ruleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(service ruleService) *RuleHandler {
	return &RuleHandler{
		service: service,
	}
}

// RuleListResponse represents the rule list response
type RuleListResponse struct {
	Total   int               `json:"total"`
	Results []model.AlertRule `json:"results"`
}

// Create handles POST /api/v1/rules
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule model.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Create(r.Context(), &rule); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// List handles GET /api/v1/rules
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RuleListResponse{
		Total:   len(rules),
		Results: rules,
	})
}

// Get handles GET /api/v1/rules/{id}
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.GetByID(r.Context(), ruleIDFromPath(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Update handles PUT /api/v1/rules/{id}
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var rule model.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Update(r.Context(), ruleIDFromPath(r), &rule); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Delete handles DELETE /api/v1/rules/{id}
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), ruleIDFromPath(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ruleIDFromPath extracts the rule ID segment from the request path
func ruleIDFromPath(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/rules/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return path
}
