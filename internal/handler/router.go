package handler

import (
	"net/http"
	"strings"

	"github.com/sentinelhq/domainwatch/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	operationHandler *OperationHandler
	alertHandler     *AlertHandler
	ruleHandler      *RuleHandler
	targetHandler    *TargetHandler
	statsHandler     *StatsHandler
	healthHandler    *HealthHandler
	corsConfig       middleware.CORSConfig
	apiKeys          []string
}

// NewRouter creates a new router
func NewRouter(
	operationHandler *OperationHandler,
	alertHandler *AlertHandler,
	ruleHandler *RuleHandler,
	targetHandler *TargetHandler,
	statsHandler *StatsHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
	apiKeys []string,
) *Router {
	return &Router{
		operationHandler: operationHandler,
		alertHandler:     alertHandler,
		ruleHandler:      ruleHandler,
		targetHandler:    targetHandler,
		statsHandler:     statsHandler,
		healthHandler:    healthHandler,
		corsConfig:       corsConfig,
		apiKeys:          apiKeys,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints stay outside the auth gate
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/operations", rt.handleOperations)
	api.HandleFunc("/api/v1/operations/", rt.handleOperationsWithID)
	api.HandleFunc("/api/v1/alerts", rt.handleAlerts)
	api.HandleFunc("/api/v1/alerts/", rt.handleAlertsWithID)
	api.HandleFunc("/api/v1/rules", rt.handleRules)
	api.HandleFunc("/api/v1/rules/", rt.handleRulesWithID)
	api.HandleFunc("/api/v1/targets", rt.handleTargets)
	api.HandleFunc("/api/v1/targets/", rt.handleTargetsWithDomain)
	api.HandleFunc("/api/v1/stats", rt.statsHandler.Stats)

	mux.Handle("/api/v1/", middleware.Auth(rt.apiKeys)(api))

	// CORS first so preflight requests short-circuit before auth
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleOperations routes operation collection endpoints
func (rt *Router) handleOperations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.operationHandler.List(w, r)
	case http.MethodPost:
		rt.operationHandler.Start(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleOperationsWithID routes operation individual endpoints
func (rt *Router) handleOperationsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/operations/")

	if path == "schedule" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.operationHandler.Schedule(w, r)
		return
	}

	if strings.HasSuffix(path, "/cancel") {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.operationHandler.Cancel(w, r)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.operationHandler.Get(w, r)
}

// handleAlerts routes alert collection endpoints
func (rt *Router) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.alertHandler.List(w, r)
}

// handleAlertsWithID routes alert individual endpoints
func (rt *Router) handleAlertsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")

	switch {
	case strings.HasSuffix(path, "/acknowledge"):
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.alertHandler.Acknowledge(w, r)
	case strings.HasSuffix(path, "/resolve"):
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.alertHandler.Resolve(w, r)
	case strings.HasSuffix(path, "/suppress"):
		if r.Method != http.MethodPatch {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.alertHandler.Suppress(w, r)
	default:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.alertHandler.Get(w, r)
	}
}

// handleRules routes rule collection endpoints
func (rt *Router) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.ruleHandler.List(w, r)
	case http.MethodPost:
		rt.ruleHandler.Create(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRulesWithID routes rule individual endpoints
func (rt *Router) handleRulesWithID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.ruleHandler.Get(w, r)
	case http.MethodPut:
		rt.ruleHandler.Update(w, r)
	case http.MethodDelete:
		rt.ruleHandler.Delete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTargets routes target collection endpoints
func (rt *Router) handleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.targetHandler.List(w, r)
	case http.MethodPost:
		rt.targetHandler.Register(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTargetsWithDomain routes target individual endpoints
func (rt *Router) handleTargetsWithDomain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.targetHandler.Delete(w, r)
}
