package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/internal/metrics"
	"github.com/apifactory/llm-gateway/services/audit"
	"github.com/apifactory/llm-gateway/services/keys"
	"github.com/apifactory/llm-gateway/utils"
)

// AdminHandler serves the operator endpoints: counter snapshots and audit
// chain verification. Both require an admin-flagged key.
type AdminHandler struct {
	keys    *keys.Service
	trail   *audit.Trail
	metrics *metrics.Metrics
	dropped func() int64 // archive queue drop counter, nil when archiving is off
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(keySvc *keys.Service, trail *audit.Trail, m *metrics.Metrics, dropped func() int64, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		keys:    keySvc,
		trail:   trail,
		metrics: m,
		dropped: dropped,
		logger:  logger,
	}
}

// requireAdmin resolves the presented key and enforces the admin flag.
// Admin lookups do not consume quota. Returns false after writing the
// error response.
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	rawKey := r.Header.Get("X-API-Key")
	if rawKey == "" {
		_ = utils.WriteUnauthorized(w, "missing API key")
		return false
	}

	rec, err := h.keys.Lookup(r.Context(), rawKey)
	if err != nil {
		h.logger.Error("credential store unreachable", zap.Error(err))
		_ = utils.WriteServiceUnavailable(w, "credential store unavailable")
		return false
	}
	if rec == nil || rec.Disabled {
		_ = utils.WriteUnauthorized(w, "invalid API key")
		return false
	}
	if !rec.IsAdmin {
		_ = utils.WriteForbidden(w, "admin access required")
		return false
	}
	return true
}

// HandleStats handles GET /admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	stats := map[string]interface{}{
		"counters":      h.metrics.Snapshot(),
		"audit_entries": h.trail.Len(),
	}
	if h.dropped != nil {
		stats["archive_dropped"] = h.dropped()
	}

	if err := utils.WriteOK(w, stats); err != nil {
		h.logger.Error("failed to write stats response", zap.Error(err))
	}
}

// HandleAuditVerify handles GET /admin/audit/verify. With a resource_id
// query parameter it verifies one chain; without, every retained chain.
func (h *AdminHandler) HandleAuditVerify(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if resourceID := r.URL.Query().Get("resource_id"); resourceID != "" {
		ok, problems := h.trail.VerifyResource(resourceID)
		_ = utils.WriteOK(w, map[string]interface{}{
			"resource_id": resourceID,
			"valid":       ok,
			"problems":    problems,
		})
		return
	}

	ok, failed := h.trail.VerifyAll()
	_ = utils.WriteOK(w, map[string]interface{}{
		"valid":  ok,
		"failed": failed,
	})
}
