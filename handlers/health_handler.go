package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/services/keys"
	"github.com/apifactory/llm-gateway/utils"
)

// HealthHandler handles liveness checks
type HealthHandler struct {
	keys   *keys.Service
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(keySvc *keys.Service, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		keys:   keySvc,
		logger: logger,
	}
}

// HandleHealth handles GET /health. The endpoint is unauthenticated, but
// when a key is presented it is checked, so clients can use the probe to
// validate their credential without consuming quota.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rawKey := r.Header.Get("X-API-Key")
	if rawKey != "" {
		rec, err := h.keys.Lookup(r.Context(), rawKey)
		if err != nil {
			_ = utils.WriteServiceUnavailable(w, "credential store unavailable")
			return
		}
		if rec == nil || rec.Disabled {
			_ = utils.WriteUnauthorized(w, "invalid API key")
			return
		}
	}

	_ = utils.WriteOK(w, map[string]string{"status": "healthy"})
}
