package handlers

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/services/gateway"
	"github.com/apifactory/llm-gateway/utils"
)

// PredictRequest represents the prediction request body
type PredictRequest struct {
	Input                  string            `json:"input" validate:"required"`
	Context                map[string]string `json:"context,omitempty"`
	UserConsent            map[string]bool   `json:"user_consent,omitempty"`
	Region                 string            `json:"region,omitempty" validate:"omitempty,oneof=eu us global"`
	PrivacyLevel           string            `json:"privacy_level,omitempty" validate:"omitempty,oneof=none partial full synthetic"`
	RetentionPolicy        string            `json:"retention_policy,omitempty" validate:"omitempty,oneof=transient short_term standard extended permanent"`
	RetentionJustification string            `json:"retention_justification,omitempty"`
}

// PredictHandler handles prediction requests
type PredictHandler struct {
	service *gateway.Service
	logger  *zap.Logger
}

// NewPredictHandler creates a new PredictHandler
func NewPredictHandler(service *gateway.Service, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{
		service: service,
		logger:  logger,
	}
}

// HandlePredict handles POST /v1/predict
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)
	w.Header().Set("X-Request-ID", requestID)

	var body PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&body); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	serviceReq := gateway.PredictRequest{
		Input:                  body.Input,
		Context:                body.Context,
		UserConsent:            body.UserConsent,
		Region:                 body.Region,
		PrivacyLevel:           body.PrivacyLevel,
		RetentionPolicy:        body.RetentionPolicy,
		RetentionJustification: body.RetentionJustification,
		ModelOverride:          r.Header.Get("X-Model"),
		APIKey:                 r.Header.Get("X-API-Key"),
		ClientIP:               getClientIP(r),
		RequestID:              requestID,
	}

	result, err := h.service.Predict(ctx, serviceReq)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first (for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}

	// Try X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}
