package handlers

import (
	"errors"
	"net/http"

	"github.com/apifactory/llm-gateway/services"
	"github.com/apifactory/llm-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Thin handlers
// delegate every service failure here so the status mapping lives in one
// place.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unhandled error type", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An unexpected error occurred")
		return
	}

	switch domainErr.Type {
	case services.ErrorTypeUnauthenticated, services.ErrorTypeKeyDisabled:
		// Disabled keys answer the same as unknown ones; the distinction
		// stays in the logs.
		_ = utils.WriteUnauthorized(w, domainErr.Message)

	case services.ErrorTypeQuotaExceeded, services.ErrorTypeRateLimited:
		_ = utils.WriteTooManyRequests(w, domainErr.Message, domainErr.Details)

	case services.ErrorTypeUnsafeInput,
		services.ErrorTypeContentViolation,
		services.ErrorTypeComplianceViolation,
		services.ErrorTypeValidation:
		_ = utils.WriteBadRequest(w, domainErr.Message, domainErr.Details)

	case services.ErrorTypePayloadTooLarge:
		_ = utils.WritePayloadTooLarge(w, domainErr.Message, domainErr.Details)

	case services.ErrorTypeForbidden:
		_ = utils.WriteForbidden(w, domainErr.Message)

	case services.ErrorTypeUpstreamTimeout:
		_ = utils.WriteGatewayTimeout(w, domainErr.Message)

	case services.ErrorTypeUpstreamError:
		_ = utils.WriteBadGateway(w, domainErr.Message, domainErr.Details)

	case services.ErrorTypeBackendUnavailable:
		_ = utils.WriteServiceUnavailable(w, domainErr.Message)

	default:
		logger.Error("internal server error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")
	}

	logger.Debug("handled service error",
		zap.String("type", string(domainErr.Type)),
		zap.String("message", domainErr.Message),
		zap.Any("details", domainErr.Details))
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
