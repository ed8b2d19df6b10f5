package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthenticated     ErrorType = "unauthenticated"
	ErrorTypeKeyDisabled         ErrorType = "key_disabled"
	ErrorTypeQuotaExceeded       ErrorType = "quota_exceeded"
	ErrorTypeRateLimited         ErrorType = "rate_limited"
	ErrorTypeUnsafeInput         ErrorType = "unsafe_input"
	ErrorTypeContentViolation    ErrorType = "content_violation"
	ErrorTypeComplianceViolation ErrorType = "compliance_violation"
	ErrorTypePayloadTooLarge     ErrorType = "payload_too_large"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeForbidden           ErrorType = "forbidden"
	ErrorTypeUpstreamTimeout     ErrorType = "upstream_timeout"
	ErrorTypeUpstreamError       ErrorType = "upstream_error"
	ErrorTypeBackendUnavailable  ErrorType = "backend_unavailable"
	ErrorTypeInternal            ErrorType = "internal"
)

// DomainError represents a structured error with additional context. Every
// rejection carries the failed stage (the error type) and, where applicable,
// the specific triggered rule tags in Details, so clients can remediate
// programmatically.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithIssues records the triggered rule tags on the error
func (e *DomainError) WithIssues(issues []string) *DomainError {
	return e.WithDetail("issues", issues)
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authentication errors
	ErrMissingAPIKey = NewDomainError(ErrorTypeUnauthenticated, "missing API key", nil)
	ErrInvalidAPIKey = NewDomainError(ErrorTypeUnauthenticated, "invalid API key", nil)
	ErrKeyDisabled   = NewDomainError(ErrorTypeKeyDisabled, "API key disabled", nil)
	ErrQuotaExceeded = NewDomainError(ErrorTypeQuotaExceeded, "quota exceeded", nil)

	// Throttling
	ErrRateLimited = NewDomainError(ErrorTypeRateLimited, "rate limit exceeded", nil)

	// Request screening errors
	ErrUnsafeInput         = NewDomainError(ErrorTypeUnsafeInput, "input failed security screening", nil)
	ErrContentViolation    = NewDomainError(ErrorTypeContentViolation, "content validation failed", nil)
	ErrComplianceViolation = NewDomainError(ErrorTypeComplianceViolation, "legal compliance check failed", nil)
	ErrPayloadTooLarge     = NewDomainError(ErrorTypePayloadTooLarge, "input too large", nil)

	// Request shape errors
	ErrInvalidRegion          = NewDomainError(ErrorTypeValidation, "invalid region specified", nil)
	ErrInvalidPrivacyLevel    = NewDomainError(ErrorTypeValidation, "invalid privacy level specified", nil)
	ErrInvalidRetentionPolicy = NewDomainError(ErrorTypeValidation, "invalid retention policy specified", nil)
	ErrModelNotAllowed        = NewDomainError(ErrorTypeValidation, "requested model not allowed", nil)

	// Permission errors
	ErrAdminRequired = NewDomainError(ErrorTypeForbidden, "admin access required", nil)

	// Upstream generation errors
	ErrUpstreamTimeout = NewDomainError(ErrorTypeUpstreamTimeout, "model processing timed out", nil)
	ErrUpstreamError   = NewDomainError(ErrorTypeUpstreamError, "model processing error", nil)

	// Backend errors (credential store fails closed)
	ErrBackendUnavailable = NewDomainError(ErrorTypeBackendUnavailable, "credential store unavailable", nil)
)

// Error type checking helper functions

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsAuthError reports whether an error is any of the client auth errors
// (missing/invalid credential, disabled key, exceeded quota).
func IsAuthError(err error) bool {
	return isType(err, ErrorTypeUnauthenticated) || isType(err, ErrorTypeKeyDisabled)
}

// IsQuotaError checks if an error is a quota error
func IsQuotaError(err error) bool {
	return isType(err, ErrorTypeQuotaExceeded)
}

// IsRateLimitedError checks if an error is a rate limit error
func IsRateLimitedError(err error) bool {
	return isType(err, ErrorTypeRateLimited)
}

// IsScreeningError reports whether an error came from one of the screening
// stages (security, content, or compliance).
func IsScreeningError(err error) bool {
	return isType(err, ErrorTypeUnsafeInput) ||
		isType(err, ErrorTypeContentViolation) ||
		isType(err, ErrorTypeComplianceViolation)
}

// IsUpstreamError reports whether the generation collaborator failed.
func IsUpstreamError(err error) bool {
	return isType(err, ErrorTypeUpstreamTimeout) || isType(err, ErrorTypeUpstreamError)
}
