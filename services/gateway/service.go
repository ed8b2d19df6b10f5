package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/internal/metrics"
	"github.com/apifactory/llm-gateway/services"
	"github.com/apifactory/llm-gateway/services/audit"
	"github.com/apifactory/llm-gateway/services/keys"
	"github.com/apifactory/llm-gateway/services/legal"
	"github.com/apifactory/llm-gateway/services/model"
	"github.com/apifactory/llm-gateway/services/privacy"
	"github.com/apifactory/llm-gateway/services/ratelimit"
	"github.com/apifactory/llm-gateway/services/retention"
	"github.com/apifactory/llm-gateway/services/safety"
	"github.com/apifactory/llm-gateway/services/security"
)

// Config tunes the pipeline guardrails and model routing.
type Config struct {
	MaxInputChars     int
	MaxOutputChars    int
	ToxicityThreshold float64

	DefaultModel      string
	AllowedModels     []string
	ForceDefaultModel bool
	ModelTimeout      time.Duration
}

// Service wires the screening services into the prediction pipeline.
type Service struct {
	cfg       Config
	keys      *keys.Service
	limiter   ratelimit.Limiter
	security  *security.Validator
	safety    *safety.Validator
	legal     *legal.Validator
	privacy   *privacy.Manager
	retention *retention.Manager
	trail     *audit.Trail
	adapter   model.Adapter
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService assembles the pipeline from its collaborators.
func NewService(
	cfg Config,
	keySvc *keys.Service,
	limiter ratelimit.Limiter,
	privacyMgr *privacy.Manager,
	retentionMgr *retention.Manager,
	trail *audit.Trail,
	adapter model.Adapter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		keys:      keySvc,
		limiter:   limiter,
		security:  security.NewValidator(),
		safety:    safety.NewValidator(),
		legal:     legal.NewValidator(),
		privacy:   privacyMgr,
		retention: retentionMgr,
		trail:     trail,
		adapter:   adapter,
		metrics:   m,
		logger:    logger,
	}
}

// Predict runs the screening stages strictly in order; the first failing
// stage short-circuits the request. The audit entry is written before the
// model is invoked and is never rolled back.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	start := time.Now()
	resp, err := s.predict(ctx, req)
	s.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	s.metrics.RequestsTotal.WithLabelValues(outcome(err)).Inc()
	return resp, err
}

func (s *Service) predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := s.logger.With(zap.String("request_id", req.RequestID))

	// 1. Authenticate and meter the credential.
	rec, err := s.keys.Authorize(ctx, req.APIKey)
	if err != nil {
		log.Debug("request rejected at authentication", zap.Error(err))
		return nil, err
	}
	userID := rec.ID[:8]
	log = log.With(zap.String("user_id", userID))

	// 2. Throttle. The limiter key scopes the budget per credential, and
	// per client address when one is known.
	limiterKey := rec.ID
	if req.ClientIP != "" {
		limiterKey += ":" + req.ClientIP
	}
	if s.limiter.IsRateLimited(ctx, limiterKey) {
		s.metrics.RateLimits.Inc()
		log.Debug("request rejected by rate limiter")
		return nil, services.NewDomainError(services.ErrorTypeRateLimited, "rate limit exceeded", nil)
	}

	// 3. Input hardening.
	if ok, issues := s.security.ValidateInput(req.Input); !ok {
		log.Debug("request rejected by security screening", zap.Strings("issues", issues))
		return nil, services.NewDomainError(services.ErrorTypeUnsafeInput, "input failed security screening", nil).
			WithIssues(issues)
	}

	// 4. Size guardrail.
	if len(req.Input) > s.cfg.MaxInputChars {
		log.Debug("request rejected by size guardrail", zap.Int("length", len(req.Input)))
		return nil, services.NewDomainError(services.ErrorTypePayloadTooLarge, "input too large", nil).
			WithDetail("max_chars", s.cfg.MaxInputChars).
			WithDetail("actual_chars", len(req.Input))
	}

	// 5. Legal compliance for the declared region.
	region, err := legal.ParseRegion(req.Region)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeComplianceViolation, "invalid region specified", err).
			WithIssues([]string{"unknown_region"})
	}
	if ok, issues := s.legal.ValidateCompliance(req.Input, region, req.UserConsent); !ok {
		log.Debug("request rejected by compliance screening", zap.Strings("issues", issues))
		return nil, services.NewDomainError(services.ErrorTypeComplianceViolation, "legal compliance check failed", nil).
			WithIssues(issues)
	}

	// 6. Content screening and toxicity ceiling.
	if ok, issues := s.safety.Validate(req.Input); !ok {
		log.Debug("request rejected by content screening", zap.Strings("issues", issues))
		return nil, services.NewDomainError(services.ErrorTypeContentViolation, "content validation failed", nil).
			WithIssues(issues)
	}
	if score := s.safety.ToxicityScore(req.Input); score > s.cfg.ToxicityThreshold {
		log.Debug("request rejected for toxicity", zap.Float64("score", score))
		return nil, services.NewDomainError(services.ErrorTypeContentViolation, "content validation failed", nil).
			WithIssues([]string{"toxicity_threshold_exceeded"}).
			WithDetail("score", score)
	}

	// 7. Privacy classification, consent gate, anonymization.
	level, err := privacy.ParseLevel(req.PrivacyLevel)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid privacy level specified", err)
	}
	tier, sensitive := s.privacy.ClassifyTier(req.Input)
	if tier.RequiresConsent() && !req.UserConsent["data_processing"] {
		log.Debug("request rejected by privacy consent gate", zap.String("tier", string(tier)))
		return nil, services.NewDomainError(services.ErrorTypeComplianceViolation, "legal compliance check failed", nil).
			WithIssues([]string{"privacy_consent_missing"}).
			WithDetail("tier", string(tier))
	}
	modelInput, replaced := s.privacy.Anonymize(req.Input, level)

	// 8. Retention registration.
	policy, err := retention.ParsePolicy(req.RetentionPolicy)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid retention policy specified", err)
	}
	if _, err := s.retention.Register(req.RequestID, retention.CategoryUserInput, policy, req.RetentionJustification); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "retention registration failed", err)
	}

	// 9. Audit before invocation; the entry stands even if the model fails.
	s.trail.Append("predict", userID, req.RequestID, map[string]interface{}{
		"region":              string(region),
		"privacy_tier":        string(tier),
		"sensitive_elements":  sensitive,
		"anonymization_level": string(level),
		"anonymized_count":    replaced,
		"retention_policy":    string(policy),
		"input_length":        len(req.Input),
		"consent_given":       len(req.UserConsent) > 0,
	})

	// 10. Model invocation under the configured deadline.
	chosen, err := s.resolveModel(req.ModelOverride)
	if err != nil {
		return nil, err
	}
	modelCtx, cancel := context.WithTimeout(ctx, s.cfg.ModelTimeout)
	defer cancel()
	output, err := s.adapter.Generate(modelCtx, chosen, modelInput, req.Context)
	if err != nil {
		s.metrics.ModelErrors.Inc()
		log.Warn("model invocation failed", zap.String("model", chosen), zap.Error(err))
		return nil, err
	}

	// 11. Output capping. The limit counts characters, so the cut always
	// lands on a rune boundary.
	truncated := false
	if len(output) > s.cfg.MaxOutputChars {
		if runes := []rune(output); len(runes) > s.cfg.MaxOutputChars {
			output = string(runes[:s.cfg.MaxOutputChars])
			truncated = true
		}
	}

	log.Debug("request served",
		zap.String("model", chosen),
		zap.Bool("truncated", truncated),
		zap.Int64("usage", rec.Usage))
	return &PredictResponse{
		Output: output,
		Debug:  DebugInfo{Model: chosen, Truncated: truncated},
	}, nil
}

// resolveModel applies the override rules: force-default ignores overrides,
// otherwise the override must be on the allow list.
func (s *Service) resolveModel(override string) (string, error) {
	if override == "" || s.cfg.ForceDefaultModel {
		return s.cfg.DefaultModel, nil
	}
	for _, allowed := range s.cfg.AllowedModels {
		if override == allowed {
			return override, nil
		}
	}
	return "", services.NewDomainError(services.ErrorTypeValidation, "requested model not allowed", nil).
		WithDetail("model", override)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return string(domainErr.Type)
	}
	return string(services.ErrorTypeInternal)
}
