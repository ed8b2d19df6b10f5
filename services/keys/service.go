// Package keys implements the credential store: hashed API key records with
// tier metadata, usage metering, and quota enforcement.
package keys

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/apifactory/llm-gateway/services"
	"github.com/apifactory/llm-gateway/services/security"
	"github.com/apifactory/llm-gateway/store"
	"go.uber.org/zap"
)

const keyPrefix = "api_key:"

// Record is the stored metadata for a credential, addressed by the one-way
// hash of the raw secret. Raw secrets are never persisted.
type Record struct {
	ID      string // sha256 hex of the raw secret
	Owner   string
	Tier    string
	IsAdmin bool
	Quota   *int64 // nil means unlimited
	Usage   int64
	Disabled bool
}

// Mirror receives best-effort copies of key records for secondary
// durability. Implementations must never block or fail the caller.
type Mirror interface {
	PersistKeyRecord(id string, fields map[string]string)
	DisableKeyRecord(id string)
}

// Config holds the bootstrap-credential escape hatch. The bootstrap key
// bypasses format validation and quota enforcement; it exists for local
// development and must stay disabled in a production posture.
type Config struct {
	BootstrapKey     string
	BootstrapEnabled bool
}

// Service manages credential records on a pluggable store backend.
type Service struct {
	store    store.Store
	mirror   Mirror
	security *security.Validator
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a key service on the given backend.
func NewService(st store.Store, mirror Mirror, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		mirror:   mirror,
		security: security.NewValidator(),
		cfg:      cfg,
		logger:   logger,
	}
}

// HashKey returns the storage identifier for a raw secret.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// UserID derives the short user identifier recorded in audit entries.
// It is a one-way derivation; the raw credential cannot be recovered.
func UserID(raw string) string {
	return HashKey(raw)[:8]
}

// Create hashes the secret, stores the metadata record, and mirrors it to
// the secondary sink. Returns the credential id (the hash).
func (s *Service) Create(ctx context.Context, raw, owner, tier string, isAdmin bool, quota *int64) (string, error) {
	id := HashKey(raw)
	fields := map[string]string{
		"owner":    owner,
		"tier":     tier,
		"is_admin": boolField(isAdmin),
		"quota":    quotaField(quota),
		"usage":    "0",
		"disabled": "0",
	}
	if err := s.store.Set(ctx, keyPrefix+id, fields); err != nil {
		return "", err
	}
	s.mirror.PersistKeyRecord(id, fields)
	return id, nil
}

// Lookup fetches the record for a raw secret. Returns (nil, nil) when no
// record exists.
func (s *Service) Lookup(ctx context.Context, raw string) (*Record, error) {
	id := HashKey(raw)
	fields, err := s.store.GetAll(ctx, keyPrefix+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return recordFromFields(id, fields), nil
}

// Disable marks the record for a raw secret disabled. Returns false when no
// record exists. Disabling is terminal; the record persists for audit.
func (s *Service) Disable(ctx context.Context, raw string) (bool, error) {
	id := HashKey(raw)
	err := s.store.SetField(ctx, keyPrefix+id, "disabled", "1")
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.mirror.DisableKeyRecord(id)
	return true, nil
}

// Rotate disables the old secret and creates a new record. The two steps
// are not atomic: a crash in between leaves the old key disabled and no new
// key, which is acceptable for an administrative action.
func (s *Service) Rotate(ctx context.Context, oldRaw, newRaw, owner, tier string, isAdmin bool, quota *int64) (string, error) {
	if _, err := s.Disable(ctx, oldRaw); err != nil {
		return "", err
	}
	return s.Create(ctx, newRaw, owner, tier, isAdmin, quota)
}

// IncrementUsage atomically increments the usage counter for a credential id
// and returns the new count. Returns store.ErrNotFound when the record
// vanished between lookup and increment.
func (s *Service) IncrementUsage(ctx context.Context, id string) (int64, error) {
	return s.store.IncrBy(ctx, keyPrefix+id, "usage", 1)
}

// Authorize validates a raw secret for request admission: the credential
// must exist, be enabled, and stay within quota after metering this call.
// Store failures fail closed — admission control is never bypassed silently.
func (s *Service) Authorize(ctx context.Context, raw string) (*Record, error) {
	if raw == "" {
		return nil, services.NewDomainError(services.ErrorTypeUnauthenticated, "missing API key", nil)
	}

	if s.cfg.BootstrapEnabled && raw == s.cfg.BootstrapKey {
		// Bypasses format checks and quota; not stored, not metered.
		return &Record{ID: HashKey(raw), Owner: "bootstrap", Tier: "bootstrap"}, nil
	}

	if ok, issues := s.security.ValidateAPIKey(raw); !ok {
		s.logger.Warn("API key format validation failed", zap.Strings("issues", issues))
		return nil, services.NewDomainError(services.ErrorTypeUnauthenticated, "invalid API key format", nil).
			WithIssues(issues)
	}

	id := HashKey(raw)
	fields, err := s.store.GetAll(ctx, keyPrefix+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, services.NewDomainError(services.ErrorTypeUnauthenticated, "invalid API key", nil)
	}
	if err != nil {
		s.logger.Error("credential store unreachable, failing closed", zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeBackendUnavailable, "credential store unavailable", err)
	}

	rec := recordFromFields(id, fields)
	if rec.Disabled {
		return nil, services.NewDomainError(services.ErrorTypeKeyDisabled, "API key disabled", nil)
	}

	usage, err := s.IncrementUsage(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// Record vanished between lookup and increment.
		return nil, services.NewDomainError(services.ErrorTypeUnauthenticated, "invalid API key", nil)
	}
	if err != nil {
		s.logger.Error("credential store unreachable, failing closed", zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeBackendUnavailable, "credential store unavailable", err)
	}
	rec.Usage = usage

	// Exactly quota uses are allowed; the increment and comparison rely on
	// the backend's atomic counter so concurrent calls cannot both observe
	// the same pre-increment value.
	if rec.Quota != nil && usage > *rec.Quota {
		return nil, services.NewDomainError(services.ErrorTypeQuotaExceeded, "quota exceeded", nil).
			WithDetail("usage", usage).
			WithDetail("quota", *rec.Quota)
	}

	return rec, nil
}

func recordFromFields(id string, fields map[string]string) *Record {
	rec := &Record{
		ID:       id,
		Owner:    fields["owner"],
		Tier:     fields["tier"],
		IsAdmin:  fields["is_admin"] == "1",
		Disabled: fields["disabled"] == "1",
	}
	if q := fields["quota"]; q != "" {
		if v, err := strconv.ParseInt(q, 10, 64); err == nil {
			rec.Quota = &v
		}
	}
	if u := fields["usage"]; u != "" {
		if v, err := strconv.ParseInt(u, 10, 64); err == nil {
			rec.Usage = v
		}
	}
	return rec
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func quotaField(quota *int64) string {
	if quota == nil {
		return ""
	}
	return strconv.FormatInt(*quota, 10)
}
