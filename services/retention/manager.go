// Package retention tracks data items against retention policies and their
// deletion horizons.
package retention

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Policy is a data retention policy.
type Policy string

const (
	PolicyTransient Policy = "transient"  // delete immediately after processing
	PolicyShortTerm Policy = "short_term" // keep for 24 hours
	PolicyStandard  Policy = "standard"   // keep for 30 days
	PolicyExtended  Policy = "extended"   // keep for 90 days
	PolicyPermanent Policy = "permanent"  // keep indefinitely, requires justification
)

// ParsePolicy resolves a retention policy string; empty means standard.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return PolicyStandard, nil
	}
	switch Policy(strings.ToLower(s)) {
	case PolicyTransient, PolicyShortTerm, PolicyStandard, PolicyExtended, PolicyPermanent:
		return Policy(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown retention policy %q", s)
	}
}

// Category is the kind of data being retained.
type Category string

const (
	CategoryUserInput   Category = "user_input"
	CategoryModelOutput Category = "model_output"
	CategoryMetrics     Category = "metrics"
	CategoryAuditLogs   Category = "audit_logs"
	CategorySystemLogs  Category = "system_logs"
)

// defaultPolicies applies when no policy is requested for a category.
var defaultPolicies = map[Category]Policy{
	CategoryUserInput:   PolicyShortTerm,
	CategoryModelOutput: PolicyShortTerm,
	CategoryMetrics:     PolicyStandard,
	CategoryAuditLogs:   PolicyExtended,
	CategorySystemLogs:  PolicyStandard,
}

// Record describes a registered data item's retention state.
type Record struct {
	Category      Category
	Policy        Policy
	CreatedAt     time.Time
	Justification string
	DeleteAfter   time.Time // zero for permanent retention
}

// Recorder mirrors retention records to a secondary durability sink.
type Recorder interface {
	PersistRetentionRecord(id string, record map[string]interface{})
}

// Manager registers data items for retention tracking.
type Manager struct {
	mu       sync.Mutex
	registry map[string]Record
	recorder Recorder
	now      func() time.Time
}

// NewManager creates a retention manager mirroring records to the given
// recorder (may be a no-op sink).
func NewManager(recorder Recorder) *Manager {
	return &Manager{
		registry: make(map[string]Record),
		recorder: recorder,
		now:      time.Now,
	}
}

// Register tracks a data item under the given policy. An empty policy falls
// back to the category default. Permanent retention without a justification
// is rejected.
func (m *Manager) Register(dataID string, category Category, policy Policy, justification string) (Record, error) {
	if policy == "" {
		policy = defaultPolicies[category]
	}
	if policy == PolicyPermanent && justification == "" {
		return Record{}, fmt.Errorf("permanent retention requires justification")
	}

	now := m.now().UTC()
	rec := Record{
		Category:      category,
		Policy:        policy,
		CreatedAt:     now,
		Justification: justification,
		DeleteAfter:   deleteAfter(now, policy),
	}

	m.mu.Lock()
	m.registry[dataID] = rec
	m.mu.Unlock()

	m.recorder.PersistRetentionRecord(dataID, map[string]interface{}{
		"category":      string(rec.Category),
		"policy":        string(rec.Policy),
		"created_at":    rec.CreatedAt.Format(time.RFC3339),
		"justification": rec.Justification,
	})
	return rec, nil
}

// ShouldRetain reports whether a registered item is still within its
// retention horizon. Unregistered items are not retained.
func (m *Manager) ShouldRetain(dataID string) bool {
	m.mu.Lock()
	rec, ok := m.registry[dataID]
	m.mu.Unlock()

	if !ok {
		return false
	}
	if rec.Policy == PolicyPermanent {
		return true
	}
	return m.now().UTC().Before(rec.DeleteAfter)
}

// ExpiringWithin returns the ids of items whose retention horizon falls
// within the given duration.
func (m *Manager) ExpiringWithin(d time.Duration) []string {
	cutoff := m.now().UTC().Add(d)

	m.mu.Lock()
	defer m.mu.Unlock()

	var expiring []string
	for id, rec := range m.registry {
		if rec.Policy == PolicyPermanent {
			continue
		}
		if !rec.DeleteAfter.After(cutoff) {
			expiring = append(expiring, id)
		}
	}
	return expiring
}

func deleteAfter(now time.Time, policy Policy) time.Time {
	switch policy {
	case PolicyTransient:
		return now
	case PolicyShortTerm:
		return now.Add(24 * time.Hour)
	case PolicyStandard:
		return now.AddDate(0, 0, 30)
	case PolicyExtended:
		return now.AddDate(0, 0, 90)
	default: // permanent
		return time.Time{}
	}
}
