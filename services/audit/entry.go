// Package audit maintains a tamper-evident, hash-chained trail of gateway
// actions with per-resource integrity verification.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Entry is one immutable audit record. Entries for the same resource form a
// hash chain: each entry's PreviousHash is the EntryHash of the prior entry
// for that resource, empty for the first one.
type Entry struct {
	Timestamp    time.Time              `json:"timestamp"`
	Action       string                 `json:"action"`
	UserID       string                 `json:"user_id"`
	ResourceID   string                 `json:"resource_id"`
	Details      map[string]interface{} `json:"details"`
	PreviousHash string                 `json:"previous_hash"`
	EntryHash    string                 `json:"entry_hash"`
}

// computeHash returns the sha256 hex digest of the entry's canonical form.
// The hash material is JSON with lexicographically sorted keys, covering
// everything except EntryHash itself, so any recorded field change or chain
// rewrite is detectable.
func computeHash(e *Entry) string {
	material := map[string]interface{}{
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"action":        e.Action,
		"user_id":       e.UserID,
		"resource_id":   e.ResourceID,
		"details":       e.Details,
		"previous_hash": e.PreviousHash,
	}
	// Marshal sorts map keys, which is what makes the digest canonical.
	b, err := json.Marshal(material)
	if err != nil {
		// Details came from JSON or string maps; unmarshalable values are a
		// programming error.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
