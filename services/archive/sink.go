// Package archive mirrors key, audit, and retention records to a secondary
// store. Mirroring is fire-and-forget: the request path never blocks on or
// fails because of the archive.
package archive

import (
	"github.com/apifactory/llm-gateway/services/audit"
)

// Sink is the fire-and-forget mirror the gateway services write through.
// Methods return nothing; delivery is best effort.
type Sink interface {
	PersistKeyRecord(id string, fields map[string]string)
	DisableKeyRecord(id string)
	PersistAuditEntry(e audit.Entry)
	PersistRetentionRecord(id string, record map[string]interface{})
}

// NopSink discards everything. Used when archiving is disabled.
type NopSink struct{}

func (NopSink) PersistKeyRecord(string, map[string]string)            {}
func (NopSink) DisableKeyRecord(string)                               {}
func (NopSink) PersistAuditEntry(audit.Entry)                         {}
func (NopSink) PersistRetentionRecord(string, map[string]interface{}) {}
