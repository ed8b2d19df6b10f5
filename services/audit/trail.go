package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultMaxEntries = 1000

// Config controls trail capacity and the optional JSONL file sink.
type Config struct {
	MaxEntries int
	LogPath    string // empty disables the file sink
}

// Redactor transforms entry details before they are recorded, typically to
// strip PII. It runs before hashing so the chain attests the redacted form.
type Redactor func(details map[string]interface{}) map[string]interface{}

// Archiver receives best-effort copies of recorded entries for secondary
// durability. Implementations must never block or fail the caller.
type Archiver interface {
	PersistAuditEntry(e Entry)
}

// Trail is a bounded, append-only audit log. When full, the oldest entry is
// evicted; verification then attests the retained suffix of each resource's
// chain.
type Trail struct {
	mu       sync.Mutex
	buf      []*Entry
	head     int
	count    int
	lastHash string // hash of the newest entry across all resources

	redact  Redactor
	archive Archiver
	logger  *zap.Logger
	now     func() time.Time

	fileMu  sync.Mutex
	logFile *os.File
}

// NewTrail creates a trail. The redactor and archiver may be nil.
func NewTrail(cfg Config, redact Redactor, archive Archiver, logger *zap.Logger) *Trail {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	t := &Trail{
		buf:     make([]*Entry, cfg.MaxEntries),
		redact:  redact,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
	if cfg.LogPath != "" {
		t.openLogFile(cfg.LogPath)
	}
	return t
}

// The file sink is best effort: a failure to open or write never blocks the
// in-memory trail, which remains the source of truth for verification.
func (t *Trail) openLogFile(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.logger.Warn("audit log directory unavailable, file sink disabled",
			zap.String("path", path), zap.Error(err))
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.logger.Warn("audit log file unavailable, file sink disabled",
			zap.String("path", path), zap.Error(err))
		return
	}
	t.logFile = f
}

// Close releases the file sink, if any.
func (t *Trail) Close() error {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()
	if t.logFile == nil {
		return nil
	}
	err := t.logFile.Close()
	t.logFile = nil
	return err
}

// Append records an action against a resource and returns the stored entry.
// Details are redacted, then hashed into the resource's chain.
func (t *Trail) Append(action, userID, resourceID string, details map[string]interface{}) Entry {
	det := t.applyRedaction(details)

	t.mu.Lock()
	e := &Entry{
		Timestamp:    t.now().UTC(),
		Action:       action,
		UserID:       userID,
		ResourceID:   resourceID,
		Details:      det,
		PreviousHash: t.lastHashForLocked(resourceID),
	}
	e.EntryHash = computeHash(e)
	t.pushLocked(e)
	t.lastHash = e.EntryHash
	stored := *e
	t.mu.Unlock()

	t.writeLine(&stored)
	if t.archive != nil {
		t.archive.PersistAuditEntry(stored)
	}
	t.logger.Debug("audit entry recorded",
		zap.String("action", action),
		zap.String("resource_id", resourceID),
		zap.String("entry_hash", stored.EntryHash))
	return stored
}

// A panicking redactor must not lose the audit record; the unredacted copy
// is stored instead and the failure logged.
func (t *Trail) applyRedaction(details map[string]interface{}) (out map[string]interface{}) {
	copied := copyDetails(details)
	if t.redact == nil {
		return copied
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("detail redaction failed, recording unredacted details", zap.Any("panic", r))
			out = copyDetails(details)
		}
	}()
	return t.redact(copied)
}

func (t *Trail) pushLocked(e *Entry) {
	if t.count < len(t.buf) {
		t.buf[(t.head+t.count)%len(t.buf)] = e
		t.count++
		return
	}
	t.buf[t.head] = e
	t.head = (t.head + 1) % len(t.buf)
}

func (t *Trail) atLocked(i int) *Entry {
	return t.buf[(t.head+i)%len(t.buf)]
}

func (t *Trail) lastHashForLocked(resourceID string) string {
	for i := t.count - 1; i >= 0; i-- {
		if e := t.atLocked(i); e.ResourceID == resourceID {
			return e.EntryHash
		}
	}
	return ""
}

func (t *Trail) writeLine(e *Entry) {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()
	if t.logFile == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		t.logger.Warn("failed to encode audit entry for file sink", zap.Error(err))
		return
	}
	if _, err := t.logFile.Write(append(line, '\n')); err != nil {
		t.logger.Warn("failed to write audit entry to file sink", zap.Error(err))
	}
}

// Len returns the number of retained entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// LastHash returns the hash of the newest entry across all resources, empty
// when nothing has been recorded. Useful as a liveness cursor; verification
// works per resource chain.
func (t *Trail) LastHash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastHash
}

// VerifyResource re-derives the hash chain for one resource over the
// retained entries. The first retained entry is accepted even when its
// recorded predecessor was evicted: the trail attests the contiguous suffix
// it still holds. Returns ok and a list of problems found.
func (t *Trail) VerifyResource(resourceID string) (bool, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.verifyResourceLocked(resourceID)
}

func (t *Trail) verifyResourceLocked(resourceID string) (bool, []string) {
	var problems []string
	var prev *Entry
	for i := 0; i < t.count; i++ {
		e := t.atLocked(i)
		if e.ResourceID != resourceID {
			continue
		}
		if computeHash(e) != e.EntryHash {
			problems = append(problems, fmt.Sprintf("entry %s: recorded hash does not match content", shortHash(e.EntryHash)))
		}
		if prev != nil && e.PreviousHash != prev.EntryHash {
			problems = append(problems, fmt.Sprintf("entry %s: chain link broken", shortHash(e.EntryHash)))
		}
		prev = e
	}
	return len(problems) == 0, problems
}

// VerifyAll verifies every resource chain in the trail. Returns overall ok
// and per-resource problems for the chains that failed.
func (t *Trail) VerifyAll() (bool, map[string][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool)
	failed := make(map[string][]string)
	for i := 0; i < t.count; i++ {
		id := t.atLocked(i).ResourceID
		if seen[id] {
			continue
		}
		seen[id] = true
		if ok, problems := t.verifyResourceLocked(id); !ok {
			failed[id] = problems
		}
	}
	return len(failed) == 0, failed
}

// Filter selects entries; zero-valued fields match everything.
type Filter struct {
	UserID     string
	Action     string
	ResourceID string
	Start      time.Time
	End        time.Time
}

func (f Filter) matches(e *Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Query returns copies of the retained entries matching the filter, in
// insertion order.
func (t *Trail) Query(f Filter) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Entry
	for i := 0; i < t.count; i++ {
		e := t.atLocked(i)
		if !f.matches(e) {
			continue
		}
		c := *e
		c.Details = copyDetails(e.Details)
		out = append(out, c)
	}
	return out
}

func copyDetails(details map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
