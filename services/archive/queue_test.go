package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/services/audit"
)

type stubWriter struct {
	mu        sync.Mutex
	keys      map[string]map[string]string
	disabled  []string
	entries   []audit.Entry
	retention map[string]map[string]interface{}
	err       error
	block     chan struct{} // when set, writes wait on it
}

func newStubWriter() *stubWriter {
	return &stubWriter{
		keys:      make(map[string]map[string]string),
		retention: make(map[string]map[string]interface{}),
	}
}

func (s *stubWriter) wait() error {
	if s.block != nil {
		<-s.block
	}
	return s.err
}

func (s *stubWriter) WriteKeyRecord(_ context.Context, id string, fields map[string]string) error {
	if err := s.wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = fields
	return nil
}

func (s *stubWriter) MarkKeyDisabled(_ context.Context, id string) error {
	if err := s.wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = append(s.disabled, id)
	return nil
}

func (s *stubWriter) WriteAuditEntry(_ context.Context, e audit.Entry) error {
	if err := s.wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubWriter) WriteRetentionRecord(_ context.Context, id string, record map[string]interface{}) error {
	if err := s.wait(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention[id] = record
	return nil
}

func TestQueue_DeliversAllJobKinds(t *testing.T) {
	w := newStubWriter()
	q := NewQueue(w, 16, 2, nil, zap.NewNop())
	q.Start()

	q.PersistKeyRecord("k1", map[string]string{"owner": "alice"})
	q.DisableKeyRecord("k1")
	q.PersistAuditEntry(audit.Entry{EntryHash: "h1", Action: "predict"})
	q.PersistRetentionRecord("d1", map[string]interface{}{"policy": "standard"})

	q.Stop(time.Second)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, map[string]string{"owner": "alice"}, w.keys["k1"])
	assert.Equal(t, []string{"k1"}, w.disabled)
	require.Len(t, w.entries, 1)
	assert.Equal(t, "h1", w.entries[0].EntryHash)
	assert.Contains(t, w.retention, "d1")
}

func TestQueue_DropsWhenFull(t *testing.T) {
	w := newStubWriter()
	w.block = make(chan struct{})

	drops := 0
	q := NewQueue(w, 1, 1, func() { drops++ }, zap.NewNop())
	q.Start()

	// First job occupies the single worker, second fills the buffer, the
	// rest must be dropped without blocking.
	for i := 0; i < 5; i++ {
		q.PersistKeyRecord("k", map[string]string{})
	}

	assert.GreaterOrEqual(t, q.Dropped(), int64(3))
	assert.GreaterOrEqual(t, drops, 3)

	close(w.block)
	q.Stop(time.Second)
}

func TestQueue_WriterErrorsDoNotPropagate(t *testing.T) {
	w := newStubWriter()
	w.err = errors.New("database on fire")
	q := NewQueue(w, 4, 1, nil, zap.NewNop())
	q.Start()

	// Must not panic or surface anywhere.
	q.PersistKeyRecord("k1", map[string]string{})
	q.Stop(time.Second)
}

func TestQueue_EnqueueAfterStopDrops(t *testing.T) {
	w := newStubWriter()
	q := NewQueue(w, 4, 1, nil, zap.NewNop())
	q.Start()
	q.Stop(time.Second)

	q.PersistKeyRecord("late", map[string]string{})
	assert.Equal(t, int64(1), q.Dropped())

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.NotContains(t, w.keys, "late")
}

func TestQueue_StopIsIdempotent(t *testing.T) {
	q := NewQueue(newStubWriter(), 4, 1, nil, zap.NewNop())
	q.Start()
	q.Stop(time.Second)
	q.Stop(time.Second)
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.PersistKeyRecord("k", nil)
	s.DisableKeyRecord("k")
	s.PersistAuditEntry(audit.Entry{})
	s.PersistRetentionRecord("d", nil)
}
