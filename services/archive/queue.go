package archive

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/services/audit"
)

const jobTimeout = 5 * time.Second

// Writer is the synchronous backend a Queue drains into.
type Writer interface {
	WriteKeyRecord(ctx context.Context, id string, fields map[string]string) error
	MarkKeyDisabled(ctx context.Context, id string) error
	WriteAuditEntry(ctx context.Context, e audit.Entry) error
	WriteRetentionRecord(ctx context.Context, id string, record map[string]interface{}) error
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Queue is an async Sink backed by a bounded job channel and a worker pool.
// When the channel is full, new jobs are dropped and counted rather than
// blocking the request path.
type Queue struct {
	writer  Writer
	jobs    chan job
	workers int
	logger  *zap.Logger
	onDrop  func()

	mu     sync.RWMutex
	closed bool

	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewQueue creates a queue; call Start before use. onDrop may be nil.
func NewQueue(writer Writer, size, workers int, onDrop func(), logger *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		writer:  writer,
		jobs:    make(chan job, size),
		workers: workers,
		logger:  logger,
		onDrop:  onDrop,
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop closes intake and waits up to timeout for queued jobs to drain.
func (q *Queue) Stop(timeout time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		q.logger.Warn("archive queue drain timed out", zap.Duration("timeout", timeout))
	}
}

// Dropped returns the number of jobs discarded because the queue was full
// or stopped.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		if err := j.run(ctx); err != nil {
			q.logger.Warn("archive write failed", zap.String("job", j.name), zap.Error(err))
		}
		cancel()
	}
}

func (q *Queue) enqueue(name string, run func(ctx context.Context) error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(name)
		return
	}
	select {
	case q.jobs <- job{name: name, run: run}:
	default:
		q.drop(name)
	}
}

func (q *Queue) drop(name string) {
	n := q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop()
	}
	q.logger.Warn("archive queue full, dropping job",
		zap.String("job", name), zap.Int64("dropped_total", n))
}

// PersistKeyRecord implements Sink.
func (q *Queue) PersistKeyRecord(id string, fields map[string]string) {
	q.enqueue("key_record", func(ctx context.Context) error {
		return q.writer.WriteKeyRecord(ctx, id, fields)
	})
}

// DisableKeyRecord implements Sink.
func (q *Queue) DisableKeyRecord(id string) {
	q.enqueue("key_disable", func(ctx context.Context) error {
		return q.writer.MarkKeyDisabled(ctx, id)
	})
}

// PersistAuditEntry implements Sink.
func (q *Queue) PersistAuditEntry(e audit.Entry) {
	q.enqueue("audit_entry", func(ctx context.Context) error {
		return q.writer.WriteAuditEntry(ctx, e)
	})
}

// PersistRetentionRecord implements Sink.
func (q *Queue) PersistRetentionRecord(id string, record map[string]interface{}) {
	q.enqueue("retention_record", func(ctx context.Context) error {
		return q.writer.WriteRetentionRecord(ctx, id, record)
	})
}
