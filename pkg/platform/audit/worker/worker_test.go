package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	id "clearance/pkg/domain"
	audit "clearance/pkg/platform/audit"
	"clearance/pkg/platform/audit/store/memory"
)

type switchableStore struct {
	mu    sync.Mutex
	err   error
	inner *memory.InMemoryStore
}

func (s *switchableStore) Append(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Append(ctx, e)
}

func (s *switchableStore) ListByEntity(ctx context.Context, t audit.EntityType, entityID string) ([]audit.Entry, error) {
	return s.inner.ListByEntity(ctx, t, entityID)
}

type captureSink struct {
	mu  sync.Mutex
	got []audit.Pending
	err error
}

func (c *captureSink) Publish(_ context.Context, p audit.Pending) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, p)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

type WorkerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *switchableStore
	buffer  *audit.RingBuffer
	sink    *captureSink
	metrics *audit.Metrics
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &switchableStore{inner: memory.NewInMemoryStore()}
	s.buffer = audit.NewRingBuffer(10)
	s.sink = &captureSink{}
	s.metrics = audit.NewMetrics(nil)
}

func (s *WorkerSuite) newWorker(opts ...Option) *Worker {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	}, opts...)
	return NewWorker(s.store, s.buffer, s.sink, opts...)
}

func (s *WorkerSuite) enqueue(attempts int) audit.Entry {
	user := id.UserID(uuid.New())
	entry := audit.Entry{
		ID:         id.NewAuditEntryID(),
		Action:     audit.ActionOverrideRevoked,
		EntityType: audit.EntityComplianceOverride,
		EntityID:   uuid.NewString(),
		UserID:     &user,
		CreatedAt:  time.Now().UTC(),
	}
	s.buffer.Enqueue(audit.Pending{Entry: entry, Attempts: attempts, LastError: "down"})
	return entry
}

func (s *WorkerSuite) TestDrainPersistsOnceStoreRecovers() {
	entry := s.enqueue(1)
	w := s.newWorker()

	s.Equal(1, w.Drain(s.ctx))
	s.Equal(0, s.buffer.Len())

	got, err := s.store.ListByEntity(s.ctx, audit.EntityComplianceOverride, entry.EntityID)
	s.Require().NoError(err)
	s.Len(got, 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Retried))
}

func (s *WorkerSuite) TestDrainRequeuesWhileAttemptsRemain() {
	s.store.err = errors.New("still down")
	s.enqueue(1)
	w := s.newWorker(WithMaxAttempts(3))

	s.Equal(0, w.Drain(s.ctx))
	s.Equal(1, s.buffer.Len())
	s.Equal(0, s.sink.count())

	pending := s.buffer.DequeueBatch(1)
	s.Require().Len(pending, 1)
	s.Equal(2, pending[0].Attempts)
	s.Equal("still down", pending[0].LastError)
}

func (s *WorkerSuite) TestDrainDeadLettersExhaustedEntries() {
	s.store.err = errors.New("still down")
	entry := s.enqueue(2)
	w := s.newWorker(WithMaxAttempts(3))

	w.Drain(s.ctx)

	s.Equal(0, s.buffer.Len())
	s.Require().Equal(1, s.sink.count())
	s.Equal(entry.ID, s.sink.got[0].Entry.ID)
	s.Equal(3, s.sink.got[0].Attempts)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.DeadLettered))
}

func (s *WorkerSuite) TestExhaustedEntryStaysBufferedWhenSinkFails() {
	s.store.err = errors.New("still down")
	s.sink.err = errors.New("kafka down")
	s.enqueue(5)
	w := s.newWorker(WithMaxAttempts(3))

	w.Drain(s.ctx)

	s.Equal(1, s.buffer.Len())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.SinkFailures))
}

func (s *WorkerSuite) TestFlushDeadLettersEverything() {
	s.enqueue(1)
	s.enqueue(1)
	w := s.newWorker(WithBatchSize(1))

	w.Flush(s.ctx)

	s.Equal(0, s.buffer.Len())
	s.Equal(2, s.sink.count())
}

func (s *WorkerSuite) TestRunFlushesOnShutdown() {
	s.store.err = errors.New("down")
	s.enqueue(1)
	w := s.newWorker(WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.FailNow("worker did not stop")
	}
	s.Equal(1, s.sink.count())
}
