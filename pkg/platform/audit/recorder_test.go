package audit_test

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
	"clearance/pkg/platform/circuit"
)

type flakyStore struct {
	mu    sync.Mutex
	err   error
	panic bool
	calls int
	inner *memory.InMemoryStore
}

func (f *flakyStore) Append(ctx context.Context, e audit.Entry) error {
	f.mu.Lock()
	f.calls++
	err, p := f.err, f.panic
	f.mu.Unlock()
	if p {
		panic("store exploded")
	}
	if err != nil {
		return err
	}
	return f.inner.Append(ctx, e)
}

func (f *flakyStore) ListByEntity(ctx context.Context, t audit.EntityType, entityID string) ([]audit.Entry, error) {
	return f.inner.ListByEntity(ctx, t, entityID)
}

func (f *flakyStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *flakyStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSink struct {
	mu        sync.Mutex
	published []audit.Pending
	err       error
}

func (s *recordingSink) Publish(_ context.Context, p audit.Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, p)
	return nil
}

type staticDirectory map[id.UserID]string

func (d staticDirectory) DisplayName(_ context.Context, u id.UserID) (string, error) {
	name, ok := d[u]
	if !ok {
		return "", errors.New("user not found")
	}
	return name, nil
}

type RecorderSuite struct {
	suite.Suite
	ctx     context.Context
	store   *flakyStore
	sink    *recordingSink
	metrics *audit.Metrics
	logger  *slog.Logger
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &flakyStore{inner: memory.NewInMemoryStore()}
	s.sink = &recordingSink{}
	s.metrics = audit.NewMetrics(nil)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *RecorderSuite) newEntry(user id.UserID) audit.Entry {
	return audit.Entry{
		Action:      audit.ActionOverrideCreated,
		EntityType:  audit.EntityComplianceOverride,
		EntityID:    uuid.NewString(),
		UserID:      &user,
		UserEmail:   "admin@example.com",
		AfterValues: map[string]any{"reason": "client emergency"},
	}
}

func (s *RecorderSuite) TestLogWritesEntry() {
	user := id.UserID(uuid.New())
	rec := audit.NewRecorder(s.store,
		audit.WithUserDirectory(staticDirectory{user: "Ada Admin"}),
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
	)

	entry := s.newEntry(user)
	s.Require().True(rec.Log(s.ctx, entry))

	got, err := s.store.ListByEntity(s.ctx, audit.EntityComplianceOverride, entry.EntityID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.False(got[0].ID.IsNil())
	s.False(got[0].CreatedAt.IsZero())
	s.Equal("Ada Admin", got[0].UserName)
	s.Equal("client emergency", got[0].AfterValues["reason"])
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Written.WithLabelValues(string(audit.ActionOverrideCreated))))
}

func (s *RecorderSuite) TestLogFallsBackToEmailWhenNameUnresolved() {
	rec := audit.NewRecorder(s.store,
		audit.WithUserDirectory(staticDirectory{}),
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
	)

	entry := s.newEntry(id.UserID(uuid.New()))
	s.Require().True(rec.Log(s.ctx, entry))

	got, err := s.store.ListByEntity(s.ctx, audit.EntityComplianceOverride, entry.EntityID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("admin@example.com", got[0].UserName)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.NameResolveMiss))
}

func (s *RecorderSuite) TestLogCopiesValues() {
	rec := audit.NewRecorder(s.store, audit.WithLogger(s.logger))

	entry := s.newEntry(id.UserID(uuid.New()))
	s.Require().True(rec.Log(s.ctx, entry))
	entry.AfterValues["reason"] = "tampered"

	got, err := s.store.ListByEntity(s.ctx, audit.EntityComplianceOverride, entry.EntityID)
	s.Require().NoError(err)
	s.Equal("client emergency", got[0].AfterValues["reason"])
}

func (s *RecorderSuite) TestStoreFailureIsBufferedNotReturned() {
	s.store.setErr(errors.New("connection refused"))
	rec := audit.NewRecorder(s.store,
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
		audit.WithDeadLetterSink(s.sink),
	)

	s.False(rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New()))))

	s.Equal(1, rec.Buffer().Len())
	s.Equal(float64(1), testutil.ToFloat64(
		s.metrics.WriteFailures.WithLabelValues(string(audit.ActionOverrideCreated), "store_error")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.BufferDepth))

	pending := rec.Buffer().DequeueBatch(1)
	s.Require().Len(pending, 1)
	s.Equal(1, pending[0].Attempts)
	s.Equal("connection refused", pending[0].LastError)
}

func (s *RecorderSuite) TestPanicIsRecovered() {
	s.store.panic = true
	rec := audit.NewRecorder(s.store, audit.WithLogger(s.logger))

	s.NotPanics(func() {
		s.False(rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New()))))
	})
	s.Equal(1, rec.Buffer().Len())
}

func (s *RecorderSuite) TestOverflowRoutesOldestToSink() {
	s.store.setErr(errors.New("down"))
	rec := audit.NewRecorder(s.store,
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
		audit.WithBuffer(audit.NewRingBuffer(1)),
		audit.WithDeadLetterSink(s.sink),
	)

	first := s.newEntry(id.UserID(uuid.New()))
	second := s.newEntry(id.UserID(uuid.New()))
	rec.Log(s.ctx, first)
	rec.Log(s.ctx, second)

	s.Require().Len(s.sink.published, 1)
	s.Equal(first.EntityID, s.sink.published[0].Entry.EntityID)
	s.Equal(1, rec.Buffer().Len())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.DeadLettered))
}

func (s *RecorderSuite) TestOverflowWithFailingSinkCountsDrop() {
	s.store.setErr(errors.New("down"))
	s.sink.err = errors.New("kafka down")
	rec := audit.NewRecorder(s.store,
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
		audit.WithBuffer(audit.NewRingBuffer(1)),
		audit.WithDeadLetterSink(s.sink),
	)

	rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New())))
	rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New())))

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Dropped))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.SinkFailures))
}

func (s *RecorderSuite) TestOpenCircuitSkipsStore() {
	s.store.setErr(errors.New("down"))
	now := time.Now()
	breaker := circuit.New("audit-store",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	rec := audit.NewRecorder(s.store,
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
		audit.WithCircuitBreaker(breaker),
	)

	rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New())))
	rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New())))
	s.Require().True(breaker.IsOpen())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitOpen))

	rec.Log(s.ctx, s.newEntry(id.UserID(uuid.New())))
	s.Equal(2, s.store.callCount(), "open circuit must not touch the store")
	s.Equal(3, rec.Buffer().Len())
	s.Equal(float64(1), testutil.ToFloat64(
		s.metrics.WriteFailures.WithLabelValues(string(audit.ActionOverrideCreated), "circuit_open")))
}

func (s *RecorderSuite) TestCancelledRequestStillWrites() {
	rec := audit.NewRecorder(s.store, audit.WithLogger(s.logger))
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	entry := s.newEntry(id.UserID(uuid.New()))
	s.True(rec.Log(ctx, entry))
}
