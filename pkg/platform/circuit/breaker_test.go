package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	clock time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) newBreaker(opts ...Option) *Breaker {
	opts = append([]Option{WithClock(func() time.Time { return s.clock })}, opts...)
	return New("audit-store", opts...)
}

func (s *BreakerSuite) TestStartsClosed() {
	b := s.newBreaker()
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
	s.Equal("audit-store", b.Name())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := s.newBreaker(WithFailureThreshold(3))

	for range 2 {
		useFallback, change := b.RecordFailure()
		s.False(useFallback)
		s.False(change.Opened)
	}
	useFallback, change := b.RecordFailure()

	s.True(useFallback)
	s.True(change.Opened)
	s.True(b.IsOpen())
	s.False(b.Allow())
}

func (s *BreakerSuite) TestSuccessResetsFailureStreak() {
	b := s.newBreaker(WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	_, change := b.RecordFailure()

	s.False(change.Opened)
	s.False(b.IsOpen())
}

func (s *BreakerSuite) TestCooldownAdmitsProbe() {
	b := s.newBreaker(WithFailureThreshold(1), WithCooldown(30*time.Second))
	b.RecordFailure()

	s.clock = s.clock.Add(29 * time.Second)
	s.False(b.Allow())

	s.clock = s.clock.Add(time.Second)
	s.True(b.Allow())
}

func (s *BreakerSuite) TestFailedProbeRestartsCooldown() {
	b := s.newBreaker(WithFailureThreshold(1), WithCooldown(10*time.Second))
	b.RecordFailure()
	s.clock = s.clock.Add(10 * time.Second)
	s.Require().True(b.Allow())

	useFallback, change := b.RecordFailure()

	s.True(useFallback)
	s.False(change.Opened, "already open")
	s.False(b.Allow())
}

func (s *BreakerSuite) TestClosesAfterSuccessThreshold() {
	b := s.newBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	usePrimary, change := b.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)

	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.Equal(StateClosed, b.State())
}

func (s *BreakerSuite) TestReset() {
	b := s.newBreaker(WithFailureThreshold(1))
	b.RecordFailure()

	b.Reset()

	s.False(b.IsOpen())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestConcurrentRecording() {
	b := New("audit-store", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	s.True(b.IsOpen())
}
