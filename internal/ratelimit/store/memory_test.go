package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clearance/internal/ratelimit"
)

const (
	testLimit  = 3
	testWindow = time.Minute
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	clock time.Time
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemory()
	s.store.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestAllow() {
	s.Run("requests up to the limit are allowed", func() {
		var result *ratelimit.Result
		for i := range testLimit {
			var err error
			result, err = s.store.Allow(s.ctx, "k:limit", testLimit, testWindow)
			s.Require().NoError(err)
			s.True(result.Allowed)
			s.Equal(testLimit-i-1, result.Remaining)
		}
		s.Equal(s.clock.Add(testWindow), result.ResetAt)
	})

	s.Run("request over the limit is denied with retry after", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "k:over", testLimit, testWindow)
			s.Require().NoError(err)
		}
		s.clock = s.clock.Add(20 * time.Second)

		result, err := s.store.Allow(s.ctx, "k:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(40, result.RetryAfter)
	})

	s.Run("window slides", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "k:slide", testLimit, testWindow)
			s.Require().NoError(err)
		}
		s.clock = s.clock.Add(testWindow + time.Second)

		result, err := s.store.Allow(s.ctx, "k:slide", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "k:a", testLimit, testWindow)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, "k:b", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemorySuite) TestReset() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "k:reset", testLimit, testWindow)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "k:reset"))

	result, err := s.store.Allow(s.ctx, "k:reset", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

type brokenStore struct{}

func (brokenStore) Allow(context.Context, string, int, time.Duration) (*ratelimit.Result, error) {
	return nil, errors.New("connection refused")
}

func (s *InMemorySuite) TestFallbackDegradesToSecondary() {
	var seen []error
	fb := NewFallback(brokenStore{}, s.store, func(_ context.Context, err error) { seen = append(seen, err) })

	result, err := fb.Allow(s.ctx, "k:fallback", testLimit, testWindow)

	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Len(seen, 1)
}
