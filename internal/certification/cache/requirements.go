package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"clearance/internal/certification"
	id "clearance/pkg/domain"
)

const requirementsKeyPrefix = "clearance:requirements:"

// Metrics counts cache outcomes.
type Metrics struct {
	Lookups *prometheus.CounterVec
}

// NewMetrics registers cache metrics on reg; nil yields unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_requirements_cache_lookups_total",
			Help: "Requirement-set cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) inc(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

// RequirementCache is a read-through Redis cache in front of a
// RequirementStore. Redis errors degrade to the store; they never fail the
// lookup. Concurrent misses for one organisation share a single store read.
type RequirementCache struct {
	next    certification.RequirementStore
	client  redis.Cmdable
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the cache.
type Option func(*RequirementCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *RequirementCache) { c.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(c *RequirementCache) { c.metrics = m }
}

// NewRequirementCache wraps next. A nil client disables Redis but keeps
// request coalescing.
func NewRequirementCache(next certification.RequirementStore, client redis.Cmdable, ttl time.Duration, opts ...Option) *RequirementCache {
	c := &RequirementCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRequirements implements certification.RequirementStore.
func (c *RequirementCache) ListRequirements(ctx context.Context, orgID id.OrganisationID) ([]string, error) {
	key := requirementsKeyPrefix + orgID.String()

	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var types []string
			if jsonErr := json.Unmarshal(raw, &types); jsonErr == nil {
				c.metrics.inc("hit")
				return types, nil
			}
			c.logger.WarnContext(ctx, "discarding corrupt requirement cache entry", "organisation_id", orgID.String())
		case errors.Is(err, redis.Nil):
		default:
			c.metrics.inc("error")
			c.logger.WarnContext(ctx, "requirement cache read failed", "organisation_id", orgID.String(), "error", err)
		}
	}
	c.metrics.inc("miss")

	v, err, _ := c.group.Do(key, func() (any, error) {
		types, err := c.next.ListRequirements(ctx, orgID)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, orgID, types)
		return types, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

func (c *RequirementCache) store(ctx context.Context, key string, orgID id.OrganisationID, types []string) {
	if c.client == nil {
		return
	}
	if types == nil {
		types = []string{}
	}
	raw, err := json.Marshal(types)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "requirement cache write failed", "organisation_id", orgID.String(), "error", err)
	}
}

// Invalidate drops the cached set for an organisation.
func (c *RequirementCache) Invalidate(ctx context.Context, orgID id.OrganisationID) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, requirementsKeyPrefix+orgID.String()).Err()
}
