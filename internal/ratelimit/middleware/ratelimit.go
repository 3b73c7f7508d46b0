package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clearance/internal/ratelimit"
	"clearance/pkg/platform/httputil"
	request "clearance/pkg/platform/middleware/request"
	"clearance/pkg/requestcontext"
)

// Metrics counts rate limit decisions.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics registers rate limit metrics on reg; nil yields unregistered
// collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_ratelimit_decisions_total",
			Help: "Rate limit checks by class and result (allowed, rejected, error)",
		}, []string{"class", "result"}),
	}
}

func (m *Metrics) inc(class, result string) {
	if m != nil {
		m.Decisions.WithLabelValues(class, result).Inc()
	}
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware throttles authenticated callers per user.
type Middleware struct {
	store    ratelimit.BucketStore
	logger   *slog.Logger
	metrics  *Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) { m.metrics = metrics }
}

func New(store ratelimit.BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// PerUser limits each authenticated actor to limit requests per window on
// class. It must run after auth.RequireAuth. Store errors let the request
// through.
func (m *Middleware) PerUser(class string, limit ratelimit.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || limit.Requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			userID := requestcontext.Actor(ctx).UserID.String()

			result, err := m.store.Allow(ctx, ratelimit.UserKey(class, userID), limit.Requests, limit.Window)
			if err != nil {
				m.metrics.inc(class, "error")
				m.logger.ErrorContext(ctx, "failed to check user rate limit",
					"request_id", request.GetRequestID(ctx),
					"user_id", userID,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.inc(class, "rejected")
				m.logger.WarnContext(ctx, "user rate limit exceeded",
					"request_id", request.GetRequestID(ctx),
					"user_id", userID,
					"class", class,
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, &ExceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "You have exceeded your request quota for this operation.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
			m.metrics.inc(class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
