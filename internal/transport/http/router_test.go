package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certstore "clearance/internal/certification/store"
	"clearance/internal/compliance"
	compliancehandler "clearance/internal/compliance/handler"
	"clearance/internal/gate"
	gatehandler "clearance/internal/gate/handler"
	overridehandler "clearance/internal/override/handler"
	overrideservice "clearance/internal/override/service"
	overridestore "clearance/internal/override/store"
	"clearance/internal/platform/config"
	"clearance/internal/platform/metrics"
	"clearance/internal/ratelimit"
	ratelimitmw "clearance/internal/ratelimit/middleware"
	ratelimitstore "clearance/internal/ratelimit/store"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/audit"
	auditmemory "clearance/pkg/platform/audit/store/memory"
	authmw "clearance/pkg/platform/middleware/auth"
	request "clearance/pkg/platform/middleware/request"
	"clearance/pkg/testutil"
)

// tokenTable maps bearer tokens to claims.
type tokenTable map[string]*authmw.JWTClaims

func (t tokenTable) ValidateToken(token string) (*authmw.JWTClaims, error) {
	claims, ok := t[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return claims, nil
}

func newTestRouter(t *testing.T, health map[string]HealthCheck) http.Handler {
	return newTestRouterWith(t, health, nil)
}

func newTestRouterWith(t *testing.T, health map[string]HealthCheck, limiter func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	certs := certstore.NewInMemory()
	audits := auditmemory.NewInMemoryStore()
	evaluator := compliance.NewService(certs, certs, certs, config.DefaultCatalog(), compliance.WithLogger(logger))
	overrides := overrideservice.New(overridestore.NewInMemory(), certs, evaluator, audit.NewRecorder(audits),
		overrideservice.WithAuditReader(audits))

	org := uuid.NewString()
	tokens := tokenTable{
		"admin-token":   {UserID: uuid.NewString(), OrganisationID: org, Role: string(id.RoleAdmin)},
		"manager-token": {UserID: uuid.NewString(), OrganisationID: org, Role: string(id.RoleManager)},
	}
	return NewRouter(Deps{
		Logger:          logger,
		Validator:       tokens,
		Metrics:         metrics.New().Handler(),
		Compliance:      compliancehandler.New(evaluator, logger),
		Gate:            gatehandler.New(gate.New(evaluator, overrides), logger),
		Overrides:       overridehandler.New(overrides, logger),
		Health:          health,
		OverrideLimiter: limiter,
	})
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	router := newTestRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/compliance/evaluate", map[string]any{"employee_id": uuid.NewString()})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
}

func TestRouter_UnknownEmployeeFailsClosed(t *testing.T) {
	router := newTestRouter(t, nil)

	req := withToken(testutil.NewJSONRequest(t, http.MethodPost, "/compliance/can-assign",
		map[string]any{"employee_id": uuid.NewString()}), "manager-token")
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[gatehandler.DecisionResponse](t, rr)
	assert.False(t, resp.Allowed)
	require.Len(t, resp.Result.BlockingReasons, 1)
	assert.Equal(t, compliance.StatusSystemError, resp.Result.BlockingReasons[0].Status)
}

func TestRouter_AuditTrailRequiresOverrideManager(t *testing.T) {
	router := newTestRouter(t, nil)
	path := "/compliance/overrides/" + uuid.NewString() + "/audit"

	rr := testutil.DoRequest(router, withToken(testutil.NewJSONRequest(t, http.MethodGet, path, nil), "manager-token"))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(router, withToken(testutil.NewJSONRequest(t, http.MethodGet, path, nil), "admin-token"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestRouter_Health(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","postgres":"ok"}`, rr.Body.String())
	})

	t.Run("a failing check degrades", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "degraded")
	})
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestRouter_OverrideRoutesAreThrottled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimitmw.New(ratelimitstore.NewInMemory(), logger).
		PerUser("override", ratelimit.Limit{Requests: 1, Window: time.Minute})
	router := newTestRouterWith(t, nil, limiter)
	path := "/compliance/employees/" + uuid.NewString() + "/overrides"

	rr := testutil.DoRequest(router, withToken(testutil.NewJSONRequest(t, http.MethodGet, path, nil), "admin-token"))
	assert.NotEqual(t, http.StatusTooManyRequests, rr.Code)

	rr = testutil.DoRequest(router, withToken(testutil.NewJSONRequest(t, http.MethodGet, path, nil), "admin-token"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// can-assign is not throttled
	for range 3 {
		rr = testutil.DoRequest(router, withToken(testutil.NewJSONRequest(t, http.MethodPost, "/compliance/can-assign",
			map[string]any{"employee_id": uuid.NewString()}), "admin-token"))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}
