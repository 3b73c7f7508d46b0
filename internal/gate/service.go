// Package gate answers whether an employee may be assigned to work. It
// combines a fail-closed compliance evaluation with active overrides.
package gate

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clearance/internal/compliance"
	"clearance/internal/gate/metrics"
	"clearance/internal/override"
	id "clearance/pkg/domain"
	"clearance/pkg/requestcontext"
)

const detailOverrideLookup = "override lookup failed"

// Evaluator computes fail-closed compliance results.
type Evaluator interface {
	Evaluate(ctx context.Context, employeeID id.EmployeeID, evalCtx compliance.EvaluationContext) *compliance.Result
}

// OverrideLister lists overrides in effect for an employee, most recent first.
type OverrideLister interface {
	ListActive(ctx context.Context, employeeID id.EmployeeID) ([]*override.Override, error)
}

// Decision is the gate's answer. Result explains it.
type Decision struct {
	Allowed bool               `json:"allowed"`
	Result  *compliance.Result `json:"result"`
}

// Service is the assignment gate.
type Service struct {
	evaluator Evaluator
	overrides OverrideLister
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates an assignment gate.
func New(evaluator Evaluator, overrides OverrideLister, opts ...Option) *Service {
	s := &Service{
		evaluator: evaluator,
		overrides: overrides,
		logger:    slog.Default(),
		tracer:    otel.Tracer("clearance/gate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	outcomeAllowed     = "allowed"
	outcomeOverride    = "override"
	outcomeDenied      = "denied"
	outcomeSystemError = "system_error"
)

// CanAssign decides whether employeeID may be assigned in evalCtx. A failed
// evaluation or override lookup always denies.
func (s *Service) CanAssign(ctx context.Context, employeeID id.EmployeeID, evalCtx compliance.EvaluationContext) Decision {
	evalCtx = evalCtx.Normalize()
	ctx, span := s.tracer.Start(ctx, "gate.CanAssign", trace.WithAttributes(
		attribute.String("employee_id", employeeID.String()),
		attribute.String("context_type", string(evalCtx.Type)),
	))
	defer span.End()

	decision, outcome := s.decide(ctx, employeeID, evalCtx)

	span.SetAttributes(
		attribute.Bool("allowed", decision.Allowed),
		attribute.String("outcome", outcome),
	)
	if outcome == outcomeSystemError {
		span.SetStatus(codes.Error, "assignment denied on failure")
	}
	s.metrics.IncDecision(outcome, string(evalCtx.Type))
	return decision
}

func (s *Service) decide(ctx context.Context, employeeID id.EmployeeID, evalCtx compliance.EvaluationContext) (Decision, string) {
	result := s.evaluator.Evaluate(ctx, employeeID, evalCtx)
	if result == nil {
		result = compliance.SystemErrorResult(employeeID, evalCtx, requestcontext.Now(ctx), "evaluation failed")
	}

	switch {
	case result.HasSystemError():
		return Decision{Allowed: false, Result: result}, outcomeSystemError
	case result.Compliant:
		return Decision{Allowed: true, Result: result}, outcomeAllowed
	}

	active, err := s.overrides.ListActive(ctx, employeeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "override lookup failed; denying assignment",
			"employee_id", employeeID.String(),
			"context_type", evalCtx.Type,
			"error", err,
		)
		result.MarkSystemError(detailOverrideLookup)
		return Decision{Allowed: false, Result: result}, outcomeSystemError
	}

	for _, o := range active {
		if !o.Matches(evalCtx) {
			continue
		}
		result.ApplyOverride(o.Details())
		s.logger.InfoContext(ctx, "assignment allowed by override",
			"employee_id", employeeID.String(),
			"override_id", o.ID.String(),
			"context_type", evalCtx.Type,
		)
		return Decision{Allowed: true, Result: result}, outcomeOverride
	}
	return Decision{Allowed: false, Result: result}, outcomeDenied
}
