package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clearance/internal/certification"
	"clearance/internal/compliance/metrics"
	"clearance/internal/platform/config"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
	strutil "clearance/pkg/platform/strings"
	"clearance/pkg/requestcontext"
)

const defaultEvaluationTimeout = 5 * time.Second

// Caller-facing details of system_error reasons. Store errors are logged,
// never echoed.
const (
	detailEmployeeNotFound = "employee not found"
	detailTimeout          = "evaluation timed out"
	detailMalformed        = "certification data is malformed"
	detailFailed           = "evaluation failed"
)

// Service evaluates employees against their required certifications.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	employees    certification.EmployeeStore
	records      certification.RecordStore
	requirements *RequirementResolver
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	timeout      time.Duration
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeout bounds each evaluation. A timeout yields a system_error result.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates an evaluator.
func NewService(
	employees certification.EmployeeStore,
	records certification.RecordStore,
	requirements certification.RequirementStore,
	catalog *config.Catalog,
	opts ...Option,
) *Service {
	s := &Service{
		employees:    employees,
		records:      records,
		requirements: NewRequirementResolver(requirements, catalog),
		logger:       slog.Default(),
		tracer:       otel.Tracer("clearance/compliance"),
		timeout:      defaultEvaluationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate computes a compliance result. It never fails: every error,
// timeout or panic yields a non-compliant result with a system_error reason.
func (s *Service) Evaluate(ctx context.Context, employeeID id.EmployeeID, evalCtx EvaluationContext) (result *Result) {
	evalCtx = evalCtx.Normalize()
	now := requestcontext.Now(ctx)
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "compliance.Evaluate", trace.WithAttributes(
		attribute.String("employee_id", employeeID.String()),
		attribute.String("context_type", string(evalCtx.Type)),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "compliance evaluation panicked",
				"employee_id", employeeID.String(),
				"panic", fmt.Sprint(rec),
			)
			result = SystemErrorResult(employeeID, evalCtx, now, detailFailed)
		}
		outcome := outcomeOf(result)
		span.SetAttributes(
			attribute.String("outcome", outcome),
			attribute.Int("blocking_reasons", len(result.BlockingReasons)),
		)
		if outcome == outcomeSystemError {
			span.SetStatus(codes.Error, "evaluation failed closed")
		}
		s.metrics.IncrementOutcome(outcome, string(evalCtx.Type))
		s.metrics.ObserveEvaluateLatency(time.Since(start))
	}()

	result, err := s.evaluate(ctx, employeeID, evalCtx, now)
	if err != nil {
		span.RecordError(err)
		detail := failureDetail(err)
		s.logger.ErrorContext(ctx, "compliance evaluation failed closed",
			"employee_id", employeeID.String(),
			"context_type", evalCtx.Type,
			"detail", detail,
			"error", err,
		)
		return SystemErrorResult(employeeID, evalCtx, now, detail)
	}
	return result
}

func (s *Service) evaluate(ctx context.Context, employeeID id.EmployeeID, evalCtx EvaluationContext, now time.Time) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	employee, err := s.employees.FindEmployee(ctx, employeeID)
	s.metrics.ObserveFetchLatency("employee", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}

	ev, err := s.gatherEvidence(ctx, employee, evalCtx)
	if err != nil {
		return nil, err
	}
	if err := checkRecords(ev.records, ev.required); err != nil {
		return nil, err
	}
	return BuildResult(employeeID, ev.required, ev.records, evalCtx, now, s.requirements.Window()), nil
}

var errMalformedRecord = errors.New("malformed certification record")

// checkRecords rejects required records whose stored status is unknown.
func checkRecords(records []certification.Record, required []string) error {
	for _, r := range records {
		if !slices.Contains(required, strutil.Normalize(r.Type)) {
			continue
		}
		if !r.Status.IsValid() {
			return fmt.Errorf("%w: %s has status %q", errMalformedRecord, r.Type, r.Status)
		}
	}
	return nil
}

func failureDetail(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return detailEmployeeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return detailTimeout
	case errors.Is(err, errMalformedRecord):
		return detailMalformed
	default:
		return detailFailed
	}
}

const (
	outcomeCompliant    = "compliant"
	outcomeNonCompliant = "non_compliant"
	outcomeSystemError  = "system_error"
)

func outcomeOf(r *Result) string {
	switch {
	case r.HasSystemError():
		return outcomeSystemError
	case r.Compliant:
		return outcomeCompliant
	default:
		return outcomeNonCompliant
	}
}
