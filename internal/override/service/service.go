package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clearance/internal/certification"
	"clearance/internal/compliance"
	"clearance/internal/override"
	"clearance/internal/override/metrics"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
	"clearance/pkg/platform/audit"
	"clearance/pkg/platform/sentinel"
	"clearance/pkg/requestcontext"
)

// Store persists overrides. Rows are inserted and deactivated, never deleted.
type Store interface {
	Insert(ctx context.Context, o *override.Override) error
	// FindByID returns sentinel.ErrNotFound for unknown ids.
	FindByID(ctx context.Context, overrideID id.OverrideID) (*override.Override, error)
	// ListActive returns overrides with IsActive set and ExpiresAt after now,
	// most recently created first.
	ListActive(ctx context.Context, employeeID id.EmployeeID, now time.Time) ([]*override.Override, error)
	// Deactivate returns sentinel.ErrNotFound for unknown ids and
	// sentinel.ErrInvalidState when the override is already inactive.
	Deactivate(ctx context.Context, overrideID id.OverrideID, revokedAt time.Time, revokedBy id.UserID) error
}

// EmployeeStore resolves the employee an override is granted for.
type EmployeeStore interface {
	FindEmployee(ctx context.Context, employeeID id.EmployeeID) (*certification.Employee, error)
}

// Evaluator computes the blocking set snapshotted into a new override.
type Evaluator interface {
	Evaluate(ctx context.Context, employeeID id.EmployeeID, evalCtx compliance.EvaluationContext) *compliance.Result
}

// AuditLogger records override state changes on a best-effort basis.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) bool
}

// AuditReader lists an override's audit trail.
type AuditReader interface {
	ListByEntity(ctx context.Context, entityType audit.EntityType, entityID string) ([]audit.Entry, error)
}

// Service creates, revokes and lists compliance overrides. It holds no
// per-call state.
type Service struct {
	store     Store
	employees EmployeeStore
	tx        StoreTx
	evaluator Evaluator
	auditor   AuditLogger
	trail     AuditReader
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

// WithAuditReader enables AuditTrail.
func WithAuditReader(r AuditReader) Option {
	return func(s *Service) { s.trail = r }
}

// WithTx sets the transaction runner. Defaults to a sharded in-memory lock
// over store and employees.
func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// New creates an override service.
func New(store Store, employees EmployeeStore, evaluator Evaluator, auditor AuditLogger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		employees: employees,
		evaluator: evaluator,
		auditor:   auditor,
		logger:    slog.Default(),
		tracer:    otel.Tracer("clearance/override"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store, employees)
	}
	return s
}

var errNotAuthorized = dErrors.New(dErrors.CodeForbidden, "not authorized to manage compliance overrides")

// Create grants an override after checking the actor's role, the reason,
// the 14 day expiry cap and the employee's organisation. The blocking set is
// evaluated server-side and frozen into the override.
func (s *Service) Create(ctx context.Context, actor id.Actor, req override.CreateRequest) (created *override.Override, err error) {
	ctx, span := s.tracer.Start(ctx, "override.Create", trace.WithAttributes(
		attribute.String("employee_id", req.EmployeeID.String()),
	))
	defer func() { s.finish(span, "create", err) }()

	if !actor.CanManageOverrides() {
		return nil, errNotAuthorized
	}

	now := requestcontext.Now(ctx).UTC()
	reason, contextType, err := validateCreate(req, now)
	if err != nil {
		return nil, err
	}
	evalCtx := compliance.EvaluationContext{Type: contextType, ID: req.ContextID}.Normalize()

	if _, err := s.employeeInOrganisation(ctx, s.employees, req.EmployeeID, actor.OrganisationID); err != nil {
		return nil, err
	}

	result := s.evaluator.Evaluate(ctx, req.EmployeeID, evalCtx)
	if result == nil || result.HasSystemError() {
		return nil, dErrors.New(dErrors.CodeInternal, "could not evaluate employee compliance")
	}

	o := &override.Override{
		ID:                    id.NewOverrideID(),
		OrganisationID:        actor.OrganisationID,
		EmployeeID:            req.EmployeeID,
		OverrideBy:            actor.UserID,
		OverrideByName:        actor.Name,
		Reason:                reason,
		BlockedCertifications: append([]compliance.Issue{}, result.BlockingReasons...),
		ContextType:           evalCtx.Type,
		ContextID:             evalCtx.ID,
		CreatedAt:             now,
		ExpiresAt:             req.ExpiresAt.UTC(),
		IsActive:              true,
	}

	err = s.tx.RunInTx(withShardKey(ctx, req.EmployeeID), func(ctx context.Context, stores TxStores) error {
		employee, err := s.employeeInOrganisation(ctx, stores.Employees, req.EmployeeID, actor.OrganisationID)
		if err != nil {
			return err
		}
		o.OrganisationID = employee.OrganisationID
		if err := stores.Overrides.Insert(ctx, o); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save override")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCreated()
	s.auditor.Log(ctx, audit.Entry{
		Action:         audit.ActionOverrideCreated,
		EntityType:     audit.EntityComplianceOverride,
		EntityID:       o.ID.String(),
		OrganisationID: &o.OrganisationID,
		UserID:         &actor.UserID,
		UserEmail:      actor.Email,
		UserName:       actor.Name,
		AfterValues: map[string]any{
			"override_id":            o.ID.String(),
			"employee_id":            o.EmployeeID.String(),
			"reason":                 o.Reason,
			"expires_at":             o.ExpiresAt.Format(time.RFC3339),
			"blocked_certifications": o.BlockedCertifications,
			"context_type":           string(o.ContextType),
			"context_id":             o.ContextID,
		},
	})
	s.logger.InfoContext(ctx, "compliance override created",
		"override_id", o.ID.String(),
		"employee_id", o.EmployeeID.String(),
		"override_by", actor.UserID.String(),
		"context_type", o.ContextType,
		"expires_at", o.ExpiresAt,
		"blocked", len(o.BlockedCertifications),
	)
	return o.Clone(), nil
}

// Revoke deactivates an override. The row is kept for the audit history.
func (s *Service) Revoke(ctx context.Context, actor id.Actor, overrideID id.OverrideID) (revoked *override.Override, err error) {
	ctx, span := s.tracer.Start(ctx, "override.Revoke", trace.WithAttributes(
		attribute.String("override_id", overrideID.String()),
	))
	defer func() { s.finish(span, "revoke", err) }()

	if !actor.CanManageOverrides() {
		return nil, errNotAuthorized
	}
	now := requestcontext.Now(ctx).UTC()

	existing, err := s.find(ctx, s.store, actor, overrideID)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(withShardKey(ctx, existing.EmployeeID), func(ctx context.Context, stores TxStores) error {
		current, err := s.find(ctx, stores.Overrides, actor, overrideID)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return dErrors.New(dErrors.CodeConflict, "override is already revoked")
		}
		if err := stores.Overrides.Deactivate(ctx, overrideID, now, actor.UserID); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "override is already revoked")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke override")
		}
		revoked = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	revoked.IsActive = false
	revoked.RevokedAt = &now
	revokedBy := actor.UserID
	revoked.RevokedBy = &revokedBy

	s.metrics.IncRevoked()
	s.auditor.Log(ctx, audit.Entry{
		Action:         audit.ActionOverrideRevoked,
		EntityType:     audit.EntityComplianceOverride,
		EntityID:       overrideID.String(),
		OrganisationID: &revoked.OrganisationID,
		UserID:         &actor.UserID,
		UserEmail:      actor.Email,
		UserName:       actor.Name,
		OldValues:      map[string]any{"override_active": true},
		AfterValues:    map[string]any{"override_active": false},
	})
	s.logger.InfoContext(ctx, "compliance override revoked",
		"override_id", overrideID.String(),
		"employee_id", revoked.EmployeeID.String(),
		"revoked_by", actor.UserID.String(),
	)
	return revoked, nil
}

// ListActive returns the employee's active, unexpired overrides, most recent
// first. Expiry is only ever enforced here.
func (s *Service) ListActive(ctx context.Context, employeeID id.EmployeeID) ([]*override.Override, error) {
	overrides, err := s.store.ListActive(ctx, employeeID, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list overrides")
	}
	return overrides, nil
}

// ListForActor is ListActive restricted to employees of the actor's
// organisation.
func (s *Service) ListForActor(ctx context.Context, actor id.Actor, employeeID id.EmployeeID) ([]*override.Override, error) {
	if !actor.IsAuthenticated() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.employeeInOrganisation(ctx, s.employees, employeeID, actor.OrganisationID); err != nil {
		return nil, err
	}
	return s.ListActive(ctx, employeeID)
}

// Get loads one override of the actor's organisation.
func (s *Service) Get(ctx context.Context, actor id.Actor, overrideID id.OverrideID) (*override.Override, error) {
	if !actor.IsAuthenticated() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.find(ctx, s.store, actor, overrideID)
}

// AuditTrail returns the override's audit entries, oldest first.
func (s *Service) AuditTrail(ctx context.Context, actor id.Actor, overrideID id.OverrideID) ([]audit.Entry, error) {
	if !actor.CanManageOverrides() {
		return nil, errNotAuthorized
	}
	if _, err := s.find(ctx, s.store, actor, overrideID); err != nil {
		return nil, err
	}
	if s.trail == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "audit trail unavailable")
	}
	entries, err := s.trail.ListByEntity(ctx, audit.EntityComplianceOverride, overrideID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return entries, nil
}

// find loads an override, hiding overrides of other organisations.
func (s *Service) find(ctx context.Context, store Store, actor id.Actor, overrideID id.OverrideID) (*override.Override, error) {
	o, err := store.FindByID(ctx, overrideID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load override")
	}
	if o.OrganisationID != actor.OrganisationID {
		return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
	}
	return o, nil
}

// employeeInOrganisation resolves an employee, hiding employees of other
// organisations.
func (s *Service) employeeInOrganisation(ctx context.Context, employees EmployeeStore, employeeID id.EmployeeID, orgID id.OrganisationID) (*certification.Employee, error) {
	employee, err := employees.FindEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load employee")
	}
	if employee.OrganisationID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return employee, nil
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	code := dErrors.CodeOf(err)
	s.metrics.IncRejected(operation, string(code))
	span.SetAttributes(attribute.String("error_code", string(code)))
	if code == dErrors.CodeInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, "override "+operation+" failed")
	}
}

func validateCreate(req override.CreateRequest, now time.Time) (string, compliance.ContextType, error) {
	if req.EmployeeID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeValidation, "employee_id is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(reason) > override.MaxReasonLength {
		return "", "", dErrors.New(dErrors.CodeValidation, "reason must be at most 1000 characters")
	}
	if !req.ExpiresAt.After(now) {
		return "", "", dErrors.New(dErrors.CodeValidation, "Override expiry must be in the future")
	}
	if req.ExpiresAt.After(now.Add(override.MaxDuration)) {
		return "", "", dErrors.New(dErrors.CodeValidation, "Override expiry cannot exceed 14 days")
	}
	contextType, err := compliance.ParseContextType(req.ContextType)
	if err != nil {
		return "", "", err
	}
	return reason, contextType, nil
}
