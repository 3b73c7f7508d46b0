package gate

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Evaluator,OverrideLister

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"clearance/internal/certification"
	"clearance/internal/compliance"
	"clearance/internal/gate/metrics"
	"clearance/internal/gate/mocks"
	"clearance/internal/override"
	id "clearance/pkg/domain"
	"clearance/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	evaluator *mocks.MockEvaluator
	overrides *mocks.MockOverrideLister
	metrics   *metrics.Metrics
	service   *Service

	ctx        context.Context
	now        time.Time
	employeeID id.EmployeeID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.evaluator = mocks.NewMockEvaluator(ctrl)
	s.overrides = mocks.NewMockOverrideLister(ctrl)
	s.metrics = metrics.New(nil)
	s.service = New(s.evaluator, s.overrides,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.employeeID = id.EmployeeID(uuid.New())
}

func (s *ServiceSuite) blocked(evalCtx compliance.EvaluationContext) *compliance.Result {
	return compliance.BuildResult(s.employeeID, []string{"dbs_check"}, nil, evalCtx, s.now, 30*24*time.Hour)
}

func (s *ServiceSuite) override(contextType compliance.ContextType, contextID string) *override.Override {
	return &override.Override{
		ID:          id.NewOverrideID(),
		EmployeeID:  s.employeeID,
		Reason:      "urgent roster gap",
		ContextType: contextType,
		ContextID:   contextID,
		CreatedAt:   s.now.Add(-time.Hour),
		ExpiresAt:   s.now.Add(24 * time.Hour),
		IsActive:    true,
	}
}

func (s *ServiceSuite) decisions(outcome string) float64 {
	return testutil.ToFloat64(s.metrics.Decisions.WithLabelValues(outcome, string(compliance.ContextShift)))
}

func (s *ServiceSuite) TestCompliantIsAllowedWithoutOverrideLookup() {
	evalCtx := compliance.EvaluationContext{Type: compliance.ContextShift}
	s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, evalCtx).
		Return(&compliance.Result{EmployeeID: s.employeeID, Compliant: true, Context: evalCtx, EvaluatedAt: s.now})

	decision := s.service.CanAssign(s.ctx, s.employeeID, evalCtx)

	s.True(decision.Allowed)
	s.False(decision.Result.OverrideActive)
	s.Equal(1.0, s.decisions(outcomeAllowed))
}

func (s *ServiceSuite) TestSystemErrorIsNeverRescued() {
	evalCtx := compliance.EvaluationContext{Type: compliance.ContextShift}
	s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, evalCtx).
		Return(compliance.SystemErrorResult(s.employeeID, evalCtx, s.now, "evaluation timed out"))

	decision := s.service.CanAssign(s.ctx, s.employeeID, evalCtx)

	s.False(decision.Allowed)
	s.False(decision.Result.Compliant)
	s.True(decision.Result.HasSystemError())
	s.Equal(1.0, s.decisions(outcomeSystemError))
}

func (s *ServiceSuite) TestNilResultDenies() {
	evalCtx := compliance.EvaluationContext{Type: compliance.ContextShift}
	s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, evalCtx).Return(nil)

	decision := s.service.CanAssign(s.ctx, s.employeeID, evalCtx)

	s.False(decision.Allowed)
	s.Require().NotNil(decision.Result)
	s.True(decision.Result.HasSystemError())
}

func (s *ServiceSuite) TestNonCompliant() {
	shift := compliance.EvaluationContext{Type: compliance.ContextShift, ID: "shift-7"}

	s.Run("matching override allows", func() {
		o := s.override(compliance.ContextShift, "shift-7")
		s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, shift).Return(s.blocked(shift))
		s.overrides.EXPECT().ListActive(gomock.Any(), s.employeeID).Return([]*override.Override{o}, nil)

		decision := s.service.CanAssign(s.ctx, s.employeeID, shift)

		s.True(decision.Allowed)
		s.True(decision.Result.Compliant)
		s.True(decision.Result.OverrideActive)
		s.Require().NotNil(decision.Result.OverrideDetails)
		s.Equal(o.ID, decision.Result.OverrideDetails.OverrideID)
		// Blocking reasons stay visible on an overridden result.
		s.Require().Len(decision.Result.BlockingReasons, 1)
		s.Equal(certification.StatusMissing, decision.Result.BlockingReasons[0].Status)
	})

	s.Run("general override covers every context", func() {
		s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, shift).Return(s.blocked(shift))
		s.overrides.EXPECT().ListActive(gomock.Any(), s.employeeID).
			Return([]*override.Override{s.override(compliance.ContextGeneral, "")}, nil)

		s.True(s.service.CanAssign(s.ctx, s.employeeID, shift).Allowed)
	})

	s.Run("first matching override wins", func() {
		other := s.override(compliance.ContextShift, "shift-9")
		match := s.override(compliance.ContextShift, "")
		s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, shift).Return(s.blocked(shift))
		s.overrides.EXPECT().ListActive(gomock.Any(), s.employeeID).
			Return([]*override.Override{other, match}, nil)

		decision := s.service.CanAssign(s.ctx, s.employeeID, shift)

		s.True(decision.Allowed)
		s.Equal(match.ID, decision.Result.OverrideDetails.OverrideID)
	})

	s.Run("override scoped elsewhere denies", func() {
		s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, shift).Return(s.blocked(shift))
		s.overrides.EXPECT().ListActive(gomock.Any(), s.employeeID).
			Return([]*override.Override{
				s.override(compliance.ContextClient, ""),
				s.override(compliance.ContextShift, "shift-9"),
			}, nil)

		decision := s.service.CanAssign(s.ctx, s.employeeID, shift)

		s.False(decision.Allowed)
		s.False(decision.Result.Compliant)
		s.False(decision.Result.OverrideActive)
	})

	s.Run("no overrides denies", func() {
		s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, shift).Return(s.blocked(shift))
		s.overrides.EXPECT().ListActive(gomock.Any(), s.employeeID).Return(nil, nil)

		s.False(s.service.CanAssign(s.ctx, s.employeeID, shift).Allowed)
	})

	s.Run("lookup failure denies with system error", func() {
		s.evaluator.EXPECT().Evaluate(gomock.Any(), s.employeeID, shift).Return(s.blocked(shift))
		s.overrides.EXPECT().ListActive(gomock.Any(), s.employeeID).Return(nil, errors.New("connection reset"))

		decision := s.service.CanAssign(s.ctx, s.employeeID, shift)

		s.False(decision.Allowed)
		s.True(decision.Result.HasSystemError())
		last := decision.Result.BlockingReasons[len(decision.Result.BlockingReasons)-1]
		s.Equal(detailOverrideLookup, last.Detail)
	})

	s.Equal(3.0, s.decisions(outcomeOverride))
	s.Equal(2.0, s.decisions(outcomeDenied))
	s.Equal(1.0, s.decisions(outcomeSystemError))
}
