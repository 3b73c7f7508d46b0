package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clearance/internal/compliance"
	compliancehandler "clearance/internal/compliance/handler"
	"clearance/internal/gate"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
	"clearance/pkg/platform/httputil"
	"clearance/pkg/requestcontext"
)

// Service defines the interface for assignment decisions.
type Service interface {
	CanAssign(ctx context.Context, employeeID id.EmployeeID, evalCtx compliance.EvaluationContext) gate.Decision
}

// DecisionResponse is the body of POST /compliance/can-assign.
type DecisionResponse struct {
	Allowed bool                              `json:"allowed"`
	Result  *compliancehandler.ResultResponse `json:"result"`
	Error   string                            `json:"error,omitempty"`
}

// Handler serves the assignment gate.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a gate handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the gate endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/can-assign", h.HandleCanAssign)
}

// HandleCanAssign handles POST /compliance/can-assign. Rejected requests are
// answered with allowed=false and a system_error result.
func (h *Handler) HandleCanAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !requestcontext.Actor(ctx).IsAuthenticated() {
		writeDenied(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, err := httputil.Decode[compliancehandler.EvaluateRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid assignment request",
			"request_id", requestID,
			"error", err,
		)
		writeDenied(w, r, err)
		return
	}

	decision := h.service.CanAssign(ctx, req.ParsedEmployeeID(), req.ParsedContext())

	h.logger.InfoContext(ctx, "assignment decided",
		"request_id", requestID,
		"employee_id", req.EmployeeID,
		"allowed", decision.Allowed,
		"override_active", decision.Result.OverrideActive,
	)

	httputil.WriteJSON(w, http.StatusOK, DecisionResponse{
		Allowed: decision.Allowed,
		Result:  compliancehandler.FromResult(decision.Result),
	})
}

func writeDenied(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	result := compliance.SystemErrorResult(
		id.EmployeeID{},
		compliance.EvaluationContext{}.Normalize(),
		requestcontext.Now(r.Context()),
		"request rejected",
	)
	resp := compliancehandler.FromResult(result)
	if code != dErrors.CodeInternal {
		resp.BlockingReasons[0].Detail = dErrors.MessageOf(err)
	}
	httputil.WriteJSON(w, httputil.StatusFor(code), DecisionResponse{
		Allowed: false,
		Result:  resp,
		Error:   string(code),
	})
}
