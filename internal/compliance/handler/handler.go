package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clearance/internal/compliance"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
	"clearance/pkg/platform/httputil"
	"clearance/pkg/requestcontext"
)

// Service defines the interface for compliance evaluation.
type Service interface {
	Evaluate(ctx context.Context, employeeID id.EmployeeID, evalCtx compliance.EvaluationContext) *compliance.Result
}

// Handler wires compliance endpoints to the evaluator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/evaluate", h.HandleEvaluate)
}

// HandleEvaluate handles POST /compliance/evaluate. Every response carries a
// result body; failures are rendered as non-compliant results so callers
// cannot read an error as "nothing blocking".
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if !requestcontext.Actor(ctx).IsAuthenticated() {
		WriteFailClosed(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, err := httputil.Decode[EvaluateRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid evaluation request",
			"request_id", requestID,
			"error", err,
		)
		WriteFailClosed(w, r, err)
		return
	}

	result := h.service.Evaluate(ctx, req.ParsedEmployeeID(), req.ParsedContext())

	h.logger.InfoContext(ctx, "compliance evaluated",
		"request_id", requestID,
		"employee_id", req.EmployeeID,
		"context_type", result.Context.Type,
		"compliant", result.Compliant,
		"blocking_reasons", len(result.BlockingReasons),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// WriteFailClosed renders a rejected request as a non-compliant result with
// a system_error reason and the error's status code.
func WriteFailClosed(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	result := compliance.SystemErrorResult(
		id.EmployeeID{},
		compliance.EvaluationContext{}.Normalize(),
		requestcontext.Now(ctx),
		"request rejected",
	)
	resp := FromResult(result)
	resp.Error = string(code)
	if code != dErrors.CodeInternal {
		resp.BlockingReasons[0].Detail = dErrors.MessageOf(err)
	}
	httputil.WriteJSON(w, httputil.StatusFor(code), resp)
}
