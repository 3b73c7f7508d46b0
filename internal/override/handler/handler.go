package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clearance/internal/override"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
	"clearance/pkg/platform/audit"
	"clearance/pkg/platform/httputil"
	"clearance/pkg/requestcontext"
)

// Service defines the interface for override operations.
type Service interface {
	Create(ctx context.Context, actor id.Actor, req override.CreateRequest) (*override.Override, error)
	Revoke(ctx context.Context, actor id.Actor, overrideID id.OverrideID) (*override.Override, error)
	ListForActor(ctx context.Context, actor id.Actor, employeeID id.EmployeeID) ([]*override.Override, error)
	Get(ctx context.Context, actor id.Actor, overrideID id.OverrideID) (*override.Override, error)
	AuditTrail(ctx context.Context, actor id.Actor, overrideID id.OverrideID) ([]audit.Entry, error)
}

// Role is checked before the body or path is validated, so callers without
// override rights learn nothing about input rules.
var errForbidden = dErrors.New(dErrors.CodeForbidden, "not authorized to manage compliance overrides")

// Handler wires override endpoints to the override service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an override handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts override endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/overrides", h.HandleCreate)
	r.Post("/compliance/overrides/{override_id}/revoke", h.HandleRevoke)
	r.Get("/compliance/employees/{employee_id}/overrides", h.HandleList)
	r.Get("/compliance/overrides/{override_id}", h.HandleGet)
}

// RegisterAdmin mounts endpoints restricted to override managers. The caller
// wraps r with the role middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/compliance/overrides/{override_id}/audit", h.HandleAuditTrail)
}

// HandleCreate handles POST /compliance/overrides.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)
	if !actor.CanManageOverrides() {
		h.logFailure(ctx, "override create rejected", requestID, actor, errForbidden)
		writeMutationError(w, errForbidden)
		return
	}

	req, err := httputil.Decode[CreateOverrideRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid override request",
			"request_id", requestID,
			"error", err,
		)
		writeMutationError(w, err)
		return
	}

	created, err := h.service.Create(ctx, actor, req.ToCreateRequest())
	if err != nil {
		h.logFailure(ctx, "override create rejected", requestID, actor, err)
		writeMutationError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, MutationResponse{Success: true, Override: toResponse(created)})
}

// HandleRevoke handles POST /compliance/overrides/{override_id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)
	if !actor.CanManageOverrides() {
		h.logFailure(ctx, "override revoke rejected", requestID, actor, errForbidden)
		writeMutationError(w, errForbidden)
		return
	}

	overrideID, err := id.ParseOverrideID(chi.URLParam(r, "override_id"))
	if err != nil {
		writeMutationError(w, err)
		return
	}

	revoked, err := h.service.Revoke(ctx, actor, overrideID)
	if err != nil {
		h.logFailure(ctx, "override revoke rejected", requestID, actor, err)
		writeMutationError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MutationResponse{Success: true, Override: toResponse(revoked)})
}

// HandleList handles GET /compliance/employees/{employee_id}/overrides.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	employeeID, err := id.ParseEmployeeID(chi.URLParam(r, "employee_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	overrides, err := h.service.ListForActor(ctx, actor, employeeID)
	if err != nil {
		h.logFailure(ctx, "override list failed", requestID, actor, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(overrides))
}

// HandleGet handles GET /compliance/overrides/{override_id}. Revoked and
// expired overrides are returned too, with is_active reflecting storage.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	overrideID, err := id.ParseOverrideID(chi.URLParam(r, "override_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	o, err := h.service.Get(ctx, actor, overrideID)
	if err != nil {
		h.logFailure(ctx, "override lookup failed", requestcontext.RequestID(ctx), actor, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(o))
}

// HandleAuditTrail handles GET /compliance/overrides/{override_id}/audit.
func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.Actor(ctx)

	overrideID, err := id.ParseOverrideID(chi.URLParam(r, "override_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.AuditTrail(ctx, actor, overrideID)
	if err != nil {
		h.logFailure(ctx, "override audit trail failed", requestID, actor, err)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{Entries: entries})
}

func (h *Handler) logFailure(ctx context.Context, msg, requestID string, actor id.Actor, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"user_id", actor.UserID.String(),
		"error", err,
	)
}

// writeMutationError renders {success: false, error}. Internal errors carry a
// generic message.
func writeMutationError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		message = "internal error"
	}
	httputil.WriteJSON(w, httputil.StatusFor(code), MutationResponse{
		Success: false,
		Error:   message,
		Code:    string(code),
	})
}
