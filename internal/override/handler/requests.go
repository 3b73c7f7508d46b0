package handler

import (
	"strings"
	"time"

	"clearance/internal/compliance"
	"clearance/internal/override"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// CreateOverrideRequest is the body of POST /compliance/overrides.
// BlockedCertifications is accepted for compatibility with older clients;
// the stored snapshot always comes from a server-side evaluation.
type CreateOverrideRequest struct {
	EmployeeID            string             `json:"employee_id"`
	Reason                string             `json:"reason"`
	ExpiresAt             time.Time          `json:"expires_at"`
	ContextType           string             `json:"context_type"`
	ContextID             string             `json:"context_id,omitempty"`
	BlockedCertifications []compliance.Issue `json:"blocked_certifications,omitempty"`

	parsedEmployeeID id.EmployeeID
}

// Validate checks the request shape. Business rules (role, reason, expiry
// cap) are enforced by the service.
func (r *CreateOverrideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	// Size validation (fail fast)
	if len(r.Reason) > 4*override.MaxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason is too long")
	}
	if len(r.ContextID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "context_id must be at most 128 characters")
	}

	r.EmployeeID = strings.TrimSpace(r.EmployeeID)
	if r.EmployeeID == "" {
		return dErrors.New(dErrors.CodeValidation, "employee_id is required")
	}
	employeeID, err := id.ParseEmployeeID(r.EmployeeID)
	if err != nil {
		return err
	}
	r.parsedEmployeeID = employeeID

	if r.ExpiresAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "expires_at is required")
	}
	return nil
}

// ToCreateRequest builds the service input.
func (r *CreateOverrideRequest) ToCreateRequest() override.CreateRequest {
	return override.CreateRequest{
		EmployeeID:  r.parsedEmployeeID,
		Reason:      r.Reason,
		ExpiresAt:   r.ExpiresAt,
		ContextType: r.ContextType,
		ContextID:   r.ContextID,
	}
}
