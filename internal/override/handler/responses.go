package handler

import (
	"time"

	"clearance/internal/compliance"
	"clearance/internal/override"
	"clearance/pkg/platform/audit"
)

// OverrideResponse is the HTTP shape of an override.
type OverrideResponse struct {
	ID                    string             `json:"id"`
	OrganisationID        string             `json:"organisation_id"`
	EmployeeID            string             `json:"employee_id"`
	OverrideBy            string             `json:"override_by"`
	OverrideByName        string             `json:"override_by_name"`
	Reason                string             `json:"reason"`
	BlockedCertifications []compliance.Issue `json:"blocked_certifications"`
	ContextType           string             `json:"context_type"`
	ContextID             string             `json:"context_id,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	ExpiresAt             time.Time          `json:"expires_at"`
	IsActive              bool               `json:"is_active"`
	RevokedAt             *time.Time         `json:"revoked_at,omitempty"`
	RevokedBy             string             `json:"revoked_by,omitempty"`
}

// MutationResponse is returned by create and revoke.
type MutationResponse struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Code     string            `json:"code,omitempty"`
	Override *OverrideResponse `json:"override,omitempty"`
}

// ListResponse is returned by GET /compliance/employees/{employee_id}/overrides.
type ListResponse struct {
	Overrides []*OverrideResponse `json:"overrides"`
}

// AuditResponse is returned by GET /compliance/overrides/{override_id}/audit.
type AuditResponse struct {
	Entries []audit.Entry `json:"entries"`
}

func toResponse(o *override.Override) *OverrideResponse {
	resp := &OverrideResponse{
		ID:                    o.ID.String(),
		OrganisationID:        o.OrganisationID.String(),
		EmployeeID:            o.EmployeeID.String(),
		OverrideBy:            o.OverrideBy.String(),
		OverrideByName:        o.OverrideByName,
		Reason:                o.Reason,
		BlockedCertifications: o.BlockedCertifications,
		ContextType:           string(o.ContextType),
		ContextID:             o.ContextID,
		CreatedAt:             o.CreatedAt,
		ExpiresAt:             o.ExpiresAt,
		IsActive:              o.IsActive,
		RevokedAt:             o.RevokedAt,
	}
	if resp.BlockedCertifications == nil {
		resp.BlockedCertifications = []compliance.Issue{}
	}
	if o.RevokedBy != nil {
		resp.RevokedBy = o.RevokedBy.String()
	}
	return resp
}

func toListResponse(overrides []*override.Override) *ListResponse {
	resp := &ListResponse{Overrides: make([]*OverrideResponse, 0, len(overrides))}
	for _, o := range overrides {
		resp.Overrides = append(resp.Overrides, toResponse(o))
	}
	return resp
}
