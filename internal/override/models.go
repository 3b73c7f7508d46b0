// Package override holds time-bounded administrative exceptions that permit
// assigning an employee despite non-compliance. Overrides are never deleted:
// revocation flips IsActive and expiry is checked lazily on read.
package override

import (
	"time"

	"clearance/internal/compliance"
	id "clearance/pkg/domain"
)

const (
	// MaxDuration caps ExpiresAt relative to creation.
	MaxDuration = 14 * 24 * time.Hour
	// MaxReasonLength bounds the free-text justification.
	MaxReasonLength = 1000
)

// Override is a granted exception for one employee. BlockedCertifications
// is the blocking set captured at creation and is never re-evaluated.
type Override struct {
	ID                    id.OverrideID
	OrganisationID        id.OrganisationID
	EmployeeID            id.EmployeeID
	OverrideBy            id.UserID
	OverrideByName        string
	Reason                string
	BlockedCertifications []compliance.Issue
	ContextType           compliance.ContextType
	ContextID             string
	CreatedAt             time.Time
	ExpiresAt             time.Time
	IsActive              bool
	RevokedAt             *time.Time
	RevokedBy             *id.UserID
}

// IsEffective reports whether the override still grants anything at now.
func (o *Override) IsEffective(now time.Time) bool {
	return o.IsActive && o.ExpiresAt.After(now)
}

// Matches reports whether the override covers an evaluation context.
// A general override covers every context. A scoped override needs the same
// context type, and the same context id when it was granted for one.
func (o *Override) Matches(evalCtx compliance.EvaluationContext) bool {
	if o.ContextType == compliance.ContextGeneral {
		return true
	}
	if o.ContextType != evalCtx.Type {
		return false
	}
	return o.ContextID == "" || o.ContextID == evalCtx.ID
}

// Details is the summary attached to a result the override made compliant.
func (o *Override) Details() compliance.OverrideDetails {
	return compliance.OverrideDetails{
		OverrideID:     o.ID,
		OverrideBy:     o.OverrideBy,
		OverrideByName: o.OverrideByName,
		Reason:         o.Reason,
		ContextType:    o.ContextType,
		ContextID:      o.ContextID,
		CreatedAt:      o.CreatedAt,
		ExpiresAt:      o.ExpiresAt,
	}
}

// Clone returns a deep copy.
func (o *Override) Clone() *Override {
	c := *o
	c.BlockedCertifications = append([]compliance.Issue(nil), o.BlockedCertifications...)
	if o.RevokedAt != nil {
		t := *o.RevokedAt
		c.RevokedAt = &t
	}
	if o.RevokedBy != nil {
		u := *o.RevokedBy
		c.RevokedBy = &u
	}
	return &c
}

// CreateRequest is the caller input for granting an override.
type CreateRequest struct {
	EmployeeID  id.EmployeeID
	Reason      string
	ExpiresAt   time.Time
	ContextType string
	ContextID   string
}
