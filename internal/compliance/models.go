// Package compliance decides whether an employee holds every certification
// an assignment requires. Evaluation is fail-closed: any failure produces a
// non-compliant result carrying a system_error blocking reason.
package compliance

import (
	"strings"
	"time"

	"clearance/internal/certification"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

// ContextType scopes an evaluation to a kind of assignment.
type ContextType string

const (
	ContextShift   ContextType = "shift"
	ContextClient  ContextType = "client"
	ContextService ContextType = "service"
	ContextGeneral ContextType = "general"
)

// ParseContextType validates a context type. Blank input means general.
func ParseContextType(s string) (ContextType, error) {
	switch ct := ContextType(strings.ToLower(strings.TrimSpace(s))); ct {
	case "":
		return ContextGeneral, nil
	case ContextShift, ContextClient, ContextService, ContextGeneral:
		return ct, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "context_type must be one of shift, client, service, general")
}

// StatusSystemError marks a blocking reason produced by a failed evaluation
// rather than by a certification record.
const StatusSystemError certification.Status = "system_error"

// TypeSystemError is the certification type carried by a system_error reason.
const TypeSystemError = "system_error"

// EvaluationContext is the caller-supplied scope of an evaluation.
type EvaluationContext struct {
	Type                   ContextType `json:"context_type"`
	ID                     string      `json:"context_id,omitempty"`
	RequiresDriving        bool        `json:"requires_driving,omitempty"`
	AdditionalRequirements []string    `json:"additional_requirements,omitempty"`
}

// Normalize defaults an empty context type to general and trims the id.
func (c EvaluationContext) Normalize() EvaluationContext {
	if c.Type == "" {
		c.Type = ContextGeneral
	}
	c.ID = strings.TrimSpace(c.ID)
	return c
}

// Issue pairs a certification type with its classified status.
type Issue struct {
	Type       string               `json:"type"`
	Status     certification.Status `json:"status"`
	ExpiryDate *time.Time           `json:"expiry_date,omitempty"`
	Detail     string               `json:"detail,omitempty"`
}

// OverrideDetails describes the override that made a result compliant.
type OverrideDetails struct {
	OverrideID     id.OverrideID `json:"override_id"`
	OverrideBy     id.UserID     `json:"override_by"`
	OverrideByName string        `json:"override_by_name"`
	Reason         string        `json:"reason"`
	ContextType    ContextType   `json:"context_type"`
	ContextID      string        `json:"context_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// Result is a point-in-time evaluation. It is never persisted.
type Result struct {
	EmployeeID      id.EmployeeID     `json:"employee_id"`
	Compliant       bool              `json:"compliant"`
	BlockingReasons []Issue           `json:"blocking_reasons"`
	ExpiringSoon    []Issue           `json:"expiring_soon"`
	OverrideActive  bool              `json:"override_active"`
	OverrideDetails *OverrideDetails  `json:"override_details,omitempty"`
	Context         EvaluationContext `json:"context"`
	EvaluatedAt     time.Time         `json:"evaluated_at"`
}

// HasSystemError reports whether the evaluation itself failed.
func (r *Result) HasSystemError() bool {
	for _, issue := range r.BlockingReasons {
		if issue.Status == StatusSystemError {
			return true
		}
	}
	return false
}

// ApplyOverride marks the result as overridden. A failed evaluation stays
// non-compliant.
func (r *Result) ApplyOverride(details OverrideDetails) {
	if r.HasSystemError() {
		return
	}
	r.OverrideActive = true
	r.OverrideDetails = &details
	r.Compliant = true
}

// MarkSystemError appends a system_error reason and forces the result
// non-compliant.
func (r *Result) MarkSystemError(detail string) {
	r.BlockingReasons = append(r.BlockingReasons, Issue{
		Type:   TypeSystemError,
		Status: StatusSystemError,
		Detail: detail,
	})
	r.Compliant = false
	r.OverrideActive = false
	r.OverrideDetails = nil
}
