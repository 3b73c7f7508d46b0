package handler

import (
	"strings"

	"clearance/internal/compliance"
	id "clearance/pkg/domain"
	dErrors "clearance/pkg/domain-errors"
)

const (
	maxContextIDLength    = 128
	maxAdditionalRequired = 32
)

// EvaluateRequest is the body of POST /compliance/evaluate and
// POST /compliance/can-assign.
type EvaluateRequest struct {
	EmployeeID string          `json:"employee_id"`
	Context    *RequestContext `json:"context,omitempty"`

	// Parsed values (populated by Validate)
	parsedEmployeeID id.EmployeeID
	parsedContext    compliance.EvaluationContext
}

// RequestContext is the optional evaluation scope.
type RequestContext struct {
	ContextType            string   `json:"context_type"`
	ContextID              string   `json:"context_id,omitempty"`
	RequiresDriving        bool     `json:"requires_driving,omitempty"`
	AdditionalRequirements []string `json:"additional_requirements,omitempty"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
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

	if r.Context == nil {
		r.parsedContext = compliance.EvaluationContext{}.Normalize()
		return nil
	}

	if len(r.Context.ContextID) > maxContextIDLength {
		return dErrors.New(dErrors.CodeValidation, "context.context_id must be at most 128 characters")
	}
	if len(r.Context.AdditionalRequirements) > maxAdditionalRequired {
		return dErrors.New(dErrors.CodeValidation, "context.additional_requirements must have at most 32 entries")
	}
	contextType, err := compliance.ParseContextType(r.Context.ContextType)
	if err != nil {
		return err
	}
	r.parsedContext = compliance.EvaluationContext{
		Type:                   contextType,
		ID:                     r.Context.ContextID,
		RequiresDriving:        r.Context.RequiresDriving,
		AdditionalRequirements: r.Context.AdditionalRequirements,
	}.Normalize()
	return nil
}

// ParsedEmployeeID returns the validated employee id.
func (r *EvaluateRequest) ParsedEmployeeID() id.EmployeeID {
	return r.parsedEmployeeID
}

// ParsedContext returns the normalised evaluation context.
func (r *EvaluateRequest) ParsedContext() compliance.EvaluationContext {
	return r.parsedContext
}
