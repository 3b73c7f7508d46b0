package handler

import (
	"time"

	"clearance/internal/compliance"
)

// ResultResponse is the HTTP shape of a compliance result.
type ResultResponse struct {
	EmployeeID      string                       `json:"employee_id"`
	Compliant       bool                         `json:"compliant"`
	BlockingReasons []compliance.Issue           `json:"blocking_reasons"`
	ExpiringSoon    []compliance.Issue           `json:"expiring_soon"`
	OverrideActive  bool                         `json:"override_active"`
	OverrideDetails *compliance.OverrideDetails  `json:"override_details,omitempty"`
	Context         compliance.EvaluationContext `json:"context"`
	EvaluatedAt     time.Time                    `json:"evaluated_at"`
	Error           string                       `json:"error,omitempty"`
}

// FromResult converts a domain Result to an HTTP response.
func FromResult(result *compliance.Result) *ResultResponse {
	resp := &ResultResponse{
		EmployeeID:      result.EmployeeID.String(),
		Compliant:       result.Compliant,
		BlockingReasons: result.BlockingReasons,
		ExpiringSoon:    result.ExpiringSoon,
		OverrideActive:  result.OverrideActive,
		OverrideDetails: result.OverrideDetails,
		Context:         result.Context,
		EvaluatedAt:     result.EvaluatedAt,
	}
	if resp.BlockingReasons == nil {
		resp.BlockingReasons = []compliance.Issue{}
	}
	if resp.ExpiringSoon == nil {
		resp.ExpiringSoon = []compliance.Issue{}
	}
	return resp
}
