package compliance

import (
	"time"

	"clearance/internal/certification"
	id "clearance/pkg/domain"
	strutil "clearance/pkg/platform/strings"
)

// Classify derives the effective status of an employee's most recent record
// for one certification type. Stored statuses that can only be decided by a
// reviewer (rejected, pending, missing) pass through; expiry dates override
// a stored valid status.
func Classify(record *certification.Record, now time.Time, window time.Duration) certification.Status {
	if record == nil {
		return certification.StatusMissing
	}
	switch record.Status {
	case certification.StatusRejected:
		return certification.StatusRejected
	case certification.StatusExpired:
		return certification.StatusExpired
	}
	if record.ExpiryDate != nil && record.ExpiryDate.Before(now) {
		return certification.StatusExpired
	}
	switch record.Status {
	case certification.StatusMissing:
		return certification.StatusMissing
	case certification.StatusPending:
		return certification.StatusPending
	}
	if record.ExpiryDate != nil && !record.ExpiryDate.After(now.Add(window)) {
		return certification.StatusExpiringSoon
	}
	return certification.StatusValid
}

// IsBlocking reports whether status alone makes an employee non-compliant.
func IsBlocking(status certification.Status) bool {
	switch status {
	case certification.StatusMissing, certification.StatusExpired, certification.StatusRejected, StatusSystemError:
		return true
	}
	return false
}

// BuildResult classifies the most recent record of every required type.
// Blocking and expiring lists follow the order of required.
func BuildResult(
	employeeID id.EmployeeID,
	required []string,
	records []certification.Record,
	evalCtx EvaluationContext,
	now time.Time,
	window time.Duration,
) *Result {
	latest := latestByType(records)

	result := &Result{
		EmployeeID:      employeeID,
		BlockingReasons: []Issue{},
		ExpiringSoon:    []Issue{},
		Context:         evalCtx,
		EvaluatedAt:     now,
	}
	for _, certType := range required {
		rec := latest[certType]
		status := Classify(rec, now, window)
		issue := Issue{Type: certType, Status: status}
		if rec != nil && rec.ExpiryDate != nil {
			expiry := *rec.ExpiryDate
			issue.ExpiryDate = &expiry
		}

		switch {
		case IsBlocking(status):
			result.BlockingReasons = append(result.BlockingReasons, issue)
		case status == certification.StatusExpiringSoon:
			result.ExpiringSoon = append(result.ExpiringSoon, issue)
		}
	}
	result.Compliant = len(result.BlockingReasons) == 0
	return result
}

// SystemErrorResult is the fail-closed result returned when evaluation
// cannot complete.
func SystemErrorResult(employeeID id.EmployeeID, evalCtx EvaluationContext, now time.Time, detail string) *Result {
	result := &Result{
		EmployeeID:   employeeID,
		ExpiringSoon: []Issue{},
		Context:      evalCtx,
		EvaluatedAt:  now,
	}
	result.MarkSystemError(detail)
	return result
}

// latestByType keeps the most recently updated record per normalised type.
// Ties keep the record listed first.
func latestByType(records []certification.Record) map[string]*certification.Record {
	latest := make(map[string]*certification.Record, len(records))
	for i := range records {
		rec := &records[i]
		certType := strutil.Normalize(rec.Type)
		if cur, ok := latest[certType]; !ok || rec.UpdatedAt.After(cur.UpdatedAt) {
			latest[certType] = rec
		}
	}
	return latest
}
