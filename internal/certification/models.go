// Package certification holds the read-only view of employees and their
// certification records that compliance evaluation consumes. Records are
// written by upload and approval workflows elsewhere.
package certification

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "clearance/pkg/domain"
)

// Status is the lifecycle state of a certification record.
type Status string

const (
	StatusMissing      Status = "missing"
	StatusPending      Status = "pending"
	StatusValid        Status = "valid"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
	StatusRejected     Status = "rejected"
)

// IsValid reports whether s is a known stored status.
func (s Status) IsValid() bool {
	switch s {
	case StatusMissing, StatusPending, StatusValid, StatusExpiringSoon, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// Record is one certification held (or applied for) by an employee.
type Record struct {
	ID         uuid.UUID
	EmployeeID id.EmployeeID
	Type       string
	Status     Status
	ExpiryDate *time.Time
	UpdatedAt  time.Time
}

// Employee is the subset of the employee record evaluation needs.
type Employee struct {
	ID             id.EmployeeID
	OrganisationID id.OrganisationID
	FullName       string
}

// EmployeeStore resolves employees. Returns sentinel.ErrNotFound for unknown ids.
type EmployeeStore interface {
	FindEmployee(ctx context.Context, employeeID id.EmployeeID) (*Employee, error)
}

// RecordStore lists an employee's certification records of the given types,
// or of every type when types is empty. Every stored version is returned;
// callers pick the most recent.
type RecordStore interface {
	ListRecords(ctx context.Context, employeeID id.EmployeeID, types []string) ([]Record, error)
}

// RequirementStore lists the certification types an organisation requires.
// An organisation with no rows yields an empty slice, not an error.
type RequirementStore interface {
	ListRequirements(ctx context.Context, orgID id.OrganisationID) ([]string, error)
}
