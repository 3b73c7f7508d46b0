package domain

import (
	"github.com/google/uuid"

	dErrors "clearance/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so the compiler rejects passing an
// employee id where an organisation id is expected.
type (
	UserID         uuid.UUID
	EmployeeID     uuid.UUID
	OrganisationID uuid.UUID
	OverrideID     uuid.UUID
	AuditEntryID   uuid.UUID
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID parses a user id at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseEmployeeID parses an employee id at a trust boundary.
func ParseEmployeeID(s string) (EmployeeID, error) {
	u, err := parseUUID(s, "employee ID")
	return EmployeeID(u), err
}

// ParseOrganisationID parses an organisation id at a trust boundary.
func ParseOrganisationID(s string) (OrganisationID, error) {
	u, err := parseUUID(s, "organisation ID")
	return OrganisationID(u), err
}

// ParseOverrideID parses an override id at a trust boundary.
func ParseOverrideID(s string) (OverrideID, error) {
	u, err := parseUUID(s, "override ID")
	return OverrideID(u), err
}

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id EmployeeID) String() string     { return uuid.UUID(id).String() }
func (id OrganisationID) String() string { return uuid.UUID(id).String() }
func (id OverrideID) String() string     { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id EmployeeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id OrganisationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OverrideID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewOverrideID returns a random override id.
func NewOverrideID() OverrideID { return OverrideID(uuid.New()) }

// NewAuditEntryID returns a random audit entry id.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// Text encoding keeps ids as canonical UUID strings in JSON payloads.

func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id EmployeeID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id OrganisationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OverrideID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id AuditEntryID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EmployeeID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrganisationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OverrideID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditEntryID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
