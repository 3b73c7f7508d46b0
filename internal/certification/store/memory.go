package store

import (
	"context"
	"slices"
	"sync"

	"clearance/internal/certification"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
)

// InMemory backs the certification ports for tests and local runs. It also
// resolves user display names for the audit recorder.
type InMemory struct {
	mu           sync.RWMutex
	employees    map[id.EmployeeID]certification.Employee
	records      map[id.EmployeeID][]certification.Record
	requirements map[id.OrganisationID][]string
	users        map[id.UserID]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		employees:    make(map[id.EmployeeID]certification.Employee),
		records:      make(map[id.EmployeeID][]certification.Record),
		requirements: make(map[id.OrganisationID][]string),
		users:        make(map[id.UserID]string),
	}
}

// PutEmployee inserts or replaces an employee.
func (s *InMemory) PutEmployee(e certification.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

// AddRecord appends a certification record version.
func (s *InMemory) AddRecord(r certification.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.EmployeeID] = append(s.records[r.EmployeeID], r)
}

// SetRequirements replaces an organisation's required types.
func (s *InMemory) SetRequirements(orgID id.OrganisationID, types []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements[orgID] = slices.Clone(types)
}

// PutUser registers a display name for an acting user.
func (s *InMemory) PutUser(userID id.UserID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = name
}

func (s *InMemory) FindEmployee(_ context.Context, employeeID id.EmployeeID) (*certification.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[employeeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemory) ListRecords(_ context.Context, employeeID id.EmployeeID, types []string) ([]certification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []certification.Record
	for _, r := range s.records[employeeID] {
		if len(types) == 0 || slices.Contains(types, r.Type) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemory) ListRequirements(_ context.Context, orgID id.OrganisationID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.requirements[orgID]), nil
}

// DisplayName implements audit.UserDirectory.
func (s *InMemory) DisplayName(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.users[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return name, nil
}
