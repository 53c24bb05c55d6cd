package assignment

import (
	"time"

	"tutela.org/internal/jurisdiction"
)

// Assignment lifecycle statuses. Unassignment is a soft status transition so
// the audit history of who supervised what is never lost.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// TargetKind discriminates what an assignment binds an officer to.
type TargetKind string

const (
	TargetIndividual TargetKind = "individual"
	TargetCadastral  TargetKind = "cadastral"
)

// Assignment binds a supervisor-managed officer to exactly one of: a
// supervised individual, or a cadastral cell described by scope and level.
type Assignment struct {
	ID           string              `json:"id"`
	OfficerID    string              `json:"officer_id"`
	Kind         TargetKind          `json:"kind"`
	IndividualID *string             `json:"individual_id,omitempty"`
	Level        *jurisdiction.Level `json:"level,omitempty"`
	Scope        jurisdiction.Scope  `json:"scope"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Individual is a supervised person. OwnerOfficerID is denormalized from the
// active assignment set and kept in sync by the engine.
type Individual struct {
	ID             string    `json:"id"`
	IdentityNumber string    `json:"identity_number"`
	FullName       string    `json:"full_name"`
	OwnerOfficerID *string   `json:"owner_officer_id,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Owner identifies the officer currently holding an individual, as reported
// by IsAssigned and by ownership-conflict errors.
type Owner struct {
	OfficerID      string `json:"officer_id"`
	IdentityNumber string `json:"identity_number"`
	FullName       string `json:"full_name"`
}

// ListFilter narrows assignment listings. String filters match substrings,
// id filters match exactly, and the created range is inclusive by calendar
// day in the service's fixed local zone.
type ListFilter struct {
	IdentityNumber string
	FullName       string
	CityID         *int64
	DistrictID     *int64
	WardID         *int64
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
}

// Page selects a result window. Zero values fall back to the defaults.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageNumber = 1
	defaultPageSize   = 10
)

// Normalize applies the default page policy: page 1, operation-default size.
func (p Page) Normalize() Page {
	if p.Number <= 0 {
		p.Number = defaultPageNumber
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// IndividualRow is a list projection joining an active individual assignment
// with display fields of the supervised person.
type IndividualRow struct {
	AssignmentID   string    `json:"assignment_id"`
	IndividualID   string    `json:"individual_id"`
	IdentityNumber string    `json:"identity_number"`
	FullName       string    `json:"full_name"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// CadastralRow is a list projection joining an active cadastral assignment
// with the names of the referenced scope entities.
type CadastralRow struct {
	AssignmentID string             `json:"assignment_id"`
	Level        jurisdiction.Level `json:"level"`
	Scope        jurisdiction.Scope `json:"scope"`
	CityName     string             `json:"city_name,omitempty"`
	DistrictName string             `json:"district_name,omitempty"`
	WardName     string             `json:"ward_name,omitempty"`
	AssignedAt   time.Time          `json:"assigned_at"`
}

// Event describes a completed assignment mutation, published to the live
// activity stream.
type Event struct {
	Op           string              `json:"op"`
	AssignmentID string              `json:"assignment_id"`
	OfficerID    string              `json:"officer_id"`
	IndividualID *string             `json:"individual_id,omitempty"`
	Level        *jurisdiction.Level `json:"level,omitempty"`
	Scope        jurisdiction.Scope  `json:"scope"`
	At           time.Time           `json:"at"`
}

// Event operations.
const (
	OpAssignedIndividual = "assignment.individual.created"
	OpAssignedCadastral  = "assignment.cadastral.created"
	OpUnassigned         = "assignment.removed"
)
