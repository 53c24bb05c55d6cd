package assignment

import (
	"context"
	"time"

	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
)

// Store aggregates the persistence contracts the engine depends on.
//
// InTx runs fn against a store whose writes either all commit or all roll
// back. The engine uses it for every mutation that touches more than one
// table, so the denormalized owner and officer flags can never drift from
// the assignment rows on a partial failure.
type Store interface {
	Assignments(ctx context.Context) AssignmentStore
	Officers(ctx context.Context) OfficerDirectory
	Individuals(ctx context.Context) IndividualStore
	ScopeRefs(ctx context.Context) ScopeReferenceStore
	InTx(ctx context.Context, fn func(Store) error) error
}

// AssignmentStore persists assignments. Insert must surface
// ErrAlreadyAssigned when the database-level uniqueness constraint over
// (officer, target, active) rejects the row: the constraint, not the
// application pre-check, is the authority under concurrent requests.
type AssignmentStore interface {
	Insert(ctx context.Context, a *Assignment) error
	FindActiveByID(ctx context.Context, id string) (*Assignment, error)
	ExistsActiveIndividual(ctx context.Context, officerID, individualID string) (bool, error)
	ExistsActiveCadastral(ctx context.Context, officerID string, scope jurisdiction.Scope) (bool, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	CountActiveByOfficer(ctx context.Context, officerID string) (int, error)
	ListIndividual(ctx context.Context, officerID string, f ListFilter, p Page) ([]IndividualRow, error)
	ListCadastral(ctx context.Context, officerID string, f ListFilter, p Page) ([]CadastralRow, error)
}

// OfficerDirectory is the engine's view of officer records.
type OfficerDirectory interface {
	FindActiveByID(ctx context.Context, id string) (*auth.Officer, error)
	SetHasActiveAssignment(ctx context.Context, officerID string, has bool) error
}

// IndividualStore manages supervised individuals and their denormalized
// owner field.
type IndividualStore interface {
	FindActiveByID(ctx context.Context, id string) (*Individual, error)
	SetOwner(ctx context.Context, individualID string, officerID *string) error
}

// ScopeReferenceStore answers existence checks for active scope entities.
type ScopeReferenceStore interface {
	CityExists(ctx context.Context, id int64) (bool, error)
	DistrictExists(ctx context.Context, id int64) (bool, error)
	WardExists(ctx context.Context, id int64) (bool, error)
}

// EventPublisher receives a notification after every successful mutation.
type EventPublisher interface {
	Publish(evt Event)
}
