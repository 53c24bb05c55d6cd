package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutela.org/internal/auth"
	"tutela.org/internal/ids"
	"tutela.org/internal/jurisdiction"
)

// listZone is the fixed local zone used for calendar-day creation filters.
var listZone = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}()

// Service is the assignment engine. It enforces the at-most-one-active-owner
// invariants and keeps the denormalized officer/individual fields in sync.
type Service struct {
	store       Store
	assignments AssignmentStore
	officers    OfficerDirectory
	individuals IndividualStore
	scopeRefs   ScopeReferenceStore
	events      EventPublisher
	now         func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithEvents wires the live activity stream publisher.
func WithEvents(pub EventPublisher) ServiceOption {
	return func(s *Service) {
		s.events = pub
	}
}

// NewService constructs the engine over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("assignment: store is required")
	}
	ctx := context.Background()
	svc := &Service{
		store:       store,
		assignments: store.Assignments(ctx),
		officers:    store.Officers(ctx),
		individuals: store.Individuals(ctx),
		scopeRefs:   store.ScopeRefs(ctx),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AssignIndividual binds an officer to a supervised individual. The caller
// must be a supervisor; the individual must not already have a different
// active owner; the (officer, individual) pair must not already be bound.
func (s *Service) AssignIndividual(ctx context.Context, caller auth.Principal, officerID, individualID string) (*Assignment, error) {
	if err := requireSupervisor(caller); err != nil {
		return nil, err
	}
	if officerID == "" || individualID == "" {
		return nil, fmt.Errorf("%w: officer_id and individual_id are required", ErrInvalidInput)
	}

	exists, err := s.assignments.ExistsActiveIndividual(ctx, officerID, individualID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyAssigned
	}

	officer, err := s.officers.FindActiveByID(ctx, officerID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrOfficerNotFound
		}
		return nil, err
	}
	individual, err := s.individuals.FindActiveByID(ctx, individualID)
	if err != nil {
		return nil, err
	}

	// Read-only ownership pre-check; the partial unique index on the
	// individual target still re-validates at insert time under races.
	if individual.OwnerOfficerID != nil && *individual.OwnerOfficerID != officerID {
		owner, err := s.ownerOf(ctx, *individual.OwnerOfficerID)
		if err != nil {
			return nil, err
		}
		return nil, &OwnedError{Owner: owner}
	}

	now := s.now().UTC()
	a := &Assignment{
		ID:           ids.New(),
		OfficerID:    officer.ID,
		Kind:         TargetIndividual,
		IndividualID: &individual.ID,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// One transaction: the assignment row, the denormalized owner and the
	// officer flag land together or not at all.
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Assignments(ctx).Insert(ctx, a); err != nil {
			return err
		}
		if err := tx.Individuals(ctx).SetOwner(ctx, individual.ID, &officer.ID); err != nil {
			return err
		}
		return tx.Officers(ctx).SetHasActiveAssignment(ctx, officer.ID, true)
	})
	if err != nil {
		return nil, err
	}
	s.publish(Event{
		Op:           OpAssignedIndividual,
		AssignmentID: a.ID,
		OfficerID:    officer.ID,
		IndividualID: a.IndividualID,
		At:           now,
	})
	return a, nil
}

// AssignCadastral binds an officer to a geographic cell at the given level.
func (s *Service) AssignCadastral(ctx context.Context, caller auth.Principal, officerID string, level jurisdiction.Level, scope jurisdiction.Scope) (*Assignment, error) {
	if err := requireSupervisor(caller); err != nil {
		return nil, err
	}
	if officerID == "" {
		return nil, fmt.Errorf("%w: officer_id is required", ErrInvalidInput)
	}
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}

	exists, err := s.assignments.ExistsActiveCadastral(ctx, officerID, scope)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyAssigned
	}

	officer, err := s.officers.FindActiveByID(ctx, officerID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrOfficerNotFound
		}
		return nil, err
	}
	// An officer may not be assigned to exactly their own home cell.
	if jurisdiction.Equal(officer.Scope, scope) {
		return nil, ErrSelfAssignment
	}
	if err := s.validateScopeRefs(ctx, level, scope); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lvl := level
	a := &Assignment{
		ID:        ids.New(),
		OfficerID: officer.ID,
		Kind:      TargetCadastral,
		Level:     &lvl,
		Scope:     scope,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Assignments(ctx).Insert(ctx, a); err != nil {
			return err
		}
		return tx.Officers(ctx).SetHasActiveAssignment(ctx, officer.ID, true)
	})
	if err != nil {
		return nil, err
	}
	s.publish(Event{
		Op:           OpAssignedCadastral,
		AssignmentID: a.ID,
		OfficerID:    officer.ID,
		Level:        a.Level,
		Scope:        scope,
		At:           now,
	})
	return a, nil
}

// Unassign soft-deletes an active assignment and recomputes the bound
// officer's aggregate flag from what actually remains.
func (s *Service) Unassign(ctx context.Context, caller auth.Principal, assignmentID string) error {
	if err := requireSupervisor(caller); err != nil {
		return err
	}
	a, err := s.assignments.FindActiveByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	err = s.store.InTx(ctx, func(tx Store) error {
		assignments := tx.Assignments(ctx)
		if err := assignments.SoftDelete(ctx, a.ID, now); err != nil {
			return err
		}
		if a.Kind == TargetIndividual && a.IndividualID != nil {
			if err := tx.Individuals(ctx).SetOwner(ctx, *a.IndividualID, nil); err != nil {
				return err
			}
		}
		remaining, err := assignments.CountActiveByOfficer(ctx, a.OfficerID)
		if err != nil {
			return err
		}
		return tx.Officers(ctx).SetHasActiveAssignment(ctx, a.OfficerID, remaining > 0)
	})
	if err != nil {
		return err
	}
	s.publish(Event{
		Op:           OpUnassigned,
		AssignmentID: a.ID,
		OfficerID:    a.OfficerID,
		IndividualID: a.IndividualID,
		Level:        a.Level,
		Scope:        a.Scope,
		At:           now,
	})
	return nil
}

// IsAssigned reports the officer currently owning the individual, or nil.
func (s *Service) IsAssigned(ctx context.Context, individualID string) (*Owner, error) {
	individual, err := s.individuals.FindActiveByID(ctx, individualID)
	if err != nil {
		return nil, err
	}
	if individual.OwnerOfficerID == nil {
		return nil, nil
	}
	owner, err := s.ownerOf(ctx, *individual.OwnerOfficerID)
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

// ListIndividualAssignments returns the officer's active individual
// assignments, newest first.
func (s *Service) ListIndividualAssignments(ctx context.Context, officerID string, f ListFilter, p Page) ([]IndividualRow, error) {
	if officerID == "" {
		return nil, fmt.Errorf("%w: officer_id is required", ErrInvalidInput)
	}
	return s.assignments.ListIndividual(ctx, officerID, normalizeFilter(f), p.Normalize())
}

// ListCadastralAssignments returns the officer's active cadastral
// assignments, newest first.
func (s *Service) ListCadastralAssignments(ctx context.Context, officerID string, f ListFilter, p Page) ([]CadastralRow, error) {
	if officerID == "" {
		return nil, fmt.Errorf("%w: officer_id is required", ErrInvalidInput)
	}
	return s.assignments.ListCadastral(ctx, officerID, normalizeFilter(f), p.Normalize())
}

func (s *Service) validateScopeRefs(ctx context.Context, level jurisdiction.Level, scope jurisdiction.Scope) error {
	if level.NarrowerThan(jurisdiction.Central) {
		if scope.CityID == nil {
			return ErrCityNotFound
		}
		ok, err := s.scopeRefs.CityExists(ctx, *scope.CityID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCityNotFound
		}
	}
	if level.NarrowerThan(jurisdiction.City) {
		if scope.DistrictID == nil {
			return ErrDistrictNotFound
		}
		ok, err := s.scopeRefs.DistrictExists(ctx, *scope.DistrictID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDistrictNotFound
		}
	}
	if level.NarrowerThan(jurisdiction.District) {
		if scope.WardID == nil {
			return ErrWardNotFound
		}
		ok, err := s.scopeRefs.WardExists(ctx, *scope.WardID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrWardNotFound
		}
	}
	return nil
}

func (s *Service) ownerOf(ctx context.Context, officerID string) (Owner, error) {
	officer, err := s.officers.FindActiveByID(ctx, officerID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			// Owner row exists but the officer was soft-deleted since;
			// surface the id so the conflict is still explainable.
			return Owner{OfficerID: officerID}, nil
		}
		return Owner{}, err
	}
	return Owner{
		OfficerID:      officer.ID,
		IdentityNumber: officer.IdentityNumber,
		FullName:       officer.FullName,
	}, nil
}

func (s *Service) publish(evt Event) {
	if s.events != nil {
		s.events.Publish(evt)
	}
}

func requireSupervisor(caller auth.Principal) error {
	if caller.Role != auth.RoleSupervisor {
		return fmt.Errorf("%w: supervisor role required", auth.ErrForbidden)
	}
	return nil
}

// normalizeFilter widens calendar-day bounds to half-open instants in the
// fixed local zone: from = start of day, to = start of the following day.
func normalizeFilter(f ListFilter) ListFilter {
	if f.CreatedFrom != nil {
		from := startOfDay(f.CreatedFrom.In(listZone))
		f.CreatedFrom = &from
	}
	if f.CreatedTo != nil {
		to := startOfDay(f.CreatedTo.In(listZone)).AddDate(0, 0, 1)
		f.CreatedTo = &to
	}
	return f
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
