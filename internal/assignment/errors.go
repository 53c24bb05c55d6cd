package assignment

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyAssigned    = errors.New("assignment: already assigned")
	ErrIndividualOwned    = errors.New("assignment: individual already supervised")
	ErrSelfAssignment     = errors.New("assignment: officer cannot be assigned to own jurisdiction cell")
	ErrInvalidLevel       = errors.New("assignment: invalid jurisdiction level")
	ErrOfficerNotFound    = errors.New("assignment: officer not found")
	ErrIndividualNotFound = errors.New("assignment: individual not found")
	ErrAssignmentNotFound = errors.New("assignment: assignment not found")
	ErrCityNotFound       = errors.New("assignment: city not found")
	ErrDistrictNotFound   = errors.New("assignment: district not found")
	ErrWardNotFound       = errors.New("assignment: ward not found")
	ErrInvalidInput       = errors.New("assignment: invalid input")
)

// OwnedError reports an ownership conflict together with the current owner,
// so the edge can tell the caller who holds the individual today.
type OwnedError struct {
	Owner Owner
}

func (e *OwnedError) Error() string {
	return fmt.Sprintf("individual already supervised by officer %s (%s)",
		e.Owner.IdentityNumber, e.Owner.FullName)
}

func (e *OwnedError) Unwrap() error { return ErrIndividualOwned }
