package jurisdiction

import (
	"errors"
	"fmt"
)

// Scope is the (city, district, ward) triple identifying a geographic cell.
// Fields are pointers because a level only pins the fields above it: a
// district-level scope carries city and district ids and leaves ward nil.
type Scope struct {
	CityID     *int64 `json:"city_id,omitempty"`
	DistrictID *int64 `json:"district_id,omitempty"`
	WardID     *int64 `json:"ward_id,omitempty"`
}

// Field names reported by RequiredFields, in broadest-first order.
const (
	FieldCity     = "city_id"
	FieldDistrict = "district_id"
	FieldWard     = "ward_id"
)

var ErrScopeIncomplete = errors.New("jurisdiction: scope missing required field")

// RequiredFields returns which scope fields must be set for a principal or
// assignment declared at the given level. Central requires none; each deeper
// level adds one more field.
func RequiredFields(level Level) []string {
	var fields []string
	if level.NarrowerThan(Central) {
		fields = append(fields, FieldCity)
	}
	if level.NarrowerThan(City) {
		fields = append(fields, FieldDistrict)
	}
	if level.NarrowerThan(District) {
		fields = append(fields, FieldWard)
	}
	return fields
}

// Validate checks that scope carries exactly the fields level requires set.
// Fields below the level may be nil; required fields must not be.
func Validate(level Level, scope Scope) error {
	if !level.Valid() {
		return fmt.Errorf("jurisdiction: invalid level %d", int(level))
	}
	for _, field := range RequiredFields(level) {
		switch field {
		case FieldCity:
			if scope.CityID == nil {
				return fmt.Errorf("%w: %s", ErrScopeIncomplete, FieldCity)
			}
		case FieldDistrict:
			if scope.DistrictID == nil {
				return fmt.Errorf("%w: %s", ErrScopeIncomplete, FieldDistrict)
			}
		case FieldWard:
			if scope.WardID == nil {
				return fmt.Errorf("%w: %s", ErrScopeIncomplete, FieldWard)
			}
		}
	}
	return nil
}

// Covers reports whether a caller bound at callerLevel with caller scope may
// act on the target scope. Central covers everything. Otherwise every field
// the caller's level fixes must match the target exactly; fields below the
// caller's level are unbound and grant implicit access to anything under them.
func Covers(callerLevel Level, caller, target Scope) bool {
	if callerLevel.BroaderOrEqual(Central) {
		return true
	}
	if callerLevel.NarrowerThan(Central) && !fieldsEqual(caller.CityID, target.CityID) {
		return false
	}
	if callerLevel.NarrowerThan(City) && !fieldsEqual(caller.DistrictID, target.DistrictID) {
		return false
	}
	if callerLevel.NarrowerThan(District) && !fieldsEqual(caller.WardID, target.WardID) {
		return false
	}
	return true
}

// Equal reports whether two scopes pin exactly the same cell, field for field.
func Equal(a, b Scope) bool {
	return fieldsEqual(a.CityID, b.CityID) &&
		fieldsEqual(a.DistrictID, b.DistrictID) &&
		fieldsEqual(a.WardID, b.WardID)
}

func fieldsEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
