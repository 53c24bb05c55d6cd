package jurisdiction

import (
	"errors"
	"testing"
)

func ptr(v int64) *int64 { return &v }

func TestRequiredFields(t *testing.T) {
	cases := []struct {
		level Level
		want  []string
	}{
		{Central, nil},
		{City, []string{FieldCity}},
		{District, []string{FieldCity, FieldDistrict}},
		{Ward, []string{FieldCity, FieldDistrict, FieldWard}},
	}
	for _, tc := range cases {
		got := RequiredFields(tc.level)
		if len(got) != len(tc.want) {
			t.Fatalf("RequiredFields(%s)=%v, want %v", tc.level.Label(), got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("RequiredFields(%s)=%v, want %v", tc.level.Label(), got, tc.want)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Central, Scope{}); err != nil {
		t.Fatalf("central scope should not require fields: %v", err)
	}
	if err := Validate(Ward, Scope{CityID: ptr(5), DistrictID: ptr(9), WardID: ptr(3)}); err != nil {
		t.Fatalf("fully pinned ward scope should validate: %v", err)
	}
	err := Validate(Ward, Scope{CityID: ptr(5), DistrictID: ptr(9)})
	if !errors.Is(err, ErrScopeIncomplete) {
		t.Fatalf("expected ErrScopeIncomplete, got %v", err)
	}
	err = Validate(District, Scope{CityID: ptr(5)})
	if !errors.Is(err, ErrScopeIncomplete) {
		t.Fatalf("expected ErrScopeIncomplete for missing district, got %v", err)
	}
	if err := Validate(Level(9), Scope{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestCovers(t *testing.T) {
	cases := []struct {
		name        string
		callerLevel Level
		caller      Scope
		target      Scope
		want        bool
	}{
		{
			name:        "central covers everything",
			callerLevel: Central,
			target:      Scope{CityID: ptr(1), DistrictID: ptr(2), WardID: ptr(3)},
			want:        true,
		},
		{
			name:        "city caller reaches any district under its city",
			callerLevel: City,
			caller:      Scope{CityID: ptr(5)},
			target:      Scope{CityID: ptr(5), DistrictID: ptr(9)},
			want:        true,
		},
		{
			name:        "city caller denied on foreign city",
			callerLevel: City,
			caller:      Scope{CityID: ptr(5)},
			target:      Scope{CityID: ptr(6)},
			want:        false,
		},
		{
			name:        "district caller denied on sibling district",
			callerLevel: District,
			caller:      Scope{CityID: ptr(5), DistrictID: ptr(9)},
			target:      Scope{CityID: ptr(5), DistrictID: ptr(10)},
			want:        false,
		},
		{
			name:        "district caller reaches wards under its district",
			callerLevel: District,
			caller:      Scope{CityID: ptr(5), DistrictID: ptr(9)},
			target:      Scope{CityID: ptr(5), DistrictID: ptr(9), WardID: ptr(44)},
			want:        true,
		},
		{
			name:        "ward caller needs exact ward match",
			callerLevel: Ward,
			caller:      Scope{CityID: ptr(5), DistrictID: ptr(9), WardID: ptr(44)},
			target:      Scope{CityID: ptr(5), DistrictID: ptr(9), WardID: ptr(45)},
			want:        false,
		},
		{
			name:        "bound caller denied on broader target",
			callerLevel: City,
			caller:      Scope{CityID: ptr(5)},
			target:      Scope{},
			want:        false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Covers(tc.callerLevel, tc.caller, tc.target); got != tc.want {
				t.Fatalf("Covers=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	if !Ward.NarrowerThan(City) || City.NarrowerThan(Ward) {
		t.Fatal("ward should be narrower than city")
	}
	if !Central.BroaderOrEqual(Ward) || !City.BroaderOrEqual(City) {
		t.Fatal("broader-or-equal should hold for broader and equal levels")
	}
	if Ward.BroaderOrEqual(Central) {
		t.Fatal("ward is not broader than central")
	}
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]Level{"central": Central, "2": City, "District": District, " ward ": Ward} {
		got, err := ParseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", raw, got, err, want)
		}
	}
	if _, err := ParseLevel("province"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestEqual(t *testing.T) {
	a := Scope{CityID: ptr(5), DistrictID: ptr(9)}
	b := Scope{CityID: ptr(5), DistrictID: ptr(9)}
	if !Equal(a, b) {
		t.Fatal("identical scopes should be equal")
	}
	if Equal(a, Scope{CityID: ptr(5)}) {
		t.Fatal("scopes with differently pinned fields should not be equal")
	}
}
