package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseEmployeeID checks that parsing never panics and that accepted ids
// round-trip through String.
func FuzzParseEmployeeID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE employees;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseEmployeeID(input)
		if err == nil {
			roundTrip, err2 := ParseEmployeeID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
			if id.IsNil() {
				t.Error("nil ID accepted")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures all ID types accept and reject the same inputs.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errUser := ParseUserID(input)
		_, errEmployee := ParseEmployeeID(input)
		_, errOrg := ParseOrganisationID(input)
		_, errOverride := ParseOverrideID(input)

		if errUser == nil && (errEmployee != nil || errOrg != nil || errOverride != nil) {
			t.Error("inconsistent parsing across ID types")
		}
		if errUser != nil && (errEmployee == nil || errOrg == nil || errOverride == nil) {
			t.Error("inconsistent rejection across ID types")
		}
	})
}
