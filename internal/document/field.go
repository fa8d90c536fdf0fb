// Package document defines the closed vocabulary of identity fields and the
// immutable records exchanged between extraction, comparison and issuance.
package document

import (
	"sort"
	"strings"

	dErrors "attestor/pkg/domain-errors"
)

// FieldName is a member of the closed field vocabulary. Declaration order is
// the canonical order for every ordered result.
type FieldName int

const (
	FieldUnknown FieldName = iota
	Name
	DateOfBirth
	Age
	Email
	Phone
	Gender
	Address
	NationalID
	TaxID
	PostalCode
)

var fieldKeys = [...]string{
	Name:        "name",
	DateOfBirth: "date_of_birth",
	Age:         "age",
	Email:       "email",
	Phone:       "phone",
	Gender:      "gender",
	Address:     "address",
	NationalID:  "national_id",
	TaxID:       "tax_id",
	PostalCode:  "postal_code",
}

var fieldAliases = map[string]FieldName{
	"dob":        DateOfBirth,
	"birth_date": DateOfBirth,
	"birthdate":  DateOfBirth,
	"mobile":     Phone,
	"telephone":  Phone,
	"sex":        Gender,
	"aadhaar":    NationalID,
	"pan":        TaxID,
	"pincode":    PostalCode,
	"pin":        PostalCode,
}

// AllFields lists the vocabulary in canonical order.
func AllFields() []FieldName {
	out := make([]FieldName, 0, len(fieldKeys)-1)
	for f := Name; f <= PostalCode; f++ {
		out = append(out, f)
	}
	return out
}

// ParseFieldName resolves canonical names and known aliases, case-insensitively.
func ParseFieldName(s string) (FieldName, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for f := Name; f <= PostalCode; f++ {
		if fieldKeys[f] == key {
			return f, nil
		}
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return FieldUnknown, dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q", s)
}

// Valid reports whether f is a vocabulary member.
func (f FieldName) Valid() bool {
	return f >= Name && f <= PostalCode
}

func (f FieldName) String() string {
	if !f.Valid() {
		return "unknown"
	}
	return fieldKeys[f]
}

// DateLike fields are compared as calendar dates.
func (f FieldName) DateLike() bool {
	return f == DateOfBirth
}

// Numeric fields are always compared numerically.
func (f FieldName) Numeric() bool {
	return f == Age
}

// MarshalText renders the canonical key.
func (f FieldName) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "field name outside vocabulary")
	}
	return []byte(fieldKeys[f]), nil
}

// UnmarshalText accepts canonical names and aliases.
func (f *FieldName) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldName(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// SortFields orders names canonically, in place.
func SortFields(names []FieldName) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}
