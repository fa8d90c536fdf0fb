package credential

import (
	"crypto/sha256"
	"encoding/hex"

	"attestor/internal/document"
)

// claimNames maps internal field names to the external claim vocabulary.
// Fields without an entry are not issued.
var claimNames = map[document.FieldName]string{
	document.Name:        "givenName",
	document.DateOfBirth: "birthDate",
	document.Age:         "age",
	document.Gender:      "gender",
	document.Email:       "email",
	document.Phone:       "telephone",
	document.Address:     "address",
	document.PostalCode:  "postalCode",
}

// ClaimName returns the external claim name for a field.
func ClaimName(f document.FieldName) (string, bool) {
	name, ok := claimNames[f]
	return name, ok
}

// MapClaims renames issuable fields and silently drops the rest. Dates are
// issued in canonical form when they parse.
func MapClaims(values document.Values) map[string]string {
	out := make(map[string]string, values.Len())
	for _, f := range values.Names() {
		name, ok := claimNames[f]
		if !ok {
			continue
		}
		v, _ := values.Get(f)
		if f.DateLike() {
			v = document.NormalizeDate(v)
		}
		out[name] = v
	}
	return out
}

// SubjectID derives a stable subject identifier from the claims: a prefix of
// the SHA-256 of their canonical JSON, so key order never matters.
func SubjectID(claims map[string]string) (string, error) {
	b, err := canonicalJSON(claims)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "did:example:" + hex.EncodeToString(sum[:])[:16], nil
}
