// Package credential builds, canonicalizes, signs and verifies JSON-LD shaped
// identity credentials.
package credential

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	dErrors "attestor/pkg/domain-errors"
)

// Fixed JSON-LD constants. Verifiers re-derive canonical bytes from these, so
// they are part of the signed wire format.
const (
	ContextCredentials = "https://www.w3.org/2018/credentials/v1"
	ContextCitizenship = "https://w3id.org/citizenship/v1"

	TypeVerifiable = "VerifiableCredential"
	TypeIdentity   = "IdentityCredential"

	DefaultIssuerDID  = "did:key:z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"
	DefaultIssuerName = "Document Verification Service"

	// Validity is the advisory lifetime of an issued credential.
	Validity = 365 * 24 * time.Hour

	timestampLayout = "2006-01-02T15:04:05Z"
)

// Timestamp is a UTC instant serialized at second precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timestampLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// IssuerRef identifies the issuing party.
type IssuerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is the credential subject: a derived identifier next to the claims.
type Subject struct {
	ID     string
	Claims map[string]string
}

func (s Subject) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(s.Claims)+1)
	for k, v := range s.Claims {
		m[k] = v
	}
	m["id"] = s.ID
	return json.Marshal(m)
}

func (s *Subject) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("credentialSubject must be an object of strings: %w", err)
	}
	s.ID = m["id"]
	delete(m, "id")
	s.Claims = m
	return nil
}

// Proof binds the canonical bytes to a signing key.
type Proof struct {
	Type               string    `json:"type"`
	Canonicalization   string    `json:"canonicalization,omitempty"`
	Created            Timestamp `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	ProofValue         string    `json:"proofValue"`
	PublicKey          string    `json:"publicKey"`
}

// Credential is the persisted JSON-LD document.
type Credential struct {
	Context           []string  `json:"@context"`
	ID                string    `json:"id"`
	Type              []string  `json:"type"`
	Issuer            IssuerRef `json:"issuer"`
	IssuanceDate      Timestamp `json:"issuanceDate"`
	ExpirationDate    Timestamp `json:"expirationDate"`
	CredentialSubject Subject   `json:"credentialSubject"`
	Proof             *Proof    `json:"proof,omitempty"`
}

// WithoutProof returns a copy with the proof detached.
func (c Credential) WithoutProof() Credential {
	c.Proof = nil
	return c
}

// Expired reports whether the advisory expiry has passed at now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpirationDate.IsZero() && now.After(c.ExpirationDate.Time)
}

// Equal compares credentials structurally.
func (c Credential) Equal(o Credential) bool {
	if c.ID != o.ID || c.Issuer != o.Issuer ||
		!slices.Equal(c.Context, o.Context) || !slices.Equal(c.Type, o.Type) ||
		!c.IssuanceDate.Equal(o.IssuanceDate.Time) || !c.ExpirationDate.Equal(o.ExpirationDate.Time) ||
		c.CredentialSubject.ID != o.CredentialSubject.ID ||
		!mapsEqual(c.CredentialSubject.Claims, o.CredentialSubject.Claims) {
		return false
	}
	switch {
	case c.Proof == nil && o.Proof == nil:
		return true
	case c.Proof == nil || o.Proof == nil:
		return false
	}
	p, q := *c.Proof, *o.Proof
	return p.Type == q.Type && p.Canonicalization == q.Canonicalization &&
		p.Created.Equal(q.Created.Time) && p.VerificationMethod == q.VerificationMethod &&
		p.ProofPurpose == q.ProofPurpose && p.ProofValue == q.ProofValue && p.PublicKey == q.PublicKey
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Parse decodes a persisted credential document.
func Parse(b []byte) (Credential, error) {
	var c Credential
	if err := json.Unmarshal(b, &c); err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeMalformedPayload, "credential is not valid JSON")
	}
	if c.ID == "" {
		return Credential{}, dErrors.New(dErrors.CodeMalformedPayload, "credential has no id")
	}
	return c, nil
}
