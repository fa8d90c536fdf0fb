package credential

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"attestor/internal/document"
	dErrors "attestor/pkg/domain-errors"
)

const (
	ProofType    = "Ed25519Signature2020"
	ProofPurpose = "assertionMethod"
	// KeyFragment names the signing key inside the issuer DID document.
	KeyFragment = "keys-1"
)

// Issuer signs credentials with a long-lived Ed25519 key. The key is read-only
// after construction, so one Issuer serves concurrent requests.
type Issuer struct {
	key   ed25519.PrivateKey
	ref   IssuerRef
	clock func() time.Time
	newID func() string
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIdentity overrides the issuer DID and display name.
func WithIdentity(did, name string) IssuerOption {
	return func(i *Issuer) {
		if did != "" {
			i.ref.ID = did
		}
		if name != "" {
			i.ref.Name = name
		}
	}
}

// WithClock injects the issuance clock.
func WithClock(clock func() time.Time) IssuerOption {
	return func(i *Issuer) { i.clock = clock }
}

// WithIDGenerator injects the credential id source.
func WithIDGenerator(gen func() string) IssuerOption {
	return func(i *Issuer) { i.newID = gen }
}

// NewIssuer returns an Issuer for key.
func NewIssuer(key ed25519.PrivateKey, opts ...IssuerOption) (*Issuer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, dErrors.New(dErrors.CodeInternal, "signing key must be an ed25519 private key")
	}
	i := &Issuer{
		key:   key,
		ref:   IssuerRef{ID: DefaultIssuerDID, Name: DefaultIssuerName},
		clock: time.Now,
		newID: func() string { return "urn:uuid:" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// PublicKey returns the verification key.
func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

// Identity returns the issuer reference embedded in credentials.
func (i *Issuer) Identity() IssuerRef {
	return i.ref
}

// VerificationMethod is the key reference written into proofs.
func (i *Issuer) VerificationMethod() string {
	return i.ref.ID + "#" + KeyFragment
}

// Issue maps the agreed values to claims, builds the credential and signs its
// canonical form. Unmapped fields are dropped; an empty claim set is refused.
func (i *Issuer) Issue(values document.Values) (Credential, error) {
	claims := MapClaims(values)
	if len(claims) == 0 {
		return Credential{}, dErrors.New(dErrors.CodeInvalidInput, "no issuable claims")
	}

	subjectID, err := SubjectID(claims)
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive subject id")
	}

	issued := NewTimestamp(i.clock())
	c := Credential{
		Context:           []string{ContextCredentials, ContextCitizenship},
		ID:                i.newID(),
		Type:              []string{TypeVerifiable, TypeIdentity},
		Issuer:            i.ref,
		IssuanceDate:      issued,
		ExpirationDate:    NewTimestamp(issued.Add(Validity)),
		CredentialSubject: Subject{ID: subjectID, Claims: claims},
	}
	return i.Sign(c, issued)
}

// Sign attaches a fresh proof over the canonical form of c.
func (i *Issuer) Sign(c Credential, created Timestamp) (Credential, error) {
	msg, err := Canonicalize(c)
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize credential")
	}
	sig := ed25519.Sign(i.key, msg)

	c.Proof = &Proof{
		Type:               ProofType,
		Canonicalization:   CanonicalizationV1,
		Created:            created,
		VerificationMethod: i.VerificationMethod(),
		ProofPurpose:       ProofPurpose,
		ProofValue:         base64.StdEncoding.EncodeToString(sig),
		PublicKey:          base64.StdEncoding.EncodeToString(i.PublicKey()),
	}
	return c, nil
}

// Envelope wraps a signed credential in an EdDSA VC-JWT under the issuer key.
func (i *Issuer) Envelope(c Credential) (string, error) {
	return EncodeJWT(c, i.key)
}
