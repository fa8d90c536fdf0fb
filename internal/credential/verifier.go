package credential

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Status separates tampered credentials from inputs that are not credentials
// at all.
type Status string

const (
	StatusValid     Status = "valid"
	StatusInvalid   Status = "invalid"
	StatusMalformed Status = "malformed"
)

// Verification is the outcome of checking a proof.
type Verification struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Valid reports whether the signature checked out.
func (v Verification) Valid() bool {
	return v.Status == StatusValid
}

func valid() Verification { return Verification{Status: StatusValid} }

func invalid(reason string) Verification {
	return Verification{Status: StatusInvalid, Reason: reason}
}

func malformed(reason string) Verification {
	return Verification{Status: StatusMalformed, Reason: reason}
}

// strictBase64 rejects non-zero padding bits so each signature has exactly
// one accepted encoding.
var strictBase64 = base64.StdEncoding.Strict()

// KeyResolver returns the trusted key for a verification method reference.
type KeyResolver interface {
	Resolve(ctx context.Context, verificationMethod string) (ed25519.PublicKey, error)
}

// Verifier checks credential proofs. Without a resolver the embedded public
// key is used; with one, the embedded key must equal the trusted key.
type Verifier struct {
	resolver KeyResolver
}

// NewVerifier returns a Verifier; resolver may be nil.
func NewVerifier(resolver KeyResolver) *Verifier {
	return &Verifier{resolver: resolver}
}

// Verify never panics and never returns an error: every failure is a status.
func (v *Verifier) Verify(ctx context.Context, c Credential) (out Verification) {
	defer func() {
		if rec := recover(); rec != nil {
			out = malformed(fmt.Sprintf("unreadable credential: %v", rec))
		}
	}()

	p := c.Proof
	if p == nil {
		return malformed("credential has no proof")
	}
	if p.Type != ProofType {
		return malformed(fmt.Sprintf("unsupported proof type %q", p.Type))
	}
	if p.Canonicalization != "" && p.Canonicalization != CanonicalizationV1 {
		return malformed(fmt.Sprintf("unsupported canonicalization %q", p.Canonicalization))
	}

	sig, err := strictBase64.DecodeString(p.ProofValue)
	if err != nil {
		return malformed("proof value is not base64")
	}
	if len(sig) != ed25519.SignatureSize {
		return malformed("proof value has the wrong length")
	}
	embedded, err := strictBase64.DecodeString(p.PublicKey)
	if err != nil {
		return malformed("public key is not base64")
	}
	if len(embedded) != ed25519.PublicKeySize {
		return malformed("public key has the wrong length")
	}

	key := ed25519.PublicKey(embedded)
	if v.resolver != nil {
		trusted, err := v.resolver.Resolve(ctx, p.VerificationMethod)
		if err != nil {
			return invalid("verification method is not trusted")
		}
		if !trusted.Equal(key) {
			return invalid("embedded key does not match the trusted key")
		}
		key = trusted
	}

	msg, err := Canonicalize(c)
	if err != nil {
		return malformed("credential cannot be canonicalized")
	}
	if !ed25519.Verify(key, msg, sig) {
		return invalid("signature does not match")
	}
	return valid()
}
