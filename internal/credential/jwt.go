package credential

import (
	"crypto/ed25519"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "attestor/pkg/domain-errors"
)

// EnvelopeClaims carries a credential as a VC-JWT.
type EnvelopeClaims struct {
	VC Credential `json:"vc"`
	jwt.RegisteredClaims
}

// EncodeJWT wraps a signed credential in an EdDSA JWT whose registered claims
// mirror the credential metadata.
func EncodeJWT(c Credential, key ed25519.PrivateKey) (string, error) {
	claims := EnvelopeClaims{
		VC: c,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			Issuer:    c.Issuer.ID,
			Subject:   c.CredentialSubject.ID,
			IssuedAt:  jwt.NewNumericDate(c.IssuanceDate.Time),
			NotBefore: jwt.NewNumericDate(c.IssuanceDate.Time),
			ExpiresAt: jwt.NewNumericDate(c.ExpirationDate.Time),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = KeyFragment
	signed, err := token.SignedString(key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign credential envelope")
	}
	return signed, nil
}

// ParseJWT checks the envelope signature and time claims and returns the
// embedded credential. now controls expiry evaluation.
func ParseJWT(token string, key ed25519.PublicKey, now func() time.Time) (Credential, error) {
	claims := &EnvelopeClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()})}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "credential envelope rejected")
	}
	if claims.ID != claims.VC.ID {
		return Credential{}, dErrors.New(dErrors.CodeUnauthorized, "envelope id does not match credential")
	}
	return claims.VC, nil
}
