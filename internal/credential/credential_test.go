package credential_test

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attestor/internal/credential"
	"attestor/internal/document"
	dErrors "attestor/pkg/domain-errors"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 15, 500, time.UTC)

type CredentialSuite struct {
	suite.Suite
	key    ed25519.PrivateKey
	issuer *credential.Issuer
	claims document.Values
}

func TestCredentialSuite(t *testing.T) {
	suite.Run(t, new(CredentialSuite))
}

func (s *CredentialSuite) SetupTest() {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	s.key = ed25519.NewKeyFromSeed(seed)

	var err error
	s.issuer, err = credential.NewIssuer(s.key,
		credential.WithClock(func() time.Time { return fixedNow }),
		credential.WithIDGenerator(func() string { return "urn:uuid:00000000-0000-4000-8000-000000000001" }),
	)
	s.Require().NoError(err)

	s.claims = document.ValuesOf(map[document.FieldName]string{
		document.Name:        "John Smith",
		document.DateOfBirth: "01/05/1990",
		document.Phone:       "9876543210",
		document.NationalID:  "123456789012",
	})
}

func (s *CredentialSuite) issue() credential.Credential {
	c, err := s.issuer.Issue(s.claims)
	s.Require().NoError(err)
	return c
}

func (s *CredentialSuite) TestIssue() {
	c := s.issue()

	s.Run("document shape", func() {
		s.Equal([]string{credential.ContextCredentials, credential.ContextCitizenship}, c.Context)
		s.Equal([]string{credential.TypeVerifiable, credential.TypeIdentity}, c.Type)
		s.Equal("urn:uuid:00000000-0000-4000-8000-000000000001", c.ID)
		s.Equal(credential.DefaultIssuerDID, c.Issuer.ID)
	})

	s.Run("claims are mapped and unmapped fields dropped", func() {
		s.Equal(map[string]string{
			"givenName": "John Smith",
			"birthDate": "1990-05-01",
			"telephone": "9876543210",
		}, c.CredentialSubject.Claims)
	})

	s.Run("validity is one year at second precision", func() {
		s.Equal(time.Date(2024, 3, 1, 10, 30, 15, 0, time.UTC), c.IssuanceDate.Time)
		s.Equal(c.IssuanceDate.Add(365*24*time.Hour), c.ExpirationDate.Time)
		s.False(c.Expired(fixedNow))
		s.True(c.Expired(fixedNow.Add(366 * 24 * time.Hour)))
	})

	s.Run("proof", func() {
		s.Require().NotNil(c.Proof)
		s.Equal(credential.ProofType, c.Proof.Type)
		s.Equal(credential.CanonicalizationV1, c.Proof.Canonicalization)
		s.Equal(credential.DefaultIssuerDID+"#keys-1", c.Proof.VerificationMethod)
		s.Equal(credential.ProofPurpose, c.Proof.ProofPurpose)
		s.Equal(base64.StdEncoding.EncodeToString(s.issuer.PublicKey()), c.Proof.PublicKey)
	})

	s.Run("empty claim set is refused", func() {
		_, err := s.issuer.Issue(document.ValuesOf(map[document.FieldName]string{document.TaxID: "ABCDE1234F"}))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("wrong key size is refused", func() {
		_, err := credential.NewIssuer(ed25519.PrivateKey([]byte("short")))
		s.Error(err)
	})
}

func (s *CredentialSuite) TestSubjectID() {
	a, err := credential.SubjectID(map[string]string{"givenName": "John Smith", "birthDate": "1990-05-01"})
	s.Require().NoError(err)
	b, err := credential.SubjectID(map[string]string{"birthDate": "1990-05-01", "givenName": "John Smith"})
	s.Require().NoError(err)
	c, err := credential.SubjectID(map[string]string{"givenName": "Jane Smith", "birthDate": "1990-05-01"})
	s.Require().NoError(err)

	s.Equal(a, b)
	s.NotEqual(a, c)
	s.True(strings.HasPrefix(a, "did:example:"))
	s.Len(strings.TrimPrefix(a, "did:example:"), 16)

	s.Run("identical claims give identical subjects across issuances", func() {
		other, err := credential.NewIssuer(s.key)
		s.Require().NoError(err)
		second, err := other.Issue(s.claims)
		s.Require().NoError(err)
		s.Equal(s.issue().CredentialSubject.ID, second.CredentialSubject.ID)
		s.NotEqual(s.issue().ID, second.ID)
	})
}

func (s *CredentialSuite) TestCanonicalBytesArePinned() {
	c := credential.Credential{
		Context:        []string{credential.ContextCredentials},
		ID:             "urn:uuid:1",
		Type:           []string{credential.TypeVerifiable},
		Issuer:         credential.IssuerRef{ID: "did:test", Name: "A & B <Issuer>"},
		IssuanceDate:   credential.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		ExpirationDate: credential.NewTimestamp(time.Date(2025, 1, 1, 3, 4, 5, 0, time.UTC)),
		CredentialSubject: credential.Subject{
			ID:     "did:example:abc",
			Claims: map[string]string{"givenName": "Zoë", "address": "1 Main St"},
		},
		Proof: &credential.Proof{Type: credential.ProofType},
	}

	b, err := credential.Canonicalize(c)
	s.Require().NoError(err)
	s.Equal(`{"@context":["https://www.w3.org/2018/credentials/v1"],`+
		`"credentialSubject":{"address":"1 Main St","givenName":"Zoë","id":"did:example:abc"},`+
		`"expirationDate":"2025-01-01T03:04:05Z","id":"urn:uuid:1",`+
		`"issuanceDate":"2024-01-02T03:04:05Z","issuer":{"id":"did:test","name":"A & B <Issuer>"},`+
		`"type":["VerifiableCredential"]}`, string(b))
}

func (s *CredentialSuite) TestVerify() {
	ctx := context.Background()
	verifier := credential.NewVerifier(nil)
	c := s.issue()

	s.Run("own signature is valid", func() {
		s.True(verifier.Verify(ctx, c).Valid())
	})

	s.Run("survives a JSON round trip", func() {
		b, err := json.Marshal(c)
		s.Require().NoError(err)
		parsed, err := credential.Parse(b)
		s.Require().NoError(err)
		s.True(parsed.Equal(c))
		s.True(verifier.Verify(ctx, parsed).Valid())
	})

	s.Run("every signature byte matters", func() {
		sig, _ := base64.StdEncoding.DecodeString(c.Proof.ProofValue)
		for i := range sig {
			tampered := c
			proof := *c.Proof
			flipped := append([]byte(nil), sig...)
			flipped[i] ^= 0x01
			proof.ProofValue = base64.StdEncoding.EncodeToString(flipped)
			tampered.Proof = &proof
			s.Equal(credential.StatusInvalid, verifier.Verify(ctx, tampered).Status, "byte %d", i)
		}
	})

	s.Run("claim edits are invalid", func() {
		tampered := c
		tampered.CredentialSubject.Claims = map[string]string{}
		for k, v := range c.CredentialSubject.Claims {
			tampered.CredentialSubject.Claims[k] = v
		}
		tampered.CredentialSubject.Claims["givenName"] = "John Smiti"
		s.Equal(credential.StatusInvalid, verifier.Verify(ctx, tampered).Status)
	})

	s.Run("malformed proofs are distinguished", func() {
		cases := map[string]func(p *credential.Proof){
			"bad base64 signature": func(p *credential.Proof) { p.ProofValue = "%%%" },
			"short signature":      func(p *credential.Proof) { p.ProofValue = base64.StdEncoding.EncodeToString([]byte("short")) },
			"bad public key":       func(p *credential.Proof) { p.PublicKey = base64.StdEncoding.EncodeToString([]byte("k")) },
			"unknown proof type":   func(p *credential.Proof) { p.Type = "RsaSignature2018" },
			"future canonical form": func(p *credential.Proof) { p.Canonicalization = "sorted-compact-json/v2" },
		}
		for name, mutate := range cases {
			proof := *c.Proof
			mutate(&proof)
			broken := c
			broken.Proof = &proof
			s.Equal(credential.StatusMalformed, verifier.Verify(ctx, broken).Status, name)
		}

		s.Equal(credential.StatusMalformed, verifier.Verify(ctx, c.WithoutProof()).Status)
	})

	s.Run("non-canonical base64 signature is malformed", func() {
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
		value := []byte(c.Proof.ProofValue)
		s.Require().Len(value, 88)
		s.Require().True(strings.HasSuffix(c.Proof.ProofValue, "=="))
		// the last data character carries four zero padding bits
		value[85] = alphabet[strings.IndexByte(alphabet, value[85])^1]

		lax, err := base64.StdEncoding.DecodeString(string(value))
		s.Require().NoError(err)
		orig, _ := base64.StdEncoding.DecodeString(c.Proof.ProofValue)
		s.Require().Equal(orig, lax, "lenient decoding maps both spellings to one signature")

		proof := *c.Proof
		proof.ProofValue = string(value)
		respelled := c
		respelled.Proof = &proof
		s.Equal(credential.StatusMalformed, verifier.Verify(ctx, respelled).Status)
	})

	s.Run("foreign key swap is invalid", func() {
		other, err := credential.GenerateKey()
		s.Require().NoError(err)
		proof := *c.Proof
		proof.PublicKey = base64.StdEncoding.EncodeToString(other.Public().(ed25519.PublicKey))
		swapped := c
		swapped.Proof = &proof
		s.Equal(credential.StatusInvalid, verifier.Verify(ctx, swapped).Status)
	})
}

func (s *CredentialSuite) TestTrustedKeys() {
	ctx := context.Background()
	c := s.issue()

	s.Run("static resolver", func() {
		v := credential.NewVerifier(credential.StaticResolver{
			s.issuer.VerificationMethod(): s.issuer.PublicKey(),
		})
		s.True(v.Verify(ctx, c).Valid())
	})

	s.Run("self signed credential from an untrusted key", func() {
		rogueKey, err := credential.GenerateKey()
		s.Require().NoError(err)
		rogue, err := credential.NewIssuer(rogueKey)
		s.Require().NoError(err)
		forged, err := rogue.Issue(s.claims)
		s.Require().NoError(err)

		s.True(credential.NewVerifier(nil).Verify(ctx, forged).Valid())

		v := credential.NewVerifier(credential.StaticResolver{
			s.issuer.VerificationMethod(): s.issuer.PublicKey(),
		})
		s.Equal(credential.StatusInvalid, v.Verify(ctx, forged).Status)
	})

	s.Run("unknown verification method", func() {
		v := credential.NewVerifier(credential.StaticResolver{})
		s.Equal(credential.StatusInvalid, v.Verify(ctx, c).Status)
	})

	s.Run("jwk set resolver", func() {
		set, err := credential.PublicJWKS(s.issuer.PublicKey())
		s.Require().NoError(err)
		v := credential.NewVerifier(credential.SetResolver{Set: set})
		s.True(v.Verify(ctx, c).Valid())
	})
}

func (s *CredentialSuite) TestKeyFiles() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "issuer.jwk")

	key, created, err := credential.LoadOrGenerateKey(path)
	s.Require().NoError(err)
	s.True(created)

	info, err := os.Stat(path)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm())

	again, created, err := credential.LoadOrGenerateKey(path)
	s.Require().NoError(err)
	s.False(created)
	s.True(key.Equal(again))

	s.Run("file is a jwk", func() {
		b, err := os.ReadFile(path)
		s.Require().NoError(err)
		var doc map[string]any
		s.Require().NoError(json.Unmarshal(b, &doc))
		s.Equal("OKP", doc["kty"])
		s.Equal("Ed25519", doc["crv"])
		s.Equal("keys-1", doc["kid"])
	})

	s.Run("ephemeral key", func() {
		k, created, err := credential.LoadOrGenerateKey("")
		s.Require().NoError(err)
		s.True(created)
		s.Len(k, ed25519.PrivateKeySize)
	})
}

func (s *CredentialSuite) TestJWTEnvelope() {
	c := s.issue()
	token, err := credential.EncodeJWT(c, s.key)
	s.Require().NoError(err)

	got, err := credential.ParseJWT(token, s.issuer.PublicKey(), func() time.Time { return fixedNow.Add(time.Hour) })
	s.Require().NoError(err)
	s.True(got.Equal(c))

	s.Run("expired envelope", func() {
		_, err := credential.ParseJWT(token, s.issuer.PublicKey(), func() time.Time { return fixedNow.Add(400 * 24 * time.Hour) })
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("wrong key", func() {
		other, _ := credential.GenerateKey()
		_, err := credential.ParseJWT(token, other.Public().(ed25519.PublicKey), nil)
		s.Error(err)
	})
}
