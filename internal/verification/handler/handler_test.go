package handler

import (
	"crypto/ed25519"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attestor/internal/artifacts"
	"attestor/internal/comparison"
	"attestor/internal/confidence"
	"attestor/internal/credential"
	"attestor/internal/document"
	"attestor/internal/ocr"
	"attestor/internal/verification"
	"attestor/internal/verification/handler/mocks"
	dErrors "attestor/pkg/domain-errors"
	"attestor/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func strPtr(v string) *string { return &v }

func sampleResult(accepted bool) verification.Result {
	phoneMatched := accepted
	score := 0.6666666
	if accepted {
		score = 1
	}
	return verification.Result{
		Extraction: verification.Extraction{
			Fields: document.NewFieldSet(document.Field{Name: document.Name, Raw: "John Smith", Normalized: "John Smith"}),
		},
		Outcome: confidence.Outcome{
			Results: []comparison.Result{
				{Field: document.Name, Extracted: strPtr("John Smith"), Submitted: strPtr("JOHN SMITH"), Matched: true, Confidence: 1, Strategy: comparison.StrategyText},
				{Field: document.Phone, Extracted: strPtr("9876543210"), Submitted: strPtr("9876543212"), Matched: phoneMatched, Strategy: comparison.StrategyNumeric},
			},
			OverallScore:  score,
			Accepted:      accepted,
			Level:         confidence.Band(score),
			Mismatched:    []document.FieldName{document.Phone},
			FieldsChecked: 2,
			FieldsMatched: 1,
		},
	}
}

func (s *HandlerSuite) TestExtract() {
	s.Run("pages default to their position", func() {
		s.service.EXPECT().Extract(gomock.Any(), verification.ExtractRequest{
			Pages: []verification.PageInput{
				{Index: 0, Text: "Name: John Smith"},
				{Index: 1, Text: "second"},
			},
			Mode: ocr.ModePrinted,
		}).Return(verification.Extraction{
			Fields: document.NewFieldSet(document.Field{Name: document.Name, Raw: "John Smith", Normalized: "John Smith"}),
			Pages: []verification.PageResult{
				{Page: document.Page{Index: 0, Text: "Name: John Smith"}},
				{Page: document.Page{Index: 1, Text: "second"}},
			},
		}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/extract", map[string]any{
			"pages": []map[string]any{{"text": "Name: John Smith"}, {"text": "second"}},
		}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ExtractResponse](s.T(), rr)
		s.Len(resp.Pages, 2)
		s.Equal(16, resp.Pages[0].TextLength)
	})

	s.Run("empty page list is a validation error", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/extract", map[string]any{"pages": []any{}}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown mode is rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/extract", map[string]any{
			"pages": []map[string]any{{"text": "x"}},
			"mode":  "cursive",
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("service errors map to status", func() {
		s.service.EXPECT().Extract(gomock.Any(), gomock.Any()).
			Return(verification.Extraction{}, dErrors.New(dErrors.CodeUnavailable, "text recognition is not configured"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/extract", map[string]any{
			"pages": []map[string]any{{"image": []byte{1, 2, 3}}},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, string(dErrors.CodeUnavailable))
	})

	s.Run("malformed json", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/v1/extract", "{"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func (s *HandlerSuite) TestVerify() {
	s.Run("returns field results and decision", func() {
		s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req verification.VerifyRequest) (verification.Result, error) {
				v, ok := req.Submitted.Get(document.DateOfBirth)
				s.True(ok, "alias dob resolves to date_of_birth")
				s.Equal("01/05/1990", v)
				return sampleResult(false), nil
			})
		s.service.EXPECT().Threshold().Return(0.85)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/verify", map[string]any{
			"pages":     []map[string]any{{"text": "Name: John Smith"}},
			"submitted": map[string]string{"name": "JOHN SMITH", "dob": "01/05/1990"},
		}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[VerifyResponse](s.T(), rr)
		s.False(resp.OverallAccepted)
		s.Equal(0.667, resp.OverallScore)
		s.Equal([]string{"phone"}, resp.MismatchedFields)
		s.Equal(0.85, resp.Threshold)
		s.Len(resp.Results, 2)
	})

	s.Run("unknown submitted field is rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/verify", map[string]any{
			"pages":     []map[string]any{{"text": "Name: John Smith"}},
			"submitted": map[string]string{"favourite_colour": "blue"},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *HandlerSuite) TestIssue() {
	s.Run("created with payload and links", func() {
		cred := credential.Credential{ID: "urn:uuid:1b4e28ba-2fa1-11d2-883f-0016d3cca427"}
		s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(verification.Issuance{
			Result:     sampleResult(true),
			Credential: cred,
			Payload:    "H4sI",
			ArtifactID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		}, nil)
		s.service.EXPECT().Envelope(cred).Return("a.b.c", nil)
		s.service.EXPECT().Threshold().Return(0.85)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials", map[string]any{
			"pages":     []map[string]any{{"text": "Name: John Smith"}},
			"submitted": map[string]string{"name": "John Smith"},
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[IssueResponse](s.T(), rr)
		s.Equal("H4sI", resp.Payload)
		s.Equal("a.b.c", resp.JWT)
		s.Equal("/api/v1/credentials/1b4e28ba-2fa1-11d2-883f-0016d3cca427/qr", resp.QRURL)
	})

	s.Run("rejected verification is 422", func() {
		s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).
			Return(verification.Issuance{}, dErrors.New(dErrors.CodeUnprocessable, "verification not accepted"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials", map[string]any{
			"pages":     []map[string]any{{"text": "Name: John Smith"}},
			"submitted": map[string]string{"name": "Jane Doe"},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeUnprocessable))
	})
}

func (s *HandlerSuite) TestCheck() {
	s.Run("payload status is reported with 200", func() {
		s.service.EXPECT().VerifyPayload(gomock.Any(), "H4sI").Return(verification.CredentialCheck{
			Credential:   credential.Credential{ID: "urn:uuid:x"},
			Verification: credential.Verification{Status: credential.StatusInvalid, Reason: "signature does not match"},
		}, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials/verify", map[string]any{"payload": " H4sI "}))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[CheckResponse](s.T(), rr)
		s.Equal(credential.StatusInvalid, resp.Status)
		s.False(resp.Valid)
	})

	s.Run("undecodable payload is 400", func() {
		s.service.EXPECT().VerifyPayload(gomock.Any(), "zzz").
			Return(verification.CredentialCheck{}, dErrors.New(dErrors.CodeMalformedPayload, "payload is not base64"))

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials/verify", map[string]any{"payload": "zzz"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeMalformedPayload))
	})

	s.Run("inline credential is verified directly", func() {
		s.service.EXPECT().VerifyCredential(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, c credential.Credential) verification.CredentialCheck {
				s.Equal("urn:uuid:abc", c.ID)
				return verification.CredentialCheck{Credential: c, Verification: credential.Verification{Status: credential.StatusValid}}
			})

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials/verify", map[string]any{
			"credential": map[string]any{
				"@context":          []string{credential.ContextCredentials},
				"id":                "urn:uuid:abc",
				"type":              []string{credential.TypeVerifiable},
				"issuer":            map[string]string{"id": "did:example:issuer", "name": "x"},
				"issuanceDate":      "2026-01-01T00:00:00Z",
				"expirationDate":    "2027-01-01T00:00:00Z",
				"credentialSubject": map[string]string{"id": "did:example:s", "givenName": "John Smith"},
				"proof": map[string]string{
					"type":               credential.ProofType,
					"created":            "2026-01-01T00:00:00Z",
					"verificationMethod": "did:example:issuer#keys-1",
					"proofPurpose":       credential.ProofPurpose,
					"proofValue":         "c2ln",
					"publicKey":          "a2V5",
				},
			},
		}))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "valid", true)
	})

	s.Run("neither payload nor credential", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials/verify", map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("both payload and credential", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/v1/credentials/verify", map[string]any{
			"payload":    "H4sI",
			"credential": map[string]any{"id": "x"},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestDownloads() {
	s.Run("credential json", func() {
		s.service.EXPECT().Artifact(gomock.Any(), "abc").Return(artifacts.Artifact{
			ID:         "abc",
			Credential: credential.Credential{ID: "urn:uuid:abc"},
		}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/credentials/abc"))

		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Header().Get("Content-Disposition"), "credential-abc.json")
		testutil.AssertJSONContains(s.T(), rr, "id", "urn:uuid:abc")
	})

	s.Run("unknown credential is 404", func() {
		s.service.EXPECT().Artifact(gomock.Any(), "nope").
			Return(artifacts.Artifact{}, dErrors.New(dErrors.CodeNotFound, "credential not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/credentials/nope"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("qr png", func() {
		s.service.EXPECT().QRCode(gomock.Any(), "abc", 256).Return([]byte("\x89PNG"), nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/credentials/abc/qr?size=256"))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertPNG(s.T(), rr)
	})

	s.Run("bad qr size", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/api/v1/credentials/abc/qr?size=10"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestJWKS() {
	key, err := credential.GenerateKey()
	s.Require().NoError(err)
	set, err := credential.PublicJWKS(key.Public().(ed25519.PublicKey))
	s.Require().NoError(err)
	s.service.EXPECT().JWKS().Return(set, nil)

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/.well-known/jwks.json"))

	testutil.AssertStatusOK(s.T(), rr)
	s.Contains(rr.Body.String(), `"kid":"keys-1"`)
	s.Contains(rr.Body.String(), `"crv":"Ed25519"`)
}
