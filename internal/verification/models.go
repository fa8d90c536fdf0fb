package verification

import (
	"attestor/internal/confidence"
	"attestor/internal/credential"
	"attestor/internal/document"
	"attestor/internal/ocr"
	"attestor/internal/quality"
)

// PageInput is one page of a document: text already recognized upstream,
// an image to recognize, or both. When both are present the text wins and
// the image only feeds the quality signal.
type PageInput struct {
	Index int
	Text  string
	Image []byte
}

// ExtractRequest carries the pages of one document.
type ExtractRequest struct {
	Pages []PageInput
	Mode  ocr.Mode
}

// PageResult is the per-page outcome of the fan-out.
// A secondary page that could not be read carries Err and no fields.
type PageResult struct {
	Page    document.Page
	Fields  document.FieldSet
	Quality *quality.Report
	Err     error
}

// Extraction joins page results; the page with index 0 is primary.
type Extraction struct {
	Pages   []PageResult
	Fields  document.FieldSet
	Quality *quality.Report
}

// VerifyRequest compares a document against submitted values.
type VerifyRequest struct {
	ExtractRequest
	Submitted document.Values
}

// Result is a completed verification.
type Result struct {
	Extraction Extraction
	Outcome    confidence.Outcome
}

// Issuance is an accepted verification with its signed credential.
type Issuance struct {
	Result     Result
	Credential credential.Credential
	Payload    string
	ArtifactID string
}

// CredentialCheck is the outcome of verifying a presented credential.
type CredentialCheck struct {
	Credential   credential.Credential
	Verification credential.Verification
	Expired      bool
}
