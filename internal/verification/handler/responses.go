package handler

import (
	"attestor/internal/comparison"
	"attestor/internal/confidence"
	"attestor/internal/credential"
	"attestor/internal/document"
	"attestor/internal/quality"
	"attestor/internal/verification"
	dErrors "attestor/pkg/domain-errors"
)

// PageResponse summarizes one page without echoing its text.
type PageResponse struct {
	Index      int               `json:"index"`
	TextLength int               `json:"text_length"`
	Fields     document.FieldSet `json:"fields"`
	Quality    *quality.Report   `json:"quality,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ExtractResponse is returned by POST /api/v1/extract.
type ExtractResponse struct {
	Fields  document.FieldSet `json:"fields"`
	Quality *quality.Report   `json:"quality,omitempty"`
	Pages   []PageResponse    `json:"pages"`
}

func FromExtraction(e verification.Extraction) ExtractResponse {
	pages := make([]PageResponse, 0, len(e.Pages))
	for _, p := range e.Pages {
		page := PageResponse{
			Index:      p.Page.Index,
			TextLength: len(p.Page.Text),
			Fields:     p.Fields,
			Quality:    p.Quality,
		}
		if p.Err != nil {
			page.Error = string(dErrors.CodeOf(p.Err))
		}
		pages = append(pages, page)
	}
	return ExtractResponse{Fields: e.Fields, Quality: e.Quality, Pages: pages}
}

// VerifyResponse is returned by POST /api/v1/verify.
type VerifyResponse struct {
	Results          []comparison.Result `json:"field_results"`
	OverallScore     float64             `json:"overall_score"`
	OverallAccepted  bool                `json:"overall_accepted"`
	ConfidenceLevel  confidence.Level    `json:"confidence_level"`
	Threshold        float64             `json:"threshold"`
	MismatchedFields []string            `json:"mismatched_fields"`
	FieldsChecked    int                 `json:"fields_checked"`
	FieldsMatched    int                 `json:"fields_matched"`
	Extracted        document.FieldSet   `json:"extracted_fields"`
	Quality          *quality.Report     `json:"quality,omitempty"`
}

func FromResult(res verification.Result, threshold float64) VerifyResponse {
	out := res.Outcome
	mismatched := make([]string, 0, len(out.Mismatched))
	for _, f := range out.Mismatched {
		mismatched = append(mismatched, f.String())
	}
	results := out.Results
	if results == nil {
		results = []comparison.Result{}
	}
	return VerifyResponse{
		Results:          results,
		OverallScore:     out.Rounded(),
		OverallAccepted:  out.Accepted,
		ConfidenceLevel:  out.Level,
		Threshold:        threshold,
		MismatchedFields: mismatched,
		FieldsChecked:    out.FieldsChecked,
		FieldsMatched:    out.FieldsMatched,
		Extracted:        res.Extraction.Fields,
		Quality:          res.Extraction.Quality,
	}
}

// IssueResponse is returned by POST /api/v1/credentials.
type IssueResponse struct {
	Verification VerifyResponse        `json:"verification"`
	Credential   credential.Credential `json:"credential"`
	Payload      string                `json:"payload"`
	JWT          string                `json:"jwt,omitempty"`
	CredentialID string                `json:"credential_id,omitempty"`
	DownloadURL  string                `json:"download_url,omitempty"`
	QRURL        string                `json:"qr_url,omitempty"`
}

func FromIssuance(iss verification.Issuance, threshold float64, token string) IssueResponse {
	resp := IssueResponse{
		Verification: FromResult(iss.Result, threshold),
		Credential:   iss.Credential,
		Payload:      iss.Payload,
		JWT:          token,
		CredentialID: iss.ArtifactID,
	}
	if iss.ArtifactID != "" {
		resp.DownloadURL = "/api/v1/credentials/" + iss.ArtifactID
		resp.QRURL = resp.DownloadURL + "/qr"
	}
	return resp
}

// CheckResponse is returned by POST /api/v1/credentials/verify.
type CheckResponse struct {
	Status       credential.Status `json:"status"`
	Valid        bool              `json:"valid"`
	Reason       string            `json:"reason,omitempty"`
	Expired      bool              `json:"expired"`
	CredentialID string            `json:"credential_id,omitempty"`
	Issuer       string            `json:"issuer,omitempty"`
	SubjectID    string            `json:"subject_id,omitempty"`
	IssuanceDate string            `json:"issuance_date,omitempty"`
}

func FromCheck(c verification.CredentialCheck) CheckResponse {
	resp := CheckResponse{
		Status:       c.Verification.Status,
		Valid:        c.Verification.Valid() && !c.Expired,
		Reason:       c.Verification.Reason,
		Expired:      c.Expired,
		CredentialID: c.Credential.ID,
		Issuer:       c.Credential.Issuer.ID,
		SubjectID:    c.Credential.CredentialSubject.ID,
	}
	if !c.Credential.IssuanceDate.IsZero() {
		resp.IssuanceDate = c.Credential.IssuanceDate.UTC().Format("2006-01-02T15:04:05Z")
	}
	return resp
}
