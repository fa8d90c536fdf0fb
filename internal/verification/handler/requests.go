package handler

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator"

	"attestor/internal/credential"
	"attestor/internal/document"
	"attestor/internal/ocr"
	"attestor/internal/verification"
	dErrors "attestor/pkg/domain-errors"
)

var validate = validator.New()

// checkStruct runs tag validation and reports the first failing field.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return dErrors.Newf(dErrors.CodeValidation, "%s failed %q validation", first.Namespace(), first.Tag())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
}

// PageRequest is one page: recognized text, a base64 image, or both.
type PageRequest struct {
	Index *int   `json:"index,omitempty" validate:"omitempty,min=0,max=99"`
	Text  string `json:"text,omitempty" validate:"max=200000"`
	Image []byte `json:"image,omitempty"`
}

// ExtractRequest is the body for POST /api/v1/extract. Pages without an
// index take their position.
type ExtractRequest struct {
	Pages []PageRequest `json:"pages" validate:"required,min=1,max=20,dive"`
	Mode  string        `json:"mode,omitempty" validate:"omitempty,oneof=printed handwritten"`

	parsed verification.ExtractRequest
}

// Validate implements httputil.Validatable.
func (r *ExtractRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := checkStruct(r); err != nil {
		return err
	}
	return r.prepare()
}

func (r *ExtractRequest) prepare() error {
	mode, err := ocr.ParseMode(strings.TrimSpace(r.Mode))
	if err != nil {
		return err
	}
	pages := make([]verification.PageInput, 0, len(r.Pages))
	for i, p := range r.Pages {
		index := i
		if p.Index != nil {
			index = *p.Index
		}
		pages = append(pages, verification.PageInput{Index: index, Text: p.Text, Image: p.Image})
	}
	r.parsed = verification.ExtractRequest{Pages: pages, Mode: mode}
	return nil
}

// Parsed returns the validated domain request.
func (r *ExtractRequest) Parsed() verification.ExtractRequest {
	return r.parsed
}

// VerifyRequest is the body for POST /api/v1/verify and POST /api/v1/credentials.
type VerifyRequest struct {
	ExtractRequest
	Submitted map[string]string `json:"submitted" validate:"max=32,dive,keys,max=32,endkeys,max=500"`

	parsedValues document.Values
}

// Validate implements httputil.Validatable. Unknown field names are rejected.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := checkStruct(r); err != nil {
		return err
	}
	if err := r.ExtractRequest.prepare(); err != nil {
		return err
	}
	values, err := document.NewValues(r.Submitted)
	if err != nil {
		return err
	}
	r.parsedValues = values
	return nil
}

// Parsed returns the validated domain request.
func (r *VerifyRequest) Parsed() verification.VerifyRequest {
	return verification.VerifyRequest{
		ExtractRequest: r.ExtractRequest.Parsed(),
		Submitted:      r.parsedValues,
	}
}

// CredentialCheckRequest is the body for POST /api/v1/credentials/verify.
// Exactly one of payload or credential is set.
type CredentialCheckRequest struct {
	Payload    string          `json:"payload,omitempty" validate:"max=4194304"`
	Credential json.RawMessage `json:"credential,omitempty"`

	parsed *credential.Credential
}

// Validate implements httputil.Validatable.
func (r *CredentialCheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := checkStruct(r); err != nil {
		return err
	}
	r.Payload = strings.TrimSpace(r.Payload)
	hasCredential := len(r.Credential) > 0 && string(r.Credential) != "null"
	switch {
	case r.Payload == "" && !hasCredential:
		return dErrors.New(dErrors.CodeValidation, "payload or credential is required")
	case r.Payload != "" && hasCredential:
		return dErrors.New(dErrors.CodeValidation, "payload and credential are mutually exclusive")
	}
	if hasCredential {
		c, err := credential.Parse(r.Credential)
		if err != nil {
			return err
		}
		r.parsed = &c
	}
	return nil
}

// ParsedCredential returns the decoded credential, or nil when a payload was sent.
func (r *CredentialCheckRequest) ParsedCredential() *credential.Credential {
	return r.parsed
}

func parseSize(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 64 || size > 2048 {
		return 0, dErrors.New(dErrors.CodeValidation, "size must be an integer between 64 and 2048")
	}
	return size, nil
}
