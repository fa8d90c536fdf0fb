package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Action names what happened.
type Action string

const (
	ActionDocumentVerified  Action = "document_verified"
	ActionCredentialIssued  Action = "credential_issued"
	ActionCredentialChecked Action = "credential_checked"
)

// Event is emitted from the pipeline to capture key outcomes. It never
// carries field values; the subject is referenced by hash only.
type Event struct {
	Action       Action    `json:"action"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
	SubjectHash  string    `json:"subject_hash,omitempty"`
	CredentialID string    `json:"credential_id,omitempty"`
	Score        float64   `json:"score,omitempty"`
	Accepted     bool      `json:"accepted"`
	Status       string    `json:"status,omitempty"`
}

// HashSubject returns a stable, non-reversible reference for a subject id.
func HashSubject(subjectID string) string {
	if subjectID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subjectID))
	return hex.EncodeToString(sum[:8])
}
