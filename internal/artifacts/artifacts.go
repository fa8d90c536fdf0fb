package artifacts

import (
	"context"
	"time"

	"attestor/internal/credential"
)

// Artifact is an issued credential kept for download by id. It is a
// short-lived cache entry, not a registry record.
type Artifact struct {
	ID         string                `json:"id"`
	Credential credential.Credential `json:"credential"`
	Payload    string                `json:"payload"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Store keeps artifacts until their TTL lapses. Find returns
// sentinel.ErrNotFound for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, a Artifact) error
	Find(ctx context.Context, id string) (Artifact, error)
}
