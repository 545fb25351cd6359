package certificate

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("certificate not found")

// the registry row exists but the PDF is gone from disk (download time only)
var ErrArtifactMissing = errors.New("certificate artifact missing")

// rendering failed beyond recovery, including the fallback layout
var ErrGenerationFailed = errors.New("certificate generation failed")

// Certificate is one issued artifact. CertificatePath is relative to the
// upload root and is written only after the PDF exists on disk.
type Certificate struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	EventID         string    `json:"eventId"`
	CertificatePath string    `json:"certificatePath"`
	IssuedAt        time.Time `json:"issuedAt"`
}

type CreateRequest struct {
	UserID          string
	EventID         string
	CertificatePath string
	IssuedAt        time.Time
}

func NewFromCreateRequest(req CreateRequest) Certificate {
	issuedAt := req.IssuedAt

	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	return Certificate{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		EventID:         req.EventID,
		CertificatePath: req.CertificatePath,
		IssuedAt:        issuedAt,
	}
}
