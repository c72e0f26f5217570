// Package metastore holds the full, human-readable credential metadata in a
// content-addressed store. The CID returned by Upload is the only pointer the
// ledger ever sees; the sensitive payload itself never touches the chain.
package metastore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainerrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"

	"certledger/internal/domain"
)

// Sentinel aliases so callers can branch without importing two packages.
var (
	ErrNotFound    = sentinel.ErrNotFound
	ErrUnavailable = sentinel.ErrUnavailable
)

// CredentialMetadata is the fixed schema uploaded per credential. This is the
// sensitive, human-readable counterpart of the on-chain commitments; the
// store validates shape here instead of trusting caller-supplied maps.
type CredentialMetadata struct {
	SchemaVersion  int                   `json:"schema_version"`
	CredentialType domain.CredentialType `json:"credential_type"`

	CourseID    string `json:"course_id"`
	CourseTitle string `json:"course_title"`

	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`

	EvaluationScore     float64   `json:"evaluation_score"`
	EvaluationNarrative string    `json:"evaluation_narrative,omitempty"`
	CompletedAt         time.Time `json:"completed_at"`

	IssuerName string    `json:"issuer_name"`
	IssuedAt   time.Time `json:"issued_at"`

	Description string `json:"description,omitempty"`
}

// Validate enforces the per-type schema at the store boundary.
func (m CredentialMetadata) Validate() error {
	if !m.CredentialType.Valid() {
		return domainerrors.New(domainerrors.CodeValidation, "unknown credential type")
	}
	if m.CourseID == "" || m.CourseTitle == "" {
		return domainerrors.New(domainerrors.CodeValidation, "course identity is required")
	}
	if m.RecipientName == "" || m.RecipientEmail == "" {
		return domainerrors.New(domainerrors.CodeValidation, "recipient identity is required")
	}
	if m.CompletedAt.IsZero() {
		return domainerrors.New(domainerrors.CodeValidation, "completion timestamp is required")
	}
	// Badges and micro-credentials may omit the narrative; diplomas and
	// certificates carry the full evaluation text.
	if m.EvaluationNarrative == "" &&
		(m.CredentialType == domain.TypeCertificate || m.CredentialType == domain.TypeDiploma) {
		return domainerrors.New(domainerrors.CodeValidation, "evaluation narrative is required for this credential type")
	}
	return nil
}

// Encode renders the canonical byte form used for CID derivation. Marshaling
// a fixed struct keeps field order stable, so the same metadata always maps
// to the same CID.
func (m CredentialMetadata) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = 1
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

// UploadResult reports where the metadata landed.
type UploadResult struct {
	CID       string
	SizeBytes int
}

// Store is the metadata store contract.
//
// Upload must be idempotent: the CID is derived from the bytes, so uploading
// the same metadata twice yields the same result. Fetch must re-verify the
// returned bytes against the CID. Pin is best effort and must never abort an
// issuance flow.
type Store interface {
	Upload(ctx context.Context, metadata CredentialMetadata) (UploadResult, error)
	Fetch(ctx context.Context, cidStr string) ([]byte, error)
	Pin(ctx context.Context, cidStr string) bool
}
