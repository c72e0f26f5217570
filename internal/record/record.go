// Package record owns the off-chain credential records: the sensitive,
// human-readable mirror of each on-chain token. This store is the disclosure
// boundary: sensitive attributes live here and only here, and the ledger is
// always the source of truth for validity. Rows are projections: the state
// mutators must be called only after the corresponding ledger operation
// succeeded.
package record

import (
	"context"
	"time"

	"certledger/internal/commitment"
	"certledger/internal/domain"
)

// SagaState tracks how far the issuance saga got for one credential after
// the mint landed. A crashed orchestrator reads this to resume or flag for
// reconciliation instead of losing the mint/record linkage.
type SagaState string

const (
	// SagaRecorded: off-chain record persisted, claim token not yet sent.
	SagaRecorded SagaState = "recorded"
	// SagaNotified: claim notification dispatched.
	SagaNotified SagaState = "notified"
	// SagaNotifyFailed: dispatch failed; the claim token stays valid for a
	// manual resend.
	SagaNotifyFailed SagaState = "notify_failed"
	// SagaClaimed: recipient consumed the claim token.
	SagaClaimed SagaState = "claimed"
)

// Record is one off-chain credential row.
type Record struct {
	TokenID domain.TokenID

	EnrollmentID string

	RecipientID      string
	RecipientName    string
	RecipientEmail   string
	RecipientAddress domain.Address

	CourseID    string
	CourseTitle string

	CourseHash     commitment.Digest
	SubjectHash    commitment.Digest
	EvaluationHash commitment.Digest

	EvaluationScore     float64
	EvaluationNarrative string
	CompletedAt         time.Time

	CredentialType domain.CredentialType
	IsSoulbound    bool
	ValidUntil     time.Time

	IssuerName    string
	IssuerAddress domain.Address

	MetadataCID string
	TxHash      string
	BlockNumber uint64

	ConsentAt      time.Time
	RetentionClass string

	Revoked          bool
	RevocationReason string
	RevokedAt        time.Time

	ClaimedAt time.Time

	Anonymized bool
	SagaState  SagaState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filters narrows recipient listings.
type Filters struct {
	CredentialType domain.CredentialType // zero = all types
	IncludeRevoked bool
	Limit          int // zero = no limit
}

// Store is the off-chain record contract. Implementations must enforce a
// unique constraint on token id so concurrent saga retries are safe.
type Store interface {
	// Create persists a new record. Returns sentinel.ErrConflict when the
	// token id already exists (idempotency guard).
	Create(ctx context.Context, rec Record) error

	FindByToken(ctx context.Context, tokenID domain.TokenID) (Record, error)

	// FindByCommitment supports the cheap pre-issuance duplicate check
	// before any ledger traffic.
	FindByCommitment(ctx context.Context, courseHash, subjectHash commitment.Digest) (Record, error)

	FindByEnrollment(ctx context.Context, enrollmentID string) (Record, error)

	// FindByRecipient lists a recipient's credentials, newest first.
	FindByRecipient(ctx context.Context, recipientID string, filters Filters) ([]Record, error)

	// Revoke mirrors a successful ledger revocation.
	Revoke(ctx context.Context, tokenID domain.TokenID, reason string, revokedAt time.Time) error

	// Transfer mirrors a successful ledger transfer.
	Transfer(ctx context.Context, tokenID domain.TokenID, newRecipientID string, newAddress domain.Address) error

	// MarkClaimed records claim-token consumption.
	MarkClaimed(ctx context.Context, tokenID domain.TokenID, claimedAt time.Time) error

	// SetSagaState advances the durable saga marker.
	SetSagaState(ctx context.Context, tokenID domain.TokenID, state SagaState) error

	// Anonymize clears sensitive fields while retaining hash and
	// transaction linkage. Mutation hook for the retention collaborator;
	// rows are never deleted just because the token was burned.
	Anonymize(ctx context.Context, tokenID domain.TokenID) error
}
