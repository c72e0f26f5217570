package domain

import (
	"time"

	"certledger/internal/commitment"
)

// TokenID identifies a credential on the ledger. Token ids are assigned
// monotonically by the contract starting at 1; zero means "no token".
type TokenID uint64

// Address is a ledger account address in 0x-prefixed hex form.
type Address string

// ZeroAddress is the null address; it is never a valid recipient.
const ZeroAddress Address = ""

// IsZero reports whether the address is null or the explicit zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress || a == "0x0" || a == "0x0000000000000000000000000000000000000000"
}

// CredentialType distinguishes the kinds of credentials the ledger records.
// Wire values 1..4 match the contract encoding.
type CredentialType uint8

const (
	TypeCertificate     CredentialType = 1
	TypeBadge           CredentialType = 2
	TypeDiploma         CredentialType = 3
	TypeMicroCredential CredentialType = 4
)

// Valid reports whether the type is one of the four known encodings.
func (t CredentialType) Valid() bool {
	return t >= TypeCertificate && t <= TypeMicroCredential
}

func (t CredentialType) String() string {
	switch t {
	case TypeCertificate:
		return "certificate"
	case TypeBadge:
		return "badge"
	case TypeDiploma:
		return "diploma"
	case TypeMicroCredential:
		return "micro-credential"
	default:
		return "unknown"
	}
}

// CredentialRecord is the on-chain view of a credential: commitments and
// bookkeeping only, never raw identity.
type CredentialRecord struct {
	TokenID             TokenID
	Owner               Address
	CourseHash          commitment.Digest
	SubjectHash         commitment.Digest
	EvaluationHash      commitment.Digest
	CompletionTimestamp time.Time
	MetadataPointer     string
	CredentialType      CredentialType
	IsSoulbound         bool
	Issuer              Address
	ValidUntil          time.Time // zero = permanent
	ZKProofDigest       commitment.Digest
	IsVerified          bool
	Revoked             bool
	RevocationReason    string
	IssuedAtBlock       uint64
}

// IsRevocable is derived, never stored: soulbound implies non-revocable by
// construction, so the two can never drift.
func (r CredentialRecord) IsRevocable() bool {
	return !r.IsSoulbound
}

// Expired reports whether the record is past its validity window at now.
// Expiry is a derived, query-time state; nothing on the ledger mutates.
func (r CredentialRecord) Expired(now time.Time) bool {
	return !r.ValidUntil.IsZero() && now.After(r.ValidUntil)
}

// ValidityReason classifies the record for verifiers: "valid", "revoked" or
// "expired". Missing tokens are handled before a record exists.
func (r CredentialRecord) ValidityReason(now time.Time) string {
	switch {
	case r.Revoked:
		return ReasonRevoked
	case r.Expired(now):
		return ReasonExpired
	default:
		return ReasonValid
	}
}

// Human-readable validity reasons returned to verifiers. ReasonUnknown means
// the ledger could not be consulted; callers should re-verify later.
const (
	ReasonValid    = "valid"
	ReasonRevoked  = "revoked"
	ReasonExpired  = "expired"
	ReasonNotFound = "not found"
	ReasonUnknown  = "unknown"
)
