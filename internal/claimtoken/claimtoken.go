// Package claimtoken mints and consumes the single-use tokens that let a
// recipient take possession of a freshly issued credential. Tokens are opaque
// bearer secrets: nothing about the credential is derivable from the token
// value, and consumption is atomic so a token can never be redeemed twice.
package claimtoken

import (
	"context"
	"time"

	"github.com/google/uuid"

	"certledger/internal/domain"
)

// DefaultTTL bounds the claim window when the caller does not set one.
const DefaultTTL = 72 * time.Hour

// Grant is the payload a claim token resolves to.
type Grant struct {
	TokenID     domain.TokenID `json:"token_id"`
	RecipientID string         `json:"recipient_id"`
	IssuedAt    time.Time      `json:"issued_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Store issues and consumes claim tokens.
//
// Claim must be atomic: exactly one caller wins a racing redemption, every
// other caller gets sentinel.ErrNotFound. Expired and never-issued tokens are
// indistinguishable to the caller on purpose.
type Store interface {
	// Issue mints a fresh opaque token for the grant. ttl <= 0 uses
	// DefaultTTL.
	Issue(ctx context.Context, grant Grant, ttl time.Duration) (string, error)

	// Claim consumes the token and returns its grant. Returns
	// sentinel.ErrNotFound for unknown or already-consumed tokens and
	// sentinel.ErrExpired for tokens past their window.
	Claim(ctx context.Context, token string) (Grant, error)
}

func newToken() string {
	return uuid.NewString() + uuid.NewString()
}
