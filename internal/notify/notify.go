// Package notify dispatches claim notifications to credential recipients.
// The claim token rides in the notification and nowhere else, so a failed
// dispatch leaves the credential issued but unclaimable until a resend.
package notify

import (
	"context"
	"time"

	"certledger/internal/domain"
)

// ClaimNotice is everything a recipient needs to claim their credential.
type ClaimNotice struct {
	RecipientName  string
	RecipientEmail string
	CourseTitle    string
	IssuerName     string
	Score          float64
	TokenID        domain.TokenID
	ClaimToken     string
	ExpiresAt      time.Time
}

// Notifier delivers claim notices. Implementations must not log or persist
// the claim token beyond the delivery itself.
type Notifier interface {
	SendClaim(ctx context.Context, notice ClaimNotice) error
}
