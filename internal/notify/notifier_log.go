package notify

import (
	"context"
	"log/slog"

	"certledger/pkg/email"
)

// LogNotifier writes notices to the structured log instead of delivering
// them. Dev-only; it deliberately omits the claim token from the log line.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendClaim(ctx context.Context, notice ClaimNotice) error {
	n.logger.InfoContext(ctx, "claim notice",
		slog.String("recipient", email.GreetingName(notice.RecipientName, notice.RecipientEmail)),
		slog.String("email", notice.RecipientEmail),
		slog.String("course", notice.CourseTitle),
		slog.Uint64("token_id", uint64(notice.TokenID)),
		slog.Time("claim_expires_at", notice.ExpiresAt),
	)
	return nil
}
