package issuer

import (
	"context"
	"errors"

	"certledger/internal/audit"
	"certledger/internal/domain"
	"certledger/internal/ledger"
	"certledger/internal/record"
	domainerrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// Revoke flips the irreversible revoked flag on the ledger and mirrors it to
// the record store. A mirror failure degrades to a reconciliation warning;
// the ledger state already changed.
func (s *Service) Revoke(ctx context.Context, actor string, tokenID domain.TokenID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "issuer.revoke")
	defer span.End()

	if err := s.ledger.Revoke(ctx, tokenID, reason); err != nil {
		s.emitAudit(ctx, audit.Event{
			Actor: actor, Action: audit.ActionRevoke, TokenID: tokenID,
			Outcome: audit.OutcomeDenied, Reason: err.Error(),
		})
		return spanErr(span, err)
	}

	if err := s.records.Revoke(ctx, tokenID, reason, s.clock()); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "record revoke mirror failed",
			"token_id", uint64(tokenID), "error", err)
		s.warn(warnReconciliationRequired)
	}

	if s.metrics != nil {
		s.metrics.CredentialsRevoked.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Actor: actor, Action: audit.ActionRevoke, TokenID: tokenID,
		Outcome: audit.OutcomeOK, Reason: reason,
	})
	return nil
}

// Transfer moves ownership on the ledger and mirrors the new holder into the
// record store.
func (s *Service) Transfer(ctx context.Context, actor string, from, to domain.Address, tokenID domain.TokenID, newRecipientID string) (ledger.TxReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.transfer")
	defer span.End()

	receipt, err := s.ledger.Transfer(ctx, from, to, tokenID)
	if err != nil {
		s.emitAudit(ctx, audit.Event{
			Actor: actor, Action: audit.ActionTransfer, TokenID: tokenID,
			Outcome: audit.OutcomeDenied, Reason: err.Error(),
		})
		return ledger.TxReceipt{}, spanErr(span, err)
	}

	if err := s.records.Transfer(ctx, tokenID, newRecipientID, to); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "record transfer mirror failed",
			"token_id", uint64(tokenID), "error", err)
		s.warn(warnReconciliationRequired)
	}

	s.emitAudit(ctx, audit.Event{
		Actor: actor, Action: audit.ActionTransfer, TokenID: tokenID,
		TxHash: receipt.TxHash, Outcome: audit.OutcomeOK,
	})
	return receipt, nil
}

// Burn destroys a revocable credential on the ledger. The off-chain record
// stays for the audit trail; only Anonymize ever strips it.
func (s *Service) Burn(ctx context.Context, actor string, tokenID domain.TokenID) error {
	ctx, span := s.tracer.Start(ctx, "issuer.burn")
	defer span.End()

	if err := s.ledger.Burn(ctx, tokenID); err != nil {
		return spanErr(span, err)
	}
	s.emitAudit(ctx, audit.Event{
		Actor: actor, Action: audit.ActionBurn, TokenID: tokenID, Outcome: audit.OutcomeOK,
	})
	return nil
}

// BurnExpired reclaims an expired credential. Admin maintenance action.
func (s *Service) BurnExpired(ctx context.Context, actor string, tokenID domain.TokenID) error {
	ctx, span := s.tracer.Start(ctx, "issuer.burn-expired")
	defer span.End()

	if err := s.ledger.BurnExpired(ctx, tokenID); err != nil {
		return spanErr(span, err)
	}
	s.emitAudit(ctx, audit.Event{
		Actor: actor, Action: audit.ActionBurn, TokenID: tokenID,
		Outcome: audit.OutcomeOK, Reason: "expired",
	})
	return nil
}

// SetVerified updates the out-of-band confirmation flag.
func (s *Service) SetVerified(ctx context.Context, actor string, tokenID domain.TokenID, verified bool) error {
	return s.ledger.SetVerified(ctx, tokenID, verified)
}

// Anonymize clears the sensitive record fields while keeping hash and
// transaction linkage. Ledger state is untouched; commitments carry no PII.
func (s *Service) Anonymize(ctx context.Context, actor string, tokenID domain.TokenID) error {
	if err := s.records.Anonymize(ctx, tokenID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "credential record not found")
		}
		return domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "anonymize failed", err)
	}
	s.emitAudit(ctx, audit.Event{
		Actor: actor, Action: audit.ActionAnonymize, TokenID: tokenID, Outcome: audit.OutcomeOK,
	})
	return nil
}

// ResendClaim mints a fresh claim token for an unclaimed credential and
// re-dispatches the notification.
func (s *Service) ResendClaim(ctx context.Context, actor string, tokenID domain.TokenID) error {
	ctx, span := s.tracer.Start(ctx, "issuer.resend-claim")
	defer span.End()

	rec, err := s.records.FindByToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return spanErr(span, domainerrors.New(domainerrors.CodeNotFound, "credential record not found"))
		}
		return spanErr(span, domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "record lookup failed", err))
	}
	if !rec.ClaimedAt.IsZero() {
		return spanErr(span, domainerrors.New(domainerrors.CodeValidation, "credential has already been claimed"))
	}

	_, err = s.dispatchClaim(ctx, tokenID, IssueRequest{
		RecipientID:     rec.RecipientID,
		RecipientName:   rec.RecipientName,
		RecipientEmail:  rec.RecipientEmail,
		CourseTitle:     rec.CourseTitle,
		IssuerName:      rec.IssuerName,
		EvaluationScore: rec.EvaluationScore,
	})
	if err != nil {
		s.warn(warnNotifyFailed)
		if serr := s.records.SetSagaState(ctx, tokenID, record.SagaNotifyFailed); serr != nil {
			s.logger.ErrorContext(ctx, "saga state update failed", "token_id", uint64(tokenID), "error", serr)
		}
		return spanErr(span, err)
	}

	if serr := s.records.SetSagaState(ctx, tokenID, record.SagaNotified); serr != nil {
		s.logger.ErrorContext(ctx, "saga state update failed", "token_id", uint64(tokenID), "error", serr)
	}
	s.emitAudit(ctx, audit.Event{
		Actor: actor, Action: audit.ActionResendClaim, TokenID: tokenID, Outcome: audit.OutcomeOK,
	})
	return nil
}

// CredentialOverview pairs a stored record with its live on-chain validity.
type CredentialOverview struct {
	Record       record.Record
	Verification ledger.Verification
}

// List returns a recipient's credentials, newest first, each annotated with
// the current ledger verdict.
func (s *Service) List(ctx context.Context, recipientID string, filters record.Filters) ([]CredentialOverview, error) {
	recs, err := s.records.FindByRecipient(ctx, recipientID, filters)
	if err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "record listing failed", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	ids := make([]domain.TokenID, len(recs))
	for i, r := range recs {
		ids[i] = r.TokenID
	}
	verdicts, err := s.ledger.VerifyMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CredentialOverview, len(recs))
	for i, r := range recs {
		out[i] = CredentialOverview{Record: r, Verification: verdicts[r.TokenID]}
	}
	return out, nil
}
