// Package verify answers the two recipient-facing questions: "is this
// credential real and valid?" and "let me take possession of mine". The
// disclosure rule is enforced here once, identically for every transport:
// unprivileged callers see hash-level data only, never the sensitive record.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"certledger/internal/audit"
	"certledger/internal/claimtoken"
	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/internal/ledger"
	"certledger/internal/platform/metrics"
	"certledger/internal/record"
	domainerrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// Ledger is the read-only slice of the adapter this service needs.
type Ledger interface {
	Read(ctx context.Context, tokenID domain.TokenID) (domain.CredentialRecord, error)
	Verify(ctx context.Context, tokenID domain.TokenID, expectedOwner *domain.Address) (ledger.Verification, error)
}

// Auditor records domain events. Failures are logged, never propagated.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Caller identifies who is asking. The zero value is an anonymous caller.
type Caller struct {
	SubjectID  string
	Address    domain.Address
	Capability domain.Capability
}

// ClaimMeta carries request context recorded with a claim.
type ClaimMeta struct {
	RemoteAddr string
	UserAgent  string
}

// CredentialSummary is returned to a recipient on a successful claim.
type CredentialSummary struct {
	TokenID        domain.TokenID
	CredentialType domain.CredentialType
	CourseTitle    string
	IssuerName     string
	RecipientName  string
	CompletedAt    time.Time
	MetadataCID    string
	TxHash         string
	IsValid        bool
	Reason         string
}

// OnChainView is the hash-level projection anyone may see.
type OnChainView struct {
	Owner               domain.Address
	Issuer              domain.Address
	CourseHash          commitment.Digest
	SubjectHash         commitment.Digest
	EvaluationHash      commitment.Digest
	CredentialType      domain.CredentialType
	IsSoulbound         bool
	CompletionTimestamp time.Time
	ValidUntil          time.Time
	IsVerified          bool
}

// FilteredView is the capability-filtered verification answer. Record is
// populated only for the credential's recipient, its issuer, or an admin.
type FilteredView struct {
	TokenID domain.TokenID
	IsValid bool
	Reason  string

	OnChain *OnChainView
	Record  *record.Record
}

// Service implements claim and verification.
type Service struct {
	ledger  Ledger
	records record.Store
	claims  claimtoken.Store
	auditor Auditor

	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics wires the business counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock injects the timestamp source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(l Ledger, records record.Store, claims claimtoken.Store, auditor Auditor, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:  l,
		records: records,
		claims:  claims,
		auditor: auditor,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Claim consumes a single-use claim token and hands the recipient their
// credential summary. Unknown, replayed and expired tokens are deliberately
// indistinguishable to the caller.
func (s *Service) Claim(ctx context.Context, token string, meta ClaimMeta) (CredentialSummary, error) {
	grant, err := s.claims.Claim(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return CredentialSummary{}, domainerrors.New(domainerrors.CodeInvalidClaimToken,
				"invalid or expired claim token")
		}
		return CredentialSummary{}, domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "claim store failed", err)
	}

	rec, err := s.records.FindByToken(ctx, grant.TokenID)
	if err != nil {
		// The token was genuine but the record is gone; the claim is
		// spent either way, so surface it for reconciliation.
		return CredentialSummary{}, domainerrors.Wrap(domainerrors.CodeReconciliationRequired,
			"credential record missing for claimed token", err)
	}

	if !rec.ClaimedAt.IsZero() {
		// A credential is claimable exactly once. A leftover token for an
		// already-claimed credential, such as one minted by a resend, is
		// treated like any other dead token.
		return CredentialSummary{}, domainerrors.New(domainerrors.CodeInvalidClaimToken,
			"invalid or expired claim token")
	}

	verification, err := s.ledger.Verify(ctx, grant.TokenID, nil)
	if err != nil {
		// The claim token is already spent; failing here would strand the
		// recipient with no way to retry. Hand over the summary with
		// validity unknown and let them verify again later.
		s.logger.WarnContext(ctx, "ledger verify failed during claim",
			"token_id", uint64(grant.TokenID), "error", err)
		verification = ledger.Verification{Reason: domain.ReasonUnknown}
	}

	if err := s.records.MarkClaimed(ctx, grant.TokenID, s.clock()); err != nil {
		s.logger.ErrorContext(ctx, "mark claimed failed",
			"token_id", uint64(grant.TokenID), "error", err)
	}

	if s.metrics != nil {
		s.metrics.CredentialsClaimed.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Actor:      grant.RecipientID,
		Action:     audit.ActionClaim,
		TokenID:    grant.TokenID,
		TxHash:     rec.TxHash,
		Outcome:    audit.OutcomeOK,
		RemoteAddr: meta.RemoteAddr,
		UserAgent:  meta.UserAgent,
	})

	return CredentialSummary{
		TokenID:        rec.TokenID,
		CredentialType: rec.CredentialType,
		CourseTitle:    rec.CourseTitle,
		IssuerName:     rec.IssuerName,
		RecipientName:  rec.RecipientName,
		CompletedAt:    rec.CompletedAt,
		MetadataCID:    rec.MetadataCID,
		TxHash:         rec.TxHash,
		IsValid:        verification.IsValid,
		Reason:         verification.Reason,
	}, nil
}

// Verify answers a validity question with capability-based disclosure. A
// missing token is an answer ("not found"), not an error.
func (s *Service) Verify(ctx context.Context, tokenID domain.TokenID, caller Caller) (FilteredView, error) {
	verification, err := s.ledger.Verify(ctx, tokenID, nil)
	if err != nil {
		return FilteredView{}, err
	}

	s.countVerification(verification.Reason)
	s.emitAudit(ctx, audit.Event{
		Actor:   caller.SubjectID,
		Action:  audit.ActionVerify,
		TokenID: tokenID,
		Outcome: audit.OutcomeOK,
		Reason:  verification.Reason,
	})

	view := FilteredView{
		TokenID: tokenID,
		IsValid: verification.IsValid,
		Reason:  verification.Reason,
	}
	if verification.Reason == domain.ReasonNotFound {
		return view, nil
	}

	onchain, err := s.ledger.Read(ctx, tokenID)
	if err != nil {
		return FilteredView{}, err
	}
	view.OnChain = &OnChainView{
		Owner:               onchain.Owner,
		Issuer:              onchain.Issuer,
		CourseHash:          onchain.CourseHash,
		SubjectHash:         onchain.SubjectHash,
		EvaluationHash:      onchain.EvaluationHash,
		CredentialType:      onchain.CredentialType,
		IsSoulbound:         onchain.IsSoulbound,
		CompletionTimestamp: onchain.CompletionTimestamp,
		ValidUntil:          onchain.ValidUntil,
		IsVerified:          onchain.IsVerified,
	}

	rec, err := s.records.FindByToken(ctx, tokenID)
	if err != nil {
		// Without a record nobody gets the full view; hash-level data
		// still answers the validity question.
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "record lookup failed during verify",
				"token_id", uint64(tokenID), "error", err)
		}
		return view, nil
	}

	if s.allowedFullView(caller, rec, onchain) {
		view.Record = &rec
	}
	return view, nil
}

// allowedFullView is the single disclosure gate: the credential's current
// holder, the issuing party, and admins.
func (s *Service) allowedFullView(caller Caller, rec record.Record, onchain domain.CredentialRecord) bool {
	switch caller.Capability {
	case domain.CapabilityAdmin:
		return true
	case domain.CapabilityIssuer:
		return !caller.Address.IsZero() && caller.Address == onchain.Issuer
	case domain.CapabilityRecipient:
		if caller.SubjectID != "" && caller.SubjectID == rec.RecipientID {
			return true
		}
		return !caller.Address.IsZero() && caller.Address == onchain.Owner
	default:
		return false
	}
}

func (s *Service) countVerification(reason string) {
	if s.metrics == nil {
		return
	}
	outcome := reason
	if reason == domain.ReasonNotFound {
		outcome = "not_found"
	}
	s.metrics.Verifications.WithLabelValues(outcome).Inc()
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
