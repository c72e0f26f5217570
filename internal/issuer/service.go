// Package issuer orchestrates the issuance saga: eligibility, metadata
// upload, on-chain mint, off-chain record, claim-token dispatch. The ledger
// mint is the point of no return; everything after it degrades to a warning
// status instead of failing the issuance.
package issuer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certledger/internal/audit"
	"certledger/internal/claimtoken"
	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/internal/ledger"
	"certledger/internal/ledger/contract"
	"certledger/internal/metastore"
	"certledger/internal/notify"
	"certledger/internal/platform/metrics"
	"certledger/internal/record"
	domainerrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// Issuance statuses. Anything but StatusIssued means the mint landed but a
// follow-up step needs operator attention.
const (
	StatusIssued                = "issued"
	StatusPendingReconciliation = "issued-pending-reconciliation"
	StatusNotifyFailed          = "issued-notify-failed"
)

// Saga warning kinds for the metrics counter.
const (
	warnReconciliationRequired = "reconciliation_required"
	warnNotifyFailed           = "notify_failed"
)

// Ledger is the slice of the ledger adapter the orchestrator drives.
type Ledger interface {
	Account() domain.Address
	Issue(ctx context.Context, params ledger.IssueParams) (ledger.IssueReceipt, error)
	BatchIssue(ctx context.Context, items []ledger.IssueParams) (ledger.BatchReceipt, error)
	Read(ctx context.Context, tokenID domain.TokenID) (domain.CredentialRecord, error)
	Verify(ctx context.Context, tokenID domain.TokenID, expectedOwner *domain.Address) (ledger.Verification, error)
	VerifyMany(ctx context.Context, tokenIDs []domain.TokenID) (map[domain.TokenID]ledger.Verification, error)
	Revoke(ctx context.Context, tokenID domain.TokenID, reason string) error
	Transfer(ctx context.Context, from, to domain.Address, tokenID domain.TokenID) (ledger.TxReceipt, error)
	Burn(ctx context.Context, tokenID domain.TokenID) error
	BurnExpired(ctx context.Context, tokenID domain.TokenID) error
	SetVerified(ctx context.Context, tokenID domain.TokenID, verified bool) error
}

// Auditor records domain events. Failures are logged, never propagated.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// IssueRequest carries everything needed to mint one credential.
type IssueRequest struct {
	Actor string

	EnrollmentID string

	RecipientID      string
	RecipientName    string
	RecipientEmail   string
	RecipientAddress domain.Address

	CourseID    string
	CourseTitle string

	EvaluationScore     float64
	EvaluationNarrative string
	Passed              bool
	CompletedAt         time.Time

	CredentialType domain.CredentialType
	IsSoulbound    bool
	ValidUntil     time.Time

	IssuerName  string
	Description string

	ConsentAt      time.Time
	RetentionClass string
}

// IssueResult reports the saga outcome for one credential.
type IssueResult struct {
	TokenID    domain.TokenID
	TxHash     string
	ClaimToken string
	Status     string
}

// Service is the issuance orchestrator. All collaborators are injected.
type Service struct {
	ledger   Ledger
	metadata metastore.Store
	records  record.Store
	claims   claimtoken.Store
	notifier notify.Notifier
	auditor  Auditor

	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	clock      func() time.Time
	claimTTL   time.Duration
	batchLimit int
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

// WithClaimTTL overrides the claim-token window.
func WithClaimTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.claimTTL = ttl
		}
	}
}

// WithBatchLimit lowers the batch-issue bound below the contract's own. The
// contract limit always applies.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 && n < contract.MaxBatchSize {
			s.batchLimit = n
		}
	}
}

func New(
	l Ledger,
	metadata metastore.Store,
	records record.Store,
	claims claimtoken.Store,
	notifier notify.Notifier,
	auditor Auditor,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		ledger:     l,
		metadata:   metadata,
		records:    records,
		claims:     claims,
		notifier:   notifier,
		auditor:    auditor,
		logger:     logger,
		tracer:     otel.Tracer("certledger/issuer"),
		clock:      time.Now,
		claimTTL:   claimtoken.DefaultTTL,
		batchLimit: contract.MaxBatchSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue runs the full issuance saga for one credential.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.issue")
	defer span.End()

	if err := s.checkEligibility(ctx, req); err != nil {
		return IssueResult{}, spanErr(span, err)
	}

	courseHash, subjectHash, evaluationHash := deriveCommitments(req)

	if err := s.precheckDuplicate(ctx, courseHash, subjectHash); err != nil {
		return IssueResult{}, spanErr(span, err)
	}

	cid, err := s.uploadMetadata(ctx, req)
	if err != nil {
		return IssueResult{}, spanErr(span, err)
	}

	receipt, err := s.mint(ctx, req, courseHash, subjectHash, evaluationHash, cid)
	if err != nil {
		// The metadata blob is orphaned but content-addressed; a later
		// retry with the same payload reuses it.
		return IssueResult{}, spanErr(span, err)
	}

	result := IssueResult{TokenID: receipt.TokenID, TxHash: receipt.TxHash, Status: StatusIssued}

	if err := s.persistRecord(ctx, req, receipt, courseHash, subjectHash, evaluationHash, cid); err != nil {
		// The token exists on the ledger but the off-chain mirror does
		// not. Surface as a warning, never a failure: failing here would
		// tempt callers into re-minting.
		s.logger.ErrorContext(ctx, "credential record persist failed after mint",
			"token_id", uint64(receipt.TokenID),
			"tx_hash", receipt.TxHash,
			"error", err,
		)
		s.warn(warnReconciliationRequired)
		result.Status = StatusPendingReconciliation
		s.emitAudit(ctx, audit.Event{
			Actor: req.Actor, Action: audit.ActionIssue,
			TokenID: receipt.TokenID, TxHash: receipt.TxHash,
			Outcome: audit.OutcomeError, Reason: "record persist failed",
		})
		return result, nil
	}

	claimToken, err := s.dispatchClaim(ctx, receipt.TokenID, req)
	result.ClaimToken = claimToken
	if err != nil {
		s.logger.WarnContext(ctx, "claim notification failed",
			"token_id", uint64(receipt.TokenID),
			"error", err,
		)
		s.warn(warnNotifyFailed)
		if serr := s.records.SetSagaState(ctx, receipt.TokenID, record.SagaNotifyFailed); serr != nil {
			s.logger.ErrorContext(ctx, "saga state update failed",
				"token_id", uint64(receipt.TokenID), "error", serr)
		}
		result.Status = StatusNotifyFailed
	} else {
		if serr := s.records.SetSagaState(ctx, receipt.TokenID, record.SagaNotified); serr != nil {
			s.logger.ErrorContext(ctx, "saga state update failed",
				"token_id", uint64(receipt.TokenID), "error", serr)
		}
	}

	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Actor: req.Actor, Action: audit.ActionIssue,
		TokenID: receipt.TokenID, TxHash: receipt.TxHash,
		Outcome: audit.OutcomeOK,
	})
	return result, nil
}

func (s *Service) checkEligibility(ctx context.Context, req IssueRequest) error {
	ctx, span := s.tracer.Start(ctx, "issuer.eligibility")
	defer span.End()

	switch {
	case req.RecipientID == "" || req.EnrollmentID == "":
		return domainerrors.New(domainerrors.CodeValidation, "recipient and enrollment identity are required")
	case req.RecipientAddress.IsZero():
		return domainerrors.New(domainerrors.CodeValidation, "recipient ledger address is required")
	case req.CourseID == "":
		return domainerrors.New(domainerrors.CodeValidation, "course id is required")
	case req.CompletedAt.IsZero():
		return domainerrors.New(domainerrors.CodeNotEligible, "course completion has not been recorded")
	case !req.Passed:
		return domainerrors.New(domainerrors.CodeNotEligible, "evaluation has not been passed")
	case req.ConsentAt.IsZero():
		return domainerrors.New(domainerrors.CodeNotEligible, "recipient consent has not been recorded")
	}

	existing, err := s.records.FindByEnrollment(ctx, req.EnrollmentID)
	switch {
	case err == nil && !existing.Revoked:
		return domainerrors.New(domainerrors.CodeAlreadyIssued,
			"enrollment already has credential "+strconv.FormatUint(uint64(existing.TokenID), 10))
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "record lookup failed", err)
	}
	return nil
}

// precheckDuplicate consults the off-chain index before paying for a ledger
// submission. The ledger remains the authority: a stale hit is re-checked
// on-chain so a burned token never blocks legitimate re-issuance.
func (s *Service) precheckDuplicate(ctx context.Context, courseHash, subjectHash commitment.Digest) error {
	existing, err := s.records.FindByCommitment(ctx, courseHash, subjectHash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "record lookup failed", err)
	}

	onchain, err := s.ledger.Read(ctx, existing.TokenID)
	if err != nil {
		if domainerrors.Is(err, domainerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if onchain.Revoked {
		// Revocation does not free the commitment slot; only a burn does.
		return domainerrors.New(domainerrors.CodeDuplicateCredential,
			"revoked credential "+strconv.FormatUint(uint64(existing.TokenID), 10)+
				" still holds this commitment; burn it before re-issuing")
	}
	return domainerrors.New(domainerrors.CodeDuplicateCredential,
		"credential already issued for this course and subject")
}

func (s *Service) uploadMetadata(ctx context.Context, req IssueRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.metadata-upload")
	defer span.End()

	res, err := s.metadata.Upload(ctx, metastore.CredentialMetadata{
		CredentialType:      req.CredentialType,
		CourseID:            req.CourseID,
		CourseTitle:         req.CourseTitle,
		RecipientName:       req.RecipientName,
		RecipientEmail:      req.RecipientEmail,
		EvaluationScore:     req.EvaluationScore,
		EvaluationNarrative: req.EvaluationNarrative,
		CompletedAt:         req.CompletedAt,
		IssuerName:          req.IssuerName,
		IssuedAt:            s.clock(),
		Description:         req.Description,
	})
	if err != nil {
		if errors.Is(err, metastore.ErrUnavailable) {
			return "", spanErr(span, domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "metadata store unavailable", err))
		}
		return "", spanErr(span, err)
	}

	s.metadata.Pin(ctx, res.CID)
	return res.CID, nil
}

func (s *Service) mint(
	ctx context.Context,
	req IssueRequest,
	courseHash, subjectHash, evaluationHash commitment.Digest,
	cid string,
) (ledger.IssueReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.ledger-issue")
	defer span.End()

	receipt, err := s.ledger.Issue(ctx, ledger.IssueParams{
		Recipient:           req.RecipientAddress,
		CourseHash:          courseHash,
		SubjectHash:         subjectHash,
		EvaluationHash:      evaluationHash,
		CompletionTimestamp: req.CompletedAt,
		MetadataPointer:     cid,
		CredentialType:      req.CredentialType,
		IsSoulbound:         req.IsSoulbound,
		ValidUntil:          req.ValidUntil,
	})
	if err != nil {
		return ledger.IssueReceipt{}, spanErr(span, err)
	}
	return receipt, nil
}

func (s *Service) persistRecord(
	ctx context.Context,
	req IssueRequest,
	receipt ledger.IssueReceipt,
	courseHash, subjectHash, evaluationHash commitment.Digest,
	cid string,
) error {
	ctx, span := s.tracer.Start(ctx, "issuer.record-persist")
	defer span.End()

	return s.records.Create(ctx, record.Record{
		TokenID:             receipt.TokenID,
		EnrollmentID:        req.EnrollmentID,
		RecipientID:         req.RecipientID,
		RecipientName:       req.RecipientName,
		RecipientEmail:      req.RecipientEmail,
		RecipientAddress:    req.RecipientAddress,
		CourseID:            req.CourseID,
		CourseTitle:         req.CourseTitle,
		CourseHash:          courseHash,
		SubjectHash:         subjectHash,
		EvaluationHash:      evaluationHash,
		EvaluationScore:     req.EvaluationScore,
		EvaluationNarrative: req.EvaluationNarrative,
		CompletedAt:         req.CompletedAt,
		CredentialType:      req.CredentialType,
		IsSoulbound:         req.IsSoulbound,
		ValidUntil:          req.ValidUntil,
		IssuerName:          req.IssuerName,
		IssuerAddress:       s.ledger.Account(),
		MetadataCID:         cid,
		TxHash:              receipt.TxHash,
		BlockNumber:         receipt.BlockNumber,
		ConsentAt:           req.ConsentAt,
		RetentionClass:      req.RetentionClass,
	})
}

// dispatchClaim mints the single-use claim token and sends the notice. The
// token is minted first so a delivery failure leaves it valid for a resend.
func (s *Service) dispatchClaim(ctx context.Context, tokenID domain.TokenID, req IssueRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.claim-dispatch")
	defer span.End()

	token, err := s.claims.Issue(ctx, claimtoken.Grant{
		TokenID:     tokenID,
		RecipientID: req.RecipientID,
	}, s.claimTTL)
	if err != nil {
		return "", spanErr(span, err)
	}

	err = s.notifier.SendClaim(ctx, notify.ClaimNotice{
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		CourseTitle:    req.CourseTitle,
		IssuerName:     req.IssuerName,
		Score:          req.EvaluationScore,
		TokenID:        tokenID,
		ClaimToken:     token,
		ExpiresAt:      s.clock().Add(s.claimTTL),
	})
	if err != nil {
		return token, spanErr(span, err)
	}
	return token, nil
}

func deriveCommitments(req IssueRequest) (courseHash, subjectHash, evaluationHash commitment.Digest) {
	courseHash = commitment.HashString(req.CourseID)
	subjectHash = commitment.HashString(req.RecipientID)
	evaluationHash = commitment.CompositeHash(
		[]byte(strconv.FormatFloat(req.EvaluationScore, 'f', -1, 64)),
		[]byte(req.EvaluationNarrative),
		[]byte(req.CompletedAt.UTC().Format(time.RFC3339)),
	)
	return courseHash, subjectHash, evaluationHash
}

func (s *Service) warn(kind string) {
	if s.metrics != nil {
		s.metrics.SagaWarnings.WithLabelValues(kind).Inc()
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func spanErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
