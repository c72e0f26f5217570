package issuer

import (
	"context"
	"fmt"

	"certledger/internal/audit"
	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/internal/ledger"
	"certledger/internal/record"
	domainerrors "certledger/pkg/domain-errors"
)

// BatchItemResult reports the per-index outcome of a batch issuance.
type BatchItemResult struct {
	Index      int
	TokenID    domain.TokenID
	ClaimToken string
	Status     string
	Error      string
}

// BatchResult reports a batch issuance. Items is index-aligned with the
// request slice; TxHash is empty when nothing reached the ledger.
type BatchResult struct {
	TxHash      string
	BlockNumber uint64
	Items       []BatchItemResult
}

// BatchIssue runs the issuance saga for up to the contract's batch bound in
// one ledger transaction. Items that fail pre-checks are excluded before
// submission and reported by index; contract-level rejections come back the
// same way.
func (s *Service) BatchIssue(ctx context.Context, reqs []IssueRequest) (BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.batch-issue")
	defer span.End()

	if len(reqs) == 0 {
		return BatchResult{}, spanErr(span, domainerrors.New(domainerrors.CodeValidation, "batch must not be empty"))
	}
	if len(reqs) > s.batchLimit {
		return BatchResult{}, spanErr(span, domainerrors.New(domainerrors.CodeValidation,
			fmt.Sprintf("batch size %d exceeds limit %d", len(reqs), s.batchLimit)))
	}

	result := BatchResult{Items: make([]BatchItemResult, len(reqs))}
	for i := range result.Items {
		result.Items[i].Index = i
	}

	// Pre-checks and metadata uploads happen before any ledger traffic;
	// only items that survive go into the on-chain batch.
	type prepared struct {
		index                             int
		courseHash, subjectHash, evalHash commitment.Digest
		cid                               string
	}
	var ready []prepared

	for i, req := range reqs {
		if err := s.checkEligibility(ctx, req); err != nil {
			result.Items[i].Status = "rejected"
			result.Items[i].Error = err.Error()
			continue
		}
		courseHash, subjectHash, evalHash := deriveCommitments(req)
		if err := s.precheckDuplicate(ctx, courseHash, subjectHash); err != nil {
			result.Items[i].Status = "rejected"
			result.Items[i].Error = err.Error()
			continue
		}
		cid, err := s.uploadMetadata(ctx, req)
		if err != nil {
			result.Items[i].Status = "rejected"
			result.Items[i].Error = err.Error()
			continue
		}
		ready = append(ready, prepared{
			index:       i,
			courseHash:  courseHash,
			subjectHash: subjectHash,
			evalHash:    evalHash,
			cid:         cid,
		})
	}

	if len(ready) == 0 {
		return result, nil
	}

	params := make([]ledger.IssueParams, len(ready))
	for j, p := range ready {
		req := reqs[p.index]
		params[j] = ledger.IssueParams{
			Recipient:           req.RecipientAddress,
			CourseHash:          p.courseHash,
			SubjectHash:         p.subjectHash,
			EvaluationHash:      p.evalHash,
			CompletionTimestamp: req.CompletedAt,
			MetadataPointer:     p.cid,
			CredentialType:      req.CredentialType,
			IsSoulbound:         req.IsSoulbound,
			ValidUntil:          req.ValidUntil,
		}
	}

	receipt, err := s.ledger.BatchIssue(ctx, params)
	if err != nil {
		return BatchResult{}, spanErr(span, err)
	}
	result.TxHash = receipt.TxHash
	result.BlockNumber = receipt.BlockNumber

	rejected := make(map[int]string, len(receipt.Failed))
	for _, f := range receipt.Failed {
		rejected[f.Index] = f.Reason
	}

	for j, p := range ready {
		item := &result.Items[p.index]
		if reason, bad := rejected[j]; bad {
			item.Status = "rejected"
			item.Error = reason
			continue
		}

		tokenID := receipt.TokenIDs[j]
		item.TokenID = tokenID
		item.Status = StatusIssued

		req := reqs[p.index]
		issueReceipt := ledger.IssueReceipt{
			TokenID:     tokenID,
			TxHash:      receipt.TxHash,
			BlockNumber: receipt.BlockNumber,
		}
		if err := s.persistRecord(ctx, req, issueReceipt, p.courseHash, p.subjectHash, p.evalHash, p.cid); err != nil {
			s.logger.ErrorContext(ctx, "credential record persist failed after batch mint",
				"token_id", uint64(tokenID), "tx_hash", receipt.TxHash, "error", err)
			s.warn(warnReconciliationRequired)
			item.Status = StatusPendingReconciliation
			continue
		}

		claimToken, err := s.dispatchClaim(ctx, tokenID, req)
		item.ClaimToken = claimToken
		if err != nil {
			s.warn(warnNotifyFailed)
			item.Status = StatusNotifyFailed
			if serr := s.records.SetSagaState(ctx, tokenID, record.SagaNotifyFailed); serr != nil {
				s.logger.ErrorContext(ctx, "saga state update failed", "token_id", uint64(tokenID), "error", serr)
			}
		} else if serr := s.records.SetSagaState(ctx, tokenID, record.SagaNotified); serr != nil {
			s.logger.ErrorContext(ctx, "saga state update failed", "token_id", uint64(tokenID), "error", serr)
		}

		if s.metrics != nil {
			s.metrics.CredentialsIssued.Inc()
		}
	}

	s.emitAudit(ctx, audit.Event{
		Actor:   firstActor(reqs),
		Action:  audit.ActionBatchIssue,
		TxHash:  receipt.TxHash,
		Outcome: audit.OutcomeOK,
	})
	return result, nil
}

func firstActor(reqs []IssueRequest) string {
	for _, r := range reqs {
		if r.Actor != "" {
			return r.Actor
		}
	}
	return ""
}
