// Package ledger is the typed client for the credential ledger contract. It
// is the only component that holds the transaction-signing identity; every
// other layer goes through it.
//
// Writes from the signing account are serialized client-side: the underlying
// chain orders transactions per account by nonce, so two concurrent mutations
// from the same identity would race. Reads run with unbounded concurrency.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/internal/ledger/contract"
	"certledger/internal/ledger/node"
	"certledger/internal/platform/metrics"
	domainerrors "certledger/pkg/domain-errors"

	"golang.org/x/sync/errgroup"
)

// gasMarginPct is the fixed safety margin applied on top of the gas estimate.
const gasMarginPct = 20

// defaultCallTimeout bounds every node call so external failures surface as
// typed errors instead of hanging callers.
const defaultCallTimeout = 30 * time.Second

// Backend is the node interface the adapter drives. The in-process simulated
// node satisfies it; a remote JSON-RPC backend would too.
type Backend interface {
	PendingNonce(ctx context.Context, addr domain.Address) (uint64, error)
	EstimateGas(ctx context.Context, tx node.Tx) (uint64, error)
	Submit(ctx context.Context, tx node.Tx) (node.Receipt, error)
	GetCredential(ctx context.Context, tokenID domain.TokenID) (domain.CredentialRecord, error)
	VerifyCredential(ctx context.Context, tokenID domain.TokenID, expectedOwner *domain.Address) (contract.VerifyResult, error)
}

// IssueParams are the adapter-level mint inputs.
type IssueParams struct {
	Recipient           domain.Address
	CourseHash          commitment.Digest
	SubjectHash         commitment.Digest
	EvaluationHash      commitment.Digest
	CompletionTimestamp time.Time
	MetadataPointer     string
	CredentialType      domain.CredentialType
	IsSoulbound         bool
	ValidUntil          time.Time
	ZKProofDigest       commitment.Digest
}

// IssueReceipt reports a successful mint.
type IssueReceipt struct {
	TokenID     domain.TokenID
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// TxReceipt reports any other successful write.
type TxReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// BatchReceipt reports a batch mint: applied token ids by input index plus
// the rejected indices with their revert reasons.
type BatchReceipt struct {
	TxReceipt
	TokenIDs []domain.TokenID
	Failed   []contract.BatchFailure
}

// Verification is the read-only validity answer.
type Verification struct {
	IsValid    bool
	Owner      domain.Address
	IsVerified bool
	Reason     string
}

// Adapter wraps the backend with the signing identity, write sequencing, gas
// policy and error translation.
type Adapter struct {
	backend Backend
	account domain.Address

	// writeSlot serializes mutating transactions from the signing account.
	// Buffered size 1: acquire by send, release by receive.
	writeSlot chan struct{}

	callTimeout time.Duration
	metrics     *metrics.Metrics
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// WithMetrics wires gas observation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates an adapter signing as account.
func New(backend Backend, account domain.Address, opts ...Option) *Adapter {
	a := &Adapter{
		backend:     backend,
		account:     account,
		writeSlot:   make(chan struct{}, 1),
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Account returns the adapter's signing address.
func (a *Adapter) Account() domain.Address { return a.account }

// Issue mints one credential.
func (a *Adapter) Issue(ctx context.Context, params IssueParams) (IssueReceipt, error) {
	if err := validateIssueParams(params); err != nil {
		return IssueReceipt{}, err
	}

	receipt, err := a.write(ctx, node.MethodIssue, contract.IssueArgs(params))
	if err != nil {
		return IssueReceipt{}, err
	}
	return IssueReceipt{
		TokenID:     receipt.TokenID,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// BatchIssue mints up to the contract's batch bound in one transaction.
// Per-item validation failures are pre-checked client-side so an obviously
// malformed batch never pays for a submission.
func (a *Adapter) BatchIssue(ctx context.Context, items []IssueParams) (BatchReceipt, error) {
	if len(items) == 0 {
		return BatchReceipt{}, domainerrors.New(domainerrors.CodeValidation, "batch must not be empty")
	}
	if len(items) > contract.MaxBatchSize {
		return BatchReceipt{}, domainerrors.New(domainerrors.CodeValidation,
			fmt.Sprintf("batch size %d exceeds limit %d", len(items), contract.MaxBatchSize))
	}

	args := make([]contract.IssueArgs, len(items))
	for i, p := range items {
		args[i] = contract.IssueArgs(p)
	}

	receipt, err := a.write(ctx, node.MethodBatchIssue, args)
	if err != nil {
		return BatchReceipt{}, err
	}

	out := BatchReceipt{
		TxReceipt: TxReceipt{
			TxHash:      receipt.TxHash,
			BlockNumber: receipt.BlockNumber,
			GasUsed:     receipt.GasUsed,
		},
	}
	if receipt.Batch != nil {
		out.TokenIDs = receipt.Batch.TokenIDs
		out.Failed = receipt.Batch.Failed
	}
	return out, nil
}

// Read returns the on-chain record for a token.
func (a *Adapter) Read(ctx context.Context, tokenID domain.TokenID) (domain.CredentialRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	rec, err := a.backend.GetCredential(ctx, tokenID)
	if err != nil {
		return domain.CredentialRecord{}, mapLedgerError(err)
	}
	return rec, nil
}

// Verify answers validity from on-chain data only.
func (a *Adapter) Verify(ctx context.Context, tokenID domain.TokenID, expectedOwner *domain.Address) (Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	res, err := a.backend.VerifyCredential(ctx, tokenID, expectedOwner)
	if err != nil {
		return Verification{}, mapLedgerError(err)
	}
	return Verification(res), nil
}

// VerifyMany fans verification reads out concurrently; the read path has no
// sequencing constraint.
func (a *Adapter) VerifyMany(ctx context.Context, tokenIDs []domain.TokenID) (map[domain.TokenID]Verification, error) {
	out := make(map[domain.TokenID]Verification, len(tokenIDs))
	results := make([]Verification, len(tokenIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, tokenID := range tokenIDs {
		g.Go(func() error {
			v, err := a.Verify(gctx, tokenID, nil)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, tokenID := range tokenIDs {
		out[tokenID] = results[i]
	}
	return out, nil
}

// Revoke sets the irreversible revoked flag with a reason.
func (a *Adapter) Revoke(ctx context.Context, tokenID domain.TokenID, reason string) error {
	if reason == "" {
		return domainerrors.New(domainerrors.CodeValidation, "revocation reason is required")
	}
	_, err := a.write(ctx, node.MethodRevoke, node.RevokeArgs{TokenID: tokenID, Reason: reason})
	return err
}

// Transfer moves ownership of a non-soulbound, currently valid credential.
func (a *Adapter) Transfer(ctx context.Context, from, to domain.Address, tokenID domain.TokenID) (TxReceipt, error) {
	if to.IsZero() {
		return TxReceipt{}, domainerrors.New(domainerrors.CodeValidation, "transfer target must not be zero")
	}
	receipt, err := a.write(ctx, node.MethodTransfer, node.TransferArgs{From: from, To: to, TokenID: tokenID})
	if err != nil {
		return TxReceipt{}, err
	}
	return TxReceipt{TxHash: receipt.TxHash, BlockNumber: receipt.BlockNumber, GasUsed: receipt.GasUsed}, nil
}

// Burn destroys a revocable credential and frees its commitment slot.
func (a *Adapter) Burn(ctx context.Context, tokenID domain.TokenID) error {
	_, err := a.write(ctx, node.MethodBurn, node.TokenArgs{TokenID: tokenID})
	return err
}

// BurnExpired reclaims an expired credential. Admin maintenance action.
func (a *Adapter) BurnExpired(ctx context.Context, tokenID domain.TokenID) error {
	_, err := a.write(ctx, node.MethodBurnExpired, node.TokenArgs{TokenID: tokenID})
	return err
}

// SetVerified updates the out-of-band confirmation flag.
func (a *Adapter) SetVerified(ctx context.Context, tokenID domain.TokenID, verified bool) error {
	_, err := a.write(ctx, node.MethodSetVerified, node.SetVerifiedArgs{TokenID: tokenID, Verified: verified})
	return err
}

// GrantRole assigns a ledger capability to an address.
func (a *Adapter) GrantRole(ctx context.Context, addr domain.Address, cap domain.Capability) error {
	_, err := a.write(ctx, node.MethodGrantRole, node.GrantRoleArgs{Address: addr, Capability: cap})
	return err
}

// write runs the estimate -> margin -> submit sequence while holding the
// account's single write slot.
func (a *Adapter) write(ctx context.Context, method node.Method, args any) (node.Receipt, error) {
	select {
	case a.writeSlot <- struct{}{}:
		defer func() { <-a.writeSlot }()
	case <-ctx.Done():
		return node.Receipt{}, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	nonce, err := a.backend.PendingNonce(ctx, a.account)
	if err != nil {
		return node.Receipt{}, mapLedgerError(err)
	}

	tx := node.Tx{From: a.account, Nonce: nonce, Method: method, Args: args}
	estimate, err := a.backend.EstimateGas(ctx, tx)
	if err != nil {
		return node.Receipt{}, mapLedgerError(err)
	}
	tx.GasLimit = estimate + estimate*gasMarginPct/100

	receipt, err := a.backend.Submit(ctx, tx)
	if err != nil {
		return receipt, mapLedgerError(err)
	}

	if a.metrics != nil {
		a.metrics.GasUsed.WithLabelValues(string(method)).Observe(float64(receipt.GasUsed))
	}
	return receipt, nil
}

func validateIssueParams(p IssueParams) error {
	switch {
	case p.Recipient.IsZero():
		return domainerrors.New(domainerrors.CodeValidation, "recipient address must not be zero")
	case p.CourseHash.IsZero() || p.SubjectHash.IsZero() || p.EvaluationHash.IsZero():
		return domainerrors.New(domainerrors.CodeValidation, "commitment hashes must not be empty")
	case !p.CredentialType.Valid():
		return domainerrors.New(domainerrors.CodeValidation, "credential type must be 1..4")
	case !p.ValidUntil.IsZero() && !p.ValidUntil.After(time.Now()):
		return domainerrors.New(domainerrors.CodeValidation, "validUntil must be zero or in the future")
	case p.MetadataPointer == "":
		return domainerrors.New(domainerrors.CodeValidation, "metadata pointer is required")
	}
	return nil
}

// mapLedgerError translates node and contract failures into the domain error
// taxonomy. Revert reasons travel verbatim in the message so operators see
// what the contract actually said.
func mapLedgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, contract.ErrDuplicateCredential):
		return domainerrors.Wrap(domainerrors.CodeDuplicateCredential, contract.ErrDuplicateCredential.Reason, err)
	case errors.Is(err, contract.ErrTokenNotFound):
		return domainerrors.Wrap(domainerrors.CodeNotFound, contract.ErrTokenNotFound.Reason, err)
	case errors.Is(err, contract.ErrNotRevocable):
		return domainerrors.Wrap(domainerrors.CodeNotRevocable, contract.ErrNotRevocable.Reason, err)
	case errors.Is(err, contract.ErrSoulboundTransfer):
		return domainerrors.Wrap(domainerrors.CodeSoulboundTransfer, contract.ErrSoulboundTransfer.Reason, err)
	case errors.Is(err, contract.ErrRevokedOrExpired):
		return domainerrors.Wrap(domainerrors.CodeRevokedOrExpired, contract.ErrRevokedOrExpired.Reason, err)
	case errors.Is(err, contract.ErrAlreadyRevoked):
		return domainerrors.Wrap(domainerrors.CodeRevokedOrExpired, contract.ErrAlreadyRevoked.Reason, err)
	case errors.Is(err, contract.ErrUnauthorized):
		return domainerrors.Wrap(domainerrors.CodeUnauthorized, contract.ErrUnauthorized.Reason, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "ledger call timed out", err)
	default:
		var re *contract.RevertError
		if errors.As(err, &re) {
			return domainerrors.Wrap(domainerrors.CodeValidation, re.Reason, err)
		}
		return domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "ledger call failed", err)
	}
}
