// Package contract implements the credential ledger state machine. It is
// deterministic, dependency-free Go executed by the in-process node
// (internal/ledger/node): all inputs arrive through Env and the argument
// structs, all outputs leave as records, events, or revert errors.
//
// Per-token lifecycle: Unminted -> Active -> {Revoked | Expired | Burned}.
// Expired is derived at query time from ValidUntil and is never stored.
// Soulbound records are non-revocable, non-transferable and non-burnable by
// construction; the uniqueness slot of a burned token is freed, every other
// slot is held forever.
package contract

import (
	"time"

	"certledger/internal/commitment"
	"certledger/internal/domain"
)

// MaxBatchSize bounds a single batch issuance to cap worst-case gas and
// failure blast radius.
const MaxBatchSize = 50

// Env carries per-transaction execution context supplied by the node.
type Env struct {
	Sender domain.Address
	Now    time.Time
}

// Event is an emitted contract event. Identifying fields are commitments
// only; raw PII never appears in an event.
type Event struct {
	Type        EventType
	TokenID     domain.TokenID
	CourseHash  commitment.Digest
	SubjectHash commitment.Digest
	From        domain.Address
	To          domain.Address
	Reason      string
	At          time.Time
}

type EventType string

const (
	EventIssued   EventType = "CredentialIssued"
	EventRevoked  EventType = "CredentialRevoked"
	EventTransfer EventType = "Transfer"
	EventBurned   EventType = "CredentialBurned"
	EventVerified EventType = "VerificationUpdated"
)

// IssueArgs are the inputs to a single mint.
type IssueArgs struct {
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

// BatchFailure reports one rejected item of a batch by input index.
type BatchFailure struct {
	Index  int
	Reason string
}

// BatchResult reports the outcome of a batch issuance. Applied and Failed
// partition the input indices; the batch never silently partially applies.
type BatchResult struct {
	TokenIDs []domain.TokenID // zero for failed indices
	Failed   []BatchFailure
}

// VerifyResult is the read-only validity check outcome.
type VerifyResult struct {
	IsValid    bool
	Owner      domain.Address
	IsVerified bool
	Reason     string
}

// Contract holds the ledger state. All mutation goes through the node, which
// serializes execution; the contract itself assumes single-threaded access
// like any on-chain program.
type Contract struct {
	records     map[domain.TokenID]*domain.CredentialRecord
	commitments map[commitment.Digest]domain.TokenID
	roles       map[domain.Address]domain.Capability
	approvals   map[domain.TokenID]domain.Address
	nextTokenID domain.TokenID
}

// New creates a contract with the deployer holding the admin role.
func New(deployer domain.Address) *Contract {
	return &Contract{
		records:     make(map[domain.TokenID]*domain.CredentialRecord),
		commitments: make(map[commitment.Digest]domain.TokenID),
		roles:       map[domain.Address]domain.Capability{deployer: domain.CapabilityAdmin},
		approvals:   make(map[domain.TokenID]domain.Address),
		nextTokenID: 1,
	}
}

// GrantRole assigns a capability to an address. Admin only.
func (c *Contract) GrantRole(env Env, addr domain.Address, cap domain.Capability) error {
	if !c.hasRole(env.Sender, domain.CapabilityAdmin) {
		return ErrUnauthorized
	}
	if addr.IsZero() {
		return revert("cannot grant role to the zero address")
	}
	c.roles[addr] = cap
	return nil
}

// Issue mints one credential and registers its commitment.
func (c *Contract) Issue(env Env, args IssueArgs) (domain.TokenID, []Event, error) {
	if err := c.validateIssue(env, args); err != nil {
		return 0, nil, err
	}

	pair := commitment.Pair(args.CourseHash, args.SubjectHash)
	if _, taken := c.commitments[pair]; taken {
		return 0, nil, ErrDuplicateCredential
	}

	tokenID := c.nextTokenID
	c.nextTokenID++

	c.records[tokenID] = &domain.CredentialRecord{
		TokenID:             tokenID,
		Owner:               args.Recipient,
		CourseHash:          args.CourseHash,
		SubjectHash:         args.SubjectHash,
		EvaluationHash:      args.EvaluationHash,
		CompletionTimestamp: args.CompletionTimestamp,
		MetadataPointer:     args.MetadataPointer,
		CredentialType:      args.CredentialType,
		IsSoulbound:         args.IsSoulbound,
		Issuer:              env.Sender,
		ValidUntil:          args.ValidUntil,
		ZKProofDigest:       args.ZKProofDigest,
	}
	c.commitments[pair] = tokenID

	ev := Event{
		Type:        EventIssued,
		TokenID:     tokenID,
		CourseHash:  args.CourseHash,
		SubjectHash: args.SubjectHash,
		To:          args.Recipient,
		At:          env.Now,
	}
	return tokenID, []Event{ev}, nil
}

// BatchIssue mints up to MaxBatchSize credentials. An oversized batch reverts
// before any state mutation. Individual invalid items are rejected with their
// index while the rest of the batch applies.
func (c *Contract) BatchIssue(env Env, items []IssueArgs) (BatchResult, []Event, error) {
	if len(items) == 0 {
		return BatchResult{}, nil, revert("empty batch")
	}
	if len(items) > MaxBatchSize {
		return BatchResult{}, nil, ErrBatchTooLarge
	}

	res := BatchResult{TokenIDs: make([]domain.TokenID, len(items))}
	var events []Event
	for i, args := range items {
		tokenID, evs, err := c.Issue(env, args)
		if err != nil {
			reason := err.Error()
			if re, ok := err.(*RevertError); ok {
				reason = re.Reason
			}
			res.Failed = append(res.Failed, BatchFailure{Index: i, Reason: reason})
			continue
		}
		res.TokenIDs[i] = tokenID
		events = append(events, evs...)
	}
	return res, events, nil
}

// Get returns the on-chain record. Burned and unminted tokens do not exist.
func (c *Contract) Get(tokenID domain.TokenID) (domain.CredentialRecord, error) {
	rec, ok := c.records[tokenID]
	if !ok {
		return domain.CredentialRecord{}, ErrTokenNotFound
	}
	return *rec, nil
}

// Verify answers validity using only on-chain data. Anyone may call it.
func (c *Contract) Verify(now time.Time, tokenID domain.TokenID, expectedOwner *domain.Address) VerifyResult {
	rec, ok := c.records[tokenID]
	if !ok {
		return VerifyResult{Reason: domain.ReasonNotFound}
	}

	reason := rec.ValidityReason(now)
	res := VerifyResult{
		IsValid:    reason == domain.ReasonValid,
		Owner:      rec.Owner,
		IsVerified: rec.IsVerified,
		Reason:     reason,
	}
	if expectedOwner != nil && rec.Owner != *expectedOwner {
		res.IsValid = false
	}
	return res
}

// Revoke sets the irreversible revoked flag. Only the original issuer or an
// admin may revoke, and only revocable (non-soulbound) records.
func (c *Contract) Revoke(env Env, tokenID domain.TokenID, reason string) ([]Event, error) {
	rec, ok := c.records[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if rec.IsSoulbound {
		return nil, ErrNotRevocable
	}
	if env.Sender != rec.Issuer && !c.hasRole(env.Sender, domain.CapabilityAdmin) {
		return nil, ErrUnauthorized
	}
	if rec.Revoked {
		return nil, ErrAlreadyRevoked
	}

	rec.Revoked = true
	rec.RevocationReason = reason
	return []Event{{
		Type:    EventRevoked,
		TokenID: tokenID,
		Reason:  reason,
		At:      env.Now,
	}}, nil
}

// Transfer moves ownership. Permitted only while Active, non-expired and
// non-soulbound; validity is enforced here at the mutation boundary, not just
// at query time.
func (c *Contract) Transfer(env Env, from, to domain.Address, tokenID domain.TokenID) ([]Event, error) {
	rec, ok := c.records[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if rec.IsSoulbound {
		return nil, ErrSoulboundTransfer
	}
	if to.IsZero() {
		return nil, revert("cannot transfer to the zero address")
	}
	if from != rec.Owner {
		return nil, revert("from address does not own token")
	}
	if env.Sender != rec.Owner && c.approvals[tokenID] != env.Sender {
		return nil, ErrUnauthorized
	}
	if rec.Revoked || rec.Expired(env.Now) {
		return nil, ErrRevokedOrExpired
	}

	rec.Owner = to
	delete(c.approvals, tokenID)
	return []Event{{
		Type:    EventTransfer,
		TokenID: tokenID,
		From:    from,
		To:      to,
		At:      env.Now,
	}}, nil
}

// Approve lets the holder delegate transfer/burn rights for one token.
func (c *Contract) Approve(env Env, tokenID domain.TokenID, delegate domain.Address) error {
	rec, ok := c.records[tokenID]
	if !ok {
		return ErrTokenNotFound
	}
	if env.Sender != rec.Owner {
		return ErrUnauthorized
	}
	if delegate.IsZero() {
		delete(c.approvals, tokenID)
		return nil
	}
	c.approvals[tokenID] = delegate
	return nil
}

// Burn destroys a revocable token and frees its commitment slot. Holder or
// approved delegate only.
func (c *Contract) Burn(env Env, tokenID domain.TokenID) ([]Event, error) {
	rec, ok := c.records[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if rec.IsSoulbound {
		return nil, ErrNotRevocable
	}
	if env.Sender != rec.Owner && c.approvals[tokenID] != env.Sender {
		return nil, ErrUnauthorized
	}

	c.remove(tokenID, rec)
	return []Event{{
		Type:    EventBurned,
		TokenID: tokenID,
		From:    rec.Owner,
		At:      env.Now,
	}}, nil
}

// BurnExpired is the explicit maintenance action that reclaims an expired
// token. Admin only; soulbound records stay permanent even after expiry.
func (c *Contract) BurnExpired(env Env, tokenID domain.TokenID) ([]Event, error) {
	if !c.hasRole(env.Sender, domain.CapabilityAdmin) {
		return nil, ErrUnauthorized
	}
	rec, ok := c.records[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if rec.IsSoulbound {
		return nil, ErrNotRevocable
	}
	if !rec.Expired(env.Now) {
		return nil, ErrNotExpired
	}

	c.remove(tokenID, rec)
	return []Event{{
		Type:    EventBurned,
		TokenID: tokenID,
		From:    rec.Owner,
		Reason:  "expired",
		At:      env.Now,
	}}, nil
}

// SetVerified toggles the secondary out-of-band confirmation flag. Verifier
// or admin role required.
func (c *Contract) SetVerified(env Env, tokenID domain.TokenID, verified bool) ([]Event, error) {
	if !c.hasRole(env.Sender, domain.CapabilityVerifier) && !c.hasRole(env.Sender, domain.CapabilityAdmin) {
		return nil, ErrUnauthorized
	}
	rec, ok := c.records[tokenID]
	if !ok {
		return nil, ErrTokenNotFound
	}

	rec.IsVerified = verified
	return []Event{{
		Type:    EventVerified,
		TokenID: tokenID,
		At:      env.Now,
	}}, nil
}

// TotalSupply reports the number of live (non-burned) tokens.
func (c *Contract) TotalSupply() int {
	return len(c.records)
}

func (c *Contract) validateIssue(env Env, args IssueArgs) error {
	if !c.hasRole(env.Sender, domain.CapabilityIssuer) && !c.hasRole(env.Sender, domain.CapabilityAdmin) {
		return ErrUnauthorized
	}
	if args.Recipient.IsZero() {
		return revert("recipient address must not be zero")
	}
	if args.CourseHash.IsZero() || args.SubjectHash.IsZero() || args.EvaluationHash.IsZero() {
		return revert("commitment hashes must not be empty")
	}
	if !args.CredentialType.Valid() {
		return revert("credential type out of range")
	}
	if !args.ValidUntil.IsZero() && !args.ValidUntil.After(env.Now) {
		return revert("validUntil must be zero or in the future")
	}
	if args.MetadataPointer == "" {
		return revert("metadata pointer must not be empty")
	}
	return nil
}

func (c *Contract) remove(tokenID domain.TokenID, rec *domain.CredentialRecord) {
	delete(c.records, tokenID)
	delete(c.approvals, tokenID)
	delete(c.commitments, commitment.Pair(rec.CourseHash, rec.SubjectHash))
}

func (c *Contract) hasRole(addr domain.Address, cap domain.Capability) bool {
	return c.roles[addr] == cap
}
