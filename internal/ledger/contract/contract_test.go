package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/commitment"
	"certledger/internal/domain"
)

const (
	admin     = domain.Address("0xadmin")
	issuer    = domain.Address("0xissuer")
	verifier  = domain.Address("0xverifier")
	holder    = domain.Address("0xholder")
	newHolder = domain.Address("0xnewholder")
	stranger  = domain.Address("0xstranger")
)

var baseTime = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func newContract(t *testing.T) *Contract {
	t.Helper()
	c := New(admin)
	require.NoError(t, c.GrantRole(Env{Sender: admin, Now: baseTime}, issuer, domain.CapabilityIssuer))
	require.NoError(t, c.GrantRole(Env{Sender: admin, Now: baseTime}, verifier, domain.CapabilityVerifier))
	return c
}

func issueArgs(course, subject string) IssueArgs {
	return IssueArgs{
		Recipient:           holder,
		CourseHash:          commitment.HashString(course),
		SubjectHash:         commitment.HashString(subject),
		EvaluationHash:      commitment.HashString("eval:" + course + ":" + subject),
		CompletionTimestamp: baseTime.Add(-24 * time.Hour),
		MetadataPointer:     "bafkreitest",
		CredentialType:      domain.TypeCertificate,
	}
}

func env(sender domain.Address) Env {
	return Env{Sender: sender, Now: baseTime}
}

func TestIssueAssignsMonotonicTokenIDs(t *testing.T) {
	c := newContract(t)

	first, events, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)
	second, _, err := c.Issue(env(issuer), issueArgs("c1", "s2"))
	require.NoError(t, err)

	assert.Equal(t, domain.TokenID(1), first)
	assert.Equal(t, domain.TokenID(2), second)

	require.Len(t, events, 1)
	assert.Equal(t, EventIssued, events[0].Type)
	assert.Equal(t, commitment.HashString("c1"), events[0].CourseHash)
}

func TestDuplicateIssuanceSucceedsExactlyOnce(t *testing.T) {
	c := newContract(t)

	_, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	_, _, err = c.Issue(env(issuer), issueArgs("c1", "s1"))
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	// Different subject or course is a different commitment.
	_, _, err = c.Issue(env(issuer), issueArgs("c1", "s2"))
	assert.NoError(t, err)
	_, _, err = c.Issue(env(issuer), issueArgs("c2", "s1"))
	assert.NoError(t, err)
}

func TestIssueValidation(t *testing.T) {
	c := newContract(t)

	tests := []struct {
		name   string
		mutate func(*IssueArgs)
		sender domain.Address
	}{
		{"zero recipient", func(a *IssueArgs) { a.Recipient = domain.ZeroAddress }, issuer},
		{"empty course hash", func(a *IssueArgs) { a.CourseHash = commitment.Zero }, issuer},
		{"empty subject hash", func(a *IssueArgs) { a.SubjectHash = commitment.Zero }, issuer},
		{"empty evaluation hash", func(a *IssueArgs) { a.EvaluationHash = commitment.Zero }, issuer},
		{"bad credential type", func(a *IssueArgs) { a.CredentialType = 0 }, issuer},
		{"credential type above range", func(a *IssueArgs) { a.CredentialType = 5 }, issuer},
		{"validUntil in the past", func(a *IssueArgs) { a.ValidUntil = baseTime.Add(-time.Hour) }, issuer},
		{"empty metadata pointer", func(a *IssueArgs) { a.MetadataPointer = "" }, issuer},
		{"unauthorized sender", func(a *IssueArgs) {}, stranger},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := issueArgs("cx", "sx")
			tc.mutate(&args)
			_, _, err := c.Issue(env(tc.sender), args)
			var re *RevertError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, 0, c.TotalSupply(), "no state mutation on rejected issue")
		})
	}
}

func TestVerifyLifecycleScenario(t *testing.T) {
	// Full lifecycle: issue -> valid, revoke -> revoked, transfer -> fails.
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	res := c.Verify(baseTime, tokenID, nil)
	assert.True(t, res.IsValid)
	assert.Equal(t, domain.ReasonValid, res.Reason)
	assert.Equal(t, holder, res.Owner)

	_, err = c.Revoke(env(issuer), tokenID, "policy violation")
	require.NoError(t, err)

	res = c.Verify(baseTime, tokenID, nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, domain.ReasonRevoked, res.Reason)

	_, err = c.Transfer(env(holder), holder, newHolder, tokenID)
	assert.ErrorIs(t, err, ErrRevokedOrExpired)
}

func TestVerifyExpiredWithoutStoredTransition(t *testing.T) {
	c := newContract(t)

	args := issueArgs("c1", "s1")
	args.ValidUntil = baseTime.Add(time.Hour)
	tokenID, _, err := c.Issue(env(issuer), args)
	require.NoError(t, err)

	assert.True(t, c.Verify(baseTime, tokenID, nil).IsValid)

	// No mutation happened; validity is derived from the clock alone.
	res := c.Verify(baseTime.Add(2*time.Hour), tokenID, nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, domain.ReasonExpired, res.Reason)
}

func TestVerifyExpectedOwner(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	owner := holder
	assert.True(t, c.Verify(baseTime, tokenID, &owner).IsValid)

	other := stranger
	assert.False(t, c.Verify(baseTime, tokenID, &other).IsValid)
}

func TestVerifyMissingToken(t *testing.T) {
	c := newContract(t)
	res := c.Verify(baseTime, 42, nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, domain.ReasonNotFound, res.Reason)
}

func TestTransferThenVerifyNewOwner(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	events, err := c.Transfer(env(holder), holder, newHolder, tokenID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTransfer, events[0].Type)

	owner := newHolder
	res := c.Verify(baseTime, tokenID, &owner)
	assert.True(t, res.IsValid)
	assert.Equal(t, newHolder, res.Owner)
}

func TestSoulboundTransferAlwaysForbidden(t *testing.T) {
	c := newContract(t)

	args := issueArgs("c1", "s1")
	args.IsSoulbound = true
	tokenID, _, err := c.Issue(env(issuer), args)
	require.NoError(t, err)

	for _, sender := range []domain.Address{holder, issuer, admin} {
		_, err = c.Transfer(env(sender), holder, newHolder, tokenID)
		assert.ErrorIs(t, err, ErrSoulboundTransfer, "sender %s", sender)
	}
}

func TestSoulboundImpliesNonRevocableNonBurnable(t *testing.T) {
	c := newContract(t)

	args := issueArgs("c1", "s1")
	args.IsSoulbound = true
	tokenID, _, err := c.Issue(env(issuer), args)
	require.NoError(t, err)

	rec, err := c.Get(tokenID)
	require.NoError(t, err)
	assert.False(t, rec.IsRevocable())

	_, err = c.Revoke(env(issuer), tokenID, "attempt")
	assert.ErrorIs(t, err, ErrNotRevocable)

	_, err = c.Burn(env(holder), tokenID)
	assert.ErrorIs(t, err, ErrNotRevocable)
}

func TestRevocationIsIrreversible(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	_, err = c.Revoke(env(issuer), tokenID, "first")
	require.NoError(t, err)

	// Nothing brings the token back to Active: a second revoke fails, a
	// transfer fails, and the flag survives verification updates.
	_, err = c.Revoke(env(issuer), tokenID, "second")
	assert.ErrorIs(t, err, ErrAlreadyRevoked)

	_, err = c.SetVerified(env(verifier), tokenID, true)
	require.NoError(t, err)
	res := c.Verify(baseTime, tokenID, nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, domain.ReasonRevoked, res.Reason)
}

func TestRevokeAuthorization(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	_, err = c.Revoke(env(stranger), tokenID, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The holder cannot revoke either; only the issuer or an admin.
	_, err = c.Revoke(env(holder), tokenID, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Revoke(env(admin), tokenID, "compliance")
	assert.NoError(t, err)
}

func TestBurnFreesCommitmentSlot(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	// Duplicate is blocked while the token lives.
	_, _, err = c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.ErrorIs(t, err, ErrDuplicateCredential)

	events, err := c.Burn(env(holder), tokenID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventBurned, events[0].Type)

	_, err = c.Get(tokenID)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Slot freed: the same pair can be issued again under a fresh token id.
	reissued, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)
	assert.Greater(t, reissued, tokenID, "token ids are never reused")
}

func TestBurnByApprovedDelegate(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	_, err = c.Burn(env(stranger), tokenID)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, c.Approve(env(holder), tokenID, stranger))
	_, err = c.Burn(env(stranger), tokenID)
	assert.NoError(t, err)
}

func TestBurnRevokedToken(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)
	_, err = c.Revoke(env(issuer), tokenID, "policy")
	require.NoError(t, err)

	_, err = c.Burn(env(holder), tokenID)
	assert.NoError(t, err, "revoked revocable tokens may still be burned by the holder")
}

func TestBurnExpiredMaintenance(t *testing.T) {
	c := newContract(t)

	args := issueArgs("c1", "s1")
	args.ValidUntil = baseTime.Add(time.Hour)
	tokenID, _, err := c.Issue(env(issuer), args)
	require.NoError(t, err)

	later := Env{Sender: admin, Now: baseTime.Add(2 * time.Hour)}

	_, err = c.BurnExpired(Env{Sender: stranger, Now: later.Now}, tokenID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.BurnExpired(env(admin), tokenID)
	assert.ErrorIs(t, err, ErrNotExpired)

	_, err = c.BurnExpired(later, tokenID)
	require.NoError(t, err)
	_, err = c.Get(tokenID)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSetVerifiedRoleGated(t *testing.T) {
	c := newContract(t)

	tokenID, _, err := c.Issue(env(issuer), issueArgs("c1", "s1"))
	require.NoError(t, err)

	_, err = c.SetVerified(env(holder), tokenID, true)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.SetVerified(env(verifier), tokenID, true)
	require.NoError(t, err)
	assert.True(t, c.Verify(baseTime, tokenID, nil).IsVerified)
}

func TestBatchIssueAppliesValidItemsReportsFailures(t *testing.T) {
	c := newContract(t)

	items := []IssueArgs{
		issueArgs("c1", "s1"),
		issueArgs("c1", "s1"), // duplicate of index 0 inside the same batch
		issueArgs("c2", "s2"),
	}
	items = append(items, issueArgs("c3", "s3"))
	items[3].Recipient = domain.ZeroAddress

	res, events, err := c.BatchIssue(env(issuer), items)
	require.NoError(t, err)

	assert.NotZero(t, res.TokenIDs[0])
	assert.Zero(t, res.TokenIDs[1])
	assert.NotZero(t, res.TokenIDs[2])
	assert.Zero(t, res.TokenIDs[3])

	require.Len(t, res.Failed, 2)
	assert.Equal(t, 1, res.Failed[0].Index)
	assert.Equal(t, ErrDuplicateCredential.Reason, res.Failed[0].Reason)
	assert.Equal(t, 3, res.Failed[1].Index)

	assert.Len(t, events, 2)
	assert.Equal(t, 2, c.TotalSupply())
}

func TestBatchIssueOversizedRejectedBeforeMutation(t *testing.T) {
	c := newContract(t)

	items := make([]IssueArgs, MaxBatchSize+1)
	for i := range items {
		items[i] = issueArgs("course", "subject-"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}

	_, _, err := c.BatchIssue(env(issuer), items)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Equal(t, 0, c.TotalSupply(), "ledger state unchanged")
}

func TestGrantRoleAdminOnly(t *testing.T) {
	c := newContract(t)

	err := c.GrantRole(env(issuer), stranger, domain.CapabilityIssuer)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, c.GrantRole(env(admin), stranger, domain.CapabilityIssuer))
	_, _, err = c.Issue(env(stranger), issueArgs("c9", "s9"))
	assert.NoError(t, err)
}
