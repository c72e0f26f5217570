// Package node simulates a single-node credential ledger: it executes the
// contract under a global write lock, enforces per-account nonce ordering,
// meters gas against a static cost table and produces blocks and receipts.
//
// The node is the correctness boundary for the duplicate-issuance race: two
// concurrent submissions for the same commitment serialize here, so exactly
// one can win regardless of what the orchestrator pre-checked.
package node

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"certledger/internal/commitment"
	"certledger/internal/domain"
	"certledger/internal/ledger/contract"
)

// Method names a contract entry point.
type Method string

const (
	MethodIssue       Method = "issue"
	MethodBatchIssue  Method = "batchIssue"
	MethodRevoke      Method = "revoke"
	MethodTransfer    Method = "transfer"
	MethodBurn        Method = "burn"
	MethodBurnExpired Method = "burnExpired"
	MethodSetVerified Method = "setVerified"
	MethodApprove     Method = "approve"
	MethodGrantRole   Method = "grantRole"
)

// Typed argument payloads for the write methods. Issue and BatchIssue reuse
// the contract argument structs directly.
type (
	RevokeArgs struct {
		TokenID domain.TokenID
		Reason  string
	}
	TransferArgs struct {
		From    domain.Address
		To      domain.Address
		TokenID domain.TokenID
	}
	TokenArgs struct {
		TokenID domain.TokenID
	}
	SetVerifiedArgs struct {
		TokenID  domain.TokenID
		Verified bool
	}
	ApproveArgs struct {
		TokenID  domain.TokenID
		Delegate domain.Address
	}
	GrantRoleArgs struct {
		Address    domain.Address
		Capability domain.Capability
	}
)

// Tx is a signed-and-submitted state mutation. The simulated node trusts the
// From field; a remote backend would verify a signature instead.
type Tx struct {
	From     domain.Address
	Nonce    uint64
	Method   Method
	Args     any
	GasLimit uint64
}

// Receipt reports an executed (possibly reverted) transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Events      []contract.Event

	// TokenID is set for issue receipts, Batch for batch-issue receipts.
	TokenID domain.TokenID
	Batch   *contract.BatchResult
}

// ErrNonceMismatch rejects out-of-order submissions without consuming the
// nonce; the sender must resubmit with the expected value.
type ErrNonceMismatch struct {
	Expected, Got uint64
}

func (e *ErrNonceMismatch) Error() string {
	return fmt.Sprintf("nonce mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrOutOfGas rejects a transaction whose gas limit cannot cover the metered
// cost of its method.
type ErrOutOfGas struct {
	Limit, Needed uint64
}

func (e *ErrOutOfGas) Error() string {
	return fmt.Sprintf("out of gas: limit %d, needed %d", e.Limit, e.Needed)
}

const baseGas = 21000

// methodGas is the static per-method execution cost on top of baseGas.
// Batch issuance additionally pays perItemGas per input item.
var methodGas = map[Method]uint64{
	MethodIssue:       95000,
	MethodBatchIssue:  30000,
	MethodRevoke:      28000,
	MethodTransfer:    42000,
	MethodBurn:        35000,
	MethodBurnExpired: 35000,
	MethodSetVerified: 26000,
	MethodApprove:     24000,
	MethodGrantRole:   27000,
}

const perItemGas = 70000

// Node is the in-process ledger.
type Node struct {
	mu       sync.RWMutex
	contract *contract.Contract
	nonces   map[domain.Address]uint64
	height   uint64
	clock    func() time.Time
}

// Option configures a Node.
type Option func(*Node)

// WithClock injects the block timestamp source for tests.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// New boots a node with the contract deployed and the deployer holding the
// admin role.
func New(deployer domain.Address, opts ...Option) *Node {
	n := &Node{
		contract: contract.New(deployer),
		nonces:   make(map[domain.Address]uint64),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// PendingNonce returns the next nonce the node will accept from addr.
func (n *Node) PendingNonce(ctx context.Context, addr domain.Address) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nonces[addr], nil
}

// EstimateGas prices a transaction against the static cost table without
// executing it. Invariant violations surface as reverts at submit time.
func (n *Node) EstimateGas(ctx context.Context, tx Tx) (uint64, error) {
	cost, ok := methodGas[tx.Method]
	if !ok {
		return 0, fmt.Errorf("unknown method %q", tx.Method)
	}
	total := baseGas + cost
	if tx.Method == MethodBatchIssue {
		items, ok := tx.Args.([]contract.IssueArgs)
		if !ok {
			return 0, fmt.Errorf("batchIssue args must be []contract.IssueArgs")
		}
		total += perItemGas * uint64(len(items))
	}
	return total, nil
}

// Submit executes one transaction. Execution is serialized; a reverted
// transaction still consumes its nonce and gas, mirroring how a real chain
// includes reverted transactions in blocks.
func (n *Node) Submit(ctx context.Context, tx Tx) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	expected := n.nonces[tx.From]
	if tx.Nonce != expected {
		return Receipt{}, &ErrNonceMismatch{Expected: expected, Got: tx.Nonce}
	}

	needed, err := n.EstimateGas(ctx, tx)
	if err != nil {
		return Receipt{}, err
	}
	if tx.GasLimit < needed {
		return Receipt{}, &ErrOutOfGas{Limit: tx.GasLimit, Needed: needed}
	}

	n.nonces[tx.From]++
	n.height++

	receipt := Receipt{
		TxHash:      txHash(tx),
		BlockNumber: n.height,
		GasUsed:     needed,
	}

	env := contract.Env{Sender: tx.From, Now: n.clock()}
	execErr := n.execute(env, tx, &receipt)
	if execErr != nil {
		// Reverted: no events, but the tx landed and consumed gas.
		receipt.Events = nil
		return receipt, execErr
	}
	return receipt, nil
}

func (n *Node) execute(env contract.Env, tx Tx, receipt *Receipt) error {
	switch tx.Method {
	case MethodIssue:
		args, ok := tx.Args.(contract.IssueArgs)
		if !ok {
			return fmt.Errorf("issue args must be contract.IssueArgs")
		}
		tokenID, events, err := n.contract.Issue(env, args)
		if err != nil {
			return err
		}
		receipt.TokenID = tokenID
		receipt.Events = events
	case MethodBatchIssue:
		items, ok := tx.Args.([]contract.IssueArgs)
		if !ok {
			return fmt.Errorf("batchIssue args must be []contract.IssueArgs")
		}
		res, events, err := n.contract.BatchIssue(env, items)
		if err != nil {
			return err
		}
		receipt.Batch = &res
		receipt.Events = events
	case MethodRevoke:
		args, ok := tx.Args.(RevokeArgs)
		if !ok {
			return fmt.Errorf("revoke args must be node.RevokeArgs")
		}
		events, err := n.contract.Revoke(env, args.TokenID, args.Reason)
		if err != nil {
			return err
		}
		receipt.Events = events
	case MethodTransfer:
		args, ok := tx.Args.(TransferArgs)
		if !ok {
			return fmt.Errorf("transfer args must be node.TransferArgs")
		}
		events, err := n.contract.Transfer(env, args.From, args.To, args.TokenID)
		if err != nil {
			return err
		}
		receipt.Events = events
	case MethodBurn:
		args, ok := tx.Args.(TokenArgs)
		if !ok {
			return fmt.Errorf("burn args must be node.TokenArgs")
		}
		events, err := n.contract.Burn(env, args.TokenID)
		if err != nil {
			return err
		}
		receipt.Events = events
	case MethodBurnExpired:
		args, ok := tx.Args.(TokenArgs)
		if !ok {
			return fmt.Errorf("burnExpired args must be node.TokenArgs")
		}
		events, err := n.contract.BurnExpired(env, args.TokenID)
		if err != nil {
			return err
		}
		receipt.Events = events
	case MethodSetVerified:
		args, ok := tx.Args.(SetVerifiedArgs)
		if !ok {
			return fmt.Errorf("setVerified args must be node.SetVerifiedArgs")
		}
		events, err := n.contract.SetVerified(env, args.TokenID, args.Verified)
		if err != nil {
			return err
		}
		receipt.Events = events
	case MethodApprove:
		args, ok := tx.Args.(ApproveArgs)
		if !ok {
			return fmt.Errorf("approve args must be node.ApproveArgs")
		}
		return n.contract.Approve(env, args.TokenID, args.Delegate)
	case MethodGrantRole:
		args, ok := tx.Args.(GrantRoleArgs)
		if !ok {
			return fmt.Errorf("grantRole args must be node.GrantRoleArgs")
		}
		return n.contract.GrantRole(env, args.Address, args.Capability)
	default:
		return fmt.Errorf("unknown method %q", tx.Method)
	}
	return nil
}

// GetCredential is the read path for one on-chain record. Concurrent-safe.
func (n *Node) GetCredential(ctx context.Context, tokenID domain.TokenID) (domain.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.CredentialRecord{}, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.contract.Get(tokenID)
}

// VerifyCredential is the read path for validity checks. Concurrent-safe.
func (n *Node) VerifyCredential(ctx context.Context, tokenID domain.TokenID, expectedOwner *domain.Address) (contract.VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return contract.VerifyResult{}, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.contract.Verify(n.clock(), tokenID, expectedOwner), nil
}

// Height returns the current block number.
func (n *Node) Height() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height
}

func txHash(tx Tx) string {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], tx.Nonce)
	d := commitment.CompositeHash([]byte(tx.From), nonce[:], []byte(tx.Method))
	return d.Hex()
}
