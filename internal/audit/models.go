package audit

import (
	"time"

	"certledger/internal/domain"
)

// Action names the credential operation an event records.
const (
	ActionIssue       = "issue"
	ActionBatchIssue  = "batch_issue"
	ActionRevoke      = "revoke"
	ActionTransfer    = "transfer"
	ActionBurn        = "burn"
	ActionClaim       = "claim"
	ActionVerify      = "verify"
	ActionAnonymize   = "anonymize"
	ActionResendClaim = "resend_claim"
)

// Outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Only hash-level and
// operational data belongs here; sensitive record fields never do.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	TokenID   domain.TokenID `json:"token_id,omitempty"`
	TxHash    string         `json:"tx_hash,omitempty"`
	Outcome   string         `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`

	// Claim events carry the request origin for abuse investigation.
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}
