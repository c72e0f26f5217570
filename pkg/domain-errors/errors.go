// Package domainerrors defines the coded errors services return at their
// boundaries. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into one of these codes so transports can map them uniformly.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies an error category in the credential subsystem taxonomy.
type Code string

const (
	// CodeValidation: bad input shape or constraint violation. Caller's
	// fault, no side effect occurred.
	CodeValidation Code = "validation_error"

	// CodeNotEligible: enrollment not completed or evaluation not passed.
	CodeNotEligible Code = "not_eligible"

	// CodeAlreadyIssued: a credential already exists for this enrollment.
	CodeAlreadyIssued Code = "already_issued"

	// CodeDuplicateCredential: the ledger rejected the (courseHash,
	// subjectHash) commitment as already used by a live token.
	CodeDuplicateCredential Code = "duplicate_credential"

	// CodeStoreUnavailable: an external dependency could not be reached.
	// Potentially retryable.
	CodeStoreUnavailable Code = "store_unavailable"

	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"

	// CodeNotRevocable: the record is soulbound and can never be revoked
	// or burned.
	CodeNotRevocable Code = "not_revocable"

	// CodeSoulboundTransfer: transfer attempted on a soulbound record.
	CodeSoulboundTransfer Code = "soulbound_transfer_forbidden"

	// CodeRevokedOrExpired: state mutation attempted on a record that fails
	// current validity checks.
	CodeRevokedOrExpired Code = "revoked_or_expired"

	// CodeInvalidClaimToken: the claim token is unknown, already consumed,
	// or past its TTL.
	CodeInvalidClaimToken Code = "invalid_or_expired_token"

	// CodeReconciliationRequired: partial saga failure left on-chain and
	// off-chain state inconsistent. Operator-visible, never auto-retried.
	CodeReconciliationRequired Code = "reconciliation_required"

	CodeInternal Code = "internal"
)

// Error is a coded domain error. The message is safe to return to callers;
// anything sensitive belongs in logs, not here.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error that preserves the underlying cause for
// errors.Is/errors.As chains and logging.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate at a service boundary.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status transports should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotEligible, CodeNotRevocable, CodeSoulboundTransfer, CodeRevokedOrExpired:
		return http.StatusUnprocessableEntity
	case CodeAlreadyIssued, CodeDuplicateCredential:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidClaimToken:
		return http.StatusGone
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case CodeReconciliationRequired, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
