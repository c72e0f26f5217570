package contract

import "fmt"

// RevertError is how contract execution rejects a transaction. The reason
// string is part of the contract's interface: the adapter surfaces it
// verbatim instead of collapsing failures into a generic error.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// Is matches any two reverts with the same reason, so callers can use
// errors.Is against the exported sentinel reverts below.
func (e *RevertError) Is(target error) bool {
	t, ok := target.(*RevertError)
	return ok && t.Reason == e.Reason
}

func revert(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// Sentinel reverts. Reason strings are stable; off-chain layers map them to
// domain error codes.
var (
	ErrDuplicateCredential = &RevertError{Reason: "credential already issued for this course and subject"}
	ErrTokenNotFound       = &RevertError{Reason: "token does not exist"}
	ErrNotRevocable        = &RevertError{Reason: "soulbound credential is not revocable"}
	ErrAlreadyRevoked      = &RevertError{Reason: "credential already revoked"}
	ErrSoulboundTransfer   = &RevertError{Reason: "soulbound credential cannot be transferred"}
	ErrRevokedOrExpired    = &RevertError{Reason: "credential is revoked or expired"}
	ErrUnauthorized        = &RevertError{Reason: "caller lacks the required role"}
	ErrNotExpired          = &RevertError{Reason: "credential has not expired"}
	ErrBatchTooLarge       = &RevertError{Reason: "batch exceeds maximum size"}
)
