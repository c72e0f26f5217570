package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and ledger-facing layers
// return these (optionally wrapped) so services can translate them into domain
// errors without string matching.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record/token/blob does not exist
// - ErrConflict: unique constraint hit (duplicate token id, commitment slot taken)
// - ErrAlreadyUsed: single-use resource (claim token) already consumed
// - ErrExpired: resource past its validity window
// - ErrInvalidState: entity in wrong state for the requested transition
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields) use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
