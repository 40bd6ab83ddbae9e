package flow

import (
	"errors"
	"fmt"
)

// Locally recoverable errors: the session stays in place and the user is
// prompted to retry the same step.
var (
	// ErrTransferFormat means the transfer line did not have exactly
	// token, destination and amount.
	ErrTransferFormat = errors.New("invalid transfer parameter format")

	// ErrInvalidAmount means the amount was non-numeric, non-finite or
	// not positive.
	ErrInvalidAmount = errors.New("invalid transfer amount")

	// ErrInvalidCodeFormat means the submitted code is not exactly
	// 8 digits.
	ErrInvalidCodeFormat = errors.New("invalid action code format")
)

// ResolutionError means the action code was unknown or expired when the
// resolution service was asked for its account. Fatal to the flow, never
// retried.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve action code: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConstructionError means the construction service could not produce a
// payload: either a non-retryable failure, or every fallback variant was
// exhausted. Detail carries the last observed service response.
type ConstructionError struct {
	Detail string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("transaction construction failed: %s", e.Detail)
	}
	return fmt.Sprintf("transaction construction failed: %v", e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }
