package txbuilder

import (
	"context"
	"errors"
	"fmt"
)

// TransferRequest describes one transaction construction attempt.
// Account and To identify the parties and are never substituted by
// callers; only Token and Amount vary between fallback attempts.
type TransferRequest struct {
	Token   string
	To      string
	Amount  float64
	Account string
}

// Builder constructs a signable transfer transaction payload.
type Builder interface {
	// BuildTransfer returns a base64-serialized transaction ready for
	// signing. Errors carry a status class; see RequestError.
	BuildTransfer(ctx context.Context, req TransferRequest) (string, error)
}

// RequestError is a failure response from the construction service.
// StatusCode distinguishes service-side faults (5xx), which are eligible
// for fallback retries, from client-side faults, which are not.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("construction service returned %d: %s", e.StatusCode, e.Detail)
}

// ServiceFault reports whether the failure was caused by the service
// rather than the caller.
func (e *RequestError) ServiceFault() bool {
	return e.StatusCode >= 500
}

// IsServiceFault reports whether err is a construction failure eligible
// for fallback retry.
func IsServiceFault(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.ServiceFault()
}
