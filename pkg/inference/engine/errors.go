package engine

import (
	"errors"
	"fmt"
)

// ErrExchangeFailed is the single failure kind seen by the session. Use
// errors.Is(err, ErrExchangeFailed) to test for it.
var ErrExchangeFailed = errors.New("exchange failed")

type FailureKind string

const (
	// FailureTransport means no response was received (network, timeout).
	FailureTransport FailureKind = "transport"
	// FailureStatus means the endpoint answered with a non-2xx status.
	FailureStatus FailureKind = "status"
	// FailureMalformed means the response body could not be decoded.
	FailureMalformed FailureKind = "malformed"
	// FailureMissingContent means the body decoded but had no reply text.
	FailureMissingContent FailureKind = "missing-content"
)

// ExchangeError carries the cause of a failed exchange for logging. Callers
// only branch on ErrExchangeFailed; Kind and Err are diagnostic.
type ExchangeError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func NewExchangeError(kind FailureKind, err error) *ExchangeError {
	return &ExchangeError{Kind: kind, Err: err}
}

func (e *ExchangeError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s (%s)", ErrExchangeFailed.Error(), e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExchangeError) Is(target error) bool {
	return target == ErrExchangeFailed
}

// AsExchangeError normalises any error returned by a CompletionClient into an
// *ExchangeError. Errors that are not already classified count as transport
// failures.
func AsExchangeError(err error) *ExchangeError {
	if err == nil {
		return nil
	}
	var xe *ExchangeError
	if errors.As(err, &xe) {
		return xe
	}
	return NewExchangeError(FailureTransport, err)
}
