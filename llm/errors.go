package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies dispatch failures.
type ErrorKind string

const (
	// ErrNetwork covers transport failures against HTTP backends.
	ErrNetwork ErrorKind = "network"

	// ErrProcess covers failures of external-process backends.
	ErrProcess ErrorKind = "process"

	// ErrMalformedResponse covers responses that could not be decoded.
	ErrMalformedResponse ErrorKind = "malformed_response"

	// ErrTokenLimit means the backend rejected the prompt as too large.
	// The engine recovers from this kind; all others surface as-is.
	ErrTokenLimit ErrorKind = "token_limit"
)

// DispatchError is a typed failure from one model call. OriginIndex
// annotates which chunk or document produced the call; -1 means the
// call was not part of a fan-out.
type DispatchError struct {
	Kind        ErrorKind
	OriginIndex int
	err         error
}

func (e *DispatchError) Error() string {
	if e.OriginIndex >= 0 {
		return fmt.Sprintf("dispatch failed (%s, origin %d): %v", e.Kind, e.OriginIndex, e.err)
	}
	return fmt.Sprintf("dispatch failed (%s): %v", e.Kind, e.err)
}

func (e *DispatchError) Unwrap() error {
	return e.err
}

// NewDispatchError wraps an error with a kind.
func NewDispatchError(kind ErrorKind, err error) *DispatchError {
	return &DispatchError{Kind: kind, OriginIndex: -1, err: err}
}

// IsTokenLimit reports whether the error is a token-limit rejection.
func IsTokenLimit(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Kind == ErrTokenLimit
}

// LooksLikeTokenLimit inspects error text for model-reported overflow
// language: "token" combined with "exceed", "limit", or "maximum",
// case-insensitively. Hosted APIs report overflow inconsistently, so
// this is an approximation, not a guarantee.
func LooksLikeTokenLimit(message string) bool {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "token") {
		return false
	}
	return strings.Contains(lower, "exceed") ||
		strings.Contains(lower, "limit") ||
		strings.Contains(lower, "maximum")
}
