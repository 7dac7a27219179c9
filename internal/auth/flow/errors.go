package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredential matches every *MissingCredentialError
	ErrMissingCredential = errors.New("missing credential")

	// ErrExchangeFailed matches every *ExchangeFailedError
	ErrExchangeFailed = errors.New("token exchange failed")

	// ErrProfileUnavailable is logged when the profile fetch fails. It never reaches callers.
	ErrProfileUnavailable = errors.New("profile unavailable")

	ErrNoCode               = errors.New("no authorization code")
	ErrInvalidState         = errors.New("invalid flow state")
	ErrExchangeInProgress   = errors.New("exchange already in progress")
	ErrCodeAlreadyExchanged = errors.New("authorization code already exchanged, capture a new one")
	ErrNoEndpoint           = errors.New("endpoint not configured")
	ErrNotSupported         = errors.New("not supported by provider")
)

// MissingCredentialError is a local precondition failure, nothing was sent.
type MissingCredentialError struct {
	Field string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: %s is required", ErrMissingCredential, e.Field)
}

func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// ExchangeFailedError carries the upstream status and body when there was a response,
// or the transport error when there was not.
type ExchangeFailedError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ExchangeFailedError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s with status %d: %v", ErrExchangeFailed, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s with status %d: %s", ErrExchangeFailed, e.StatusCode, strings.TrimSpace(string(e.Body)))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrExchangeFailed, e.Err)
	default:
		return ErrExchangeFailed.Error()
	}
}

func (e *ExchangeFailedError) Unwrap() error {
	return e.Err
}

func (e *ExchangeFailedError) Is(target error) bool {
	return target == ErrExchangeFailed
}

// JSON returns the body decoded as a JSON object, when it is one.
func (e *ExchangeFailedError) JSON() (map[string]any, bool) {
	var out map[string]any
	if len(e.Body) == 0 || json.Unmarshal(e.Body, &out) != nil {
		return nil, false
	}
	return out, true
}

// Detail returns the provider's answer for display: indented JSON when parseable,
// otherwise the raw text.
func (e *ExchangeFailedError) Detail() string {
	if len(e.Body) == 0 {
		if e.Err != nil {
			return e.Err.Error()
		}
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.Body, "", "  "); err == nil {
		return buf.String()
	}
	return string(e.Body)
}
