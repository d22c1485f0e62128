package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/donations/internal/identity"
	"github.com/wolfeidau/donations/internal/store"
)

// Kind classifies onboarding failures.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindEmailTaken            Kind = "email_taken"
	KindSlugExhausted         Kind = "slug_exhausted"
	KindSlugConflict          Kind = "slug_conflict"
	KindIdentityProviderError Kind = "identity_provider_error"
	KindTenantCreateFailed    Kind = "tenant_create_failed"
	KindMembershipLinkFailed  Kind = "membership_link_failed"
	KindAssetUploadFailed     Kind = "asset_upload_failed"
)

var messages = map[Kind]string{
	KindInvalidInput:          "invalid registration details",
	KindEmailTaken:            "an account with this email already exists",
	KindSlugExhausted:         "could not find a free address for this organization name, try a different name",
	KindSlugConflict:          "the organization address was claimed by another registration, please try again",
	KindIdentityProviderError: "could not create the account, please try again later",
	KindTenantCreateFailed:    "could not create the organization, please try again later",
	KindMembershipLinkFailed:  "could not finish setting up the organization, please try again later",
	KindAssetUploadFailed:     "the logo could not be saved",
}

// Error is a classified onboarding failure. Err carries the underlying cause
// and is only logged; Message is safe to show to users.
type Error struct {
	Kind      Kind
	Step      string
	Retryable bool
	Field     string // set for KindInvalidInput
	Detail    string // user facing validation detail
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Step != "" {
		msg = e.Step + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user facing message for the error.
func (e *Error) Message() string {
	if e.Kind == KindInvalidInput && e.Detail != "" {
		return e.Detail
	}
	if msg, ok := messages[e.Kind]; ok {
		return msg
	}
	return "registration failed"
}

func newError(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Retryable: isRetryable(err), Err: err}
}

func invalidInput(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// isRetryable reports whether err is transient: timeouts, cancellation,
// provider outages and database connection failures.
func isRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, identity.ErrUnavailable) ||
		errors.Is(err, store.ErrUnavailable)
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
