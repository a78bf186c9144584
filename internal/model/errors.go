package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrSenderMismatch        = errors.New("sender does not match payload sender")
	ErrKeyNotFound           = errors.New("recipient not found")
	ErrAuthenticationFailure = errors.New("could not open box")
	ErrPropagationFailure    = errors.New("propagation to peer failed")
	ErrNoRecipients          = errors.New("at least one recipient is required")
)

type (
	// PublishFailure is a single recipient that could not be reached.
	PublishFailure struct {
		Recipient Key
		URL       string
		Err       error
	}

	// PublishError is returned next to a valid hash when some recipients
	// could not be reached. The payload stays persisted locally.
	PublishError struct {
		Failures []PublishFailure
	}
)

func (f PublishFailure) Error() string {
	if f.URL == "" {
		return fmt.Sprintf("publish to %s: %v", f.Recipient, f.Err)
	}
	return fmt.Sprintf("publish to %s at %s: %v", f.Recipient, f.URL, f.Err)
}

func (f PublishFailure) Unwrap() error {
	return f.Err
}

func (e *PublishError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes every failure so errors.Is can match ErrKeyNotFound or
// ErrPropagationFailure.
func (e *PublishError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

func (e *PublishError) Add(recipient Key, url string, err error) {
	e.Failures = append(e.Failures, PublishFailure{Recipient: recipient, URL: url, Err: err})
}

// OrNil returns nil when no failure was recorded.
func (e *PublishError) OrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}

// Warnings renders the failures for API responses.
func (e *PublishError) Warnings() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Error())
	}
	return out
}
