package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a classified domain failure. Code is stable and ends up in logs as err_code.
type Error struct {
	code   string
	msg    string
	parent *Error
}

func newError(code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// refine derives a narrower error that still matches its parent under errors.Is.
func (e *Error) refine(code, msg string) *Error {
	return &Error{code: code, msg: msg, parent: e}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.msg }

// Code returns the stable error code.
func (e *Error) Code() string { return e.code }

// Unwrap returns the broader error this one refines, if any.
func (e *Error) Unwrap() error {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

var (
	// ErrUnauthorized means the actor lacks the administrator role.
	ErrUnauthorized = newError("UNAUTHORIZED", "actor is not the administrator")
	// ErrNotFound is the generic unresolved reference.
	ErrNotFound = newError("NOT_FOUND", "not found")
	// ErrItemNotFound means an item reference did not resolve.
	ErrItemNotFound = ErrNotFound.refine("ITEM_NOT_FOUND", "item not found")
	// ErrOrderNotFound means an order id is unknown.
	ErrOrderNotFound = ErrNotFound.refine("ORDER_NOT_FOUND", "order not found")
	// ErrAmbiguousReference means a partial reference matched several items.
	ErrAmbiguousReference = newError("AMBIGUOUS_REFERENCE", "reference matches more than one item")
	// ErrInvalidInput means a wizard step received a malformed field.
	ErrInvalidInput = newError("INVALID_INPUT", "invalid input")
	// ErrPaymentNotConfigured means no payment address is set.
	ErrPaymentNotConfigured = newError("PAYMENT_NOT_CONFIGURED", "payment address is not configured")
	// ErrNoPendingOrder means the buyer has no order awaiting proof.
	ErrNoPendingOrder = newError("NO_PENDING_ORDER", "no pending order")
	// ErrAlreadySubmitted is the benign guard for a repeated proof.
	ErrAlreadySubmitted = newError("ALREADY_SUBMITTED", "proof already submitted")
	// ErrAlreadyDecided is the benign guard for a repeated decision.
	ErrAlreadyDecided = newError("ALREADY_DECIDED", "order already decided")
	// ErrAdminAlreadySet rejects a claim while another administrator exists.
	ErrAdminAlreadySet = ErrUnauthorized.refine("ADMIN_ALREADY_SET", "administrator already set")
	// ErrNotPurchasable means the item exists but has no deliverable content yet.
	ErrNotPurchasable = ErrItemNotFound.refine("NOT_PURCHASABLE", "item is not available for purchase")
	// ErrNoSession means the actor has no active wizard.
	ErrNoSession = newError("NO_SESSION", "no active session")
	// ErrConflict reports a lost compare-and-swap race.
	ErrConflict = newError("CONFLICT", "concurrent modification")
)

// AmbiguousError carries the candidates of a non-unique partial match.
type AmbiguousError struct {
	Reference  string
	Candidates []Item
}

func (e *AmbiguousError) Error() string {
	titles := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		titles = append(titles, c.Title)
	}
	return fmt.Sprintf("%q matches %d items: %s", e.Reference, len(e.Candidates), strings.Join(titles, ", "))
}

// Code implements the coder contract.
func (e *AmbiguousError) Code() string { return ErrAmbiguousReference.Code() }

// Unwrap lets errors.Is match ErrAmbiguousReference.
func (e *AmbiguousError) Unwrap() error { return ErrAmbiguousReference }

// InputError describes why a wizard step rejected its input.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Code implements the coder contract.
func (e *InputError) Code() string { return ErrInvalidInput.Code() }

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Invalid builds an InputError.
func Invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsBenign reports whether err is an idempotency guard rather than a failure.
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyDecided) || errors.Is(err, ErrAlreadySubmitted)
}
