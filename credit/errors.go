/*
errors.go - Centralized error types for the credit engine

PURPOSE:
  All engine error types in one place. Every rejected operation maps to
  exactly one of these; callers branch with errors.Is/errors.As.

ERROR CATEGORIES:
  1. Funds/lifecycle errors - authorize/capture/void/credit rejections
  2. Validation errors - invariant violations caught before persistence
  3. Lookup errors - missing credits or users

All failures are local and recoverable: a rejected mutation leaves both
the balance and the event log untouched, and the caller decides whether
to retry against a different payment instrument.

USAGE:
  if errors.Is(err, credit.ErrInsufficientFunds) { ... }

  var vErr *credit.ValidationError
  if errors.As(err, &vErr) { ... }
*/
package credit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when an authorization exceeds the
	// remaining amount on the credit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCurrencyMismatch is returned when an operation's currency does
	// not match the credit's currency. No ledger entry is written.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInsufficientAuthorizedAmount is returned when a capture exceeds
	// the outstanding authorized amount.
	ErrInsufficientAuthorizedAmount = errors.New("insufficient authorized amount")

	// ErrVoidTargetNotFound is returned when voiding a code that was
	// never authorized on this credit.
	ErrVoidTargetNotFound = errors.New("no authorization found to void")

	// ErrCreditTargetNotFound is returned when crediting a code that was
	// never captured, or for more than remains creditable on it.
	ErrCreditTargetNotFound = errors.New("no capture found to credit")

	// ErrValidationFailed is returned when a mutation would violate a
	// balance invariant. The save is rejected; nothing is written.
	ErrValidationFailed = errors.New("validation failed")

	// ErrCreditNotFound is returned when a credit does not exist or has
	// been invalidated.
	ErrCreditNotFound = errors.New("store credit not found")

	// ErrOutstandingAuthorization is returned when invalidating a credit
	// that still has an open authorization hold.
	ErrOutstandingAuthorization = errors.New("credit has outstanding authorization")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError details an authorization shortfall.
type InsufficientFundsError struct {
	CreditID  CreditID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on credit %s: available %s, requested %s",
		e.CreditID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// CurrencyMismatchError details a currency gate rejection.
type CurrencyMismatchError struct {
	CreditID CreditID
	Have     Currency
	Want     Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch on credit %s: credit is %s, operation is %s",
		e.CreditID, e.Have, e.Want)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// ValidationError reports which invariant a rejected save violated.
type ValidationError struct {
	CreditID CreditID
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store credit %s invalid: %s %s", e.CreditID, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller
// input rather than an engine fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInsufficientAuthorizedAmount) ||
		errors.Is(err, ErrVoidTargetNotFound) ||
		errors.Is(err, ErrCreditTargetNotFound) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrOutstandingAuthorization)
}

// IsNotFound returns true if the error indicates a missing resource
// (as opposed to a rejected operation on an existing one).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCreditNotFound)
}
