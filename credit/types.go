/*
Package credit provides the store credit ledger engine.

PURPOSE:
  This package contains the types and algorithms for managing a store
  credit balance: a monetary account with total, used, and authorized
  sub-amounts, mutated only through a fixed set of ledger operations
  (authorize, capture, void, credit) and audited by an append-only
  event log.

KEY CONCEPTS IN THIS FILE (types.go):
  - Currency: ISO-style currency code ("USD", "EUR")
  - StoreCredit: The balance holder (see storecredit.go for operations)
  - CreditType: Priority-ordered classification of credits
  - Category: Origin classification (gift card, admin grant, ...)
  - Payment: Read-only view of the external payment collaborator
  - Typed identifiers: prevent mixing credit/user/event IDs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money - never floats
  2. Immutability: Events are never modified once written
  3. Type Safety: Strong typing for IDs
  4. Explicit intent: Operations return an EventIntent value rather
     than storing pending-action scratch state on the entity

SEE ALSO:
  - storecredit.go: Balance state machine and validation gate
  - event.go: Ledger entry (audit trail) types
  - ledger.go: Transactional orchestration of operations
  - store.go: Persistence interfaces
*/
package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY & MONEY HELPERS
// =============================================================================

// Currency is an ISO 4217 style currency code, e.g. "USD".
type Currency string

// MustParseDecimal parses a decimal string, panicking on malformed
// input. Intended for literals in tests and seed data, where a typo
// should fail loudly rather than read as zero.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CreditID string
type UserID string
type EventID string
type CategoryID string
type TypeID string

// AuthorizationCode correlates an authorize event with the capture,
// void, or credit events that settle it. Scoped to a single credit.
type AuthorizationCode string

// =============================================================================
// CREDIT TYPE - Priority-ordered classification
// =============================================================================

// CreditType classifies credits and drives consumption ordering: when a
// user holds several credits, aggregation walks them by ascending
// priority (lower value is spent first).
type CreditType struct {
	ID       TypeID
	Name     string
	Priority int
}

// Category records where a credit came from (gift card redemption,
// admin grant, promotional allocation, ...). Purely descriptive.
type Category struct {
	ID   CategoryID
	Name string
}

// =============================================================================
// STORE CREDIT - The balance holder
// =============================================================================

// StoreCredit is a payment-method-like balance with three sub-amounts:
//
//	Amount           total granted (> 0, never changes after creation)
//	AmountUsed       captured consumption (>= 0)
//	AmountAuthorized outstanding holds (>= 0)
//
// INVARIANT: AmountUsed + AmountAuthorized <= Amount at all times.
//
// Credits are never physically deleted. Invalidation sets DeletedAt and
// active queries filter it; the event history is retained for audit.
type StoreCredit struct {
	ID          CreditID
	UserID      UserID
	CategoryID  CategoryID
	CreatedByID UserID
	TypeID      TypeID

	Amount           decimal.Decimal
	AmountUsed       decimal.Decimal
	AmountAuthorized decimal.Decimal
	Currency         Currency

	Memo string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// AmountRemaining is the spendable portion: total minus captured
// consumption minus outstanding authorizations.
func (sc *StoreCredit) AmountRemaining() decimal.Decimal {
	return sc.Amount.Sub(sc.AmountUsed).Sub(sc.AmountAuthorized)
}

// Deleted reports whether the credit has been invalidated.
func (sc *StoreCredit) Deleted() bool {
	return sc.DeletedAt != nil
}

// =============================================================================
// PAYMENT - External collaborator, consumed read-only
// =============================================================================

// PaymentState mirrors the orchestration layer's payment lifecycle.
// The engine never mutates payments; it only answers capability
// queries against them (see storecredit.go).
type PaymentState string

const (
	PaymentCheckout  PaymentState = "checkout"
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentVoided    PaymentState = "void"
	PaymentFailed    PaymentState = "failed"
)

// OrderPaymentStateCreditOwed signals the owning order owes money back.
const OrderPaymentStateCreditOwed = "credit_owed"

// Payment is the read-only snapshot of an external payment that the
// capability queries consume.
type Payment struct {
	State             PaymentState
	OrderPaymentState string
	CreditAllowed     decimal.Decimal
}
