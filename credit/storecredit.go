/*
storecredit.go - Balance state machine, validation gate, capability queries

PURPOSE:
  The in-memory half of every ledger operation. Each step validates its
  preconditions against the current sub-amounts, mutates the copy it
  was handed, and returns the EventIntent describing the ledger entry
  to append. The transactional half (idempotency lookup, persistence,
  snapshot) lives in ledger.go.

STATE MACHINE:
  authorize: remaining >= amount     -> AmountAuthorized += amount
  capture:   authorized >= amount    -> AmountUsed += amount, AmountAuthorized -= amount
  void:      (hold amount from event)-> AmountAuthorized -= held amount
  credit:    creditable >= amount    -> AmountUsed -= amount

  Every step rejects a currency that differs from the credit's own.

VALIDATION GATE:
  Validate() runs before every persistence. It enforces:
    Amount > 0
    AmountUsed >= 0, AmountAuthorized >= 0
    AmountUsed <= Amount
    AmountUsed + AmountAuthorized <= Amount
    user, category, creator, credit type, currency present

SEE ALSO:
  - ledger.go: Wraps these steps in one atomic store transaction
  - event.go: EventIntent and Action definitions
*/
package credit

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// OPERATION STEPS (called by Ledger inside a store transaction)
// =============================================================================

// authorize places a hold. The idempotent-replay check against the
// event log happens in the ledger before this step runs.
func (sc *StoreCredit) authorize(amount decimal.Decimal, orderCurrency Currency, code AuthorizationCode) (EventIntent, error) {
	if sc.Currency != orderCurrency {
		return EventIntent{}, &CurrencyMismatchError{CreditID: sc.ID, Have: sc.Currency, Want: orderCurrency}
	}
	if sc.AmountRemaining().LessThan(amount) {
		return EventIntent{}, &InsufficientFundsError{
			CreditID:  sc.ID,
			Available: sc.AmountRemaining(),
			Requested: amount,
		}
	}

	sc.AmountAuthorized = sc.AmountAuthorized.Add(amount)
	return EventIntent{Action: ActionAuthorize, Amount: amount, AuthorizationCode: code}, nil
}

// capture settles a hold into consumption. The ensure-authorized step
// has already run by the time this is called, so the hold either
// existed before or was just placed in the same transaction.
func (sc *StoreCredit) capture(amount decimal.Decimal, orderCurrency Currency, code AuthorizationCode) (EventIntent, error) {
	if sc.Currency != orderCurrency {
		return EventIntent{}, &CurrencyMismatchError{CreditID: sc.ID, Have: sc.Currency, Want: orderCurrency}
	}
	if amount.GreaterThan(sc.AmountAuthorized) {
		return EventIntent{}, ErrInsufficientAuthorizedAmount
	}

	sc.AmountUsed = sc.AmountUsed.Add(amount)
	sc.AmountAuthorized = sc.AmountAuthorized.Sub(amount)
	return EventIntent{Action: ActionCapture, Amount: amount, AuthorizationCode: code}, nil
}

// void releases a hold without consuming it. heldAmount comes from the
// original authorize event; the ledger looks it up and also guards
// against releasing the same code twice.
func (sc *StoreCredit) void(heldAmount decimal.Decimal, code AuthorizationCode) (EventIntent, error) {
	sc.AmountAuthorized = sc.AmountAuthorized.Sub(heldAmount)
	return EventIntent{Action: ActionVoid, Amount: heldAmount, AuthorizationCode: code}, nil
}

// creditBack reverses a prior capture. creditable is the captured
// amount minus any credits already issued against the same code.
func (sc *StoreCredit) creditBack(amount decimal.Decimal, orderCurrency Currency, code AuthorizationCode, creditable decimal.Decimal) (EventIntent, error) {
	if sc.Currency != orderCurrency {
		return EventIntent{}, &CurrencyMismatchError{CreditID: sc.ID, Have: sc.Currency, Want: orderCurrency}
	}
	if amount.GreaterThan(creditable) {
		return EventIntent{}, ErrCreditTargetNotFound
	}

	sc.AmountUsed = sc.AmountUsed.Sub(amount)
	return EventIntent{Action: ActionCredit, Amount: amount, AuthorizationCode: code}, nil
}

// =============================================================================
// VALIDATION GATE - Runs before every persistence
// =============================================================================

// Validate enforces the balance invariants. A non-nil result means the
// pending mutation must not be persisted.
func (sc *StoreCredit) Validate() error {
	switch {
	case sc.UserID == "":
		return &ValidationError{CreditID: sc.ID, Field: "user", Message: "is required"}
	case sc.CategoryID == "":
		return &ValidationError{CreditID: sc.ID, Field: "category", Message: "is required"}
	case sc.CreatedByID == "":
		return &ValidationError{CreditID: sc.ID, Field: "created_by", Message: "is required"}
	case sc.TypeID == "":
		return &ValidationError{CreditID: sc.ID, Field: "credit_type", Message: "is required"}
	case sc.Currency == "":
		return &ValidationError{CreditID: sc.ID, Field: "currency", Message: "is required"}
	}

	if !sc.Amount.IsPositive() {
		return &ValidationError{CreditID: sc.ID, Field: "amount", Message: "must be greater than zero"}
	}
	if sc.AmountUsed.IsNegative() {
		return &ValidationError{CreditID: sc.ID, Field: "amount_used", Message: "cannot be negative"}
	}
	if sc.AmountAuthorized.IsNegative() {
		return &ValidationError{CreditID: sc.ID, Field: "amount_authorized", Message: "cannot be negative"}
	}
	if sc.AmountUsed.GreaterThan(sc.Amount) {
		return &ValidationError{CreditID: sc.ID, Field: "amount_used", Message: "cannot be greater than the total amount"}
	}
	if sc.AmountUsed.Add(sc.AmountAuthorized).GreaterThan(sc.Amount) {
		return &ValidationError{CreditID: sc.ID, Field: "amount_authorized", Message: "exceeds the total credit"}
	}
	return nil
}

// =============================================================================
// CAPABILITY QUERIES - Against the external payment collaborator
// =============================================================================

// CanCapture reports whether the associated payment is in a state
// where a capture is permitted.
func (sc *StoreCredit) CanCapture(p Payment) bool {
	return p.State == PaymentPending || p.State == PaymentCheckout
}

// CanVoid reports whether the associated payment can still be voided.
func (sc *StoreCredit) CanVoid(p Payment) bool {
	return p.State == PaymentPending
}

// CanCredit reports whether a completed payment can be credited back:
// the order must owe money and the payment must have a positive
// creditable amount.
func (sc *StoreCredit) CanCredit(p Payment) bool {
	if p.State != PaymentCompleted {
		return false
	}
	if p.OrderPaymentState != OrderPaymentStateCreditOwed {
		return false
	}
	return p.CreditAllowed.IsPositive()
}
