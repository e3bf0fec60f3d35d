/*
ledger.go - Transactional orchestration of the four ledger operations

PURPOSE:
  The Ledger is the only way a StoreCredit is ever mutated. Each
  operation runs as one atomic store transaction spanning:
    (a) the idempotency lookup against the event log,
    (b) the invariant check (state machine step + validation gate),
    (c) the balance update plus the event append.
  Concurrent requests against the same credit serialize on the store,
  so two authorizations can never both pass the remaining-amount check
  against a stale value.

OPERATIONS:
  Authorize  place a hold; idempotent per authorization code
  Capture    ensure-authorized, then settle (explicit two-step, one tx)
  Void       release a hold; idempotent per authorization code
  Credit     reverse a prior capture, up to its creditable remainder
  Grant      create a balance with an allocation event
  Eligible   record eligibility for an order (audit only, no mutation)
  Invalidate soft-delete a credit, history retained

IDEMPOTENCY:
  Authorize replays to success when an authorize event already exists
  for the code, without touching the balance. Void does the same
  against existing void events, so a released hold is never released
  twice. No other operation is retry-safe by design.

SNAPSHOTS:
  Every event stores the owning user's total available credit at the
  time of the event. Observability field only.

SEE ALSO:
  - storecredit.go: The per-operation state machine steps
  - store.go: The transactional store contract
*/
package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger executes balance operations against a transactional store.
type Ledger struct {
	Store TxStore

	// DefaultTypeID is applied to grants that do not name a credit
	// type. Injected from configuration rather than looked up from a
	// process-wide registry.
	DefaultTypeID TypeID

	// Now is the clock; replaceable in tests.
	Now func() time.Time
}

// NewLedger creates a ledger over the given store. defaultType may be
// empty if every grant names its credit type explicitly.
func NewLedger(store TxStore, defaultType TypeID) *Ledger {
	return &Ledger{
		Store:         store,
		DefaultTypeID: defaultType,
		Now:           time.Now,
	}
}

// =============================================================================
// GRANT - Allocation of a new balance
// =============================================================================

// GrantParams describes a new store credit. ID is optional; one is
// generated when empty. TypeID falls back to the ledger's default.
type GrantParams struct {
	ID          CreditID
	UserID      UserID
	CategoryID  CategoryID
	CreatedByID UserID
	TypeID      TypeID
	Amount      decimal.Decimal
	Currency    Currency
	Memo        string
}

// Grant creates a store credit and its allocation event atomically.
func (l *Ledger) Grant(ctx context.Context, p GrantParams) (*StoreCredit, error) {
	var created *StoreCredit
	err := l.Store.WithTx(ctx, func(s Store) error {
		sc, err := l.GrantWith(ctx, s, p)
		if err != nil {
			return err
		}
		created = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GrantWith runs the grant against a caller-supplied store view. Used
// by flows whose transaction spans more state than the ledger's own,
// such as a gift card redemption committing its claim and its grant
// together. Must be called inside an open transaction.
func (l *Ledger) GrantWith(ctx context.Context, s Store, p GrantParams) (*StoreCredit, error) {
	typeID := p.TypeID
	if typeID == "" {
		typeID = l.DefaultTypeID
	}
	if typeID != "" {
		ct, err := s.GetCreditType(ctx, typeID)
		if err != nil {
			return nil, err
		}
		if ct == nil {
			return nil, &ValidationError{CreditID: p.ID, Field: "credit_type", Message: "does not exist"}
		}
	}

	id := p.ID
	if id == "" {
		id = CreditID(uuid.NewString())
	}

	now := l.Now()
	sc := StoreCredit{
		ID:          id,
		UserID:      p.UserID,
		CategoryID:  p.CategoryID,
		CreatedByID: p.CreatedByID,
		TypeID:      typeID,
		Amount:      p.Amount,
		AmountUsed:  decimal.Zero,
		Currency:    p.Currency,
		Memo:        p.Memo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := s.CreateCredit(ctx, sc); err != nil {
		return nil, err
	}

	intent := EventIntent{Action: ActionAllocation, Amount: sc.Amount}
	if err := l.appendEvent(ctx, s, &sc, intent); err != nil {
		return nil, err
	}
	return &sc, nil
}

// =============================================================================
// AUTHORIZE
// =============================================================================

// Authorize places a hold of amount against the credit's remaining
// balance and returns the authorization code. When code is empty a new
// one is generated. Replaying an already-authorized code succeeds
// without mutating anything.
func (l *Ledger) Authorize(ctx context.Context, id CreditID, amount decimal.Decimal, orderCurrency Currency, code AuthorizationCode) (AuthorizationCode, error) {
	var out AuthorizationCode
	err := l.Store.WithTx(ctx, func(s Store) error {
		sc, err := s.GetCredit(ctx, id)
		if err != nil {
			return err
		}
		c, err := l.ensureAuthorized(ctx, s, sc, amount, orderCurrency, code)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ensureAuthorized is the shared authorize step: replay if the code
// was already authorized, otherwise validate, mutate, and append the
// authorize event. Runs inside the caller's transaction.
func (l *Ledger) ensureAuthorized(ctx context.Context, s Store, sc *StoreCredit, amount decimal.Decimal, orderCurrency Currency, code AuthorizationCode) (AuthorizationCode, error) {
	if code == "" {
		code = GenerateAuthorizationCode(sc.ID, l.Now())
	}

	// Don't authorize again on replay (or on capture after an explicit
	// authorize).
	existing, err := s.FindEvent(ctx, sc.ID, ActionAuthorize, code)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return code, nil
	}

	intent, err := sc.authorize(amount, orderCurrency, code)
	if err != nil {
		return "", err
	}
	if err := l.persist(ctx, s, sc, intent); err != nil {
		return "", err
	}
	return code, nil
}

// =============================================================================
// CAPTURE
// =============================================================================

// Capture settles an authorization into consumption. The design treats
// capture as authorize-then-settle: the authorize step runs first
// (idempotent if a hold already exists for the code, placed fresh
// otherwise), then the settle step moves the amount from authorized to
// used. Both steps share one transaction.
func (l *Ledger) Capture(ctx context.Context, id CreditID, amount decimal.Decimal, code AuthorizationCode, orderCurrency Currency) (AuthorizationCode, error) {
	var out AuthorizationCode
	err := l.Store.WithTx(ctx, func(s Store) error {
		sc, err := s.GetCredit(ctx, id)
		if err != nil {
			return err
		}

		code, err = l.ensureAuthorized(ctx, s, sc, amount, orderCurrency, code)
		if err != nil {
			return err
		}

		intent, err := sc.capture(amount, orderCurrency, code)
		if err != nil {
			return err
		}
		if err := l.persist(ctx, s, sc, intent); err != nil {
			return err
		}
		out = code
		return nil
	})
	return out, err
}

// =============================================================================
// VOID
// =============================================================================

// Void releases the hold placed under code without consuming it.
// Returns ErrVoidTargetNotFound when the code was never authorized on
// this credit. A code that was already voided returns success without
// releasing the hold a second time.
func (l *Ledger) Void(ctx context.Context, id CreditID, code AuthorizationCode) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		sc, err := s.GetCredit(ctx, id)
		if err != nil {
			return err
		}

		// Already released; releasing again would corrupt the balance.
		voided, err := s.FindEvent(ctx, sc.ID, ActionVoid, code)
		if err != nil {
			return err
		}
		if voided != nil {
			return nil
		}

		authEv, err := s.FindEvent(ctx, sc.ID, ActionAuthorize, code)
		if err != nil {
			return err
		}
		if authEv == nil {
			return ErrVoidTargetNotFound
		}

		intent, err := sc.void(authEv.Amount, code)
		if err != nil {
			return err
		}
		return l.persist(ctx, s, sc, intent)
	})
}

// =============================================================================
// CREDIT
// =============================================================================

// Credit reverses a prior capture under code, returning amount to the
// available balance. The currency gate runs first regardless of
// whether a capture exists. Crediting more than the capture's
// remaining creditable amount fails with ErrCreditTargetNotFound.
func (l *Ledger) Credit(ctx context.Context, id CreditID, amount decimal.Decimal, code AuthorizationCode, orderCurrency Currency) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		sc, err := s.GetCredit(ctx, id)
		if err != nil {
			return err
		}

		// Sanity check that the order currency hasn't changed since the
		// auth, before any event lookup.
		if sc.Currency != orderCurrency {
			return &CurrencyMismatchError{CreditID: sc.ID, Have: sc.Currency, Want: orderCurrency}
		}

		capEv, err := s.FindEvent(ctx, sc.ID, ActionCapture, code)
		if err != nil {
			return err
		}
		if capEv == nil {
			return ErrCreditTargetNotFound
		}

		creditable, err := l.creditableAmount(ctx, s, sc.ID, code, capEv.Amount)
		if err != nil {
			return err
		}

		intent, err := sc.creditBack(amount, orderCurrency, code, creditable)
		if err != nil {
			return err
		}
		return l.persist(ctx, s, sc, intent)
	})
}

// creditableAmount is the captured amount minus credits already issued
// against the same authorization code.
func (l *Ledger) creditableAmount(ctx context.Context, s Store, id CreditID, code AuthorizationCode, captured decimal.Decimal) (decimal.Decimal, error) {
	credits, err := s.EventsByCode(ctx, id, ActionCredit, code)
	if err != nil {
		return decimal.Zero, err
	}
	remaining := captured
	for _, ev := range credits {
		remaining = remaining.Sub(ev.Amount)
	}
	return remaining, nil
}

// =============================================================================
// ELIGIBLE
// =============================================================================

// Eligible records that the credit was deemed eligible for an order.
// Audit trail only; the balance does not move.
func (l *Ledger) Eligible(ctx context.Context, id CreditID, amount decimal.Decimal, code AuthorizationCode) (AuthorizationCode, error) {
	var out AuthorizationCode
	err := l.Store.WithTx(ctx, func(s Store) error {
		sc, err := s.GetCredit(ctx, id)
		if err != nil {
			return err
		}
		if code == "" {
			code = GenerateAuthorizationCode(sc.ID, l.Now())
		}
		if err := l.appendEvent(ctx, s, sc, EventIntent{Action: ActionEligible, Amount: amount, AuthorizationCode: code}); err != nil {
			return err
		}
		out = code
		return nil
	})
	return out, err
}

// =============================================================================
// INVALIDATE - Soft delete
// =============================================================================

// Invalidate tombstones a credit. The row and its event history are
// kept; active queries exclude it from then on. A credit with an
// outstanding authorization hold cannot be invalidated.
func (l *Ledger) Invalidate(ctx context.Context, id CreditID) error {
	return l.Store.WithTx(ctx, func(s Store) error {
		sc, err := s.GetCredit(ctx, id)
		if err != nil {
			return err
		}
		if sc.AmountAuthorized.IsPositive() {
			return ErrOutstandingAuthorization
		}
		now := l.Now()
		sc.DeletedAt = &now
		sc.UpdatedAt = now
		return s.UpdateCredit(ctx, *sc)
	})
}

// =============================================================================
// READ-ONLY QUERIES
// =============================================================================

// GetCredit returns an active credit.
func (l *Ledger) GetCredit(ctx context.Context, id CreditID) (*StoreCredit, error) {
	return l.Store.GetCredit(ctx, id)
}

// CreditsForUser returns the user's active credits in consumption
// order: credit type priority ascending.
func (l *Ledger) CreditsForUser(ctx context.Context, userID UserID) ([]StoreCredit, error) {
	return l.Store.CreditsByUser(ctx, userID)
}

// TotalAvailable sums AmountRemaining across the user's active
// credits. Read-only aggregation; no atomicity across balances.
func (l *Ledger) TotalAvailable(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	return userTotal(ctx, l.Store, userID)
}

// Events returns the full audit history of a credit, including one
// for invalidated credits' past activity.
func (l *Ledger) Events(ctx context.Context, id CreditID) ([]Event, error) {
	return l.Store.Events(ctx, id)
}

// =============================================================================
// INTERNALS
// =============================================================================

// persist runs the validation gate, saves the balance, and appends the
// intent's event. Called inside a store transaction only.
func (l *Ledger) persist(ctx context.Context, s Store, sc *StoreCredit, intent EventIntent) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	sc.UpdatedAt = l.Now()
	if err := s.UpdateCredit(ctx, *sc); err != nil {
		return err
	}
	return l.appendEvent(ctx, s, sc, intent)
}

// appendEvent writes the ledger entry, stamping it with the user's
// total available balance at this point in the transaction. A missing
// authorization code is backfilled with a generated one.
func (l *Ledger) appendEvent(ctx context.Context, s Store, sc *StoreCredit, intent EventIntent) error {
	total, err := userTotal(ctx, s, sc.UserID)
	if err != nil {
		return err
	}
	code := intent.AuthorizationCode
	if code == "" {
		code = GenerateAuthorizationCode(sc.ID, l.Now())
	}
	return s.AppendEvent(ctx, Event{
		ID:                EventID(uuid.NewString()),
		CreditID:          sc.ID,
		Action:            intent.Action,
		Amount:            intent.Amount,
		AuthorizationCode: code,
		UserTotalAmount:   total,
		CreatedAt:         l.Now(),
	})
}

func userTotal(ctx context.Context, s Store, userID UserID) (decimal.Decimal, error) {
	credits, err := s.CreditsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range credits {
		total = total.Add(credits[i].AmountRemaining())
	}
	return total, nil
}
