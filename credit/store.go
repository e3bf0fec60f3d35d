/*
store.go - Persistence interfaces for credits and their event log

PURPOSE:
  Defines the boundary between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

APPEND-ONLY CONTRACT:
  Events have exactly one write operation: AppendEvent. There is no
  update and no delete. Credits are updated in place (the three
  sub-amounts move), but only ever through the ledger, and every such
  update is paired with an AppendEvent in the same transaction.

TRANSACTIONS:
  TxStore.WithTx runs a function against a Store view bound to one
  database transaction. Every ledger operation executes inside WithTx
  so that the idempotency lookup, the invariant check, and the
  balance-update-plus-event-append are atomic. Concurrent operations on
  the same credit serialize on the store's write lock; two concurrent
  authorizations can never both pass the remaining-amount check.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - credit/store:  In-memory store for tests/dev

SEE ALSO:
  - ledger.go: The only caller of the write operations
*/
package credit

import "context"

// =============================================================================
// STORE - Credit and event persistence
// =============================================================================

// Store handles persistence of credits, their event log, and the
// priority-ordered credit types.
type Store interface {
	// CreateCredit inserts a new store credit.
	CreateCredit(ctx context.Context, sc StoreCredit) error

	// GetCredit returns a credit by ID, excluding invalidated ones.
	// Returns ErrCreditNotFound if missing or soft-deleted.
	GetCredit(ctx context.Context, id CreditID) (*StoreCredit, error)

	// UpdateCredit persists the mutable fields of an existing credit
	// (sub-amounts, memo, UpdatedAt, DeletedAt).
	UpdateCredit(ctx context.Context, sc StoreCredit) error

	// CreditsByUser returns the user's non-deleted credits ordered by
	// credit type priority ascending, then creation time.
	CreditsByUser(ctx context.Context, userID UserID) ([]StoreCredit, error)

	// AppendEvent adds a ledger entry. This is the ONLY event write.
	AppendEvent(ctx context.Context, ev Event) error

	// FindEvent returns the first event matching credit+action+code,
	// or nil if none exists. Used for idempotent replay and for
	// locating void/credit targets.
	FindEvent(ctx context.Context, id CreditID, action Action, code AuthorizationCode) (*Event, error)

	// EventsByCode returns all events for credit+action+code,
	// chronologically. Used to compute the creditable remainder of a
	// captured authorization.
	EventsByCode(ctx context.Context, id CreditID, action Action, code AuthorizationCode) ([]Event, error)

	// Events returns the full audit history for a credit,
	// chronologically.
	Events(ctx context.Context, id CreditID) ([]Event, error)

	// GetCreditType returns a credit type by ID, or nil if missing.
	GetCreditType(ctx context.Context, id TypeID) (*CreditType, error)

	// FindCreditTypeByName returns a credit type by name, or nil.
	FindCreditTypeByName(ctx context.Context, name string) (*CreditType, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support. Every ledger operation
// runs inside WithTx: if fn returns an error the transaction rolls
// back and neither the balance nor the event log changes.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
