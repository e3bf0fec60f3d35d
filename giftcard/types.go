/*
Package giftcard provides virtual gift card issuance and redemption on
top of the credit engine.

PURPOSE:
  A purchased gift card is a claim: a redemption code plus an amount.
  Redeeming the code allocates a StoreCredit to the resolving user via
  the ledger's Grant operation. The gift card itself never moves money;
  the store credit it allocates does.

WHY A WRAPPER?
  The credit engine knows nothing about redemption codes, recipients,
  or order emails. This package owns that glue: code generation, the
  single-redemption rule, stub-user provisioning for orders without
  accounts, and the notification hook.

WHAT IT DOES NOT DO:
  Mail rendering and delivery. Notifier is the seam; the engine ships
  with a log-only implementation and real email lives with the caller.

SEE ALSO:
  - service.go: Issue / Redeem / Deactivate
  - users.go: Stub user provisioning
*/
package giftcard

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/credit-engine/credit"
)

// =============================================================================
// GIFT CARD - A redemption claim against a future store credit
// =============================================================================

// GiftCard is a purchased virtual gift card. RedemptionCode identifies
// the claim; CreditID/RedeemerID/RedeemedAt are set exactly once, when
// the claim is settled.
type GiftCard struct {
	ID             string
	RedemptionCode string
	Amount         decimal.Decimal
	Currency       credit.Currency

	// Details captured at purchase time from the order's line item.
	PurchaserName  string
	RecipientName  string
	RecipientEmail string
	GiftMessage    string
	SendEmailAt    *time.Time
	OrderEmail     string

	CreditID      credit.CreditID
	RedeemerID    credit.UserID
	RedeemedAt    *time.Time
	DeactivatedAt *time.Time
	CreatedAt     time.Time
}

// Redeemed reports whether the claim has already been settled.
func (gc *GiftCard) Redeemed() bool { return gc.RedeemedAt != nil }

// Active reports whether the card can still be redeemed.
func (gc *GiftCard) Active() bool {
	return gc.RedeemedAt == nil && gc.DeactivatedAt == nil
}

// User is a credit owner. Stub users are provisioned automatically for
// orders placed without an account; they carry a generated initial
// password the account-claim flow can later rotate.
type User struct {
	ID        credit.UserID
	Email     string
	Stub      bool
	CreatedAt time.Time
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCodeNotFound is returned when no gift card matches the
	// redemption code.
	ErrCodeNotFound = errors.New("gift card not found")

	// ErrAlreadyRedeemed is returned when the code was settled before.
	ErrAlreadyRedeemed = errors.New("gift card already redeemed")

	// ErrDeactivated is returned when the card was disabled before
	// redemption.
	ErrDeactivated = errors.New("gift card deactivated")
)

// =============================================================================
// PERSISTENCE & NOTIFICATION SEAMS
// =============================================================================

// Store is the persistence the gift card flow needs, implemented by
// store/sqlite alongside the credit store.
type Store interface {
	CreateGiftCard(ctx context.Context, gc GiftCard) error
	UpdateGiftCard(ctx context.Context, gc GiftCard) error
	GetGiftCardByCode(ctx context.Context, code string) (*GiftCard, error)

	SaveUser(ctx context.Context, u User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

// TxStore wraps Store with a transaction spanning both the gift card
// tables and the credit store. Redemption is check-then-act (read the
// claim, allocate a credit, mark the claim settled); running all three
// inside one transaction is what makes the single-redemption rule hold
// under concurrent redeems and rules out a granted credit with the
// claim still open.
type TxStore interface {
	Store

	WithRedemptionTx(ctx context.Context, fn func(Store, credit.Store) error) error
}

// Notifier is the out-of-band notification hook (email to the gift
// recipient). External collaborator: failures are logged by callers,
// never propagated into the redemption result.
type Notifier interface {
	GiftCardIssued(ctx context.Context, gc GiftCard)
	GiftCardRedeemed(ctx context.Context, gc GiftCard, u User)
}
