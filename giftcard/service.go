/*
service.go - Gift card issuance, redemption, and deactivation

REDEMPTION FLOW:
  1. Locate the active gift card by its redemption code
  2. Resolve the redeeming user (existing by email, or stub)
  3. Grant a store credit for the card's amount (allocation event)
  4. Mark the card redeemed, pointing at the credit and the user
  5. Fire the recipient notification (best-effort, out-of-band)

The single-redemption rule is enforced here: a redeemed or deactivated
code can never allocate a second credit. Steps 1-4 run inside one
store transaction, so two overlapping redeems of the same code cannot
both observe the claim open, and a failed grant leaves the card row
untouched.
*/
package giftcard

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/credit-engine/credit"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service wires gift cards to the credit ledger.
type Service struct {
	Store    TxStore
	Ledger   *credit.Ledger
	Notifier Notifier

	// CategoryID is the store credit category for redeemed gift cards.
	CategoryID credit.CategoryID

	Now func() time.Time
}

func NewService(store TxStore, ledger *credit.Ledger, notifier Notifier, categoryID credit.CategoryID) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		Store:      store,
		Ledger:     ledger,
		Notifier:   notifier,
		CategoryID: categoryID,
		Now:        time.Now,
	}
}

// =============================================================================
// ISSUE
// =============================================================================

// IssueParams captures the purchase-time details of a gift card.
// These mirror the whitelisted line item attributes: recipient name,
// recipient email, gift message, purchaser name, send-email-at.
type IssueParams struct {
	Amount         decimal.Decimal
	Currency       credit.Currency
	PurchaserName  string
	RecipientName  string
	RecipientEmail string
	GiftMessage    string
	SendEmailAt    *time.Time
	OrderEmail     string
}

// Issue creates a gift card with a fresh redemption code and fires the
// issued notification.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*GiftCard, error) {
	if !p.Amount.IsPositive() {
		return nil, &credit.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if p.Currency == "" {
		return nil, &credit.ValidationError{Field: "currency", Message: "is required"}
	}

	gc := GiftCard{
		ID:             uuid.NewString(),
		RedemptionCode: GenerateRedemptionCode(),
		Amount:         p.Amount,
		Currency:       p.Currency,
		PurchaserName:  p.PurchaserName,
		RecipientName:  p.RecipientName,
		RecipientEmail: p.RecipientEmail,
		GiftMessage:    p.GiftMessage,
		SendEmailAt:    p.SendEmailAt,
		OrderEmail:     p.OrderEmail,
		CreatedAt:      s.Now(),
	}
	if err := s.Store.CreateGiftCard(ctx, gc); err != nil {
		return nil, err
	}

	s.Notifier.GiftCardIssued(ctx, gc)
	return &gc, nil
}

// =============================================================================
// REDEEM
// =============================================================================

// Redemption is the result of settling a gift card claim.
type Redemption struct {
	GiftCard *GiftCard
	Credit   *credit.StoreCredit
	User     *User

	// InitialPassword is set when a stub user was provisioned.
	InitialPassword string
}

// Redeem settles the claim identified by code, allocating a store
// credit to the user resolved from email. The claim read, the grant,
// and the card update commit as one transaction.
func (s *Service) Redeem(ctx context.Context, code, email string) (*Redemption, error) {
	code = NormalizeRedemptionCode(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}

	var result Redemption
	err := s.Store.WithRedemptionTx(ctx, func(gs Store, cs credit.Store) error {
		gc, err := gs.GetGiftCardByCode(ctx, code)
		if err != nil {
			return err
		}
		if gc == nil {
			return ErrCodeNotFound
		}
		if gc.Redeemed() {
			return ErrAlreadyRedeemed
		}
		if gc.DeactivatedAt != nil {
			return ErrDeactivated
		}

		gen := NewUserGenerator(gs)
		gen.Now = s.Now
		user, initialPassword, err := gen.Ensure(ctx, email)
		if err != nil {
			return err
		}

		sc, err := s.Ledger.GrantWith(ctx, cs, credit.GrantParams{
			UserID:      user.ID,
			CategoryID:  s.CategoryID,
			CreatedByID: user.ID,
			Amount:      gc.Amount,
			Currency:    gc.Currency,
			Memo:        "Gift card " + gc.RedemptionCode,
		})
		if err != nil {
			return err
		}

		now := s.Now()
		gc.CreditID = sc.ID
		gc.RedeemerID = user.ID
		gc.RedeemedAt = &now
		if err := gs.UpdateGiftCard(ctx, *gc); err != nil {
			return err
		}

		result = Redemption{
			GiftCard:        gc,
			Credit:          sc,
			User:            user,
			InitialPassword: initialPassword,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.GiftCardRedeemed(ctx, *result.GiftCard, *result.User)
	return &result, nil
}

// =============================================================================
// DEACTIVATE & LOOKUP
// =============================================================================

// Deactivate disables an unredeemed card. A redeemed card cannot be
// deactivated; its credit already exists.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	gc, err := s.findByCode(ctx, code)
	if err != nil {
		return err
	}
	if gc.Redeemed() {
		return ErrAlreadyRedeemed
	}
	if gc.DeactivatedAt != nil {
		return nil
	}
	now := s.Now()
	gc.DeactivatedAt = &now
	return s.Store.UpdateGiftCard(ctx, *gc)
}

// Lookup returns a gift card by redemption code.
func (s *Service) Lookup(ctx context.Context, code string) (*GiftCard, error) {
	return s.findByCode(ctx, code)
}

func (s *Service) findByCode(ctx context.Context, code string) (*GiftCard, error) {
	code = NormalizeRedemptionCode(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}
	gc, err := s.Store.GetGiftCardByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if gc == nil {
		return nil, ErrCodeNotFound
	}
	return gc, nil
}

// =============================================================================
// REDEMPTION CODES
// =============================================================================

// GenerateRedemptionCode returns a new uppercase code without
// separators, e.g. "9F2C41D0A8B34E7E9C1D2B3A4F5E6D7C".
func GenerateRedemptionCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// NormalizeRedemptionCode makes user input comparable to stored codes.
func NormalizeRedemptionCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToUpper(code)
}
