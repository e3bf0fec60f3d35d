/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Handlers validate; DTOs are pure data carriers. Monetary amounts are
  JSON numbers converted to decimals at the boundary.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/giftcard"
)

// =============================================================================
// CREDIT REQUESTS
// =============================================================================

// GrantRequest creates a new store credit (admin grant).
type GrantRequest struct {
	UserID     string  `json:"user_id"`
	CategoryID string  `json:"category_id"`
	CreatedBy  string  `json:"created_by"`
	TypeID     string  `json:"type_id,omitempty"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Memo       string  `json:"memo,omitempty"`
}

// AuthorizeRequest places a hold against a credit.
type AuthorizeRequest struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	AuthorizationCode string  `json:"authorization_code,omitempty"`
}

// CaptureRequest settles a hold.
type CaptureRequest struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	AuthorizationCode string  `json:"authorization_code"`
}

// VoidRequest releases a hold.
type VoidRequest struct {
	AuthorizationCode string `json:"authorization_code"`
}

// CreditRequest reverses a prior capture.
type CreditRequest struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	AuthorizationCode string  `json:"authorization_code"`
}

// =============================================================================
// CREDIT RESPONSES
// =============================================================================

// CreditDTO represents a store credit in API responses.
type CreditDTO struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	CategoryID       string  `json:"category_id"`
	CreatedBy        string  `json:"created_by"`
	TypeID           string  `json:"type_id"`
	Amount           float64 `json:"amount"`
	AmountUsed       float64 `json:"amount_used"`
	AmountAuthorized float64 `json:"amount_authorized"`
	AmountRemaining  float64 `json:"amount_remaining"`
	Currency         string  `json:"currency"`
	Memo             string  `json:"memo,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// EventDTO represents one ledger entry.
type EventDTO struct {
	ID                string  `json:"id"`
	Action            string  `json:"action"`
	Amount            float64 `json:"amount"`
	AuthorizationCode string  `json:"authorization_code"`
	UserTotalAmount   float64 `json:"user_total_amount"`
	CreatedAt         string  `json:"created_at"`
}

// AuthorizationDTO is the success response of authorize/capture.
type AuthorizationDTO struct {
	AuthorizationCode string `json:"authorization_code"`
}

// BalanceDTO is the per-user aggregation response.
type BalanceDTO struct {
	UserID         string      `json:"user_id"`
	TotalAvailable float64     `json:"total_available"`
	Credits        []CreditDTO `json:"credits"`
}

// =============================================================================
// GIFT CARDS
// =============================================================================

// IssueGiftCardRequest mirrors the purchase-time attributes captured
// from an order line item.
type IssueGiftCardRequest struct {
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PurchaserName  string  `json:"purchaser_name,omitempty"`
	RecipientName  string  `json:"recipient_name,omitempty"`
	RecipientEmail string  `json:"recipient_email,omitempty"`
	GiftMessage    string  `json:"gift_message,omitempty"`
	SendEmailAt    string  `json:"send_email_at,omitempty"`
	OrderEmail     string  `json:"order_email,omitempty"`
}

// RedeemRequest settles a gift card claim for a user.
type RedeemRequest struct {
	RedemptionCode string `json:"redemption_code"`
	Email          string `json:"email"`
}

// GiftCardDTO represents a gift card in API responses.
type GiftCardDTO struct {
	ID             string  `json:"id"`
	RedemptionCode string  `json:"redemption_code"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	RecipientName  string  `json:"recipient_name,omitempty"`
	RecipientEmail string  `json:"recipient_email,omitempty"`
	GiftMessage    string  `json:"gift_message,omitempty"`
	Redeemed       bool    `json:"redeemed"`
	CreditID       string  `json:"credit_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// RedemptionDTO is the redeem success response.
type RedemptionDTO struct {
	GiftCard GiftCardDTO `json:"gift_card"`
	Credit   CreditDTO   `json:"credit"`
	UserID   string      `json:"user_id"`
}

// ErrorResponse is the uniform failure body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCreditDTO(sc *credit.StoreCredit) CreditDTO {
	return CreditDTO{
		ID:               string(sc.ID),
		UserID:           string(sc.UserID),
		CategoryID:       string(sc.CategoryID),
		CreatedBy:        string(sc.CreatedByID),
		TypeID:           string(sc.TypeID),
		Amount:           toFloat(sc.Amount),
		AmountUsed:       toFloat(sc.AmountUsed),
		AmountAuthorized: toFloat(sc.AmountAuthorized),
		AmountRemaining:  toFloat(sc.AmountRemaining()),
		Currency:         string(sc.Currency),
		Memo:             sc.Memo,
		CreatedAt:        sc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toEventDTO(ev credit.Event) EventDTO {
	return EventDTO{
		ID:                string(ev.ID),
		Action:            string(ev.Action),
		Amount:            toFloat(ev.Amount),
		AuthorizationCode: string(ev.AuthorizationCode),
		UserTotalAmount:   toFloat(ev.UserTotalAmount),
		CreatedAt:         ev.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toGiftCardDTO(gc *giftcard.GiftCard) GiftCardDTO {
	return GiftCardDTO{
		ID:             gc.ID,
		RedemptionCode: gc.RedemptionCode,
		Amount:         toFloat(gc.Amount),
		Currency:       string(gc.Currency),
		RecipientName:  gc.RecipientName,
		RecipientEmail: gc.RecipientEmail,
		GiftMessage:    gc.GiftMessage,
		Redeemed:       gc.Redeemed(),
		CreditID:       string(gc.CreditID),
		CreatedAt:      gc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
