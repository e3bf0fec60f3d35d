/*
handlers.go - HTTP API handlers for the credit engine

PURPOSE:
  Exposes the credit ledger and gift card flows via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Credits:
    POST   /api/credits                     Grant a store credit
    GET    /api/credits/{id}                Get credit details
    GET    /api/credits/{id}/events         Ledger history
    POST   /api/credits/{id}/authorize      Place a hold
    POST   /api/credits/{id}/capture        Settle a hold
    POST   /api/credits/{id}/void           Release a hold
    POST   /api/credits/{id}/credit         Reverse a capture
    DELETE /api/credits/{id}                Invalidate (soft delete)

  Users:
    GET    /api/users/{id}/credits          Active credits, priority order
    GET    /api/users/{id}/balance          Total available + breakdown

  Gift cards:
    POST   /api/gift-cards                  Issue a card
    POST   /api/gift-cards/redeem           Redeem a code
    GET    /api/gift-cards/{code}           Lookup by code
    DELETE /api/gift-cards/{code}           Deactivate an unredeemed card

  Reference data:
    GET    /api/credit-types                List credit types

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed request body or parameters
  - 404: Credit or gift card not found
  - 422: Domain rejection (funds, currency, idempotency targets)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are
  public; front this service with an authenticating gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/giftcard"
	"github.com/warp/credit-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *credit.Ledger
	Cards  *giftcard.Service
	Store  *sqlite.Store
}

// NewHandler creates a new handler over the ledger and gift card
// service. Store is used for reference data (credit types).
func NewHandler(ledger *credit.Ledger, cards *giftcard.Service, store *sqlite.Store) *Handler {
	return &Handler{Ledger: ledger, Cards: cards, Store: store}
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// GrantCredit creates a new store credit.
// POST /api/credits
func (h *Handler) GrantCredit(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sc, err := h.Ledger.Grant(r.Context(), credit.GrantParams{
		UserID:      credit.UserID(req.UserID),
		CategoryID:  credit.CategoryID(req.CategoryID),
		CreatedByID: credit.UserID(req.CreatedBy),
		TypeID:      credit.TypeID(req.TypeID),
		Amount:      decimal.NewFromFloat(req.Amount),
		Currency:    credit.Currency(req.Currency),
		Memo:        req.Memo,
	})
	if err != nil {
		writeDomainError(w, "Failed to grant credit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCreditDTO(sc))
}

// GetCredit returns a single active credit.
// GET /api/credits/{id}
func (h *Handler) GetCredit(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	sc, err := h.Ledger.GetCredit(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get credit", err)
		return
	}

	writeJSON(w, http.StatusOK, toCreditDTO(sc))
}

// GetCreditEvents returns the full ledger history of a credit.
// GET /api/credits/{id}/events
func (h *Handler) GetCreditEvents(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	events, err := h.Ledger.Events(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AuthorizeCredit places a hold against a credit.
// POST /api/credits/{id}/authorize
func (h *Handler) AuthorizeCredit(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	var req AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	code, err := h.Ledger.Authorize(r.Context(), id,
		decimal.NewFromFloat(req.Amount),
		credit.Currency(req.Currency),
		credit.AuthorizationCode(req.AuthorizationCode))
	if err != nil {
		writeDomainError(w, "Failed to authorize", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthorizationDTO{AuthorizationCode: string(code)})
}

// CaptureCredit settles a hold.
// POST /api/credits/{id}/capture
func (h *Handler) CaptureCredit(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	code, err := h.Ledger.Capture(r.Context(), id,
		decimal.NewFromFloat(req.Amount),
		credit.AuthorizationCode(req.AuthorizationCode),
		credit.Currency(req.Currency))
	if err != nil {
		writeDomainError(w, "Failed to capture", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthorizationDTO{AuthorizationCode: string(code)})
}

// VoidCredit releases a hold.
// POST /api/credits/{id}/void
func (h *Handler) VoidCredit(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	var req VoidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Ledger.Void(r.Context(), id, credit.AuthorizationCode(req.AuthorizationCode)); err != nil {
		writeDomainError(w, "Failed to void", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthorizationDTO{AuthorizationCode: req.AuthorizationCode})
}

// CreditBack reverses a prior capture.
// POST /api/credits/{id}/credit
func (h *Handler) CreditBack(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Ledger.Credit(r.Context(), id,
		decimal.NewFromFloat(req.Amount),
		credit.AuthorizationCode(req.AuthorizationCode),
		credit.Currency(req.Currency))
	if err != nil {
		writeDomainError(w, "Failed to credit", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthorizationDTO{AuthorizationCode: req.AuthorizationCode})
}

// InvalidateCredit soft-deletes a credit.
// DELETE /api/credits/{id}
func (h *Handler) InvalidateCredit(w http.ResponseWriter, r *http.Request) {
	id := credit.CreditID(chi.URLParam(r, "id"))

	if err := h.Ledger.Invalidate(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to invalidate credit", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUserCredits returns the user's active credits in consumption
// order.
// GET /api/users/{id}/credits
func (h *Handler) ListUserCredits(w http.ResponseWriter, r *http.Request) {
	userID := credit.UserID(chi.URLParam(r, "id"))

	credits, err := h.Ledger.CreditsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list credits", err)
		return
	}

	dtos := make([]CreditDTO, len(credits))
	for i := range credits {
		dtos[i] = toCreditDTO(&credits[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUserBalance returns the total available amount plus the per-credit
// breakdown.
// GET /api/users/{id}/balance
func (h *Handler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID := credit.UserID(chi.URLParam(r, "id"))

	credits, err := h.Ledger.CreditsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}

	total := decimal.Zero
	dtos := make([]CreditDTO, len(credits))
	for i := range credits {
		total = total.Add(credits[i].AmountRemaining())
		dtos[i] = toCreditDTO(&credits[i])
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:         string(userID),
		TotalAvailable: toFloat(total),
		Credits:        dtos,
	})
}

// =============================================================================
// GIFT CARD HANDLERS
// =============================================================================

// IssueGiftCard creates a gift card with a fresh redemption code.
// POST /api/gift-cards
func (h *Handler) IssueGiftCard(w http.ResponseWriter, r *http.Request) {
	var req IssueGiftCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var sendAt *time.Time
	if req.SendEmailAt != "" {
		t, err := time.Parse(time.RFC3339, req.SendEmailAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid send_email_at (use RFC3339)", err)
			return
		}
		sendAt = &t
	}

	gc, err := h.Cards.Issue(r.Context(), giftcard.IssueParams{
		Amount:         decimal.NewFromFloat(req.Amount),
		Currency:       credit.Currency(req.Currency),
		PurchaserName:  req.PurchaserName,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		GiftMessage:    req.GiftMessage,
		SendEmailAt:    sendAt,
		OrderEmail:     req.OrderEmail,
	})
	if err != nil {
		writeDomainError(w, "Failed to issue gift card", err)
		return
	}

	writeJSON(w, http.StatusCreated, toGiftCardDTO(gc))
}

// RedeemGiftCard settles a redemption code into a store credit.
// POST /api/gift-cards/redeem
func (h *Handler) RedeemGiftCard(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required", nil)
		return
	}

	red, err := h.Cards.Redeem(r.Context(), req.RedemptionCode, req.Email)
	if err != nil {
		writeDomainError(w, "Failed to redeem gift card", err)
		return
	}

	writeJSON(w, http.StatusOK, RedemptionDTO{
		GiftCard: toGiftCardDTO(red.GiftCard),
		Credit:   toCreditDTO(red.Credit),
		UserID:   string(red.User.ID),
	})
}

// GetGiftCard looks up a gift card by redemption code.
// GET /api/gift-cards/{code}
func (h *Handler) GetGiftCard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	gc, err := h.Cards.Lookup(r.Context(), code)
	if err != nil {
		writeDomainError(w, "Failed to get gift card", err)
		return
	}

	writeJSON(w, http.StatusOK, toGiftCardDTO(gc))
}

// DeactivateGiftCard disables an unredeemed card.
// DELETE /api/gift-cards/{code}
func (h *Handler) DeactivateGiftCard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.Cards.Deactivate(r.Context(), code); err != nil {
		writeDomainError(w, "Failed to deactivate gift card", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// CreditTypeDTO represents a credit type in API responses.
type CreditTypeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// ListCreditTypes returns all credit types ordered by priority.
// GET /api/credit-types
func (h *Handler) ListCreditTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListCreditTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list credit types", err)
		return
	}

	dtos := make([]CreditTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = CreditTypeDTO{ID: string(t.ID), Name: t.Name, Priority: t.Priority}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps domain errors onto HTTP status codes: missing
// resources are 404, ledger rejections are 422, everything else is an
// internal error.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case credit.IsNotFound(err),
		errors.Is(err, giftcard.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case credit.IsClientError(err),
		errors.Is(err, giftcard.ErrAlreadyRedeemed),
		errors.Is(err, giftcard.ErrDeactivated):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
