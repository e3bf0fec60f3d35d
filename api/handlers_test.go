/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Credit lifecycle over HTTP (grant, authorize, capture, void, credit)
- Error mapping (404 vs 422)
- Gift card issue/redeem endpoints
- User balance aggregation
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/giftcard"
	"github.com/warp/credit-engine/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.SaveCreditType(ctx, credit.CreditType{ID: "expiring", Name: "Expiring", Priority: 1}); err != nil {
		t.Fatalf("Failed to seed credit type: %v", err)
	}
	if err := store.SaveCategory(ctx, credit.Category{ID: "gift-card", Name: "Gift Card"}); err != nil {
		t.Fatalf("Failed to seed category: %v", err)
	}

	ledger := credit.NewLedger(store, "expiring")
	cards := giftcard.NewService(store, ledger, giftcard.NopNotifier{}, "gift-card")
	handler := NewHandler(ledger, cards, store)
	srv := httptest.NewServer(NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func grantCredit(t *testing.T, srv *httptest.Server, amount float64) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/credits", map[string]any{
		"user_id":     "alice",
		"category_id": "gift-card",
		"created_by":  "admin",
		"amount":      amount,
		"currency":    "USD",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Grant returned %d, want 201 (body: %v)", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("Grant response missing credit id")
	}
	return id
}

func TestGrantAndGetCredit(t *testing.T) {
	srv := newTestServer(t)

	id := grantCredit(t, srv, 100)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/credits/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get returned %d, want 200", resp.StatusCode)
	}
	if body["amount"].(float64) != 100 {
		t.Errorf("amount = %v, want 100", body["amount"])
	}
	if body["amount_remaining"].(float64) != 100 {
		t.Errorf("amount_remaining = %v, want 100", body["amount_remaining"])
	}
	if body["type_id"].(string) != "expiring" {
		t.Errorf("type_id = %v, want default type", body["type_id"])
	}
}

func TestGetCredit_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/credits/no-such", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Get returned %d, want 404", resp.StatusCode)
	}
}

func TestAuthorizeCaptureFlow(t *testing.T) {
	srv := newTestServer(t)
	id := grantCredit(t, srv, 100)

	// Authorize 40
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/authorize", map[string]any{
		"amount":             40,
		"currency":           "USD",
		"authorization_code": "order-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Authorize returned %d, want 200 (body: %v)", resp.StatusCode, body)
	}
	if body["authorization_code"].(string) != "order-1" {
		t.Errorf("authorization_code = %v, want order-1", body["authorization_code"])
	}

	// Capture 40 under the same code
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/capture", map[string]any{
		"amount":             40,
		"currency":           "USD",
		"authorization_code": "order-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Capture returned %d, want 200 (body: %v)", resp.StatusCode, body)
	}

	// The balance reflects the consumption
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/credits/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get returned %d, want 200", resp.StatusCode)
	}
	if body["amount_used"].(float64) != 40 {
		t.Errorf("amount_used = %v, want 40", body["amount_used"])
	}
	if body["amount_authorized"].(float64) != 0 {
		t.Errorf("amount_authorized = %v, want 0", body["amount_authorized"])
	}

	// Event history: allocation, authorize, capture
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/credits/"+id+"/events", nil)
	evResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Events request failed: %v", err)
	}
	defer evResp.Body.Close()
	var events []map[string]any
	if err := json.NewDecoder(evResp.Body).Decode(&events); err != nil {
		t.Fatalf("Failed to decode events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{"allocation", "authorize", "capture"} {
		if events[i]["action"].(string) != want {
			t.Errorf("event %d action = %v, want %s", i, events[i]["action"], want)
		}
	}
}

func TestAuthorize_InsufficientFunds_422(t *testing.T) {
	srv := newTestServer(t)
	id := grantCredit(t, srv, 100)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/authorize", map[string]any{
		"amount":   100.01,
		"currency": "USD",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Authorize returned %d, want 422 (body: %v)", resp.StatusCode, body)
	}
	if body["error"] == nil {
		t.Error("error body missing")
	}
}

func TestAuthorize_CurrencyMismatch_422(t *testing.T) {
	srv := newTestServer(t)
	id := grantCredit(t, srv, 100)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/authorize", map[string]any{
		"amount":   10,
		"currency": "EUR",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Authorize returned %d, want 422", resp.StatusCode)
	}
}

func TestVoidAndCredit(t *testing.T) {
	srv := newTestServer(t)
	id := grantCredit(t, srv, 100)

	// Hold and release
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/authorize", map[string]any{
		"amount": 30, "currency": "USD", "authorization_code": "order-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Authorize returned %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/void", map[string]any{
		"authorization_code": "order-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Void returned %d, want 200", resp.StatusCode)
	}

	// Capture and reverse
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/capture", map[string]any{
		"amount": 50, "currency": "USD", "authorization_code": "order-2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Capture returned %d, want 200", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/credit", map[string]any{
		"amount": 20, "currency": "USD", "authorization_code": "order-2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Credit returned %d, want 200", resp.StatusCode)
	}

	_, body := doJSON(t, http.MethodGet, srv.URL+"/api/credits/"+id, nil)
	if body["amount_used"].(float64) != 30 {
		t.Errorf("amount_used = %v, want 30", body["amount_used"])
	}
	if body["amount_remaining"].(float64) != 70 {
		t.Errorf("amount_remaining = %v, want 70", body["amount_remaining"])
	}
}

func TestVoid_UnknownCode_422(t *testing.T) {
	srv := newTestServer(t)
	id := grantCredit(t, srv, 100)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+id+"/void", map[string]any{
		"authorization_code": "never-authorized",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Void returned %d, want 422", resp.StatusCode)
	}
}

func TestInvalidateCredit(t *testing.T) {
	srv := newTestServer(t)
	id := grantCredit(t, srv, 100)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/credits/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Delete returned %d, want 204", resp.StatusCode)
	}

	getResp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/credits/"+id, nil)
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("Get after invalidate returned %d, want 404", getResp.StatusCode)
	}
}

func TestUserBalance(t *testing.T) {
	srv := newTestServer(t)
	grantCredit(t, srv, 100)
	grantCredit(t, srv, 50)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users/alice/balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Balance returned %d, want 200", resp.StatusCode)
	}
	if body["total_available"].(float64) != 150 {
		t.Errorf("total_available = %v, want 150", body["total_available"])
	}
	credits := body["credits"].([]any)
	if len(credits) != 2 {
		t.Errorf("got %d credits, want 2", len(credits))
	}
}

func TestGiftCardIssueAndRedeem(t *testing.T) {
	srv := newTestServer(t)

	// Issue
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/gift-cards", map[string]any{
		"amount":          25,
		"currency":        "USD",
		"recipient_name":  "Alice",
		"recipient_email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Issue returned %d, want 201 (body: %v)", resp.StatusCode, body)
	}
	code, _ := body["redemption_code"].(string)
	if code == "" {
		t.Fatal("Issue response missing redemption_code")
	}

	// Redeem
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/gift-cards/redeem", map[string]any{
		"redemption_code": code,
		"email":           "alice@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Redeem returned %d, want 200 (body: %v)", resp.StatusCode, body)
	}
	creditBody := body["credit"].(map[string]any)
	if creditBody["amount"].(float64) != 25 {
		t.Errorf("credit amount = %v, want 25", creditBody["amount"])
	}
	userID, _ := body["user_id"].(string)
	if userID == "" {
		t.Fatal("Redeem response missing user_id")
	}

	// Second redemption is rejected
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/gift-cards/redeem", map[string]any{
		"redemption_code": code,
		"email":           "mallory@example.com",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Second redeem returned %d, want 422", resp.StatusCode)
	}

	// The credit shows up in the user's balance
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/users/%s/balance", srv.URL, userID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Balance returned %d, want 200", resp.StatusCode)
	}
	if body["total_available"].(float64) != 25 {
		t.Errorf("total_available = %v, want 25", body["total_available"])
	}
}

func TestGiftCardRedeem_UnknownCode_404(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/gift-cards/redeem", map[string]any{
		"redemption_code": "NOPE",
		"email":           "alice@example.com",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Redeem returned %d, want 404", resp.StatusCode)
	}
}

func TestListCreditTypes(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/credit-types", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("List returned %d, want 200", resp.StatusCode)
	}

	var types []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(types) != 1 {
		t.Fatalf("got %d types, want 1", len(types))
	}
	if types[0]["id"].(string) != "expiring" {
		t.Errorf("type id = %v, want expiring", types[0]["id"])
	}
}
