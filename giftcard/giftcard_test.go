package giftcard_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/giftcard"
	"github.com/warp/credit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const categoryGiftCard = credit.CategoryID("gift-card")

// recordingNotifier captures notification calls for assertions.
type recordingNotifier struct {
	issued   []giftcard.GiftCard
	redeemed []giftcard.GiftCard
}

func (n *recordingNotifier) GiftCardIssued(_ context.Context, gc giftcard.GiftCard) {
	n.issued = append(n.issued, gc)
}

func (n *recordingNotifier) GiftCardRedeemed(_ context.Context, gc giftcard.GiftCard, _ giftcard.User) {
	n.redeemed = append(n.redeemed, gc)
}

func newTestService(t *testing.T) (*giftcard.Service, *credit.Ledger, *recordingNotifier) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SaveCreditType(ctx, credit.CreditType{ID: "expiring", Name: "Expiring", Priority: 1}))
	require.NoError(t, st.SaveCategory(ctx, credit.Category{ID: categoryGiftCard, Name: "Gift Card"}))

	ledger := credit.NewLedger(st, "expiring")
	notifier := &recordingNotifier{}
	svc := giftcard.NewService(st, ledger, notifier, categoryGiftCard)
	return svc, ledger, notifier
}

func issue(t *testing.T, svc *giftcard.Service, amount string) *giftcard.GiftCard {
	t.Helper()
	gc, err := svc.Issue(context.Background(), giftcard.IssueParams{
		Amount:         credit.MustParseDecimal(amount),
		Currency:       "USD",
		RecipientName:  "Alice",
		RecipientEmail: "alice@example.com",
		OrderEmail:     "bob@example.com",
	})
	require.NoError(t, err)
	return gc
}

// =============================================================================
// ISSUE
// =============================================================================

func TestIssue_CreatesCardWithRedemptionCode(t *testing.T) {
	svc, _, notifier := newTestService(t)

	gc := issue(t, svc, "25")

	assert.NotEmpty(t, gc.ID)
	assert.NotEmpty(t, gc.RedemptionCode)
	assert.True(t, gc.Active())
	assert.False(t, gc.Redeemed())
	require.Len(t, notifier.issued, 1)
	assert.Equal(t, gc.ID, notifier.issued[0].ID)
}

func TestIssue_RejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), giftcard.IssueParams{
		Amount:   credit.MustParseDecimal("0"),
		Currency: "USD",
	})
	assert.ErrorIs(t, err, credit.ErrValidationFailed)
}

func TestIssue_RejectsMissingCurrency(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), giftcard.IssueParams{
		Amount: credit.MustParseDecimal("25"),
	})
	assert.ErrorIs(t, err, credit.ErrValidationFailed)
}

func TestGenerateRedemptionCode_UppercaseWithoutSeparators(t *testing.T) {
	code := giftcard.GenerateRedemptionCode()

	assert.Len(t, code, 32)
	assert.NotContains(t, code, "-")
	assert.Equal(t, code, giftcard.NormalizeRedemptionCode(code))
}

// =============================================================================
// REDEEM
// =============================================================================

func TestRedeem_AllocatesStoreCredit(t *testing.T) {
	// GIVEN: An issued 25 USD gift card
	// WHEN: Redeeming its code for alice@example.com
	// THEN: A 25 USD store credit is allocated to the resolved user and
	//       the card points at it

	svc, ledger, notifier := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	red, err := svc.Redeem(ctx, gc.RedemptionCode, "alice@example.com")
	require.NoError(t, err)

	assert.True(t, red.GiftCard.Redeemed())
	assert.Equal(t, red.Credit.ID, red.GiftCard.CreditID)
	assert.Equal(t, red.User.ID, red.GiftCard.RedeemerID)
	assert.True(t, red.Credit.Amount.Equal(credit.MustParseDecimal("25")))
	assert.Equal(t, credit.Currency("USD"), red.Credit.Currency)
	assert.Equal(t, categoryGiftCard, red.Credit.CategoryID)
	assert.Contains(t, red.Credit.Memo, gc.RedemptionCode)

	// The allocation shows up in the user's balance
	total, err := ledger.TotalAvailable(ctx, red.User.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(credit.MustParseDecimal("25")))

	require.Len(t, notifier.redeemed, 1)
}

func TestRedeem_ProvisionsStubUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	red, err := svc.Redeem(ctx, gc.RedemptionCode, "New.Person@Example.com")
	require.NoError(t, err)

	assert.True(t, red.User.Stub)
	assert.Equal(t, "new.person@example.com", red.User.Email, "email normalized")
	assert.NotEmpty(t, red.InitialPassword, "stub users get an initial password token")
}

func TestRedeem_ReusesExistingUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first := issue(t, svc, "10")
	red1, err := svc.Redeem(ctx, first.RedemptionCode, "alice@example.com")
	require.NoError(t, err)

	second := issue(t, svc, "15")
	red2, err := svc.Redeem(ctx, second.RedemptionCode, "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, red1.User.ID, red2.User.ID)
	assert.Empty(t, red2.InitialPassword, "existing users get no new token")
}

func TestRedeem_NormalizesCodeInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	gc := issue(t, svc, "25")

	// lowercase with stray whitespace still resolves
	sloppy := "  " + giftcard.NormalizeRedemptionCode(gc.RedemptionCode) + " "
	_, err := svc.Redeem(context.Background(), sloppy, "alice@example.com")
	assert.NoError(t, err)
}

func TestRedeem_UnknownCode_Rejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Redeem(context.Background(), "NO-SUCH-CODE", "alice@example.com")
	assert.ErrorIs(t, err, giftcard.ErrCodeNotFound)
}

func TestRedeem_SecondRedemption_Rejected(t *testing.T) {
	// The single-redemption rule: one code, one credit. Ever.
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	red, err := svc.Redeem(ctx, gc.RedemptionCode, "alice@example.com")
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, gc.RedemptionCode, "mallory@example.com")
	assert.ErrorIs(t, err, giftcard.ErrAlreadyRedeemed)

	// No second credit appeared
	total, err := ledger.TotalAvailable(ctx, red.User.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(credit.MustParseDecimal("25")))
}

func TestRedeem_ConcurrentSameCode_AllocatesOnce(t *testing.T) {
	// GIVEN: An issued 25 USD gift card
	// WHEN: Two redemptions of the same code race each other
	// THEN: Exactly one wins; the loser sees ErrAlreadyRedeemed and the
	//       user ends up with a single 25 USD credit

	svc, ledger, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	results := make(chan error, 2)
	var winner atomic.Pointer[giftcard.Redemption]
	for i := 0; i < 2; i++ {
		go func() {
			red, err := svc.Redeem(ctx, gc.RedemptionCode, "alice@example.com")
			if err == nil {
				winner.Store(red)
			}
			results <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1, "exactly one redemption must fail")
	assert.ErrorIs(t, failures[0], giftcard.ErrAlreadyRedeemed)

	red := winner.Load()
	require.NotNil(t, red)
	total, err := ledger.TotalAvailable(ctx, red.User.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(credit.MustParseDecimal("25")), "one credit, not two")

	credits, err := ledger.CreditsForUser(ctx, red.User.ID)
	require.NoError(t, err)
	assert.Len(t, credits, 1)
}

func TestRedeem_EmptyEmail_Rejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	_, err := svc.Redeem(ctx, gc.RedemptionCode, "   ")
	assert.ErrorIs(t, err, credit.ErrValidationFailed)

	// The claim stays open; a real email can still settle it
	got, err := svc.Lookup(ctx, gc.RedemptionCode)
	require.NoError(t, err)
	assert.True(t, got.Active())
}

func TestRedeem_DeactivatedCard_Rejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	require.NoError(t, svc.Deactivate(ctx, gc.RedemptionCode))

	_, err := svc.Redeem(ctx, gc.RedemptionCode, "alice@example.com")
	assert.ErrorIs(t, err, giftcard.ErrDeactivated)
}

// =============================================================================
// DEACTIVATE & LOOKUP
// =============================================================================

func TestDeactivate_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	require.NoError(t, svc.Deactivate(ctx, gc.RedemptionCode))
	assert.NoError(t, svc.Deactivate(ctx, gc.RedemptionCode))

	got, err := svc.Lookup(ctx, gc.RedemptionCode)
	require.NoError(t, err)
	assert.False(t, got.Active())
}

func TestDeactivate_RedeemedCard_Rejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	gc := issue(t, svc, "25")

	_, err := svc.Redeem(ctx, gc.RedemptionCode, "alice@example.com")
	require.NoError(t, err)

	err = svc.Deactivate(ctx, gc.RedemptionCode)
	assert.ErrorIs(t, err, giftcard.ErrAlreadyRedeemed)
}

func TestLookup_UnknownCode(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Lookup(context.Background(), "NOPE")
	assert.ErrorIs(t, err, giftcard.ErrCodeNotFound)

	_, err = svc.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, giftcard.ErrCodeNotFound)
}
