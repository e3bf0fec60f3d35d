/*
event.go - Append-only ledger entries (the audit trail)

PURPOSE:
  Every accepted mutation of a StoreCredit writes exactly one Event,
  plus one allocation event at creation time. The event log is the
  immutable source of truth for how a balance got to its current state.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, events cannot be modified
  3. ONE PER MUTATION: Rejected operations write nothing

The log also carries the idempotency state: an authorize event for a
given authorization code means that authorization already happened, and
replaying it is a no-op success. A void event for a code means the hold
was already released; a second void must not release it again.

SEE ALSO:
  - ledger.go: Writes events inside the operation transaction
  - store.go: Persistence interface (AppendEvent, FindEvent)
*/
package credit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACTIONS
// =============================================================================

// Action is the kind of balance-affecting operation an event records.
type Action string

const (
	ActionAllocation Action = "allocation" // credit created (grant, gift card redemption)
	ActionAuthorize  Action = "authorize"  // hold placed against remaining amount
	ActionCapture    Action = "capture"    // hold converted into consumption
	ActionVoid       Action = "void"       // hold released without consumption
	ActionCredit     Action = "credit"     // prior capture reversed
	ActionEligible   Action = "eligible"   // credit deemed eligible for an order (no mutation)
)

// =============================================================================
// EVENT - One immutable audit record
// =============================================================================

// Event is a single ledger entry. Amount is the amount this action
// moved (for allocation, the full granted total). UserTotalAmount is a
// snapshot of the owning user's total available credit across all
// balances at the time of the event - an audit field, never used for
// control flow.
type Event struct {
	ID                EventID
	CreditID          CreditID
	Action            Action
	Amount            decimal.Decimal
	AuthorizationCode AuthorizationCode
	UserTotalAmount   decimal.Decimal
	CreatedAt         time.Time
}

// EventIntent is the pending ledger entry an operation produces. The
// state machine returns it instead of stashing "what event to write"
// as scratch fields on the entity; the ledger turns it into an Event
// inside the same transaction as the balance update.
type EventIntent struct {
	Action            Action
	Amount            decimal.Decimal
	AuthorizationCode AuthorizationCode
}

// =============================================================================
// AUTHORIZATION CODES
// =============================================================================

// GenerateAuthorizationCode builds a code for an authorization the
// caller did not name: credit identity plus a microsecond UTC
// timestamp, e.g. "crd-1-SC-20260831094215123456".
func GenerateAuthorizationCode(id CreditID, at time.Time) AuthorizationCode {
	at = at.UTC()
	return AuthorizationCode(fmt.Sprintf("%s-SC-%s%06d",
		id, at.Format("20060102150405"), at.Nanosecond()/1000))
}
