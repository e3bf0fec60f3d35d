// notifier.go - Notification implementations. Real email delivery is
// an external collaborator; these are the in-repo stand-ins.
package giftcard

import (
	"context"
	"log"
)

// LogNotifier writes notifications to the process log. Used as the
// default wiring in the server until a mail sender is plugged in.
type LogNotifier struct{}

func (LogNotifier) GiftCardIssued(_ context.Context, gc GiftCard) {
	to := gc.RecipientEmail
	if to == "" {
		to = gc.OrderEmail
	}
	log.Printf("gift card %s issued: notify %s", gc.ID, to)
}

func (LogNotifier) GiftCardRedeemed(_ context.Context, gc GiftCard, u User) {
	log.Printf("gift card %s redeemed by %s (credit %s)", gc.ID, u.Email, gc.CreditID)
}

// NopNotifier drops all notifications. Test default.
type NopNotifier struct{}

func (NopNotifier) GiftCardIssued(context.Context, GiftCard)         {}
func (NopNotifier) GiftCardRedeemed(context.Context, GiftCard, User) {}
