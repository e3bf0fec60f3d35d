/*
users.go - Stub user provisioning for orders without accounts

For some operations (purchasing or redeeming a gift card) a user record
is required to tie the resulting store credit to. When the order was
placed without an account, we provision a stub user from the order's
email with a generated initial password token.
*/
package giftcard

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/credit-engine/credit"
)

// UserGenerator resolves the user a gift card redemption should credit:
// an existing user by email, or a freshly provisioned stub.
type UserGenerator struct {
	Store Store
	Now   func() time.Time
}

func NewUserGenerator(store Store) *UserGenerator {
	return &UserGenerator{Store: store, Now: time.Now}
}

// Ensure returns the user for the given email, creating a stub user if
// none exists. The generated initial password token is returned for
// stub users so the caller can hand it to the account-claim flow; it
// is empty for existing users and is not persisted here.
func (g *UserGenerator) Ensure(ctx context.Context, email string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", &credit.ValidationError{Field: "email", Message: "is required"}
	}

	existing, err := g.Store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, "", nil
	}

	u := User{
		ID:        credit.UserID(uuid.NewString()),
		Email:     email,
		Stub:      true,
		CreatedAt: g.Now(),
	}
	if err := g.Store.SaveUser(ctx, u); err != nil {
		return nil, "", err
	}
	return &u, friendlyToken(20), nil
}

// friendlyToken returns a url-safe random token of n source bytes.
func friendlyToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has bigger problems;
		// fall back to a UUID rather than returning an empty token.
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
