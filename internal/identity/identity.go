// Package identity verifies bearer tokens issued by an external identity
// provider and turns them into an Identity.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is the caller as asserted by the identity provider
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks a bearer token and returns the identity it asserts
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
