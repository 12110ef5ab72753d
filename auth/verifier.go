package auth

import (
	"context"
	"fmt"

	"channel-gateway/contract"
	"channel-gateway/domain"
	"channel-gateway/errors"
)

// Verifier turns a raw session token into a trusted principal.
//
// The token must come from the transport context (Authorization header or
// the websocket query string), never from untrusted body fields. Every
// store failure, whatever its cause, surfaces as ErrUnauthenticated so
// nothing about the session store leaks to the caller.
type Verifier struct {
	store contract.SessionStore
}

func NewVerifier(store contract.SessionStore) *Verifier {
	return &Verifier{store: store}
}

func (v *Verifier) Verify(ctx context.Context, rawToken string) (domain.Principal, error) {
	if rawToken == "" {
		return domain.Principal{}, errors.ErrUnauthenticated
	}
	principal, err := v.store.Lookup(ctx, rawToken)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if principal.IsZero() {
		return domain.Principal{}, errors.ErrUnauthenticated
	}
	return principal, nil
}
