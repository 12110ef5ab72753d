package auth

import (
	"context"
	"time"

	"channel-gateway/domain"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "channel-gateway"

// SessionClaims defines the structure of the data stored inside the JWT.
type SessionClaims struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenStore is a stateless session store backed by signed tokens.
// It implements contract.SessionStore; a server-side store can replace it
// without touching the verifier.
type TokenStore struct {
	secret   []byte
	duration time.Duration
}

func NewTokenStore(secret []byte, duration time.Duration) *TokenStore {
	return &TokenStore{secret: secret, duration: duration}
}

// Issue creates a signed session token for a principal. The surrounding
// application calls this at login; the gateway itself only verifies.
func (s *TokenStore) Issue(principal domain.Principal, roles []string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: principal.ID,
		Name:   principal.DisplayName,
		Email:  principal.Email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	// HS256: HMAC with SHA256, signed with the server-held secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Lookup parses and validates the signature and expiration of a session
// token, returning the principal it was issued to.
func (s *TokenStore) Lookup(_ context.Context, token string) (domain.Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{
		ID:          claims.UserID,
		DisplayName: claims.Name,
		Email:       claims.Email,
	}, nil
}

// Roles returns the role claims carried by a valid session token.
// Used by the admin gate, which needs more than the three principal fields.
func (s *TokenStore) Roles(token string) ([]string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	return claims.Roles, nil
}

func (s *TokenStore) parse(token string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := parsed.Claims.(*SessionClaims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
