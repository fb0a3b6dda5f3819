// Package identity verifies session tokens minted by the campus identity
// provider. The portal never issues tokens or manages accounts; it only
// checks signatures and extracts the claimant identity, which is then passed
// explicitly into the services.
package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry, or
// issuer checks.
var ErrInvalidToken = errors.New("invalid identity token")

// Claims are the JWT claims the portal consumes from the identity provider.
// Subject is the stable user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"` // "admin" grants moderation access
}

// Verifier validates RS256 tokens against the identity provider's public key.
type Verifier struct {
	pub    *rsa.PublicKey
	issuer string
}

// NewVerifier creates a Verifier from a PEM-encoded RSA public key. If issuer
// is non-empty, the token's "iss" claim must match it.
func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse identity provider public key: %w", err)
	}
	return &Verifier{pub: pub, issuer: issuer}, nil
}

// Verify parses and validates a token, returning its claims.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(*jwt.Token) (any, error) { return v.pub, nil },
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsAdmin reports whether the claims carry the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}
