package endpoint

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is carried inside the signed auth token minted for a
// session. The spec treats auth tokens as opaque identifiers validated
// only for equality (§1 Non-goals: "no policy engine for authorization");
// signing them with HS256 just means a forged or tampered token string
// fails to parse, rather than rolling a bespoke opaque-id scheme.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// tokenMinter signs and verifies opaque session auth tokens.
type tokenMinter struct {
	secretKey []byte
	ttl       time.Duration
}

func newTokenMinter(secretKey string, ttl time.Duration) *tokenMinter {
	return &tokenMinter{secretKey: []byte(secretKey), ttl: ttl}
}

// Mint returns a signed token string naming sessionID. The token is
// opaque to the caller: the endpoint only ever compares token strings
// for equality against its session map key, it never re-inspects claims
// after minting.
func (m *tokenMinter) Mint(sessionID string) (string, error) {
	claims := &sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			Subject:   sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify checks the token's signature and expiry and returns the session
// id it names.
func (m *tokenMinter) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid auth token: %w", err)
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid auth token claims")
	}
	return claims.SessionID, nil
}

// serverNonce returns n >= 32 random bytes, per §4.5.
func serverNonce(n int) ([]byte, error) {
	if n < 32 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate server nonce: %w", err)
	}
	return b, nil
}
