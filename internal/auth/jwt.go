// Package auth provides the identity-token issuer and the password credential
// subsystem. Tokens are stateless HS256 JWTs asserting a user id; nothing is
// stored server-side and prior tokens are never rotated or revoked.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the registered claims plus the asserted user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// JWTIssuer mints and verifies signed, time-bound identity tokens.
type JWTIssuer struct {
	secret   []byte
	validity time.Duration
}

// NewJWTIssuer creates a JWTIssuer with the given signing secret and token
// validity duration.
func NewJWTIssuer(secret []byte, validity time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: secret, validity: validity}
}

// Issue mints a token scoped to the given user id.
func (i *JWTIssuer) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		UserID: userID,
	})
	return token.SignedString(i.secret)
}

// Verify parses and validates a token and returns the user id it asserts.
func (i *JWTIssuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
