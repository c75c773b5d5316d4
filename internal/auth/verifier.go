// Package auth verifies and issues the signed credentials a client presents
// to the signaling broker in its join message.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/callgate/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every signature, format and expiry failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingClaims means the signature checked out but roomId, role or
	// sub is absent or unusable.
	ErrMissingClaims = errors.New("missing required claims")
)

type Verifier interface {
	Verify(token string) (*Claims, error)
}

type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now}
}

func (v *JWTVerifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.RoomID == "" || claims.Subject == "" {
		return nil, ErrMissingClaims
	}
	if _, err := domain.ParseRole(claims.Role); err != nil {
		return nil, ErrMissingClaims
	}
	return claims, nil
}
