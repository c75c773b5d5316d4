package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/callgate/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints join credentials in exactly the shape Verify accepts.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("issuer secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("issuer ttl must be > 0")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(room domain.RoomID, role domain.Role, subject, displayName string) (string, error) {
	if room == "" || subject == "" {
		return "", ErrMissingClaims
	}
	now := i.now()
	claims := Claims{
		RoomID:      string(room),
		Role:        string(role),
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign join token: %w", err)
	}
	return signed, nil
}
