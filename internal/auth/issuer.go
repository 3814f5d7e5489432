package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("missing or invalid host token")
	ErrForbidden    = errors.New("host token belongs to another game")
)

const roleHost = "host"

// Issuer signs and verifies host tokens. The token subject is the game id.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type hostClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token that lets its bearer drive gameID.
func (i *Issuer) Issue(gameID string) (string, error) {
	now := i.now()
	claims := hostClaims{
		Role: roleHost,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   gameID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign host token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns the game id it was issued for.
func (i *Issuer) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	claims := &hostClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized
	}
	if claims.Role != roleHost || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// Authorize verifies token and requires it to belong to gameID.
func (i *Issuer) Authorize(token, gameID string) error {
	subject, err := i.Verify(token)
	if err != nil {
		return err
	}
	if subject != gameID {
		return ErrForbidden
	}
	return nil
}
