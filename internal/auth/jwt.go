package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload: subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	now    func() time.Time
}

// NewTokens returns a Tokens with the given secret and lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{Secret: []byte(secret), TTL: ttl, Issuer: "movplay", now: time.Now}
}

// Issue signs a token for userID with role.
func (t *Tokens) Issue(userID, role string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("auth: empty subject")
	}
	now := t.clock()
	expires := now.Add(t.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    t.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse validates a token string and returns its claims.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return t.Secret, nil
	}, jwt.WithIssuer(t.Issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.clock))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (t *Tokens) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}
