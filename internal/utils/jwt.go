package utils // package utils provides helper functions for operator tokens and password hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// RoleAdmin is the only role the service issues tokens for.  Customers
// never log in; the hold id plus email is their credential.
const RoleAdmin = "ADMIN"

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT carrying the subject and
// role claims.  now is passed in so callers with an injected clock issue
// tokens consistent with it.
func NewAccessToken(secret, subject, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return AccessToken{}, errors.New("token ttl must be positive")
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
