package api

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrCredentialExpired is returned before any network call when the
// configured bearer token is a JWT whose exp claim has passed.
var ErrCredentialExpired = errors.New("bearer credential has expired")

// credentialExpiry extracts the exp claim from a JWT-shaped token without
// verifying the signature (verification is the server's job; the client only
// wants to fail fast instead of burning a round trip). Opaque tokens and
// JWTs without exp return the zero time, meaning "never pre-expire".
func credentialExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
