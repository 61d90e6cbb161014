package authentication

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/the127/chunkyard/internal/config"
)

// IssueToken signs a bearer token accepted by ApiAuthenticationMiddleware.
func IssueToken(c config.AuthConfig, subject string, ttl time.Duration, now time.Time) (string, error) {
	if c.Secret == "" {
		return "", fmt.Errorf("no auth secret configured")
	}

	claims := &jwt.RegisteredClaims{
		Issuer:    c.Issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}
