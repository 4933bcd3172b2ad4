package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors what the server puts in its tokens.
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a JWT payload without verifying its signature; the
// client has no key and only uses the claims for display.
func ParseClaims(token string) (*Claims, error) {
	c := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(StripBearer(token), c); err != nil {
		return nil, fmt.Errorf("opaque token: %w", err)
	}
	return c, nil
}

// Expiry returns the exp claim, or nil for opaque tokens and tokens
// without one.
func Expiry(token string) *time.Time {
	c, err := ParseClaims(token)
	if err != nil || c.ExpiresAt == nil {
		return nil
	}
	t := c.ExpiresAt.Time
	return &t
}
