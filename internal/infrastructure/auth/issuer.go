package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// TokenOptions are optional registered claims for IssueToken.
type TokenOptions struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

const defaultTokenTTL = 24 * time.Hour

// IssueToken mints an HS256 token whose subject is userID.
func IssueToken(secret string, userID notification.UserID, opts TokenOptions) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if userID.IsZero() {
		return "", ErrMissingSubject
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTokenTTL
	}
	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(opts.TTL)),
	}
	if opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{opts.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
