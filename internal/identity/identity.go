// Package identity verifies and mints caller identity tokens.
package identity

import (
	"context"
	"errors"
	"strings"

	"snapfeed/internal/models"
)

// ErrMissingToken is returned when no token was presented.
var ErrMissingToken = errors.New("no identity token provided")

// Verifier checks an identity token and returns the caller it names.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// TokenSource yields an identity token for one remote call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(_ context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrMissingToken
	}
	return string(t), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
