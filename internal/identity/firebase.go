package identity

import (
	"context"
	"fmt"

	"snapfeed/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// IDTokenVerifier is the part of the Firebase Auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Firebase verifies Firebase ID tokens.
type Firebase struct {
	client IDTokenVerifier
}

// NewFirebase wraps an auth client (or any IDTokenVerifier).
func NewFirebase(client IDTokenVerifier) *Firebase {
	return &Firebase{client: client}
}

// NewFirebaseFromApp creates a verifier from an initialized Firebase app.
func NewFirebaseFromApp(ctx context.Context, app *firebase.App) (*Firebase, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return NewFirebase(client), nil
}

// Verify implements Verifier.
func (f *Firebase) Verify(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	decoded, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	id := &models.Identity{UserID: decoded.UID}
	if name, ok := decoded.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := decoded.Claims["picture"].(string); ok {
		id.AvatarURL = picture
	}
	return id, nil
}
