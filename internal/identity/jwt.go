package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snapfeed/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer   = "snapfeed-api"
	Audience = "snapfeed-client"

	// DefaultTokenTTL bounds self-issued tokens.
	DefaultTokenTTL = 15 * time.Minute
)

// JWT verifies and mints HS256 tokens signed with a shared secret.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT creates a JWT verifier/minter. A zero ttl means DefaultTokenTTL.
func NewJWT(secret string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint issues a fresh token for id.
func (j *JWT) Mint(id *models.Identity) (string, error) {
	if id == nil || id.UserID == "" {
		return "", errors.New("identity with a user ID is required")
	}
	now := j.now()
	claims := jwt.MapClaims{
		"iss":  Issuer,
		"aud":  Audience,
		"sub":  id.UserID,
		"name": id.DisplayName,
		"iat":  now.Unix(),
		"exp":  now.Add(j.ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	if id.AvatarURL != "" {
		claims["picture"] = id.AvatarURL
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Verify implements Verifier.
func (j *JWT) Verify(_ context.Context, tokenString string) (*models.Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return identityFromClaims(claims)
}

// Peek reads the caller named by a token without checking its signature.
// Clients use it to pick their upload folder; servers must call Verify.
func Peek(tokenString string) (*models.Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return identityFromClaims(claims)
}

func identityFromClaims(claims jwt.MapClaims) (*models.Identity, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("invalid subject claim")
	}

	id := &models.Identity{UserID: sub}
	if name, ok := claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := claims["picture"].(string); ok {
		id.AvatarURL = picture
	}
	return id, nil
}

// Source returns a TokenSource that mints a new token on every call.
func (j *JWT) Source(id *models.Identity) TokenSource {
	return mintingSource{jwt: j, id: id}
}

type mintingSource struct {
	jwt *JWT
	id  *models.Identity
}

func (s mintingSource) Token(_ context.Context) (string, error) {
	return s.jwt.Mint(s.id)
}
