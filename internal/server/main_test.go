package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/identity"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

type uploaderStub struct {
	fn func(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error)
}

func (u *uploaderStub) Upload(ctx context.Context, file models.UploadFile, ticket *models.UploadTicket) (*models.StoredObject, error) {
	return u.fn(ctx, file, ticket)
}

func okUploader() *uploaderStub {
	return &uploaderStub{fn: func(_ context.Context, file models.UploadFile, _ *models.UploadTicket) (*models.StoredObject, error) {
		return &models.StoredObject{
			SecureURL:        "https://cdn.example.com/" + file.Name,
			ResourceKind:     models.ResourceImage,
			OriginalFilename: file.Name,
			Format:           "png",
			StorageKey:       "user/" + file.Name,
		}, nil
	}}
}

type testEnv struct {
	server   *Server
	app      *fiber.App
	db       *gorm.DB
	jwt      *identity.JWT
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		AllowedOrigins:      "http://localhost:5173",
		FeatureFlags:        "server_ingest=on",
		StoreDriver:         config.StoreSQLite,
		IdentityProvider:    config.IdentityJWT,
		JWTSecret:           testSecret,
		StorageDriver:       config.StorageCloudinary,
		CloudinaryCloudName: "demo",
		CloudinaryAPIKey:    "key123",
		CloudinaryAPISecret: "shh-secret",
		ObjectStoreOrigins:  "https://cdn.example.com/",
		UploadDelayMS:       0,
		UploadMaxFiles:      3,
		UploadMaxSizeMB:     1,
	}
}

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newTestEnv builds a fully routed app over an in-memory store.
func newTestEnv(t *testing.T, mutate func(cfg *config.Config, deps *Deps)) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db := setupSQLite(t)
	jwt := identity.NewJWT(testSecret, identity.DefaultTokenTTL)
	cfg := testConfig()
	deps := Deps{
		DB:       db,
		Posts:    repository.NewPostRepository(db),
		Comments: repository.NewCommentRepository(db),
		Verifier: jwt,
		Uploader: okUploader(),
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	s, err := NewServerWithDeps(cfg, deps)
	require.NoError(t, err)

	return &testEnv{
		server:   s,
		app:      s.App(),
		db:       db,
		jwt:      jwt,
		posts:    deps.Posts,
		comments: deps.Comments,
	}
}

func (e *testEnv) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := e.jwt.Mint(&models.Identity{UserID: uid, DisplayName: "User " + uid})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(t *testing.T, method, target, token string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type formFile struct {
	name    string
	content []byte
}

func multipartRequest(t *testing.T, target, token, caption string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if caption != "" {
		require.NoError(t, w.WriteField("caption", caption))
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
