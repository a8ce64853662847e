package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snapfeed/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name          string
		env           string
		rdb           *redis.Client
		calls         int
		expectedAllow bool
		expectErr     bool
	}{
		{"test environment bypass", "test", nil, 5, true, false},
		{"development environment bypass", "development", nil, 5, true, false},
		{"nil redis in production", "production", nil, 1, false, true},
		{"within limit", "production", rdb, 2, true, false},
		{"over limit", "production", rdb, 3, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.FlushAll()
			t.Setenv("APP_ENV", tt.env)

			var allowed bool
			var err error
			for i := 0; i < tt.calls; i++ {
				allowed, err = CheckRateLimit(context.Background(), tt.rdb, "upload_signature", "ip:1.2.3.4", 2, time.Minute)
			}
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAllow, allowed)
		})
	}
}

func TestCheckRateLimit_SetsExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	t.Setenv("APP_ENV", "production")

	_, err := CheckRateLimit(context.Background(), rdb, "search", "user:u1", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("rl:search:user:u1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("rl:search:user:u1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	t.Run("fail open without redis", func(t *testing.T) {
		app := fiber.New()
		app.Get("/", RateLimit(nil, 1, time.Minute, "x"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("fail closed without redis", func(t *testing.T) {
		app := fiber.New()
		app.Get("/", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed, "x"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("limits per user", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("userID", c.Get("X-User"))
			return c.Next()
		})
		app.Get("/", RateLimit(rdb, 1, time.Minute, "comments"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		statuses := make([]int, 0, 3)
		for _, user := range []string{"u1", "u1", "u2"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-User", user)
			resp, err := app.Test(req)
			require.NoError(t, err)
			statuses = append(statuses, resp.StatusCode)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK}, statuses)
	})
}

func TestRateLimitMiddleware_RejectionContract(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	app.Post("/signature", RateLimit(rdb, 2, time.Minute, "upload_signature"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	var last *http.Response
	remaining := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signature", nil))
		require.NoError(t, err)
		remaining = append(remaining, resp.Header.Get("X-RateLimit-Remaining"))
		last = resp
	}
	assert.Equal(t, []string{"1", "0", "0"}, remaining)
	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	assert.Equal(t, "2", last.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "60", last.Header.Get("Retry-After"))

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(last.Body).Decode(&body))
	assert.Equal(t, models.CodeRateLimited, body.Code)
}

func TestAllow_KeyAlwaysExpires(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// A counter left behind without a TTL picks one up on the next hit.
	mr.Set("rl:search:ip:1.2.3.4", "7")
	d, err := Allow(context.Background(), rdb, "search", "ip:1.2.3.4", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, time.Minute, mr.TTL("rl:search:ip:1.2.3.4"))
}
