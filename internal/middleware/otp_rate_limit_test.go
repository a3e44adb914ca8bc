package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/faith-connect/faith_connect/internal/logging"
)

func newLimitedApp(cache *redis.Client, max int) *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Post("/auth/login/", OTPRateLimit(cache, max, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func post(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestOTPRateLimitPerIdentifier(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	app := newLimitedApp(cache, 2)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, post(t, app, `{"phone":"+254712345678"}`).StatusCode)
	}
	require.Equal(t, http.StatusTooManyRequests, post(t, app, `{"phone":"+254712345678"}`).StatusCode)
	require.Equal(t, http.StatusTooManyRequests, post(t, app, `{"identifier":"+254712345678"}`).StatusCode)
	require.Equal(t, http.StatusOK, post(t, app, `{"phone":"+254700000000"}`).StatusCode)

	require.True(t, mr.Exists("rl:otp:+254712345678"))
	mr.FastForward(61 * time.Second)
	require.Equal(t, http.StatusOK, post(t, app, `{"phone":"+254712345678"}`).StatusCode)
}

func TestOTPRateLimitFailsOpen(t *testing.T) {
	app := newLimitedApp(nil, 1)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, post(t, app, `{"phone":"+254712345678"}`).StatusCode)
	}

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	app = newLimitedApp(cache, 1)
	mr.Close()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, post(t, app, `{"phone":"+254712345678"}`).StatusCode)
	}
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	app := newLimitedApp(nil, 1)

	req := httptest.NewRequest(http.MethodPost, "/auth/login/", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "abc", resp.Header.Get("X-Request-ID"))

	resp = post(t, app, `{}`)
	require.Len(t, resp.Header.Get("X-Request-ID"), 36)
}
