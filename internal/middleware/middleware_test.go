package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"FaceLens/pkg/session"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() (*fiber.App, Middleware) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := New(logger, time.Hour)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewSessionMiddleware())
	app.Use(m.NewLoggingMiddleware)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"request_id": m.GetRequestID(c),
			"session_id": m.GetSessionID(c),
		})
	})
	return app, m
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestSessionMiddlewareIssuesCookie(t *testing.T) {
	app, _ := newApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	_, err = ulid.ParseStrict(cookie.Value)
	assert.NoError(t, err)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, resp.Header.Get(RequestIDKey))
}

func TestSessionMiddlewareKeepsValidCookie(t *testing.T) {
	app, _ := newApp()
	existing := ulid.Make().String()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: existing})

	resp, err := app.Test(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), existing)
}

func TestSessionMiddlewareReplacesForgedCookie(t *testing.T) {
	app, _ := newApp()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "../../etc/passwd"})

	resp, err := app.Test(req)
	require.NoError(t, err)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEqual(t, "../../etc/passwd", cookie.Value)
}

func TestRequestIDIsPropagated(t *testing.T) {
	app, _ := newApp()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(RequestIDKey, "req-123")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "req-123", resp.Header.Get(RequestIDKey))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"request_id":"req-123"`)
}

func TestRateLimiterPerIP(t *testing.T) {
	limiter := newRateLimiter(1, 2)

	a := limiter.GetLimiterFrom("10.0.0.1")
	assert.Same(t, a, limiter.GetLimiterFrom("10.0.0.1"))
	assert.NotSame(t, a, limiter.GetLimiterFrom("10.0.0.2"))

	assert.True(t, a.Allow())
	assert.True(t, a.Allow())
	assert.False(t, a.Allow())
}
