package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reef-research/backend/internal/metrics"
)

func newTestApp(lim Limit, store Store) *fiber.App {
	app := fiber.New()
	app.Post("/thing", Middleware("thing", lim, store), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestMiddlewareSetsHeadersOnAllow(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	app := newTestApp(Limit{Window: time.Minute, MaxRequests: 5}, store)

	req := httptest.NewRequest("POST", "/thing", nil)
	req.Header.Set("X-User-ID", "alice")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	app := newTestApp(Limit{Window: time.Minute, MaxRequests: 1}, store)

	req := httptest.NewRequest("POST", "/thing", nil)
	req.Header.Set("X-User-ID", "bob")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("POST", "/thing", nil)
	req.Header.Set("X-User-ID", "bob")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestMiddlewareCountsRejections(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	app := fiber.New()
	app.Post("/counted", Middleware("counted", Limit{Window: time.Minute, MaxRequests: 1}, store), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	before := testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("counted"))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/counted", nil)
		req.Header.Set("X-User-ID", "carol")
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	after := testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("counted"))
	assert.Equal(t, 2.0, after-before)
}

func TestMiddlewareIdentifierFallsBackToIP(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	app := newTestApp(Limit{Window: time.Minute, MaxRequests: 1}, store)

	// No user id anywhere: both requests share the test client IP.
	resp, err := app.Test(httptest.NewRequest("POST", "/thing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/thing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
