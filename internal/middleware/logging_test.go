package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{fiber.StatusOK, "info"},
		{fiber.StatusUnprocessableEntity, "warn"},
		{fiber.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureLogs(t)
			app := fiber.New()
			app.Use(requestid.New())
			app.Use(RequestLogger())
			app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(tt.status) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), 5000)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			entry := lastEntry(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.NotEqual(t, "unknown", entry["request_id"])
		})
	}
}

func TestRequestLogger_WithoutRequestID(t *testing.T) {
	buf := captureLogs(t)
	app := fiber.New()
	app.Use(RequestLogger())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	_, err := app.Test(httptest.NewRequest("GET", "/", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, "unknown", lastEntry(t, buf)["request_id"])
}

func TestRecovered(t *testing.T) {
	buf := captureLogs(t)
	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: Recovered}))
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	entry := lastEntry(t, buf)
	assert.Equal(t, "Panic recovered", entry["message"])
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "/boom", entry["path"])
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), 5000)
	require.NoError(t, err)
	for k, v := range securityHeaders {
		assert.Equal(t, v, resp.Header.Get(k), k)
	}
}

func TestSecurityHeaders_UIPrefix(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders("/swagger"))
	app.Get("/*", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/swagger/index.html", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, uiPolicy, resp.Header.Get(fiber.HeaderContentSecurityPolicy))
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/patch", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, securityHeaders[fiber.HeaderContentSecurityPolicy], resp.Header.Get(fiber.HeaderContentSecurityPolicy))
}
