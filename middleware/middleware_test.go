package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Anvil/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

func newApp(logger *zap.Logger) *fiber.App {
	app := fiber.New()
	app.Use(RequestLogger(logger))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/me", Verify(testSecret), func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(caller)
	})
	return app
}

func TestVerify(t *testing.T) {
	app := newApp(nil)
	token, err := IssueToken(testSecret, Models.RoleContext{Role: "Admin", Username: " boss "}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVerifyRejects(t *testing.T) {
	app := newApp(nil)
	expired, err := IssueToken(testSecret, Models.RoleContext{Role: Models.RoleUser, Username: "alice"}, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", Models.RoleContext{Role: Models.RoleAdmin, Username: "alice"}, time.Hour)
	require.NoError(t, err)
	anonymous, err := IssueToken(testSecret, Models.RoleContext{Role: Models.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"garbage":   "Bearer abc.def.ghi",
		"expired":   "Bearer " + expired,
		"forged":    "Bearer " + forged,
		"anonymous": "Bearer " + anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := newApp(zap.New(core))

	token, err := IssueToken(testSecret, Models.RoleContext{Role: Models.RoleUser, Username: "alice"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 1, "health checks are not logged")
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/me", fields["path"])
	assert.Equal(t, int64(200), fields["status"])
	assert.Equal(t, "alice", fields["username"])
}
