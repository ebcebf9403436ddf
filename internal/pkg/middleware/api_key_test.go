package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAdminApp(key AdminKey) *fiber.App {
	app := fiber.New()
	app.Get("/admin", RequireAdminKey(key), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRequireAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    AdminKey
		header string
		value  string
		status int
	}{
		{"plain key via header", AdminKey{Key: "s3cret"}, "X-API-Key", "s3cret", fiber.StatusOK},
		{"plain key via bearer", AdminKey{Key: "s3cret"}, "Authorization", "Bearer s3cret", fiber.StatusOK},
		{"wrong key", AdminKey{Key: "s3cret"}, "X-API-Key", "nope", fiber.StatusUnauthorized},
		{"missing key", AdminKey{Key: "s3cret"}, "", "", fiber.StatusUnauthorized},
		{"bcrypt hash", AdminKey{Hash: string(hash)}, "X-API-Key", "s3cret", fiber.StatusOK},
		{"bcrypt hash wins over plain", AdminKey{Key: "other", Hash: string(hash)}, "X-API-Key", "other", fiber.StatusUnauthorized},
		{"not configured", AdminKey{}, "X-API-Key", "anything", fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := newAdminApp(tt.key).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
