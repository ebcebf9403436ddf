package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/crypto/bcrypt"
)

// AdminKey holds the operator credential. Hash is a bcrypt hash and takes
// precedence over the plain Key.
type AdminKey struct {
	Key  string
	Hash string
}

func (k AdminKey) configured() bool {
	return k.Key != "" || k.Hash != ""
}

func (k AdminKey) matches(candidate string) bool {
	if k.Hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(k.Key), []byte(candidate)) == 1
}

// RequireAdminKey authenticates operator requests carrying the admin API key.
func RequireAdminKey(key AdminKey) fiber.Handler {
	if !key.configured() {
		log.Warn("[Admin] No admin API key configured, admin routes are disabled")
	}
	return func(c *fiber.Ctx) error {
		if !key.configured() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Admin API disabled"})
		}
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}
		if !key.matches(apiKey) {
			log.Warnf("[Admin] Rejected admin request from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
