package middleware

import (
	"errors"
	"strings"
	"time"

	"Anvil/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const callerKey = "caller"

// Claims is the token payload: who the caller is and which role they act in.
type Claims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for caller valid for ttl.
func IssueToken(secret string, caller Models.RoleContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     string(caller.Role),
		Username: caller.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "anvil",
			Subject:   caller.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func tokenFrom(c *fiber.Ctx) string {
	if cookie := c.Cookies("jwt"); cookie != "" {
		return cookie
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Verify authenticates the request and stores the caller's RoleContext for
// the handlers. Roles are not checked here; the engine decides what each
// role may see.
func Verify(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := tokenFrom(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not Logged In.",
			})
		}

		token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || strings.TrimSpace(claims.Username) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token claims",
			})
		}

		c.Locals(callerKey, Models.RoleContext{
			Role:     Models.ParseRole(claims.Role),
			Username: strings.TrimSpace(claims.Username),
		})
		return c.Next()
	}
}

// CallerFrom returns the RoleContext stored by Verify.
func CallerFrom(c *fiber.Ctx) (Models.RoleContext, bool) {
	caller, ok := c.Locals(callerKey).(Models.RoleContext)
	return caller, ok
}
