// Package middleware provides authentication, logging, and rate limiting
// middleware for the application.
package middleware

import (
	"strconv"
	"strings"

	"bazaar/internal/auth"
	"bazaar/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityKey is the Fiber locals key holding the resolved *auth.Identity.
const IdentityKey = "identity"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// IdentityFromCtx returns the acting identity resolved for this request,
// or nil for anonymous callers.
func IdentityFromCtx(c *fiber.Ctx) *auth.Identity {
	if v := c.Locals(IdentityKey); v != nil {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return nil
}

// ResolveIdentity parses an optional bearer token into an identity value
// object and stores it in locals. Requests without a token proceed as
// anonymous; reads are public so this middleware never rejects.
func ResolveIdentity(c *fiber.Ctx) error {
	identity, _ := identityFromHeader(c)
	if identity != nil {
		c.Locals(IdentityKey, identity)
	}
	return c.Next()
}

// AuthRequired enforces a valid bearer token for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	identity, errMsg := identityFromHeader(c)
	if identity == nil {
		if errMsg == "" {
			errMsg = "Authorization header required"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": errMsg,
		})
	}
	c.Locals(IdentityKey, identity)
	return c.Next()
}

// identityFromHeader validates the Authorization header and builds the
// identity value object from the token claims: "sub" (user id), "staff"
// (elevated flag), and "groups" (role group names).
func identityFromHeader(c *fiber.Ctx) (*auth.Identity, string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, "Invalid authorization header format"
	}

	if cfg == nil || cfg.JWTSecret == "" {
		return nil, "Invalid or expired token"
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, "Invalid or expired token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "Invalid token claims"
	}

	subStr, ok := claims["sub"].(string)
	if !ok {
		return nil, "Invalid token subject"
	}
	userID, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userID == 0 {
		return nil, "Invalid user ID in token"
	}

	identity := &auth.Identity{UserID: uint(userID)}
	if staff, ok := claims["staff"].(bool); ok {
		identity.Elevated = staff
	}
	if raw, ok := claims["groups"].([]interface{}); ok {
		for _, g := range raw {
			if name, ok := g.(string); ok {
				identity.Groups = append(identity.Groups, name)
			}
		}
	}
	return identity, ""
}
