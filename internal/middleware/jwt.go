package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/faith-connect/faith_connect/internal/identity"
)

// JWTAuth validates bearer access tokens and rejects tokens revoked by logout.
// The user id is stored under identity.LocalUserID.
func JWTAuth(tokens *identity.Tokens, ids *identity.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
		}
		claims, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]), identity.TokenTypeAccess)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Given token not valid for any token type")
		}
		user, err := ids.Authorize(c.UserContext(), claims)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Given token not valid for any token type")
		}

		c.Locals(identity.LocalUserID, user.ID)
		return c.Next()
	}
}
